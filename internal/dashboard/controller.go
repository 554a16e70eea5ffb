// Package dashboard owns the analytics state machine: one credential, one
// record list, one snapshot, advanced only by whole-dataset refreshes.
package dashboard

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"receiptdash/internal/core"
	"receiptdash/internal/log"
	"receiptdash/internal/source"
)

var (
	// ErrNotAuthenticated means no credential is held; callers should route
	// the user to sign-in.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrSessionExpired means the data source rejected the credential. The
	// controller has already dropped it and zeroed the analytics.
	ErrSessionExpired = errors.New("session expired, please sign in again")

	// ErrRefreshInFlight rejects a refresh that overlaps a running one.
	ErrRefreshInFlight = errors.New("refresh already in progress")
)

// Chart types for the payment distribution rendering hint.
const (
	ChartDoughnut = "doughnut"
	ChartPie      = "pie"
)

// Store persists dataset versions. Optional; the controller runs without one.
type Store interface {
	SaveDataset(ctx context.Context, version string, fetchedAt time.Time, records []core.ReceiptRecord) error
}

// Publisher announces new dataset versions to other processes. Optional.
type Publisher interface {
	PublishDatasetRefreshed(ctx context.Context, version string, count int, fetchedAt time.Time) error
}

// View is a consistent read of the controller state.
type View struct {
	Snapshot      *core.AnalyticsSnapshot
	Version       string
	ChartType     string
	Authenticated bool
	Email         string
}

type Controller struct {
	logger    *log.Logger
	fetcher   source.ReceiptFetcher
	store     Store
	publisher Publisher

	mu         sync.Mutex
	token      string
	email      string
	records    []core.ReceiptRecord
	snapshot   *core.AnalyticsSnapshot
	version    string
	sel        core.RangeSelector
	chartType  string
	refreshing bool
	seq        uint64

	clock func() time.Time
}

func NewController(fetcher source.ReceiptFetcher, store Store, publisher Publisher, logger *log.Logger) *Controller {
	return &Controller{
		logger:    logger.WithComponent(log.ComponentDashboard),
		fetcher:   fetcher,
		store:     store,
		publisher: publisher,
		chartType: ChartDoughnut,
		clock:     time.Now,
	}
}

// SetCredential installs a bearer token for subsequent refreshes.
func (c *Controller) SetCredential(token, email string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
	c.email = email
}

// ClearCredential drops the token and zeroes the analytics state.
func (c *Controller) ClearCredential() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = ""
	c.email = ""
	c.resetLocked()
}

// Refresh fetches the full dataset, recomputes every aggregate and commits
// the result as a new snapshot version. Overlapping calls are rejected, and
// a slow fetch that loses the race to a newer one is discarded rather than
// committed out of order.
func (c *Controller) Refresh(ctx context.Context) error {
	c.mu.Lock()
	if c.refreshing {
		c.mu.Unlock()
		return ErrRefreshInFlight
	}
	if c.token == "" {
		c.mu.Unlock()
		return ErrNotAuthenticated
	}
	c.refreshing = true
	c.seq++
	mySeq := c.seq
	token := c.token
	c.mu.Unlock()

	raw, fetchErr := c.fetcher.Fetch(ctx, token)
	fetchedAt := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.refreshing = false

	if mySeq != c.seq {
		c.logger.WarnContext(ctx, "Discarding stale fetch result", "fetch_seq", mySeq, "current_seq", c.seq)
		return nil
	}

	if fetchErr != nil {
		if errors.Is(fetchErr, source.ErrUnauthorized) {
			c.logger.WarnContext(ctx, "Credential rejected by data source, signing out", log.FieldEmail, c.email)
			c.token = ""
			c.email = ""
			c.resetLocked()
			return ErrSessionExpired
		}
		c.logger.ErrorContext(ctx, "Dataset fetch failed", log.FieldError, fetchErr)
		c.resetLocked()
		return fetchErr
	}

	records := core.NormalizeAll(raw)
	version := uuid.NewString()
	c.commitLocked(ctx, version, fetchedAt, records)

	if c.store != nil {
		if err := c.store.SaveDataset(ctx, version, fetchedAt, records); err != nil {
			c.logger.ErrorContext(ctx, "Failed to persist dataset", log.FieldError, err, log.FieldVersion, version)
		}
	}
	if c.publisher != nil {
		if err := c.publisher.PublishDatasetRefreshed(ctx, version, len(records), fetchedAt); err != nil {
			c.logger.ErrorContext(ctx, "Failed to publish dataset refresh", log.FieldError, err, log.FieldVersion, version)
		}
	}

	return nil
}

// AdoptDataset installs an already-normalized dataset, bypassing the fetch.
// Used when loading the persisted dataset at startup and when another process
// announces a new version over the queue.
func (c *Controller) AdoptDataset(ctx context.Context, version string, fetchedAt time.Time, records []core.ReceiptRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	c.commitLocked(ctx, version, fetchedAt, records)
}

// SetRange reslices the monthly series without refetching.
func (c *Controller) SetRange(sel core.RangeSelector) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sel = sel
	if c.snapshot != nil {
		c.snapshot = core.Assemble(c.records, c.sel, c.now())
	}
}

// ToggleChartType flips the payment chart between doughnut and pie and
// returns the new value.
func (c *Controller) ToggleChartType() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.chartType == ChartDoughnut {
		c.chartType = ChartPie
	} else {
		c.chartType = ChartDoughnut
	}
	return c.chartType
}

// View returns the current snapshot and controls. The snapshot is never nil;
// before the first refresh it is the zeroed rendering.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := c.snapshot
	if snap == nil {
		snap = core.Assemble(nil, c.sel, c.now())
	}
	return View{
		Snapshot:      snap,
		Version:       c.version,
		ChartType:     c.chartType,
		Authenticated: c.token != "",
		Email:         c.email,
	}
}

// Records returns the current record list, most recent first.
func (c *Controller) Records() []core.ReceiptRecord {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]core.ReceiptRecord, len(c.records))
	copy(out, c.records)
	return out
}

func (c *Controller) commitLocked(ctx context.Context, version string, fetchedAt time.Time, records []core.ReceiptRecord) {
	c.records = records
	c.version = version
	c.snapshot = core.Assemble(records, c.sel, fetchedAt)
	c.logger.InfoContext(ctx, "Committed dataset version",
		log.FieldVersion, version,
		log.FieldCount, len(records))
}

// resetLocked zeroes the analytics so a failed refresh never leaves stale
// numbers on screen.
func (c *Controller) resetLocked() {
	c.records = nil
	c.version = ""
	c.snapshot = core.Assemble(nil, c.sel, c.now())
}

func (c *Controller) now() time.Time {
	if c.clock != nil {
		return c.clock()
	}
	return time.Now()
}
