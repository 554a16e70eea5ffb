package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"receiptdash/internal/core"
	"receiptdash/internal/dashboard"
	"receiptdash/internal/log"
	"receiptdash/internal/source/memory"
)

type stubSessions struct {
	token string
	email string
	err   error
	calls int
}

func (s *stubSessions) RestoreSession(ctx context.Context, refreshToken string) (string, string, error) {
	s.calls++
	return s.token, s.email, s.err
}

func testLogger() *log.Logger {
	return log.New(log.Config{Level: slog.LevelError})
}

func fixtureItems() []core.RawReceipt {
	return []core.RawReceipt{{
		ReceiptData: core.RawReceiptData{
			TotalAmount:  json.RawMessage(`"9.99"`),
			MerchantName: "Acme",
			Date:         "2024-01-15",
		},
		ProcessedAt: "2024-01-15T10:00:00Z",
	}}
}

func TestRefreshOnce_RestoresSessionAndRefreshes(t *testing.T) {
	controller := dashboard.NewController(memory.New(fixtureItems()), nil, nil, testLogger())
	sessions := &stubSessions{token: "token-1", email: "a@b.test"}
	w := NewRefreshWorker(controller, sessions, "refresh-token", time.Minute, testLogger())

	if err := w.RefreshOnce(context.Background()); err != nil {
		t.Fatalf("RefreshOnce() error = %v", err)
	}
	if sessions.calls != 1 {
		t.Errorf("RestoreSession calls = %d, want 1", sessions.calls)
	}

	view := controller.View()
	if view.Snapshot.Count != 1 {
		t.Errorf("snapshot count = %d, want 1", view.Snapshot.Count)
	}
	if view.Email != "a@b.test" {
		t.Errorf("email = %q", view.Email)
	}
}

func TestRefreshOnce_ReusesLiveCredential(t *testing.T) {
	controller := dashboard.NewController(memory.New(fixtureItems()), nil, nil, testLogger())
	controller.SetCredential("token-1", "a@b.test")
	sessions := &stubSessions{token: "token-2", email: "a@b.test"}
	w := NewRefreshWorker(controller, sessions, "refresh-token", time.Minute, testLogger())

	if err := w.RefreshOnce(context.Background()); err != nil {
		t.Fatalf("RefreshOnce() error = %v", err)
	}
	if sessions.calls != 0 {
		t.Errorf("RestoreSession calls = %d, want 0", sessions.calls)
	}
}

func TestRefreshOnce_NoRefreshToken(t *testing.T) {
	controller := dashboard.NewController(memory.New(nil), nil, nil, testLogger())
	w := NewRefreshWorker(controller, &stubSessions{}, "", time.Minute, testLogger())

	if err := w.RefreshOnce(context.Background()); !errors.Is(err, dashboard.ErrNotAuthenticated) {
		t.Errorf("RefreshOnce() error = %v, want ErrNotAuthenticated", err)
	}
}

func TestRefreshOnce_RestoreFails(t *testing.T) {
	controller := dashboard.NewController(memory.New(nil), nil, nil, testLogger())
	restoreErr := errors.New("provider down")
	w := NewRefreshWorker(controller, &stubSessions{err: restoreErr}, "refresh-token", time.Minute, testLogger())

	if err := w.RefreshOnce(context.Background()); !errors.Is(err, restoreErr) {
		t.Errorf("RefreshOnce() error = %v, want %v", err, restoreErr)
	}
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	controller := dashboard.NewController(memory.New(fixtureItems()), nil, nil, testLogger())
	sessions := &stubSessions{token: "token-1", email: "a@b.test"}
	w := NewRefreshWorker(controller, sessions, "refresh-token", time.Hour, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run() error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not stop after cancel")
	}
}
