package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"receiptdash/internal/core"
)

func newTestRepository(t *testing.T) *SQLiteRepository {
	t.Helper()

	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "receiptdash.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	return repo
}

func testRecords() []core.ReceiptRecord {
	return []core.ReceiptRecord{
		{
			Amount:        decimal.RequireFromString("12.50"),
			Merchant:      "Acme",
			Date:          "2024-01-15",
			PaymentMethod: "Visa Credit Card",
			Currency:      "USD",
			FileSizeBytes: 1024,
			ProcessedAt:   "2024-01-15T10:00:00Z",
			EmailFrom:     "receipts@acme.test",
		},
		{
			Amount:        decimal.RequireFromString("3.75"),
			Merchant:      "Joe's Diner",
			Date:          "2024-01-20",
			PaymentMethod: "cash",
			Currency:      "EUR",
			FileSizeBytes: 2048,
			ProcessedAt:   "2024-01-20T08:30:00Z",
			EmailFrom:     "noreply@joes.test",
		},
	}
}

func TestSaveAndLoadLatestDataset(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	fetched := time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)
	records := testRecords()

	if err := repo.SaveDataset(ctx, "v-one", fetched, records); err != nil {
		t.Fatalf("SaveDataset() error = %v", err)
	}

	ds, err := repo.LoadLatestDataset(ctx)
	if err != nil {
		t.Fatalf("LoadLatestDataset() error = %v", err)
	}
	if ds.Version != "v-one" {
		t.Errorf("Version = %q, want v-one", ds.Version)
	}
	if !ds.FetchedAt.Equal(fetched) {
		t.Errorf("FetchedAt = %v, want %v", ds.FetchedAt, fetched)
	}
	if len(ds.Records) != len(records) {
		t.Fatalf("len(Records) = %d, want %d", len(ds.Records), len(records))
	}
	for i, want := range records {
		got := ds.Records[i]
		if !got.Amount.Equal(want.Amount) {
			t.Errorf("record %d amount = %s, want %s", i, got.Amount, want.Amount)
		}
		got.Amount = want.Amount
		if got != want {
			t.Errorf("record %d = %+v, want %+v", i, got, want)
		}
	}
}

func TestLoadLatestDataset_PicksNewest(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	base := time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)
	if err := repo.SaveDataset(ctx, "v-old", base, testRecords()); err != nil {
		t.Fatalf("SaveDataset(v-old) error = %v", err)
	}
	if err := repo.SaveDataset(ctx, "v-new", base.Add(time.Hour), testRecords()[:1]); err != nil {
		t.Fatalf("SaveDataset(v-new) error = %v", err)
	}

	ds, err := repo.LoadLatestDataset(ctx)
	if err != nil {
		t.Fatalf("LoadLatestDataset() error = %v", err)
	}
	if ds.Version != "v-new" {
		t.Errorf("Version = %q, want v-new", ds.Version)
	}
	if len(ds.Records) != 1 {
		t.Errorf("len(Records) = %d, want 1", len(ds.Records))
	}
}

func TestLoadLatestDataset_Empty(t *testing.T) {
	repo := newTestRepository(t)

	if _, err := repo.LoadLatestDataset(context.Background()); !errors.Is(err, ErrNoDataset) {
		t.Errorf("LoadLatestDataset() error = %v, want ErrNoDataset", err)
	}
}

func TestPruneDatasets(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	base := time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)
	for i, v := range []string{"v1", "v2", "v3"} {
		if err := repo.SaveDataset(ctx, v, base.Add(time.Duration(i)*time.Hour), testRecords()); err != nil {
			t.Fatalf("SaveDataset(%s) error = %v", v, err)
		}
	}

	pruned, err := repo.PruneDatasets(ctx, 1)
	if err != nil {
		t.Fatalf("PruneDatasets() error = %v", err)
	}
	if pruned != 2 {
		t.Errorf("pruned = %d, want 2", pruned)
	}

	ds, err := repo.LoadLatestDataset(ctx)
	if err != nil {
		t.Fatalf("LoadLatestDataset() error = %v", err)
	}
	if ds.Version != "v3" {
		t.Errorf("Version after prune = %q, want v3", ds.Version)
	}
	if len(ds.Records) != 2 {
		t.Errorf("len(Records) = %d, want 2", len(ds.Records))
	}
}
