package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"receiptdash/internal/core"
)

// ErrNoDataset is returned when the database holds no persisted dataset yet.
var ErrNoDataset = errors.New("no dataset stored")

// Dataset is a persisted receipt dataset version.
type Dataset struct {
	Version   string
	FetchedAt time.Time
	Records   []core.ReceiptRecord
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// SaveDataset persists a dataset version and its records in one transaction.
func (r *SQLiteRepository) SaveDataset(ctx context.Context, version string, fetchedAt time.Time, records []core.ReceiptRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO datasets (version, fetched_at, record_count) VALUES (?, ?, ?)`,
		version, fetchedAt.UTC().Format(time.RFC3339Nano), len(records))
	if err != nil {
		return fmt.Errorf("insert dataset: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO receipts (dataset_version, amount, merchant, date, payment_method, currency, file_size_bytes, processed_at, email_from)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare receipt insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		_, err := stmt.ExecContext(ctx,
			version, rec.Amount.String(), rec.Merchant, rec.Date, rec.PaymentMethod,
			rec.Currency, rec.FileSizeBytes, rec.ProcessedAt, rec.EmailFrom)
		if err != nil {
			return fmt.Errorf("insert receipt: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	slog.InfoContext(ctx, "Dataset saved to SQLite",
		"dataset_version", version,
		"record_count", len(records))

	return nil
}

// LoadLatestDataset returns the most recently saved dataset, or ErrNoDataset.
func (r *SQLiteRepository) LoadLatestDataset(ctx context.Context) (*Dataset, error) {
	var (
		version   string
		fetchedAt string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT version, fetched_at FROM datasets ORDER BY created_at DESC, rowid DESC LIMIT 1`).
		Scan(&version, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoDataset
	}
	if err != nil {
		return nil, fmt.Errorf("select latest dataset: %w", err)
	}

	fetched, err := time.Parse(time.RFC3339Nano, fetchedAt)
	if err != nil {
		return nil, fmt.Errorf("parse fetched_at %q: %w", fetchedAt, err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT amount, merchant, date, payment_method, currency, file_size_bytes, processed_at, email_from
		 FROM receipts WHERE dataset_version = ? ORDER BY id`, version)
	if err != nil {
		return nil, fmt.Errorf("select receipts: %w", err)
	}
	defer rows.Close()

	var records []core.ReceiptRecord
	for rows.Next() {
		var (
			rec    core.ReceiptRecord
			amount string
		)
		err := rows.Scan(&amount, &rec.Merchant, &rec.Date, &rec.PaymentMethod,
			&rec.Currency, &rec.FileSizeBytes, &rec.ProcessedAt, &rec.EmailFrom)
		if err != nil {
			return nil, fmt.Errorf("scan receipt: %w", err)
		}
		rec.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("parse amount %q: %w", amount, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate receipts: %w", err)
	}

	return &Dataset{Version: version, FetchedAt: fetched, Records: records}, nil
}

// PruneDatasets deletes all but the most recent keep dataset versions.
func (r *SQLiteRepository) PruneDatasets(ctx context.Context, keep int) (int64, error) {
	if keep < 1 {
		keep = 1
	}

	res, err := r.db.ExecContext(ctx,
		`DELETE FROM datasets WHERE version NOT IN (
		     SELECT version FROM datasets ORDER BY created_at DESC, rowid DESC LIMIT ?
		 )`, keep)
	if err != nil {
		return 0, fmt.Errorf("prune datasets: %w", err)
	}

	// CASCADE is not always enforced by sqlite unless foreign_keys is on,
	// so clean up orphaned receipts explicitly.
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM receipts WHERE dataset_version NOT IN (SELECT version FROM datasets)`); err != nil {
		return 0, fmt.Errorf("prune receipts: %w", err)
	}

	pruned, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}

	if pruned > 0 {
		slog.InfoContext(ctx, "Pruned old dataset versions", "pruned", pruned, "kept", keep)
	}

	return pruned, nil
}
