package export

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"receiptdash/internal/core"
)

func rec(date, merchant, amount, currency, method, from string) core.ReceiptRecord {
	d, _ := decimal.NewFromString(amount)
	return core.ReceiptRecord{
		Date:          date,
		Merchant:      merchant,
		Amount:        d,
		Currency:      currency,
		PaymentMethod: method,
		EmailFrom:     from,
	}
}

func TestWriteCSV_RoundTrip(t *testing.T) {
	records := []core.ReceiptRecord{
		rec("2024-01-15", "Acme", "12.50", "USD", "Visa Credit Card", "a@b.test"),
		rec("2024-01-20", `Joe's "Diner", Inc`, "3.75", "EUR", "cash", "c@d.test"),
		rec("Unknown date", "", "0", "USD", "other", ""),
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, records); err != nil {
		t.Fatalf("WriteCSV() error = %v", err)
	}

	// N records produce N+1 lines.
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != len(records)+1 {
		t.Errorf("line count = %d, want %d", len(lines), len(records)+1)
	}

	// Re-splitting with quoting respected recovers the same field values.
	rows, err := csv.NewReader(bytes.NewReader(buf.Bytes())).ReadAll()
	if err != nil {
		t.Fatalf("re-parse exported csv: %v", err)
	}
	if len(rows) != len(records)+1 {
		t.Fatalf("row count = %d, want %d", len(rows), len(records)+1)
	}
	for i, want := range Header {
		if rows[0][i] != want {
			t.Errorf("header[%d] = %q, want %q", i, rows[0][i], want)
		}
	}
	for i, r := range records {
		row := rows[i+1]
		if row[0] != r.Date || row[1] != r.Merchant || row[2] != r.Amount.String() ||
			row[3] != r.Currency || row[4] != r.PaymentMethod || row[5] != r.EmailFrom {
			t.Errorf("row %d = %v, does not match record %+v", i, row, r)
		}
	}
}

func TestWriteCSV_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, nil); err != nil {
		t.Fatalf("WriteCSV() error = %v", err)
	}
	if got := strings.TrimRight(buf.String(), "\n"); strings.Count(got, "\n") != 0 {
		t.Errorf("empty export should contain only the header, got %q", got)
	}
}

func TestFilename(t *testing.T) {
	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	if got := Filename(now); got != "receipts_export_2024-06-01.csv" {
		t.Errorf("Filename() = %q", got)
	}
}
