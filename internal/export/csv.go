// Package export serializes the current receipt list into a downloadable CSV.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"receiptdash/internal/core"
)

// Header is the fixed column set of an export, in order.
var Header = []string{"Date", "Merchant", "Amount", "Currency", "Payment Method", "Email From"}

// WriteCSV writes a header row plus one row per record. Field quoting and
// escaping follow RFC 4180 via encoding/csv.
func WriteCSV(w io.Writer, records []core.ReceiptRecord) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for i, r := range records {
		row := []string{
			r.Date,
			r.Merchant,
			r.Amount.String(),
			r.Currency,
			r.PaymentMethod,
			r.EmailFrom,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row %d: %w", i, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// Filename returns the suggested download name for an export generated now.
func Filename(now time.Time) string {
	return "receipts_export_" + now.Format("2006-01-02") + ".csv"
}
