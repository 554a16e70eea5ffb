package core

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Defaults applied by Normalize when a field is missing or unparseable.
const (
	DefaultCurrency      = "USD"
	DefaultPaymentMethod = "other"
	UnknownMerchant      = "Unknown Merchant"
	UnknownDate          = "Unknown date"
)

type (
	// RawReceipt is one item as returned by the data source. Fields are
	// loosely typed on the wire; the record is read-only for the pipeline.
	RawReceipt struct {
		ReceiptData         RawReceiptData `json:"receipt_data"`
		FileSize            int64          `json:"file_size"`
		ProcessedAt         string         `json:"processed_at"`
		ProcessingTimestamp string         `json:"processing_timestamp"`
		EmailFrom           string         `json:"email_from"`
	}

	// RawReceiptData is the nested payload extracted from the receipt image.
	// TotalAmount is kept raw because upstream emits it as either a JSON
	// number or a string.
	RawReceiptData struct {
		TotalAmount   json.RawMessage `json:"total_amount"`
		MerchantName  string          `json:"merchant_name"`
		Date          string          `json:"date"`
		Time          string          `json:"time"`
		PaymentMethod string          `json:"payment_method"`
		Currency      string          `json:"currency"`
	}

	// ReceiptRecord is the normalized unit of purchase data consumed by the
	// aggregation pipeline. All fields carry defaulted values; aggregation
	// never mutates a record.
	ReceiptRecord struct {
		Amount        decimal.Decimal `json:"amount"`
		Merchant      string          `json:"merchant"`
		Date          string          `json:"date"`
		PaymentMethod string          `json:"payment_method"`
		Currency      string          `json:"currency"`
		FileSizeBytes int64           `json:"file_size_bytes"`
		ProcessedAt   string          `json:"processed_at"`
		EmailFrom     string          `json:"email_from"`
	}
)

// Normalize converts one raw item into a defaulted ReceiptRecord. It never
// fails: a missing or non-numeric amount resolves to zero, missing strings
// resolve to documented defaults.
func Normalize(raw RawReceipt) ReceiptRecord {
	rec := ReceiptRecord{
		Amount:        parseAmount(raw.ReceiptData.TotalAmount),
		Merchant:      strings.TrimSpace(raw.ReceiptData.MerchantName),
		PaymentMethod: strings.TrimSpace(raw.ReceiptData.PaymentMethod),
		Currency:      strings.TrimSpace(raw.ReceiptData.Currency),
		FileSizeBytes: raw.FileSize,
		ProcessedAt:   strings.TrimSpace(raw.ProcessedAt),
		EmailFrom:     strings.TrimSpace(raw.EmailFrom),
	}

	if rec.PaymentMethod == "" {
		rec.PaymentMethod = DefaultPaymentMethod
	}
	if rec.Currency == "" {
		rec.Currency = DefaultCurrency
	}
	if rec.FileSizeBytes < 0 {
		rec.FileSizeBytes = 0
	}
	if rec.ProcessedAt == "" {
		rec.ProcessedAt = strings.TrimSpace(raw.ProcessingTimestamp)
	}

	rec.Date = strings.TrimSpace(raw.ReceiptData.Date)
	if rec.Date == "" {
		if rec.ProcessedAt != "" {
			rec.Date = strings.SplitN(rec.ProcessedAt, "T", 2)[0]
		} else {
			rec.Date = UnknownDate
		}
	}

	return rec
}

// NormalizeAll normalizes a full payload, preserving order.
func NormalizeAll(raw []RawReceipt) []ReceiptRecord {
	records := make([]ReceiptRecord, len(raw))
	for i, r := range raw {
		records[i] = Normalize(r)
	}
	return records
}

// MerchantLabel returns the merchant name for display and grouping,
// substituting the documented default when the name is missing.
func (r ReceiptRecord) MerchantLabel() string {
	if r.Merchant == "" {
		return UnknownMerchant
	}
	return r.Merchant
}

// parseAmount extracts a decimal amount from a raw JSON value that may be a
// number, a quoted string, null, or absent. Anything unparseable degrades to
// zero rather than an error.
func parseAmount(raw json.RawMessage) decimal.Decimal {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return decimal.Zero
	}
	if strings.HasPrefix(s, `"`) {
		var unquoted string
		if err := json.Unmarshal(raw, &unquoted); err != nil {
			return decimal.Zero
		}
		s = strings.TrimSpace(unquoted)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// dateLayouts accepted for the record's calendar date, most common first.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006/01/02",
}

// CalendarDate parses the record's date field. The second return value is
// false for records that lack a parseable date (they are excluded from the
// monthly series only).
func (r ReceiptRecord) CalendarDate() (time.Time, bool) {
	s := strings.TrimSpace(r.Date)
	if s == "" || s == UnknownDate {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// timestampLayouts accepted for processed-at timestamps.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ProcessedTime parses the record's processing timestamp. Timestamps without
// an explicit zone are interpreted as UTC.
func (r ReceiptRecord) ProcessedTime() (time.Time, bool) {
	s := strings.TrimSpace(r.ProcessedAt)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
