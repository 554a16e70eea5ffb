package core

import (
	"encoding/json"
	"testing"
)

func TestNormalize_Defaults(t *testing.T) {
	tests := []struct {
		name string
		raw  RawReceipt
		want ReceiptRecord
	}{
		{
			name: "fully populated",
			raw: RawReceipt{
				ReceiptData: RawReceiptData{
					TotalAmount:   json.RawMessage(`"12.50"`),
					MerchantName:  "  Acme  ",
					Date:          "2024-01-15",
					PaymentMethod: "Visa Credit Card",
					Currency:      "EUR",
				},
				FileSize:    2048,
				ProcessedAt: "2024-01-16T08:00:00Z",
				EmailFrom:   "receipts@acme.test",
			},
			want: ReceiptRecord{
				Amount:        mustDecimal(t, "12.50"),
				Merchant:      "Acme",
				Date:          "2024-01-15",
				PaymentMethod: "Visa Credit Card",
				Currency:      "EUR",
				FileSizeBytes: 2048,
				ProcessedAt:   "2024-01-16T08:00:00Z",
				EmailFrom:     "receipts@acme.test",
			},
		},
		{
			name: "unparseable amount degrades to zero",
			raw: RawReceipt{
				ReceiptData: RawReceiptData{TotalAmount: json.RawMessage(`"bad"`)},
			},
			want: ReceiptRecord{
				Amount:        mustDecimal(t, "0"),
				PaymentMethod: DefaultPaymentMethod,
				Currency:      DefaultCurrency,
				Date:          UnknownDate,
			},
		},
		{
			name: "numeric wire amount",
			raw: RawReceipt{
				ReceiptData: RawReceiptData{TotalAmount: json.RawMessage(`7.25`)},
			},
			want: ReceiptRecord{
				Amount:        mustDecimal(t, "7.25"),
				PaymentMethod: DefaultPaymentMethod,
				Currency:      DefaultCurrency,
				Date:          UnknownDate,
			},
		},
		{
			name: "date derived from processed_at",
			raw: RawReceipt{
				ProcessedAt: "2024-03-02T10:30:00Z",
			},
			want: ReceiptRecord{
				Amount:        mustDecimal(t, "0"),
				PaymentMethod: DefaultPaymentMethod,
				Currency:      DefaultCurrency,
				Date:          "2024-03-02",
				ProcessedAt:   "2024-03-02T10:30:00Z",
			},
		},
		{
			name: "processing_timestamp fallback and negative file size",
			raw: RawReceipt{
				ProcessingTimestamp: "2024-03-02T10:30:00Z",
				FileSize:            -5,
			},
			want: ReceiptRecord{
				Amount:        mustDecimal(t, "0"),
				PaymentMethod: DefaultPaymentMethod,
				Currency:      DefaultCurrency,
				Date:          "2024-03-02",
				ProcessedAt:   "2024-03-02T10:30:00Z",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.raw)
			if !got.Amount.Equal(tt.want.Amount) {
				t.Errorf("Amount = %s, want %s", got.Amount, tt.want.Amount)
			}
			if got.Merchant != tt.want.Merchant {
				t.Errorf("Merchant = %q, want %q", got.Merchant, tt.want.Merchant)
			}
			if got.Date != tt.want.Date {
				t.Errorf("Date = %q, want %q", got.Date, tt.want.Date)
			}
			if got.PaymentMethod != tt.want.PaymentMethod {
				t.Errorf("PaymentMethod = %q, want %q", got.PaymentMethod, tt.want.PaymentMethod)
			}
			if got.Currency != tt.want.Currency {
				t.Errorf("Currency = %q, want %q", got.Currency, tt.want.Currency)
			}
			if got.FileSizeBytes != tt.want.FileSizeBytes {
				t.Errorf("FileSizeBytes = %d, want %d", got.FileSizeBytes, tt.want.FileSizeBytes)
			}
			if got.ProcessedAt != tt.want.ProcessedAt {
				t.Errorf("ProcessedAt = %q, want %q", got.ProcessedAt, tt.want.ProcessedAt)
			}
		})
	}
}

func TestMerchantLabel(t *testing.T) {
	if got := (ReceiptRecord{Merchant: "Acme"}).MerchantLabel(); got != "Acme" {
		t.Errorf("MerchantLabel() = %q, want Acme", got)
	}
	if got := (ReceiptRecord{}).MerchantLabel(); got != UnknownMerchant {
		t.Errorf("MerchantLabel() = %q, want %q", got, UnknownMerchant)
	}
}

func TestCalendarDate(t *testing.T) {
	rec := ReceiptRecord{Date: "2024-01-15"}
	d, ok := rec.CalendarDate()
	if !ok {
		t.Fatal("expected parseable date")
	}
	if d.Year() != 2024 || int(d.Month()) != 1 || d.Day() != 15 {
		t.Errorf("CalendarDate() = %v", d)
	}

	if _, ok := (ReceiptRecord{Date: UnknownDate}).CalendarDate(); ok {
		t.Error("unknown date should not parse")
	}
	if _, ok := (ReceiptRecord{Date: "not-a-date"}).CalendarDate(); ok {
		t.Error("garbage date should not parse")
	}
}
