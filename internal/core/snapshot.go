package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// Storage thresholds for the usage indicator.
const (
	storageWarnBytes  = 50 << 20
	storageStaleBytes = 100 << 20
)

// AnalyticsSnapshot is the immutable, fully-computed view-model for one
// dataset version. A fresh snapshot is assembled on every successful fetch
// and on every chart-control change; snapshots are never patched in place.
type AnalyticsSnapshot struct {
	Count               int                 `json:"count"`
	TotalAmount         decimal.Decimal     `json:"total_amount"`
	AverageAmount       decimal.Decimal     `json:"average_amount"`
	UniqueMerchantCount int                 `json:"unique_merchant_count"`
	StorageUsedBytes    int64               `json:"storage_used_bytes"`
	StorageTier         Tier                `json:"storage_tier"`
	PaymentMethods      PaymentDistribution `json:"payment_methods"`
	Freshness           Freshness           `json:"freshness"`
	MonthlySeries       []MonthTotal        `json:"monthly_series"`
	TopMerchants        []MerchantTotal     `json:"top_merchants"`
	Recent              []ReceiptRecord     `json:"recent"`
	Range               string              `json:"range"`
	GeneratedAt         time.Time           `json:"generated_at"`
}

// Assemble runs every aggregation once over the same record list and packages
// the results. An empty list yields a fully zeroed snapshot that the renderer
// must accept without error.
func Assemble(records []ReceiptRecord, sel RangeSelector, now time.Time) *AnalyticsSnapshot {
	summary := Summarize(records)

	snap := &AnalyticsSnapshot{
		Count:               summary.Count,
		TotalAmount:         summary.TotalAmount,
		AverageAmount:       summary.AverageAmount,
		UniqueMerchantCount: summary.UniqueMerchantCount,
		StorageUsedBytes:    summary.StorageUsedBytes,
		StorageTier:         storageTier(summary.StorageUsedBytes),
		PaymentMethods:      ClassifyPaymentMethods(records),
		Freshness:           ComputeFreshness(records, now),
		MonthlySeries:       MonthlySpending(records, sel),
		TopMerchants:        TopMerchants(records, DefaultTopMerchants),
		Recent:              recentRecords(records, DefaultTopMerchants),
		Range:               sel.String(),
		GeneratedAt:         now,
	}
	return snap
}

func storageTier(bytes int64) Tier {
	switch {
	case bytes > storageStaleBytes:
		return TierStale
	case bytes > storageWarnBytes:
		return TierWarning
	default:
		return TierOK
	}
}

// recentRecords copies the first n records (the data source returns newest
// first) so the snapshot stays immutable.
func recentRecords(records []ReceiptRecord, n int) []ReceiptRecord {
	if len(records) < n {
		n = len(records)
	}
	recent := make([]ReceiptRecord, n)
	copy(recent, records[:n])
	return recent
}
