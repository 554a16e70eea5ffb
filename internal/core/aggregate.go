package core

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Tier is a qualitative severity classification used for freshness and
// storage indicators.
type Tier string

const (
	TierOK      Tier = "ok"
	TierWarning Tier = "warning"
	TierStale   Tier = "stale"
)

// DefaultTopMerchants is the truncation limit for the merchant ranking.
const DefaultTopMerchants = 5

type (
	// Summary holds the dashboard's headline metrics.
	Summary struct {
		Count               int             `json:"count"`
		TotalAmount         decimal.Decimal `json:"total_amount"`
		AverageAmount       decimal.Decimal `json:"average_amount"`
		UniqueMerchantCount int             `json:"unique_merchant_count"`
		StorageUsedBytes    int64           `json:"storage_used_bytes"`
	}

	// PaymentDistribution is the percentage breakdown across payment-method
	// categories. Percentages sum to 100 modulo rounding, except for an empty
	// dataset where all categories report 0.
	PaymentDistribution struct {
		Cash    int `json:"cash"`
		Card    int `json:"card"`
		Digital int `json:"digital"`
		Other   int `json:"other"`
	}

	// Freshness classifies how recent the newest record is.
	Freshness struct {
		Label string `json:"label"`
		Tier  Tier   `json:"tier"`
	}

	// MonthTotal is one point of the monthly spending series.
	MonthTotal struct {
		Label string          `json:"label"`
		Total decimal.Decimal `json:"total"`
	}

	// MerchantTotal is one entry of the top-merchants ranking.
	MerchantTotal struct {
		Name  string          `json:"name"`
		Total decimal.Decimal `json:"total"`
	}
)

// RangeSelector restricts the monthly series to the last N chronological
// groups; the zero value keeps every group.
type RangeSelector struct {
	Months int // 0 means all
}

// RangeAll returns a selector that keeps every month.
func RangeAll() RangeSelector { return RangeSelector{} }

// RangeLast returns a selector keeping the last n months.
func RangeLast(n int) RangeSelector { return RangeSelector{Months: n} }

// ParseRangeSelector interprets a chart-control value: "all" (or empty) keeps
// everything, a positive integer keeps the last N months. Anything else falls
// back to all.
func ParseRangeSelector(s string) RangeSelector {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" || s == "all" {
		return RangeAll()
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return RangeLast(n)
	}
	return RangeAll()
}

// String renders the selector back into its control value.
func (s RangeSelector) String() string {
	if s.Months <= 0 {
		return "all"
	}
	return strconv.Itoa(s.Months)
}

// Summarize computes the headline metrics over a record list. It is pure and
// never fails: an empty list yields a zeroed summary with average 0.
func Summarize(records []ReceiptRecord) Summary {
	s := Summary{Count: len(records), TotalAmount: decimal.Zero, AverageAmount: decimal.Zero}

	merchants := make(map[string]struct{})
	for _, r := range records {
		s.TotalAmount = s.TotalAmount.Add(r.Amount)
		s.StorageUsedBytes += r.FileSizeBytes
		if r.Merchant != "" {
			merchants[r.Merchant] = struct{}{}
		}
	}
	s.UniqueMerchantCount = len(merchants)

	if s.Count > 0 {
		s.AverageAmount = s.TotalAmount.Div(decimal.NewFromInt(int64(s.Count)))
	}
	return s
}

// ClassifyPaymentMethods buckets records into payment-method categories and
// returns percentages. The first matching rule wins, applied to the
// lower-cased method string.
func ClassifyPaymentMethods(records []ReceiptRecord) PaymentDistribution {
	var cash, card, digital, other int
	for _, r := range records {
		method := strings.ToLower(r.PaymentMethod)
		switch {
		case strings.Contains(method, "cash"):
			cash++
		case strings.Contains(method, "card"),
			strings.Contains(method, "credit"),
			strings.Contains(method, "debit"):
			card++
		case strings.Contains(method, "digital"),
			strings.Contains(method, "online"),
			strings.Contains(method, "mobile"):
			digital++
		default:
			other++
		}
	}

	// Guard the division on an empty dataset: every category reports 0.
	total := len(records)
	if total == 0 {
		total = 1
	}
	percent := func(n int) int {
		return int(math.Round(float64(n) / float64(total) * 100))
	}
	return PaymentDistribution{
		Cash:    percent(cash),
		Card:    percent(card),
		Digital: percent(digital),
		Other:   percent(other),
	}
}

// ComputeFreshness classifies the age of the newest record relative to now.
// Precondition: records are ordered most-recent first; this function does not
// sort. A record with an unparseable timestamp classifies as no data.
func ComputeFreshness(records []ReceiptRecord, now time.Time) Freshness {
	if len(records) == 0 {
		return Freshness{Label: "No data", Tier: TierWarning}
	}
	latest, ok := records[0].ProcessedTime()
	if !ok {
		return Freshness{Label: "No data", Tier: TierWarning}
	}

	age := now.Sub(latest)
	hours := int(age.Hours())
	minutes := int(age.Minutes())

	switch {
	case hours == 0 && minutes <= 30:
		return Freshness{Label: "Just now", Tier: TierOK}
	case hours == 0:
		return Freshness{Label: fmt.Sprintf("%d min ago", minutes), Tier: TierOK}
	case hours == 1:
		return Freshness{Label: "1 hour ago", Tier: TierWarning}
	case hours <= 24:
		return Freshness{Label: fmt.Sprintf("%d hours ago", hours), Tier: TierWarning}
	default:
		return Freshness{Label: fmt.Sprintf("%d days ago", hours/24), Tier: TierStale}
	}
}

// MonthlySpending groups amounts by the calendar month of each record's date
// and returns the series in chronological order. Records without a parseable
// date are excluded from this series only. The selector keeps the last N
// groups when set.
func MonthlySpending(records []ReceiptRecord, sel RangeSelector) []MonthTotal {
	totals := make(map[int]decimal.Decimal)
	for _, r := range records {
		date, ok := r.CalendarDate()
		if !ok {
			continue
		}
		key := date.Year()*12 + int(date.Month()) - 1
		if existing, found := totals[key]; found {
			totals[key] = existing.Add(r.Amount)
		} else {
			totals[key] = r.Amount
		}
	}

	keys := make([]int, 0, len(totals))
	for k := range totals {
		keys = append(keys, k)
	}
	sort.Ints(keys)

	if sel.Months > 0 && len(keys) > sel.Months {
		keys = keys[len(keys)-sel.Months:]
	}

	series := make([]MonthTotal, 0, len(keys))
	for _, k := range keys {
		month := time.Date(k/12, time.Month(k%12+1), 1, 0, 0, 0, 0, time.UTC)
		series = append(series, MonthTotal{
			Label: month.Format("Jan 06"),
			Total: totals[k],
		})
	}
	return series
}

// TopMerchants sums amounts per merchant label and returns the top entries by
// total, descending. Ties keep first-encountered order.
func TopMerchants(records []ReceiptRecord, limit int) []MerchantTotal {
	if limit <= 0 {
		limit = DefaultTopMerchants
	}

	index := make(map[string]int)
	ranking := make([]MerchantTotal, 0)
	for _, r := range records {
		name := r.MerchantLabel()
		if i, found := index[name]; found {
			ranking[i].Total = ranking[i].Total.Add(r.Amount)
			continue
		}
		index[name] = len(ranking)
		ranking = append(ranking, MerchantTotal{Name: name, Total: r.Amount})
	}

	sort.SliceStable(ranking, func(i, j int) bool {
		return ranking[i].Total.GreaterThan(ranking[j].Total)
	})

	if len(ranking) > limit {
		ranking = ranking[:limit]
	}
	return ranking
}
