package core

import (
	"encoding/json"
	"testing"
	"time"
)

func TestAssemble_Scenario(t *testing.T) {
	now := time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)
	raw := []RawReceipt{
		{
			ReceiptData: RawReceiptData{
				TotalAmount:   json.RawMessage(`"12.50"`),
				MerchantName:  "Acme",
				PaymentMethod: "Visa Credit Card",
				Date:          "2024-01-15",
			},
		},
		{
			ReceiptData: RawReceiptData{
				TotalAmount:   json.RawMessage(`"bad"`),
				MerchantName:  "Acme",
				PaymentMethod: "cash",
				Date:          "2024-01-20",
			},
		},
	}

	snap := Assemble(NormalizeAll(raw), RangeAll(), now)

	if snap.Count != 2 {
		t.Errorf("Count = %d, want 2", snap.Count)
	}
	if !snap.TotalAmount.Equal(mustDecimal(t, "12.50")) {
		t.Errorf("TotalAmount = %s, want 12.50", snap.TotalAmount)
	}
	if !snap.AverageAmount.Equal(mustDecimal(t, "6.25")) {
		t.Errorf("AverageAmount = %s, want 6.25", snap.AverageAmount)
	}
	if snap.UniqueMerchantCount != 1 {
		t.Errorf("UniqueMerchantCount = %d, want 1", snap.UniqueMerchantCount)
	}
	want := PaymentDistribution{Cash: 50, Card: 50}
	if snap.PaymentMethods != want {
		t.Errorf("PaymentMethods = %+v, want %+v", snap.PaymentMethods, want)
	}
	if len(snap.MonthlySeries) != 1 || snap.MonthlySeries[0].Label != "Jan 24" {
		t.Fatalf("MonthlySeries = %+v, want single Jan 24 point", snap.MonthlySeries)
	}
	if !snap.MonthlySeries[0].Total.Equal(mustDecimal(t, "12.50")) {
		t.Errorf("Jan 24 total = %s, want 12.50", snap.MonthlySeries[0].Total)
	}
	if len(snap.TopMerchants) != 1 || snap.TopMerchants[0].Name != "Acme" {
		t.Fatalf("TopMerchants = %+v, want single Acme entry", snap.TopMerchants)
	}
	if !snap.TopMerchants[0].Total.Equal(mustDecimal(t, "12.50")) {
		t.Errorf("Acme total = %s, want 12.50", snap.TopMerchants[0].Total)
	}
	if len(snap.Recent) != 2 {
		t.Errorf("Recent length = %d, want 2", len(snap.Recent))
	}
}

func TestAssemble_EmptyIsZeroed(t *testing.T) {
	now := time.Now()
	snap := Assemble(nil, RangeLast(6), now)

	if snap.Count != 0 {
		t.Errorf("Count = %d, want 0", snap.Count)
	}
	if !snap.TotalAmount.IsZero() || !snap.AverageAmount.IsZero() {
		t.Errorf("amounts not zeroed: total=%s avg=%s", snap.TotalAmount, snap.AverageAmount)
	}
	if snap.UniqueMerchantCount != 0 || snap.StorageUsedBytes != 0 {
		t.Errorf("counters not zeroed: %+v", snap)
	}
	if (snap.PaymentMethods != PaymentDistribution{}) {
		t.Errorf("PaymentMethods = %+v, want all zero", snap.PaymentMethods)
	}
	if snap.Freshness.Label != "No data" || snap.Freshness.Tier != TierWarning {
		t.Errorf("Freshness = %+v, want no-data/warning", snap.Freshness)
	}
	if len(snap.MonthlySeries) != 0 || len(snap.TopMerchants) != 0 || len(snap.Recent) != 0 {
		t.Errorf("series not empty: %+v", snap)
	}
	if snap.StorageTier != TierOK {
		t.Errorf("StorageTier = %q, want ok", snap.StorageTier)
	}

	// The zeroed snapshot must serialize cleanly for the renderer: empty
	// arrays, not nulls.
	b, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("marshal zeroed snapshot: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("unmarshal snapshot: %v", err)
	}
	if _, ok := decoded["monthly_series"].([]any); !ok {
		t.Errorf("monthly_series is %T, want array", decoded["monthly_series"])
	}
}

func TestStorageTier(t *testing.T) {
	if got := storageTier(10 << 20); got != TierOK {
		t.Errorf("10MB = %q, want ok", got)
	}
	if got := storageTier(60 << 20); got != TierWarning {
		t.Errorf("60MB = %q, want warning", got)
	}
	if got := storageTier(200 << 20); got != TierStale {
		t.Errorf("200MB = %q, want stale", got)
	}
}
