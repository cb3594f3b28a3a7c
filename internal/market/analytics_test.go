package market

import (
	"strconv"
	"testing"
	"time"

	"osrs-market/internal/services/wiki"
)

func intPtr(v int) *int       { return &v }
func int64Ptr(v int64) *int64 { return &v }

func TestComputeTradeMetrics(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	tests := []struct {
		name       string
		price      wiki.PriceInfo
		wantErr    bool
		wantTax    int
		wantMargin int
		wantROI    float64
	}{
		{
			name:       "hundred over ninety",
			price:      wiki.PriceInfo{High: intPtr(100), Low: intPtr(90)},
			wantTax:    1,
			wantMargin: 9,
			wantROI:    10.0,
		},
		{
			name:       "tax floors down",
			price:      wiki.PriceInfo{High: intPtr(199), Low: intPtr(100)},
			wantTax:    1,
			wantMargin: 98,
			wantROI:    98.0,
		},
		{
			name:       "roi rounds to two decimals",
			price:      wiki.PriceInfo{High: intPtr(110), Low: intPtr(300)},
			wantTax:    1,
			wantMargin: -191,
			wantROI:    -63.67,
		},
		{
			name:    "missing high",
			price:   wiki.PriceInfo{Low: intPtr(90)},
			wantErr: true,
		},
		{
			name:    "missing low",
			price:   wiki.PriceInfo{High: intPtr(100)},
			wantErr: true,
		},
		{
			name:    "zero price",
			price:   wiki.PriceInfo{High: intPtr(100), Low: intPtr(0)},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ComputeTradeMetrics(1, "Test item", tt.price, now)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ComputeTradeMetrics() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if got.Tax != tt.wantTax {
				t.Errorf("Tax = %d, want %d", got.Tax, tt.wantTax)
			}
			if got.Margin != tt.wantMargin {
				t.Errorf("Margin = %d, want %d", got.Margin, tt.wantMargin)
			}
			if got.ROIPercent != tt.wantROI {
				t.Errorf("ROIPercent = %v, want %v", got.ROIPercent, tt.wantROI)
			}
		})
	}
}

func TestMinutesSinceTrade(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	tenMinAgo := now.Add(-10 * time.Minute).Unix()
	hourAgo := now.Add(-time.Hour).Unix()

	price := wiki.PriceInfo{
		High:     intPtr(100),
		Low:      intPtr(90),
		HighTime: int64Ptr(hourAgo),
		LowTime:  int64Ptr(tenMinAgo),
	}
	got, err := ComputeTradeMetrics(1, "Test item", price, now)
	if err != nil {
		t.Fatalf("ComputeTradeMetrics() error = %v", err)
	}
	if got.MinutesSinceTrade == nil || *got.MinutesSinceTrade != 10 {
		t.Errorf("MinutesSinceTrade = %v, want 10 (more recent of the two timestamps)", got.MinutesSinceTrade)
	}

	// Neither timestamp present: reported as absent.
	price.HighTime, price.LowTime = nil, nil
	got, err = ComputeTradeMetrics(1, "Test item", price, now)
	if err != nil {
		t.Fatalf("ComputeTradeMetrics() error = %v", err)
	}
	if got.MinutesSinceTrade != nil {
		t.Errorf("MinutesSinceTrade = %v, want nil", *got.MinutesSinceTrade)
	}
}

func TestRankGoodTrades(t *testing.T) {
	latest := map[string]wiki.PriceInfo{
		// margin 9, roi 10.0 — below the floor, penalized to 0.9
		"1": {High: intPtr(100), Low: intPtr(90)},
		// margin 98, roi 98.0 — below the floor, penalized to 9.8
		"2": {High: intPtr(199), Low: intPtr(100)},
		// margin 445, roi 8.9 — above the floor
		"3": {High: intPtr(5500), Low: intPtr(5000)},
		// margin 150, roi 30.0 — above the floor
		"4": {High: intPtr(656), Low: intPtr(500)},
		// margin 0, filtered out
		"5": {High: intPtr(100), Low: intPtr(99)},
		// one-sided market, filtered out
		"6": {High: intPtr(100)},
		// non-numeric key, ignored
		"abc": {High: intPtr(100), Low: intPtr(50)},
	}
	nameOf := func(id int) string { return "Item" }

	got := RankGoodTrades(latest, nameOf, time.Now(), DefaultRankConfig())

	wantOrder := []int{3, 4, 2, 1}
	if len(got) != len(wantOrder) {
		t.Fatalf("got %d trades, want %d", len(got), len(wantOrder))
	}
	for i, wantID := range wantOrder {
		if got[i].ItemID != wantID {
			t.Errorf("position %d: got item %d, want %d", i, got[i].ItemID, wantID)
		}
	}
	for _, tm := range got {
		if tm.Margin <= 0 {
			t.Errorf("item %d has non-positive margin %d", tm.ItemID, tm.Margin)
		}
	}
}

func TestRankGoodTradesEqualMarginROIFirst(t *testing.T) {
	// Both items carry margin 190, above the floor; the one bought
	// cheaper has the higher ROI and must rank first.
	latest := map[string]wiki.PriceInfo{
		// margin 190, roi 21.13
		"1": {High: intPtr(1100), Low: intPtr(899)},
		// margin 190, roi 23.75
		"2": {High: intPtr(1000), Low: intPtr(800)},
	}

	got := RankGoodTrades(latest, func(int) string { return "Item" }, time.Now(), DefaultRankConfig())
	if len(got) != 2 {
		t.Fatalf("got %d trades, want 2", len(got))
	}
	if got[0].Margin != got[1].Margin {
		t.Fatalf("fixture margins differ: %d vs %d", got[0].Margin, got[1].Margin)
	}
	if got[0].ItemID != 2 || got[1].ItemID != 1 {
		t.Errorf("order = [%d, %d], want higher ROI first: [2, 1]", got[0].ItemID, got[1].ItemID)
	}
	if got[0].ROIPercent <= got[1].ROIPercent {
		t.Errorf("ROI not descending: %v then %v", got[0].ROIPercent, got[1].ROIPercent)
	}
}

func TestRankGoodTradesTruncates(t *testing.T) {
	latest := make(map[string]wiki.PriceInfo, 250)
	for i := 1; i <= 250; i++ {
		high := 1000 + i*10
		latest[strconv.Itoa(i)] = wiki.PriceInfo{High: intPtr(high), Low: intPtr(500)}
	}

	got := RankGoodTrades(latest, func(int) string { return "Item" }, time.Now(), DefaultRankConfig())
	if len(got) != 100 {
		t.Fatalf("got %d trades, want 100", len(got))
	}
	// Descending on margin throughout.
	for i := 1; i < len(got); i++ {
		if got[i].Margin > got[i-1].Margin {
			t.Fatalf("ranking not descending at position %d: %d after %d", i, got[i].Margin, got[i-1].Margin)
		}
	}
}

func TestAverages(t *testing.T) {
	series := []wiki.SeriesPoint{
		{AvgHighPrice: intPtr(100), AvgLowPrice: intPtr(90)},
		{AvgHighPrice: nil, AvgLowPrice: intPtr(80)},
		{AvgHighPrice: intPtr(105), AvgLowPrice: nil},
	}

	high, ok := AverageHigh(series)
	if !ok {
		t.Fatal("AverageHigh reported no data")
	}
	if high != 102 { // floor((100+105)/2)
		t.Errorf("AverageHigh = %d, want 102", high)
	}
	if high < 100 || high > 105 {
		t.Errorf("AverageHigh = %d, outside [min, max] of present values", high)
	}

	low, ok := AverageLow(series)
	if !ok {
		t.Fatal("AverageLow reported no data")
	}
	if low != 85 {
		t.Errorf("AverageLow = %d, want 85", low)
	}

	// No present fields: ok must be false instead of a division by zero.
	empty := []wiki.SeriesPoint{{}, {}}
	if _, ok := AverageHigh(empty); ok {
		t.Error("AverageHigh on empty fields reported data")
	}
	if _, ok := AverageLow(nil); ok {
		t.Error("AverageLow on nil series reported data")
	}
}

func TestCurrentPrice(t *testing.T) {
	tests := []struct {
		name   string
		price  wiki.PriceInfo
		want   int
		wantOK bool
	}{
		{"both sides", wiki.PriceInfo{High: intPtr(101), Low: intPtr(90)}, 95, true},
		{"high only", wiki.PriceInfo{High: intPtr(101)}, 101, true},
		{"low only", wiki.PriceInfo{Low: intPtr(90)}, 90, true},
		{"no data", wiki.PriceInfo{}, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := CurrentPrice(tt.price)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("CurrentPrice() = (%d, %v), want (%d, %v)", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}
