package alerts

import (
	"context"
	"errors"
	"testing"
	"time"

	"osrs-market/internal/logging"
	"osrs-market/internal/models"
	"osrs-market/internal/services/wiki"

	"go.uber.org/zap"
)

func init() {
	logging.Log = zap.NewNop()
}

// fakeFetcher serves canned prices per item and fails for items in the
// broken set.
type fakeFetcher struct {
	prices map[int]wiki.PriceInfo
	broken map[int]bool
}

func (f *fakeFetcher) Latest(_ context.Context, itemID int) (wiki.PriceInfo, error) {
	if f.broken[itemID] {
		return wiki.PriceInfo{}, errors.New("upstream unavailable")
	}
	return f.prices[itemID], nil
}

func TestRunBatchSkipsFailedFetch(t *testing.T) {
	now := time.Now()
	fetcher := &fakeFetcher{
		prices: map[int]wiki.PriceInfo{
			1: {High: intPtr(101), Low: intPtr(99)},
			2: {High: intPtr(220), Low: intPtr(200)},
			4: {High: intPtr(50), Low: intPtr(48)},
			5: {High: intPtr(1000), Low: intPtr(900)},
		},
		broken: map[int]bool{3: true},
	}

	active := []models.Alert{
		{ID: 1, ItemID: 1, AlertType: models.AlertTypeSpike, ThresholdPercent: 10, BaselinePrice: intPtr(100)},
		{ID: 2, ItemID: 2, AlertType: models.AlertTypeSpike, ThresholdPercent: 5, BaselinePrice: intPtr(200)},
		{ID: 3, ItemID: 3, AlertType: models.AlertTypeDip, ThresholdPercent: 5, BaselinePrice: intPtr(100)},
		{ID: 4, ItemID: 4, AlertType: models.AlertTypeDip, ThresholdPercent: 10, BaselinePrice: intPtr(60)},
		{ID: 5, ItemID: 5, AlertType: models.AlertTypeFluctuation, ThresholdPercent: 50},
	}

	result, changed, notifications := runBatch(context.Background(), active, fetcher, now)

	if result.Checked != 5 {
		t.Errorf("Checked = %d, want 5 (failed fetch still counts)", result.Checked)
	}
	if len(changed) != 4 {
		t.Fatalf("changed = %d alerts, want 4", len(changed))
	}
	for _, alert := range changed {
		if alert.ID == 3 {
			t.Error("alert with failed fetch appears in the changed set")
		}
	}

	// Alert 2: midpoint 210 is +5% of 200, triggers. Alert 4: midpoint 49
	// is -18.3% of 60, triggers. Alert 1 stays inside its threshold and
	// alert 5 only arms its baseline.
	if result.Triggered != 2 {
		t.Errorf("Triggered = %d, want 2", result.Triggered)
	}
	if len(notifications) != 2 {
		t.Fatalf("notifications = %d, want 2", len(notifications))
	}

	// The skipped alert keeps its prior state entirely.
	if active[2].LastCheckedAt != nil {
		t.Error("skipped alert had LastCheckedAt set")
	}
	if *active[2].BaselinePrice != 100 {
		t.Errorf("skipped alert baseline = %d, want 100", *active[2].BaselinePrice)
	}

	// The fluctuation alert with no baseline armed at the midpoint.
	if active[4].BaselinePrice == nil || *active[4].BaselinePrice != 950 {
		t.Errorf("armed baseline = %v, want 950", active[4].BaselinePrice)
	}
}

func TestRunBatchSkipsEmptyPrice(t *testing.T) {
	fetcher := &fakeFetcher{
		prices: map[int]wiki.PriceInfo{1: {}},
	}
	active := []models.Alert{
		{ID: 1, ItemID: 1, AlertType: models.AlertTypeSpike, ThresholdPercent: 10, BaselinePrice: intPtr(100)},
	}

	result, changed, notifications := runBatch(context.Background(), active, fetcher, time.Now())

	if result.Checked != 1 || result.Triggered != 0 {
		t.Errorf("result = %+v, want checked 1, triggered 0", result)
	}
	if len(changed) != 0 {
		t.Errorf("changed = %d alerts, want 0", len(changed))
	}
	if len(notifications) != 0 {
		t.Errorf("notifications = %d, want 0", len(notifications))
	}
}

func TestRunBatchEmpty(t *testing.T) {
	result, changed, notifications := runBatch(context.Background(), nil, &fakeFetcher{}, time.Now())
	if result.Checked != 0 || result.Triggered != 0 {
		t.Errorf("result = %+v, want zero", result)
	}
	if len(changed) != 0 || len(notifications) != 0 {
		t.Error("empty batch produced mutations")
	}
}
