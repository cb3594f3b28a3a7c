package market

import (
	"errors"
	"math"
	"sort"
	"strconv"
	"time"

	"osrs-market/internal/services/wiki"
)

// ErrInsufficientData means a required price side was missing or
// non-positive; callers present this as "no data", never as a crash.
var ErrInsufficientData = errors.New("insufficient price data")

// TradeMetrics are derived per-item numbers; they are computed on demand
// and never stored.
type TradeMetrics struct {
	ItemID     int     `json:"id"`
	ItemName   string  `json:"name"`
	High       int     `json:"high"`
	Low        int     `json:"low"`
	Tax        int     `json:"tax"`
	Margin     int     `json:"margin"`
	ROIPercent float64 `json:"roi"`
	// Minutes since the more recent of the two observation timestamps;
	// nil when neither side has ever traded.
	MinutesSinceTrade *int `json:"minutesAgo"`
}

// RankConfig holds the ranking heuristic knobs. The sub-floor penalty is
// inherited behavior with no documented rationale, so it is configurable
// rather than hard-coded.
type RankConfig struct {
	// Margins below MarginFloor are multiplied by SmallMarginFactor
	// before ranking, pushing low-absolute-profit flips down the list
	// even when their ROI is high.
	MarginFloor       int
	SmallMarginFactor float64
}

func DefaultRankConfig() RankConfig {
	return RankConfig{MarginFloor: 100, SmallMarginFactor: 0.1}
}

// maxGoodTrades caps the ranked list.
const maxGoodTrades = 100

// Tax is the Grand Exchange levy: 1% of the sell (high) price, floored.
func Tax(high int) int {
	return int(math.Floor(float64(high) * 0.01))
}

// ComputeTradeMetrics derives tax, margin and ROI from one observation.
// Both sides must be present and positive.
func ComputeTradeMetrics(itemID int, itemName string, p wiki.PriceInfo, now time.Time) (TradeMetrics, error) {
	if p.High == nil || p.Low == nil || *p.High <= 0 || *p.Low <= 0 {
		return TradeMetrics{}, ErrInsufficientData
	}
	high, low := *p.High, *p.Low

	tax := Tax(high)
	margin := high - low - tax
	roi := 0.0
	if low > 0 {
		roi = round2(float64(margin) / float64(low) * 100)
	}

	return TradeMetrics{
		ItemID:            itemID,
		ItemName:          itemName,
		High:              high,
		Low:               low,
		Tax:               tax,
		Margin:            margin,
		ROIPercent:        roi,
		MinutesSinceTrade: minutesSinceTrade(p, now),
	}, nil
}

// RankGoodTrades filters the full market snapshot down to profitable
// flips and ranks them: primary key is the (penalized) margin, secondary
// is ROI, both descending, truncated to the top 100.
func RankGoodTrades(latest map[string]wiki.PriceInfo, nameOf func(int) string, now time.Time, cfg RankConfig) []TradeMetrics {
	trades := make([]TradeMetrics, 0, 256)
	for key, p := range latest {
		itemID, err := strconv.Atoi(key)
		if err != nil {
			continue
		}
		tm, err := ComputeTradeMetrics(itemID, nameOf(itemID), p, now)
		if err != nil {
			continue
		}
		if tm.Margin <= 0 {
			continue
		}
		trades = append(trades, tm)
	}

	rankKey := func(t TradeMetrics) float64 {
		if t.Margin >= cfg.MarginFloor {
			return float64(t.Margin)
		}
		return float64(t.Margin) * cfg.SmallMarginFactor
	}
	sort.Slice(trades, func(i, j int) bool {
		ki, kj := rankKey(trades[i]), rankKey(trades[j])
		if ki != kj {
			return ki > kj
		}
		return trades[i].ROIPercent > trades[j].ROIPercent
	})

	if len(trades) > maxGoodTrades {
		trades = trades[:maxGoodTrades]
	}
	return trades
}

// CurrentPrice collapses an observation to the single number alerts
// compare against: the floored midpoint when both sides are present,
// otherwise whichever side exists. ok is false when neither does.
func CurrentPrice(p wiki.PriceInfo) (int, bool) {
	switch {
	case p.High != nil && p.Low != nil:
		return (*p.High + *p.Low) / 2, true
	case p.High != nil:
		return *p.High, true
	case p.Low != nil:
		return *p.Low, true
	default:
		return 0, false
	}
}

// AverageHigh returns the integer-floor mean of avgHighPrice over the
// points where it is present. ok is false when no point has the field,
// which callers must treat as "no data".
func AverageHigh(series []wiki.SeriesPoint) (int, bool) {
	sum, count := 0, 0
	for _, p := range series {
		if p.AvgHighPrice != nil {
			sum += *p.AvgHighPrice
			count++
		}
	}
	if count == 0 {
		return 0, false
	}
	return sum / count, true
}

// AverageLow is AverageHigh for the avgLowPrice field.
func AverageLow(series []wiki.SeriesPoint) (int, bool) {
	sum, count := 0, 0
	for _, p := range series {
		if p.AvgLowPrice != nil {
			sum += *p.AvgLowPrice
			count++
		}
	}
	if count == 0 {
		return 0, false
	}
	return sum / count, true
}

func minutesSinceTrade(p wiki.PriceInfo, now time.Time) *int {
	var last int64
	if p.HighTime != nil {
		last = *p.HighTime
	}
	if p.LowTime != nil && *p.LowTime > last {
		last = *p.LowTime
	}
	if last <= 0 {
		return nil
	}
	minutes := int(now.Sub(time.Unix(last, 0)).Minutes())
	return &minutes
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
