package indicators

import "botfarm-core/pkg/feed"

// Zone is a liquidity zone seeded by a swing high or low and extending to
// the most recent candle.
type Zone struct {
	Type  string // "high" or "low"
	Price float64
	Index int // candle index of the swing point
}

// LiquidityZones finds swing highs/lows with a symmetric lookback window.
// Ties break leftmost-wins: a swing high must be strictly greater than every
// high in the left window and greater-or-equal to every high in the right
// window, so runs of equal extremes mark only their first candle.
func LiquidityZones(candles []feed.Candle, lookback int) []Zone {
	if lookback <= 0 || len(candles) < 2*lookback+1 {
		return nil
	}

	var zones []Zone
	for i := lookback; i < len(candles)-lookback; i++ {
		if isSwingHigh(candles, i, lookback) {
			zones = append(zones, Zone{Type: "high", Price: candles[i].High, Index: i})
		}
		if isSwingLow(candles, i, lookback) {
			zones = append(zones, Zone{Type: "low", Price: candles[i].Low, Index: i})
		}
	}
	return zones
}

func isSwingHigh(candles []feed.Candle, i, lookback int) bool {
	h := candles[i].High
	for j := i - lookback; j < i; j++ {
		if candles[j].High >= h {
			return false
		}
	}
	for j := i + 1; j <= i+lookback; j++ {
		if candles[j].High > h {
			return false
		}
	}
	return true
}

func isSwingLow(candles []feed.Candle, i, lookback int) bool {
	l := candles[i].Low
	for j := i - lookback; j < i; j++ {
		if candles[j].Low <= l {
			return false
		}
	}
	for j := i + 1; j <= i+lookback; j++ {
		if candles[j].Low < l {
			return false
		}
	}
	return true
}
