package indicators

import (
	"math"

	"botfarm-core/pkg/feed"
)

// Pattern is one candlestick pattern match.
type Pattern struct {
	Name       string
	Signal     string // BUY, SELL or NEUTRAL
	Confidence float64
}

// DetectPattern runs the fixed-rule pattern checks against the tail of the
// candle sequence and returns the highest-confidence match, or nil.
func DetectPattern(candles []feed.Candle) *Pattern {
	if len(candles) == 0 {
		return nil
	}

	var matches []Pattern
	if p := hammer(candles); p != nil {
		matches = append(matches, *p)
	}
	if p := shootingStar(candles); p != nil {
		matches = append(matches, *p)
	}
	if p := engulfing(candles); p != nil {
		matches = append(matches, *p)
	}
	if p := star(candles); p != nil {
		matches = append(matches, *p)
	}
	if p := doji(candles); p != nil {
		matches = append(matches, *p)
	}
	if len(matches) == 0 {
		return nil
	}

	best := matches[0]
	for _, m := range matches[1:] {
		if m.Confidence > best.Confidence {
			best = m
		}
	}
	return &best
}

func body(c feed.Candle) float64 { return math.Abs(c.Close - c.Open) }
func span(c feed.Candle) float64 { return c.High - c.Low }
func green(c feed.Candle) bool   { return c.Close > c.Open }
func upperWick(c feed.Candle) float64 {
	return c.High - math.Max(c.Open, c.Close)
}
func lowerWick(c feed.Candle) float64 {
	return math.Min(c.Open, c.Close) - c.Low
}

// doji: negligible body relative to the full range, an indecision mark. Any
// directional pattern on the same candle outranks it.
func doji(candles []feed.Candle) *Pattern {
	c := candles[len(candles)-1]
	if span(c) == 0 {
		return nil
	}
	if body(c) <= span(c)*0.1 {
		return &Pattern{Name: "doji", Signal: "NEUTRAL", Confidence: 0.3}
	}
	return nil
}

// hammer: small body near the top with a long lower shadow.
func hammer(candles []feed.Candle) *Pattern {
	c := candles[len(candles)-1]
	if span(c) == 0 || body(c) == 0 {
		return nil
	}
	if lowerWick(c) >= 2*body(c) && upperWick(c) <= body(c) {
		return &Pattern{Name: "hammer", Signal: "BUY", Confidence: 0.6}
	}
	return nil
}

// shootingStar: small body near the bottom with a long upper shadow.
func shootingStar(candles []feed.Candle) *Pattern {
	c := candles[len(candles)-1]
	if span(c) == 0 || body(c) == 0 {
		return nil
	}
	if upperWick(c) >= 2*body(c) && lowerWick(c) <= body(c) {
		return &Pattern{Name: "shooting_star", Signal: "SELL", Confidence: 0.6}
	}
	return nil
}

// engulfing: current body fully swallows the previous, opposite-colored body.
func engulfing(candles []feed.Candle) *Pattern {
	if len(candles) < 2 {
		return nil
	}
	prev, cur := candles[len(candles)-2], candles[len(candles)-1]
	if body(prev) == 0 || body(cur) <= body(prev) {
		return nil
	}
	if green(cur) && !green(prev) && cur.Open <= prev.Close && cur.Close >= prev.Open {
		return &Pattern{Name: "bullish_engulfing", Signal: "BUY", Confidence: 0.7}
	}
	if !green(cur) && green(prev) && cur.Open >= prev.Close && cur.Close <= prev.Open {
		return &Pattern{Name: "bearish_engulfing", Signal: "SELL", Confidence: 0.7}
	}
	return nil
}

// star: three-candle morning/evening star with a shrunken middle body.
func star(candles []feed.Candle) *Pattern {
	if len(candles) < 3 {
		return nil
	}
	a := candles[len(candles)-3]
	b := candles[len(candles)-2]
	c := candles[len(candles)-1]
	if body(a) == 0 || body(b) > body(a)*0.5 {
		return nil
	}
	mid := a.Open + (a.Close-a.Open)/2
	if !green(a) && green(c) && c.Close > mid {
		return &Pattern{Name: "morning_star", Signal: "BUY", Confidence: 0.8}
	}
	if green(a) && !green(c) && c.Close < mid {
		return &Pattern{Name: "evening_star", Signal: "SELL", Confidence: 0.8}
	}
	return nil
}
