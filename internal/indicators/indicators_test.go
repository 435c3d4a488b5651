package indicators

import (
	"math"
	"testing"

	"botfarm-core/pkg/feed"
)

func almost(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestRSIRequiresPeriodPlusOne(t *testing.T) {
	if got := RSI([]float64{1, 2, 3}, 3); got != nil {
		t.Fatalf("expected empty series for short input, got %v", got)
	}
	if got := RSI([]float64{1, 2, 3, 4}, 3); len(got) != 1 {
		t.Fatalf("expected exactly one value at period+1 closes, got %v", got)
	}
}

func TestRSIAllGainsIsHundred(t *testing.T) {
	closes := []float64{1, 2, 3, 4, 5, 6}
	for _, v := range RSI(closes, 3) {
		if v != 100 {
			t.Fatalf("monotonic gains must yield RSI 100, got %v", v)
		}
	}
}

func TestRSIWilderRecurrence(t *testing.T) {
	// Hand-computed with period 2:
	// deltas: +1, -1 -> seed avgGain=0.5 avgLoss=0.5 -> RSI 50.
	// next delta +3 -> avgGain=(0.5*1+3)/2=1.75, avgLoss=0.25 -> rs=7 -> 87.5
	closes := []float64{10, 11, 10, 13}
	got := RSI(closes, 2)
	if len(got) != 2 {
		t.Fatalf("expected 2 values, got %v", got)
	}
	if !almost(got[0], 50) {
		t.Fatalf("seed RSI = %v, want 50", got[0])
	}
	if !almost(got[1], 87.5) {
		t.Fatalf("recurrence RSI = %v, want 87.5", got[1])
	}
}

func TestBollingerPopulationStdDev(t *testing.T) {
	closes := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	bands := Bollinger(closes, 8, 2)
	if len(bands) != 1 {
		t.Fatalf("expected single band, got %d", len(bands))
	}
	// mean 5, population stddev 2.
	b := bands[0]
	if !almost(b.Middle, 5) || !almost(b.Upper, 9) || !almost(b.Lower, 1) {
		t.Fatalf("bad bands: %+v", b)
	}
}

func TestMACDDropsUnstableLead(t *testing.T) {
	closes := make([]float64, 50)
	for i := range closes {
		closes[i] = float64(100 + i)
	}
	res := MACD(closes, 12, 26, 9)
	want := len(closes) - 26 - 9 + 1
	if len(res.MACD) != want || len(res.Signal) != want || len(res.Histogram) != want {
		t.Fatalf("series lengths = %d/%d/%d, want %d",
			len(res.MACD), len(res.Signal), len(res.Histogram), want)
	}
	for i := range res.Histogram {
		if !almost(res.Histogram[i], res.MACD[i]-res.Signal[i]) {
			t.Fatalf("histogram mismatch at %d", i)
		}
	}
}

func TestMomentum(t *testing.T) {
	got := Momentum([]float64{100, 0, 110}, 2)
	if len(got) != 1 || !almost(got[0], 10) {
		t.Fatalf("momentum = %v, want [10]", got)
	}
}

func bar(o, h, l, c float64) feed.Candle {
	return feed.Candle{Open: o, High: h, Low: l, Close: c}
}

func TestHighestConfidencePatternWins(t *testing.T) {
	// The last candle both engulfs the tiny middle body (0.7) and completes
	// a morning star (0.8); the higher confidence must win.
	candles := []feed.Candle{
		bar(110, 111, 99, 100),
		bar(100.2, 100.5, 99.5, 100),
		bar(100, 109, 92, 108),
	}
	p := DetectPattern(candles)
	if p == nil || p.Name != "morning_star" || p.Signal != "BUY" {
		t.Fatalf("expected morning_star BUY, got %+v", p)
	}
}

func TestEngulfing(t *testing.T) {
	candles := []feed.Candle{
		bar(105, 106, 99, 100), // red
		bar(99, 108, 98, 107),  // green, swallows previous body
	}
	p := DetectPattern(candles)
	if p == nil || p.Name != "bullish_engulfing" {
		t.Fatalf("expected bullish_engulfing, got %+v", p)
	}
}

func TestDojiOnlySurfacesAlone(t *testing.T) {
	// flat body mid-range: no directional pattern matches
	p := DetectPattern([]feed.Candle{bar(100, 103, 97, 100.1)})
	if p == nil || p.Name != "doji" || p.Signal != "NEUTRAL" {
		t.Fatalf("expected doji NEUTRAL, got %+v", p)
	}

	// a doji shape with the whole wick below is a hammer first
	p = DetectPattern([]feed.Candle{bar(100, 100.2, 94, 100.1)})
	if p == nil || p.Name != "hammer" {
		t.Fatalf("expected hammer to outrank doji, got %+v", p)
	}
}

func TestLiquidityZonesLeftmostWins(t *testing.T) {
	// Two consecutive equal highs at indices 2 and 3; only the first may be
	// reported as a swing high.
	candles := []feed.Candle{
		bar(1, 10, 1, 1),
		bar(1, 11, 1, 1),
		bar(1, 15, 1, 1),
		bar(1, 15, 1, 1),
		bar(1, 12, 1, 1),
		bar(1, 11, 1, 1),
	}
	zones := LiquidityZones(candles, 2)
	var highs []int
	for _, z := range zones {
		if z.Type == "high" {
			highs = append(highs, z.Index)
		}
	}
	if len(highs) != 1 || highs[0] != 2 {
		t.Fatalf("expected single swing high at index 2, got %v", highs)
	}
}
