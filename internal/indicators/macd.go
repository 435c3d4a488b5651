package indicators

// MACDResult holds the aligned MACD, signal and histogram series. The
// unstable leading slow+signal points of the input are dropped, so each
// slice has len(closes)-slow-signal+1 values (or is empty).
type MACDResult struct {
	MACD      []float64
	Signal    []float64
	Histogram []float64
}

// MACD computes EMA(fast)-EMA(slow) with an EMA(signal) of that difference.
func MACD(closes []float64, fast, slow, signal int) MACDResult {
	if fast <= 0 || slow <= fast || signal <= 0 || len(closes) < slow+signal {
		return MACDResult{}
	}

	fastEMA := EMA(closes, fast)
	slowEMA := EMA(closes, slow)

	// Align: EMA(p) starts at input index p-1, so slowEMA lags fastEMA by
	// slow-fast points.
	diff := make([]float64, len(slowEMA))
	offset := slow - fast
	for i := range slowEMA {
		diff[i] = fastEMA[i+offset] - slowEMA[i]
	}

	signalLine := EMA(diff, signal)
	macdLine := diff[signal-1:]

	hist := make([]float64, len(signalLine))
	for i := range signalLine {
		hist[i] = macdLine[i] - signalLine[i]
	}

	return MACDResult{MACD: macdLine, Signal: signalLine, Histogram: hist}
}

// EMA returns the exponential moving average series seeded with the simple
// mean of the first period values; out[i] corresponds to closes[i+period-1].
func EMA(closes []float64, period int) []float64 {
	if period <= 0 || len(closes) < period {
		return nil
	}

	seed := 0.0
	for _, c := range closes[:period] {
		seed += c
	}
	seed /= float64(period)

	mult := 2.0 / float64(period+1)
	out := make([]float64, 0, len(closes)-period+1)
	out = append(out, seed)
	prev := seed
	for _, c := range closes[period:] {
		prev = (c-prev)*mult + prev
		out = append(out, prev)
	}
	return out
}
