// Package indicators provides pure, stateless computations over ordered
// candle sequences. Every function returns a series aligned to the tail of
// its input; none of them mutate their arguments.
package indicators

import "math"

// RSI computes Wilder-smoothed RSI over closing prices. The result has
// len(closes)-period values, out[i] corresponding to closes[i+period].
// Fewer than period+1 closes yield an empty series.
func RSI(closes []float64, period int) []float64 {
	if period <= 0 || len(closes) < period+1 {
		return nil
	}

	// Seed averages over the first `period` deltas.
	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss += -change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	out := make([]float64, 0, len(closes)-period)
	out = append(out, rsiValue(avgGain, avgLoss))

	// Wilder recurrence for the remainder.
	for i := period + 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		out = append(out, rsiValue(avgGain, avgLoss))
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// Momentum returns the percentage change of each close versus the close
// `lookback` bars earlier. out[i] corresponds to closes[i+lookback].
func Momentum(closes []float64, lookback int) []float64 {
	if lookback <= 0 || len(closes) <= lookback {
		return nil
	}
	out := make([]float64, 0, len(closes)-lookback)
	for i := lookback; i < len(closes); i++ {
		ref := closes[i-lookback]
		if ref == 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, (closes[i]-ref)/ref*100)
	}
	return out
}

// SMA returns the simple moving average series; out[i] corresponds to
// closes[i+period-1].
func SMA(closes []float64, period int) []float64 {
	if period <= 0 || len(closes) < period {
		return nil
	}
	out := make([]float64, 0, len(closes)-period+1)
	sum := 0.0
	for i, c := range closes {
		sum += c
		if i >= period {
			sum -= closes[i-period]
		}
		if i >= period-1 {
			out = append(out, sum/float64(period))
		}
	}
	return out
}

// StdDev returns the rolling population standard deviation aligned with SMA.
func StdDev(closes []float64, period int) []float64 {
	if period <= 0 || len(closes) < period {
		return nil
	}
	means := SMA(closes, period)
	out := make([]float64, 0, len(means))
	for i, mean := range means {
		var ss float64
		for _, c := range closes[i : i+period] {
			d := c - mean
			ss += d * d
		}
		out = append(out, math.Sqrt(ss/float64(period)))
	}
	return out
}
