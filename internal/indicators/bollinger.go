package indicators

// Bands holds one Bollinger Band reading.
type Bands struct {
	Middle float64
	Upper  float64
	Lower  float64
}

// Bollinger computes rolling simple mean +/- k population standard
// deviations. out[i] corresponds to closes[i+period-1].
func Bollinger(closes []float64, period int, k float64) []Bands {
	means := SMA(closes, period)
	if means == nil {
		return nil
	}
	devs := StdDev(closes, period)

	out := make([]Bands, len(means))
	for i := range means {
		out[i] = Bands{
			Middle: means[i],
			Upper:  means[i] + k*devs[i],
			Lower:  means[i] - k*devs[i],
		}
	}
	return out
}
