// Package indicator provides the momentum oscillator calculations used
// by the signal detector. All functions are pure: they take a closing
// price series and return derived values without retaining state.
package indicator

// Sample is one oscillator output point. Histogram is the main line
// minus the signal line; runs of agreeing histogram values are the
// reversal confirmation heuristic consumed downstream.
type Sample struct {
	Main      float64 `json:"main"`
	Signal    float64 `json:"signal"`
	Histogram float64 `json:"histogram"`
}

// MACD computes the oscillator over a closing price series. One sample
// is produced per close once the slow EMA has warmed up, so the result
// holds len(closes)-slowPeriod+1 samples (or none when the series is
// shorter than slowPeriod).
func MACD(closes []float64, fastPeriod, slowPeriod, signalPeriod int) []Sample {
	if len(closes) < slowPeriod {
		return nil
	}

	fast := NewEMA(fastPeriod)
	slow := NewEMA(slowPeriod)
	sig := NewEMA(signalPeriod)

	samples := make([]Sample, 0, len(closes)-slowPeriod+1)
	for _, price := range closes {
		fast.Update(price)
		slow.Update(price)
		if !slow.Ready() {
			continue
		}
		main := fast.Value() - slow.Value()
		sig.Update(main)
		signal := sig.Value()
		if !sig.Ready() {
			// Signal EMA still seeding: use the raw main line so early
			// samples carry a zero histogram instead of a bogus spike.
			signal = main
		}
		samples = append(samples, Sample{
			Main:      main,
			Signal:    signal,
			Histogram: main - signal,
		})
	}
	return samples
}
