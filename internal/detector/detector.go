// Package detector turns a candle close series into trading signals.
//
// A BUY is confirmed by a run of non-decreasing oscillator histogram
// values, a SELL by a run of non-increasing ones. The two confirmation
// windows are independent; BUY is evaluated first, so an ambiguous
// series that satisfies both resolves to BUY.
package detector

import "reversal-traderv1/internal/indicator"

// Signal is a detector verdict.
type Signal string

const (
	SignalNone Signal = "NONE"
	SignalBuy  Signal = "BUY"
	SignalSell Signal = "SELL"
)

// Params holds the oscillator periods and confirmation window sizes.
type Params struct {
	FastPeriod        int `json:"fast_period"`
	SlowPeriod        int `json:"slow_period"`
	SignalPeriod      int `json:"signal_period"`
	UpConfirmations   int `json:"up_confirmations"`
	DownConfirmations int `json:"down_confirmations"`
}

// Detector evaluates a close series against fixed parameters.
// Stateless; safe to share between agents of the same configuration.
type Detector struct {
	params Params
}

// New creates a detector with the given parameters.
func New(params Params) *Detector {
	return &Detector{params: params}
}

// Params returns the configured parameters.
func (d *Detector) Params() Params { return d.params }

// WarmupCandles returns how many candles an agent should hold before
// evaluation produces meaningful verdicts. Fetching this many covers the
// slow EMA warm-up, the signal line seed, and the widest confirmation
// window.
func (d *Detector) WarmupCandles() int {
	conf := d.params.UpConfirmations
	if d.params.DownConfirmations > conf {
		conf = d.params.DownConfirmations
	}
	return 2*d.params.SlowPeriod + d.params.SignalPeriod + conf
}

// Oscillator exposes the raw oscillator series for diagnostics.
func (d *Detector) Oscillator(closes []float64) []indicator.Sample {
	return indicator.MACD(closes, d.params.FastPeriod, d.params.SlowPeriod, d.params.SignalPeriod)
}

// Evaluate runs the oscillator over closes and applies the confirmation
// windows. Too little history is not an error: it yields SignalNone.
func (d *Detector) Evaluate(closes []float64) Signal {
	samples := indicator.MACD(closes, d.params.FastPeriod, d.params.SlowPeriod, d.params.SignalPeriod)
	if len(samples) < d.params.SlowPeriod {
		return SignalNone
	}

	hist := make([]float64, len(samples))
	for i, s := range samples {
		hist[i] = s.Histogram
	}

	if confirmed(hist, d.params.UpConfirmations, func(prev, next float64) bool { return next >= prev }) {
		return SignalBuy
	}
	if confirmed(hist, d.params.DownConfirmations, func(prev, next float64) bool { return next <= prev }) {
		return SignalSell
	}
	return SignalNone
}

// confirmed checks the last window+1 histogram values pairwise. A single
// adjacent pair failing ok anywhere in the window suppresses the signal.
func confirmed(hist []float64, window int, ok func(prev, next float64) bool) bool {
	if window <= 0 || len(hist) < window+1 {
		return false
	}
	tail := hist[len(hist)-window-1:]
	for i := 1; i < len(tail); i++ {
		if !ok(tail[i-1], tail[i]) {
			return false
		}
	}
	return true
}
