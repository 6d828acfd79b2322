package detector

import "testing"

var testParams = Params{
	FastPeriod:        3,
	SlowPeriod:        5,
	SignalPeriod:      3,
	UpConfirmations:   2,
	DownConfirmations: 2,
}

// geometric builds a close series multiplying by ratio each bar.
// ratio > 1 accelerates upward (rising histogram), ratio < 1 downward.
func geometric(n int, start, ratio float64) []float64 {
	closes := make([]float64, n)
	v := start
	for i := range closes {
		closes[i] = v
		v *= ratio
	}
	return closes
}

func TestEvaluate_InsufficientHistory(t *testing.T) {
	d := New(testParams)
	if sig := d.Evaluate(geometric(6, 1, 1.5)); sig != SignalNone {
		t.Fatalf("expected NONE during warm-up, got %s", sig)
	}
}

func TestEvaluate_BuyOnRisingHistogram(t *testing.T) {
	d := New(testParams)
	if sig := d.Evaluate(geometric(26, 1, 1.5)); sig != SignalBuy {
		t.Fatalf("expected BUY on accelerating rise, got %s", sig)
	}
}

func TestEvaluate_SellOnFallingHistogram(t *testing.T) {
	d := New(testParams)
	if sig := d.Evaluate(geometric(26, 1e6, 0.6)); sig != SignalSell {
		t.Fatalf("expected SELL on accelerating fall, got %s", sig)
	}
}

func TestConfirmed_WindowRules(t *testing.T) {
	nonDecreasing := func(prev, next float64) bool { return next >= prev }

	tests := []struct {
		name   string
		hist   []float64
		window int
		want   bool
	}{
		{"all rising", []float64{1, 2, 3, 4}, 2, true},
		{"flat counts as non-decreasing", []float64{1, 2, 2, 2}, 2, true},
		{"single dip anywhere suppresses", []float64{1, 3, 2, 4}, 2, false},
		{"dip outside window ignored", []float64{9, 1, 2, 3}, 2, true},
		{"too little history", []float64{1, 2}, 2, false},
		{"zero window never confirms", []float64{1, 2, 3}, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := confirmed(tt.hist, tt.window, nonDecreasing); got != tt.want {
				t.Errorf("confirmed(%v, %d) = %v, want %v", tt.hist, tt.window, got, tt.want)
			}
		})
	}
}

// A flat histogram satisfies both the non-decreasing and non-increasing
// windows; BUY is evaluated first and wins. Documented behavior.
func TestEvaluate_AmbiguousPrefersBuy(t *testing.T) {
	d := New(testParams)
	if sig := d.Evaluate(geometric(26, 100, 1)); sig != SignalBuy {
		t.Fatalf("expected BUY on flat (ambiguous) histogram, got %s", sig)
	}
}

func TestWarmupCandles_CoversWindows(t *testing.T) {
	d := New(testParams)
	n := d.WarmupCandles()
	if sig := d.Evaluate(geometric(n, 1, 1.5)); sig == SignalNone {
		t.Fatalf("warm-up of %d candles still yields NONE", n)
	}
}
