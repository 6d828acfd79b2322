package series

import (
	"testing"

	"reversal-traderv1/internal/model"
)

func mkCandle(ts int64, close float64) model.Candle {
	return model.Candle{Time: ts, Open: close, High: close, Low: close, Close: close}
}

func TestMerge_AppendsAndSorts(t *testing.T) {
	s := New("BTC-USDT")

	added := s.Merge([]model.Candle{
		mkCandle(300, 3),
		mkCandle(100, 1),
		mkCandle(200, 2),
	})
	if added != 3 {
		t.Fatalf("expected 3 added, got %d", added)
	}

	closes := s.Closes()
	want := []float64{1, 2, 3}
	for i, c := range closes {
		if c != want[i] {
			t.Errorf("closes[%d] = %v, want %v", i, c, want[i])
		}
	}
}

func TestMerge_DeduplicatesByTimestamp(t *testing.T) {
	s := New("BTC-USDT")
	s.Merge([]model.Candle{mkCandle(100, 1), mkCandle(200, 2)})

	// Re-merging the same timestamps must never change length, order,
	// or values — even when the incoming close differs.
	added := s.Merge([]model.Candle{mkCandle(100, 99), mkCandle(200, 99), mkCandle(300, 3)})
	if added != 1 {
		t.Fatalf("expected 1 added, got %d", added)
	}
	if s.Len() != 3 {
		t.Fatalf("expected len 3, got %d", s.Len())
	}

	closes := s.Closes()
	want := []float64{1, 2, 3}
	for i, c := range closes {
		if c != want[i] {
			t.Errorf("closes[%d] = %v, want %v (existing candle overwritten?)", i, c, want[i])
		}
	}
}

func TestLast_EmptyAndNonEmpty(t *testing.T) {
	s := New("ETH-USDT")
	if _, ok := s.Last(); ok {
		t.Fatal("expected no last candle on empty series")
	}

	s.Merge([]model.Candle{mkCandle(100, 1), mkCandle(200, 2)})
	last, ok := s.Last()
	if !ok || last.Time != 200 {
		t.Fatalf("expected last at t=200, got %+v ok=%v", last, ok)
	}
}

func TestTail_Bounds(t *testing.T) {
	s := New("ETH-USDT")
	s.Merge([]model.Candle{mkCandle(100, 1), mkCandle(200, 2), mkCandle(300, 3)})

	tail := s.Tail(2)
	if len(tail) != 2 || tail[0].Time != 200 || tail[1].Time != 300 {
		t.Fatalf("unexpected tail: %+v", tail)
	}

	all := s.Tail(10)
	if len(all) != 3 {
		t.Fatalf("expected full series for oversized tail, got %d", len(all))
	}
}
