// Package series provides the per-symbol candle buffer.
//
// A Series is append-only: candles merge in by exact timestamp match and
// an already-present timestamp is never overwritten. A provisional bar
// therefore cannot corrupt history — until a bar is final upstream it has
// not been appended here yet.
package series

import (
	"sort"

	"reversal-traderv1/internal/model"
)

// Series is an append-only, deduplicated, time-ordered OHLC buffer for
// one symbol. Not safe for concurrent use; the owning agent serializes
// access.
type Series struct {
	symbol  string
	candles []model.Candle
	seen    map[int64]struct{}
}

// New creates an empty series for a symbol.
func New(symbol string) *Series {
	return &Series{
		symbol: symbol,
		seen:   make(map[int64]struct{}),
	}
}

// Symbol returns the symbol this series belongs to.
func (s *Series) Symbol() string { return s.symbol }

// Len returns the number of candles held.
func (s *Series) Len() int { return len(s.candles) }

// Merge appends candles with strictly new timestamps, keeping the buffer
// sorted ascending by time. Returns the number of candles added.
func (s *Series) Merge(candles []model.Candle) int {
	added := 0
	for _, c := range candles {
		if _, ok := s.seen[c.Time]; ok {
			continue
		}
		s.seen[c.Time] = struct{}{}
		s.candles = append(s.candles, c)
		added++
	}
	if added > 0 {
		sort.Slice(s.candles, func(i, j int) bool {
			return s.candles[i].Time < s.candles[j].Time
		})
	}
	return added
}

// Last returns the most recent candle and true, or false when empty.
func (s *Series) Last() (model.Candle, bool) {
	if len(s.candles) == 0 {
		return model.Candle{}, false
	}
	return s.candles[len(s.candles)-1], true
}

// Closes returns the closing prices in time order.
func (s *Series) Closes() []float64 {
	closes := make([]float64, len(s.candles))
	for i, c := range s.candles {
		closes[i] = c.Close
	}
	return closes
}

// Tail returns a copy of the last n candles (all of them if n exceeds
// the buffer length). Used by the introspection API.
func (s *Series) Tail(n int) []model.Candle {
	if n > len(s.candles) {
		n = len(s.candles)
	}
	cp := make([]model.Candle, n)
	copy(cp, s.candles[len(s.candles)-n:])
	return cp
}
