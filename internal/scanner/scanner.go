// Package scanner maintains the tradable-symbol universe and its
// staleness-bounded 24h statistics cache.
//
// Refreshing every symbol every tick would blow the exchange rate
// budget, so each tick refreshes only a bounded slice of the stale
// entries. The slice is sized so every symbol is revisited at least
// twice within one staleness window.
package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"reversal-traderv1/internal/metrics"
	"reversal-traderv1/internal/model"
)

// Config holds the universe selection rules.
type Config struct {
	Market        string // exchange market group for the symbol list
	QuoteCurrency string // only symbols quoted in this currency qualify
	MaxAge        time.Duration
	AllowList     []string // when non-empty, symbol must be present
	DenyList      []string
}

// Scanner fetches and filters the symbol universe and keeps per-symbol
// statistics no older than the staleness budget.
type Scanner struct {
	exchange model.Exchange
	cfg      Config
	log      *slog.Logger
	prom     *metrics.Metrics // optional

	allow map[string]bool
	deny  map[string]bool

	mu       sync.RWMutex
	stats    map[string]model.Stats
	complete bool
}

// New creates a scanner with an empty cache. prom may be nil.
func New(cfg Config, exchange model.Exchange, prom *metrics.Metrics, log *slog.Logger) *Scanner {
	s := &Scanner{
		exchange: exchange,
		cfg:      cfg,
		log:      log,
		prom:     prom,
		deny:     make(map[string]bool, len(cfg.DenyList)),
		stats:    make(map[string]model.Stats),
	}
	if len(cfg.AllowList) > 0 {
		s.allow = make(map[string]bool, len(cfg.AllowList))
		for _, sym := range cfg.AllowList {
			s.allow[sym] = true
		}
	}
	for _, sym := range cfg.DenyList {
		s.deny[sym] = true
	}
	return s
}

// Refresh fetches the symbol list, filters it, and refreshes statistics
// for one slice of the stale entries. A symbol-list fetch error aborts
// the whole refresh for this tick; a per-symbol statistics error is
// skipped and retried next tick.
func (s *Scanner) Refresh(ctx context.Context, now time.Time) error {
	descriptors, err := s.exchange.ListSymbols(ctx, s.cfg.Market)
	if err != nil {
		return fmt.Errorf("list symbols: %w", err)
	}

	candidates := s.filter(descriptors)

	var stale []string
	s.mu.RLock()
	for _, sym := range candidates {
		entry, ok := s.stats[sym]
		if !ok || !entry.Fresh(now, s.cfg.MaxAge) {
			stale = append(stale, sym)
		}
	}
	s.mu.RUnlock()

	if len(stale) == 0 {
		s.mu.Lock()
		if !s.complete {
			s.complete = true
			s.log.Info("universe complete", slog.Int("symbols", len(candidates)))
		}
		s.mu.Unlock()
		return nil
	}

	n := sliceSize(len(candidates), s.cfg.MaxAge)
	if n > len(stale) {
		n = len(stale)
	}

	refreshed := 0
	for _, sym := range stale[:n] {
		st, err := s.exchange.Get24hStats(ctx, sym)
		if err != nil {
			s.log.Warn("stats fetch failed",
				slog.String("symbol", sym), slog.Any("err", err))
			if s.prom != nil {
				s.prom.StatsErrors.Inc()
			}
			continue
		}
		if st.CapturedAt.IsZero() {
			st.CapturedAt = now
		}
		s.mu.Lock()
		s.stats[sym] = st
		s.mu.Unlock()
		if s.prom != nil {
			s.prom.StatsRefreshed.Inc()
		}
		refreshed++
	}

	s.log.Debug("universe refreshed",
		slog.Int("candidates", len(candidates)),
		slog.Int("stale", len(stale)),
		slog.Int("refreshed", refreshed))
	return nil
}

// filter applies the static inclusion rules to the symbol list.
func (s *Scanner) filter(descriptors []model.SymbolDescriptor) []string {
	out := make([]string, 0, len(descriptors))
	for _, d := range descriptors {
		if !d.TradingEnabled {
			continue
		}
		if d.QuoteCurrency != s.cfg.QuoteCurrency {
			continue
		}
		if s.deny[d.Symbol] {
			continue
		}
		if s.allow != nil && !s.allow[d.Symbol] {
			continue
		}
		out = append(out, d.Symbol)
	}
	return out
}

// sliceSize bounds the per-tick statistics refresh so every symbol is
// revisited at least twice within one staleness window.
func sliceSize(universe int, maxAge time.Duration) int {
	minutes := maxAge.Minutes()
	if minutes <= 0 {
		return universe
	}
	return int(math.Ceil(float64(universe)/minutes)) * 2
}

// Complete reports whether the universe has been fully populated at
// least once. Latches true; the orchestrator gates agent creation on it
// so agents are never spawned from a partial universe.
func (s *Scanner) Complete() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.complete
}

// Universe returns a snapshot of all cached entries, sorted by symbol.
func (s *Scanner) Universe() []model.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Stats, 0, len(s.stats))
	for _, st := range s.stats {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// Entry returns the cached statistics for one symbol.
func (s *Scanner) Entry(symbol string) (model.Stats, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.stats[symbol]
	return st, ok
}
