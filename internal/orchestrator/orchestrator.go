// Package orchestrator runs the top-level control loop.
//
// One serialized tick per interval: universe refresh → agent spawn →
// order reconciliation → agent checks. Each step completes before the
// next begins, so agent creation sees a complete universe snapshot and
// a freshly filled order is reflected before the next signal decision,
// not one tick late.
package orchestrator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"reversal-traderv1/internal/agent"
	"reversal-traderv1/internal/detector"
	"reversal-traderv1/internal/indicator"
	"reversal-traderv1/internal/metrics"
	"reversal-traderv1/internal/model"
	"reversal-traderv1/internal/scanner"
)

// Config holds the tick schedule and agent admission thresholds.
type Config struct {
	TickInterval time.Duration
	Timeframe    model.Timeframe
	TradeFunds   decimal.Decimal

	// Admission thresholds over the cached 24h statistics. A symbol on
	// ForceList bypasses all three.
	MinVolumeQuote decimal.Decimal
	MinPrice       decimal.Decimal
	MinChangeRate  decimal.Decimal // absolute value of 24h change

	ForceList []string
	Detector  detector.Params

	// OnTick, when set, runs at the end of every executed tick with the
	// current universe size. Used for health reporting and event
	// publication; must not block.
	OnTick func(now time.Time, universeSize int)
}

// Orchestrator owns the agent registry and drives the tick loop. The
// registry and the scanner cache are mutated only on the tick goroutine;
// snapshot reads from other goroutines go through the component mutexes.
type Orchestrator struct {
	cfg      Config
	exchange model.Exchange
	scanner  *scanner.Scanner
	det      *detector.Detector
	hooks    agent.Hooks
	log      *slog.Logger
	prom     *metrics.Metrics // optional

	force map[string]bool

	mu     sync.RWMutex
	agents map[string]*agent.Agent
	pause  bool
	drain  bool
}

// New creates an orchestrator with an empty agent registry.
func New(cfg Config, exchange model.Exchange, sc *scanner.Scanner, hooks agent.Hooks, prom *metrics.Metrics, log *slog.Logger) *Orchestrator {
	force := make(map[string]bool, len(cfg.ForceList))
	for _, sym := range cfg.ForceList {
		force[sym] = true
	}
	return &Orchestrator{
		cfg:      cfg,
		exchange: exchange,
		scanner:  sc,
		det:      detector.New(cfg.Detector),
		hooks:    hooks,
		log:      log,
		prom:     prom,
		force:    force,
		agents:   make(map[string]*agent.Agent),
	}
}

// Run ticks on the configured interval until ctx is cancelled, then
// marks all agents not running. In-flight exchange calls are allowed to
// complete; their results are discarded by the cancelled context.
func (o *Orchestrator) Run(ctx context.Context) {
	ticker := time.NewTicker(o.cfg.TickInterval)
	defer ticker.Stop()

	o.log.Info("orchestrator started",
		slog.Duration("interval", o.cfg.TickInterval),
		slog.String("timeframe", string(o.cfg.Timeframe)))

	o.Tick(ctx, time.Now())
	for {
		select {
		case <-ctx.Done():
			o.stopAll()
			o.log.Info("orchestrator stopped")
			return
		case now := <-ticker.C:
			o.Tick(ctx, now)
		}
	}
}

// Tick executes one full control cycle. Steps run strictly in sequence;
// a failure in one symbol's processing never aborts the others.
func (o *Orchestrator) Tick(ctx context.Context, now time.Time) {
	if o.Paused() {
		o.log.Debug("tick skipped: paused")
		return
	}
	started := time.Now()

	if err := o.scanner.Refresh(ctx, now); err != nil {
		// Retried next tick; reconciliation and checks still run.
		o.log.Error("universe refresh failed", slog.Any("err", err))
	}

	if o.scanner.Complete() {
		o.spawnAgents()
	}

	if orders, err := o.exchange.ListOrders(ctx); err != nil {
		o.log.Error("order list fetch failed", slog.Any("err", err))
	} else {
		o.reconcileOrders(orders)
	}

	for _, ag := range o.runningAgents() {
		ag.Check(ctx, now)
	}

	universeSize := len(o.scanner.Universe())
	if o.prom != nil {
		o.prom.TicksTotal.Inc()
		o.prom.TickDur.Observe(time.Since(started).Seconds())
		o.prom.UniverseSize.Set(float64(universeSize))
		o.prom.AgentsRunning.Set(float64(len(o.runningAgents())))
	}
	if o.cfg.OnTick != nil {
		o.cfg.OnTick(now, universeSize)
	}
}

// spawnAgents creates and starts an agent for every universe entry that
// passes the admission thresholds (or sits on the force list) and lacks
// a running agent.
func (o *Orchestrator) spawnAgents() {
	for _, st := range o.scanner.Universe() {
		if !o.force[st.Symbol] && !o.admits(st) {
			continue
		}
		ag := o.ensureAgent(st.Symbol)
		if !ag.Running() {
			ag.Start()
			o.log.Info("agent started", slog.String("symbol", st.Symbol))
		}
	}
}

// admits applies the volume/price/24h-change thresholds. Thresholds are
// compared in the single configured quote currency.
func (o *Orchestrator) admits(st model.Stats) bool {
	return st.VolumeQuote.GreaterThanOrEqual(o.cfg.MinVolumeQuote) &&
		st.LastPrice.GreaterThanOrEqual(o.cfg.MinPrice) &&
		st.ChangeRate.Abs().GreaterThanOrEqual(o.cfg.MinChangeRate)
}

// ensureAgent returns the agent for a symbol, constructing it if absent.
// Construct-if-absent runs under one mutex so multiple agents can never
// exist for the same symbol.
func (o *Orchestrator) ensureAgent(symbol string) *agent.Agent {
	o.mu.Lock()
	defer o.mu.Unlock()
	if ag, ok := o.agents[symbol]; ok {
		return ag
	}
	ag := agent.New(agent.Config{
		Symbol:     symbol,
		Timeframe:  o.cfg.Timeframe,
		TradeFunds: o.cfg.TradeFunds,
	}, o.exchange, o.det, o.hooks, o.log)
	ag.SetDrain(o.drain)
	o.agents[symbol] = ag
	return ag
}

func (o *Orchestrator) runningAgents() []*agent.Agent {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]*agent.Agent, 0, len(o.agents))
	for _, ag := range o.agents {
		if ag.Running() {
			out = append(out, ag)
		}
	}
	return out
}

func (o *Orchestrator) stopAll() {
	o.mu.RLock()
	defer o.mu.RUnlock()
	for _, ag := range o.agents {
		ag.Stop()
	}
}

// SetPause suspends (or resumes) the entire tick.
func (o *Orchestrator) SetPause(v bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.pause = v
}

// Paused reports whether ticks are suspended.
func (o *Orchestrator) Paused() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.pause
}

// SetDrain suppresses new BUY transitions on all agents, current and
// future, while existing positions keep unwinding.
func (o *Orchestrator) SetDrain(v bool) {
	o.mu.Lock()
	o.drain = v
	agents := make([]*agent.Agent, 0, len(o.agents))
	for _, ag := range o.agents {
		agents = append(agents, ag)
	}
	o.mu.Unlock()
	for _, ag := range agents {
		ag.SetDrain(v)
	}
}

// Drained reports whether drain mode is on.
func (o *Orchestrator) Drained() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.drain
}

// Agents returns snapshots of every agent in the registry.
func (o *Orchestrator) Agents() []agent.Info {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]agent.Info, 0, len(o.agents))
	for _, ag := range o.agents {
		out = append(out, ag.Snapshot())
	}
	return out
}

// AgentInfo returns the snapshot for one symbol.
func (o *Orchestrator) AgentInfo(symbol string) (agent.Info, bool) {
	o.mu.RLock()
	ag, ok := o.agents[symbol]
	o.mu.RUnlock()
	if !ok {
		return agent.Info{}, false
	}
	return ag.Snapshot(), true
}

// Universe returns the scanner's cached statistics.
func (o *Orchestrator) Universe() []model.Stats {
	return o.scanner.Universe()
}

// UniverseEntry returns the cached statistics for one symbol.
func (o *Orchestrator) UniverseEntry(symbol string) (model.Stats, bool) {
	return o.scanner.Entry(symbol)
}

// Dump is a read-only candle/oscillator snapshot for one symbol.
type Dump struct {
	Symbol     string             `json:"symbol"`
	Candles    []model.Candle     `json:"candles"`
	Oscillator []indicator.Sample `json:"oscillator"`
}

// CandleDump returns the last n candles and the oscillator series for a
// symbol with an agent.
func (o *Orchestrator) CandleDump(symbol string, n int) (Dump, bool) {
	o.mu.RLock()
	ag, ok := o.agents[symbol]
	o.mu.RUnlock()
	if !ok {
		return Dump{}, false
	}
	return Dump{
		Symbol:     symbol,
		Candles:    ag.CandleTail(n),
		Oscillator: o.det.Oscillator(ag.Closes()),
	}, true
}
