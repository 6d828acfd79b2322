// Package agent implements the per-symbol trading state machine.
//
// An agent owns its candle series and walks the IDLE → BUYING →
// POSITION → SELLING cycle. Signals move it forward on the buy and sell
// edges; the order feed (via SetOrder) is authoritative for fills and
// overrides locally inferred state.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"reversal-traderv1/internal/detector"
	"reversal-traderv1/internal/model"
	"reversal-traderv1/internal/series"
)

// State is the agent lifecycle position.
type State string

const (
	StateIdle     State = "IDLE"
	StateBuying   State = "BUYING"
	StatePosition State = "POSITION"
	StateSelling  State = "SELLING"
)

// OrderEvent describes a successfully placed order.
type OrderEvent struct {
	Symbol    string          `json:"symbol"`
	Side      model.Side      `json:"side"`
	OrderID   string          `json:"order_id"`
	ClientOid string          `json:"client_oid"`
	Funds     decimal.Decimal `json:"funds"`
	Size      decimal.Decimal `json:"size"`
	PlacedAt  time.Time       `json:"placed_at"`
}

// Hooks are optional observation callbacks. They run on the orchestrator
// tick goroutine and must not block.
type Hooks struct {
	OnSignal func(symbol string, sig detector.Signal)
	OnOrder  func(ev OrderEvent)
}

// Config holds the per-agent trading parameters.
type Config struct {
	Symbol     string
	Timeframe  model.Timeframe
	TradeFunds decimal.Decimal // quote amount per market buy
}

// Agent is the per-symbol trading state machine. One agent exists per
// symbol at any time; the orchestrator registry enforces uniqueness.
type Agent struct {
	cfg      Config
	exchange model.Exchange
	det      *detector.Detector
	ser      *series.Series
	log      *slog.Logger
	hooks    Hooks

	// jitter returns the polling gate factor in [0.5, 1.5). Overridable
	// for deterministic tests.
	jitter func() float64

	mu         sync.RWMutex
	state      State
	position   decimal.Decimal
	lastSignal detector.Signal
	running    bool
	drain      bool
	lastRun    time.Time
}

// Info is a read-only agent snapshot for introspection.
type Info struct {
	Symbol     string          `json:"symbol"`
	State      State           `json:"state"`
	Position   decimal.Decimal `json:"position"`
	LastSignal detector.Signal `json:"last_signal"`
	Running    bool            `json:"running"`
	Drain      bool            `json:"drain"`
	Candles    int             `json:"candles"`
	LastRun    time.Time       `json:"last_run"`
}

// New creates an agent in IDLE with an empty candle series.
func New(cfg Config, exchange model.Exchange, det *detector.Detector, hooks Hooks, log *slog.Logger) *Agent {
	return &Agent{
		cfg:        cfg,
		exchange:   exchange,
		det:        det,
		ser:        series.New(cfg.Symbol),
		log:        log.With(slog.String("symbol", cfg.Symbol)),
		hooks:      hooks,
		jitter:     func() float64 { return 0.5 + rand.Float64() },
		state:      StateIdle,
		lastSignal: detector.SignalNone,
	}
}

// Start marks the agent running. Idempotent.
func (a *Agent) Start() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.running = true
}

// Stop marks the agent not running. The series and state are kept so a
// later Start resumes where it left off.
func (a *Agent) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.running = false
}

// Running reports whether the agent participates in tick checks.
func (a *Agent) Running() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.running
}

// SetDrain toggles drain mode: new BUY transitions are suppressed while
// existing positions continue to unwind.
func (a *Agent) SetDrain(v bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.drain = v
}

// Snapshot returns the current agent state for introspection.
func (a *Agent) Snapshot() Info {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return Info{
		Symbol:     a.cfg.Symbol,
		State:      a.state,
		Position:   a.position,
		LastSignal: a.lastSignal,
		Running:    a.running,
		Drain:      a.drain,
		Candles:    a.ser.Len(),
		LastRun:    a.lastRun,
	}
}

// CandleTail returns the last n candles for diagnostics.
func (a *Agent) CandleTail(n int) []model.Candle {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.ser.Tail(n)
}

// Closes returns the close series for diagnostics.
func (a *Agent) Closes() []float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.ser.Closes()
}

// Check runs one polling cycle: refresh candles, evaluate the detector,
// apply the transition table. It never fails — upstream errors are
// logged with symbol context and leave state unchanged so the next tick
// retries cleanly.
//
// To spread load across agents, a check only proceeds once
// now > lastRun + U(0.5, 1.5) * timeframe.
func (a *Agent) Check(ctx context.Context, now time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.running {
		return
	}
	gate := time.Duration(a.jitter() * float64(a.cfg.Timeframe.Duration()))
	if !now.After(a.lastRun.Add(gate)) {
		return
	}
	a.lastRun = now

	if err := a.refreshCandles(ctx, now); err != nil {
		a.log.Warn("candle refresh failed", slog.Any("err", err))
		return
	}

	sig := a.det.Evaluate(a.ser.Closes())
	if a.hooks.OnSignal != nil {
		a.hooks.OnSignal(a.cfg.Symbol, sig)
	}

	switch sig {
	case detector.SignalBuy:
		a.tryBuy(ctx, now)
	case detector.SignalSell:
		a.trySell(ctx, now)
	case detector.SignalNone:
		// no-op in any state
	}
}

// refreshCandles fetches from the last known bar forward (the full
// warm-up window on first fetch) and merges; the series deduplicates.
func (a *Agent) refreshCandles(ctx context.Context, now time.Time) error {
	var startAt int64
	if last, ok := a.ser.Last(); ok {
		startAt = last.Time
	} else {
		lookback := time.Duration(a.det.WarmupCandles()) * a.cfg.Timeframe.Duration()
		startAt = now.Add(-lookback).Unix()
	}
	candles, err := a.exchange.GetCandles(ctx, a.cfg.Symbol, a.cfg.Timeframe, startAt)
	if err != nil {
		return fmt.Errorf("get candles: %w", err)
	}
	a.ser.Merge(candles)
	return nil
}

func (a *Agent) tryBuy(ctx context.Context, now time.Time) {
	if a.state != StateIdle || a.drain || a.lastSignal == detector.SignalBuy {
		return
	}
	spec := model.OrderSpec{Funds: a.cfg.TradeFunds}
	ev, err := a.placeOrder(ctx, now, model.SideBuy, spec)
	if err != nil {
		a.log.Warn("buy order failed", slog.Any("err", err))
		return
	}
	a.state = StateBuying
	a.lastSignal = detector.SignalBuy
	a.log.Info("buy order placed",
		slog.String("order_id", ev.OrderID),
		slog.String("funds", spec.Funds.String()))
}

func (a *Agent) trySell(ctx context.Context, now time.Time) {
	if a.state != StatePosition || a.lastSignal == detector.SignalSell {
		return
	}
	spec := model.OrderSpec{Size: a.position}
	ev, err := a.placeOrder(ctx, now, model.SideSell, spec)
	if err != nil {
		a.log.Warn("sell order failed", slog.Any("err", err))
		return
	}
	a.state = StateSelling
	a.lastSignal = detector.SignalSell
	a.log.Info("sell order placed",
		slog.String("order_id", ev.OrderID),
		slog.String("size", spec.Size.String()))
}

func (a *Agent) placeOrder(ctx context.Context, now time.Time, side model.Side, spec model.OrderSpec) (OrderEvent, error) {
	clientOid := fmt.Sprintf("%s-%s-%d", a.cfg.Symbol, side, now.UnixNano())
	orderID, err := a.exchange.PlaceMarketOrder(ctx, clientOid, side, a.cfg.Symbol, spec)
	if err != nil {
		return OrderEvent{}, err
	}
	ev := OrderEvent{
		Symbol:    a.cfg.Symbol,
		Side:      side,
		OrderID:   orderID,
		ClientOid: clientOid,
		Funds:     spec.Funds,
		Size:      spec.Size,
		PlacedAt:  now,
	}
	if a.hooks.OnOrder != nil {
		a.hooks.OnOrder(ev)
	}
	return ev, nil
}

// SetOrder projects the exchange's newest order for this symbol onto
// agent state. Invoked by the order reconciler, never by the agent
// itself; the exchange is the source of truth for fills, so this
// overrides locally inferred state.
func (a *Agent) SetOrder(o model.Order) {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch o.Side {
	case model.SideBuy:
		if o.IsActive {
			a.state = StateBuying
		} else {
			a.state = StatePosition
			a.position = o.DealSize
		}
	case model.SideSell:
		if o.IsActive {
			a.state = StateSelling
		} else {
			a.state = StateIdle
			a.position = decimal.Zero
		}
	}
}
