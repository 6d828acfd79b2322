package agent

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"reversal-traderv1/internal/detector"
	"reversal-traderv1/internal/model"
)

type placedOrder struct {
	clientOid string
	side      model.Side
	symbol    string
	spec      model.OrderSpec
}

// fakeExchange serves canned candles and records order placements.
type fakeExchange struct {
	candles    []model.Candle
	candlesErr error
	placeErr   error
	placed     []placedOrder
}

func (f *fakeExchange) ListSymbols(ctx context.Context, market string) ([]model.SymbolDescriptor, error) {
	return nil, nil
}

func (f *fakeExchange) Get24hStats(ctx context.Context, symbol string) (model.Stats, error) {
	return model.Stats{}, nil
}

func (f *fakeExchange) GetCandles(ctx context.Context, symbol string, tf model.Timeframe, startAt int64) ([]model.Candle, error) {
	if f.candlesErr != nil {
		return nil, f.candlesErr
	}
	return f.candles, nil
}

func (f *fakeExchange) PlaceMarketOrder(ctx context.Context, clientOid string, side model.Side, symbol string, spec model.OrderSpec) (string, error) {
	if f.placeErr != nil {
		return "", f.placeErr
	}
	f.placed = append(f.placed, placedOrder{clientOid, side, symbol, spec})
	return "ORDER-1", nil
}

func (f *fakeExchange) ListOrders(ctx context.Context) ([]model.Order, error) {
	return nil, nil
}

var testParams = detector.Params{
	FastPeriod:        3,
	SlowPeriod:        5,
	SignalPeriod:      3,
	UpConfirmations:   2,
	DownConfirmations: 2,
}

// risingCandles produces an accelerating rise whose oscillator histogram
// confirms a BUY with the test parameters.
func risingCandles(n int) []model.Candle {
	out := make([]model.Candle, n)
	v := 1.0
	for i := range out {
		out[i] = model.Candle{Time: int64(i+1) * 60, Open: v, High: v, Low: v, Close: v}
		v *= 1.5
	}
	return out
}

// fallingCandles is the mirror image, confirming a SELL.
func fallingCandles(n int) []model.Candle {
	out := make([]model.Candle, n)
	v := 1e6
	for i := range out {
		out[i] = model.Candle{Time: int64(i+1) * 60, Open: v, High: v, Low: v, Close: v}
		v *= 0.6
	}
	return out
}

func newTestAgent(ex model.Exchange, hooks Hooks) *Agent {
	a := New(Config{
		Symbol:     "XYZ-USDT",
		Timeframe:  model.TF1Min,
		TradeFunds: decimal.NewFromInt(25),
	}, ex, detector.New(testParams), hooks, slog.Default())
	a.jitter = func() float64 { return 0 } // disable the polling gate
	a.Start()
	return a
}

func TestCheck_BuySignalPlacesOneOrder(t *testing.T) {
	ex := &fakeExchange{candles: risingCandles(26)}
	a := newTestAgent(ex, Hooks{})

	now := time.Unix(2000, 0)
	a.Check(context.Background(), now)

	if len(ex.placed) != 1 {
		t.Fatalf("expected exactly 1 order, got %d", len(ex.placed))
	}
	ord := ex.placed[0]
	if ord.side != model.SideBuy || ord.symbol != "XYZ-USDT" {
		t.Errorf("unexpected order: %+v", ord)
	}
	if !ord.spec.Funds.Equal(decimal.NewFromInt(25)) {
		t.Errorf("expected funds=25, got %s", ord.spec.Funds)
	}

	info := a.Snapshot()
	if info.State != StateBuying {
		t.Errorf("expected BUYING, got %s", info.State)
	}
	if info.LastSignal != detector.SignalBuy {
		t.Errorf("expected lastSignal BUY, got %s", info.LastSignal)
	}
}

func TestCheck_StickySignalPreventsDoubleSubmit(t *testing.T) {
	ex := &fakeExchange{candles: risingCandles(26)}
	a := newTestAgent(ex, Hooks{})

	now := time.Unix(2000, 0)
	a.Check(context.Background(), now)
	if len(ex.placed) != 1 {
		t.Fatalf("expected 1 order after first check, got %d", len(ex.placed))
	}

	// The signal keeps firing BUY. Even after the fill moves the agent
	// back through the cycle to IDLE, lastSignal stays BUY and must
	// suppress a duplicate submission within the same signal run.
	a.SetOrder(model.Order{Symbol: "XYZ-USDT", Side: model.SideSell, IsActive: false})
	if got := a.Snapshot().State; got != StateIdle {
		t.Fatalf("expected IDLE after inactive sell, got %s", got)
	}

	for i := 0; i < 3; i++ {
		now = now.Add(time.Minute)
		a.Check(context.Background(), now)
	}
	if len(ex.placed) != 1 {
		t.Fatalf("expected no further orders on persisting BUY signal, got %d", len(ex.placed))
	}
}

func TestCheck_SellFromPosition(t *testing.T) {
	ex := &fakeExchange{candles: fallingCandles(26)}
	a := newTestAgent(ex, Hooks{})

	// A filled buy puts the agent in POSITION holding 3.5 units.
	a.SetOrder(model.Order{
		Symbol:   "XYZ-USDT",
		Side:     model.SideBuy,
		IsActive: false,
		DealSize: decimal.NewFromFloat(3.5),
	})

	a.Check(context.Background(), time.Unix(2000, 0))

	if len(ex.placed) != 1 {
		t.Fatalf("expected 1 sell order, got %d", len(ex.placed))
	}
	ord := ex.placed[0]
	if ord.side != model.SideSell {
		t.Fatalf("expected sell, got %s", ord.side)
	}
	if !ord.spec.Size.Equal(decimal.NewFromFloat(3.5)) {
		t.Errorf("expected size=3.5 (full position), got %s", ord.spec.Size)
	}
	if got := a.Snapshot().State; got != StateSelling {
		t.Errorf("expected SELLING, got %s", got)
	}
}

func TestCheck_DrainSuppressesBuys(t *testing.T) {
	ex := &fakeExchange{candles: risingCandles(26)}
	a := newTestAgent(ex, Hooks{})
	a.SetDrain(true)

	a.Check(context.Background(), time.Unix(2000, 0))

	if len(ex.placed) != 0 {
		t.Fatalf("expected no orders in drain mode, got %d", len(ex.placed))
	}
	if got := a.Snapshot().State; got != StateIdle {
		t.Errorf("expected IDLE, got %s", got)
	}
}

func TestCheck_DrainStillUnwindsPositions(t *testing.T) {
	ex := &fakeExchange{candles: fallingCandles(26)}
	a := newTestAgent(ex, Hooks{})
	a.SetDrain(true)
	a.SetOrder(model.Order{
		Symbol:   "XYZ-USDT",
		Side:     model.SideBuy,
		IsActive: false,
		DealSize: decimal.NewFromInt(2),
	})

	a.Check(context.Background(), time.Unix(2000, 0))

	if len(ex.placed) != 1 || ex.placed[0].side != model.SideSell {
		t.Fatalf("expected drain mode to still place the sell, got %+v", ex.placed)
	}
}

func TestCheck_UpstreamErrorLeavesStateUnchanged(t *testing.T) {
	ex := &fakeExchange{candlesErr: errors.New("exchange down")}
	a := newTestAgent(ex, Hooks{})

	before := a.Snapshot()
	a.Check(context.Background(), time.Unix(2000, 0))
	after := a.Snapshot()

	if after.State != before.State || after.LastSignal != before.LastSignal {
		t.Fatalf("state changed on upstream error: %+v -> %+v", before, after)
	}
	if len(ex.placed) != 0 {
		t.Fatalf("expected no orders, got %d", len(ex.placed))
	}
}

func TestCheck_OrderErrorKeepsSignalRetryable(t *testing.T) {
	ex := &fakeExchange{candles: risingCandles(26), placeErr: errors.New("insufficient balance")}
	a := newTestAgent(ex, Hooks{})

	now := time.Unix(2000, 0)
	a.Check(context.Background(), now)

	info := a.Snapshot()
	if info.State != StateIdle {
		t.Fatalf("expected IDLE after failed placement, got %s", info.State)
	}
	if info.LastSignal == detector.SignalBuy {
		t.Fatal("lastSignal must not latch on a failed placement")
	}

	// Next tick the placement succeeds.
	ex.placeErr = nil
	a.Check(context.Background(), now.Add(time.Minute))
	if len(ex.placed) != 1 {
		t.Fatalf("expected retry to place the order, got %d", len(ex.placed))
	}
}

func TestCheck_JitterGateSkipsEarlyRuns(t *testing.T) {
	ex := &fakeExchange{candles: risingCandles(26)}
	a := newTestAgent(ex, Hooks{})
	a.jitter = func() float64 { return 1.0 } // gate = exactly one timeframe

	now := time.Unix(100000, 0)
	a.Check(context.Background(), now) // first run always proceeds
	if len(ex.placed) != 1 {
		t.Fatalf("expected first check to run, got %d orders", len(ex.placed))
	}

	// 30s later: inside the gate, the check must be skipped entirely —
	// no candle fetch happens.
	calls := len(ex.placed)
	ex.candlesErr = errors.New("should not be called")
	a.Check(context.Background(), now.Add(30*time.Second))
	if len(ex.placed) != calls {
		t.Fatal("expected gated check to place nothing")
	}
	if got := a.Snapshot().LastRun; !got.Equal(now) {
		t.Fatalf("gated check must not advance lastRun, got %v", got)
	}
}

func TestCheck_NotRunningIsNoop(t *testing.T) {
	ex := &fakeExchange{candles: risingCandles(26)}
	a := newTestAgent(ex, Hooks{})
	a.Stop()

	a.Check(context.Background(), time.Unix(2000, 0))
	if len(ex.placed) != 0 {
		t.Fatalf("expected stopped agent to do nothing, got %d orders", len(ex.placed))
	}
}

func TestSetOrder_TransitionTable(t *testing.T) {
	tests := []struct {
		name     string
		order    model.Order
		wantSt   State
		wantPos  decimal.Decimal
	}{
		{
			name:    "active buy maps to BUYING",
			order:   model.Order{Side: model.SideBuy, IsActive: true},
			wantSt:  StateBuying,
			wantPos: decimal.Zero,
		},
		{
			name:    "inactive buy maps to POSITION with deal size",
			order:   model.Order{Side: model.SideBuy, IsActive: false, DealSize: decimal.NewFromInt(7)},
			wantSt:  StatePosition,
			wantPos: decimal.NewFromInt(7),
		},
		{
			name:    "active sell maps to SELLING",
			order:   model.Order{Side: model.SideSell, IsActive: true},
			wantSt:  StateSelling,
			wantPos: decimal.Zero,
		},
		{
			name:    "inactive sell maps to IDLE and resets position",
			order:   model.Order{Side: model.SideSell, IsActive: false, DealSize: decimal.NewFromInt(9)},
			wantSt:  StateIdle,
			wantPos: decimal.Zero,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAgent(&fakeExchange{}, Hooks{})
			// Seed a prior position so resets are observable.
			a.SetOrder(model.Order{Side: model.SideBuy, IsActive: false, DealSize: decimal.NewFromInt(42)})

			a.SetOrder(tt.order)
			info := a.Snapshot()
			if info.State != tt.wantSt {
				t.Errorf("state = %s, want %s", info.State, tt.wantSt)
			}
			if tt.wantSt == StatePosition || tt.wantSt == StateIdle {
				if !info.Position.Equal(tt.wantPos) {
					t.Errorf("position = %s, want %s", info.Position, tt.wantPos)
				}
			}
		})
	}
}

func TestHooks_OrderEventEmitted(t *testing.T) {
	var events []OrderEvent
	ex := &fakeExchange{candles: risingCandles(26)}
	a := newTestAgent(ex, Hooks{
		OnOrder: func(ev OrderEvent) { events = append(events, ev) },
	})

	a.Check(context.Background(), time.Unix(2000, 0))

	if len(events) != 1 {
		t.Fatalf("expected 1 order event, got %d", len(events))
	}
	if events[0].Symbol != "XYZ-USDT" || events[0].Side != model.SideBuy {
		t.Errorf("unexpected event: %+v", events[0])
	}
}
