package scanner

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"reversal-traderv1/internal/model"
)

// fakeExchange serves a fixed symbol list and counts stats fetches.
type fakeExchange struct {
	symbols    []model.SymbolDescriptor
	symbolsErr error
	statsErr   map[string]error
	statsCalls map[string]int
}

func (f *fakeExchange) ListSymbols(ctx context.Context, market string) ([]model.SymbolDescriptor, error) {
	if f.symbolsErr != nil {
		return nil, f.symbolsErr
	}
	return f.symbols, nil
}

func (f *fakeExchange) Get24hStats(ctx context.Context, symbol string) (model.Stats, error) {
	if f.statsCalls == nil {
		f.statsCalls = make(map[string]int)
	}
	f.statsCalls[symbol]++
	if err := f.statsErr[symbol]; err != nil {
		return model.Stats{}, err
	}
	return model.Stats{
		Symbol:      symbol,
		LastPrice:   decimal.NewFromInt(1),
		VolumeQuote: decimal.NewFromInt(1000000),
		ChangeRate:  decimal.NewFromFloat(0.1),
	}, nil
}

func (f *fakeExchange) GetCandles(ctx context.Context, symbol string, tf model.Timeframe, startAt int64) ([]model.Candle, error) {
	return nil, nil
}

func (f *fakeExchange) PlaceMarketOrder(ctx context.Context, clientOid string, side model.Side, symbol string, spec model.OrderSpec) (string, error) {
	return "", nil
}

func (f *fakeExchange) ListOrders(ctx context.Context) ([]model.Order, error) {
	return nil, nil
}

func usdtSymbol(sym string) model.SymbolDescriptor {
	return model.SymbolDescriptor{Symbol: sym, QuoteCurrency: "USDT", TradingEnabled: true}
}

func TestSliceSize(t *testing.T) {
	tests := []struct {
		universe int
		maxAge   time.Duration
		want     int
	}{
		{500, 60 * time.Minute, 18}, // ceil(500/60)*2
		{60, 60 * time.Minute, 2},
		{61, 60 * time.Minute, 4},
		{10, 10 * time.Minute, 2},
		{3, time.Minute, 6},
	}
	for _, tt := range tests {
		if got := sliceSize(tt.universe, tt.maxAge); got != tt.want {
			t.Errorf("sliceSize(%d, %s) = %d, want %d", tt.universe, tt.maxAge, got, tt.want)
		}
	}
}

func TestRefresh_StaticFilter(t *testing.T) {
	ex := &fakeExchange{symbols: []model.SymbolDescriptor{
		usdtSymbol("AAA-USDT"),
		usdtSymbol("BAD-USDT"),
		{Symbol: "BBB-BTC", QuoteCurrency: "BTC", TradingEnabled: true},
		{Symbol: "CCC-USDT", QuoteCurrency: "USDT", TradingEnabled: false},
	}}
	s := New(Config{
		QuoteCurrency: "USDT",
		MaxAge:        time.Hour,
		DenyList:      []string{"BAD-USDT"},
	}, ex, nil, slog.Default())

	if err := s.Refresh(context.Background(), time.Unix(1000, 0)); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}

	if _, ok := s.Entry("AAA-USDT"); !ok {
		t.Error("expected AAA-USDT in the cache")
	}
	for _, sym := range []string{"BAD-USDT", "BBB-BTC", "CCC-USDT"} {
		if _, ok := s.Entry(sym); ok {
			t.Errorf("expected %s filtered out", sym)
		}
	}
}

func TestRefresh_AllowListRestricts(t *testing.T) {
	ex := &fakeExchange{symbols: []model.SymbolDescriptor{
		usdtSymbol("AAA-USDT"),
		usdtSymbol("BBB-USDT"),
	}}
	s := New(Config{
		QuoteCurrency: "USDT",
		MaxAge:        time.Hour,
		AllowList:     []string{"BBB-USDT"},
	}, ex, nil, slog.Default())

	if err := s.Refresh(context.Background(), time.Unix(1000, 0)); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if _, ok := s.Entry("AAA-USDT"); ok {
		t.Error("expected AAA-USDT excluded by allow-list")
	}
	if _, ok := s.Entry("BBB-USDT"); !ok {
		t.Error("expected BBB-USDT present")
	}
}

func TestRefresh_SliceBoundsPerTick(t *testing.T) {
	var symbols []model.SymbolDescriptor
	for _, sym := range []string{"A", "B", "C", "D", "E", "F", "G", "H", "I", "J"} {
		symbols = append(symbols, usdtSymbol(sym+"-USDT"))
	}
	ex := &fakeExchange{symbols: symbols}
	// universe=10, maxAge=10min: slice = ceil(10/10)*2 = 2 per tick.
	s := New(Config{QuoteCurrency: "USDT", MaxAge: 10 * time.Minute}, ex, nil, slog.Default())

	if err := s.Refresh(context.Background(), time.Unix(1000, 0)); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if got := len(s.Universe()); got != 2 {
		t.Fatalf("expected 2 entries after one tick, got %d", got)
	}
	if s.Complete() {
		t.Fatal("universe must not be complete while entries are missing")
	}

	// Five ticks cover all ten symbols; the sixth finds nothing stale
	// and latches completeness.
	now := time.Unix(1000, 0)
	for i := 0; i < 5; i++ {
		now = now.Add(time.Minute)
		if err := s.Refresh(context.Background(), now); err != nil {
			t.Fatalf("refresh failed: %v", err)
		}
	}
	if got := len(s.Universe()); got != 10 {
		t.Fatalf("expected full universe, got %d", got)
	}
	if !s.Complete() {
		t.Fatal("expected universe complete once nothing is stale")
	}
}

func TestRefresh_SymbolListErrorAbortsTick(t *testing.T) {
	ex := &fakeExchange{symbolsErr: errors.New("503")}
	s := New(Config{QuoteCurrency: "USDT", MaxAge: time.Hour}, ex, nil, slog.Default())

	if err := s.Refresh(context.Background(), time.Unix(1000, 0)); err == nil {
		t.Fatal("expected error from symbol list failure")
	}
	if len(s.Universe()) != 0 {
		t.Fatal("expected no cache mutation on aborted refresh")
	}
}

func TestRefresh_PerSymbolErrorSkips(t *testing.T) {
	ex := &fakeExchange{
		symbols: []model.SymbolDescriptor{
			usdtSymbol("AAA-USDT"),
			usdtSymbol("BBB-USDT"),
		},
		statsErr: map[string]error{"AAA-USDT": errors.New("timeout")},
	}
	s := New(Config{QuoteCurrency: "USDT", MaxAge: time.Hour}, ex, nil, slog.Default())

	if err := s.Refresh(context.Background(), time.Unix(1000, 0)); err != nil {
		t.Fatalf("batch must not abort on one symbol: %v", err)
	}
	if _, ok := s.Entry("BBB-USDT"); !ok {
		t.Error("expected BBB-USDT refreshed despite AAA failure")
	}
	if _, ok := s.Entry("AAA-USDT"); ok {
		t.Error("expected AAA-USDT absent after fetch failure")
	}

	// The failed symbol is retried on the next tick.
	if err := s.Refresh(context.Background(), time.Unix(1060, 0)); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if got := ex.statsCalls["AAA-USDT"]; got != 2 {
		t.Errorf("expected AAA-USDT retried (2 calls), got %d", got)
	}
}

func TestRefresh_FreshEntriesNotRefetched(t *testing.T) {
	ex := &fakeExchange{symbols: []model.SymbolDescriptor{usdtSymbol("AAA-USDT")}}
	s := New(Config{QuoteCurrency: "USDT", MaxAge: time.Hour}, ex, nil, slog.Default())

	now := time.Unix(1000, 0)
	if err := s.Refresh(context.Background(), now); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if err := s.Refresh(context.Background(), now.Add(time.Minute)); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if got := ex.statsCalls["AAA-USDT"]; got != 1 {
		t.Errorf("expected fresh entry skipped, got %d fetches", got)
	}
}
