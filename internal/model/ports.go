package model

import (
	"context"
	"fmt"
)

// Exchange is the port to the trading venue. The concrete binding lives
// in pkg/kucoin; tests substitute fakes.
type Exchange interface {
	// ListSymbols returns the tradable instruments for a market.
	ListSymbols(ctx context.Context, market string) ([]SymbolDescriptor, error)

	// Get24hStats returns rolling 24h statistics for one symbol.
	Get24hStats(ctx context.Context, symbol string) (Stats, error)

	// GetCandles returns candles ascending by time, starting at startAt
	// (Unix seconds, inclusive). startAt == 0 means "as far back as the
	// exchange allows".
	GetCandles(ctx context.Context, symbol string, tf Timeframe, startAt int64) ([]Candle, error)

	// PlaceMarketOrder submits a market order and returns the exchange
	// order ID. clientOid is the caller-chosen idempotency key.
	PlaceMarketOrder(ctx context.Context, clientOid string, side Side, symbol string, spec OrderSpec) (string, error)

	// ListOrders returns the account's recent orders, newest first.
	ListOrders(ctx context.Context) ([]Order, error)
}

// ExchangeError carries the venue's business error code on a non-success
// response envelope.
type ExchangeError struct {
	Code    string
	Message string
}

func (e *ExchangeError) Error() string {
	return fmt.Sprintf("exchange error %s: %s", e.Code, e.Message)
}
