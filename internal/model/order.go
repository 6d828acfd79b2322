package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is an order direction as used on the wire.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Order is the subset of an exchange order the core consumes. The
// exchange is the source of truth for fills; orders are read-only here.
type Order struct {
	ID        string          `json:"id"`
	Symbol    string          `json:"symbol"`
	Side      Side            `json:"side"`
	IsActive  bool            `json:"is_active"`
	DealSize  decimal.Decimal `json:"deal_size"` // filled base quantity
	CreatedAt time.Time       `json:"created_at"`
}

// OrderSpec sizes a market order: exactly one of Funds (quote amount,
// buys) or Size (base quantity, sells) is set.
type OrderSpec struct {
	Funds decimal.Decimal
	Size  decimal.Decimal
}
