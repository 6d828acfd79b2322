package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Stats is one universe entry: the cached 24h statistics for a symbol.
// Entries are created/refreshed by the universe scanner and read-only
// to everything else.
type Stats struct {
	Symbol       string          `json:"symbol"`
	LastPrice    decimal.Decimal `json:"last_price"`
	VolumeQuote  decimal.Decimal `json:"volume_quote"` // 24h volume in quote currency
	ChangeRate   decimal.Decimal `json:"change_rate"`  // 24h change, e.g. 0.05 = +5%
	CapturedAt   time.Time       `json:"captured_at"`
}

// Fresh reports whether the entry is still within the staleness budget.
func (s *Stats) Fresh(now time.Time, maxAge time.Duration) bool {
	return now.Sub(s.CapturedAt) <= maxAge
}
