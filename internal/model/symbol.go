package model

// SymbolDescriptor describes one tradable instrument as reported by the
// exchange symbol list.
type SymbolDescriptor struct {
	Symbol         string `json:"symbol"`
	BaseCurrency   string `json:"base_currency"`
	QuoteCurrency  string `json:"quote_currency"`
	TradingEnabled bool   `json:"trading_enabled"`
}
