package types

import "time"

// Position is one open position tracked by the orchestrating loop.
type Position struct {
	ID         string    `json:"id"`
	Symbol     string    `json:"symbol"`
	Size       float64   `json:"size"` // quote currency notional
	EntryPrice float64   `json:"entry_price"`
	OpenedAt   time.Time `json:"opened_at"`
}

// PortfolioState is the loop-owned portfolio snapshot. The risk manager
// reads it and may request mutation, but never owns it.
type PortfolioState struct {
	Cash      float64              `json:"cash"`
	Equity    float64              `json:"equity"`
	Positions map[string]*Position `json:"positions"`
}
