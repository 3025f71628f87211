package types

import "time"

// TradeAction is the direction a strategy wants to trade.
type TradeAction int

const (
	ActionHold TradeAction = iota
	ActionBuy
	ActionSell
)

func (ta TradeAction) String() string {
	switch ta {
	case ActionHold:
		return "HOLD"
	case ActionBuy:
		return "BUY"
	case ActionSell:
		return "SELL"
	default:
		return "UNKNOWN"
	}
}

// TradeSignal is one strategy's opinion for the current iteration.
type TradeSignal struct {
	Strategy   string                 `json:"strategy"`
	Action     TradeAction            `json:"action"`
	Confidence float64                `json:"confidence"` // 0.0 to 1.0
	Symbol     string                 `json:"symbol"`
	EntryPrice float64                `json:"entry_price"`
	StopLoss   float64                `json:"stop_loss,omitempty"`
	TakeProfit float64                `json:"take_profit,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// EnsembleDecision is the aggregated signal produced by ensemble voting.
// Strategy is always "ensemble".
type EnsembleDecision struct {
	TradeSignal
	Method        string `json:"method"`
	NumStrategies int    `json:"num_strategies"`
}
