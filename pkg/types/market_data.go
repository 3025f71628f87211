package types

import "time"

// OHLCV is a single market data observation.
type OHLCV struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// MarketBatch is an ordered series of OHLCV rows for one symbol.
// Insertion order is chronological order; duplicate timestamps are a
// validation error, not a programming error.
type MarketBatch struct {
	Symbol string  `json:"symbol"`
	Rows   []OHLCV `json:"rows"`
}

// Len returns the number of rows in the batch.
func (b *MarketBatch) Len() int {
	return len(b.Rows)
}

// Closes returns the close price series of the batch.
func (b *MarketBatch) Closes() []float64 {
	out := make([]float64, len(b.Rows))
	for i, r := range b.Rows {
		out[i] = r.Close
	}
	return out
}

// Volumes returns the volume series of the batch.
func (b *MarketBatch) Volumes() []float64 {
	out := make([]float64, len(b.Rows))
	for i, r := range b.Rows {
		out[i] = r.Volume
	}
	return out
}
