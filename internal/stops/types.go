package stops

import (
	"time"

	"github.com/tradesafe/risk-core/internal/indicators"
	"github.com/tradesafe/risk-core/pkg/types"
)

// StopType identifies the candidate-stop algorithm for a position.
type StopType string

const (
	StopTypePercentage StopType = "percentage"
	StopTypeATR        StopType = "atr"
	StopTypeChandelier StopType = "chandelier"
	StopTypeDynamic    StopType = "dynamic"
)

// TrailingStop is the exit-level state for one open position.
// HighestPrice is monotonically non-decreasing from creation;
// StopPrice is monotonically non-decreasing once Activated.
type TrailingStop struct {
	Symbol              string    `json:"symbol"`
	PositionID          string    `json:"position_id"`
	EntryPrice          float64   `json:"entry_price"`
	CurrentPrice        float64   `json:"current_price"`
	StopPrice           float64   `json:"stop_price"`
	HighestPrice        float64   `json:"highest_price"`
	StopType            StopType  `json:"stop_type"`
	ActivationProfitPct float64   `json:"activation_profit_pct"`
	TrailDistance       float64   `json:"trail_distance"` // percent
	Activated           bool      `json:"activated"`
	CreatedAt           time.Time `json:"created_at"`
	LastUpdated         time.Time `json:"last_updated"`

	calc stopCalculator
}

// stopCalculator computes a candidate stop price for a position. Each
// variant owns its fallback-to-percentage behavior when the market
// series is too short for its lookback.
type stopCalculator interface {
	CandidateStop(ts *TrailingStop, series []types.OHLCV) float64
}

// percentageStop trails a fixed percentage below the highest price.
type percentageStop struct{}

func (percentageStop) CandidateStop(ts *TrailingStop, _ []types.OHLCV) float64 {
	return ts.HighestPrice * (1 - ts.TrailDistance/100)
}

// atrStop trails a multiple of the Average True Range below the
// highest price.
type atrStop struct {
	period     int
	multiplier float64
}

func (s atrStop) CandidateStop(ts *TrailingStop, series []types.OHLCV) float64 {
	atr, err := indicators.CalculateATR(series, s.period)
	if err != nil || atr <= 0 {
		return percentageStop{}.CandidateStop(ts, series)
	}
	return ts.HighestPrice - atr*s.multiplier
}

// chandelierStop anchors to the highest high of a lookback window
// minus a volatility-scaled offset.
type chandelierStop struct {
	period     int
	multiplier float64
}

func (s chandelierStop) CandidateStop(ts *TrailingStop, series []types.OHLCV) float64 {
	highest, err := indicators.HighestHigh(series, s.period)
	if err != nil {
		return percentageStop{}.CandidateStop(ts, series)
	}
	atr, err := indicators.CalculateATR(series, s.period)
	if err != nil || atr <= 0 {
		return percentageStop{}.CandidateStop(ts, series)
	}
	return highest - atr*s.multiplier
}

// dynamicStop widens the trail distance with recent return volatility,
// applied as a percentage-style stop.
type dynamicStop struct {
	returnsPeriod int
}

func (s dynamicStop) CandidateStop(ts *TrailingStop, series []types.OHLCV) float64 {
	stdev, err := indicators.ReturnsStdDev(series, s.returnsPeriod)
	if err != nil {
		return percentageStop{}.CandidateStop(ts, series)
	}
	trail := ts.TrailDistance
	if dynamic := stdev * 100 * 2; dynamic > trail {
		trail = dynamic
	}
	return ts.HighestPrice * (1 - trail/100)
}
