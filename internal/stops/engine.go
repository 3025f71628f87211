package stops

import (
	"math"
	"sort"
	"sync"
	"time"

	coreerrors "github.com/tradesafe/risk-core/internal/errors"
	"github.com/tradesafe/risk-core/internal/logger"
	"github.com/tradesafe/risk-core/pkg/types"
)

// Config holds the externally supplied trailing-stop defaults.
type Config struct {
	DefaultType          StopType
	ActivationProfitPct  float64
	TrailDistance        float64 // percent
	ATRPeriod            int
	ATRMultiplier        float64
	ChandelierPeriod     int
	ChandelierMultiplier float64
	ReturnsPeriod        int // dynamic stop volatility lookback
}

// DefaultConfig returns the documented stop defaults.
func DefaultConfig() Config {
	return Config{
		DefaultType:          StopTypePercentage,
		ActivationProfitPct:  2.0,
		TrailDistance:        1.0,
		ATRPeriod:            14,
		ATRMultiplier:        2.0,
		ChandelierPeriod:     22,
		ChandelierMultiplier: 3.0,
		ReturnsPeriod:        20,
	}
}

// TriggerEvent is emitted when a stop fires. Consumed by the
// notification dispatcher and the orchestrating loop.
type TriggerEvent struct {
	Symbol       string    `json:"symbol"`
	PositionID   string    `json:"position_id"`
	StopPrice    float64   `json:"stop_price"`
	CurrentPrice float64   `json:"current_price"`
	EntryPrice   float64   `json:"entry_price"`
	Timestamp    time.Time `json:"timestamp"`
}

// Statistics is a snapshot of the engine's counters.
type Statistics struct {
	ActiveStops    int `json:"active_stops"`
	ActivatedStops int `json:"activated_stops"`
	TriggeredTotal int `json:"triggered_total"`
}

// Engine manages trailing stops for open positions. The position map
// may be updated from a periodic price-tick source concurrently with
// add/remove from the main loop, so all map access is serialized.
// Within one position, ticks must carry their source timestamp and
// arrive in increasing time order; stale ticks are rejected.
type Engine struct {
	cfg Config
	log *logger.Logger

	mu             sync.RWMutex
	stops          map[string]*TrailingStop
	triggeredTotal int
}

// NewEngine creates a trailing stop engine.
func NewEngine(cfg Config, log *logger.Logger) *Engine {
	return &Engine{
		cfg:   cfg,
		log:   log,
		stops: make(map[string]*TrailingStop),
	}
}

func (e *Engine) calculatorFor(stopType StopType) (stopCalculator, bool) {
	switch stopType {
	case StopTypePercentage:
		return percentageStop{}, true
	case StopTypeATR:
		return atrStop{period: e.cfg.ATRPeriod, multiplier: e.cfg.ATRMultiplier}, true
	case StopTypeChandelier:
		return chandelierStop{period: e.cfg.ChandelierPeriod, multiplier: e.cfg.ChandelierMultiplier}, true
	case StopTypeDynamic:
		return dynamicStop{returnsPeriod: e.cfg.ReturnsPeriod}, true
	default:
		return nil, false
	}
}

// AddPosition creates a trailing stop for a newly opened position.
// The stop price starts at the un-activated candidate for the entry
// price, so a never-activated stop still carries a sane, inert value.
func (e *Engine) AddPosition(symbol, positionID string, entryPrice float64, stopType StopType, activationProfitPct, trailDistance float64) (*TrailingStop, error) {
	if entryPrice <= 0 || math.IsNaN(entryPrice) || math.IsInf(entryPrice, 0) {
		return nil, coreerrors.Newf(coreerrors.ErrorCategoryInvariant, "stops", "AddPosition",
			"entry price must be positive and finite, got %v", entryPrice)
	}
	if stopType == "" {
		stopType = e.cfg.DefaultType
	}
	calc, ok := e.calculatorFor(stopType)
	if !ok {
		return nil, coreerrors.Newf(coreerrors.ErrorCategoryInvariant, "stops", "AddPosition",
			"unknown stop type %q", stopType)
	}
	if activationProfitPct <= 0 {
		activationProfitPct = e.cfg.ActivationProfitPct
	}
	if trailDistance <= 0 {
		trailDistance = e.cfg.TrailDistance
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.stops[positionID]; exists {
		return nil, coreerrors.Newf(coreerrors.ErrorCategoryInvariant, "stops", "AddPosition",
			"position %s already has a trailing stop", positionID)
	}

	now := time.Now()
	ts := &TrailingStop{
		Symbol:              symbol,
		PositionID:          positionID,
		EntryPrice:          entryPrice,
		CurrentPrice:        entryPrice,
		HighestPrice:        entryPrice,
		StopType:            stopType,
		ActivationProfitPct: activationProfitPct,
		TrailDistance:       trailDistance,
		CreatedAt:           now,
		LastUpdated:         now,
		calc:                calc,
	}
	ts.StopPrice = calc.CandidateStop(ts, nil)

	e.stops[positionID] = ts

	if e.log != nil {
		e.log.Info("trailing stop added for %s position %s: type=%s entry=%.4f stop=%.4f",
			symbol, positionID, stopType, entryPrice, ts.StopPrice)
	}
	return ts, nil
}

// UpdatePosition applies a price tick to a position's stop. Ticks
// carry their source timestamp; a tick older than the stop's last
// update is rejected with an INVARIANT error, so a stale out-of-order
// low can never trigger an activated stop. It returns a trigger event
// exactly when the stop is activated and the price has fallen to or
// below the stop level; the candidate stop only ever moves the stop
// price upward.
func (e *Engine) UpdatePosition(positionID string, currentPrice float64, tickTime time.Time, series []types.OHLCV) (*TriggerEvent, error) {
	if currentPrice <= 0 || math.IsNaN(currentPrice) || math.IsInf(currentPrice, 0) {
		return nil, coreerrors.Newf(coreerrors.ErrorCategoryInvariant, "stops", "UpdatePosition",
			"tick price must be positive and finite, got %v", currentPrice)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	ts, exists := e.stops[positionID]
	if !exists {
		return nil, coreerrors.Newf(coreerrors.ErrorCategoryInvariant, "stops", "UpdatePosition",
			"no trailing stop for position %s", positionID)
	}

	if tickTime.Before(ts.LastUpdated) {
		return nil, coreerrors.Newf(coreerrors.ErrorCategoryInvariant, "stops", "UpdatePosition",
			"tick at %s for position %s is older than last update %s",
			tickTime.Format(time.RFC3339Nano), positionID, ts.LastUpdated.Format(time.RFC3339Nano))
	}

	ts.CurrentPrice = currentPrice
	ts.LastUpdated = tickTime
	if currentPrice > ts.HighestPrice {
		ts.HighestPrice = currentPrice
	}

	if !ts.Activated {
		profitPct := (currentPrice - ts.EntryPrice) / ts.EntryPrice * 100
		if profitPct >= ts.ActivationProfitPct {
			ts.Activated = true
			if e.log != nil {
				e.log.Info("trailing stop activated for position %s at %.4f (+%.2f%%)",
					positionID, currentPrice, profitPct)
			}
		}
	}

	if ts.Activated {
		if candidate := ts.calc.CandidateStop(ts, series); candidate > ts.StopPrice {
			ts.StopPrice = candidate
		}

		if currentPrice <= ts.StopPrice {
			e.triggeredTotal++
			if e.log != nil {
				e.log.Risk("trailing stop triggered for %s position %s: price=%.4f stop=%.4f",
					ts.Symbol, positionID, currentPrice, ts.StopPrice)
			}
			return &TriggerEvent{
				Symbol:       ts.Symbol,
				PositionID:   positionID,
				StopPrice:    ts.StopPrice,
				CurrentPrice: currentPrice,
				EntryPrice:   ts.EntryPrice,
				Timestamp:    ts.LastUpdated,
			}, nil
		}
	}

	return nil, nil
}

// RemovePosition deletes the stop when a position closes for any
// reason, manual or triggered.
func (e *Engine) RemovePosition(positionID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.stops, positionID)
}

// GetStop returns a copy of one position's stop state.
func (e *Engine) GetStop(positionID string) (TrailingStop, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ts, exists := e.stops[positionID]
	if !exists {
		return TrailingStop{}, false
	}
	return *ts, true
}

// GetStops returns a copy of all stop states, ordered by position id,
// for the dashboard's read-only snapshot endpoint.
func (e *Engine) GetStops() []TrailingStop {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]TrailingStop, 0, len(e.stops))
	for _, ts := range e.stops {
		out = append(out, *ts)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PositionID < out[j].PositionID })
	return out
}

// GetStatistics returns the engine counters. Two calls with no
// intervening update return identical values.
func (e *Engine) GetStatistics() Statistics {
	e.mu.RLock()
	defer e.mu.RUnlock()

	activated := 0
	for _, ts := range e.stops {
		if ts.Activated {
			activated++
		}
	}
	return Statistics{
		ActiveStops:    len(e.stops),
		ActivatedStops: activated,
		TriggeredTotal: e.triggeredTotal,
	}
}
