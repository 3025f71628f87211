package main

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/tradesafe/risk-core/pkg/types"
)

// simulation is a self-contained stand-in for the external
// collaborators: it generates a random-walk market, emits simple
// momentum signals and fills orders instantly. Demo mode only.
type simulation struct {
	mu        sync.Mutex
	symbol    string
	price     float64
	equity    float64
	rng       *rand.Rand
	history   []types.OHLCV
	lastStamp time.Time
	nextID    int
}

func newSimulation(symbol string, equity float64) *simulation {
	return &simulation{
		symbol: symbol,
		price:  100,
		equity: equity,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// FetchBatch extends the random walk up to the current wall clock. The
// candle clock only moves forward, one minute per candle, so repeated
// fetches always return a strictly increasing timestamp series.
func (s *simulation) FetchBatch(ctx context.Context, symbol string) (*types.MarketBatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if s.lastStamp.IsZero() {
		// Seed enough history for the strategies' lookbacks.
		s.lastStamp = now.Add(-60 * time.Minute)
	}

	for stamp := s.lastStamp.Add(time.Minute); !stamp.After(now); stamp = stamp.Add(time.Minute) {
		drift := s.rng.NormFloat64() * 0.5
		open := s.price
		s.price = math.Max(1, s.price+drift)
		high := math.Max(open, s.price) + s.rng.Float64()*0.2
		low := math.Min(open, s.price) - s.rng.Float64()*0.2
		s.history = append(s.history, types.OHLCV{
			Timestamp: stamp,
			Open:      open,
			High:      high,
			Low:       low,
			Close:     s.price,
			Volume:    1000 + s.rng.Float64()*500,
		})
		s.lastStamp = stamp
	}
	if len(s.history) > 500 {
		s.history = s.history[len(s.history)-500:]
	}

	rows := make([]types.OHLCV, len(s.history))
	copy(rows, s.history)
	return &types.MarketBatch{Symbol: symbol, Rows: rows}, nil
}

// Signals emits naive momentum opinions from two pseudo-strategies.
func (s *simulation) Signals(ctx context.Context, batch *types.MarketBatch) (map[string]types.TradeSignal, error) {
	if batch.Len() < 20 {
		return map[string]types.TradeSignal{}, nil
	}

	last := batch.Rows[batch.Len()-1].Close
	prev := batch.Rows[batch.Len()-20].Close

	action := types.ActionHold
	if last > prev*1.01 {
		action = types.ActionBuy
	} else if last < prev*0.99 {
		action = types.ActionSell
	}

	signals := map[string]types.TradeSignal{
		"momentum": {
			Strategy:   "momentum",
			Action:     action,
			Confidence: 0.7,
			Symbol:     batch.Symbol,
			EntryPrice: last,
			Timestamp:  time.Now(),
		},
		"meanrev": {
			Strategy:   "meanrev",
			Action:     types.ActionHold,
			Confidence: 0.4,
			Symbol:     batch.Symbol,
			EntryPrice: last,
			Timestamp:  time.Now(),
		},
	}
	return signals, nil
}

func (s *simulation) Weights() map[string]float64 {
	return map[string]float64{"momentum": 0.6, "meanrev": 0.4}
}

func (s *simulation) Correlation(symbol string) float64 {
	return 0.3
}

func (s *simulation) OpenPosition(ctx context.Context, decision *types.EnsembleDecision, fraction float64) (*types.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	return &types.Position{
		ID:         fmt.Sprintf("sim-%d", s.nextID),
		Symbol:     decision.Symbol,
		Size:       s.equity * fraction,
		EntryPrice: decision.EntryPrice,
		OpenedAt:   time.Now(),
	}, nil
}

func (s *simulation) ClosePosition(ctx context.Context, positionID string) error {
	return nil
}
