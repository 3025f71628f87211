package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradesafe/risk-core/internal/ensemble"
	coreerrors "github.com/tradesafe/risk-core/internal/errors"
	"github.com/tradesafe/risk-core/internal/logger"
	"github.com/tradesafe/risk-core/internal/notifications"
	"github.com/tradesafe/risk-core/internal/risk"
	"github.com/tradesafe/risk-core/internal/safety"
	"github.com/tradesafe/risk-core/internal/stops"
	"github.com/tradesafe/risk-core/internal/validation"
	"github.com/tradesafe/risk-core/pkg/types"
)

type stubFeed struct {
	batch *types.MarketBatch
	err   error
	calls int
}

func (f *stubFeed) FetchBatch(_ context.Context, symbol string) (*types.MarketBatch, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.batch, nil
}

type stubStrategies struct {
	signals map[string]types.TradeSignal
	err     error
}

func (s *stubStrategies) Signals(context.Context, *types.MarketBatch) (map[string]types.TradeSignal, error) {
	return s.signals, s.err
}

type stubAllocator struct {
	weights map[string]float64
	corr    float64
}

func (a *stubAllocator) Weights() map[string]float64 { return a.weights }
func (a *stubAllocator) Correlation(string) float64  { return a.corr }

type stubExecutor struct {
	opened  []*types.Position
	closed  []string
	openErr error
	nextID  int
}

func (e *stubExecutor) OpenPosition(_ context.Context, decision *types.EnsembleDecision, fraction float64) (*types.Position, error) {
	if e.openErr != nil {
		return nil, e.openErr
	}
	e.nextID++
	pos := &types.Position{
		ID:         fmt.Sprintf("pos-%d", e.nextID),
		Symbol:     decision.Symbol,
		Size:       fraction,
		EntryPrice: decision.EntryPrice,
		OpenedAt:   time.Now(),
	}
	e.opened = append(e.opened, pos)
	return pos, nil
}

func (e *stubExecutor) ClosePosition(_ context.Context, positionID string) error {
	e.closed = append(e.closed, positionID)
	return nil
}

func cleanBatch(n int) *types.MarketBatch {
	base := time.Now().Add(-time.Duration(n+1) * time.Minute)
	rows := make([]types.OHLCV, n)
	price := 100.0
	for i := 0; i < n; i++ {
		open := price
		price += 0.1
		rows[i] = types.OHLCV{
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Open:      open,
			High:      price + 0.5,
			Low:       open - 0.5,
			Close:     price,
			Volume:    1000,
		}
	}
	return &types.MarketBatch{Symbol: "BTCUSDT", Rows: rows}
}

func buySignal(confidence float64) map[string]types.TradeSignal {
	return map[string]types.TradeSignal{
		"momentum": {
			Strategy:   "momentum",
			Action:     types.ActionBuy,
			Confidence: confidence,
			Symbol:     "BTCUSDT",
			EntryPrice: 105,
		},
	}
}

type fixture struct {
	pipeline  *Pipeline
	feed      *stubFeed
	executor  *stubExecutor
	portfolio *types.PortfolioState
	riskMgr   *risk.Manager
	stops     *stops.Engine
	breakers  *safety.Registry
}

// chdir switches the working directory for the duration of the test,
// standing in for t.Chdir which requires Go 1.24.
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(old) })
}

func newFixture(t *testing.T, feed *stubFeed, strategies *stubStrategies, executor *stubExecutor) *fixture {
	t.Helper()
	chdir(t, t.TempDir()) // file logger writes relative to the cwd

	log, err := logger.NewLogger("BTCUSDT")
	require.NoError(t, err)
	t.Cleanup(func() { log.Close() })

	breakerCfg := safety.Config{
		FailureThreshold: 2,
		SuccessThreshold: 1,
		Timeout:          time.Minute,
		HalfOpenMaxCalls: 1,
	}

	portfolio := &types.PortfolioState{
		Cash:      3000,
		Equity:    3000,
		Positions: make(map[string]*types.Position),
	}
	riskMgr := risk.NewManager(risk.DefaultConfig(), 3000, log)
	stopEngine := stops.NewEngine(stops.DefaultConfig(), log)
	breakers := safety.NewRegistry(breakerCfg, nil)

	p := NewPipeline(Deps{
		Symbol:     "BTCUSDT",
		Feed:       feed,
		Strategies: strategies,
		Allocator:  &stubAllocator{corr: 0.2},
		Executor:   executor,
		Validator:  validation.NewValidator(),
		Voter:      ensemble.NewVoter(ensemble.MethodWeightedAverage, 0.5),
		RiskMgr:    riskMgr,
		StopEngine: stopEngine,
		Breakers:   breakers,
		Dispatcher: notifications.NewDispatcher(notifications.NopNotifier{}, log),
		Logger:     log,
		Portfolio:  portfolio,
	})

	return &fixture{
		pipeline:  p,
		feed:      feed,
		executor:  executor,
		portfolio: portfolio,
		riskMgr:   riskMgr,
		stops:     stopEngine,
		breakers:  breakers,
	}
}

func TestRunIteration_BuyOpensPositionWithStop(t *testing.T) {
	fx := newFixture(t,
		&stubFeed{batch: cleanBatch(50)},
		&stubStrategies{signals: buySignal(0.7)},
		&stubExecutor{},
	)

	require.NoError(t, fx.pipeline.RunIteration(context.Background()))

	require.Len(t, fx.executor.opened, 1)
	pos := fx.executor.opened[0]
	assert.Contains(t, fx.portfolio.Positions, pos.ID)

	ts, exists := fx.stops.GetStop(pos.ID)
	require.True(t, exists)
	assert.Equal(t, pos.EntryPrice, ts.EntryPrice)
}

func TestRunIteration_RejectedBatchIsDataQualityError(t *testing.T) {
	bad := cleanBatch(50)
	bad.Rows[10].High = bad.Rows[10].Low - 1

	fx := newFixture(t,
		&stubFeed{batch: bad},
		&stubStrategies{signals: buySignal(0.7)},
		&stubExecutor{},
	)

	err := fx.pipeline.RunIteration(context.Background())

	require.Error(t, err)
	assert.True(t, coreerrors.IsDataQuality(err))
	assert.Empty(t, fx.executor.opened)
}

func TestRunIteration_NoConsensusIsNotAnError(t *testing.T) {
	fx := newFixture(t,
		&stubFeed{batch: cleanBatch(50)},
		&stubStrategies{signals: map[string]types.TradeSignal{
			"momentum": {Strategy: "momentum", Action: types.ActionHold, Confidence: 0.9, Symbol: "BTCUSDT"},
		}},
		&stubExecutor{},
	)

	require.NoError(t, fx.pipeline.RunIteration(context.Background()))
	assert.Empty(t, fx.executor.opened)
}

func TestRunIteration_FeedFailuresOpenBreaker(t *testing.T) {
	feed := &stubFeed{err: errors.New("feed down")}
	fx := newFixture(t, feed, &stubStrategies{}, &stubExecutor{})
	ctx := context.Background()

	// Threshold is 2: two failing fetches trip the breaker.
	require.Error(t, fx.pipeline.RunIteration(ctx))
	require.Error(t, fx.pipeline.RunIteration(ctx))

	attempted := feed.calls
	err := fx.pipeline.RunIteration(ctx)

	require.Error(t, err)
	assert.True(t, coreerrors.IsBreakerOpen(err))
	assert.Equal(t, attempted, feed.calls, "open breaker must not invoke the feed")
	assert.True(t, fx.breakers.HasOpenBreakers())
}

func TestRunIteration_RedStateBlocksAndReducesOnce(t *testing.T) {
	fx := newFixture(t,
		&stubFeed{batch: cleanBatch(50)},
		&stubStrategies{signals: buySignal(0.7)},
		&stubExecutor{},
	)
	fx.portfolio.Positions["old"] = &types.Position{ID: "old", Symbol: "BTCUSDT", Size: 100}
	fx.portfolio.Equity = 2520 // -16% against the 3000 daily start

	err := fx.pipeline.RunIteration(context.Background())

	require.Error(t, err)
	assert.True(t, coreerrors.IsRiskBlocked(err))
	assert.Empty(t, fx.executor.opened)
	assert.Equal(t, 50.0, fx.portfolio.Positions["old"].Size)

	// Still RED on the next pass: no second reduction.
	err = fx.pipeline.RunIteration(context.Background())
	require.Error(t, err)
	assert.Equal(t, 50.0, fx.portfolio.Positions["old"].Size)
}

func TestRunIteration_SellClosesSymbolPositions(t *testing.T) {
	fx := newFixture(t,
		&stubFeed{batch: cleanBatch(50)},
		&stubStrategies{signals: map[string]types.TradeSignal{
			"momentum": {Strategy: "momentum", Action: types.ActionSell, Confidence: 0.8, Symbol: "BTCUSDT", EntryPrice: 105},
		}},
		&stubExecutor{},
	)
	fx.portfolio.Positions["p1"] = &types.Position{ID: "p1", Symbol: "BTCUSDT", Size: 100}
	fx.portfolio.Positions["p2"] = &types.Position{ID: "p2", Symbol: "ETHUSDT", Size: 100}

	require.NoError(t, fx.pipeline.RunIteration(context.Background()))

	assert.NotContains(t, fx.portfolio.Positions, "p1")
	assert.Contains(t, fx.portfolio.Positions, "p2", "other symbols must be untouched")
	assert.Equal(t, []string{"p1"}, fx.executor.closed)
}

func TestOnPriceTick_TriggerClosesPosition(t *testing.T) {
	fx := newFixture(t,
		&stubFeed{batch: cleanBatch(50)},
		&stubStrategies{signals: buySignal(0.7)},
		&stubExecutor{},
	)
	ctx := context.Background()
	require.NoError(t, fx.pipeline.RunIteration(ctx))
	require.Len(t, fx.executor.opened, 1)
	pos := fx.executor.opened[0]

	// Run the price up past activation, then back down through the stop.
	require.NoError(t, fx.pipeline.OnPriceTick(ctx, pos.ID, pos.EntryPrice*1.03, time.Now(), nil))
	require.NoError(t, fx.pipeline.OnPriceTick(ctx, pos.ID, pos.EntryPrice*1.01, time.Now(), nil))

	assert.NotContains(t, fx.portfolio.Positions, pos.ID)
	assert.Equal(t, []string{pos.ID}, fx.executor.closed)
	_, exists := fx.stops.GetStop(pos.ID)
	assert.False(t, exists)
}

// Exercised under -race: tick-driven closes run against the main
// loop's opens and sells on the shared portfolio.
func TestPipeline_ConcurrentTicksAndIterations(t *testing.T) {
	fx := newFixture(t,
		&stubFeed{batch: cleanBatch(50)},
		&stubStrategies{signals: buySignal(0.7)},
		&stubExecutor{},
	)
	ctx := context.Background()
	require.NoError(t, fx.pipeline.RunIteration(ctx))
	require.Len(t, fx.executor.opened, 1)
	pos := fx.executor.opened[0]

	done := make(chan struct{})
	go func() {
		defer close(done)
		base := time.Now()
		for i := 0; i < 50; i++ {
			// Prices stay between entry and activation: no triggers,
			// just concurrent stop-engine and portfolio traffic.
			price := pos.EntryPrice * (1 + 0.001*float64(i%5))
			fx.pipeline.OnPriceTick(ctx, pos.ID, price, base.Add(time.Duration(i)*time.Millisecond), nil)
		}
	}()

	for i := 0; i < 20; i++ {
		fx.pipeline.RunIteration(ctx)
	}
	<-done

	snapshot := fx.pipeline.GetSnapshot()
	assert.NotEmpty(t, snapshot.Portfolio.Positions)
}

func TestGetSnapshot(t *testing.T) {
	fx := newFixture(t,
		&stubFeed{batch: cleanBatch(50)},
		&stubStrategies{signals: buySignal(0.7)},
		&stubExecutor{},
	)
	require.NoError(t, fx.pipeline.RunIteration(context.Background()))

	snapshot := fx.pipeline.GetSnapshot()

	assert.Len(t, snapshot.Stops, 1)
	assert.NotEmpty(t, snapshot.Breakers)
	assert.Same(t, fx.portfolio, snapshot.Portfolio)
	assert.Equal(t, "GREEN", snapshot.Risk.State)
}
