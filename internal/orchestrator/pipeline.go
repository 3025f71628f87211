package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tradesafe/risk-core/internal/ensemble"
	coreerrors "github.com/tradesafe/risk-core/internal/errors"
	"github.com/tradesafe/risk-core/internal/logger"
	"github.com/tradesafe/risk-core/internal/monitoring"
	"github.com/tradesafe/risk-core/internal/notifications"
	"github.com/tradesafe/risk-core/internal/risk"
	"github.com/tradesafe/risk-core/internal/safety"
	"github.com/tradesafe/risk-core/internal/stops"
	"github.com/tradesafe/risk-core/internal/validation"
	"github.com/tradesafe/risk-core/pkg/types"
)

// Breaker names for the external operations the pipeline wraps.
const (
	BreakerMarketData = "market_data"
	BreakerExecution  = "order_execution"
)

// DataFeed supplies market batches. External collaborator; every fetch
// goes through the market_data breaker.
type DataFeed interface {
	FetchBatch(ctx context.Context, symbol string) (*types.MarketBatch, error)
}

// StrategySet supplies per-strategy signals for the current iteration.
type StrategySet interface {
	Signals(ctx context.Context, batch *types.MarketBatch) (map[string]types.TradeSignal, error)
}

// Allocator supplies per-strategy weights and the correlation of the
// proposed exposure with existing exposure. The core never computes
// strategy weights itself.
type Allocator interface {
	Weights() map[string]float64
	Correlation(symbol string) float64
}

// Executor places and closes orders. External collaborator; every call
// goes through the order_execution breaker.
type Executor interface {
	OpenPosition(ctx context.Context, decision *types.EnsembleDecision, fraction float64) (*types.Position, error)
	ClosePosition(ctx context.Context, positionID string) error
}

// Pipeline is the single-threaded orchestrating loop: validate ->
// vote -> size -> act, with trailing stops managing open positions
// until close. All collaborators are owned, explicitly constructed
// instances.
type Pipeline struct {
	symbol     string
	feed       DataFeed
	strategies StrategySet
	allocator  Allocator
	executor   Executor

	validator  *validation.Validator
	voter      *ensemble.Voter
	riskMgr    *risk.Manager
	stopEngine *stops.Engine
	breakers   *safety.Registry
	dispatcher *notifications.Dispatcher
	health     *monitoring.HealthChecker
	log        *logger.Logger

	// portfolioMu guards the positions map: the main loop opens and
	// closes positions while OnPriceTick may close them from a
	// concurrent tick source.
	portfolioMu sync.Mutex
	portfolio   *types.PortfolioState
	wasRed      bool
}

// Deps bundles the pipeline's collaborators.
type Deps struct {
	Symbol     string
	Feed       DataFeed
	Strategies StrategySet
	Allocator  Allocator
	Executor   Executor
	Validator  *validation.Validator
	Voter      *ensemble.Voter
	RiskMgr    *risk.Manager
	StopEngine *stops.Engine
	Breakers   *safety.Registry
	Dispatcher *notifications.Dispatcher
	Health     *monitoring.HealthChecker
	Logger     *logger.Logger
	Portfolio  *types.PortfolioState
}

// NewPipeline wires the pipeline from its dependencies.
func NewPipeline(deps Deps) *Pipeline {
	return &Pipeline{
		symbol:     deps.Symbol,
		feed:       deps.Feed,
		strategies: deps.Strategies,
		allocator:  deps.Allocator,
		executor:   deps.Executor,
		validator:  deps.Validator,
		voter:      deps.Voter,
		riskMgr:    deps.RiskMgr,
		stopEngine: deps.StopEngine,
		breakers:   deps.Breakers,
		dispatcher: deps.Dispatcher,
		health:     deps.Health,
		log:        deps.Logger,
		portfolio:  deps.Portfolio,
	}
}

// Run executes the pipeline on the given interval until the context is
// cancelled.
func (p *Pipeline) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := p.RunIteration(ctx); err != nil {
				// Expected backpressure and rejected batches are
				// terminal for this iteration only.
				var ce *coreerrors.CoreError
				if errors.As(err, &ce) && (ce.IsExpected() || ce.Category == coreerrors.ErrorCategoryDataQuality) {
					p.log.Info("iteration skipped: %v", err)
					continue
				}
				p.log.LogError("iteration failed", err)
			}
		}
	}
}

// RunIteration runs one pass of validate -> vote -> size -> act.
func (p *Pipeline) RunIteration(ctx context.Context) error {
	defer func() {
		if p.health != nil {
			p.health.RecordIteration(p.portfolio.Equity)
		}
	}()

	batch, err := p.fetchBatch(ctx)
	if err != nil {
		return err
	}

	result := p.validator.Validate(batch)
	monitoring.RecordValidation(p.symbol, result.IsValid, result.QualityScore)
	for _, w := range result.Warnings {
		p.log.Warning("data quality: %s", w)
	}
	if !result.IsValid {
		return coreerrors.Newf(coreerrors.ErrorCategoryDataQuality, "orchestrator", "RunIteration",
			"market batch rejected (score %.2f): %v", result.QualityScore, result.Errors)
	}

	signals, err := p.strategies.Signals(ctx, batch)
	if err != nil {
		return coreerrors.Wrap(err, coreerrors.ErrorCategoryExternal, "orchestrator", "Signals")
	}

	decision := p.voter.Vote(signals, p.allocator.Weights())
	if decision == nil {
		return nil
	}
	monitoring.RecordDecision(decision.Action.String(), decision.Confidence)

	state := p.riskMgr.UpdateMetrics(p.portfolio.Equity)
	monitoring.UpdateRiskState(int(state), p.riskMgr.DrawdownPct())
	p.handleRedTransition(state)

	switch decision.Action {
	case types.ActionBuy:
		return p.openPosition(ctx, decision)
	case types.ActionSell:
		return p.closeSymbolPositions(ctx, decision.Symbol)
	default:
		return nil
	}
}

func (p *Pipeline) fetchBatch(ctx context.Context) (*types.MarketBatch, error) {
	cb, err := p.breakers.GetOrCreate(BreakerMarketData)
	if err != nil {
		return nil, err
	}

	var batch *types.MarketBatch
	err = cb.CallContext(ctx, func(ctx context.Context) error {
		var ferr error
		batch, ferr = p.feed.FetchBatch(ctx, p.symbol)
		return ferr
	})
	if p.health != nil {
		p.health.SetFeedHealthy(err == nil)
	}
	if err != nil {
		if coreerrors.IsBreakerOpen(err) {
			return nil, err
		}
		return nil, coreerrors.Wrap(err, coreerrors.ErrorCategoryExternal, "orchestrator", "FetchBatch")
	}
	return batch, nil
}

// handleRedTransition requests an emergency reduction once per
// GREEN/YELLOW -> RED transition.
func (p *Pipeline) handleRedTransition(state risk.DrawdownState) {
	if state == risk.StateRed && !p.wasRed {
		p.portfolioMu.Lock()
		p.riskMgr.EmergencyReducePositions(p.portfolio)
		p.portfolioMu.Unlock()
	}
	p.wasRed = state == risk.StateRed
}

func (p *Pipeline) openPosition(ctx context.Context, decision *types.EnsembleDecision) error {
	correlation := p.allocator.Correlation(decision.Symbol)
	fraction, err := p.riskMgr.SizePosition(decision, correlation)
	if err != nil {
		return err
	}
	if fraction <= 0 {
		p.log.Info("decision %s skipped: sized fraction is zero", decision.Action)
		return nil
	}
	monitoring.RecordSizedFraction(fraction)

	cb, err := p.breakers.GetOrCreate(BreakerExecution)
	if err != nil {
		return err
	}

	var position *types.Position
	err = cb.CallContext(ctx, func(ctx context.Context) error {
		var oerr error
		position, oerr = p.executor.OpenPosition(ctx, decision, fraction)
		return oerr
	})
	if err != nil {
		if coreerrors.IsBreakerOpen(err) {
			return err
		}
		return coreerrors.Wrap(err, coreerrors.ErrorCategoryExternal, "orchestrator", "OpenPosition")
	}

	p.portfolioMu.Lock()
	p.portfolio.Positions[position.ID] = position
	p.portfolioMu.Unlock()
	if _, err := p.stopEngine.AddPosition(position.Symbol, position.ID, position.EntryPrice, "", 0, 0); err != nil {
		return err
	}

	p.log.Risk("position %s opened: %s fraction=%.4f entry=%.4f",
		position.ID, decision.Symbol, fraction, position.EntryPrice)
	return nil
}

func (p *Pipeline) closeSymbolPositions(ctx context.Context, symbol string) error {
	p.portfolioMu.Lock()
	ids := make([]string, 0, len(p.portfolio.Positions))
	for id, pos := range p.portfolio.Positions {
		if pos.Symbol == symbol {
			ids = append(ids, id)
		}
	}
	p.portfolioMu.Unlock()

	for _, id := range ids {
		if err := p.closePosition(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) closePosition(ctx context.Context, positionID string) error {
	cb, err := p.breakers.GetOrCreate(BreakerExecution)
	if err != nil {
		return err
	}

	err = cb.CallContext(ctx, func(ctx context.Context) error {
		return p.executor.ClosePosition(ctx, positionID)
	})
	if err != nil {
		if coreerrors.IsBreakerOpen(err) {
			return err
		}
		return coreerrors.Wrap(err, coreerrors.ErrorCategoryExternal, "orchestrator", "ClosePosition")
	}

	p.portfolioMu.Lock()
	delete(p.portfolio.Positions, positionID)
	p.portfolioMu.Unlock()
	p.stopEngine.RemovePosition(positionID)
	p.log.Risk("position %s closed", positionID)
	return nil
}

// OnPriceTick feeds a position price tick into the stop engine. May be
// called from a tick source concurrent with the main loop; the stop
// engine serializes its own state. A triggered stop closes the
// position.
func (p *Pipeline) OnPriceTick(ctx context.Context, positionID string, price float64, tickTime time.Time, series []types.OHLCV) error {
	event, err := p.stopEngine.UpdatePosition(positionID, price, tickTime, series)
	if err != nil {
		return err
	}
	if event == nil {
		return nil
	}

	if p.dispatcher != nil {
		p.dispatcher.OnStopTriggered(event)
	}
	return p.closePosition(ctx, positionID)
}

// Snapshot is the read-only pipeline state exposed to the dashboard.
type Snapshot struct {
	Timestamp time.Time            `json:"timestamp"`
	Risk      risk.Report          `json:"risk"`
	Stops     []stops.TrailingStop `json:"stops"`
	Breakers  []safety.Stats       `json:"breakers"`
	Portfolio *types.PortfolioState `json:"portfolio"`
}

// GetSnapshot returns the current pipeline state.
func (p *Pipeline) GetSnapshot() Snapshot {
	return Snapshot{
		Timestamp: time.Now(),
		Risk:      p.riskMgr.GetRiskReport(),
		Stops:     p.stopEngine.GetStops(),
		Breakers:  p.breakers.GetStatistics(),
		Portfolio: p.portfolio,
	}
}

// String describes the pipeline for logs.
func (p *Pipeline) String() string {
	return fmt.Sprintf("pipeline(%s)", p.symbol)
}
