package risk

import (
	"math"
	"sync"
	"time"

	coreerrors "github.com/tradesafe/risk-core/internal/errors"
	"github.com/tradesafe/risk-core/internal/logger"
	"github.com/tradesafe/risk-core/pkg/types"
)

// Config holds the externally supplied risk tunables.
type Config struct {
	DrawdownLevel1   float64 // percent, negative
	DrawdownLevel2   float64
	DrawdownLevel3   float64
	KellyMinWinProb  float64
	KellyScale       float64 // conservative Kelly multiplier, capped at 0.5
	KellyPayoffRatio float64
	MinPositionSize  float64 // fraction of equity
	MaxPositionSize  float64
	LowCorrelation   float64 // below this, no correlation penalty
}

// DefaultConfig returns the documented risk defaults.
func DefaultConfig() Config {
	return Config{
		DrawdownLevel1:   -5.0,
		DrawdownLevel2:   -10.0,
		DrawdownLevel3:   -15.0,
		KellyMinWinProb:  0.5,
		KellyScale:       0.5,
		KellyPayoffRatio: 2.0,
		MinPositionSize:  0.01,
		MaxPositionSize:  0.25,
		LowCorrelation:   0.5,
	}
}

// kellyHardCap keeps the sized fraction well below full capital even
// before the configured position limits apply.
const kellyHardCap = 0.25

// Report is an immutable snapshot of the risk state for the dashboard
// and notification collaborators.
type Report struct {
	Timestamp        time.Time     `json:"timestamp"`
	State            string        `json:"state"`
	DrawdownPct      float64       `json:"drawdown_pct"`
	SizeMultiplier   float64       `json:"size_multiplier"`
	CanTrade         bool          `json:"can_trade"`
	Equity           float64       `json:"equity"`
	DailyStartEquity float64       `json:"daily_start_equity"`
}

// Manager owns the drawdown breaker and position sizing. It reads the
// loop-owned portfolio and may request mutation (emergency reduction)
// but never owns it. All sizing functions are pure and non-panicking
// on valid numeric input.
type Manager struct {
	cfg     Config
	breaker *DrawdownBreaker
	log     *logger.Logger

	mu               sync.RWMutex
	equity           float64
	dailyStartEquity float64
	drawdownPct      float64
	lastUpdated      time.Time
}

// NewManager creates a risk manager seeded with the day's starting
// equity.
func NewManager(cfg Config, dailyStartEquity float64, log *logger.Logger) *Manager {
	return &Manager{
		cfg:              cfg,
		breaker:          NewDrawdownBreaker(cfg.DrawdownLevel1, cfg.DrawdownLevel2, cfg.DrawdownLevel3),
		log:              log,
		equity:           dailyStartEquity,
		dailyStartEquity: dailyStartEquity,
	}
}

// UpdateMetrics records the current equity, recomputes the daily
// drawdown percentage and feeds it into the breaker.
func (m *Manager) UpdateMetrics(equity float64) DrawdownState {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.equity = equity
	m.lastUpdated = time.Now()
	if m.dailyStartEquity > 0 {
		m.drawdownPct = (equity - m.dailyStartEquity) / m.dailyStartEquity * 100
	} else {
		m.drawdownPct = 0
	}

	prev := m.breaker.State()
	state := m.breaker.Check(m.drawdownPct)
	if state != prev && m.log != nil {
		m.log.Risk("drawdown breaker %s -> %s (drawdown %.2f%%)", prev, state, m.drawdownPct)
	}
	return state
}

// ResetDaily sets a new daily reference equity, typically at the start
// of each trading day.
func (m *Manager) ResetDaily(equity float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dailyStartEquity = equity
	m.equity = equity
	m.drawdownPct = 0
	m.lastUpdated = time.Now()
	m.breaker.Check(0)
}

// State returns the current breaker state.
func (m *Manager) State() DrawdownState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.breaker.State()
}

// CanTrade reports whether the breaker permits opening new positions.
func (m *Manager) CanTrade() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.breaker.CanTrade()
}

// SizeMultiplier returns the state-imposed size multiplier.
func (m *Manager) SizeMultiplier() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.breaker.State().SizeMultiplier()
}

// ComputeKellyFraction returns the conservative Kelly fraction of
// capital for the given win probability. Below the minimum edge
// threshold the fraction is zero; above it the result is monotonically
// increasing in winProbability and capped well below 1.0.
func (m *Manager) ComputeKellyFraction(winProbability, capital float64) float64 {
	if capital <= 0 || math.IsNaN(winProbability) {
		return 0
	}
	if winProbability < m.cfg.KellyMinWinProb {
		return 0
	}
	if winProbability > 1 {
		winProbability = 1
	}

	b := m.cfg.KellyPayoffRatio
	if b <= 0 {
		return 0
	}

	// Full Kelly: (p*b - q) / b, scaled down to a fraction of full
	// Kelly, never more than half.
	scale := math.Min(m.cfg.KellyScale, 0.5)
	kelly := (winProbability*b - (1 - winProbability)) / b * scale

	if kelly < 0 {
		return 0
	}
	return math.Min(kelly, kellyHardCap)
}

// ApplyLimits clamps a raw fraction into the configured
// [MinPositionSize, MaxPositionSize] bounds.
func (m *Manager) ApplyLimits(fraction float64) float64 {
	if fraction < m.cfg.MinPositionSize {
		return m.cfg.MinPositionSize
	}
	if fraction > m.cfg.MaxPositionSize {
		return m.cfg.MaxPositionSize
	}
	return fraction
}

// CorrelationAwareSizing shrinks a base size when the new exposure is
// correlated with existing exposure. Below the low-correlation
// threshold the size is unchanged; above it the penalty grows with
// correlation, so fully-correlated exposure is sized smaller than
// uncorrelated exposure.
func (m *Manager) CorrelationAwareSizing(baseSize, correlation float64) float64 {
	if math.IsNaN(correlation) || correlation < m.cfg.LowCorrelation {
		return baseSize
	}
	if correlation > 1 {
		correlation = 1
	}

	// Linear penalty from 1.0 at the threshold down to 0.5 at full
	// correlation.
	span := 1 - m.cfg.LowCorrelation
	if span <= 0 {
		return baseSize * 0.5
	}
	penalty := 1 - 0.5*(correlation-m.cfg.LowCorrelation)/span
	return baseSize * penalty
}

// SizePosition runs the full sizing pipeline for an aggregated
// decision: breaker gate, Kelly fraction from decision confidence,
// configured limits, state multiplier and correlation penalty. It
// returns the fraction of equity to deploy, or a RISK_BLOCKED error
// when the breaker forbids trading.
func (m *Manager) SizePosition(decision *types.EnsembleDecision, correlation float64) (float64, error) {
	m.mu.RLock()
	state := m.breaker.State()
	equity := m.equity
	m.mu.RUnlock()

	if state == StateRed {
		return 0, coreerrors.Newf(coreerrors.ErrorCategoryRiskBlocked, "risk", "SizePosition",
			"drawdown breaker is RED (drawdown %.2f%%), trading halted", m.DrawdownPct())
	}

	kelly := m.ComputeKellyFraction(decision.Confidence, equity)
	if kelly == 0 {
		return 0, nil
	}

	fraction := m.ApplyLimits(kelly)
	fraction *= state.SizeMultiplier()
	fraction = m.CorrelationAwareSizing(fraction, correlation)
	return fraction, nil
}

// DrawdownPct returns the last computed daily drawdown percentage.
func (m *Manager) DrawdownPct() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.drawdownPct
}

// EmergencyReducePositions halves every open position's size in place.
// Used on RED state or an external cascade-risk signal.
func (m *Manager) EmergencyReducePositions(portfolio *types.PortfolioState) {
	if portfolio == nil {
		return
	}
	for _, pos := range portfolio.Positions {
		pos.Size /= 2
	}
	if m.log != nil {
		m.log.Risk("emergency reduction: halved %d open positions", len(portfolio.Positions))
	}
}

// GetRiskReport returns a snapshot of the current risk state. Calling
// it twice with no intervening state change returns identical values;
// the timestamp is the time of the last metrics update, not of the
// snapshot.
func (m *Manager) GetRiskReport() Report {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state := m.breaker.State()
	return Report{
		Timestamp:        m.lastUpdated,
		State:            state.String(),
		DrawdownPct:      m.drawdownPct,
		SizeMultiplier:   state.SizeMultiplier(),
		CanTrade:         state != StateRed,
		Equity:           m.equity,
		DailyStartEquity: m.dailyStartEquity,
	}
}
