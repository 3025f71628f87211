package indicators

import (
	"errors"
	"math"

	"github.com/tradesafe/risk-core/pkg/types"
)

// ErrInsufficientData is returned when a series is shorter than the
// indicator's lookback period.
var ErrInsufficientData = errors.New("insufficient data points for calculation")

// ATR is the Average True Range volatility indicator, smoothed with an
// EMA of the true range.
type ATR struct {
	period      int
	ema         *EMA
	lastClose   float64
	initialized bool
}

// NewATR creates a new ATR indicator
func NewATR(period int) *ATR {
	return &ATR{
		period: period,
		ema:    NewEMA(period),
	}
}

// Calculate computes the ATR over the given series.
func (a *ATR) Calculate(data []types.OHLCV) (float64, error) {
	if len(data) < a.period+1 {
		return 0, ErrInsufficientData
	}

	if !a.initialized {
		return a.initialCalculation(data)
	}
	return a.incrementalCalculation(data)
}

func (a *ATR) initialCalculation(data []types.OHLCV) (float64, error) {
	for i := 0; i < len(data); i++ {
		candle := data[i]

		var trueRange float64
		if i > 0 {
			trueRange = TrueRange(candle, a.lastClose)
		} else {
			trueRange = candle.High - candle.Low // First candle
		}

		a.ema.UpdateSingle(trueRange)
		a.lastClose = candle.Close
	}

	a.initialized = true
	return a.ema.GetLastValue(), nil
}

func (a *ATR) incrementalCalculation(data []types.OHLCV) (float64, error) {
	latest := data[len(data)-1]
	atrValue := a.ema.UpdateSingle(TrueRange(latest, a.lastClose))
	a.lastClose = latest.Close
	return atrValue, nil
}

// GetLastValue returns the last calculated ATR value
func (a *ATR) GetLastValue() float64 {
	return a.ema.GetLastValue()
}

// GetPeriod returns the period used for ATR calculation
func (a *ATR) GetPeriod() int {
	return a.period
}

// ResetState resets the ATR internal state for new data periods
func (a *ATR) ResetState() {
	a.ema.ResetState()
	a.lastClose = 0.0
	a.initialized = false
}

// TrueRange is max(High-Low, |High-PrevClose|, |Low-PrevClose|).
func TrueRange(current types.OHLCV, prevClose float64) float64 {
	hl := current.High - current.Low
	hc := math.Abs(current.High - prevClose)
	lc := math.Abs(current.Low - prevClose)
	return math.Max(hl, math.Max(hc, lc))
}

// CalculateATR computes a one-shot ATR over the trailing period of a
// series without retaining state between calls.
func CalculateATR(data []types.OHLCV, period int) (float64, error) {
	atr := NewATR(period)
	return atr.Calculate(data)
}
