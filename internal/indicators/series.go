package indicators

import (
	"math"

	"github.com/tradesafe/risk-core/pkg/types"
)

// HighestHigh returns the maximum high over the trailing period of the
// series.
func HighestHigh(data []types.OHLCV, period int) (float64, error) {
	if len(data) < period || period <= 0 {
		return 0, ErrInsufficientData
	}
	highest := data[len(data)-period].High
	for _, candle := range data[len(data)-period:] {
		if candle.High > highest {
			highest = candle.High
		}
	}
	return highest, nil
}

// ReturnsStdDev returns the standard deviation of close-to-close
// returns over the trailing period of the series.
func ReturnsStdDev(data []types.OHLCV, period int) (float64, error) {
	if len(data) < period+1 || period <= 1 {
		return 0, ErrInsufficientData
	}

	returns := make([]float64, 0, period)
	for i := len(data) - period; i < len(data); i++ {
		prev := data[i-1].Close
		if prev == 0 {
			return 0, ErrInsufficientData
		}
		returns = append(returns, (data[i].Close-prev)/prev)
	}

	return StdDev(returns), nil
}

// Mean returns the arithmetic mean of the series.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// StdDev returns the population standard deviation of the series.
func StdDev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean := Mean(values)
	variance := 0.0
	for _, v := range values {
		diff := v - mean
		variance += diff * diff
	}
	variance /= float64(len(values))
	return math.Sqrt(variance)
}
