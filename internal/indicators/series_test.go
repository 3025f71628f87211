package indicators

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradesafe/risk-core/pkg/types"
)

func closesSeries(closes ...float64) []types.OHLCV {
	now := time.Now()
	rows := make([]types.OHLCV, len(closes))
	for i, c := range closes {
		rows[i] = types.OHLCV{
			Timestamp: now.Add(time.Duration(i-len(closes)) * time.Minute),
			Open:      c,
			High:      c + float64(i), // distinct highs
			Low:       c - 1,
			Close:     c,
		}
	}
	return rows
}

func TestHighestHigh(t *testing.T) {
	series := closesSeries(100, 101, 102, 103, 104)

	// Highs are 100, 102, 104, 106, 108; last 3 peak at 108.
	highest, err := HighestHigh(series, 3)
	require.NoError(t, err)
	assert.Equal(t, 108.0, highest)

	_, err = HighestHigh(series, 10)
	assert.ErrorIs(t, err, ErrInsufficientData)

	_, err = HighestHigh(series, 0)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestReturnsStdDev_FlatSeries(t *testing.T) {
	series := closesSeries(100, 100, 100, 100, 100, 100)

	stdev, err := ReturnsStdDev(series, 5)

	require.NoError(t, err)
	assert.Equal(t, 0.0, stdev)
}

func TestReturnsStdDev_VolatileExceedsCalm(t *testing.T) {
	calm := closesSeries(100, 100.1, 100.2, 100.1, 100.2, 100.3)
	wild := closesSeries(100, 110, 90, 112, 88, 115)

	calmStdev, err := ReturnsStdDev(calm, 5)
	require.NoError(t, err)
	wildStdev, err := ReturnsStdDev(wild, 5)
	require.NoError(t, err)

	assert.Greater(t, wildStdev, calmStdev)
}

func TestReturnsStdDev_InsufficientData(t *testing.T) {
	series := closesSeries(100, 101)

	_, err := ReturnsStdDev(series, 5)

	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestMean(t *testing.T) {
	assert.Equal(t, 0.0, Mean(nil))
	assert.Equal(t, 2.0, Mean([]float64{1, 2, 3}))
}

func TestStdDev(t *testing.T) {
	assert.Equal(t, 0.0, StdDev(nil))
	assert.Equal(t, 0.0, StdDev([]float64{5, 5, 5}))
	// Population stdev of {2, 4, 4, 4, 5, 5, 7, 9} is exactly 2.
	assert.InDelta(t, 2.0, StdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9}), 1e-9)
}

func TestEMA_ConvergesTowardConstantInput(t *testing.T) {
	ema := NewEMA(10)

	ema.UpdateSingle(100)
	for i := 0; i < 200; i++ {
		ema.UpdateSingle(50)
	}

	assert.InDelta(t, 50.0, ema.GetLastValue(), 0.01)
}

func TestEMA_FirstValueSeeds(t *testing.T) {
	ema := NewEMA(10)

	assert.Equal(t, 42.0, ema.UpdateSingle(42))
	assert.Equal(t, 42.0, ema.GetLastValue())
}
