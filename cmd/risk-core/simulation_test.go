package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradesafe/risk-core/internal/validation"
)

func TestSimulation_ConsecutiveBatchesStayValid(t *testing.T) {
	sim := newSimulation("BTCUSDT", 10000)
	v := validation.NewValidator()
	ctx := context.Background()

	first, err := sim.FetchBatch(ctx, "BTCUSDT")
	require.NoError(t, err)
	result := v.Validate(first)
	assert.True(t, result.IsValid, "first batch rejected: %v", result.Errors)

	// A refetch must extend the series, never re-anchor it: the
	// accumulated history stays strictly increasing in time.
	second, err := sim.FetchBatch(ctx, "BTCUSDT")
	require.NoError(t, err)
	result = v.Validate(second)
	assert.True(t, result.IsValid, "second batch rejected: %v", result.Errors)

	for i := 1; i < second.Len(); i++ {
		require.True(t, second.Rows[i].Timestamp.After(second.Rows[i-1].Timestamp),
			"timestamps out of order at row %d", i)
	}
	assert.GreaterOrEqual(t, second.Len(), first.Len())
}

func TestSimulation_SeedsEnoughHistoryForSignals(t *testing.T) {
	sim := newSimulation("BTCUSDT", 10000)
	ctx := context.Background()

	batch, err := sim.FetchBatch(ctx, "BTCUSDT")
	require.NoError(t, err)
	require.GreaterOrEqual(t, batch.Len(), 20)

	signals, err := sim.Signals(ctx, batch)
	require.NoError(t, err)
	assert.Contains(t, signals, "momentum")
	assert.Contains(t, signals, "meanrev")
}
