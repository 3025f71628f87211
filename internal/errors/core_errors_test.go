package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoreError_Format(t *testing.T) {
	err := New(ErrorCategoryRiskBlocked, "risk", "SizePosition", "trading halted")

	assert.Equal(t, "[RISK_BLOCKED:risk] SizePosition: trading halted", err.Error())
}

func TestCoreError_FormatWithUnderlying(t *testing.T) {
	underlying := errors.New("connection refused")
	err := Wrap(underlying, ErrorCategoryExternal, "feed", "FetchBatch")

	assert.Contains(t, err.Error(), "EXTERNAL:feed")
	assert.Contains(t, err.Error(), "connection refused")
	assert.ErrorIs(t, err, underlying)
}

func TestWrap_NilPassthrough(t *testing.T) {
	assert.Nil(t, Wrap(nil, ErrorCategoryExternal, "feed", "FetchBatch"))
}

func TestCoreError_ExpectedAndFatal(t *testing.T) {
	assert.True(t, New(ErrorCategoryBreakerOpen, "safety", "Call", "open").IsExpected())
	assert.True(t, New(ErrorCategoryRiskBlocked, "risk", "SizePosition", "red").IsExpected())
	assert.False(t, New(ErrorCategoryDataQuality, "validation", "Validate", "bad").IsExpected())

	assert.True(t, New(ErrorCategoryConfiguration, "config", "Load", "bad").IsFatal())
	assert.False(t, New(ErrorCategoryInvariant, "stops", "AddPosition", "dup").IsFatal())
}

func TestCategoryPredicates_SeeThroughWrapping(t *testing.T) {
	inner := Newf(ErrorCategoryBreakerOpen, "safety", "market_data", "call rejected")
	wrapped := fmt.Errorf("iteration failed: %w", inner)

	assert.True(t, IsBreakerOpen(wrapped))
	assert.False(t, IsRiskBlocked(wrapped))
	assert.False(t, IsDataQuality(wrapped))
	assert.False(t, IsBreakerOpen(errors.New("plain")))
}

func TestWithContext(t *testing.T) {
	err := New(ErrorCategoryDataQuality, "validation", "Validate", "rejected").
		WithContext("symbol", "BTCUSDT").
		WithContext("quality_score", 0.71)

	require.NotNil(t, err.Context)
	assert.Equal(t, "BTCUSDT", err.Context["symbol"])
	assert.Equal(t, 0.71, err.Context["quality_score"])
}
