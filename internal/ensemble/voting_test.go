package ensemble

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradesafe/risk-core/pkg/types"
)

func signal(strategy string, action types.TradeAction, confidence, entry float64) types.TradeSignal {
	return types.TradeSignal{
		Strategy:   strategy,
		Action:     action,
		Confidence: confidence,
		Symbol:     "BTCUSDT",
		EntryPrice: entry,
	}
}

func TestVote_WeightedAverage(t *testing.T) {
	v := NewVoter(MethodWeightedAverage, 0.5)

	signals := map[string]types.TradeSignal{
		"alpha": signal("alpha", types.ActionBuy, 0.7, 50000),
		"beta":  signal("beta", types.ActionBuy, 0.6, 50010),
		"gamma": signal("gamma", types.ActionSell, 0.4, 50020),
	}
	weights := map[string]float64{"alpha": 0.4, "beta": 0.35, "gamma": 0.25}

	decision := v.Vote(signals, weights)

	require.NotNil(t, decision)
	assert.Equal(t, types.ActionBuy, decision.Action)
	// Winning-side weighted mean: (0.7*0.4 + 0.6*0.35) / 0.75
	assert.InDelta(t, 0.6533, decision.Confidence, 0.001)
	assert.Equal(t, 3, decision.NumStrategies)
	assert.Equal(t, "weighted_average", decision.Method)
	// Representative signal is the most confident of the winning side.
	assert.Equal(t, 50000.0, decision.EntryPrice)
}

func TestVote_AllHoldYieldsNoDecision(t *testing.T) {
	v := NewVoter(MethodWeightedAverage, 0.5)

	signals := map[string]types.TradeSignal{
		"alpha": signal("alpha", types.ActionHold, 0.9, 50000),
		"beta":  signal("beta", types.ActionHold, 0.8, 50000),
	}

	assert.Nil(t, v.Vote(signals, nil))
}

func TestVote_HoldSignalsDoNotDilute(t *testing.T) {
	v := NewVoter(MethodWeightedAverage, 0.5)

	signals := map[string]types.TradeSignal{
		"alpha": signal("alpha", types.ActionBuy, 0.8, 50000),
		"beta":  signal("beta", types.ActionHold, 0.1, 50000),
	}

	decision := v.Vote(signals, map[string]float64{"alpha": 0.5, "beta": 0.5})

	require.NotNil(t, decision)
	assert.Equal(t, types.ActionBuy, decision.Action)
	assert.InDelta(t, 0.8, decision.Confidence, 1e-9)
}

func TestVote_BelowThresholdYieldsNoDecision(t *testing.T) {
	v := NewVoter(MethodWeightedAverage, 0.5)

	signals := map[string]types.TradeSignal{
		"alpha": signal("alpha", types.ActionBuy, 0.4, 50000),
	}

	assert.Nil(t, v.Vote(signals, nil))
}

func TestVote_MissingWeightsDefaultEven(t *testing.T) {
	v := NewVoter(MethodWeightedAverage, 0.5)

	signals := map[string]types.TradeSignal{
		"alpha": signal("alpha", types.ActionBuy, 0.6, 50000),
		"beta":  signal("beta", types.ActionSell, 0.9, 50000),
	}

	decision := v.Vote(signals, nil)

	// Even 1/N weights tie the sides; the higher-confidence side wins.
	require.NotNil(t, decision)
	assert.Equal(t, types.ActionSell, decision.Action)
	assert.InDelta(t, 0.9, decision.Confidence, 1e-9)
}

func TestVote_WeightTieBrokenByConfidence(t *testing.T) {
	v := NewVoter(MethodWeightedAverage, 0.5)

	signals := map[string]types.TradeSignal{
		"alpha": signal("alpha", types.ActionBuy, 0.95, 50000),
		"beta":  signal("beta", types.ActionSell, 0.6, 50000),
	}
	weights := map[string]float64{"alpha": 0.5, "beta": 0.5}

	decision := v.Vote(signals, weights)

	require.NotNil(t, decision)
	assert.Equal(t, types.ActionBuy, decision.Action)
}

func TestVote_MajorityIgnoresWeights(t *testing.T) {
	v := NewVoter(MethodMajority, 0.5)

	signals := map[string]types.TradeSignal{
		"alpha": signal("alpha", types.ActionSell, 0.6, 50000),
		"beta":  signal("beta", types.ActionSell, 0.7, 50000),
		"gamma": signal("gamma", types.ActionBuy, 0.99, 50000),
	}
	// The buy side carries nearly all the weight, but majority counts heads.
	weights := map[string]float64{"alpha": 0.05, "beta": 0.05, "gamma": 0.9}

	decision := v.Vote(signals, weights)

	require.NotNil(t, decision)
	assert.Equal(t, types.ActionSell, decision.Action)
	assert.InDelta(t, 0.65, decision.Confidence, 1e-9)
}

func TestVote_BlendedNormalizesAcrossSides(t *testing.T) {
	v := NewVoter(MethodBlended, 0.5)

	signals := map[string]types.TradeSignal{
		"alpha": signal("alpha", types.ActionBuy, 0.9, 50000),
		"beta":  signal("beta", types.ActionSell, 0.3, 50000),
	}
	weights := map[string]float64{"alpha": 0.5, "beta": 0.5}

	decision := v.Vote(signals, weights)

	require.NotNil(t, decision)
	assert.Equal(t, types.ActionBuy, decision.Action)
	// 0.45 / (0.45 + 0.15)
	assert.InDelta(t, 0.75, decision.Confidence, 1e-9)
}

func TestNewVoter_UnknownMethodFallsBack(t *testing.T) {
	v := NewVoter("consensus", 0.5)

	signals := map[string]types.TradeSignal{
		"alpha": signal("alpha", types.ActionBuy, 0.8, 50000),
	}

	decision := v.Vote(signals, nil)
	require.NotNil(t, decision)
	assert.Equal(t, "weighted_average", decision.Method)
}
