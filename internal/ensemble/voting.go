package ensemble

import (
	"time"

	"github.com/tradesafe/risk-core/pkg/types"
)

// VotingMethod selects how per-strategy signals are aggregated.
type VotingMethod string

const (
	// MethodWeightedAverage is the default and the only method with a
	// load-bearing tie-break contract.
	MethodWeightedAverage VotingMethod = "weighted_average"
	MethodMajority        VotingMethod = "majority"
	MethodBlended         VotingMethod = "blended"
)

// Voter aggregates independent strategy signals into one decision.
type Voter struct {
	method              VotingMethod
	confidenceThreshold float64
}

// NewVoter creates a voter using the given method and minimum decision
// confidence. An unrecognized method falls back to weighted average.
func NewVoter(method VotingMethod, confidenceThreshold float64) *Voter {
	switch method {
	case MethodWeightedAverage, MethodMajority, MethodBlended:
	default:
		method = MethodWeightedAverage
	}
	return &Voter{
		method:              method,
		confidenceThreshold: confidenceThreshold,
	}
}

// Vote aggregates the signals into a single decision, or nil when no
// actionable consensus exists. HOLD signals never contribute.
func (v *Voter) Vote(signals map[string]types.TradeSignal, weights map[string]float64) *types.EnsembleDecision {
	active := make([]types.TradeSignal, 0, len(signals))
	for _, sig := range signals {
		if sig.Action == types.ActionBuy || sig.Action == types.ActionSell {
			active = append(active, sig)
		}
	}
	if len(active) == 0 {
		return nil
	}

	// Unspecified weights default to an even 1/N split.
	defaultWeight := 1.0 / float64(len(active))
	weightOf := func(strategy string) float64 {
		if w, ok := weights[strategy]; ok {
			return w
		}
		return defaultWeight
	}

	var decision *types.EnsembleDecision
	switch v.method {
	case MethodMajority:
		decision = v.voteMajority(active)
	case MethodBlended:
		decision = v.voteBlended(active, weightOf)
	default:
		decision = v.voteWeightedAverage(active, weightOf)
	}

	if decision == nil || decision.Confidence < v.confidenceThreshold {
		return nil
	}
	return decision
}

// actionBucket accumulates the per-action vote totals.
type actionBucket struct {
	weight        float64
	weightedConf  float64
	count         int
	best          types.TradeSignal // highest-confidence signal of this action
	hasBest       bool
}

func (b *actionBucket) add(sig types.TradeSignal, weight float64) {
	b.weight += weight
	b.weightedConf += sig.Confidence * weight
	b.count++
	if !b.hasBest || sig.Confidence > b.best.Confidence {
		b.best = sig
		b.hasBest = true
	}
}

// voteWeightedAverage implements the default method. The action with
// the larger total weight wins; an exact weight tie is resolved by the
// action whose representative (highest-confidence) signal is more
// confident. The final confidence is the weight-normalized average
// confidence of the winning action's signals.
func (v *Voter) voteWeightedAverage(active []types.TradeSignal, weightOf func(string) float64) *types.EnsembleDecision {
	buy := &actionBucket{}
	sell := &actionBucket{}

	for _, sig := range active {
		w := weightOf(sig.Strategy)
		if sig.Action == types.ActionBuy {
			buy.add(sig, w)
		} else {
			sell.add(sig, w)
		}
	}

	winner := buy
	action := types.ActionBuy
	switch {
	case sell.weight > buy.weight:
		winner, action = sell, types.ActionSell
	case sell.weight == buy.weight && sell.hasBest && buy.hasBest &&
		sell.best.Confidence > buy.best.Confidence:
		winner, action = sell, types.ActionSell
	}
	if !winner.hasBest || winner.weight <= 0 {
		return nil
	}

	confidence := winner.weightedConf / winner.weight
	return v.newDecision(action, confidence, winner.best, len(active), MethodWeightedAverage)
}

// voteMajority picks the action backed by the larger signal count,
// ignoring weights. Confidence is the plain average confidence of the
// winning signals.
func (v *Voter) voteMajority(active []types.TradeSignal) *types.EnsembleDecision {
	buy := &actionBucket{}
	sell := &actionBucket{}

	for _, sig := range active {
		if sig.Action == types.ActionBuy {
			buy.add(sig, 1)
		} else {
			sell.add(sig, 1)
		}
	}

	winner := buy
	action := types.ActionBuy
	if sell.count > buy.count ||
		(sell.count == buy.count && sell.hasBest && buy.hasBest && sell.best.Confidence > buy.best.Confidence) {
		winner, action = sell, types.ActionSell
	}
	if winner.count == 0 {
		return nil
	}

	confidence := winner.weightedConf / float64(winner.count)
	return v.newDecision(action, confidence, winner.best, len(active), MethodMajority)
}

// voteBlended scores each action by weight x confidence and requires
// the winning score to dominate the combined score.
func (v *Voter) voteBlended(active []types.TradeSignal, weightOf func(string) float64) *types.EnsembleDecision {
	buy := &actionBucket{}
	sell := &actionBucket{}

	for _, sig := range active {
		w := weightOf(sig.Strategy)
		if sig.Action == types.ActionBuy {
			buy.add(sig, w)
		} else {
			sell.add(sig, w)
		}
	}

	winner := buy
	action := types.ActionBuy
	if sell.weightedConf > buy.weightedConf {
		winner, action = sell, types.ActionSell
	}
	if !winner.hasBest {
		return nil
	}

	total := buy.weightedConf + sell.weightedConf
	if total <= 0 {
		return nil
	}

	confidence := winner.weightedConf / total
	return v.newDecision(action, confidence, winner.best, len(active), MethodBlended)
}

func (v *Voter) newDecision(action types.TradeAction, confidence float64, representative types.TradeSignal, numStrategies int, method VotingMethod) *types.EnsembleDecision {
	return &types.EnsembleDecision{
		TradeSignal: types.TradeSignal{
			Strategy:   "ensemble",
			Action:     action,
			Confidence: confidence,
			Symbol:     representative.Symbol,
			EntryPrice: representative.EntryPrice,
			StopLoss:   representative.StopLoss,
			TakeProfit: representative.TakeProfit,
			Timestamp:  time.Now(),
		},
		Method:        string(method),
		NumStrategies: numStrategies,
	}
}
