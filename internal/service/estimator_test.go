package service

import (
	"errors"
	"math"
	"testing"

	"hmm-go/internal/model/hmm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestEstimatorPi(t *testing.T) {
	model := buildModel(t, orderThreeSamples(), 3, 0, NewAdditiveSmoother(1))

	pi, err := model.Pi("1")
	require.NoError(t, err)
	assert.InDelta(t, math.Log10(2.0/8.0), pi, 1e-12)

	pi, err = model.Pi("2")
	require.NoError(t, err)
	assert.InDelta(t, math.Log10(1.0/8.0), pi, 1e-12)

	sum := 0.0
	for _, state := range model.States() {
		pi, err := model.Pi(state)
		require.NoError(t, err)
		sum += math.Pow(10, pi)
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestEstimatorTransition(t *testing.T) {
	model := buildModel(t, orderThreeSamples(), 3, 0, NewAdditiveSmoother(1))

	prob, err := model.TransitionProb(hmm.NewStateSequence("3"), "4")
	require.NoError(t, err)
	assert.InDelta(t, math.Log10(3.0/11.0), prob, 1e-12)

	// unigram: (count + 1) / (24 + 5)
	prob, err = model.TransitionProb(hmm.StateSequence{}, "3")
	require.NoError(t, err)
	assert.InDelta(t, math.Log10(7.0/29.0), prob, 1e-12)
}

func TestEstimatorEmissionsNormalize(t *testing.T) {
	for _, cutoff := range []int64{0, 2} {
		model := buildModel(t, orderThreeSamples(), 3, cutoff, NewAdditiveSmoother(0.01))

		for _, state := range model.States() {
			sum := 0.0
			for _, observation := range model.Observations() {
				prob, err := model.EmissionProb(state, observation)
				require.NoError(t, err)
				sum += math.Pow(10, prob)
			}
			assert.InDelta(t, 1.0, sum, 1e-6, "state %s cutoff %d", state, cutoff)
		}
	}
}

func TestEstimatorBackoffNormalizes(t *testing.T) {
	for _, order := range []int{1, 2, 3} {
		samples := orderThreeSamples()
		counter, err := NewCounterFromSamples(samples, order, 0, zap.NewNop())
		require.NoError(t, err)
		model := buildModel(t, samples, order, 0, NewAdditiveSmoother(DefaultDelta))

		contexts := []hmm.StateSequence{{}, hmm.NewStateSequence("9"), hmm.NewStateSequence("5", "1")}
		counter.WalkSequences(func(seq hmm.StateSequence, count int64) {
			if seq.Len() <= order {
				contexts = append(contexts, seq)
			}
		})

		for _, context := range contexts {
			sum := 0.0
			for _, target := range model.States() {
				prob, err := model.TransitionProb(context, target)
				require.NoError(t, err)
				sum += math.Pow(10, prob)
			}
			assert.InDelta(t, 1.0, sum, 1e-6, "order %d context %q", order, context.String())
		}
	}
}

func TestEstimatorCutoffShrinksEmissions(t *testing.T) {
	previous := math.MaxInt
	for _, cutoff := range []int64{0, 2, 3} {
		model := buildModel(t, orderThreeSamples(), 1, cutoff, nil)
		entries := model.Summary().EmissionEntries
		assert.LessOrEqual(t, entries, previous)
		previous = entries
	}
}

func TestEstimatorDictionaryOrder(t *testing.T) {
	model := buildModel(t, orderThreeSamples(), 2, 0, nil)

	assert.Equal(t, []hmm.State{"1", "2", "3", "4", "5"}, model.States())
	assert.Equal(t, []hmm.Observation{"a", "b", "c", "d"}, model.Observations())
}

func TestEstimatorMaxOrderHasNoBackoff(t *testing.T) {
	model := buildModel(t, orderThreeSamples(), 1, 0, nil)

	entry, ok := model.TransitionEntry(hmm.NewStateSequence("3", "4"))
	require.True(t, ok)
	assert.Equal(t, 0.0, entry.LogBackoff)

	// 5 is only ever followed by 2
	entry, ok = model.TransitionEntry(hmm.NewStateSequence("5"))
	require.True(t, ok)
	assert.Less(t, entry.LogBackoff, 0.0)

	// 3 is followed by every state
	entry, ok = model.TransitionEntry(hmm.NewStateSequence("3"))
	require.True(t, ok)
	assert.Equal(t, 0.0, entry.LogBackoff)
}

func TestEstimatorOrderMismatch(t *testing.T) {
	counter, err := NewCounterFromSamples(orderThreeSamples(), 3, 0, zap.NewNop())
	require.NoError(t, err)
	estimator, err := NewEstimator(2, nil, zap.NewNop())
	require.NoError(t, err)

	_, err = estimator.Estimate(counter)
	var orderErr *InvalidOrderError
	require.True(t, errors.As(err, &orderErr))
	assert.Equal(t, 3, orderErr.Order)
	assert.Equal(t, 2, orderErr.Expected)

	_, err = NewEstimator(0, nil, nil)
	assert.True(t, errors.As(err, &orderErr))
}

func TestEstimatorLeavesCounterUntouched(t *testing.T) {
	counter, err := NewCounterFromSamples(orderThreeSamples(), 2, 0, zap.NewNop())
	require.NoError(t, err)
	before := collectSequences(counter)

	estimator, err := NewEstimator(2, nil, zap.NewNop())
	require.NoError(t, err)
	model, err := estimator.Estimate(counter)
	require.NoError(t, err)

	counter.Dictionary().AddState("new")
	assert.Equal(t, before, collectSequences(counter))
	assert.Equal(t, 5, model.StateCount())
}

func TestEstimatorWittenBell(t *testing.T) {
	model := buildModel(t, orderThreeSamples(), 2, 0, NewWittenBellSmoother())

	for _, state := range model.States() {
		pi, err := model.Pi(state)
		require.NoError(t, err)
		assert.False(t, math.IsNaN(pi))

		prob, err := model.TransitionProb(hmm.NewStateSequence("1", "2"), state)
		require.NoError(t, err)
		assert.False(t, math.IsNaN(prob))
	}
}
