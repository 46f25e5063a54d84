package service

import (
	"errors"
	"math"
	"sync"
	"testing"

	"hmm-go/internal/model/hmm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModelUnknownSymbols(t *testing.T) {
	model := buildModel(t, orderThreeSamples(), 2, 0, nil)

	var unknownState *UnknownStateError

	_, err := model.Pi("9")
	assert.True(t, errors.As(err, &unknownState))

	_, err = model.TransitionProb(hmm.NewStateSequence("1"), "9")
	require.True(t, errors.As(err, &unknownState))
	assert.Equal(t, hmm.State("9"), unknownState.State)

	_, err = model.EmissionProb("9", "a")
	assert.True(t, errors.As(err, &unknownState))

	_, err = model.UnknownEmissionProb("9")
	assert.True(t, errors.As(err, &unknownState))
}

func TestModelUnknownObservationUsesBucket(t *testing.T) {
	model := buildModel(t, orderThreeSamples(), 1, 0, nil)

	unknown, err := model.UnknownEmissionProb("1")
	require.NoError(t, err)

	prob, err := model.EmissionProb("1", "never-seen")
	require.NoError(t, err)
	assert.Equal(t, unknown, prob)

	seen, err := model.EmissionProb("1", "a")
	require.NoError(t, err)
	assert.Greater(t, seen, unknown)
}

func TestModelIndexQueries(t *testing.T) {
	model := buildModel(t, orderThreeSamples(), 2, 0, nil)

	byName, err := model.Pi("3")
	require.NoError(t, err)
	byIndex, err := model.PiIndex(2)
	require.NoError(t, err)
	assert.Equal(t, byName, byIndex)

	byName, err = model.TransitionProb(hmm.NewStateSequence("1", "2"), "3")
	require.NoError(t, err)
	byIndex, err = model.TransitionProbIndex([]int{0, 1}, 2)
	require.NoError(t, err)
	assert.Equal(t, byName, byIndex)

	byName, err = model.EmissionProb("4", "d")
	require.NoError(t, err)
	byIndex, err = model.EmissionProbIndex(3, 3)
	require.NoError(t, err)
	assert.Equal(t, byName, byIndex)

	var invalidIndex *InvalidIndexError
	_, err = model.PiIndex(5)
	assert.True(t, errors.As(err, &invalidIndex))
	_, err = model.TransitionProbIndex([]int{-1}, 0)
	assert.True(t, errors.As(err, &invalidIndex))
	_, err = model.EmissionProbIndex(0, 4)
	assert.True(t, errors.As(err, &invalidIndex))

	state, err := model.State(4)
	require.NoError(t, err)
	assert.Equal(t, hmm.State("5"), state)
	index, err := model.ObservationIndex("c")
	require.NoError(t, err)
	assert.Equal(t, 2, index)
}

func TestModelBackoff(t *testing.T) {
	model := buildModel(t, orderThreeSamples(), 1, 0, nil)

	// 5 is never followed by 1
	prob, err := model.TransitionProb(hmm.NewStateSequence("5"), "1")
	require.NoError(t, err)

	entry, ok := model.TransitionEntry(hmm.NewStateSequence("5"))
	require.True(t, ok)
	unigram, err := model.TransitionProb(hmm.StateSequence{}, "1")
	require.NoError(t, err)

	assert.InDelta(t, entry.LogBackoff+unigram, prob, 1e-12)
}

func TestModelUnknownContextBacksOff(t *testing.T) {
	model := buildModel(t, orderThreeSamples(), 2, 0, nil)

	prob, err := model.TransitionProb(hmm.NewStateSequence("9", "9"), "4")
	require.NoError(t, err)
	unigram, err := model.TransitionProb(hmm.StateSequence{}, "4")
	require.NoError(t, err)
	assert.Equal(t, unigram, prob)
}

func TestModelTruncatesLongContext(t *testing.T) {
	model := buildModel(t, orderThreeSamples(), 2, 0, nil)

	long, err := model.TransitionProb(hmm.NewStateSequence("5", "5", "1", "2", "3"), "4")
	require.NoError(t, err)
	short, err := model.TransitionProb(hmm.NewStateSequence("2", "3"), "4")
	require.NoError(t, err)
	assert.Equal(t, short, long)
}

func TestModelEmptyTableIsNegativeInfinity(t *testing.T) {
	dict := NewDictionary()
	dict.AddState("A")
	model := newModel(1, dict, map[hmm.State]float64{"A": 0}, newTransitionTable(), map[hmm.State]*emissionTable{})

	prob, err := model.TransitionProb(hmm.NewStateSequence("A"), "A")
	require.NoError(t, err)
	assert.True(t, math.IsInf(prob, -1))
}

func TestModelScore(t *testing.T) {
	model := buildModel(t, orderThreeSamples(), 2, 0, nil)
	sample := newSample("1 2 3 4", "a b c d")

	score, err := model.Score(sample)
	require.NoError(t, err)

	expected, err := model.Pi("1")
	require.NoError(t, err)
	for i, state := range sample.States {
		if i > 0 {
			start := i - 2
			if start < 0 {
				start = 0
			}
			prob, err := model.TransitionProb(sample.States[start:i], state)
			require.NoError(t, err)
			expected += prob
		}
		prob, err := model.EmissionProb(state, sample.Observations[i])
		require.NoError(t, err)
		expected += prob
	}
	assert.InDelta(t, expected, score, 1e-12)

	_, err = model.Score(newSample("1 2", "a"))
	var misaligned *MisalignedSampleError
	assert.True(t, errors.As(err, &misaligned))

	empty, err := model.Score(hmm.Sample{})
	require.NoError(t, err)
	assert.Equal(t, 0.0, empty)
}

func TestModelSummary(t *testing.T) {
	model := buildModel(t, orderThreeSamples(), 3, 0, nil)
	summary := model.Summary()

	assert.Equal(t, 3, summary.Order)
	assert.Equal(t, 5, summary.StateCount)
	assert.Equal(t, 4, summary.ObservationCount)
	assert.Greater(t, summary.TransitionEntries, 5)
}

func TestModelConcurrentQueries(t *testing.T) {
	model := buildModel(t, orderThreeSamples(), 3, 0, nil)
	context := hmm.NewStateSequence("1", "2", "3")

	want, err := model.TransitionProb(context, "4")
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]float64, 32)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				prob, err := model.TransitionProb(context, "4")
				if err != nil {
					return
				}
				results[i] = prob
			}
		}(i)
	}
	wg.Wait()

	for _, got := range results {
		assert.Equal(t, want, got)
	}
}
