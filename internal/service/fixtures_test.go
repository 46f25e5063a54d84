package service

import (
	"strings"
	"testing"

	"hmm-go/internal/model/hmm"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newSample(states, observations string) hmm.Sample {
	return hmm.Sample{
		States:       hmm.NewStateSequence(strings.Fields(states)...),
		Observations: hmm.NewObservationSequence(strings.Fields(observations)...),
	}
}

// orderThreeSamples is a small corpus over states 1..5 and observations a..d
func orderThreeSamples() []hmm.Sample {
	return []hmm.Sample{
		newSample("1 2 3 4 3 2 4 5", "a b c d d c b b"),
		newSample("3 3 4 5 2 2 1 3 5", "c a b c c a d a a"),
		newSample("5 2 1 4 3 1 1", "a b a c b a d"),
	}
}

func buildModel(t *testing.T, samples []hmm.Sample, order int, cutoff int64, smoother Smoother) *Model {
	t.Helper()

	counter, err := NewCounterFromSamples(samples, order, cutoff, zap.NewNop())
	require.NoError(t, err)

	estimator, err := NewEstimator(order, smoother, zap.NewNop())
	require.NoError(t, err)

	model, err := estimator.Estimate(counter)
	require.NoError(t, err)
	return model
}
