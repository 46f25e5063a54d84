package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"hmm-go/internal/model/hmm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func repeatSamples(n int) []hmm.Sample {
	var samples []hmm.Sample
	for i := 0; i < n; i++ {
		samples = append(samples, orderThreeSamples()...)
	}
	return samples
}

func TestTrainerShardedMatchesSinglePass(t *testing.T) {
	samples := repeatSamples(7)
	single := buildModel(t, samples, 2, 2, nil)

	for _, workers := range []int{1, 3, 8} {
		trainer, err := NewTrainer(TrainerOptions{Order: 2, Cutoff: 2, Workers: workers}, zap.NewNop())
		require.NoError(t, err)

		model, err := trainer.Train(context.Background(), NewSliceStream(samples))
		require.NoError(t, err)
		assert.True(t, model.Equal(single), "workers %d", workers)
	}
}

func TestTrainerCountMatchesCounter(t *testing.T) {
	samples := repeatSamples(3)
	single, err := NewCounterFromSamples(samples, 3, 0, zap.NewNop())
	require.NoError(t, err)

	trainer, err := NewTrainer(TrainerOptions{Order: 3, Workers: 4}, zap.NewNop())
	require.NoError(t, err)
	counter, err := trainer.Count(context.Background(), NewSliceStream(samples))
	require.NoError(t, err)

	assert.Equal(t, collectSequences(single), collectSequences(counter))
	assert.True(t, counter.Dictionary().Equal(single.Dictionary()))
	assert.Equal(t, single.TotalStartStatesCount(), counter.TotalStartStatesCount())
}

func TestTrainerCancelled(t *testing.T) {
	trainer, err := NewTrainer(TrainerOptions{Order: 1, Workers: 2}, zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = trainer.Train(ctx, NewSliceStream(repeatSamples(10)))
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestTrainerStreamErrors(t *testing.T) {
	trainer, err := NewTrainer(TrainerOptions{Order: 1, Workers: 2}, zap.NewNop())
	require.NoError(t, err)

	_, err = trainer.Train(context.Background(), NewWordTagStream(strings.NewReader("a/X b/Y\nbroken\n")))
	var malformed *MalformedRecordError
	assert.True(t, errors.As(err, &malformed))

	misaligned := []hmm.Sample{{States: hmm.NewStateSequence("X"), Observations: hmm.ObservationSequence{}}}
	_, err = trainer.Train(context.Background(), NewSliceStream(misaligned))
	var misalignedErr *MisalignedSampleError
	assert.True(t, errors.As(err, &misalignedErr))

	reserved := []hmm.Sample{newSample("A A B", "<UNKNOWN> x y")}
	_, err = trainer.Train(context.Background(), NewSliceStream(reserved))
	assert.True(t, errors.Is(err, ErrReservedObservation))
}

func TestTrainerInvalidOrder(t *testing.T) {
	_, err := NewTrainer(TrainerOptions{Order: 0}, nil)
	var orderErr *InvalidOrderError
	assert.True(t, errors.As(err, &orderErr))
}

func TestTrainFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corpus.txt")
	corpus := "the/DT dog/NN barks/VBZ\nthe/DT cat/NN sleeps/VBZ\na/DT dog/NN sleeps/VBZ\n"
	require.NoError(t, os.WriteFile(path, []byte(corpus), 0644))

	trainer, err := NewTrainer(TrainerOptions{Order: 1, Workers: 2}, zap.NewNop())
	require.NoError(t, err)

	model, err := trainer.TrainFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, []hmm.State{"DT", "NN", "VBZ"}, model.States())

	pi, err := model.Pi("DT")
	require.NoError(t, err)
	other, err := model.Pi("NN")
	require.NoError(t, err)
	assert.Greater(t, pi, other)

	_, err = trainer.TrainFile(context.Background(), filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}
