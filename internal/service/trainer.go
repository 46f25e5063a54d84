package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"hmm-go/internal/model/hmm"

	"go.uber.org/zap"
)

const (
	// shardQueueSize is the buffer of each worker's sample channel
	shardQueueSize = 64

	// progressInterval is how many samples pass between progress logs
	progressInterval = 10000
)

// TrainerOptions configures a Trainer
type TrainerOptions struct {
	Order    int
	Cutoff   int64
	Smoother Smoother
	Workers  int
}

// Trainer runs the counting and estimation pipeline over a sample stream.
// Samples are sharded round-robin across worker goroutines, each owning a
// Counter; the shards are merged before cutoff and estimation.
type Trainer struct {
	order     int
	cutoff    int64
	workers   int
	estimator *Estimator
	logger    *zap.Logger
}

// NewTrainer creates a trainer. Workers below one run a single shard.
func NewTrainer(opts TrainerOptions, logger *zap.Logger) (*Trainer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	estimator, err := NewEstimator(opts.Order, opts.Smoother, logger)
	if err != nil {
		return nil, err
	}

	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}

	return &Trainer{
		order:     opts.Order,
		cutoff:    opts.Cutoff,
		workers:   workers,
		estimator: estimator,
		logger:    logger,
	}, nil
}

// Train counts every sample of stream and estimates a model from the counts
func (t *Trainer) Train(ctx context.Context, stream SampleStream) (*Model, error) {
	counter, err := t.Count(ctx, stream)
	if err != nil {
		return nil, err
	}
	return t.estimator.Estimate(counter)
}

// TrainFile trains on a word/TAG corpus file
func (t *Trainer) TrainFile(ctx context.Context, path string) (*Model, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open corpus: %w", err)
	}
	defer file.Close()

	t.logger.Info("Training HMM from corpus",
		zap.String("path", path),
		zap.Int("order", t.order),
		zap.Int("workers", t.workers))

	return t.Train(ctx, NewWordTagStream(file))
}

// Count builds the merged, cut-off counter for stream. Dictionary indices
// follow the order symbols appear in the stream regardless of sharding.
func (t *Trainer) Count(ctx context.Context, stream SampleStream) (*Counter, error) {
	merged, err := NewCounter(t.order, t.logger)
	if err != nil {
		return nil, err
	}

	shards := make([]*Counter, t.workers)
	queues := make([]chan hmm.Sample, t.workers)
	var wg sync.WaitGroup

	for i := 0; i < t.workers; i++ {
		shard, err := NewCounter(t.order, zap.NewNop())
		if err != nil {
			return nil, err
		}
		shards[i] = shard
		queues[i] = make(chan hmm.Sample, shardQueueSize)

		wg.Add(1)
		go func(shard *Counter, queue <-chan hmm.Sample) {
			defer wg.Done()
			for sample := range queue {
				if err := shard.Update(sample); err != nil {
					t.logger.Error("Failed to count sample", zap.Error(err))
				}
			}
		}(shard, queues[i])
	}

	samples, readErr := t.dispatch(ctx, stream, merged.Dictionary(), queues)
	for _, queue := range queues {
		close(queue)
	}
	wg.Wait()

	if readErr != nil {
		return nil, readErr
	}

	for _, shard := range shards {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := merged.Merge(shard); err != nil {
			return nil, fmt.Errorf("failed to merge shard: %w", err)
		}
	}

	merged.Cutoff(t.cutoff)

	stats := merged.Stats()
	t.logger.Info("Counting complete",
		zap.Int("samples", samples),
		zap.Int64("state_tokens", stats.StateTokens),
		zap.Int64("distinct_sequences", stats.DistinctSequences),
		zap.Int("states", stats.StateCount),
		zap.Int("observations", stats.ObservationCount),
		zap.Int64("trie_bytes", stats.Memory.TotalMemoryBytes()))

	return merged, nil
}

// dispatch reads stream until EOF, registering symbols in dict in stream
// order and handing each sample to the next shard
func (t *Trainer) dispatch(ctx context.Context, stream SampleStream, dict *Dictionary, queues []chan hmm.Sample) (int, error) {
	n := 0
	for {
		if err := ctx.Err(); err != nil {
			return n, err
		}

		sample, err := stream.Read()
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		if err != nil {
			return n, fmt.Errorf("failed to read sample %d: %w", n, err)
		}
		if err := checkSample(sample); err != nil {
			return n, fmt.Errorf("invalid sample %d: %w", n, err)
		}

		for i := range sample.States {
			dict.AddState(sample.States[i])
			dict.AddObservation(sample.Observations[i])
		}

		select {
		case queues[n%len(queues)] <- sample:
		case <-ctx.Done():
			return n, ctx.Err()
		}

		n++
		if n%progressInterval == 0 {
			t.logger.Info("Training progress", zap.Int("samples", n))
		}
	}
}
