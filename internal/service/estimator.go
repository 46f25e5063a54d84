package service

import (
	"math"

	"hmm-go/internal/model/hmm"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
)

// Estimator turns the counts of a Counter into a smoothed Model
type Estimator struct {
	order    int
	smoother Smoother
	logger   *zap.Logger
}

// NewEstimator creates an estimator for counters of the given order. A nil
// smoother defaults to additive smoothing with DefaultDelta.
func NewEstimator(order int, smoother Smoother, logger *zap.Logger) (*Estimator, error) {
	if order < 1 {
		return nil, &InvalidOrderError{Order: order}
	}
	if smoother == nil {
		smoother = NewAdditiveSmoother(DefaultDelta)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Estimator{
		order:    order,
		smoother: smoother,
		logger:   logger,
	}, nil
}

// Estimate builds a new Model from counter. The counter is only read.
func (e *Estimator) Estimate(counter *Counter) (*Model, error) {
	if counter.Order() != e.order {
		return nil, &InvalidOrderError{Order: counter.Order(), Expected: e.order}
	}

	dict := counter.Dictionary().Clone()
	pi := e.estimatePi(counter, dict)
	transitions := e.estimateTransitions(counter, dict)
	emissions := e.estimateEmissions(counter, dict)

	model := newModel(e.order, dict, pi, transitions, emissions)

	summary := model.Summary()
	e.logger.Info("Estimated model",
		zap.String("smoother", e.smoother.Name()),
		zap.Int("order", summary.Order),
		zap.Int("states", summary.StateCount),
		zap.Int("observations", summary.ObservationCount),
		zap.Int("transitions", summary.TransitionEntries),
		zap.Int("emissions", summary.EmissionEntries))

	return model, nil
}

// estimatePi computes p(s) = smooth(count(s) | M sample starts) for every state
func (e *Estimator) estimatePi(counter *Counter, dict *Dictionary) map[hmm.State]float64 {
	n := dict.StateCount()
	total := counter.TotalStartStatesCount()
	seen := counter.DistinctStartStates()

	pi := make(map[hmm.State]float64, n)
	for _, state := range dict.States() {
		count := counter.StartStateCount(state)
		pi[state] = math.Log10(probability(e.smoother, count, total, seen, n))
	}
	return pi
}

// contextStats caches the denominator inputs of one context
type contextStats struct {
	total int64
	seen  int
}

// estimateTransitions computes a probability for every counted sequence and
// then a back-off weight for every sequence shorter than order+1.
func (e *Estimator) estimateTransitions(counter *Counter, dict *Dictionary) *transitionTable {
	n := dict.StateCount()
	table := newTransitionTable()
	cache := make(map[string]contextStats)

	var sequences []hmm.StateSequence
	counter.WalkSequences(func(seq hmm.StateSequence, count int64) {
		context := seq.Prefix(1)
		stats, ok := cache[context.Key()]
		if !ok {
			// denominator is the sum over the recorded continuations of context
			stats = contextStats{
				total: counter.ContinuationTotal(context),
				seen:  len(counter.Suffixes(context)),
			}
			cache[context.Key()] = stats
		}

		prob := e.smoother.Smooth(count, stats.total, stats.seen, n)
		table.put(seq, LogProbEntry{LogProb: math.Log10(prob)})
		sequences = append(sequences, seq)
	})

	// Sequences arrive shortest first, so the weights of shorter contexts are
	// in place before any longer context backs off through them.
	omitted := 0
	for _, seq := range sequences {
		if seq.Len() >= e.order+1 {
			continue
		}
		bow := e.backoffWeight(counter, table, seq, n)
		if math.IsNaN(bow) || math.IsInf(bow, 0) || bow <= 0 {
			omitted++
			continue
		}
		entry, _ := table.get(seq)
		entry.LogBackoff = math.Log10(bow)
		table.put(seq, entry)
	}

	if omitted > 0 {
		e.logger.Debug("Omitted non-finite back-off weights", zap.Int("count", omitted))
	}

	return table
}

// backoffWeight returns the Katz-style weight of context h:
//
//	(1 - sum p(t|h)) / (1 - sum P(t|h'))
//
// over the continuations t seen after h, where h' drops the earliest state
// of h and P is the backed-off query. A context that has no continuations,
// or has seen every state, never backs off and gets the neutral weight.
func (e *Estimator) backoffWeight(counter *Counter, table *transitionTable, context hmm.StateSequence, vocabularySize int) float64 {
	suffixes := counter.Suffixes(context)
	if len(suffixes) == 0 || len(suffixes) >= vocabularySize {
		return 1
	}

	shorter := context.Suffix(1)
	higher := make([]float64, 0, len(suffixes))
	lower := make([]float64, 0, len(suffixes))
	for _, target := range suffixes {
		entry, _ := table.get(context.Append(target))
		higher = append(higher, math.Pow(10, entry.LogProb))
		lower = append(lower, math.Pow(10, table.logProb(shorter, target, e.order)))
	}

	return (1 - floats.Sum(higher)) / (1 - floats.Sum(lower))
}

// estimateEmissions computes p(o|s) for every retained emission and the
// UNKNOWN bucket of every state
func (e *Estimator) estimateEmissions(counter *Counter, dict *Dictionary) map[hmm.State]*emissionTable {
	n := dict.ObservationCount()
	emissions := make(map[hmm.State]*emissionTable)

	for _, state := range counter.EmissionStates() {
		observations := counter.EmissionObservations(state)
		total := counter.StateEmissionTotal(state)
		seen := len(observations)

		table := newEmissionTable()
		for _, observation := range observations {
			count := counter.EmissionCount(state, observation)
			table.probs[observation] = math.Log10(e.smoother.Smooth(count, total, seen, n))
		}
		table.unknown = math.Log10(e.smoother.Unseen(total, seen, n))
		emissions[state] = table
	}

	return emissions
}
