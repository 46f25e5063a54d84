package service

import (
	"sort"
	"sync"

	"hmm-go/internal/model/hmm"
	"hmm-go/internal/service/trie"

	"go.uber.org/zap"
)

// DefaultOrder is the transition order used when none is configured
const DefaultOrder = 1

// Counter accumulates the frequencies needed to estimate an HMM of a given
// order: start states, every state sequence of length 1..order+1, and
// state/observation emissions.
type Counter struct {
	order       int
	dict        *Dictionary
	startCounts map[hmm.State]int64
	totalStarts int64
	sequences   *trie.Trie // state sequences of length 1..order+1
	totalStates int64      // sum of length-1 sequence counts
	emissions   map[hmm.State]map[hmm.Observation]int64
	logger      *zap.Logger
	mu          sync.RWMutex
}

// NewCounter creates an empty counter for the given order
func NewCounter(order int, logger *zap.Logger) (*Counter, error) {
	if order < 1 {
		return nil, &InvalidOrderError{Order: order}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Counter{
		order:       order,
		dict:        NewDictionary(),
		startCounts: make(map[hmm.State]int64),
		sequences:   trie.New(),
		emissions:   make(map[hmm.State]map[hmm.Observation]int64),
		logger:      logger,
	}, nil
}

// NewCounterFromSamples counts every sample and then applies cutoff
func NewCounterFromSamples(samples []hmm.Sample, order int, cutoff int64, logger *zap.Logger) (*Counter, error) {
	counter, err := NewCounter(order, logger)
	if err != nil {
		return nil, err
	}
	for _, sample := range samples {
		if err := counter.Update(sample); err != nil {
			return nil, err
		}
	}
	counter.Cutoff(cutoff)
	return counter, nil
}

// Update adds one labeled sample to the counts. The reserved UNKNOWN
// observation is rejected with a MalformedRecordError.
func (c *Counter) Update(sample hmm.Sample) error {
	if err := checkSample(sample); err != nil {
		return err
	}
	if sample.Len() == 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	states := sample.States.Strings()
	length := len(states)

	first := sample.States[0]
	c.startCounts[first]++
	c.totalStarts++

	for i := 0; i < length; i++ {
		state := sample.States[i]
		observation := sample.Observations[i]
		c.dict.AddState(state)
		c.dict.AddObservation(observation)

		// Every context length from 1 up to order+1 starting at i
		maxLen := c.order + 1
		if length-i < maxLen {
			maxLen = length - i
		}
		for k := 1; k <= maxLen; k++ {
			c.sequences.Add(states[i:i+k], 1)
		}
		c.totalStates++

		observations, ok := c.emissions[state]
		if !ok {
			observations = make(map[hmm.Observation]int64)
			c.emissions[state] = observations
		}
		observations[observation]++
	}

	return nil
}

// Cutoff removes every emission count strictly below threshold and returns
// the number of removed entries. States keep their (possibly empty) emission
// table so the UNKNOWN bucket stays available for them.
func (c *Counter) Cutoff(threshold int64) int {
	if threshold <= 1 {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for _, observations := range c.emissions {
		for observation, count := range observations {
			if count < threshold {
				delete(observations, observation)
				removed++
			}
		}
	}

	c.logger.Info("Applied emission cutoff",
		zap.Int64("threshold", threshold),
		zap.Int("removed", removed))

	return removed
}

// Merge adds every count of other into c. Merging is associative and
// commutative over counts; dictionary indices follow first-seen order.
func (c *Counter) Merge(other *Counter) error {
	if other == nil || other == c {
		return nil
	}
	if other.order != c.order {
		return &InvalidOrderError{Order: other.order, Expected: c.order}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	other.mu.RLock()
	defer other.mu.RUnlock()

	c.dict.Merge(other.dict)
	for state, count := range other.startCounts {
		c.startCounts[state] += count
	}
	c.totalStarts += other.totalStarts

	c.sequences.Merge(other.sequences)
	c.totalStates += other.totalStates

	for state, otherObservations := range other.emissions {
		observations, ok := c.emissions[state]
		if !ok {
			observations = make(map[hmm.Observation]int64, len(otherObservations))
			c.emissions[state] = observations
		}
		for observation, count := range otherObservations {
			observations[observation] += count
		}
	}

	c.logger.Debug("Merged counter",
		zap.Int64("sequences", c.sequences.Len()),
		zap.Int64("states", c.totalStates))

	return nil
}

// Order returns the transition order the counter was built for
func (c *Counter) Order() int {
	return c.order
}

// Dictionary returns the symbol registry filled while counting
func (c *Counter) Dictionary() *Dictionary {
	return c.dict
}

// StartStateCount returns how many samples began with state
func (c *Counter) StartStateCount(state hmm.State) int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.startCounts[state]
}

// TotalStartStatesCount returns the number of counted samples
func (c *Counter) TotalStartStatesCount() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.totalStarts
}

// DistinctStartStates returns the number of different states samples began with
func (c *Counter) DistinctStartStates() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.startCounts)
}

// SequenceCount returns the frequency of a state sequence
func (c *Counter) SequenceCount(seq hmm.StateSequence) int64 {
	return c.sequences.Count(seq.Strings())
}

// TransitionCount returns the frequency of context followed by target
func (c *Counter) TransitionCount(context hmm.StateSequence, target hmm.State) int64 {
	return c.SequenceCount(context.Append(target))
}

// TotalStatesCount returns the number of counted state tokens
func (c *Counter) TotalStatesCount() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.totalStates
}

// DistinctSequenceCount returns the number of distinct counted sequences
func (c *Counter) DistinctSequenceCount() int64 {
	return c.sequences.Len()
}

// Suffixes returns every state recorded as a continuation of context, in
// dictionary order. An empty context yields every counted state.
func (c *Counter) Suffixes(context hmm.StateSequence) []hmm.State {
	children := c.sequences.Children(context.Strings())
	out := make([]hmm.State, len(children))
	for i, child := range children {
		out[i] = hmm.State(child)
	}
	c.sortStates(out)
	return out
}

// ContinuationTotal returns the summed counts of every recorded continuation
// of context. For the empty context this is the total state count.
func (c *Counter) ContinuationTotal(context hmm.StateSequence) int64 {
	if context.Len() == 0 {
		return c.TotalStatesCount()
	}
	var total int64
	for _, suffix := range c.Suffixes(context) {
		total += c.TransitionCount(context, suffix)
	}
	return total
}

// WalkSequences calls fn for every counted sequence, shortest first
func (c *Counter) WalkSequences(fn func(seq hmm.StateSequence, count int64)) {
	byLength := make([][]hmm.StateSequence, c.order+2)
	counts := make(map[string]int64)
	c.sequences.Walk(func(symbols []string, count int64) {
		seq := hmm.NewStateSequence(symbols...)
		byLength[len(symbols)] = append(byLength[len(symbols)], seq)
		counts[seq.Key()] = count
	})
	for _, group := range byLength {
		for _, seq := range group {
			fn(seq, counts[seq.Key()])
		}
	}
}

// ContainsSequence reports whether seq was counted
func (c *Counter) ContainsSequence(seq hmm.StateSequence) bool {
	return c.SequenceCount(seq) > 0
}

// ContainsTransition reports whether context followed by target was counted
func (c *Counter) ContainsTransition(context hmm.StateSequence, target hmm.State) bool {
	return c.TransitionCount(context, target) > 0
}

// ContainsState reports whether state was counted
func (c *Counter) ContainsState(state hmm.State) bool {
	return c.SequenceCount(hmm.StateSequence{state}) > 0
}

// EmissionCount returns how often state emitted observation
func (c *Counter) EmissionCount(state hmm.State, observation hmm.Observation) int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.emissions[state][observation]
}

// ContainsEmission reports whether state was seen emitting observation
func (c *Counter) ContainsEmission(state hmm.State, observation hmm.Observation) bool {
	return c.EmissionCount(state, observation) > 0
}

// StateEmissionTotal returns the retained emission count of state
func (c *Counter) StateEmissionTotal(state hmm.State) int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var total int64
	for _, count := range c.emissions[state] {
		total += count
	}
	return total
}

// EmissionStates returns every state with an emission table, in dictionary order
func (c *Counter) EmissionStates() []hmm.State {
	c.mu.RLock()
	out := make([]hmm.State, 0, len(c.emissions))
	for state := range c.emissions {
		out = append(out, state)
	}
	c.mu.RUnlock()

	c.sortStates(out)
	return out
}

// EmissionObservations returns the retained observations of state, in dictionary order
func (c *Counter) EmissionObservations(state hmm.State) []hmm.Observation {
	c.mu.RLock()
	out := make([]hmm.Observation, 0, len(c.emissions[state]))
	for observation := range c.emissions[state] {
		out = append(out, observation)
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		a, _ := c.dict.ObservationIndex(out[i])
		b, _ := c.dict.ObservationIndex(out[j])
		return a < b
	})
	return out
}

// Stats returns summary statistics about the counts
func (c *Counter) Stats() CounterStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	emissionEntries := 0
	for _, observations := range c.emissions {
		emissionEntries += len(observations)
	}

	return CounterStats{
		Order:             c.order,
		Samples:           c.totalStarts,
		StateTokens:       c.totalStates,
		DistinctSequences: c.sequences.Len(),
		StateCount:        c.dict.StateCount(),
		ObservationCount:  c.dict.ObservationCount(),
		EmissionEntries:   emissionEntries,
		Memory:            c.sequences.MemoryStats(),
	}
}

func (c *Counter) sortStates(states []hmm.State) {
	sort.Slice(states, func(i, j int) bool {
		a, _ := c.dict.StateIndex(states[i])
		b, _ := c.dict.StateIndex(states[j])
		return a < b
	})
}

// CounterStats contains statistics about a counter
type CounterStats struct {
	Order             int              `json:"order"`
	Samples           int64            `json:"samples"`
	StateTokens       int64            `json:"state_tokens"`
	DistinctSequences int64            `json:"distinct_sequences"`
	StateCount        int              `json:"state_count"`
	ObservationCount  int              `json:"observation_count"`
	EmissionEntries   int              `json:"emission_entries"`
	Memory            trie.MemoryStats `json:"memory"`
}
