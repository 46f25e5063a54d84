package service

import (
	"math"
	"sort"

	"hmm-go/internal/model/hmm"

	"github.com/bits-and-blooms/bloom/v3"
)

// bloomFalsePositiveRate sizes the transition filter of a Model
const bloomFalsePositiveRate = 0.01

// LogProbEntry is an ARPA-style pair of base-10 log probability and
// back-off weight. A zero LogBackoff is the neutral weight.
type LogProbEntry struct {
	LogProb    float64
	LogBackoff float64
}

// transitionTable maps state sequences (context followed by target) to their
// entries. Once sealed, a bloom filter rejects most missing keys before the
// map lookup; the back-off path is dominated by misses.
type transitionTable struct {
	entries map[string]LogProbEntry
	filter  *bloom.BloomFilter
}

func newTransitionTable() *transitionTable {
	return &transitionTable{entries: make(map[string]LogProbEntry)}
}

func (t *transitionTable) put(seq hmm.StateSequence, entry LogProbEntry) {
	t.entries[seq.Key()] = entry
}

func (t *transitionTable) get(seq hmm.StateSequence) (LogProbEntry, bool) {
	key := seq.Key()
	if t.filter != nil && !t.filter.TestString(key) {
		return LogProbEntry{}, false
	}
	entry, ok := t.entries[key]
	return entry, ok
}

// seal builds the bloom filter; the table must not change afterwards
func (t *transitionTable) seal() {
	expected := uint(len(t.entries))
	if expected == 0 {
		expected = 1
	}
	filter := bloom.NewWithEstimates(expected, bloomFalsePositiveRate)
	for key := range t.entries {
		filter.AddString(key)
	}
	t.filter = filter
}

// logProb resolves target after context, backing off to shorter contexts.
// The loop runs at most order+1 times.
func (t *transitionTable) logProb(context hmm.StateSequence, target hmm.State, order int) float64 {
	if context.Len() > order {
		context = context.Suffix(context.Len() - order)
	}

	backoff := 0.0
	for {
		if entry, ok := t.get(context.Append(target)); ok {
			return backoff + entry.LogProb
		}
		if context.Len() == 0 {
			return math.Inf(-1)
		}
		if entry, ok := t.get(context); ok {
			backoff += entry.LogBackoff
		}
		context = context.Suffix(1)
	}
}

// sortedKeys returns the stored sequences ordered by length, then label
func (t *transitionTable) sortedKeys() []hmm.StateSequence {
	seqs := make([]hmm.StateSequence, 0, len(t.entries))
	for key := range t.entries {
		seqs = append(seqs, hmm.StateSequenceFromKey(key))
	}
	sort.Slice(seqs, func(i, j int) bool {
		if seqs[i].Len() != seqs[j].Len() {
			return seqs[i].Len() < seqs[j].Len()
		}
		return seqs[i].Key() < seqs[j].Key()
	})
	return seqs
}

// emissionTable holds one state's observation log probabilities plus the
// UNKNOWN bucket for observations never seen with the state
type emissionTable struct {
	probs   map[hmm.Observation]float64
	unknown float64
}

func newEmissionTable() *emissionTable {
	return &emissionTable{probs: make(map[hmm.Observation]float64)}
}

// Model is a trained HMM. It is immutable and safe for concurrent queries.
type Model struct {
	order       int
	dict        *Dictionary
	pi          map[hmm.State]float64
	transitions *transitionTable
	emissions   map[hmm.State]*emissionTable
}

func newModel(order int, dict *Dictionary, pi map[hmm.State]float64, transitions *transitionTable, emissions map[hmm.State]*emissionTable) *Model {
	transitions.seal()
	return &Model{
		order:       order,
		dict:        dict,
		pi:          pi,
		transitions: transitions,
		emissions:   emissions,
	}
}

// Order returns the transition order
func (m *Model) Order() int {
	return m.order
}

// Pi returns the log10 initial probability of state
func (m *Model) Pi(state hmm.State) (float64, error) {
	prob, ok := m.pi[state]
	if !ok {
		return 0, &UnknownStateError{State: state}
	}
	return prob, nil
}

// PiIndex returns the log10 initial probability of the state at index
func (m *Model) PiIndex(index int) (float64, error) {
	state, err := m.dict.State(index)
	if err != nil {
		return 0, err
	}
	return m.Pi(state)
}

// TransitionProb returns the log10 probability of target following context.
// Unseen continuations back off to shorter contexts, adding the back-off
// weight of each abandoned context. Contexts longer than the model order are
// truncated to their last order states. If no context at all matches, the
// result is -Inf.
func (m *Model) TransitionProb(context hmm.StateSequence, target hmm.State) (float64, error) {
	if !m.dict.ContainsState(target) {
		return 0, &UnknownStateError{State: target}
	}
	return m.transitions.logProb(context, target, m.order), nil
}

// TransitionProbIndex is TransitionProb over dictionary indices
func (m *Model) TransitionProbIndex(context []int, target int) (float64, error) {
	states := make(hmm.StateSequence, len(context))
	for i, index := range context {
		state, err := m.dict.State(index)
		if err != nil {
			return 0, err
		}
		states[i] = state
	}
	state, err := m.dict.State(target)
	if err != nil {
		return 0, err
	}
	return m.TransitionProb(states, state)
}

// TransitionEntry returns the stored entry for a sequence, if any
func (m *Model) TransitionEntry(seq hmm.StateSequence) (LogProbEntry, bool) {
	return m.transitions.get(seq)
}

// EmissionProb returns the log10 probability of state emitting observation,
// falling back to the state's UNKNOWN bucket
func (m *Model) EmissionProb(state hmm.State, observation hmm.Observation) (float64, error) {
	table, ok := m.emissions[state]
	if !ok || !m.dict.ContainsState(state) {
		return 0, &UnknownStateError{State: state}
	}
	if prob, ok := table.probs[observation]; ok {
		return prob, nil
	}
	return table.unknown, nil
}

// EmissionProbIndex is EmissionProb over dictionary indices
func (m *Model) EmissionProbIndex(state, observation int) (float64, error) {
	s, err := m.dict.State(state)
	if err != nil {
		return 0, err
	}
	o, err := m.dict.Observation(observation)
	if err != nil {
		return 0, err
	}
	return m.EmissionProb(s, o)
}

// UnknownEmissionProb returns the UNKNOWN bucket of state
func (m *Model) UnknownEmissionProb(state hmm.State) (float64, error) {
	table, ok := m.emissions[state]
	if !ok {
		return 0, &UnknownStateError{State: state}
	}
	return table.unknown, nil
}

// Score returns the joint log10 probability of a labeled sample: the initial
// probability of its first state plus every transition and emission
func (m *Model) Score(sample hmm.Sample) (float64, error) {
	if err := sample.Validate(); err != nil {
		return 0, err
	}
	if sample.Len() == 0 {
		return 0, nil
	}

	score, err := m.Pi(sample.States[0])
	if err != nil {
		return 0, err
	}

	for i, state := range sample.States {
		if i > 0 {
			start := i - m.order
			if start < 0 {
				start = 0
			}
			prob, err := m.TransitionProb(sample.States[start:i], state)
			if err != nil {
				return 0, err
			}
			score += prob
		}

		prob, err := m.EmissionProb(state, sample.Observations[i])
		if err != nil {
			return 0, err
		}
		score += prob
	}

	return score, nil
}

// States returns every state in dictionary order
func (m *Model) States() []hmm.State {
	return m.dict.States()
}

// Observations returns every observation in dictionary order
func (m *Model) Observations() []hmm.Observation {
	return m.dict.Observations()
}

func (m *Model) State(index int) (hmm.State, error) {
	return m.dict.State(index)
}

func (m *Model) StateIndex(state hmm.State) (int, error) {
	return m.dict.StateIndex(state)
}

func (m *Model) Observation(index int) (hmm.Observation, error) {
	return m.dict.Observation(index)
}

func (m *Model) ObservationIndex(observation hmm.Observation) (int, error) {
	return m.dict.ObservationIndex(observation)
}

func (m *Model) StateCount() int {
	return m.dict.StateCount()
}

func (m *Model) ObservationCount() int {
	return m.dict.ObservationCount()
}

// Summary returns statistics about the model
func (m *Model) Summary() ModelSummary {
	emissionEntries := 0
	for _, table := range m.emissions {
		emissionEntries += len(table.probs)
	}
	return ModelSummary{
		Order:             m.order,
		StateCount:        m.dict.StateCount(),
		ObservationCount:  m.dict.ObservationCount(),
		TransitionEntries: len(m.transitions.entries),
		EmissionEntries:   emissionEntries,
	}
}

// Equal reports whether both models hold identical tables
func (m *Model) Equal(other *Model) bool {
	if other == nil || m.order != other.order || !m.dict.Equal(other.dict) {
		return false
	}
	if len(m.pi) != len(other.pi) || len(m.transitions.entries) != len(other.transitions.entries) || len(m.emissions) != len(other.emissions) {
		return false
	}
	for state, prob := range m.pi {
		if otherProb, ok := other.pi[state]; !ok || otherProb != prob {
			return false
		}
	}
	for key, entry := range m.transitions.entries {
		if otherEntry, ok := other.transitions.entries[key]; !ok || otherEntry != entry {
			return false
		}
	}
	for state, table := range m.emissions {
		otherTable, ok := other.emissions[state]
		if !ok || otherTable.unknown != table.unknown || len(otherTable.probs) != len(table.probs) {
			return false
		}
		for observation, prob := range table.probs {
			if otherProb, ok := otherTable.probs[observation]; !ok || otherProb != prob {
				return false
			}
		}
	}
	return true
}

// ModelSummary contains statistics about a trained model
type ModelSummary struct {
	Order             int `json:"order"`
	StateCount        int `json:"state_count"`
	ObservationCount  int `json:"observation_count"`
	TransitionEntries int `json:"transition_entries"`
	EmissionEntries   int `json:"emission_entries"`
}
