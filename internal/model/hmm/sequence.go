package hmm

import (
	"fmt"
	"strings"
)

// keySeparator joins symbols into map keys. It cannot appear in a symbol
// read from the word/tag corpus format.
const keySeparator = "\x00"

// UnknownObservation is the reserved emission bucket for observations never
// seen with a given state
const UnknownObservation Observation = "<UNKNOWN>"

// State represents a hidden label (e.g. a part-of-speech tag)
type State string

// Observation represents an emitted symbol aligned with a state
type Observation string

// StateSequence is an ordered run of states. Methods never modify the
// receiver; every derived sequence is a fresh copy.
type StateSequence []State

// NewStateSequence builds a sequence from string labels
func NewStateSequence(labels ...string) StateSequence {
	seq := make(StateSequence, len(labels))
	for i, label := range labels {
		seq[i] = State(label)
	}
	return seq
}

// Len returns the number of states in the sequence
func (s StateSequence) Len() int {
	return len(s)
}

// Prefix returns the sequence with removeFromEnd states dropped from the end
func (s StateSequence) Prefix(removeFromEnd int) StateSequence {
	if removeFromEnd <= 0 {
		return s.clone(0, len(s))
	}
	if removeFromEnd >= len(s) {
		return StateSequence{}
	}
	return s.clone(0, len(s)-removeFromEnd)
}

// Suffix returns the sequence with removeFromStart states dropped from the start
func (s StateSequence) Suffix(removeFromStart int) StateSequence {
	if removeFromStart <= 0 {
		return s.clone(0, len(s))
	}
	if removeFromStart >= len(s) {
		return StateSequence{}
	}
	return s.clone(removeFromStart, len(s))
}

// Append returns a new sequence with state added at the end
func (s StateSequence) Append(state State) StateSequence {
	out := make(StateSequence, len(s)+1)
	copy(out, s)
	out[len(s)] = state
	return out
}

// Last returns the final state of the sequence
func (s StateSequence) Last() (State, bool) {
	if len(s) == 0 {
		return "", false
	}
	return s[len(s)-1], true
}

// Equal reports element-wise equality
func (s StateSequence) Equal(other StateSequence) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Key returns a value usable as a map key. Two sequences have the same key
// exactly when they are Equal.
func (s StateSequence) Key() string {
	return strings.Join(s.Strings(), keySeparator)
}

// Strings returns the labels of the sequence
func (s StateSequence) Strings() []string {
	out := make([]string, len(s))
	for i, state := range s {
		out[i] = string(state)
	}
	return out
}

// String returns the sequence as space-separated labels
func (s StateSequence) String() string {
	return strings.Join(s.Strings(), " ")
}

func (s StateSequence) clone(from, to int) StateSequence {
	out := make(StateSequence, to-from)
	copy(out, s[from:to])
	return out
}

// StateSequenceFromKey reverses Key
func StateSequenceFromKey(key string) StateSequence {
	if key == "" {
		return StateSequence{}
	}
	return NewStateSequence(strings.Split(key, keySeparator)...)
}

// ObservationSequence is an ordered run of observations
type ObservationSequence []Observation

// NewObservationSequence builds a sequence from string symbols
func NewObservationSequence(symbols ...string) ObservationSequence {
	seq := make(ObservationSequence, len(symbols))
	for i, symbol := range symbols {
		seq[i] = Observation(symbol)
	}
	return seq
}

// Len returns the number of observations in the sequence
func (o ObservationSequence) Len() int {
	return len(o)
}

// Prefix returns the sequence with removeFromEnd observations dropped from the end
func (o ObservationSequence) Prefix(removeFromEnd int) ObservationSequence {
	if removeFromEnd >= len(o) {
		return ObservationSequence{}
	}
	if removeFromEnd < 0 {
		removeFromEnd = 0
	}
	out := make(ObservationSequence, len(o)-removeFromEnd)
	copy(out, o)
	return out
}

// Suffix returns the sequence with removeFromStart observations dropped from the start
func (o ObservationSequence) Suffix(removeFromStart int) ObservationSequence {
	if removeFromStart >= len(o) {
		return ObservationSequence{}
	}
	if removeFromStart < 0 {
		removeFromStart = 0
	}
	out := make(ObservationSequence, len(o)-removeFromStart)
	copy(out, o[removeFromStart:])
	return out
}

// Append returns a new sequence with observation added at the end
func (o ObservationSequence) Append(observation Observation) ObservationSequence {
	out := make(ObservationSequence, len(o)+1)
	copy(out, o)
	out[len(o)] = observation
	return out
}

// Equal reports element-wise equality
func (o ObservationSequence) Equal(other ObservationSequence) bool {
	if len(o) != len(other) {
		return false
	}
	for i := range o {
		if o[i] != other[i] {
			return false
		}
	}
	return true
}

// Key returns a value usable as a map key
func (o ObservationSequence) Key() string {
	parts := make([]string, len(o))
	for i, observation := range o {
		parts[i] = string(observation)
	}
	return strings.Join(parts, keySeparator)
}

// String returns the sequence as space-separated symbols
func (o ObservationSequence) String() string {
	parts := make([]string, len(o))
	for i, observation := range o {
		parts[i] = string(observation)
	}
	return strings.Join(parts, " ")
}

// Sample is one labeled training sequence: states aligned position by
// position with observations
type Sample struct {
	States       StateSequence
	Observations ObservationSequence
}

// NewSample pairs states with observations, failing when the lengths differ
func NewSample(states StateSequence, observations ObservationSequence) (Sample, error) {
	sample := Sample{States: states, Observations: observations}
	if err := sample.Validate(); err != nil {
		return Sample{}, err
	}
	return sample, nil
}

// Len returns the number of aligned positions
func (s Sample) Len() int {
	return len(s.States)
}

// Validate checks that states and observations are aligned
func (s Sample) Validate() error {
	if len(s.States) != len(s.Observations) {
		return &MisalignedSampleError{States: len(s.States), Observations: len(s.Observations)}
	}
	return nil
}

// MisalignedSampleError is returned for a sample whose state and
// observation sequences have different lengths
type MisalignedSampleError struct {
	States       int
	Observations int
}

func (e *MisalignedSampleError) Error() string {
	return fmt.Sprintf("misaligned sample: %d states but %d observations", e.States, e.Observations)
}
