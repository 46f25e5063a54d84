package service

import (
	"hmm-go/internal/model/hmm"
)

// Dictionary maps states and observations to dense indices in first-seen
// order. It is filled while counting and is read-only once a Model holds it.
type Dictionary struct {
	stateToIndex       map[hmm.State]int
	states             []hmm.State
	observationToIndex map[hmm.Observation]int
	observations       []hmm.Observation
}

// NewDictionary creates an empty dictionary
func NewDictionary() *Dictionary {
	return &Dictionary{
		stateToIndex:       make(map[hmm.State]int),
		observationToIndex: make(map[hmm.Observation]int),
	}
}

// AddState registers state if needed and returns its index
func (d *Dictionary) AddState(state hmm.State) int {
	if index, ok := d.stateToIndex[state]; ok {
		return index
	}
	index := len(d.states)
	d.stateToIndex[state] = index
	d.states = append(d.states, state)
	return index
}

// AddObservation registers observation if needed and returns its index
func (d *Dictionary) AddObservation(observation hmm.Observation) int {
	if index, ok := d.observationToIndex[observation]; ok {
		return index
	}
	index := len(d.observations)
	d.observationToIndex[observation] = index
	d.observations = append(d.observations, observation)
	return index
}

// Clone returns an independent copy
func (d *Dictionary) Clone() *Dictionary {
	clone := NewDictionary()
	clone.Merge(d)
	return clone
}

// Merge registers every symbol of other, keeping this dictionary's indices
func (d *Dictionary) Merge(other *Dictionary) {
	for _, state := range other.states {
		d.AddState(state)
	}
	for _, observation := range other.observations {
		d.AddObservation(observation)
	}
}

// StateIndex returns the index of state
func (d *Dictionary) StateIndex(state hmm.State) (int, error) {
	index, ok := d.stateToIndex[state]
	if !ok {
		return -1, &UnknownStateError{State: state}
	}
	return index, nil
}

// ObservationIndex returns the index of observation
func (d *Dictionary) ObservationIndex(observation hmm.Observation) (int, error) {
	index, ok := d.observationToIndex[observation]
	if !ok {
		return -1, &UnknownObservationError{Observation: observation}
	}
	return index, nil
}

// State returns the state at index
func (d *Dictionary) State(index int) (hmm.State, error) {
	if !d.ContainsStateIndex(index) {
		return "", &InvalidIndexError{Kind: "state", Index: index, Size: len(d.states)}
	}
	return d.states[index], nil
}

// Observation returns the observation at index
func (d *Dictionary) Observation(index int) (hmm.Observation, error) {
	if !d.ContainsObservationIndex(index) {
		return "", &InvalidIndexError{Kind: "observation", Index: index, Size: len(d.observations)}
	}
	return d.observations[index], nil
}

func (d *Dictionary) ContainsState(state hmm.State) bool {
	_, ok := d.stateToIndex[state]
	return ok
}

func (d *Dictionary) ContainsObservation(observation hmm.Observation) bool {
	_, ok := d.observationToIndex[observation]
	return ok
}

func (d *Dictionary) ContainsStateIndex(index int) bool {
	return index >= 0 && index < len(d.states)
}

func (d *Dictionary) ContainsObservationIndex(index int) bool {
	return index >= 0 && index < len(d.observations)
}

// StateCount returns the number of distinct states
func (d *Dictionary) StateCount() int {
	return len(d.states)
}

// ObservationCount returns the number of distinct observations
func (d *Dictionary) ObservationCount() int {
	return len(d.observations)
}

// States returns all states in index order
func (d *Dictionary) States() []hmm.State {
	out := make([]hmm.State, len(d.states))
	copy(out, d.states)
	return out
}

// Observations returns all observations in index order
func (d *Dictionary) Observations() []hmm.Observation {
	out := make([]hmm.Observation, len(d.observations))
	copy(out, d.observations)
	return out
}

// Equal reports whether both dictionaries assign the same indices
func (d *Dictionary) Equal(other *Dictionary) bool {
	if other == nil || len(d.states) != len(other.states) || len(d.observations) != len(other.observations) {
		return false
	}
	for i := range d.states {
		if d.states[i] != other.states[i] {
			return false
		}
	}
	for i := range d.observations {
		if d.observations[i] != other.observations[i] {
			return false
		}
	}
	return true
}
