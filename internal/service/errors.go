package service

import (
	"errors"
	"fmt"

	"hmm-go/internal/model/hmm"
)

// MisalignedSampleError is returned when a training sample's state and
// observation sequences differ in length
type MisalignedSampleError = hmm.MisalignedSampleError

// InvalidOrderError is returned for a model order below 1, or when a
// Counter's order does not match the order a caller expects
type InvalidOrderError struct {
	Order    int
	Expected int // 0 when any positive order is acceptable
}

func (e *InvalidOrderError) Error() string {
	if e.Expected > 0 {
		return fmt.Sprintf("invalid order %d: expected %d", e.Order, e.Expected)
	}
	return fmt.Sprintf("invalid order %d: must be at least 1", e.Order)
}

// UnknownStateError is returned when a queried state is not in the dictionary
type UnknownStateError struct {
	State hmm.State
}

func (e *UnknownStateError) Error() string {
	return fmt.Sprintf("unknown state: %q", string(e.State))
}

// UnknownObservationError is returned when a queried observation is not in the dictionary
type UnknownObservationError struct {
	Observation hmm.Observation
}

func (e *UnknownObservationError) Error() string {
	return fmt.Sprintf("unknown observation: %q", string(e.Observation))
}

// InvalidIndexError is returned for a dictionary index out of range
type InvalidIndexError struct {
	Kind  string // "state" or "observation"
	Index int
	Size  int
}

func (e *InvalidIndexError) Error() string {
	return fmt.Sprintf("invalid %s index %d: dictionary holds %d", e.Kind, e.Index, e.Size)
}

// ErrReservedObservation is wrapped when input uses the UNKNOWN bucket symbol as a real observation
var ErrReservedObservation = errors.New("observation " + string(hmm.UnknownObservation) + " is reserved")

// MalformedRecordError is returned when a persisted or corpus record cannot be parsed
type MalformedRecordError struct {
	Kind   string
	Record string
	Err    error
}

func (e *MalformedRecordError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed %s record %q: %v", e.Kind, e.Record, e.Err)
	}
	return fmt.Sprintf("malformed %s record %q", e.Kind, e.Record)
}

func (e *MalformedRecordError) Unwrap() error {
	return e.Err
}

// checkSample validates alignment and rejects the reserved UNKNOWN symbol
func checkSample(sample hmm.Sample) error {
	if err := sample.Validate(); err != nil {
		return err
	}
	for _, observation := range sample.Observations {
		if observation == hmm.UnknownObservation {
			return &MalformedRecordError{Kind: "sample", Record: string(observation), Err: ErrReservedObservation}
		}
	}
	return nil
}
