package service

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"hmm-go/internal/model/hmm"
)

// maxLineBytes bounds one corpus line
const maxLineBytes = 1 << 20

// SampleStream yields labeled samples one at a time. Read returns io.EOF
// once the stream is exhausted.
type SampleStream interface {
	Read() (hmm.Sample, error)
}

// WordTagStream reads one sentence per line, each token written as
// observation/STATE. Tokens are split at the last slash so observations may
// contain slashes themselves. Blank lines are skipped.
type WordTagStream struct {
	scanner *bufio.Scanner
	line    int
}

// NewWordTagStream wraps r
func NewWordTagStream(r io.Reader) *WordTagStream {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	return &WordTagStream{scanner: scanner}
}

// Read returns the next sample
func (s *WordTagStream) Read() (hmm.Sample, error) {
	for s.scanner.Scan() {
		s.line++
		tokens := strings.Fields(s.scanner.Text())
		if len(tokens) == 0 {
			continue
		}

		states := make(hmm.StateSequence, len(tokens))
		observations := make(hmm.ObservationSequence, len(tokens))
		for i, token := range tokens {
			cut := strings.LastIndex(token, "/")
			if cut <= 0 || cut == len(token)-1 {
				return hmm.Sample{}, &MalformedRecordError{
					Kind:   "sample",
					Record: token,
					Err:    fmt.Errorf("line %d: expected observation/STATE", s.line),
				}
			}
			if hmm.Observation(token[:cut]) == hmm.UnknownObservation {
				return hmm.Sample{}, &MalformedRecordError{
					Kind:   "sample",
					Record: token,
					Err:    fmt.Errorf("line %d: %w", s.line, ErrReservedObservation),
				}
			}
			observations[i] = hmm.Observation(token[:cut])
			states[i] = hmm.State(token[cut+1:])
		}
		return hmm.Sample{States: states, Observations: observations}, nil
	}

	if err := s.scanner.Err(); err != nil {
		return hmm.Sample{}, fmt.Errorf("failed to read corpus: %w", err)
	}
	return hmm.Sample{}, io.EOF
}

// SliceStream replays samples held in memory
type SliceStream struct {
	samples []hmm.Sample
	next    int
}

func NewSliceStream(samples []hmm.Sample) *SliceStream {
	return &SliceStream{samples: samples}
}

func (s *SliceStream) Read() (hmm.Sample, error) {
	if s.next >= len(s.samples) {
		return hmm.Sample{}, io.EOF
	}
	sample := s.samples[s.next]
	s.next++
	return sample, nil
}
