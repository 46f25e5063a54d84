package service

import "fmt"

// DefaultDelta is the additive smoothing constant used when none (or a
// non-positive one) is configured
const DefaultDelta = 0.01

// Smoother defines how raw counts become probabilities for the continuations
// of one context. Implementations must make the probabilities of all
// vocabularySize continuations sum to one.
type Smoother interface {
	// Smooth computes the probability of a continuation seen count > 0 times.
	// total: summed count of all continuations of the context
	// seen: number of distinct continuations of the context
	// vocabularySize: number of possible continuations
	Smooth(count, total int64, seen, vocabularySize int) float64

	// Unseen computes the probability of a single continuation never seen
	// with the context
	Unseen(total int64, seen, vocabularySize int) float64

	// Name returns the name of the smoothing algorithm
	Name() string
}

// NewSmoother returns the smoother registered under name
func NewSmoother(name string, delta float64) (Smoother, error) {
	switch name {
	case "", "additive":
		return NewAdditiveSmoother(delta), nil
	case "witten-bell":
		return NewWittenBellSmoother(), nil
	default:
		return nil, fmt.Errorf("unknown smoother: %s", name)
	}
}

// AdditiveSmoother implements Lidstone (add-delta) smoothing
type AdditiveSmoother struct {
	delta float64
}

// NewAdditiveSmoother creates a new additive smoother. A non-positive delta
// is replaced by DefaultDelta.
func NewAdditiveSmoother(delta float64) *AdditiveSmoother {
	if delta <= 0 {
		delta = DefaultDelta
	}
	return &AdditiveSmoother{delta: delta}
}

// Delta returns the smoothing constant
func (s *AdditiveSmoother) Delta() float64 {
	return s.delta
}

func (s *AdditiveSmoother) Smooth(count, total int64, seen, vocabularySize int) float64 {
	return (float64(count) + s.delta) / (float64(total) + s.delta*float64(vocabularySize))
}

func (s *AdditiveSmoother) Unseen(total int64, seen, vocabularySize int) float64 {
	return s.delta / (float64(total) + s.delta*float64(vocabularySize))
}

func (s *AdditiveSmoother) Name() string {
	return "additive"
}

// WittenBellSmoother implements Witten-Bell smoothing: the escape mass of a
// context is proportional to the number of distinct continuations seen
type WittenBellSmoother struct{}

// NewWittenBellSmoother creates a new Witten-Bell smoother
func NewWittenBellSmoother() *WittenBellSmoother {
	return &WittenBellSmoother{}
}

func (s *WittenBellSmoother) Smooth(count, total int64, seen, vocabularySize int) float64 {
	if total == 0 {
		return 1.0 / float64(vocabularySize)
	}
	return float64(count) / (float64(total) + float64(seen))
}

func (s *WittenBellSmoother) Unseen(total int64, seen, vocabularySize int) float64 {
	if total == 0 || seen == 0 {
		return 1.0 / float64(vocabularySize)
	}
	unseen := vocabularySize - seen
	if unseen < 1 {
		unseen = 1
	}
	escape := float64(seen) / (float64(total) + float64(seen))
	return escape / float64(unseen)
}

func (s *WittenBellSmoother) Name() string {
	return "witten-bell"
}

// probability dispatches to Smooth or Unseen depending on count
func probability(s Smoother, count, total int64, seen, vocabularySize int) float64 {
	if count > 0 {
		return s.Smooth(count, total, seen, vocabularySize)
	}
	return s.Unseen(total, seen, vocabularySize)
}
