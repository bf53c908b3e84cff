// Package temporal holds the moving-point values consumed by the tiling
// engine: single instants, sequences of instants and sets of sequences.
package temporal

import (
	"strings"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
)

const (
	ErrTypeInvalidTemporal = "invalid_temporal"
)

// Interpolation tells how a sequence moves between two consecutive instants.
type Interpolation int

const (
	// Discrete sequences only exist at their instants.
	Discrete Interpolation = iota

	// Step sequences hold the value of an instant until the next one.
	Step

	// Linear sequences move in a straight line between instants.
	Linear
)

func (i Interpolation) String() string {
	switch i {
	case Discrete:
		return "discrete"
	case Step:
		return "step"
	case Linear:
		return "linear"
	default:
		return "unknown"
	}
}

// ParseInterpolation returns the interpolation with the given name.
func ParseInterpolation(s string) (Interpolation, error) {
	switch strings.ToLower(s) {
	case "discrete":
		return Discrete, nil
	case "step":
		return Step, nil
	case "", "linear":
		return Linear, nil
	default:
		return 0, errors.New("unknown interpolation").
			WithType(ErrTypeInvalidTemporal).
			WithTag("interpolation", s)
	}
}

// Temporal is a moving point. It is implemented by Instant, Sequence and
// SequenceSet only.
type Temporal interface {
	// Returns the spatiotemporal extent of the value.
	BoundingBox() STBox

	// Returns the number of distinct instants.
	NumInstants() int

	isTemporal()
}

// Instant is a position at a timestamp.
type Instant struct {
	Value Point
	T     time.Time
}

func NewInstant(p Point, t time.Time) Instant {
	return Instant{Value: p, T: t}
}

func (i Instant) BoundingBox() STBox {
	return boxFromInstant(i)
}

func (i Instant) NumInstants() int {
	return 1
}

func (Instant) isTemporal() {}

// Sequence is a time ordered list of instants with an interpolation.
type Sequence struct {
	Instants []Instant
	Interp   Interpolation
	LowerInc bool
	UpperInc bool
}

// NewSequence returns a sequence after checking that instants are strictly
// ordered in time and share the same dimensions and coordinate system.
func NewSequence(instants []Instant, interp Interpolation, lowerInc, upperInc bool) (Sequence, error) {
	if len(instants) == 0 {
		return Sequence{}, errors.New("sequence has no instants").
			WithType(ErrTypeInvalidTemporal)
	}

	if len(instants) == 1 && (!lowerInc || !upperInc) {
		return Sequence{}, errors.New("instantaneous sequence must have inclusive bounds").
			WithType(ErrTypeInvalidTemporal)
	}

	if interp == Discrete && (!lowerInc || !upperInc) {
		return Sequence{}, errors.New("discrete sequence must have inclusive bounds").
			WithType(ErrTypeInvalidTemporal)
	}

	first := instants[0].Value
	for i := 1; i < len(instants); i++ {
		if !instants[i].T.After(instants[i-1].T) {
			return Sequence{}, errors.New("sequence timestamps must be increasing").
				WithType(ErrTypeInvalidTemporal).
				WithTag("index", i).
				WithTag("timestamp", instants[i].T)
		}

		p := instants[i].Value
		if p.HasZ != first.HasZ {
			return Sequence{}, errors.New("mixed dimensionality in sequence").
				WithType(ErrTypeInvalidTemporal).
				WithTag("index", i)
		}
		if p.SRID != first.SRID {
			return Sequence{}, errors.New("mixed coordinate systems in sequence").
				WithType(ErrTypeInvalidTemporal).
				WithTag("index", i).
				WithTag("srid", p.SRID).
				WithTag("expected_srid", first.SRID)
		}
	}

	return Sequence{
		Instants: instants,
		Interp:   interp,
		LowerInc: lowerInc,
		UpperInc: upperInc,
	}, nil
}

func (s Sequence) BoundingBox() STBox {
	return boxFromInstants(s.Instants, s.LowerInc, s.UpperInc)
}

func (s Sequence) NumInstants() int {
	return len(s.Instants)
}

func (s Sequence) StartTimestamp() time.Time {
	return s.Instants[0].T
}

func (s Sequence) EndTimestamp() time.Time {
	return s.Instants[len(s.Instants)-1].T
}

func (Sequence) isTemporal() {}

// SequenceSet is a time ordered list of sequences with gaps between them.
type SequenceSet struct {
	Sequences []Sequence
}

// NewSequenceSet returns a sequence set after checking that the sequences do
// not overlap and share the same interpolation.
func NewSequenceSet(sequences []Sequence) (SequenceSet, error) {
	if len(sequences) == 0 {
		return SequenceSet{}, errors.New("sequence set has no sequences").
			WithType(ErrTypeInvalidTemporal)
	}

	for i := 1; i < len(sequences); i++ {
		prev, cur := sequences[i-1], sequences[i]
		if cur.Interp != prev.Interp {
			return SequenceSet{}, errors.New("mixed interpolation in sequence set").
				WithType(ErrTypeInvalidTemporal).
				WithTag("index", i)
		}

		end, start := prev.EndTimestamp(), cur.StartTimestamp()
		if start.Before(end) || (start.Equal(end) && prev.UpperInc && cur.LowerInc) {
			return SequenceSet{}, errors.New("overlapping sequences in sequence set").
				WithType(ErrTypeInvalidTemporal).
				WithTag("index", i)
		}
	}

	return SequenceSet{Sequences: sequences}, nil
}

func (s SequenceSet) BoundingBox() STBox {
	box := s.Sequences[0].BoundingBox()
	for _, seq := range s.Sequences[1:] {
		box.Expand(seq.BoundingBox())
	}
	return box
}

func (s SequenceSet) NumInstants() int {
	var count int
	for _, seq := range s.Sequences {
		count += len(seq.Instants)
	}
	return count
}

func (SequenceSet) isTemporal() {}

// SRID returns the coordinate system of a temporal value.
func SRID(temp Temporal) int32 {
	return temp.BoundingBox().SRID
}
