package models

import (
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/trajtile/temporal"
)

// Point is the JSON representation of a position.
type Point struct {
	X    float64  `json:"x"`
	Y    float64  `json:"y"`
	Z    *float64 `json:"z,omitempty"`
	SRID int32    `json:"srid,omitempty"`
}

// Value returns the position.
func (p Point) Value() temporal.Point {
	res := temporal.NewPoint(p.X, p.Y).WithSRID(p.SRID)
	if p.Z != nil {
		res = temporal.NewPoint3D(p.X, p.Y, *p.Z).WithSRID(p.SRID)
	}
	return res
}

func newPoint(p temporal.Point) Point {
	res := Point{X: p.X, Y: p.Y, SRID: p.SRID}
	if p.HasZ {
		z := p.Z
		res.Z = &z
	}
	return res
}

// Instant is a position at a timestamp.
type Instant struct {
	X float64   `json:"x"`
	Y float64   `json:"y"`
	Z *float64  `json:"z,omitempty"`
	T time.Time `json:"t"`
}

// Sequence is a list of instants with optional bounds, inclusive by default.
type Sequence struct {
	LowerInc *bool     `json:"lower_inc,omitempty"`
	UpperInc *bool     `json:"upper_inc,omitempty"`
	Instants []Instant `json:"instants"`
}

// Trajectory is the JSON representation of a temporal point. It holds either
// instants, making a single sequence, or sequences, making a sequence set. A
// lone instant without interpolation nor bounds is an instant value.
type Trajectory struct {
	SRID          int32      `json:"srid,omitempty"`
	Interpolation string     `json:"interpolation,omitempty"`
	LowerInc      *bool      `json:"lower_inc,omitempty"`
	UpperInc      *bool      `json:"upper_inc,omitempty"`
	Instants      []Instant  `json:"instants,omitempty"`
	Sequences     []Sequence `json:"sequences,omitempty"`
}

// Temporal converts the trajectory to a temporal value.
func (tr Trajectory) Temporal() (temporal.Temporal, error) {
	temp, err := tr.temporal()
	if err != nil {
		instrumentDecodeError(err)
		return nil, err
	}

	instrumentDecode(temp)
	return temp, nil
}

func (tr Trajectory) temporal() (temporal.Temporal, error) {
	if len(tr.Instants) != 0 && len(tr.Sequences) != 0 {
		return nil, errors.New("trajectory can't have both instants and sequences").
			WithType(temporal.ErrTypeInvalidTemporal)
	}

	interp, err := temporal.ParseInterpolation(tr.Interpolation)
	if err != nil {
		return nil, err
	}

	if len(tr.Sequences) != 0 {
		sequences := make([]temporal.Sequence, len(tr.Sequences))
		for i, s := range tr.Sequences {
			seq, err := tr.sequence(s.Instants, interp, s.LowerInc, s.UpperInc)
			if err != nil {
				return nil, errors.New("invalid sequence").
					WithType(temporal.ErrTypeInvalidTemporal).
					WithTag("index", i).
					Wrap(err)
			}
			sequences[i] = seq
		}
		set, err := temporal.NewSequenceSet(sequences)
		if err != nil {
			return nil, err
		}
		return set, nil
	}

	if len(tr.Instants) == 1 && tr.Interpolation == "" && tr.LowerInc == nil && tr.UpperInc == nil {
		return tr.instant(tr.Instants[0]), nil
	}

	seq, err := tr.sequence(tr.Instants, interp, tr.LowerInc, tr.UpperInc)
	if err != nil {
		return nil, err
	}
	return seq, nil
}

func (tr Trajectory) instant(i Instant) temporal.Instant {
	p := Point{X: i.X, Y: i.Y, Z: i.Z, SRID: tr.SRID}
	return temporal.NewInstant(p.Value(), i.T)
}

func (tr Trajectory) sequence(instants []Instant, interp temporal.Interpolation, lowerInc, upperInc *bool) (temporal.Sequence, error) {
	res := make([]temporal.Instant, len(instants))
	for i, inst := range instants {
		res[i] = tr.instant(inst)
	}
	return temporal.NewSequence(res, interp, boolOr(lowerInc, true), boolOr(upperInc, true))
}

func boolOr(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}

// NewTrajectory returns the JSON representation of a temporal value.
func NewTrajectory(temp temporal.Temporal) Trajectory {
	switch v := temp.(type) {
	case temporal.Instant:
		return Trajectory{
			SRID:     v.Value.SRID,
			Instants: []Instant{newInstant(v)},
		}

	case temporal.Sequence:
		lowerInc, upperInc := v.LowerInc, v.UpperInc
		return Trajectory{
			SRID:          temporal.SRID(v),
			Interpolation: v.Interp.String(),
			LowerInc:      &lowerInc,
			UpperInc:      &upperInc,
			Instants:      newInstants(v.Instants),
		}

	case temporal.SequenceSet:
		tr := Trajectory{
			SRID:          temporal.SRID(v),
			Interpolation: v.Sequences[0].Interp.String(),
			Sequences:     make([]Sequence, len(v.Sequences)),
		}
		for i, seq := range v.Sequences {
			lowerInc, upperInc := seq.LowerInc, seq.UpperInc
			tr.Sequences[i] = Sequence{
				LowerInc: &lowerInc,
				UpperInc: &upperInc,
				Instants: newInstants(seq.Instants),
			}
		}
		return tr

	default:
		return Trajectory{}
	}
}

func newInstant(inst temporal.Instant) Instant {
	p := newPoint(inst.Value)
	return Instant{X: p.X, Y: p.Y, Z: p.Z, T: inst.T}
}

func newInstants(instants []temporal.Instant) []Instant {
	res := make([]Instant, len(instants))
	for i, inst := range instants {
		res[i] = newInstant(inst)
	}
	return res
}
