package temporal

import (
	"math"
	"time"
)

// AtBox restricts a temporal point to the part of it that lies inside box. The
// lower borders of the box are inclusive. The upper spatial borders are
// exclusive unless borderInc is set, so that a position lying on a border
// shared by two adjacent tiles belongs to one of them only. Time bounds follow
// the box period, with borderInc forcing an inclusive upper bound.
//
// It returns nil when the restriction is empty.
func AtBox(temp Temporal, box STBox, borderInc bool) Temporal {
	r := restriction{box: box, borderInc: borderInc}

	switch v := temp.(type) {
	case Instant:
		if !r.contains(v) {
			return nil
		}
		return v

	case Sequence:
		if v.Interp == Discrete {
			return r.discrete(v)
		}
		return assemble(r.pieces(v, nil))

	case SequenceSet:
		if v.Sequences[0].Interp == Discrete {
			var instants []Instant
			for _, seq := range v.Sequences {
				if at, ok := r.discrete(seq).(Sequence); ok {
					instants = append(instants, at.Instants...)
				}
			}
			if len(instants) == 0 {
				return nil
			}
			return Sequence{Instants: instants, Interp: Discrete, LowerInc: true, UpperInc: true}
		}

		var sequences []Sequence
		for _, seq := range v.Sequences {
			sequences = r.pieces(seq, sequences)
		}
		return assemble(sequences)

	default:
		return nil
	}
}

type restriction struct {
	box       STBox
	borderInc bool
}

// span is a closed, open or half-open interval of a segment parameter.
type span struct {
	lo    float64
	hi    float64
	loInc bool
	hiInc bool
}

func (s span) empty() bool {
	return s.lo > s.hi || (s.lo == s.hi && !(s.loInc && s.hiInc))
}

func (s span) intersect(o span) span {
	r := s
	switch {
	case o.lo > r.lo:
		r.lo, r.loInc = o.lo, o.loInc
	case o.lo == r.lo:
		r.loInc = r.loInc && o.loInc
	}
	switch {
	case o.hi < r.hi:
		r.hi, r.hiInc = o.hi, o.hiInc
	case o.hi == r.hi:
		r.hiInc = r.hiInc && o.hiInc
	}
	return r
}

func inSpan(v, lo, hi float64, loInc, hiInc bool) bool {
	if v < lo || (v == lo && !loInc) {
		return false
	}
	if v > hi || (v == hi && !hiInc) {
		return false
	}
	return true
}

// linearSpan returns the parameters of a segment moving from a to b for which
// the coordinate lies in [lo, hi].
func linearSpan(a, b, lo, hi float64, loInc, hiInc bool) span {
	d := b - a
	if d == 0 {
		if inSpan(a, lo, hi, loInc, hiInc) {
			return span{lo: math.Inf(-1), hi: math.Inf(1), loInc: true, hiInc: true}
		}
		return span{lo: 1, hi: 0}
	}

	s1 := (lo - a) / d
	s2 := (hi - a) / d
	if d > 0 {
		return span{lo: s1, hi: s2, loInc: loInc, hiInc: hiInc}
	}
	return span{lo: s2, hi: s1, loInc: hiInc, hiInc: loInc}
}

func (r restriction) containsPoint(p Point) bool {
	if !r.box.HasX {
		return true
	}
	if !inSpan(p.X, r.box.X.Lo, r.box.X.Hi, true, r.borderInc) ||
		!inSpan(p.Y, r.box.Y.Lo, r.box.Y.Hi, true, r.borderInc) {
		return false
	}
	if r.box.HasZ && p.HasZ && !inSpan(p.Z, r.box.Z.Lo, r.box.Z.Hi, true, r.borderInc) {
		return false
	}
	return true
}

func (r restriction) period() Period {
	p := r.box.T
	if r.borderInc {
		p.UpperInc = true
	}
	return p
}

func (r restriction) contains(inst Instant) bool {
	if r.box.HasT && !r.period().Contains(inst.T) {
		return false
	}
	return r.containsPoint(inst.Value)
}

func (r restriction) discrete(seq Sequence) Temporal {
	var instants []Instant
	for _, inst := range seq.Instants {
		if r.contains(inst) {
			instants = append(instants, inst)
		}
	}
	if len(instants) == 0 {
		return nil
	}
	return Sequence{Instants: instants, Interp: Discrete, LowerInc: true, UpperInc: true}
}

// timeSpan returns the parameters of a segment going from ta to tb that fall
// in the box period.
func (r restriction) timeSpan(ta, tb time.Time) span {
	all := span{lo: math.Inf(-1), hi: math.Inf(1), loInc: true, hiInc: true}
	if !r.box.HasT {
		return all
	}

	p := r.period()
	d := float64(tb.Sub(ta))
	return span{
		lo:    float64(p.Lower.Sub(ta)) / d,
		hi:    float64(p.Upper.Sub(ta)) / d,
		loInc: p.LowerInc,
		hiInc: p.UpperInc,
	}
}

func (r restriction) spaceSpan(a, b Point) span {
	all := span{lo: math.Inf(-1), hi: math.Inf(1), loInc: true, hiInc: true}
	if !r.box.HasX {
		return all
	}

	s := all.
		intersect(linearSpan(a.X, b.X, r.box.X.Lo, r.box.X.Hi, true, r.borderInc)).
		intersect(linearSpan(a.Y, b.Y, r.box.Y.Lo, r.box.Y.Hi, true, r.borderInc))
	if r.box.HasZ && a.HasZ {
		s = s.intersect(linearSpan(a.Z, b.Z, r.box.Z.Lo, r.box.Z.Hi, true, r.borderInc))
	}
	return s
}

func interpolateTime(ta, tb time.Time, f float64) time.Time {
	switch f {
	case 0:
		return ta
	case 1:
		return tb
	}
	return ta.Add(time.Duration(math.Round(f * float64(tb.Sub(ta)))))
}

// pieces appends to sequences the parts of seq inside the box. Consecutive
// parts sharing a timestamp are joined into a single sequence.
func (r restriction) pieces(seq Sequence, sequences []Sequence) []Sequence {
	n := len(seq.Instants)
	if n == 1 {
		if r.contains(seq.Instants[0]) {
			sequences = append(sequences, seq)
		}
		return sequences
	}

	var cur *Sequence
	flush := func() {
		if cur != nil {
			sequences = append(sequences, *cur)
			cur = nil
		}
	}

	add := func(start, end Instant, lowerInc, upperInc bool) {
		if cur != nil {
			last := cur.Instants[len(cur.Instants)-1]
			if last.T.Equal(start.T) && (cur.UpperInc || lowerInc) {
				cur.Instants[len(cur.Instants)-1] = start
				if !end.T.Equal(start.T) {
					cur.Instants = append(cur.Instants, end)
				}
				cur.UpperInc = upperInc
				return
			}
			flush()
		}

		instants := []Instant{start}
		if !end.T.Equal(start.T) {
			instants = append(instants, end)
		}
		cur = &Sequence{
			Instants: instants,
			Interp:   seq.Interp,
			LowerInc: lowerInc,
			UpperInc: upperInc,
		}
	}

	for i := 0; i < n-1; i++ {
		a, b := seq.Instants[i], seq.Instants[i+1]
		base := span{
			lo:    0,
			hi:    1,
			loInc: i > 0 || seq.LowerInc,
			hiInc: i < n-2 || seq.UpperInc,
		}

		var s span
		if seq.Interp == Step {
			if !r.containsPoint(a.Value) {
				flush()
				continue
			}
			base.hiInc = false
			s = base.intersect(r.timeSpan(a.T, b.T))
		} else {
			s = base.intersect(r.timeSpan(a.T, b.T)).intersect(r.spaceSpan(a.Value, b.Value))
		}

		if s.empty() {
			flush()
			continue
		}

		start := Instant{T: interpolateTime(a.T, b.T, s.lo)}
		end := Instant{T: interpolateTime(a.T, b.T, s.hi)}
		if seq.Interp == Step {
			start.Value, end.Value = a.Value, a.Value
		} else {
			start.Value = Lerp(a.Value, b.Value, s.lo)
			end.Value = Lerp(a.Value, b.Value, s.hi)
		}

		if start.T.Equal(end.T) && s.lo != s.hi {
			// The part is shorter than the time resolution.
			if !s.loInc || !s.hiInc {
				flush()
				continue
			}
		}

		add(start, end, s.loInc, s.hiInc)
	}

	if seq.Interp == Step && seq.UpperInc {
		last := seq.Instants[n-1]
		if r.contains(last) {
			add(last, last, true, true)
		} else {
			flush()
		}
	}

	flush()
	return sequences
}

func assemble(sequences []Sequence) Temporal {
	switch len(sequences) {
	case 0:
		return nil
	case 1:
		return sequences[0]
	default:
		return SequenceSet{Sequences: sequences}
	}
}
