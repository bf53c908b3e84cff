package temporal

import (
	"time"

	"github.com/golang/geo/r1"
)

// Period is a time span with inclusive or exclusive bounds.
type Period struct {
	Lower    time.Time
	Upper    time.Time
	LowerInc bool
	UpperInc bool
}

func (p Period) Contains(t time.Time) bool {
	if t.Before(p.Lower) || (!p.LowerInc && t.Equal(p.Lower)) {
		return false
	}
	if t.After(p.Upper) || (!p.UpperInc && t.Equal(p.Upper)) {
		return false
	}
	return true
}

func (p Period) Duration() time.Duration {
	return p.Upper.Sub(p.Lower)
}

// STBox is a spatiotemporal bounding box. The spatial spans are only set when
// HasX is true, Z only when HasZ is true and T only when HasT is true.
type STBox struct {
	X        r1.Interval
	Y        r1.Interval
	Z        r1.Interval
	T        Period
	HasX     bool
	HasZ     bool
	HasT     bool
	Geodetic bool
	SRID     int32
}

// LowerCorner returns the minimum spatial corner of the box.
func (b STBox) LowerCorner() Point {
	return Point{
		X:    b.X.Lo,
		Y:    b.Y.Lo,
		Z:    b.Z.Lo,
		HasZ: b.HasZ,
		SRID: b.SRID,
	}
}

// Expand grows b to contain the given box. Both boxes must have the same
// dimensions.
func (b *STBox) Expand(o STBox) {
	if b.HasX {
		b.X = b.X.Union(o.X)
		b.Y = b.Y.Union(o.Y)
		if b.HasZ {
			b.Z = b.Z.Union(o.Z)
		}
	}
	if b.HasT {
		if o.T.Lower.Before(b.T.Lower) {
			b.T.Lower, b.T.LowerInc = o.T.Lower, o.T.LowerInc
		} else if o.T.Lower.Equal(b.T.Lower) {
			b.T.LowerInc = b.T.LowerInc || o.T.LowerInc
		}
		if o.T.Upper.After(b.T.Upper) {
			b.T.Upper, b.T.UpperInc = o.T.Upper, o.T.UpperInc
		} else if o.T.Upper.Equal(b.T.Upper) {
			b.T.UpperInc = b.T.UpperInc || o.T.UpperInc
		}
	}
}

func boxFromInstant(inst Instant) STBox {
	return STBox{
		X:    r1.IntervalFromPoint(inst.Value.X),
		Y:    r1.IntervalFromPoint(inst.Value.Y),
		Z:    r1.IntervalFromPoint(inst.Value.Z),
		T:    Period{Lower: inst.T, Upper: inst.T, LowerInc: true, UpperInc: true},
		HasX: true,
		HasZ: inst.Value.HasZ,
		HasT: true,
		SRID: inst.Value.SRID,
	}
}

func boxFromInstants(instants []Instant, lowerInc, upperInc bool) STBox {
	box := boxFromInstant(instants[0])
	for _, inst := range instants[1:] {
		box.X = box.X.AddPoint(inst.Value.X)
		box.Y = box.Y.AddPoint(inst.Value.Y)
		box.Z = box.Z.AddPoint(inst.Value.Z)
	}
	box.T.Upper = instants[len(instants)-1].T
	box.T.LowerInc = lowerInc
	box.T.UpperInc = upperInc
	return box
}
