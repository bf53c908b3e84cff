package temporal

import (
	"math"
)

// Point is a position in the working coordinate space. Z is only meaningful
// when HasZ is set.
type Point struct {
	X    float64
	Y    float64
	Z    float64
	HasZ bool
	SRID int32
}

func NewPoint(x, y float64) Point {
	return Point{X: x, Y: y}
}

func NewPoint3D(x, y, z float64) Point {
	return Point{X: x, Y: y, Z: z, HasZ: true}
}

// WithSRID returns a copy of p in the given coordinate system.
func (p Point) WithSRID(srid int32) Point {
	p.SRID = srid
	return p
}

func (p Point) Equal(q Point) bool {
	return p.X == q.X && p.Y == q.Y && p.Z == q.Z && p.HasZ == q.HasZ
}

func (p Point) EqualWithEpsilon(q Point, epsilon float64) bool {
	return math.Abs(p.X-q.X) <= epsilon &&
		math.Abs(p.Y-q.Y) <= epsilon &&
		math.Abs(p.Z-q.Z) <= epsilon
}

func Add(a Point, b Point) Point {
	return Point{X: a.X + b.X, Y: a.Y + b.Y, Z: a.Z + b.Z, HasZ: a.HasZ, SRID: a.SRID}
}

func Sub(a Point, b Point) Point {
	return Point{X: a.X - b.X, Y: a.Y - b.Y, Z: a.Z - b.Z, HasZ: a.HasZ, SRID: a.SRID}
}

func Mul(a Point, s float64) Point {
	return Point{X: a.X * s, Y: a.Y * s, Z: a.Z * s, HasZ: a.HasZ, SRID: a.SRID}
}

// Lerp returns the point at fraction f of the way from a to b.
func Lerp(a Point, b Point, f float64) Point {
	switch f {
	case 0:
		return a
	case 1:
		return b
	}
	return Add(a, Mul(Sub(b, a), f))
}

func (p Point) Length() float64 {
	return math.Sqrt(p.X*p.X + p.Y*p.Y + p.Z*p.Z)
}
