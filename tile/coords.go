package tile

import (
	"math"
	"time"

	"github.com/aukilabs/trajtile/temporal"
)

// Locate maps a position at time t to the integer coordinates of the grid
// cell that contains it and to its relative position inside that cell, both
// ordered like Dims. Relative positions are in [0, 1).
//
// The cell is the one whose tile, as returned by Get, contains the position.
// Positions outside the grid are mapped to the nearest border cell.
func (s *GridState) Locate(p temporal.Point, t time.Time) ([]int, []float64) {
	coords := make([]int, len(s.dims))
	eps := make([]float64, len(s.dims))
	s.locate(p, t, coords, eps)
	return coords, eps
}

func (s *GridState) locate(p temporal.Point, t time.Time, coords []int, eps []float64) {
	for i, d := range s.dims {
		switch d {
		case DimX:
			coords[i], eps[i] = cellCoord(p.X, s.bounds.X.Lo, s.grid.XSize, s.counts[i])
		case DimY:
			coords[i], eps[i] = cellCoord(p.Y, s.bounds.Y.Lo, s.grid.YSize, s.counts[i])
		case DimZ:
			coords[i], eps[i] = cellCoord(p.Z, s.bounds.Z.Lo, s.grid.ZSize, s.counts[i])
		case DimT:
			coords[i], eps[i] = timeCoord(t, s.bounds.T.Lower, s.grid.Duration, s.counts[i])
		}
	}
}

// cellLower returns the lower border of the c-th cell of a dimension starting
// at lo. Tiles and coordinates must both use it so that a position always
// falls in the tile of its cell. The conversion prevents a fused multiply-add.
func cellLower(lo, size float64, c int) float64 {
	return lo + float64(float64(c)*size)
}

// cellCoord returns the cell c in [0, count) such that
// cellLower(lo, size, c) <= v < cellLower(lo, size, c+1).
func cellCoord(v, lo, size float64, count int) (int, float64) {
	f := math.Floor((v - lo) / size)
	switch {
	case !(f >= 0):
		f = 0
	case f > float64(count-1):
		f = float64(count - 1)
	}

	c := int(f)
	for c > 0 && cellLower(lo, size, c) > v {
		c--
	}
	for c < count-1 && cellLower(lo, size, c+1) <= v {
		c++
	}
	return c, clampEps((v - cellLower(lo, size, c)) / size)
}

func timeCoord(t, lo time.Time, size time.Duration, count int) (int, float64) {
	lower := TimeBucket(t, size, lo)
	c := int(lower.Sub(lo) / size)
	switch {
	case c < 0:
		return 0, 0
	case c >= count:
		return count - 1, math.Nextafter(1, 0)
	}
	return c, clampEps(float64(t.Sub(lower)) / float64(size))
}

func clampEps(eps float64) float64 {
	switch {
	case !(eps >= 0):
		return 0
	case eps >= 1:
		return math.Nextafter(1, 0)
	default:
		return eps
	}
}
