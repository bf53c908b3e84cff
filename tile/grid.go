package tile

import (
	"math"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/trajtile/temporal"
	"github.com/golang/geo/r1"
)

// Dim identifies a grid dimension.
type Dim int

const (
	DimX Dim = iota
	DimY
	DimZ
	DimT
)

func (d Dim) String() string {
	switch d {
	case DimX:
		return "x"
	case DimY:
		return "y"
	case DimZ:
		return "z"
	case DimT:
		return "t"
	default:
		return "unknown"
	}
}

// Grid describes a regular partition of space and time.
//
// Space is tiled when XSize and YSize are set, Z when ZSize is also set and
// time when Duration is set. A zero size leaves the dimension out of the grid.
type Grid struct {
	XSize      float64
	YSize      float64
	ZSize      float64
	Duration   time.Duration
	Origin     temporal.Point
	TimeOrigin time.Time
}

func (g Grid) hasSpace() bool {
	return g.XSize != 0 || g.YSize != 0
}

func (g Grid) validate(bounds temporal.STBox) error {
	if g.XSize < 0 || g.YSize < 0 || g.ZSize < 0 || g.Duration < 0 {
		return errors.New("tile sizes must be positive").
			WithType(ErrTypeInvalidArgument).
			WithTag("x_size", g.XSize).
			WithTag("y_size", g.YSize).
			WithTag("z_size", g.ZSize).
			WithTag("duration", g.Duration)
	}

	if g.hasSpace() {
		if g.XSize == 0 || g.YSize == 0 {
			return errors.New("x and y tile sizes must both be positive").
				WithType(ErrTypeInvalidArgument).
				WithTag("x_size", g.XSize).
				WithTag("y_size", g.YSize)
		}

		if !bounds.HasX {
			return errors.New("bounds have no spatial dimension").
				WithType(ErrTypeInvalidArgument)
		}

		if bounds.Geodetic {
			return errors.New("geodetic bounds can't be tiled").
				WithType(ErrTypeInvalidArgument)
		}

		if g.Origin.SRID != 0 && bounds.SRID != 0 && g.Origin.SRID != bounds.SRID {
			return errors.New("origin and bounds have different coordinate systems").
				WithType(ErrTypeInvalidArgument).
				WithTag("origin_srid", g.Origin.SRID).
				WithTag("srid", bounds.SRID)
		}
	} else if g.ZSize != 0 {
		return errors.New("z tile size requires x and y tile sizes").
			WithType(ErrTypeInvalidArgument).
			WithTag("z_size", g.ZSize)
	}

	if g.ZSize != 0 && !bounds.HasZ {
		return errors.New("bounds have no z dimension").
			WithType(ErrTypeInvalidArgument).
			WithTag("z_size", g.ZSize)
	}

	if g.Duration != 0 && !bounds.HasT {
		return errors.New("bounds have no time dimension").
			WithType(ErrTypeInvalidArgument).
			WithTag("duration", g.Duration)
	}

	if !g.hasSpace() && g.Duration == 0 {
		return errors.New("grid has no dimension").
			WithType(ErrTypeInvalidArgument)
	}
	return nil
}

// GridState enumerates the tiles of a grid aligned on a bounding box, X
// fastest, then Y, Z and T.
//
// A GridState owns its bit matrix and borrows its trajectory. Neither is
// released when the enumeration is exhausted: callers must call Close,
// typically with defer right after NewGridState.
type GridState struct {
	done  bool
	index int

	dims   []Dim
	counts []int
	coords []int

	grid   Grid
	bounds temporal.STBox

	temp temporal.Temporal
	bm   *BitMatrix
}

// NewGridState returns the state of a grid aligned on bounds. Bounds are
// snapped to the grid lattice so that every position of bounds, upper bounds
// included, falls in a tile. temp is optional and only kept for the lifetime
// of the state.
func NewGridState(temp temporal.Temporal, bounds temporal.STBox, g Grid) (*GridState, error) {
	return newGridState(temp, bounds, g, false)
}

// newGridState is NewGridState where an upper bound lying on the lattice can
// be excluded from the grid, making the tiles a partition of [min, max).
func newGridState(temp temporal.Temporal, bounds temporal.STBox, g Grid, exclusiveUpper bool) (*GridState, error) {
	if err := g.validate(bounds); err != nil {
		return nil, err
	}

	s := &GridState{
		grid: g,
		temp: temp,
		bounds: temporal.STBox{
			HasX: g.hasSpace(),
			HasZ: g.ZSize != 0,
			HasT: g.Duration != 0,
			SRID: bounds.SRID,
		},
	}

	var err error
	if s.bounds.HasX {
		if s.bounds.X, err = s.addSpaceDim(DimX, bounds.X, g.XSize, g.Origin.X, exclusiveUpper); err != nil {
			return nil, err
		}
		if s.bounds.Y, err = s.addSpaceDim(DimY, bounds.Y, g.YSize, g.Origin.Y, exclusiveUpper); err != nil {
			return nil, err
		}
	}

	if s.bounds.HasZ {
		if s.bounds.Z, err = s.addSpaceDim(DimZ, bounds.Z, g.ZSize, g.Origin.Z, exclusiveUpper); err != nil {
			return nil, err
		}
	}

	if s.bounds.HasT {
		s.bounds.T = temporal.Period{
			Lower:    TimeBucket(bounds.T.Lower, g.Duration, g.TimeOrigin),
			Upper:    TimeBucket(bounds.T.Upper, g.Duration, g.TimeOrigin),
			LowerInc: true,
			UpperInc: true,
		}
		if (exclusiveUpper || !bounds.T.UpperInc) &&
			s.bounds.T.Upper.Equal(bounds.T.Upper) &&
			s.bounds.T.Upper.After(s.bounds.T.Lower) {
			s.bounds.T.Upper = s.bounds.T.Upper.Add(-g.Duration)
		}
		steps := s.bounds.T.Duration() / g.Duration
		if steps >= maxDimTiles {
			return nil, tooManyDimTiles(DimT).
				WithTag("span", s.bounds.T.Duration()).
				WithTag("duration", g.Duration)
		}
		s.dims = append(s.dims, DimT)
		s.counts = append(s.counts, int(steps)+1)
	}

	s.coords = make([]int, len(s.dims))
	s.index = 1
	return s, nil
}

func alignInterval(i r1.Interval, size, origin float64, exclusiveUpper bool) r1.Interval {
	aligned := r1.Interval{
		Lo: FloatBucket(i.Lo, size, origin),
		Hi: FloatBucket(i.Hi, size, origin),
	}
	if exclusiveUpper && aligned.Hi == i.Hi && aligned.Hi > aligned.Lo {
		aligned.Hi = FloatBucket(aligned.Hi-size, size, origin)
	}
	return aligned
}

// maxDimTiles bounds the number of tiles of a single dimension.
const maxDimTiles = math.MaxInt32

// addSpaceDim adds a spatial dimension covering i and returns i aligned on
// the grid lattice.
func (s *GridState) addSpaceDim(d Dim, i r1.Interval, size, origin float64, exclusiveUpper bool) (r1.Interval, error) {
	aligned := alignInterval(i, size, origin, exclusiveUpper)
	count, ok := spanCount(aligned, size)
	if !ok {
		return r1.Interval{}, tooManyDimTiles(d).
			WithTag("span", aligned.Length()).
			WithTag("size", size)
	}

	// Tiles are built from the aligned lower bound, which can drift from the
	// origin lattice by a few ulps. The count is fitted to the tiles so that
	// the last one ends past the upper bound.
	pastUpper := func(c int) bool {
		lower := cellLower(aligned.Lo, size, c)
		if exclusiveUpper {
			return lower >= i.Hi
		}
		return lower > i.Hi
	}
	for n := 0; !pastUpper(count); n++ {
		if n == maxCountFits {
			return r1.Interval{}, errors.New("tile size is below the coordinate precision").
				WithType(ErrTypeInvalidArgument).
				WithTag("dim", d.String()).
				WithTag("size", size).
				WithTag("upper", i.Hi)
		}
		count++
	}
	for count > 1 && pastUpper(count-1) {
		count--
	}

	s.dims = append(s.dims, d)
	s.counts = append(s.counts, count)
	aligned.Hi = cellLower(aligned.Lo, size, count-1)
	return aligned, nil
}

// maxCountFits bounds the tiles added to fit a count to the tile borders.
const maxCountFits = 4

// spanCount returns the number of tiles of an aligned interval. Rounding
// absorbs the error of the division of two lattice values. It returns false
// when the count is not finite or exceeds maxDimTiles.
func spanCount(i r1.Interval, size float64) (int, bool) {
	steps := math.Round(i.Length() / size)
	if !(steps < maxDimTiles) {
		return 0, false
	}
	return int(steps) + 1, true
}

func tooManyDimTiles(d Dim) errors.Error {
	return errors.New("too many tiles in grid dimension").
		WithType(ErrTypeAllocationFailure).
		WithTag("dim", d.String()).
		WithTag("limit", maxDimTiles)
}

// Next moves the state to the next tile. Once the last tile is passed, the
// state is done and Next has no effect.
func (s *GridState) Next() {
	if s.done {
		return
	}

	s.index++
	for i := range s.coords {
		s.coords[i]++
		if s.coords[i] < s.counts[i] {
			return
		}
		s.coords[i] = 0
	}
	s.done = true
}

// Get returns the current tile. When a bit matrix is attached, the state is
// first moved to the next tile set in the matrix. It returns false when there
// are no more tiles.
func (s *GridState) Get() (temporal.STBox, bool) {
	if s.done {
		return temporal.STBox{}, false
	}

	if s.bm != nil {
		for !s.marked() {
			s.Next()
			if s.done {
				return temporal.STBox{}, false
			}
		}
	}

	return s.tile(), true
}

func (s *GridState) marked() bool {
	// Coords always are in range since the attached matrix was checked to
	// have the grid counts.
	set, _ := s.bm.Get(s.coords)
	return set
}

func (s *GridState) tile() temporal.STBox {
	box := temporal.STBox{
		HasX: s.bounds.HasX,
		HasZ: s.bounds.HasZ,
		HasT: s.bounds.HasT,
		SRID: s.bounds.SRID,
	}

	for i, d := range s.dims {
		c := s.coords[i]

		switch d {
		case DimX:
			box.X = cellInterval(s.bounds.X.Lo, s.grid.XSize, c)

		case DimY:
			box.Y = cellInterval(s.bounds.Y.Lo, s.grid.YSize, c)

		case DimZ:
			box.Z = cellInterval(s.bounds.Z.Lo, s.grid.ZSize, c)

		case DimT:
			lo := s.bounds.T.Lower.Add(time.Duration(s.coords[i]) * s.grid.Duration)
			box.T = temporal.Period{
				Lower:    lo,
				Upper:    lo.Add(s.grid.Duration),
				LowerInc: true,
			}
		}
	}
	return box
}

// cellInterval returns the span of the c-th cell. Adjacent cells share their
// border exactly.
func cellInterval(lo, size float64, c int) r1.Interval {
	return r1.Interval{Lo: cellLower(lo, size, c), Hi: cellLower(lo, size, c+1)}
}

// AttachBitMatrix makes Get skip the tiles that are not set in bm. The matrix
// must have been built for this grid and have at least one bit set, which
// guarantees Get returns a tile before the state is exhausted.
func (s *GridState) AttachBitMatrix(bm *BitMatrix) error {
	if bm.Dims() != len(s.counts) {
		return errors.New("bit matrix dimensions do not match the grid").
			WithType(ErrTypeInvalidArgument).
			WithTag("matrix_dims", bm.Dims()).
			WithTag("grid_dims", len(s.counts))
	}

	for i, c := range bm.counts {
		if c != s.counts[i] {
			return errors.New("bit matrix counts do not match the grid").
				WithType(ErrTypeInvalidArgument).
				WithTag("matrix_counts", bm.counts).
				WithTag("grid_counts", s.counts)
		}
	}

	if bm.Count() == 0 {
		return errors.New("bit matrix has no cell set").
			WithType(ErrTypeInvalidArgument)
	}

	s.bm = bm
	return nil
}

// Close releases the bit matrix and the trajectory held by the state. The
// state is done afterwards.
func (s *GridState) Close() {
	s.done = true
	s.bm = nil
	s.temp = nil
}

func (s *GridState) Done() bool {
	return s.done
}

// Index returns the 1-based position of the current tile in the enumeration
// order, skipped tiles included.
func (s *GridState) Index() int {
	return s.index
}

// Dims returns the active dimensions, fastest first.
func (s *GridState) Dims() []Dim {
	return append([]Dim(nil), s.dims...)
}

// Counts returns the number of tiles in each active dimension.
func (s *GridState) Counts() []int {
	return append([]int(nil), s.counts...)
}

// Tiles returns the total number of tiles of the grid.
func (s *GridState) Tiles() int {
	tiles := 1
	for _, c := range s.counts {
		tiles *= c
	}
	return tiles
}

// Bounds returns the bounds of the grid snapped to its lattice.
func (s *GridState) Bounds() temporal.STBox {
	return s.bounds
}
