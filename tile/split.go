package tile

import (
	"iter"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/trajtile/temporal"
)

// MaxSplitTiles is the maximum number of tiles of the grid of a split. Tiles
// skipped with a bit matrix count too since they are still enumerated.
var MaxSplitTiles int64 = 1 << 28

// Restrictor restricts a temporal point to the part of it inside a box,
// returning nil when that part is empty.
type Restrictor interface {
	AtBox(temp temporal.Temporal, box temporal.STBox, borderInc bool) temporal.Temporal
}

// RestrictorFunc is a function that implements Restrictor.
type RestrictorFunc func(temp temporal.Temporal, box temporal.STBox, borderInc bool) temporal.Temporal

func (f RestrictorFunc) AtBox(temp temporal.Temporal, box temporal.STBox, borderInc bool) temporal.Temporal {
	return f(temp, box, borderInc)
}

// DefaultRestrictor is the restrictor used when none is given.
var DefaultRestrictor Restrictor = RestrictorFunc(temporal.AtBox)

// SplitOptions describes how to split a trajectory.
type SplitOptions struct {
	Grid

	// Skips the tiles the trajectory does not touch by marking them
	// beforehand in a bit matrix.
	BitMatrix bool

	// Makes the upper borders of the tiles inclusive.
	BorderInclusive bool

	// Defaults to DefaultRestrictor.
	Restrictor Restrictor
}

// Fragment is the part of a trajectory inside a tile.
type Fragment struct {
	// The 1-based position of the tile in the grid enumeration order.
	Index int

	Tile temporal.STBox

	// The lower corner of the tile. Only set when the grid tiles space.
	Origin temporal.Point

	// The start of the tile period. Only set when the grid tiles time.
	Time time.Time

	Value temporal.Temporal
}

// Split lazily produces the fragments of a trajectory over a grid.
//
// A Split holds a grid state and possibly a bit matrix until Close is called.
// Exhausting the split does not release them.
type Split struct {
	state      *GridState
	temp       temporal.Temporal
	restrictor Restrictor
	borderInc  bool

	mode      string
	start     time.Time
	visited   int
	fragments int
	closed    bool
}

// NewSplit starts the split of temp over the grid aligned on its bounding
// box. All the arguments are checked before anything is allocated.
func NewSplit(temp temporal.Temporal, opts SplitOptions) (*Split, error) {
	mode := splitMode(opts.Grid)
	instrumentSplit(mode)

	sp, err := newSplit(temp, opts, mode)
	if err != nil {
		instrumentSplitError(mode, err)
		return nil, err
	}
	return sp, nil
}

func newSplit(temp temporal.Temporal, opts SplitOptions, mode string) (*Split, error) {
	if temp == nil {
		return nil, errors.New("no trajectory to split").
			WithType(ErrTypeInvalidArgument)
	}

	state, err := NewGridState(temp, temp.BoundingBox(), opts.Grid)
	if err != nil {
		return nil, err
	}

	if _, err := cellCount(state.counts, MaxSplitTiles); err != nil {
		state.Close()
		return nil, err
	}

	// A single instant touches a single tile: the matrix would cost more than
	// the tiles it skips.
	if opts.BitMatrix && temp.NumInstants() > 1 {
		if err := attachTrajectoryMatrix(state, temp, opts.BorderInclusive); err != nil {
			state.Close()
			return nil, err
		}
	}

	restrictor := opts.Restrictor
	if restrictor == nil {
		restrictor = DefaultRestrictor
	}

	return &Split{
		state:      state,
		temp:       temp,
		restrictor: restrictor,
		borderInc:  opts.BorderInclusive,
		mode:       mode,
		start:      time.Now(),
	}, nil
}

func attachTrajectoryMatrix(state *GridState, temp temporal.Temporal, borderInc bool) error {
	bm, err := NewBitMatrix(state.Counts())
	if err != nil {
		return err
	}

	marked, err := state.MarkTiles(temp, bm)
	if err != nil {
		return err
	}
	if borderInc {
		marked = markLowerNeighbours(bm)
	}

	instrumentBitMatrix(bm.Cells(), marked)
	logs.WithTag("counts", bm.Counts()).
		WithTag("cells", bm.Cells()).
		WithTag("marked", marked).
		Debug("bit matrix populated")

	return state.AttachBitMatrix(bm)
}

func splitMode(g Grid) string {
	switch {
	case g.hasSpace() && g.Duration != 0:
		return "spacetime"
	case g.hasSpace():
		return "space"
	default:
		return "time"
	}
}

// SplitBySpace splits temp over a spatial grid.
func SplitBySpace(temp temporal.Temporal, xsize, ysize, zsize float64, origin temporal.Point, bitMatrix bool) (*Split, error) {
	return NewSplit(temp, SplitOptions{
		Grid: Grid{
			XSize:  xsize,
			YSize:  ysize,
			ZSize:  zsize,
			Origin: origin,
		},
		BitMatrix: bitMatrix,
	})
}

// SplitBySpaceTime splits temp over a spatiotemporal grid.
func SplitBySpaceTime(temp temporal.Temporal, xsize, ysize, zsize float64, duration time.Duration, origin temporal.Point, timeOrigin time.Time, bitMatrix bool) (*Split, error) {
	if duration <= 0 {
		return nil, errors.New("duration must be positive").
			WithType(ErrTypeInvalidArgument).
			WithTag("duration", duration)
	}

	return NewSplit(temp, SplitOptions{
		Grid: Grid{
			XSize:      xsize,
			YSize:      ysize,
			ZSize:      zsize,
			Duration:   duration,
			Origin:     origin,
			TimeOrigin: timeOrigin,
		},
		BitMatrix: bitMatrix,
	})
}

// SplitByTime splits temp over time buckets.
func SplitByTime(temp temporal.Temporal, duration time.Duration, timeOrigin time.Time) (*Split, error) {
	if duration <= 0 {
		return nil, errors.New("duration must be positive").
			WithType(ErrTypeInvalidArgument).
			WithTag("duration", duration)
	}

	return NewSplit(temp, SplitOptions{
		Grid: Grid{
			Duration:   duration,
			TimeOrigin: timeOrigin,
		},
	})
}

// Next returns the next non-empty fragment. It returns false once the grid is
// exhausted.
func (sp *Split) Next() (Fragment, bool) {
	for {
		box, ok := sp.state.Get()
		if !ok {
			return Fragment{}, false
		}
		index := sp.state.Index()
		sp.state.Next()
		sp.visited++

		// A marked tile only certifies that the trajectory touches it: with
		// exclusive borders the restriction may still be empty.
		value := sp.restrictor.AtBox(sp.temp, box, sp.borderInc)
		if value == nil {
			continue
		}

		sp.fragments++
		f := Fragment{
			Index: index,
			Tile:  box,
			Value: value,
		}
		if box.HasX {
			f.Origin = box.LowerCorner()
		}
		if box.HasT {
			f.Time = box.T.Lower
		}
		return f, true
	}
}

// All returns an iterator over the remaining fragments. The split is closed
// when the iteration ends, including when the loop body breaks early.
func (sp *Split) All() iter.Seq[Fragment] {
	return func(yield func(Fragment) bool) {
		defer sp.Close()

		for {
			f, ok := sp.Next()
			if !ok || !yield(f) {
				return
			}
		}
	}
}

// Collect returns all the remaining fragments and closes the split.
func (sp *Split) Collect() []Fragment {
	var fragments []Fragment
	for f := range sp.All() {
		fragments = append(fragments, f)
	}
	return fragments
}

// Close releases the grid state and its bit matrix. It is safe to call Close
// more than once.
func (sp *Split) Close() {
	if sp.closed {
		return
	}
	sp.closed = true
	sp.state.Close()

	skipped := sp.visited - sp.fragments
	instrumentSplitDone(sp.mode, sp.start, sp.fragments, skipped)
	logs.WithTag("mode", sp.mode).
		WithTag("tiles", sp.visited).
		WithTag("fragments", sp.fragments).
		WithTag("skipped", skipped).
		Debug("split released")
}

// Counts returns the number of tiles in each dimension of the split grid.
func (sp *Split) Counts() []int {
	return sp.state.Counts()
}

// Boxes returns the bounding box of every non-empty fragment of temp over the
// grid.
func Boxes(temp temporal.Temporal, opts SplitOptions) ([]temporal.STBox, error) {
	sp, err := NewSplit(temp, opts)
	if err != nil {
		return nil, err
	}

	var boxes []temporal.STBox
	for f := range sp.All() {
		boxes = append(boxes, f.Value.BoundingBox())
	}
	return boxes, nil
}
