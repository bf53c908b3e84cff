package tile

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/trajtile/temporal"
)

// MarkTiles sets in bm the cells of the grid touched by temp and returns the
// number of cells set in bm.
//
// Instants and discrete sequences only touch the cells of their instants.
// Linear sequences touch every cell crossed between consecutive instants and
// the cells owning the tile corners they pass through.
// Step sequences hold their position until the next instant, so in a grid
// with time they also touch the cells of that position until the next
// instant, rather than only the cells of their instants. Gaps between the
// sequences of a set are never filled.
func (s *GridState) MarkTiles(temp temporal.Temporal, bm *BitMatrix) (int, error) {
	var err error

	switch v := temp.(type) {
	case temporal.Instant:
		err = s.markInstant(v, bm)

	case temporal.Sequence:
		err = s.markSequence(v, bm)

	case temporal.SequenceSet:
		for _, seq := range v.Sequences {
			if err = s.markSequence(seq, bm); err != nil {
				break
			}
		}

	default:
		err = errors.Newf("unsupported temporal type %T", temp).
			WithType(ErrTypeInvalidArgument)
	}

	if err != nil {
		return 0, err
	}
	return bm.Count(), nil
}

func (s *GridState) markInstant(inst temporal.Instant, bm *BitMatrix) error {
	var coords [MaxDims]int
	var eps [MaxDims]float64
	n := len(s.dims)

	s.locate(inst.Value, inst.T, coords[:n], eps[:n])
	return bm.Set(coords[:n], true)
}

func (s *GridState) markSequence(seq temporal.Sequence, bm *BitMatrix) error {
	switch seq.Interp {
	case temporal.Discrete:
		for _, inst := range seq.Instants {
			if err := s.markInstant(inst, bm); err != nil {
				return err
			}
		}
		return nil

	case temporal.Step:
		return s.markSegments(seq, bm, true)

	default:
		return s.markSegments(seq, bm, false)
	}
}

func (s *GridState) markSegments(seq temporal.Sequence, bm *BitMatrix, step bool) error {
	var coords1, coords2 [MaxDims]int
	var eps1, eps2 [MaxDims]float64
	n := len(s.dims)
	tdim := -1
	for i, d := range s.dims {
		if d == DimT {
			tdim = i
		}
	}

	set := func(coords []int) error {
		return bm.Set(coords, true)
	}

	first := seq.Instants[0]
	s.locate(first.Value, first.T, coords1[:n], eps1[:n])
	if err := set(coords1[:n]); err != nil {
		return err
	}

	for _, inst := range seq.Instants[1:] {
		s.locate(inst.Value, inst.T, coords2[:n], eps2[:n])

		if step {
			if err := set(coords2[:n]); err != nil {
				return err
			}

			if tdim >= 0 {
				// Held position: same cell in space, moving in time.
				held, heldEps := coords1, eps1
				held[tdim], heldEps[tdim] = coords2[tdim], eps2[tdim]
				if _, err := Traverse(coords1[:n], eps1[:n], held[:n], heldEps[:n], set); err != nil {
					return err
				}
			}
		} else if err := traverseCorners(coords1[:n], eps1[:n], coords2[:n], eps2[:n], set); err != nil {
			return err
		}

		coords1, eps1 = coords2, eps2
	}
	return nil
}

// traverseCorners visits the cells crossed by a segment like Traverse, plus
// the cells owning the tile corners the segment may pass through. A corner
// belongs to the cell with the highest coordinates around it, which the walk
// skips when the segment moves down in a dimension and up in another.
func traverseCorners(coords1 []int, eps1 []float64, coords2 []int, eps2 []float64, visit func(coords []int) error) error {
	n := len(coords1)

	// The last n cells, most recent first. A corner shared by n dimensions
	// is passed within n steps.
	var recent [MaxDims][MaxDims]int
	var size int

	_, err := Traverse(coords1, eps1, coords2, eps2, func(coords []int) error {
		if err := visit(coords); err != nil {
			return err
		}

		var corner [MaxDims]int
		copy(corner[:n], coords)
		for i := 0; i < size; i++ {
			raised := false
			for d := 0; d < n; d++ {
				if recent[i][d] > corner[d] {
					corner[d] = recent[i][d]
					raised = true
				}
			}
			if raised {
				if err := visit(corner[:n]); err != nil {
					return err
				}
			}
		}

		if size < n {
			size++
		}
		for i := size - 1; i > 0; i-- {
			recent[i] = recent[i-1]
		}
		copy(recent[0][:n], coords)
		return nil
	})
	return err
}

// markLowerNeighbours also sets the cells sharing a lower border or corner
// with a set cell. With inclusive upper tile borders, a position on such a
// border belongs to these cells too. It returns the number of cells set.
func markLowerNeighbours(bm *BitMatrix) int {
	n := len(bm.counts)
	cells := bm.Cells()
	coords := make([]int, n)
	neighbour := make([]int, n)

	// Neighbours come first in row-major order: the cells they set have
	// already been visited and are not dilated again.
	for index := 0; index < cells; index++ {
		if bm.bits[index>>3]&(1<<(index&7)) != 0 {
			for mask := 1; mask < 1<<n; mask++ {
				inside := true
				for d := range coords {
					neighbour[d] = coords[d]
					if mask&(1<<d) != 0 {
						neighbour[d]--
						inside = inside && neighbour[d] >= 0
					}
				}
				if inside {
					neighbourIndex, _ := FlatIndex(bm.counts, neighbour)
					bm.bits[neighbourIndex>>3] |= 1 << (neighbourIndex & 7)
				}
			}
		}

		for d := n - 1; d >= 0; d-- {
			coords[d]++
			if coords[d] < bm.counts[d] {
				break
			}
			coords[d] = 0
		}
	}
	return bm.Count()
}
