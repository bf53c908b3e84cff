package tile

import (
	"math"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

// Traverse calls visit for every grid cell crossed by the straight segment
// going from the cell coords1 to the cell coords2, in path order. eps1 and eps2
// are the relative positions of the segment ends inside their cells.
//
// Consecutive cells differ by one unit in exactly one dimension, so exactly
// 1 + the Manhattan distance between coords1 and coords2 cells are visited.
// visit must not retain the slice it is given.
//
// This is the N-dimensional version of the fast voxel traversal algorithm from
// Amanatides and Woo, "A fast voxel traversal algorithm for ray tracing" (1987).
func Traverse(coords1 []int, eps1 []float64, coords2 []int, eps2 []float64, visit func(coords []int) error) (int, error) {
	n := len(coords1)
	if n == 0 || n > MaxDims || len(coords2) != n || len(eps1) != n || len(eps2) != n {
		return 0, errors.New("invalid voxel traversal dimensions").
			WithType(ErrTypeInvalidArgument).
			WithTag("dims", n)
	}

	var k int
	var remaining [MaxDims]int
	for i := 0; i < n; i++ {
		remaining[i] = abs(coords2[i] - coords1[i])
		k += remaining[i]
	}

	cur := append([]int(nil), coords1...)
	if err := visit(cur); err != nil {
		return 0, err
	}

	switch k {
	case 0:
		return 1, nil
	case 1:
		copy(cur, coords2)
		if err := visit(cur); err != nil {
			return 1, err
		}
		return 2, nil
	}

	delta := make([]float64, n)
	for i := 0; i < n; i++ {
		delta[i] = float64(coords2[i]-coords1[i]) + eps2[i] - eps1[i]
	}
	length := floats.Norm(delta, 2)

	var step [MaxDims]int
	var tMax, tDelta [MaxDims]float64
	for i := 0; i < n; i++ {
		switch {
		case coords2[i] > coords1[i]:
			step[i] = 1
			tDelta[i] = length / math.Abs(delta[i])
			tMax[i] = (1 - eps1[i]) * tDelta[i]

		case coords2[i] < coords1[i]:
			step[i] = -1
			tDelta[i] = length / math.Abs(delta[i])
			tMax[i] = eps1[i] * tDelta[i]

		default:
			tDelta[i] = math.Inf(1)
			tMax[i] = math.Inf(1)
		}
	}

	for s := 0; s < k; s++ {
		// Only dimensions with steps left are candidates so that rounding can't
		// make the walk overshoot the end cell.
		idx := -1
		for i := 0; i < n; i++ {
			if remaining[i] == 0 {
				continue
			}
			if idx < 0 || tMax[i] < tMax[idx] {
				idx = i
			}
		}

		cur[idx] += step[idx]
		remaining[idx]--
		tMax[idx] += tDelta[idx]

		if err := visit(cur); err != nil {
			return s + 1, err
		}
	}

	for i := 0; i < n; i++ {
		if cur[i] != coords2[i] {
			return k + 1, errors.New("voxel traversal missed its end cell").
				WithType(ErrTypeOutOfRange).
				WithTag("end", coords2).
				WithTag("reached", cur)
		}
	}
	return k + 1, nil
}

// FastVoxelTraversal sets in bm the cells crossed by the segment going from
// coords1 to coords2 and returns the number of cells set.
func FastVoxelTraversal(coords1 []int, eps1 []float64, coords2 []int, eps2 []float64, bm *BitMatrix) (int, error) {
	return Traverse(coords1, eps1, coords2, eps2, func(coords []int) error {
		return bm.Set(coords, true)
	})
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
