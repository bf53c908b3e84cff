package tile

import (
	"math/bits"

	"github.com/aukilabs/go-tooling/pkg/errors"
)

// MaxDims is the maximum number of dimensions of a grid: X, Y, Z and T.
const MaxDims = 4

// MaxBitMatrixCells is the maximum number of cells a bit matrix can address.
var MaxBitMatrixCells int64 = 1 << 32

// BitMatrix is a packed N-dimensional bit array recording which cells of a
// grid are touched by a trajectory.
type BitMatrix struct {
	counts []int
	bits   []byte
}

// NewBitMatrix returns a zeroed bit matrix with counts[i] cells in the i-th
// dimension.
func NewBitMatrix(counts []int) (*BitMatrix, error) {
	if len(counts) == 0 || len(counts) > MaxDims {
		return nil, errors.New("invalid bit matrix dimensions").
			WithType(ErrTypeInvalidArgument).
			WithTag("dims", len(counts))
	}

	cells, err := cellCount(counts, MaxBitMatrixCells)
	if err != nil {
		return nil, err
	}

	return &BitMatrix{
		counts: append([]int(nil), counts...),
		bits:   make([]byte, (cells+7)/8),
	}, nil
}

// cellCount returns the product of counts, failing when it exceeds limit.
func cellCount(counts []int, limit int64) (int64, error) {
	cells := int64(1)
	for i, c := range counts {
		if c <= 0 {
			return 0, errors.New("cell count must be positive").
				WithType(ErrTypeInvalidArgument).
				WithTag("dim", i).
				WithTag("count", c)
		}

		if cells > limit/int64(c) {
			return 0, errors.New("too many cells").
				WithType(ErrTypeAllocationFailure).
				WithTag("counts", counts).
				WithTag("limit", limit)
		}
		cells *= int64(c)
	}
	return cells, nil
}

// FlatIndex returns the row-major position of coords in a matrix with the
// given counts: sum of coords[i] times the product of counts[j] for j > i.
func FlatIndex(counts []int, coords []int) (int, error) {
	if len(coords) != len(counts) {
		return 0, errors.New("coordinates do not match matrix dimensions").
			WithType(ErrTypeOutOfRange).
			WithTag("dims", len(counts)).
			WithTag("coords", coords)
	}

	var index int
	for i, c := range coords {
		if c < 0 || c >= counts[i] {
			return 0, errors.New("coordinate out of range").
				WithType(ErrTypeOutOfRange).
				WithTag("dim", i).
				WithTag("coord", c).
				WithTag("count", counts[i])
		}
		index = index*counts[i] + c
	}
	return index, nil
}

func (bm *BitMatrix) Get(coords []int) (bool, error) {
	index, err := FlatIndex(bm.counts, coords)
	if err != nil {
		return false, err
	}
	return bm.bits[index>>3]&(1<<(index&7)) != 0, nil
}

func (bm *BitMatrix) Set(coords []int, value bool) error {
	index, err := FlatIndex(bm.counts, coords)
	if err != nil {
		return err
	}

	if value {
		bm.bits[index>>3] |= 1 << (index & 7)
	} else {
		bm.bits[index>>3] &^= 1 << (index & 7)
	}
	return nil
}

// Count returns the number of set bits.
func (bm *BitMatrix) Count() int {
	var count int
	for _, b := range bm.bits {
		count += bits.OnesCount8(b)
	}
	return count
}

func (bm *BitMatrix) Dims() int {
	return len(bm.counts)
}

// Counts returns the number of cells in each dimension.
func (bm *BitMatrix) Counts() []int {
	return append([]int(nil), bm.counts...)
}

// Cells returns the number of addressable cells.
func (bm *BitMatrix) Cells() int {
	cells := 1
	for _, c := range bm.counts {
		cells *= c
	}
	return cells
}
