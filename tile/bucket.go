package tile

import (
	"math"
	"time"
)

// FloatBucket returns the lower bound of the bucket of the given size that
// contains value, with buckets aligned on origin. The result b satisfies
// b <= value < b+size and FloatBucket(b, size, origin) == b.
func FloatBucket(value, size, origin float64) float64 {
	if origin != 0 {
		origin = math.Mod(origin, size)
	}

	k := math.Floor((value - origin) / size)

	// Rounding in the division may put value in a neighbour bucket.
	if origin+k*size > value {
		k--
	} else if origin+(k+1)*size <= value {
		k++
	}
	return origin + k*size
}

// TimeBucket returns the start of the time bucket of the given duration that
// contains t, with buckets aligned on origin.
func TimeBucket(t time.Time, size time.Duration, origin time.Time) time.Time {
	d := t.Sub(origin)
	k := d / size
	if d < 0 && d%size != 0 {
		k--
	}
	return origin.Add(k * size)
}
