package tile

import (
	"testing"
	"time"

	"github.com/aukilabs/trajtile/temporal"
	"github.com/golang/geo/r1"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// sample is a position at t0 plus a number of minutes.
type sample struct {
	x, y    float64
	minutes int
}

func instants(samples ...sample) []temporal.Instant {
	res := make([]temporal.Instant, len(samples))
	for i, s := range samples {
		res[i] = temporal.NewInstant(
			temporal.NewPoint(s.x, s.y),
			t0.Add(time.Duration(s.minutes)*time.Minute),
		)
	}
	return res
}

func newSequence(t *testing.T, interp temporal.Interpolation, samples ...sample) temporal.Sequence {
	seq, err := temporal.NewSequence(instants(samples...), interp, true, true)
	require.NoError(t, err)
	return seq
}

func spaceBox(xmin, ymin, xmax, ymax float64) temporal.STBox {
	return temporal.STBox{
		X:    r1.Interval{Lo: xmin, Hi: xmax},
		Y:    r1.Interval{Lo: ymin, Hi: ymax},
		HasX: true,
	}
}

func lowerCorners(tiles []IndexedTile) [][2]float64 {
	res := make([][2]float64, len(tiles))
	for i, tile := range tiles {
		res[i] = [2]float64{tile.Box.X.Lo, tile.Box.Y.Lo}
	}
	return res
}
