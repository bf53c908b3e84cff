package tile

import (
	"testing"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/trajtile/temporal"
	"github.com/golang/geo/r1"
	"github.com/stretchr/testify/require"
)

func TestTileList(t *testing.T) {
	t.Run("aligned bounds", func(t *testing.T) {
		tiles, counts, err := TileList(spaceBox(0, 0, 10, 10), Grid{XSize: 5, YSize: 5})
		require.NoError(t, err)
		require.Equal(t, []int{2, 2}, counts)
		require.Len(t, tiles, 4)
		require.Equal(t, [][2]float64{{0, 0}, {5, 0}, {0, 5}, {5, 5}}, lowerCorners(tiles))

		for i, tile := range tiles {
			require.Equal(t, i+1, tile.Index)
			require.Equal(t, 5.0, tile.Box.X.Length())
			require.Equal(t, 5.0, tile.Box.Y.Length())
		}
	})

	t.Run("unaligned bounds", func(t *testing.T) {
		tiles, counts, err := TileList(spaceBox(1, -1, 11, 4), Grid{XSize: 5, YSize: 5})
		require.NoError(t, err)
		require.Equal(t, []int{3, 2}, counts)
		require.Equal(t, [][2]float64{
			{0, -5}, {5, -5}, {10, -5},
			{0, 0}, {5, 0}, {10, 0},
		}, lowerCorners(tiles))
	})

	t.Run("degenerate bounds", func(t *testing.T) {
		tiles, counts, err := TileList(spaceBox(5, 5, 5, 5), Grid{XSize: 5, YSize: 5})
		require.NoError(t, err)
		require.Equal(t, []int{1, 1}, counts)
		require.Equal(t, [][2]float64{{5, 5}}, lowerCorners(tiles))
	})

	t.Run("time", func(t *testing.T) {
		bounds := temporal.STBox{
			HasT: true,
			T: temporal.Period{
				Lower:    t0,
				Upper:    t0.Add(3 * time.Hour),
				LowerInc: true,
				UpperInc: true,
			},
		}

		tiles, counts, err := TileList(bounds, Grid{Duration: time.Hour, TimeOrigin: t0})
		require.NoError(t, err)
		require.Equal(t, []int{3}, counts)
		require.Len(t, tiles, 3)

		for i, tile := range tiles {
			require.False(t, tile.Box.HasX)
			require.Equal(t, t0.Add(time.Duration(i)*time.Hour), tile.Box.T.Lower)
			require.Equal(t, t0.Add(time.Duration(i+1)*time.Hour), tile.Box.T.Upper)
			require.True(t, tile.Box.T.LowerInc)
			require.False(t, tile.Box.T.UpperInc)
		}
	})

	t.Run("space and time", func(t *testing.T) {
		bounds := spaceBox(0, 0, 2, 1)
		bounds.HasT = true
		bounds.T = temporal.Period{Lower: t0, Upper: t0.Add(90 * time.Minute), LowerInc: true, UpperInc: true}

		tiles, counts, err := TileList(bounds, Grid{XSize: 1, YSize: 1, Duration: time.Hour, TimeOrigin: t0})
		require.NoError(t, err)
		require.Equal(t, []int{2, 1, 2}, counts)
		require.Len(t, tiles, 4)

		// X moves fastest, time slowest.
		require.Equal(t, [][2]float64{{0, 0}, {1, 0}, {0, 0}, {1, 0}}, lowerCorners(tiles))
		require.Equal(t, t0, tiles[1].Box.T.Lower)
		require.Equal(t, t0.Add(time.Hour), tiles[2].Box.T.Lower)
	})

	t.Run("too many tiles", func(t *testing.T) {
		limit := MaxTileListSize
		MaxTileListSize = 10
		defer func() { MaxTileListSize = limit }()

		_, _, err := TileList(spaceBox(0, 0, 100, 100), Grid{XSize: 1, YSize: 1})
		require.True(t, errors.IsType(err, ErrTypeAllocationFailure))
	})

	t.Run("invalid grid", func(t *testing.T) {
		_, _, err := TileList(spaceBox(0, 0, 1, 1), Grid{XSize: 1})
		require.True(t, errors.IsType(err, ErrTypeInvalidArgument))
	})
}

func TestTileForPoint(t *testing.T) {
	t.Run("space", func(t *testing.T) {
		box, err := TileForPoint(temporal.NewPoint(7, -3), time.Time{}, Grid{XSize: 5, YSize: 2})
		require.NoError(t, err)
		require.True(t, box.HasX)
		require.False(t, box.HasT)
		require.Equal(t, r1.Interval{Lo: 5, Hi: 10}, box.X)
		require.Equal(t, r1.Interval{Lo: -4, Hi: -2}, box.Y)
	})

	t.Run("space and time", func(t *testing.T) {
		box, err := TileForPoint(temporal.NewPoint3D(1, 1, 2.5), t0.Add(50*time.Minute), Grid{
			XSize:      2,
			YSize:      2,
			ZSize:      1,
			Duration:   30 * time.Minute,
			Origin:     temporal.NewPoint3D(0, 0, 0.5),
			TimeOrigin: t0,
		})
		require.NoError(t, err)
		require.True(t, box.HasZ)
		require.Equal(t, r1.Interval{Lo: 2.5, Hi: 3.5}, box.Z)
		require.Equal(t, temporal.Period{
			Lower:    t0.Add(30 * time.Minute),
			Upper:    t0.Add(time.Hour),
			LowerInc: true,
		}, box.T)
	})

	t.Run("contains point", func(t *testing.T) {
		p := temporal.NewPoint(12.34, 56.78)
		box, err := TileForPoint(p, t0, Grid{XSize: 0.5, YSize: 0.25, Origin: temporal.NewPoint(0.1, 0.1)})
		require.NoError(t, err)
		require.True(t, temporal.AtBox(temporal.NewInstant(p, t0), box, false) != nil)
	})

	t.Run("z size without z", func(t *testing.T) {
		_, err := TileForPoint(temporal.NewPoint(1, 1), t0, Grid{XSize: 1, YSize: 1, ZSize: 1})
		require.True(t, errors.IsType(err, ErrTypeInvalidArgument))
	})
}
