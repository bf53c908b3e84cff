package models

import (
	"testing"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/trajtile/temporal"
	"github.com/aukilabs/trajtile/tile"
	"github.com/golang/geo/r1"
	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/require"
)

func TestDuration(t *testing.T) {
	var d Duration
	require.NoError(t, json.Unmarshal([]byte(`"1h30m"`), &d))
	require.Equal(t, Duration(90*time.Minute), d)

	require.NoError(t, json.Unmarshal([]byte(`1000`), &d))
	require.Equal(t, Duration(time.Microsecond), d)

	err := json.Unmarshal([]byte(`"forever"`), &d)
	require.Error(t, err)

	b, err := json.Marshal(Duration(time.Hour))
	require.NoError(t, err)
	require.Equal(t, `"1h0m0s"`, string(b))
}

func TestBoxSTBox(t *testing.T) {
	t.Run("space", func(t *testing.T) {
		box, err := Box{X: &Span{0, 10}, Y: &Span{-1, 1}, SRID: 3857}.STBox()
		require.NoError(t, err)
		require.True(t, box.HasX)
		require.False(t, box.HasT)
		require.Equal(t, r1.Interval{Lo: 0, Hi: 10}, box.X)
		require.Equal(t, int32(3857), box.SRID)
	})

	t.Run("time", func(t *testing.T) {
		endInc := false
		box, err := Box{T: &Period{Start: t0, End: t0.Add(time.Hour), EndInc: &endInc}}.STBox()
		require.NoError(t, err)
		require.False(t, box.HasX)
		require.Equal(t, temporal.Period{Lower: t0, Upper: t0.Add(time.Hour), LowerInc: true}, box.T)
	})

	tests := []struct {
		name string
		box  Box
	}{
		{name: "empty", box: Box{}},
		{name: "x without y", box: Box{X: &Span{0, 1}}},
		{name: "z without x", box: Box{Z: &Span{0, 1}, T: &Period{Start: t0, End: t0}}},
		{name: "reversed span", box: Box{X: &Span{1, 0}, Y: &Span{0, 1}}},
		{name: "reversed period", box: Box{T: &Period{Start: t0, End: t0.Add(-time.Hour)}}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := test.box.STBox()
			require.True(t, errors.IsType(err, tile.ErrTypeInvalidArgument))
		})
	}

	t.Run("round trip", func(t *testing.T) {
		box := temporal.STBox{
			X:    r1.Interval{Lo: 1, Hi: 2},
			Y:    r1.Interval{Lo: 3, Hi: 4},
			Z:    r1.Interval{Lo: 5, Hi: 6},
			T:    temporal.Period{Lower: t0, Upper: t0.Add(time.Minute), LowerInc: true},
			HasX: true,
			HasZ: true,
			HasT: true,
			SRID: 4326,
		}

		res, err := NewBox(box).STBox()
		require.NoError(t, err)
		require.Equal(t, box, res)
	})
}

func TestGridTileGrid(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		g := Grid{XSize: 5}.TileGrid()
		require.Equal(t, 5.0, g.XSize)
		require.Equal(t, 5.0, g.YSize)
		require.Equal(t, DefaultTimeOrigin, g.TimeOrigin)
		require.Equal(t, temporal.Point{}, g.Origin)
	})

	t.Run("decoded", func(t *testing.T) {
		var g Grid
		require.NoError(t, json.Unmarshal([]byte(`{
			"x_size": 2,
			"y_size": 3,
			"z_size": 4,
			"duration": "15m",
			"origin": {"x": 1, "y": 1, "z": 1},
			"time_origin": "2024-03-01T12:00:00Z"
		}`), &g))

		require.Equal(t, tile.Grid{
			XSize:      2,
			YSize:      3,
			ZSize:      4,
			Duration:   15 * time.Minute,
			Origin:     temporal.NewPoint3D(1, 1, 1),
			TimeOrigin: t0,
		}, g.TileGrid())
	})
}

func TestSplitRequest(t *testing.T) {
	var req SplitRequest
	require.NoError(t, json.Unmarshal([]byte(`{
		"x_size": 1,
		"trajectory": {"instants": [
			{"x": 0, "y": 0, "t": "2024-03-01T12:00:00Z"},
			{"x": 3, "y": 0, "t": "2024-03-01T12:01:00Z"}
		]}
	}`), &req))

	temp, opts, err := req.Split(true)
	require.NoError(t, err)
	require.Equal(t, 2, temp.NumInstants())
	require.True(t, opts.BitMatrix)
	require.True(t, opts.BorderInclusive)
	require.Equal(t, 1.0, opts.YSize)

	noMatrix := false
	req.BitMatrix = &noMatrix
	req.BorderInclusive = &noMatrix
	_, opts, err = req.Split(true)
	require.NoError(t, err)
	require.False(t, opts.BitMatrix)
	require.False(t, opts.BorderInclusive)

	req.Trajectory = Trajectory{}
	_, _, err = req.Split(false)
	require.True(t, errors.IsType(err, temporal.ErrTypeInvalidTemporal))
}

func TestNewFragment(t *testing.T) {
	seq, err := temporal.NewSequence([]temporal.Instant{
		temporal.NewInstant(temporal.NewPoint(0.5, 0.5), t0),
		temporal.NewInstant(temporal.NewPoint(0.7, 0.5), t0.Add(time.Minute)),
	}, temporal.Linear, true, true)
	require.NoError(t, err)

	sp, err := tile.SplitBySpace(seq, 1, 1, 0, temporal.Point{}, true)
	require.NoError(t, err)

	fragments := sp.Collect()
	require.Len(t, fragments, 1)

	f := NewFragment(fragments[0])
	require.Equal(t, 1, f.Index)
	require.Equal(t, &Point{X: 0, Y: 0}, f.Origin)
	require.Nil(t, f.Time)
	require.Equal(t, &Span{Min: 0, Max: 1}, f.Tile.X)
	require.Len(t, f.Trajectory.Instants, 2)
}
