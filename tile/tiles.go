package tile

import (
	"time"

	"github.com/aukilabs/trajtile/temporal"
	"github.com/golang/geo/r1"
)

// MaxTileListSize is the maximum number of tiles TileList returns.
var MaxTileListSize int64 = 1 << 20

// IndexedTile is a tile with its 1-based position in the grid enumeration
// order.
type IndexedTile struct {
	Index int
	Box   temporal.STBox
}

// TileList returns the tiles of the grid covering bounds, X fastest, along
// with the number of tiles in each dimension of the grid. Upper bounds are
// exclusive: a bound lying on a tile border does not add a tile.
func TileList(bounds temporal.STBox, g Grid) ([]IndexedTile, []int, error) {
	state, err := newGridState(nil, bounds, g, true)
	if err != nil {
		return nil, nil, err
	}
	defer state.Close()

	count, err := cellCount(state.counts, MaxTileListSize)
	if err != nil {
		return nil, nil, err
	}

	tiles := make([]IndexedTile, 0, count)
	for {
		box, ok := state.Get()
		if !ok {
			break
		}
		tiles = append(tiles, IndexedTile{
			Index: state.Index(),
			Box:   box,
		})
		state.Next()
	}

	instrumentTileList(len(tiles))
	return tiles, state.Counts(), nil
}

// TileForPoint returns the tile of the grid that contains a point at time t.
// The point is ignored when the grid does not tile space and t is ignored
// when the grid does not tile time.
func TileForPoint(p temporal.Point, t time.Time, g Grid) (temporal.STBox, error) {
	bounds := temporal.STBox{
		X:    r1.IntervalFromPoint(p.X),
		Y:    r1.IntervalFromPoint(p.Y),
		Z:    r1.IntervalFromPoint(p.Z),
		T:    temporal.Period{Lower: t, Upper: t, LowerInc: true, UpperInc: true},
		HasX: true,
		HasZ: p.HasZ,
		HasT: true,
		SRID: p.SRID,
	}
	if err := g.validate(bounds); err != nil {
		return temporal.STBox{}, err
	}

	box := temporal.STBox{
		HasX: g.hasSpace(),
		HasZ: g.ZSize != 0,
		HasT: g.Duration != 0,
		SRID: p.SRID,
	}

	if box.HasX {
		box.X = bucketInterval(p.X, g.XSize, g.Origin.X)
		box.Y = bucketInterval(p.Y, g.YSize, g.Origin.Y)
	}

	if box.HasZ {
		box.Z = bucketInterval(p.Z, g.ZSize, g.Origin.Z)
	}

	if box.HasT {
		lower := TimeBucket(t, g.Duration, g.TimeOrigin)
		box.T = temporal.Period{
			Lower:    lower,
			Upper:    lower.Add(g.Duration),
			LowerInc: true,
		}
	}

	return box, nil
}

func bucketInterval(v, size, origin float64) r1.Interval {
	lo := FloatBucket(v, size, origin)
	return r1.Interval{Lo: lo, Hi: lo + size}
}
