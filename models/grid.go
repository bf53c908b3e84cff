package models

import (
	"strconv"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/trajtile/temporal"
	"github.com/aukilabs/trajtile/tile"
	"github.com/golang/geo/r1"
	"github.com/segmentio/encoding/json"
)

// DefaultTimeOrigin is the time origin of the grids that don't set one. It is
// a Monday so that weekly buckets start on Mondays.
var DefaultTimeOrigin = time.Date(2000, 1, 3, 0, 0, 0, 0, time.UTC)

// Duration is a time.Duration encoded as a Go duration string ("1h30m"). A
// number is read as nanoseconds.
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		n, nerr := strconv.ParseInt(string(b), 10, 64)
		if nerr != nil {
			return errors.New("invalid duration").
				WithType(tile.ErrTypeInvalidArgument).
				WithTag("duration", string(b)).
				Wrap(err)
		}
		*d = Duration(n)
		return nil
	}

	v, err := time.ParseDuration(s)
	if err != nil {
		return errors.New("invalid duration").
			WithType(tile.ErrTypeInvalidArgument).
			WithTag("duration", s).
			Wrap(err)
	}
	*d = Duration(v)
	return nil
}

// Span is a closed interval of coordinates.
type Span struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Period is a time span. Bounds are inclusive unless set otherwise.
type Period struct {
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	StartInc *bool     `json:"start_inc,omitempty"`
	EndInc   *bool     `json:"end_inc,omitempty"`
}

// Box is the JSON representation of a spatiotemporal box. X and Y must be
// set together.
type Box struct {
	X        *Span   `json:"x,omitempty"`
	Y        *Span   `json:"y,omitempty"`
	Z        *Span   `json:"z,omitempty"`
	T        *Period `json:"t,omitempty"`
	SRID     int32   `json:"srid,omitempty"`
	Geodetic bool    `json:"geodetic,omitempty"`
}

// STBox converts the box to a spatiotemporal box.
func (b Box) STBox() (temporal.STBox, error) {
	box := temporal.STBox{
		SRID:     b.SRID,
		Geodetic: b.Geodetic,
	}

	if (b.X == nil) != (b.Y == nil) {
		return box, errors.New("box must have both x and y spans").
			WithType(tile.ErrTypeInvalidArgument)
	}

	if b.X != nil {
		box.HasX = true
		box.X = span(*b.X)
		box.Y = span(*b.Y)
		if box.X.IsEmpty() || box.Y.IsEmpty() {
			return box, errors.New("box span min is greater than max").
				WithType(tile.ErrTypeInvalidArgument)
		}
	}

	if b.Z != nil {
		if b.X == nil {
			return box, errors.New("box with z must have x and y spans").
				WithType(tile.ErrTypeInvalidArgument)
		}
		box.HasZ = true
		box.Z = span(*b.Z)
		if box.Z.IsEmpty() {
			return box, errors.New("box span min is greater than max").
				WithType(tile.ErrTypeInvalidArgument)
		}
	}

	if b.T != nil {
		if b.T.End.Before(b.T.Start) {
			return box, errors.New("box period ends before it starts").
				WithType(tile.ErrTypeInvalidArgument)
		}
		box.HasT = true
		box.T = temporal.Period{
			Lower:    b.T.Start,
			Upper:    b.T.End,
			LowerInc: boolOr(b.T.StartInc, true),
			UpperInc: boolOr(b.T.EndInc, true),
		}
	}

	if !box.HasX && !box.HasT {
		return box, errors.New("box has no dimension").
			WithType(tile.ErrTypeInvalidArgument)
	}
	return box, nil
}

func span(s Span) r1.Interval {
	return r1.Interval{Lo: s.Min, Hi: s.Max}
}

// NewBox returns the JSON representation of a spatiotemporal box.
func NewBox(box temporal.STBox) Box {
	res := Box{
		SRID:     box.SRID,
		Geodetic: box.Geodetic,
	}

	if box.HasX {
		res.X = &Span{Min: box.X.Lo, Max: box.X.Hi}
		res.Y = &Span{Min: box.Y.Lo, Max: box.Y.Hi}
	}

	if box.HasZ {
		res.Z = &Span{Min: box.Z.Lo, Max: box.Z.Hi}
	}

	if box.HasT {
		lowerInc, upperInc := box.T.LowerInc, box.T.UpperInc
		res.T = &Period{
			Start:    box.T.Lower,
			End:      box.T.Upper,
			StartInc: &lowerInc,
			EndInc:   &upperInc,
		}
	}
	return res
}

// Grid is the JSON representation of a tile grid.
type Grid struct {
	XSize      float64    `json:"x_size,omitempty"`
	YSize      float64    `json:"y_size,omitempty"`
	ZSize      float64    `json:"z_size,omitempty"`
	Duration   Duration   `json:"duration,omitempty"`
	Origin     *Point     `json:"origin,omitempty"`
	TimeOrigin *time.Time `json:"time_origin,omitempty"`
}

// TileGrid converts the JSON grid to a tile grid. A size given alone applies to
// both X and Y.
func (g Grid) TileGrid() tile.Grid {
	res := tile.Grid{
		XSize:      g.XSize,
		YSize:      g.YSize,
		ZSize:      g.ZSize,
		Duration:   time.Duration(g.Duration),
		TimeOrigin: DefaultTimeOrigin,
	}

	switch {
	case res.XSize != 0 && res.YSize == 0:
		res.YSize = res.XSize
	case res.YSize != 0 && res.XSize == 0:
		res.XSize = res.YSize
	}

	if g.Origin != nil {
		res.Origin = g.Origin.Value()
	}

	if g.TimeOrigin != nil {
		res.TimeOrigin = *g.TimeOrigin
	}
	return res
}
