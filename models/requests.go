package models

import (
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/trajtile/temporal"
	"github.com/aukilabs/trajtile/tile"
)

// TilesRequest asks for the tiles of a grid covering a box.
type TilesRequest struct {
	Grid
	Bounds Box `json:"bounds"`
}

type Tile struct {
	Index int `json:"index"`
	Box   Box `json:"box"`
}

type TilesResponse struct {
	RequestID string `json:"request_id"`
	Counts    []int  `json:"counts"`
	Tiles     []Tile `json:"tiles"`
}

func NewTiles(tiles []tile.IndexedTile) []Tile {
	res := make([]Tile, len(tiles))
	for i, t := range tiles {
		res[i] = Tile{Index: t.Index, Box: NewBox(t.Box)}
	}
	return res
}

// TileRequest asks for the tile of a grid containing a point at a time.
type TileRequest struct {
	Grid
	Point Point      `json:"point"`
	T     *time.Time `json:"t,omitempty"`
}

func (r TileRequest) Time() time.Time {
	if r.T == nil {
		return time.Time{}
	}
	return *r.T
}

type TileResponse struct {
	RequestID string `json:"request_id"`
	Box       Box    `json:"box"`
}

// SplitRequest asks for the fragments of a trajectory over a grid. The bit
// matrix is used unless disabled.
type SplitRequest struct {
	Grid
	Trajectory      Trajectory `json:"trajectory"`
	BitMatrix       *bool      `json:"bit_matrix,omitempty"`
	BorderInclusive *bool      `json:"border_inclusive,omitempty"`
}

// Split returns the trajectory to split and the split options.
// borderInclusive is used when the request does not set it.
func (r SplitRequest) Split(borderInclusive bool) (temporal.Temporal, tile.SplitOptions, error) {
	temp, err := r.Trajectory.Temporal()
	if err != nil {
		return nil, tile.SplitOptions{}, errors.New("invalid trajectory").
			WithType(temporal.ErrTypeInvalidTemporal).
			Wrap(err)
	}

	return temp, tile.SplitOptions{
		Grid:            r.Grid.TileGrid(),
		BitMatrix:       boolOr(r.BitMatrix, true),
		BorderInclusive: boolOr(r.BorderInclusive, borderInclusive),
	}, nil
}

// Fragment is the part of a trajectory inside a tile.
type Fragment struct {
	Index      int        `json:"index"`
	Tile       Box        `json:"tile"`
	Origin     *Point     `json:"origin,omitempty"`
	Time       *time.Time `json:"time,omitempty"`
	Trajectory Trajectory `json:"trajectory"`
}

func NewFragment(f tile.Fragment) Fragment {
	res := Fragment{
		Index:      f.Index,
		Tile:       NewBox(f.Tile),
		Trajectory: NewTrajectory(f.Value),
	}

	if f.Tile.HasX {
		origin := newPoint(f.Origin)
		res.Origin = &origin
	}

	if f.Tile.HasT {
		t := f.Time
		res.Time = &t
	}
	return res
}

type SplitResponse struct {
	RequestID string     `json:"request_id"`
	Counts    []int      `json:"counts"`
	Fragments []Fragment `json:"fragments"`
}

type BoxesResponse struct {
	RequestID string `json:"request_id"`
	Boxes     []Box  `json:"boxes"`
}

type Error struct {
	RequestID string `json:"request_id,omitempty"`
	Type      string `json:"type,omitempty"`
	Error     string `json:"error"`
}

// NewError returns the JSON representation of err.
func NewError(requestID string, err error) Error {
	return Error{
		RequestID: requestID,
		Type:      errors.Type(err),
		Error:     err.Error(),
	}
}

// Stream message types.
const (
	StreamMsgStart    = "start"
	StreamMsgFragment = "fragment"
	StreamMsgEnd      = "end"
	StreamMsgError    = "error"
)

// StreamRequest asks for the fragments of a split to be streamed. Several
// requests can be sent over the same connection.
type StreamRequest struct {
	RequestID string `json:"request_id,omitempty"`
	SplitRequest
}

// StreamMsg is a message sent while streaming the fragments of a split.
type StreamMsg struct {
	Type      string    `json:"type"`
	RequestID string    `json:"request_id,omitempty"`
	Counts    []int     `json:"counts,omitempty"`
	Fragment  *Fragment `json:"fragment,omitempty"`
	Fragments int       `json:"fragments,omitempty"`
	Error     *Error    `json:"error,omitempty"`
}
