package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aukilabs/trajtile/featureflag"
	"github.com/aukilabs/trajtile/models"
	"github.com/aukilabs/trajtile/temporal"
	"github.com/aukilabs/trajtile/tile"
	"github.com/google/go-cmp/cmp"
	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/require"
)

const lPathSplit = `{
	"x_size": 1,
	"trajectory": {"instants": [
		{"x": 0, "y": 0, "t": "2024-03-01T12:00:00Z"},
		{"x": 3, "y": 0, "t": "2024-03-01T12:01:00Z"},
		{"x": 3, "y": 3, "t": "2024-03-01T12:02:00Z"}
	]}
}`

func serve(t *testing.T, h http.HandlerFunc, body string, res any) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(HeaderRequestID, "test-request")

	rec := httptest.NewRecorder()
	h(rec, req)
	require.Equal(t, "test-request", rec.Header().Get(HeaderRequestID))

	if res != nil {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), res), rec.Body.String())
	}
	return rec
}

func TestHandleTiles(t *testing.T) {
	s := TileService{}

	t.Run("space", func(t *testing.T) {
		var res models.TilesResponse
		rec := serve(t, s.HandleTiles, `{
			"x_size": 5,
			"y_size": 5,
			"bounds": {"x": {"min": 0, "max": 10}, "y": {"min": 0, "max": 10}}
		}`, &res)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		require.Equal(t, "test-request", res.RequestID)
		require.Equal(t, []int{2, 2}, res.Counts)

		var corners [][2]float64
		for _, tl := range res.Tiles {
			corners = append(corners, [2]float64{tl.Box.X.Min, tl.Box.Y.Min})
		}
		require.Empty(t, cmp.Diff([][2]float64{{0, 0}, {5, 0}, {0, 5}, {5, 5}}, corners))
	})

	t.Run("time", func(t *testing.T) {
		var res models.TilesResponse
		rec := serve(t, s.HandleTiles, `{
			"duration": "1h",
			"time_origin": "2024-03-01T00:00:00Z",
			"bounds": {"t": {"start": "2024-03-01T00:30:00Z", "end": "2024-03-01T02:30:00Z"}}
		}`, &res)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, []int{3}, res.Counts)
		require.Nil(t, res.Tiles[0].Box.X)
		require.False(t, *res.Tiles[0].Box.T.EndInc)
	})

	t.Run("invalid grid", func(t *testing.T) {
		var res models.Error
		rec := serve(t, s.HandleTiles, `{"bounds": {"x": {"min": 0, "max": 10}, "y": {"min": 0, "max": 10}}}`, &res)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Equal(t, tile.ErrTypeInvalidArgument, res.Type)
		require.Equal(t, "test-request", res.RequestID)
	})

	t.Run("too many tiles", func(t *testing.T) {
		limit := tile.MaxTileListSize
		tile.MaxTileListSize = 3
		defer func() { tile.MaxTileListSize = limit }()

		rec := serve(t, s.HandleTiles, `{
			"x_size": 5,
			"bounds": {"x": {"min": 0, "max": 10}, "y": {"min": 0, "max": 10}}
		}`, nil)
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("bad json", func(t *testing.T) {
		var res models.Error
		rec := serve(t, s.HandleTiles, `{"x_size": `, &res)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Equal(t, ErrTypeBadRequest, res.Type)
	})

	t.Run("too large", func(t *testing.T) {
		s := TileService{MaxRequestSize: 16}
		rec := serve(t, s.HandleTiles, `{"x_size": 5, "y_size": 5, "bounds": {}}`, nil)
		require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	})
}

func TestHandleTile(t *testing.T) {
	s := TileService{}

	var res models.TileResponse
	rec := serve(t, s.HandleTile, `{
		"x_size": 5,
		"duration": "1h",
		"time_origin": "2024-03-01T00:00:00Z",
		"point": {"x": 7, "y": -3},
		"t": "2024-03-01T10:15:00Z"
	}`, &res)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, &models.Span{Min: 5, Max: 10}, res.Box.X)
	require.Equal(t, &models.Span{Min: -5, Max: 0}, res.Box.Y)
	require.Equal(t, "2024-03-01T10:00:00Z", res.Box.T.Start.Format("2006-01-02T15:04:05Z07:00"))
}

func TestHandleSplit(t *testing.T) {
	t.Run("fragments", func(t *testing.T) {
		s := TileService{}

		var res models.SplitResponse
		rec := serve(t, s.HandleSplit, lPathSplit, &res)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, []int{4, 4}, res.Counts)
		require.Len(t, res.Fragments, 7)

		var indexes []int
		for _, f := range res.Fragments {
			indexes = append(indexes, f.Index)
			require.NotNil(t, f.Origin)
			require.Nil(t, f.Time)
		}
		require.Equal(t, []int{1, 2, 3, 4, 8, 12, 16}, indexes)

		first, err := res.Fragments[0].Trajectory.Temporal()
		require.NoError(t, err)
		require.IsType(t, temporal.Sequence{}, first)
	})

	t.Run("bit matrix disabled", func(t *testing.T) {
		s := TileService{FeatureFlags: featureflag.New([]string{string(featureflag.FlagDisableBitMatrix)})}

		var res models.SplitResponse
		rec := serve(t, s.HandleSplit, lPathSplit, &res)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Len(t, res.Fragments, 7)

		var withMatrix models.SplitResponse
		serve(t, (&TileService{}).HandleSplit, lPathSplit, &withMatrix)
		require.Empty(t, cmp.Diff(withMatrix, res))
	})

	t.Run("invalid trajectory", func(t *testing.T) {
		var res models.Error
		rec := serve(t, (&TileService{}).HandleSplit, `{"x_size": 1, "trajectory": {}}`, &res)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Equal(t, temporal.ErrTypeInvalidTemporal, res.Type)
	})
}

func TestHandleBoxes(t *testing.T) {
	var res models.BoxesResponse
	rec := serve(t, (&TileService{}).HandleBoxes, lPathSplit, &res)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, res.Boxes, 7)
	require.Equal(t, &models.Span{Min: 0, Max: 1}, res.Boxes[0].X)
	require.Equal(t, &models.Span{Min: 3, Max: 3}, res.Boxes[6].Y)
}

func TestStatusCode(t *testing.T) {
	_, err := tile.NewBitMatrix(nil)
	require.Equal(t, http.StatusBadRequest, StatusCode(err))

	_, err = tile.NewBitMatrix([]int{1 << 20, 1 << 20})
	require.Equal(t, http.StatusUnprocessableEntity, StatusCode(err))

	_, err = tile.FlatIndex([]int{1}, []int{2})
	require.Equal(t, http.StatusInternalServerError, StatusCode(err))
}
