package http

import (
	stderrors "errors"
	"net/http"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/trajtile/featureflag"
	"github.com/aukilabs/trajtile/models"
	"github.com/aukilabs/trajtile/temporal"
	"github.com/aukilabs/trajtile/tile"
	"github.com/google/uuid"
	"github.com/segmentio/encoding/json"
)

const (
	HeaderRequestID = "X-Request-ID"

	ErrTypeBadRequest      = "bad_request"
	ErrTypeRequestTooLarge = "request_too_large"

	defaultMaxRequestSize = 8 << 20
)

// TileService serves the tiling engine over HTTP.
type TileService struct {
	FeatureFlags featureflag.FeatureFlag

	// The border inclusion of the splits whose requests don't set it.
	BorderInclusive bool

	// The maximum size of a request body in bytes. Defaults to 8MiB.
	MaxRequestSize int64
}

// HandleTiles lists the tiles of a grid covering a box.
func (s *TileService) HandleTiles(w http.ResponseWriter, r *http.Request) {
	requestID := RequestID(w, r)

	var req models.TilesRequest
	if !s.decode(w, r, requestID, &req) {
		return
	}

	bounds, err := req.Bounds.STBox()
	if err != nil {
		writeError(w, requestID, err)
		return
	}

	tiles, counts, err := tile.TileList(bounds, req.TileGrid())
	if err != nil {
		writeError(w, requestID, err)
		return
	}

	writeJSON(w, http.StatusOK, models.TilesResponse{
		RequestID: requestID,
		Counts:    counts,
		Tiles:     models.NewTiles(tiles),
	})
}

// HandleTile returns the tile of a grid that contains a point.
func (s *TileService) HandleTile(w http.ResponseWriter, r *http.Request) {
	requestID := RequestID(w, r)

	var req models.TileRequest
	if !s.decode(w, r, requestID, &req) {
		return
	}

	box, err := tile.TileForPoint(req.Point.Value(), req.Time(), req.TileGrid())
	if err != nil {
		writeError(w, requestID, err)
		return
	}

	writeJSON(w, http.StatusOK, models.TileResponse{
		RequestID: requestID,
		Box:       models.NewBox(box),
	})
}

// HandleSplit splits a trajectory over a grid and returns all the fragments.
func (s *TileService) HandleSplit(w http.ResponseWriter, r *http.Request) {
	requestID := RequestID(w, r)

	var req models.SplitRequest
	if !s.decode(w, r, requestID, &req) {
		return
	}

	sp, err := s.NewSplit(req)
	if err != nil {
		writeError(w, requestID, err)
		return
	}

	res := models.SplitResponse{
		RequestID: requestID,
		Counts:    sp.Counts(),
		Fragments: []models.Fragment{},
	}
	for f := range sp.All() {
		res.Fragments = append(res.Fragments, models.NewFragment(f))
	}

	writeJSON(w, http.StatusOK, res)
}

// HandleBoxes splits a trajectory over a grid and returns the bounding box of
// every fragment.
func (s *TileService) HandleBoxes(w http.ResponseWriter, r *http.Request) {
	requestID := RequestID(w, r)

	var req models.SplitRequest
	if !s.decode(w, r, requestID, &req) {
		return
	}

	temp, opts, err := s.splitOptions(req)
	if err != nil {
		writeError(w, requestID, err)
		return
	}

	boxes, err := tile.Boxes(temp, opts)
	if err != nil {
		writeError(w, requestID, err)
		return
	}

	res := models.BoxesResponse{
		RequestID: requestID,
		Boxes:     make([]models.Box, len(boxes)),
	}
	for i, box := range boxes {
		res.Boxes[i] = models.NewBox(box)
	}

	writeJSON(w, http.StatusOK, res)
}

// NewSplit starts the split described by req.
func (s *TileService) NewSplit(req models.SplitRequest) (*tile.Split, error) {
	temp, opts, err := s.splitOptions(req)
	if err != nil {
		return nil, err
	}
	return tile.NewSplit(temp, opts)
}

func (s *TileService) splitOptions(req models.SplitRequest) (temporal.Temporal, tile.SplitOptions, error) {
	temp, opts, err := req.Split(s.BorderInclusive)
	if err != nil {
		return nil, opts, err
	}

	s.FeatureFlags.IfSet(featureflag.FlagDisableBitMatrix, func() {
		opts.BitMatrix = false
	})
	return temp, opts, nil
}

func (s *TileService) decode(w http.ResponseWriter, r *http.Request, requestID string, v any) bool {
	maxSize := s.MaxRequestSize
	if maxSize <= 0 {
		maxSize = defaultMaxRequestSize
	}

	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSize)).Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if stderrors.As(err, &maxBytesErr) {
			writeError(w, requestID, errors.New("request body is too large").
				WithType(ErrTypeRequestTooLarge).
				WithTag("limit", maxSize).
				Wrap(err))
			return false
		}

		writeError(w, requestID, errors.New("decoding request failed").
			WithType(ErrTypeBadRequest).
			Wrap(err))
		return false
	}
	return true
}

// RequestID returns the id of the request, generating one when the client did
// not send it. The id is set on the response headers.
func RequestID(w http.ResponseWriter, r *http.Request) string {
	id := r.Header.Get(HeaderRequestID)
	if id == "" {
		id = uuid.NewString()
	}
	w.Header().Set(HeaderRequestID, id)
	return id
}

// StatusCode returns the HTTP status code matching the type of err.
func StatusCode(err error) int {
	switch errors.Type(err) {
	case tile.ErrTypeInvalidArgument, temporal.ErrTypeInvalidTemporal, ErrTypeBadRequest:
		return http.StatusBadRequest

	case tile.ErrTypeAllocationFailure:
		return http.StatusUnprocessableEntity

	case ErrTypeRequestTooLarge:
		return http.StatusRequestEntityTooLarge

	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, requestID string, err error) {
	code := StatusCode(err)

	entry := logs.WithTag("request_id", requestID).
		WithTag("status_code", code)
	if code >= http.StatusInternalServerError {
		entry.Error(err)
	} else {
		entry.Debug(err)
	}

	writeJSON(w, code, models.NewError(requestID, err))
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		logs.Warn(errors.New("encoding response failed").Wrap(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(b)
}
