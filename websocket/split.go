package websocket

import (
	"context"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/trajtile/models"
	"github.com/aukilabs/trajtile/tile"
	"github.com/google/uuid"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

// HeaderClientID is the header a client can set to identify itself.
const HeaderClientID = "X-Client-ID"

// Splitter starts the split described by a request.
type Splitter interface {
	NewSplit(req models.SplitRequest) (*tile.Split, error)
}

// SplitHandler streams the fragments of splits to a connected client, one
// message per fragment. Fragments are computed as they are sent.
type SplitHandler struct {
	// The splitter that computes the fragments.
	Splitter Splitter

	// The time a client is idle before being disconnected.
	ClientIdleTimeout time.Duration

	// The maximum size of a received message in bytes. Zero means no limit.
	MaxMsgSize int

	conn     *websocket.Conn
	clientID string
}

func (h *SplitHandler) HandleConnect(conn *websocket.Conn) {
	h.clientID = conn.Request().Header.Get(HeaderClientID)
	if h.clientID == "" {
		h.clientID = uuid.NewString()
	}

	if h.MaxMsgSize > 0 {
		conn.MaxPayloadBytes = h.MaxMsgSize
	}
	h.conn = conn
}

func (h *SplitHandler) HandleSplit(ctx context.Context, respond ResponseSender, req models.StreamRequest) error {
	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.NewString()
	}

	sp, err := h.Splitter.NewSplit(req.SplitRequest)
	if err != nil {
		res := models.NewError(requestID, err)
		return respond.Send(models.StreamMsg{
			Type:      models.StreamMsgError,
			RequestID: requestID,
			Error:     &res,
		})
	}
	defer sp.Close()

	if err := respond.Send(models.StreamMsg{
		Type:      models.StreamMsgStart,
		RequestID: requestID,
		Counts:    sp.Counts(),
	}); err != nil {
		return err
	}

	var count int
	for f := range sp.All() {
		if err := ctx.Err(); err != nil {
			return err
		}

		fragment := models.NewFragment(f)
		if err := respond.Send(models.StreamMsg{
			Type:      models.StreamMsgFragment,
			RequestID: requestID,
			Fragment:  &fragment,
		}); err != nil {
			return err
		}
		count++
	}

	return respond.Send(models.StreamMsg{
		Type:      models.StreamMsgEnd,
		RequestID: requestID,
		Fragments: count,
	})
}

func (h *SplitHandler) HandleDisconnect(err error) {
}

func (h *SplitHandler) Receiver() Receiver {
	return func() (models.StreamRequest, int, error) {
		var data []byte
		if err := websocket.Message.Receive(h.conn, &data); err != nil {
			return models.StreamRequest{}, 0, err
		}

		var req models.StreamRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return req, len(data), errors.New("decoding request failed").
				WithType(ErrTypeInvalidMsg).
				Wrap(err)
		}
		return req, len(data), nil
	}
}

func (h *SplitHandler) Sender() Sender {
	return func(msg models.StreamMsg) (int, error) {
		data, err := json.Marshal(msg)
		if err != nil {
			return 0, errors.New("encoding message failed").Wrap(err)
		}

		if err := websocket.Message.Send(h.conn, string(data)); err != nil {
			return 0, err
		}
		return len(data), nil
	}
}

func (h *SplitHandler) Close() {
}

func (h *SplitHandler) IdleTimeout() time.Duration {
	if h.ClientIdleTimeout <= 0 {
		return time.Minute
	}
	return h.ClientIdleTimeout
}

func (h *SplitHandler) GetClientID() string {
	return h.clientID
}
