package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/trajtile/models"
	"golang.org/x/net/websocket"
)

const (
	requestChanSize = 16

	// ErrTypeInvalidMsg is the type of the errors returned when a received
	// message is not a valid request. Such errors are reported to the client
	// without closing the connection.
	ErrTypeInvalidMsg = "invalid_msg"
)

// Receiver receives a request from the client. It returns the number of bytes
// read.
type Receiver func() (models.StreamRequest, int, error)

// Sender sends a message to the client. It returns the number of bytes
// written.
type Sender func(models.StreamMsg) (int, error)

// ResponseSender sends the messages that answer a request.
type ResponseSender interface {
	Send(models.StreamMsg) error
}

// Handler represents a split stream handler.
type Handler interface {
	// Handles a client connection.
	HandleConnect(conn *websocket.Conn)

	// Handles a request to stream the fragments of a split. Returning an
	// error closes the connection.
	HandleSplit(ctx context.Context, respond ResponseSender, req models.StreamRequest) error

	// Handles a client's disconnection.
	HandleDisconnect(error)

	// Creates a message receiver used to receive incoming requests.
	Receiver() Receiver

	// Creates a message sender passed in service methods in order to send
	// messages.
	Sender() Sender

	// Closes the service and releases its allocated resources.
	Close()

	// The time a client is idle before being disconnected.
	IdleTimeout() time.Duration

	// Get ClientID
	GetClientID() string
}

// Handle serves the given connection with h until the client disconnects or
// ctx is done. Requests are handled one at a time, in the order they are
// received.
func Handle(ctx context.Context, conn *websocket.Conn, h Handler) {
	handler := handler{
		Conn:    conn,
		Handler: h,
	}

	handler.Handle(ctx)
}

type request struct {
	models.StreamRequest
	err error
}

type handler struct {
	// The WebSocket connection.
	Conn *websocket.Conn

	// The split stream handler.
	Handler Handler

	cancel   func()
	requests chan request
	sender   Sender
	receiver Receiver

	disconnectOnce sync.Once
	disconnectErr  error
}

func (h *handler) Handle(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	h.cancel = cancel

	h.Handler.HandleConnect(h.Conn)

	var wg sync.WaitGroup

	h.requests = make(chan request, requestChanSize)
	h.sender = h.Handler.Sender()
	h.receiver = h.Handler.Receiver()

	wg.Add(1)
	go func() {
		defer wg.Done()
		h.startReceiving(ctx)
	}()

	idleTimeout := h.Handler.IdleTimeout()
	idleTimer := time.NewTimer(idleTimeout)
	defer idleTimer.Stop()

	responder := responseSender{send: h.send}

	for ctx.Err() == nil {
		select {
		case <-ctx.Done():

		case <-idleTimer.C:
			h.disconnect(errors.New("idle connection").WithTag("duration", idleTimeout))

		case req := <-h.requests:
			idleTimer.Stop()

			if err := h.handleRequest(ctx, req, responder); err != nil {
				h.disconnect(errors.New("handling request failed").Wrap(err))
				break
			}

			idleTimer.Reset(idleTimeout)
		}
	}

	h.disconnect(ctx.Err())
	h.handleDisconnect(h.disconnectErr)
	wg.Wait()
}

func (h *handler) handleRequest(ctx context.Context, req request, responder ResponseSender) error {
	if req.err != nil {
		return responder.Send(models.StreamMsg{
			Type:      models.StreamMsgError,
			RequestID: req.RequestID,
			Error: &models.Error{
				RequestID: req.RequestID,
				Type:      errors.Type(req.err),
				Error:     req.err.Error(),
			},
		})
	}
	return h.Handler.HandleSplit(ctx, responder, req.StreamRequest)
}

func (h *handler) send(msg models.StreamMsg) error {
	if _, err := h.sender(msg); err != nil {
		return errors.New("sending message failed").
			WithTag("msg_type", msg.Type).
			Wrap(err)
	}
	return nil
}

func (h *handler) startReceiving(ctx context.Context) {
	for ctx.Err() == nil {
		req, _, err := h.receiver()
		if err != nil && !errors.IsType(err, ErrTypeInvalidMsg) {
			h.disconnect(errors.New("receiving message failed").Wrap(err))
			return
		}

		select {
		case <-ctx.Done():
			return

		case h.requests <- request{StreamRequest: req, err: err}:
		}
	}
}

// disconnect records the first disconnection cause and cancels the
// connection context, which interrupts the split being streamed.
func (h *handler) disconnect(err error) {
	h.disconnectOnce.Do(func() {
		h.disconnectErr = err
		h.cancel()
	})
}

func (h *handler) handleDisconnect(err error) {
	h.Conn.Close()
	h.Handler.HandleDisconnect(err)
}

type responseSender struct {
	send func(models.StreamMsg) error
}

func (r responseSender) Send(msg models.StreamMsg) error {
	return r.send(msg)
}
