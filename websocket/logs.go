package websocket

import (
	"context"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/trajtile/models"
	"golang.org/x/net/websocket"
)

func HandlerWithLogs(h Handler, summaryInterval time.Duration) Handler {
	ctx, cancel := context.WithCancel(context.Background())

	handler := &handlerWithLogs{
		Handler:            h,
		summaryInterval:    summaryInterval,
		closeSummaryWorker: cancel,
		counter:            make(map[string]int),
	}

	go handler.startSummaryWorker(ctx)
	return handler
}

type handlerWithLogs struct {
	Handler

	originalRequest *http.Request

	summaryInterval    time.Duration
	closeSummaryWorker func()
	counterMutex       sync.Mutex
	counter            map[string]int
}

func (h *handlerWithLogs) HandleConnect(conn *websocket.Conn) {
	h.Handler.HandleConnect(conn)

	h.originalRequest = conn.Request()

	logs.WithTag(logs.ClientIDTag, h.GetClientID()).
		WithTag("http_headers", struct {
			UserAgent     string `json:"user_agent,omitempty"`
			XForwardedFor string `json:"x_forwarded_for,omitempty"`
		}{
			UserAgent:     h.originalRequest.UserAgent(),
			XForwardedFor: h.originalRequest.Header.Get("X-Forwarded-For"),
		}).
		Info("new client is connected")
}

func (h *handlerWithLogs) HandleSplit(ctx context.Context, respond ResponseSender, req models.StreamRequest) error {
	start := time.Now()

	err := h.Handler.HandleSplit(ctx, respond, req)

	entry := logs.WithTag(logs.ClientIDTag, h.GetClientID()).
		WithTag("request_id", req.RequestID).
		WithTag("duration", time.Since(start))
	if err != nil {
		entry.Debug(errors.New("streaming split interrupted").Wrap(err))
		return err
	}

	entry.Debug("split streamed")
	return nil
}

func (h *handlerWithLogs) HandleDisconnect(err error) {
	h.Handler.HandleDisconnect(err)

	entry := logs.WithTag(logs.ClientIDTag, h.GetClientID())
	if err != nil && !isClosedErr(err) {
		entry = entry.WithTag("reason", err.Error())
	}
	entry.Info("client disconnected")
}

func (h *handlerWithLogs) Receiver() Receiver {
	receive := h.Handler.Receiver()

	return func() (models.StreamRequest, int, error) {
		req, n, err := receive()
		if err != nil && !isClosedErr(err) {
			logs.WithTag(logs.ClientIDTag, h.GetClientID()).
				Error(errors.New("receiving message failed").Wrap(err))
		} else if err == nil {
			logs.WithTag(logs.ClientIDTag, h.GetClientID()).
				WithTag("request_id", req.RequestID).
				WithTag("size", n).
				Debug("request received")
			h.incCounter("split_request")
		}
		return req, n, err
	}
}

func (h *handlerWithLogs) Sender() Sender {
	sender := h.Handler.Sender()

	return func(msg models.StreamMsg) (int, error) {
		n, err := sender(msg)
		if err != nil && !isClosedErr(err) {
			logs.WithTag(logs.ClientIDTag, h.GetClientID()).
				WithTag("request_id", msg.RequestID).
				WithTag("msg_type", msg.Type).
				Error(errors.New("sending message failed").Wrap(err))
		} else if err == nil {
			if msg.Type != models.StreamMsgFragment {
				logs.WithTag(logs.ClientIDTag, h.GetClientID()).
					WithTag("request_id", msg.RequestID).
					WithTag("msg_type", msg.Type).
					Debug("message sent")
			}
			h.incCounter(msg.Type)
		}
		return n, err
	}
}

func (h *handlerWithLogs) Close() {
	h.Handler.Close()
	h.closeSummaryWorker()
	h.logSummary()
}

func (h *handlerWithLogs) startSummaryWorker(ctx context.Context) {
	ticker := time.NewTicker(h.summaryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			h.logSummary()
		}
	}
}

func (h *handlerWithLogs) incCounter(msgType string) {
	h.counterMutex.Lock()
	defer h.counterMutex.Unlock()

	h.counter[msgType]++
}

func (h *handlerWithLogs) logSummary() {
	h.counterMutex.Lock()
	defer h.counterMutex.Unlock()

	if len(h.counter) == 0 {
		return
	}

	entry := logs.WithTag(logs.ClientIDTag, h.GetClientID()).
		WithTag("time_interval", h.summaryInterval)

	for k, v := range h.counter {
		entry = entry.WithTag(k, v)
		delete(h.counter, k)
	}

	entry.Info("message summary")
}

func isClosedErr(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, context.Canceled)
}
