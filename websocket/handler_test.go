package websocket

import (
	"testing"
	"time"

	"github.com/aukilabs/trajtile/models"
	"github.com/aukilabs/trajtile/tile"
	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"
)

const lPathRequest = `{
	"request_id": "l-path",
	"x_size": 1,
	"trajectory": {"instants": [
		{"x": 0, "y": 0, "t": "2024-03-01T12:00:00Z"},
		{"x": 3, "y": 0, "t": "2024-03-01T12:01:00Z"},
		{"x": 3, "y": 3, "t": "2024-03-01T12:02:00Z"}
	]}
}`

func send(t *testing.T, conn *websocket.Conn, req string) {
	require.NoError(t, websocket.Message.Send(conn, req))
}

func receive(t *testing.T, conn *websocket.Conn) models.StreamMsg {
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var data []byte
	require.NoError(t, websocket.Message.Receive(conn, &data))

	var msg models.StreamMsg
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func receiveSplit(t *testing.T, conn *websocket.Conn) (models.StreamMsg, []models.Fragment, models.StreamMsg) {
	start := receive(t, conn)
	require.Equal(t, models.StreamMsgStart, start.Type)

	var fragments []models.Fragment
	for {
		msg := receive(t, conn)
		require.Equal(t, start.RequestID, msg.RequestID)

		if msg.Type != models.StreamMsgFragment {
			return start, fragments, msg
		}
		require.NotNil(t, msg.Fragment)
		fragments = append(fragments, *msg.Fragment)
	}
}

func TestHandleSplit(t *testing.T) {
	client, close := NewTestingEnv(t, newTestHandler(time.Minute))
	defer close()

	send(t, client, lPathRequest)

	start, fragments, end := receiveSplit(t, client)
	require.Equal(t, "l-path", start.RequestID)
	require.Equal(t, []int{4, 4}, start.Counts)
	require.Equal(t, models.StreamMsgEnd, end.Type)
	require.Equal(t, 7, end.Fragments)

	var indexes []int
	for _, f := range fragments {
		indexes = append(indexes, f.Index)
	}
	require.Equal(t, []int{1, 2, 3, 4, 8, 12, 16}, indexes)
}

func TestHandleSplitSequentialRequests(t *testing.T) {
	client, close := NewTestingEnv(t, newTestHandler(time.Minute))
	defer close()

	send(t, client, lPathRequest)
	send(t, client, `{
		"request_id": "single",
		"x_size": 1,
		"trajectory": {"instants": [{"x": 0.5, "y": 0.5, "t": "2024-03-01T12:00:00Z"}]}
	}`)

	start, fragments, _ := receiveSplit(t, client)
	require.Equal(t, "l-path", start.RequestID)
	require.Len(t, fragments, 7)

	start, fragments, end := receiveSplit(t, client)
	require.Equal(t, "single", start.RequestID)
	require.Equal(t, []int{1, 1}, start.Counts)
	require.Len(t, fragments, 1)
	require.Equal(t, 1, end.Fragments)
}

func TestHandleSplitErrors(t *testing.T) {
	client, close := NewTestingEnv(t, newTestHandler(time.Minute))
	defer close()

	t.Run("invalid message", func(t *testing.T) {
		send(t, client, `{"x_size": `)

		msg := receive(t, client)
		require.Equal(t, models.StreamMsgError, msg.Type)
		require.Equal(t, ErrTypeInvalidMsg, msg.Error.Type)
	})

	t.Run("invalid grid", func(t *testing.T) {
		send(t, client, `{
			"request_id": "no-grid",
			"trajectory": {"instants": [{"x": 0, "y": 0, "t": "2024-03-01T12:00:00Z"}]}
		}`)

		msg := receive(t, client)
		require.Equal(t, models.StreamMsgError, msg.Type)
		require.Equal(t, "no-grid", msg.RequestID)
		require.Equal(t, tile.ErrTypeInvalidArgument, msg.Error.Type)
	})

	t.Run("connection is kept", func(t *testing.T) {
		send(t, client, lPathRequest)

		_, fragments, _ := receiveSplit(t, client)
		require.Len(t, fragments, 7)
	})
}

func TestHandleIdleTimeout(t *testing.T) {
	client, close := NewTestingEnv(t, newTestHandler(50*time.Millisecond))
	defer close()

	require.NoError(t, client.SetReadDeadline(time.Now().Add(5*time.Second)))

	var data []byte
	require.Error(t, websocket.Message.Receive(client, &data))
}
