package ws_test

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/okian/ensemble/internal/adapters/http/ws"
	"github.com/okian/ensemble/internal/adapters/wire"
	"github.com/okian/ensemble/internal/domain/model"
	"github.com/okian/ensemble/internal/relay"
	"github.com/okian/ensemble/pkg/logger"
	"github.com/stretchr/testify/require"
)

func init() {
	if err := logger.Init(logger.WithWriter(io.Discard)); err != nil {
		panic(err)
	}
}

func startRelay(t *testing.T) (*relay.Hub, string) {
	t.Helper()
	hub := relay.NewHub(context.Background())
	srv := httptest.NewServer(ws.NewHandler(hub))
	t.Cleanup(func() {
		hub.Shutdown()
		srv.Close()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func read(t *testing.T, conn *websocket.Conn) wire.Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	m, err := wire.Decode(data)
	require.NoError(t, err)
	return m
}

func send(t *testing.T, conn *websocket.Conn, m wire.Message) {
	t.Helper()
	data, err := wire.Encode(m)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))
}

func TestHandler_Handshake(t *testing.T) {
	_, url := startRelay(t)

	a := dial(t, url)
	first, ok := read(t, a).(wire.ColorAssignment)
	require.True(t, ok, "first frame must be a color assignment")
	require.NotEmpty(t, first.ClientID)

	b := dial(t, url)
	own, ok := read(t, b).(wire.ColorAssignment)
	require.True(t, ok)
	require.NotEqual(t, first.ClientID, own.ClientID)

	// the newcomer learns A's color, A learns the newcomer's
	require.Equal(t, first, read(t, b))
	require.Equal(t, own, read(t, a))
}

func TestHandler_FanOut(t *testing.T) {
	hub, url := startRelay(t)

	a := dial(t, url)
	aID := read(t, a).(wire.ColorAssignment).ClientID
	b := dial(t, url)
	bID := read(t, b).(wire.ColorAssignment).ClientID
	read(t, b) // A's color
	read(t, a) // B's color

	// garbage and non key frames are dropped without closing the socket
	require.NoError(t, a.WriteMessage(websocket.TextMessage, []byte("{nope")))
	send(t, a, wire.PeerLeft{ClientID: bID})

	send(t, a, wire.NewKeyEvent(bID, 3, model.NoteOn))
	got, ok := read(t, b).(wire.KeyEvent)
	require.True(t, ok)
	require.Equal(t, aID, got.ClientID, "relay must stamp the real sender")
	require.Equal(t, 3, got.KeyIndex)
	require.Equal(t, model.NoteOn, got.Kind)

	st, err := hub.Stats(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 1, st.Published)
	require.Equal(t, 2, st.Clients)

	require.NoError(t, a.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	require.Equal(t, wire.PeerLeft{ClientID: aID}, read(t, b))
}

func TestHandler_Shutdown(t *testing.T) {
	hub, url := startRelay(t)

	a := dial(t, url)
	read(t, a)
	hub.Shutdown()

	require.NoError(t, a.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := a.ReadMessage()
	require.Error(t, err)
	require.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}
