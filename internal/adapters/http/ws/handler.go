// Package ws serves the relay's websocket endpoint.
//
// Each connection gets a writer goroutine draining the client's outbox
// and a reader loop on the request goroutine. Only key events are
// accepted from clients; the hub decides who else hears them.
package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/okian/ensemble/internal/adapters/wire"
	"github.com/okian/ensemble/internal/domain/model"
	"github.com/okian/ensemble/internal/relay"
	"github.com/okian/ensemble/pkg/logger"
	"github.com/okian/ensemble/pkg/metrics"
)

// Hub is what a connection needs from the relay room.
type Hub interface {
	Join(ctx context.Context) (*relay.Client, error)
	Leave(id model.ClientID)
	Publish(from model.ClientID, evt model.WireEvent) error
}

// Handler upgrades requests and pumps frames between the socket and the
// hub.
type Handler struct {
	hub        Hub
	upgrader   websocket.Upgrader
	writeWait  time.Duration
	pongWait   time.Duration
	pingPeriod time.Duration
	logger     logger.Logger
}

// NewHandler creates a websocket handler bound to hub.
func NewHandler(hub Hub, opts ...Option) *Handler {
	h := &Handler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		writeWait:  defaultWriteWait,
		pongWait:   defaultPongWait,
		pingPeriod: defaultPingPeriod,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = logger.Get().Named("ws")
	}
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		metrics.RecordErrorByComponent("ws", "upgrade")
		h.logger.Warn(ctx, "upgrade failed", logger.Error(err))
		return
	}
	defer conn.Close()

	client, err := h.hub.Join(ctx)
	if err != nil {
		h.logger.Warn(ctx, "join refused", logger.Error(err))
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "relay stopping"),
			time.Now().Add(h.writeWait))
		return
	}

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		h.writeLoop(conn, client)
	}()

	h.readLoop(ctx, conn, client)
	h.hub.Leave(client.ID)
	<-writerDone
}

func (h *Handler) readLoop(ctx context.Context, conn *websocket.Conn, client *relay.Client) {
	conn.SetReadLimit(maxFrameSize)
	_ = conn.SetReadDeadline(time.Now().Add(h.pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug(ctx, "read ended", logger.String("client_id", string(client.ID)), logger.Error(err))
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(h.pongWait))

		m, err := wire.Decode(data)
		if err != nil {
			metrics.RecordDecodeError()
			h.logger.Warn(ctx, "dropping undecodable frame",
				logger.String("client_id", string(client.ID)),
				logger.Error(err),
			)
			continue
		}
		ke, ok := m.(wire.KeyEvent)
		if !ok {
			metrics.RecordProtocolViolation()
			continue
		}
		if err := h.hub.Publish(client.ID, ke.WireEvent); err != nil {
			return
		}
	}
}

// writeLoop drains the outbox until the hub closes it or a write fails.
func (h *Handler) writeLoop(conn *websocket.Conn, client *relay.Client) {
	ticker := time.NewTicker(h.pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case frame, ok := <-client.Outbox():
			_ = conn.SetWriteDeadline(time.Now().Add(h.writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				metrics.RecordErrorByComponent("ws", "write")
				_ = conn.Close()
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(h.writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = conn.Close()
				return
			}
		}
	}
}
