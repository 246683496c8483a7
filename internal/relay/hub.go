// Package relay fans key events out between connected pianos.
//
// A Hub owns the room: which clients are connected and which color each
// was given. Connection handlers talk to it only through its inbox; the
// loop goroutine is the sole owner of room state.
package relay

import (
	"context"
	"math/rand"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/okian/ensemble/internal/adapters/wire"
	"github.com/okian/ensemble/internal/domain/model"
	"github.com/okian/ensemble/internal/domain/types"
	"github.com/okian/ensemble/pkg/logger"
	"github.com/okian/ensemble/pkg/metrics"
)

// Msg is anything the hub loop accepts.
type Msg interface{ isHubMsg() }

// Join registers a new client. The reply carries the client, or nil when
// the hub is shutting down.
type Join struct {
	Reply chan *Client
}

// Leave removes a client.
type Leave struct {
	ClientID model.ClientID
}

// Publish fans a key event from one client out to the others.
type Publish struct {
	From  model.ClientID
	Event model.WireEvent
}

// Remote carries an envelope received from the backplane.
type Remote struct {
	Envelope Envelope
}

// GetStats asks for a monitoring snapshot.
type GetStats struct {
	Reply chan types.RelayStats
}

// Shutdown closes every client and stops the loop.
type Shutdown struct{}

func (Join) isHubMsg()     {}
func (Leave) isHubMsg()    {}
func (Publish) isHubMsg()  {}
func (Remote) isHubMsg()   {}
func (GetStats) isHubMsg() {}
func (Shutdown) isHubMsg() {}

// Client is one connected peer as the hub sees it.
type Client struct {
	ID     model.ClientID
	Color  model.Color
	outbox chan []byte
}

// Outbox yields encoded frames for the client. It is closed when the hub
// drops the client.
func (c *Client) Outbox() <-chan []byte { return c.outbox }

// Hub is the relay room.
type Hub struct {
	inbox      chan Msg
	clients    map[model.ClientID]*Client
	remote     map[model.ClientID]model.Color
	backplane  Backplane
	instanceID string
	published  int64
	dropped    int64

	inboxSize  int
	outboxSize int
	logger     logger.Logger

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewHub creates a hub and starts its loop. The loop stops when parent
// ends or Shutdown is called.
func NewHub(parent context.Context, opts ...Option) *Hub {
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		clients:    make(map[model.ClientID]*Client),
		remote:     make(map[model.ClientID]model.Color),
		instanceID: uuid.NewString(),
		inboxSize:  defaultInboxSize,
		outboxSize: defaultOutboxSize,
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = logger.Get().Named("hub")
	}
	h.inbox = make(chan Msg, h.inboxSize)

	go h.loop()
	if h.backplane != nil {
		go h.pumpBackplane()
	}
	return h
}

// Inbox exposes the hub inbox.
func (h *Hub) Inbox() chan<- Msg { return h.inbox }

// Done is closed when the loop has stopped.
func (h *Hub) Done() <-chan struct{} { return h.done }

// InstanceID names this hub on the backplane.
func (h *Hub) InstanceID() string { return h.instanceID }

func (h *Hub) post(m Msg) error {
	select {
	case h.inbox <- m:
		return nil
	case <-h.done:
		return ErrStopped
	}
}

// Join registers a new client and returns it with its id and color.
func (h *Hub) Join(ctx context.Context) (*Client, error) {
	reply := make(chan *Client, 1)
	if err := h.post(Join{Reply: reply}); err != nil {
		return nil, err
	}
	select {
	case c := <-reply:
		if c == nil {
			return nil, ErrStopped
		}
		return c, nil
	case <-h.done:
		return nil, ErrStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Leave removes the client. Unknown ids are ignored.
func (h *Hub) Leave(id model.ClientID) { _ = h.post(Leave{ClientID: id}) }

// Publish fans evt out on behalf of from.
func (h *Hub) Publish(from model.ClientID, evt model.WireEvent) error {
	return h.post(Publish{From: from, Event: evt})
}

// Stats returns a monitoring snapshot.
func (h *Hub) Stats(ctx context.Context) (types.RelayStats, error) {
	reply := make(chan types.RelayStats, 1)
	if err := h.post(GetStats{Reply: reply}); err != nil {
		return types.RelayStats{InstanceID: h.instanceID}, err
	}
	select {
	case st := <-reply:
		return st, nil
	case <-h.done:
		return types.RelayStats{InstanceID: h.instanceID}, ErrStopped
	case <-ctx.Done():
		return types.RelayStats{}, ctx.Err()
	}
}

// Shutdown closes every client outbox and waits for the loop to end.
func (h *Hub) Shutdown() {
	_ = h.post(Shutdown{})
	<-h.done
}

func (h *Hub) loop() {
	defer close(h.done)
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case Join:
				msg.Reply <- h.join()

			case Leave:
				if c, ok := h.clients[msg.ClientID]; ok {
					h.remove(c, "left")
				}

			case Publish:
				h.publish(msg)

			case Remote:
				h.fromBackplane(msg.Envelope)

			case GetStats:
				msg.Reply <- h.stats()

			case Shutdown:
				h.shutdown()
				return
			}
		}
	}
}

func (h *Hub) shutdown() {
	for id, c := range h.clients {
		close(c.outbox)
		delete(h.clients, id)
	}
	h.cancel()
	metrics.UpdateRelayClients(0)
	h.logger.Info(context.Background(), "hub stopped", logger.Int64("published", h.published))
}

func (h *Hub) join() *Client {
	peers := len(h.clients) + len(h.remote)
	c := &Client{
		ID:    model.ClientID(uuid.NewString()),
		Color: h.pickColor(),
		// room for the handshake frames, whatever the room size
		outbox: make(chan []byte, h.outboxSize+peers+1),
	}

	h.deliver(c, wire.NewColorAssignment(c.ID, c.Color))
	for _, p := range h.clients {
		h.deliver(c, wire.NewColorAssignment(p.ID, p.Color))
	}
	for id, color := range h.remote {
		h.deliver(c, wire.NewColorAssignment(id, color))
	}

	h.clients[c.ID] = c
	h.broadcast(c.ID, wire.NewColorAssignment(c.ID, c.Color), true)
	metrics.UpdateRelayClients(len(h.clients))

	h.logger.Info(h.ctx, "client joined",
		logger.String("client_id", string(c.ID)),
		logger.String("color", c.Color.Hex()),
		logger.Int("clients", len(h.clients)),
	)
	return c
}

func (h *Hub) pickColor() model.Color {
	used := make(map[model.Color]bool, len(h.clients))
	for _, c := range h.clients {
		used[c.Color] = true
	}
	free := make([]model.Color, 0, len(model.Palette))
	for _, c := range model.Palette {
		if !used[c] {
			free = append(free, c)
		}
	}
	if len(free) == 0 {
		free = model.Palette
	}
	return free[rand.Intn(len(free))]
}

func (h *Hub) publish(msg Publish) {
	if _, ok := h.clients[msg.From]; !ok {
		return
	}
	evt := msg.Event
	// clients cannot speak for anyone else
	evt.ClientID = msg.From
	h.published++
	h.broadcast(msg.From, wire.KeyEvent{WireEvent: evt}, true)
}

func (h *Hub) fromBackplane(env Envelope) {
	m, err := wire.Decode(env.Frame)
	if err != nil {
		metrics.RecordDecodeError()
		h.logger.Warn(h.ctx, "dropping backplane frame",
			logger.String("instance", env.Instance),
			logger.Error(err),
		)
		return
	}
	switch w := m.(type) {
	case wire.ColorAssignment:
		h.remote[w.ClientID] = w.Color
	case wire.PeerLeft:
		delete(h.remote, w.ClientID)
	}
	h.fanout("", env.Frame)
}

// broadcast encodes m and sends it to every client except `except`,
// sharing it with the backplane when asked.
func (h *Hub) broadcast(except model.ClientID, m wire.Message, share bool) {
	frame, err := wire.Encode(m)
	if err != nil {
		h.logger.Error(h.ctx, "encode failed", logger.Error(err))
		return
	}
	h.fanout(except, frame)
	if share && h.backplane != nil {
		env := Envelope{ID: uuid.NewString(), Instance: h.instanceID, Frame: frame}
		if err := h.backplane.Publish(h.ctx, env); err != nil {
			metrics.RecordErrorByComponent("backplane", "publish")
			h.logger.Warn(h.ctx, "backplane publish failed", logger.Error(err))
		}
	}
}

func (h *Hub) fanout(except model.ClientID, frame []byte) {
	var slow []*Client
	n := 0
	for id, c := range h.clients {
		if id == except {
			continue
		}
		select {
		case c.outbox <- frame:
			n++
		default:
			slow = append(slow, c)
		}
	}
	metrics.RecordFanout(n)
	for _, c := range slow {
		if _, ok := h.clients[c.ID]; ok {
			h.remove(c, "slow")
		}
	}
}

func (h *Hub) deliver(c *Client, m wire.Message) {
	frame, err := wire.Encode(m)
	if err != nil {
		h.logger.Error(h.ctx, "encode failed", logger.Error(err))
		return
	}
	c.outbox <- frame
}

func (h *Hub) remove(c *Client, reason string) {
	delete(h.clients, c.ID)
	close(c.outbox)
	if reason == "slow" {
		h.dropped++
		metrics.RecordClientDropped(reason)
	}
	metrics.UpdateRelayClients(len(h.clients))
	h.logger.Info(h.ctx, "client removed",
		logger.String("client_id", string(c.ID)),
		logger.String("reason", reason),
	)
	h.broadcast(c.ID, wire.PeerLeft{ClientID: c.ID}, true)
}

func (h *Hub) stats() types.RelayStats {
	peers := make([]types.Peer, 0, len(h.clients))
	for _, c := range h.clients {
		peers = append(peers, types.Peer{ClientID: string(c.ID), Color: c.Color.Hex()})
	}
	slices.SortFunc(peers, func(a, b types.Peer) int { return strings.Compare(a.ClientID, b.ClientID) })
	return types.RelayStats{
		Started:    true,
		Clients:    len(h.clients),
		Published:  h.published,
		Dropped:    h.dropped,
		Backplane:  h.backplane != nil,
		Peers:      peers,
		InstanceID: h.instanceID,
	}
}

func (h *Hub) pumpBackplane() {
	msgs := h.backplane.Messages()
	for {
		select {
		case <-h.ctx.Done():
			return
		case env, ok := <-msgs:
			if !ok {
				return
			}
			if env.Instance == h.instanceID {
				continue
			}
			select {
			case h.inbox <- Remote{Envelope: env}:
			case <-h.ctx.Done():
				return
			}
		}
	}
}
