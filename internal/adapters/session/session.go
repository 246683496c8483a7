// Package session is the client side of the relay connection.
//
// A Session connects once, waits for the relay to assign this client an
// id and color, then runs a receive loop and an outbound writer on their
// own goroutines. Any transport fault moves it to Disconnected for good;
// reconnecting means building a new Session.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/okian/ensemble/internal/adapters/mq/queue"
	"github.com/okian/ensemble/internal/adapters/mq/worker"
	"github.com/okian/ensemble/internal/adapters/wire"
	"github.com/okian/ensemble/internal/domain/model"
	"github.com/okian/ensemble/pkg/logger"
	"github.com/okian/ensemble/pkg/metrics"
)

// Sink receives what the session reads. Both methods are called from the
// receive goroutine and must hand off to the owner of keyboard state
// rather than mutate it.
type Sink interface {
	Deliver(ctx context.Context, m wire.Message)
	SessionLost(err error)
}

// Session is one connection attempt to a relay.
type Session struct {
	sink             Sink
	handshakeTimeout time.Duration
	queueSize        int
	writeWait        time.Duration
	dialer           *websocket.Dialer
	logger           logger.Logger

	state   atomic.Int32
	used    atomic.Bool
	closing atomic.Bool

	mu     sync.RWMutex
	selfID model.ClientID
	color  model.Color

	conn     *websocket.Conn
	writeMu  sync.Mutex
	outbound *queue.InMemoryQueue
	writer   *worker.InMemoryWorker
	cancel   context.CancelFunc
	recvDone chan struct{}
	failOnce sync.Once
}

// New creates a session in the Disconnected state.
func New(sink Sink, opts ...Option) *Session {
	s := &Session{
		sink:             sink,
		handshakeTimeout: defaultHandshakeTimeout,
		queueSize:        defaultQueueSize,
		writeWait:        defaultWriteWait,
		dialer:           websocket.DefaultDialer,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("session")
	}
	return s
}

// State returns the current state.
func (s *Session) State() State { return State(s.state.Load()) }

func (s *Session) setState(st State) {
	s.state.Store(int32(st))
	metrics.UpdateSessionState(int(st))
}

// SelfID returns the id the relay assigned. Empty before Connected.
func (s *Session) SelfID() model.ClientID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selfID
}

// Color returns the color the relay assigned.
func (s *Session) Color() model.Color {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.color
}

// Connect dials url and blocks until the relay's first color assignment
// arrives. On success the session is Connected and its loops are running.
func (s *Session) Connect(ctx context.Context, url string) error {
	if !s.used.CompareAndSwap(false, true) {
		return ErrSessionUsed
	}
	s.setState(Connecting)

	hctx, cancel := context.WithTimeout(ctx, s.handshakeTimeout)
	defer cancel()

	conn, _, err := s.dialer.DialContext(hctx, url, nil)
	if err != nil {
		s.setState(Failed)
		metrics.RecordErrorByComponent("session", "dial")
		return fmt.Errorf("%w: dial %s: %w", ErrConnection, url, err)
	}
	conn.SetReadLimit(maxFrameSize)

	// a cancelled ctx ends the handshake read early
	unwatch := context.AfterFunc(hctx, func() { _ = conn.SetReadDeadline(time.Now()) })
	assignment, err := s.handshake(hctx, conn)
	if !unwatch() && err == nil {
		err = fmt.Errorf("%w: %w", ErrHandshake, hctx.Err())
	}
	if err != nil {
		_ = conn.Close()
		s.setState(Failed)
		metrics.RecordErrorByComponent("session", "handshake")
		return err
	}

	s.mu.Lock()
	s.selfID = assignment.ClientID
	s.color = assignment.Color
	s.mu.Unlock()

	runCtx, runCancel := context.WithCancel(context.WithoutCancel(ctx))
	s.conn = conn
	s.cancel = runCancel
	s.recvDone = make(chan struct{})
	s.outbound = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.writer = worker.NewInMemoryWorker(s.outbound, worker.WriterFunc(s.writeEvent),
		worker.WithName("session-writer"),
		worker.WithLogger(s.logger.Named("writer")),
		worker.OnFailure(s.fail),
	)
	s.setState(Connected)

	go s.writer.Run(runCtx)
	go s.receiveLoop(runCtx)

	s.logger.Info(ctx, "connected",
		logger.String("url", url),
		logger.String("client_id", string(assignment.ClientID)),
		logger.String("color", assignment.Color.Hex()),
	)
	return nil
}

func (s *Session) handshake(ctx context.Context, conn *websocket.Conn) (wire.ColorAssignment, error) {
	deadline, _ := ctx.Deadline()
	_ = conn.SetReadDeadline(deadline)

	_, data, err := conn.ReadMessage()
	if err != nil {
		return wire.ColorAssignment{}, fmt.Errorf("%w: %w", ErrHandshake, err)
	}
	m, err := wire.Decode(data)
	if err != nil {
		return wire.ColorAssignment{}, fmt.Errorf("%w: %w", ErrHandshake, err)
	}
	assignment, ok := m.(wire.ColorAssignment)
	if !ok {
		return wire.ColorAssignment{}, fmt.Errorf("%w: expected color assignment, got %T", ErrHandshake, m)
	}
	_ = conn.SetReadDeadline(time.Time{})
	return assignment, nil
}

func (s *Session) receiveLoop(ctx context.Context) {
	defer close(s.recvDone)
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			s.fail(fmt.Errorf("%w: read: %w", ErrConnection, err))
			return
		}
		m, err := wire.Decode(data)
		if err != nil {
			metrics.RecordDecodeError()
			s.logger.Warn(ctx, "dropping undecodable frame", logger.Error(err))
			continue
		}
		s.sink.Deliver(ctx, m)
	}
}

func (s *Session) writeEvent(_ context.Context, e model.WireEvent) error {
	data, err := wire.Encode(wire.KeyEvent{WireEvent: e})
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(s.writeWait))
	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("%w: write: %w", ErrConnection, err)
	}
	return nil
}

// Send enqueues evt without blocking. It returns false when the event was
// dropped because the session is not connected or the queue is full.
func (s *Session) Send(evt model.WireEvent) bool {
	if s.State() != Connected {
		metrics.RecordOutboundDropped("disconnected")
		return false
	}
	if !s.outbound.Enqueue(context.Background(), evt) {
		metrics.RecordOutboundDropped("queue_full")
		return false
	}
	return true
}

// fail tears the connection down once. The sink hears about it unless the
// teardown was requested through Close.
func (s *Session) fail(err error) {
	s.failOnce.Do(func() {
		s.setState(Disconnected)
		s.cancel()
		_ = s.outbound.Close()
		_ = s.conn.Close()
		if s.closing.Load() {
			return
		}
		metrics.RecordErrorByComponent("session", "transport")
		s.logger.Warn(context.Background(), "connection lost", logger.Error(err))
		s.sink.SessionLost(err)
	})
}

// Close sends a close frame and stops both loops. It is safe to call in
// any state.
func (s *Session) Close() error {
	if s.State() != Connected {
		if s.State() == Connecting {
			s.setState(Failed)
		}
		return nil
	}
	s.closing.Store(true)

	s.writeMu.Lock()
	err := s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
		time.Now().Add(closeWait))
	s.writeMu.Unlock()

	s.fail(errors.New("closed"))

	select {
	case <-s.recvDone:
	case <-time.After(closeWait):
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), closeWait)
	defer cancel()
	_ = s.writer.Shutdown(shutdownCtx)

	if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		return fmt.Errorf("%w: close: %w", ErrConnection, err)
	}
	return nil
}
