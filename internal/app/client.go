package service

import (
	"context"
	"errors"
	"sync"

	"github.com/okian/ensemble/internal/adapters/session"
	"github.com/okian/ensemble/internal/adapters/sound"
	"github.com/okian/ensemble/internal/domain/keyboard"
	"github.com/okian/ensemble/pkg/logger"
)

var errReplaced = errors.New("session replaced")

// Client ties a synchronizer to a relay session and its sound output.
// Reconnecting replaces the session; the keyboard and synchronizer live
// for the whole client.
type Client struct {
	mu sync.Mutex

	relayURL    string
	sessionOpts []session.Option
	syncOpts    []Option
	logger      logger.Logger

	out        sound.Output
	sync       *Synchronizer
	dialing    *session.Session
	session    *session.Session
	sessionGen uint64
	gen        uint64

	started    bool
	cancel     context.CancelFunc
	cancelDial context.CancelFunc
}

// NewClient builds a client around kb. The synchronizer is created
// immediately so input can be wired before Start.
func NewClient(kb *keyboard.Keyboard, out sound.Output, opts ...ClientOption) *Client {
	c := &Client{out: out}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logger.Get().Named("client")
	}
	c.sync = New(kb, out, c.syncOpts...)
	return c
}

// Synchronizer returns the client's synchronizer.
func (c *Client) Synchronizer() *Synchronizer { return c.sync }

// RelayURL returns the configured relay url, possibly empty.
func (c *Client) RelayURL() string { return c.relayURL }

// Start runs the synchronizer loop in the background.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	go func() {
		if err := c.sync.Run(runCtx); err != nil {
			c.logger.Error(runCtx, "synchronizer stopped", logger.Error(err))
		}
	}()
	c.started = true
	c.logger.Info(ctx, "client started", logger.String("relay", c.relayURL))
	return nil
}

// Connect opens a fresh session to the relay, replacing any current one.
// Presses held by the previous identity carry over to the new one.
//
// The dial and handshake run without holding the client lock. A
// Disconnect, Stop or newer Connect that happens meanwhile wins: the
// finished session is closed and ErrSuperseded returned.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return ErrNotStarted
	}
	if c.relayURL == "" {
		c.mu.Unlock()
		return ErrNoRelay
	}
	c.abortDialLocked()
	c.dropSessionLocked()
	c.gen++
	gen := c.gen
	dialCtx, cancelDial := context.WithCancel(ctx)
	sess := session.New(c.sync.Link(gen), c.sessionOpts...)
	c.cancelDial, c.dialing = cancelDial, sess
	c.mu.Unlock()
	defer cancelDial()

	err := sess.Connect(dialCtx, c.relayURL)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dialing == sess {
		c.cancelDial, c.dialing = nil, nil
	}
	if c.gen != gen || !c.started {
		if err == nil {
			_ = sess.Close()
		}
		c.sync.Post(SessionLostMsg{Err: ErrSuperseded, Gen: gen})
		return ErrSuperseded
	}
	if err != nil {
		c.logger.Warn(ctx, "connect failed", logger.String("relay", c.relayURL), logger.Error(err))
		return err
	}
	c.session, c.sessionGen = sess, gen
	c.sync.Post(SessionUpMsg{
		SelfID: sess.SelfID(),
		Color:  sess.Color(),
		Sender: sess,
		Gen:    gen,
	})
	c.logger.Info(ctx, "connected",
		logger.String("relay", c.relayURL),
		logger.String("client_id", string(sess.SelfID())),
	)
	return nil
}

// Disconnect closes the current session, if any, and abandons a connect
// in progress. The synchronizer is told the session is gone.
func (c *Client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.abortDialLocked()
	c.dropSessionLocked()
}

// abortDialLocked cancels an in-flight Connect and bumps the generation
// so its result is discarded.
func (c *Client) abortDialLocked() {
	if c.cancelDial == nil {
		return
	}
	c.cancelDial()
	c.cancelDial, c.dialing = nil, nil
	c.gen++
}

func (c *Client) dropSessionLocked() {
	if c.session == nil {
		return
	}
	_ = c.session.Close()
	c.sync.Post(SessionLostMsg{Err: errReplaced, Gen: c.sessionGen})
	c.session = nil
}

// SessionState returns the state of the current session, or of the one
// being dialed.
func (c *Client) SessionState() session.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.session != nil:
		return c.session.State()
	case c.dialing != nil:
		return c.dialing.State()
	}
	return session.Disconnected
}

// Stop closes the session, stops the loop and silences the output.
func (c *Client) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.started {
		return
	}
	c.logger.Info(context.Background(), "stopping client...")
	c.abortDialLocked()
	if c.session != nil {
		_ = c.session.Close()
		c.session = nil
	}
	c.cancel()
	<-c.sync.Done()
	if err := c.out.AllNotesOff(); err != nil {
		c.logger.Warn(context.Background(), "all notes off failed", logger.Error(err))
	}
	c.started = false
	c.logger.Info(context.Background(), "client stopped")
}
