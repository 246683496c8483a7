// Package service reconciles local intents and remote events into one
// consistent keyboard.
//
// The Synchronizer owns the keyboard. Input callbacks, the session receive
// loop and the UI all post messages to its inbox; Run applies them one at
// a time on a single goroutine, so keys never see concurrent mutation.
// Local intents never wait on the inbox, and the renderer and hooks are
// called from the loop, so they must not block either.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/okian/ensemble/internal/adapters/session"
	"github.com/okian/ensemble/internal/adapters/sound"
	"github.com/okian/ensemble/internal/adapters/wire"
	"github.com/okian/ensemble/internal/domain/keyboard"
	"github.com/okian/ensemble/internal/domain/model"
	"github.com/okian/ensemble/internal/domain/types"
	"github.com/okian/ensemble/pkg/logger"
	"github.com/okian/ensemble/pkg/metrics"
)

// Sender forwards local key events to the relay. Send must not block and
// reports false when the event was dropped.
type Sender interface {
	Send(evt model.WireEvent) bool
}

// Status describes the synchronizer's view of the network.
type Status struct {
	Online bool
	SelfID model.ClientID
	Color  model.Color
	Peers  int
}

// Synchronizer applies local and remote key events to a keyboard.
type Synchronizer struct {
	kb     *keyboard.Keyboard
	out    sound.Output
	logger logger.Logger

	remoteAudible bool
	volume        uint8
	inboxSize     int
	onEvent       func(model.WireEvent)
	onStatus      func(Status)

	inbox    chan Msg
	done     chan struct{}
	runOnce  sync.Once
	stopOnce sync.Once

	// loop-owned state
	selfID    model.ClientID
	selfColor model.Color
	peers     map[model.ClientID]model.Color
	sender    Sender
	online    bool
	gen       uint64
	lostGen   uint64
}

// New creates a synchronizer for kb that sounds notes on out.
func New(kb *keyboard.Keyboard, out sound.Output, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		kb:        kb,
		out:       out,
		volume:    defaultVolume,
		inboxSize: defaultInboxSize,
		selfID:    model.LocalClientID,
		selfColor: model.Palette[0],
		peers:     make(map[model.ClientID]model.Color),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("sync")
	}
	s.inbox = make(chan Msg, s.inboxSize)
	return s
}

// Run applies inbox messages until ctx ends. It must be called once.
func (s *Synchronizer) Run(ctx context.Context) error {
	started := false
	s.runOnce.Do(func() { started = true })
	if !started {
		return ErrStopped
	}
	defer s.stopOnce.Do(func() { close(s.done) })

	s.logger.Info(ctx, "synchronizer running",
		logger.Int("keys", s.kb.Len()),
		logger.Bool("remoteAudible", s.remoteAudible),
	)
	for {
		select {
		case <-ctx.Done():
			return nil
		case m := <-s.inbox:
			s.handle(ctx, m)
		}
	}
}

// Done is closed when Run has returned.
func (s *Synchronizer) Done() <-chan struct{} { return s.done }

// Post hands m to the loop. It blocks while the inbox is full and returns
// false once the loop has stopped.
func (s *Synchronizer) Post(m Msg) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.inbox <- m:
		return true
	case <-s.done:
		return false
	}
}

// TryPost hands m to the loop without waiting. It reports false when the
// inbox is full or the loop has stopped.
func (s *Synchronizer) TryPost(m Msg) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.inbox <- m:
		return true
	default:
		return false
	}
}

// LocalPress implements input.IntentSink. It never blocks the caller; the
// intent is dropped when the inbox is full.
func (s *Synchronizer) LocalPress(key int) { s.intent(PressMsg{Key: key}) }

// LocalRelease implements input.IntentSink. Like LocalPress it never
// blocks.
func (s *Synchronizer) LocalRelease(key int) { s.intent(ReleaseMsg{Key: key}) }

func (s *Synchronizer) intent(m Msg) {
	if s.TryPost(m) {
		return
	}
	select {
	case <-s.done:
	default:
		metrics.RecordIntentDropped()
		s.logger.Warn(context.Background(), "local intent dropped, inbox full", logger.Any("intent", m))
	}
}

// Deliver implements session.Sink for an untracked session.
func (s *Synchronizer) Deliver(_ context.Context, m wire.Message) { s.Post(RemoteMsg{Message: m}) }

// SessionLost implements session.Sink for an untracked session.
func (s *Synchronizer) SessionLost(err error) { s.Post(SessionLostMsg{Err: err}) }

// Link returns a session.Sink whose messages are tagged with gen, so
// anything a replaced session still delivers is discarded.
func (s *Synchronizer) Link(gen uint64) session.Sink { return link{s: s, gen: gen} }

type link struct {
	s   *Synchronizer
	gen uint64
}

func (l link) Deliver(_ context.Context, m wire.Message) {
	l.s.Post(RemoteMsg{Message: m, Gen: l.gen})
}

func (l link) SessionLost(err error) { l.s.Post(SessionLostMsg{Err: err, Gen: l.gen}) }

// Redraw asks the loop to repaint every key and report the status again.
func (s *Synchronizer) Redraw() { s.Post(redrawMsg{}) }

// Snapshot returns the visible state of every key as seen by the loop.
func (s *Synchronizer) Snapshot(ctx context.Context) ([]types.KeyState, error) {
	reply := make(chan []types.KeyState, 1)
	if !s.Post(snapshotMsg{reply: reply}) {
		return nil, ErrStopped
	}
	select {
	case snap := <-reply:
		return snap, nil
	case <-s.done:
		return nil, ErrStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Status returns the loop's current connection status.
func (s *Synchronizer) Status(ctx context.Context) (Status, error) {
	reply := make(chan Status, 1)
	if !s.Post(statusMsg{reply: reply}) {
		return Status{}, ErrStopped
	}
	select {
	case st := <-reply:
		return st, nil
	case <-s.done:
		return Status{}, ErrStopped
	case <-ctx.Done():
		return Status{}, ctx.Err()
	}
}

func (s *Synchronizer) handle(ctx context.Context, m Msg) {
	var err error
	switch m := m.(type) {
	case PressMsg:
		err = s.OnLocalPress(ctx, m.Key)
	case ReleaseMsg:
		err = s.OnLocalRelease(ctx, m.Key)
	case RemoteMsg:
		// from a replaced or abandoned session
		if m.Gen != 0 && (m.Gen < s.gen || m.Gen <= s.lostGen) {
			return
		}
		err = s.onRemote(ctx, m.Message)
	case SessionUpMsg:
		s.OnSessionUp(ctx, m)
	case SessionLostMsg:
		s.onSessionLost(ctx, m)
	case snapshotMsg:
		m.reply <- s.kb.Snapshot()
	case statusMsg:
		m.reply <- s.status()
	case redrawMsg:
		s.kb.RedrawAll()
		s.notify()
	}
	if err != nil && !errors.Is(err, ErrProtocolViolation) {
		s.logger.Debug(ctx, "intent ignored", logger.Error(err))
	}
}

func (s *Synchronizer) onRemote(ctx context.Context, m wire.Message) error {
	switch w := m.(type) {
	case wire.KeyEvent:
		return s.OnRemoteEvent(ctx, w.WireEvent)
	case wire.ColorAssignment:
		s.OnColorAssignment(ctx, w.ColorAssignment)
	case wire.PeerLeft:
		s.OnPeerLeft(ctx, w.ClientID)
	}
	return nil
}

func (s *Synchronizer) onSessionLost(ctx context.Context, m SessionLostMsg) {
	if m.Gen != 0 {
		if m.Gen < s.gen {
			return
		}
		if m.Gen > s.gen {
			// lost before its SessionUpMsg was applied
			s.lostGen = max(s.lostGen, m.Gen)
			return
		}
	}
	s.OnSessionLost(ctx, m.Err)
}

func (s *Synchronizer) playable(index int) (*keyboard.Key, error) {
	k, err := s.kb.Key(index)
	if err != nil {
		return nil, err
	}
	if !k.Entry().Playable() {
		return nil, fmt.Errorf("%w: %d", ErrNotPlayable, index)
	}
	return k, nil
}

// OnLocalPress highlights key in self's color, sounds it and tells the
// relay.
func (s *Synchronizer) OnLocalPress(ctx context.Context, key int) error {
	k, err := s.playable(key)
	if err != nil {
		return err
	}
	k.Press(s.selfID, s.selfColor)
	metrics.RecordKeyPress("local")
	s.noteOn(ctx, k)
	s.send(model.WireEvent{ClientID: s.selfID, KeyIndex: key, Kind: model.NoteOn})
	return nil
}

// OnLocalRelease clears self's press on key, silences it and tells the
// relay. The note-off is sent even when another client has since taken
// the key over.
func (s *Synchronizer) OnLocalRelease(ctx context.Context, key int) error {
	k, err := s.playable(key)
	if err != nil {
		return err
	}
	k.Release(s.selfID)
	s.noteOff(ctx, k)
	s.send(model.WireEvent{ClientID: s.selfID, KeyIndex: key, Kind: model.NoteOff})
	return nil
}

// OnRemoteEvent applies a peer's key event. Echoes of self's own events
// are ignored; events naming a key this keyboard cannot play are protocol
// violations.
func (s *Synchronizer) OnRemoteEvent(ctx context.Context, evt model.WireEvent) error {
	if evt.ClientID == s.selfID {
		return nil
	}
	k, err := s.playable(evt.KeyIndex)
	if err != nil {
		return s.violation(ctx, evt, err)
	}

	switch evt.Kind {
	case model.NoteOn:
		k.Press(evt.ClientID, s.colorOf(evt.ClientID))
		metrics.RecordKeyPress("remote")
		if s.remoteAudible {
			s.noteOn(ctx, k)
		}
	case model.NoteOff:
		if k.Release(evt.ClientID) && s.remoteAudible {
			s.noteOff(ctx, k)
		}
	default:
		return s.violation(ctx, evt, fmt.Errorf("unknown kind %d", evt.Kind))
	}

	if s.onEvent != nil {
		s.onEvent(evt)
	}
	return nil
}

func (s *Synchronizer) violation(ctx context.Context, evt model.WireEvent, cause error) error {
	metrics.RecordProtocolViolation()
	s.logger.Warn(ctx, "dropping remote event",
		logger.String("client_id", string(evt.ClientID)),
		logger.Int("key", evt.KeyIndex),
		logger.Error(cause),
	)
	return fmt.Errorf("%w: %w", ErrProtocolViolation, cause)
}

// OnColorAssignment records a peer's color for its future presses. An
// assignment for self after the handshake is ignored.
func (s *Synchronizer) OnColorAssignment(ctx context.Context, ca model.ColorAssignment) {
	if ca.ClientID == s.selfID {
		s.logger.Warn(ctx, "ignoring reassignment of self",
			logger.String("client_id", string(ca.ClientID)),
			logger.String("color", ca.Color.Hex()),
		)
		return
	}
	s.peers[ca.ClientID] = ca.Color
	s.notify()
}

// OnPeerLeft forgets a peer and releases every key it still held.
func (s *Synchronizer) OnPeerLeft(ctx context.Context, id model.ClientID) {
	delete(s.peers, id)
	released := s.kb.ReleaseAllBy(id)
	s.silence(ctx, released)
	s.logger.Debug(ctx, "peer left",
		logger.String("client_id", string(id)),
		logger.Int("released", len(released)),
	)
	s.notify()
}

// OnSessionUp adopts the identity assigned by the relay and starts
// sending through up.Sender. Keys held under the previous self id move
// to the new one so their release still matches.
func (s *Synchronizer) OnSessionUp(ctx context.Context, up SessionUpMsg) {
	if up.Gen != 0 {
		if up.Gen < s.gen || up.Gen <= s.lostGen {
			return
		}
		s.gen = up.Gen
	}
	if up.SelfID != "" && up.SelfID != s.selfID {
		moved := s.kb.Reattribute(s.selfID, up.SelfID)
		s.logger.Info(ctx, "adopted relay identity",
			logger.String("client_id", string(up.SelfID)),
			logger.String("color", up.Color.Hex()),
			logger.Int("moved", moved),
		)
		s.selfID = up.SelfID
		delete(s.peers, up.SelfID)
	}
	s.selfColor = up.Color
	s.sender = up.Sender
	s.online = true
	s.notify()
}

// OnSessionLost marks the client offline and releases every key held by
// someone else, since their note-offs can no longer arrive. Local presses
// are kept.
func (s *Synchronizer) OnSessionLost(ctx context.Context, cause error) {
	s.online = false
	s.sender = nil
	released := s.kb.ReleaseAllExcept(s.selfID)
	s.silence(ctx, released)
	clear(s.peers)
	s.logger.Warn(ctx, "session lost",
		logger.Int("released", len(released)),
		logger.Error(cause),
	)
	s.notify()
}

func (s *Synchronizer) colorOf(id model.ClientID) model.Color {
	if c, ok := s.peers[id]; ok {
		return c
	}
	return model.FallbackColor(id)
}

func (s *Synchronizer) send(evt model.WireEvent) {
	if !s.online || s.sender == nil {
		metrics.RecordOutboundDropped("offline")
		return
	}
	s.sender.Send(evt)
}

func (s *Synchronizer) silence(ctx context.Context, keys []int) {
	if !s.remoteAudible {
		return
	}
	for _, i := range keys {
		if k, err := s.kb.Key(i); err == nil {
			s.noteOff(ctx, k)
		}
	}
}

func (s *Synchronizer) noteOn(ctx context.Context, k *keyboard.Key) {
	if err := s.out.NoteOn(uint8(k.NoteID()), s.volume); err != nil {
		metrics.RecordErrorByComponent("sound", "note_on")
		s.logger.Error(ctx, "note on failed", logger.Int("note", k.NoteID()), logger.Error(err))
	}
}

func (s *Synchronizer) noteOff(ctx context.Context, k *keyboard.Key) {
	if err := s.out.NoteOff(uint8(k.NoteID())); err != nil {
		metrics.RecordErrorByComponent("sound", "note_off")
		s.logger.Error(ctx, "note off failed", logger.Int("note", k.NoteID()), logger.Error(err))
	}
}

func (s *Synchronizer) status() Status {
	return Status{
		Online: s.online,
		SelfID: s.selfID,
		Color:  s.selfColor,
		Peers:  len(s.peers),
	}
}

func (s *Synchronizer) notify() {
	if s.onStatus != nil {
		s.onStatus(s.status())
	}
}
