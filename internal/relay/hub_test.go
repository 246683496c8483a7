package relay_test

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/okian/ensemble/internal/adapters/wire"
	"github.com/okian/ensemble/internal/domain/model"
	"github.com/okian/ensemble/internal/relay"
	"github.com/okian/ensemble/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(logger.WithWriter(io.Discard)); err != nil {
		panic(err)
	}
}

const waitFor = 2 * time.Second

func next(c *relay.Client) wire.Message {
	select {
	case frame, ok := <-c.Outbox():
		if !ok {
			return nil
		}
		m, err := wire.Decode(frame)
		if err != nil {
			panic(err)
		}
		return m
	case <-time.After(waitFor):
		return nil
	}
}

// nextKeyEvent skips color assignments until a key event shows up.
func nextKeyEvent(c *relay.Client) (wire.KeyEvent, bool) {
	deadline := time.After(waitFor)
	for {
		select {
		case frame, ok := <-c.Outbox():
			if !ok {
				return wire.KeyEvent{}, false
			}
			m, err := wire.Decode(frame)
			if err != nil {
				continue
			}
			if ke, ok := m.(wire.KeyEvent); ok {
				return ke, true
			}
		case <-deadline:
			return wire.KeyEvent{}, false
		}
	}
}

func drain(c *relay.Client) {
	for {
		select {
		case <-c.Outbox():
		default:
			return
		}
	}
}

func TestHub_Join(t *testing.T) {
	Convey("Given a running hub", t, func() {
		ctx := context.Background()
		h := relay.NewHub(ctx)
		defer h.Shutdown()

		Convey("When two clients join", func() {
			a, err := h.Join(ctx)
			So(err, ShouldBeNil)
			b, err := h.Join(ctx)
			So(err, ShouldBeNil)

			Convey("Then each got a distinct id", func() {
				So(a.ID, ShouldNotBeEmpty)
				So(a.ID, ShouldNotEqual, b.ID)
			})

			Convey("Then the first frame each receives is its own assignment", func() {
				So(next(a), ShouldResemble, wire.NewColorAssignment(a.ID, a.Color))
				So(next(b), ShouldResemble, wire.NewColorAssignment(b.ID, b.Color))
			})

			Convey("Then the newcomer learns existing colors and the others learn its color", func() {
				next(a)
				next(b)
				So(next(b), ShouldResemble, wire.NewColorAssignment(a.ID, a.Color))
				So(next(a), ShouldResemble, wire.NewColorAssignment(b.ID, b.Color))
			})

			Convey("Then they were given different palette colors", func() {
				So(a.Color, ShouldNotResemble, b.Color)
			})

			Convey("Then stats list both", func() {
				st, err := h.Stats(ctx)
				So(err, ShouldBeNil)
				So(st.Started, ShouldBeTrue)
				So(st.Clients, ShouldEqual, 2)
				So(len(st.Peers), ShouldEqual, 2)
				So(st.Backplane, ShouldBeFalse)
			})
		})
	})
}

func TestHub_Publish(t *testing.T) {
	Convey("Given three joined clients", t, func() {
		ctx := context.Background()
		h := relay.NewHub(ctx)
		defer h.Shutdown()
		a, _ := h.Join(ctx)
		b, _ := h.Join(ctx)
		c, _ := h.Join(ctx)

		Convey("When A publishes an event claiming to be B", func() {
			So(h.Publish(a.ID, model.WireEvent{ClientID: b.ID, KeyIndex: 3, Kind: model.NoteOn}), ShouldBeNil)

			Convey("Then the others receive it stamped with A's id", func() {
				for _, peer := range []*relay.Client{b, c} {
					ke, ok := nextKeyEvent(peer)
					So(ok, ShouldBeTrue)
					So(ke.ClientID, ShouldEqual, a.ID)
					So(ke.KeyIndex, ShouldEqual, 3)
					So(ke.Kind, ShouldEqual, model.NoteOn)
				}
			})

			Convey("Then A does not get its own event back", func() {
				st, _ := h.Stats(ctx)
				So(st.Published, ShouldEqual, 1)
				drain(a)
				select {
				case frame := <-a.Outbox():
					So(string(frame), ShouldBeEmpty)
				default:
				}
			})
		})

		Convey("When A leaves", func() {
			drain(b)
			h.Leave(a.ID)

			Convey("Then B is told and A's outbox is closed", func() {
				So(next(b), ShouldResemble, wire.PeerLeft{ClientID: a.ID})
				drain(a)
				_, open := <-a.Outbox()
				So(open, ShouldBeFalse)
			})
		})

		Convey("When an unknown client publishes", func() {
			So(h.Publish("ghost", model.WireEvent{KeyIndex: 1, Kind: model.NoteOn}), ShouldBeNil)

			Convey("Then nothing is counted", func() {
				st, _ := h.Stats(ctx)
				So(st.Published, ShouldEqual, 0)
			})
		})
	})
}

func TestHub_SlowClient(t *testing.T) {
	Convey("Given a client that never reads its outbox", t, func() {
		ctx := context.Background()
		h := relay.NewHub(ctx, relay.WithOutboxSize(1))
		defer h.Shutdown()
		slow, _ := h.Join(ctx)
		fast, _ := h.Join(ctx)
		drain(fast)

		Convey("When a fan-out finds its outbox full", func() {
			So(h.Publish(fast.ID, model.WireEvent{KeyIndex: 0, Kind: model.NoteOn}), ShouldBeNil)

			Convey("Then it is dropped and the others are told", func() {
				So(next(fast), ShouldResemble, wire.PeerLeft{ClientID: slow.ID})
				st, _ := h.Stats(ctx)
				So(st.Clients, ShouldEqual, 1)
				So(st.Dropped, ShouldEqual, 1)
			})
		})
	})
}

func TestHub_Shutdown(t *testing.T) {
	Convey("Given a hub with a client", t, func() {
		ctx := context.Background()
		h := relay.NewHub(ctx)
		a, _ := h.Join(ctx)

		Convey("When it shuts down", func() {
			h.Shutdown()

			Convey("Then outboxes are closed and calls fail", func() {
				drain(a)
				_, open := <-a.Outbox()
				So(open, ShouldBeFalse)
				_, err := h.Join(ctx)
				So(err, ShouldEqual, relay.ErrStopped)
				_, err = h.Stats(ctx)
				So(err, ShouldEqual, relay.ErrStopped)
			})
		})
	})
}

type memBus struct {
	mu   sync.Mutex
	subs []chan relay.Envelope
}

type memBackplane struct {
	bus *memBus
	in  chan relay.Envelope
}

func (b *memBus) attach() *memBackplane {
	b.mu.Lock()
	defer b.mu.Unlock()
	bp := &memBackplane{bus: b, in: make(chan relay.Envelope, 64)}
	b.subs = append(b.subs, bp.in)
	return bp
}

func (m *memBackplane) Publish(_ context.Context, env relay.Envelope) error {
	m.bus.mu.Lock()
	defer m.bus.mu.Unlock()
	for _, ch := range m.bus.subs {
		select {
		case ch <- env:
		default:
		}
	}
	return nil
}

func (m *memBackplane) Messages() <-chan relay.Envelope { return m.in }

func (m *memBackplane) Close() error { return nil }

func TestHub_Backplane(t *testing.T) {
	Convey("Given two hubs sharing a backplane", t, func() {
		ctx := context.Background()
		bus := &memBus{}
		h1 := relay.NewHub(ctx, relay.WithBackplane(bus.attach()))
		h2 := relay.NewHub(ctx, relay.WithBackplane(bus.attach()))
		defer h1.Shutdown()
		defer h2.Shutdown()

		a, _ := h1.Join(ctx)
		b, _ := h2.Join(ctx)

		Convey("When A publishes on the first hub", func() {
			So(h1.Publish(a.ID, model.WireEvent{KeyIndex: 4, Kind: model.NoteOn}), ShouldBeNil)

			Convey("Then B on the second hub receives it", func() {
				ke, ok := nextKeyEvent(b)
				So(ok, ShouldBeTrue)
				So(ke.ClientID, ShouldEqual, a.ID)
				So(ke.KeyIndex, ShouldEqual, 4)
			})

			Convey("Then A never sees its own event come back", func() {
				_, ok := nextKeyEvent(a)
				So(ok, ShouldBeFalse)
			})
		})

		Convey("Then stats report the backplane", func() {
			st, err := h1.Stats(ctx)
			So(err, ShouldBeNil)
			So(st.Backplane, ShouldBeTrue)
			So(st.InstanceID, ShouldEqual, h1.InstanceID())
		})
	})
}
