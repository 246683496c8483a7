package tui

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	service "github.com/okian/ensemble/internal/app"
	"github.com/okian/ensemble/internal/adapters/input"
	"github.com/okian/ensemble/internal/adapters/sound"
	"github.com/okian/ensemble/internal/adapters/wire"
	"github.com/okian/ensemble/internal/domain/keyboard"
	"github.com/okian/ensemble/internal/domain/layout"
	"github.com/okian/ensemble/internal/domain/model"
	"github.com/okian/ensemble/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(logger.WithWriter(io.Discard)); err != nil {
		panic(err)
	}
}

type pointerLog struct {
	downs, ups []layout.RegionID
	playable   map[layout.RegionID]bool
}

func (p *pointerLog) PointerDown(r layout.RegionID) bool {
	if !p.playable[r] {
		return false
	}
	p.downs = append(p.downs, r)
	return true
}

func (p *pointerLog) PointerUp(r layout.RegionID) bool {
	p.ups = append(p.ups, r)
	return true
}

func newModel(reconnect func() error) (Model, *pointerLog, *layout.Layout) {
	l, err := layout.New(layout.DefaultConfig())
	if err != nil {
		panic(err)
	}
	p := &pointerLog{playable: map[layout.RegionID]bool{}}
	for _, e := range l.Entries() {
		if e.Playable() {
			for _, r := range l.RegionsFor(e.Index) {
				p.playable[r.ID] = true
			}
		}
	}
	m := New(l, p, reconnect)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 130, Height: 20})
	return next.(Model), p, l
}

func click(m Model, action tea.MouseAction, x, y int) Model {
	next, _ := m.Update(tea.MouseMsg{X: x, Y: y, Action: action, Button: tea.MouseButtonLeft})
	return next.(Model)
}

func TestGrid(t *testing.T) {
	Convey("Given a grid scaled to a terminal", t, func() {
		l, _ := layout.New(layout.DefaultConfig())
		g := newGrid(l, 130)

		Convey("Then both rows span the full width without gaps", func() {
			for _, row := range g.rows {
				So(row[0].start, ShouldEqual, 0)
				So(row[len(row)-1].end, ShouldEqual, 130)
				for i := 1; i < len(row); i++ {
					So(row[i].start, ShouldEqual, row[i-1].end)
				}
			}
		})

		Convey("Then cells below the keyboard hit nothing", func() {
			_, ok := g.hit(10, topHeight+bottomHeight)
			So(ok, ShouldBeFalse)
		})

		Convey("Then the first top cell belongs to key 0", func() {
			spec, ok := g.hit(0, 0)
			So(ok, ShouldBeTrue)
			So(spec.Key, ShouldEqual, 0)
			So(spec.Row, ShouldEqual, layout.RowTop)
		})
	})
}

func TestModel_Mouse(t *testing.T) {
	Convey("Given a model", t, func() {
		m, p, l := newModel(nil)
		c0 := l.RegionsFor(0)[1]

		Convey("When the bottom of key 0 is pressed and released elsewhere", func() {
			m = click(m, tea.MouseActionPress, 0, topHeight)
			m = click(m, tea.MouseActionRelease, 120, 0)

			Convey("Then the release goes to the region that was pressed", func() {
				So(p.downs, ShouldResemble, []layout.RegionID{c0.ID})
				So(p.ups, ShouldResemble, []layout.RegionID{c0.ID})
			})
		})

		Convey("When a spacer is pressed", func() {
			spacer := m.grid.rows[layout.RowBottom][1]
			m = click(m, tea.MouseActionPress, spacer.start, topHeight)
			m = click(m, tea.MouseActionRelease, spacer.start, topHeight)

			Convey("Then no release is emitted", func() {
				So(p.downs, ShouldBeEmpty)
				So(p.ups, ShouldBeEmpty)
			})
		})

		Convey("When the right button is pressed", func() {
			m.Update(tea.MouseMsg{X: 0, Y: 0, Action: tea.MouseActionPress, Button: tea.MouseButtonRight})

			Convey("Then it is ignored", func() {
				So(p.downs, ShouldBeEmpty)
			})
		})
	})
}

func TestModel_Messages(t *testing.T) {
	Convey("Given a model with a failing reconnect", t, func() {
		m, _, l := newModel(func() error { return errors.New("relay unreachable") })

		Convey("When a region is painted", func() {
			region := l.RegionsFor(2)[0].ID
			next, _ := m.Update(PaintMsg{Region: region, Color: model.Palette[1]})
			m = next.(Model)

			Convey("Then the model remembers the color", func() {
				So(m.colors[region], ShouldResemble, model.Palette[1])
			})
		})

		Convey("When the status changes", func() {
			next, _ := m.Update(StatusMsg{Online: true, SelfID: "0123456789abcdef", Peers: 2})
			view := next.(Model).View()

			Convey("Then the status line shows it", func() {
				So(view, ShouldContainSubstring, "online as 01234567, 2 peers")
			})
		})

		Convey("When r is pressed", func() {
			_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
			So(cmd, ShouldNotBeNil)
			next, _ := m.Update(cmd())

			Convey("Then the error is shown", func() {
				So(next.(Model).View(), ShouldContainSubstring, "relay unreachable")
			})
		})

		Convey("When q is pressed", func() {
			_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})

			Convey("Then the program quits", func() {
				So(cmd, ShouldNotBeNil)
				_, quit := cmd().(tea.QuitMsg)
				So(quit, ShouldBeTrue)
			})
		})

		Convey("Then the default view is offline and has both rows", func() {
			view := m.View()
			So(view, ShouldContainSubstring, "offline")
			So(strings.Count(view, "\n"), ShouldBeGreaterThanOrEqualTo, topHeight+bottomHeight)
		})
	})
}

func TestRenderer(t *testing.T) {
	Convey("Given a renderer with updates queued before it runs", t, func() {
		r := NewRenderer()
		r.Paint(7, model.White)
		r.Paint(3, model.Black)
		r.Paint(7, model.Palette[1])
		r.Status(StatusMsg{Peers: 1})
		r.Status(StatusMsg{Online: true, Peers: 2})

		Convey("When it runs", func() {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			got := make(chan tea.Msg, 8)
			go r.Run(ctx, func(m tea.Msg) { got <- m })

			Convey("Then each region gets its latest color once, then the latest status", func() {
				So(<-got, ShouldResemble, PaintMsg{Region: 7, Color: model.Palette[1]})
				So(<-got, ShouldResemble, PaintMsg{Region: 3, Color: model.Black})
				So(<-got, ShouldResemble, StatusMsg{Online: true, Peers: 2})
			})

			Convey("Then later paints still arrive", func() {
				for i := 0; i < 3; i++ {
					<-got
				}
				r.Paint(9, model.White)
				So(<-got, ShouldResemble, PaintMsg{Region: 9, Color: model.White})
			})
		})
	})

	Convey("Given a renderer whose consumer is stuck", t, func() {
		r := NewRenderer()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		block := make(chan struct{})
		defer close(block)
		go r.Run(ctx, func(tea.Msg) { <-block })

		Convey("Then painting never blocks", func() {
			done := make(chan struct{})
			go func() {
				defer close(done)
				for i := 0; i < 10000; i++ {
					r.Paint(layout.RegionID(i%20), model.Palette[i%len(model.Palette)])
					r.Status(StatusMsg{Peers: i})
				}
			}()
			So(finished(done, 5*time.Second), ShouldBeTrue)
		})
	})
}

// finished reports whether ch closes within d.
func finished(ch <-chan struct{}, d time.Duration) bool {
	select {
	case <-ch:
		return true
	case <-time.After(d):
		return false
	}
}

func TestProgram_RemoteFlood(t *testing.T) {
	Convey("Given a running program wired to a running synchronizer", t, func() {
		l, err := layout.New(layout.DefaultConfig())
		So(err, ShouldBeNil)
		r := NewRenderer()
		s := service.New(keyboard.New(l, r), sound.NewRecorder())
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() { _ = s.Run(ctx) }()

		p := tea.NewProgram(New(l, input.New(l, s), nil),
			tea.WithInput(nil),
			tea.WithOutput(io.Discard),
			tea.WithoutRenderer(),
			tea.WithContext(ctx),
		)
		go r.Run(ctx, p.Send)
		ran := make(chan struct{})
		go func() {
			defer close(ran)
			_, _ = p.Run()
		}()

		Convey("When clicks and remote events arrive together", func() {
			clicks := make(chan struct{})
			go func() {
				defer close(clicks)
				for i := 0; i < 5000; i++ {
					p.Send(tea.MouseMsg{X: 0, Y: 0, Action: tea.MouseActionPress, Button: tea.MouseButtonLeft})
					p.Send(tea.MouseMsg{X: 0, Y: 0, Action: tea.MouseActionRelease, Button: tea.MouseButtonLeft})
				}
			}()
			remote := make(chan struct{})
			go func() {
				defer close(remote)
				peers := []model.ClientID{"A", "B", "C"}
				for i := 0; i < 5000; i++ {
					id := peers[i%len(peers)]
					s.Deliver(ctx, wire.NewKeyEvent(id, 2, model.NoteOn))
					s.Deliver(ctx, wire.NewKeyEvent(id, 2, model.NoteOff))
				}
			}()

			Convey("Then neither side stalls and the keyboard settles", func() {
				So(finished(clicks, 10*time.Second), ShouldBeTrue)
				So(finished(remote, 10*time.Second), ShouldBeTrue)
				snap, err := s.Snapshot(ctx)
				So(err, ShouldBeNil)
				So(snap[2].Pressed, ShouldBeFalse)

				cancel()
				So(finished(ran, 5*time.Second), ShouldBeTrue)
			})
		})
	})
}
