package tui

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/okian/ensemble/internal/domain/layout"
	"github.com/okian/ensemble/internal/domain/model"
)

// PaintMsg recolors one region.
type PaintMsg struct {
	Region layout.RegionID
	Color  model.Color
}

// Renderer forwards keyboard repaints and status changes into a running
// program. It satisfies keyboard.Renderer.
//
// Paint and Status never block: they record the latest value and wake
// Run, which does the blocking sends. Repeated paints of one region
// before Run catches up collapse into the last color, so the backlog is
// bounded by the number of regions.
type Renderer struct {
	mu     sync.Mutex
	colors map[layout.RegionID]model.Color
	order  []layout.RegionID
	status *StatusMsg
	wake   chan struct{}
}

// NewRenderer returns an idle Renderer. Nothing reaches the program until
// Run is started.
func NewRenderer() *Renderer {
	return &Renderer{
		colors: make(map[layout.RegionID]model.Color),
		wake:   make(chan struct{}, 1),
	}
}

// Paint implements keyboard.Renderer.
func (r *Renderer) Paint(region layout.RegionID, c model.Color) {
	r.mu.Lock()
	if _, ok := r.colors[region]; !ok {
		r.order = append(r.order, region)
	}
	r.colors[region] = c
	r.mu.Unlock()
	r.notify()
}

// Status queues a status line update; only the latest one is kept.
func (r *Renderer) Status(st StatusMsg) {
	r.mu.Lock()
	r.status = &st
	r.mu.Unlock()
	r.notify()
}

func (r *Renderer) notify() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// Run hands pending updates to send, normally (*tea.Program).Send, until
// ctx ends.
func (r *Renderer) Run(ctx context.Context, send func(tea.Msg)) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.wake:
		}
		for _, m := range r.take() {
			send(m)
		}
	}
}

func (r *Renderer) take() []tea.Msg {
	r.mu.Lock()
	defer r.mu.Unlock()
	msgs := make([]tea.Msg, 0, len(r.order)+1)
	for _, region := range r.order {
		msgs = append(msgs, PaintMsg{Region: region, Color: r.colors[region]})
	}
	if r.status != nil {
		msgs = append(msgs, *r.status)
		r.status = nil
	}
	clear(r.colors)
	r.order = r.order[:0]
	return msgs
}
