// Package tui draws the shared keyboard in a terminal and turns mouse
// clicks into pointer events.
package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/okian/ensemble/internal/adapters/input"
	"github.com/okian/ensemble/internal/domain/layout"
	"github.com/okian/ensemble/internal/domain/model"
)

const defaultColumns = 80

// StatusMsg updates the status line.
type StatusMsg struct {
	Online bool
	SelfID string
	Color  model.Color
	Peers  int
}

type reconnectedMsg struct{ err error }

var (
	separator   = lipgloss.Color("#808080")
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#a9a9a9"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#e6194b"))
)

// Model is the bubbletea model of the keyboard screen.
type Model struct {
	layout    *layout.Layout
	input     input.PointerSource
	reconnect func() error

	colors  map[layout.RegionID]model.Color
	grid    grid
	width   int
	held    layout.RegionID
	holding bool
	status  StatusMsg
	err     error
}

// New creates the model. reconnect is run when the user presses r; it may
// be nil.
func New(l *layout.Layout, in input.PointerSource, reconnect func() error) Model {
	m := Model{
		layout:    l,
		input:     in,
		reconnect: reconnect,
		colors:    make(map[layout.RegionID]model.Color),
		width:     defaultColumns,
	}
	for _, row := range l.Rows() {
		for _, spec := range row {
			m.colors[spec.ID] = spec.Neutral
		}
	}
	m.grid = newGrid(l, m.width)
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd { return nil }

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if msg.Width > 0 {
			m.width = msg.Width
			m.grid = newGrid(m.layout, m.width)
		}

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "r":
			if m.reconnect == nil {
				return m, nil
			}
			reconnect := m.reconnect
			return m, func() tea.Msg { return reconnectedMsg{err: reconnect()} }
		}

	case tea.MouseMsg:
		switch msg.Action {
		case tea.MouseActionPress:
			if msg.Button != tea.MouseButtonLeft {
				break
			}
			if spec, ok := m.grid.hit(msg.X, msg.Y); ok && m.input.PointerDown(spec.ID) {
				m.held, m.holding = spec.ID, true
			}
		case tea.MouseActionRelease:
			// release the key that took the press, wherever the pointer is now
			if m.holding {
				m.input.PointerUp(m.held)
				m.holding = false
			}
		}

	case PaintMsg:
		m.colors[msg.Region] = msg.Color

	case StatusMsg:
		m.status = msg

	case reconnectedMsg:
		m.err = msg.err
	}
	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(m.renderRow(layout.RowTop, topHeight))
	b.WriteByte('\n')
	b.WriteString(m.renderRow(layout.RowBottom, bottomHeight))
	b.WriteByte('\n')
	b.WriteString(m.statusLine())
	return b.String()
}

func (m Model) renderRow(row layout.Row, height int) string {
	blocks := make([]string, 0, len(m.grid.rows[row]))
	for _, s := range m.grid.rows[row] {
		w := s.end - s.start
		if w <= 0 {
			continue
		}
		line := strings.Repeat(" ", w-1) + "▕"
		lines := make([]string, height)
		for i := range lines {
			lines[i] = line
		}
		style := lipgloss.NewStyle().
			Background(lipgloss.Color(m.colors[s.region.ID].Hex())).
			Foreground(separator)
		blocks = append(blocks, style.Render(strings.Join(lines, "\n")))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, blocks...)
}

func (m Model) statusLine() string {
	state := "offline (local only)"
	if m.status.Online {
		state = fmt.Sprintf("online as %s, %d peers", shortID(m.status.SelfID), m.status.Peers)
	}
	swatch := lipgloss.NewStyle().Background(lipgloss.Color(m.status.Color.Hex())).Render("  ")
	line := statusStyle.Render(fmt.Sprintf("%s  r: reconnect  q: quit", state))
	if m.err != nil {
		line += "  " + errorStyle.Render(m.err.Error())
	}
	return swatch + " " + line
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
