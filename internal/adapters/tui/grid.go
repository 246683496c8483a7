package tui

import (
	"github.com/okian/ensemble/internal/domain/layout"
)

// Row heights in terminal lines.
const (
	topHeight    = 5
	bottomHeight = 3
)

type span struct {
	start, end int // columns, end exclusive
	region     layout.RegionSpec
}

// grid maps terminal cells onto layout regions for one terminal width.
type grid struct {
	rows [2][]span
}

// newGrid scales both rows to cols columns. Boundaries are rounded from
// the running total so both rows end on the same column.
func newGrid(l *layout.Layout, cols int) grid {
	var g grid
	rows := l.Rows()
	for r := range rows {
		total := l.RowWidth(layout.Row(r))
		if total == 0 {
			continue
		}
		cum := 0
		for _, spec := range rows[r] {
			start := cum * cols / total
			cum += spec.Width
			end := cum * cols / total
			g.rows[r] = append(g.rows[r], span{start: start, end: end, region: spec})
		}
	}
	return g
}

// hit returns the region under cell (x, y).
func (g grid) hit(x, y int) (layout.RegionSpec, bool) {
	var row layout.Row
	switch {
	case y >= 0 && y < topHeight:
		row = layout.RowTop
	case y >= topHeight && y < topHeight+bottomHeight:
		row = layout.RowBottom
	default:
		return layout.RegionSpec{}, false
	}
	for _, s := range g.rows[row] {
		if x >= s.start && x < s.end {
			return s.region, true
		}
	}
	return layout.RegionSpec{}, false
}
