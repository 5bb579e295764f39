package ui

import (
	"strconv"

	"github.com/oakwood-commons/kvgrid/internal/formatter"
	"github.com/oakwood-commons/kvgrid/internal/grid"
)

// Chrome line counts around the grid body.
const (
	TitleLineCount  = 1
	HeaderLineCount = 2 // column names and rule
	StatusLineCount = 1
	FooterLineCount = 1
	MinBodyHeight   = 1
	DefaultWidth    = 100
	DefaultHeight   = 24
	cellGap         = 2
)

// LayoutManager sizes the grid body for a terminal size.
type LayoutManager struct {
	width  int
	height int
}

// NewLayoutManager creates a layout manager. Non-positive sizes use the defaults.
func NewLayoutManager(width, height int) *LayoutManager {
	lm := &LayoutManager{}
	lm.SetDimensions(width, height)
	return lm
}

// SetDimensions updates the terminal size.
func (lm *LayoutManager) SetDimensions(width, height int) {
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	lm.width = width
	lm.height = height
}

// Width is the terminal width.
func (lm *LayoutManager) Width() int {
	return lm.width
}

// Height is the terminal height.
func (lm *LayoutManager) Height() int {
	return lm.height
}

// BodyHeight is the number of lines left for rows.
func (lm *LayoutManager) BodyHeight() int {
	chrome := TitleLineCount + HeaderLineCount + StatusLineCount + FooterLineCount
	return max(lm.height-chrome, MinBodyHeight)
}

// ColumnLayout is the horizontal layout of one frame.
type ColumnLayout struct {
	Gutter int   // row number width
	Widths []int // per column
}

// Columns computes the gutter and column widths for the rows on screen.
// lastRow is the highest row number that can be shown.
func (lm *LayoutManager) Columns(cols []grid.Column, cells [][]string, lastRow, maxCol int) ColumnLayout {
	gutter := max(len(strconv.Itoa(max(lastRow, 1))), 1)
	available := lm.width - gutter - cellGap
	return ColumnLayout{
		Gutter: gutter,
		Widths: formatter.ColumnWidths(cols, cells, available, maxCol),
	}
}
