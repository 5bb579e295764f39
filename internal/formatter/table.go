package formatter

import (
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/oakwood-commons/kvgrid/internal/grid"
)

const (
	sepWidth    = 2
	minColWidth = 3
)

// TableOptions configures RenderTable.
type TableOptions struct {
	NoColor bool
	// TotalWidth is the available width; 0 uses the terminal width.
	TotalWidth int
	// MaxColumnWidth caps every column before fitting; 0 means 40.
	MaxColumnWidth int
	// RowNumbers adds a leading "#" column counting from FirstRow+1.
	RowNumbers bool
	FirstRow   int
}

// RenderTable renders rows as a columnar table. NUMBER columns are right
// aligned and the widths are shrunk proportionally to fit.
func RenderTable(cols []grid.Column, rows []grid.Row, opts TableOptions) string {
	if len(cols) == 0 {
		return ""
	}
	total := opts.TotalWidth
	if total <= 0 {
		total = TerminalWidth()
	}
	maxCol := opts.MaxColumnWidth
	if maxCol <= 0 {
		maxCol = 40
	}

	cells := make([][]string, len(rows))
	for i, r := range rows {
		cells[i] = make([]string, len(cols))
		for j, c := range cols {
			cells[i][j] = SingleLine(r.Value(c.ID))
		}
	}

	numWidth := 0
	if opts.RowNumbers {
		numWidth = max(len(strconv.Itoa(opts.FirstRow+len(rows))), 1)
		total -= numWidth + sepWidth
	}
	widths := ColumnWidths(cols, cells, total, maxCol)

	var b strings.Builder
	sep := strings.Repeat(" ", sepWidth)

	parts := make([]string, 0, len(cols)+1)
	if opts.RowNumbers {
		parts = append(parts, styled(headerStyle.Render, PadRight("#", numWidth), opts.NoColor))
	}
	for j, c := range cols {
		parts = append(parts, styled(headerStyle.Render, PadRight(c.Name, widths[j]), opts.NoColor))
	}
	b.WriteString(strings.TrimRight(strings.Join(parts, sep), " ") + "\n")

	lineWidth := sumWidths(widths) + (len(widths)-1)*sepWidth
	if opts.RowNumbers {
		lineWidth += numWidth + sepWidth
	}
	b.WriteString(styled(separatorStyle.Render, strings.Repeat("─", lineWidth), opts.NoColor) + "\n")

	for i, row := range cells {
		parts = parts[:0]
		if opts.RowNumbers {
			parts = append(parts, styled(keyStyle.Render, PadLeft(strconv.Itoa(opts.FirstRow+i+1), numWidth), opts.NoColor))
		}
		for j, v := range row {
			var s string
			if cols[j].Type == grid.ColumnNumber {
				s = PadLeft(v, widths[j])
			} else {
				s = PadRight(v, widths[j])
			}
			parts = append(parts, styled(valueStyle.Render, s, opts.NoColor))
		}
		b.WriteString(strings.TrimRight(strings.Join(parts, sep), " ") + "\n")
	}
	return b.String()
}

// ColumnWidths sizes each column to its widest cell, caps it at maxCol and
// shrinks proportionally when the total exceeds available.
func ColumnWidths(cols []grid.Column, cells [][]string, available, maxCol int) []int {
	widths := make([]int, len(cols))
	for j, c := range cols {
		widths[j] = runewidth.StringWidth(c.Name)
	}
	for _, row := range cells {
		for j, v := range row {
			if j < len(widths) {
				widths[j] = max(widths[j], runewidth.StringWidth(v))
			}
		}
	}
	for j := range widths {
		widths[j] = min(max(widths[j], minColWidth), maxCol)
	}

	usable := available - (len(cols)-1)*sepWidth
	need := sumWidths(widths)
	if usable <= 0 || need <= usable {
		return widths
	}
	for j := range widths {
		widths[j] = max(widths[j]*usable/need, minColWidth)
	}
	// Rounding can leave a few cells over; take them from the widest columns.
	for sumWidths(widths) > usable {
		widest := 0
		for j := range widths {
			if widths[j] > widths[widest] {
				widest = j
			}
		}
		if widths[widest] <= minColWidth {
			break
		}
		widths[widest]--
	}
	return widths
}

func sumWidths(widths []int) int {
	n := 0
	for _, w := range widths {
		n += w
	}
	return n
}

func styled(render func(...string) string, s string, noColor bool) string {
	if noColor {
		return s
	}
	return render(s)
}
