package ui

import (
	"strconv"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/oakwood-commons/kvgrid/internal/formatter"
	"github.com/oakwood-commons/kvgrid/internal/grid"
)

// View renders the frame.
func (m *Model) View() tea.View {
	if m.quitting {
		return tea.NewView("")
	}
	v := tea.NewView(m.Render())
	v.AltScreen = true
	v.MouseMode = tea.MouseModeCellMotion
	// Enable keyboard enhancements for proper modifier key detection (e.g., Shift+Tab)
	v.KeyboardEnhancements.ReportEventTypes = true
	return v
}

// Render returns the frame as a string of exactly the terminal height.
func (m *Model) Render() string {
	lines := make([]string, 0, m.Layout.Height())
	lines = append(lines, m.titleLine())
	if m.showHelp {
		lines = append(lines, m.helpLines()...)
	} else {
		lines = append(lines, m.bodyLines()...)
	}
	lines = append(lines, m.statusLine(), m.footerLine())
	return strings.Join(fitLines(lines, m.Layout.Height()), "\n")
}

// bodyLines renders the header, rule and rows. It always returns
// HeaderLineCount+BodyHeight lines.
func (m *Model) bodyLines() []string {
	body := m.Layout.BodyHeight()
	cols := m.Grid.Columns()
	st := m.Grid.Status()

	if len(cols) == 0 || len(m.Grid.Rows()) == 0 {
		msg := m.emptyMessage(st)
		out := []string{"", m.Styles.Rule.Render(strings.Repeat("─", m.Layout.Width()))}
		if len(cols) > 0 {
			out[0] = m.headerLine(m.Layout.Columns(cols, nil, 1, m.maxCol))
		}
		return append(out, fitLines([]string{"  " + msg}, body)...)
	}

	rows, first := m.Grid.VisibleRows()
	cells := make([][]string, len(rows))
	for i, r := range rows {
		cells[i] = make([]string, len(cols))
		for j, c := range cols {
			v, _ := m.Grid.CellValue(r, c.ID)
			cells[i][j] = formatter.SingleLine(v)
		}
	}
	layout := m.Layout.Columns(cols, cells, first+len(rows), m.maxCol)

	out := []string{m.headerLine(layout), m.Styles.Rule.Render(strings.Repeat("─", lineWidth(layout)))}

	h := m.rowLines()
	offset := m.Grid.Offset()
	count := m.Grid.Count()
	cursorRow, _ := m.Grid.Cursor()
	for line := 0; line < body; line++ {
		abs := offset + line
		idx := abs / h
		switch {
		case idx >= count:
			out = append(out, "")
		case abs%h != 0:
			out = append(out, "")
		case m.Grid.HasSentinel() && idx == count-1:
			out = append(out, m.sentinelLine(layout, st))
		case idx >= first && idx < first+len(rows):
			out = append(out, m.rowLine(layout, rows[idx-first], cells[idx-first], idx, idx == cursorRow))
		default:
			out = append(out, "")
		}
	}
	return out
}

func (m *Model) emptyMessage(st grid.Status) string {
	switch {
	case st.Blocking != nil:
		return m.Styles.Error.Render(loadFailure(st.Blocking))
	case st.Loading:
		return m.Spinner.View() + " Loading…"
	case st.Search.Term != "" && (st.Search.Phase == grid.PendingSearch || st.Search.Phase == grid.Searching):
		return m.Spinner.View() + " Searching…"
	case st.Search.Term != "":
		return "No matching records"
	case len(m.Grid.Columns()) == 0:
		return "No columns yet. ctrl+k adds one"
	default:
		return "No records. ctrl+n adds one"
	}
}

func lineWidth(l ColumnLayout) int {
	n := l.Gutter
	for _, w := range l.Widths {
		n += cellGap + w
	}
	return n
}

func (m *Model) headerLine(l ColumnLayout) string {
	parts := make([]string, 0, len(l.Widths)+1)
	parts = append(parts, strings.Repeat(" ", l.Gutter))
	for j, c := range m.Grid.Columns() {
		if j >= len(l.Widths) {
			break
		}
		name := c.Name
		if c.Type == grid.ColumnNumber {
			name = formatter.PadLeft(name, l.Widths[j])
		} else {
			name = formatter.PadRight(name, l.Widths[j])
		}
		parts = append(parts, m.Styles.Header.Render(name))
	}
	return strings.Join(parts, strings.Repeat(" ", cellGap))
}

func (m *Model) rowLine(l ColumnLayout, row grid.Row, cells []string, idx int, selected bool) string {
	_, cursorCol := m.Grid.Cursor()
	num := formatter.PadLeft(strconv.Itoa(idx+1), l.Gutter)
	if row.IsPlaceholder() {
		num = formatter.PadLeft("+", l.Gutter)
	}
	parts := make([]string, 0, len(l.Widths)+1)
	parts = append(parts, m.Styles.RowNumber.Render(num))
	for j, c := range m.Grid.Columns() {
		if j >= len(l.Widths) {
			break
		}
		var text string
		if c.Type == grid.ColumnNumber {
			text = formatter.PadLeft(cells[j], l.Widths[j])
		} else {
			text = formatter.PadRight(cells[j], l.Widths[j])
		}
		parts = append(parts, m.cellStyle(row, c, selected, selected && j == cursorCol).Render(text))
	}
	return strings.Join(parts, strings.Repeat(" ", cellGap))
}

// cellStyle picks the style for one cell. The cursor wins, then errors,
// then uncommitted values, then placeholder rows.
func (m *Model) cellStyle(row grid.Row, c grid.Column, selected, cursor bool) lipgloss.Style {
	entry, edited := m.Grid.Edit(row.ID, c.ID)
	switch {
	case cursor:
		return m.Styles.Cursor
	case edited && entry.Err != nil:
		return m.Styles.Error
	case edited && entry.Value != entry.Original:
		return m.Styles.Edited
	case row.IsPlaceholder():
		return m.Styles.Placeholder
	case selected:
		return m.Styles.Selected
	default:
		return m.Styles.Cell
	}
}

func (m *Model) sentinelLine(l ColumnLayout, st grid.Status) string {
	text := "↓ scroll for more"
	if st.LoadingMore {
		text = m.Spinner.View() + " Loading more…"
	} else if st.Notice != nil {
		text = "could not load more rows, ctrl+r to retry"
	}
	return strings.Repeat(" ", l.Gutter+cellGap) + m.Styles.Placeholder.Render(text)
}

// fitLines pads or cuts lines to exactly n entries.
func fitLines(lines []string, n int) []string {
	if len(lines) > n {
		return lines[:n]
	}
	for len(lines) < n {
		lines = append(lines, "")
	}
	return lines
}
