package ui

import (
	"fmt"
	"strings"

	"github.com/oakwood-commons/kvgrid/internal/formatter"
	"github.com/oakwood-commons/kvgrid/internal/grid"
)

// titleLine shows the table name and the search box or active term.
func (m *Model) titleLine() string {
	left := m.Styles.Title.Render(m.title)
	var right string
	st := m.Grid.Search()
	switch {
	case m.mode == modeSearch:
		right = m.SearchBox.View()
	case st.Term != "":
		right = "/ " + st.Term
	}
	if st.ShowIndicator {
		right += " " + m.Spinner.View()
	}
	return joinEnds(left, right, m.Layout.Width())
}

// statusLine shows the input being edited, then errors and notices.
func (m *Model) statusLine() string {
	switch m.mode {
	case modeEdit:
		name := m.editing.ColumnID
		for _, c := range m.Grid.Columns() {
			if c.ID == m.editing.ColumnID {
				name = c.Name
				break
			}
		}
		return m.Styles.HelpKey.Render(name+" ▸ ") + m.Editor.View()
	case modePrompt:
		label := "rows to add ▸ "
		if m.prompt == promptColumn {
			label = "new column ▸ "
		}
		return m.Styles.HelpKey.Render(label) + m.PromptBox.View()
	}

	if m.flash != "" {
		if m.flashErr {
			return m.Styles.Error.Render(formatter.Truncate(m.flash, m.Layout.Width()))
		}
		return m.Styles.Status.Render(formatter.Truncate(m.flash, m.Layout.Width()))
	}
	st := m.Grid.Status()
	switch {
	case st.Blocking != nil:
		return m.Styles.Error.Render(formatter.Truncate(loadFailure(st.Blocking), m.Layout.Width()))
	case st.Notice != nil:
		return m.Styles.Error.Render(formatter.Truncate(noticeText(st.Notice), m.Layout.Width()))
	}
	if failed := m.failedEdits(); failed > 0 {
		return m.Styles.Error.Render(fmt.Sprintf("%d unsaved %s, ctrl+r to retry", failed, plural(failed, "cell", "cells")))
	}
	return ""
}

func (m *Model) failedEdits() int {
	n := 0
	for _, r := range m.Grid.Rows() {
		for _, c := range m.Grid.Columns() {
			if e, ok := m.Grid.Edit(r.ID, c.ID); ok && e.Err != nil && !e.Pending {
				n++
			}
		}
	}
	return n
}

func loadFailure(err error) string {
	switch grid.Classify(err) {
	case grid.KindNotFound:
		return "table not found"
	case grid.KindNetwork, grid.KindTimeout:
		return "could not load rows (" + grid.Classify(err).String() + "), ctrl+r to retry"
	default:
		return "could not load rows: " + err.Error()
	}
}

func noticeText(err error) string {
	if grid.Retryable(err) {
		return "request failed (" + grid.Classify(err).String() + "), ctrl+r to retry"
	}
	return err.Error()
}

// joinEnds puts left and right on one line of width cells.
func joinEnds(left, right string, width int) string {
	if right == "" {
		return left
	}
	gap := width - visibleWidth(left) - visibleWidth(right)
	if gap < 1 {
		gap = 1
	}
	return left + strings.Repeat(" ", gap) + right
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
