package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/x/ansi"
)

// footerLine shows the record count, unsaved work and the key hints.
func (m *Model) footerLine() string {
	parts := []string{m.Grid.Footer()}
	if n := m.Grid.PendingEdits(); n > 0 && m.mode != modeEdit {
		parts = append(parts, fmt.Sprintf("%d pending %s", n, plural(n, "edit", "edits")))
	}
	if n := m.Grid.Status().Outstanding; n > 0 {
		parts = append(parts, m.Spinner.View()+fmt.Sprintf(" saving %d %s", n, plural(n, "batch", "batches")))
	}
	left := m.Styles.Footer.Render(strings.Join(parts, " · "))

	hints := make([]string, 0, len(shortHelp))
	for _, h := range shortHelp {
		hints = append(hints, m.Styles.HelpKey.Render(h.keys)+" "+h.desc)
	}
	right := strings.Join(hints, "  ")
	if visibleWidth(left)+visibleWidth(right)+2 > m.Layout.Width() {
		return left
	}
	return joinEnds(left, right, m.Layout.Width())
}

// helpLines renders the key reference in place of the grid body.
func (m *Model) helpLines() []string {
	keyWidth := 0
	for _, h := range helpEntries {
		keyWidth = max(keyWidth, visibleWidth(h.keys))
	}
	lines := []string{m.Styles.Header.Render("Keys"), ""}
	for _, h := range helpEntries {
		lines = append(lines, "  "+m.Styles.HelpKey.Render(h.keys)+strings.Repeat(" ", keyWidth-visibleWidth(h.keys)+2)+h.desc)
	}
	lines = append(lines, "", "press any key to close")
	return fitLines(lines, HeaderLineCount+m.Layout.BodyHeight())
}

func visibleWidth(s string) int {
	return ansi.StringWidth(s)
}
