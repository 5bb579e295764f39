package ui

import (
	"charm.land/lipgloss/v2"

	"github.com/oakwood-commons/kvgrid/internal/config"
)

// Styles holds every lipgloss style the grid view renders with.
type Styles struct {
	Title       lipgloss.Style
	Header      lipgloss.Style
	Rule        lipgloss.Style
	RowNumber   lipgloss.Style
	Cell        lipgloss.Style
	Selected    lipgloss.Style // selected row
	Cursor      lipgloss.Style // selected cell
	Placeholder lipgloss.Style // rows not persisted yet
	Edited      lipgloss.Style // cells with an uncommitted value
	Error       lipgloss.Style
	Status      lipgloss.Style
	Footer      lipgloss.Style
	HelpKey     lipgloss.Style
}

// NewStyles builds styles from a configured theme. With noColor only
// attribute styling is kept so the cursor stays visible.
func NewStyles(th config.Theme, noColor bool) Styles {
	if noColor {
		plain := lipgloss.NewStyle()
		return Styles{
			Title:       plain.Bold(true),
			Header:      plain.Bold(true),
			Rule:        plain,
			RowNumber:   plain,
			Cell:        plain,
			Selected:    plain,
			Cursor:      plain.Reverse(true),
			Placeholder: plain.Italic(true),
			Edited:      plain.Underline(true),
			Error:       plain.Bold(true),
			Status:      plain,
			Footer:      plain,
			HelpKey:     plain.Bold(true),
		}
	}
	c := func(hex string) lipgloss.Style {
		if hex == "" {
			return lipgloss.NewStyle()
		}
		return lipgloss.NewStyle().Foreground(lipgloss.Color(hex))
	}
	return Styles{
		Title:       c(th.Header).Bold(true),
		Header:      c(th.Header).Bold(true),
		Rule:        c(th.Border),
		RowNumber:   c(th.Border),
		Cell:        lipgloss.NewStyle(),
		Selected:    c(th.Selected),
		Cursor:      c(th.Cursor).Reverse(true).Bold(true),
		Placeholder: c(th.Placeholder).Italic(true),
		Edited:      c(th.Edited).Underline(true),
		Error:       c(th.Error).Bold(true),
		Status:      c(th.Footer),
		Footer:      c(th.Footer),
		HelpKey:     c(th.Header).Bold(true),
	}
}
