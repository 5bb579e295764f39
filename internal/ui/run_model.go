package ui

import (
	"context"
	"os"

	tea "charm.land/bubbletea/v2"
	"golang.org/x/term"

	"github.com/oakwood-commons/kvgrid/internal/grid"
)

// RunModel starts the interactive grid and blocks until the user quits.
// A width or height of 0 is detected from the terminal; when either is set
// the window size is forced. Extra ProgramOptions (e.g., custom IO) are
// passed through to tea.NewProgram.
func RunModel(ctx context.Context, ds grid.DataSource, opts Options, progOpts ...tea.ProgramOption) error {
	if opts.Width > 0 || opts.Height > 0 {
		w, h := opts.Width, opts.Height
		if w <= 0 || h <= 0 {
			if tw, th, err := term.GetSize(int(os.Stdout.Fd())); err == nil {
				if w <= 0 {
					w = tw
				}
				if h <= 0 {
					h = th
				}
			}
		}
		if w <= 0 {
			w = DefaultWidth
		}
		if h <= 0 {
			h = DefaultHeight
		}
		opts.Width, opts.Height = w, h
		progOpts = append(progOpts, tea.WithWindowSize(w, h))
	}

	m := NewModel(ctx, ds, opts)
	defer m.cancel()
	progOpts = append(progOpts, tea.WithContext(ctx))
	prog := tea.NewProgram(m, progOpts...)
	_, err := prog.Run()
	if pending := m.Grid.PendingEdits(); pending > 0 {
		m.log.Info("quit with uncommitted edits", "count", pending)
	}
	return err
}
