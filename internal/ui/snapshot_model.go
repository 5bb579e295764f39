package ui

import (
	"context"
	"strings"

	"github.com/oakwood-commons/kvgrid/internal/grid"
)

// SnapshotConfig configures RenderSnapshot.
type SnapshotConfig struct {
	Options
	// Search runs a search before rendering.
	Search string
	// Scroll moves the selection to this row before rendering.
	Scroll int
}

// RenderSnapshot renders one frame without starting a program: the first
// page is loaded synchronously, the optional search is run and the
// selection moved, then the frame is returned with trailing spaces trimmed.
func RenderSnapshot(ctx context.Context, ds grid.DataSource, cfg SnapshotConfig) (string, error) {
	m := NewModel(ctx, ds, cfg.Options)
	defer m.cancel()
	g := m.Grid

	eff := g.Resize(m.bodyUnits())
	eff.Merge(g.Start())
	if err := g.Drain(ctx, ds, eff); err != nil {
		return "", err
	}
	if strings.TrimSpace(cfg.Search) != "" {
		if err := g.SearchNow(ctx, ds, cfg.Search); err != nil {
			return "", err
		}
	}
	if cfg.Scroll > 0 {
		if err := g.LoadAll(ctx, ds, cfg.Scroll+1); err != nil {
			return "", err
		}
		_, col := g.Cursor()
		if err := g.Drain(ctx, ds, g.SetCursor(cfg.Scroll, col)); err != nil {
			return "", err
		}
	}

	lines := strings.Split(m.Render(), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " ")
	}
	return strings.Join(lines, "\n") + "\n", nil
}
