package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/oakwood-commons/kvgrid/internal/grid"
	"github.com/oakwood-commons/kvgrid/internal/store"
)

// Validate reports every invalid setting at once.
func Validate(cfg Config) error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if _, err := store.Lookup(cfg.Database.Type); err != nil {
		fail("database.type: %w", err)
	}
	if cfg.Database.ConnectTimeout < 0 || cfg.Database.RequestTimeout < 0 {
		fail("database timeouts must not be negative")
	}

	g := cfg.Grid
	if g.PageSize <= 0 {
		fail("grid.page_size must be positive, got %d", g.PageSize)
	}
	if g.RowHeight <= 0 {
		fail("grid.row_height must be positive, got %d", g.RowHeight)
	}
	if g.Overscan != nil && *g.Overscan < 0 {
		fail("grid.overscan must not be negative, got %d", *g.Overscan)
	}
	if g.LoadThreshold <= 0 || g.RearmThreshold <= g.LoadThreshold {
		fail("grid.rearm_threshold (%d) must be greater than grid.load_threshold (%d) > 0", g.RearmThreshold, g.LoadThreshold)
	}
	if g.SearchDebounce < 0 || g.IndicatorLinger < 0 {
		fail("grid timers must not be negative")
	}
	if g.BulkAddCount <= 0 {
		fail("grid.bulk_add_count must be positive, got %d", g.BulkAddCount)
	}
	if _, err := grid.ParseReconcileMode(g.ReconcileMode); err != nil {
		fail("grid.reconcile_mode: %w", err)
	}
	if _, err := grid.ParsePlaceholderPolicy(g.PlaceholderEdits); err != nil {
		fail("grid.placeholder_edits: %w", err)
	}

	if _, ok := cfg.UI.Themes[cfg.UI.Theme]; !ok {
		fail("ui.theme %q is not defined", cfg.UI.Theme)
	}
	if cfg.UI.MaxColumnWidth < 4 {
		fail("ui.max_column_width must be at least 4, got %d", cfg.UI.MaxColumnWidth)
	}

	switch strings.ToLower(cfg.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		fail("log.level must be debug, info, warn or error, got %q", cfg.Log.Level)
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrConfigInvalid, errors.Join(errs...))
}
