package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/oakwood-commons/kvgrid/internal/config"
	"github.com/oakwood-commons/kvgrid/internal/store"
	"github.com/oakwood-commons/kvgrid/pkg/logger"
)

// loadConfig merges the config layers with the global flags on top.
func loadConfig() (config.Config, error) {
	return config.Load(config.LoadInput{
		ConfigPath: configFile,
		Overrides:  flagOverrides(),
	})
}

// flagOverrides turns the global flags into a config overlay. Unset flags
// leave the lower layers alone.
func flagOverrides() config.Config {
	var o config.Config
	o.Database.Type = driverName
	o.Database.DSN = dataSource
	o.Log.File = logFile
	if debug {
		o.Log.Level = "debug"
	}
	if noColor {
		v := true
		o.UI.NoColor = &v
	}
	return o
}

func openStore(ctx context.Context, cfg config.Config) (*store.Store, error) {
	sc, err := cfg.StoreConfig(*logger.FromContext(ctx))
	if err != nil {
		return nil, err
	}
	st, err := store.Open(ctx, sc)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return st, nil
}

// resolveTable looks up the table named by the first argument, falling back
// to app.default_table.
func resolveTable(ctx context.Context, st *store.Store, args []string) (store.Table, error) {
	name := activeConfig.App.DefaultTable
	if len(args) > 0 {
		name = args[0]
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return store.Table{}, errNoTable
	}
	return st.TableByName(ctx, name)
}
