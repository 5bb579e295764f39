package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/x/ansi"
	"github.com/go-logr/logr"
	"github.com/spf13/cobra"

	"github.com/oakwood-commons/kvgrid/internal/config"
	"github.com/oakwood-commons/kvgrid/internal/store"
	"github.com/oakwood-commons/kvgrid/internal/ui"
	"github.com/oakwood-commons/kvgrid/pkg/logger"
	"github.com/oakwood-commons/kvgrid/pkg/settings"
)

var errNoTable = errors.New("no table given: pass a table name or set app.default_table")

var (
	// global flags
	configFile string
	driverName string
	dataSource string
	debug      bool
	logFile    string
	noColor    bool

	// root command
	renderSnapshot bool
	snapshotWidth  int
	snapshotHeight int
	searchTerm     string
	scrollTo       int
)

var (
	rootCtx      = context.Background()
	activeConfig config.Config
)

var rootCmd = &cobra.Command{
	Use:   "kvgrid [table]",
	Short: "Browse and edit database tables in a terminal grid",
	Long: `kvgrid opens a table in a scrolling grid that loads rows page by page as you
move through it. Cells are edited in place and saved when you leave them, rows
and columns can be added without waiting for the server, and / searches the
whole table (prefix the term with = for a CEL predicate such as '=_.Age > 30').`,
	Example: "\n  kvgrid people\n  kvgrid people --snapshot --width 100 --height 20\n  kvgrid dump people -o csv --limit 10\n  kvgrid tables create people --column Name --column Age:NUMBER\n",
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		interactive := cmd == cmd.Root() && !renderSnapshot
		lgr, err := logger.Setup(logger.Options{
			Level:   cfg.Log.Level,
			File:    cfg.Log.File,
			Discard: interactive,
		})
		if err != nil {
			return err
		}
		lgr = logger.WithValues(lgr, logger.RootCommandKey, settings.CliBinaryName, logger.SubCommandKey, cmd.Name())

		run := settings.NewCliParams()
		run.LogLevel = cfg.Log.Level
		run.LogFile = cfg.Log.File
		run.ConfigPath = configFile
		run.NoColor = cfg.NoColor()
		run.Interactive = interactive
		run.RequestTimeout = cfg.RequestTimeout()

		activeConfig = cfg
		rootCtx = logger.WithLogger(settings.IntoContext(context.Background(), run), lgr)
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runGrid(cmd, args)
	},
}

func runGrid(cmd *cobra.Command, args []string) error {
	ctx := rootCtx
	st, err := openStore(ctx, activeConfig)
	if err != nil {
		return err
	}
	defer st.Close()

	t, err := resolveTable(ctx, st, args)
	if err != nil {
		return err
	}
	lgr := logger.WithValues(logger.FromContext(ctx), logger.TableKey, t.Name)
	opts := gridOptions(activeConfig, settings.FromContextOrDefault(ctx), t, *lgr)

	if renderSnapshot {
		detectedW, detectedH := detectTerminalSize()
		size := resolveSnapshotSize(snapshotWidth, snapshotHeight, detectedW, detectedH)
		opts.Width, opts.Height = size.Width, size.Height
		out, err := ui.RenderSnapshot(ctx, st, ui.SnapshotConfig{Options: opts, Search: searchTerm, Scroll: scrollTo})
		if err != nil {
			return fmt.Errorf("render %s: %w", t.Name, err)
		}
		if opts.NoColor {
			out = ansi.Strip(out)
		}
		_, err = fmt.Fprint(cmd.OutOrStdout(), out)
		return err
	}

	opts.Width, opts.Height = snapshotWidth, snapshotHeight
	progOpts, cleanup := getProgramOptions()
	defer cleanup()
	lgr.V(1).Info("starting grid", "driver", st.Dialect().Name)
	return ui.RunModel(ctx, st, opts, progOpts...)
}

// gridOptions builds the interactive grid options for table t.
func gridOptions(cfg config.Config, run *settings.Run, t store.Table, lgr logr.Logger) ui.Options {
	return ui.Options{
		Title:          t.Name,
		Grid:           cfg.GridOptions(t.ID, lgr),
		RequestTimeout: run.RequestTimeout,
		BulkAddCount:   cfg.Grid.BulkAddCount,
		MaxColumnWidth: cfg.UI.MaxColumnWidth,
		Theme:          cfg.ActiveTheme(),
		NoColor:        run.NoColor,
		Logger:         lgr,
	}
}

func init() { //nolint:gochecknoinits
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFile, "config-file", "", "path to a YAML or JSON config file")
	pf.StringVar(&driverName, "driver", "", "database driver: sqlite|postgres|mysql|sqlserver (default from config)")
	pf.StringVar(&dataSource, "dsn", "", "database connection string (overrides the database section of the config)")
	pf.BoolVar(&debug, "debug", false, "log at debug level")
	pf.StringVar(&logFile, "log-file", "", "append JSON logs to this file (interactive runs log nowhere otherwise)")
	pf.BoolVar(&noColor, "no-color", false, "disable color output")

	rootCmd.Flags().BoolVar(&renderSnapshot, "snapshot", false, "render a single grid frame and exit; honors --width/--height")
	rootCmd.Flags().IntVar(&snapshotWidth, "width", 0, "grid width in columns (default: terminal width)")
	rootCmd.Flags().IntVar(&snapshotHeight, "height", 0, "grid height in rows (default: terminal height)")
	rootCmd.Flags().StringVar(&searchTerm, "search", "", "run a search before rendering the snapshot")
	rootCmd.Flags().IntVar(&scrollTo, "scroll", 0, "select this row (0-based) before rendering the snapshot")

	rootCmd.Version = cliVersionString()
	rootCmd.SetVersionTemplate("{{.Version}}\n")

	rootCmd.AddCommand(versionCmd, dumpCmd, importCmd, tablesCmd, rowsCmd, columnsCmd, configCmd)
}

func Execute() error {
	return rootCmd.Execute()
}
