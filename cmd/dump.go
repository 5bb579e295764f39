package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/oakwood-commons/kvgrid/internal/formatter"
	"github.com/oakwood-commons/kvgrid/internal/grid"
	"github.com/oakwood-commons/kvgrid/internal/limiter"
	"github.com/oakwood-commons/kvgrid/pkg/logger"
)

var (
	dumpOutput    string
	dumpSearch    string
	dumpWithIDs   bool
	limitRecords  int
	offsetRecords int
	tailRecords   int
)

var dumpCmd = &cobra.Command{
	Use:   "dump <table>",
	Short: "Print the rows of a table",
	Long: `dump pages through a table the same way the grid does and prints the rows.
--limit and --offset stop paging as soon as enough rows are loaded; --tail
reads the whole table.`,
	Example: "\n  kvgrid dump people\n  kvgrid dump people -o json --search jane\n  kvgrid dump people --search '=_.Age >= 30' -o csv\n  kvgrid dump people --tail 5\n",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		lim := limiter.Config{Limit: limitRecords, Offset: offsetRecords, Tail: tailRecords}
		if err := lim.Validate(); err != nil {
			return err
		}
		format, err := formatter.ParseFormat(dumpOutput)
		if err != nil {
			return err
		}

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

		g := grid.New(activeConfig.GridOptions(t.ID, *lgr))
		defer g.Close()
		if err := g.Drain(ctx, st, g.Start()); err != nil {
			return err
		}
		if term := strings.TrimSpace(dumpSearch); term != "" {
			err = g.SearchNow(ctx, st, term)
		} else {
			err = g.LoadAll(ctx, st, lim.Need())
		}
		if err != nil {
			return err
		}

		rows := limiter.Apply(lim, g.Rows())
		lgr.V(1).Info("dump", "loaded", len(g.Rows()), "printed", len(rows))
		return formatter.WriteRows(cmd.OutOrStdout(), format, g.Columns(), rows, formatter.WriteOptions{
			Table: formatter.TableOptions{
				NoColor:        activeConfig.NoColor(),
				TotalWidth:     formatter.TerminalWidth(),
				MaxColumnWidth: activeConfig.UI.MaxColumnWidth,
			},
			WithIDs: dumpWithIDs,
		})
	},
}

func init() { //nolint:gochecknoinits
	f := dumpCmd.Flags()
	f.StringVarP(&dumpOutput, "output", "o", "table", "output format: table|csv|json|yaml|toml")
	f.StringVar(&dumpSearch, "search", "", "only print matching rows (=expr for a CEL predicate)")
	f.BoolVar(&dumpWithIDs, "ids", false, "include row ids in csv and structured output")
	f.IntVar(&limitRecords, "limit", 0, "print at most N rows")
	f.IntVar(&offsetRecords, "offset", 0, "skip the first N rows")
	f.IntVar(&tailRecords, "tail", 0, "print the last N rows (mutually exclusive with --limit; ignores --offset)")
}
