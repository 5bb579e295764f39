package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/oakwood-commons/kvgrid/internal/formatter"
	"github.com/oakwood-commons/kvgrid/internal/grid"
	"github.com/oakwood-commons/kvgrid/internal/store"
	"github.com/oakwood-commons/kvgrid/pkg/loader"
	"github.com/oakwood-commons/kvgrid/pkg/logger"
)

var (
	importFormat string
	importCreate bool
)

var importCmd = &cobra.Command{
	Use:   "import <table> <file|->",
	Short: "Append rows from a CSV, JSON, NDJSON, YAML or TOML file",
	Long: `import appends every record of the file as a new row. Keys without a matching
column get one (NUMBER when all their values are numbers, TEXT otherwise).
Output of 'kvgrid dump' can be imported again; the _id field is ignored.`,
	Example: "\n  kvgrid import people people.csv\n  kvgrid dump people -o json | kvgrid import people-copy - --create\n",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := readInput(cmd, args[1])
		if err != nil {
			return err
		}
		format := importFormat
		if format == "" {
			format = loader.FormatForPath(args[1])
		}
		recs, err := loader.Load(data, format)
		if err != nil {
			return fmt.Errorf("read %s: %w", args[1], err)
		}

		ctx := rootCtx
		st, err := openStore(ctx, activeConfig)
		if err != nil {
			return err
		}
		defer st.Close()

		t, err := resolveTable(ctx, st, args[:1])
		if errors.Is(err, grid.ErrNotFound) && importCreate {
			t, err = st.CreateTable(ctx, args[0], nil)
		}
		if err != nil {
			return err
		}
		lgr := logger.WithValues(logger.FromContext(ctx), logger.TableKey, t.Name)

		ids, err := ensureColumns(cmd, st, t, recs)
		if err != nil {
			return err
		}
		values := make([]map[string]string, len(recs.Rows))
		for i, r := range recs.Rows {
			cells := make(map[string]string, len(r))
			for key, v := range r {
				if id, ok := ids[key]; ok && v != "" {
					cells[id] = v
				}
			}
			values[i] = cells
		}
		rows, err := st.InsertRows(ctx, t.ID, values)
		if err != nil {
			return err
		}
		lgr.V(1).Info("import done", "rows", len(rows), "columns", len(ids))
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "imported %d rows into %s\n", len(rows), t.Name)
		return err
	},
}

// ensureColumns maps every record key onto a column id, creating missing
// columns. Keys match column names ignoring case.
func ensureColumns(cmd *cobra.Command, st *store.Store, t store.Table, recs loader.Records) (map[string]string, error) {
	byName := make(map[string]string, len(t.Columns))
	for _, c := range t.Columns {
		byName[strings.ToLower(c.Name)] = c.ID
	}
	ids := make(map[string]string, len(recs.Columns))
	for _, key := range recs.Columns {
		name := strings.TrimSpace(key)
		if name == "" || name == formatter.IDField {
			continue
		}
		if id, ok := byName[strings.ToLower(name)]; ok {
			ids[key] = id
			continue
		}
		typ := grid.ColumnText
		if recs.Numeric(key) {
			typ = grid.ColumnNumber
		}
		col, err := st.CreateColumn(rootCtx, t.ID, name, typ)
		if err != nil {
			return nil, err
		}
		byName[strings.ToLower(name)] = col.ID
		ids[key] = col.ID
		if _, err := fmt.Fprintf(cmd.ErrOrStderr(), "added column %s (%s)\n", col.Name, col.Type); err != nil {
			return nil, err
		}
	}
	return ids, nil
}

// readInput reads a file, or stdin for "-".
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(path)
}

func init() { //nolint:gochecknoinits
	importCmd.Flags().StringVar(&importFormat, "format", "", "input format: csv|json|ndjson|yaml|toml (default: from the file extension or content)")
	importCmd.Flags().BoolVar(&importCreate, "create", false, "create the table when it does not exist")
}
