package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/oakwood-commons/kvgrid/internal/formatter"
	"github.com/oakwood-commons/kvgrid/internal/store"
)

var (
	tablesOutput  string
	tableColumns  []string
	createdOutput string
)

var tablesCmd = &cobra.Command{
	Use:     "tables",
	Aliases: []string{"ls"},
	Short:   "List tables",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := rootCtx
		st, err := openStore(ctx, activeConfig)
		if err != nil {
			return err
		}
		defer st.Close()

		tables, err := st.ListTables(ctx)
		if err != nil {
			return err
		}
		return writeTables(cmd.OutOrStdout(), tablesOutput, tables)
	},
}

var tablesCreateCmd = &cobra.Command{
	Use:     "create <name>",
	Short:   "Create a table",
	Example: "\n  kvgrid tables create people --column Name --column Age:NUMBER\n",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		specs := make([]store.ColumnSpec, 0, len(tableColumns))
		for _, raw := range tableColumns {
			spec, err := store.ParseColumnSpec(raw)
			if err != nil {
				return fmt.Errorf("--column %q: %w", raw, err)
			}
			specs = append(specs, spec)
		}

		ctx := rootCtx
		st, err := openStore(ctx, activeConfig)
		if err != nil {
			return err
		}
		defer st.Close()

		t, err := st.CreateTable(ctx, args[0], specs)
		if err != nil {
			return err
		}
		if createdOutput == "id" {
			_, err = fmt.Fprintln(cmd.OutOrStdout(), t.ID)
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "created table %s with %d columns\n", t.Name, len(t.Columns))
		return err
	},
}

// writeTables renders the table catalog in one of the tables -o formats.
func writeTables(w io.Writer, format string, tables []store.Table) error {
	switch format {
	case "", "list":
		return formatter.TablesList(w, tables)
	case "tree":
		_, err := io.WriteString(w, formatter.TablesTree(tables))
		return err
	case "mermaid":
		_, err := io.WriteString(w, formatter.TablesMermaid(tables))
		return err
	case "json":
		if tables == nil {
			tables = []store.Table{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(tables)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(tables); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("invalid output format %q: valid values are list, tree, mermaid, json, yaml", format)
	}
}

func init() { //nolint:gochecknoinits
	tablesCmd.Flags().StringVarP(&tablesOutput, "output", "o", "list", "output format: list|tree|mermaid|json|yaml")
	tablesCreateCmd.Flags().StringArrayVar(&tableColumns, "column", nil, "column as Name or Name:TYPE (TEXT or NUMBER); repeatable")
	tablesCreateCmd.Flags().StringVarP(&createdOutput, "output", "o", "text", "output: text|id")
	tablesCmd.AddCommand(tablesCreateCmd)
}
