package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/oakwood-commons/kvgrid/internal/grid"
	"github.com/oakwood-commons/kvgrid/internal/store"
)

var (
	addRowCount   int
	newColumnType string
)

var rowsCmd = &cobra.Command{
	Use:   "rows",
	Short: "Add or change rows",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

var rowsAddCmd = &cobra.Command{
	Use:   "add <table>",
	Short: "Append empty rows to a table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if addRowCount <= 0 {
			return fmt.Errorf("-n must be positive, got %d", addRowCount)
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

		rows, err := st.CreateRows(ctx, t.ID, addRowCount)
		if err != nil {
			return err
		}
		for _, r := range rows {
			if _, err := fmt.Fprintln(cmd.OutOrStdout(), r.ID); err != nil {
				return err
			}
		}
		return nil
	},
}

var rowsSetCmd = &cobra.Command{
	Use:     "set <table> <row-id> <column> <value>",
	Short:   "Change one cell",
	Example: "\n  kvgrid rows set people 0b6f... Age 42\n",
	Args:    cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := rootCtx
		st, err := openStore(ctx, activeConfig)
		if err != nil {
			return err
		}
		defer st.Close()
		t, err := resolveTable(ctx, st, args[:1])
		if err != nil {
			return err
		}

		col, err := findColumn(t, args[2])
		if err != nil {
			return err
		}
		if err := grid.ValidateValue(col.Type, args[3]); err != nil {
			return fmt.Errorf("%s: %w", col.Name, err)
		}
		cell, err := st.UpdateCell(ctx, args[1], col.ID, args[3])
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s.%s = %s\n", cell.RowID, col.Name, cell.Value)
		return err
	},
}

var columnsCmd = &cobra.Command{
	Use:   "columns",
	Short: "Add columns",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

var columnsAddCmd = &cobra.Command{
	Use:     "add <table> <name>",
	Short:   "Append a column to a table",
	Example: "\n  kvgrid columns add people Age --type NUMBER\n",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		typ, ok := grid.ParseColumnType(newColumnType)
		if !ok {
			return fmt.Errorf("%w: unknown column type %q", grid.ErrValidation, newColumnType)
		}
		ctx := rootCtx
		st, err := openStore(ctx, activeConfig)
		if err != nil {
			return err
		}
		defer st.Close()
		t, err := resolveTable(ctx, st, args[:1])
		if err != nil {
			return err
		}

		col, err := st.CreateColumn(ctx, t.ID, args[1], typ)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "added column %s (%s) to %s\n", col.Name, col.Type, t.Name)
		return err
	},
}

// findColumn matches a column by name, ignoring case, or by id.
func findColumn(t store.Table, name string) (grid.Column, error) {
	for _, c := range t.Columns {
		if strings.EqualFold(c.Name, name) || c.ID == name {
			return c, nil
		}
	}
	return grid.Column{}, fmt.Errorf("column %q in %s: %w", name, t.Name, grid.ErrNotFound)
}

func init() { //nolint:gochecknoinits
	rowsAddCmd.Flags().IntVarP(&addRowCount, "count", "n", 1, "number of rows to add")
	rowsCmd.AddCommand(rowsAddCmd, rowsSetCmd)

	columnsAddCmd.Flags().StringVar(&newColumnType, "type", "TEXT", "column type: TEXT or NUMBER")
	columnsCmd.AddCommand(columnsAddCmd)
}
