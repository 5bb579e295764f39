package formatter

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/xlab/treeprint"

	"github.com/oakwood-commons/kvgrid/internal/grid"
	"github.com/oakwood-commons/kvgrid/internal/store"
)

// TablesTree renders the table catalog as an ASCII tree: one branch per
// table with its columns as leaves.
func TablesTree(tables []store.Table) string {
	tree := treeprint.NewWithRoot(fmt.Sprintf("tables (%d)", len(tables)))
	for _, t := range tables {
		branch := tree.AddMetaBranch(plural(t.RowCount, "row"), t.Name)
		if len(t.Columns) == 0 {
			branch.AddNode("(no columns)")
			continue
		}
		for _, c := range t.Columns {
			branch.AddMetaNode(string(c.Type), c.Name)
		}
	}
	return tree.String()
}

// TablesMermaid renders the table catalog as a Mermaid ER diagram.
func TablesMermaid(tables []store.Table) string {
	lines := []string{"erDiagram"}
	for _, t := range tables {
		lines = append(lines, fmt.Sprintf("    %s {", SanitizeMermaidID(t.Name)))
		for _, c := range t.Columns {
			typ := "string"
			if c.Type == grid.ColumnNumber {
				typ = "float"
			}
			lines = append(lines, fmt.Sprintf("        %s %s %q", typ, SanitizeMermaidID(c.Name), c.Name))
		}
		lines = append(lines, "    }")
	}
	return strings.Join(lines, "\n") + "\n"
}

// TablesList renders one "name  N rows  col:TYPE, ..." line per table.
func TablesList(w io.Writer, tables []store.Table) error {
	for _, t := range tables {
		specs := make([]string, len(t.Columns))
		for i, c := range t.Columns {
			specs[i] = c.Name + ":" + string(c.Type)
		}
		if _, err := fmt.Fprintf(w, "%s\t%s\t%s\n", t.Name, plural(t.RowCount, "row"), strings.Join(specs, ", ")); err != nil {
			return err
		}
	}
	return nil
}

var nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9_]`)

// SanitizeMermaidID creates a valid Mermaid identifier from a name.
func SanitizeMermaidID(s string) string {
	id := nonAlphanumeric.ReplaceAllString(s, "_")
	if id == "" || (id[0] >= '0' && id[0] <= '9') {
		id = "_" + id
	}
	return id
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
