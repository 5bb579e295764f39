// Package grid implements the state behind a virtualized, incrementally loaded,
// editable data grid: paged row streams, optimistic placeholder rows, buffered
// cell edits, debounced search source switching and the scroll window math
// that decides which rows get rendered.
//
// All state is owned by a single Grid and must only be mutated from one
// goroutine (the UI event loop). Network-bound work is handed out as request
// values whose Run methods may execute anywhere; their results are applied
// back through the Grid.
package grid

import (
	"context"
	"strings"
)

// TempIDPrefix marks client-only placeholder rows that have not been persisted yet.
const TempIDPrefix = "temp-"

// ColumnType governs input validation and alignment of a column.
type ColumnType string

const (
	ColumnText   ColumnType = "TEXT"
	ColumnNumber ColumnType = "NUMBER"
)

// ParseColumnType normalizes a user-supplied type name. Unknown names return false.
func ParseColumnType(s string) (ColumnType, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "TEXT", "STRING":
		return ColumnText, true
	case "NUMBER", "NUM", "NUMERIC":
		return ColumnNumber, true
	default:
		return "", false
	}
}

// Column describes one column of a table.
type Column struct {
	ID       string     `json:"id" yaml:"id"`
	Name     string     `json:"name" yaml:"name"`
	Type     ColumnType `json:"type" yaml:"type"`
	Position int        `json:"position" yaml:"position"`
}

// Row is a table row. Cells maps column id to value; a missing key reads as "".
type Row struct {
	ID    string            `json:"id" yaml:"id"`
	Cells map[string]string `json:"cells" yaml:"cells"`
}

// IsPlaceholder reports whether the row only exists on the client.
func (r Row) IsPlaceholder() bool {
	return IsPlaceholderID(r.ID)
}

// Value returns the committed value for a column.
func (r Row) Value(columnID string) string {
	return r.Cells[columnID]
}

// Clone returns a deep copy so streams never share cell maps.
func (r Row) Clone() Row {
	cells := make(map[string]string, len(r.Cells))
	for k, v := range r.Cells {
		cells[k] = v
	}
	return Row{ID: r.ID, Cells: cells}
}

// IsPlaceholderID reports whether id carries the placeholder prefix.
func IsPlaceholderID(id string) bool {
	return strings.HasPrefix(id, TempIDPrefix)
}

// Cell is a committed cell value as returned by the persistence layer.
type Cell struct {
	RowID    string `json:"row_id"`
	ColumnID string `json:"column_id"`
	Value    string `json:"value"`
}

// Page is one fetched batch of rows. NextCursor is empty once the stream is
// exhausted. TableID, TotalCount and HasTotal are only populated on the first page.
type Page struct {
	TableID    string
	Rows       []Row
	Columns    []Column
	NextCursor string
	TotalCount int
	HasTotal   bool
}

// SourceKey identifies a page stream: the whole table, or the table filtered by Term.
type SourceKey struct {
	TableID string
	Term    string
}

// Filtered reports whether the key selects a search-filtered stream.
func (k SourceKey) Filtered() bool {
	return k.Term != ""
}

func (k SourceKey) String() string {
	if k.Term == "" {
		return k.TableID
	}
	return k.TableID + "?q=" + k.Term
}

// CellKey addresses a single cell.
type CellKey struct {
	RowID    string
	ColumnID string
}

// DataSource is what the grid needs from the storage layer.
type DataSource interface {
	// FetchPage returns up to limit rows after cursor ("" for the first page).
	FetchPage(ctx context.Context, tableID, cursor string, limit int) (Page, error)
	// SearchRows returns every row matching term. The result is never paginated.
	SearchRows(ctx context.Context, tableID, term string) (Page, error)
	UpdateCell(ctx context.Context, rowID, columnID, value string) (Cell, error)
	CreateRow(ctx context.Context, tableID string) (Row, error)
	CreateRows(ctx context.Context, tableID string, count int) ([]Row, error)
	CreateColumn(ctx context.Context, tableID, name string, typ ColumnType) (Column, error)
}
