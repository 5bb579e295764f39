package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/oakwood-commons/kvgrid/internal/grid"
)

// Table is a stored table with its columns in display order.
type Table struct {
	ID       string        `json:"id" yaml:"id"`
	Name     string        `json:"name" yaml:"name"`
	Columns  []grid.Column `json:"columns" yaml:"columns"`
	RowCount int           `json:"row_count" yaml:"row_count"`
}

// ColumnSpec is a column to create alongside a table.
type ColumnSpec struct {
	Name string
	Type grid.ColumnType
}

// ParseColumnSpec parses "Name" or "Name:TYPE".
func ParseColumnSpec(s string) (ColumnSpec, error) {
	name, typ, _ := strings.Cut(s, ":")
	name = strings.TrimSpace(name)
	if name == "" {
		return ColumnSpec{}, grid.ErrEmptyColumnName
	}
	ct, ok := grid.ParseColumnType(typ)
	if !ok {
		return ColumnSpec{}, fmt.Errorf("%w: unknown column type %q", grid.ErrValidation, typ)
	}
	return ColumnSpec{Name: name, Type: ct}, nil
}

// CreateTable stores a new table with the given columns.
func (s *Store) CreateTable(ctx context.Context, name string, cols []ColumnSpec) (Table, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Table{}, fmt.Errorf("%w: table name cannot be empty", grid.ErrValidation)
	}
	seen := make(map[string]bool, len(cols))
	for _, c := range cols {
		key := strings.ToLower(strings.TrimSpace(c.Name))
		if key == "" {
			return Table{}, grid.ErrEmptyColumnName
		}
		if seen[key] {
			return Table{}, fmt.Errorf("%w: duplicate column %q", grid.ErrValidation, c.Name)
		}
		seen[key] = true
	}

	t := Table{ID: s.newID(), Name: name}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var n int
		if err := tx.QueryRowContext(ctx, s.q(`SELECT COUNT(*) FROM kvgrid_tables WHERE name = ?`), name).Scan(&n); err != nil {
			return mapErr(ctx, err)
		}
		if n > 0 {
			return fmt.Errorf("%w: table %q already exists", grid.ErrValidation, name)
		}
		if _, err := tx.ExecContext(ctx, s.q(`INSERT INTO kvgrid_tables (id, name, created_at) VALUES (?, ?, ?)`),
			t.ID, t.Name, s.now().UnixMilli()); err != nil {
			return mapErr(ctx, err)
		}
		for i, c := range cols {
			col := grid.Column{ID: s.newID(), Name: strings.TrimSpace(c.Name), Type: c.Type, Position: i}
			if col.Type == "" {
				col.Type = grid.ColumnText
			}
			if err := s.insertColumn(ctx, tx, t.ID, col); err != nil {
				return err
			}
			t.Columns = append(t.Columns, col)
		}
		return nil
	})
	if err != nil {
		return Table{}, fmt.Errorf("create table %q: %w", name, err)
	}
	s.log.V(1).Info("table created", "table", t.Name, "id", t.ID, "columns", len(t.Columns))
	return t, nil
}

// ListTables returns every table ordered by name.
func (s *Store) ListTables(ctx context.Context) ([]Table, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT t.id, t.name, (SELECT COUNT(*) FROM kvgrid_rows r WHERE r.table_id = t.id) FROM kvgrid_tables t ORDER BY t.name`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", mapErr(ctx, err))
	}
	var out []Table
	for rows.Next() {
		var t Table
		if err := rows.Scan(&t.ID, &t.Name, &t.RowCount); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan table: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Close(); err != nil {
		return nil, mapErr(ctx, err)
	}
	for i := range out {
		cols, err := s.columns(ctx, s.db, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Columns = cols
	}
	return out, nil
}

// TableByName resolves a table by name, falling back to its id.
func (s *Store) TableByName(ctx context.Context, nameOrID string) (Table, error) {
	var t Table
	err := s.db.QueryRowContext(ctx, s.q(`SELECT id, name FROM kvgrid_tables WHERE name = ? OR id = ?`), nameOrID, nameOrID).Scan(&t.ID, &t.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return Table{}, fmt.Errorf("table %q: %w", nameOrID, grid.ErrNotFound)
	}
	if err != nil {
		return Table{}, fmt.Errorf("table %q: %w", nameOrID, mapErr(ctx, err))
	}
	if t.Columns, err = s.columns(ctx, s.db, t.ID); err != nil {
		return Table{}, err
	}
	if err := s.db.QueryRowContext(ctx, s.q(`SELECT COUNT(*) FROM kvgrid_rows WHERE table_id = ?`), t.ID).Scan(&t.RowCount); err != nil {
		return Table{}, fmt.Errorf("count rows: %w", mapErr(ctx, err))
	}
	return t, nil
}

func (s *Store) requireTable(ctx context.Context, q querier, tableID string) error {
	var n int
	if err := q.QueryRowContext(ctx, s.q(`SELECT COUNT(*) FROM kvgrid_tables WHERE id = ?`), tableID).Scan(&n); err != nil {
		return mapErr(ctx, err)
	}
	if n == 0 {
		return fmt.Errorf("table %s: %w", tableID, grid.ErrNotFound)
	}
	return nil
}

func (s *Store) columns(ctx context.Context, q querier, tableID string) ([]grid.Column, error) {
	rows, err := q.QueryContext(ctx, s.q(`SELECT id, name, type, position FROM kvgrid_columns WHERE table_id = ? ORDER BY position, id`), tableID)
	if err != nil {
		return nil, fmt.Errorf("load columns: %w", mapErr(ctx, err))
	}
	defer rows.Close()
	var out []grid.Column
	for rows.Next() {
		var (
			c   grid.Column
			typ string
		)
		if err := rows.Scan(&c.ID, &c.Name, &typ, &c.Position); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		c.Type = grid.ColumnType(typ)
		out = append(out, c)
	}
	return out, mapErr(ctx, rows.Err())
}

func (s *Store) insertColumn(ctx context.Context, q querier, tableID string, c grid.Column) error {
	_, err := q.ExecContext(ctx, s.q(`INSERT INTO kvgrid_columns (id, table_id, name, type, position) VALUES (?, ?, ?, ?, ?)`),
		c.ID, tableID, c.Name, string(c.Type), c.Position)
	return mapErr(ctx, err)
}
