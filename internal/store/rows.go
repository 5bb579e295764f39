package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	celx "github.com/oakwood-commons/kvgrid/internal/cel"
	"github.com/oakwood-commons/kvgrid/internal/grid"
)

// cellChunk bounds the IN list when loading cells.
const cellChunk = 200

type rowRef struct {
	id  string
	seq int64
}

// FetchPage returns up to limit rows after cursor in insertion order.
// Concurrent identical requests share one query.
func (s *Store) FetchPage(ctx context.Context, tableID, cursor string, limit int) (grid.Page, error) {
	after, err := decodeCursor(cursor)
	if err != nil {
		return grid.Page{}, err
	}
	if limit <= 0 {
		return grid.Page{}, fmt.Errorf("%w: limit must be positive", grid.ErrValidation)
	}
	key := "page\x00" + tableID + "\x00" + cursor + "\x00" + strconv.Itoa(limit)
	page, shared, err := s.sharedRead(ctx, key, func(ctx context.Context) (grid.Page, error) {
		return s.fetchPage(ctx, tableID, after, cursor == "", limit)
	})
	if err != nil {
		return grid.Page{}, err
	}
	s.log.V(1).Info("page fetched", "table", tableID, "rows", len(page.Rows), "more", page.NextCursor != "", "shared", shared)
	return page, nil
}

// sharedRead runs read once for concurrent callers with the same key. The
// read is detached from every caller and bounded by the store read timeout,
// so one caller giving up never fails the others.
func (s *Store) sharedRead(ctx context.Context, key string, read func(context.Context) (grid.Page, error)) (grid.Page, bool, error) {
	if err := ctx.Err(); err != nil {
		return grid.Page{}, false, mapErr(ctx, err)
	}
	ch := s.reads.DoChan(key, func() (any, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.readTimeout)
		defer cancel()
		return read(rctx)
	})
	select {
	case <-ctx.Done():
		return grid.Page{}, false, mapErr(ctx, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return grid.Page{}, res.Shared, res.Err
		}
		return res.Val.(grid.Page), res.Shared, nil
	}
}

func (s *Store) fetchPage(ctx context.Context, tableID string, after int64, first bool, limit int) (grid.Page, error) {
	if err := s.requireTable(ctx, s.db, tableID); err != nil {
		return grid.Page{}, err
	}
	cols, err := s.columns(ctx, s.db, tableID)
	if err != nil {
		return grid.Page{}, err
	}
	query := s.dialect.Limit(`SELECT id, seq FROM kvgrid_rows WHERE table_id = ? AND seq > ? ORDER BY seq`, limit+1)
	refs, err := s.rowRefs(ctx, s.q(query), tableID, after)
	if err != nil {
		return grid.Page{}, err
	}
	page := grid.Page{Columns: cols}
	if len(refs) > limit {
		refs = refs[:limit]
		page.NextCursor = encodeCursor(refs[len(refs)-1].seq)
	}
	if page.Rows, err = s.materialize(ctx, refs, cols); err != nil {
		return grid.Page{}, err
	}
	if first {
		page.TableID = tableID
		if err := s.db.QueryRowContext(ctx, s.q(`SELECT COUNT(*) FROM kvgrid_rows WHERE table_id = ?`), tableID).Scan(&page.TotalCount); err != nil {
			return grid.Page{}, fmt.Errorf("count rows: %w", mapErr(ctx, err))
		}
		page.HasTotal = true
	}
	return page, nil
}

// SearchRows returns every row with a cell containing term, case
// insensitively. A term starting with "=" is a CEL predicate over the row,
// which is bound to "_" as a map from column name to value.
func (s *Store) SearchRows(ctx context.Context, tableID, term string) (grid.Page, error) {
	key := "search\x00" + tableID + "\x00" + term
	page, _, err := s.sharedRead(ctx, key, func(ctx context.Context) (grid.Page, error) {
		if expr, ok := celx.IsExpression(term); ok {
			return s.searchExpr(ctx, tableID, expr)
		}
		return s.searchText(ctx, tableID, term)
	})
	if err != nil {
		return grid.Page{}, err
	}
	s.log.V(1).Info("search done", "table", tableID, "term", term, "rows", len(page.Rows))
	return page, nil
}

func (s *Store) searchText(ctx context.Context, tableID, term string) (grid.Page, error) {
	if err := s.requireTable(ctx, s.db, tableID); err != nil {
		return grid.Page{}, err
	}
	cols, err := s.columns(ctx, s.db, tableID)
	if err != nil {
		return grid.Page{}, err
	}
	pattern := "%" + escapeLike(strings.ToLower(term)) + "%"
	refs, err := s.rowRefs(ctx, s.q(`SELECT r.id, r.seq FROM kvgrid_rows r WHERE r.table_id = ? AND EXISTS (
		SELECT 1 FROM kvgrid_cells c WHERE c.row_id = r.id AND LOWER(c.value) LIKE ? ESCAPE '!'
	) ORDER BY r.seq`), tableID, pattern)
	if err != nil {
		return grid.Page{}, err
	}
	rows, err := s.materialize(ctx, refs, cols)
	if err != nil {
		return grid.Page{}, err
	}
	return grid.Page{TableID: tableID, Columns: cols, Rows: rows}, nil
}

func (s *Store) searchExpr(ctx context.Context, tableID, expr string) (grid.Page, error) {
	match, err := s.eval.Predicate(expr)
	if err != nil {
		return grid.Page{}, fmt.Errorf("%w: %w", grid.ErrValidation, err)
	}
	if err := s.requireTable(ctx, s.db, tableID); err != nil {
		return grid.Page{}, err
	}
	cols, err := s.columns(ctx, s.db, tableID)
	if err != nil {
		return grid.Page{}, err
	}
	refs, err := s.rowRefs(ctx, s.q(`SELECT id, seq FROM kvgrid_rows WHERE table_id = ? ORDER BY seq`), tableID)
	if err != nil {
		return grid.Page{}, err
	}
	all, err := s.materialize(ctx, refs, cols)
	if err != nil {
		return grid.Page{}, err
	}
	page := grid.Page{TableID: tableID, Columns: cols}
	for _, r := range all {
		ok, err := match(RowData(cols, r))
		if err != nil {
			// Rows the expression cannot evaluate, e.g. comparing an empty number, do not match.
			continue
		}
		if ok {
			page.Rows = append(page.Rows, r)
		}
	}
	return page, nil
}

// RowData is the CEL binding for a row: column name to value, with NUMBER
// cells as float64 (nil when empty).
func RowData(cols []grid.Column, r grid.Row) map[string]any {
	out := make(map[string]any, len(cols))
	for _, c := range cols {
		v := r.Value(c.ID)
		if c.Type != grid.ColumnNumber {
			out[c.Name] = v
			continue
		}
		if strings.TrimSpace(v) == "" {
			out[c.Name] = nil
			continue
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			out[c.Name] = v
			continue
		}
		out[c.Name] = f
	}
	return out
}

func escapeLike(s string) string {
	r := strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")
	return r.Replace(s)
}

// UpdateCell stores one cell value. The row and column must exist and belong
// to the same table.
func (s *Store) UpdateCell(ctx context.Context, rowID, columnID, value string) (grid.Cell, error) {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var rowTable string
		err := tx.QueryRowContext(ctx, s.q(`SELECT table_id FROM kvgrid_rows WHERE id = ?`), rowID).Scan(&rowTable)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("row %s: %w", rowID, grid.ErrNotFound)
		}
		if err != nil {
			return mapErr(ctx, err)
		}
		var typ string
		err = tx.QueryRowContext(ctx, s.q(`SELECT type FROM kvgrid_columns WHERE id = ? AND table_id = ?`), columnID, rowTable).Scan(&typ)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("column %s: %w", columnID, grid.ErrNotFound)
		}
		if err != nil {
			return mapErr(ctx, err)
		}
		if err := grid.ValidateValue(grid.ColumnType(typ), value); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, s.q(s.dialect.UpsertCell()), rowID, columnID, value)
		return mapErr(ctx, err)
	})
	if err != nil {
		return grid.Cell{}, fmt.Errorf("update cell: %w", err)
	}
	s.log.V(1).Info("cell updated", "row", rowID, "column", columnID)
	return grid.Cell{RowID: rowID, ColumnID: columnID, Value: value}, nil
}

// CreateRow appends one empty row.
func (s *Store) CreateRow(ctx context.Context, tableID string) (grid.Row, error) {
	rows, err := s.CreateRows(ctx, tableID, 1)
	if err != nil {
		return grid.Row{}, err
	}
	return rows[0], nil
}

// CreateRows appends count empty rows and returns them in order.
func (s *Store) CreateRows(ctx context.Context, tableID string, count int) ([]grid.Row, error) {
	if count <= 0 {
		return nil, fmt.Errorf("%w: row count must be positive", grid.ErrValidation)
	}
	return s.InsertRows(ctx, tableID, make([]map[string]string, count))
}

// InsertRows appends one row per entry of values in a single transaction.
// Each entry maps column ids to cell values; values are checked against the
// column types before anything is written.
func (s *Store) InsertRows(ctx context.Context, tableID string, values []map[string]string) ([]grid.Row, error) {
	if len(values) == 0 {
		return nil, nil
	}
	var out []grid.Row
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := s.requireTable(ctx, tx, tableID); err != nil {
			return err
		}
		cols, err := s.columns(ctx, tx, tableID)
		if err != nil {
			return err
		}
		types := make(map[string]grid.ColumnType, len(cols))
		for _, c := range cols {
			types[c.ID] = c.Type
		}
		for i, cells := range values {
			for id, v := range cells {
				typ, ok := types[id]
				if !ok {
					return fmt.Errorf("row %d: column %s: %w", i+1, id, grid.ErrNotFound)
				}
				if err := grid.ValidateValue(typ, v); err != nil {
					return fmt.Errorf("row %d: %w", i+1, err)
				}
			}
		}

		var last int64
		if err := tx.QueryRowContext(ctx, s.q(`SELECT COALESCE(MAX(seq), 0) FROM kvgrid_rows WHERE table_id = ?`), tableID).Scan(&last); err != nil {
			return mapErr(ctx, err)
		}
		insertRow := s.q(`INSERT INTO kvgrid_rows (id, table_id, seq) VALUES (?, ?, ?)`)
		insertCell := s.q(`INSERT INTO kvgrid_cells (row_id, column_id, value) VALUES (?, ?, ?)`)
		out = make([]grid.Row, 0, len(values))
		for i, cells := range values {
			r := grid.Row{ID: s.newID(), Cells: make(map[string]string, len(cols))}
			if _, err := tx.ExecContext(ctx, insertRow, r.ID, tableID, last+int64(i)+1); err != nil {
				return mapErr(ctx, err)
			}
			for _, c := range cols {
				v := cells[c.ID]
				r.Cells[c.ID] = v
				if v == "" {
					continue
				}
				if _, err := tx.ExecContext(ctx, insertCell, r.ID, c.ID, v); err != nil {
					return mapErr(ctx, err)
				}
			}
			out = append(out, r)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create rows: %w", err)
	}
	s.log.V(1).Info("rows created", "table", tableID, "count", len(out))
	return out, nil
}

// CreateColumn appends a column to the table.
func (s *Store) CreateColumn(ctx context.Context, tableID, name string, typ grid.ColumnType) (grid.Column, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return grid.Column{}, grid.ErrEmptyColumnName
	}
	if typ == "" {
		typ = grid.ColumnText
	}
	if typ != grid.ColumnText && typ != grid.ColumnNumber {
		return grid.Column{}, fmt.Errorf("%w: unknown column type %q", grid.ErrValidation, typ)
	}
	col := grid.Column{ID: s.newID(), Name: name, Type: typ}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := s.requireTable(ctx, tx, tableID); err != nil {
			return err
		}
		var dup int
		if err := tx.QueryRowContext(ctx, s.q(`SELECT COUNT(*) FROM kvgrid_columns WHERE table_id = ? AND LOWER(name) = ?`),
			tableID, strings.ToLower(name)).Scan(&dup); err != nil {
			return mapErr(ctx, err)
		}
		if dup > 0 {
			return fmt.Errorf("%w: column %q already exists", grid.ErrValidation, name)
		}
		if err := tx.QueryRowContext(ctx, s.q(`SELECT COALESCE(MAX(position), -1) + 1 FROM kvgrid_columns WHERE table_id = ?`), tableID).Scan(&col.Position); err != nil {
			return mapErr(ctx, err)
		}
		return s.insertColumn(ctx, tx, tableID, col)
	})
	if err != nil {
		return grid.Column{}, fmt.Errorf("create column: %w", err)
	}
	s.log.V(1).Info("column created", "table", tableID, "column", col.Name, "type", string(col.Type))
	return col, nil
}

func (s *Store) rowRefs(ctx context.Context, query string, args ...any) ([]rowRef, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("load rows: %w", mapErr(ctx, err))
	}
	defer rows.Close()
	var out []rowRef
	for rows.Next() {
		var r rowRef
		if err := rows.Scan(&r.id, &r.seq); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, r)
	}
	return out, mapErr(ctx, rows.Err())
}

// materialize loads the cells of refs and builds rows in ref order. Missing
// cells read as "".
func (s *Store) materialize(ctx context.Context, refs []rowRef, cols []grid.Column) ([]grid.Row, error) {
	out := make([]grid.Row, len(refs))
	index := make(map[string]int, len(refs))
	for i, r := range refs {
		cells := make(map[string]string, len(cols))
		for _, c := range cols {
			cells[c.ID] = ""
		}
		out[i] = grid.Row{ID: r.id, Cells: cells}
		index[r.id] = i
	}
	for start := 0; start < len(refs); start += cellChunk {
		chunk := refs[start:min(start+cellChunk, len(refs))]
		args := make([]any, len(chunk))
		for i, r := range chunk {
			args[i] = r.id
		}
		marks := strings.TrimSuffix(strings.Repeat("?, ", len(chunk)), ", ")
		rows, err := s.db.QueryContext(ctx, s.q(`SELECT row_id, column_id, value FROM kvgrid_cells WHERE row_id IN (`+marks+`)`), args...)
		if err != nil {
			return nil, fmt.Errorf("load cells: %w", mapErr(ctx, err))
		}
		for rows.Next() {
			var rowID, colID, value string
			if err := rows.Scan(&rowID, &colID, &value); err != nil {
				_ = rows.Close()
				return nil, fmt.Errorf("scan cell: %w", err)
			}
			if i, ok := index[rowID]; ok {
				out[i].Cells[colID] = value
			}
		}
		if err := rows.Close(); err != nil {
			return nil, mapErr(ctx, err)
		}
		if err := rows.Err(); err != nil {
			return nil, mapErr(ctx, err)
		}
	}
	return out, nil
}
