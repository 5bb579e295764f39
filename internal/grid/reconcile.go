package grid

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// CreateColumnRequest persists a new column.
type CreateColumnRequest struct {
	TableID string
	Name    string
	Type    ColumnType
}

// CreateColumnResult is the outcome of running a CreateColumnRequest.
type CreateColumnResult struct {
	Request CreateColumnRequest
	Column  Column
	Err     error
}

// Run calls the column collaborator.
func (r CreateColumnRequest) Run(ctx context.Context, ds DataSource) CreateColumnResult {
	col, err := ds.CreateColumn(ctx, r.TableID, r.Name, r.Type)
	if err != nil {
		err = fmt.Errorf("create column %q: %w", r.Name, normalizeErr(ctx, err))
	}
	return CreateColumnResult{Request: r, Column: col, Err: err}
}

// ApplyPage merges a fetched page (or its failure) into the store.
func (g *Grid) ApplyPage(res PageResult) Effects {
	return g.applyPage(res, true)
}

func (g *Grid) applyPage(res PageResult, follow bool) Effects {
	if g.closed {
		return Effects{}
	}
	key := res.Request.Key
	if key.Filtered() && !g.selector.Wants(key) {
		g.log.V(1).Info("discarding superseded search result", "source", key.String())
		if !g.pending.HasBatchFor(key) {
			g.pages.Reset(key)
		}
		return Effects{}
	}
	if res.Err != nil {
		g.pages.Fail(res.Request, res.Err)
		if key.Filtered() {
			g.selector.Failed(key)
		}
		g.log.Error(res.Err, "page fetch failed", "source", key.String(), "cursor", res.Request.Cursor, "kind", Classify(res.Err).String())
		return Effects{}
	}
	if err := g.pages.Resolve(res.Request, res.Page); err != nil {
		g.log.V(1).Info("page discarded", "source", key.String(), "cursor", res.Request.Cursor, "reason", err.Error())
		return Effects{}
	}
	g.mergeColumns(res.Page.Columns)
	g.log.V(1).Info("page applied", "source", key.String(), "rows", len(res.Page.Rows), "loaded", g.pages.Len(key), "more", g.pages.HasMore(key))

	var eff Effects
	if key.Filtered() {
		if t, ok := g.selector.Resolved(key); ok {
			g.switchTo(key)
			eff.Linger = &t
		}
		return eff
	}
	if follow && key == g.Active() {
		g.refreshWindow()
		if w := g.windower.Last(); g.pages.HasMore(key) && w.Visible(g.Count()-1) {
			// The viewport is not full yet; keep loading.
			g.trigger.Reset()
		}
		eff.Merge(g.CheckLoadMore())
	}
	return eff
}

// ApplyCommit writes a persisted cell value back into the row data.
func (g *Grid) ApplyCommit(res CommitResult) Effects {
	if g.closed {
		return Effects{}
	}
	key := res.Request.Key
	if !g.edits.Resolve(res) {
		if res.Err != nil && res.Request.Seq == g.edits.seq[key] {
			g.notice = res.Err
			g.log.Error(res.Err, "cell commit failed", "row", key.RowID, "column", key.ColumnID, "kind", Classify(res.Err).String())
		}
		return Effects{}
	}
	g.setCell(res.Cell)
	return Effects{}
}

// setCell updates exactly one committed value wherever the row is loaded.
func (g *Grid) setCell(c Cell) {
	n := g.pages.update(c.RowID, func(r *Row) {
		if r.Cells == nil {
			r.Cells = make(map[string]string)
		}
		r.Cells[c.ColumnID] = c.Value
	})
	if n == 0 {
		g.log.V(1).Info("committed cell for row not loaded", "row", c.RowID, "column", c.ColumnID)
	}
}

// ApplyRows swaps placeholders for persisted rows, or removes them when the
// persistence call failed.
func (g *Grid) ApplyRows(res CreateRowsResult) Effects {
	if g.closed {
		return Effects{}
	}
	batch := res.Request.Batch
	if res.Err != nil {
		removed := g.pending.Rollback(g.pages, batch)
		for _, id := range removed {
			g.edits.DropRow(id)
		}
		g.notice = res.Err
		g.log.Error(res.Err, "row creation failed", "batch", batch.ID, "removed", len(removed))
		g.clampCursor()
		return Effects{}
	}
	for i := range res.Rows {
		g.fillColumns(&res.Rows[i])
	}
	mapping := g.pending.Reconcile(g.pages, batch, res.Rows)
	replay := g.edits.Rekey(mapping)
	for from, to := range mapping {
		g.reconciled[from] = to
	}
	g.dropOrphanEdits()
	g.clampCursor()

	var eff Effects
	if len(mapping) > 0 {
		eff.Rekeyed = mapping
	}
	for _, key := range replay {
		req, outcome, err := g.edits.Commit(key)
		if err == nil && outcome == CommitIssued {
			eff.Commits = append(eff.Commits, req)
		}
	}
	g.log.V(1).Info("rows reconciled", "batch", batch.ID, "rows", len(res.Rows), "replayed", len(eff.Commits))
	return eff
}

// ApplyColumn appends a created column and gives every loaded row an empty cell for it.
func (g *Grid) ApplyColumn(res CreateColumnResult) Effects {
	if g.closed {
		return Effects{}
	}
	if res.Err != nil {
		g.notice = res.Err
		g.log.Error(res.Err, "column creation failed", "name", res.Request.Name)
		return Effects{}
	}
	g.addColumn(res.Column)
	return Effects{}
}

func (g *Grid) addColumn(col Column) {
	for _, c := range g.columns {
		if c.ID == col.ID {
			return
		}
	}
	g.columns = append(g.columns, col)
	g.pages.each(func(r *Row) {
		if r.Cells == nil {
			r.Cells = make(map[string]string)
		}
		if _, ok := r.Cells[col.ID]; !ok {
			r.Cells[col.ID] = ""
		}
	})
}

// mergeColumns adopts column metadata delivered with a page, keeping the
// local order and appending unseen columns.
func (g *Grid) mergeColumns(cols []Column) {
	for _, c := range cols {
		found := false
		for i := range g.columns {
			if g.columns[i].ID == c.ID {
				g.columns[i] = c
				found = true
				break
			}
		}
		if !found {
			g.addColumn(c)
		}
	}
}

func (g *Grid) fillColumns(r *Row) {
	if r.Cells == nil {
		r.Cells = make(map[string]string, len(g.columns))
	}
	for _, c := range g.columns {
		if _, ok := r.Cells[c.ID]; !ok {
			r.Cells[c.ID] = ""
		}
	}
}

// dropOrphanEdits removes entries for placeholder rows that no longer exist.
func (g *Grid) dropOrphanEdits() {
	live := make(map[string]bool)
	g.pages.each(func(r *Row) {
		if r.IsPlaceholder() {
			live[r.ID] = true
		}
	})
	for _, e := range g.edits.Entries() {
		if IsPlaceholderID(e.Key.RowID) && !live[e.Key.RowID] {
			g.edits.Cancel(e.Key)
			g.log.Info("edit on swept placeholder row discarded", "row", e.Key.RowID, "column", e.Key.ColumnID)
		}
	}
}

// AddColumn validates and prepares a column creation.
func (g *Grid) AddColumn(name string, typ ColumnType) (Effects, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Effects{}, ErrEmptyColumnName
	}
	if typ != ColumnText && typ != ColumnNumber {
		return Effects{}, fmt.Errorf("%w: unknown column type %q", ErrValidation, typ)
	}
	for _, c := range g.columns {
		if strings.EqualFold(c.Name, name) {
			return Effects{}, fmt.Errorf("%w: column %q already exists", ErrValidation, name)
		}
	}
	return Effects{Columns: []CreateColumnRequest{{TableID: g.opts.TableID, Name: name, Type: typ}}}, nil
}

// AddRows appends count placeholders to the active stream and prepares
// their persistence.
func (g *Grid) AddRows(count int) (Effects, error) {
	if count <= 0 {
		return Effects{}, fmt.Errorf("%w: row count must be positive, got %d", ErrValidation, count)
	}
	batch, _ := g.pending.AddPlaceholder(g.pages, g.Active(), count, g.columns)
	g.log.V(1).Info("placeholders added", "batch", batch.ID, "count", count, "source", batch.Key.String())
	return Effects{Creates: []CreateRowsRequest{{Batch: batch}}}, nil
}

// BeginEdit opens an edit entry for a loaded cell.
func (g *Grid) BeginEdit(rowID, columnID string) error {
	if _, ok := g.column(columnID); !ok {
		return fmt.Errorf("%s: %w", columnID, ErrUnknownColumn)
	}
	rowID = g.ResolveRowID(rowID)
	row, ok := g.row(rowID)
	if !ok {
		return fmt.Errorf("row %s: %w", rowID, ErrNotFound)
	}
	g.edits.Begin(CellKey{RowID: rowID, ColumnID: columnID}, row.Value(columnID))
	return nil
}

// UpdateEdit changes the in-progress value. NUMBER columns reject non-numeric input.
func (g *Grid) UpdateEdit(rowID, columnID, value string) error {
	col, ok := g.column(columnID)
	if !ok {
		return fmt.Errorf("%s: %w", columnID, ErrUnknownColumn)
	}
	return g.edits.Update(CellKey{RowID: g.ResolveRowID(rowID), ColumnID: columnID}, value, col.Type)
}

// CommitEdit hands the in-progress value to persistence.
func (g *Grid) CommitEdit(rowID, columnID string) (Effects, CommitOutcome, error) {
	rowID = g.ResolveRowID(rowID)
	req, outcome, err := g.edits.Commit(CellKey{RowID: rowID, ColumnID: columnID})
	if err != nil {
		if errors.Is(err, ErrNoEdit) {
			return Effects{}, outcome, nil
		}
		return Effects{}, outcome, err
	}
	switch outcome {
	case CommitIssued:
		return Effects{Commits: []CommitRequest{req}}, outcome, nil
	case CommitDropped:
		g.log.Info("edit on placeholder row dropped", "row", rowID, "column", columnID)
	case CommitDeferred:
		g.log.V(1).Info("edit on placeholder row deferred", "row", rowID, "column", columnID)
	}
	return Effects{}, outcome, nil
}

// CancelEdit discards the in-progress value.
func (g *Grid) CancelEdit(rowID, columnID string) {
	g.edits.Cancel(CellKey{RowID: g.ResolveRowID(rowID), ColumnID: columnID})
}

// CellValue returns what a cell should display: the edit entry when one
// exists, the committed value otherwise.
func (g *Grid) CellValue(row Row, columnID string) (string, bool) {
	if v, ok := g.edits.Value(CellKey{RowID: row.ID, ColumnID: columnID}); ok {
		return v, true
	}
	return row.Value(columnID), false
}

// Edit returns the edit entry for a cell.
func (g *Grid) Edit(rowID, columnID string) (EditEntry, bool) {
	return g.edits.Entry(CellKey{RowID: g.ResolveRowID(rowID), ColumnID: columnID})
}

// PendingEdits is the number of open edit entries.
func (g *Grid) PendingEdits() int {
	return g.edits.Len()
}
