package grid

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// ReconcileMode selects how persisted rows replace placeholders.
type ReconcileMode int

const (
	// ReconcileSweep removes every placeholder in the stream on success or
	// failure of any batch, including batches still in flight.
	ReconcileSweep ReconcileMode = iota
	// ReconcileBatch replaces only the placeholders of the resolving batch, in place.
	ReconcileBatch
)

// ParseReconcileMode accepts "sweep" or "batch".
func ParseReconcileMode(s string) (ReconcileMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "sweep":
		return ReconcileSweep, nil
	case "batch":
		return ReconcileBatch, nil
	default:
		return ReconcileSweep, fmt.Errorf("reconcile mode must be sweep or batch, got %q", s)
	}
}

// Batch is one add-rows operation awaiting persistence.
type Batch struct {
	ID     uint64
	Key    SourceKey
	RowIDs []string
}

// Count is the number of rows the batch asked for.
func (b Batch) Count() int {
	return len(b.RowIDs)
}

// CreateRowsRequest persists a placeholder batch. A batch of one uses the
// single-row collaborator.
type CreateRowsRequest struct {
	Batch Batch
}

// CreateRowsResult is the outcome of running a CreateRowsRequest.
type CreateRowsResult struct {
	Request CreateRowsRequest
	Rows    []Row
	Err     error
}

// Run calls CreateRow or CreateRows.
func (r CreateRowsRequest) Run(ctx context.Context, ds DataSource) CreateRowsResult {
	var (
		rows []Row
		err  error
	)
	if r.Batch.Count() == 1 {
		var row Row
		row, err = ds.CreateRow(ctx, r.Batch.Key.TableID)
		if err == nil {
			rows = []Row{row}
		}
	} else {
		rows, err = ds.CreateRows(ctx, r.Batch.Key.TableID, r.Batch.Count())
	}
	if err != nil {
		err = fmt.Errorf("create %d row(s): %w", r.Batch.Count(), normalizeErr(ctx, err))
	}
	return CreateRowsResult{Request: r, Rows: rows, Err: err}
}

// PendingRows tracks placeholder batches and swaps them for persisted rows.
type PendingRows struct {
	mode     ReconcileMode
	nextID   uint64
	nextTemp uint64
	batches  map[uint64]Batch
}

// NewPendingRows creates an empty buffer.
func NewPendingRows(mode ReconcileMode) *PendingRows {
	return &PendingRows{mode: mode, batches: make(map[uint64]Batch)}
}

// Mode returns the reconcile mode.
func (p *PendingRows) Mode() ReconcileMode {
	return p.mode
}

// Outstanding is the number of batches still awaiting persistence.
func (p *PendingRows) Outstanding() int {
	return len(p.batches)
}

// AddPlaceholder appends count empty placeholder rows to the tail of the
// stream for key and returns the batch describing them.
func (p *PendingRows) AddPlaceholder(store *PageStore, key SourceKey, count int, columns []Column) (Batch, []Row) {
	p.nextID++
	batch := Batch{ID: p.nextID, Key: key, RowIDs: make([]string, 0, count)}
	rows := make([]Row, 0, count)
	for range count {
		p.nextTemp++
		id := TempIDPrefix + strconv.FormatUint(p.nextTemp, 10)
		cells := make(map[string]string, len(columns))
		for _, c := range columns {
			cells[c.ID] = ""
		}
		rows = append(rows, Row{ID: id, Cells: cells})
		batch.RowIDs = append(batch.RowIDs, id)
	}
	store.Append(key, rows...)
	p.batches[batch.ID] = batch
	return batch, rows
}

// Reconcile replaces placeholders with the persisted rows and returns the
// mapping from the batch's placeholder ids to real ids, matched by position.
func (p *PendingRows) Reconcile(store *PageStore, batch Batch, realRows []Row) map[string]string {
	delete(p.batches, batch.ID)
	key := p.targetKey(store, batch)
	current := store.Rows(key)

	var (
		next    []Row
		removed []string
	)
	switch p.mode {
	case ReconcileBatch:
		own := make(map[string]bool, len(batch.RowIDs))
		for _, id := range batch.RowIDs {
			own[id] = true
		}
		next = make([]Row, 0, len(current)-len(batch.RowIDs)+len(realRows))
		inserted := false
		for _, r := range current {
			if !own[r.ID] {
				next = append(next, r)
				continue
			}
			removed = append(removed, r.ID)
			if !inserted {
				next = appendClones(next, realRows)
				inserted = true
			}
		}
		if !inserted {
			next = appendClones(next, realRows)
		}
	default:
		next = make([]Row, 0, len(current)+len(realRows))
		for _, r := range current {
			if r.IsPlaceholder() {
				removed = append(removed, r.ID)
				continue
			}
			next = append(next, r)
		}
		next = appendClones(next, realRows)
		// Every placeholder is gone, so no other batch can reconcile anymore.
		clear(p.batches)
	}
	store.replaceRows(key, next)
	store.adjustTotal(key, len(realRows))

	gone := make(map[string]bool, len(removed))
	for _, id := range removed {
		gone[id] = true
	}
	mapping := make(map[string]string, len(batch.RowIDs))
	for i, id := range batch.RowIDs {
		if i < len(realRows) && gone[id] {
			mapping[id] = realRows[i].ID
		}
	}
	return mapping
}

// Rollback removes placeholders after a failed persistence call and returns
// the removed ids.
func (p *PendingRows) Rollback(store *PageStore, batch Batch) []string {
	delete(p.batches, batch.ID)
	key := p.targetKey(store, batch)
	own := make(map[string]bool, len(batch.RowIDs))
	for _, id := range batch.RowIDs {
		own[id] = true
	}
	current := store.Rows(key)
	next := make([]Row, 0, len(current))
	var removed []string
	for _, r := range current {
		drop := own[r.ID]
		if p.mode == ReconcileSweep {
			drop = r.IsPlaceholder()
		}
		if drop {
			removed = append(removed, r.ID)
			continue
		}
		next = append(next, r)
	}
	if p.mode == ReconcileSweep {
		clear(p.batches)
	}
	store.replaceRows(key, next)
	return removed
}

// targetKey falls back to the unfiltered stream when the batch's stream was
// dropped, e.g. because the search that was active at the time changed.
func (p *PendingRows) targetKey(store *PageStore, batch Batch) SourceKey {
	if store.Has(batch.Key) {
		return batch.Key
	}
	return SourceKey{TableID: batch.Key.TableID}
}

// HasBatchFor reports whether any outstanding batch lives in the stream for key.
func (p *PendingRows) HasBatchFor(key SourceKey) bool {
	for _, b := range p.batches {
		if b.Key == key {
			return true
		}
	}
	return false
}

func appendClones(dst, rows []Row) []Row {
	for _, r := range rows {
		dst = append(dst, r.Clone())
	}
	return dst
}
