package grid

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// PlaceholderPolicy controls what happens to commits on rows that have not
// been persisted yet.
type PlaceholderPolicy int

const (
	// PlaceholderDefer keeps the edit and replays the commit once the row has a real id.
	PlaceholderDefer PlaceholderPolicy = iota
	// PlaceholderDrop discards the edit.
	PlaceholderDrop
)

// ParsePlaceholderPolicy accepts "defer" or "drop".
func ParsePlaceholderPolicy(s string) (PlaceholderPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "defer":
		return PlaceholderDefer, nil
	case "drop":
		return PlaceholderDrop, nil
	default:
		return PlaceholderDefer, fmt.Errorf("placeholder edit policy must be defer or drop, got %q", s)
	}
}

// EditEntry is an uncommitted cell value.
type EditEntry struct {
	Key      CellKey
	Value    string
	Original string
	Deferred bool  // waiting for the placeholder row to be persisted
	Pending  bool  // a commit is in flight
	Err      error // last commit failure, kept for the user to retry
}

// CommitOutcome says what Commit did with an entry.
type CommitOutcome int

const (
	CommitIssued    CommitOutcome = iota // a request must be run
	CommitUnchanged                      // value equals the committed one; entry cleared
	CommitDeferred                       // placeholder row, replayed after reconciliation
	CommitDropped                        // placeholder row, edit discarded
)

// CommitRequest persists one cell value.
type CommitRequest struct {
	Key   CellKey
	Value string
	Seq   uint64
}

// CommitResult is the outcome of running a CommitRequest.
type CommitResult struct {
	Request CommitRequest
	Cell    Cell
	Err     error
}

// Run calls the persistence collaborator.
func (r CommitRequest) Run(ctx context.Context, ds DataSource) CommitResult {
	cell, err := ds.UpdateCell(ctx, r.Key.RowID, r.Key.ColumnID, r.Value)
	if err != nil {
		err = fmt.Errorf("update cell %s/%s: %w", r.Key.RowID, r.Key.ColumnID, normalizeErr(ctx, err))
	}
	return CommitResult{Request: r, Cell: cell, Err: err}
}

// EditBuffer holds in-progress edits separately from committed row data so
// typing never touches the page streams.
type EditBuffer struct {
	entries map[CellKey]*EditEntry
	seq     map[CellKey]uint64
	policy  PlaceholderPolicy
}

// NewEditBuffer creates an empty buffer.
func NewEditBuffer(policy PlaceholderPolicy) *EditBuffer {
	return &EditBuffer{
		entries: make(map[CellKey]*EditEntry),
		seq:     make(map[CellKey]uint64),
		policy:  policy,
	}
}

// ValidateValue applies the column type's input policy.
func ValidateValue(typ ColumnType, value string) error {
	if typ != ColumnNumber {
		return nil
	}
	v := strings.TrimSpace(value)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("%q: %w", value, ErrInvalidNumber)
	}
	return nil
}

// Begin opens an entry for the cell. An existing entry keeps its value.
func (b *EditBuffer) Begin(key CellKey, current string) {
	if _, ok := b.entries[key]; ok {
		return
	}
	b.entries[key] = &EditEntry{Key: key, Value: current, Original: current}
}

// Update replaces the entry value. Invalid values for NUMBER columns are
// rejected and the last valid value is kept.
func (b *EditBuffer) Update(key CellKey, value string, typ ColumnType) error {
	e, ok := b.entries[key]
	if !ok {
		return fmt.Errorf("%s/%s: %w", key.RowID, key.ColumnID, ErrNoEdit)
	}
	if err := ValidateValue(typ, value); err != nil {
		return err
	}
	e.Value = value
	return nil
}

// Value returns the in-progress value for key.
func (b *EditBuffer) Value(key CellKey) (string, bool) {
	e, ok := b.entries[key]
	if !ok {
		return "", false
	}
	return e.Value, true
}

// Entry returns a copy of the entry for key.
func (b *EditBuffer) Entry(key CellKey) (EditEntry, bool) {
	e, ok := b.entries[key]
	if !ok {
		return EditEntry{}, false
	}
	return *e, true
}

// Len is the number of open entries.
func (b *EditBuffer) Len() int {
	return len(b.entries)
}

// Entries returns copies of all entries ordered by row then column id.
func (b *EditBuffer) Entries() []EditEntry {
	out := make([]EditEntry, 0, len(b.entries))
	for _, e := range b.entries {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Key.RowID != out[j].Key.RowID {
			return out[i].Key.RowID < out[j].Key.RowID
		}
		return out[i].Key.ColumnID < out[j].Key.ColumnID
	})
	return out
}

// Cancel discards the entry.
func (b *EditBuffer) Cancel(key CellKey) {
	delete(b.entries, key)
}

// Commit prepares the entry for persistence. Each issued request carries a
// per-key sequence number; only the latest one is honored on arrival.
func (b *EditBuffer) Commit(key CellKey) (CommitRequest, CommitOutcome, error) {
	e, ok := b.entries[key]
	if !ok {
		return CommitRequest{}, 0, fmt.Errorf("%s/%s: %w", key.RowID, key.ColumnID, ErrNoEdit)
	}
	if IsPlaceholderID(key.RowID) {
		if b.policy == PlaceholderDrop {
			delete(b.entries, key)
			return CommitRequest{}, CommitDropped, nil
		}
		e.Deferred = true
		return CommitRequest{}, CommitDeferred, nil
	}
	if e.Value == e.Original && !e.Pending && !e.Deferred && e.Err == nil {
		delete(b.entries, key)
		return CommitRequest{}, CommitUnchanged, nil
	}
	b.seq[key]++
	e.Pending = true
	e.Deferred = false
	e.Err = nil
	return CommitRequest{Key: key, Value: e.Value, Seq: b.seq[key]}, CommitIssued, nil
}

// Resolve applies a commit result to the buffer and reports whether the
// committed value should be written into the row data. Responses overtaken
// by a newer commit on the same key are ignored.
func (b *EditBuffer) Resolve(res CommitResult) bool {
	key := res.Request.Key
	if res.Request.Seq != b.seq[key] {
		return false
	}
	e, ok := b.entries[key]
	if res.Err != nil {
		if !ok {
			return false
		}
		e.Pending = false
		if errors.Is(res.Err, ErrNotFound) {
			delete(b.entries, key)
			return false
		}
		e.Err = res.Err
		return false
	}
	if ok {
		if e.Value == res.Cell.Value {
			delete(b.entries, key)
		} else {
			// Typed on while the commit was in flight; keep the newer text.
			e.Pending = false
			e.Original = res.Cell.Value
		}
	}
	return true
}

// Rekey moves entries of reconciled placeholder rows to their real ids and
// returns the keys whose commits were deferred and must be replayed.
func (b *EditBuffer) Rekey(mapping map[string]string) []CellKey {
	var replay []CellKey
	for key, e := range b.entries {
		realID, ok := mapping[key.RowID]
		if !ok {
			continue
		}
		delete(b.entries, key)
		nk := CellKey{RowID: realID, ColumnID: key.ColumnID}
		e.Key = nk
		b.entries[nk] = e
		if e.Deferred {
			replay = append(replay, nk)
		}
	}
	sort.Slice(replay, func(i, j int) bool {
		if replay[i].RowID != replay[j].RowID {
			return replay[i].RowID < replay[j].RowID
		}
		return replay[i].ColumnID < replay[j].ColumnID
	})
	return replay
}

// DropRow discards every entry belonging to rowID.
func (b *EditBuffer) DropRow(rowID string) int {
	n := 0
	for key := range b.entries {
		if key.RowID == rowID {
			delete(b.entries, key)
			n++
		}
	}
	return n
}

// DropColumn discards every entry belonging to columnID.
func (b *EditBuffer) DropColumn(columnID string) {
	for key := range b.entries {
		if key.ColumnID == columnID {
			delete(b.entries, key)
		}
	}
}
