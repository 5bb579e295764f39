package grid

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seededStore(t *testing.T, key SourceKey, rowIDs ...string) *PageStore {
	t.Helper()
	s := NewPageStore(10)
	req, ok := s.Request(key, "")
	require.True(t, ok)
	require.NoError(t, s.Resolve(req, Page{Rows: rowsWithIDs(rowIDs...), TotalCount: len(rowIDs), HasTotal: true}))
	return s
}

func TestAddPlaceholder(t *testing.T) {
	key := SourceKey{TableID: "t"}
	s := seededStore(t, key, "r1")
	p := NewPendingRows(ReconcileSweep)

	batch, rows := p.AddPlaceholder(s, key, 2, []Column{{ID: "a"}, {ID: "b"}})
	assert.Equal(t, 2, batch.Count())
	assert.Equal(t, []string{"r1", "temp-1", "temp-2"}, ids(s.Rows(key)))
	for _, r := range rows {
		assert.True(t, r.IsPlaceholder())
		assert.Equal(t, map[string]string{"a": "", "b": ""}, r.Cells)
	}
	assert.Equal(t, 1, p.Outstanding())
	assert.True(t, p.HasBatchFor(key))
}

func TestReconcileSweepRemovesEveryPlaceholder(t *testing.T) {
	key := SourceKey{TableID: "t"}
	s := seededStore(t, key, "r1")
	p := NewPendingRows(ReconcileSweep)

	first, _ := p.AddPlaceholder(s, key, 1, nil)
	second, _ := p.AddPlaceholder(s, key, 2, nil)
	require.Equal(t, []string{"r1", "temp-1", "temp-2", "temp-3"}, ids(s.Rows(key)))

	mapping := p.Reconcile(s, first, rowsWithIDs("rA"))
	assert.Equal(t, map[string]string{"temp-1": "rA"}, mapping)
	assert.Equal(t, []string{"r1", "rA"}, ids(s.Rows(key)), "the second batch's placeholders are swept too")
	assert.Equal(t, 0, p.Outstanding())

	mapping = p.Reconcile(s, second, rowsWithIDs("rB", "rC"))
	assert.Empty(t, mapping)
	assert.Equal(t, []string{"r1", "rA", "rB", "rC"}, ids(s.Rows(key)))

	total, _ := s.Total(key)
	assert.Equal(t, 4, total)
}

func TestReconcileHundredPlaceholders(t *testing.T) {
	key := SourceKey{TableID: "t"}
	s := seededStore(t, key)
	p := NewPendingRows(ReconcileSweep)

	batch, rows := p.AddPlaceholder(s, key, 100, []Column{{ID: "a"}})
	require.Len(t, rows, 100)
	assert.Equal(t, 100, s.Len(key))

	persisted := make([]string, 100)
	for i := range persisted {
		persisted[i] = fmt.Sprintf("r%03d", i)
	}
	mapping := p.Reconcile(s, batch, rowsWithIDs(persisted...))
	assert.Len(t, mapping, 100)
	assert.Equal(t, "r000", mapping[rows[0].ID])
	assert.Equal(t, "r099", mapping[rows[99].ID])

	assert.Equal(t, persisted, ids(s.Rows(key)))
	for _, r := range s.Rows(key) {
		assert.False(t, r.IsPlaceholder())
	}
	assert.Equal(t, 0, p.Outstanding())
}

func TestReconcileBatchReplacesInPlace(t *testing.T) {
	key := SourceKey{TableID: "t"}
	s := seededStore(t, key, "r1")
	p := NewPendingRows(ReconcileBatch)

	first, _ := p.AddPlaceholder(s, key, 1, nil)
	second, _ := p.AddPlaceholder(s, key, 2, nil)

	mapping := p.Reconcile(s, second, rowsWithIDs("rB", "rC"))
	assert.Equal(t, map[string]string{"temp-2": "rB", "temp-3": "rC"}, mapping)
	assert.Equal(t, []string{"r1", "temp-1", "rB", "rC"}, ids(s.Rows(key)))
	assert.Equal(t, 1, p.Outstanding())

	p.Reconcile(s, first, rowsWithIDs("rA"))
	assert.Equal(t, []string{"r1", "rA", "rB", "rC"}, ids(s.Rows(key)))
}

func TestRollback(t *testing.T) {
	tests := []struct {
		name        string
		mode        ReconcileMode
		wantRows    []string
		wantRemoved []string
	}{
		{
			name:        "sweep removes all placeholders",
			mode:        ReconcileSweep,
			wantRows:    []string{"r1"},
			wantRemoved: []string{"temp-1", "temp-2"},
		},
		{
			name:        "batch removes its own placeholders",
			mode:        ReconcileBatch,
			wantRows:    []string{"r1", "temp-1"},
			wantRemoved: []string{"temp-2"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := SourceKey{TableID: "t"}
			s := seededStore(t, key, "r1")
			p := NewPendingRows(tt.mode)
			p.AddPlaceholder(s, key, 1, nil)
			failed, _ := p.AddPlaceholder(s, key, 1, nil)

			removed := p.Rollback(s, failed)
			assert.Equal(t, tt.wantRemoved, removed)
			assert.Equal(t, tt.wantRows, ids(s.Rows(key)))
		})
	}
}

func TestReconcileFallsBackToUnfilteredStream(t *testing.T) {
	base := SourceKey{TableID: "t"}
	search := SourceKey{TableID: "t", Term: "x"}
	s := seededStore(t, base, "r1")
	p := NewPendingRows(ReconcileSweep)

	batch, _ := p.AddPlaceholder(s, search, 1, nil)
	s.Reset(search)

	p.Reconcile(s, batch, rowsWithIDs("rA"))
	assert.Equal(t, []string{"r1", "rA"}, ids(s.Rows(base)))
}

func TestParseReconcileMode(t *testing.T) {
	m, err := ParseReconcileMode("Batch")
	require.NoError(t, err)
	assert.Equal(t, ReconcileBatch, m)

	m, err = ParseReconcileMode("")
	require.NoError(t, err)
	assert.Equal(t, ReconcileSweep, m)

	_, err = ParseReconcileMode("merge")
	assert.Error(t, err)
}
