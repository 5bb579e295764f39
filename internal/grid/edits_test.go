package grid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateValue(t *testing.T) {
	tests := []struct {
		name    string
		typ     ColumnType
		value   string
		wantErr bool
	}{
		{name: "integer", typ: ColumnNumber, value: "12"},
		{name: "negative decimal", typ: ColumnNumber, value: "-3.5"},
		{name: "exponent", typ: ColumnNumber, value: "1e3"},
		{name: "empty clears", typ: ColumnNumber, value: ""},
		{name: "blank clears", typ: ColumnNumber, value: "  "},
		{name: "letters", typ: ColumnNumber, value: "abc", wantErr: true},
		{name: "trailing garbage", typ: ColumnNumber, value: "12px", wantErr: true},
		{name: "not a number literal", typ: ColumnNumber, value: "NaN", wantErr: true},
		{name: "overflow", typ: ColumnNumber, value: "1e400", wantErr: true},
		{name: "text accepts anything", typ: ColumnText, value: "abc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateValue(tt.typ, tt.value)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidNumber)
				assert.ErrorIs(t, err, ErrValidation)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestEditBufferRejectsInvalidNumbers(t *testing.T) {
	b := NewEditBuffer(PlaceholderDefer)
	key := CellKey{RowID: "r1", ColumnID: "age"}
	b.Begin(key, "1")

	require.NoError(t, b.Update(key, "12", ColumnNumber))
	assert.Error(t, b.Update(key, "12a", ColumnNumber))
	v, ok := b.Value(key)
	require.True(t, ok)
	assert.Equal(t, "12", v, "last valid value is kept")

	assert.ErrorIs(t, b.Update(CellKey{RowID: "r2", ColumnID: "age"}, "1", ColumnNumber), ErrNoEdit)
}

func TestEditBufferBeginKeepsExistingValue(t *testing.T) {
	b := NewEditBuffer(PlaceholderDefer)
	key := CellKey{RowID: "r1", ColumnID: "name"}
	b.Begin(key, "old")
	require.NoError(t, b.Update(key, "typed", ColumnText))
	b.Begin(key, "old")
	v, _ := b.Value(key)
	assert.Equal(t, "typed", v)
}

func TestEditBufferUnchangedCommitIsLocal(t *testing.T) {
	b := NewEditBuffer(PlaceholderDefer)
	key := CellKey{RowID: "r1", ColumnID: "name"}
	b.Begin(key, "same")

	_, outcome, err := b.Commit(key)
	require.NoError(t, err)
	assert.Equal(t, CommitUnchanged, outcome)
	assert.Equal(t, 0, b.Len())

	_, _, err = b.Commit(key)
	assert.ErrorIs(t, err, ErrNoEdit)
}

func TestEditBufferLastWriteWins(t *testing.T) {
	b := NewEditBuffer(PlaceholderDefer)
	key := CellKey{RowID: "r1", ColumnID: "name"}
	b.Begin(key, "v0")

	require.NoError(t, b.Update(key, "a", ColumnText))
	first, outcome, err := b.Commit(key)
	require.NoError(t, err)
	require.Equal(t, CommitIssued, outcome)

	require.NoError(t, b.Update(key, "b", ColumnText))
	second, _, err := b.Commit(key)
	require.NoError(t, err)
	assert.Greater(t, second.Seq, first.Seq)

	// Responses arrive in reverse order.
	assert.True(t, b.Resolve(CommitResult{Request: second, Cell: Cell{RowID: "r1", ColumnID: "name", Value: "b"}}))
	assert.False(t, b.Resolve(CommitResult{Request: first, Cell: Cell{RowID: "r1", ColumnID: "name", Value: "a"}}))
	assert.Equal(t, 0, b.Len())
}

func TestEditBufferKeepsNewerTyping(t *testing.T) {
	b := NewEditBuffer(PlaceholderDefer)
	key := CellKey{RowID: "r1", ColumnID: "name"}
	b.Begin(key, "v0")
	require.NoError(t, b.Update(key, "a", ColumnText))
	req, _, err := b.Commit(key)
	require.NoError(t, err)
	require.NoError(t, b.Update(key, "ab", ColumnText))

	assert.True(t, b.Resolve(CommitResult{Request: req, Cell: Cell{RowID: "r1", ColumnID: "name", Value: "a"}}))
	e, ok := b.Entry(key)
	require.True(t, ok)
	assert.Equal(t, "ab", e.Value)
	assert.Equal(t, "a", e.Original)
	assert.False(t, e.Pending)
}

func TestEditBufferCommitErrors(t *testing.T) {
	b := NewEditBuffer(PlaceholderDefer)
	key := CellKey{RowID: "r1", ColumnID: "name"}
	b.Begin(key, "v0")
	require.NoError(t, b.Update(key, "a", ColumnText))
	req, _, _ := b.Commit(key)

	assert.False(t, b.Resolve(CommitResult{Request: req, Err: ErrNetwork}))
	e, ok := b.Entry(key)
	require.True(t, ok, "entry survives a network failure")
	assert.ErrorIs(t, e.Err, ErrNetwork)
	assert.False(t, e.Pending)

	req, outcome, err := b.Commit(key)
	require.NoError(t, err)
	assert.Equal(t, CommitIssued, outcome, "failed entry can be retried")

	assert.False(t, b.Resolve(CommitResult{Request: req, Err: ErrNotFound}))
	_, ok = b.Entry(key)
	assert.False(t, ok, "entry for a deleted row is discarded")
}

func TestEditBufferPlaceholderPolicies(t *testing.T) {
	key := CellKey{RowID: TempIDPrefix + "1", ColumnID: "name"}

	deferred := NewEditBuffer(PlaceholderDefer)
	deferred.Begin(key, "")
	require.NoError(t, deferred.Update(key, "x", ColumnText))
	_, outcome, err := deferred.Commit(key)
	require.NoError(t, err)
	assert.Equal(t, CommitDeferred, outcome)
	e, _ := deferred.Entry(key)
	assert.True(t, e.Deferred)

	replay := deferred.Rekey(map[string]string{key.RowID: "r9"})
	assert.Equal(t, []CellKey{{RowID: "r9", ColumnID: "name"}}, replay)
	v, ok := deferred.Value(CellKey{RowID: "r9", ColumnID: "name"})
	assert.True(t, ok)
	assert.Equal(t, "x", v)

	dropped := NewEditBuffer(PlaceholderDrop)
	dropped.Begin(key, "")
	require.NoError(t, dropped.Update(key, "x", ColumnText))
	_, outcome, err = dropped.Commit(key)
	require.NoError(t, err)
	assert.Equal(t, CommitDropped, outcome)
	assert.Equal(t, 0, dropped.Len())
}

func TestEditBufferDropRowAndColumn(t *testing.T) {
	b := NewEditBuffer(PlaceholderDefer)
	b.Begin(CellKey{RowID: "r1", ColumnID: "a"}, "")
	b.Begin(CellKey{RowID: "r1", ColumnID: "b"}, "")
	b.Begin(CellKey{RowID: "r2", ColumnID: "a"}, "")

	assert.Equal(t, 2, b.DropRow("r1"))
	assert.Equal(t, 1, b.Len())
	b.DropColumn("a")
	assert.Equal(t, 0, b.Len())
}

func TestParsePlaceholderPolicy(t *testing.T) {
	p, err := ParsePlaceholderPolicy("DROP")
	require.NoError(t, err)
	assert.Equal(t, PlaceholderDrop, p)

	p, err = ParsePlaceholderPolicy("")
	require.NoError(t, err)
	assert.Equal(t, PlaceholderDefer, p)

	_, err = ParsePlaceholderPolicy("later")
	assert.Error(t, err)
}
