package grid

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rowsWithIDs(ids ...string) []Row {
	out := make([]Row, 0, len(ids))
	for _, id := range ids {
		out = append(out, Row{ID: id, Cells: map[string]string{"c": id}})
	}
	return out
}

func ids(rows []Row) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.ID)
	}
	return out
}

func TestPageStoreDeduplicatesRequests(t *testing.T) {
	s := NewPageStore(2)
	key := SourceKey{TableID: "t"}

	req, ok := s.Request(key, "")
	require.True(t, ok)
	assert.Equal(t, 2, req.Limit)
	assert.True(t, s.InFlight(key))

	_, ok = s.Request(key, "")
	assert.False(t, ok, "second request while in flight")
	_, ok = s.RequestNext(key)
	assert.False(t, ok)
}

func TestPageStoreAppendsPagesInOrder(t *testing.T) {
	s := NewPageStore(2)
	key := SourceKey{TableID: "t"}

	req, ok := s.Request(key, "")
	require.True(t, ok)
	require.NoError(t, s.Resolve(req, Page{Rows: rowsWithIDs("a", "b"), NextCursor: "c1", TotalCount: 3, HasTotal: true}))

	_, ok = s.Request(key, "bogus")
	assert.False(t, ok, "cursor must match the expected continuation")

	req, ok = s.RequestNext(key)
	require.True(t, ok)
	assert.Equal(t, "c1", req.Cursor)
	require.NoError(t, s.Resolve(req, Page{Rows: rowsWithIDs("c"), TotalCount: 99, HasTotal: true}))

	if diff := cmp.Diff([]string{"a", "b", "c"}, ids(s.Rows(key))); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
	total, ok := s.Total(key)
	assert.True(t, ok)
	assert.Equal(t, 3, total, "total comes from the first page only")
	assert.False(t, s.HasMore(key))
	_, ok = s.RequestNext(key)
	assert.False(t, ok, "exhausted stream")
}

func TestPageStoreDiscardsStalePages(t *testing.T) {
	s := NewPageStore(2)
	key := SourceKey{TableID: "t"}

	old, ok := s.Request(key, "")
	require.True(t, ok)
	s.Reset(key)

	fresh, ok := s.Request(key, "")
	require.True(t, ok)
	assert.ErrorIs(t, s.Resolve(old, Page{Rows: rowsWithIDs("x")}), ErrStalePage)
	assert.Equal(t, 0, s.Len(key))

	require.NoError(t, s.Resolve(fresh, Page{Rows: rowsWithIDs("a"), NextCursor: "c1"}))
	dup := fresh
	assert.ErrorIs(t, s.Resolve(dup, Page{Rows: rowsWithIDs("a")}), ErrStalePage, "same cursor twice")
	assert.Equal(t, []string{"a"}, ids(s.Rows(key)))
}

func TestPageStoreFailKeepsRows(t *testing.T) {
	s := NewPageStore(2)
	key := SourceKey{TableID: "t"}

	req, _ := s.Request(key, "")
	require.NoError(t, s.Resolve(req, Page{Rows: rowsWithIDs("a", "b"), NextCursor: "c1"}))

	req, ok := s.RequestNext(key)
	require.True(t, ok)
	s.Fail(req, ErrNetwork)
	assert.False(t, s.InFlight(key))
	assert.ErrorIs(t, s.Err(key), ErrNetwork)
	assert.Equal(t, 2, s.Len(key))
	assert.Equal(t, "c1", s.NextCursor(key))

	_, ok = s.RequestNext(key)
	assert.True(t, ok)
	assert.NoError(t, s.Err(key), "a new request clears the error")
}

func TestPageStoreClonesRows(t *testing.T) {
	s := NewPageStore(10)
	key := SourceKey{TableID: "t"}
	page := Page{Rows: rowsWithIDs("a")}

	req, _ := s.Request(key, "")
	require.NoError(t, s.Resolve(req, page))
	page.Rows[0].Cells["c"] = "mutated"
	assert.Equal(t, "a", s.Rows(key)[0].Value("c"))
}

func TestPageRequestRun(t *testing.T) {
	ds := newFakeSource(3)
	ctx := context.Background()

	res := PageRequest{Key: SourceKey{TableID: "people"}, Limit: 2}.Run(ctx, ds)
	require.NoError(t, res.Err)
	assert.Len(t, res.Page.Rows, 2)
	assert.Equal(t, "2", res.Page.NextCursor)

	res = PageRequest{Key: SourceKey{TableID: "people", Term: "name-3"}, Cursor: "ignored"}.Run(ctx, ds)
	require.NoError(t, res.Err)
	assert.Equal(t, []string{"r3"}, ids(res.Page.Rows))
	assert.Empty(t, res.Page.NextCursor)
	assert.Equal(t, 1, ds.count("search"))

	expired, cancel := context.WithTimeout(ctx, 0)
	defer cancel()
	res = PageRequest{Key: SourceKey{TableID: "people"}, Limit: 2}.Run(expired, ds)
	require.Error(t, res.Err)
	assert.True(t, errors.Is(res.Err, ErrTimeout))
	assert.Equal(t, KindTimeout, Classify(res.Err))
	assert.True(t, Retryable(res.Err))
}
