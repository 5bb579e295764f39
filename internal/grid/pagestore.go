package grid

import (
	"context"
	"fmt"
)

// PageRequest is an outstanding fetch for one page of a stream.
// It is safe to Run on any goroutine; it carries no reference to grid state.
type PageRequest struct {
	Key    SourceKey
	Cursor string
	Limit  int
	gen    uint64
}

// PageResult is the outcome of running a PageRequest.
type PageResult struct {
	Request PageRequest
	Page    Page
	Err     error
}

// Run performs the fetch. Search streams are single shot and ignore the cursor.
func (r PageRequest) Run(ctx context.Context, ds DataSource) PageResult {
	var (
		page Page
		err  error
	)
	if r.Key.Filtered() {
		page, err = ds.SearchRows(ctx, r.Key.TableID, r.Key.Term)
		page.NextCursor = ""
	} else {
		page, err = ds.FetchPage(ctx, r.Key.TableID, r.Cursor, r.Limit)
	}
	if err != nil {
		err = fmt.Errorf("fetch %s: %w", r.Key, normalizeErr(ctx, err))
	}
	return PageResult{Request: r, Page: page, Err: err}
}

// stream is the ordered concatenation of all pages fetched for one source.
type stream struct {
	rows       []Row
	columns    []Column
	nextCursor string
	loaded     bool // first page arrived
	exhausted  bool
	inFlight   bool
	total      int
	hasTotal   bool
	gen        uint64
	err        error
}

// PageStore keeps one page stream per source key.
type PageStore struct {
	pageSize int
	streams  map[SourceKey]*stream
	gen      uint64
}

// NewPageStore creates a store that requests pageSize rows per page.
func NewPageStore(pageSize int) *PageStore {
	if pageSize <= 0 {
		pageSize = 100
	}
	return &PageStore{
		pageSize: pageSize,
		streams:  make(map[SourceKey]*stream),
	}
}

func (s *PageStore) stream(key SourceKey) *stream {
	st, ok := s.streams[key]
	if !ok {
		s.gen++
		st = &stream{gen: s.gen}
		s.streams[key] = st
	}
	return st
}

// Request starts a fetch of the next page for key. It returns false when a
// fetch for key is already in flight (the pending one will deliver) or when
// the stream has no more pages. The cursor must match the stream's expected
// next cursor; pass "" for the first page.
func (s *PageStore) Request(key SourceKey, cursor string) (PageRequest, bool) {
	st := s.stream(key)
	if st.inFlight || st.exhausted {
		return PageRequest{}, false
	}
	if (st.loaded && cursor != st.nextCursor) || (!st.loaded && cursor != "") {
		return PageRequest{}, false
	}
	st.inFlight = true
	st.err = nil
	return PageRequest{Key: key, Cursor: cursor, Limit: s.pageSize, gen: st.gen}, true
}

// RequestNext requests the page following whatever has been loaded for key.
func (s *PageStore) RequestNext(key SourceKey) (PageRequest, bool) {
	return s.Request(key, s.stream(key).nextCursor)
}

func (s *PageStore) current(req PageRequest) (*stream, bool) {
	st, ok := s.streams[req.Key]
	if !ok || st.gen != req.gen {
		return nil, false
	}
	return st, true
}

// Resolve appends a fetched page. Pages for a dropped or reset stream, or
// whose cursor no longer matches the expected next cursor, are discarded
// with ErrStalePage.
func (s *PageStore) Resolve(req PageRequest, page Page) error {
	st, ok := s.current(req)
	if !ok {
		return ErrStalePage
	}
	expected := ""
	if st.loaded {
		expected = st.nextCursor
	}
	if req.Cursor != expected {
		st.inFlight = false
		return ErrStalePage
	}
	st.inFlight = false
	st.err = nil
	for _, r := range page.Rows {
		st.rows = append(st.rows, r.Clone())
	}
	if len(page.Columns) > 0 || !st.loaded {
		st.columns = append([]Column(nil), page.Columns...)
	}
	if !st.loaded && page.HasTotal {
		st.total = page.TotalCount
		st.hasTotal = true
	}
	st.loaded = true
	st.nextCursor = page.NextCursor
	st.exhausted = page.NextCursor == ""
	return nil
}

// Fail records a failed fetch. Rows are left unchanged; nothing is retried.
func (s *PageStore) Fail(req PageRequest, err error) {
	st, ok := s.current(req)
	if !ok {
		return
	}
	st.inFlight = false
	st.err = err
}

// Reset forgets everything fetched for key. Responses still in flight for
// the old stream are discarded when they arrive.
func (s *PageStore) Reset(key SourceKey) {
	delete(s.streams, key)
}

// Has reports whether a stream exists for key.
func (s *PageStore) Has(key SourceKey) bool {
	_, ok := s.streams[key]
	return ok
}

// Keys returns every stream key currently held.
func (s *PageStore) Keys() []SourceKey {
	keys := make([]SourceKey, 0, len(s.streams))
	for k := range s.streams {
		keys = append(keys, k)
	}
	return keys
}

// Rows returns the flattened stream for key. Callers must not modify it.
func (s *PageStore) Rows(key SourceKey) []Row {
	if st, ok := s.streams[key]; ok {
		return st.rows
	}
	return nil
}

// Len is the number of rows loaded for key.
func (s *PageStore) Len(key SourceKey) int {
	return len(s.Rows(key))
}

// HasMore reports whether another page may exist for key.
func (s *PageStore) HasMore(key SourceKey) bool {
	st, ok := s.streams[key]
	if !ok {
		return true
	}
	return !st.exhausted
}

// InFlight reports whether a fetch for key is pending.
func (s *PageStore) InFlight(key SourceKey) bool {
	st, ok := s.streams[key]
	return ok && st.inFlight
}

// Loaded reports whether the first page for key has arrived.
func (s *PageStore) Loaded(key SourceKey) bool {
	st, ok := s.streams[key]
	return ok && st.loaded
}

// Err returns the last fetch error for key, cleared by the next request.
func (s *PageStore) Err(key SourceKey) error {
	if st, ok := s.streams[key]; ok {
		return st.err
	}
	return nil
}

// NextCursor returns the continuation cursor for key.
func (s *PageStore) NextCursor(key SourceKey) string {
	if st, ok := s.streams[key]; ok {
		return st.nextCursor
	}
	return ""
}

// Total returns the total-count hint delivered with the first page.
func (s *PageStore) Total(key SourceKey) (int, bool) {
	if st, ok := s.streams[key]; ok && st.hasTotal {
		return st.total, true
	}
	return 0, false
}

// Columns returns the columns delivered with the stream's pages.
func (s *PageStore) Columns(key SourceKey) []Column {
	if st, ok := s.streams[key]; ok {
		return st.columns
	}
	return nil
}

// Append adds rows to the tail of a stream, creating it if needed.
func (s *PageStore) Append(key SourceKey, rows ...Row) {
	st := s.stream(key)
	for _, r := range rows {
		st.rows = append(st.rows, r.Clone())
	}
}

// replaceRows swaps the row slice of a stream; used by reconciliation.
func (s *PageStore) replaceRows(key SourceKey, rows []Row) {
	s.stream(key).rows = rows
}

// adjustTotal shifts the total-count hint when rows are created locally.
func (s *PageStore) adjustTotal(key SourceKey, delta int) {
	if st, ok := s.streams[key]; ok && st.hasTotal {
		st.total += delta
	}
}

// update applies fn to every row with the given id across all streams and
// reports how many rows it touched.
func (s *PageStore) update(rowID string, fn func(*Row)) int {
	n := 0
	for _, st := range s.streams {
		for i := range st.rows {
			if st.rows[i].ID == rowID {
				fn(&st.rows[i])
				n++
			}
		}
	}
	return n
}

// each calls fn for every row of every stream.
func (s *PageStore) each(fn func(*Row)) {
	for _, st := range s.streams {
		for i := range st.rows {
			fn(&st.rows[i])
		}
	}
}
