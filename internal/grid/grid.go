package grid

import (
	"fmt"
	"time"

	"github.com/go-logr/logr"
)

// Options configures a Grid.
type Options struct {
	TableID          string
	PageSize         int
	RowHeight        int
	Overscan         int
	Trigger          TriggerConfig
	SearchDebounce   time.Duration
	IndicatorLinger  time.Duration
	ReconcileMode    ReconcileMode
	PlaceholderEdits PlaceholderPolicy
	Logger           logr.Logger
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions(tableID string) Options {
	return Options{
		TableID:         tableID,
		PageSize:        100,
		RowHeight:       35,
		Overscan:        5,
		Trigger:         DefaultTriggerConfig(),
		SearchDebounce:  500 * time.Millisecond,
		IndicatorLinger: 300 * time.Millisecond,
		Logger:          logr.Discard(),
	}
}

// Effects is the work an operation hands back to the caller: requests to
// run off the event loop and timers to arm. Timers fire back into
// SearchDue and LingerDone.
type Effects struct {
	Pages    []PageRequest
	Commits  []CommitRequest
	Creates  []CreateRowsRequest
	Columns  []CreateColumnRequest
	Debounce *Ticket
	Linger   *Ticket
	// Rekeyed maps reconciled placeholder ids to their persisted ids, for
	// callers holding on to a row id.
	Rekeyed map[string]string
}

// Empty reports whether there is nothing to do.
func (e Effects) Empty() bool {
	return len(e.Pages) == 0 && len(e.Commits) == 0 && len(e.Creates) == 0 &&
		len(e.Columns) == 0 && e.Debounce == nil && e.Linger == nil
}

// Merge appends the work of o. The later timer of each kind wins.
func (e *Effects) Merge(o Effects) {
	e.Pages = append(e.Pages, o.Pages...)
	e.Commits = append(e.Commits, o.Commits...)
	e.Creates = append(e.Creates, o.Creates...)
	e.Columns = append(e.Columns, o.Columns...)
	if o.Debounce != nil {
		e.Debounce = o.Debounce
	}
	if o.Linger != nil {
		e.Linger = o.Linger
	}
	for from, to := range o.Rekeyed {
		if e.Rekeyed == nil {
			e.Rekeyed = make(map[string]string, len(o.Rekeyed))
		}
		e.Rekeyed[from] = to
	}
}

func pageEffects(req PageRequest, ok bool) Effects {
	if !ok {
		return Effects{}
	}
	return Effects{Pages: []PageRequest{req}}
}

// Status tells the renderer what to surface besides the rows.
type Status struct {
	Loading     bool  // first page of the active stream pending
	LoadingMore bool  // continuation page pending
	Blocking    error // active stream failed before any row arrived
	Notice      error // non-blocking failure
	Search      SearchState
	Outstanding int // placeholder batches awaiting persistence
}

type view struct {
	offset int
	row    int
	col    int
}

// Grid owns the state of one table instance.
type Grid struct {
	opts     Options
	log      logr.Logger
	columns  []Column
	pages    *PageStore
	pending  *PendingRows
	edits    *EditBuffer
	selector *Selector
	windower Windower
	trigger  *ScrollTrigger

	shown    SourceKey
	viewport int
	cur      view
	views    map[SourceKey]view
	notice   error
	closed   bool

	// reconciled remembers placeholder ids already swapped for real ones.
	reconciled map[string]string
}

// New creates a Grid. Zero-valued options fall back to DefaultOptions.
func New(opts Options) *Grid {
	def := DefaultOptions(opts.TableID)
	if opts.PageSize <= 0 {
		opts.PageSize = def.PageSize
	}
	if opts.RowHeight <= 0 {
		opts.RowHeight = def.RowHeight
	}
	if opts.Overscan < 0 {
		opts.Overscan = 0
	}
	if opts.Trigger == (TriggerConfig{}) {
		opts.Trigger = def.Trigger
	}
	if opts.SearchDebounce < 0 {
		opts.SearchDebounce = 0
	}
	if opts.IndicatorLinger < 0 {
		opts.IndicatorLinger = 0
	}
	if opts.Logger.GetSink() == nil {
		opts.Logger = logr.Discard()
	}
	key := SourceKey{TableID: opts.TableID}
	return &Grid{
		opts:     opts,
		log:      opts.Logger.WithValues("table", opts.TableID),
		pages:    NewPageStore(opts.PageSize),
		pending:  NewPendingRows(opts.ReconcileMode),
		edits:    NewEditBuffer(opts.PlaceholderEdits),
		selector: NewSelector(opts.TableID, opts.SearchDebounce, opts.IndicatorLinger),
		trigger:  NewScrollTrigger(opts.Trigger),
		shown:    key,
		views:    make(map[SourceKey]view),

		reconciled: make(map[string]string),
	}
}

// Options returns the effective options.
func (g *Grid) Options() Options {
	return g.opts
}

// Start requests the first page of the unfiltered stream.
func (g *Grid) Start() Effects {
	return pageEffects(g.pages.Request(SourceKey{TableID: g.opts.TableID}, ""))
}

// ResolveRowID returns the persisted id of a reconciled placeholder row, or
// id unchanged.
func (g *Grid) ResolveRowID(id string) string {
	if realID, ok := g.reconciled[id]; ok {
		return realID
	}
	return id
}

// Active is the key of the stream being rendered.
func (g *Grid) Active() SourceKey {
	return g.shown
}

// Rows returns the rendered stream. Callers must not modify it.
func (g *Grid) Rows() []Row {
	return g.pages.Rows(g.shown)
}

// Columns returns the column list in display order.
func (g *Grid) Columns() []Column {
	return g.columns
}

// Count is the window input count: rows plus a sentinel while more pages may exist.
func (g *Grid) Count() int {
	n := g.pages.Len(g.shown)
	if g.hasSentinel() {
		n++
	}
	return n
}

func (g *Grid) hasSentinel() bool {
	return !g.shown.Filtered() && g.pages.HasMore(g.shown)
}

// HasSentinel reports whether the last window index is the loading sentinel.
func (g *Grid) HasSentinel() bool {
	return g.hasSentinel()
}

// Offset returns the scroll offset of the rendered stream.
func (g *Grid) Offset() int {
	return g.cur.offset
}

// Viewport returns the viewport height.
func (g *Grid) Viewport() int {
	return g.viewport
}

// Cursor returns the selected row index and column index.
func (g *Grid) Cursor() (int, int) {
	return g.cur.row, g.cur.col
}

// CursorCell returns the ids of the selected cell.
func (g *Grid) CursorCell() (CellKey, bool) {
	rows := g.Rows()
	if g.cur.row < 0 || g.cur.row >= len(rows) || g.cur.col < 0 || g.cur.col >= len(g.columns) {
		return CellKey{}, false
	}
	return CellKey{RowID: rows[g.cur.row].ID, ColumnID: g.columns[g.cur.col].ID}, true
}

// Window returns the current materialization window.
func (g *Grid) Window() Window {
	g.refreshWindow()
	return g.windower.Last()
}

// VisibleRows returns the materialized rows with their stream indices. The
// sentinel is not included.
func (g *Grid) VisibleRows() ([]Row, int) {
	w := g.Window()
	rows := g.Rows()
	if w.Empty || w.Start >= len(rows) {
		return nil, max(w.Start, 0)
	}
	end := min(w.End, len(rows)-1)
	return rows[w.Start : end+1], w.Start
}

func (g *Grid) refreshWindow() bool {
	w, changed := g.windower.Update(WindowInput{
		Count:     g.Count(),
		Offset:    g.cur.offset,
		Viewport:  g.viewport,
		RowHeight: g.opts.RowHeight,
		Overscan:  g.opts.Overscan,
	})
	if !w.Empty {
		g.cur.offset = w.Offset
	} else {
		g.cur.offset = 0
	}
	return changed
}

// Resize sets the viewport height.
func (g *Grid) Resize(viewport int) Effects {
	g.viewport = max(viewport, 0)
	g.refreshWindow()
	g.followCursor()
	return g.CheckLoadMore()
}

// Scroll sets the scroll offset. The selection is pulled into view.
func (g *Grid) Scroll(offset int) Effects {
	g.cur.offset = offset
	g.refreshWindow()
	w := g.windower.Last()
	if n := g.pages.Len(g.shown); n > 0 && !w.Empty {
		lo := w.VisibleStart
		hi := min(w.VisibleEnd, n-1)
		g.cur.row = min(max(g.cur.row, lo), max(hi, lo))
		g.cur.row = min(g.cur.row, n-1)
	}
	return g.CheckLoadMore()
}

// ScrollBy moves the scroll offset by delta.
func (g *Grid) ScrollBy(delta int) Effects {
	return g.Scroll(g.cur.offset + delta)
}

// MoveCursor moves the selection and scrolls it into view.
func (g *Grid) MoveCursor(dRow, dCol int) Effects {
	return g.SetCursor(g.cur.row+dRow, g.cur.col+dCol)
}

// SetCursor selects an absolute cell and scrolls it into view.
func (g *Grid) SetCursor(row, col int) Effects {
	g.cur.row = row
	g.cur.col = col
	g.clampCursor()
	g.followCursor()
	return g.CheckLoadMore()
}

func (g *Grid) clampCursor() {
	n := g.pages.Len(g.shown)
	g.cur.row = min(max(g.cur.row, 0), max(n-1, 0))
	g.cur.col = min(max(g.cur.col, 0), max(len(g.columns)-1, 0))
}

func (g *Grid) followCursor() {
	h := g.opts.RowHeight
	top := g.cur.row * h
	switch {
	case top < g.cur.offset:
		g.cur.offset = top
	case g.viewport > 0 && top+h > g.cur.offset+g.viewport:
		g.cur.offset = top + h - g.viewport
	}
	g.refreshWindow()
}

// CheckLoadMore feeds the trigger with the current position and issues the
// next page request when it fires. Requests are gated on nothing being in
// flight for the stream and a continuation cursor being present.
func (g *Grid) CheckLoadMore() Effects {
	key := g.shown
	if g.closed || key.Filtered() || !g.pages.Loaded(key) {
		return Effects{}
	}
	g.refreshWindow()
	w := g.windower.Last()
	count := g.Count()
	distance := ContentHeight(count, g.opts.RowHeight) - (g.cur.offset + g.viewport)
	sentinelVisible := g.hasSentinel() && w.Visible(count-1)
	if !g.trigger.Observe(distance, sentinelVisible) {
		return Effects{}
	}
	if g.pages.InFlight(key) || g.pages.NextCursor(key) == "" {
		return Effects{}
	}
	req, ok := g.pages.RequestNext(key)
	if !ok {
		return Effects{}
	}
	g.trigger.Fired()
	g.log.V(1).Info("loading next page", "source", key.String(), "cursor", req.Cursor, "distance", distance, "sentinel", sentinelVisible)
	return Effects{Pages: []PageRequest{req}}
}

// switchTo makes key the rendered stream, restoring its remembered scroll
// position, and drops search streams that are no longer needed.
func (g *Grid) switchTo(key SourceKey) {
	if key == g.shown {
		return
	}
	g.views[g.shown] = g.cur
	g.cur = g.views[key]
	delete(g.views, key)
	g.shown = key
	for _, k := range g.pages.Keys() {
		if k.Filtered() && k != key && k != g.selector.SearchKey() && !g.pending.HasBatchFor(k) {
			g.pages.Reset(k)
			delete(g.views, k)
		}
	}
	g.trigger.Reset()
	g.clampCursor()
	g.refreshWindow()
	g.log.V(1).Info("source switched", "source", key.String())
}

// SetSearch records a search term change. An empty term switches back to the
// unfiltered stream at once; anything else arms the debounce timer.
func (g *Grid) SetSearch(term string) Effects {
	if g.closed {
		return Effects{}
	}
	t, ok := g.selector.SetTerm(term)
	if g.selector.Phase() == Unfiltered {
		g.switchTo(g.selector.Active())
		return g.CheckLoadMore()
	}
	if !ok {
		return Effects{}
	}
	return Effects{Debounce: &t}
}

// SearchDue handles an elapsed debounce timer.
func (g *Grid) SearchDue(t Ticket) Effects {
	if g.closed {
		return Effects{}
	}
	key, ok := g.selector.Fire(t)
	if !ok {
		return Effects{}
	}
	if !g.pending.HasBatchFor(key) {
		g.pages.Reset(key)
	}
	g.views[key] = view{}
	g.log.V(1).Info("searching", "term", key.Term)
	return pageEffects(g.pages.Request(key, ""))
}

// LingerDone handles an elapsed indicator linger timer.
func (g *Grid) LingerDone(t Ticket) {
	g.selector.LingerDone(t)
}

// Search returns the selector state.
func (g *Grid) Search() SearchState {
	return g.selector.State()
}

// DebounceDelay is how long callers wait before calling SearchDue.
func (g *Grid) DebounceDelay() time.Duration {
	return g.selector.DebounceDelay()
}

// LingerDelay is how long callers wait before calling LingerDone.
func (g *Grid) LingerDelay() time.Duration {
	return g.selector.LingerDelay()
}

// Retry re-issues whatever failed last: the active stream's page, the
// current search, and commits that errored.
func (g *Grid) Retry() Effects {
	if g.closed {
		return Effects{}
	}
	var eff Effects
	g.notice = nil
	st := g.selector.State()
	if st.Term != "" && g.shown != g.selector.SearchKey() {
		if t, ok := g.selector.Retry(); ok {
			eff.Merge(g.SearchDue(t))
		}
	}
	if key := g.shown; g.pages.Err(key) != nil {
		g.trigger.Reset()
		eff.Merge(pageEffects(g.pages.RequestNext(key)))
		if len(eff.Pages) > 0 {
			g.trigger.Fired()
		}
	}
	for _, e := range g.edits.Entries() {
		if e.Err == nil || e.Pending {
			continue
		}
		if req, outcome, err := g.edits.Commit(e.Key); err == nil && outcome == CommitIssued {
			eff.Commits = append(eff.Commits, req)
		}
	}
	return eff
}

// Status summarizes loading and error state for the active stream.
func (g *Grid) Status() Status {
	key := g.shown
	st := Status{
		Search:      g.selector.State(),
		Notice:      g.notice,
		Outstanding: g.pending.Outstanding(),
	}
	inFlight := g.pages.InFlight(key)
	loaded := g.pages.Loaded(key)
	st.Loading = inFlight && !loaded
	st.LoadingMore = inFlight && loaded
	if err := g.pages.Err(key); err != nil {
		if g.pages.Len(key) == 0 {
			st.Blocking = err
		} else if st.Notice == nil {
			st.Notice = err
		}
	}
	if st.Notice == nil && st.Search.Term != "" {
		if err := g.pages.Err(g.selector.SearchKey()); err != nil {
			st.Notice = err
		}
	}
	return st
}

// ClearNotice dismisses the last non-blocking error.
func (g *Grid) ClearNotice() {
	g.notice = nil
}

// Footer is the record count line.
func (g *Grid) Footer() string {
	key := g.shown
	n := g.pages.Len(key)
	if key.Filtered() {
		return plural(n, "matching record")
	}
	if total, ok := g.pages.Total(key); ok && g.pages.HasMore(key) && total > n {
		return fmt.Sprintf("%d of %d records", n, total)
	}
	return plural(n, "record")
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

// Close tears the grid down. Timers and results arriving afterwards are ignored.
func (g *Grid) Close() {
	g.closed = true
	g.selector.Close()
}

// Closed reports whether Close was called.
func (g *Grid) Closed() bool {
	return g.closed
}

func (g *Grid) column(id string) (Column, bool) {
	for _, c := range g.columns {
		if c.ID == id {
			return c, true
		}
	}
	return Column{}, false
}

// ColumnByName looks a column up by its display name.
func (g *Grid) ColumnByName(name string) (Column, bool) {
	for _, c := range g.columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

func (g *Grid) row(id string) (Row, bool) {
	for _, r := range g.pages.Rows(g.shown) {
		if r.ID == id {
			return r, true
		}
	}
	found := false
	var out Row
	g.pages.each(func(r *Row) {
		if !found && r.ID == id {
			out = *r
			found = true
		}
	})
	return out, found
}
