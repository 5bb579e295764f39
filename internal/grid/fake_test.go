package grid

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

// fakeSource is an in-memory DataSource. Cursors are decimal row offsets.
type fakeSource struct {
	mu      sync.Mutex
	table   string
	columns []Column
	rows    []Row
	nextID  int
	calls   map[string]int

	fetchErr  error
	searchErr error
	updateErr error
	createErr error
	columnErr error
}

func newFakeSource(n int) *fakeSource {
	f := &fakeSource{
		table: "people",
		columns: []Column{
			{ID: "c-name", Name: "Name", Type: ColumnText, Position: 0},
			{ID: "c-age", Name: "Age", Type: ColumnNumber, Position: 1},
		},
		calls:  make(map[string]int),
		nextID: 1000,
	}
	for i := 1; i <= n; i++ {
		f.rows = append(f.rows, Row{
			ID:    fmt.Sprintf("r%d", i),
			Cells: map[string]string{"c-name": fmt.Sprintf("name-%d", i), "c-age": strconv.Itoa(i)},
		})
	}
	return f
}

func (f *fakeSource) withNames(names ...string) *fakeSource {
	for i, n := range names {
		if i < len(f.rows) {
			f.rows[i].Cells["c-name"] = n
		}
	}
	return f
}

func (f *fakeSource) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeSource) value(rowID, columnID string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.ID == rowID {
			return r.Cells[columnID], true
		}
	}
	return "", false
}

func (f *fakeSource) cols() []Column {
	return append([]Column(nil), f.columns...)
}

func (f *fakeSource) FetchPage(ctx context.Context, tableID, cursor string, limit int) (Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["fetch"]++
	if err := ctx.Err(); err != nil {
		return Page{}, err
	}
	if f.fetchErr != nil {
		return Page{}, f.fetchErr
	}
	start := 0
	if cursor != "" {
		n, err := strconv.Atoi(cursor)
		if err != nil {
			return Page{}, fmt.Errorf("%w: bad cursor", ErrValidation)
		}
		start = n
	}
	end := min(start+limit, len(f.rows))
	page := Page{Columns: f.cols()}
	for _, r := range f.rows[start:end] {
		page.Rows = append(page.Rows, r.Clone())
	}
	if end < len(f.rows) {
		page.NextCursor = strconv.Itoa(end)
	}
	if cursor == "" {
		page.TableID = tableID
		page.TotalCount = len(f.rows)
		page.HasTotal = true
	}
	return page, nil
}

func (f *fakeSource) SearchRows(ctx context.Context, tableID, term string) (Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["search"]++
	if err := ctx.Err(); err != nil {
		return Page{}, err
	}
	if f.searchErr != nil {
		return Page{}, f.searchErr
	}
	page := Page{TableID: tableID, Columns: f.cols()}
	needle := strings.ToLower(term)
	for _, r := range f.rows {
		for _, v := range r.Cells {
			if strings.Contains(strings.ToLower(v), needle) {
				page.Rows = append(page.Rows, r.Clone())
				break
			}
		}
	}
	return page, nil
}

func (f *fakeSource) UpdateCell(ctx context.Context, rowID, columnID, value string) (Cell, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["update"]++
	if err := ctx.Err(); err != nil {
		return Cell{}, err
	}
	if f.updateErr != nil {
		return Cell{}, f.updateErr
	}
	for i := range f.rows {
		if f.rows[i].ID == rowID {
			f.rows[i].Cells[columnID] = value
			return Cell{RowID: rowID, ColumnID: columnID, Value: value}, nil
		}
	}
	return Cell{}, fmt.Errorf("row %s: %w", rowID, ErrNotFound)
}

func (f *fakeSource) newRow() Row {
	f.nextID++
	r := Row{ID: fmt.Sprintf("r%d", f.nextID), Cells: map[string]string{}}
	for _, c := range f.columns {
		r.Cells[c.ID] = ""
	}
	f.rows = append(f.rows, r)
	return r.Clone()
}

func (f *fakeSource) CreateRow(ctx context.Context, tableID string) (Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["create_row"]++
	if f.createErr != nil {
		return Row{}, f.createErr
	}
	return f.newRow(), nil
}

func (f *fakeSource) CreateRows(ctx context.Context, tableID string, count int) ([]Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["create_rows"]++
	if f.createErr != nil {
		return nil, f.createErr
	}
	out := make([]Row, 0, count)
	for range count {
		out = append(out, f.newRow())
	}
	return out, nil
}

func (f *fakeSource) CreateColumn(ctx context.Context, tableID, name string, typ ColumnType) (Column, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["create_column"]++
	if f.columnErr != nil {
		return Column{}, f.columnErr
	}
	if strings.TrimSpace(name) == "" {
		return Column{}, ErrEmptyColumnName
	}
	c := Column{ID: fmt.Sprintf("c-%d", len(f.columns)+1), Name: name, Type: typ, Position: len(f.columns)}
	f.columns = append(f.columns, c)
	for i := range f.rows {
		f.rows[i].Cells[c.ID] = ""
	}
	return c, nil
}

// testGrid returns a grid with row height 1 and small thresholds so tests can
// reason in rows.
func testGrid(opts ...func(*Options)) *Grid {
	o := Options{
		TableID:         "people",
		PageSize:        100,
		RowHeight:       1,
		Overscan:        2,
		Trigger:         TriggerConfig{LoadThreshold: 5, RearmThreshold: 10},
		SearchDebounce:  500 * time.Millisecond,
		IndicatorLinger: 300 * time.Millisecond,
	}
	for _, fn := range opts {
		fn(&o)
	}
	return New(o)
}
