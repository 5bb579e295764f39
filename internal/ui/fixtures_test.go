package ui

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/stretchr/testify/require"

	"github.com/oakwood-commons/kvgrid/internal/grid"
)

// memSource is an in-memory grid.DataSource. Cursors are decimal offsets.
type memSource struct {
	mu       sync.Mutex
	columns  []grid.Column
	rows     []grid.Row
	nextID   int
	fetchErr error
}

func newMemSource(n int) *memSource {
	s := &memSource{
		columns: []grid.Column{
			{ID: "c-name", Name: "Name", Type: grid.ColumnText},
			{ID: "c-age", Name: "Age", Type: grid.ColumnNumber, Position: 1},
		},
		nextID: 1000,
	}
	for i := 1; i <= n; i++ {
		s.rows = append(s.rows, grid.Row{
			ID:    fmt.Sprintf("r%d", i),
			Cells: map[string]string{"c-name": fmt.Sprintf("name-%d", i), "c-age": strconv.Itoa(i)},
		})
	}
	return s
}

func (s *memSource) setFetchErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetchErr = err
}

func (s *memSource) value(rowID, columnID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rows {
		if r.ID == rowID {
			return r.Cells[columnID]
		}
	}
	return ""
}

func (s *memSource) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

func (s *memSource) FetchPage(_ context.Context, tableID, cursor string, limit int) (grid.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fetchErr != nil {
		return grid.Page{}, s.fetchErr
	}
	start, _ := strconv.Atoi(cursor)
	end := min(start+limit, len(s.rows))
	page := grid.Page{Columns: append([]grid.Column(nil), s.columns...)}
	for _, r := range s.rows[start:end] {
		page.Rows = append(page.Rows, r.Clone())
	}
	if end < len(s.rows) {
		page.NextCursor = strconv.Itoa(end)
	}
	if cursor == "" {
		page.TableID = tableID
		page.TotalCount = len(s.rows)
		page.HasTotal = true
	}
	return page, nil
}

func (s *memSource) SearchRows(_ context.Context, tableID, term string) (grid.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	page := grid.Page{TableID: tableID, Columns: append([]grid.Column(nil), s.columns...)}
	for _, r := range s.rows {
		for _, v := range r.Cells {
			if strings.Contains(strings.ToLower(v), strings.ToLower(term)) {
				page.Rows = append(page.Rows, r.Clone())
				break
			}
		}
	}
	return page, nil
}

func (s *memSource) UpdateCell(_ context.Context, rowID, columnID, value string) (grid.Cell, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.rows {
		if s.rows[i].ID == rowID {
			s.rows[i].Cells[columnID] = value
			return grid.Cell{RowID: rowID, ColumnID: columnID, Value: value}, nil
		}
	}
	return grid.Cell{}, fmt.Errorf("row %s: %w", rowID, grid.ErrNotFound)
}

func (s *memSource) newRow() grid.Row {
	s.nextID++
	r := grid.Row{ID: fmt.Sprintf("r%d", s.nextID), Cells: map[string]string{}}
	s.rows = append(s.rows, r)
	return r.Clone()
}

func (s *memSource) CreateRow(_ context.Context, _ string) (grid.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.newRow(), nil
}

func (s *memSource) CreateRows(_ context.Context, _ string, count int) ([]grid.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]grid.Row, 0, count)
	for range count {
		out = append(out, s.newRow())
	}
	return out, nil
}

func (s *memSource) CreateColumn(_ context.Context, _ string, name string, typ grid.ColumnType) (grid.Column, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := grid.Column{ID: fmt.Sprintf("c-%d", len(s.columns)+1), Name: name, Type: typ, Position: len(s.columns)}
	s.columns = append(s.columns, c)
	return c, nil
}

func testOptions() Options {
	g := grid.DefaultOptions("people")
	g.PageSize = 10
	g.RowHeight = 1
	g.Overscan = 2
	g.Trigger = grid.TriggerConfig{LoadThreshold: 3, RearmThreshold: 6}
	g.SearchDebounce = time.Millisecond
	g.IndicatorLinger = time.Millisecond
	return Options{
		Title:          "people",
		Grid:           g,
		RequestTimeout: time.Second,
		BulkAddCount:   5,
		NoColor:        true,
		Width:          60,
		Height:         10,
	}
}

func newTestModel(t *testing.T, rows int) (*Model, *memSource) {
	t.Helper()
	ds := newMemSource(rows)
	m := NewModel(context.Background(), ds, testOptions())
	t.Cleanup(m.cancel)
	settle(t, m, m.Init())
	return m, ds
}

// settle runs cmd and every command produced by the grid messages it
// yields, feeding results back through Update. Commands that do not return
// promptly (cursor blink, flash timers) are dropped.
func settle(t *testing.T, m *Model, cmd tea.Cmd) {
	t.Helper()
	queue := []tea.Cmd{cmd}
	for steps := 0; len(queue) > 0; steps++ {
		require.Less(t, steps, 1000, "commands did not settle")
		c := queue[0]
		queue = queue[1:]
		if c == nil {
			continue
		}
		msg, ok := runWithin(c, 200*time.Millisecond)
		if !ok {
			continue
		}
		switch msg := msg.(type) {
		case tea.BatchMsg:
			queue = append(queue, msg...)
		case pageMsg, commitMsg, rowsMsg, columnMsg, debounceMsg, lingerMsg:
			_, next := m.Update(msg)
			queue = append(queue, next)
		}
	}
}

func runWithin(c tea.Cmd, d time.Duration) (tea.Msg, bool) {
	ch := make(chan tea.Msg, 1)
	go func() { ch <- c() }()
	select {
	case msg := <-ch:
		return msg, true
	case <-time.After(d):
		return nil, false
	}
}

// press sends one key and settles the resulting commands.
func press(t *testing.T, m *Model, key tea.KeyPressMsg) {
	t.Helper()
	_, cmd := m.Update(key)
	settle(t, m, cmd)
}

func typeText(t *testing.T, m *Model, s string) {
	t.Helper()
	for _, r := range s {
		press(t, m, tea.KeyPressMsg{Code: r, Text: string(r)})
	}
}

func ctrl(r rune) tea.KeyPressMsg {
	return tea.KeyPressMsg{Code: r, Mod: tea.ModCtrl}
}
