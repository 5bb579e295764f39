// Package ui implements the interactive terminal grid on top of the grid
// state machine: key handling, request dispatch and rendering.
package ui

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"charm.land/bubbles/v2/spinner"
	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"github.com/go-logr/logr"

	"github.com/oakwood-commons/kvgrid/internal/config"
	"github.com/oakwood-commons/kvgrid/internal/grid"
)

// mode is what key presses currently go to.
type mode int

const (
	modeBrowse mode = iota
	modeEdit
	modeSearch
	modePrompt
)

type promptKind int

const (
	promptRows promptKind = iota
	promptColumn
)

const flashDuration = 3 * time.Second

// Options configures a Model.
type Options struct {
	Title          string
	Grid           grid.Options
	RequestTimeout time.Duration
	BulkAddCount   int
	MaxColumnWidth int
	Theme          config.Theme
	NoColor        bool
	Width          int
	Height         int
	Logger         logr.Logger
}

// Result messages of requests run off the event loop.
type (
	pageMsg   struct{ res grid.PageResult }
	commitMsg struct{ res grid.CommitResult }
	rowsMsg   struct{ res grid.CreateRowsResult }
	columnMsg struct{ res grid.CreateColumnResult }
)

// Timer messages fed back into the grid.
type (
	debounceMsg   struct{ ticket grid.Ticket }
	lingerMsg     struct{ ticket grid.Ticket }
	flashClearMsg struct{ id int }
)

// Model is the Bubble Tea model of one table.
type Model struct {
	Grid   *grid.Grid
	Styles Styles
	Layout *LayoutManager

	ds      grid.DataSource
	ctx     context.Context
	cancel  context.CancelFunc
	log     logr.Logger
	title   string
	timeout time.Duration
	bulk    int
	maxCol  int

	mode      mode
	prompt    promptKind
	editing   grid.CellKey
	Editor    textinput.Model
	SearchBox textinput.Model
	PromptBox textinput.Model
	Spinner   spinner.Model
	spinning  bool
	showHelp  bool
	flash     string
	flashErr  bool
	flashID   int
	quitting  bool
}

// NewModel creates a model for the table in opts.Grid. The context bounds
// every request the model issues; quitting cancels it.
func NewModel(ctx context.Context, ds grid.DataSource, opts Options) *Model {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	log := opts.Logger
	if log.GetSink() == nil {
		log = logr.Discard()
	}
	if opts.Grid.Logger.GetSink() == nil {
		opts.Grid.Logger = log
	}
	if opts.BulkAddCount <= 0 {
		opts.BulkAddCount = 100
	}
	if opts.MaxColumnWidth <= 0 {
		opts.MaxColumnWidth = 24
	}

	editor := textinput.New()
	editor.Prompt = ""
	editor.CharLimit = 4096
	editor.SetWidth(60)

	search := textinput.New()
	search.Prompt = "/ "
	search.Placeholder = "search, or =expression"
	search.CharLimit = 500
	search.SetWidth(40)

	prompt := textinput.New()
	prompt.Prompt = ""
	prompt.CharLimit = 200
	prompt.SetWidth(40)

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return &Model{
		Grid:      grid.New(opts.Grid),
		Styles:    NewStyles(opts.Theme, opts.NoColor),
		Layout:    NewLayoutManager(opts.Width, opts.Height),
		ds:        ds,
		ctx:       ctx,
		cancel:    cancel,
		log:       log,
		title:     opts.Title,
		timeout:   opts.RequestTimeout,
		bulk:      opts.BulkAddCount,
		maxCol:    opts.MaxColumnWidth,
		Editor:    editor,
		SearchBox: search,
		PromptBox: prompt,
		Spinner:   sp,
	}
}

// Init sizes the grid and requests the first page.
func (m *Model) Init() tea.Cmd {
	eff := m.Grid.Resize(m.bodyUnits())
	eff.Merge(m.Grid.Start())
	return m.withSpinner(m.dispatch(eff))
}

// bodyUnits is the viewport height in row height units.
func (m *Model) bodyUnits() int {
	return m.Layout.BodyHeight()
}

// rowLines is how many terminal lines one row occupies.
func (m *Model) rowLines() int {
	return max(m.Grid.Options().RowHeight, 1)
}

// Update handles one message.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Layout.SetDimensions(msg.Width, msg.Height)
		m.Editor.SetWidth(max(m.Layout.Width()-20, 10))
		return m, m.dispatch(m.Grid.Resize(m.bodyUnits()))

	case pageMsg:
		if msg.res.Err != nil && !errors.Is(msg.res.Err, grid.ErrStalePage) {
			m.log.Error(msg.res.Err, "page request failed", "source", msg.res.Request.Key.String())
		}
		return m, m.withSpinner(m.dispatch(m.Grid.ApplyPage(msg.res)))

	case commitMsg:
		eff := m.Grid.ApplyCommit(msg.res)
		if err := msg.res.Err; err != nil {
			m.log.Error(err, "commit failed", "row", msg.res.Request.Key.RowID, "column", msg.res.Request.Key.ColumnID)
			return m, tea.Batch(m.dispatch(eff), m.setFlash(commitFailure(err), true))
		}
		return m, m.dispatch(eff)

	case rowsMsg:
		eff := m.Grid.ApplyRows(msg.res)
		if realID, ok := eff.Rekeyed[m.editing.RowID]; ok && m.mode == modeEdit {
			m.editing.RowID = realID
		}
		if err := msg.res.Err; err != nil {
			m.log.Error(err, "row creation failed", "batch", msg.res.Request.Batch.ID)
			return m, tea.Batch(m.dispatch(eff), m.setFlash("could not add rows: "+err.Error(), true))
		}
		return m, m.withSpinner(m.dispatch(eff))

	case columnMsg:
		eff := m.Grid.ApplyColumn(msg.res)
		if err := msg.res.Err; err != nil {
			m.log.Error(err, "column creation failed", "name", msg.res.Request.Name)
			return m, tea.Batch(m.dispatch(eff), m.setFlash("could not add column: "+err.Error(), true))
		}
		return m, tea.Batch(m.dispatch(eff), m.setFlash(fmt.Sprintf("column %q added", msg.res.Column.Name), false))

	case debounceMsg:
		return m, m.withSpinner(m.dispatch(m.Grid.SearchDue(msg.ticket)))

	case lingerMsg:
		m.Grid.LingerDone(msg.ticket)
		return m, nil

	case flashClearMsg:
		if msg.id == m.flashID {
			m.flash = ""
			m.flashErr = false
		}
		return m, nil

	case spinner.TickMsg:
		if !m.busy() {
			m.spinning = false
			return m, nil
		}
		var cmd tea.Cmd
		m.Spinner, cmd = m.Spinner.Update(msg)
		return m, cmd

	case tea.MouseWheelMsg:
		step := 3 * m.rowLines()
		switch msg.Mouse().Button {
		case tea.MouseWheelUp:
			return m, m.dispatch(m.Grid.ScrollBy(-step))
		case tea.MouseWheelDown:
			return m, m.dispatch(m.Grid.ScrollBy(step))
		}
		return m, nil

	case tea.KeyPressMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	switch m.mode {
	case modeEdit:
		m.Editor, cmd = m.Editor.Update(msg)
	case modeSearch:
		m.SearchBox, cmd = m.SearchBox.Update(msg)
	case modePrompt:
		m.PromptBox, cmd = m.PromptBox.Update(msg)
	}
	return m, cmd
}

func (m *Model) handleKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch m.mode {
	case modeEdit:
		return m.handleEditKey(msg)
	case modeSearch:
		return m.handleSearchKey(msg)
	case modePrompt:
		return m.handlePromptKey(msg)
	}

	if m.showHelp {
		switch msg.String() {
		case "q", "ctrl+c":
			return m.quit()
		}
		m.showHelp = false
		return m, nil
	}

	page := max(m.bodyUnits()/m.rowLines(), 1)
	row, col := m.Grid.Cursor()
	switch ResolveAction(msg.String()) {
	case ActionUp:
		return m, m.dispatch(m.Grid.MoveCursor(-1, 0))
	case ActionDown:
		return m, m.dispatch(m.Grid.MoveCursor(1, 0))
	case ActionLeft:
		return m, m.dispatch(m.Grid.MoveCursor(0, -1))
	case ActionRight:
		return m, m.dispatch(m.Grid.MoveCursor(0, 1))
	case ActionPageUp:
		return m, m.dispatch(m.Grid.MoveCursor(-page, 0))
	case ActionPageDown:
		return m, m.dispatch(m.Grid.MoveCursor(page, 0))
	case ActionTop:
		return m, m.dispatch(m.Grid.SetCursor(0, col))
	case ActionBottom:
		return m, m.withSpinner(m.dispatch(m.Grid.SetCursor(len(m.Grid.Rows())-1, col)))
	case ActionRowStart:
		return m, m.dispatch(m.Grid.SetCursor(row, 0))
	case ActionRowEnd:
		return m, m.dispatch(m.Grid.SetCursor(row, len(m.Grid.Columns())-1))
	case ActionEdit:
		return m, m.beginEdit()
	case ActionSearch:
		m.mode = modeSearch
		m.SearchBox.SetValue(m.Grid.Search().Term)
		m.SearchBox.CursorEnd()
		return m, m.SearchBox.Focus()
	case ActionClearSearch:
		return m, m.dispatch(m.Grid.SetSearch(""))
	case ActionAddRow:
		return m, m.addRows(1)
	case ActionAddRows:
		return m, m.openPrompt(promptRows, strconv.Itoa(m.bulk))
	case ActionAddColumn:
		return m, m.openPrompt(promptColumn, "")
	case ActionRetry:
		m.Grid.ClearNotice()
		return m, m.withSpinner(m.dispatch(m.Grid.Retry()))
	case ActionDismiss:
		switch {
		case m.flash != "":
			m.flash = ""
		case m.Grid.Status().Notice != nil:
			m.Grid.ClearNotice()
		case m.Grid.Search().Term != "":
			return m, m.dispatch(m.Grid.SetSearch(""))
		}
		return m, nil
	case ActionHelp:
		m.showHelp = true
		return m, nil
	case ActionQuit:
		return m.quit()
	}
	return m, nil
}

func (m *Model) quit() (tea.Model, tea.Cmd) {
	m.quitting = true
	m.Grid.Close()
	m.cancel()
	return m, tea.Quit
}

// beginEdit opens the editor on the selected cell.
func (m *Model) beginEdit() tea.Cmd {
	key, ok := m.Grid.CursorCell()
	if !ok {
		return nil
	}
	if err := m.Grid.BeginEdit(key.RowID, key.ColumnID); err != nil {
		return m.setFlash(err.Error(), true)
	}
	m.editing = key
	m.mode = modeEdit
	entry, _ := m.Grid.Edit(key.RowID, key.ColumnID)
	m.Editor.SetValue(entry.Value)
	m.Editor.CursorEnd()
	return m.Editor.Focus()
}

func (m *Model) handleEditKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.Grid.CancelEdit(m.editing.RowID, m.editing.ColumnID)
		m.closeEditor()
		return m, nil
	case "enter":
		return m, m.commitEdit(0, 0)
	case "tab":
		return m, m.commitEdit(0, 1)
	case "shift+tab":
		return m, m.commitEdit(0, -1)
	case "up":
		return m, m.commitEdit(-1, 0)
	case "down":
		return m, m.commitEdit(1, 0)
	case "ctrl+c":
		return m.quit()
	}

	before := m.Editor.Value()
	var cmd tea.Cmd
	m.Editor, cmd = m.Editor.Update(msg)
	if m.Editor.Value() == before {
		return m, cmd
	}
	if err := m.Grid.UpdateEdit(m.editing.RowID, m.editing.ColumnID, m.Editor.Value()); err != nil {
		m.Editor.SetValue(before)
		m.Editor.CursorEnd()
		return m, tea.Batch(cmd, m.setFlash(editFailure(err), true))
	}
	return m, cmd
}

// commitEdit commits the open edit and moves the selection by the deltas.
func (m *Model) commitEdit(dRow, dCol int) tea.Cmd {
	key := m.editing
	eff, outcome, err := m.Grid.CommitEdit(key.RowID, key.ColumnID)
	m.closeEditor()
	var cmds []tea.Cmd
	if err != nil {
		cmds = append(cmds, m.setFlash(editFailure(err), true))
	}
	switch outcome {
	case grid.CommitDeferred:
		cmds = append(cmds, m.setFlash("saved once the new row is stored", false))
	case grid.CommitDropped:
		cmds = append(cmds, m.setFlash("edit discarded: the row is not stored yet", true))
	}
	cmds = append(cmds, m.dispatch(eff))
	if dRow != 0 || dCol != 0 {
		cmds = append(cmds, m.dispatch(m.Grid.MoveCursor(dRow, dCol)))
	}
	return tea.Batch(cmds...)
}

func (m *Model) closeEditor() {
	m.Editor.Blur()
	m.Editor.SetValue("")
	m.editing = grid.CellKey{}
	m.mode = modeBrowse
}

func (m *Model) handleSearchKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter", "down":
		m.mode = modeBrowse
		m.SearchBox.Blur()
		return m, nil
	case "esc":
		m.mode = modeBrowse
		m.SearchBox.Blur()
		m.SearchBox.SetValue("")
		return m, m.dispatch(m.Grid.SetSearch(""))
	case "ctrl+c":
		return m.quit()
	}
	before := m.SearchBox.Value()
	var cmd tea.Cmd
	m.SearchBox, cmd = m.SearchBox.Update(msg)
	if m.SearchBox.Value() == before {
		return m, cmd
	}
	return m, tea.Batch(cmd, m.dispatch(m.Grid.SetSearch(m.SearchBox.Value())))
}

func (m *Model) openPrompt(kind promptKind, initial string) tea.Cmd {
	m.mode = modePrompt
	m.prompt = kind
	m.PromptBox.SetValue(initial)
	m.PromptBox.CursorEnd()
	switch kind {
	case promptRows:
		m.PromptBox.Placeholder = "number of rows"
	case promptColumn:
		m.PromptBox.Placeholder = "name or name:NUMBER"
	}
	return m.PromptBox.Focus()
}

func (m *Model) handlePromptKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.closePrompt()
		return m, nil
	case "ctrl+c":
		return m.quit()
	case "enter":
		value := strings.TrimSpace(m.PromptBox.Value())
		kind := m.prompt
		m.closePrompt()
		switch kind {
		case promptRows:
			n, err := strconv.Atoi(value)
			if err != nil || n <= 0 {
				return m, m.setFlash(fmt.Sprintf("row count must be a positive number, got %q", value), true)
			}
			return m, m.addRows(n)
		case promptColumn:
			return m, m.addColumn(value)
		}
		return m, nil
	}
	var cmd tea.Cmd
	m.PromptBox, cmd = m.PromptBox.Update(msg)
	return m, cmd
}

func (m *Model) closePrompt() {
	m.PromptBox.Blur()
	m.PromptBox.SetValue("")
	m.mode = modeBrowse
}

func (m *Model) addRows(n int) tea.Cmd {
	eff, err := m.Grid.AddRows(n)
	if err != nil {
		return m.setFlash(err.Error(), true)
	}
	// Jump to the first new row so it can be filled in right away.
	row, col := m.Grid.Cursor()
	if rows := m.Grid.Rows(); len(rows) >= n {
		row = len(rows) - n
	}
	eff.Merge(m.Grid.SetCursor(row, col))
	return m.withSpinner(m.dispatch(eff))
}

// addColumn parses "name" or "name:TYPE" and creates the column.
func (m *Model) addColumn(spec string) tea.Cmd {
	name, typ := spec, grid.ColumnText
	if i := strings.LastIndex(spec, ":"); i >= 0 {
		t, ok := grid.ParseColumnType(spec[i+1:])
		if !ok {
			return m.setFlash(fmt.Sprintf("unknown column type %q: use TEXT or NUMBER", spec[i+1:]), true)
		}
		name, typ = spec[:i], t
	}
	eff, err := m.Grid.AddColumn(name, typ)
	if err != nil {
		return m.setFlash(err.Error(), true)
	}
	return m.dispatch(eff)
}

// setFlash shows a transient status message.
func (m *Model) setFlash(text string, isErr bool) tea.Cmd {
	m.flashID++
	m.flash = text
	m.flashErr = isErr
	id := m.flashID
	return tea.Tick(flashDuration, func(time.Time) tea.Msg {
		return flashClearMsg{id: id}
	})
}

// busy reports whether anything is in flight worth a spinner.
func (m *Model) busy() bool {
	st := m.Grid.Status()
	return st.Loading || st.LoadingMore || st.Search.ShowIndicator || st.Outstanding > 0
}

// withSpinner starts the spinner when work is in flight.
func (m *Model) withSpinner(cmd tea.Cmd) tea.Cmd {
	if m.spinning || !m.busy() {
		return cmd
	}
	m.spinning = true
	return tea.Batch(cmd, m.Spinner.Tick)
}

// dispatch turns grid effects into commands. Requests run with the
// configured timeout and report back as messages; timers become ticks.
func (m *Model) dispatch(eff grid.Effects) tea.Cmd {
	if eff.Empty() {
		return nil
	}
	ctx, ds, timeout := m.ctx, m.ds, m.timeout
	call := func(fn func(context.Context) tea.Msg) tea.Cmd {
		return func() tea.Msg {
			rctx, cancel := requestContext(ctx, timeout)
			defer cancel()
			return fn(rctx)
		}
	}

	var cmds []tea.Cmd
	for _, req := range eff.Pages {
		cmds = append(cmds, call(func(c context.Context) tea.Msg { return pageMsg{res: req.Run(c, ds)} }))
	}
	for _, req := range eff.Commits {
		cmds = append(cmds, call(func(c context.Context) tea.Msg { return commitMsg{res: req.Run(c, ds)} }))
	}
	for _, req := range eff.Creates {
		cmds = append(cmds, call(func(c context.Context) tea.Msg { return rowsMsg{res: req.Run(c, ds)} }))
	}
	for _, req := range eff.Columns {
		cmds = append(cmds, call(func(c context.Context) tea.Msg { return columnMsg{res: req.Run(c, ds)} }))
	}
	if eff.Debounce != nil {
		t := *eff.Debounce
		cmds = append(cmds, tea.Tick(m.Grid.DebounceDelay(), func(time.Time) tea.Msg { return debounceMsg{ticket: t} }))
	}
	if eff.Linger != nil {
		t := *eff.Linger
		cmds = append(cmds, tea.Tick(m.Grid.LingerDelay(), func(time.Time) tea.Msg { return lingerMsg{ticket: t} }))
	}
	return tea.Batch(cmds...)
}

func requestContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout > 0 {
		return context.WithTimeout(ctx, timeout)
	}
	return context.WithCancel(ctx)
}

func editFailure(err error) string {
	if errors.Is(err, grid.ErrInvalidNumber) {
		return "value must be a number"
	}
	return err.Error()
}

func commitFailure(err error) string {
	switch grid.Classify(err) {
	case grid.KindNotFound:
		return "the row or column no longer exists; edit discarded"
	case grid.KindNetwork, grid.KindTimeout:
		return "could not save the cell, ctrl+r to retry"
	default:
		return "could not save the cell: " + err.Error()
	}
}
