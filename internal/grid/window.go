package grid

// WindowInput is everything the window calculation depends on.
type WindowInput struct {
	Count     int // rows in the stream, plus one sentinel when more pages may exist
	Offset    int // scroll offset from the top
	Viewport  int // viewport height
	RowHeight int // estimated height of a single row
	Overscan  int // extra rows materialized above and below the viewport
}

// Window is the slice of rows to materialize. Start and End are inclusive;
// when Empty is set both are -1. VisibleStart/VisibleEnd exclude overscan.
// TopPad + materialized height + BottomPad always equals the full list height.
type Window struct {
	Start        int
	End          int
	VisibleStart int
	VisibleEnd   int
	TopPad       int
	BottomPad    int
	Offset       int // offset after clamping
	Empty        bool
}

// Len is the number of materialized rows.
func (w Window) Len() int {
	if w.Empty {
		return 0
	}
	return w.End - w.Start + 1
}

// Contains reports whether index i is materialized.
func (w Window) Contains(i int) bool {
	return !w.Empty && i >= w.Start && i <= w.End
}

// Visible reports whether index i is inside the viewport proper.
func (w Window) Visible(i int) bool {
	return !w.Empty && i >= w.VisibleStart && i <= w.VisibleEnd
}

var emptyWindow = Window{Start: -1, End: -1, VisibleStart: -1, VisibleEnd: -1, Empty: true}

// ComputeWindow derives the materialized range and paddings for in.
func ComputeWindow(in WindowInput) Window {
	if in.Count <= 0 {
		return emptyWindow
	}
	h := in.RowHeight
	if h <= 0 {
		h = 1
	}
	overscan := max(in.Overscan, 0)
	viewport := max(in.Viewport, 0)

	total := in.Count * h
	offset := min(max(in.Offset, 0), max(total-viewport, 0))

	first := min(offset/h, in.Count-1)
	last := first
	if viewport > 0 {
		last = (offset + viewport - 1) / h
	}
	last = min(last, in.Count-1)

	start := max(first-overscan, 0)
	end := min(last+overscan, in.Count-1)

	return Window{
		Start:        start,
		End:          end,
		VisibleStart: first,
		VisibleEnd:   last,
		TopPad:       start * h,
		BottomPad:    (in.Count - 1 - end) * h,
		Offset:       offset,
	}
}

// ContentHeight is the full scrollable height for count rows.
func ContentHeight(count, rowHeight int) int {
	if rowHeight <= 0 {
		rowHeight = 1
	}
	return max(count, 0) * rowHeight
}

// Windower remembers the last computed window so callers can skip
// re-rendering when nothing moved.
type Windower struct {
	last  Window
	valid bool
}

// Update recomputes the window and reports whether it differs from the previous one.
func (w *Windower) Update(in WindowInput) (Window, bool) {
	next := ComputeWindow(in)
	changed := !w.valid || next != w.last
	w.last = next
	w.valid = true
	return next, changed
}

// Last returns the most recently computed window.
func (w *Windower) Last() Window {
	if !w.valid {
		return emptyWindow
	}
	return w.last
}
