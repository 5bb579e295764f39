package grid

import (
	"strings"
	"time"
)

// SearchPhase is the state of the data source selector.
type SearchPhase int

const (
	Unfiltered SearchPhase = iota
	PendingSearch
	Searching
	Filtered
)

func (p SearchPhase) String() string {
	switch p {
	case PendingSearch:
		return "pending-search"
	case Searching:
		return "searching"
	case Filtered:
		return "filtered"
	default:
		return "unfiltered"
	}
}

// Debouncer is a single-shot timer with reset-on-reschedule semantics,
// expressed as generations: every Schedule invalidates the previous ticket
// and only the newest one is honored when it fires.
type Debouncer struct {
	Delay time.Duration
	gen   uint64
}

// Ticket identifies one scheduled firing.
type Ticket struct {
	Gen  uint64
	Term string
}

// Schedule returns a ticket superseding all earlier ones.
func (d *Debouncer) Schedule(term string) Ticket {
	d.gen++
	return Ticket{Gen: d.gen, Term: term}
}

// Cancel invalidates any outstanding ticket.
func (d *Debouncer) Cancel() {
	d.gen++
}

// Due reports whether t is still the latest ticket.
func (d *Debouncer) Due(t Ticket) bool {
	return t.Gen == d.gen
}

// SearchState is a snapshot for rendering.
type SearchState struct {
	Term          string
	Phase         SearchPhase
	InFlight      bool
	ShowIndicator bool
}

// Selector picks between the unfiltered and the search-filtered stream.
type Selector struct {
	tableID  string
	phase    SearchPhase
	term     string
	shown    SourceKey // stream currently rendered
	debounce Debouncer
	linger   Debouncer
	lingerOn bool
}

// NewSelector starts Unfiltered.
func NewSelector(tableID string, debounce, linger time.Duration) *Selector {
	return &Selector{
		tableID:  tableID,
		shown:    SourceKey{TableID: tableID},
		debounce: Debouncer{Delay: debounce},
		linger:   Debouncer{Delay: linger},
	}
}

// Phase returns the current state.
func (s *Selector) Phase() SearchPhase {
	return s.phase
}

// Term returns the current search term.
func (s *Selector) Term() string {
	return s.term
}

// DebounceDelay is the wait between the last term change and the search.
func (s *Selector) DebounceDelay() time.Duration {
	return s.debounce.Delay
}

// LingerDelay is how long the searching indicator outlives the search.
func (s *Selector) LingerDelay() time.Duration {
	return s.linger.Delay
}

// Active is the stream that should be rendered. While a search is pending
// the previously shown stream stays on screen.
func (s *Selector) Active() SourceKey {
	if s.term == "" {
		return SourceKey{TableID: s.tableID}
	}
	return s.shown
}

// SearchKey is the stream the current term resolves to.
func (s *Selector) SearchKey() SourceKey {
	return SourceKey{TableID: s.tableID, Term: s.term}
}

// SetTerm records a term change. A non-empty term opens the debounce window
// and returns the ticket to fire after DebounceDelay. An empty term switches
// back to Unfiltered immediately.
func (s *Selector) SetTerm(term string) (Ticket, bool) {
	term = strings.TrimSpace(term)
	if term == s.term && s.phase != Unfiltered {
		return Ticket{}, false
	}
	s.term = term
	if term == "" {
		s.debounce.Cancel()
		s.phase = Unfiltered
		s.shown = SourceKey{TableID: s.tableID}
		return Ticket{}, false
	}
	s.phase = PendingSearch
	s.lingerOn = false
	s.linger.Cancel()
	return s.debounce.Schedule(term), true
}

// Fire handles an elapsed debounce ticket and returns the key to search when
// the ticket is still current.
func (s *Selector) Fire(t Ticket) (SourceKey, bool) {
	if !s.debounce.Due(t) || s.phase != PendingSearch || t.Term != s.term {
		return SourceKey{}, false
	}
	s.phase = Searching
	return s.SearchKey(), true
}

// Resolved moves to Filtered when key is the search in progress. It returns
// the linger ticket for the indicator.
func (s *Selector) Resolved(key SourceKey) (Ticket, bool) {
	if s.phase != Searching || key != s.SearchKey() {
		return Ticket{}, false
	}
	s.phase = Filtered
	s.shown = key
	s.lingerOn = true
	return s.linger.Schedule(s.term), true
}

// Failed drops back so the previous stream keeps showing; the term is kept
// so the user can retry.
func (s *Selector) Failed(key SourceKey) bool {
	if s.phase != Searching || key != s.SearchKey() {
		return false
	}
	s.phase = PendingSearch
	return true
}

// Retry re-schedules the search for the current term.
func (s *Selector) Retry() (Ticket, bool) {
	if s.term == "" || s.phase == Searching {
		return Ticket{}, false
	}
	s.phase = PendingSearch
	return s.debounce.Schedule(s.term), true
}

// LingerDone turns the indicator off when t is the latest linger ticket.
func (s *Selector) LingerDone(t Ticket) bool {
	if !s.linger.Due(t) {
		return false
	}
	s.lingerOn = false
	return true
}

// Wants reports whether a search result for key may still be shown.
func (s *Selector) Wants(key SourceKey) bool {
	return key.Filtered() && key == s.SearchKey()
}

// State returns a render snapshot.
func (s *Selector) State() SearchState {
	return SearchState{
		Term:          s.term,
		Phase:         s.phase,
		InFlight:      s.phase == Searching,
		ShowIndicator: s.phase == PendingSearch || s.phase == Searching || s.lingerOn,
	}
}

// Close invalidates every outstanding ticket.
func (s *Selector) Close() {
	s.debounce.Cancel()
	s.linger.Cancel()
	s.lingerOn = false
}
