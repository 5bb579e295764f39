package grid

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectorSearchLifecycle(t *testing.T) {
	s := NewSelector("t", 500*time.Millisecond, 300*time.Millisecond)
	unfiltered := SourceKey{TableID: "t"}
	assert.Equal(t, Unfiltered, s.Phase())

	ticket, ok := s.SetTerm("jane")
	require.True(t, ok)
	assert.Equal(t, PendingSearch, s.Phase())
	assert.Equal(t, unfiltered, s.Active(), "previous stream stays visible while pending")
	assert.True(t, s.State().ShowIndicator)

	key, ok := s.Fire(ticket)
	require.True(t, ok)
	assert.Equal(t, SourceKey{TableID: "t", Term: "jane"}, key)
	assert.Equal(t, Searching, s.Phase())
	assert.True(t, s.State().InFlight)

	linger, ok := s.Resolved(key)
	require.True(t, ok)
	assert.Equal(t, Filtered, s.Phase())
	assert.Equal(t, key, s.Active())
	assert.True(t, s.State().ShowIndicator, "indicator lingers after the result")

	assert.True(t, s.LingerDone(linger))
	assert.False(t, s.State().ShowIndicator)
}

func TestSelectorDebounceResets(t *testing.T) {
	s := NewSelector("t", time.Second, 0)
	first, _ := s.SetTerm("j")
	second, _ := s.SetTerm("ja")

	_, ok := s.Fire(first)
	assert.False(t, ok, "superseded ticket")
	key, ok := s.Fire(second)
	assert.True(t, ok)
	assert.Equal(t, "ja", key.Term)

	_, ok = s.SetTerm("  ja ")
	assert.False(t, ok, "same trimmed term is not a change")
}

func TestSelectorClearSwitchesBackImmediately(t *testing.T) {
	s := NewSelector("t", time.Second, 0)
	ticket, _ := s.SetTerm("jane")
	key, _ := s.Fire(ticket)

	_, ok := s.SetTerm("")
	assert.False(t, ok)
	assert.Equal(t, Unfiltered, s.Phase())
	assert.Equal(t, SourceKey{TableID: "t"}, s.Active())
	assert.False(t, s.Wants(key), "in-flight result for the old term is unwanted")

	_, ok = s.Resolved(key)
	assert.False(t, ok)
}

func TestSelectorTermChangeDuringSearch(t *testing.T) {
	s := NewSelector("t", time.Second, 0)
	ticket, _ := s.SetTerm("ja")
	old, _ := s.Fire(ticket)

	next, ok := s.SetTerm("jan")
	require.True(t, ok)
	assert.False(t, s.Wants(old))
	_, ok = s.Resolved(old)
	assert.False(t, ok)

	key, ok := s.Fire(next)
	require.True(t, ok)
	assert.True(t, s.Wants(key))
}

func TestSelectorFailureAndRetry(t *testing.T) {
	s := NewSelector("t", time.Second, 0)
	ticket, _ := s.SetTerm("jane")
	key, _ := s.Fire(ticket)

	assert.True(t, s.Failed(key))
	assert.Equal(t, PendingSearch, s.Phase())
	assert.Equal(t, SourceKey{TableID: "t"}, s.Active())

	retry, ok := s.Retry()
	require.True(t, ok)
	_, ok = s.Fire(retry)
	assert.True(t, ok)
}

func TestSelectorCloseInvalidatesTickets(t *testing.T) {
	s := NewSelector("t", time.Second, time.Second)
	ticket, _ := s.SetTerm("jane")
	s.Close()
	_, ok := s.Fire(ticket)
	assert.False(t, ok)
}

func TestSearchPhaseString(t *testing.T) {
	assert.Equal(t, "unfiltered", Unfiltered.String())
	assert.Equal(t, "pending-search", PendingSearch.String())
	assert.Equal(t, "searching", Searching.String())
	assert.Equal(t, "filtered", Filtered.String())
}
