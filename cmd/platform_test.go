package cmd

import (
	"context"
	"errors"
	"os"
	"sync/atomic"
	"testing"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oakwood-commons/kvgrid/internal/ui"
)

func TestResolveSnapshotSize(t *testing.T) {
	tests := map[string]struct {
		flagW, flagH, detW, detH int
		want                     snapshotSize
	}{
		"flags win":          {flagW: 90, flagH: 30, detW: 200, detH: 50, want: snapshotSize{90, 30}},
		"detected fills gap": {flagW: 90, detW: 200, detH: 50, want: snapshotSize{90, 50}},
		"defaults":           {want: snapshotSize{ui.DefaultWidth, ui.DefaultHeight}},
		"width only known":   {detW: 120, want: snapshotSize{120, ui.DefaultHeight}},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, resolveSnapshotSize(tc.flagW, tc.flagH, tc.detW, tc.detH))
		})
	}
}

func TestDetectTerminalSizeFallsBackToEnv(t *testing.T) {
	orig := termGetSize
	termGetSize = func(int) (int, int, error) { return 0, 0, errors.New("not a terminal") }
	t.Cleanup(func() { termGetSize = orig })

	t.Setenv("COLUMNS", "132")
	t.Setenv("LINES", "40")
	w, h := detectTerminalSize()
	assert.Equal(t, 132, w)
	assert.Equal(t, 40, h)

	t.Setenv("COLUMNS", "wide")
	t.Setenv("LINES", "")
	w, h = detectTerminalSize()
	assert.Zero(t, w)
	assert.Zero(t, h)
}

func TestTerminalDeviceNames(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		in  string
		out string
	}{
		"windows": {in: "CONIN$", out: "CONOUT$"},
		"linux":   {in: "/dev/tty", out: "/dev/tty"},
		"darwin":  {in: "/dev/tty", out: "/dev/tty"},
	}
	for goos, expected := range tests {
		t.Run(goos, func(t *testing.T) {
			t.Parallel()
			in, out := terminalDeviceNames(goos)
			require.Equal(t, expected.in, in)
			require.Equal(t, expected.out, out)
		})
	}
}

func TestGetProgramOptions_PipedUsesTTYAndCleansUp(t *testing.T) {
	origIsPiped, origOpenTTY := stdinIsPiped, openTerminalIOFn
	t.Cleanup(func() { stdinIsPiped, openTerminalIOFn = origIsPiped, origOpenTTY })

	inFile, err := os.CreateTemp(t.TempDir(), "tty-in-*")
	require.NoError(t, err)
	outFile, err := os.CreateTemp(t.TempDir(), "tty-out-*")
	require.NoError(t, err)
	stdinIsPiped = func() bool { return true }
	openTerminalIOFn = func() (*os.File, *os.File, error) { return inFile, outFile, nil }

	opts, cleanup := getProgramOptions()
	require.Len(t, opts, 3)

	// A second close fails once cleanup has closed both handles.
	cleanup()
	require.Error(t, inFile.Close())
	require.Error(t, outFile.Close())
}

func TestGetProgramOptions_NotPipedUsesDefaults(t *testing.T) {
	origIsPiped, origOpenTTY := stdinIsPiped, openTerminalIOFn
	t.Cleanup(func() { stdinIsPiped, openTerminalIOFn = origIsPiped, origOpenTTY })

	stdinIsPiped = func() bool { return false }
	openTerminalIOFn = func() (*os.File, *os.File, error) {
		return nil, nil, errors.New("should not be called")
	}

	opts, cleanup := getProgramOptions()
	require.Nil(t, opts)
	require.NotPanics(t, cleanup)
}

func TestGetProgramOptions_NoTTYKeepsStdin(t *testing.T) {
	origIsPiped, origOpenTTY := stdinIsPiped, openTerminalIOFn
	t.Cleanup(func() { stdinIsPiped, openTerminalIOFn = origIsPiped, origOpenTTY })

	stdinIsPiped = func() bool { return true }
	openTerminalIOFn = func() (*os.File, *os.File, error) { return nil, nil, os.ErrNotExist }

	opts, cleanup := getProgramOptions()
	require.Nil(t, opts)
	require.NotPanics(t, cleanup)
}

func TestWithTTYResizeWatcherSkipsUnchangedSize(t *testing.T) {
	origTermGetSize, origTicker, origSend := termGetSize, newResizeTicker, sendWindowSize
	t.Cleanup(func() { termGetSize, newResizeTicker, sendWindowSize = origTermGetSize, origTicker, origSend })

	calls := atomic.Int32{}
	termGetSize = func(int) (int, int, error) {
		if calls.Add(1) <= 2 {
			return 80, 24, nil
		}
		return 81, 24, nil
	}
	ticks := make(chan time.Time, 3)
	newResizeTicker = func(time.Duration) resizeTicker { return &fakeResizeTicker{ch: ticks} }
	msgs := make(chan tea.WindowSizeMsg, 3)
	sendWindowSize = func(_ *tea.Program, msg tea.WindowSizeMsg) { msgs <- msg }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_, out := makePipe(t)
	var p tea.Program
	withTTYResizeWatcher(ctx, out)(&p)

	recv := func() tea.WindowSizeMsg {
		t.Helper()
		select {
		case m := <-msgs:
			return m
		case <-time.After(500 * time.Millisecond):
			t.Fatal("timed out waiting for resize message")
			return tea.WindowSizeMsg{}
		}
	}

	ticks <- time.Now()
	assert.Equal(t, tea.WindowSizeMsg{Width: 80, Height: 24}, recv())

	ticks <- time.Now()
	select {
	case m := <-msgs:
		t.Fatalf("unexpected resize message on unchanged size: %+v", m)
	case <-time.After(100 * time.Millisecond):
	}

	ticks <- time.Now()
	assert.Equal(t, tea.WindowSizeMsg{Width: 81, Height: 24}, recv())
}

type fakeResizeTicker struct {
	ch <-chan time.Time
}

func (f *fakeResizeTicker) C() <-chan time.Time { return f.ch }
func (f *fakeResizeTicker) Stop()               {}

func makePipe(t *testing.T) (*os.File, *os.File) {
	t.Helper()
	r, w, err := os.Pipe()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = r.Close()
		_ = w.Close()
	})
	return r, w
}
