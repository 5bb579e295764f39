package ui

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/oakwood-commons/kvgrid/internal/config"
	"github.com/oakwood-commons/kvgrid/internal/grid"
)

func TestLayoutManager(t *testing.T) {
	lm := NewLayoutManager(0, 0)
	assert.Equal(t, DefaultWidth, lm.Width())
	assert.Equal(t, DefaultHeight, lm.Height())
	assert.Equal(t, DefaultHeight-5, lm.BodyHeight())

	lm.SetDimensions(40, 3)
	assert.Equal(t, MinBodyHeight, lm.BodyHeight())

	cols := []grid.Column{{ID: "a", Name: "Name"}, {ID: "b", Name: "Age", Type: grid.ColumnNumber}}
	l := lm.Columns(cols, [][]string{{"Jane", "42"}}, 120, 24)
	assert.Equal(t, 3, l.Gutter)
	assert.Equal(t, []int{4, 3}, l.Widths)
	assert.Equal(t, 3+2+4+2+3, lineWidth(l))
}

func TestResolveAction(t *testing.T) {
	tests := map[string]Action{
		"j":      ActionDown,
		"up":     ActionUp,
		"enter":  ActionEdit,
		"/":      ActionSearch,
		"ctrl+n": ActionAddRow,
		"ctrl+k": ActionAddColumn,
		"ctrl+r": ActionRetry,
		"q":      ActionQuit,
		"z":      ActionNone,
	}
	for key, want := range tests {
		assert.Equal(t, want, ResolveAction(key), key)
	}
}

func TestNewStylesNoColor(t *testing.T) {
	s := NewStyles(config.Theme{Header: "#ff0000"}, true)
	assert.NotEqual(t, "Jane", s.Cursor.Render("Jane"))

	colored := NewStyles(config.Theme{Header: "#ff0000"}, false)
	assert.NotEqual(t, "Name", colored.Header.Render("Name"))
}

func TestFitLines(t *testing.T) {
	assert.Equal(t, []string{"a", "", ""}, fitLines([]string{"a"}, 3))
	assert.Equal(t, []string{"a"}, fitLines([]string{"a", "b"}, 1))
}
