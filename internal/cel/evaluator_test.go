package cel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluate(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)
	require.NotNil(t, eval.Environment())

	tests := []struct {
		name     string
		expr     string
		data     any
		expected any
	}{
		{"field", "_.Name", map[string]any{"Name": "Jane"}, "Jane"},
		{"number", "_.Age * 2.0", map[string]any{"Age": 21.0}, 42.0},
		{"string extension", `_.Name.upperAscii()`, map[string]any{"Name": "jane"}, "JANE"},
		{"list", "[1, 2].map(x, x * 2)", nil, []any{int64(2), int64(4)}},
		{"map literal", `{"a": 1}`, nil, map[string]any{"a": int64(1)}},
		{"null", "null", nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := eval.Evaluate(tt.expr, tt.data)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestEvaluateErrors(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)

	_, err = eval.Evaluate("_.Name ==", nil)
	assert.ErrorContains(t, err, "compilation error")

	_, err = eval.Evaluate("_.Missing", map[string]any{})
	assert.ErrorContains(t, err, "eval error")
}

func TestPredicate(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)

	match, err := eval.Predicate(`_.Age > 30.0 && _.Name.startsWith("J")`)
	require.NoError(t, err)

	ok, err := match(map[string]any{"Age": 42.0, "Name": "Jane"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = match(map[string]any{"Age": 12.0, "Name": "Jane"})
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = match(map[string]any{"Age": nil, "Name": "Jane"})
	assert.Error(t, err, "null has no ordering")
}

func TestPredicateRejectsNonBool(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)

	_, err = eval.Predicate(`"text"`)
	assert.ErrorIs(t, err, ErrNotBool)

	match, err := eval.Predicate("_.Name")
	require.NoError(t, err, "dyn output is checked at evaluation")
	_, err = match(map[string]any{"Name": "Jane"})
	assert.ErrorIs(t, err, ErrNotBool)

	_, err = eval.Predicate("   ")
	assert.Error(t, err)
}

func TestCompileCaches(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)

	a, err := eval.Compile("1 + 1")
	require.NoError(t, err)
	b, err := eval.Compile("1 + 1")
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, eval.progs, 1)
}

func TestIsExpression(t *testing.T) {
	expr, ok := IsExpression(" = _.Age > 3")
	assert.True(t, ok)
	assert.Equal(t, "_.Age > 3", expr)

	_, ok = IsExpression("jane")
	assert.False(t, ok)
}
