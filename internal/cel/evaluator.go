// Package cel wraps cel-go for row predicates. Expressions see the row bound
// to the "_" variable, e.g. `_.Age > 30 && _.Name.startsWith("J")`.
package cel

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	celext "github.com/google/cel-go/ext"
)

// ExprPrefix marks a search term as a CEL expression instead of plain text.
const ExprPrefix = "="

// ErrNotBool is returned when a predicate evaluates to a non-boolean value.
var ErrNotBool = errors.New("expression must evaluate to a bool")

// Evaluator compiles and evaluates CEL expressions. Compiled programs are
// cached by expression text.
type Evaluator struct {
	env   *cel.Env
	mu    sync.Mutex
	progs map[string]cel.Program
}

// NewEvaluator creates an evaluator with the string, encoder, list and math
// extensions loaded. Extra options extend the environment.
func NewEvaluator(opts ...cel.EnvOption) (*Evaluator, error) {
	env, err := newStandardCELEnv(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	return &Evaluator{env: env, progs: make(map[string]cel.Program)}, nil
}

// Environment returns the CEL environment for introspection.
func (e *Evaluator) Environment() *cel.Env {
	return e.env
}

func newStandardCELEnv(opts ...cel.EnvOption) (*cel.Env, error) {
	allOpts := make([]cel.EnvOption, 0, 5+len(opts))
	allOpts = append(allOpts,
		cel.Variable("_", cel.DynType),
		celext.Strings(),
		celext.Encoders(),
		celext.Lists(),
		celext.Math(),
	)
	allOpts = append(allOpts, opts...)
	return cel.NewEnv(allOpts...)
}

// Compile parses, checks and plans expr.
func (e *Evaluator) Compile(expr string) (cel.Program, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if prg, ok := e.progs[expr]; ok {
		return prg, nil
	}
	ast, issues := e.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compilation error: %w", issues.Err())
	}
	prg, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("program error: %w", err)
	}
	e.progs[expr] = prg
	return prg, nil
}

// Evaluate runs expr with data bound to "_" and converts the result to Go types.
func (e *Evaluator) Evaluate(expr string, data any) (any, error) {
	prg, err := e.Compile(expr)
	if err != nil {
		return nil, err
	}
	out, _, err := prg.Eval(map[string]any{"_": data})
	if err != nil {
		return nil, fmt.Errorf("eval error: %w", err)
	}
	return ToGo(out), nil
}

// Predicate reports whether data satisfies a boolean expression.
type Predicate func(data any) (bool, error)

// Predicate compiles expr once and returns a matcher. Expressions whose
// static type is known and not bool are rejected up front.
func (e *Evaluator) Predicate(expr string) (Predicate, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, errors.New("empty expression")
	}
	ast, issues := e.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compilation error: %w", issues.Err())
	}
	switch k := ast.OutputType().Kind(); k {
	case types.BoolKind, types.DynKind, types.AnyKind:
	default:
		return nil, fmt.Errorf("%w, got %s", ErrNotBool, ast.OutputType())
	}
	prg, err := e.Compile(expr)
	if err != nil {
		return nil, err
	}
	return func(data any) (bool, error) {
		out, _, err := prg.Eval(map[string]any{"_": data})
		if err != nil {
			return false, fmt.Errorf("eval error: %w", err)
		}
		b, ok := out.(types.Bool)
		if !ok {
			return false, fmt.Errorf("%w, got %s", ErrNotBool, out.Type().TypeName())
		}
		return bool(b), nil
	}, nil
}

// IsExpression reports whether a search term is a CEL expression and returns
// the expression without its prefix.
func IsExpression(term string) (string, bool) {
	term = strings.TrimSpace(term)
	if !strings.HasPrefix(term, ExprPrefix) {
		return "", false
	}
	return strings.TrimSpace(strings.TrimPrefix(term, ExprPrefix)), true
}

// ToGo converts CEL values to Go native types recursively.
func ToGo(val ref.Val) any {
	if val == nil {
		return nil
	}
	switch v := val.(type) {
	case types.Bool:
		return bool(v)
	case types.Int:
		return int64(v)
	case types.Uint:
		return uint64(v)
	case types.Double:
		return float64(v)
	case types.String:
		return string(v)
	case types.Bytes:
		return []byte(v)
	case types.Null:
		return nil
	}
	valuer, ok := val.(interface{ Value() any })
	if !ok {
		return val
	}
	switch inner := valuer.Value().(type) {
	case []ref.Val:
		out := make([]any, len(inner))
		for i, elem := range inner {
			out[i] = ToGo(elem)
		}
		return out
	case []any:
		out := make([]any, len(inner))
		for i, elem := range inner {
			if rv, ok := elem.(ref.Val); ok {
				out[i] = ToGo(rv)
			} else {
				out[i] = elem
			}
		}
		return out
	case map[ref.Val]ref.Val:
		out := make(map[string]any, len(inner))
		for k, v := range inner {
			out[fmt.Sprintf("%v", ToGo(k))] = ToGo(v)
		}
		return out
	default:
		return inner
	}
}
