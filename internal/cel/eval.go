// Package cel provides CEL expression evaluation for event filtering.
package cel

import (
	"fmt"
	"strings"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
)

// Filter is a compiled CEL expression that can match against typed attribute maps.
// A nil *Filter matches everything.
type Filter struct {
	expr    string
	program cel.Program
}

// Compile parses and compiles a CEL expression. All keys in knownKeys are
// declared as dynamic-typed variables. Unknown keys at evaluation time
// produce false (not an error). An empty expression compiles to a nil
// filter that matches everything.
func Compile(expr string, knownKeys map[string]bool) (*Filter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, nil
	}

	opts := make([]cel.EnvOption, 0, len(knownKeys))
	for k := range knownKeys {
		opts = append(opts, cel.Variable(k, cel.DynType))
	}

	env, err := cel.NewEnv(opts...)
	if err != nil {
		return nil, fmt.Errorf("cel env: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("cel compile: %w", issues.Err())
	}
	if t := ast.OutputType(); !t.IsExactType(cel.BoolType) && !t.IsExactType(cel.DynType) {
		return nil, fmt.Errorf("cel compile: expression must be boolean, got %s", t)
	}

	prog, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("cel program: %w", err)
	}

	return &Filter{expr: expr, program: prog}, nil
}

// String returns the source expression.
func (f *Filter) String() string {
	if f == nil {
		return ""
	}
	return f.expr
}

// Match evaluates the filter against the given attributes.
// Returns false (not error) on missing keys, type mismatches, or evaluation errors.
func (f *Filter) Match(attrs map[string]any) bool {
	if f == nil {
		return true
	}
	out, _, err := f.program.Eval(attrs)
	if err != nil {
		return false
	}
	if out.Type() != types.BoolType {
		return false
	}
	b, ok := out.Value().(bool)
	return ok && b
}
