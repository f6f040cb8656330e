package filter

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/glassflow/batchget/internal/models"
)

// Filter is a compiled boolean expression evaluated against the bins of a record.
type Filter struct {
	Expression         string
	CompiledExpression *vm.Program
}

// New compiles expression. An empty expression yields a nil filter that matches
// every record.
func New(expression string) (*Filter, error) {
	if expression == "" {
		return nil, nil //nolint:nilnil // nil filter matches everything
	}

	compiled, err := expr.Compile(expression)
	if err != nil {
		return nil, fmt.Errorf("%w: compiling filter expression: %w", models.ErrInvalidArgument, err)
	}

	return &Filter{
		Expression:         expression,
		CompiledExpression: compiled,
	}, nil
}

// Matches evaluates the filter with the record bins as variables. A nil filter
// matches everything.
func (f *Filter) Matches(record models.Record) (bool, error) {
	if f == nil {
		return true, nil
	}

	env := make(map[string]any, len(record))
	for name, value := range record {
		env[name] = value
	}

	result, err := expr.Run(f.CompiledExpression, env)
	if err != nil {
		return false, fmt.Errorf("evaluating expression: %w", err)
	}

	matched, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("expression returned %T, expected bool", result)
	}

	return matched, nil
}
