/*
formula.go - Pay rule formula evaluation

PURPOSE:
  Pay rules carry formula expression strings like

    (grossSalary + allowances) * 0.15
    baseSalary / workDays * OT_QTY

  referencing named calculation-context variables. This file evaluates
  those expressions with CEL (github.com/google/cel-go): arithmetic,
  comparisons and numeric literals over declared variables, with no
  general scripting surface.

COMPILATION CACHE:
  Expressions are compiled once per (expression, variable signature) and
  the resulting cel.Program is cached in a sync.Map. Programs are safe
  for concurrent evaluation.

TIMEOUTS / CANCELLATION:
  Programs are built with an interrupt check and evaluated via
  ContextEval, so a bounded evaluation budget can be enforced by the
  caller's context. A timeout is reported as a FormulaError like any
  other evaluation failure.

NUMERIC DOMAIN:
  CEL evaluates on float64. Context values are injected as doubles and
  results converted back to decimal; rounding is applied by the caller
  when a pay line is emitted, never inside the formula.
*/
package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/shopspring/decimal"
)

// =============================================================================
// EVALUATOR
// =============================================================================

// FormulaEvaluator compiles and runs pay-rule expressions.
// Safe for concurrent use.
type FormulaEvaluator struct {
	// Timeout bounds a single evaluation. Zero means no bound.
	Timeout time.Duration

	funcs    []cel.EnvOption
	programs sync.Map // signature+expr -> cel.Program
}

func NewFormulaEvaluator(timeout time.Duration) *FormulaEvaluator {
	return &FormulaEvaluator{Timeout: timeout}
}

// NewFormulaEvaluatorWithFuncs also registers custom function declarations
// (built with cel.Function) that formulas may call, such as tax table or
// exchange rate lookups. Functions are fixed for the evaluator's lifetime
// because compiled programs bake them in.
func NewFormulaEvaluatorWithFuncs(timeout time.Duration, funcs ...cel.EnvOption) *FormulaEvaluator {
	return &FormulaEvaluator{Timeout: timeout, funcs: funcs}
}

// Evaluate runs expr against vars and returns the numeric result.
// Supported variable values: decimal.Decimal, float64, int, int64 (declared
// as CEL doubles) and string (declared as CEL strings, used for dates).
// Boolean results are coerced to 1/0 so comparison expressions can be used
// as on/off amounts. Every failure is returned as a *FormulaError.
func (e *FormulaEvaluator) Evaluate(ctx context.Context, expr string, vars map[string]any) (decimal.Decimal, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return decimal.Zero, &FormulaError{Expression: expr, Cause: fmt.Errorf("empty expression")}
	}

	activation, signature, err := buildActivation(vars)
	if err != nil {
		return decimal.Zero, &FormulaError{Expression: expr, Cause: err}
	}

	program, err := e.loadOrCompile(expr, signature, vars)
	if err != nil {
		return decimal.Zero, &FormulaError{Expression: expr, Cause: err}
	}

	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	out, _, err := program.ContextEval(ctx, activation)
	if err != nil {
		return decimal.Zero, &FormulaError{Expression: expr, Cause: err}
	}

	switch v := out.Value().(type) {
	case float64:
		return decimal.NewFromFloat(v), nil
	case int64:
		return decimal.NewFromInt(v), nil
	case uint64:
		return decimal.NewFromUint64(v), nil
	case bool:
		if v {
			return decimal.NewFromInt(1), nil
		}
		return decimal.Zero, nil
	default:
		return decimal.Zero, &FormulaError{
			Expression: expr,
			Cause:      fmt.Errorf("non-numeric result %T", out.Value()),
		}
	}
}

// loadOrCompile returns the cached program for (signature, expr),
// compiling and caching it on first use.
func (e *FormulaEvaluator) loadOrCompile(expr, signature string, vars map[string]any) (cel.Program, error) {
	cacheKey := signature + "\x00" + expr
	if cached, ok := e.programs.Load(cacheKey); ok {
		return cached.(cel.Program), nil
	}

	opts := make([]cel.EnvOption, 0, len(vars)+len(e.funcs))
	opts = append(opts, e.funcs...)
	for name, value := range vars {
		switch value.(type) {
		case string:
			opts = append(opts, cel.Variable(name, cel.StringType))
		default:
			opts = append(opts, cel.Variable(name, cel.DoubleType))
		}
	}

	env, err := cel.NewEnv(opts...)
	if err != nil {
		return nil, err
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	program, err := env.Program(ast, cel.InterruptCheckFrequency(100))
	if err != nil {
		return nil, err
	}

	e.programs.Store(cacheKey, program)
	return program, nil
}

// buildActivation converts vars into CEL-native values and derives the
// variable signature used as part of the cache key.
func buildActivation(vars map[string]any) (map[string]any, string, error) {
	activation := make(map[string]any, len(vars))
	names := make([]string, 0, len(vars))

	for name, value := range vars {
		switch v := value.(type) {
		case decimal.Decimal:
			f, _ := v.Float64()
			activation[name] = f
			names = append(names, name+":d")
		case float64:
			activation[name] = v
			names = append(names, name+":d")
		case int:
			activation[name] = float64(v)
			names = append(names, name+":d")
		case int64:
			activation[name] = float64(v)
			names = append(names, name+":d")
		case string:
			activation[name] = v
			names = append(names, name+":s")
		default:
			return nil, "", fmt.Errorf("unsupported variable type %T for %q", value, name)
		}
	}

	sort.Strings(names)
	return activation, strings.Join(names, ","), nil
}
