package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"

	"github.com/warp/payroll-engine/engine"
)

// =============================================================================
// ARITHMETIC AND VARIABLES
// =============================================================================

func TestEvaluate_ArithmeticOverContext(t *testing.T) {
	// GIVEN: grossSalary and allowances in the context
	// WHEN: Evaluating (grossSalary + allowances) * 0.15
	// THEN: The numeric result reflects both variables

	ev := engine.NewFormulaEvaluator(0)
	out, err := ev.Evaluate(context.Background(), "(grossSalary + allowances) * 0.15", map[string]any{
		"grossSalary": dec("4000"),
		"allowances":  dec("1000"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.Equal(dec("750")) {
		t.Errorf("expected 750, got %s", out)
	}
}

func TestEvaluate_DivisionAndQuantity(t *testing.T) {
	ev := engine.NewFormulaEvaluator(0)
	out, err := ev.Evaluate(context.Background(), "baseSalary / workDays * OT_QTY * 1.5", map[string]any{
		"baseSalary": dec("4400"),
		"workDays":   22,
		"OT_QTY":     dec("3"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.Equal(dec("900")) {
		t.Errorf("expected 900, got %s", out)
	}
}

func TestEvaluate_ComparisonCoercesToAmount(t *testing.T) {
	// Comparisons yield 1/0 so rules can express on/off amounts.
	ev := engine.NewFormulaEvaluator(0)

	out, err := ev.Evaluate(context.Background(), "grossSalary > 3000.0", map[string]any{"grossSalary": dec("4000")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.Equal(dec("1")) {
		t.Errorf("expected 1, got %s", out)
	}

	out, err = ev.Evaluate(context.Background(), "grossSalary > 5000.0", map[string]any{"grossSalary": dec("4000")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.IsZero() {
		t.Errorf("expected 0, got %s", out)
	}
}

func TestEvaluate_DateStringsComparable(t *testing.T) {
	// Period bounds are injected as ISO strings; lexicographic order
	// matches chronological order.
	ev := engine.NewFormulaEvaluator(0)
	out, err := ev.Evaluate(context.Background(), `periodEndDate >= "2025-06-01" ? 100.0 : 0.0`, map[string]any{
		"periodEndDate": "2025-06-30",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.Equal(dec("100")) {
		t.Errorf("expected 100, got %s", out)
	}
}

// =============================================================================
// FAILURE MODES
// =============================================================================

func TestEvaluate_ParseErrorIsFormulaError(t *testing.T) {
	ev := engine.NewFormulaEvaluator(0)
	_, err := ev.Evaluate(context.Background(), "grossSalary +* 2", map[string]any{"grossSalary": dec("100")})
	if !engine.IsFormula(err) {
		t.Errorf("expected formula error, got %v", err)
	}
}

func TestEvaluate_UnknownVariableIsFormulaError(t *testing.T) {
	ev := engine.NewFormulaEvaluator(0)
	_, err := ev.Evaluate(context.Background(), "notDeclared * 2.0", map[string]any{"grossSalary": dec("100")})
	if !engine.IsFormula(err) {
		t.Errorf("expected formula error, got %v", err)
	}
}

func TestEvaluate_EmptyExpressionIsFormulaError(t *testing.T) {
	ev := engine.NewFormulaEvaluator(0)
	_, err := ev.Evaluate(context.Background(), "  ", map[string]any{})
	if !engine.IsFormula(err) {
		t.Errorf("expected formula error, got %v", err)
	}
}

func TestEvaluate_CancelledContextIsFormulaError(t *testing.T) {
	ev := engine.NewFormulaEvaluator(time.Nanosecond)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ev.Evaluate(ctx, "grossSalary * 2.0", map[string]any{"grossSalary": dec("100")})
	if !engine.IsFormula(err) {
		t.Errorf("expected formula error on cancelled context, got %v", err)
	}
}

func TestEvaluate_FunctionCauseSurvivesWrapping(t *testing.T) {
	// GIVEN: A registered function failing with a configuration error
	// WHEN: A formula calls it (even inside further arithmetic)
	// THEN: The cause stays reachable through the returned error chain,
	//       so callers can escalate instead of degrading the component

	lookupFailed := engine.Violation("missing_tax_brackets", "no brackets configured")
	ev := engine.NewFormulaEvaluatorWithFuncs(0,
		cel.Function("lookupTax",
			cel.Overload("lookup_tax_d", []*cel.Type{cel.DoubleType}, cel.DoubleType,
				cel.FunctionBinding(func(args ...ref.Val) ref.Val {
					return types.WrapErr(lookupFailed)
				}),
			),
		),
	)

	_, err := ev.Evaluate(context.Background(), "lookupTax(grossSalary) / 12.0", map[string]any{
		"grossSalary": dec("100"),
	})
	if !engine.IsFormula(err) {
		t.Fatalf("expected formula error, got %v", err)
	}
	if !engine.IsBusinessRule(err) {
		t.Errorf("expected the business rule cause to unwrap, got %v", err)
	}
}

// =============================================================================
// CACHING
// =============================================================================

func TestEvaluate_CachedProgramReused(t *testing.T) {
	// Same expression and variable shape evaluated twice: the second call
	// hits the compiled-program cache and must produce the same result.
	ev := engine.NewFormulaEvaluator(0)
	vars := func(v string) map[string]any { return map[string]any{"baseSalary": dec(v)} }

	first, err := ev.Evaluate(context.Background(), "baseSalary * 0.1", vars("1000"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := ev.Evaluate(context.Background(), "baseSalary * 0.1", vars("2000"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !first.Equal(dec("100")) || !second.Equal(dec("200")) {
		t.Errorf("expected 100 then 200, got %s then %s", first, second)
	}
}

func TestEvaluate_SignatureChangeRecompiles(t *testing.T) {
	// Same expression with a different variable set must not collide in
	// the cache.
	ev := engine.NewFormulaEvaluator(0)

	out, err := ev.Evaluate(context.Background(), "a + b", map[string]any{"a": dec("1"), "b": dec("2")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.Equal(dec("3")) {
		t.Errorf("expected 3, got %s", out)
	}

	out, err = ev.Evaluate(context.Background(), "a + b", map[string]any{"a": dec("1"), "b": dec("2"), "c": dec("9")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.Equal(dec("3")) {
		t.Errorf("expected 3, got %s", out)
	}
}
