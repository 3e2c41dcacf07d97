package payroll_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/payroll-engine/engine"
	"github.com/warp/payroll-engine/payroll"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func dec(s string) decimal.Decimal { return engine.MustDecimal(s) }

func date(y int, m time.Month, d int) engine.Date { return engine.NewDate(y, m, d) }

func junePeriod() payroll.PayrollPeriod {
	return payroll.PayrollPeriod{
		ID:          "p-2025-06",
		Code:        "2025-06",
		Start:       date(2025, time.June, 1),
		End:         date(2025, time.June, 30),
		PaymentDate: date(2025, time.June, 28),
	}
}

func testEmployee() payroll.Employee {
	return payroll.Employee{
		ID:       "emp-1",
		Name:     "Dana Osei",
		HireDate: date(2023, time.January, 9),
		Country:  "US",
		Currency: "USD",
		Active:   true,
	}
}

func newCalc(base string) *payroll.CalcContext {
	return payroll.NewCalcContext(testEmployee(), junePeriod(), dec(base), 21)
}

func earn(code string, phase int) payroll.PayComponent {
	return payroll.PayComponent{Code: code, Name: code, Kind: payroll.KindEarning, CalcPhase: phase}
}

func rule(id, code, formula string, priority int) payroll.PayRule {
	return payroll.PayRule{
		ID:            id,
		ComponentCode: code,
		Formula:       formula,
		Priority:      priority,
		Active:        true,
		From:          date(2020, time.January, 1),
	}
}

// =============================================================================
// RESOLUTION ORDER
// =============================================================================

func TestResolve_InputOverridesRule(t *testing.T) {
	// GIVEN: A BONUS rule and an explicit period input for BONUS
	// WHEN: Resolving the component
	// THEN: The input amount wins without evaluating the rule

	reg := payroll.NewRegistry(
		[]payroll.PayComponent{earn("BONUS", 2)},
		[]payroll.PayRule{rule("r1", "BONUS", "baseSalary * 0.5", 1)},
		engine.NewFormulaEvaluator(0),
	)
	input := &payroll.PeriodInput{ComponentCode: "BONUS", Amount: dec("120.00")}

	res, err := reg.Resolve(context.Background(), earn("BONUS", 2), newCalc("5000"), input, junePeriod().End)
	require.NoError(t, err)
	assert.Equal(t, payroll.SourceInput, res.Source)
	assert.True(t, res.Amount.Equal(dec("120.00")), "got %s", res.Amount)
}

func TestResolve_QuantityTimesRateInput(t *testing.T) {
	reg := payroll.NewRegistry([]payroll.PayComponent{earn("OT", 2)}, nil, engine.NewFormulaEvaluator(0))
	input := &payroll.PeriodInput{ComponentCode: "OT", Quantity: dec("3"), Rate: dec("42.50")}

	res, err := reg.Resolve(context.Background(), earn("OT", 2), newCalc("5000"), input, junePeriod().End)
	require.NoError(t, err)
	assert.True(t, res.Amount.Equal(dec("127.50")), "got %s", res.Amount)
	assert.True(t, res.Quantity.Equal(dec("3")))
	assert.True(t, res.Rate.Equal(dec("42.50")))
}

func TestResolve_ZeroInputStillProducesLine(t *testing.T) {
	// An explicit zero input suppresses the rule but still emits a line.
	reg := payroll.NewRegistry(
		[]payroll.PayComponent{earn("BONUS", 2)},
		[]payroll.PayRule{rule("r1", "BONUS", "100.0", 1)},
		engine.NewFormulaEvaluator(0),
	)
	input := &payroll.PeriodInput{ComponentCode: "BONUS"}

	res, err := reg.Resolve(context.Background(), earn("BONUS", 2), newCalc("5000"), input, junePeriod().End)
	require.NoError(t, err)
	assert.True(t, res.Produced())
	assert.True(t, res.Amount.IsZero())
}

func TestResolve_RuleFormulaWhenNoInput(t *testing.T) {
	reg := payroll.NewRegistry(
		[]payroll.PayComponent{earn("ALLOWANCE", 2)},
		[]payroll.PayRule{rule("r1", "ALLOWANCE", "baseSalary * 0.1", 1)},
		engine.NewFormulaEvaluator(0),
	)

	res, err := reg.Resolve(context.Background(), earn("ALLOWANCE", 2), newCalc("5000"), nil, junePeriod().End)
	require.NoError(t, err)
	assert.Equal(t, payroll.SourceRule, res.Source)
	assert.Equal(t, "r1", res.RuleID)
	assert.True(t, res.Amount.Equal(dec("500.00")), "got %s", res.Amount)
}

func TestResolve_BasePayPassthrough(t *testing.T) {
	base := payroll.PayComponent{Code: "BASE", Kind: payroll.KindEarning, CalcPhase: 1, BasePay: true}
	reg := payroll.NewRegistry([]payroll.PayComponent{base}, nil, engine.NewFormulaEvaluator(0))

	res, err := reg.Resolve(context.Background(), base, newCalc("4321.555"), nil, junePeriod().End)
	require.NoError(t, err)
	assert.Equal(t, payroll.SourceBase, res.Source)
	assert.True(t, res.Amount.Equal(dec("4321.56")), "got %s", res.Amount)
}

func TestResolve_NothingApplicableIsAbsent(t *testing.T) {
	reg := payroll.NewRegistry([]payroll.PayComponent{earn("BONUS", 2)}, nil, engine.NewFormulaEvaluator(0))

	res, err := reg.Resolve(context.Background(), earn("BONUS", 2), newCalc("5000"), nil, junePeriod().End)
	require.NoError(t, err)
	assert.False(t, res.Produced())
}

// =============================================================================
// RULE SELECTION
// =============================================================================

func TestResolve_HighestPriorityRuleWins(t *testing.T) {
	reg := payroll.NewRegistry(
		[]payroll.PayComponent{earn("BONUS", 2)},
		[]payroll.PayRule{
			rule("low", "BONUS", "999.0", 1),
			rule("high", "BONUS", "100.0", 10),
		},
		engine.NewFormulaEvaluator(0),
	)

	res, err := reg.Resolve(context.Background(), earn("BONUS", 2), newCalc("5000"), nil, junePeriod().End)
	require.NoError(t, err)
	assert.Equal(t, "high", res.RuleID)
	assert.True(t, res.Amount.Equal(dec("100.00")))
}

func TestResolve_PriorityTieBreaksOnLowestID(t *testing.T) {
	// Deterministic regardless of rule insertion order.
	reg := payroll.NewRegistry(
		[]payroll.PayComponent{earn("BONUS", 2)},
		[]payroll.PayRule{
			rule("zz-rule", "BONUS", "2.0", 5),
			rule("aa-rule", "BONUS", "1.0", 5),
		},
		engine.NewFormulaEvaluator(0),
	)

	res, err := reg.Resolve(context.Background(), earn("BONUS", 2), newCalc("5000"), nil, junePeriod().End)
	require.NoError(t, err)
	assert.Equal(t, "aa-rule", res.RuleID)
}

func TestResolve_InactiveAndExpiredRulesSkipped(t *testing.T) {
	inactive := rule("r-inactive", "BONUS", "111.0", 10)
	inactive.Active = false

	expired := rule("r-expired", "BONUS", "222.0", 10)
	end := date(2024, time.December, 31)
	expired.To = &end

	reg := payroll.NewRegistry(
		[]payroll.PayComponent{earn("BONUS", 2)},
		[]payroll.PayRule{inactive, expired, rule("r-live", "BONUS", "333.0", 1)},
		engine.NewFormulaEvaluator(0),
	)

	res, err := reg.Resolve(context.Background(), earn("BONUS", 2), newCalc("5000"), nil, junePeriod().End)
	require.NoError(t, err)
	assert.Equal(t, "r-live", res.RuleID)
	assert.True(t, res.Amount.Equal(dec("333.00")))
}

// =============================================================================
// FAILURE HANDLING
// =============================================================================

func TestResolve_FormulaFailureDegradesToAbsent(t *testing.T) {
	// GIVEN: A rule referencing an undeclared variable
	// WHEN: Resolving
	// THEN: No hard error; the component is absent with the cause attached

	reg := payroll.NewRegistry(
		[]payroll.PayComponent{earn("BONUS", 2)},
		[]payroll.PayRule{rule("r1", "BONUS", "noSuchVariable * 2.0", 1)},
		engine.NewFormulaEvaluator(0),
	)

	res, err := reg.Resolve(context.Background(), earn("BONUS", 2), newCalc("5000"), nil, junePeriod().End)
	require.NoError(t, err)
	assert.False(t, res.Produced())
	assert.Error(t, res.FormulaErr)
	assert.True(t, engine.IsFormula(res.FormulaErr))
}

// =============================================================================
// PHASE ORDERING
// =============================================================================

func TestComponents_AscendingPhaseThenCode(t *testing.T) {
	reg := payroll.NewRegistry([]payroll.PayComponent{
		{Code: "TAX", CalcPhase: 3},
		{Code: "BASE", CalcPhase: 1},
		{Code: "OT", CalcPhase: 2},
		{Code: "BONUS", CalcPhase: 2},
	}, nil, engine.NewFormulaEvaluator(0))

	var codes []string
	for _, c := range reg.Components() {
		codes = append(codes, c.Code)
	}
	assert.Equal(t, []string{"BASE", "BONUS", "OT", "TAX"}, codes)
}
