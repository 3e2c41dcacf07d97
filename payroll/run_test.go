package payroll_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/payroll-engine/engine"
	"github.com/warp/payroll-engine/payroll"
	"github.com/warp/payroll-engine/store/memory"
)

// =============================================================================
// TEST WORLD
// =============================================================================

// newTestWorld seeds a store with one employee on 5000 USD monthly, a
// three-component catalog (base, 10% bonus, 10% flat tax) and an open
// June period.
func newTestWorld(t *testing.T) (*memory.Store, *payroll.Orchestrator, payroll.PayrollPeriod) {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	orch := payroll.NewOrchestrator(store, payroll.Config{Workers: 2})

	period, err := store.Periods().SavePeriod(ctx, junePeriod())
	require.NoError(t, err)

	_, err = store.Employees().SaveEmployee(ctx, testEmployee())
	require.NoError(t, err)

	for _, c := range []payroll.PayComponent{
		{Code: "BASE", Name: "Base salary", Kind: payroll.KindEarning, CalcPhase: 1, BasePay: true, Taxable: true},
		{Code: "BONUS", Name: "Monthly bonus", Kind: payroll.KindEarning, CalcPhase: 2, Taxable: true},
		{Code: "TAX", Name: "Income tax", Kind: payroll.KindDeduction, CalcPhase: 3},
	} {
		_, err = store.Components().SaveComponent(ctx, c)
		require.NoError(t, err)
	}
	for _, r := range []payroll.PayRule{
		rule("rule-bonus", "BONUS", "baseSalary * 0.1", 1),
		rule("rule-tax", "TAX", "grossSalary * 0.1", 1),
	} {
		_, err = store.Components().SaveRule(ctx, r)
		require.NoError(t, err)
	}

	_, _, err = orch.Compensation().CreateWithClosure(ctx, "emp-1", payroll.BaseCompensationType, payroll.Compensation{
		EmployeeID: "emp-1",
		Type:       payroll.BaseCompensationType,
		Amount:     dec("5000"),
		Currency:   "USD",
		Basis:      payroll.BasisMonthly,
		From:       date(2024, time.January, 1),
	})
	require.NoError(t, err)

	return store, orch, period
}

// =============================================================================
// LIFECYCLE
// =============================================================================

func TestRun_FullLifecycle(t *testing.T) {
	// GIVEN: The seeded world
	// WHEN: Creating, calculating, approving and posting a run
	// THEN: Amounts aggregate correctly and the period closes on post

	ctx := context.Background()
	store, orch, period := newTestWorld(t)

	run, err := orch.CreateRun(ctx, period.ID, payroll.RunScope{})
	require.NoError(t, err)
	assert.Equal(t, payroll.StatusDraft, run.Status)

	summary, err := orch.Calculate(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, payroll.StatusCalculated, summary.Run.Status)
	assert.Equal(t, 1, summary.SucceededCount)
	assert.Equal(t, 0, summary.FailedCount)
	assert.True(t, summary.TotalGross.Equal(dec("5500.00")), "gross %s", summary.TotalGross)
	assert.True(t, summary.TotalNet.Equal(dec("4950.00")), "net %s", summary.TotalNet)
	assert.NotEmpty(t, summary.Run.Hash)

	results, err := store.Runs().ListResults(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Gross.Equal(dec("5500.00")))
	assert.True(t, results[0].TotalDeductions.Equal(dec("550.00")))
	assert.True(t, results[0].Net.Equal(dec("4950.00")))

	lines, err := store.Runs().ListLines(ctx, results[0].ID)
	require.NoError(t, err)
	require.Len(t, lines, 3)
	assert.Equal(t, "BASE", lines[0].ComponentCode)
	assert.Equal(t, "BONUS", lines[1].ComponentCode)
	assert.Equal(t, "TAX", lines[2].ComponentCode)
	assert.True(t, lines[1].Amount.Equal(dec("500.00")))

	approved, err := orch.Approve(ctx, run.ID, "cfo@example.com")
	require.NoError(t, err)
	assert.Equal(t, payroll.StatusApproved, approved.Status)
	assert.Equal(t, "cfo@example.com", approved.ApprovedBy)

	posted, err := orch.Post(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, payroll.StatusPosted, posted.Status)

	closedPeriod, err := store.Periods().GetPeriod(ctx, period.ID)
	require.NoError(t, err)
	assert.True(t, closedPeriod.Closed)

	_, err = orch.Recalculate(ctx, run.ID)
	assert.True(t, engine.IsBusinessRule(err), "posted runs must be immutable, got %v", err)
}

func TestRun_StatusTransitionGuards(t *testing.T) {
	ctx := context.Background()
	_, orch, period := newTestWorld(t)

	run, err := orch.CreateRun(ctx, period.ID, payroll.RunScope{})
	require.NoError(t, err)

	_, err = orch.Approve(ctx, run.ID, "cfo@example.com")
	assert.True(t, engine.IsBusinessRule(err), "draft cannot be approved, got %v", err)
	_, err = orch.Post(ctx, run.ID)
	assert.True(t, engine.IsBusinessRule(err), "draft cannot be posted, got %v", err)

	_, err = orch.Calculate(ctx, run.ID)
	require.NoError(t, err)

	_, err = orch.Calculate(ctx, run.ID)
	assert.True(t, engine.IsBusinessRule(err), "calculated runs recalculate via Recalculate, got %v", err)
	_, err = orch.Post(ctx, run.ID)
	assert.True(t, engine.IsBusinessRule(err), "calculated cannot skip approval, got %v", err)

	_, err = orch.Approve(ctx, run.ID, " ")
	assert.True(t, engine.IsBusinessRule(err), "blank approver rejected, got %v", err)
}

func TestCreateRun_RejectsSecondOpenRunAndClosedPeriod(t *testing.T) {
	ctx := context.Background()
	store, orch, period := newTestWorld(t)

	_, err := orch.CreateRun(ctx, period.ID, payroll.RunScope{})
	require.NoError(t, err)
	_, err = orch.CreateRun(ctx, period.ID, payroll.RunScope{})
	assert.True(t, engine.IsBusinessRule(err), "expected run_exists, got %v", err)

	period.Closed = true
	_, err = store.Periods().SavePeriod(ctx, period)
	require.NoError(t, err)
	_, err = orch.CreateRun(ctx, period.ID, payroll.RunScope{PayGroup: "other"})
	assert.True(t, engine.IsBusinessRule(err), "expected period_closed, got %v", err)
}

// =============================================================================
// IDEMPOTENT RECALCULATION
// =============================================================================

func TestRun_RecalculationKeepsResultIdentityAndHash(t *testing.T) {
	// GIVEN: A calculated run
	// WHEN: Recalculating over unchanged data
	// THEN: Same result IDs, same lines, same content hash

	ctx := context.Background()
	store, orch, period := newTestWorld(t)

	run, err := orch.CreateRun(ctx, period.ID, payroll.RunScope{})
	require.NoError(t, err)
	first, err := orch.Calculate(ctx, run.ID)
	require.NoError(t, err)

	results, err := store.Runs().ListResults(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, results, 1)
	firstID := results[0].ID
	firstLines, err := store.Runs().ListLines(ctx, firstID)
	require.NoError(t, err)

	second, err := orch.Recalculate(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Run.Hash, second.Run.Hash)

	results, err = store.Runs().ListResults(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, results, 1, "recalculation must not duplicate results")
	assert.Equal(t, firstID, results[0].ID)

	secondLines, err := store.Runs().ListLines(ctx, firstID)
	require.NoError(t, err)
	require.Len(t, secondLines, len(firstLines))
	for i := range firstLines {
		assert.Equal(t, firstLines[i].ComponentCode, secondLines[i].ComponentCode)
		assert.True(t, firstLines[i].Amount.Equal(secondLines[i].Amount))
	}
}

// =============================================================================
// PARTIAL SUCCESS
// =============================================================================

func TestRun_MissingCompensationFailsOneEmployeeOnly(t *testing.T) {
	// GIVEN: A second employee with no compensation record
	// WHEN: Calculating
	// THEN: One structured error; the first employee's result still lands

	ctx := context.Background()
	store, orch, period := newTestWorld(t)

	_, err := store.Employees().SaveEmployee(ctx, payroll.Employee{
		ID: "emp-2", Name: "Remy Bloch", Country: "US", Currency: "USD", Active: true,
		HireDate: date(2025, time.May, 1),
	})
	require.NoError(t, err)

	run, err := orch.CreateRun(ctx, period.ID, payroll.RunScope{})
	require.NoError(t, err)
	summary, err := orch.Calculate(ctx, run.ID)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.EmployeeCount)
	assert.Equal(t, 1, summary.SucceededCount)
	assert.Equal(t, 1, summary.FailedCount)
	require.Len(t, summary.Errors, 1)
	assert.Equal(t, "emp-2", summary.Errors[0].EmployeeID)
	assert.Equal(t, "missing_compensation", summary.Errors[0].Code)
	assert.Equal(t, "error", summary.Errors[0].Severity)

	results, err := store.Runs().ListResults(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "emp-1", results[0].EmployeeID)
}

func TestRun_FormulaFailureDegradesWithWarning(t *testing.T) {
	ctx := context.Background()
	store, orch, period := newTestWorld(t)

	_, err := store.Components().SaveComponent(ctx, payroll.PayComponent{
		Code: "BROKEN", Kind: payroll.KindEarning, CalcPhase: 2,
	})
	require.NoError(t, err)
	_, err = store.Components().SaveRule(ctx, rule("rule-broken", "BROKEN", "undefinedVar * 2.0", 1))
	require.NoError(t, err)

	run, err := orch.CreateRun(ctx, period.ID, payroll.RunScope{})
	require.NoError(t, err)
	summary, err := orch.Calculate(ctx, run.ID)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.SucceededCount, "degraded component must not fail the employee")
	require.Len(t, summary.Errors, 1)
	assert.Equal(t, "warning", summary.Errors[0].Severity)
	assert.Equal(t, "formula_failed", summary.Errors[0].Code)

	// The broken component produced no line; totals are unchanged.
	assert.True(t, summary.TotalGross.Equal(dec("5500.00")), "gross %s", summary.TotalGross)
}

func TestRun_MissingTaxBracketsFailsEmployee(t *testing.T) {
	// GIVEN: A withholding component whose rule needs the bracket table,
	//        and no brackets configured
	// WHEN: Calculating
	// THEN: The employee fails with missing_tax_brackets; the component
	//       never degrades into silent zero withholding

	ctx := context.Background()
	store, orch, period := newTestWorld(t)

	_, err := store.Components().SaveComponent(ctx, payroll.PayComponent{
		Code: "WHT", Name: "Income tax withholding", Kind: payroll.KindDeduction, CalcPhase: 4,
	})
	require.NoError(t, err)
	_, err = store.Components().SaveRule(ctx,
		rule("rule-wht", "WHT", `progressiveTax(country, "FED", grossSalary * 12.0, periodEndDate) / 12.0`, 1))
	require.NoError(t, err)

	run, err := orch.CreateRun(ctx, period.ID, payroll.RunScope{})
	require.NoError(t, err)
	summary, err := orch.Calculate(ctx, run.ID)
	require.NoError(t, err)

	assert.Equal(t, 0, summary.SucceededCount)
	assert.Equal(t, 1, summary.FailedCount)
	require.Len(t, summary.Errors, 1)
	assert.Equal(t, "missing_tax_brackets", summary.Errors[0].Code)
	assert.Equal(t, "error", summary.Errors[0].Severity)

	results, err := store.Runs().ListResults(ctx, run.ID)
	require.NoError(t, err)
	assert.Empty(t, results, "a failed employee must not store a zero-tax result")
}

func TestRun_NegativeDeductionAggregatesByMagnitude(t *testing.T) {
	// GIVEN: A deduction rule yielding a negative amount
	// WHEN: Calculating
	// THEN: Total deductions grow by its magnitude; net never exceeds
	//       gross minus the other deductions

	ctx := context.Background()
	store, orch, period := newTestWorld(t)

	_, err := store.Components().SaveComponent(ctx, payroll.PayComponent{
		Code: "ADJ", Name: "Deduction adjustment", Kind: payroll.KindDeduction, CalcPhase: 3,
	})
	require.NoError(t, err)
	_, err = store.Components().SaveRule(ctx, rule("rule-adj", "ADJ", "0.0 - 100.0", 1))
	require.NoError(t, err)

	run, err := orch.CreateRun(ctx, period.ID, payroll.RunScope{})
	require.NoError(t, err)
	summary, err := orch.Calculate(ctx, run.ID)
	require.NoError(t, err)
	require.Empty(t, summary.Errors)

	results, err := store.Runs().ListResults(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Gross.Equal(dec("5500.00")), "gross %s", results[0].Gross)
	assert.True(t, results[0].TotalDeductions.Equal(dec("650.00")), "deductions %s", results[0].TotalDeductions)
	assert.True(t, results[0].Net.Equal(dec("4850.00")), "net %s", results[0].Net)
}

func TestRun_ApprovalAuthorityCheckEnforced(t *testing.T) {
	// GIVEN: An orchestrator configured with an authority check
	// WHEN: An unauthorized approver tries to approve a calculated run
	// THEN: The transition is rejected; an authorized approver succeeds

	ctx := context.Background()
	store, _, period := newTestWorld(t)
	orch := payroll.NewOrchestrator(store, payroll.Config{
		AuthorityCheck: func(_ context.Context, approver string, _ payroll.PayrollRun) (bool, error) {
			return approver == "cfo@example.com", nil
		},
	})

	run, err := orch.CreateRun(ctx, period.ID, payroll.RunScope{})
	require.NoError(t, err)
	_, err = orch.Calculate(ctx, run.ID)
	require.NoError(t, err)

	_, err = orch.Approve(ctx, run.ID, "intern@example.com")
	assert.True(t, engine.IsBusinessRule(err), "unauthorized approver rejected, got %v", err)

	approved, err := orch.Approve(ctx, run.ID, "cfo@example.com")
	require.NoError(t, err)
	assert.Equal(t, payroll.StatusApproved, approved.Status)
}

func TestRun_FailedRecalculationDropsStaleResult(t *testing.T) {
	// GIVEN: A run calculated successfully, then the employee's base
	//        compensation terminated before the period end
	// WHEN: Recalculating
	// THEN: The employee fails and the stale result disappears; the
	//       stored summary never counts them as both succeeded and failed

	ctx := context.Background()
	store, orch, period := newTestWorld(t)

	run, err := orch.CreateRun(ctx, period.ID, payroll.RunScope{})
	require.NoError(t, err)
	first, err := orch.Calculate(ctx, run.ID)
	require.NoError(t, err)
	require.Equal(t, 1, first.SucceededCount)

	_, err = orch.Compensation().Terminate(ctx, "emp-1", payroll.BaseCompensationType, date(2025, time.May, 31))
	require.NoError(t, err)

	second, err := orch.Recalculate(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, second.SucceededCount)
	assert.Equal(t, 1, second.FailedCount)
	require.Len(t, second.Errors, 1)
	assert.Equal(t, "missing_compensation", second.Errors[0].Code)

	results, err := store.Runs().ListResults(ctx, run.ID)
	require.NoError(t, err)
	assert.Empty(t, results, "failed recalculation must drop the previous result")

	stored, err := orch.Summary(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.SucceededCount)
	assert.Equal(t, 1, stored.FailedCount)
	assert.Equal(t, 1, stored.EmployeeCount)
}

// =============================================================================
// DATA FLOW
// =============================================================================

func TestRun_LaterPhaseSeesEarlierComponent(t *testing.T) {
	// GIVEN: Component A in phase 1 and B = A * 0.5 in phase 2
	// WHEN: Calculating
	// THEN: B resolves against A's written-back amount

	ctx := context.Background()
	store := memory.New()
	orch := payroll.NewOrchestrator(store, payroll.Config{})

	period, err := store.Periods().SavePeriod(ctx, junePeriod())
	require.NoError(t, err)
	_, err = store.Employees().SaveEmployee(ctx, testEmployee())
	require.NoError(t, err)
	_, _, err = orch.Compensation().CreateWithClosure(ctx, "emp-1", payroll.BaseCompensationType, payroll.Compensation{
		EmployeeID: "emp-1", Type: payroll.BaseCompensationType,
		Amount: dec("1"), Currency: "USD", Basis: payroll.BasisMonthly,
		From: date(2024, time.January, 1),
	})
	require.NoError(t, err)

	_, err = store.Components().SaveComponent(ctx, payroll.PayComponent{Code: "A", Kind: payroll.KindEarning, CalcPhase: 1})
	require.NoError(t, err)
	_, err = store.Components().SaveComponent(ctx, payroll.PayComponent{Code: "B", Kind: payroll.KindEarning, CalcPhase: 2})
	require.NoError(t, err)
	_, err = store.Components().SaveRule(ctx, rule("rule-a", "A", "1000.0", 1))
	require.NoError(t, err)
	_, err = store.Components().SaveRule(ctx, rule("rule-b", "B", "A * 0.5", 1))
	require.NoError(t, err)

	run, err := orch.CreateRun(ctx, period.ID, payroll.RunScope{})
	require.NoError(t, err)
	summary, err := orch.Calculate(ctx, run.ID)
	require.NoError(t, err)

	require.Empty(t, summary.Errors)
	assert.True(t, summary.TotalGross.Equal(dec("1500.00")), "gross %s", summary.TotalGross)
}

func TestRun_InputOverrideFlowsIntoDownstreamFormulas(t *testing.T) {
	// An explicit BONUS input replaces the rule amount, and the tax
	// formula sees the overridden gross.
	ctx := context.Background()
	store, orch, period := newTestWorld(t)

	_, err := store.Periods().SaveInput(ctx, payroll.PeriodInput{
		PeriodID: period.ID, EmployeeID: "emp-1", ComponentCode: "BONUS", Amount: dec("120.00"),
	})
	require.NoError(t, err)

	run, err := orch.CreateRun(ctx, period.ID, payroll.RunScope{})
	require.NoError(t, err)
	summary, err := orch.Calculate(ctx, run.ID)
	require.NoError(t, err)

	assert.True(t, summary.TotalGross.Equal(dec("5120.00")), "gross %s", summary.TotalGross)
	assert.True(t, summary.TotalNet.Equal(dec("4608.00")), "net %s", summary.TotalNet)
}

func TestRun_DeductionEnrollmentBecomesLine(t *testing.T) {
	ctx := context.Background()
	store, orch, period := newTestWorld(t)

	_, err := store.Components().SaveComponent(ctx, payroll.PayComponent{
		Code: "UNION", Name: "Union dues", Kind: payroll.KindDeduction, CalcPhase: 3,
	})
	require.NoError(t, err)
	_, _, err = orch.Deductions().CreateWithClosure(ctx, "emp-1", "UNION", payroll.Deduction{
		EmployeeID: "emp-1", Type: "UNION", Amount: dec("25.00"), Currency: "USD",
		From: date(2024, time.January, 1),
	})
	require.NoError(t, err)

	run, err := orch.CreateRun(ctx, period.ID, payroll.RunScope{})
	require.NoError(t, err)
	summary, err := orch.Calculate(ctx, run.ID)
	require.NoError(t, err)
	require.Empty(t, summary.Errors)

	results, err := store.Runs().ListResults(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].TotalDeductions.Equal(dec("575.00")), "deductions %s", results[0].TotalDeductions)
}

// =============================================================================
// CANCELLATION
// =============================================================================

func TestRun_CancelledBatchStaysDraft(t *testing.T) {
	ctx := context.Background()
	store, orch, period := newTestWorld(t)

	run, err := orch.CreateRun(ctx, period.ID, payroll.RunScope{})
	require.NoError(t, err)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = orch.Calculate(cancelled, run.ID)
	require.Error(t, err)

	reloaded, err := store.Runs().GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, payroll.StatusDraft, reloaded.Status)
}
