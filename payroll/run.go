/*
run.go - Payroll run orchestration

PURPOSE:
  Drives a run through draft -> calculated -> approved -> posted, and
  executes the per-employee calculation batch.

LIFECYCLE:
  - CreateRun: one open (non-posted) run per period and scope
  - Calculate: bounded-concurrency batch over the scoped population;
    per-employee failures are collected as structured run errors and the
    rest of the batch proceeds. Partial success is a normal outcome.
  - Approve: calculated -> approved, records the approver
  - Post: approved -> posted and closes the period; terminal
  - Recalculate: resets any pre-posted run to draft and calculates again

IDEMPOTENCY:
  Each employee's result row keeps its identity across recalculations;
  only its lines are replaced (delete-then-insert in the store). The run
  hash is a content hash over (employee, component, amount) so repeated
  calculations over unchanged data can be detected.

CANCELLATION:
  The batch runs under the caller's context. On cancellation the
  remaining employees are skipped, nothing transitions, and the run
  stays in draft for a later recalculation.

PER-EMPLOYEE PIPELINE:
  base compensation as of period end -> normalize to a monthly amount ->
  convert to the employee's currency -> seed the calculation context
  with inputs and enrollments -> resolve components phase by phase ->
  aggregate gross / deductions / net / employer cost -> replace result.
*/
package payroll

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/warp/payroll-engine/engine"
)

// =============================================================================
// CONFIGURATION
// =============================================================================

// Config tunes the orchestrator.
type Config struct {
	// Workers bounds batch concurrency. Defaults to 4.
	Workers int
	// FormulaTimeout bounds a single formula evaluation. Defaults to 2s.
	FormulaTimeout time.Duration
	// StandardMonthlyHours converts hourly compensation to a monthly
	// base. Defaults to 173.33 (40h weeks).
	StandardMonthlyHours decimal.Decimal
	// AuthorityCheck decides whether an approver may approve a run.
	// Supplied by the embedding system; nil allows any non-blank approver.
	AuthorityCheck func(ctx context.Context, approver string, run PayrollRun) (bool, error)
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.FormulaTimeout <= 0 {
		c.FormulaTimeout = 2 * time.Second
	}
	if c.StandardMonthlyHours.IsZero() {
		c.StandardMonthlyHours = engine.MustDecimal("173.33")
	}
	return c
}

// BaseCompensationType is the compensation record type the pipeline
// reads as the employee's base pay.
const BaseCompensationType = "BASE"

// Run error codes.
const (
	ErrCodeMissingCompensation = "missing_compensation"
	ErrCodeAmbiguousRecords    = "ambiguous_records"
	ErrCodeMissingRate         = "missing_exchange_rate"
	ErrCodeMissingTaxTable     = "missing_tax_brackets"
	ErrCodeFormulaFailed       = "formula_failed"
	ErrCodeStoreFailure        = "store_failure"
)

// =============================================================================
// ORCHESTRATOR
// =============================================================================

// Orchestrator owns run lifecycle transitions and batch execution.
type Orchestrator struct {
	store     Store
	cfg       Config
	fx        *engine.RateResolver
	tax       *engine.TaxCalculator
	evaluator *engine.FormulaEvaluator

	compensation *engine.EffectiveManager[Compensation]
	deductions   *engine.EffectiveManager[Deduction]
	withholdings *engine.EffectiveManager[TaxWithholding]
	benefits     *engine.EffectiveManager[EmployeeBenefit]

	mu    sync.Mutex
	locks map[string]*sync.Mutex // run ID -> transition lock
}

func NewOrchestrator(store Store, cfg Config) *Orchestrator {
	cfg = cfg.withDefaults()
	fx := engine.NewRateResolver(store.Rates())
	tax := engine.NewTaxCalculator(store.Brackets())
	return &Orchestrator{
		store:        store,
		cfg:          cfg,
		fx:           fx,
		tax:          tax,
		evaluator:    engine.NewFormulaEvaluatorWithFuncs(cfg.FormulaTimeout, FormulaFunctions(tax, fx)...),
		compensation: engine.NewEffectiveManager(store.Compensation()),
		deductions:   engine.NewEffectiveManager(store.Deductions()),
		withholdings: engine.NewEffectiveManager(store.Withholdings()),
		benefits:     engine.NewEffectiveManager(store.Benefits()),
		locks:        make(map[string]*sync.Mutex),
	}
}

// Compensation exposes the effective-dated manager for base pay records.
func (o *Orchestrator) Compensation() *engine.EffectiveManager[Compensation] { return o.compensation }

// Deductions exposes the effective-dated manager for deduction enrollments.
func (o *Orchestrator) Deductions() *engine.EffectiveManager[Deduction] { return o.deductions }

// Withholdings exposes the effective-dated manager for withholding elections.
func (o *Orchestrator) Withholdings() *engine.EffectiveManager[TaxWithholding] { return o.withholdings }

// Benefits exposes the effective-dated manager for benefit enrollments.
func (o *Orchestrator) Benefits() *engine.EffectiveManager[EmployeeBenefit] { return o.benefits }

// lockRun serializes lifecycle transitions per run.
func (o *Orchestrator) lockRun(runID string) func() {
	o.mu.Lock()
	l, ok := o.locks[runID]
	if !ok {
		l = &sync.Mutex{}
		o.locks[runID] = l
	}
	o.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// =============================================================================
// LIFECYCLE
// =============================================================================

// CreateRun opens a draft run for a period and scope. Only one open run
// per (period, pay group) is allowed; closed periods reject new runs.
func (o *Orchestrator) CreateRun(ctx context.Context, periodID string, scope RunScope) (PayrollRun, error) {
	period, err := o.store.Periods().GetPeriod(ctx, periodID)
	if err != nil {
		return PayrollRun{}, err
	}
	if period.Closed {
		return PayrollRun{}, engine.Violation("period_closed", "period %s is closed", period.Code)
	}

	existing, err := o.store.Runs().ListRuns(ctx, periodID)
	if err != nil {
		return PayrollRun{}, err
	}
	for _, run := range existing {
		if run.Status != StatusPosted && run.Scope.PayGroup == scope.PayGroup {
			return PayrollRun{}, engine.Violation("run_exists",
				"period %s already has open run %s", period.Code, run.ID)
		}
	}

	run := PayrollRun{
		ID:       uuid.NewString(),
		PeriodID: periodID,
		Scope:    scope,
		Status:   StatusDraft,
	}
	return o.store.Runs().SaveRun(ctx, run)
}

// Calculate executes the batch for a draft run and transitions it to
// calculated. Per-employee failures land in the run's error list; only
// infrastructure failures or cancellation abort the whole batch.
func (o *Orchestrator) Calculate(ctx context.Context, runID string) (RunSummary, error) {
	unlock := o.lockRun(runID)
	defer unlock()

	run, err := o.store.Runs().GetRun(ctx, runID)
	if err != nil {
		return RunSummary{}, err
	}
	if run.Status != StatusDraft {
		return RunSummary{}, engine.Violation("invalid_transition",
			"run %s is %s; only draft runs can be calculated", run.ID, run.Status)
	}
	period, err := o.store.Periods().GetPeriod(ctx, run.PeriodID)
	if err != nil {
		return RunSummary{}, err
	}
	if period.Closed {
		return RunSummary{}, engine.Violation("period_closed", "period %s is closed", period.Code)
	}

	batch, err := o.loadBatch(ctx, run, period)
	if err != nil {
		return RunSummary{}, err
	}

	collector := &errorCollector{}
	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(o.cfg.Workers)

	type outcome struct {
		employeeID string
		result     PayrollResult
		lines      []PayrollLine
		ok         bool
	}
	outcomes := make([]outcome, len(batch.employees))

	for i, emp := range batch.employees {
		i, emp := i, emp
		group.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			result, lines, runErrs := o.calculateEmployee(gctx, run, period, batch, emp)
			collector.add(runErrs...)
			if hasError(runErrs) {
				// Drop any result a previous calculation stored for this
				// employee so totals never count a failed employee.
				if err := o.store.Runs().DeleteResult(gctx, run.ID, emp.ID); err != nil {
					collector.add(RunError{
						EmployeeID: emp.ID,
						Code:       ErrCodeStoreFailure,
						Message:    err.Error(),
						Severity:   "error",
					})
				}
				return nil
			}
			stored, err := o.store.Runs().ReplaceResult(gctx, result, lines)
			if err != nil {
				collector.add(RunError{
					EmployeeID: emp.ID,
					Code:       ErrCodeStoreFailure,
					Message:    err.Error(),
					Severity:   "error",
				})
				return nil
			}
			outcomes[i] = outcome{employeeID: emp.ID, result: stored, lines: lines, ok: true}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		// Cancelled mid-batch: stay in draft, persist nothing further.
		return RunSummary{}, err
	}

	runErrs := collector.list()
	if err := o.store.Runs().ReplaceRunErrors(ctx, run.ID, runErrs); err != nil {
		return RunSummary{}, err
	}

	summary := RunSummary{EmployeeCount: len(batch.employees), Errors: runErrs}
	var hashLines []string
	for _, out := range outcomes {
		if !out.ok {
			summary.FailedCount++
			continue
		}
		summary.SucceededCount++
		summary.TotalGross = summary.TotalGross.Add(out.result.Gross)
		summary.TotalNet = summary.TotalNet.Add(out.result.Net)
		summary.TotalEmployerCost = summary.TotalEmployerCost.Add(out.result.EmployerCost)
		for _, line := range out.lines {
			hashLines = append(hashLines, out.employeeID+"|"+line.ComponentCode+"|"+line.Amount.StringFixed(engine.MoneyScale))
		}
	}

	run.Status = StatusCalculated
	run.Hash = contentHash(hashLines)
	run, err = o.store.Runs().SaveRun(ctx, run)
	if err != nil {
		return RunSummary{}, err
	}
	summary.Run = run
	return summary, nil
}

// Approve moves a calculated run to approved.
func (o *Orchestrator) Approve(ctx context.Context, runID, approver string) (PayrollRun, error) {
	unlock := o.lockRun(runID)
	defer unlock()

	if strings.TrimSpace(approver) == "" {
		return PayrollRun{}, engine.Violation("approver_required", "approver is required")
	}
	run, err := o.store.Runs().GetRun(ctx, runID)
	if err != nil {
		return PayrollRun{}, err
	}
	if run.Status != StatusCalculated {
		return PayrollRun{}, engine.Violation("invalid_transition",
			"run %s is %s; only calculated runs can be approved", run.ID, run.Status)
	}
	if o.cfg.AuthorityCheck != nil {
		authorized, err := o.cfg.AuthorityCheck(ctx, approver, run)
		if err != nil {
			return PayrollRun{}, err
		}
		if !authorized {
			return PayrollRun{}, engine.Violation("approver_not_authorized",
				"%s is not authorized to approve run %s", approver, run.ID)
		}
	}
	now := engine.Today()
	run.Status = StatusApproved
	run.ApprovedBy = approver
	run.ApprovedAt = &now
	return o.store.Runs().SaveRun(ctx, run)
}

// Post finalizes an approved run and closes its period. Terminal.
func (o *Orchestrator) Post(ctx context.Context, runID string) (PayrollRun, error) {
	unlock := o.lockRun(runID)
	defer unlock()

	run, err := o.store.Runs().GetRun(ctx, runID)
	if err != nil {
		return PayrollRun{}, err
	}
	if run.Status != StatusApproved {
		return PayrollRun{}, engine.Violation("invalid_transition",
			"run %s is %s; only approved runs can be posted", run.ID, run.Status)
	}

	period, err := o.store.Periods().GetPeriod(ctx, run.PeriodID)
	if err != nil {
		return PayrollRun{}, err
	}
	period.Closed = true
	if _, err := o.store.Periods().SavePeriod(ctx, period); err != nil {
		return PayrollRun{}, err
	}

	run.Status = StatusPosted
	return o.store.Runs().SaveRun(ctx, run)
}

// Recalculate resets any pre-posted run to draft and calculates again.
// Result identities survive; lines and errors are rebuilt.
func (o *Orchestrator) Recalculate(ctx context.Context, runID string) (RunSummary, error) {
	unlock := o.lockRun(runID)
	run, err := o.store.Runs().GetRun(ctx, runID)
	if err != nil {
		unlock()
		return RunSummary{}, err
	}
	if run.Status == StatusPosted {
		unlock()
		return RunSummary{}, engine.Violation("run_posted", "run %s is posted and immutable", run.ID)
	}
	if run.Status != StatusDraft {
		run.Status = StatusDraft
		run.ApprovedBy = ""
		run.ApprovedAt = nil
		if _, err := o.store.Runs().SaveRun(ctx, run); err != nil {
			unlock()
			return RunSummary{}, err
		}
	}
	unlock()
	return o.Calculate(ctx, runID)
}

// ReopenPeriod clears a period's closed flag. Exceptional correction
// path; posted runs remain immutable regardless.
func (o *Orchestrator) ReopenPeriod(ctx context.Context, periodID string) (PayrollPeriod, error) {
	period, err := o.store.Periods().GetPeriod(ctx, periodID)
	if err != nil {
		return PayrollPeriod{}, err
	}
	if !period.Closed {
		return period, nil
	}
	log.Printf("WARN reopening closed period %s", period.Code)
	period.Closed = false
	return o.store.Periods().SavePeriod(ctx, period)
}

// Summary recomputes the aggregate view of a run from stored results.
func (o *Orchestrator) Summary(ctx context.Context, runID string) (RunSummary, error) {
	run, err := o.store.Runs().GetRun(ctx, runID)
	if err != nil {
		return RunSummary{}, err
	}
	results, err := o.store.Runs().ListResults(ctx, runID)
	if err != nil {
		return RunSummary{}, err
	}
	runErrs, err := o.store.Runs().ListRunErrors(ctx, runID)
	if err != nil {
		return RunSummary{}, err
	}

	summary := RunSummary{Run: run, Errors: runErrs, SucceededCount: len(results)}
	for _, res := range results {
		summary.TotalGross = summary.TotalGross.Add(res.Gross)
		summary.TotalNet = summary.TotalNet.Add(res.Net)
		summary.TotalEmployerCost = summary.TotalEmployerCost.Add(res.EmployerCost)
	}
	for _, e := range runErrs {
		if e.Severity == "error" {
			summary.FailedCount++
		}
	}
	summary.EmployeeCount = summary.SucceededCount + summary.FailedCount
	return summary, nil
}

// RunSummary is the aggregate outcome of one calculation.
type RunSummary struct {
	Run               PayrollRun
	EmployeeCount     int
	SucceededCount    int
	FailedCount       int
	TotalGross        decimal.Decimal
	TotalNet          decimal.Decimal
	TotalEmployerCost decimal.Decimal
	Errors            []RunError
}

// =============================================================================
// BATCH DATA
// =============================================================================

// batchData is the read-only snapshot shared by all workers of one
// calculation.
type batchData struct {
	employees []Employee
	registry  *Registry
	inputs    map[string][]PeriodInput // employee ID -> inputs
	holidays  HolidayStore
}

func (o *Orchestrator) loadBatch(ctx context.Context, run PayrollRun, period PayrollPeriod) (*batchData, error) {
	employees, err := o.store.Employees().ListEmployees(ctx, run.Scope)
	if err != nil {
		return nil, err
	}
	sort.Slice(employees, func(i, j int) bool { return employees[i].ID < employees[j].ID })

	components, err := o.store.Components().ListComponents(ctx)
	if err != nil {
		return nil, err
	}
	rules, err := o.store.Components().ListRules(ctx)
	if err != nil {
		return nil, err
	}
	inputs, err := o.store.Periods().ListInputs(ctx, period.ID)
	if err != nil {
		return nil, err
	}
	byEmployee := make(map[string][]PeriodInput)
	for _, in := range inputs {
		byEmployee[in.EmployeeID] = append(byEmployee[in.EmployeeID], in)
	}

	return &batchData{
		employees: employees,
		registry:  NewRegistry(components, rules, o.evaluator),
		inputs:    byEmployee,
		holidays:  o.store.Holidays(),
	}, nil
}

// =============================================================================
// PER-EMPLOYEE PIPELINE
// =============================================================================

func (o *Orchestrator) calculateEmployee(ctx context.Context, run PayrollRun, period PayrollPeriod, batch *batchData, emp Employee) (PayrollResult, []PayrollLine, []RunError) {
	var runErrs []RunError
	fail := func(code, format string, args ...any) (PayrollResult, []PayrollLine, []RunError) {
		runErrs = append(runErrs, RunError{
			EmployeeID: emp.ID,
			Code:       code,
			Message:    fmt.Sprintf(format, args...),
			Severity:   "error",
		})
		return PayrollResult{}, nil, runErrs
	}

	baseSalary, err := o.baseSalary(ctx, emp, period)
	if err != nil {
		switch {
		case engine.IsNotFound(err):
			return fail(ErrCodeMissingCompensation, "no active base compensation on %s", period.End)
		case engine.IsBusinessRule(err):
			return fail(ErrCodeAmbiguousRecords, "base compensation: %v", err)
		default:
			return fail(ErrCodeStoreFailure, "base compensation: %v", err)
		}
	}

	workDays := engine.WorkdaysBetween(period.Start, period.End, batch.holidays, "")
	calc := NewCalcContext(emp, period, baseSalary, workDays)

	inputsByCode := o.seedContext(ctx, calc, emp, period, batch)

	var (
		lines           []PayrollLine
		gross           decimal.Decimal
		totalDeductions decimal.Decimal
		employerCharges decimal.Decimal
	)
	for _, comp := range batch.registry.Components() {
		if err := ctx.Err(); err != nil {
			return fail(ErrCodeStoreFailure, "calculation cancelled: %v", err)
		}
		input := inputsByCode[comp.Code]
		res, err := batch.registry.Resolve(ctx, comp, calc, input, period.End)
		if err != nil {
			code := ErrCodeFormulaFailed
			switch {
			case engine.IsBusinessRule(err):
				code = ErrCodeMissingTaxTable
			case engine.IsNotFound(err):
				code = ErrCodeMissingRate
			}
			return fail(code, "component %s: %v", comp.Code, err)
		}
		if res.FormulaErr != nil {
			runErrs = append(runErrs, RunError{
				EmployeeID: emp.ID,
				Code:       ErrCodeFormulaFailed,
				Message:    fmt.Sprintf("component %s degraded: %v", comp.Code, res.FormulaErr),
				Severity:   "warning",
			})
			continue
		}
		if !res.Produced() {
			continue
		}

		calc.Set(comp.Code, res.Amount)
		switch comp.Kind {
		case KindEarning:
			calc.AddGross(res.Amount)
			gross = gross.Add(res.Amount)
		case KindDeduction:
			// Deductions aggregate by magnitude; a rule that yields a
			// negative amount must not inflate net above gross.
			totalDeductions = totalDeductions.Add(res.Amount.Abs())
		case KindEmployerCharge:
			employerCharges = employerCharges.Add(res.Amount)
		}
		lines = append(lines, PayrollLine{
			ID:            uuid.NewString(),
			ComponentCode: comp.Code,
			Kind:          comp.Kind,
			Quantity:      res.Quantity,
			Rate:          res.Rate,
			Amount:        res.Amount,
			Sequence:      len(lines) + 1,
		})
	}

	result := PayrollResult{
		RunID:           run.ID,
		EmployeeID:      emp.ID,
		Gross:           gross,
		TotalDeductions: totalDeductions,
		Net:             gross.Sub(totalDeductions),
		EmployerCost:    gross.Add(employerCharges),
		Currency:        emp.Currency,
	}
	return result, lines, runErrs
}

// baseSalary finds the active base compensation, normalizes it to a
// monthly amount and converts it to the employee's currency.
func (o *Orchestrator) baseSalary(ctx context.Context, emp Employee, period PayrollPeriod) (decimal.Decimal, error) {
	comp, err := o.compensation.FindActive(ctx, emp.ID, BaseCompensationType, period.End)
	if err != nil {
		return decimal.Zero, err
	}

	amount := comp.Amount
	switch comp.Basis {
	case BasisAnnual:
		amount = amount.Div(decimal.NewFromInt(12))
	case BasisHourly:
		amount = amount.Mul(o.cfg.StandardMonthlyHours)
	}

	if comp.Currency != "" && comp.Currency != emp.Currency {
		return o.fx.Convert(ctx, amount, comp.Currency, emp.Currency, period.End)
	}
	return amount, nil
}

// seedContext injects period inputs and active enrollment records into
// the calculation context, and returns explicit inputs indexed by
// component code. Enrollment amounts become synthesized inputs unless an
// explicit input already covers the component; rate-only deductions and
// withholding extras are exposed as context variables for rule formulas.
func (o *Orchestrator) seedContext(ctx context.Context, calc *CalcContext, emp Employee, period PayrollPeriod, batch *batchData) map[string]*PeriodInput {
	byCode := make(map[string]*PeriodInput)
	for _, in := range batch.inputs[emp.ID] {
		in := in
		byCode[in.ComponentCode] = &in
		calc.Set(in.ComponentCode, in.Value())
		if !in.Quantity.IsZero() {
			calc.Set(in.ComponentCode+SuffixQuantity, in.Quantity)
			calc.Set(in.ComponentCode+SuffixRate, in.Rate)
		}
	}

	synthesize := func(code string, amount decimal.Decimal) {
		if _, exists := byCode[code]; exists {
			return
		}
		if _, known := batch.registry.Component(code); !known {
			return
		}
		byCode[code] = &PeriodInput{
			PeriodID:      period.ID,
			EmployeeID:    emp.ID,
			ComponentCode: code,
			Amount:        amount,
		}
	}

	if deds, err := listActive(ctx, o.store.Deductions(), emp.ID, period.End); err == nil {
		for _, d := range deds {
			if !d.Amount.IsZero() {
				synthesize(d.Type, d.Amount)
			} else if !d.Rate.IsZero() {
				calc.Set(d.Type+SuffixRate, d.Rate)
			}
		}
	}
	if whs, err := listActive(ctx, o.store.Withholdings(), emp.ID, period.End); err == nil {
		for _, w := range whs {
			if !w.Extra.IsZero() {
				calc.Set(w.Type+"_EXTRA", w.Extra)
			}
		}
	}
	if bens, err := listActive(ctx, o.store.Benefits(), emp.ID, period.End); err == nil {
		for _, b := range bens {
			if !b.EmployeeContrib.IsZero() {
				synthesize(b.Type, b.EmployeeContrib)
			}
			if !b.EmployerContrib.IsZero() {
				synthesize(b.Type+"_ER", b.EmployerContrib)
			}
		}
	}
	return byCode
}

// listActive returns every record of one family active for the subject
// on the given date. Enrollment families can legitimately hold several
// concurrent records of different types, so this bypasses the
// single-record FindActive.
func listActive[T engine.Effective](ctx context.Context, store engine.EffectiveStore[T], subjectID string, asOf engine.Date) ([]T, error) {
	all, err := store.ListByKey(ctx, subjectID, "")
	if err != nil {
		return nil, err
	}
	var out []T
	for _, rec := range all {
		if engine.ActiveOn(rec, asOf) {
			out = append(out, rec)
		}
	}
	return out, nil
}

// =============================================================================
// HELPERS
// =============================================================================

// errorCollector is the mutex-guarded run error list shared by workers.
type errorCollector struct {
	mu   sync.Mutex
	errs []RunError
}

func (c *errorCollector) add(errs ...RunError) {
	if len(errs) == 0 {
		return
	}
	c.mu.Lock()
	c.errs = append(c.errs, errs...)
	c.mu.Unlock()
}

func (c *errorCollector) list() []RunError {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]RunError, len(c.errs))
	copy(out, c.errs)
	sort.Slice(out, func(i, j int) bool {
		if out[i].EmployeeID != out[j].EmployeeID {
			return out[i].EmployeeID < out[j].EmployeeID
		}
		return out[i].Code < out[j].Code
	})
	return out
}

func hasError(errs []RunError) bool {
	for _, e := range errs {
		if e.Severity == "error" {
			return true
		}
	}
	return false
}

// contentHash is a stable digest over calculated lines, independent of
// worker completion order.
func contentHash(lines []string) string {
	sort.Strings(lines)
	sum := sha256.Sum256([]byte(strings.Join(lines, "\n")))
	return hex.EncodeToString(sum[:])
}
