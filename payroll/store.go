/*
store.go - Persistence interfaces

PURPOSE:
  The orchestrator and API are written against these interfaces; the
  store/memory and store/sqlite packages provide the implementations.
  Effective-dated record families reuse engine.EffectiveStore so the
  overlap-closure manager works identically across all of them.

CONVENTIONS:
  - Save* is upsert by ID; implementations assign a UUID when ID is empty.
  - List* returns empty slices, never nil errors for "nothing there".
  - ReplaceResult is the idempotency primitive: it deletes the previous
    lines of the (run, employee) result and inserts the new ones in one
    atomic step, preserving the result row's identity.
*/
package payroll

import (
	"context"

	"github.com/warp/payroll-engine/engine"
)

// EmployeeStore manages the run population.
type EmployeeStore interface {
	GetEmployee(ctx context.Context, id string) (Employee, error)
	ListEmployees(ctx context.Context, scope RunScope) ([]Employee, error)
	SaveEmployee(ctx context.Context, emp Employee) (Employee, error)
}

// ComponentStore holds the pay component catalog and its rules.
type ComponentStore interface {
	ListComponents(ctx context.Context) ([]PayComponent, error)
	SaveComponent(ctx context.Context, c PayComponent) (PayComponent, error)
	ListRules(ctx context.Context) ([]PayRule, error)
	SaveRule(ctx context.Context, r PayRule) (PayRule, error)
}

// PeriodStore manages pay periods and their variable inputs.
type PeriodStore interface {
	GetPeriod(ctx context.Context, id string) (PayrollPeriod, error)
	GetPeriodByCode(ctx context.Context, code string) (PayrollPeriod, error)
	ListPeriods(ctx context.Context) ([]PayrollPeriod, error)
	SavePeriod(ctx context.Context, p PayrollPeriod) (PayrollPeriod, error)
	ListInputs(ctx context.Context, periodID string) ([]PeriodInput, error)
	SaveInput(ctx context.Context, in PeriodInput) (PeriodInput, error)
}

// RunStore manages runs, their results, lines and error lists.
type RunStore interface {
	GetRun(ctx context.Context, id string) (PayrollRun, error)
	ListRuns(ctx context.Context, periodID string) ([]PayrollRun, error)
	SaveRun(ctx context.Context, run PayrollRun) (PayrollRun, error)

	// ReplaceResult upserts the (run, employee) result and atomically
	// replaces its lines. The existing result ID is kept on recalculation.
	ReplaceResult(ctx context.Context, result PayrollResult, lines []PayrollLine) (PayrollResult, error)
	ListResults(ctx context.Context, runID string) ([]PayrollResult, error)
	ListLines(ctx context.Context, resultID string) ([]PayrollLine, error)

	// DeleteResult removes the (run, employee) result and its lines, if
	// any. Recalculation uses it to drop a stale result for an employee
	// whose latest calculation failed. No error when nothing exists.
	DeleteResult(ctx context.Context, runID, employeeID string) error

	// ReplaceRunErrors swaps the run's error list wholesale; each
	// calculation rebuilds it from scratch.
	ReplaceRunErrors(ctx context.Context, runID string, errs []RunError) error
	ListRunErrors(ctx context.Context, runID string) ([]RunError, error)
}

// HolidayStore persists company holidays and doubles as the calendar
// used for workday counting.
type HolidayStore interface {
	engine.HolidayCalendar
	SaveHoliday(ctx context.Context, h engine.Holiday) (engine.Holiday, error)
	ListHolidays(ctx context.Context, companyID string) ([]engine.Holiday, error)
}

// Store bundles every persistence surface the engine needs. A single
// implementation backs all of them so cross-record operations can share
// one database.
type Store interface {
	Employees() EmployeeStore
	Compensation() engine.EffectiveStore[Compensation]
	Deductions() engine.EffectiveStore[Deduction]
	Withholdings() engine.EffectiveStore[TaxWithholding]
	Benefits() engine.EffectiveStore[EmployeeBenefit]
	Components() ComponentStore
	Periods() PeriodStore
	Runs() RunStore
	Rates() engine.RateStore
	Brackets() engine.BracketStore
	Holidays() HolidayStore
	Close() error
}
