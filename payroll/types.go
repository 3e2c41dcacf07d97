/*
Package payroll implements periodic payroll computation on top of the
engine primitives.

PURPOSE:
  Turns an employee population + effective-dated compensation + pay rules
  + period inputs into deterministic net pay per employee per period, and
  drives a payroll run through its calculate -> approve -> post lifecycle.

KEY CONCEPTS IN THIS FILE (types.go):
  - Employee: the run-scope population record
  - Compensation / Deduction / TaxWithholding / EmployeeBenefit:
    effective-dated pay records sharing one overlap invariant
  - PayComponent / PayRule: the configurable calculation rules
  - PayrollPeriod / PayrollRun / PayrollResult / PayrollLine: the run
    lifecycle records
  - PeriodInput: period-scoped variable inputs (overtime, one-off
    allowances)

SEE ALSO:
  - registry.go: Component amount resolution
  - run.go: Run orchestration and state machine
  - store.go: Persistence interfaces
*/
package payroll

import (
	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/engine"
)

// =============================================================================
// EMPLOYEES
// =============================================================================

// Employee is the population record payroll runs iterate over.
type Employee struct {
	ID       string
	Name     string
	Email    string
	HireDate engine.Date
	PayGroup string // scope selector, e.g. "hq", "warehouse"
	Country  string
	Currency string // the currency the employee is paid in
	Active   bool
}

// =============================================================================
// EFFECTIVE-DATED PAY RECORDS
// =============================================================================

// PayBasis is the unit the base compensation amount is expressed in.
type PayBasis string

const (
	BasisMonthly PayBasis = "monthly"
	BasisAnnual  PayBasis = "annual"
	BasisHourly  PayBasis = "hourly"
)

// Compensation is an employee's effective-dated base pay.
type Compensation struct {
	ID         string
	EmployeeID string
	Type       string // compensation type code, e.g. "BASE"
	Amount     decimal.Decimal
	Currency   string
	Basis      PayBasis
	From       engine.Date
	To         *engine.Date
}

func (c Compensation) EffectiveFrom() engine.Date { return c.From }
func (c Compensation) EffectiveTo() *engine.Date  { return c.To }

// Deduction is an effective-dated recurring deduction enrollment
// (union dues, garnishment, loan repayment).
type Deduction struct {
	ID         string
	EmployeeID string
	Type       string // matching a DEDUCTION component code
	Amount     decimal.Decimal
	Rate       decimal.Decimal // fraction of gross; used when Amount is zero
	Currency   string
	From       engine.Date
	To         *engine.Date
}

func (d Deduction) EffectiveFrom() engine.Date { return d.From }
func (d Deduction) EffectiveTo() *engine.Date  { return d.To }

// TaxWithholding is an employee's effective-dated withholding election.
type TaxWithholding struct {
	ID         string
	EmployeeID string
	Type       string // tax code, e.g. "FED"
	Country    string
	Extra      decimal.Decimal // additional flat withholding per period
	From       engine.Date
	To         *engine.Date
}

func (t TaxWithholding) EffectiveFrom() engine.Date { return t.From }
func (t TaxWithholding) EffectiveTo() *engine.Date  { return t.To }

// EmployeeBenefit is an effective-dated benefit enrollment with employee
// and employer contribution shares.
type EmployeeBenefit struct {
	ID              string
	EmployeeID      string
	Type            string // benefit plan code, e.g. "HEALTH"
	EmployeeContrib decimal.Decimal
	EmployerContrib decimal.Decimal
	Currency        string
	From            engine.Date
	To              *engine.Date
}

func (b EmployeeBenefit) EffectiveFrom() engine.Date { return b.From }
func (b EmployeeBenefit) EffectiveTo() *engine.Date  { return b.To }

// =============================================================================
// PAY COMPONENTS AND RULES
// =============================================================================

// ComponentKind classifies how a component's amount aggregates.
type ComponentKind string

const (
	KindEarning        ComponentKind = "earning"
	KindDeduction      ComponentKind = "deduction"
	KindEmployerCharge ComponentKind = "employer_charge"
)

// PayComponent is a single named contributor to pay.
// Immutable once referenced by posted results.
type PayComponent struct {
	Code      string
	Name      string
	Kind      ComponentKind
	CalcPhase int  // components are computed in ascending phase order
	Taxable   bool // counts toward taxable income
	Social    bool // counts toward social contribution base
	BasePay   bool // the designated base-pay component (passthrough)
}

// PayRule is a formula-backed, prioritized, date-scoped definition of how
// a component's amount is computed. The highest-priority active rule valid
// on the calculation date wins; ties are broken by lowest rule ID.
type PayRule struct {
	ID            string
	ComponentCode string
	Formula       string
	Priority      int
	Active        bool
	From          engine.Date
	To            *engine.Date
}

func (r PayRule) EffectiveFrom() engine.Date { return r.From }
func (r PayRule) EffectiveTo() *engine.Date  { return r.To }

// =============================================================================
// PERIODS, INPUTS
// =============================================================================

// PayrollPeriod is one pay cycle. Closed periods are immutable; closing
// happens when the period's run is posted.
type PayrollPeriod struct {
	ID          string
	Code        string // e.g. "2025-06"
	Start       engine.Date
	End         engine.Date
	PaymentDate engine.Date
	Closed      bool
}

// PeriodInput is a period-scoped variable input for one employee and
// component: either a direct amount, or quantity x rate.
type PeriodInput struct {
	ID            string
	PeriodID      string
	EmployeeID    string
	ComponentCode string
	Amount        decimal.Decimal // authoritative when non-zero
	Quantity      decimal.Decimal
	Rate          decimal.Decimal
}

// Value returns the input's effective amount: Amount when set, otherwise
// Quantity x Rate.
func (in PeriodInput) Value() decimal.Decimal {
	if !in.Amount.IsZero() {
		return in.Amount
	}
	return in.Quantity.Mul(in.Rate)
}

// =============================================================================
// RUNS, RESULTS, LINES
// =============================================================================

// RunStatus is the payroll run lifecycle state.
type RunStatus string

const (
	StatusDraft      RunStatus = "draft"
	StatusCalculated RunStatus = "calculated"
	StatusApproved   RunStatus = "approved"
	StatusPosted     RunStatus = "posted"
)

// RunScope selects the employee population for a run.
type RunScope struct {
	PayGroup string // empty = all active employees
}

// PayrollRun drives one period's calculation lifecycle.
type PayrollRun struct {
	ID         string
	PeriodID   string
	Scope      RunScope
	Status     RunStatus
	Hash       string // content hash of the last calculation, for drift checks
	ApprovedBy string
	ApprovedAt *engine.Date
}

// RunError is one structured per-employee calculation failure. The run
// completes with these collected rather than aborting.
type RunError struct {
	EmployeeID string
	Code       string // e.g. "missing_compensation"
	Message    string
	Severity   string // "error" or "warning"
}

// PayrollResult is one employee's outcome within a run. Recalculation
// replaces its Line children atomically without changing identity.
type PayrollResult struct {
	ID              string
	RunID           string
	EmployeeID      string
	Gross           decimal.Decimal
	TotalDeductions decimal.Decimal
	Net             decimal.Decimal
	EmployerCost    decimal.Decimal
	Currency        string
}

// PayrollLine is one component occurrence within a result. Sequence is
// insertion order, used for display and audit only.
type PayrollLine struct {
	ID            string
	ResultID      string
	ComponentCode string
	Kind          ComponentKind
	Quantity      decimal.Decimal
	Rate          decimal.Decimal
	Amount        decimal.Decimal
	Sequence      int
}
