/*
context.go - The calculation context

PURPOSE:
  The calculation context is the set of named values available to pay-rule
  formulas during one employee's one-period calculation. It starts with
  the standard variables (baseSalary, grossSalary, workDays, period
  bounds) plus one entry per period input, and each computed component
  writes its amount back under its own code so later-phase formulas can
  reference it.

  The context is an ordered, append-only accumulator passed explicitly
  through the phase loop - never ambient shared state. Overwrites are
  limited to the running grossSalary total.
*/
package payroll

import (
	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/engine"
)

// Standard context variable names consumed by formulas.
const (
	VarEmployeeID  = "employeeId"
	VarBaseSalary  = "baseSalary"
	VarGrossSalary = "grossSalary"
	VarWorkDays    = "workDays"
	VarPeriodStart = "periodStartDate"
	VarPeriodEnd   = "periodEndDate"
	VarCountry     = "country"
	VarCurrency    = "currency"

	// Suffixes for quantity/rate entries of quantity-based inputs and
	// for enrollment-derived rates.
	SuffixQuantity = "_QTY"
	SuffixRate     = "_RATE"
)

// CalcContext accumulates named values for one employee's calculation.
// Not safe for concurrent use; each worker owns its own context.
type CalcContext struct {
	order  []string
	values map[string]any
}

// NewCalcContext builds a context pre-populated with the standard
// variables for one employee and period.
func NewCalcContext(emp Employee, period PayrollPeriod, baseSalary decimal.Decimal, workDays int) *CalcContext {
	c := &CalcContext{values: make(map[string]any)}
	c.Set(VarEmployeeID, emp.ID)
	c.Set(VarCountry, emp.Country)
	c.Set(VarCurrency, emp.Currency)
	c.Set(VarBaseSalary, baseSalary)
	c.Set(VarGrossSalary, decimal.Zero)
	c.Set(VarWorkDays, workDays)
	c.Set(VarPeriodStart, period.Start.String())
	c.Set(VarPeriodEnd, period.End.String())
	return c
}

// Set appends or updates a named value. Supported types follow
// engine.FormulaEvaluator: decimal.Decimal, float64, int, int64, string.
func (c *CalcContext) Set(name string, value any) {
	if _, exists := c.values[name]; !exists {
		c.order = append(c.order, name)
	}
	c.values[name] = value
}

// Amount returns the named value as a decimal, and whether it was present
// and numeric.
func (c *CalcContext) Amount(name string) (decimal.Decimal, bool) {
	v, ok := c.values[name]
	if !ok {
		return decimal.Zero, false
	}
	switch n := v.(type) {
	case decimal.Decimal:
		return n, true
	case float64:
		return decimal.NewFromFloat(n), true
	case int:
		return decimal.NewFromInt(int64(n)), true
	case int64:
		return decimal.NewFromInt(n), true
	default:
		return decimal.Zero, false
	}
}

// Has reports whether a name is present.
func (c *CalcContext) Has(name string) bool {
	_, ok := c.values[name]
	return ok
}

// Vars returns a copy of the current values for formula evaluation.
func (c *CalcContext) Vars() map[string]any {
	out := make(map[string]any, len(c.values))
	for k, v := range c.values {
		out[k] = v
	}
	return out
}

// Names returns the variable names in insertion order. Used for audit
// output and debugging.
func (c *CalcContext) Names() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// AddGross adds an earning amount to the running grossSalary total.
func (c *CalcContext) AddGross(amount decimal.Decimal) {
	current, _ := c.Amount(VarGrossSalary)
	c.Set(VarGrossSalary, current.Add(amount))
}

// PeriodEnd parses the period end date back out of the context.
func (c *CalcContext) PeriodEnd() (engine.Date, error) {
	s, _ := c.values[VarPeriodEnd].(string)
	return engine.ParseDate(s)
}
