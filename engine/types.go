/*
Package engine provides the core payroll calculation primitives.

PURPOSE:
  This package contains domain-agnostic types and algorithms used by the
  payroll pipeline: day-granularity dates, decimal money helpers, the
  effective-dated record manager, the exchange-rate resolver, the
  progressive tax calculator, and the formula evaluator.

KEY CONCEPTS IN THIS FILE (types.go):
  - Date: A day-granularity point in time (effective dates, period bounds)
  - Money helpers: half-up rounding at the two scales payroll cares about
    (2 decimals for amounts, 6 decimals for exchange rates)

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal to avoid floating-point errors
  2. Explicit rounding: Rounding happens at well-defined boundaries only
  3. Type Safety: Date is not a raw time.Time - comparisons are day-based

SEE ALSO:
  - effective.go: Effective-dated record manager built on Date
  - fx.go: Exchange rate resolution using RoundRate/RoundMoney
  - tax.go: Progressive bracket calculation
*/
package engine

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// DATE - Day-granularity point in time
// =============================================================================

// Date is a calendar day in UTC. All effective-dating, period boundaries and
// rate lookups operate on whole days.
type Date struct {
	t time.Time
}

// NewDate constructs a Date for the given calendar day.
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates a time.Time to its UTC calendar day.
func DateOf(t time.Time) Date {
	u := t.UTC()
	return NewDate(u.Year(), u.Month(), u.Day())
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, err
	}
	return DateOf(t), nil
}

// Today returns the current UTC day.
func Today() Date {
	return DateOf(time.Now())
}

// Comparison
func (d Date) Before(other Date) bool        { return d.t.Before(other.t) }
func (d Date) After(other Date) bool         { return d.t.After(other.t) }
func (d Date) Equal(other Date) bool         { return d.t.Equal(other.t) }
func (d Date) BeforeOrEqual(other Date) bool { return !d.After(other) }
func (d Date) AfterOrEqual(other Date) bool  { return !d.Before(other) }

// Arithmetic
func (d Date) AddDays(n int) Date   { return Date{t: d.t.AddDate(0, 0, n)} }
func (d Date) AddMonths(n int) Date { return Date{t: d.t.AddDate(0, n, 0)} }
func (d Date) AddYears(n int) Date  { return Date{t: d.t.AddDate(n, 0, 0)} }

// Properties
func (d Date) Year() int             { return d.t.Year() }
func (d Date) Month() time.Month     { return d.t.Month() }
func (d Date) Day() int              { return d.t.Day() }
func (d Date) Weekday() time.Weekday { return d.t.Weekday() }
func (d Date) IsZero() bool          { return d.t.IsZero() }
func (d Date) Time() time.Time       { return d.t }

func (d Date) IsWeekend() bool {
	wd := d.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

func (d Date) String() string { return d.t.Format("2006-01-02") }

// DaysBetween returns the number of whole days from `from` to `to`.
// Negative if `to` is before `from`.
func DaysBetween(from, to Date) int {
	return int(to.t.Sub(from.t).Hours() / 24)
}

// StartOfMonth returns the first day of the month containing d.
func StartOfMonth(d Date) Date { return NewDate(d.Year(), d.Month(), 1) }

// EndOfMonth returns the last day of the month containing d.
func EndOfMonth(d Date) Date {
	return NewDate(d.Year(), d.Month(), 1).AddMonths(1).AddDays(-1)
}

// =============================================================================
// MONEY HELPERS - Explicit rounding boundaries
// =============================================================================

const (
	// MoneyScale is the scale of every persisted monetary amount.
	MoneyScale = 2

	// RateScale is the scale at which exchange rates are stored and compared.
	RateScale = 6
)

// RoundMoney rounds a monetary amount to 2 decimal places, half-up.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyScale)
}

// RoundRate rounds an exchange rate to 6 decimal places, half-up.
func RoundRate(d decimal.Decimal) decimal.Decimal {
	return d.Round(RateScale)
}

// MustDecimal parses a decimal from a string, returning zero on failure.
// For constants and seeded configuration only.
func MustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// ParseDecimal parses a decimal from untrusted input.
func ParseDecimal(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid decimal %q: %w", s, err)
	}
	return d, nil
}
