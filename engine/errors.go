/*
errors.go - Centralized error types for the payroll engine

PURPOSE:
  All error categories in one place for consistency and discoverability.
  Domain packages wrap these errors with additional context.

ERROR TAXONOMY:
  1. NotFound - missing reference data (compensation, brackets, rates)
  2. BusinessRuleViolation - invalid state or configuration, never silently
     corrected (bad date ranges, duplicate active records, illegal run
     transitions, missing bracket tables)
  3. FormulaError - a single formula failed to parse or evaluate; callers
     degrade the affected component to "absent" instead of aborting

USAGE:
  Use errors.Is against the sentinels:

    if errors.Is(err, engine.ErrNotFound) { ... }

  Structured types carry detail and unwrap to the sentinel:

    var bre *engine.RuleViolationError
    if errors.As(err, &bre) { ... }
*/
package engine

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is returned when required reference data is missing:
	// no active compensation, no exchange rate, no such record.
	ErrNotFound = errors.New("not found")

	// ErrBusinessRule is returned on business rule violations. These are
	// surfaced synchronously to the caller and never silently corrected.
	ErrBusinessRule = errors.New("business rule violation")

	// ErrFormula is returned when a formula expression fails to compile or
	// evaluate. Component calculation treats it as "component absent".
	ErrFormula = errors.New("formula evaluation failed")

	// ErrInvalidDateRange is returned when an effective range ends before
	// it starts.
	ErrInvalidDateRange = errors.New("invalid date range: end before start")

	// ErrDuplicateActive is returned when more than one open effective-dated
	// record covers the same date. It signals a prior invariant violation.
	ErrDuplicateActive = errors.New("duplicate active effective-dated record")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// NotFoundError describes which piece of reference data was missing.
type NotFoundError struct {
	Kind string // e.g. "compensation", "exchange_rate", "tax_brackets"
	Key  string // human-readable lookup key
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.Key)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// RuleViolationError describes a business rule violation.
type RuleViolationError struct {
	Code    string // stable machine code, e.g. "run_not_approved"
	Message string
}

func (e *RuleViolationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *RuleViolationError) Unwrap() error { return ErrBusinessRule }

// Violation is shorthand for constructing a RuleViolationError.
func Violation(code, format string, args ...any) *RuleViolationError {
	return &RuleViolationError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// FormulaError describes a failed formula compilation or evaluation.
type FormulaError struct {
	Expression string
	Cause      error
}

func (e *FormulaError) Error() string {
	return fmt.Sprintf("formula %q: %v", e.Expression, e.Cause)
}

// Unwrap exposes both the sentinel and the cause, so callers can detect
// configuration errors underneath a failed formula (errors.Is against
// ErrBusinessRule / ErrNotFound) and escalate instead of degrading.
func (e *FormulaError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrFormula}
	}
	return []error{ErrFormula, e.Cause}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound reports whether err indicates missing reference data.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsBusinessRule reports whether err is a business rule violation.
func IsBusinessRule(err error) bool {
	return errors.Is(err, ErrBusinessRule) ||
		errors.Is(err, ErrInvalidDateRange) ||
		errors.Is(err, ErrDuplicateActive)
}

// IsFormula reports whether err originated in formula evaluation.
// These degrade to "component absent" and never abort a run.
func IsFormula(err error) bool { return errors.Is(err, ErrFormula) }
