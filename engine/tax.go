/*
tax.go - Progressive (marginal) tax bracket calculator

PURPOSE:
  Computes tax withholding by walking a progressive bracket table: each
  income sub-range is taxed at its own rate, and total tax is the sum
  across every sub-range the income passes through.

BRACKET TABLES:
  Brackets belong to a (country, taxCode) pair and are validity-dated.
  A well-formed table partitions income into contiguous, non-overlapping,
  rate-increasing ranges. The last bracket is open-ended (nil Upper).

  Example: [0, 1000) @ 10%, [1000, inf) @ 20%
  Income 1500 -> 100 (first bracket) + 100 (second) = 200, effective 13.33%

HARD CONFIGURATION ERROR:
  An empty table for (country, taxCode, date) is a BusinessRuleViolation,
  never a zero-tax default. Silently withholding nothing is worse than
  failing the calculation.

SEE ALSO:
  - payroll/registry.go: Tax components call Calculate from rule formulas
*/
package engine

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"
)

// =============================================================================
// TAX BRACKET RECORD
// =============================================================================

// TaxBracket is one income sub-range of a progressive table.
type TaxBracket struct {
	ID        string
	Country   string
	TaxCode   string
	Lower     decimal.Decimal
	Upper     *decimal.Decimal // nil = unbounded top bracket
	Rate      decimal.Decimal  // fraction, e.g. 0.20
	FixedPart decimal.Decimal  // quick-deduction constant for cumulative-style tables
	ValidFrom Date
	ValidTo   *Date
}

// BracketStore persists tax bracket tables.
type BracketStore interface {
	// ListBrackets returns all brackets for (country, taxCode) valid on
	// the given date, in any order.
	ListBrackets(ctx context.Context, country, taxCode string, validOn Date) ([]TaxBracket, error)

	// SaveBracket inserts a bracket row.
	SaveBracket(ctx context.Context, b TaxBracket) (TaxBracket, error)
}

// =============================================================================
// CALCULATION RESULT
// =============================================================================

// BracketLine is the per-bracket portion of a tax calculation.
type BracketLine struct {
	Lower         decimal.Decimal
	Upper         *decimal.Decimal
	RatePercent   decimal.Decimal
	TaxableAmount decimal.Decimal
	TaxAmount     decimal.Decimal
}

// TaxResult is the outcome of one progressive tax calculation.
type TaxResult struct {
	TotalTax             decimal.Decimal
	EffectiveRatePercent decimal.Decimal
	Breakdown            []BracketLine
}

// =============================================================================
// CALCULATOR
// =============================================================================

// TaxCalculator computes marginal tax over validity-dated bracket tables.
// Stateless; safe for concurrent use.
type TaxCalculator struct {
	store BracketStore
}

func NewTaxCalculator(store BracketStore) *TaxCalculator {
	return &TaxCalculator{store: store}
}

// Calculate computes total tax, effective rate and the per-bracket
// breakdown for taxableIncome under the (country, taxCode) table valid on
// date. Per-bracket tax is rounded to 2 decimals half-up.
func (c *TaxCalculator) Calculate(ctx context.Context, country, taxCode string, taxableIncome decimal.Decimal, date Date) (TaxResult, error) {
	brackets, err := c.store.ListBrackets(ctx, country, taxCode, date)
	if err != nil {
		return TaxResult{}, err
	}
	if len(brackets) == 0 {
		return TaxResult{}, Violation("missing_tax_brackets",
			"no active tax brackets for %s/%s on %s", country, taxCode, date)
	}

	sort.Slice(brackets, func(i, j int) bool {
		return brackets[i].Lower.LessThan(brackets[j].Lower)
	})

	result := TaxResult{TotalTax: decimal.Zero, EffectiveRatePercent: decimal.Zero}
	if taxableIncome.LessThanOrEqual(decimal.Zero) {
		return result, nil
	}

	hundred := decimal.NewFromInt(100)
	for _, b := range brackets {
		if taxableIncome.LessThanOrEqual(b.Lower) {
			break
		}

		upperBound := taxableIncome
		if b.Upper != nil && b.Upper.LessThan(upperBound) {
			upperBound = *b.Upper
		}
		taxableInBracket := upperBound.Sub(b.Lower)
		if taxableInBracket.LessThanOrEqual(decimal.Zero) {
			continue
		}

		taxInBracket := RoundMoney(taxableInBracket.Mul(b.Rate))
		result.TotalTax = result.TotalTax.Add(taxInBracket)
		result.Breakdown = append(result.Breakdown, BracketLine{
			Lower:         b.Lower,
			Upper:         b.Upper,
			RatePercent:   b.Rate.Mul(hundred),
			TaxableAmount: taxableInBracket,
			TaxAmount:     taxInBracket,
		})
	}

	result.EffectiveRatePercent = result.TotalTax.
		Div(taxableIncome).
		Mul(hundred).
		Round(2)
	return result, nil
}

// ValidateTable checks that a bracket table is contiguous and
// rate-increasing. Used when loading plan configuration, not during
// calculation.
func ValidateTable(brackets []TaxBracket) error {
	if len(brackets) == 0 {
		return nil
	}
	sorted := make([]TaxBracket, len(brackets))
	copy(sorted, brackets)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Lower.LessThan(sorted[j].Lower)
	})

	for i, b := range sorted {
		if i > 0 {
			prev := sorted[i-1]
			if prev.Upper == nil {
				return Violation("bracket_after_unbounded",
					"bracket starting at %s follows an unbounded bracket", b.Lower)
			}
			if !prev.Upper.Equal(b.Lower) {
				return Violation("bracket_gap",
					"gap or overlap between %s and %s", prev.Upper, b.Lower)
			}
			if b.Rate.LessThan(prev.Rate) {
				return Violation("bracket_rate_decrease",
					"rate decreases at lower bound %s", b.Lower)
			}
		}
		if b.Upper != nil && b.Upper.LessThanOrEqual(b.Lower) {
			return Violation("bracket_bounds", "bracket upper %s not above lower %s", b.Upper, b.Lower)
		}
	}
	return nil
}
