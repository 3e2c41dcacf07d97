/*
fx.go - Exchange rate resolution with fallback chain

PURPOSE:
  Resolves the rate used to convert pay amounts between currencies on a
  given date. Rates are directional: USD->EUR and EUR->USD are distinct
  records, and the reverse pair is NOT automatically maintained.

RESOLUTION CHAIN (first success wins):
  1. Exact record for (from, to, date)
  2. Most recent record for (from, to, date' <= date) - "last known rate"
  3. Most recent reverse-pair record (to, from, date' <= date), inverted
     to 1/rate at 6 decimal places, half-up
  4. NotFound

ROUNDING POLICY:
  - Rates are stored and compared at 6 decimal places
  - Converted monetary amounts round to 2 decimals, half-up, applied only
    at the final conversion step (no intermediate rounding)

SEE ALSO:
  - types.go: RoundRate / RoundMoney
  - payroll/run.go: Compensation normalization uses Convert
*/
package engine

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// EXCHANGE RATE RECORD
// =============================================================================

// ExchangeRate is one directional rate for one day.
type ExchangeRate struct {
	ID           string
	FromCurrency string
	ToCurrency   string
	Date         Date
	Rate         decimal.Decimal // scale 6
}

// RateStore persists exchange rates.
type RateStore interface {
	// FindRate returns the record for exactly (from, to, date).
	// Returns an error satisfying IsNotFound when absent.
	FindRate(ctx context.Context, from, to string, date Date) (ExchangeRate, error)

	// LatestRate returns the most recent record for (from, to) dated on or
	// before the given date. Returns an error satisfying IsNotFound when
	// no such record exists.
	LatestRate(ctx context.Context, from, to string, onOrBefore Date) (ExchangeRate, error)

	// SaveRate inserts or replaces the record for (from, to, date).
	SaveRate(ctx context.Context, rate ExchangeRate) (ExchangeRate, error)
}

// =============================================================================
// RESOLVER
// =============================================================================

// RateResolver resolves conversion rates through the fallback chain.
// Stateless; safe for concurrent use.
type RateResolver struct {
	store RateStore
}

func NewRateResolver(store RateStore) *RateResolver {
	return &RateResolver{store: store}
}

// Resolve returns the rate converting from -> to on date, at scale 6.
func (r *RateResolver) Resolve(ctx context.Context, from, to string, date Date) (decimal.Decimal, error) {
	if from == to {
		return decimal.NewFromInt(1), nil
	}

	// 1. Exact match
	if rec, err := r.store.FindRate(ctx, from, to, date); err == nil {
		return rec.Rate, nil
	} else if !IsNotFound(err) {
		return decimal.Zero, err
	}

	// 2. Last known rate for the pair
	if rec, err := r.store.LatestRate(ctx, from, to, date); err == nil {
		return rec.Rate, nil
	} else if !IsNotFound(err) {
		return decimal.Zero, err
	}

	// 3. Reverse pair, inverted
	if rec, err := r.store.LatestRate(ctx, to, from, date); err == nil {
		if rec.Rate.IsZero() {
			return decimal.Zero, Violation("zero_exchange_rate",
				"reverse rate %s->%s on %s is zero", to, from, rec.Date)
		}
		return decimal.NewFromInt(1).DivRound(rec.Rate, RateScale), nil
	} else if !IsNotFound(err) {
		return decimal.Zero, err
	}

	return decimal.Zero, &NotFoundError{
		Kind: "exchange_rate",
		Key:  fmt.Sprintf("%s->%s on %s", from, to, date),
	}
}

// Convert converts amount from one currency to another on date. The result
// is rounded to 2 decimals half-up; rounding is applied only here, at the
// final step. Identity when the currencies match.
func (r *RateResolver) Convert(ctx context.Context, amount decimal.Decimal, from, to string, date Date) (decimal.Decimal, error) {
	if from == to {
		return amount, nil
	}
	rate, err := r.Resolve(ctx, from, to, date)
	if err != nil {
		return decimal.Zero, err
	}
	return RoundMoney(amount.Mul(rate)), nil
}
