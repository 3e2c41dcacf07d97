package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/payroll-engine/engine"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

// fakeRateStore keeps rates in a slice.
type fakeRateStore struct {
	rates []engine.ExchangeRate
}

func (s *fakeRateStore) FindRate(_ context.Context, from, to string, d engine.Date) (engine.ExchangeRate, error) {
	for _, r := range s.rates {
		if r.FromCurrency == from && r.ToCurrency == to && r.Date.Equal(d) {
			return r, nil
		}
	}
	return engine.ExchangeRate{}, &engine.NotFoundError{Kind: "exchange_rate", Key: from + "->" + to}
}

func (s *fakeRateStore) LatestRate(_ context.Context, from, to string, onOrBefore engine.Date) (engine.ExchangeRate, error) {
	var best *engine.ExchangeRate
	for i, r := range s.rates {
		if r.FromCurrency != from || r.ToCurrency != to || r.Date.After(onOrBefore) {
			continue
		}
		if best == nil || r.Date.After(best.Date) {
			best = &s.rates[i]
		}
	}
	if best == nil {
		return engine.ExchangeRate{}, &engine.NotFoundError{Kind: "exchange_rate", Key: from + "->" + to}
	}
	return *best, nil
}

func (s *fakeRateStore) SaveRate(_ context.Context, r engine.ExchangeRate) (engine.ExchangeRate, error) {
	s.rates = append(s.rates, r)
	return r, nil
}

func dec(s string) decimal.Decimal { return engine.MustDecimal(s) }

// =============================================================================
// RESOLUTION CHAIN
// =============================================================================

func TestResolve_ExactMatchWins(t *testing.T) {
	// GIVEN: Rates for Jun 1 and Jun 5
	// WHEN: Resolving on Jun 5
	// THEN: The Jun 5 rate is returned, not the earlier one

	store := &fakeRateStore{}
	store.SaveRate(context.Background(), engine.ExchangeRate{FromCurrency: "USD", ToCurrency: "EUR", Date: date(2025, time.June, 1), Rate: dec("0.90")})
	store.SaveRate(context.Background(), engine.ExchangeRate{FromCurrency: "USD", ToCurrency: "EUR", Date: date(2025, time.June, 5), Rate: dec("0.92")})

	rate, err := engine.NewRateResolver(store).Resolve(context.Background(), "USD", "EUR", date(2025, time.June, 5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !rate.Equal(dec("0.92")) {
		t.Errorf("expected 0.92, got %s", rate)
	}
}

func TestResolve_LastKnownRateFallback(t *testing.T) {
	// GIVEN: Only a rate dated five days before the calculation date
	// WHEN: Resolving on the calculation date
	// THEN: The earlier rate is returned unchanged

	store := &fakeRateStore{}
	store.SaveRate(context.Background(), engine.ExchangeRate{FromCurrency: "USD", ToCurrency: "EUR", Date: date(2025, time.June, 1), Rate: dec("0.91")})

	rate, err := engine.NewRateResolver(store).Resolve(context.Background(), "USD", "EUR", date(2025, time.June, 6))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !rate.Equal(dec("0.91")) {
		t.Errorf("expected 0.91, got %s", rate)
	}
}

func TestResolve_ReversePairInverted(t *testing.T) {
	// GIVEN: Only a USD->EUR rate of 0.9 on day D
	// WHEN: Resolving EUR->USD on day D
	// THEN: 1/0.9 rounded to 6 decimals = 1.111111

	store := &fakeRateStore{}
	store.SaveRate(context.Background(), engine.ExchangeRate{FromCurrency: "USD", ToCurrency: "EUR", Date: date(2025, time.June, 1), Rate: dec("0.9")})

	rate, err := engine.NewRateResolver(store).Resolve(context.Background(), "EUR", "USD", date(2025, time.June, 1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !rate.Equal(dec("1.111111")) {
		t.Errorf("expected 1.111111, got %s", rate)
	}
}

func TestResolve_DirectPairBeatsReverse(t *testing.T) {
	// GIVEN: An older direct EUR->USD rate and a newer USD->EUR rate
	// WHEN: Resolving EUR->USD
	// THEN: The direct rate wins over the inverted reverse pair

	store := &fakeRateStore{}
	store.SaveRate(context.Background(), engine.ExchangeRate{FromCurrency: "EUR", ToCurrency: "USD", Date: date(2025, time.May, 1), Rate: dec("1.10")})
	store.SaveRate(context.Background(), engine.ExchangeRate{FromCurrency: "USD", ToCurrency: "EUR", Date: date(2025, time.June, 1), Rate: dec("0.92")})

	rate, err := engine.NewRateResolver(store).Resolve(context.Background(), "EUR", "USD", date(2025, time.June, 5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !rate.Equal(dec("1.10")) {
		t.Errorf("expected direct rate 1.10, got %s", rate)
	}
}

func TestResolve_NothingKnownIsNotFound(t *testing.T) {
	_, err := engine.NewRateResolver(&fakeRateStore{}).Resolve(context.Background(), "USD", "JPY", date(2025, time.June, 1))
	if !engine.IsNotFound(err) {
		t.Errorf("expected not-found, got %v", err)
	}
}

// =============================================================================
// CONVERSION
// =============================================================================

func TestConvert_IdentityForSameCurrency(t *testing.T) {
	// No rate records exist, but same-currency conversion short-circuits.
	out, err := engine.NewRateResolver(&fakeRateStore{}).Convert(context.Background(), dec("123.456"), "USD", "USD", date(2025, time.June, 1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.Equal(dec("123.456")) {
		t.Errorf("identity conversion changed the amount: %s", out)
	}
}

func TestConvert_RoundsOnlyAtFinalStep(t *testing.T) {
	// GIVEN: Rate 0.333333
	// WHEN: Converting 100.00
	// THEN: 33.3333 rounds half-up to 33.33 exactly once

	store := &fakeRateStore{}
	store.SaveRate(context.Background(), engine.ExchangeRate{FromCurrency: "USD", ToCurrency: "EUR", Date: date(2025, time.June, 1), Rate: dec("0.333333")})

	out, err := engine.NewRateResolver(store).Convert(context.Background(), dec("100.00"), "USD", "EUR", date(2025, time.June, 1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.Equal(dec("33.33")) {
		t.Errorf("expected 33.33, got %s", out)
	}
}

func TestConvert_HalfUpRounding(t *testing.T) {
	// 10.05 * 0.5 = 5.025 -> 5.03 under half-up
	store := &fakeRateStore{}
	store.SaveRate(context.Background(), engine.ExchangeRate{FromCurrency: "USD", ToCurrency: "EUR", Date: date(2025, time.June, 1), Rate: dec("0.5")})

	out, err := engine.NewRateResolver(store).Convert(context.Background(), dec("10.05"), "USD", "EUR", date(2025, time.June, 1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.Equal(dec("5.03")) {
		t.Errorf("expected 5.03, got %s", out)
	}
}
