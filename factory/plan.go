/*
Package factory turns declarative JSON payroll plans into stored
configuration: pay components, rules, tax bracket tables, exchange
rates and holidays.

PURPOSE:
  A plan is the portable description of how a company pays people.
  Loading one seeds a store so the same configuration can back demo
  scenarios, tests and fresh deployments. Amounts and dates travel as
  strings and are validated on apply, never trusted from the file.
*/
package factory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/warp/payroll-engine/engine"
	"github.com/warp/payroll-engine/payroll"
)

// =============================================================================
// PLAN SCHEMA
// =============================================================================

// Plan is the JSON document root.
type Plan struct {
	Name       string          `json:"name"`
	Components []ComponentSpec `json:"components"`
	Rules      []RuleSpec      `json:"rules"`
	Brackets   []BracketSpec   `json:"tax_brackets"`
	Rates      []RateSpec      `json:"exchange_rates"`
	Holidays   []HolidaySpec   `json:"holidays"`
}

type ComponentSpec struct {
	Code      string `json:"code"`
	Name      string `json:"name"`
	Kind      string `json:"kind"` // earning | deduction | employer_charge
	CalcPhase int    `json:"calc_phase"`
	Taxable   bool   `json:"taxable"`
	Social    bool   `json:"social"`
	BasePay   bool   `json:"base_pay"`
}

type RuleSpec struct {
	ID            string `json:"id"`
	ComponentCode string `json:"component"`
	Formula       string `json:"formula"`
	Priority      int    `json:"priority"`
	Inactive      bool   `json:"inactive"`
	From          string `json:"from"`
	To            string `json:"to"`
}

type BracketSpec struct {
	Country   string `json:"country"`
	TaxCode   string `json:"tax_code"`
	Lower     string `json:"lower"`
	Upper     string `json:"upper"` // empty = unbounded
	Rate      string `json:"rate"`
	FixedPart string `json:"fixed_part"`
	ValidFrom string `json:"valid_from"`
	ValidTo   string `json:"valid_to"`
}

type RateSpec struct {
	From string `json:"from"`
	To   string `json:"to"`
	Date string `json:"date"`
	Rate string `json:"rate"`
}

type HolidaySpec struct {
	Date      string `json:"date"`
	Name      string `json:"name"`
	Recurring bool   `json:"recurring"`
}

// =============================================================================
// LOADING
// =============================================================================

// Load decodes a plan from JSON.
func Load(r io.Reader) (Plan, error) {
	var plan Plan
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&plan); err != nil {
		return Plan{}, fmt.Errorf("decode plan: %w", err)
	}
	return plan, nil
}

// =============================================================================
// APPLY
// =============================================================================

var validKinds = map[string]payroll.ComponentKind{
	string(payroll.KindEarning):        payroll.KindEarning,
	string(payroll.KindDeduction):      payroll.KindDeduction,
	string(payroll.KindEmployerCharge): payroll.KindEmployerCharge,
}

// Apply validates the plan and writes it into the store. Bracket tables
// are checked for gaps and rate regressions before anything is saved.
func Apply(ctx context.Context, store payroll.Store, plan Plan) error {
	components, err := plan.components()
	if err != nil {
		return err
	}
	rules, err := plan.rules()
	if err != nil {
		return err
	}
	brackets, err := plan.brackets()
	if err != nil {
		return err
	}
	rates, err := plan.rates()
	if err != nil {
		return err
	}
	holidays, err := plan.holidays()
	if err != nil {
		return err
	}

	byTable := make(map[string][]engine.TaxBracket)
	for _, b := range brackets {
		key := b.Country + "/" + b.TaxCode
		byTable[key] = append(byTable[key], b)
	}
	for key, table := range byTable {
		if err := engine.ValidateTable(table); err != nil {
			return fmt.Errorf("plan %q: tax table %s: %w", plan.Name, key, err)
		}
	}

	for _, c := range components {
		if _, err := store.Components().SaveComponent(ctx, c); err != nil {
			return err
		}
	}
	for _, r := range rules {
		if _, err := store.Components().SaveRule(ctx, r); err != nil {
			return err
		}
	}
	for _, b := range brackets {
		if _, err := store.Brackets().SaveBracket(ctx, b); err != nil {
			return err
		}
	}
	for _, r := range rates {
		if _, err := store.Rates().SaveRate(ctx, r); err != nil {
			return err
		}
	}
	for _, h := range holidays {
		if _, err := store.Holidays().SaveHoliday(ctx, h); err != nil {
			return err
		}
	}
	return nil
}

func (p Plan) components() ([]payroll.PayComponent, error) {
	basePayCount := 0
	out := make([]payroll.PayComponent, 0, len(p.Components))
	for _, spec := range p.Components {
		kind, ok := validKinds[spec.Kind]
		if !ok {
			return nil, fmt.Errorf("plan %q: component %s: unknown kind %q", p.Name, spec.Code, spec.Kind)
		}
		if spec.Code == "" {
			return nil, fmt.Errorf("plan %q: component with empty code", p.Name)
		}
		if spec.BasePay {
			basePayCount++
		}
		out = append(out, payroll.PayComponent{
			Code:      spec.Code,
			Name:      spec.Name,
			Kind:      kind,
			CalcPhase: spec.CalcPhase,
			Taxable:   spec.Taxable,
			Social:    spec.Social,
			BasePay:   spec.BasePay,
		})
	}
	if basePayCount > 1 {
		return nil, fmt.Errorf("plan %q: %d base pay components, want at most one", p.Name, basePayCount)
	}
	return out, nil
}

func (p Plan) rules() ([]payroll.PayRule, error) {
	out := make([]payroll.PayRule, 0, len(p.Rules))
	for _, spec := range p.Rules {
		if spec.Formula == "" {
			return nil, fmt.Errorf("plan %q: rule %s has no formula", p.Name, spec.ID)
		}
		from, err := engine.ParseDate(spec.From)
		if err != nil {
			return nil, fmt.Errorf("plan %q: rule %s: %w", p.Name, spec.ID, err)
		}
		rule := payroll.PayRule{
			ID:            spec.ID,
			ComponentCode: spec.ComponentCode,
			Formula:       spec.Formula,
			Priority:      spec.Priority,
			Active:        !spec.Inactive,
			From:          from,
		}
		if spec.To != "" {
			to, err := engine.ParseDate(spec.To)
			if err != nil {
				return nil, fmt.Errorf("plan %q: rule %s: %w", p.Name, spec.ID, err)
			}
			rule.To = &to
		}
		out = append(out, rule)
	}
	return out, nil
}

func (p Plan) brackets() ([]engine.TaxBracket, error) {
	out := make([]engine.TaxBracket, 0, len(p.Brackets))
	for i, spec := range p.Brackets {
		b := engine.TaxBracket{Country: spec.Country, TaxCode: spec.TaxCode}
		var err error
		if b.Lower, err = engine.ParseDecimal(spec.Lower); err != nil {
			return nil, fmt.Errorf("plan %q: bracket %d lower: %w", p.Name, i, err)
		}
		if spec.Upper != "" {
			u, err := engine.ParseDecimal(spec.Upper)
			if err != nil {
				return nil, fmt.Errorf("plan %q: bracket %d upper: %w", p.Name, i, err)
			}
			b.Upper = &u
		}
		if b.Rate, err = engine.ParseDecimal(spec.Rate); err != nil {
			return nil, fmt.Errorf("plan %q: bracket %d rate: %w", p.Name, i, err)
		}
		if spec.FixedPart != "" {
			if b.FixedPart, err = engine.ParseDecimal(spec.FixedPart); err != nil {
				return nil, fmt.Errorf("plan %q: bracket %d fixed part: %w", p.Name, i, err)
			}
		}
		if b.ValidFrom, err = engine.ParseDate(spec.ValidFrom); err != nil {
			return nil, fmt.Errorf("plan %q: bracket %d valid from: %w", p.Name, i, err)
		}
		if spec.ValidTo != "" {
			to, err := engine.ParseDate(spec.ValidTo)
			if err != nil {
				return nil, fmt.Errorf("plan %q: bracket %d valid to: %w", p.Name, i, err)
			}
			b.ValidTo = &to
		}
		out = append(out, b)
	}
	return out, nil
}

func (p Plan) rates() ([]engine.ExchangeRate, error) {
	out := make([]engine.ExchangeRate, 0, len(p.Rates))
	for i, spec := range p.Rates {
		r := engine.ExchangeRate{FromCurrency: spec.From, ToCurrency: spec.To}
		var err error
		if r.Date, err = engine.ParseDate(spec.Date); err != nil {
			return nil, fmt.Errorf("plan %q: rate %d: %w", p.Name, i, err)
		}
		if r.Rate, err = engine.ParseDecimal(spec.Rate); err != nil {
			return nil, fmt.Errorf("plan %q: rate %d: %w", p.Name, i, err)
		}
		if !r.Rate.IsPositive() {
			return nil, fmt.Errorf("plan %q: rate %d: rate must be positive", p.Name, i)
		}
		out = append(out, r)
	}
	return out, nil
}

func (p Plan) holidays() ([]engine.Holiday, error) {
	out := make([]engine.Holiday, 0, len(p.Holidays))
	for i, spec := range p.Holidays {
		d, err := engine.ParseDate(spec.Date)
		if err != nil {
			return nil, fmt.Errorf("plan %q: holiday %d: %w", p.Name, i, err)
		}
		out = append(out, engine.Holiday{Date: d, Name: spec.Name, Recurring: spec.Recurring})
	}
	return out, nil
}

// =============================================================================
// PRESETS
// =============================================================================

// StandardMonthly is a ready-to-apply plan for a simple monthly payroll:
// base pay, overtime from period inputs, a 5% pension, progressive
// income tax over an annualized gross, and an employer health charge.
func StandardMonthly() Plan {
	return Plan{
		Name: "standard-monthly",
		Components: []ComponentSpec{
			{Code: "BASE", Name: "Base salary", Kind: "earning", CalcPhase: 1, Taxable: true, Social: true, BasePay: true},
			{Code: "OT", Name: "Overtime", Kind: "earning", CalcPhase: 2, Taxable: true},
			{Code: "BONUS", Name: "Bonus", Kind: "earning", CalcPhase: 2, Taxable: true},
			{Code: "PENSION", Name: "Pension contribution", Kind: "deduction", CalcPhase: 3, Social: true},
			{Code: "HEALTH", Name: "Health plan (employee)", Kind: "deduction", CalcPhase: 3},
			{Code: "TAX", Name: "Income tax", Kind: "deduction", CalcPhase: 4},
			{Code: "HEALTH_ER", Name: "Health plan (employer)", Kind: "employer_charge", CalcPhase: 5},
		},
		Rules: []RuleSpec{
			{
				ID: "pension-5pct", ComponentCode: "PENSION", Priority: 1, From: "2020-01-01",
				Formula: "grossSalary * 0.05",
			},
			{
				ID: "tax-progressive", ComponentCode: "TAX", Priority: 1, From: "2020-01-01",
				Formula: `progressiveTax(country, "FED", grossSalary * 12.0, periodEndDate) / 12.0`,
			},
		},
		Brackets: []BracketSpec{
			{Country: "US", TaxCode: "FED", Lower: "0", Upper: "12000", Rate: "0.10", ValidFrom: "2020-01-01"},
			{Country: "US", TaxCode: "FED", Lower: "12000", Upper: "50000", Rate: "0.22", ValidFrom: "2020-01-01"},
			{Country: "US", TaxCode: "FED", Lower: "50000", Rate: "0.32", ValidFrom: "2020-01-01"},
		},
		Rates: []RateSpec{
			{From: "EUR", To: "USD", Date: "2025-01-02", Rate: "1.09"},
			{From: "GBP", To: "USD", Date: "2025-01-02", Rate: "1.27"},
		},
		Holidays: []HolidaySpec{
			{Date: "2025-01-01", Name: "New Year's Day", Recurring: true},
			{Date: "2025-07-04", Name: "Independence Day", Recurring: true},
			{Date: "2025-12-25", Name: "Christmas Day", Recurring: true},
		},
	}
}
