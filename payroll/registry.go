/*
registry.go - Pay component registry and amount resolution

PURPOSE:
  Holds the pay components and their prioritized rules for one
  calculation, and resolves each component's amount for one employee.

RESOLUTION ORDER (first applicable source wins):
  1. Period input override for (employee, component)
  2. The winning rule's formula: highest priority among active rules
     valid on the calculation date, ties broken by lowest rule ID
  3. Base-pay passthrough for the designated base component
  4. Absent: no line is produced

  A formula evaluation failure degrades the component to absent and is
  reported back as a warning, except when the failure is a configuration
  error underneath (missing tax brackets, unknown exchange rate) - those
  escalate so the employee's calculation fails loudly.

PHASES:
  Components() returns components in strictly ascending calcPhase order
  (code order within a phase) so dependents always run after what they
  reference.
*/
package payroll

import (
	"context"
	"errors"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/engine"
)

// =============================================================================
// REGISTRY
// =============================================================================

// Registry is an immutable snapshot of components and rules for one run.
// Safe for concurrent use by calculation workers.
type Registry struct {
	components []PayComponent
	byCode     map[string]PayComponent
	rules      map[string][]PayRule // component code -> rules
	evaluator  *engine.FormulaEvaluator
}

func NewRegistry(components []PayComponent, rules []PayRule, evaluator *engine.FormulaEvaluator) *Registry {
	r := &Registry{
		byCode:    make(map[string]PayComponent, len(components)),
		rules:     make(map[string][]PayRule),
		evaluator: evaluator,
	}
	r.components = append(r.components, components...)
	sort.Slice(r.components, func(i, j int) bool {
		if r.components[i].CalcPhase != r.components[j].CalcPhase {
			return r.components[i].CalcPhase < r.components[j].CalcPhase
		}
		return r.components[i].Code < r.components[j].Code
	})
	for _, c := range r.components {
		r.byCode[c.Code] = c
	}
	for _, rule := range rules {
		r.rules[rule.ComponentCode] = append(r.rules[rule.ComponentCode], rule)
	}
	return r
}

// Components returns all components in calculation order.
func (r *Registry) Components() []PayComponent {
	out := make([]PayComponent, len(r.components))
	copy(out, r.components)
	return out
}

// Component looks a component up by code.
func (r *Registry) Component(code string) (PayComponent, bool) {
	c, ok := r.byCode[code]
	return c, ok
}

// winningRule picks the rule that defines a component's amount on the
// calculation date: active, valid on asOf, highest priority, lowest ID
// on priority ties. Deterministic for any insertion order.
func (r *Registry) winningRule(code string, asOf engine.Date) (PayRule, bool) {
	var winner PayRule
	found := false
	for _, rule := range r.rules[code] {
		if !rule.Active || !engine.ActiveOn(rule, asOf) {
			continue
		}
		if !found ||
			rule.Priority > winner.Priority ||
			(rule.Priority == winner.Priority && rule.ID < winner.ID) {
			winner = rule
			found = true
		}
	}
	return winner, found
}

// =============================================================================
// RESOLUTION
// =============================================================================

// ResolutionSource identifies which step produced a component's amount.
type ResolutionSource string

const (
	SourceInput  ResolutionSource = "input"
	SourceRule   ResolutionSource = "rule"
	SourceBase   ResolutionSource = "base"
	SourceAbsent ResolutionSource = "absent"
)

// Resolution is the outcome of resolving one component for one employee.
// Amount is already rounded to money scale. FormulaErr carries a
// degraded formula failure for the run's warning list; it is never set
// when Source != SourceAbsent.
type Resolution struct {
	Amount     decimal.Decimal
	Quantity   decimal.Decimal
	Rate       decimal.Decimal
	Source     ResolutionSource
	RuleID     string
	FormulaErr error
}

// Produced reports whether the resolution yields a pay line. A resolved
// zero amount still produces a line; only absent does not.
func (res Resolution) Produced() bool { return res.Source != SourceAbsent }

// Resolve computes one component's amount for the employee owning calc.
// input is the period input override for (employee, component), or nil.
// The returned error is reserved for escalated configuration failures;
// ordinary formula failures come back as an absent Resolution with
// FormulaErr set.
func (r *Registry) Resolve(ctx context.Context, comp PayComponent, calc *CalcContext, input *PeriodInput, asOf engine.Date) (Resolution, error) {
	if input != nil {
		return Resolution{
			Amount:   engine.RoundMoney(input.Value()),
			Quantity: input.Quantity,
			Rate:     input.Rate,
			Source:   SourceInput,
		}, nil
	}

	if rule, ok := r.winningRule(comp.Code, asOf); ok {
		out, err := r.evaluator.Evaluate(ctx, rule.Formula, calc.Vars())
		if err != nil {
			if engine.IsBusinessRule(err) || engine.IsNotFound(err) {
				return Resolution{Source: SourceAbsent}, err
			}
			if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
				return Resolution{Source: SourceAbsent}, err
			}
			return Resolution{Source: SourceAbsent, FormulaErr: err}, nil
		}
		return Resolution{
			Amount: engine.RoundMoney(out),
			Source: SourceRule,
			RuleID: rule.ID,
		}, nil
	}

	if comp.BasePay {
		base, _ := calc.Amount(VarBaseSalary)
		return Resolution{Amount: engine.RoundMoney(base), Source: SourceBase}, nil
	}

	return Resolution{Source: SourceAbsent}, nil
}
