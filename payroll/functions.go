/*
functions.go - Domain functions callable from pay-rule formulas

PURPOSE:
  Pay rules are plain arithmetic over the calculation context, but tax
  and multi-currency components need the bracket calculator and the rate
  resolver. This file exposes both as formula functions:

    progressiveTax(country, taxCode, income, asOfDate)  -> tax amount
    fxRate(fromCurrency, toCurrency, asOfDate)          -> conversion rate

  Dates are passed as ISO strings, matching the period bound variables
  already present in the context. Lookup failures surface as evaluation
  errors; the registry escalates configuration failures (missing
  brackets, unknown rate) to per-employee run errors instead of quietly
  treating the component as absent.
*/
package payroll

import (
	"context"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/engine"
)

// FormulaFunctions builds the function declarations to register on the
// formula evaluator. The returned closures keep references to the
// calculator and resolver, so both must outlive the evaluator.
func FormulaFunctions(tax *engine.TaxCalculator, fx *engine.RateResolver) []cel.EnvOption {
	return []cel.EnvOption{
		cel.Function("progressiveTax",
			cel.Overload("progressive_tax_sssd",
				[]*cel.Type{cel.StringType, cel.StringType, cel.DoubleType, cel.StringType},
				cel.DoubleType,
				cel.FunctionBinding(func(args ...ref.Val) ref.Val {
					country, _ := args[0].Value().(string)
					taxCode, _ := args[1].Value().(string)
					income, _ := args[2].Value().(float64)
					asOf, err := engine.ParseDate(args[3].Value().(string))
					if err != nil {
						return types.WrapErr(err)
					}
					result, err := tax.Calculate(context.Background(), country, taxCode, decimal.NewFromFloat(income), asOf)
					if err != nil {
						return types.WrapErr(err)
					}
					out, _ := result.TotalTax.Float64()
					return types.Double(out)
				}),
			),
		),
		cel.Function("fxRate",
			cel.Overload("fx_rate_sss",
				[]*cel.Type{cel.StringType, cel.StringType, cel.StringType},
				cel.DoubleType,
				cel.FunctionBinding(func(args ...ref.Val) ref.Val {
					from, _ := args[0].Value().(string)
					to, _ := args[1].Value().(string)
					asOf, err := engine.ParseDate(args[2].Value().(string))
					if err != nil {
						return types.WrapErr(err)
					}
					rate, err := fx.Resolve(context.Background(), from, to, asOf)
					if err != nil {
						return types.WrapErr(err)
					}
					out, _ := rate.Float64()
					return types.Double(out)
				}),
			),
		),
	}
}
