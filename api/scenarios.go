/*
scenarios.go - Demo scenario loaders

PURPOSE:
  Seeds the store with ready-made configurations so the engine can be
  explored without hand-crafting employees, plans and periods. Each
  scenario wipes the store, applies the standard plan, and layers its
  own population on top.

SCENARIOS:
  - standard-monthly: Three employees on the standard plan, one with a
    health plan enrollment
  - multi-currency:   A EUR-compensated employee paid out in USD
  - overtime-inputs:  Hourly overtime entered as period inputs

SEE ALSO:
  - factory/plan.go: The plan each scenario starts from
  - handlers.go: Routes these loaders under /api/scenarios
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/warp/payroll-engine/engine"
	"github.com/warp/payroll-engine/factory"
	"github.com/warp/payroll-engine/payroll"
)

// wiper is implemented by stores that can drop all state.
type wiper interface {
	Wipe(ctx context.Context) error
}

type scenario struct {
	Name        string
	Description string
	Load        func(ctx context.Context, h *Handler) error
}

var scenarios = []scenario{
	{
		Name:        "standard-monthly",
		Description: "Three employees on the standard monthly plan, one with a health plan enrollment",
		Load:        loadStandardMonthly,
	},
	{
		Name:        "multi-currency",
		Description: "A EUR-compensated employee paid out in USD via the exchange rate resolver",
		Load:        loadMultiCurrency,
	},
	{
		Name:        "overtime-inputs",
		Description: "Overtime hours entered as period inputs on top of base salary",
		Load:        loadOvertimeInputs,
	},
}

// =============================================================================
// HANDLERS
// =============================================================================

func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	dtos := make([]ScenarioDTO, 0, len(scenarios))
	for _, s := range scenarios {
		dtos = append(dtos, ScenarioDTO{Name: s.Name, Description: s.Description})
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	for _, s := range scenarios {
		if s.Name != req.Name {
			continue
		}
		if err := h.wipe(r.Context()); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to reset store", err)
			return
		}
		if err := s.Load(r.Context(), h); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
			return
		}
		h.currentScenario = s.Name
		writeJSON(w, http.StatusOK, ScenarioDTO{Name: s.Name, Description: s.Description})
		return
	}
	writeError(w, http.StatusNotFound, fmt.Sprintf("Unknown scenario %q", req.Name), nil)
}

func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"name": h.currentScenario})
}

func (h *Handler) ResetStore(w http.ResponseWriter, r *http.Request) {
	if err := h.wipe(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset store", err)
		return
	}
	h.currentScenario = ""
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (h *Handler) wipe(ctx context.Context) error {
	wp, ok := h.Store.(wiper)
	if !ok {
		return fmt.Errorf("store does not support wiping")
	}
	return wp.Wipe(ctx)
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

// currentPeriod creates an open period covering the current calendar month.
func currentPeriod(ctx context.Context, h *Handler) (payroll.PayrollPeriod, error) {
	today := engine.Today()
	start := engine.StartOfMonth(today)
	end := engine.EndOfMonth(today)
	return h.Store.Periods().SavePeriod(ctx, payroll.PayrollPeriod{
		Code:        start.Time().Format("2006-01"),
		Start:       start,
		End:         end,
		PaymentDate: end,
	})
}

func seedEmployee(ctx context.Context, h *Handler, emp payroll.Employee, comp payroll.Compensation) (payroll.Employee, error) {
	saved, err := h.Store.Employees().SaveEmployee(ctx, emp)
	if err != nil {
		return payroll.Employee{}, err
	}
	comp.EmployeeID = saved.ID
	if comp.Type == "" {
		comp.Type = payroll.BaseCompensationType
	}
	_, _, err = h.Orch.Compensation().CreateWithClosure(ctx, saved.ID, comp.Type, comp)
	return saved, err
}

func loadStandardMonthly(ctx context.Context, h *Handler) error {
	if err := factory.Apply(ctx, h.Store, factory.StandardMonthly()); err != nil {
		return err
	}
	start := engine.NewDate(2024, 1, 1)

	alice, err := seedEmployee(ctx, h, payroll.Employee{
		Name: "Alice Moreau", Email: "alice@example.com", Country: "US", Currency: "USD",
		HireDate: start, Active: true,
	}, payroll.Compensation{
		Amount: engine.MustDecimal("5000"), Currency: "USD",
		Basis: payroll.BasisMonthly, From: start,
	})
	if err != nil {
		return err
	}
	if _, err := seedEmployee(ctx, h, payroll.Employee{
		Name: "Bo Lindqvist", Email: "bo@example.com", Country: "US", Currency: "USD",
		HireDate: start, Active: true,
	}, payroll.Compensation{
		Amount: engine.MustDecimal("96000"), Currency: "USD",
		Basis: payroll.BasisAnnual, From: start,
	}); err != nil {
		return err
	}
	if _, err := seedEmployee(ctx, h, payroll.Employee{
		Name: "Chen Wei", Email: "chen@example.com", Country: "US", Currency: "USD",
		HireDate: start, Active: true,
	}, payroll.Compensation{
		Amount: engine.MustDecimal("4200"), Currency: "USD",
		Basis: payroll.BasisMonthly, From: start,
	}); err != nil {
		return err
	}

	// Alice pays into the health plan.
	if _, _, err := h.Orch.Deductions().CreateWithClosure(ctx, alice.ID, "HEALTH", payroll.Deduction{
		EmployeeID: alice.ID, Type: "HEALTH",
		Amount: engine.MustDecimal("120"), Currency: "USD", From: start,
	}); err != nil {
		return err
	}

	_, err = currentPeriod(ctx, h)
	return err
}

func loadMultiCurrency(ctx context.Context, h *Handler) error {
	if err := factory.Apply(ctx, h.Store, factory.StandardMonthly()); err != nil {
		return err
	}
	start := engine.NewDate(2024, 1, 1)

	if _, err := seedEmployee(ctx, h, payroll.Employee{
		Name: "Ines Duarte", Email: "ines@example.com", Country: "US", Currency: "USD",
		HireDate: start, Active: true,
	}, payroll.Compensation{
		Amount: engine.MustDecimal("4600"), Currency: "EUR",
		Basis: payroll.BasisMonthly, From: start,
	}); err != nil {
		return err
	}

	_, err := currentPeriod(ctx, h)
	return err
}

func loadOvertimeInputs(ctx context.Context, h *Handler) error {
	if err := factory.Apply(ctx, h.Store, factory.StandardMonthly()); err != nil {
		return err
	}
	start := engine.NewDate(2024, 1, 1)

	emp, err := seedEmployee(ctx, h, payroll.Employee{
		Name: "Pavel Novak", Email: "pavel@example.com", Country: "US", Currency: "USD",
		HireDate: start, Active: true,
	}, payroll.Compensation{
		Amount: engine.MustDecimal("3800"), Currency: "USD",
		Basis: payroll.BasisMonthly, From: start,
	})
	if err != nil {
		return err
	}

	period, err := currentPeriod(ctx, h)
	if err != nil {
		return err
	}
	_, err = h.Store.Periods().SaveInput(ctx, payroll.PeriodInput{
		PeriodID:      period.ID,
		EmployeeID:    emp.ID,
		ComponentCode: "OT",
		Quantity:      engine.MustDecimal("12"),
		Rate:          engine.MustDecimal("32.90"),
	})
	return err
}
