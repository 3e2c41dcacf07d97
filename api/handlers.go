/*
handlers.go - HTTP API handlers for the payroll engine

PURPOSE:
  Exposes the payroll engine via REST. Handles HTTP request/response,
  JSON serialization, and delegates to the orchestrator and stores.

ENDPOINTS:
  Employees:
    GET    /api/employees                       List employees
    POST   /api/employees                       Create employee
    GET    /api/employees/{id}                  Get employee
    GET    /api/employees/{id}/compensation     Compensation history
    POST   /api/employees/{id}/compensation     New compensation (closes overlap)
    POST   /api/employees/{id}/compensation/terminate
    GET    /api/employees/{id}/deductions       Deduction enrollments
    POST   /api/employees/{id}/deductions       New deduction enrollment

  Configuration:
    GET    /api/components                      Component catalog
    POST   /api/plans                           Apply a JSON payroll plan
    POST   /api/rates                           Record an exchange rate
    GET    /api/rates/resolve                   Resolve a rate for a date

  Periods:
    GET    /api/periods                         List periods
    POST   /api/periods                         Create period
    GET    /api/periods/{id}/inputs             Period inputs
    POST   /api/periods/{id}/inputs             Upsert period input
    POST   /api/periods/{id}/reopen             Reopen a closed period

  Runs:
    POST   /api/runs                            Create draft run
    GET    /api/runs/{id}                       Run summary
    POST   /api/runs/{id}/calculate             Calculate
    POST   /api/runs/{id}/recalculate           Reset to draft and calculate
    POST   /api/runs/{id}/approve               Approve
    POST   /api/runs/{id}/post                  Post and close period
    GET    /api/runs/{id}/results               Per-employee results
    GET    /api/results/{id}/lines              Result lines

  Scenarios:
    GET    /api/scenarios                       List demo scenarios
    POST   /api/scenarios/load                  Load a demo scenario
    POST   /api/scenarios/reset                 Wipe the database

ERROR HANDLING:
  - 400: Malformed body, bad dates/amounts
  - 404: Unknown resource
  - 409: Business rule violations (state machine, overlap, closed period)
  - 500: Everything else

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/warp/payroll-engine/engine"
	"github.com/warp/payroll-engine/factory"
	"github.com/warp/payroll-engine/payroll"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store payroll.Store
	Orch  *payroll.Orchestrator

	fx *engine.RateResolver

	// Track currently loaded scenario
	currentScenario string
}

// NewHandler creates a handler over the given store.
func NewHandler(store payroll.Store, orch *payroll.Orchestrator) *Handler {
	return &Handler{
		Store: store,
		Orch:  orch,
		fx:    engine.NewRateResolver(store.Rates()),
	}
}

// =============================================================================
// EMPLOYEE ENDPOINTS
// =============================================================================

func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.Store.Employees().ListEmployees(r.Context(), payroll.RunScope{PayGroup: r.URL.Query().Get("pay_group")})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list employees", err)
		return
	}
	dtos := make([]EmployeeDTO, 0, len(employees))
	for _, emp := range employees {
		dtos = append(dtos, toEmployeeDTO(emp))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	emp, err := h.Store.Employees().GetEmployee(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "Failed to get employee", err)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTO(emp))
}

func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req CreateEmployeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	hireDate, err := engine.ParseDate(req.HireDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid hire_date format (use YYYY-MM-DD)", err)
		return
	}
	if req.Name == "" || req.Currency == "" {
		writeError(w, http.StatusBadRequest, "name and currency are required", nil)
		return
	}

	emp, err := h.Store.Employees().SaveEmployee(r.Context(), payroll.Employee{
		Name:     req.Name,
		Email:    req.Email,
		HireDate: hireDate,
		PayGroup: req.PayGroup,
		Country:  req.Country,
		Currency: req.Currency,
		Active:   true,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create employee", err)
		return
	}
	writeJSON(w, http.StatusCreated, toEmployeeDTO(emp))
}

func (h *Handler) ListCompensation(w http.ResponseWriter, r *http.Request) {
	records, err := h.Store.Compensation().ListByKey(r.Context(), chi.URLParam(r, "id"), "")
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list compensation", err)
		return
	}
	dtos := make([]CompensationDTO, 0, len(records))
	for _, rec := range records {
		dtos = append(dtos, toCompensationDTO(rec))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateCompensation(w http.ResponseWriter, r *http.Request) {
	employeeID := chi.URLParam(r, "id")
	var req CreateCompensationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	rec, err := compensationFromRequest(employeeID, req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid compensation", err)
		return
	}

	created, closed, err := h.Orch.Compensation().CreateWithClosure(r.Context(), employeeID, rec.Type, rec)
	if err != nil {
		writeDomainError(w, "Failed to create compensation", err)
		return
	}
	closedDTOs := make([]CompensationDTO, 0, len(closed))
	for _, c := range closed {
		closedDTOs = append(closedDTOs, toCompensationDTO(c))
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"created": toCompensationDTO(created),
		"closed":  closedDTOs,
	})
}

func (h *Handler) TerminateCompensation(w http.ResponseWriter, r *http.Request) {
	var req TerminateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	endOn, err := engine.ParseDate(req.EndOn)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid end_on format (use YYYY-MM-DD)", err)
		return
	}
	recordType := req.Type
	if recordType == "" {
		recordType = payroll.BaseCompensationType
	}

	closed, err := h.Orch.Compensation().Terminate(r.Context(), chi.URLParam(r, "id"), recordType, endOn)
	if err != nil {
		writeDomainError(w, "Failed to terminate compensation", err)
		return
	}
	writeJSON(w, http.StatusOK, toCompensationDTO(closed))
}

func (h *Handler) ListDeductions(w http.ResponseWriter, r *http.Request) {
	records, err := h.Store.Deductions().ListByKey(r.Context(), chi.URLParam(r, "id"), "")
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list deductions", err)
		return
	}
	dtos := make([]DeductionDTO, 0, len(records))
	for _, rec := range records {
		dtos = append(dtos, toDeductionDTO(rec))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateDeduction(w http.ResponseWriter, r *http.Request) {
	employeeID := chi.URLParam(r, "id")
	var req CreateDeductionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	rec, err := deductionFromRequest(employeeID, req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid deduction", err)
		return
	}

	created, _, err := h.Orch.Deductions().CreateWithClosure(r.Context(), employeeID, rec.Type, rec)
	if err != nil {
		writeDomainError(w, "Failed to create deduction", err)
		return
	}
	writeJSON(w, http.StatusCreated, toDeductionDTO(created))
}

// =============================================================================
// CONFIGURATION ENDPOINTS
// =============================================================================

func (h *Handler) ListComponents(w http.ResponseWriter, r *http.Request) {
	components, err := h.Store.Components().ListComponents(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list components", err)
		return
	}
	dtos := make([]ComponentDTO, 0, len(components))
	for _, c := range components {
		dtos = append(dtos, toComponentDTO(c))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) ApplyPlan(w http.ResponseWriter, r *http.Request) {
	plan, err := factory.Load(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid plan document", err)
		return
	}
	if err := factory.Apply(r.Context(), h.Store, plan); err != nil {
		writeDomainError(w, "Failed to apply plan", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"plan": plan.Name})
}

func (h *Handler) CreateRate(w http.ResponseWriter, r *http.Request) {
	var req CreateRateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	d, err := engine.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return
	}
	rate, err := engine.ParseDecimal(req.Rate)
	if err != nil || !rate.IsPositive() {
		writeError(w, http.StatusBadRequest, "Rate must be a positive decimal", err)
		return
	}

	saved, err := h.Store.Rates().SaveRate(r.Context(), engine.ExchangeRate{
		FromCurrency: req.From,
		ToCurrency:   req.To,
		Date:         d,
		Rate:         rate,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save rate", err)
		return
	}
	writeJSON(w, http.StatusCreated, ResolvedRateDTO{
		From: saved.FromCurrency, To: saved.ToCurrency,
		Date: saved.Date.String(), Rate: saved.Rate.String(),
	})
}

func (h *Handler) ResolveRate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	d, err := engine.ParseDate(q.Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return
	}
	rate, err := h.fx.Resolve(r.Context(), q.Get("from"), q.Get("to"), d)
	if err != nil {
		writeDomainError(w, "Failed to resolve rate", err)
		return
	}
	writeJSON(w, http.StatusOK, ResolvedRateDTO{
		From: q.Get("from"), To: q.Get("to"), Date: d.String(), Rate: rate.String(),
	})
}

// =============================================================================
// PERIOD ENDPOINTS
// =============================================================================

func (h *Handler) ListPeriods(w http.ResponseWriter, r *http.Request) {
	periods, err := h.Store.Periods().ListPeriods(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list periods", err)
		return
	}
	dtos := make([]PeriodDTO, 0, len(periods))
	for _, p := range periods {
		dtos = append(dtos, toPeriodDTO(p))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreatePeriod(w http.ResponseWriter, r *http.Request) {
	var req CreatePeriodRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	period, err := periodFromRequest(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period", err)
		return
	}

	saved, err := h.Store.Periods().SavePeriod(r.Context(), period)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create period", err)
		return
	}
	writeJSON(w, http.StatusCreated, toPeriodDTO(saved))
}

func (h *Handler) ListInputs(w http.ResponseWriter, r *http.Request) {
	inputs, err := h.Store.Periods().ListInputs(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list inputs", err)
		return
	}
	dtos := make([]InputDTO, 0, len(inputs))
	for _, in := range inputs {
		dtos = append(dtos, toInputDTO(in))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateInput(w http.ResponseWriter, r *http.Request) {
	periodID := chi.URLParam(r, "id")
	var req CreateInputRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	period, err := h.Store.Periods().GetPeriod(r.Context(), periodID)
	if err != nil {
		writeDomainError(w, "Unknown period", err)
		return
	}
	if period.Closed {
		writeError(w, http.StatusConflict, "Period is closed", nil)
		return
	}

	in := payroll.PeriodInput{
		PeriodID:      periodID,
		EmployeeID:    req.EmployeeID,
		ComponentCode: req.ComponentCode,
	}
	if in.Amount, err = parseMoney(req.Amount); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}
	if in.Quantity, err = parseMoney(req.Quantity); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid quantity", err)
		return
	}
	if in.Rate, err = parseMoney(req.Rate); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid rate", err)
		return
	}

	saved, err := h.Store.Periods().SaveInput(r.Context(), in)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save input", err)
		return
	}
	writeJSON(w, http.StatusCreated, toInputDTO(saved))
}

func (h *Handler) ReopenPeriod(w http.ResponseWriter, r *http.Request) {
	period, err := h.Orch.ReopenPeriod(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "Failed to reopen period", err)
		return
	}
	writeJSON(w, http.StatusOK, toPeriodDTO(period))
}

// =============================================================================
// RUN ENDPOINTS
// =============================================================================

func (h *Handler) CreateRun(w http.ResponseWriter, r *http.Request) {
	var req CreateRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	run, err := h.Orch.CreateRun(r.Context(), req.PeriodID, payroll.RunScope{PayGroup: req.PayGroup})
	if err != nil {
		writeDomainError(w, "Failed to create run", err)
		return
	}
	writeJSON(w, http.StatusCreated, toRunDTO(run))
}

func (h *Handler) GetRunSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.Orch.Summary(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "Failed to get run", err)
		return
	}
	writeJSON(w, http.StatusOK, toRunSummaryDTO(summary))
}

func (h *Handler) CalculateRun(w http.ResponseWriter, r *http.Request) {
	summary, err := h.Orch.Calculate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "Failed to calculate run", err)
		return
	}
	writeJSON(w, http.StatusOK, toRunSummaryDTO(summary))
}

func (h *Handler) RecalculateRun(w http.ResponseWriter, r *http.Request) {
	summary, err := h.Orch.Recalculate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "Failed to recalculate run", err)
		return
	}
	writeJSON(w, http.StatusOK, toRunSummaryDTO(summary))
}

func (h *Handler) ApproveRun(w http.ResponseWriter, r *http.Request) {
	var req ApproveRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	run, err := h.Orch.Approve(r.Context(), chi.URLParam(r, "id"), req.ApprovedBy)
	if err != nil {
		writeDomainError(w, "Failed to approve run", err)
		return
	}
	writeJSON(w, http.StatusOK, toRunDTO(run))
}

func (h *Handler) PostRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.Orch.Post(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "Failed to post run", err)
		return
	}
	writeJSON(w, http.StatusOK, toRunDTO(run))
}

func (h *Handler) ListResults(w http.ResponseWriter, r *http.Request) {
	results, err := h.Store.Runs().ListResults(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list results", err)
		return
	}
	dtos := make([]ResultDTO, 0, len(results))
	for _, res := range results {
		dtos = append(dtos, toResultDTO(res))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) ListLines(w http.ResponseWriter, r *http.Request) {
	lines, err := h.Store.Runs().ListLines(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list lines", err)
		return
	}
	dtos := make([]LineDTO, 0, len(lines))
	for _, line := range lines {
		dtos = append(dtos, toLineDTO(line))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// REQUEST PARSING HELPERS
// =============================================================================

func compensationFromRequest(employeeID string, req CreateCompensationRequest) (payroll.Compensation, error) {
	rec := payroll.Compensation{
		EmployeeID: employeeID,
		Type:       req.Type,
		Currency:   req.Currency,
		Basis:      payroll.PayBasis(req.Basis),
	}
	if rec.Type == "" {
		rec.Type = payroll.BaseCompensationType
	}
	if rec.Basis == "" {
		rec.Basis = payroll.BasisMonthly
	}
	var err error
	if rec.Amount, err = engine.ParseDecimal(req.Amount); err != nil {
		return payroll.Compensation{}, err
	}
	if rec.From, err = engine.ParseDate(req.From); err != nil {
		return payroll.Compensation{}, err
	}
	if req.To != "" {
		to, err := engine.ParseDate(req.To)
		if err != nil {
			return payroll.Compensation{}, err
		}
		rec.To = &to
	}
	return rec, nil
}

func deductionFromRequest(employeeID string, req CreateDeductionRequest) (payroll.Deduction, error) {
	rec := payroll.Deduction{
		EmployeeID: employeeID,
		Type:       req.Type,
		Currency:   req.Currency,
	}
	var err error
	if rec.Amount, err = parseMoney(req.Amount); err != nil {
		return payroll.Deduction{}, err
	}
	if rec.Rate, err = parseMoney(req.Rate); err != nil {
		return payroll.Deduction{}, err
	}
	if rec.From, err = engine.ParseDate(req.From); err != nil {
		return payroll.Deduction{}, err
	}
	if req.To != "" {
		to, err := engine.ParseDate(req.To)
		if err != nil {
			return payroll.Deduction{}, err
		}
		rec.To = &to
	}
	return rec, nil
}

func periodFromRequest(req CreatePeriodRequest) (payroll.PayrollPeriod, error) {
	var (
		p   payroll.PayrollPeriod
		err error
	)
	p.Code = req.Code
	if p.Start, err = engine.ParseDate(req.Start); err != nil {
		return payroll.PayrollPeriod{}, err
	}
	if p.End, err = engine.ParseDate(req.End); err != nil {
		return payroll.PayrollPeriod{}, err
	}
	if req.PaymentDate != "" {
		if p.PaymentDate, err = engine.ParseDate(req.PaymentDate); err != nil {
			return payroll.PayrollPeriod{}, err
		}
	} else {
		p.PaymentDate = p.End
	}
	if p.End.Before(p.Start) {
		return payroll.PayrollPeriod{}, engine.Violation("invalid_period", "end %s before start %s", p.End, p.Start)
	}
	return p, nil
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps engine error classes onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case engine.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case engine.IsBusinessRule(err):
		writeError(w, http.StatusConflict, message, err)
	case errors.Is(err, context.Canceled):
		writeError(w, http.StatusServiceUnavailable, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}
