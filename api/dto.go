/*
dto.go - Data transfer objects for API requests and responses

PURPOSE:
  JSON structures decoupling the domain model from the API contract.
  Money travels as strings to keep decimal precision out of float JSON;
  dates travel as "YYYY-MM-DD".

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Handlers validate; DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/plan.go: The plan document POSTed to /api/plans
*/
package api

import (
	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/engine"
	"github.com/warp/payroll-engine/payroll"
)

// =============================================================================
// EMPLOYEES
// =============================================================================

type EmployeeDTO struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	HireDate string `json:"hire_date"`
	PayGroup string `json:"pay_group,omitempty"`
	Country  string `json:"country"`
	Currency string `json:"currency"`
	Active   bool   `json:"active"`
}

type CreateEmployeeRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	HireDate string `json:"hire_date"`
	PayGroup string `json:"pay_group"`
	Country  string `json:"country"`
	Currency string `json:"currency"`
}

func toEmployeeDTO(emp payroll.Employee) EmployeeDTO {
	return EmployeeDTO{
		ID:       emp.ID,
		Name:     emp.Name,
		Email:    emp.Email,
		HireDate: emp.HireDate.String(),
		PayGroup: emp.PayGroup,
		Country:  emp.Country,
		Currency: emp.Currency,
		Active:   emp.Active,
	}
}

// =============================================================================
// EFFECTIVE-DATED RECORDS
// =============================================================================

type CompensationDTO struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
	Basis    string `json:"basis"`
	From     string `json:"from"`
	To       string `json:"to,omitempty"`
}

type CreateCompensationRequest struct {
	Type     string `json:"type"`
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
	Basis    string `json:"basis"`
	From     string `json:"from"`
	To       string `json:"to"`
}

type TerminateRequest struct {
	Type  string `json:"type"`
	EndOn string `json:"end_on"`
}

type DeductionDTO struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Amount   string `json:"amount"`
	Rate     string `json:"rate"`
	Currency string `json:"currency"`
	From     string `json:"from"`
	To       string `json:"to,omitempty"`
}

type CreateDeductionRequest struct {
	Type     string `json:"type"`
	Amount   string `json:"amount"`
	Rate     string `json:"rate"`
	Currency string `json:"currency"`
	From     string `json:"from"`
	To       string `json:"to"`
}

func toCompensationDTO(c payroll.Compensation) CompensationDTO {
	dto := CompensationDTO{
		ID:       c.ID,
		Type:     c.Type,
		Amount:   c.Amount.StringFixed(engine.MoneyScale),
		Currency: c.Currency,
		Basis:    string(c.Basis),
		From:     c.From.String(),
	}
	if c.To != nil {
		dto.To = c.To.String()
	}
	return dto
}

func toDeductionDTO(d payroll.Deduction) DeductionDTO {
	dto := DeductionDTO{
		ID:       d.ID,
		Type:     d.Type,
		Amount:   d.Amount.StringFixed(engine.MoneyScale),
		Rate:     d.Rate.String(),
		Currency: d.Currency,
		From:     d.From.String(),
	}
	if d.To != nil {
		dto.To = d.To.String()
	}
	return dto
}

// =============================================================================
// PERIODS AND INPUTS
// =============================================================================

type PeriodDTO struct {
	ID          string `json:"id"`
	Code        string `json:"code"`
	Start       string `json:"start"`
	End         string `json:"end"`
	PaymentDate string `json:"payment_date"`
	Closed      bool   `json:"closed"`
}

type CreatePeriodRequest struct {
	Code        string `json:"code"`
	Start       string `json:"start"`
	End         string `json:"end"`
	PaymentDate string `json:"payment_date"`
}

type InputDTO struct {
	ID            string `json:"id"`
	EmployeeID    string `json:"employee_id"`
	ComponentCode string `json:"component"`
	Amount        string `json:"amount"`
	Quantity      string `json:"quantity"`
	Rate          string `json:"rate"`
}

type CreateInputRequest struct {
	EmployeeID    string `json:"employee_id"`
	ComponentCode string `json:"component"`
	Amount        string `json:"amount"`
	Quantity      string `json:"quantity"`
	Rate          string `json:"rate"`
}

func toPeriodDTO(p payroll.PayrollPeriod) PeriodDTO {
	return PeriodDTO{
		ID:          p.ID,
		Code:        p.Code,
		Start:       p.Start.String(),
		End:         p.End.String(),
		PaymentDate: p.PaymentDate.String(),
		Closed:      p.Closed,
	}
}

func toInputDTO(in payroll.PeriodInput) InputDTO {
	return InputDTO{
		ID:            in.ID,
		EmployeeID:    in.EmployeeID,
		ComponentCode: in.ComponentCode,
		Amount:        in.Amount.String(),
		Quantity:      in.Quantity.String(),
		Rate:          in.Rate.String(),
	}
}

// =============================================================================
// RUNS AND RESULTS
// =============================================================================

type RunDTO struct {
	ID         string `json:"id"`
	PeriodID   string `json:"period_id"`
	PayGroup   string `json:"pay_group,omitempty"`
	Status     string `json:"status"`
	Hash       string `json:"hash,omitempty"`
	ApprovedBy string `json:"approved_by,omitempty"`
	ApprovedAt string `json:"approved_at,omitempty"`
}

type CreateRunRequest struct {
	PeriodID string `json:"period_id"`
	PayGroup string `json:"pay_group"`
}

type ApproveRunRequest struct {
	ApprovedBy string `json:"approved_by"`
}

type RunErrorDTO struct {
	EmployeeID string `json:"employee_id"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	Severity   string `json:"severity"`
}

type RunSummaryDTO struct {
	Run               RunDTO        `json:"run"`
	EmployeeCount     int           `json:"employee_count"`
	SucceededCount    int           `json:"succeeded_count"`
	FailedCount       int           `json:"failed_count"`
	TotalGross        string        `json:"total_gross"`
	TotalNet          string        `json:"total_net"`
	TotalEmployerCost string        `json:"total_employer_cost"`
	Errors            []RunErrorDTO `json:"errors"`
}

type ResultDTO struct {
	ID              string `json:"id"`
	EmployeeID      string `json:"employee_id"`
	Gross           string `json:"gross"`
	TotalDeductions string `json:"total_deductions"`
	Net             string `json:"net"`
	EmployerCost    string `json:"employer_cost"`
	Currency        string `json:"currency"`
}

type LineDTO struct {
	ComponentCode string `json:"component"`
	Kind          string `json:"kind"`
	Quantity      string `json:"quantity,omitempty"`
	Rate          string `json:"rate,omitempty"`
	Amount        string `json:"amount"`
	Sequence      int    `json:"sequence"`
}

func toRunDTO(run payroll.PayrollRun) RunDTO {
	dto := RunDTO{
		ID:         run.ID,
		PeriodID:   run.PeriodID,
		PayGroup:   run.Scope.PayGroup,
		Status:     string(run.Status),
		Hash:       run.Hash,
		ApprovedBy: run.ApprovedBy,
	}
	if run.ApprovedAt != nil {
		dto.ApprovedAt = run.ApprovedAt.String()
	}
	return dto
}

func toRunSummaryDTO(s payroll.RunSummary) RunSummaryDTO {
	dto := RunSummaryDTO{
		Run:               toRunDTO(s.Run),
		EmployeeCount:     s.EmployeeCount,
		SucceededCount:    s.SucceededCount,
		FailedCount:       s.FailedCount,
		TotalGross:        s.TotalGross.StringFixed(engine.MoneyScale),
		TotalNet:          s.TotalNet.StringFixed(engine.MoneyScale),
		TotalEmployerCost: s.TotalEmployerCost.StringFixed(engine.MoneyScale),
		Errors:            []RunErrorDTO{},
	}
	for _, e := range s.Errors {
		dto.Errors = append(dto.Errors, RunErrorDTO(e))
	}
	return dto
}

func toResultDTO(res payroll.PayrollResult) ResultDTO {
	return ResultDTO{
		ID:              res.ID,
		EmployeeID:      res.EmployeeID,
		Gross:           res.Gross.StringFixed(engine.MoneyScale),
		TotalDeductions: res.TotalDeductions.StringFixed(engine.MoneyScale),
		Net:             res.Net.StringFixed(engine.MoneyScale),
		EmployerCost:    res.EmployerCost.StringFixed(engine.MoneyScale),
		Currency:        res.Currency,
	}
}

func toLineDTO(line payroll.PayrollLine) LineDTO {
	dto := LineDTO{
		ComponentCode: line.ComponentCode,
		Kind:          string(line.Kind),
		Amount:        line.Amount.StringFixed(engine.MoneyScale),
		Sequence:      line.Sequence,
	}
	if !line.Quantity.IsZero() {
		dto.Quantity = line.Quantity.String()
		dto.Rate = line.Rate.String()
	}
	return dto
}

// =============================================================================
// COMPONENTS, RATES, MISC
// =============================================================================

type ComponentDTO struct {
	Code      string `json:"code"`
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	CalcPhase int    `json:"calc_phase"`
	Taxable   bool   `json:"taxable"`
	Social    bool   `json:"social"`
	BasePay   bool   `json:"base_pay"`
}

func toComponentDTO(c payroll.PayComponent) ComponentDTO {
	return ComponentDTO{
		Code:      c.Code,
		Name:      c.Name,
		Kind:      string(c.Kind),
		CalcPhase: c.CalcPhase,
		Taxable:   c.Taxable,
		Social:    c.Social,
		BasePay:   c.BasePay,
	}
}

type CreateRateRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
	Date string `json:"date"`
	Rate string `json:"rate"`
}

type ResolvedRateDTO struct {
	From string `json:"from"`
	To   string `json:"to"`
	Date string `json:"date"`
	Rate string `json:"rate"`
}

type ScenarioDTO struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type LoadScenarioRequest struct {
	Name string `json:"name"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// parseMoney parses an optional money string; empty means zero.
func parseMoney(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return engine.ParseDecimal(s)
}
