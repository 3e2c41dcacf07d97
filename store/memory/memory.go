/*
Package memory is the in-memory payroll.Store used by tests and demo
scenarios. Everything lives in maps and slices behind one RWMutex; the
concurrency guarantees match the sqlite store so the orchestrator can be
exercised against either.
*/
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/warp/payroll-engine/engine"
	"github.com/warp/payroll-engine/payroll"
)

// Store holds all payroll state in process memory.
type Store struct {
	mu sync.RWMutex

	employees  map[string]payroll.Employee
	components map[string]payroll.PayComponent
	rules      map[string]payroll.PayRule
	periods    map[string]payroll.PayrollPeriod
	inputs     map[string]payroll.PeriodInput
	runs       map[string]payroll.PayrollRun

	compensation []payroll.Compensation
	deductions   []payroll.Deduction
	withholdings []payroll.TaxWithholding
	benefits     []payroll.EmployeeBenefit

	results        map[string]payroll.PayrollResult
	resultByRunEmp map[string]string // runID + "\x00" + employeeID -> result ID
	lines          map[string][]payroll.PayrollLine
	runErrors      map[string][]payroll.RunError

	rates    []engine.ExchangeRate
	brackets []engine.TaxBracket
	holidays []engine.Holiday
}

func New() *Store {
	return &Store{
		employees:      make(map[string]payroll.Employee),
		components:     make(map[string]payroll.PayComponent),
		rules:          make(map[string]payroll.PayRule),
		periods:        make(map[string]payroll.PayrollPeriod),
		inputs:         make(map[string]payroll.PeriodInput),
		runs:           make(map[string]payroll.PayrollRun),
		results:        make(map[string]payroll.PayrollResult),
		resultByRunEmp: make(map[string]string),
		lines:          make(map[string][]payroll.PayrollLine),
		runErrors:      make(map[string][]payroll.RunError),
	}
}

func (s *Store) Close() error { return nil }

// Wipe drops all state. Used when loading demo scenarios.
func (s *Store) Wipe(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.employees = make(map[string]payroll.Employee)
	s.components = make(map[string]payroll.PayComponent)
	s.rules = make(map[string]payroll.PayRule)
	s.periods = make(map[string]payroll.PayrollPeriod)
	s.inputs = make(map[string]payroll.PeriodInput)
	s.runs = make(map[string]payroll.PayrollRun)
	s.results = make(map[string]payroll.PayrollResult)
	s.resultByRunEmp = make(map[string]string)
	s.lines = make(map[string][]payroll.PayrollLine)
	s.runErrors = make(map[string][]payroll.RunError)
	s.compensation = nil
	s.deductions = nil
	s.withholdings = nil
	s.benefits = nil
	s.rates = nil
	s.brackets = nil
	s.holidays = nil
	return nil
}

// =============================================================================
// STORE ACCESSORS
// =============================================================================

func (s *Store) Employees() payroll.EmployeeStore   { return s }
func (s *Store) Components() payroll.ComponentStore { return s }
func (s *Store) Periods() payroll.PeriodStore       { return s }
func (s *Store) Runs() payroll.RunStore             { return s }
func (s *Store) Rates() engine.RateStore            { return s }
func (s *Store) Brackets() engine.BracketStore      { return s }
func (s *Store) Holidays() payroll.HolidayStore     { return s }

func (s *Store) Compensation() engine.EffectiveStore[payroll.Compensation] {
	return &effectiveSlice[payroll.Compensation]{
		mu:   &s.mu,
		recs: &s.compensation,
		key:  func(c payroll.Compensation) (string, string) { return c.EmployeeID, c.Type },
		id:   func(c payroll.Compensation) string { return c.ID },
		withID: func(c payroll.Compensation, id string) payroll.Compensation {
			c.ID = id
			return c
		},
		close: func(c payroll.Compensation, to engine.Date) payroll.Compensation {
			c.To = &to
			return c
		},
	}
}

func (s *Store) Deductions() engine.EffectiveStore[payroll.Deduction] {
	return &effectiveSlice[payroll.Deduction]{
		mu:   &s.mu,
		recs: &s.deductions,
		key:  func(d payroll.Deduction) (string, string) { return d.EmployeeID, d.Type },
		id:   func(d payroll.Deduction) string { return d.ID },
		withID: func(d payroll.Deduction, id string) payroll.Deduction {
			d.ID = id
			return d
		},
		close: func(d payroll.Deduction, to engine.Date) payroll.Deduction {
			d.To = &to
			return d
		},
	}
}

func (s *Store) Withholdings() engine.EffectiveStore[payroll.TaxWithholding] {
	return &effectiveSlice[payroll.TaxWithholding]{
		mu:   &s.mu,
		recs: &s.withholdings,
		key:  func(w payroll.TaxWithholding) (string, string) { return w.EmployeeID, w.Type },
		id:   func(w payroll.TaxWithholding) string { return w.ID },
		withID: func(w payroll.TaxWithholding, id string) payroll.TaxWithholding {
			w.ID = id
			return w
		},
		close: func(w payroll.TaxWithholding, to engine.Date) payroll.TaxWithholding {
			w.To = &to
			return w
		},
	}
}

func (s *Store) Benefits() engine.EffectiveStore[payroll.EmployeeBenefit] {
	return &effectiveSlice[payroll.EmployeeBenefit]{
		mu:   &s.mu,
		recs: &s.benefits,
		key:  func(b payroll.EmployeeBenefit) (string, string) { return b.EmployeeID, b.Type },
		id:   func(b payroll.EmployeeBenefit) string { return b.ID },
		withID: func(b payroll.EmployeeBenefit, id string) payroll.EmployeeBenefit {
			b.ID = id
			return b
		},
		close: func(b payroll.EmployeeBenefit, to engine.Date) payroll.EmployeeBenefit {
			b.To = &to
			return b
		},
	}
}

// =============================================================================
// EFFECTIVE-DATED FAMILIES
// =============================================================================

// effectiveSlice adapts one record family's slice to engine.EffectiveStore.
// The closures carry the per-type field access generics cannot express.
type effectiveSlice[T engine.Effective] struct {
	mu     *sync.RWMutex
	recs   *[]T
	key    func(T) (subjectID, recordType string)
	id     func(T) string
	withID func(T, string) T
	close  func(T, engine.Date) T
}

func (s *effectiveSlice[T]) ListByKey(_ context.Context, subjectID, recordType string) ([]T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []T
	for _, rec := range *s.recs {
		subject, kind := s.key(rec)
		if subject != subjectID {
			continue
		}
		if recordType != "" && kind != recordType {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *effectiveSlice[T]) Insert(_ context.Context, rec T) (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.id(rec) == "" {
		rec = s.withID(rec, uuid.NewString())
	}
	*s.recs = append(*s.recs, rec)
	return rec, nil
}

func (s *effectiveSlice[T]) SetEffectiveTo(_ context.Context, rec T, to engine.Date) (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range *s.recs {
		if s.id(existing) == s.id(rec) {
			updated := s.close(existing, to)
			(*s.recs)[i] = updated
			return updated, nil
		}
	}
	var zero T
	return zero, &engine.NotFoundError{Kind: "effective_record", Key: s.id(rec)}
}

// =============================================================================
// EMPLOYEES
// =============================================================================

func (s *Store) GetEmployee(_ context.Context, id string) (payroll.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	emp, ok := s.employees[id]
	if !ok {
		return payroll.Employee{}, &engine.NotFoundError{Kind: "employee", Key: id}
	}
	return emp, nil
}

func (s *Store) ListEmployees(_ context.Context, scope payroll.RunScope) ([]payroll.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []payroll.Employee
	for _, emp := range s.employees {
		if !emp.Active {
			continue
		}
		if scope.PayGroup != "" && emp.PayGroup != scope.PayGroup {
			continue
		}
		out = append(out, emp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) SaveEmployee(_ context.Context, emp payroll.Employee) (payroll.Employee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if emp.ID == "" {
		emp.ID = uuid.NewString()
	}
	s.employees[emp.ID] = emp
	return emp, nil
}

// =============================================================================
// COMPONENTS AND RULES
// =============================================================================

func (s *Store) ListComponents(_ context.Context) ([]payroll.PayComponent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]payroll.PayComponent, 0, len(s.components))
	for _, c := range s.components {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (s *Store) SaveComponent(_ context.Context, c payroll.PayComponent) (payroll.PayComponent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.components[c.Code] = c
	return c, nil
}

func (s *Store) ListRules(_ context.Context) ([]payroll.PayRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]payroll.PayRule, 0, len(s.rules))
	for _, r := range s.rules {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) SaveRule(_ context.Context, r payroll.PayRule) (payroll.PayRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	s.rules[r.ID] = r
	return r, nil
}

// =============================================================================
// PERIODS AND INPUTS
// =============================================================================

func (s *Store) GetPeriod(_ context.Context, id string) (payroll.PayrollPeriod, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.periods[id]
	if !ok {
		return payroll.PayrollPeriod{}, &engine.NotFoundError{Kind: "period", Key: id}
	}
	return p, nil
}

func (s *Store) GetPeriodByCode(_ context.Context, code string) (payroll.PayrollPeriod, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.periods {
		if p.Code == code {
			return p, nil
		}
	}
	return payroll.PayrollPeriod{}, &engine.NotFoundError{Kind: "period", Key: code}
}

func (s *Store) ListPeriods(_ context.Context) ([]payroll.PayrollPeriod, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]payroll.PayrollPeriod, 0, len(s.periods))
	for _, p := range s.periods {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func (s *Store) SavePeriod(_ context.Context, p payroll.PayrollPeriod) (payroll.PayrollPeriod, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	s.periods[p.ID] = p
	return p, nil
}

func (s *Store) ListInputs(_ context.Context, periodID string) ([]payroll.PeriodInput, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []payroll.PeriodInput
	for _, in := range s.inputs {
		if in.PeriodID == periodID {
			out = append(out, in)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) SaveInput(_ context.Context, in payroll.PeriodInput) (payroll.PeriodInput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if in.ID == "" {
		in.ID = uuid.NewString()
	}
	s.inputs[in.ID] = in
	return in, nil
}

// =============================================================================
// RUNS, RESULTS, LINES
// =============================================================================

func (s *Store) GetRun(_ context.Context, id string) (payroll.PayrollRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	if !ok {
		return payroll.PayrollRun{}, &engine.NotFoundError{Kind: "payroll_run", Key: id}
	}
	return run, nil
}

func (s *Store) ListRuns(_ context.Context, periodID string) ([]payroll.PayrollRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []payroll.PayrollRun
	for _, run := range s.runs {
		if run.PeriodID == periodID {
			out = append(out, run)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) SaveRun(_ context.Context, run payroll.PayrollRun) (payroll.PayrollRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	s.runs[run.ID] = run
	return run, nil
}

func resultKey(runID, employeeID string) string { return runID + "\x00" + employeeID }

func (s *Store) ReplaceResult(_ context.Context, result payroll.PayrollResult, lines []payroll.PayrollLine) (payroll.PayrollResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := resultKey(result.RunID, result.EmployeeID)
	if existingID, ok := s.resultByRunEmp[key]; ok {
		result.ID = existingID
	} else if result.ID == "" {
		result.ID = uuid.NewString()
	}
	s.resultByRunEmp[key] = result.ID
	s.results[result.ID] = result

	replaced := make([]payroll.PayrollLine, len(lines))
	for i, line := range lines {
		if line.ID == "" {
			line.ID = uuid.NewString()
		}
		line.ResultID = result.ID
		replaced[i] = line
	}
	s.lines[result.ID] = replaced
	return result, nil
}

func (s *Store) DeleteResult(_ context.Context, runID, employeeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := resultKey(runID, employeeID)
	id, ok := s.resultByRunEmp[key]
	if !ok {
		return nil
	}
	delete(s.resultByRunEmp, key)
	delete(s.results, id)
	delete(s.lines, id)
	return nil
}

func (s *Store) ListResults(_ context.Context, runID string) ([]payroll.PayrollResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []payroll.PayrollResult
	for _, res := range s.results {
		if res.RunID == runID {
			out = append(out, res)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EmployeeID < out[j].EmployeeID })
	return out, nil
}

func (s *Store) ListLines(_ context.Context, resultID string) ([]payroll.PayrollLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lines := s.lines[resultID]
	out := make([]payroll.PayrollLine, len(lines))
	copy(out, lines)
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out, nil
}

func (s *Store) ReplaceRunErrors(_ context.Context, runID string, errs []payroll.RunError) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := make([]payroll.RunError, len(errs))
	copy(copied, errs)
	s.runErrors[runID] = copied
	return nil
}

func (s *Store) ListRunErrors(_ context.Context, runID string) ([]payroll.RunError, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	errs := s.runErrors[runID]
	out := make([]payroll.RunError, len(errs))
	copy(out, errs)
	return out, nil
}

// =============================================================================
// EXCHANGE RATES
// =============================================================================

func (s *Store) FindRate(_ context.Context, from, to string, d engine.Date) (engine.ExchangeRate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.rates {
		if r.FromCurrency == from && r.ToCurrency == to && r.Date.Equal(d) {
			return r, nil
		}
	}
	return engine.ExchangeRate{}, &engine.NotFoundError{Kind: "exchange_rate", Key: from + "->" + to + "@" + d.String()}
}

func (s *Store) LatestRate(_ context.Context, from, to string, onOrBefore engine.Date) (engine.ExchangeRate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var best *engine.ExchangeRate
	for i := range s.rates {
		r := s.rates[i]
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

func (s *Store) SaveRate(_ context.Context, r engine.ExchangeRate) (engine.ExchangeRate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	s.rates = append(s.rates, r)
	return r, nil
}

// =============================================================================
// TAX BRACKETS
// =============================================================================

func (s *Store) ListBrackets(_ context.Context, country, taxCode string, validOn engine.Date) ([]engine.TaxBracket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []engine.TaxBracket
	for _, b := range s.brackets {
		if !strings.EqualFold(b.Country, country) || b.TaxCode != taxCode {
			continue
		}
		if b.ValidFrom.After(validOn) {
			continue
		}
		if b.ValidTo != nil && b.ValidTo.Before(validOn) {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func (s *Store) SaveBracket(_ context.Context, b engine.TaxBracket) (engine.TaxBracket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	s.brackets = append(s.brackets, b)
	return b, nil
}

// =============================================================================
// HOLIDAYS
// =============================================================================

func (s *Store) IsHoliday(companyID string, d engine.Date) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, h := range s.holidays {
		if h.CompanyID != "" && companyID != "" && h.CompanyID != companyID {
			continue
		}
		if h.Recurring {
			if h.Date.Month() == d.Month() && h.Date.Day() == d.Day() {
				return true
			}
			continue
		}
		if h.Date.Equal(d) {
			return true
		}
	}
	return false
}

func (s *Store) SaveHoliday(_ context.Context, h engine.Holiday) (engine.Holiday, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	s.holidays = append(s.holidays, h)
	return h, nil
}

func (s *Store) ListHolidays(_ context.Context, companyID string) ([]engine.Holiday, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []engine.Holiday
	for _, h := range s.holidays {
		if companyID == "" || h.CompanyID == "" || h.CompanyID == companyID {
			out = append(out, h)
		}
	}
	return out, nil
}
