/*
Package sqlite is the persistent payroll.Store, backed by mattn/go-sqlite3.

PURPOSE:
  One SQLite file holds the whole payroll universe: employees, the
  effective-dated record families, the component catalog, periods and
  inputs, runs with results/lines/errors, exchange rates, tax brackets
  and holidays.

CONVENTIONS:
  - WAL journal mode, busy timeout, foreign keys on
  - Schema is created on open; ALTERs are additive only
  - Money and rates are stored as TEXT and parsed with shopspring/decimal,
    never as floats
  - Dates are TEXT in ISO form (lexicographic order == chronological)
  - An open-ended effective_to is stored as NULL
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/engine"
	"github.com/warp/payroll-engine/payroll"
)

// Store implements payroll.Store on a SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the database at path and migrates
// the schema. Use ":memory:" for an ephemeral database.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single writer connection sidesteps SQLITE_BUSY under the
	// calculation workers; reads still interleave through WAL.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Wipe deletes every row from every table. Used when loading demo scenarios.
func (s *Store) Wipe(ctx context.Context) error {
	tables := []string{
		"result_lines", "results", "run_errors", "runs",
		"period_inputs", "periods",
		"pay_rules", "pay_components",
		"compensation", "deductions", "withholdings", "benefits",
		"employees", "exchange_rates", "tax_brackets", "holidays",
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, table := range tables {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("wipe %s: %w", table, err)
		}
	}
	return tx.Commit()
}

func (s *Store) migrate() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS employees (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			email TEXT NOT NULL DEFAULT '',
			hire_date TEXT NOT NULL,
			pay_group TEXT NOT NULL DEFAULT '',
			country TEXT NOT NULL DEFAULT '',
			currency TEXT NOT NULL DEFAULT '',
			active INTEGER NOT NULL DEFAULT 1
		)`,
		`CREATE TABLE IF NOT EXISTS compensation (
			id TEXT PRIMARY KEY,
			employee_id TEXT NOT NULL,
			record_type TEXT NOT NULL,
			amount TEXT NOT NULL,
			currency TEXT NOT NULL DEFAULT '',
			basis TEXT NOT NULL DEFAULT 'monthly',
			effective_from TEXT NOT NULL,
			effective_to TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_compensation_key ON compensation(employee_id, record_type)`,
		`CREATE TABLE IF NOT EXISTS deductions (
			id TEXT PRIMARY KEY,
			employee_id TEXT NOT NULL,
			record_type TEXT NOT NULL,
			amount TEXT NOT NULL,
			rate TEXT NOT NULL DEFAULT '0',
			currency TEXT NOT NULL DEFAULT '',
			effective_from TEXT NOT NULL,
			effective_to TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_deductions_key ON deductions(employee_id, record_type)`,
		`CREATE TABLE IF NOT EXISTS withholdings (
			id TEXT PRIMARY KEY,
			employee_id TEXT NOT NULL,
			record_type TEXT NOT NULL,
			country TEXT NOT NULL DEFAULT '',
			extra TEXT NOT NULL DEFAULT '0',
			effective_from TEXT NOT NULL,
			effective_to TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_withholdings_key ON withholdings(employee_id, record_type)`,
		`CREATE TABLE IF NOT EXISTS benefits (
			id TEXT PRIMARY KEY,
			employee_id TEXT NOT NULL,
			record_type TEXT NOT NULL,
			employee_contrib TEXT NOT NULL DEFAULT '0',
			employer_contrib TEXT NOT NULL DEFAULT '0',
			currency TEXT NOT NULL DEFAULT '',
			effective_from TEXT NOT NULL,
			effective_to TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_benefits_key ON benefits(employee_id, record_type)`,
		`CREATE TABLE IF NOT EXISTS pay_components (
			code TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			kind TEXT NOT NULL,
			calc_phase INTEGER NOT NULL DEFAULT 1,
			taxable INTEGER NOT NULL DEFAULT 0,
			social INTEGER NOT NULL DEFAULT 0,
			base_pay INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS pay_rules (
			id TEXT PRIMARY KEY,
			component_code TEXT NOT NULL,
			formula TEXT NOT NULL,
			priority INTEGER NOT NULL DEFAULT 0,
			active INTEGER NOT NULL DEFAULT 1,
			effective_from TEXT NOT NULL,
			effective_to TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_pay_rules_component ON pay_rules(component_code)`,
		`CREATE TABLE IF NOT EXISTS periods (
			id TEXT PRIMARY KEY,
			code TEXT NOT NULL UNIQUE,
			start_date TEXT NOT NULL,
			end_date TEXT NOT NULL,
			payment_date TEXT NOT NULL,
			closed INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS period_inputs (
			id TEXT PRIMARY KEY,
			period_id TEXT NOT NULL,
			employee_id TEXT NOT NULL,
			component_code TEXT NOT NULL,
			amount TEXT NOT NULL DEFAULT '0',
			quantity TEXT NOT NULL DEFAULT '0',
			rate TEXT NOT NULL DEFAULT '0'
		)`,
		`CREATE INDEX IF NOT EXISTS idx_period_inputs_period ON period_inputs(period_id)`,
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			period_id TEXT NOT NULL,
			pay_group TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			hash TEXT NOT NULL DEFAULT '',
			approved_by TEXT NOT NULL DEFAULT '',
			approved_at TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_period ON runs(period_id)`,
		`CREATE TABLE IF NOT EXISTS run_errors (
			run_id TEXT NOT NULL,
			employee_id TEXT NOT NULL,
			code TEXT NOT NULL,
			message TEXT NOT NULL DEFAULT '',
			severity TEXT NOT NULL DEFAULT 'error'
		)`,
		`CREATE INDEX IF NOT EXISTS idx_run_errors_run ON run_errors(run_id)`,
		`CREATE TABLE IF NOT EXISTS results (
			id TEXT PRIMARY KEY,
			run_id TEXT NOT NULL,
			employee_id TEXT NOT NULL,
			gross TEXT NOT NULL DEFAULT '0',
			total_deductions TEXT NOT NULL DEFAULT '0',
			net TEXT NOT NULL DEFAULT '0',
			employer_cost TEXT NOT NULL DEFAULT '0',
			currency TEXT NOT NULL DEFAULT '',
			UNIQUE(run_id, employee_id)
		)`,
		`CREATE TABLE IF NOT EXISTS result_lines (
			id TEXT PRIMARY KEY,
			result_id TEXT NOT NULL,
			component_code TEXT NOT NULL,
			kind TEXT NOT NULL,
			quantity TEXT NOT NULL DEFAULT '0',
			rate TEXT NOT NULL DEFAULT '0',
			amount TEXT NOT NULL DEFAULT '0',
			sequence INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_result_lines_result ON result_lines(result_id)`,
		`CREATE TABLE IF NOT EXISTS exchange_rates (
			id TEXT PRIMARY KEY,
			from_currency TEXT NOT NULL,
			to_currency TEXT NOT NULL,
			rate_date TEXT NOT NULL,
			rate TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_exchange_rates_pair ON exchange_rates(from_currency, to_currency, rate_date)`,
		`CREATE TABLE IF NOT EXISTS tax_brackets (
			id TEXT PRIMARY KEY,
			country TEXT NOT NULL,
			tax_code TEXT NOT NULL,
			lower_bound TEXT NOT NULL,
			upper_bound TEXT,
			rate TEXT NOT NULL,
			fixed_part TEXT NOT NULL DEFAULT '0',
			valid_from TEXT NOT NULL,
			valid_to TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tax_brackets_key ON tax_brackets(country, tax_code)`,
		`CREATE TABLE IF NOT EXISTS holidays (
			id TEXT PRIMARY KEY,
			company_id TEXT NOT NULL DEFAULT '',
			holiday_date TEXT NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			recurring INTEGER NOT NULL DEFAULT 0
		)`,
	}
	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// =============================================================================
// SCAN HELPERS
// =============================================================================

func parseDec(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

func parseDate(s string) (engine.Date, error) { return engine.ParseDate(s) }

func dateArg(d engine.Date) string { return d.String() }

func nullDateArg(d *engine.Date) any {
	if d == nil {
		return nil
	}
	return d.String()
}

func scanNullDate(s sql.NullString) (*engine.Date, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	d, err := engine.ParseDate(s.String)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func ensureID(id string) string {
	if id == "" {
		return uuid.NewString()
	}
	return id
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
	return &compensationTable{db: s.db}
}

func (s *Store) Deductions() engine.EffectiveStore[payroll.Deduction] {
	return &deductionTable{db: s.db}
}

func (s *Store) Withholdings() engine.EffectiveStore[payroll.TaxWithholding] {
	return &withholdingTable{db: s.db}
}

func (s *Store) Benefits() engine.EffectiveStore[payroll.EmployeeBenefit] {
	return &benefitTable{db: s.db}
}

// keyClause builds the WHERE fragment for an effective family lookup;
// an empty recordType matches all types for the subject.
func keyClause(subjectID, recordType string) (string, []any) {
	if recordType == "" {
		return "employee_id = ?", []any{subjectID}
	}
	return "employee_id = ? AND record_type = ?", []any{subjectID, recordType}
}

// =============================================================================
// EFFECTIVE FAMILY: COMPENSATION
// =============================================================================

type compensationTable struct{ db *sql.DB }

func (t *compensationTable) ListByKey(ctx context.Context, subjectID, recordType string) ([]payroll.Compensation, error) {
	where, args := keyClause(subjectID, recordType)
	rows, err := t.db.QueryContext(ctx,
		`SELECT id, employee_id, record_type, amount, currency, basis, effective_from, effective_to
		 FROM compensation WHERE `+where, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []payroll.Compensation
	for rows.Next() {
		var (
			rec          payroll.Compensation
			amount, from string
			basis        string
			to           sql.NullString
		)
		if err := rows.Scan(&rec.ID, &rec.EmployeeID, &rec.Type, &amount, &rec.Currency, &basis, &from, &to); err != nil {
			return nil, err
		}
		if rec.Amount, err = parseDec(amount); err != nil {
			return nil, err
		}
		rec.Basis = payroll.PayBasis(basis)
		if rec.From, err = parseDate(from); err != nil {
			return nil, err
		}
		if rec.To, err = scanNullDate(to); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (t *compensationTable) Insert(ctx context.Context, rec payroll.Compensation) (payroll.Compensation, error) {
	rec.ID = ensureID(rec.ID)
	_, err := t.db.ExecContext(ctx,
		`INSERT INTO compensation (id, employee_id, record_type, amount, currency, basis, effective_from, effective_to)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.EmployeeID, rec.Type, rec.Amount.String(), rec.Currency, string(rec.Basis),
		dateArg(rec.From), nullDateArg(rec.To))
	return rec, err
}

func (t *compensationTable) SetEffectiveTo(ctx context.Context, rec payroll.Compensation, to engine.Date) (payroll.Compensation, error) {
	if err := closeRecord(ctx, t.db, "compensation", rec.ID, to); err != nil {
		return payroll.Compensation{}, err
	}
	rec.To = &to
	return rec, nil
}

// =============================================================================
// EFFECTIVE FAMILY: DEDUCTIONS
// =============================================================================

type deductionTable struct{ db *sql.DB }

func (t *deductionTable) ListByKey(ctx context.Context, subjectID, recordType string) ([]payroll.Deduction, error) {
	where, args := keyClause(subjectID, recordType)
	rows, err := t.db.QueryContext(ctx,
		`SELECT id, employee_id, record_type, amount, rate, currency, effective_from, effective_to
		 FROM deductions WHERE `+where, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []payroll.Deduction
	for rows.Next() {
		var (
			rec                payroll.Deduction
			amount, rate, from string
			to                 sql.NullString
		)
		if err := rows.Scan(&rec.ID, &rec.EmployeeID, &rec.Type, &amount, &rate, &rec.Currency, &from, &to); err != nil {
			return nil, err
		}
		if rec.Amount, err = parseDec(amount); err != nil {
			return nil, err
		}
		if rec.Rate, err = parseDec(rate); err != nil {
			return nil, err
		}
		if rec.From, err = parseDate(from); err != nil {
			return nil, err
		}
		if rec.To, err = scanNullDate(to); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (t *deductionTable) Insert(ctx context.Context, rec payroll.Deduction) (payroll.Deduction, error) {
	rec.ID = ensureID(rec.ID)
	_, err := t.db.ExecContext(ctx,
		`INSERT INTO deductions (id, employee_id, record_type, amount, rate, currency, effective_from, effective_to)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.EmployeeID, rec.Type, rec.Amount.String(), rec.Rate.String(), rec.Currency,
		dateArg(rec.From), nullDateArg(rec.To))
	return rec, err
}

func (t *deductionTable) SetEffectiveTo(ctx context.Context, rec payroll.Deduction, to engine.Date) (payroll.Deduction, error) {
	if err := closeRecord(ctx, t.db, "deductions", rec.ID, to); err != nil {
		return payroll.Deduction{}, err
	}
	rec.To = &to
	return rec, nil
}

// =============================================================================
// EFFECTIVE FAMILY: WITHHOLDINGS
// =============================================================================

type withholdingTable struct{ db *sql.DB }

func (t *withholdingTable) ListByKey(ctx context.Context, subjectID, recordType string) ([]payroll.TaxWithholding, error) {
	where, args := keyClause(subjectID, recordType)
	rows, err := t.db.QueryContext(ctx,
		`SELECT id, employee_id, record_type, country, extra, effective_from, effective_to
		 FROM withholdings WHERE `+where, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []payroll.TaxWithholding
	for rows.Next() {
		var (
			rec         payroll.TaxWithholding
			extra, from string
			to          sql.NullString
		)
		if err := rows.Scan(&rec.ID, &rec.EmployeeID, &rec.Type, &rec.Country, &extra, &from, &to); err != nil {
			return nil, err
		}
		if rec.Extra, err = parseDec(extra); err != nil {
			return nil, err
		}
		if rec.From, err = parseDate(from); err != nil {
			return nil, err
		}
		if rec.To, err = scanNullDate(to); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (t *withholdingTable) Insert(ctx context.Context, rec payroll.TaxWithholding) (payroll.TaxWithholding, error) {
	rec.ID = ensureID(rec.ID)
	_, err := t.db.ExecContext(ctx,
		`INSERT INTO withholdings (id, employee_id, record_type, country, extra, effective_from, effective_to)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.EmployeeID, rec.Type, rec.Country, rec.Extra.String(),
		dateArg(rec.From), nullDateArg(rec.To))
	return rec, err
}

func (t *withholdingTable) SetEffectiveTo(ctx context.Context, rec payroll.TaxWithholding, to engine.Date) (payroll.TaxWithholding, error) {
	if err := closeRecord(ctx, t.db, "withholdings", rec.ID, to); err != nil {
		return payroll.TaxWithholding{}, err
	}
	rec.To = &to
	return rec, nil
}

// =============================================================================
// EFFECTIVE FAMILY: BENEFITS
// =============================================================================

type benefitTable struct{ db *sql.DB }

func (t *benefitTable) ListByKey(ctx context.Context, subjectID, recordType string) ([]payroll.EmployeeBenefit, error) {
	where, args := keyClause(subjectID, recordType)
	rows, err := t.db.QueryContext(ctx,
		`SELECT id, employee_id, record_type, employee_contrib, employer_contrib, currency, effective_from, effective_to
		 FROM benefits WHERE `+where, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []payroll.EmployeeBenefit
	for rows.Next() {
		var (
			rec                         payroll.EmployeeBenefit
			empContrib, erContrib, from string
			to                          sql.NullString
		)
		if err := rows.Scan(&rec.ID, &rec.EmployeeID, &rec.Type, &empContrib, &erContrib, &rec.Currency, &from, &to); err != nil {
			return nil, err
		}
		if rec.EmployeeContrib, err = parseDec(empContrib); err != nil {
			return nil, err
		}
		if rec.EmployerContrib, err = parseDec(erContrib); err != nil {
			return nil, err
		}
		if rec.From, err = parseDate(from); err != nil {
			return nil, err
		}
		if rec.To, err = scanNullDate(to); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (t *benefitTable) Insert(ctx context.Context, rec payroll.EmployeeBenefit) (payroll.EmployeeBenefit, error) {
	rec.ID = ensureID(rec.ID)
	_, err := t.db.ExecContext(ctx,
		`INSERT INTO benefits (id, employee_id, record_type, employee_contrib, employer_contrib, currency, effective_from, effective_to)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.EmployeeID, rec.Type, rec.EmployeeContrib.String(), rec.EmployerContrib.String(),
		rec.Currency, dateArg(rec.From), nullDateArg(rec.To))
	return rec, err
}

func (t *benefitTable) SetEffectiveTo(ctx context.Context, rec payroll.EmployeeBenefit, to engine.Date) (payroll.EmployeeBenefit, error) {
	if err := closeRecord(ctx, t.db, "benefits", rec.ID, to); err != nil {
		return payroll.EmployeeBenefit{}, err
	}
	rec.To = &to
	return rec, nil
}

func closeRecord(ctx context.Context, db *sql.DB, table, id string, to engine.Date) error {
	res, err := db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE %s SET effective_to = ? WHERE id = ?`, table), dateArg(to), id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return &engine.NotFoundError{Kind: "effective_record", Key: id}
	}
	return nil
}

// =============================================================================
// EMPLOYEES
// =============================================================================

func (s *Store) GetEmployee(ctx context.Context, id string) (payroll.Employee, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, email, hire_date, pay_group, country, currency, active
		 FROM employees WHERE id = ?`, id)
	return scanEmployee(row)
}

func (s *Store) ListEmployees(ctx context.Context, scope payroll.RunScope) ([]payroll.Employee, error) {
	query := `SELECT id, name, email, hire_date, pay_group, country, currency, active
	          FROM employees WHERE active = 1`
	args := []any{}
	if scope.PayGroup != "" {
		query += ` AND pay_group = ?`
		args = append(args, scope.PayGroup)
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []payroll.Employee
	for rows.Next() {
		emp, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, emp)
	}
	return out, rows.Err()
}

func (s *Store) SaveEmployee(ctx context.Context, emp payroll.Employee) (payroll.Employee, error) {
	emp.ID = ensureID(emp.ID)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO employees (id, name, email, hire_date, pay_group, country, currency, active)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   name = excluded.name, email = excluded.email, hire_date = excluded.hire_date,
		   pay_group = excluded.pay_group, country = excluded.country,
		   currency = excluded.currency, active = excluded.active`,
		emp.ID, emp.Name, emp.Email, dateArg(emp.HireDate), emp.PayGroup, emp.Country, emp.Currency, emp.Active)
	return emp, err
}

type rowScanner interface{ Scan(dest ...any) error }

func scanEmployee(row rowScanner) (payroll.Employee, error) {
	var (
		emp      payroll.Employee
		hireDate string
	)
	err := row.Scan(&emp.ID, &emp.Name, &emp.Email, &hireDate, &emp.PayGroup, &emp.Country, &emp.Currency, &emp.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return payroll.Employee{}, &engine.NotFoundError{Kind: "employee", Key: emp.ID}
	}
	if err != nil {
		return payroll.Employee{}, err
	}
	emp.HireDate, err = parseDate(hireDate)
	return emp, err
}

// =============================================================================
// COMPONENTS AND RULES
// =============================================================================

func (s *Store) ListComponents(ctx context.Context) ([]payroll.PayComponent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT code, name, kind, calc_phase, taxable, social, base_pay FROM pay_components ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []payroll.PayComponent
	for rows.Next() {
		var (
			c    payroll.PayComponent
			kind string
		)
		if err := rows.Scan(&c.Code, &c.Name, &kind, &c.CalcPhase, &c.Taxable, &c.Social, &c.BasePay); err != nil {
			return nil, err
		}
		c.Kind = payroll.ComponentKind(kind)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) SaveComponent(ctx context.Context, c payroll.PayComponent) (payroll.PayComponent, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO pay_components (code, name, kind, calc_phase, taxable, social, base_pay)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(code) DO UPDATE SET
		   name = excluded.name, kind = excluded.kind, calc_phase = excluded.calc_phase,
		   taxable = excluded.taxable, social = excluded.social, base_pay = excluded.base_pay`,
		c.Code, c.Name, string(c.Kind), c.CalcPhase, c.Taxable, c.Social, c.BasePay)
	return c, err
}

func (s *Store) ListRules(ctx context.Context) ([]payroll.PayRule, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, component_code, formula, priority, active, effective_from, effective_to
		 FROM pay_rules ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []payroll.PayRule
	for rows.Next() {
		var (
			r    payroll.PayRule
			from string
			to   sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.ComponentCode, &r.Formula, &r.Priority, &r.Active, &from, &to); err != nil {
			return nil, err
		}
		if r.From, err = parseDate(from); err != nil {
			return nil, err
		}
		if r.To, err = scanNullDate(to); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) SaveRule(ctx context.Context, r payroll.PayRule) (payroll.PayRule, error) {
	r.ID = ensureID(r.ID)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO pay_rules (id, component_code, formula, priority, active, effective_from, effective_to)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   component_code = excluded.component_code, formula = excluded.formula,
		   priority = excluded.priority, active = excluded.active,
		   effective_from = excluded.effective_from, effective_to = excluded.effective_to`,
		r.ID, r.ComponentCode, r.Formula, r.Priority, r.Active, dateArg(r.From), nullDateArg(r.To))
	return r, err
}

// =============================================================================
// PERIODS AND INPUTS
// =============================================================================

func (s *Store) GetPeriod(ctx context.Context, id string) (payroll.PayrollPeriod, error) {
	return s.scanPeriodRow(s.db.QueryRowContext(ctx,
		`SELECT id, code, start_date, end_date, payment_date, closed FROM periods WHERE id = ?`, id), id)
}

func (s *Store) GetPeriodByCode(ctx context.Context, code string) (payroll.PayrollPeriod, error) {
	return s.scanPeriodRow(s.db.QueryRowContext(ctx,
		`SELECT id, code, start_date, end_date, payment_date, closed FROM periods WHERE code = ?`, code), code)
}

func (s *Store) scanPeriodRow(row rowScanner, key string) (payroll.PayrollPeriod, error) {
	var (
		p                   payroll.PayrollPeriod
		start, end, payment string
	)
	err := row.Scan(&p.ID, &p.Code, &start, &end, &payment, &p.Closed)
	if errors.Is(err, sql.ErrNoRows) {
		return payroll.PayrollPeriod{}, &engine.NotFoundError{Kind: "period", Key: key}
	}
	if err != nil {
		return payroll.PayrollPeriod{}, err
	}
	if p.Start, err = parseDate(start); err != nil {
		return payroll.PayrollPeriod{}, err
	}
	if p.End, err = parseDate(end); err != nil {
		return payroll.PayrollPeriod{}, err
	}
	if p.PaymentDate, err = parseDate(payment); err != nil {
		return payroll.PayrollPeriod{}, err
	}
	return p, nil
}

func (s *Store) ListPeriods(ctx context.Context) ([]payroll.PayrollPeriod, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, code, start_date, end_date, payment_date, closed FROM periods ORDER BY start_date`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []payroll.PayrollPeriod
	for rows.Next() {
		p, err := s.scanPeriodRow(rows, "")
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) SavePeriod(ctx context.Context, p payroll.PayrollPeriod) (payroll.PayrollPeriod, error) {
	p.ID = ensureID(p.ID)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO periods (id, code, start_date, end_date, payment_date, closed)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   code = excluded.code, start_date = excluded.start_date, end_date = excluded.end_date,
		   payment_date = excluded.payment_date, closed = excluded.closed`,
		p.ID, p.Code, dateArg(p.Start), dateArg(p.End), dateArg(p.PaymentDate), p.Closed)
	return p, err
}

func (s *Store) ListInputs(ctx context.Context, periodID string) ([]payroll.PeriodInput, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, period_id, employee_id, component_code, amount, quantity, rate
		 FROM period_inputs WHERE period_id = ? ORDER BY id`, periodID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []payroll.PeriodInput
	for rows.Next() {
		var (
			in                     payroll.PeriodInput
			amount, quantity, rate string
		)
		if err := rows.Scan(&in.ID, &in.PeriodID, &in.EmployeeID, &in.ComponentCode, &amount, &quantity, &rate); err != nil {
			return nil, err
		}
		if in.Amount, err = parseDec(amount); err != nil {
			return nil, err
		}
		if in.Quantity, err = parseDec(quantity); err != nil {
			return nil, err
		}
		if in.Rate, err = parseDec(rate); err != nil {
			return nil, err
		}
		out = append(out, in)
	}
	return out, rows.Err()
}

func (s *Store) SaveInput(ctx context.Context, in payroll.PeriodInput) (payroll.PeriodInput, error) {
	in.ID = ensureID(in.ID)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO period_inputs (id, period_id, employee_id, component_code, amount, quantity, rate)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   amount = excluded.amount, quantity = excluded.quantity, rate = excluded.rate`,
		in.ID, in.PeriodID, in.EmployeeID, in.ComponentCode,
		in.Amount.String(), in.Quantity.String(), in.Rate.String())
	return in, err
}

// =============================================================================
// RUNS
// =============================================================================

func (s *Store) GetRun(ctx context.Context, id string) (payroll.PayrollRun, error) {
	return scanRun(s.db.QueryRowContext(ctx,
		`SELECT id, period_id, pay_group, status, hash, approved_by, approved_at FROM runs WHERE id = ?`, id), id)
}

func (s *Store) ListRuns(ctx context.Context, periodID string) ([]payroll.PayrollRun, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, period_id, pay_group, status, hash, approved_by, approved_at
		 FROM runs WHERE period_id = ? ORDER BY id`, periodID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []payroll.PayrollRun
	for rows.Next() {
		run, err := scanRun(rows, "")
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

func scanRun(row rowScanner, key string) (payroll.PayrollRun, error) {
	var (
		run        payroll.PayrollRun
		status     string
		approvedAt sql.NullString
	)
	err := row.Scan(&run.ID, &run.PeriodID, &run.Scope.PayGroup, &status, &run.Hash, &run.ApprovedBy, &approvedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return payroll.PayrollRun{}, &engine.NotFoundError{Kind: "payroll_run", Key: key}
	}
	if err != nil {
		return payroll.PayrollRun{}, err
	}
	run.Status = payroll.RunStatus(status)
	if run.ApprovedAt, err = scanNullDate(approvedAt); err != nil {
		return payroll.PayrollRun{}, err
	}
	return run, nil
}

func (s *Store) SaveRun(ctx context.Context, run payroll.PayrollRun) (payroll.PayrollRun, error) {
	run.ID = ensureID(run.ID)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, period_id, pay_group, status, hash, approved_by, approved_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   status = excluded.status, hash = excluded.hash,
		   approved_by = excluded.approved_by, approved_at = excluded.approved_at`,
		run.ID, run.PeriodID, run.Scope.PayGroup, string(run.Status), run.Hash,
		run.ApprovedBy, nullDateArg(run.ApprovedAt))
	return run, err
}

// ReplaceResult upserts the (run, employee) result and swaps its lines
// inside one transaction, keeping the result row's identity stable
// across recalculations.
func (s *Store) ReplaceResult(ctx context.Context, result payroll.PayrollResult, lines []payroll.PayrollLine) (payroll.PayrollResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return payroll.PayrollResult{}, err
	}
	defer tx.Rollback()

	var existingID string
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM results WHERE run_id = ? AND employee_id = ?`,
		result.RunID, result.EmployeeID).Scan(&existingID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		result.ID = ensureID(result.ID)
	case err != nil:
		return payroll.PayrollResult{}, err
	default:
		result.ID = existingID
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO results (id, run_id, employee_id, gross, total_deductions, net, employer_cost, currency)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   gross = excluded.gross, total_deductions = excluded.total_deductions,
		   net = excluded.net, employer_cost = excluded.employer_cost, currency = excluded.currency`,
		result.ID, result.RunID, result.EmployeeID, result.Gross.String(),
		result.TotalDeductions.String(), result.Net.String(), result.EmployerCost.String(), result.Currency)
	if err != nil {
		return payroll.PayrollResult{}, err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM result_lines WHERE result_id = ?`, result.ID); err != nil {
		return payroll.PayrollResult{}, err
	}
	for _, line := range lines {
		line.ID = ensureID(line.ID)
		_, err := tx.ExecContext(ctx,
			`INSERT INTO result_lines (id, result_id, component_code, kind, quantity, rate, amount, sequence)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			line.ID, result.ID, line.ComponentCode, string(line.Kind),
			line.Quantity.String(), line.Rate.String(), line.Amount.String(), line.Sequence)
		if err != nil {
			return payroll.PayrollResult{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return payroll.PayrollResult{}, err
	}
	return result, nil
}

func (s *Store) DeleteResult(ctx context.Context, runID, employeeID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var id string
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM results WHERE run_id = ? AND employee_id = ?`,
		runID, employeeID).Scan(&id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil
	case err != nil:
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM result_lines WHERE result_id = ?`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM results WHERE id = ?`, id); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) ListResults(ctx context.Context, runID string) ([]payroll.PayrollResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, employee_id, gross, total_deductions, net, employer_cost, currency
		 FROM results WHERE run_id = ? ORDER BY employee_id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []payroll.PayrollResult
	for rows.Next() {
		var (
			res                              payroll.PayrollResult
			gross, deductions, net, employer string
		)
		if err := rows.Scan(&res.ID, &res.RunID, &res.EmployeeID, &gross, &deductions, &net, &employer, &res.Currency); err != nil {
			return nil, err
		}
		if res.Gross, err = parseDec(gross); err != nil {
			return nil, err
		}
		if res.TotalDeductions, err = parseDec(deductions); err != nil {
			return nil, err
		}
		if res.Net, err = parseDec(net); err != nil {
			return nil, err
		}
		if res.EmployerCost, err = parseDec(employer); err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

func (s *Store) ListLines(ctx context.Context, resultID string) ([]payroll.PayrollLine, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, result_id, component_code, kind, quantity, rate, amount, sequence
		 FROM result_lines WHERE result_id = ? ORDER BY sequence`, resultID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []payroll.PayrollLine
	for rows.Next() {
		var (
			line                   payroll.PayrollLine
			kind                   string
			quantity, rate, amount string
		)
		if err := rows.Scan(&line.ID, &line.ResultID, &line.ComponentCode, &kind, &quantity, &rate, &amount, &line.Sequence); err != nil {
			return nil, err
		}
		line.Kind = payroll.ComponentKind(kind)
		if line.Quantity, err = parseDec(quantity); err != nil {
			return nil, err
		}
		if line.Rate, err = parseDec(rate); err != nil {
			return nil, err
		}
		if line.Amount, err = parseDec(amount); err != nil {
			return nil, err
		}
		out = append(out, line)
	}
	return out, rows.Err()
}

func (s *Store) ReplaceRunErrors(ctx context.Context, runID string, errs []payroll.RunError) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM run_errors WHERE run_id = ?`, runID); err != nil {
		return err
	}
	for _, e := range errs {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO run_errors (run_id, employee_id, code, message, severity) VALUES (?, ?, ?, ?, ?)`,
			runID, e.EmployeeID, e.Code, e.Message, e.Severity)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) ListRunErrors(ctx context.Context, runID string) ([]payroll.RunError, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT employee_id, code, message, severity FROM run_errors WHERE run_id = ? ORDER BY employee_id, code`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []payroll.RunError
	for rows.Next() {
		var e payroll.RunError
		if err := rows.Scan(&e.EmployeeID, &e.Code, &e.Message, &e.Severity); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// =============================================================================
// EXCHANGE RATES
// =============================================================================

func (s *Store) FindRate(ctx context.Context, from, to string, d engine.Date) (engine.ExchangeRate, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, from_currency, to_currency, rate_date, rate FROM exchange_rates
		 WHERE from_currency = ? AND to_currency = ? AND rate_date = ?`,
		from, to, dateArg(d))
	return scanRate(row, from+"->"+to+"@"+d.String())
}

func (s *Store) LatestRate(ctx context.Context, from, to string, onOrBefore engine.Date) (engine.ExchangeRate, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, from_currency, to_currency, rate_date, rate FROM exchange_rates
		 WHERE from_currency = ? AND to_currency = ? AND rate_date <= ?
		 ORDER BY rate_date DESC LIMIT 1`,
		from, to, dateArg(onOrBefore))
	return scanRate(row, from+"->"+to)
}

func scanRate(row rowScanner, key string) (engine.ExchangeRate, error) {
	var (
		r              engine.ExchangeRate
		rateDate, rate string
	)
	err := row.Scan(&r.ID, &r.FromCurrency, &r.ToCurrency, &rateDate, &rate)
	if errors.Is(err, sql.ErrNoRows) {
		return engine.ExchangeRate{}, &engine.NotFoundError{Kind: "exchange_rate", Key: key}
	}
	if err != nil {
		return engine.ExchangeRate{}, err
	}
	if r.Date, err = parseDate(rateDate); err != nil {
		return engine.ExchangeRate{}, err
	}
	if r.Rate, err = parseDec(rate); err != nil {
		return engine.ExchangeRate{}, err
	}
	return r, nil
}

func (s *Store) SaveRate(ctx context.Context, r engine.ExchangeRate) (engine.ExchangeRate, error) {
	r.ID = ensureID(r.ID)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO exchange_rates (id, from_currency, to_currency, rate_date, rate) VALUES (?, ?, ?, ?, ?)`,
		r.ID, r.FromCurrency, r.ToCurrency, dateArg(r.Date), r.Rate.String())
	return r, err
}

// =============================================================================
// TAX BRACKETS
// =============================================================================

func (s *Store) ListBrackets(ctx context.Context, country, taxCode string, validOn engine.Date) ([]engine.TaxBracket, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, country, tax_code, lower_bound, upper_bound, rate, fixed_part, valid_from, valid_to
		 FROM tax_brackets
		 WHERE country = ? COLLATE NOCASE AND tax_code = ?
		   AND valid_from <= ? AND (valid_to IS NULL OR valid_to >= ?)`,
		country, taxCode, dateArg(validOn), dateArg(validOn))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []engine.TaxBracket
	for rows.Next() {
		var (
			b                      engine.TaxBracket
			lower, rate, fixedPart string
			upper, validTo         sql.NullString
			validFrom              string
		)
		if err := rows.Scan(&b.ID, &b.Country, &b.TaxCode, &lower, &upper, &rate, &fixedPart, &validFrom, &validTo); err != nil {
			return nil, err
		}
		if b.Lower, err = parseDec(lower); err != nil {
			return nil, err
		}
		if upper.Valid {
			u, err := parseDec(upper.String)
			if err != nil {
				return nil, err
			}
			b.Upper = &u
		}
		if b.Rate, err = parseDec(rate); err != nil {
			return nil, err
		}
		if b.FixedPart, err = parseDec(fixedPart); err != nil {
			return nil, err
		}
		if b.ValidFrom, err = parseDate(validFrom); err != nil {
			return nil, err
		}
		if b.ValidTo, err = scanNullDate(validTo); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *Store) SaveBracket(ctx context.Context, b engine.TaxBracket) (engine.TaxBracket, error) {
	b.ID = ensureID(b.ID)
	var upper any
	if b.Upper != nil {
		upper = b.Upper.String()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tax_brackets (id, country, tax_code, lower_bound, upper_bound, rate, fixed_part, valid_from, valid_to)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.Country, b.TaxCode, b.Lower.String(), upper, b.Rate.String(), b.FixedPart.String(),
		dateArg(b.ValidFrom), nullDateArg(b.ValidTo))
	return b, err
}

// =============================================================================
// HOLIDAYS
// =============================================================================

func (s *Store) IsHoliday(companyID string, d engine.Date) bool {
	holidays, err := s.ListHolidays(context.Background(), companyID)
	if err != nil {
		return false
	}
	for _, h := range holidays {
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

func (s *Store) SaveHoliday(ctx context.Context, h engine.Holiday) (engine.Holiday, error) {
	h.ID = ensureID(h.ID)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO holidays (id, company_id, holiday_date, name, recurring) VALUES (?, ?, ?, ?, ?)`,
		h.ID, h.CompanyID, dateArg(h.Date), h.Name, h.Recurring)
	return h, err
}

func (s *Store) ListHolidays(ctx context.Context, companyID string) ([]engine.Holiday, error) {
	query := `SELECT id, company_id, holiday_date, name, recurring FROM holidays`
	args := []any{}
	if companyID != "" {
		query += ` WHERE company_id = '' OR company_id = ?`
		args = append(args, companyID)
	}
	query += ` ORDER BY holiday_date`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []engine.Holiday
	for rows.Next() {
		var (
			h           engine.Holiday
			holidayDate string
		)
		if err := rows.Scan(&h.ID, &h.CompanyID, &holidayDate, &h.Name, &h.Recurring); err != nil {
			return nil, err
		}
		if h.Date, err = parseDate(holidayDate); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}
