/*
Package sqlite provides a single-node SQLite implementation of payroll.StoreAPI.

Money and dates are stored as TEXT (decimal strings, YYYY-MM-DD, RFC3339
timestamps) so values round-trip without float drift. The partial unique index
on salary_slips enforces one non-cancelled slip per employee and period, the
same guarantee the Postgres schema gives.

Schema is auto-migrated on New(). Use ":memory:" for a throwaway database.
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"hrpay/internal/domain/payroll"
)

const (
	dateLayout      = "2006-01-02"
	timestampLayout = time.RFC3339Nano
)

type Store struct {
	db *sql.DB
}

var _ payroll.StoreAPI = (*Store)(nil)

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// every pooled connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS employees (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		full_name TEXT NOT NULL DEFAULT '',
		salary TEXT,
		is_active BOOLEAN NOT NULL DEFAULT TRUE
	);

	CREATE TABLE IF NOT EXISTS benefit_types (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		is_taxable BOOLEAN NOT NULL DEFAULT TRUE,
		is_active BOOLEAN NOT NULL DEFAULT TRUE
	);

	CREATE TABLE IF NOT EXISTS withholding_types (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		is_statutory BOOLEAN NOT NULL DEFAULT FALSE,
		is_active BOOLEAN NOT NULL DEFAULT TRUE
	);

	CREATE TABLE IF NOT EXISTS compensation_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		kind TEXT NOT NULL CHECK (kind IN ('benefit', 'deduction')),
		employee_id INTEGER NOT NULL REFERENCES employees(id),
		type_id INTEGER NOT NULL,
		calculation_type TEXT NOT NULL,
		amount TEXT NOT NULL,
		effective_from TEXT,
		effective_until TEXT,
		is_active BOOLEAN NOT NULL DEFAULT TRUE
	);

	CREATE INDEX IF NOT EXISTS idx_compensation_records_employee
		ON compensation_records(employee_id, kind);

	CREATE TABLE IF NOT EXISTS tax_brackets (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		income_from TEXT NOT NULL,
		income_to TEXT NOT NULL,
		fixed_amount TEXT NOT NULL DEFAULT '0',
		percentage TEXT NOT NULL DEFAULT '0',
		is_active BOOLEAN NOT NULL DEFAULT TRUE
	);

	CREATE TABLE IF NOT EXISTS salary_slips (
		id TEXT PRIMARY KEY,
		employee_id INTEGER NOT NULL REFERENCES employees(id),
		slip_reference TEXT NOT NULL UNIQUE,
		period TEXT NOT NULL,
		basic_salary TEXT NOT NULL,
		total_earnings TEXT NOT NULL,
		total_deductions TEXT NOT NULL,
		statutory_tax TEXT NOT NULL,
		tax_bracket_id INTEGER,
		tax_basis TEXT NOT NULL,
		net_payable TEXT NOT NULL,
		benefits_json TEXT NOT NULL,
		deductions_json TEXT NOT NULL,
		warnings_json TEXT,
		status TEXT NOT NULL,
		generated_at TEXT NOT NULL,
		paid_at TEXT,
		cancelled_at TEXT
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_salary_slips_active_period
		ON salary_slips(employee_id, period)
		WHERE status <> 'cancelled';
	CREATE INDEX IF NOT EXISTS idx_salary_slips_period
		ON salary_slips(period);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// ROSTER AND CATALOG
// =============================================================================

func (s *Store) AddEmployee(ctx context.Context, employee payroll.Employee) (payroll.Employee, error) {
	id, err := s.insert(ctx, `INSERT INTO employees (full_name, salary, is_active) VALUES (?, ?, ?)`,
		employee.Name, employee.BaseSalary.String(), employee.IsActive)
	employee.ID = id
	return employee, err
}

func (s *Store) AddBenefitType(ctx context.Context, item payroll.BenefitType) (payroll.BenefitType, error) {
	id, err := s.insert(ctx, `INSERT INTO benefit_types (title, is_taxable, is_active) VALUES (?, ?, ?)`,
		item.Title, item.IsTaxable, item.IsActive)
	item.ID = id
	return item, err
}

func (s *Store) AddWithholdingType(ctx context.Context, item payroll.WithholdingType) (payroll.WithholdingType, error) {
	id, err := s.insert(ctx, `INSERT INTO withholding_types (title, is_statutory, is_active) VALUES (?, ?, ?)`,
		item.Title, item.IsStatutory, item.IsActive)
	item.ID = id
	return item, err
}

func (s *Store) AddTaxBracket(ctx context.Context, item payroll.TaxBracket) (payroll.TaxBracket, error) {
	id, err := s.insert(ctx, `
		INSERT INTO tax_brackets (title, income_from, income_to, fixed_amount, percentage, is_active)
		VALUES (?, ?, ?, ?, ?, ?)`,
		item.Title, item.IncomeFrom.String(), item.IncomeTo.String(), item.FixedAmount.String(), item.Percentage.String(), item.IsActive)
	item.ID = id
	return item, err
}

func (s *Store) AddBenefitRecord(ctx context.Context, record payroll.CompensationRecord) (payroll.CompensationRecord, error) {
	return s.addRecord(ctx, "benefit", record)
}

func (s *Store) AddDeductionRecord(ctx context.Context, record payroll.CompensationRecord) (payroll.CompensationRecord, error) {
	return s.addRecord(ctx, "deduction", record)
}

func (s *Store) addRecord(ctx context.Context, kind string, record payroll.CompensationRecord) (payroll.CompensationRecord, error) {
	id, err := s.insert(ctx, `
		INSERT INTO compensation_records
		(kind, employee_id, type_id, calculation_type, amount, effective_from, effective_until, is_active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		kind, record.EmployeeID, record.TypeID, record.CalculationType, record.Amount.String(),
		nullDate(record.EffectiveFrom), nullDate(record.EffectiveUntil), record.IsActive)
	record.ID = id
	return record, err
}

func (s *Store) insert(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *Store) GetEmployees(ctx context.Context, ids []int64) ([]payroll.Employee, error) {
	out := []payroll.Employee{}
	if len(ids) == 0 {
		return out, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, full_name, salary, is_active
		FROM employees
		WHERE id IN (`+placeholders+`)
		ORDER BY id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var employee payroll.Employee
		var salary sql.NullString
		if err := rows.Scan(&employee.ID, &employee.Name, &salary, &employee.IsActive); err != nil {
			return nil, err
		}
		if employee.BaseSalary, err = payroll.ParseMoney(salary.String); err != nil {
			return nil, fmt.Errorf("employee %d salary: %w", employee.ID, err)
		}
		out = append(out, employee)
	}
	return out, rows.Err()
}

func (s *Store) ListActiveEmployeeIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM employees WHERE is_active = TRUE ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) ListBenefitTypes(ctx context.Context) ([]payroll.BenefitType, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, title, is_taxable, is_active FROM benefit_types ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []payroll.BenefitType
	for rows.Next() {
		var item payroll.BenefitType
		if err := rows.Scan(&item.ID, &item.Title, &item.IsTaxable, &item.IsActive); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func (s *Store) ListWithholdingTypes(ctx context.Context) ([]payroll.WithholdingType, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, title, is_statutory, is_active FROM withholding_types ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []payroll.WithholdingType
	for rows.Next() {
		var item payroll.WithholdingType
		if err := rows.Scan(&item.ID, &item.Title, &item.IsStatutory, &item.IsActive); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func (s *Store) ListTaxBrackets(ctx context.Context) ([]payroll.TaxBracket, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, income_from, income_to, fixed_amount, percentage, is_active
		FROM tax_brackets
		ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []payroll.TaxBracket
	for rows.Next() {
		var item payroll.TaxBracket
		var from, to, fixed, pct string
		if err := rows.Scan(&item.ID, &item.Title, &from, &to, &fixed, &pct, &item.IsActive); err != nil {
			return nil, err
		}
		if err := parseAll(
			parseTarget{from, &item.IncomeFrom},
			parseTarget{to, &item.IncomeTo},
			parseTarget{fixed, &item.FixedAmount},
			parseTarget{pct, &item.Percentage},
		); err != nil {
			return nil, fmt.Errorf("tax bracket %d: %w", item.ID, err)
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func (s *Store) ListBenefitRecords(ctx context.Context, employeeID int64) ([]payroll.CompensationRecord, error) {
	return s.listRecords(ctx, "benefit", employeeID)
}

func (s *Store) ListDeductionRecords(ctx context.Context, employeeID int64) ([]payroll.CompensationRecord, error) {
	return s.listRecords(ctx, "deduction", employeeID)
}

func (s *Store) listRecords(ctx context.Context, kind string, employeeID int64) ([]payroll.CompensationRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, employee_id, type_id, calculation_type, amount, effective_from, effective_until, is_active
		FROM compensation_records
		WHERE kind = ? AND employee_id = ?
		ORDER BY id`, kind, employeeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []payroll.CompensationRecord
	for rows.Next() {
		var record payroll.CompensationRecord
		var amount string
		var from, until sql.NullString
		if err := rows.Scan(&record.ID, &record.EmployeeID, &record.TypeID, &record.CalculationType, &amount, &from, &until, &record.IsActive); err != nil {
			return nil, err
		}
		if record.Amount, err = payroll.ParseMoney(amount); err != nil {
			return nil, fmt.Errorf("record %d amount: %w", record.ID, err)
		}
		if record.EffectiveFrom, err = parseNullTime(from, dateLayout); err != nil {
			return nil, err
		}
		if record.EffectiveUntil, err = parseNullTime(until, dateLayout); err != nil {
			return nil, err
		}
		out = append(out, record)
	}
	return out, rows.Err()
}

// =============================================================================
// SALARY SLIPS
// =============================================================================

const slipColumns = `id, employee_id, slip_reference, period, basic_salary, total_earnings, total_deductions,
	statutory_tax, tax_bracket_id, tax_basis, net_payable, benefits_json, deductions_json, warnings_json,
	status, generated_at, paid_at, cancelled_at`

func (s *Store) FindActiveSlip(ctx context.Context, employeeID int64, period payroll.Period) (*payroll.SalarySlip, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+slipColumns+` FROM salary_slips
		WHERE employee_id = ? AND period = ? AND status <> ?
		LIMIT 1`, employeeID, period.String(), payroll.SlipStatusCancelled)
	slip, err := scanSlip(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &slip, nil
}

// CreateSlip stores the slip with its lines in a single row write.
func (s *Store) CreateSlip(ctx context.Context, slip payroll.SalarySlip) error {
	benefitsJSON, err := json.Marshal(slip.Benefits)
	if err != nil {
		return err
	}
	deductionsJSON, err := json.Marshal(slip.Deductions)
	if err != nil {
		return err
	}
	warningsJSON, err := json.Marshal(slip.Warnings)
	if err != nil {
		return err
	}
	var bracketID any
	if slip.TaxBracketID != nil {
		bracketID = *slip.TaxBracketID
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO salary_slips (`+slipColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL, NULL)`,
		slip.ID, slip.EmployeeID, slip.Reference, slip.Period.String(),
		slip.BasicSalary.String(), slip.TotalEarnings.String(), slip.TotalDeductions.String(), slip.StatutoryTax.String(),
		bracketID, slip.TaxBasis, slip.NetPayable.String(),
		string(benefitsJSON), string(deductionsJSON), string(warningsJSON),
		slip.Status, slip.GeneratedAt.UTC().Format(timestampLayout),
	)
	if err != nil {
		if isUniqueConstraintError(err) && strings.Contains(err.Error(), "salary_slips.employee_id") {
			return &payroll.DuplicateSlipError{EmployeeID: slip.EmployeeID, Period: slip.Period}
		}
		return fmt.Errorf("failed to insert salary slip: %w", err)
	}
	return nil
}

func (s *Store) GetSlip(ctx context.Context, slipID string) (payroll.SalarySlip, error) {
	return s.getSlip(ctx, `id = ?`, slipID)
}

func (s *Store) GetSlipByReference(ctx context.Context, reference string) (payroll.SalarySlip, error) {
	return s.getSlip(ctx, `slip_reference = ?`, reference)
}

func (s *Store) getSlip(ctx context.Context, where string, arg any) (payroll.SalarySlip, error) {
	slip, err := scanSlip(s.db.QueryRowContext(ctx, `SELECT `+slipColumns+` FROM salary_slips WHERE `+where, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return payroll.SalarySlip{}, payroll.ErrSlipNotFound
	}
	return slip, err
}

func (s *Store) CountSlips(ctx context.Context, filter payroll.SlipFilter) (int, error) {
	where, args := slipWhere(filter)
	var total int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM salary_slips`+where, args...).Scan(&total)
	return total, err
}

func (s *Store) ListSlips(ctx context.Context, filter payroll.SlipFilter, limit, offset int) ([]payroll.SalarySlip, error) {
	where, args := slipWhere(filter)
	args = append(args, limit, offset)
	rows, err := s.db.QueryContext(ctx, `SELECT `+slipColumns+` FROM salary_slips`+where+`
		ORDER BY period DESC, employee_id, generated_at
		LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []payroll.SalarySlip{}
	for rows.Next() {
		slip, err := scanSlip(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, slip)
	}
	return out, rows.Err()
}

func slipWhere(filter payroll.SlipFilter) (string, []any) {
	var clauses []string
	var args []any
	if !filter.Period.IsZero() {
		clauses = append(clauses, "period = ?")
		args = append(args, filter.Period.String())
	}
	if filter.EmployeeID != 0 {
		clauses = append(clauses, "employee_id = ?")
		args = append(args, filter.EmployeeID)
	}
	if filter.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, filter.Status)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func (s *Store) UpdateSlipStatus(ctx context.Context, slipID, from, to string, at time.Time) (payroll.SalarySlip, error) {
	var column string
	switch to {
	case payroll.SlipStatusPaid:
		column = "paid_at"
	case payroll.SlipStatusCancelled:
		column = "cancelled_at"
	default:
		return payroll.SalarySlip{}, payroll.ErrInvalidTransition
	}
	res, err := s.db.ExecContext(ctx, `UPDATE salary_slips SET status = ?, `+column+` = ? WHERE id = ? AND status = ?`,
		to, at.UTC().Format(timestampLayout), slipID, from)
	if err != nil {
		return payroll.SalarySlip{}, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return payroll.SalarySlip{}, err
	}
	if affected == 0 {
		if _, err := s.GetSlip(ctx, slipID); err != nil {
			return payroll.SalarySlip{}, err
		}
		return payroll.SalarySlip{}, payroll.ErrInvalidTransition
	}
	return s.GetSlip(ctx, slipID)
}

// =============================================================================
// HELPERS
// =============================================================================

type scanner interface {
	Scan(dest ...any) error
}

func scanSlip(row scanner) (payroll.SalarySlip, error) {
	var slip payroll.SalarySlip
	var period, basic, earnings, deductions, tax, net, benefitsJSON, deductionsJSON, generatedAt string
	var bracketID sql.NullInt64
	var warningsJSON, paidAt, cancelledAt sql.NullString
	if err := row.Scan(&slip.ID, &slip.EmployeeID, &slip.Reference, &period, &basic, &earnings, &deductions,
		&tax, &bracketID, &slip.TaxBasis, &net, &benefitsJSON, &deductionsJSON, &warningsJSON,
		&slip.Status, &generatedAt, &paidAt, &cancelledAt); err != nil {
		return payroll.SalarySlip{}, err
	}

	var err error
	if slip.Period, err = payroll.ParsePeriod(period); err != nil {
		return payroll.SalarySlip{}, err
	}
	if err := parseAll(
		parseTarget{basic, &slip.BasicSalary},
		parseTarget{earnings, &slip.TotalEarnings},
		parseTarget{deductions, &slip.TotalDeductions},
		parseTarget{tax, &slip.StatutoryTax},
		parseTarget{net, &slip.NetPayable},
	); err != nil {
		return payroll.SalarySlip{}, fmt.Errorf("slip %s: %w", slip.ID, err)
	}
	if bracketID.Valid {
		id := bracketID.Int64
		slip.TaxBracketID = &id
	}
	if err := json.Unmarshal([]byte(benefitsJSON), &slip.Benefits); err != nil {
		return payroll.SalarySlip{}, err
	}
	if err := json.Unmarshal([]byte(deductionsJSON), &slip.Deductions); err != nil {
		return payroll.SalarySlip{}, err
	}
	if slip.Benefits == nil {
		slip.Benefits = []payroll.LineItem{}
	}
	if warningsJSON.Valid && warningsJSON.String != "" {
		if err := json.Unmarshal([]byte(warningsJSON.String), &slip.Warnings); err != nil {
			return payroll.SalarySlip{}, err
		}
	}
	if slip.GeneratedAt, err = time.Parse(timestampLayout, generatedAt); err != nil {
		return payroll.SalarySlip{}, err
	}
	if slip.PaidAt, err = parseNullTime(paidAt, timestampLayout); err != nil {
		return payroll.SalarySlip{}, err
	}
	if slip.CancelledAt, err = parseNullTime(cancelledAt, timestampLayout); err != nil {
		return payroll.SalarySlip{}, err
	}
	return slip, nil
}

type parseTarget struct {
	raw string
	dst *decimal.Decimal
}

func parseAll(targets ...parseTarget) error {
	for _, target := range targets {
		value, err := payroll.ParseMoney(target.raw)
		if err != nil {
			return err
		}
		*target.dst = value
	}
	return nil
}

func parseNullTime(value sql.NullString, layout string) (*time.Time, error) {
	if !value.Valid || value.String == "" {
		return nil, nil
	}
	parsed, err := time.Parse(layout, value.String)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

func nullDate(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.Format(dateLayout)
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
