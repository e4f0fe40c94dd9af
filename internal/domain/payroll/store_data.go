package payroll

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

func (s *Store) GetEmployees(ctx context.Context, ids []int64) ([]Employee, error) {
	if len(ids) == 0 {
		return []Employee{}, nil
	}
	rows, err := s.DB.Query(ctx, `
    SELECT id, COALESCE(full_name, ''), salary::text, salary_enc, is_active
    FROM employees
    WHERE id = ANY($1)
    ORDER BY id
  `, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var employees []Employee
	for rows.Next() {
		var employee Employee
		var salaryPlain *string
		var salaryEnc []byte
		if err := rows.Scan(&employee.ID, &employee.Name, &salaryPlain, &salaryEnc, &employee.IsActive); err != nil {
			return nil, err
		}
		employee.BaseSalary, err = decryptSalary(s.Crypto, salaryEnc, salaryPlain)
		if err != nil {
			return nil, &PersistenceError{Op: fmt.Sprintf("load salary for employee %d", employee.ID), Err: err}
		}
		employees = append(employees, employee)
	}
	return employees, rows.Err()
}

func (s *Store) ListActiveEmployeeIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id
    FROM employees
    WHERE is_active = true
    ORDER BY id
  `)
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

func (s *Store) ListBenefitTypes(ctx context.Context) ([]BenefitType, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, title, is_taxable, is_active
    FROM benefit_types
    ORDER BY id
  `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BenefitType
	for rows.Next() {
		var item BenefitType
		if err := rows.Scan(&item.ID, &item.Title, &item.IsTaxable, &item.IsActive); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func (s *Store) ListWithholdingTypes(ctx context.Context) ([]WithholdingType, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, title, is_statutory, is_active
    FROM withholding_types
    ORDER BY id
  `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []WithholdingType
	for rows.Next() {
		var item WithholdingType
		if err := rows.Scan(&item.ID, &item.Title, &item.IsStatutory, &item.IsActive); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func (s *Store) ListTaxBrackets(ctx context.Context) ([]TaxBracket, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, title, income_from::text, income_to::text, fixed_amount::text, percentage::text, is_active
    FROM tax_brackets
    ORDER BY id
  `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TaxBracket
	for rows.Next() {
		var item TaxBracket
		var from, to, fixed, pct string
		if err := rows.Scan(&item.ID, &item.Title, &from, &to, &fixed, &pct, &item.IsActive); err != nil {
			return nil, err
		}
		if item.IncomeFrom, err = ParseMoney(from); err != nil {
			return nil, fmt.Errorf("tax bracket %d income_from: %w", item.ID, err)
		}
		if item.IncomeTo, err = ParseMoney(to); err != nil {
			return nil, fmt.Errorf("tax bracket %d income_to: %w", item.ID, err)
		}
		if item.FixedAmount, err = ParseMoney(fixed); err != nil {
			return nil, fmt.Errorf("tax bracket %d fixed_amount: %w", item.ID, err)
		}
		if item.Percentage, err = ParseMoney(pct); err != nil {
			return nil, fmt.Errorf("tax bracket %d percentage: %w", item.ID, err)
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func (s *Store) ListBenefitRecords(ctx context.Context, employeeID int64) ([]CompensationRecord, error) {
	return s.listRecords(ctx, `
    SELECT id, employee_id, benefit_type_id, calculation_type, amount::text, effective_from, effective_until, is_active
    FROM benefit_records
    WHERE employee_id = $1
    ORDER BY id
  `, employeeID)
}

func (s *Store) ListDeductionRecords(ctx context.Context, employeeID int64) ([]CompensationRecord, error) {
	return s.listRecords(ctx, `
    SELECT id, employee_id, withholding_type_id, calculation_type, amount::text, effective_from, effective_until, is_active
    FROM deduction_records
    WHERE employee_id = $1
    ORDER BY id
  `, employeeID)
}

func (s *Store) listRecords(ctx context.Context, query string, employeeID int64) ([]CompensationRecord, error) {
	rows, err := s.DB.Query(ctx, query, employeeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CompensationRecord
	for rows.Next() {
		var record CompensationRecord
		var amount string
		if err := rows.Scan(&record.ID, &record.EmployeeID, &record.TypeID, &record.CalculationType, &amount, &record.EffectiveFrom, &record.EffectiveUntil, &record.IsActive); err != nil {
			return nil, err
		}
		if record.Amount, err = ParseMoney(amount); err != nil {
			return nil, fmt.Errorf("record %d amount: %w", record.ID, err)
		}
		out = append(out, record)
	}
	return out, rows.Err()
}

func (s *Store) FindActiveSlip(ctx context.Context, employeeID int64, period Period) (*SalarySlip, error) {
	var slipID string
	err := s.DB.QueryRow(ctx, `
    SELECT id::text
    FROM salary_slips
    WHERE employee_id = $1 AND period_year = $2 AND period_month = $3 AND status <> $4
    LIMIT 1
  `, employeeID, period.Year, int(period.Month), SlipStatusCancelled).Scan(&slipID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	slip, err := s.GetSlip(ctx, slipID)
	if err != nil {
		return nil, err
	}
	return &slip, nil
}

// CreateSlip inserts the slip and its lines in one transaction.
func (s *Store) CreateSlip(ctx context.Context, slip SalarySlip) error {
	warningsJSON, err := json.Marshal(slip.Warnings)
	if err != nil {
		return err
	}

	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
    INSERT INTO salary_slips (
      id, employee_id, slip_reference, period_year, period_month,
      basic_salary, total_earnings, total_deductions, statutory_tax, tax_bracket_id, tax_basis,
      net_payable, warnings_json, status, generated_at
    )
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
  `, slip.ID, slip.EmployeeID, slip.Reference, slip.Period.Year, int(slip.Period.Month),
		slip.BasicSalary.String(), slip.TotalEarnings.String(), slip.TotalDeductions.String(), slip.StatutoryTax.String(),
		nullableInt64(slip.TaxBracketID), slip.TaxBasis, slip.NetPayable.String(), warningsJSON, slip.Status, slip.GeneratedAt,
	); err != nil {
		if isUniqueViolation(err) {
			return &DuplicateSlipError{EmployeeID: slip.EmployeeID, Period: slip.Period}
		}
		return err
	}

	batch := &pgx.Batch{}
	queueLines(batch, slip.ID, recordKindBenefit, slip.Benefits)
	queueLines(batch, slip.ID, recordKindDeduction, slip.Deductions)
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func queueLines(batch *pgx.Batch, slipID, kind string, lines []LineItem) {
	for i, line := range lines {
		var recordID any
		if line.RecordID != 0 {
			recordID = line.RecordID
		}
		var rate any
		if !line.Rate.IsZero() {
			rate = line.Rate.String()
		}
		batch.Queue(`
      INSERT INTO salary_slip_lines (slip_id, kind, position, record_id, name, amount, calculation_type, rate, taxable, statutory)
      VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
    `, slipID, kind, i, recordID, line.Name, line.Amount.String(), line.CalculationType, rate, line.Taxable, line.Statutory)
	}
}

const slipColumns = `
    id::text, employee_id, slip_reference, period_year, period_month,
    basic_salary::text, total_earnings::text, total_deductions::text, statutory_tax::text,
    tax_bracket_id, tax_basis, net_payable::text, warnings_json, status, generated_at, paid_at, cancelled_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSlip(row rowScanner) (SalarySlip, error) {
	var slip SalarySlip
	var month int
	var basic, earnings, deductions, tax, net string
	var warningsJSON []byte
	if err := row.Scan(
		&slip.ID, &slip.EmployeeID, &slip.Reference, &slip.Period.Year, &month,
		&basic, &earnings, &deductions, &tax,
		&slip.TaxBracketID, &slip.TaxBasis, &net, &warningsJSON, &slip.Status, &slip.GeneratedAt, &slip.PaidAt, &slip.CancelledAt,
	); err != nil {
		return SalarySlip{}, err
	}
	slip.Period.Month = time.Month(month)
	var err error
	if slip.BasicSalary, err = ParseMoney(basic); err != nil {
		return SalarySlip{}, err
	}
	if slip.TotalEarnings, err = ParseMoney(earnings); err != nil {
		return SalarySlip{}, err
	}
	if slip.TotalDeductions, err = ParseMoney(deductions); err != nil {
		return SalarySlip{}, err
	}
	if slip.StatutoryTax, err = ParseMoney(tax); err != nil {
		return SalarySlip{}, err
	}
	if slip.NetPayable, err = ParseMoney(net); err != nil {
		return SalarySlip{}, err
	}
	if len(warningsJSON) > 0 {
		if err := json.Unmarshal(warningsJSON, &slip.Warnings); err != nil {
			return SalarySlip{}, fmt.Errorf("decode warnings for slip %s: %w", slip.ID, err)
		}
	}
	return slip, nil
}
