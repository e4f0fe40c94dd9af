package payroll

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

func (s *Store) GetSlip(ctx context.Context, slipID string) (SalarySlip, error) {
	if _, err := uuid.Parse(slipID); err != nil {
		return SalarySlip{}, ErrSlipNotFound
	}
	return s.getSlipWhere(ctx, "id = $1", slipID)
}

func (s *Store) GetSlipByReference(ctx context.Context, reference string) (SalarySlip, error) {
	return s.getSlipWhere(ctx, "slip_reference = $1", reference)
}

func (s *Store) getSlipWhere(ctx context.Context, where string, arg any) (SalarySlip, error) {
	slip, err := scanSlip(s.DB.QueryRow(ctx, "SELECT "+slipColumns+" FROM salary_slips WHERE "+where, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return SalarySlip{}, ErrSlipNotFound
	}
	if err != nil {
		return SalarySlip{}, err
	}
	slips := []SalarySlip{slip}
	if err := s.attachLines(ctx, slips); err != nil {
		return SalarySlip{}, err
	}
	return slips[0], nil
}

func (s *Store) CountSlips(ctx context.Context, filter SlipFilter) (int, error) {
	query, args := buildSlipQuery("SELECT COUNT(1)", filter)
	var total int
	if err := s.DB.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) ListSlips(ctx context.Context, filter SlipFilter, limit, offset int) ([]SalarySlip, error) {
	query, args := buildSlipQuery("SELECT "+slipColumns, filter)
	query += fmt.Sprintf(" ORDER BY period_year DESC, period_month DESC, employee_id LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	slips := []SalarySlip{}
	for rows.Next() {
		slip, err := scanSlip(rows)
		if err != nil {
			return nil, err
		}
		slips = append(slips, slip)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	if err := s.attachLines(ctx, slips); err != nil {
		return nil, err
	}
	return slips, nil
}

func buildSlipQuery(prefix string, filter SlipFilter) (string, []any) {
	query := prefix + " FROM salary_slips WHERE 1=1"
	var args []any
	if !filter.Period.IsZero() {
		query += fmt.Sprintf(" AND period_year = $%d AND period_month = $%d", len(args)+1, len(args)+2)
		args = append(args, filter.Period.Year, int(filter.Period.Month))
	}
	if filter.EmployeeID != 0 {
		query += fmt.Sprintf(" AND employee_id = $%d", len(args)+1)
		args = append(args, filter.EmployeeID)
	}
	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", len(args)+1)
		args = append(args, filter.Status)
	}
	return query, args
}

func (s *Store) attachLines(ctx context.Context, slips []SalarySlip) error {
	if len(slips) == 0 {
		return nil
	}
	ids := make([]string, 0, len(slips))
	index := make(map[string]int, len(slips))
	for i := range slips {
		ids = append(ids, slips[i].ID)
		index[slips[i].ID] = i
		slips[i].Benefits = []LineItem{}
		slips[i].Deductions = []LineItem{}
	}

	rows, err := s.DB.Query(ctx, `
    SELECT slip_id::text, kind, COALESCE(record_id, 0), name, amount::text,
           COALESCE(calculation_type, ''), COALESCE(rate::text, ''), taxable, statutory
    FROM salary_slip_lines
    WHERE slip_id::text = ANY($1)
    ORDER BY slip_id, kind, position
  `, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var slipID, kind, amount, rate string
		var line LineItem
		if err := rows.Scan(&slipID, &kind, &line.RecordID, &line.Name, &amount, &line.CalculationType, &rate, &line.Taxable, &line.Statutory); err != nil {
			return err
		}
		if line.Amount, err = ParseMoney(amount); err != nil {
			return err
		}
		if line.Rate, err = ParseMoney(rate); err != nil {
			return err
		}
		i, ok := index[slipID]
		if !ok {
			continue
		}
		if kind == recordKindBenefit {
			slips[i].Benefits = append(slips[i].Benefits, line)
		} else {
			slips[i].Deductions = append(slips[i].Deductions, line)
		}
	}
	return rows.Err()
}

func (s *Store) UpdateSlipStatus(ctx context.Context, slipID, from, to string, at time.Time) (SalarySlip, error) {
	if _, err := uuid.Parse(slipID); err != nil {
		return SalarySlip{}, ErrSlipNotFound
	}
	var column string
	switch to {
	case SlipStatusPaid:
		column = "paid_at"
	case SlipStatusCancelled:
		column = "cancelled_at"
	default:
		return SalarySlip{}, ErrInvalidTransition
	}

	tag, err := s.DB.Exec(ctx, `
    UPDATE salary_slips
    SET status = $1, `+column+` = $2
    WHERE id = $3 AND status = $4
  `, to, at, slipID, from)
	if err != nil {
		return SalarySlip{}, err
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.GetSlip(ctx, slipID); err != nil {
			return SalarySlip{}, err
		}
		return SalarySlip{}, ErrInvalidTransition
	}
	return s.GetSlip(ctx, slipID)
}
