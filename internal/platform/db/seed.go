package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"hrpay/internal/domain/payroll"
)

func DefaultBenefitTypes() []payroll.BenefitType {
	return []payroll.BenefitType{
		{Title: "Housing Allowance", IsTaxable: true, IsActive: true},
		{Title: "Transport Allowance", IsTaxable: true, IsActive: true},
		{Title: "Meal Allowance", IsActive: true},
		{Title: "Performance Bonus", IsTaxable: true, IsActive: true},
	}
}

func DefaultWithholdingTypes() []payroll.WithholdingType {
	return []payroll.WithholdingType{
		{Title: "Pension Contribution", IsStatutory: true, IsActive: true},
		{Title: "Health Insurance", IsStatutory: true, IsActive: true},
		{Title: "Loan Repayment", IsActive: true},
	}
}

// DefaultTaxBrackets is a monthly table for the period income basis.
func DefaultTaxBrackets() []payroll.TaxBracket {
	bracket := func(title, from, to, fixed, pct string) payroll.TaxBracket {
		return payroll.TaxBracket{
			Title:       title,
			IncomeFrom:  decimal.RequireFromString(from),
			IncomeTo:    decimal.RequireFromString(to),
			FixedAmount: decimal.RequireFromString(fixed),
			Percentage:  decimal.RequireFromString(pct),
			IsActive:    true,
		}
	}
	return []payroll.TaxBracket{
		bracket("Tax free", "0", "1000", "0", "0"),
		bracket("Basic rate", "1000.01", "4000", "0", "10"),
		bracket("Higher rate", "4000.01", "10000", "300", "20"),
		bracket("Top rate", "10000.01", "999999999", "1500", "30"),
	}
}

// Seed loads the default payroll catalog. Existing rows are left untouched
// and brackets are only inserted into an empty table.
func Seed(ctx context.Context, pool *pgxpool.Pool) error {
	if err := ensureBenefitTypes(ctx, pool); err != nil {
		return err
	}
	if err := ensureWithholdingTypes(ctx, pool); err != nil {
		return err
	}
	return ensureTaxBrackets(ctx, pool)
}

func ensureBenefitTypes(ctx context.Context, pool *pgxpool.Pool) error {
	for _, item := range DefaultBenefitTypes() {
		if _, err := pool.Exec(ctx, "INSERT INTO benefit_types (title, is_taxable) VALUES ($1, $2) ON CONFLICT (title) DO NOTHING", item.Title, item.IsTaxable); err != nil {
			return err
		}
	}
	return nil
}

func ensureWithholdingTypes(ctx context.Context, pool *pgxpool.Pool) error {
	for _, item := range DefaultWithholdingTypes() {
		if _, err := pool.Exec(ctx, "INSERT INTO withholding_types (title, is_statutory) VALUES ($1, $2) ON CONFLICT (title) DO NOTHING", item.Title, item.IsStatutory); err != nil {
			return err
		}
	}
	return nil
}

func ensureTaxBrackets(ctx context.Context, pool *pgxpool.Pool) error {
	var count int
	if err := pool.QueryRow(ctx, "SELECT COUNT(1) FROM tax_brackets").Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	for _, b := range DefaultTaxBrackets() {
		if _, err := pool.Exec(ctx, `
      INSERT INTO tax_brackets (title, income_from, income_to, fixed_amount, percentage)
      VALUES ($1, $2, $3, $4, $5)
    `, b.Title, b.IncomeFrom.String(), b.IncomeTo.String(), b.FixedAmount.String(), b.Percentage.String()); err != nil {
			return err
		}
	}
	return nil
}
