package payroll_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hrpay/internal/domain/payroll"
)

func TestServiceTransitions(t *testing.T) {
	f := newFixture(t)
	emp := f.employee("1000")
	svc := f.service()

	slip, err := svc.GenerateSlip(t.Context(), emp.ID, march2024)
	require.NoError(t, err)

	paid, err := svc.MarkPaid(t.Context(), slip.ID)
	require.NoError(t, err)
	assert.Equal(t, payroll.SlipStatusPaid, paid.Status)
	require.NotNil(t, paid.PaidAt)
	assert.Equal(t, fixedNow, *paid.PaidAt)

	_, err = svc.Cancel(t.Context(), slip.ID)
	assert.True(t, errors.Is(err, payroll.ErrInvalidTransition), "paid slips cannot be cancelled, got %v", err)
	_, err = svc.MarkPaid(t.Context(), slip.ID)
	assert.ErrorIs(t, err, payroll.ErrInvalidTransition)

	_, err = svc.MarkPaid(t.Context(), "missing")
	assert.ErrorIs(t, err, payroll.ErrSlipNotFound)
}

func TestServiceCancelFreesPeriod(t *testing.T) {
	f := newFixture(t)
	emp := f.employee("1000")
	svc := f.service()

	first, err := svc.GenerateSlip(t.Context(), emp.ID, march2024)
	require.NoError(t, err)
	_, err = svc.GenerateSlip(t.Context(), emp.ID, march2024)
	require.ErrorIs(t, err, payroll.ErrDuplicateSlip)

	cancelled, err := svc.Cancel(t.Context(), first.ID)
	require.NoError(t, err)
	assert.Equal(t, payroll.SlipStatusCancelled, cancelled.Status)

	second, err := svc.GenerateSlip(t.Context(), emp.ID, march2024)
	require.NoError(t, err)
	assert.NotEqual(t, first.Reference, second.Reference)

	byRef, err := svc.GetSlipByReference(t.Context(), second.Reference)
	require.NoError(t, err)
	assert.Equal(t, second.ID, byRef.ID)
}

func TestServiceGenerateUnknownEmployee(t *testing.T) {
	f := newFixture(t)
	_, err := f.service().GenerateSlip(t.Context(), 404, march2024)
	assert.ErrorIs(t, err, payroll.ErrEmployeeNotFound)
}

func TestServiceListAndSummary(t *testing.T) {
	f := newFixture(t)
	a := f.employee("1000")
	b := f.employee("2000")
	c := f.employee("500")
	f.deduction(c.ID, f.pension.ID, payroll.CalculationFixed, "700")
	svc := f.service()

	var slips []payroll.SalarySlip
	for _, emp := range []payroll.Employee{a, b, c} {
		slip, err := svc.GenerateSlip(t.Context(), emp.ID, march2024)
		require.NoError(t, err)
		slips = append(slips, slip)
	}
	_, err := svc.Cancel(t.Context(), slips[0].ID)
	require.NoError(t, err)

	page, total, err := svc.ListSlips(t.Context(), payroll.SlipFilter{Period: march2024}, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, page, 2)

	summary, err := svc.PeriodSummary(t.Context(), march2024)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.SlipCount)
	// b: 2000 earnings, 100 tax; c: 500 earnings, 700 deducted, no tax
	assert.Equal(t, "2500.00", summary.TotalEarnings.StringFixed(2))
	assert.Equal(t, "800.00", summary.TotalDeductions.StringFixed(2))
	assert.Equal(t, "100.00", summary.TotalTax.StringFixed(2))
	assert.Equal(t, "1700.00", summary.TotalNet.StringFixed(2))
	assert.Equal(t, 1, summary.Warnings[payroll.WarningNegativeNet])

	rows, err := svc.RegisterRows(t.Context(), march2024)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Employee 2000", rows[0].EmployeeName)
}

func TestServicePreviewTax(t *testing.T) {
	f := newFixture(t)
	svc := f.service()

	preview, err := svc.PreviewTax(t.Context(), d("3000"), "")
	require.NoError(t, err)
	assert.Equal(t, payroll.TaxBasisPeriod, preview.Basis)
	assert.Equal(t, "200.00", preview.Tax.StringFixed(2))

	preview, err = svc.PreviewTax(t.Context(), d("3000"), payroll.TaxBasisAnnual)
	require.NoError(t, err)
	assert.Equal(t, "291.67", preview.Tax.StringFixed(2))

	_, err = svc.PreviewTax(t.Context(), d("3000"), "weekly")
	assert.ErrorIs(t, err, payroll.ErrInvalidTaxBasis)
}

func TestServiceSlipDocument(t *testing.T) {
	f := newFixture(t)
	emp := f.employee("1000")
	svc := f.service()
	slip, err := svc.GenerateSlip(t.Context(), emp.ID, march2024)
	require.NoError(t, err)

	loaded, employee, err := svc.SlipDocument(t.Context(), slip.ID)
	require.NoError(t, err)
	assert.Equal(t, slip.ID, loaded.ID)
	assert.Equal(t, "Employee 1000", employee.Name)
}
