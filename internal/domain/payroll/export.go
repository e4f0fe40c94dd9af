package payroll

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const (
	ExportFormatCSV  = "csv"
	ExportFormatXLSX = "xlsx"

	registerSheet = "Register"
)

type RegisterRow struct {
	EmployeeID      int64
	EmployeeName    string
	Reference       string
	Status          string
	BasicSalary     decimal.Decimal
	TotalBenefits   decimal.Decimal
	TotalEarnings   decimal.Decimal
	TotalDeductions decimal.Decimal
	StatutoryTax    decimal.Decimal
	NetPayable      decimal.Decimal
	Warnings        []string
}

func NewRegisterRow(slip SalarySlip, employeeName string) RegisterRow {
	return RegisterRow{
		EmployeeID:      slip.EmployeeID,
		EmployeeName:    employeeName,
		Reference:       slip.Reference,
		Status:          slip.Status,
		BasicSalary:     slip.BasicSalary,
		TotalBenefits:   SumLines(slip.Benefits),
		TotalEarnings:   slip.TotalEarnings,
		TotalDeductions: slip.TotalDeductions,
		StatutoryTax:    slip.StatutoryTax,
		NetPayable:      slip.NetPayable,
		Warnings:        slip.Warnings,
	}
}

var registerHeader = []string{
	"employee_id", "employee_name", "slip_reference", "status",
	"basic_salary", "benefits", "total_earnings", "total_deductions", "income_tax", "net_payable", "warnings",
}

func (r RegisterRow) record() []string {
	return []string{
		strconv.FormatInt(r.EmployeeID, 10),
		r.EmployeeName,
		r.Reference,
		r.Status,
		r.BasicSalary.StringFixed(moneyPlaces),
		r.TotalBenefits.StringFixed(moneyPlaces),
		r.TotalEarnings.StringFixed(moneyPlaces),
		r.TotalDeductions.StringFixed(moneyPlaces),
		r.StatutoryTax.StringFixed(moneyPlaces),
		r.NetPayable.StringFixed(moneyPlaces),
		strings.Join(r.Warnings, ";"),
	}
}

func WriteRegisterCSV(w io.Writer, rows []RegisterRow) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(registerHeader); err != nil {
		return err
	}
	for _, row := range rows {
		if err := writer.Write(row.record()); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteRegisterXLSX renders the register as a single-sheet workbook with a
// totals row under the data.
func WriteRegisterXLSX(w io.Writer, period Period, rows []RegisterRow) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	index, err := f.NewSheet(registerSheet)
	if err != nil {
		return err
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return err
	}
	f.SetActiveSheet(index)

	for i, header := range registerHeader {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(registerSheet, cell, header); err != nil {
			return err
		}
	}

	totals := make([]decimal.Decimal, 6)
	for r, row := range rows {
		line := r + 2
		values := []any{
			row.EmployeeID,
			row.EmployeeName,
			row.Reference,
			row.Status,
			row.BasicSalary.InexactFloat64(),
			row.TotalBenefits.InexactFloat64(),
			row.TotalEarnings.InexactFloat64(),
			row.TotalDeductions.InexactFloat64(),
			row.StatutoryTax.InexactFloat64(),
			row.NetPayable.InexactFloat64(),
			strings.Join(row.Warnings, ";"),
		}
		if err := setRow(f, line, values); err != nil {
			return err
		}
		for i, amount := range []decimal.Decimal{row.BasicSalary, row.TotalBenefits, row.TotalEarnings, row.TotalDeductions, row.StatutoryTax, row.NetPayable} {
			totals[i] = totals[i].Add(amount)
		}
	}

	totalRow := []any{fmt.Sprintf("Total %s", period), "", "", ""}
	for _, total := range totals {
		totalRow = append(totalRow, total.InexactFloat64())
	}
	if err := setRow(f, len(rows)+2, totalRow); err != nil {
		return err
	}
	return f.Write(w)
}

func setRow(f *excelize.File, line int, values []any) error {
	for i, value := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, line)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(registerSheet, cell, value); err != nil {
			return err
		}
	}
	return nil
}
