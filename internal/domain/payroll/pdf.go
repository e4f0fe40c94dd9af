package payroll

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

// RenderSlipPDF draws a one-page payslip. The document is built in memory and
// never written to disk.
func RenderSlipPDF(slip SalarySlip, employee Employee) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(40, 10, "Payslip")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 11)
	name := employee.Name
	if name == "" {
		name = fmt.Sprintf("#%d", slip.EmployeeID)
	}
	pdf.Cell(0, 7, fmt.Sprintf("Employee: %s", name))
	pdf.Ln(6)
	pdf.Cell(0, 7, fmt.Sprintf("Reference: %s", slip.Reference))
	pdf.Ln(6)
	pdf.Cell(0, 7, fmt.Sprintf("Period: %s to %s", slip.Period.Start().Format("2006-01-02"), slip.Period.End().Format("2006-01-02")))
	pdf.Ln(6)
	pdf.Cell(0, 7, fmt.Sprintf("Status: %s", slip.Status))
	pdf.Ln(10)

	section(pdf, "Earnings")
	amountRow(pdf, "Basic salary", slip.BasicSalary.StringFixed(moneyPlaces))
	for _, line := range slip.Benefits {
		amountRow(pdf, line.Name, line.Amount.StringFixed(moneyPlaces))
	}
	totalRow(pdf, "Total earnings", slip.TotalEarnings.StringFixed(moneyPlaces))
	pdf.Ln(4)

	section(pdf, "Deductions")
	for _, line := range slip.Deductions {
		amountRow(pdf, line.Name, line.Amount.StringFixed(moneyPlaces))
	}
	totalRow(pdf, "Total deductions", slip.TotalDeductions.StringFixed(moneyPlaces))
	pdf.Ln(4)

	totalRow(pdf, "Net payable", slip.NetPayable.StringFixed(moneyPlaces))
	if len(slip.Warnings) > 0 {
		pdf.Ln(6)
		pdf.SetFont("Helvetica", "I", 9)
		for _, warning := range slip.Warnings {
			pdf.Cell(0, 5, "Warning: "+warning)
			pdf.Ln(5)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func section(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, title)
	pdf.Ln(8)
}

func amountRow(pdf *gofpdf.Fpdf, label, amount string) {
	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(120, 7, label, "", 0, "L", false, 0, "")
	pdf.CellFormat(50, 7, amount, "", 1, "R", false, 0, "")
}

func totalRow(pdf *gofpdf.Fpdf, label, amount string) {
	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(120, 7, label, "T", 0, "L", false, 0, "")
	pdf.CellFormat(50, 7, amount, "T", 1, "R", false, 0, "")
}
