package payroll

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleSlip() SalarySlip {
	bracketID := int64(2)
	return SalarySlip{
		ID:              "slip-1",
		EmployeeID:      7,
		Reference:       "SLIP-202403-7-abcdef12",
		Period:          Period{Year: 2024, Month: time.March},
		BasicSalary:     dec("1000"),
		Benefits:        []LineItem{{Name: "Housing Allowance", Amount: dec("200")}},
		Deductions:      []LineItem{{Name: "Pension", Amount: dec("150")}, {Name: IncomeTaxLineName, Amount: dec("20"), Statutory: true}},
		TotalEarnings:   dec("1200"),
		TotalDeductions: dec("170"),
		StatutoryTax:    dec("20"),
		TaxBracketID:    &bracketID,
		TaxBasis:        TaxBasisPeriod,
		NetPayable:      dec("1030"),
		Warnings:        []string{WarningTaxBracketOverlap},
		Status:          SlipStatusGenerated,
		GeneratedAt:     time.Date(2024, time.March, 31, 12, 0, 0, 0, time.UTC),
	}
}

func TestWriteRegisterCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteRegisterCSV(&buf, []RegisterRow{NewRegisterRow(sampleSlip(), "Ada")}))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, registerHeader, records[0])
	assert.Equal(t, []string{
		"7", "Ada", "SLIP-202403-7-abcdef12", "generated",
		"1000.00", "200.00", "1200.00", "170.00", "20.00", "1030.00", "tax_bracket_overlap",
	}, records[1])
}

func TestWriteRegisterXLSX(t *testing.T) {
	period := Period{Year: 2024, Month: time.March}
	rows := []RegisterRow{NewRegisterRow(sampleSlip(), "Ada"), NewRegisterRow(sampleSlip(), "Grace")}

	var buf bytes.Buffer
	require.NoError(t, WriteRegisterXLSX(&buf, period, rows))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	assert.Equal(t, []string{registerSheet}, f.GetSheetList())
	name, err := f.GetCellValue(registerSheet, "B3")
	require.NoError(t, err)
	assert.Equal(t, "Grace", name)
	label, err := f.GetCellValue(registerSheet, "A4")
	require.NoError(t, err)
	assert.Equal(t, "Total 2024-03", label)
	net, err := f.GetCellValue(registerSheet, "J4")
	require.NoError(t, err)
	assert.Equal(t, "2060", net)
}

func TestRenderSlipPDF(t *testing.T) {
	document, err := RenderSlipPDF(sampleSlip(), Employee{ID: 7, Name: "Ada"})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(document, []byte("%PDF-")), "expected a PDF header")

	anonymous, err := RenderSlipPDF(sampleSlip(), Employee{})
	require.NoError(t, err)
	assert.NotEmpty(t, anonymous)
}
