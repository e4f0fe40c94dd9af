package payroll

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

const (
	recordKindBenefit   = "benefit"
	recordKindDeduction = "deduction"
)

// Catalog is the read-mostly reference data for one run: type titles and the
// tax table. It is loaded once per invocation and never shared across runs.
type Catalog struct {
	BenefitTypes     map[int64]BenefitType
	WithholdingTypes map[int64]WithholdingType
	TaxBrackets      []TaxBracket
}

func NewCatalog(benefits []BenefitType, withholdings []WithholdingType, brackets []TaxBracket) Catalog {
	catalog := Catalog{
		BenefitTypes:     make(map[int64]BenefitType, len(benefits)),
		WithholdingTypes: make(map[int64]WithholdingType, len(withholdings)),
		TaxBrackets:      append([]TaxBracket(nil), brackets...),
	}
	for _, item := range benefits {
		catalog.BenefitTypes[item.ID] = item
	}
	for _, item := range withholdings {
		catalog.WithholdingTypes[item.ID] = item
	}
	return catalog
}

// RecordSource lists every benefit or deduction record held by an employee.
type RecordSource interface {
	ListBenefitRecords(ctx context.Context, employeeID int64) ([]CompensationRecord, error)
	ListDeductionRecords(ctx context.Context, employeeID int64) ([]CompensationRecord, error)
}

type Compensation struct {
	Benefits   []LineItem `json:"benefits"`
	Deductions []LineItem `json:"deductions"`
}

func (c Compensation) TotalBenefits() decimal.Decimal {
	return SumLines(c.Benefits)
}

func (c Compensation) TotalDeductions() decimal.Decimal {
	return SumLines(c.Deductions)
}

type Aggregator struct {
	records RecordSource
}

func NewAggregator(records RecordSource) *Aggregator {
	return &Aggregator{records: records}
}

// Aggregate collects the employee's records effective for the period and
// prices them against the base salary, ordered by record ID.
func (a *Aggregator) Aggregate(ctx context.Context, employee Employee, period Period, catalog Catalog) (Compensation, error) {
	benefitRecords, err := a.records.ListBenefitRecords(ctx, employee.ID)
	if err != nil {
		return Compensation{}, fmt.Errorf("list benefit records: %w", err)
	}
	deductionRecords, err := a.records.ListDeductionRecords(ctx, employee.ID)
	if err != nil {
		return Compensation{}, fmt.Errorf("list deduction records: %w", err)
	}

	var out Compensation
	for _, record := range applicable(benefitRecords, period) {
		kind, ok := catalog.BenefitTypes[record.TypeID]
		if !ok {
			return Compensation{}, &InvalidRecordError{Kind: recordKindBenefit, RecordID: record.ID, Reason: fmt.Sprintf("unknown benefit type %d", record.TypeID)}
		}
		if !kind.IsActive {
			continue
		}
		amount, err := priceRecord(recordKindBenefit, record, employee.BaseSalary)
		if err != nil {
			return Compensation{}, err
		}
		out.Benefits = append(out.Benefits, lineFor(record, kind.Title, amount, kind.IsTaxable, false))
	}

	for _, record := range applicable(deductionRecords, period) {
		kind, ok := catalog.WithholdingTypes[record.TypeID]
		if !ok {
			return Compensation{}, &InvalidRecordError{Kind: recordKindDeduction, RecordID: record.ID, Reason: fmt.Sprintf("unknown withholding type %d", record.TypeID)}
		}
		if !kind.IsActive {
			continue
		}
		amount, err := priceRecord(recordKindDeduction, record, employee.BaseSalary)
		if err != nil {
			return Compensation{}, err
		}
		out.Deductions = append(out.Deductions, lineFor(record, kind.Title, amount, false, kind.IsStatutory))
	}
	return out, nil
}

func applicable(records []CompensationRecord, period Period) []CompensationRecord {
	out := make([]CompensationRecord, 0, len(records))
	for _, record := range records {
		if record.AppliesTo(period) {
			out = append(out, record)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func priceRecord(kind string, record CompensationRecord, baseSalary decimal.Decimal) (decimal.Decimal, error) {
	switch record.CalculationType {
	case CalculationFixed:
		if record.Amount.IsNegative() {
			return decimal.Zero, &InvalidRecordError{Kind: kind, RecordID: record.ID, Reason: "fixed amount is negative"}
		}
		return RoundMoney(record.Amount), nil
	case CalculationPercentage:
		if record.Amount.IsNegative() || record.Amount.GreaterThan(hundred) {
			return decimal.Zero, &InvalidRecordError{Kind: kind, RecordID: record.ID, Reason: "percentage outside 0-100"}
		}
		if !baseSalary.IsPositive() {
			return decimal.Zero, nil
		}
		return PercentOf(baseSalary, record.Amount), nil
	default:
		return decimal.Zero, &InvalidRecordError{Kind: kind, RecordID: record.ID, Reason: fmt.Sprintf("unknown calculation type %q", record.CalculationType)}
	}
}

func lineFor(record CompensationRecord, name string, amount decimal.Decimal, taxable, statutory bool) LineItem {
	line := LineItem{
		RecordID:        record.ID,
		Name:            name,
		Amount:          amount,
		CalculationType: record.CalculationType,
		Taxable:         taxable,
		Statutory:       statutory,
	}
	if record.CalculationType == CalculationPercentage {
		line.Rate = record.Amount
	}
	return line
}
