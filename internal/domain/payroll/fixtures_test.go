package payroll_test

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"hrpay/internal/domain/payroll"
	"hrpay/internal/store/memory"
)

var (
	march2024 = payroll.Period{Year: 2024, Month: time.March}
	fixedNow  = time.Date(2024, time.March, 28, 9, 0, 0, 0, time.UTC)
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// fixture holds a seeded memory store: one benefit type, two withholding
// types and a single 10% bracket starting at 1000.
type fixture struct {
	store      *memory.Store
	housing    payroll.BenefitType
	pension    payroll.WithholdingType
	insurance  payroll.WithholdingType
	bracket    payroll.TaxBracket
	logs       *bytes.Buffer
	engineOpts payroll.EngineOptions
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	logs := &bytes.Buffer{}
	f := &fixture{
		store:     store,
		housing:   store.AddBenefitType(payroll.BenefitType{Title: "Housing Allowance", IsTaxable: true, IsActive: true}),
		pension:   store.AddWithholdingType(payroll.WithholdingType{Title: "Pension", IsStatutory: true, IsActive: true}),
		insurance: store.AddWithholdingType(payroll.WithholdingType{Title: "Health Insurance", IsStatutory: true, IsActive: true}),
		bracket: store.AddTaxBracket(payroll.TaxBracket{
			Title:       "Standard",
			IncomeFrom:  d("1000"),
			IncomeTo:    d("100000"),
			FixedAmount: decimal.Zero,
			Percentage:  d("10"),
			IsActive:    true,
		}),
		logs: logs,
	}
	store.AddTaxBracket(payroll.TaxBracket{Title: "Exempt", IncomeFrom: decimal.Zero, IncomeTo: d("999.99"), IsActive: true})
	f.engineOpts = payroll.EngineOptions{
		Now:    func() time.Time { return fixedNow },
		Logger: slog.New(slog.NewTextHandler(logs, nil)),
	}
	return f
}

func (f *fixture) employee(base string) payroll.Employee {
	return f.store.AddEmployee(payroll.Employee{Name: "Employee " + base, BaseSalary: d(base), IsActive: true})
}

func (f *fixture) benefit(employeeID int64, calc, amount string) {
	f.store.AddBenefitRecord(payroll.CompensationRecord{
		EmployeeID: employeeID, TypeID: f.housing.ID, CalculationType: calc, Amount: d(amount), IsActive: true,
	})
}

func (f *fixture) deduction(employeeID int64, typeID int64, calc, amount string) {
	f.store.AddDeductionRecord(payroll.CompensationRecord{
		EmployeeID: employeeID, TypeID: typeID, CalculationType: calc, Amount: d(amount), IsActive: true,
	})
}

func (f *fixture) engine() *payroll.Engine {
	return payroll.NewEngine(f.store, f.store, f.engineOpts)
}

func (f *fixture) service() *payroll.Service {
	return payroll.NewService(f.store, f.engineOpts, 3)
}

func (f *fixture) catalog(t *testing.T) payroll.Catalog {
	t.Helper()
	catalog, err := payroll.NewCoordinator(f.store, f.store, f.engine(), 1).LoadCatalog(t.Context())
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}
	return catalog
}
