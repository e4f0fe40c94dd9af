package payroll

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type Employee struct {
	ID         int64           `json:"id"`
	Name       string          `json:"name,omitempty"`
	BaseSalary decimal.Decimal `json:"baseSalary"`
	IsActive   bool            `json:"isActive"`
}

type BenefitType struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	IsTaxable bool   `json:"isTaxable"`
	IsActive  bool   `json:"isActive"`
}

type WithholdingType struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	IsStatutory bool   `json:"isStatutory"`
	IsActive    bool   `json:"isActive"`
}

// CompensationRecord is a benefit or deduction assigned to one employee.
type CompensationRecord struct {
	ID              int64           `json:"id"`
	EmployeeID      int64           `json:"employeeId"`
	TypeID          int64           `json:"typeId"`
	CalculationType string          `json:"calculationType"`
	Amount          decimal.Decimal `json:"amount"`
	EffectiveFrom   *time.Time      `json:"effectiveFrom,omitempty"`
	EffectiveUntil  *time.Time      `json:"effectiveUntil,omitempty"`
	IsActive        bool            `json:"isActive"`
}

// AppliesTo reports whether the record is active and effective for the period.
func (r CompensationRecord) AppliesTo(period Period) bool {
	return r.IsActive && period.Covers(r.EffectiveFrom, r.EffectiveUntil)
}

type TaxBracket struct {
	ID          int64           `json:"id"`
	Title       string          `json:"title"`
	IncomeFrom  decimal.Decimal `json:"incomeFrom"`
	IncomeTo    decimal.Decimal `json:"incomeTo"`
	FixedAmount decimal.Decimal `json:"fixedAmount"`
	Percentage  decimal.Decimal `json:"percentage"`
	IsActive    bool            `json:"isActive"`
}

func (b TaxBracket) Contains(income decimal.Decimal) bool {
	return income.GreaterThanOrEqual(b.IncomeFrom) && income.LessThanOrEqual(b.IncomeTo)
}

type LineItem struct {
	RecordID        int64           `json:"recordId,omitempty"`
	Name            string          `json:"name"`
	Amount          decimal.Decimal `json:"amount"`
	CalculationType string          `json:"calculationType,omitempty"`
	Rate            decimal.Decimal `json:"rate,omitzero"`
	Taxable         bool            `json:"taxable,omitempty"`
	Statutory       bool            `json:"statutory,omitempty"`
}

type SalarySlip struct {
	ID              string          `json:"id"`
	EmployeeID      int64           `json:"employeeId"`
	Reference       string          `json:"slipReference"`
	Period          Period          `json:"salaryPeriod"`
	BasicSalary     decimal.Decimal `json:"basicSalary"`
	Benefits        []LineItem      `json:"benefitsBreakdown"`
	Deductions      []LineItem      `json:"deductionsBreakdown"`
	TotalEarnings   decimal.Decimal `json:"totalEarnings"`
	TotalDeductions decimal.Decimal `json:"totalDeductions"`
	StatutoryTax    decimal.Decimal `json:"statutoryTax"`
	TaxBracketID    *int64          `json:"taxBracketId,omitempty"`
	TaxBasis        string          `json:"taxBasis"`
	NetPayable      decimal.Decimal `json:"netPayable"`
	Warnings        []string        `json:"warnings,omitempty"`
	Status          string          `json:"status"`
	GeneratedAt     time.Time       `json:"generatedAt"`
	PaidAt          *time.Time      `json:"paidAt,omitempty"`
	CancelledAt     *time.Time      `json:"cancelledAt,omitempty"`
}

// SlipFilter narrows slip listings. Zero values are ignored.
type SlipFilter struct {
	Period     Period
	EmployeeID int64
	Status     string
}

type RunFailure struct {
	EmployeeID int64  `json:"employeeId"`
	Reason     string `json:"reason"`
	Message    string `json:"message"`
}

type RunWarning struct {
	EmployeeID int64  `json:"employeeId"`
	Code       string `json:"code"`
}

type RunResult struct {
	Period               Period       `json:"period"`
	RequestedEmployeeIDs []int64      `json:"requestedEmployeeIds"`
	Succeeded            []SalarySlip `json:"succeeded"`
	Failed               []RunFailure `json:"failed"`
	Warnings             []RunWarning `json:"warnings,omitempty"`
	RequestedCount       int          `json:"requestedCount"`
	SucceededCount       int          `json:"succeededCount"`
	FailedCount          int          `json:"failedCount"`
	StartedAt            time.Time    `json:"startedAt"`
	CompletedAt          time.Time    `json:"completedAt"`
}

func (r RunResult) Summary() string {
	return fmt.Sprintf("Successfully generated for %d of %d employees", r.SucceededCount, r.RequestedCount)
}

type PeriodSummary struct {
	Period          Period          `json:"period"`
	SlipCount       int             `json:"slipCount"`
	TotalEarnings   decimal.Decimal `json:"totalEarnings"`
	TotalDeductions decimal.Decimal `json:"totalDeductions"`
	TotalTax        decimal.Decimal `json:"totalTax"`
	TotalNet        decimal.Decimal `json:"totalNet"`
	Warnings        map[string]int  `json:"warnings"`
}
