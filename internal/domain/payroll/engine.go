package payroll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// SlipStore is the persistence the engine needs for its duplicate guard and
// the atomic slip write.
type SlipStore interface {
	// FindActiveSlip returns nil when the pair holds no non-cancelled slip.
	FindActiveSlip(ctx context.Context, employeeID int64, period Period) (*SalarySlip, error)
	// CreateSlip writes the slip and its lines atomically. A uniqueness
	// violation must surface as a *DuplicateSlipError.
	CreateSlip(ctx context.Context, slip SalarySlip) error
}

type EngineOptions struct {
	TaxBasis       string
	StrictTaxTable bool
	Now            func() time.Time
	NewID          func() string
	Logger         *slog.Logger
}

type Engine struct {
	slips      SlipStore
	aggregator *Aggregator
	opts       EngineOptions
	locks      *keyedMutex
}

func NewEngine(slips SlipStore, records RecordSource, opts EngineOptions) *Engine {
	if !ValidTaxBasis(opts.TaxBasis) {
		opts.TaxBasis = TaxBasisPeriod
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Engine{
		slips:      slips,
		aggregator: NewAggregator(records),
		opts:       opts,
		locks:      newKeyedMutex(),
	}
}

func (e *Engine) TaxBasis() string {
	return e.opts.TaxBasis
}

// Generate computes and persists the employee's slip for the period. Calls for
// the same employee and period are serialized, and a second call fails with a
// *DuplicateSlipError while the first slip is not cancelled.
func (e *Engine) Generate(ctx context.Context, employee Employee, period Period, catalog Catalog) (SalarySlip, error) {
	if period.IsZero() {
		return SalarySlip{}, ErrInvalidPeriod
	}
	if !employee.IsActive {
		return SalarySlip{}, fmt.Errorf("%w: employee %d", ErrEmployeeInactive, employee.ID)
	}

	unlock := e.locks.Lock(slipKey(employee.ID, period))
	defer unlock()

	existing, err := e.slips.FindActiveSlip(ctx, employee.ID, period)
	if err != nil {
		return SalarySlip{}, &PersistenceError{Op: "find active slip", Err: err}
	}
	if existing != nil {
		return SalarySlip{}, &DuplicateSlipError{EmployeeID: employee.ID, Period: period, SlipID: existing.ID}
	}

	slip, err := e.Compute(ctx, employee, period, catalog)
	if err != nil {
		return SalarySlip{}, err
	}

	if err := e.slips.CreateSlip(ctx, slip); err != nil {
		if errors.Is(err, ErrDuplicateSlip) {
			return SalarySlip{}, err
		}
		return SalarySlip{}, &PersistenceError{Op: "create slip", Err: err}
	}
	return slip, nil
}

// Compute builds the slip without touching the duplicate guard or storage.
func (e *Engine) Compute(ctx context.Context, employee Employee, period Period, catalog Catalog) (SalarySlip, error) {
	compensation, err := e.aggregator.Aggregate(ctx, employee, period, catalog)
	if err != nil {
		if errors.Is(err, ErrInvalidRecord) {
			return SalarySlip{}, err
		}
		return SalarySlip{}, &PersistenceError{Op: "load compensation records", Err: err}
	}

	basic := RoundMoney(employee.BaseSalary)
	totalEarnings := basic.Add(compensation.TotalBenefits())

	resolution := ResolveForBasis(totalEarnings, e.opts.TaxBasis, catalog.TaxBrackets)
	if !resolution.Resolved() {
		if e.opts.StrictTaxTable {
			return SalarySlip{}, &MisconfiguredTaxTableError{Income: resolution.Income.StringFixed(moneyPlaces), Matches: resolution.Matches}
		}
		e.opts.Logger.Warn("tax bracket not uniquely resolved",
			"employeeId", employee.ID,
			"period", period.String(),
			"income", resolution.Income.StringFixed(moneyPlaces),
			"matches", resolution.Matches,
		)
	}

	deductions := make([]LineItem, 0, len(compensation.Deductions)+1)
	deductions = append(deductions, compensation.Deductions...)
	if resolution.Tax.IsPositive() {
		taxLine := LineItem{Name: IncomeTaxLineName, Amount: resolution.Tax, Statutory: true}
		if resolution.Bracket != nil {
			taxLine.RecordID = resolution.Bracket.ID
		}
		deductions = append(deductions, taxLine)
	}
	benefits := compensation.Benefits
	if benefits == nil {
		benefits = []LineItem{}
	}

	totalDeductions := SumLines(deductions)
	net := totalEarnings.Sub(totalDeductions)

	warnings := append([]string(nil), resolution.Warnings...)
	if net.IsNegative() {
		warnings = append(warnings, WarningNegativeNet)
		e.opts.Logger.Warn("negative net payable",
			"employeeId", employee.ID,
			"period", period.String(),
			"net", net.StringFixed(moneyPlaces),
		)
	}

	slip := SalarySlip{
		ID:              e.opts.NewID(),
		EmployeeID:      employee.ID,
		Period:          period,
		BasicSalary:     basic,
		Benefits:        benefits,
		Deductions:      deductions,
		TotalEarnings:   totalEarnings,
		TotalDeductions: totalDeductions,
		StatutoryTax:    resolution.Tax,
		TaxBasis:        e.opts.TaxBasis,
		NetPayable:      net,
		Warnings:        warnings,
		Status:          SlipStatusGenerated,
		GeneratedAt:     e.opts.Now().UTC(),
	}
	if resolution.Bracket != nil {
		bracketID := resolution.Bracket.ID
		slip.TaxBracketID = &bracketID
	}
	slip.Reference = SlipReference(period, employee.ID, slip.ID)
	return slip, nil
}
