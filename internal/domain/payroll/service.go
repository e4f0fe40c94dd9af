package payroll

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const pageSize = 500

type Service struct {
	store       StoreAPI
	engine      *Engine
	coordinator *Coordinator
	now         func() time.Time
}

func NewService(store StoreAPI, opts EngineOptions, workers int) *Service {
	engine := NewEngine(store, store, opts)
	return &Service{
		store:       store,
		engine:      engine,
		coordinator: NewCoordinator(store, store, engine, workers),
		now:         engine.opts.Now,
	}
}

func (s *Service) Store() StoreAPI {
	return s.store
}

func (s *Service) TaxBasis() string {
	return s.engine.TaxBasis()
}

// GenerateSlip runs the engine for a single employee with a fresh catalog.
func (s *Service) GenerateSlip(ctx context.Context, employeeID int64, period Period) (SalarySlip, error) {
	employees, err := s.store.GetEmployees(ctx, []int64{employeeID})
	if err != nil {
		return SalarySlip{}, &PersistenceError{Op: "load employee", Err: err}
	}
	if len(employees) == 0 {
		return SalarySlip{}, fmt.Errorf("%w: %d", ErrEmployeeNotFound, employeeID)
	}
	catalog, err := s.coordinator.LoadCatalog(ctx)
	if err != nil {
		return SalarySlip{}, &PersistenceError{Op: "load catalog", Err: err}
	}
	return s.engine.Generate(ctx, employees[0], period, catalog)
}

func (s *Service) RunPayroll(ctx context.Context, req BatchRequest) (RunResult, error) {
	return s.coordinator.RunBatch(ctx, req)
}

func (s *Service) ListSlips(ctx context.Context, filter SlipFilter, limit, offset int) ([]SalarySlip, int, error) {
	total, err := s.store.CountSlips(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	slips, err := s.store.ListSlips(ctx, filter, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return slips, total, nil
}

func (s *Service) GetSlip(ctx context.Context, slipID string) (SalarySlip, error) {
	return s.store.GetSlip(ctx, slipID)
}

func (s *Service) GetSlipByReference(ctx context.Context, reference string) (SalarySlip, error) {
	return s.store.GetSlipByReference(ctx, reference)
}

type TaxPreview struct {
	Basis string `json:"basis"`
	TaxResolution
}

// PreviewTax resolves a period income against the live tax table without
// generating anything. An empty basis uses the configured one.
func (s *Service) PreviewTax(ctx context.Context, income decimal.Decimal, basis string) (TaxPreview, error) {
	if basis == "" {
		basis = s.engine.TaxBasis()
	}
	if !ValidTaxBasis(basis) {
		return TaxPreview{}, fmt.Errorf("%w: %q", ErrInvalidTaxBasis, basis)
	}
	brackets, err := s.store.ListTaxBrackets(ctx)
	if err != nil {
		return TaxPreview{}, err
	}
	return TaxPreview{Basis: basis, TaxResolution: ResolveForBasis(income, basis, brackets)}, nil
}

func (s *Service) MarkPaid(ctx context.Context, slipID string) (SalarySlip, error) {
	return s.transition(ctx, slipID, SlipStatusPaid)
}

// Cancel frees the employee and period for a fresh generation.
func (s *Service) Cancel(ctx context.Context, slipID string) (SalarySlip, error) {
	return s.transition(ctx, slipID, SlipStatusCancelled)
}

func (s *Service) transition(ctx context.Context, slipID, to string) (SalarySlip, error) {
	current, err := s.store.GetSlip(ctx, slipID)
	if err != nil {
		return SalarySlip{}, err
	}
	if current.Status != SlipStatusGenerated {
		return SalarySlip{}, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, current.Status, to)
	}
	updated, err := s.store.UpdateSlipStatus(ctx, slipID, SlipStatusGenerated, to, s.now().UTC())
	if errors.Is(err, ErrInvalidTransition) {
		return SalarySlip{}, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, current.Status, to)
	}
	return updated, err
}

// PeriodSlips returns every non-cancelled slip of the period ordered by employee.
func (s *Service) PeriodSlips(ctx context.Context, period Period) ([]SalarySlip, error) {
	filter := SlipFilter{Period: period}
	var out []SalarySlip
	for offset := 0; ; offset += pageSize {
		page, err := s.store.ListSlips(ctx, filter, pageSize, offset)
		if err != nil {
			return nil, err
		}
		for _, slip := range page {
			if slip.Status != SlipStatusCancelled {
				out = append(out, slip)
			}
		}
		if len(page) < pageSize {
			break
		}
	}
	return out, nil
}

func (s *Service) PeriodSummary(ctx context.Context, period Period) (PeriodSummary, error) {
	slips, err := s.PeriodSlips(ctx, period)
	if err != nil {
		return PeriodSummary{}, err
	}
	return Summarize(period, slips), nil
}

// Summarize totals slips for a period report.
func Summarize(period Period, slips []SalarySlip) PeriodSummary {
	summary := PeriodSummary{
		Period:          period,
		TotalEarnings:   decimal.Zero,
		TotalDeductions: decimal.Zero,
		TotalTax:        decimal.Zero,
		TotalNet:        decimal.Zero,
		Warnings:        map[string]int{},
	}
	for _, slip := range slips {
		summary.SlipCount++
		summary.TotalEarnings = summary.TotalEarnings.Add(slip.TotalEarnings)
		summary.TotalDeductions = summary.TotalDeductions.Add(slip.TotalDeductions)
		summary.TotalTax = summary.TotalTax.Add(slip.StatutoryTax)
		summary.TotalNet = summary.TotalNet.Add(slip.NetPayable)
		for _, code := range slip.Warnings {
			summary.Warnings[code]++
		}
	}
	return summary
}

// SlipDocument loads a slip with its employee for rendering.
func (s *Service) SlipDocument(ctx context.Context, slipID string) (SalarySlip, Employee, error) {
	slip, err := s.store.GetSlip(ctx, slipID)
	if err != nil {
		return SalarySlip{}, Employee{}, err
	}
	employees, err := s.store.GetEmployees(ctx, []int64{slip.EmployeeID})
	if err != nil {
		return SalarySlip{}, Employee{}, err
	}
	employee := Employee{ID: slip.EmployeeID}
	if len(employees) > 0 {
		employee = employees[0]
	}
	return slip, employee, nil
}

func (s *Service) RegisterRows(ctx context.Context, period Period) ([]RegisterRow, error) {
	slips, err := s.PeriodSlips(ctx, period)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(slips))
	for _, slip := range slips {
		ids = append(ids, slip.EmployeeID)
	}
	employees, err := s.store.GetEmployees(ctx, ids)
	if err != nil {
		return nil, err
	}
	names := make(map[int64]string, len(employees))
	for _, employee := range employees {
		names[employee.ID] = employee.Name
	}
	rows := make([]RegisterRow, 0, len(slips))
	for _, slip := range slips {
		rows = append(rows, NewRegisterRow(slip, names[slip.EmployeeID]))
	}
	return rows, nil
}
