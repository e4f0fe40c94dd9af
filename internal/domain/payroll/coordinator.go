package payroll

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

const defaultWorkers = 4

type Roster interface {
	// GetEmployees returns the employees found among ids; missing IDs are omitted.
	GetEmployees(ctx context.Context, ids []int64) ([]Employee, error)
	ListActiveEmployeeIDs(ctx context.Context) ([]int64, error)
}

type CatalogSource interface {
	ListBenefitTypes(ctx context.Context) ([]BenefitType, error)
	ListWithholdingTypes(ctx context.Context) ([]WithholdingType, error)
	ListTaxBrackets(ctx context.Context) ([]TaxBracket, error)
}

type BatchRequest struct {
	EmployeeIDs []int64 `json:"employeeIds"`
	Period      Period  `json:"period"`
	AllActive   bool    `json:"allActive"`
}

type Coordinator struct {
	roster  Roster
	catalog CatalogSource
	engine  *Engine
	workers int
	now     func() time.Time
	logger  *slog.Logger
}

func NewCoordinator(roster Roster, catalog CatalogSource, engine *Engine, workers int) *Coordinator {
	if workers <= 0 {
		workers = defaultWorkers
	}
	return &Coordinator{
		roster:  roster,
		catalog: catalog,
		engine:  engine,
		workers: workers,
		now:     engine.opts.Now,
		logger:  engine.opts.Logger,
	}
}

func (c *Coordinator) Engine() *Engine {
	return c.engine
}

// LoadCatalog snapshots types and brackets for a single run.
func (c *Coordinator) LoadCatalog(ctx context.Context) (Catalog, error) {
	benefits, err := c.catalog.ListBenefitTypes(ctx)
	if err != nil {
		return Catalog{}, fmt.Errorf("load benefit types: %w", err)
	}
	withholdings, err := c.catalog.ListWithholdingTypes(ctx)
	if err != nil {
		return Catalog{}, fmt.Errorf("load withholding types: %w", err)
	}
	brackets, err := c.catalog.ListTaxBrackets(ctx)
	if err != nil {
		return Catalog{}, fmt.Errorf("load tax brackets: %w", err)
	}
	return NewCatalog(benefits, withholdings, brackets), nil
}

type runOutcome struct {
	slip SalarySlip
	err  error
}

// RunBatch generates slips for every requested employee. Per-employee failures
// are collected in the result; only roster or catalog load failures abort.
func (c *Coordinator) RunBatch(ctx context.Context, req BatchRequest) (RunResult, error) {
	if req.Period.IsZero() {
		return RunResult{}, ErrInvalidPeriod
	}
	started := c.now().UTC()

	ids := req.EmployeeIDs
	if req.AllActive {
		active, err := c.roster.ListActiveEmployeeIDs(ctx)
		if err != nil {
			return RunResult{}, fmt.Errorf("list active employees: %w", err)
		}
		ids = active
	}
	ids = uniqueIDs(ids)

	catalog, err := c.LoadCatalog(ctx)
	if err != nil {
		return RunResult{}, err
	}

	employees, err := c.roster.GetEmployees(ctx, ids)
	if err != nil {
		return RunResult{}, fmt.Errorf("load employees: %w", err)
	}
	byID := make(map[int64]Employee, len(employees))
	for _, employee := range employees {
		byID[employee.ID] = employee
	}

	outcomes := make([]runOutcome, len(ids))
	var group errgroup.Group
	group.SetLimit(c.workers)
	for i, id := range ids {
		group.Go(func() error {
			employee, ok := byID[id]
			if !ok {
				outcomes[i] = runOutcome{err: fmt.Errorf("%w: %d", ErrEmployeeNotFound, id)}
				return nil
			}
			slip, err := c.engine.Generate(ctx, employee, req.Period, catalog)
			outcomes[i] = runOutcome{slip: slip, err: err}
			return nil
		})
	}
	_ = group.Wait()

	result := RunResult{
		Period:               req.Period,
		RequestedEmployeeIDs: ids,
		Succeeded:            []SalarySlip{},
		Failed:               []RunFailure{},
		RequestedCount:       len(ids),
		StartedAt:            started,
	}
	for i, outcome := range outcomes {
		if outcome.err != nil {
			result.Failed = append(result.Failed, RunFailure{
				EmployeeID: ids[i],
				Reason:     ReasonFor(outcome.err),
				Message:    outcome.err.Error(),
			})
			continue
		}
		result.Succeeded = append(result.Succeeded, outcome.slip)
		for _, code := range outcome.slip.Warnings {
			result.Warnings = append(result.Warnings, RunWarning{EmployeeID: ids[i], Code: code})
		}
	}
	result.SucceededCount = len(result.Succeeded)
	result.FailedCount = len(result.Failed)
	result.CompletedAt = c.now().UTC()

	c.logger.Info("payroll run completed",
		"period", req.Period.String(),
		"requested", result.RequestedCount,
		"succeeded", result.SucceededCount,
		"failed", result.FailedCount,
	)
	return result, nil
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
