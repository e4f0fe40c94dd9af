// Package memory provides an in-process payroll.StoreAPI for tests and demos.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"hrpay/internal/domain/payroll"
)

type Store struct {
	mu           sync.RWMutex
	employees    map[int64]payroll.Employee
	benefitTypes map[int64]payroll.BenefitType
	withholdings map[int64]payroll.WithholdingType
	brackets     map[int64]payroll.TaxBracket
	benefits     map[int64][]payroll.CompensationRecord
	deductions   map[int64][]payroll.CompensationRecord
	slips        map[string]payroll.SalarySlip
	nextID       int64

	// CreateErr, when set, fails every CreateSlip call.
	CreateErr error
}

var _ payroll.StoreAPI = (*Store)(nil)

func New() *Store {
	return &Store{
		employees:    make(map[int64]payroll.Employee),
		benefitTypes: make(map[int64]payroll.BenefitType),
		withholdings: make(map[int64]payroll.WithholdingType),
		brackets:     make(map[int64]payroll.TaxBracket),
		benefits:     make(map[int64][]payroll.CompensationRecord),
		deductions:   make(map[int64][]payroll.CompensationRecord),
		slips:        make(map[string]payroll.SalarySlip),
	}
}

func (m *Store) id(current int64) int64 {
	if current != 0 {
		if current > m.nextID {
			m.nextID = current
		}
		return current
	}
	m.nextID++
	return m.nextID
}

func (m *Store) AddEmployee(employee payroll.Employee) payroll.Employee {
	m.mu.Lock()
	defer m.mu.Unlock()
	employee.ID = m.id(employee.ID)
	m.employees[employee.ID] = employee
	return employee
}

func (m *Store) AddBenefitType(item payroll.BenefitType) payroll.BenefitType {
	m.mu.Lock()
	defer m.mu.Unlock()
	item.ID = m.id(item.ID)
	m.benefitTypes[item.ID] = item
	return item
}

func (m *Store) AddWithholdingType(item payroll.WithholdingType) payroll.WithholdingType {
	m.mu.Lock()
	defer m.mu.Unlock()
	item.ID = m.id(item.ID)
	m.withholdings[item.ID] = item
	return item
}

func (m *Store) AddTaxBracket(item payroll.TaxBracket) payroll.TaxBracket {
	m.mu.Lock()
	defer m.mu.Unlock()
	item.ID = m.id(item.ID)
	m.brackets[item.ID] = item
	return item
}

func (m *Store) AddBenefitRecord(record payroll.CompensationRecord) payroll.CompensationRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	record.ID = m.id(record.ID)
	m.benefits[record.EmployeeID] = append(m.benefits[record.EmployeeID], record)
	return record
}

func (m *Store) AddDeductionRecord(record payroll.CompensationRecord) payroll.CompensationRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	record.ID = m.id(record.ID)
	m.deductions[record.EmployeeID] = append(m.deductions[record.EmployeeID], record)
	return record
}

func (m *Store) GetEmployees(_ context.Context, ids []int64) ([]payroll.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []payroll.Employee{}
	for _, id := range ids {
		if employee, ok := m.employees[id]; ok {
			out = append(out, employee)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Store) ListActiveEmployeeIDs(_ context.Context) ([]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var ids []int64
	for id, employee := range m.employees {
		if employee.IsActive {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (m *Store) ListBenefitTypes(_ context.Context) ([]payroll.BenefitType, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]payroll.BenefitType, 0, len(m.benefitTypes))
	for _, item := range m.benefitTypes {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Store) ListWithholdingTypes(_ context.Context) ([]payroll.WithholdingType, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]payroll.WithholdingType, 0, len(m.withholdings))
	for _, item := range m.withholdings {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Store) ListTaxBrackets(_ context.Context) ([]payroll.TaxBracket, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]payroll.TaxBracket, 0, len(m.brackets))
	for _, item := range m.brackets {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Store) ListBenefitRecords(_ context.Context, employeeID int64) ([]payroll.CompensationRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]payroll.CompensationRecord(nil), m.benefits[employeeID]...), nil
}

func (m *Store) ListDeductionRecords(_ context.Context, employeeID int64) ([]payroll.CompensationRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]payroll.CompensationRecord(nil), m.deductions[employeeID]...), nil
}

func (m *Store) FindActiveSlip(_ context.Context, employeeID int64, period payroll.Period) (*payroll.SalarySlip, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if slip, ok := m.activeLocked(employeeID, period); ok {
		return &slip, nil
	}
	return nil, nil
}

func (m *Store) activeLocked(employeeID int64, period payroll.Period) (payroll.SalarySlip, bool) {
	for _, slip := range m.slips {
		if slip.EmployeeID == employeeID && slip.Period == period && slip.Status != payroll.SlipStatusCancelled {
			return slip, true
		}
	}
	return payroll.SalarySlip{}, false
}

func (m *Store) CreateSlip(_ context.Context, slip payroll.SalarySlip) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateErr != nil {
		return m.CreateErr
	}
	if existing, ok := m.activeLocked(slip.EmployeeID, slip.Period); ok {
		return &payroll.DuplicateSlipError{EmployeeID: slip.EmployeeID, Period: slip.Period, SlipID: existing.ID}
	}
	m.slips[slip.ID] = cloneSlip(slip)
	return nil
}

func (m *Store) GetSlip(_ context.Context, slipID string) (payroll.SalarySlip, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	slip, ok := m.slips[slipID]
	if !ok {
		return payroll.SalarySlip{}, payroll.ErrSlipNotFound
	}
	return cloneSlip(slip), nil
}

func (m *Store) GetSlipByReference(_ context.Context, reference string) (payroll.SalarySlip, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, slip := range m.slips {
		if slip.Reference == reference {
			return cloneSlip(slip), nil
		}
	}
	return payroll.SalarySlip{}, payroll.ErrSlipNotFound
}

func (m *Store) CountSlips(_ context.Context, filter payroll.SlipFilter) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.filterLocked(filter)), nil
}

func (m *Store) ListSlips(_ context.Context, filter payroll.SlipFilter, limit, offset int) ([]payroll.SalarySlip, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	matched := m.filterLocked(filter)
	if offset >= len(matched) {
		return []payroll.SalarySlip{}, nil
	}
	end := len(matched)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	out := make([]payroll.SalarySlip, 0, end-offset)
	for _, slip := range matched[offset:end] {
		out = append(out, cloneSlip(slip))
	}
	return out, nil
}

func (m *Store) filterLocked(filter payroll.SlipFilter) []payroll.SalarySlip {
	var out []payroll.SalarySlip
	for _, slip := range m.slips {
		if !filter.Period.IsZero() && slip.Period != filter.Period {
			continue
		}
		if filter.EmployeeID != 0 && slip.EmployeeID != filter.EmployeeID {
			continue
		}
		if filter.Status != "" && slip.Status != filter.Status {
			continue
		}
		out = append(out, slip)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Period != b.Period {
			return a.Period.Start().After(b.Period.Start())
		}
		if a.EmployeeID != b.EmployeeID {
			return a.EmployeeID < b.EmployeeID
		}
		return a.GeneratedAt.Before(b.GeneratedAt)
	})
	return out
}

func (m *Store) UpdateSlipStatus(_ context.Context, slipID, from, to string, at time.Time) (payroll.SalarySlip, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	slip, ok := m.slips[slipID]
	if !ok {
		return payroll.SalarySlip{}, payroll.ErrSlipNotFound
	}
	if slip.Status != from {
		return payroll.SalarySlip{}, payroll.ErrInvalidTransition
	}
	stamp := at
	switch to {
	case payroll.SlipStatusPaid:
		slip.PaidAt = &stamp
	case payroll.SlipStatusCancelled:
		slip.CancelledAt = &stamp
	default:
		return payroll.SalarySlip{}, payroll.ErrInvalidTransition
	}
	slip.Status = to
	m.slips[slipID] = slip
	return cloneSlip(slip), nil
}

func cloneSlip(slip payroll.SalarySlip) payroll.SalarySlip {
	slip.Benefits = append([]payroll.LineItem{}, slip.Benefits...)
	slip.Deductions = append([]payroll.LineItem{}, slip.Deductions...)
	slip.Warnings = append([]string(nil), slip.Warnings...)
	return slip
}
