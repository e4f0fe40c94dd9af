package payroll

import (
	"errors"
	"fmt"
)

var (
	ErrDuplicateSlip         = errors.New("salary slip already exists for employee and period")
	ErrMisconfiguredTaxTable = errors.New("tax table misconfigured")
	ErrInvalidRecord         = errors.New("invalid compensation record")
	ErrPersistence           = errors.New("salary slip persistence failed")
	ErrSlipNotFound          = errors.New("salary slip not found")
	ErrEmployeeNotFound      = errors.New("employee not found")
	ErrEmployeeInactive      = errors.New("employee is not active")
	ErrInvalidPeriod         = errors.New("invalid salary period")
	ErrInvalidTransition     = errors.New("invalid salary slip status transition")
	ErrInvalidTaxBasis       = errors.New("unsupported tax income basis")
)

// DuplicateSlipError reports a non-cancelled slip already held for the pair.
type DuplicateSlipError struct {
	EmployeeID int64
	Period     Period
	SlipID     string
}

func (e *DuplicateSlipError) Error() string {
	if e.SlipID != "" {
		return fmt.Sprintf("salary slip %s already exists for employee %d in %s", e.SlipID, e.EmployeeID, e.Period)
	}
	return fmt.Sprintf("salary slip already exists for employee %d in %s", e.EmployeeID, e.Period)
}

func (e *DuplicateSlipError) Is(target error) bool {
	return target == ErrDuplicateSlip
}

// MisconfiguredTaxTableError is raised in strict mode when the income matches
// no active bracket or more than one.
type MisconfiguredTaxTableError struct {
	Income  string
	Matches int
}

func (e *MisconfiguredTaxTableError) Error() string {
	if e.Matches == 0 {
		return fmt.Sprintf("tax table misconfigured: income %s matches no active bracket", e.Income)
	}
	return fmt.Sprintf("tax table misconfigured: income %s matches %d active brackets", e.Income, e.Matches)
}

func (e *MisconfiguredTaxTableError) Is(target error) bool {
	return target == ErrMisconfiguredTaxTable
}

type InvalidRecordError struct {
	Kind     string
	RecordID int64
	Reason   string
}

func (e *InvalidRecordError) Error() string {
	return fmt.Sprintf("invalid %s record %d: %s", e.Kind, e.RecordID, e.Reason)
}

func (e *InvalidRecordError) Is(target error) bool {
	return target == ErrInvalidRecord
}

type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}

// ReasonFor maps a generation error to the reason code reported in run results.
func ReasonFor(err error) string {
	switch {
	case errors.Is(err, ErrDuplicateSlip):
		return ReasonDuplicateSlip
	case errors.Is(err, ErrEmployeeNotFound):
		return ReasonEmployeeNotFound
	case errors.Is(err, ErrEmployeeInactive):
		return ReasonEmployeeInactive
	case errors.Is(err, ErrInvalidRecord):
		return ReasonInvalidRecord
	case errors.Is(err, ErrMisconfiguredTaxTable):
		return ReasonMisconfiguredTaxTable
	case errors.Is(err, ErrPersistence):
		return ReasonPersistenceError
	default:
		return ReasonGenerationFailed
	}
}
