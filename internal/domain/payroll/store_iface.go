package payroll

import (
	"context"
	"time"
)

type StoreAPI interface {
	Roster
	CatalogSource
	RecordSource
	SlipStore
	GetSlip(ctx context.Context, slipID string) (SalarySlip, error)
	GetSlipByReference(ctx context.Context, reference string) (SalarySlip, error)
	CountSlips(ctx context.Context, filter SlipFilter) (int, error)
	ListSlips(ctx context.Context, filter SlipFilter, limit, offset int) ([]SalarySlip, error)
	// UpdateSlipStatus moves a slip from one status to another and stamps the
	// transition time. It returns ErrInvalidTransition when the slip is no
	// longer in the from status.
	UpdateSlipStatus(ctx context.Context, slipID, from, to string, at time.Time) (SalarySlip, error)
}
