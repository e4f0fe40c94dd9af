package shared

import (
	"strings"

	"hrpay/internal/domain/payroll"
)

// ParsePeriodParts builds a period from either a "YYYY-MM" string or a
// separate month and year, the two shapes payroll clients send.
func ParsePeriodParts(period string, month, year int) (payroll.Period, error) {
	if strings.TrimSpace(period) != "" {
		return payroll.ParsePeriod(period)
	}
	return payroll.NewPeriod(year, month)
}
