package db

import (
	"testing"

	"github.com/shopspring/decimal"

	"hrpay/internal/domain/payroll"
)

func TestDefaultTaxBracketsCoverIncomeWithoutOverlap(t *testing.T) {
	brackets := DefaultTaxBrackets()
	for i := range brackets {
		brackets[i].ID = int64(i + 1)
	}
	for _, income := range []string{"0", "999.99", "1000.01", "4000", "5000", "25000"} {
		res := payroll.Resolve(decimal.RequireFromString(income), brackets)
		if !res.Resolved() {
			t.Fatalf("income %s resolved to %d brackets", income, res.Matches)
		}
	}
	res := payroll.Resolve(decimal.RequireFromString("5000"), brackets)
	if !res.Tax.Equal(decimal.RequireFromString("500")) {
		t.Fatalf("expected 300 + 20%% of 999.99 rounded = 500, got %s", res.Tax)
	}
}
