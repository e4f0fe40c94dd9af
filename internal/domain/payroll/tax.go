package payroll

import (
	"sort"

	"github.com/shopspring/decimal"
)

// TaxResolution is the outcome of matching one income against the bracket table.
type TaxResolution struct {
	Income   decimal.Decimal `json:"income"`
	Tax      decimal.Decimal `json:"tax"`
	Bracket  *TaxBracket     `json:"bracket,omitempty"`
	Matches  int             `json:"matches"`
	Warnings []string        `json:"warnings,omitempty"`
}

// Resolved reports whether exactly one active bracket matched.
func (r TaxResolution) Resolved() bool {
	return r.Matches == 1
}

// Resolve selects the active bracket containing income and computes
// fixedAmount + max(0, income - incomeFrom) * percentage / 100 on that bracket
// alone. Overlapping brackets resolve to the lowest ID.
func Resolve(income decimal.Decimal, brackets []TaxBracket) TaxResolution {
	result := TaxResolution{Income: income, Tax: decimal.Zero}

	active := make([]TaxBracket, 0, len(brackets))
	for _, bracket := range brackets {
		if bracket.IsActive {
			active = append(active, bracket)
		}
	}
	sort.SliceStable(active, func(i, j int) bool { return active[i].ID < active[j].ID })

	for i := range active {
		if !active[i].Contains(income) {
			continue
		}
		result.Matches++
		if result.Bracket == nil {
			selected := active[i]
			result.Bracket = &selected
		}
	}

	switch {
	case result.Matches == 0:
		result.Warnings = append(result.Warnings, WarningTaxBracketUnresolved)
		return result
	case result.Matches > 1:
		result.Warnings = append(result.Warnings, WarningTaxBracketOverlap)
	}

	result.Tax = BracketTax(income, *result.Bracket)
	return result
}

// BracketTax applies a single bracket's flat-plus-marginal formula.
func BracketTax(income decimal.Decimal, bracket TaxBracket) decimal.Decimal {
	marginal := income.Sub(bracket.IncomeFrom)
	if marginal.IsNegative() {
		marginal = decimal.Zero
	}
	return RoundMoney(bracket.FixedAmount.Add(PercentOf(marginal, bracket.Percentage)))
}

// ResolveForBasis resolves the tax owed for one period's earnings. The annual
// basis matches brackets on earnings x 12 and returns a twelfth of the result.
func ResolveForBasis(periodIncome decimal.Decimal, basis string, brackets []TaxBracket) TaxResolution {
	if basis != TaxBasisAnnual {
		return Resolve(periodIncome, brackets)
	}
	months := decimal.NewFromInt(monthsPerYear)
	result := Resolve(periodIncome.Mul(months), brackets)
	result.Tax = RoundMoney(result.Tax.Div(months))
	return result
}

func ValidTaxBasis(basis string) bool {
	return basis == TaxBasisPeriod || basis == TaxBasisAnnual
}
