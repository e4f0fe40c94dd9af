package payroll

import "github.com/shopspring/decimal"

const moneyPlaces = 2

var hundred = decimal.NewFromInt(100)

// RoundMoney rounds half away from zero to minor currency units.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(moneyPlaces)
}

// PercentOf returns round(base * pct / 100).
func PercentOf(base, pct decimal.Decimal) decimal.Decimal {
	if base.IsZero() || pct.IsZero() {
		return decimal.Zero
	}
	return RoundMoney(base.Mul(pct).Div(hundred))
}

func SumLines(lines []LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.Amount)
	}
	return total
}

// ParseMoney parses a decimal string, treating blank as zero.
func ParseMoney(value string) (decimal.Decimal, error) {
	if value == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(value)
}
