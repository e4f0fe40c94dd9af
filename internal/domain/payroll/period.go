package payroll

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Period is one calendar salary cycle. It is built once at the request
// boundary and passed explicitly to every payroll component.
type Period struct {
	Year  int
	Month time.Month
}

func NewPeriod(year, month int) (Period, error) {
	if month < 1 || month > 12 {
		return Period{}, fmt.Errorf("%w: month %d out of range", ErrInvalidPeriod, month)
	}
	if year < 1900 || year > 9999 {
		return Period{}, fmt.Errorf("%w: year %d out of range", ErrInvalidPeriod, year)
	}
	return Period{Year: year, Month: time.Month(month)}, nil
}

// ParsePeriod accepts "YYYY-MM" and "YYYYMM".
func ParsePeriod(value string) (Period, error) {
	raw := strings.TrimSpace(value)
	var yearPart, monthPart string
	switch {
	case len(raw) == 7 && raw[4] == '-':
		yearPart, monthPart = raw[:4], raw[5:]
	case len(raw) == 6:
		yearPart, monthPart = raw[:4], raw[4:]
	default:
		return Period{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, value)
	}
	year, err := strconv.Atoi(yearPart)
	if err != nil {
		return Period{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, value)
	}
	month, err := strconv.Atoi(monthPart)
	if err != nil {
		return Period{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, value)
	}
	return NewPeriod(year, month)
}

func PeriodOf(t time.Time) Period {
	return Period{Year: t.Year(), Month: t.Month()}
}

func (p Period) IsZero() bool {
	return p.Year == 0 && p.Month == 0
}

// Start is the first calendar day of the period.
func (p Period) Start() time.Time {
	return time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC)
}

// End is the last calendar day of the period.
func (p Period) End() time.Time {
	return p.Start().AddDate(0, 1, -1)
}

// ReferenceDate is the day used for effective-window matching. Payroll uses
// the end-of-period convention.
func (p Period) ReferenceDate() time.Time {
	return p.End()
}

func (p Period) Next() Period {
	return PeriodOf(p.Start().AddDate(0, 1, 0))
}

// Covers reports whether the reference date falls inside [from, until].
// A nil bound is open.
func (p Period) Covers(from, until *time.Time) bool {
	ref := p.ReferenceDate()
	if from != nil && ref.Before(DateOnly(*from)) {
		return false
	}
	if until != nil && ref.After(DateOnly(*until)) {
		return false
	}
	return true
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

// Compact renders the period as YYYYMM for references and file names.
func (p Period) Compact() string {
	return fmt.Sprintf("%04d%02d", p.Year, int(p.Month))
}

func (p Period) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Period) UnmarshalText(text []byte) error {
	parsed, err := ParsePeriod(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// DateOnly truncates t to midnight UTC of its calendar day.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
