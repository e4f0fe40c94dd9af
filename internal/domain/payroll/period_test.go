package payroll

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestParsePeriod(t *testing.T) {
	for _, raw := range []string{"2024-03", "202403", " 2024-03 "} {
		period, err := ParsePeriod(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, Period{Year: 2024, Month: time.March}, period)
	}
	for _, raw := range []string{"", "2024-13", "2024-00", "24-03", "2024/03x", "abcd-ef"} {
		_, err := ParsePeriod(raw)
		assert.True(t, errors.Is(err, ErrInvalidPeriod), "expected ErrInvalidPeriod for %q, got %v", raw, err)
	}
}

func TestPeriodCalendar(t *testing.T) {
	feb := Period{Year: 2024, Month: time.February}
	assert.Equal(t, *date(2024, time.February, 29), feb.ReferenceDate())
	assert.Equal(t, Period{Year: 2024, Month: time.March}, feb.Next())
	assert.Equal(t, Period{Year: 2025, Month: time.January}, Period{Year: 2024, Month: time.December}.Next())
	assert.Equal(t, "202402", feb.Compact())
	assert.Equal(t, "2024-02", feb.String())
}

func TestPeriodCoversUsesLastDay(t *testing.T) {
	march := Period{Year: 2024, Month: time.March}
	april := march.Next()
	from, until := date(2024, time.March, 1), date(2024, time.March, 31)

	assert.True(t, march.Covers(from, until))
	assert.False(t, april.Covers(from, until))
	assert.True(t, march.Covers(nil, nil))
	assert.True(t, march.Covers(date(2024, time.March, 31), nil), "starting on the last day still applies")
	assert.False(t, march.Covers(date(2024, time.April, 1), nil))
	assert.False(t, march.Covers(nil, date(2024, time.March, 30)), "ending before the last day does not apply")
}

func TestPeriodJSON(t *testing.T) {
	payload, err := json.Marshal(struct {
		Period Period `json:"period"`
	}{Period{Year: 2024, Month: time.November}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"period":"2024-11"}`, string(payload))

	var decoded struct {
		Period Period `json:"period"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"period":"2025-01"}`), &decoded))
	assert.Equal(t, Period{Year: 2025, Month: time.January}, decoded.Period)
}
