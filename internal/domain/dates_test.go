package domain

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
)

func TestAddMonthsClampsToMonthEnd(t *testing.T) {
	tests := []struct {
		name string
		in   time.Time
		n    int
		want time.Time
	}{
		{"plain", Date(2024, 1, 20, time.UTC), 1, Date(2024, 2, 20, time.UTC)},
		{"leap february", Date(2024, 1, 31, time.UTC), 1, Date(2024, 2, 29, time.UTC)},
		{"common february", Date(2025, 1, 31, time.UTC), 1, Date(2025, 2, 28, time.UTC)},
		{"quarter", Date(2024, 11, 30, time.UTC), 3, Date(2025, 2, 28, time.UTC)},
		{"year wrap", Date(2024, 12, 15, time.UTC), 1, Date(2025, 1, 15, time.UTC)},
		{"backwards", Date(2024, 3, 31, time.UTC), -1, Date(2024, 2, 29, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AddMonths(tt.in, tt.n))
		})
	}
}

func TestSetDayClamps(t *testing.T) {
	assert.Equal(t, Date(2024, 2, 15, time.UTC), SetDay(Date(2024, 2, 1, time.UTC), 15))
	assert.Equal(t, Date(2024, 2, 29, time.UTC), SetDay(Date(2024, 2, 1, time.UTC), 31))
	assert.Equal(t, Date(2024, 4, 30, time.UTC), SetDay(Date(2024, 4, 10, time.UTC), 31))
}

func TestDaysBetween(t *testing.T) {
	loc, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		t.Skip("tzdata not available")
	}
	a := time.Date(2024, 5, 10, 23, 59, 0, 0, loc)
	b := time.Date(2024, 5, 11, 0, 1, 0, 0, loc)
	assert.Equal(t, 1, DaysBetween(a, b))
	assert.Equal(t, -1, DaysBetween(b, a))
	assert.Equal(t, 0, DaysBetween(a, a))
	assert.Equal(t, 366, DaysBetween(Date(2024, 1, 1, loc), Date(2025, 1, 1, loc)))
}

func TestDateOf(t *testing.T) {
	loc := time.FixedZone("BRT", -3*3600)
	instant := time.Date(2024, 6, 1, 1, 30, 0, 0, time.UTC) // still May 31 in BRT
	assert.Equal(t, Date(2024, 5, 31, loc), DateOf(instant, loc))
}

func TestMonthBoundsAndKey(t *testing.T) {
	start, end := MonthBounds(time.Date(2024, 2, 10, 12, 0, 0, 0, time.UTC))
	assert.Equal(t, Date(2024, 2, 1, time.UTC), start)
	assert.Equal(t, 29, end.Day())
	assert.Equal(t, "2024-02", MonthKey(start))
}

func TestIsWeekend(t *testing.T) {
	assert.True(t, IsWeekend(Date(2024, 6, 1, time.UTC)))  // Saturday
	assert.True(t, IsWeekend(Date(2024, 6, 2, time.UTC)))  // Sunday
	assert.False(t, IsWeekend(Date(2024, 6, 3, time.UTC))) // Monday
}
