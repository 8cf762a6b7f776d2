package recurrence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tazhate/fiscalbot/internal/calendar"
	"github.com/tazhate/fiscalbot/internal/domain"
)

func day(y int, m time.Month, d int) time.Time {
	return domain.Date(y, m, d, time.UTC)
}

func newEngine(holidays calendar.StaticHolidays) *Engine {
	cache := calendar.NewHolidayCache(holidays, time.UTC, zap.NewNop())
	return NewEngine(calendar.NewAdjuster(cache))
}

func TestNextRawDate(t *testing.T) {
	tests := []struct {
		name    string
		current time.Time
		rule    domain.RecurrenceRule
		want    time.Time
	}{
		{
			name:    "monthly with day",
			current: day(2024, 1, 20),
			rule:    domain.RecurrenceRule{Type: domain.RecurrenceMonthly, DayOfMonth: 15},
			want:    day(2024, 2, 15),
		},
		{
			name:    "monthly without day clamps to month end",
			current: day(2024, 1, 31),
			rule:    domain.RecurrenceRule{Type: domain.RecurrenceMonthly},
			want:    day(2024, 2, 29),
		},
		{
			name:    "monthly day 31 in february",
			current: day(2023, 1, 31),
			rule:    domain.RecurrenceRule{Type: domain.RecurrenceMonthly, DayOfMonth: 31},
			want:    day(2023, 2, 28),
		},
		{
			name:    "quarterly",
			current: day(2024, 1, 10),
			rule:    domain.RecurrenceRule{Type: domain.RecurrenceQuarterly, DayOfMonth: 20},
			want:    day(2024, 4, 20),
		},
		{
			name:    "custom interval ignores months",
			current: day(2024, 1, 1),
			rule:    domain.RecurrenceRule{Type: domain.RecurrenceCustom, Interval: 10, Months: []int{6}},
			want:    day(2024, 1, 11),
		},
		{
			name:    "custom months",
			current: day(2024, 1, 5),
			rule:    domain.RecurrenceRule{Type: domain.RecurrenceCustom, Months: []int{3, 6}, DayOfMonth: 20},
			want:    day(2024, 3, 20),
		},
		{
			name:    "custom months wraps the year",
			current: day(2024, 7, 1),
			rule:    domain.RecurrenceRule{Type: domain.RecurrenceCustom, Months: []int{3, 6}},
			want:    day(2025, 3, 1),
		},
		{
			name:    "custom months out of range advances one month",
			current: day(2024, 7, 1),
			rule:    domain.RecurrenceRule{Type: domain.RecurrenceCustom, Months: []int{13}},
			want:    day(2024, 8, 1),
		},
		{
			name:    "none",
			current: day(2024, 7, 1),
			rule:    domain.RecurrenceRule{Type: domain.RecurrenceNone},
			want:    day(2024, 7, 1),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NextRawDate(tt.current, tt.rule))
		})
	}
}

func TestNextDueDate_WeekendAdjust(t *testing.T) {
	e := newEngine(nil)
	ctx := context.Background()
	rule := domain.RecurrenceRule{Type: domain.RecurrenceMonthly, DayOfMonth: 15}

	// 2024-06-15 is a Saturday.
	assert.Equal(t, day(2024, 6, 17), e.NextDueDate(ctx, day(2024, 5, 20), rule, domain.AdjustPostpone))
	assert.Equal(t, day(2024, 6, 14), e.NextDueDate(ctx, day(2024, 5, 20), rule, domain.AdjustAnticipate))
	assert.Equal(t, day(2024, 6, 15), e.NextDueDate(ctx, day(2024, 5, 20), rule, domain.AdjustKeep))
}

func TestNextDueDate_Holiday(t *testing.T) {
	e := newEngine(calendar.StaticHolidays{2024: {day(2024, 11, 15)}})
	rule := domain.RecurrenceRule{Type: domain.RecurrenceMonthly, DayOfMonth: 15}

	got := e.NextDueDate(context.Background(), day(2024, 10, 15), rule, domain.AdjustPostpone)
	assert.Equal(t, day(2024, 11, 18), got)
}

func TestNextDueDate_NoneReturnsInput(t *testing.T) {
	e := newEngine(nil)
	start := day(2024, 6, 15)
	got := e.NextDueDate(context.Background(), start, domain.RecurrenceRule{Type: domain.RecurrenceNone}, domain.AdjustPostpone)
	assert.Equal(t, start, got)
}

func TestNextAfter_StalledChain(t *testing.T) {
	e := newEngine(nil)
	ctx := context.Background()
	rule := domain.RecurrenceRule{Type: domain.RecurrenceCustom, Interval: 1}
	friday := day(2024, 6, 7)

	// Saturday anticipates back onto Friday.
	assert.Equal(t, friday, e.NextDueDate(ctx, friday, rule, domain.AdjustAnticipate))

	next, err := e.NextAfter(ctx, friday, rule, domain.AdjustAnticipate)
	require.NoError(t, err)
	assert.Equal(t, day(2024, 6, 10), next)

	_, err = e.NextAfter(ctx, friday, domain.RecurrenceRule{Type: domain.RecurrenceNone}, domain.AdjustPostpone)
	assert.ErrorIs(t, err, ErrNoRecurrence)
}

func TestGenerateFutureDates(t *testing.T) {
	e := newEngine(calendar.StaticHolidays{2024: {day(2024, 11, 15), day(2024, 12, 25)}})
	ctx := context.Background()

	rules := []domain.RecurrenceRule{
		{Type: domain.RecurrenceMonthly, DayOfMonth: 15},
		{Type: domain.RecurrenceMonthly, DayOfMonth: 31},
		{Type: domain.RecurrenceQuarterly, DayOfMonth: 1},
		{Type: domain.RecurrenceCustom, Interval: 1},
		{Type: domain.RecurrenceCustom, Interval: 7},
		{Type: domain.RecurrenceCustom, Months: []int{3, 6, 9, 12}, DayOfMonth: 30},
	}
	adjusts := []domain.WeekendAdjust{domain.AdjustPostpone, domain.AdjustAnticipate, domain.AdjustKeep}

	for _, rule := range rules {
		for _, adjust := range adjusts {
			dates, err := e.GenerateFutureDates(ctx, day(2024, 1, 20), rule, adjust, 12)
			require.NoError(t, err)
			require.Len(t, dates, 12)

			prev := day(2024, 1, 20)
			for _, d := range dates {
				assert.True(t, d.After(prev), "%s/%s: %s not after %s", Description(rule), adjust, d, prev)
				if adjust != domain.AdjustKeep {
					assert.False(t, domain.IsWeekend(d), "%s/%s: %s on weekend", Description(rule), adjust, d)
				}
				prev = d
			}
		}
	}
}

func TestGenerateFutureDates_Monthly(t *testing.T) {
	e := newEngine(nil)
	rule := domain.RecurrenceRule{Type: domain.RecurrenceMonthly, DayOfMonth: 15}

	dates, err := e.GenerateFutureDates(context.Background(), day(2024, 1, 20), rule, domain.AdjustKeep, 3)
	require.NoError(t, err)
	assert.Equal(t, []time.Time{day(2024, 2, 15), day(2024, 3, 15), day(2024, 4, 15)}, dates)
}

func TestGenerateFutureDates_Degenerate(t *testing.T) {
	e := newEngine(nil)
	ctx := context.Background()

	_, err := e.GenerateFutureDates(ctx, day(2024, 1, 1), domain.RecurrenceRule{Type: domain.RecurrenceNone}, domain.AdjustPostpone, 12)
	assert.ErrorIs(t, err, ErrNoRecurrence)

	dates, err := e.GenerateFutureDates(ctx, day(2024, 1, 1), domain.RecurrenceRule{Type: domain.RecurrenceMonthly}, domain.AdjustPostpone, 0)
	require.NoError(t, err)
	assert.Empty(t, dates)
}
