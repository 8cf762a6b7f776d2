package calendar

import (
	"context"
	"time"

	"github.com/tazhate/fiscalbot/internal/domain"
)

// maxHolidayShifts bounds the holiday loop so adjustment always terminates.
const maxHolidayShifts = 10

// AdjustForWeekend moves a date that falls on Saturday or Sunday according to
// rule. Weekdays and the keep rule return date unchanged.
func AdjustForWeekend(date time.Time, rule domain.WeekendAdjust) time.Time {
	if rule == domain.AdjustKeep || !domain.IsWeekend(date) {
		return date
	}

	saturday := date.Weekday() == time.Saturday
	if rule == domain.AdjustAnticipate {
		if saturday {
			return date.AddDate(0, 0, -1)
		}
		return date.AddDate(0, 0, -2)
	}

	// postpone, also the default for unknown values
	if saturday {
		return date.AddDate(0, 0, 2)
	}
	return date.AddDate(0, 0, 1)
}

// Adjuster applies weekend and holiday adjustment.
type Adjuster struct {
	holidays *HolidayCache
}

// NewAdjuster returns an adjuster backed by cache. A nil cache adjusts for
// weekends only.
func NewAdjuster(cache *HolidayCache) *Adjuster {
	return &Adjuster{holidays: cache}
}

// Adjust applies AdjustForWeekend and then steps off known holidays, one day
// at a time in the rule's direction, re-applying the weekend rule after each
// step. Holiday lookups that fail degrade to weekend-only adjustment.
func (a *Adjuster) Adjust(ctx context.Context, date time.Time, rule domain.WeekendAdjust) time.Time {
	adjusted := AdjustForWeekend(date, rule)
	if a == nil || a.holidays == nil {
		return adjusted
	}

	step := 1
	if rule == domain.AdjustAnticipate {
		step = -1
	}

	for i := 0; i < maxHolidayShifts && a.holidays.IsHoliday(ctx, adjusted); i++ {
		adjusted = AdjustForWeekend(adjusted.AddDate(0, 0, step), rule)
	}
	return adjusted
}
