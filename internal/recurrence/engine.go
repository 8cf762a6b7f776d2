package recurrence

import (
	"context"
	"errors"
	"time"

	"github.com/tazhate/fiscalbot/internal/calendar"
	"github.com/tazhate/fiscalbot/internal/domain"
)

// ErrNoRecurrence is returned when a rule of type none is asked to advance.
var ErrNoRecurrence = errors.New("rule has no recurrence")

// maxRawSteps bounds the search for an adjusted date that moves the chain forward.
const maxRawSteps = 400

// Engine computes due dates from recurrence rules.
type Engine struct {
	adjuster *calendar.Adjuster
}

func NewEngine(adjuster *calendar.Adjuster) *Engine {
	return &Engine{adjuster: adjuster}
}

// NextRawDate advances current by one step of rule, before any adjustment.
// For type none (and unknown types) current is returned unchanged.
func NextRawDate(current time.Time, rule domain.RecurrenceRule) time.Time {
	var next time.Time

	switch rule.Type {
	case domain.RecurrenceMonthly:
		next = domain.AddMonths(current, 1)
		if rule.DayOfMonth > 0 {
			next = domain.SetDay(next, rule.DayOfMonth)
		}

	case domain.RecurrenceQuarterly:
		next = domain.AddMonths(current, 3)
		if rule.DayOfMonth > 0 {
			next = domain.SetDay(next, rule.DayOfMonth)
		}

	case domain.RecurrenceCustom:
		if rule.Interval > 0 {
			return current.AddDate(0, 0, rule.Interval)
		}
		next = domain.AddMonths(current, 1)
		if validMonths(rule.Months) {
			for !rule.HasMonth(int(next.Month())) {
				next = domain.AddMonths(next, 1)
			}
		}
		if rule.DayOfMonth > 0 {
			next = domain.SetDay(next, rule.DayOfMonth)
		}

	default:
		return current
	}

	return next
}

// NextDueDate advances current by one step of rule and adjusts the result for
// weekends and holidays. A rule of type none returns current unchanged and the
// caller must treat it as "no further occurrence".
func (e *Engine) NextDueDate(ctx context.Context, current time.Time, rule domain.RecurrenceRule, adjust domain.WeekendAdjust) time.Time {
	if !advances(rule) {
		return current
	}
	return e.adjuster.Adjust(ctx, NextRawDate(current, rule), adjust)
}

// NextAfter returns the first adjusted occurrence strictly after after, taking
// raw steps from after until adjustment no longer pulls the date back onto or
// before it (anticipate rules can otherwise repeat the same day forever).
func (e *Engine) NextAfter(ctx context.Context, after time.Time, rule domain.RecurrenceRule, adjust domain.WeekendAdjust) (time.Time, error) {
	if !advances(rule) {
		return time.Time{}, ErrNoRecurrence
	}
	raw := after
	for i := 0; i < maxRawSteps; i++ {
		raw = NextRawDate(raw, rule)
		if next := e.adjuster.Adjust(ctx, raw, adjust); next.After(after) {
			return next, nil
		}
	}
	return time.Time{}, ErrNoRecurrence
}

// GenerateFutureDates returns count strictly increasing due dates following
// start, each one chained from the previous result.
func (e *Engine) GenerateFutureDates(ctx context.Context, start time.Time, rule domain.RecurrenceRule, adjust domain.WeekendAdjust, count int) ([]time.Time, error) {
	if !advances(rule) {
		return nil, ErrNoRecurrence
	}
	if count <= 0 {
		return nil, nil
	}

	dates := make([]time.Time, 0, count)
	current := start
	for len(dates) < count {
		next, err := e.NextAfter(ctx, current, rule, adjust)
		if err != nil {
			return dates, err
		}
		dates = append(dates, next)
		current = next
	}
	return dates, nil
}

// advances reports whether NextRawDate moves a date forward under rule.
func advances(rule domain.RecurrenceRule) bool {
	switch rule.Type {
	case domain.RecurrenceMonthly, domain.RecurrenceQuarterly, domain.RecurrenceCustom:
		return true
	}
	return false
}

// validMonths reports whether months holds at least one month in 1..12, which
// keeps the month search loop finite.
func validMonths(months []int) bool {
	for _, m := range months {
		if m >= 1 && m <= 12 {
			return true
		}
	}
	return false
}
