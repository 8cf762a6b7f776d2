package recurrence

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/tazhate/fiscalbot/internal/domain"
)

// ROption translates rule into an RFC 5545 recurrence anchored at dtstart.
// Weekend and holiday adjustment cannot be expressed in RRULE, so the result
// describes the raw template dates only.
func ROption(rule domain.RecurrenceRule, dtstart time.Time) (*rrule.ROption, error) {
	opt := &rrule.ROption{Dtstart: dtstart}

	day := rule.DayOfMonth
	if day == 0 {
		day = dtstart.Day()
	}

	switch rule.Type {
	case domain.RecurrenceMonthly:
		opt.Freq = rrule.MONTHLY
		setMonthDay(opt, day)

	case domain.RecurrenceQuarterly:
		opt.Freq = rrule.MONTHLY
		opt.Interval = 3
		setMonthDay(opt, day)

	case domain.RecurrenceCustom:
		if rule.Interval > 0 {
			opt.Freq = rrule.DAILY
			opt.Interval = rule.Interval
			break
		}
		opt.Freq = rrule.MONTHLY
		if validMonths(rule.Months) {
			opt.Bymonth = append([]int(nil), rule.Months...)
		}
		setMonthDay(opt, day)

	default:
		return nil, ErrNoRecurrence
	}

	if _, err := rrule.NewRRule(*opt); err != nil {
		return nil, fmt.Errorf("build rrule: %w", err)
	}
	return opt, nil
}

// RRule returns the RRULE value (without DTSTART) for rule.
func RRule(rule domain.RecurrenceRule, dtstart time.Time) (string, error) {
	opt, err := ROption(rule, dtstart)
	if err != nil {
		return "", err
	}
	return opt.RRuleString(), nil
}

// setMonthDay pins the day of month. Days past 28 list every candidate up to
// day and keep the last one present, which clamps short months to their end.
func setMonthDay(opt *rrule.ROption, day int) {
	if day <= 28 {
		opt.Bymonthday = []int{day}
		return
	}
	for d := 28; d <= day; d++ {
		opt.Bymonthday = append(opt.Bymonthday, d)
	}
	opt.Bysetpos = []int{-1}
}
