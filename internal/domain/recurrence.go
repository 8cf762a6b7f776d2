package domain

import "fmt"

type RecurrenceType string

const (
	RecurrenceNone      RecurrenceType = "none"
	RecurrenceMonthly   RecurrenceType = "monthly"
	RecurrenceQuarterly RecurrenceType = "quarterly"
	RecurrenceCustom    RecurrenceType = "custom"
)

// RecurrenceRule describes how an obligation repeats. Zero values mean unset.
type RecurrenceRule struct {
	Type       RecurrenceType `json:"type"`
	DayOfMonth int            `json:"dayOfMonth,omitempty"` // 1-31
	CustomDays []int          `json:"customDays,omitempty"` // display only
	Interval   int            `json:"interval,omitempty"`   // days, custom only
	Months     []int          `json:"months,omitempty"`     // 1-12
}

// HasMonth reports whether month (1-12) is listed in Months.
func (r RecurrenceRule) HasMonth(month int) bool {
	for _, m := range r.Months {
		if m == month {
			return true
		}
	}
	return false
}

type WeekendAdjust string

const (
	AdjustPostpone   WeekendAdjust = "postpone"
	AdjustAnticipate WeekendAdjust = "anticipate"
	AdjustKeep       WeekendAdjust = "keep"
)

// ParseWeekendAdjust accepts the three policies; empty means postpone.
func ParseWeekendAdjust(s string) (WeekendAdjust, error) {
	switch WeekendAdjust(s) {
	case "":
		return AdjustPostpone, nil
	case AdjustPostpone, AdjustAnticipate, AdjustKeep:
		return WeekendAdjust(s), nil
	default:
		return "", fmt.Errorf("unknown weekend adjust rule: %s", s)
	}
}
