// Package report aggregates completion statistics over obligations.
package report

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tazhate/fiscalbot/internal/domain"
)

// topPendingLimit caps TopPendingAssignees.
const topPendingLimit = 10

type AssigneeMetrics struct {
	Completed int `json:"completed"`
	OnTime    int `json:"onTime"`
	Late      int `json:"late"`
}

type MonthMetrics struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	OnTime    int `json:"onTime"`
}

// ProductivityMetrics holds percentages in 0..100 rounded to two decimals and
// the average completion delay in days (negative when work is done early).
type ProductivityMetrics struct {
	CompletionRate        float64                    `json:"completionRate"`
	AverageCompletionTime float64                    `json:"averageCompletionTime"`
	OnTimeRate            float64                    `json:"onTimeRate"`
	ByAssignee            map[string]AssigneeMetrics `json:"byAssignee"`
	ByMonth               map[string]MonthMetrics    `json:"byMonth"`
}

type AssigneeCount struct {
	Assignee string `json:"assignee"`
	Count    int    `json:"count"`
}

func CalculateProductivityMetrics(obligations []domain.Obligation) ProductivityMetrics {
	m := ProductivityMetrics{
		ByAssignee: make(map[string]AssigneeMetrics),
		ByMonth:    make(map[string]MonthMetrics),
	}

	var completed, onTime, timed int
	delay := decimal.Zero

	for i := range obligations {
		o := &obligations[i]

		month := m.ByMonth[domain.MonthKey(o.DueDate)]
		month.Total++

		if o.IsCompleted() {
			completed++
			month.Completed++

			a := m.ByAssignee[o.AssigneeOrUnassigned()]
			a.Completed++
			if o.CompletedOnTime() {
				onTime++
				month.OnTime++
				a.OnTime++
			} else {
				a.Late++
			}
			m.ByAssignee[o.AssigneeOrUnassigned()] = a

			if o.CompletedAt != nil {
				timed++
				delay = delay.Add(decimal.NewFromInt(int64(domain.DaysBetween(o.DueDate, o.CompletedAt.In(o.DueDate.Location())))))
			}
		}

		m.ByMonth[domain.MonthKey(o.DueDate)] = month
	}

	m.CompletionRate = percent(completed, len(obligations))
	m.OnTimeRate = percent(onTime, completed)
	if timed > 0 {
		m.AverageCompletionTime = delay.Div(decimal.NewFromInt(int64(timed))).Round(2).InexactFloat64()
	}
	return m
}

// OnTimeRateByPeriod is the on-time percentage of completed obligations due
// within [start, end].
func OnTimeRateByPeriod(obligations []domain.Obligation, start, end time.Time) float64 {
	var completed, onTime int
	for i := range obligations {
		o := &obligations[i]
		if !o.IsCompleted() || o.DueDate.Before(start) || o.DueDate.After(end) {
			continue
		}
		completed++
		if o.CompletedOnTime() {
			onTime++
		}
	}
	return percent(onTime, completed)
}

// TopPendingAssignees ranks assignees by pending obligations. Ties keep the
// order in which assignees first appear.
func TopPendingAssignees(obligations []domain.Obligation) []AssigneeCount {
	counts := make([]AssigneeCount, 0)
	index := make(map[string]int)

	for i := range obligations {
		o := &obligations[i]
		if o.Status != domain.StatusPending {
			continue
		}
		name := o.AssigneeOrUnassigned()
		if pos, ok := index[name]; ok {
			counts[pos].Count++
			continue
		}
		index[name] = len(counts)
		counts = append(counts, AssigneeCount{Assignee: name, Count: 1})
	}

	slices.SortStableFunc(counts, func(a, b AssigneeCount) int {
		return b.Count - a.Count
	})
	if len(counts) > topPendingLimit {
		counts = counts[:topPendingLimit]
	}
	return counts
}

func percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return decimal.NewFromInt(int64(part)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(total))).
		Round(2).
		InexactFloat64()
}
