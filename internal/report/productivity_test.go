package report

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tazhate/fiscalbot/internal/domain"
)

func day(y int, m time.Month, d int) time.Time {
	return domain.Date(y, m, d, time.UTC)
}

func completed(assignee string, due time.Time, doneAt time.Time) domain.Obligation {
	return domain.Obligation{
		AssignedTo:  assignee,
		DueDate:     due,
		Status:      domain.StatusCompleted,
		CompletedAt: &doneAt,
	}
}

func pending(assignee string, due time.Time) domain.Obligation {
	return domain.Obligation{AssignedTo: assignee, DueDate: due, Status: domain.StatusPending}
}

func TestCalculateProductivityMetrics_Empty(t *testing.T) {
	m := CalculateProductivityMetrics(nil)
	assert.Zero(t, m.CompletionRate)
	assert.Zero(t, m.AverageCompletionTime)
	assert.Zero(t, m.OnTimeRate)
	assert.Empty(t, m.ByAssignee)
	assert.Empty(t, m.ByMonth)
}

func TestCalculateProductivityMetrics_AllOnDueDay(t *testing.T) {
	list := []domain.Obligation{
		completed("Ana", day(2024, 3, 20), day(2024, 3, 20).Add(17*time.Hour)),
		completed("Bruno", day(2024, 4, 20), day(2024, 4, 20)),
	}
	m := CalculateProductivityMetrics(list)
	assert.Equal(t, 100.0, m.CompletionRate)
	assert.Equal(t, 100.0, m.OnTimeRate)
	assert.Zero(t, m.AverageCompletionTime)
}

func TestCalculateProductivityMetrics(t *testing.T) {
	list := []domain.Obligation{
		completed("Ana", day(2024, 3, 20), day(2024, 3, 18)),
		completed("Ana", day(2024, 3, 25), day(2024, 3, 30)),
		completed("", day(2024, 4, 10), day(2024, 4, 10)),
		{DueDate: day(2024, 4, 15), Status: domain.StatusCompleted},
		pending("Ana", day(2024, 4, 30)),
		pending("Bruno", day(2024, 5, 1)),
	}

	m := CalculateProductivityMetrics(list)

	// 4 of 6 completed
	assert.Equal(t, 66.67, m.CompletionRate)
	// 2 of 4 on time; the one without completedAt is late
	assert.Equal(t, 50.0, m.OnTimeRate)
	// (-2 + 5 + 0) / 3
	assert.Equal(t, 1.0, m.AverageCompletionTime)

	assert.Equal(t, map[string]AssigneeMetrics{
		"Ana":             {Completed: 2, OnTime: 1, Late: 1},
		domain.Unassigned: {Completed: 2, OnTime: 1, Late: 1},
	}, m.ByAssignee)

	assert.Equal(t, map[string]MonthMetrics{
		"2024-03": {Total: 2, Completed: 2, OnTime: 1},
		"2024-04": {Total: 3, Completed: 2, OnTime: 1},
		"2024-05": {Total: 1},
	}, m.ByMonth)
}

func TestOnTimeRateByPeriod(t *testing.T) {
	list := []domain.Obligation{
		completed("Ana", day(2024, 3, 20), day(2024, 3, 18)),
		completed("Ana", day(2024, 3, 25), day(2024, 3, 30)),
		completed("Ana", day(2024, 3, 28), day(2024, 3, 28)),
		completed("Ana", day(2024, 4, 10), day(2024, 4, 20)),
		pending("Ana", day(2024, 3, 21)),
	}

	assert.Equal(t, 66.67, OnTimeRateByPeriod(list, day(2024, 3, 1), day(2024, 3, 31)))
	assert.Equal(t, 0.0, OnTimeRateByPeriod(list, day(2024, 4, 1), day(2024, 4, 30)))
	assert.Equal(t, 0.0, OnTimeRateByPeriod(list, day(2025, 1, 1), day(2025, 1, 31)))
}

func TestTopPendingAssignees(t *testing.T) {
	list := []domain.Obligation{
		pending("Ana", day(2024, 3, 1)),
		pending("Bruno", day(2024, 3, 1)),
		pending("Bruno", day(2024, 3, 2)),
		pending("", day(2024, 3, 3)),
		pending("Carla", day(2024, 3, 3)),
		completed("Ana", day(2024, 3, 1), day(2024, 3, 1)),
	}

	assert.Equal(t, []AssigneeCount{
		{Assignee: "Bruno", Count: 2},
		{Assignee: "Ana", Count: 1},
		{Assignee: domain.Unassigned, Count: 1},
		{Assignee: "Carla", Count: 1},
	}, TopPendingAssignees(list))
}

func TestTopPendingAssignees_Limit(t *testing.T) {
	var list []domain.Obligation
	for i := 0; i < 15; i++ {
		list = append(list, pending(fmt.Sprintf("p%02d", i), day(2024, 3, 1)))
	}
	got := TopPendingAssignees(list)
	assert.Len(t, got, 10)
	assert.Equal(t, "p00", got[0].Assignee)
	assert.Empty(t, TopPendingAssignees(nil))
}
