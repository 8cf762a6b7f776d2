package dashboard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tazhate/fiscalbot/internal/domain"
)

// São Paulo has had no daylight saving since 2019.
var loc = time.FixedZone("BRT", -3*60*60)

func day(y int, m time.Month, d int) time.Time {
	return domain.Date(y, m, d, loc)
}

// Wednesday afternoon.
var now = time.Date(2024, 6, 12, 15, 30, 0, 0, loc)

func obligation(id string, due time.Time, status domain.ObligationStatus) domain.Obligation {
	return domain.Obligation{ID: id, TaxID: "tax", ClientID: "client", DueDate: due, Status: status}
}

func ids[T Item](list []T) []string {
	out := make([]string, len(list))
	for i, o := range list {
		out[i] = o.Base().ID
	}
	return out
}

func TestDayPredicates(t *testing.T) {
	assert.True(t, IsToday(day(2024, 6, 12), now))
	assert.False(t, IsOverdue(day(2024, 6, 12), now))
	assert.True(t, IsOverdue(day(2024, 6, 11), now))
	assert.True(t, IsThisWeek(day(2024, 6, 12), now))
	assert.True(t, IsThisWeek(day(2024, 6, 18), now))
	assert.False(t, IsThisWeek(day(2024, 6, 19), now))
	assert.False(t, IsThisWeek(day(2024, 6, 11), now))
}

func TestIsToday_LateEvening(t *testing.T) {
	// 23:30 in São Paulo is already the next day in UTC.
	late := time.Date(2024, 6, 12, 23, 30, 0, 0, loc)
	assert.True(t, IsToday(day(2024, 6, 12), late.UTC()))
}

func TestCriticalObligations(t *testing.T) {
	list := []domain.Obligation{
		obligation("today", day(2024, 6, 12), domain.StatusPending),
		obligation("old", day(2024, 5, 1), domain.StatusPending),
		obligation("done", day(2024, 5, 2), domain.StatusCompleted),
		obligation("working", day(2024, 6, 1), domain.StatusInProgress),
		obligation("future", day(2024, 6, 13), domain.StatusPending),
		obligation("yesterday", day(2024, 6, 11), domain.StatusPending),
	}

	assert.Equal(t, []string{"old", "yesterday", "today"}, ids(CriticalObligations(list, now)))
	assert.Equal(t, []string{"old", "yesterday"}, ids(OverdueObligations(list, now)))
	assert.Equal(t, []string{"today", "future"}, ids(ThisWeekObligations(list, now)))
}

func TestCriticalObligations_Empty(t *testing.T) {
	got := CriticalObligations([]domain.Obligation{}, now)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestCalculateStats(t *testing.T) {
	completedAt := time.Date(2024, 6, 3, 10, 0, 0, 0, loc)
	lastMonth := time.Date(2024, 5, 31, 23, 0, 0, 0, loc)

	clients := []domain.Client{{ID: "a", Active: true}, {ID: "b", Active: false}, {ID: "c", Active: true}}
	done := obligation("done", day(2024, 6, 5), domain.StatusCompleted)
	done.CompletedAt = &completedAt
	oldDone := obligation("old", day(2024, 5, 20), domain.StatusCompleted)
	oldDone.CompletedAt = &lastMonth

	obligations := []domain.Obligation{
		done,
		oldDone,
		obligation("overdue", day(2024, 6, 1), domain.StatusPending),
		obligation("today", day(2024, 6, 12), domain.StatusPending),
		obligation("week", day(2024, 6, 15), domain.StatusPending),
		obligation("later", day(2024, 7, 15), domain.StatusPending),
		obligation("progress", day(2024, 6, 1), domain.StatusInProgress),
	}

	stats := CalculateStats(clients, obligations, now)
	assert.Equal(t, Stats{
		TotalClients:       3,
		ActiveClients:      2,
		TotalObligations:   7,
		PendingObligations: 4,
		CompletedThisMonth: 1,
		OverdueObligations: 1,
		DueTodayCount:      1,
		DueThisWeekCount:   2,
	}, stats)
}

func TestRelativeDescription(t *testing.T) {
	tests := []struct {
		date time.Time
		want string
	}{
		{day(2024, 6, 12), "Hoje"},
		{day(2024, 6, 13), "Amanhã"},
		{day(2024, 6, 11), "Ontem"},
		{day(2024, 6, 15), "Em 3 dias"},
		{day(2024, 6, 19), "Em 7 dias"},
		{day(2024, 6, 20), "20/06/2024"},
		{day(2024, 6, 5), "Há 7 dias"},
		{day(2024, 6, 4), "04/06/2024"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, RelativeDescription(tt.date, now))
		})
	}
}

func TestWithDetails(t *testing.T) {
	clients := []domain.Client{{ID: "client", Name: "Padaria"}}
	taxes := []domain.Tax{{ID: "tax", Name: "DAS", WeekendAdjust: domain.AdjustAnticipate}}

	list := []domain.Obligation{
		obligation("sat", day(2024, 6, 15), domain.StatusPending),
		{ID: "orphan", TaxID: "missing", ClientID: "missing", DueDate: day(2024, 6, 15), Status: domain.StatusPending},
	}

	details := WithDetails(list, clients, taxes)
	require.Len(t, details, 2)

	assert.Equal(t, "Padaria", details[0].Client.Name)
	assert.Equal(t, "DAS", details[0].Tax.Name)
	assert.Equal(t, day(2024, 6, 14), details[0].CalculatedDueDate)

	assert.Nil(t, details[1].Client)
	assert.Nil(t, details[1].Tax)
	assert.Equal(t, day(2024, 6, 17), details[1].CalculatedDueDate)

	// details work with the generic helpers
	assert.Equal(t, []string{"sat", "orphan"}, ids(ThisWeekObligations(details, now)))
}

func TestGroupBy(t *testing.T) {
	a := obligation("1", day(2024, 6, 1), domain.StatusPending)
	b := obligation("2", day(2024, 6, 2), domain.StatusCompleted)
	c := obligation("3", day(2024, 6, 3), domain.StatusPending)
	c.ClientID = "other"
	list := []domain.Obligation{a, b, c}

	byClient := GroupByClient(list)
	assert.Equal(t, []string{"1", "2"}, ids(byClient["client"]))
	assert.Equal(t, []string{"3"}, ids(byClient["other"]))

	byStatus := GroupByStatus(list)
	assert.Equal(t, []string{"1", "3"}, ids(byStatus[domain.StatusPending]))
	assert.Equal(t, []string{"2"}, ids(byStatus[domain.StatusCompleted]))
}

func TestCalculateStats_MonthInReferenceZone(t *testing.T) {
	completed := time.Date(2024, 3, 31, 22, 0, 0, 0, loc)
	o := obligation("late-march", day(2024, 3, 31), domain.StatusCompleted)
	o.CompletedAt = &completed

	// 07:00 on April 1 in BRT.
	utcNow := time.Date(2024, 4, 1, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, 0, CalculateStats(nil, []domain.Obligation{o}, utcNow).CompletedThisMonth)

	// 02:00 UTC on April 1 is still March 31 in BRT.
	earlyUTC := time.Date(2024, 4, 1, 2, 0, 0, 0, time.UTC)
	assert.Equal(t, 1, CalculateStats(nil, []domain.Obligation{o}, earlyUTC).CompletedThisMonth)
}
