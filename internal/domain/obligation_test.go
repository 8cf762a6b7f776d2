package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEffectiveStatus(t *testing.T) {
	now := time.Date(2024, 6, 10, 15, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		status ObligationStatus
		due    time.Time
		want   ObligationStatus
	}{
		{"pending yesterday", StatusPending, Date(2024, 6, 9, time.UTC), StatusOverdue},
		{"pending today", StatusPending, Date(2024, 6, 10, time.UTC), StatusPending},
		{"pending tomorrow", StatusPending, Date(2024, 6, 11, time.UTC), StatusPending},
		{"completed in the past", StatusCompleted, Date(2024, 1, 1, time.UTC), StatusCompleted},
		{"in progress in the past", StatusInProgress, Date(2024, 1, 1, time.UTC), StatusInProgress},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := Obligation{Status: tt.status, DueDate: tt.due}
			assert.Equal(t, tt.want, EffectiveStatus(o, now))
		})
	}
}

func TestCompletedOnTime(t *testing.T) {
	due := Date(2024, 6, 10, time.UTC)
	o := Obligation{DueDate: due}
	assert.False(t, o.CompletedOnTime())

	o.CompletedAt = &due
	assert.True(t, o.CompletedOnTime())

	sameDay := due.Add(17 * time.Hour)
	o.CompletedAt = &sameDay
	assert.True(t, o.CompletedOnTime())

	late := due.AddDate(0, 0, 1)
	o.CompletedAt = &late
	assert.False(t, o.CompletedOnTime())
}

func TestObligationHelpersOnValues(t *testing.T) {
	byKey := map[string]ObligationWithDetails{
		"done": {Obligation: Obligation{Status: StatusCompleted, AssignedTo: "ana"}},
		"open": {Obligation: Obligation{Status: StatusPending}},
	}

	// Map elements are not addressable.
	assert.True(t, byKey["done"].IsCompleted())
	assert.Equal(t, "ana", byKey["done"].AssigneeOrUnassigned())
	assert.False(t, byKey["open"].IsCompleted())
	assert.Equal(t, Unassigned, byKey["open"].AssigneeOrUnassigned())
	assert.False(t, byKey["open"].CompletedOnTime())
	assert.Equal(t, StatusPending, byKey["open"].Base().Status)
}

func TestParseWeekendAdjust(t *testing.T) {
	adj, err := ParseWeekendAdjust("")
	assert.NoError(t, err)
	assert.Equal(t, AdjustPostpone, adj)

	adj, err = ParseWeekendAdjust("anticipate")
	assert.NoError(t, err)
	assert.Equal(t, AdjustAnticipate, adj)

	_, err = ParseWeekendAdjust("sideways")
	assert.Error(t, err)
}

func TestInstallmentCounters(t *testing.T) {
	i := Installment{CurrentInstallment: 3, TotalInstallments: 10}
	assert.Equal(t, 7, i.Remaining())
	assert.False(t, i.IsFinished())

	i.CurrentInstallment = 10
	assert.Equal(t, 0, i.Remaining())
	assert.True(t, i.IsFinished())
}
