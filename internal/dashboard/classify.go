// Package dashboard classifies obligations relative to a reference instant.
// Every function takes now explicitly so one call sees one consistent clock.
package dashboard

import (
	"fmt"
	"slices"
	"time"

	"github.com/tazhate/fiscalbot/internal/calendar"
	"github.com/tazhate/fiscalbot/internal/domain"
)

// Item is satisfied by domain.Obligation and domain.ObligationWithDetails.
type Item interface {
	Base() domain.Obligation
}

// dayOffset counts calendar days from today to date, in date's location.
func dayOffset(date, now time.Time) int {
	return domain.DaysBetween(now.In(date.Location()), date)
}

// IsOverdue reports whether date's day is strictly before today.
func IsOverdue(date, now time.Time) bool {
	return dayOffset(date, now) < 0
}

func IsToday(date, now time.Time) bool {
	return dayOffset(date, now) == 0
}

// IsThisWeek reports whether date falls in [today, today+7).
func IsThisWeek(date, now time.Time) bool {
	off := dayOffset(date, now)
	return off >= 0 && off < 7
}

func pending[T Item](o T) bool {
	return o.Base().Status == domain.StatusPending
}

func filterSorted[T Item](list []T, keep func(T) bool) []T {
	out := make([]T, 0)
	for _, o := range list {
		if keep(o) {
			out = append(out, o)
		}
	}
	slices.SortStableFunc(out, func(a, b T) int {
		return a.Base().DueDate.Compare(b.Base().DueDate)
	})
	return out
}

// CriticalObligations returns pending obligations due today or earlier,
// oldest first.
func CriticalObligations[T Item](list []T, now time.Time) []T {
	return filterSorted(list, func(o T) bool {
		due := o.Base().DueDate
		return pending(o) && (IsOverdue(due, now) || IsToday(due, now))
	})
}

// OverdueObligations returns pending obligations due before today.
func OverdueObligations[T Item](list []T, now time.Time) []T {
	return filterSorted(list, func(o T) bool {
		return pending(o) && IsOverdue(o.Base().DueDate, now)
	})
}

// ThisWeekObligations returns pending obligations due in the next seven days.
func ThisWeekObligations[T Item](list []T, now time.Time) []T {
	return filterSorted(list, func(o T) bool {
		return pending(o) && IsThisWeek(o.Base().DueDate, now)
	})
}

type Stats struct {
	TotalClients       int `json:"totalClients"`
	ActiveClients      int `json:"activeClients"`
	TotalObligations   int `json:"totalObligations"`
	PendingObligations int `json:"pendingObligations"`
	CompletedThisMonth int `json:"completedThisMonth"`
	OverdueObligations int `json:"overdueObligations"`
	DueTodayCount      int `json:"dueTodayCount"`
	DueThisWeekCount   int `json:"dueThisWeekCount"`
}

func CalculateStats(clients []domain.Client, obligations []domain.Obligation, now time.Time) Stats {
	stats := Stats{
		TotalClients:     len(clients),
		TotalObligations: len(obligations),
	}
	for _, c := range clients {
		if c.Active {
			stats.ActiveClients++
		}
	}

	// Month bounds follow the reference zone due dates are stored in, not
	// whatever zone now carries.
	ref := now
	if len(obligations) > 0 {
		ref = now.In(obligations[0].DueDate.Location())
	}
	monthStart, monthEnd := domain.MonthBounds(ref)
	for _, o := range obligations {
		if o.Status == domain.StatusCompleted && o.CompletedAt != nil &&
			!o.CompletedAt.Before(monthStart) && !o.CompletedAt.After(monthEnd) {
			stats.CompletedThisMonth++
		}
		if o.Status != domain.StatusPending {
			continue
		}
		stats.PendingObligations++
		if IsOverdue(o.DueDate, now) {
			stats.OverdueObligations++
		}
		if IsToday(o.DueDate, now) {
			stats.DueTodayCount++
		}
		if IsThisWeek(o.DueDate, now) {
			stats.DueThisWeekCount++
		}
	}
	return stats
}

// RelativeDescription renders date relative to today in Portuguese, falling
// back to DD/MM/YYYY beyond a week either way.
func RelativeDescription(date, now time.Time) string {
	days := dayOffset(date, now)
	switch {
	case days == 0:
		return "Hoje"
	case days == 1:
		return "Amanhã"
	case days == -1:
		return "Ontem"
	case days > 0 && days <= 7:
		return fmt.Sprintf("Em %d dias", days)
	case days < 0 && days >= -7:
		return fmt.Sprintf("Há %d dias", -days)
	}
	return date.Format("02/01/2006")
}

// WithDetails joins obligations with their client and tax. CalculatedDueDate
// applies the tax weekend rule (postpone when the tax is unknown).
func WithDetails(obligations []domain.Obligation, clients []domain.Client, taxes []domain.Tax) []domain.ObligationWithDetails {
	clientByID := make(map[string]*domain.Client, len(clients))
	for i := range clients {
		clientByID[clients[i].ID] = &clients[i]
	}
	taxByID := make(map[string]*domain.Tax, len(taxes))
	for i := range taxes {
		taxByID[taxes[i].ID] = &taxes[i]
	}

	out := make([]domain.ObligationWithDetails, len(obligations))
	for i, o := range obligations {
		tax := taxByID[o.TaxID]
		adjust := domain.AdjustPostpone
		if tax != nil && tax.WeekendAdjust != "" {
			adjust = tax.WeekendAdjust
		}
		out[i] = domain.ObligationWithDetails{
			Obligation:        o,
			Tax:               tax,
			Client:            clientByID[o.ClientID],
			CalculatedDueDate: calendar.AdjustForWeekend(o.DueDate, adjust),
		}
	}
	return out
}

func GroupByClient[T Item](list []T) map[string][]T {
	grouped := make(map[string][]T)
	for _, o := range list {
		id := o.Base().ClientID
		grouped[id] = append(grouped[id], o)
	}
	return grouped
}

// GroupByStatus groups by stored status.
func GroupByStatus[T Item](list []T) map[domain.ObligationStatus][]T {
	grouped := make(map[domain.ObligationStatus][]T)
	for _, o := range list {
		s := o.Base().Status
		grouped[s] = append(grouped[s], o)
	}
	return grouped
}
