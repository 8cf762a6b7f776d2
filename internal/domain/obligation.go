package domain

import "time"

type ObligationStatus string

const (
	StatusPending    ObligationStatus = "pending"
	StatusInProgress ObligationStatus = "in_progress"
	StatusCompleted  ObligationStatus = "completed"
	StatusOverdue    ObligationStatus = "overdue"
)

func (s ObligationStatus) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusOverdue:
		return true
	}
	return false
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func (p Priority) Valid() bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}

// Unassigned labels obligations without a responsible person in reports.
const Unassigned = "Não atribuído"

type Obligation struct {
	ID          string           `json:"id"`
	TaxID       string           `json:"taxId"`
	ClientID    string           `json:"clientId"`
	AssignedTo  string           `json:"assignedTo,omitempty"`
	DueDate     time.Time        `json:"dueDate"`
	Status      ObligationStatus `json:"status"`
	Priority    Priority         `json:"priority"`
	Notes       string           `json:"notes,omitempty"`
	CompletedAt *time.Time       `json:"completedAt,omitempty"`
	CompletedBy string           `json:"completedBy,omitempty"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

func (o Obligation) IsCompleted() bool {
	return o.Status == StatusCompleted
}

// CompletedOnTime reports completion on or before the due day. Any time
// during the due day counts as on time.
func (o Obligation) CompletedOnTime() bool {
	if o.CompletedAt == nil {
		return false
	}
	return DaysBetween(o.CompletedAt.In(o.DueDate.Location()), o.DueDate) >= 0
}

// AssigneeOrUnassigned returns AssignedTo or the Unassigned label.
func (o Obligation) AssigneeOrUnassigned() string {
	if o.AssignedTo == "" {
		return Unassigned
	}
	return o.AssignedTo
}

// EffectiveStatus is the single place where "overdue" is derived: a pending
// obligation whose due day is before today's day. Stored status is returned
// otherwise.
func EffectiveStatus(o Obligation, now time.Time) ObligationStatus {
	if o.Status == StatusPending && DaysBetween(now.In(o.DueDate.Location()), o.DueDate) < 0 {
		return StatusOverdue
	}
	return o.Status
}

// ObligationWithDetails joins an obligation with its tax and client.
// CalculatedDueDate is the weekend-adjusted due date for display.
type ObligationWithDetails struct {
	Obligation
	Tax               *Tax      `json:"tax,omitempty"`
	Client            *Client   `json:"client,omitempty"`
	CalculatedDueDate time.Time `json:"calculatedDueDate"`
}

// Base returns the plain obligation. Promoted to ObligationWithDetails so
// helpers can accept either type.
func (o Obligation) Base() Obligation {
	return o
}
