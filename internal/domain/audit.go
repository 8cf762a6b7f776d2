package domain

import "time"

type EntityType string

const (
	EntityClient      EntityType = "client"
	EntityTax         EntityType = "tax"
	EntityObligation  EntityType = "obligation"
	EntityInstallment EntityType = "installment"
)

func (e EntityType) Valid() bool {
	switch e {
	case EntityClient, EntityTax, EntityObligation, EntityInstallment:
		return true
	}
	return false
}

type AuditAction string

const (
	ActionCreated       AuditAction = "created"
	ActionUpdated       AuditAction = "updated"
	ActionDeleted       AuditAction = "deleted"
	ActionStatusChanged AuditAction = "status_changed"
)

// AuditLog is an append-only record of a change to an entity.
type AuditLog struct {
	ID          string         `json:"id"`
	EntityType  EntityType     `json:"entityType"`
	EntityID    string         `json:"entityId"`
	Action      AuditAction    `json:"action"`
	PerformedBy string         `json:"performedBy"`
	Changes     map[string]any `json:"changes,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
}
