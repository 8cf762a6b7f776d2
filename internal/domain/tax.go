package domain

import "time"

// Tax is the template every obligation of the same kind is generated from.
type Tax struct {
	ID              string         `json:"id"`
	Name            string         `json:"name"`
	Description     string         `json:"description,omitempty"`
	Category        string         `json:"category"` // Federal, Estadual, Municipal
	RecurrenceRule  RecurrenceRule `json:"recurrenceRule"`
	WeekendAdjust   WeekendAdjust  `json:"weekendAdjust"`
	DefaultAssignee string         `json:"defaultAssignee,omitempty"`
	AutoGenerate    bool           `json:"autoGenerate"`
	Active          bool           `json:"active"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
}
