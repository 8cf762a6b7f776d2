package domain

import "time"

type UserSettings struct {
	UserIdentifier       string    `json:"userIdentifier"`
	Language             string    `json:"language"`
	Timezone             string    `json:"timezone"`
	DateFormat           string    `json:"dateFormat"`
	NotificationsEnabled bool      `json:"notificationsEnabled"`
	EmailNotifications   bool      `json:"emailNotifications"`
	ReminderDays         int       `json:"reminderDays"`
	CreatedAt            time.Time `json:"createdAt"`
	UpdatedAt            time.Time `json:"updatedAt"`
}

// DefaultUserSettings returns the settings a user gets before saving any.
func DefaultUserSettings(userIdentifier string) UserSettings {
	return UserSettings{
		UserIdentifier:       userIdentifier,
		Language:             "pt-BR",
		Timezone:             "America/Sao_Paulo",
		DateFormat:           "DD/MM/YYYY",
		NotificationsEnabled: true,
		EmailNotifications:   false,
		ReminderDays:         7,
	}
}
