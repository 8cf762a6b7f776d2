package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tazhate/fiscalbot/internal/domain"
)

// GetUserSettings returns nil, nil when the user never saved settings.
func (s *Storage) GetUserSettings(ctx context.Context, userIdentifier string) (*domain.UserSettings, error) {
	us := &domain.UserSettings{}
	var notifications, email int
	var created, updated string
	err := s.db.QueryRowContext(ctx,
		`SELECT user_identifier, language, timezone, date_format, notifications_enabled, email_notifications,
		 reminder_days, created_at, updated_at FROM user_settings WHERE user_identifier = ?`,
		userIdentifier,
	).Scan(&us.UserIdentifier, &us.Language, &us.Timezone, &us.DateFormat, &notifications, &email,
		&us.ReminderDays, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user settings: %w", err)
	}
	us.NotificationsEnabled = notifications == 1
	us.EmailNotifications = email == 1
	if err := s.parseTimestamps(created, updated, &us.CreatedAt, &us.UpdatedAt); err != nil {
		return nil, err
	}
	return us, nil
}

func (s *Storage) SaveUserSettings(ctx context.Context, us *domain.UserSettings) error {
	now := time.Now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_settings (user_identifier, language, timezone, date_format, notifications_enabled,
		 email_notifications, reminder_days, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_identifier) DO UPDATE SET
		 language = excluded.language, timezone = excluded.timezone, date_format = excluded.date_format,
		 notifications_enabled = excluded.notifications_enabled, email_notifications = excluded.email_notifications,
		 reminder_days = excluded.reminder_days, updated_at = excluded.updated_at`,
		us.UserIdentifier, us.Language, us.Timezone, us.DateFormat, boolToInt(us.NotificationsEnabled),
		boolToInt(us.EmailNotifications), us.ReminderDays, formatTime(now), formatTime(now),
	)
	if err != nil {
		return fmt.Errorf("save user settings: %w", err)
	}
	if us.CreatedAt.IsZero() {
		us.CreatedAt = now
	}
	us.UpdatedAt = now
	return nil
}
