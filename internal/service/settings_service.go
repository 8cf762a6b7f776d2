package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tazhate/fiscalbot/internal/domain"
	"github.com/tazhate/fiscalbot/internal/storage"
)

type SettingsService struct {
	storage *storage.Storage
}

func NewSettingsService(s *storage.Storage) *SettingsService {
	return &SettingsService{storage: s}
}

// Get returns the saved settings or the defaults for a new user.
func (s *SettingsService) Get(ctx context.Context, userIdentifier string) (*domain.UserSettings, error) {
	userIdentifier = strings.TrimSpace(userIdentifier)
	if userIdentifier == "" {
		return nil, fmt.Errorf("%w: user identifier is required", ErrInvalidInput)
	}
	us, err := s.storage.GetUserSettings(ctx, userIdentifier)
	if err != nil {
		return nil, err
	}
	if us == nil {
		d := domain.DefaultUserSettings(userIdentifier)
		return &d, nil
	}
	return us, nil
}

func (s *SettingsService) Save(ctx context.Context, us *domain.UserSettings) (*domain.UserSettings, error) {
	us.UserIdentifier = strings.TrimSpace(us.UserIdentifier)
	if us.UserIdentifier == "" {
		return nil, fmt.Errorf("%w: user identifier is required", ErrInvalidInput)
	}
	defaults := domain.DefaultUserSettings(us.UserIdentifier)
	if us.Timezone == "" {
		us.Timezone = defaults.Timezone
	}
	if _, err := time.LoadLocation(us.Timezone); err != nil {
		return nil, fmt.Errorf("%w: unknown timezone %q", ErrInvalidInput, us.Timezone)
	}
	if us.Language == "" {
		us.Language = defaults.Language
	}
	if us.DateFormat == "" {
		us.DateFormat = defaults.DateFormat
	}
	if us.ReminderDays < 0 || us.ReminderDays > 90 {
		return nil, fmt.Errorf("%w: reminderDays must be between 0 and 90", ErrInvalidInput)
	}

	if err := s.storage.SaveUserSettings(ctx, us); err != nil {
		return nil, err
	}
	return s.Get(ctx, us.UserIdentifier)
}
