package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/tazhate/fiscalbot/internal/domain"
	"github.com/tazhate/fiscalbot/internal/recurrence"
	"github.com/tazhate/fiscalbot/internal/storage"
)

type TaxService struct {
	storage *storage.Storage
	audit   auditor
	events  *Events
}

func NewTaxService(s *storage.Storage, events *Events, logger *zap.Logger) *TaxService {
	return &TaxService{storage: s, audit: auditor{storage: s, logger: logger}, events: events}
}

func (s *TaxService) List(ctx context.Context) ([]domain.Tax, error) {
	return s.storage.ListTaxes(ctx)
}

func (s *TaxService) Get(ctx context.Context, id string) (*domain.Tax, error) {
	t, err := s.storage.GetTaxByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, fmt.Errorf("tax %s: %w", id, ErrNotFound)
	}
	return t, nil
}

// Save stores t. The recurrence rule check is advisory: an invalid rule is
// saved anyway and reported in the returned ValidationResult.
func (s *TaxService) Save(ctx context.Context, t *domain.Tax, performedBy string) (*domain.Tax, recurrence.ValidationResult, error) {
	t.Name = strings.TrimSpace(t.Name)
	if t.Name == "" {
		return nil, recurrence.ValidationResult{}, fmt.Errorf("%w: tax name cannot be empty", ErrInvalidInput)
	}
	adjust, err := domain.ParseWeekendAdjust(string(t.WeekendAdjust))
	if err != nil {
		return nil, recurrence.ValidationResult{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	t.WeekendAdjust = adjust

	validation := recurrence.Validate(t.RecurrenceRule)

	var before *domain.Tax
	if t.ID != "" {
		if before, err = s.storage.GetTaxByID(ctx, t.ID); err != nil {
			return nil, validation, err
		}
	}

	created, err := s.storage.SaveTax(ctx, t)
	if err != nil {
		return nil, validation, fmt.Errorf("save tax: %w", err)
	}

	action := domain.ActionCreated
	var changes map[string]any
	if !created {
		action = domain.ActionUpdated
		changes = diffChanges(before, t)
	}
	s.audit.record(ctx, domain.EntityTax, t.ID, action, performedBy, changes)
	s.events.Publish(ctx, ChangeEvent{EntityType: domain.EntityTax, EntityID: t.ID, Action: action, Entity: *t})

	saved, err := s.Get(ctx, t.ID)
	return saved, validation, err
}

func (s *TaxService) Delete(ctx context.Context, id, performedBy string) error {
	if err := s.storage.DeleteTax(ctx, id); err != nil {
		if isStorageNotFound(err) {
			return fmt.Errorf("tax %s: %w", id, ErrNotFound)
		}
		return err
	}
	s.audit.record(ctx, domain.EntityTax, id, domain.ActionDeleted, performedBy, nil)
	s.events.Publish(ctx, ChangeEvent{EntityType: domain.EntityTax, EntityID: id, Action: domain.ActionDeleted})
	return nil
}
