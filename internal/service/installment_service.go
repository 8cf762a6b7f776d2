package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tazhate/fiscalbot/internal/calendar"
	"github.com/tazhate/fiscalbot/internal/domain"
	"github.com/tazhate/fiscalbot/internal/recurrence"
	"github.com/tazhate/fiscalbot/internal/storage"
)

// InstallmentDue is one parcel of a payment plan.
type InstallmentDue struct {
	Number  int       `json:"number"`
	DueDate time.Time `json:"dueDate"`
	Paid    bool      `json:"paid"`
}

type InstallmentService struct {
	storage  *storage.Storage
	engine   *recurrence.Engine
	adjuster *calendar.Adjuster
	audit    auditor
	events   *Events
}

func NewInstallmentService(s *storage.Storage, engine *recurrence.Engine, adjuster *calendar.Adjuster, events *Events, logger *zap.Logger) *InstallmentService {
	return &InstallmentService{
		storage:  s,
		engine:   engine,
		adjuster: adjuster,
		audit:    auditor{storage: s, logger: logger},
		events:   events,
	}
}

func (s *InstallmentService) List(ctx context.Context) ([]domain.Installment, error) {
	return s.storage.ListInstallments(ctx)
}

func (s *InstallmentService) Get(ctx context.Context, id string) (*domain.Installment, error) {
	i, err := s.storage.GetInstallmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if i == nil {
		return nil, fmt.Errorf("installment %s: %w", id, ErrNotFound)
	}
	return i, nil
}

func (s *InstallmentService) Save(ctx context.Context, i *domain.Installment, performedBy string) (*domain.Installment, error) {
	i.Description = strings.TrimSpace(i.Description)
	switch {
	case i.TaxID == "" || i.ClientID == "":
		return nil, fmt.Errorf("%w: taxId and clientId are required", ErrInvalidInput)
	case i.TotalInstallments <= 0:
		return nil, fmt.Errorf("%w: totalInstallments must be positive", ErrInvalidInput)
	case i.CurrentInstallment < 0 || i.CurrentInstallment > i.TotalInstallments:
		return nil, fmt.Errorf("%w: currentInstallment must be between 0 and %d", ErrInvalidInput, i.TotalInstallments)
	case i.FirstDueDate.IsZero():
		return nil, fmt.Errorf("%w: firstDueDate is required", ErrInvalidInput)
	case i.RecurrenceRule.Type == domain.RecurrenceNone:
		return nil, fmt.Errorf("%w: installments need a recurring rule", ErrInvalidInput)
	}
	adjust, err := domain.ParseWeekendAdjust(string(i.WeekendAdjust))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	i.WeekendAdjust = adjust
	if i.IsFinished() {
		i.Status = domain.StatusCompleted
	}

	var before *domain.Installment
	if i.ID != "" {
		if before, err = s.storage.GetInstallmentByID(ctx, i.ID); err != nil {
			return nil, err
		}
	}

	created, err := s.storage.SaveInstallment(ctx, i)
	if err != nil {
		return nil, fmt.Errorf("save installment: %w", err)
	}

	action := domain.ActionCreated
	var changes map[string]any
	if !created {
		action = domain.ActionUpdated
		changes = diffChanges(before, i)
	}
	s.audit.record(ctx, domain.EntityInstallment, i.ID, action, performedBy, changes)
	s.events.Publish(ctx, ChangeEvent{EntityType: domain.EntityInstallment, EntityID: i.ID, Action: action, Entity: *i})

	return s.Get(ctx, i.ID)
}

// Advance marks the next parcel as paid, completing the plan after the last.
func (s *InstallmentService) Advance(ctx context.Context, id, performedBy string) (*domain.Installment, error) {
	i, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if i.IsFinished() {
		return nil, fmt.Errorf("%w: installment plan already finished", ErrInvalidInput)
	}

	from := i.CurrentInstallment
	i.CurrentInstallment++
	if i.IsFinished() {
		i.Status = domain.StatusCompleted
	} else {
		i.Status = domain.StatusInProgress
	}
	if _, err := s.storage.SaveInstallment(ctx, i); err != nil {
		return nil, fmt.Errorf("save installment: %w", err)
	}

	s.audit.record(ctx, domain.EntityInstallment, i.ID, domain.ActionUpdated, performedBy, map[string]any{
		"currentInstallment": map[string]any{"from": from, "to": i.CurrentInstallment},
	})
	s.events.Publish(ctx, ChangeEvent{EntityType: domain.EntityInstallment, EntityID: i.ID, Action: domain.ActionUpdated, Entity: *i})
	return i, nil
}

func (s *InstallmentService) Delete(ctx context.Context, id, performedBy string) error {
	if err := s.storage.DeleteInstallment(ctx, id); err != nil {
		if isStorageNotFound(err) {
			return fmt.Errorf("installment %s: %w", id, ErrNotFound)
		}
		return err
	}
	s.audit.record(ctx, domain.EntityInstallment, id, domain.ActionDeleted, performedBy, nil)
	s.events.Publish(ctx, ChangeEvent{EntityType: domain.EntityInstallment, EntityID: id, Action: domain.ActionDeleted})
	return nil
}

// Schedule lists every parcel with its adjusted due date. The first parcel
// falls on FirstDueDate; the rest follow the plan's recurrence rule.
func (s *InstallmentService) Schedule(ctx context.Context, i *domain.Installment) ([]InstallmentDue, error) {
	if i.TotalInstallments <= 0 {
		return nil, nil
	}

	// Month-based plans keep the first parcel's day of month.
	rule := i.RecurrenceRule
	if rule.DayOfMonth == 0 && !(rule.Type == domain.RecurrenceCustom && rule.Interval > 0) {
		rule.DayOfMonth = i.FirstDueDate.Day()
	}

	first := s.adjuster.Adjust(ctx, i.FirstDueDate, i.WeekendAdjust)
	dates := []time.Time{first}
	if i.TotalInstallments > 1 {
		rest, err := s.engine.GenerateFutureDates(ctx, first, rule, i.WeekendAdjust, i.TotalInstallments-1)
		if err != nil {
			if errors.Is(err, recurrence.ErrNoRecurrence) {
				return nil, fmt.Errorf("%w: installments need a recurring rule", ErrInvalidInput)
			}
			return nil, err
		}
		dates = append(dates, rest...)
	}

	schedule := make([]InstallmentDue, len(dates))
	for n, d := range dates {
		schedule[n] = InstallmentDue{Number: n + 1, DueDate: d, Paid: n < i.CurrentInstallment}
	}
	return schedule, nil
}

// NextDue returns the first unpaid parcel, or nil when the plan is finished.
func (s *InstallmentService) NextDue(ctx context.Context, i *domain.Installment) (*InstallmentDue, error) {
	if i.IsFinished() {
		return nil, nil
	}
	schedule, err := s.Schedule(ctx, i)
	if err != nil {
		return nil, err
	}
	if i.CurrentInstallment >= len(schedule) {
		return nil, nil
	}
	next := schedule[i.CurrentInstallment]
	return &next, nil
}
