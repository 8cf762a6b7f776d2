package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tazhate/fiscalbot/internal/dashboard"
	"github.com/tazhate/fiscalbot/internal/domain"
	"github.com/tazhate/fiscalbot/internal/storage"
)

type ObligationService struct {
	storage *storage.Storage
	audit   auditor
	events  *Events
	now     func() time.Time
}

func NewObligationService(s *storage.Storage, events *Events, logger *zap.Logger) *ObligationService {
	return &ObligationService{
		storage: s,
		audit:   auditor{storage: s, logger: logger},
		events:  events,
		now:     time.Now,
	}
}

func (s *ObligationService) List(ctx context.Context) ([]domain.Obligation, error) {
	return s.storage.ListObligations(ctx)
}

func (s *ObligationService) ListByStatus(ctx context.Context, status domain.ObligationStatus) ([]domain.Obligation, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, status)
	}
	return s.storage.ListObligationsByStatus(ctx, status)
}

func (s *ObligationService) ListByClient(ctx context.Context, clientID string) ([]domain.Obligation, error) {
	return s.storage.ListObligationsByClient(ctx, clientID)
}

// ListWithDetails joins every obligation with its client and tax. The three
// reads are independent and run concurrently.
func (s *ObligationService) ListWithDetails(ctx context.Context) ([]domain.ObligationWithDetails, error) {
	var (
		obligations []domain.Obligation
		clients     []domain.Client
		taxes       []domain.Tax
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		obligations, err = s.storage.ListObligations(gctx)
		return err
	})
	g.Go(func() (err error) {
		clients, err = s.storage.ListClients(gctx)
		return err
	})
	g.Go(func() (err error) {
		taxes, err = s.storage.ListTaxes(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load obligations: %w", err)
	}

	return dashboard.WithDetails(obligations, clients, taxes), nil
}

func (s *ObligationService) Get(ctx context.Context, id string) (*domain.Obligation, error) {
	o, err := s.storage.GetObligationByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, fmt.Errorf("obligation %s: %w", id, ErrNotFound)
	}
	return o, nil
}

func (s *ObligationService) validate(ctx context.Context, o *domain.Obligation) error {
	if o.TaxID == "" || o.ClientID == "" {
		return fmt.Errorf("%w: taxId and clientId are required", ErrInvalidInput)
	}
	if o.DueDate.IsZero() {
		return fmt.Errorf("%w: dueDate is required", ErrInvalidInput)
	}
	if o.Status != "" && !o.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidInput, o.Status)
	}
	if o.Priority != "" && !o.Priority.Valid() {
		return fmt.Errorf("%w: unknown priority %q", ErrInvalidInput, o.Priority)
	}

	tax, err := s.storage.GetTaxByID(ctx, o.TaxID)
	if err != nil {
		return err
	}
	if tax == nil {
		return fmt.Errorf("%w: tax %s does not exist", ErrInvalidInput, o.TaxID)
	}
	client, err := s.storage.GetClientByID(ctx, o.ClientID)
	if err != nil {
		return err
	}
	if client == nil {
		return fmt.Errorf("%w: client %s does not exist", ErrInvalidInput, o.ClientID)
	}
	return nil
}

// Save creates or updates o. Completing an obligation through Save stamps
// CompletedAt and CompletedBy when the caller left them empty.
func (s *ObligationService) Save(ctx context.Context, o *domain.Obligation, performedBy string) (*domain.Obligation, error) {
	if err := s.validate(ctx, o); err != nil {
		return nil, err
	}

	var before *domain.Obligation
	if o.ID != "" {
		var err error
		if before, err = s.storage.GetObligationByID(ctx, o.ID); err != nil {
			return nil, err
		}
	}

	if o.Status == domain.StatusCompleted && o.CompletedAt == nil {
		now := s.now()
		o.CompletedAt = &now
		if o.CompletedBy == "" {
			o.CompletedBy = performedBy
		}
	}

	created, err := s.storage.SaveObligation(ctx, o)
	if err != nil {
		return nil, fmt.Errorf("save obligation: %w", err)
	}

	action := domain.ActionCreated
	var changes map[string]any
	if !created {
		action = domain.ActionUpdated
		changes = diffChanges(before, o)
	}
	s.audit.record(ctx, domain.EntityObligation, o.ID, action, performedBy, changes)

	saved, err := s.Get(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	s.events.Publish(ctx, ChangeEvent{EntityType: domain.EntityObligation, EntityID: o.ID, Action: action, Entity: *saved})
	return saved, nil
}

// UpdateStatus changes only the status. overdue is derived, so it cannot be
// set explicitly.
func (s *ObligationService) UpdateStatus(ctx context.Context, id string, status domain.ObligationStatus, performedBy string) (*domain.Obligation, error) {
	if !status.Valid() || status == domain.StatusOverdue {
		return nil, fmt.Errorf("%w: cannot set status %q", ErrInvalidInput, status)
	}

	before, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.storage.UpdateObligationStatus(ctx, id, status, performedBy, s.now()); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("obligation %s: %w", id, ErrNotFound)
		}
		return nil, err
	}

	s.audit.record(ctx, domain.EntityObligation, id, domain.ActionStatusChanged, performedBy, map[string]any{
		"from": string(before.Status),
		"to":   string(status),
	})

	saved, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.events.Publish(ctx, ChangeEvent{EntityType: domain.EntityObligation, EntityID: id, Action: domain.ActionStatusChanged, Entity: *saved})
	return saved, nil
}

func (s *ObligationService) Delete(ctx context.Context, id, performedBy string) error {
	if err := s.storage.DeleteObligation(ctx, id); err != nil {
		if isStorageNotFound(err) {
			return fmt.Errorf("obligation %s: %w", id, ErrNotFound)
		}
		return err
	}
	s.audit.record(ctx, domain.EntityObligation, id, domain.ActionDeleted, performedBy, nil)
	s.events.Publish(ctx, ChangeEvent{EntityType: domain.EntityObligation, EntityID: id, Action: domain.ActionDeleted})
	return nil
}
