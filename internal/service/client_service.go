package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/tazhate/fiscalbot/internal/domain"
	"github.com/tazhate/fiscalbot/internal/storage"
)

type ClientService struct {
	storage *storage.Storage
	audit   auditor
	events  *Events
}

func NewClientService(s *storage.Storage, events *Events, logger *zap.Logger) *ClientService {
	return &ClientService{storage: s, audit: auditor{storage: s, logger: logger}, events: events}
}

func (s *ClientService) List(ctx context.Context) ([]domain.Client, error) {
	return s.storage.ListClients(ctx)
}

func (s *ClientService) Get(ctx context.Context, id string) (*domain.Client, error) {
	c, err := s.storage.GetClientByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("client %s: %w", id, ErrNotFound)
	}
	return c, nil
}

// Save creates or updates c and records the change.
func (s *ClientService) Save(ctx context.Context, c *domain.Client, performedBy string) (*domain.Client, error) {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return nil, fmt.Errorf("%w: client name cannot be empty", ErrInvalidInput)
	}

	var before *domain.Client
	if c.ID != "" {
		var err error
		if before, err = s.storage.GetClientByID(ctx, c.ID); err != nil {
			return nil, err
		}
	}

	created, err := s.storage.SaveClient(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("save client: %w", err)
	}

	action := domain.ActionCreated
	var changes map[string]any
	if !created {
		action = domain.ActionUpdated
		changes = diffChanges(before, c)
	}
	s.audit.record(ctx, domain.EntityClient, c.ID, action, performedBy, changes)
	s.events.Publish(ctx, ChangeEvent{EntityType: domain.EntityClient, EntityID: c.ID, Action: action, Entity: *c})

	return s.Get(ctx, c.ID)
}

func (s *ClientService) Delete(ctx context.Context, id, performedBy string) error {
	if err := s.storage.DeleteClient(ctx, id); err != nil {
		if isStorageNotFound(err) {
			return fmt.Errorf("client %s: %w", id, ErrNotFound)
		}
		return err
	}
	s.audit.record(ctx, domain.EntityClient, id, domain.ActionDeleted, performedBy, nil)
	s.events.Publish(ctx, ChangeEvent{EntityType: domain.EntityClient, EntityID: id, Action: domain.ActionDeleted})
	return nil
}
