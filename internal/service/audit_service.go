package service

import (
	"context"
	"fmt"

	"github.com/tazhate/fiscalbot/internal/domain"
	"github.com/tazhate/fiscalbot/internal/storage"
)

type AuditService struct {
	storage *storage.Storage
}

func NewAuditService(s *storage.Storage) *AuditService {
	return &AuditService{storage: s}
}

// Trail returns the latest audit entries for an entity, newest first.
func (s *AuditService) Trail(ctx context.Context, entityType domain.EntityType, id string) ([]domain.AuditLog, error) {
	if !entityType.Valid() {
		return nil, fmt.Errorf("%w: unknown entity type %q", ErrInvalidInput, entityType)
	}
	return s.storage.ListAuditLogs(ctx, entityType, id)
}
