package service

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"

	"go.uber.org/zap"

	"github.com/tazhate/fiscalbot/internal/domain"
	"github.com/tazhate/fiscalbot/internal/storage"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
)

// auditor writes audit entries. A failed write is logged: the entity change
// it describes has already been committed.
type auditor struct {
	storage *storage.Storage
	logger  *zap.Logger
}

func (a auditor) record(ctx context.Context, entityType domain.EntityType, entityID string, action domain.AuditAction, performedBy string, changes map[string]any) {
	entry := &domain.AuditLog{
		EntityType:  entityType,
		EntityID:    entityID,
		Action:      action,
		PerformedBy: performedBy,
		Changes:     changes,
	}
	if err := a.storage.AppendAudit(ctx, entry); err != nil {
		a.logger.Error("audit log write failed",
			zap.String("entity_type", string(entityType)),
			zap.String("entity_id", entityID),
			zap.String("action", string(action)),
			zap.Error(err),
		)
	}
}

// ignoredFields never show up in change sets.
var ignoredFields = map[string]bool{"createdAt": true, "updatedAt": true}

// diffChanges compares the JSON forms of before and after and returns the
// fields whose values differ, keyed by JSON name, as {"from": x, "to": y}.
func diffChanges(before, after any) map[string]any {
	a, errA := toMap(before)
	b, errB := toMap(after)
	if errA != nil || errB != nil {
		return nil
	}

	changes := make(map[string]any)
	for k, v := range b {
		if ignoredFields[k] {
			continue
		}
		if old, ok := a[k]; !ok || !reflect.DeepEqual(old, v) {
			changes[k] = map[string]any{"from": a[k], "to": v}
		}
	}
	for k, v := range a {
		if _, ok := b[k]; !ok && !ignoredFields[k] {
			changes[k] = map[string]any{"from": v, "to": nil}
		}
	}
	if len(changes) == 0 {
		return nil
	}
	return changes
}

func toMap(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func isStorageNotFound(err error) bool {
	return errors.Is(err, storage.ErrNotFound)
}
