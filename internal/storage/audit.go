package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tazhate/fiscalbot/internal/domain"
)

// auditListLimit caps ListAuditLogs.
const auditListLimit = 50

// AppendAudit writes an audit entry, filling ID and Timestamp when empty.
func (s *Storage) AppendAudit(ctx context.Context, entry *domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	var changes sql.NullString
	if len(entry.Changes) > 0 {
		b, err := json.Marshal(entry.Changes)
		if err != nil {
			return fmt.Errorf("marshal changes: %w", err)
		}
		changes = sql.NullString{String: string(b), Valid: true}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_logs (id, entity_type, entity_id, action, performed_by, changes, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, string(entry.EntityType), entry.EntityID, string(entry.Action), entry.PerformedBy, changes,
		formatTime(entry.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

// ListAuditLogs returns the latest entries for one entity, newest first.
func (s *Storage) ListAuditLogs(ctx context.Context, entityType domain.EntityType, entityID string) ([]domain.AuditLog, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, entity_type, entity_id, action, performed_by, changes, timestamp
		 FROM audit_logs WHERE entity_type = ? AND entity_id = ?
		 ORDER BY timestamp DESC, rowid DESC LIMIT ?`,
		string(entityType), entityID, auditListLimit,
	)
	if err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0)
	for rows.Next() {
		var (
			entry           domain.AuditLog
			typ, action, ts string
			changes         sql.NullString
		)
		if err := rows.Scan(&entry.ID, &typ, &entry.EntityID, &action, &entry.PerformedBy, &changes, &ts); err != nil {
			return nil, fmt.Errorf("scan audit log: %w", err)
		}
		entry.EntityType = domain.EntityType(typ)
		entry.Action = domain.AuditAction(action)
		if changes.Valid && changes.String != "" {
			if err := json.Unmarshal([]byte(changes.String), &entry.Changes); err != nil {
				return nil, fmt.Errorf("unmarshal changes: %w", err)
			}
		}
		t, err := parseTime(ts)
		if err != nil {
			return nil, err
		}
		entry.Timestamp = t.In(s.loc)
		logs = append(logs, entry)
	}
	return logs, rows.Err()
}
