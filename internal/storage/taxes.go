package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tazhate/fiscalbot/internal/domain"
)

const taxColumns = `id, name, description, category, recurrence_rule, weekend_adjust, default_assignee, auto_generate, active, created_at, updated_at`

func (s *Storage) scanTax(row scanner) (*domain.Tax, error) {
	t := &domain.Tax{}
	var rule, adjust, created, updated string
	var auto, active int
	if err := row.Scan(&t.ID, &t.Name, &t.Description, &t.Category, &rule, &adjust,
		&t.DefaultAssignee, &auto, &active, &created, &updated); err != nil {
		return nil, err
	}

	var err error
	if t.RecurrenceRule, err = decodeRule(rule); err != nil {
		return nil, err
	}
	t.WeekendAdjust = domain.WeekendAdjust(adjust)
	t.AutoGenerate = auto == 1
	t.Active = active == 1
	if err := s.parseTimestamps(created, updated, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Storage) queryTaxes(ctx context.Context, query string, args ...any) ([]domain.Tax, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list taxes: %w", err)
	}
	defer rows.Close()

	taxes := make([]domain.Tax, 0)
	for rows.Next() {
		t, err := s.scanTax(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tax: %w", err)
		}
		taxes = append(taxes, *t)
	}
	return taxes, rows.Err()
}

func (s *Storage) ListTaxes(ctx context.Context) ([]domain.Tax, error) {
	return s.queryTaxes(ctx, `SELECT `+taxColumns+` FROM taxes ORDER BY name`)
}

// ListAutoGenerateTaxes returns active taxes flagged for auto-generation.
func (s *Storage) ListAutoGenerateTaxes(ctx context.Context) ([]domain.Tax, error) {
	return s.queryTaxes(ctx, `SELECT `+taxColumns+` FROM taxes WHERE active = 1 AND auto_generate = 1 ORDER BY name`)
}

// GetTaxByID returns nil, nil when the tax does not exist.
func (s *Storage) GetTaxByID(ctx context.Context, id string) (*domain.Tax, error) {
	t, err := s.scanTax(s.db.QueryRowContext(ctx, `SELECT `+taxColumns+` FROM taxes WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get tax: %w", err)
	}
	return t, nil
}

// SaveTax upserts t by ID. An empty weekend rule is stored as postpone.
func (s *Storage) SaveTax(ctx context.Context, t *domain.Tax) (created bool, err error) {
	rule, err := encodeRule(t.RecurrenceRule)
	if err != nil {
		return false, err
	}
	if t.WeekendAdjust == "" {
		t.WeekendAdjust = domain.AdjustPostpone
	}

	now := time.Now()
	if t.ID != "" {
		res, err := s.db.ExecContext(ctx,
			`UPDATE taxes SET name = ?, description = ?, category = ?, recurrence_rule = ?, weekend_adjust = ?,
			 default_assignee = ?, auto_generate = ?, active = ?, updated_at = ? WHERE id = ?`,
			t.Name, t.Description, t.Category, rule, string(t.WeekendAdjust),
			t.DefaultAssignee, boolToInt(t.AutoGenerate), boolToInt(t.Active), formatTime(now), t.ID,
		)
		if err != nil {
			return false, fmt.Errorf("update tax: %w", err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			t.UpdatedAt = now
			return false, nil
		}
	} else {
		t.ID = uuid.NewString()
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO taxes (`+taxColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Name, t.Description, t.Category, rule, string(t.WeekendAdjust),
		t.DefaultAssignee, boolToInt(t.AutoGenerate), boolToInt(t.Active), formatTime(now), formatTime(now),
	)
	if err != nil {
		return false, fmt.Errorf("insert tax: %w", err)
	}
	t.CreatedAt, t.UpdatedAt = now, now
	return true, nil
}

func (s *Storage) DeleteTax(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM taxes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete tax: %w", err)
	}
	return checkAffected(res)
}
