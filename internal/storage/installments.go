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

const installmentColumns = `id, tax_id, client_id, description, current_installment, total_installments, first_due_date,
	recurrence_rule, weekend_adjust, assigned_to, status, notes, created_at, updated_at`

func (s *Storage) scanInstallment(row scanner) (*domain.Installment, error) {
	i := &domain.Installment{}
	var first, rule, adjust, status, created, updated string
	if err := row.Scan(&i.ID, &i.TaxID, &i.ClientID, &i.Description, &i.CurrentInstallment, &i.TotalInstallments,
		&first, &rule, &adjust, &i.AssignedTo, &status, &i.Notes, &created, &updated); err != nil {
		return nil, err
	}

	var err error
	if i.FirstDueDate, err = s.parseDate(first); err != nil {
		return nil, err
	}
	if i.RecurrenceRule, err = decodeRule(rule); err != nil {
		return nil, err
	}
	i.WeekendAdjust = domain.WeekendAdjust(adjust)
	i.Status = domain.ObligationStatus(status)
	if err := s.parseTimestamps(created, updated, &i.CreatedAt, &i.UpdatedAt); err != nil {
		return nil, err
	}
	return i, nil
}

func (s *Storage) ListInstallments(ctx context.Context) ([]domain.Installment, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+installmentColumns+` FROM installments ORDER BY first_due_date, created_at`)
	if err != nil {
		return nil, fmt.Errorf("list installments: %w", err)
	}
	defer rows.Close()

	list := make([]domain.Installment, 0)
	for rows.Next() {
		i, err := s.scanInstallment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan installment: %w", err)
		}
		list = append(list, *i)
	}
	return list, rows.Err()
}

// GetInstallmentByID returns nil, nil when the installment does not exist.
func (s *Storage) GetInstallmentByID(ctx context.Context, id string) (*domain.Installment, error) {
	i, err := s.scanInstallment(s.db.QueryRowContext(ctx, `SELECT `+installmentColumns+` FROM installments WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get installment: %w", err)
	}
	return i, nil
}

func (s *Storage) SaveInstallment(ctx context.Context, i *domain.Installment) (created bool, err error) {
	if i.RecurrenceRule.Type == "" {
		i.RecurrenceRule.Type = domain.RecurrenceMonthly
	}
	rule, err := encodeRule(i.RecurrenceRule)
	if err != nil {
		return false, err
	}
	if i.WeekendAdjust == "" {
		i.WeekendAdjust = domain.AdjustPostpone
	}
	if i.Status == "" {
		i.Status = domain.StatusPending
	}

	now := time.Now()
	if i.ID != "" {
		res, err := s.db.ExecContext(ctx,
			`UPDATE installments SET tax_id = ?, client_id = ?, description = ?, current_installment = ?, total_installments = ?,
			 first_due_date = ?, recurrence_rule = ?, weekend_adjust = ?, assigned_to = ?, status = ?, notes = ?, updated_at = ?
			 WHERE id = ?`,
			i.TaxID, i.ClientID, i.Description, i.CurrentInstallment, i.TotalInstallments,
			formatDate(i.FirstDueDate), rule, string(i.WeekendAdjust), i.AssignedTo, string(i.Status), i.Notes, formatTime(now),
			i.ID,
		)
		if err != nil {
			return false, fmt.Errorf("update installment: %w", err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			i.UpdatedAt = now
			return false, nil
		}
	} else {
		i.ID = uuid.NewString()
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO installments (`+installmentColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		i.ID, i.TaxID, i.ClientID, i.Description, i.CurrentInstallment, i.TotalInstallments,
		formatDate(i.FirstDueDate), rule, string(i.WeekendAdjust), i.AssignedTo, string(i.Status), i.Notes,
		formatTime(now), formatTime(now),
	)
	if err != nil {
		return false, fmt.Errorf("insert installment: %w", err)
	}
	i.CreatedAt, i.UpdatedAt = now, now
	return true, nil
}

func (s *Storage) DeleteInstallment(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM installments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete installment: %w", err)
	}
	return checkAffected(res)
}
