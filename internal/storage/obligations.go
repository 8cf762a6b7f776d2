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

const obligationColumns = `id, tax_id, client_id, assigned_to, due_date, status, priority, notes,
	completed_at, completed_by, created_at, updated_at`

func (s *Storage) scanObligation(row scanner) (*domain.Obligation, error) {
	o := &domain.Obligation{}
	var due, status, priority, created, updated string
	var completedAt sql.NullString
	if err := row.Scan(&o.ID, &o.TaxID, &o.ClientID, &o.AssignedTo, &due, &status, &priority, &o.Notes,
		&completedAt, &o.CompletedBy, &created, &updated); err != nil {
		return nil, err
	}

	var err error
	if o.DueDate, err = s.parseDate(due); err != nil {
		return nil, err
	}
	o.Status = domain.ObligationStatus(status)
	o.Priority = domain.Priority(priority)
	if completedAt.Valid && completedAt.String != "" {
		t, err := parseTime(completedAt.String)
		if err != nil {
			return nil, err
		}
		t = t.In(s.loc)
		o.CompletedAt = &t
	}
	if err := s.parseTimestamps(created, updated, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	return o, nil
}

func (s *Storage) queryObligations(ctx context.Context, query string, args ...any) ([]domain.Obligation, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list obligations: %w", err)
	}
	defer rows.Close()

	list := make([]domain.Obligation, 0)
	for rows.Next() {
		o, err := s.scanObligation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan obligation: %w", err)
		}
		list = append(list, *o)
	}
	return list, rows.Err()
}

func (s *Storage) ListObligations(ctx context.Context) ([]domain.Obligation, error) {
	return s.queryObligations(ctx, `SELECT `+obligationColumns+` FROM obligations ORDER BY due_date, created_at`)
}

func (s *Storage) ListObligationsByStatus(ctx context.Context, status domain.ObligationStatus) ([]domain.Obligation, error) {
	return s.queryObligations(ctx,
		`SELECT `+obligationColumns+` FROM obligations WHERE status = ? ORDER BY due_date, created_at`, string(status))
}

func (s *Storage) ListObligationsByClient(ctx context.Context, clientID string) ([]domain.Obligation, error) {
	return s.queryObligations(ctx,
		`SELECT `+obligationColumns+` FROM obligations WHERE client_id = ? ORDER BY due_date, created_at`, clientID)
}

func (s *Storage) ListObligationsByTax(ctx context.Context, taxID string) ([]domain.Obligation, error) {
	return s.queryObligations(ctx,
		`SELECT `+obligationColumns+` FROM obligations WHERE tax_id = ? ORDER BY due_date, created_at`, taxID)
}

// GetObligationByID returns nil, nil when the obligation does not exist.
func (s *Storage) GetObligationByID(ctx context.Context, id string) (*domain.Obligation, error) {
	o, err := s.scanObligation(s.db.QueryRowContext(ctx, `SELECT `+obligationColumns+` FROM obligations WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get obligation: %w", err)
	}
	return o, nil
}

func withObligationDefaults(o *domain.Obligation) {
	if o.Status == "" {
		o.Status = domain.StatusPending
	}
	if o.Priority == "" {
		o.Priority = domain.PriorityMedium
	}
}

func completedAtValue(o *domain.Obligation) any {
	if o.CompletedAt == nil {
		return nil
	}
	return formatTime(*o.CompletedAt)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertObligation(ctx context.Context, db execer, o *domain.Obligation, now time.Time) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	withObligationDefaults(o)

	_, err := db.ExecContext(ctx,
		`INSERT INTO obligations (`+obligationColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.TaxID, o.ClientID, o.AssignedTo, formatDate(o.DueDate), string(o.Status), string(o.Priority), o.Notes,
		completedAtValue(o), o.CompletedBy, formatTime(now), formatTime(now),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s/%s on %s", ErrDuplicateObligation, o.TaxID, o.ClientID, formatDate(o.DueDate))
	}
	if err != nil {
		return fmt.Errorf("insert obligation: %w", err)
	}
	o.CreatedAt, o.UpdatedAt = now, now
	return nil
}

// SaveObligation upserts o by ID. Repeating an existing (tax, client, due
// date) triple fails with ErrDuplicateObligation.
func (s *Storage) SaveObligation(ctx context.Context, o *domain.Obligation) (created bool, err error) {
	withObligationDefaults(o)
	now := time.Now()

	if o.ID != "" {
		res, err := s.db.ExecContext(ctx,
			`UPDATE obligations SET tax_id = ?, client_id = ?, assigned_to = ?, due_date = ?, status = ?, priority = ?,
			 notes = ?, completed_at = ?, completed_by = ?, updated_at = ? WHERE id = ?`,
			o.TaxID, o.ClientID, o.AssignedTo, formatDate(o.DueDate), string(o.Status), string(o.Priority),
			o.Notes, completedAtValue(o), o.CompletedBy, formatTime(now), o.ID,
		)
		if isUniqueViolation(err) {
			return false, fmt.Errorf("%w: %s/%s on %s", ErrDuplicateObligation, o.TaxID, o.ClientID, formatDate(o.DueDate))
		}
		if err != nil {
			return false, fmt.Errorf("update obligation: %w", err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			o.UpdatedAt = now
			return false, nil
		}
	}

	if err := insertObligation(ctx, s.db, o, now); err != nil {
		return false, err
	}
	return true, nil
}

// InsertGeneratedObligation inserts o unless its chain (tax, client) already
// has a pending obligation due after today, checked and written in one
// transaction. Either rejection returns ErrDuplicateObligation.
func (s *Storage) InsertGeneratedObligation(ctx context.Context, o *domain.Obligation, today time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var pending int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM obligations WHERE tax_id = ? AND client_id = ? AND status = ? AND due_date > ?`,
		o.TaxID, o.ClientID, string(domain.StatusPending), formatDate(today),
	).Scan(&pending)
	if err != nil {
		return fmt.Errorf("check pending: %w", err)
	}
	if pending > 0 {
		return fmt.Errorf("%w: %s/%s already has a pending future obligation", ErrDuplicateObligation, o.TaxID, o.ClientID)
	}

	if err := insertObligation(ctx, tx, o, time.Now()); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// UpdateObligationStatus sets the status. Completing stamps completed_at and
// completed_by; any other status clears them.
func (s *Storage) UpdateObligationStatus(ctx context.Context, id string, status domain.ObligationStatus, performedBy string, at time.Time) error {
	var completedAt any
	completedBy := ""
	if status == domain.StatusCompleted {
		completedAt = formatTime(at)
		completedBy = performedBy
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE obligations SET status = ?, completed_at = ?, completed_by = ?, updated_at = ? WHERE id = ?`,
		string(status), completedAt, completedBy, formatTime(at), id,
	)
	if err != nil {
		return fmt.Errorf("update obligation status: %w", err)
	}
	return checkAffected(res)
}

func (s *Storage) DeleteObligation(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM obligations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete obligation: %w", err)
	}
	return checkAffected(res)
}
