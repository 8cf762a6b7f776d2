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

const clientColumns = `id, name, document, email, phone, active, created_at, updated_at`

func (s *Storage) scanClient(row scanner) (*domain.Client, error) {
	c := &domain.Client{}
	var active int
	var created, updated string
	if err := row.Scan(&c.ID, &c.Name, &c.Document, &c.Email, &c.Phone, &active, &created, &updated); err != nil {
		return nil, err
	}
	c.Active = active == 1
	if err := s.parseTimestamps(created, updated, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Storage) ListClients(ctx context.Context) ([]domain.Client, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+clientColumns+` FROM clients ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	defer rows.Close()

	clients := make([]domain.Client, 0)
	for rows.Next() {
		c, err := s.scanClient(rows)
		if err != nil {
			return nil, fmt.Errorf("scan client: %w", err)
		}
		clients = append(clients, *c)
	}
	return clients, rows.Err()
}

// GetClientByID returns nil, nil when the client does not exist.
func (s *Storage) GetClientByID(ctx context.Context, id string) (*domain.Client, error) {
	c, err := s.scanClient(s.db.QueryRowContext(ctx, `SELECT `+clientColumns+` FROM clients WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get client: %w", err)
	}
	return c, nil
}

// SaveClient updates c when its ID exists and inserts it otherwise, assigning
// a new ID when empty. created reports an insert.
func (s *Storage) SaveClient(ctx context.Context, c *domain.Client) (created bool, err error) {
	now := time.Now()
	if c.ID != "" {
		res, err := s.db.ExecContext(ctx,
			`UPDATE clients SET name = ?, document = ?, email = ?, phone = ?, active = ?, updated_at = ? WHERE id = ?`,
			c.Name, c.Document, c.Email, c.Phone, boolToInt(c.Active), formatTime(now), c.ID,
		)
		if err != nil {
			return false, fmt.Errorf("update client: %w", err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			c.UpdatedAt = now
			return false, nil
		}
	} else {
		c.ID = uuid.NewString()
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO clients (`+clientColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.Document, c.Email, c.Phone, boolToInt(c.Active), formatTime(now), formatTime(now),
	)
	if err != nil {
		return false, fmt.Errorf("insert client: %w", err)
	}
	c.CreatedAt, c.UpdatedAt = now, now
	return true, nil
}

// DeleteClient removes the client and, by cascade, its obligations and
// installments.
func (s *Storage) DeleteClient(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM clients WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete client: %w", err)
	}
	return checkAffected(res)
}
