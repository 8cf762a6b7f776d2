package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/tazhate/fiscalbot/internal/domain"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrDuplicateObligation is returned when an obligation would repeat a
	// (tax, client, due date) triple or a chain already has a pending future
	// obligation.
	ErrDuplicateObligation = errors.New("duplicate obligation")
)

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type Storage struct {
	db  *sql.DB
	loc *time.Location
}

// New opens (creating if needed) the database at dbPath. Due dates are read
// back as midnight in loc. ":memory:" gives a private in-memory database.
func New(dbPath string, loc *time.Location) (*Storage, error) {
	if loc == nil {
		loc = time.UTC
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// sqlite serialises writers anyway, and an in-memory database lives in
	// a single connection.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}

	s := &Storage{db: db, loc: loc}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Storage) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS clients (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			document TEXT DEFAULT '',
			email TEXT DEFAULT '',
			phone TEXT DEFAULT '',
			active INTEGER NOT NULL DEFAULT 1,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS taxes (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT DEFAULT '',
			category TEXT DEFAULT '',
			recurrence_rule TEXT NOT NULL DEFAULT '{"type":"none"}',
			weekend_adjust TEXT NOT NULL DEFAULT 'postpone',
			default_assignee TEXT DEFAULT '',
			auto_generate INTEGER NOT NULL DEFAULT 0,
			active INTEGER NOT NULL DEFAULT 1,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS obligations (
			id TEXT PRIMARY KEY,
			tax_id TEXT NOT NULL,
			client_id TEXT NOT NULL,
			assigned_to TEXT DEFAULT '',
			due_date TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			priority TEXT NOT NULL DEFAULT 'medium',
			notes TEXT DEFAULT '',
			completed_at TEXT,
			completed_by TEXT DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			FOREIGN KEY (tax_id) REFERENCES taxes(id) ON DELETE CASCADE,
			FOREIGN KEY (client_id) REFERENCES clients(id) ON DELETE CASCADE
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_obligations_chain_due ON obligations(tax_id, client_id, due_date)`,
		`CREATE INDEX IF NOT EXISTS idx_obligations_due_date ON obligations(due_date)`,
		`CREATE INDEX IF NOT EXISTS idx_obligations_status ON obligations(status)`,
		`CREATE INDEX IF NOT EXISTS idx_obligations_client ON obligations(client_id)`,
		`CREATE TABLE IF NOT EXISTS installments (
			id TEXT PRIMARY KEY,
			tax_id TEXT NOT NULL,
			client_id TEXT NOT NULL,
			description TEXT DEFAULT '',
			current_installment INTEGER NOT NULL DEFAULT 0,
			total_installments INTEGER NOT NULL,
			first_due_date TEXT NOT NULL,
			recurrence_rule TEXT NOT NULL DEFAULT '{"type":"monthly"}',
			weekend_adjust TEXT NOT NULL DEFAULT 'postpone',
			assigned_to TEXT DEFAULT '',
			status TEXT NOT NULL DEFAULT 'pending',
			notes TEXT DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			FOREIGN KEY (tax_id) REFERENCES taxes(id) ON DELETE CASCADE,
			FOREIGN KEY (client_id) REFERENCES clients(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS audit_logs (
			id TEXT PRIMARY KEY,
			entity_type TEXT NOT NULL,
			entity_id TEXT NOT NULL,
			action TEXT NOT NULL,
			performed_by TEXT NOT NULL,
			changes TEXT,
			timestamp TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_logs_entity ON audit_logs(entity_type, entity_id, timestamp)`,
		`CREATE TABLE IF NOT EXISTS user_settings (
			user_identifier TEXT PRIMARY KEY,
			language TEXT NOT NULL DEFAULT 'pt-BR',
			timezone TEXT NOT NULL DEFAULT 'America/Sao_Paulo',
			date_format TEXT NOT NULL DEFAULT 'DD/MM/YYYY',
			notifications_enabled INTEGER NOT NULL DEFAULT 1,
			email_notifications INTEGER NOT NULL DEFAULT 0,
			reminder_days INTEGER NOT NULL DEFAULT 7,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("exec migration: %w", err)
		}
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}

func formatDate(t time.Time) string {
	return t.Format(domain.DateLayout)
}

func (s *Storage) parseDate(v string) (time.Time, error) {
	t, err := domain.ParseDate(v, s.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", v, err)
	}
	return t, nil
}

func (s *Storage) parseTimestamps(created, updated string, createdAt, updatedAt *time.Time) error {
	var err error
	if *createdAt, err = parseTime(created); err != nil {
		return err
	}
	if *updatedAt, err = parseTime(updated); err != nil {
		return err
	}
	*createdAt = createdAt.In(s.loc)
	*updatedAt = updatedAt.In(s.loc)
	return nil
}

func encodeRule(rule domain.RecurrenceRule) (string, error) {
	if rule.Type == "" {
		rule.Type = domain.RecurrenceNone
	}
	b, err := json.Marshal(rule)
	if err != nil {
		return "", fmt.Errorf("marshal recurrence rule: %w", err)
	}
	return string(b), nil
}

func decodeRule(v string) (domain.RecurrenceRule, error) {
	var rule domain.RecurrenceRule
	if err := json.Unmarshal([]byte(v), &rule); err != nil {
		return rule, fmt.Errorf("unmarshal recurrence rule: %w", err)
	}
	return rule, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

func checkAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
