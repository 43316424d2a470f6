// Package repository provides SQLite persistence for characters and the turn event journal.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/xiaot623/gogo/persona/internal/character"
	"github.com/xiaot623/gogo/persona/internal/domain"
)

// SQLiteStore implements character.Store and the event journal using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

var _ character.Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLite store.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate databases.
	// Keep a single connection to avoid schema/data disappearing across goroutines.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// migrate runs database migrations.
func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS characters (
			name TEXT PRIMARY KEY,
			description TEXT NOT NULL DEFAULT '',
			system_prompt TEXT NOT NULL DEFAULT '',
			example_dialogs TEXT,
			metadata TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS events (
			event_id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			ts INTEGER NOT NULL,
			type TEXT NOT NULL,
			payload TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_session ON events(session_id, ts)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Load returns the named character, or (nil, nil) when absent.
func (s *SQLiteStore) Load(ctx context.Context, name string) (*domain.Character, error) {
	var c domain.Character
	var dialogs, metadata sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT name, description, system_prompt, example_dialogs, metadata, created_at, updated_at FROM characters WHERE name = ?`,
		name).Scan(&c.Name, &c.Description, &c.SystemPrompt, &dialogs, &metadata, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if dialogs.Valid && dialogs.String != "" {
		if err := json.Unmarshal([]byte(dialogs.String), &c.ExampleDialogs); err != nil {
			return nil, fmt.Errorf("failed to decode example dialogs of %s: %w", name, err)
		}
	}
	if metadata.Valid && metadata.String != "" {
		if err := json.Unmarshal([]byte(metadata.String), &c.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata of %s: %w", name, err)
		}
	}
	return &c, nil
}

// Save inserts or replaces a character.
func (s *SQLiteStore) Save(ctx context.Context, c *domain.Character) error {
	dialogs, err := json.Marshal(c.ExampleDialogs)
	if err != nil {
		return fmt.Errorf("failed to marshal example dialogs: %w", err)
	}
	var metadata []byte
	if c.Metadata != nil {
		if metadata, err = json.Marshal(c.Metadata); err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO characters (name, description, system_prompt, example_dialogs, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			description = excluded.description,
			system_prompt = excluded.system_prompt,
			example_dialogs = excluded.example_dialogs,
			metadata = excluded.metadata,
			updated_at = excluded.updated_at`,
		c.Name, c.Description, c.SystemPrompt, string(dialogs), nullString(metadata), c.CreatedAt, c.UpdatedAt)
	return err
}

// List returns character names in alphabetical order.
func (s *SQLiteStore) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM characters ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Delete removes a character and reports whether it existed.
func (s *SQLiteStore) Delete(ctx context.Context, name string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM characters WHERE name = ?`, name)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// CreateEvent appends an event to the journal.
func (s *SQLiteStore) CreateEvent(ctx context.Context, event *domain.Event) error {
	payload := ""
	if event.Payload != nil {
		payload = string(event.Payload)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events (event_id, session_id, ts, type, payload) VALUES (?, ?, ?, ?, ?)`,
		event.EventID, event.SessionID, event.Ts, event.Type, payload)
	return err
}

// GetEvents returns events of a session in insertion order.
func (s *SQLiteStore) GetEvents(ctx context.Context, sessionID string, afterTs int64, types []string, limit int) ([]domain.Event, error) {
	query := `SELECT event_id, session_id, ts, type, payload FROM events WHERE session_id = ?`
	args := []interface{}{sessionID}

	if afterTs > 0 {
		query += ` AND ts > ?`
		args = append(args, afterTs)
	}

	if len(types) > 0 {
		placeholders := make([]string, len(types))
		for i, t := range types {
			placeholders[i] = "?"
			args = append(args, t)
		}
		query += fmt.Sprintf(" AND type IN (%s)", strings.Join(placeholders, ","))
	}

	query += ` ORDER BY ts ASC, rowid ASC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var event domain.Event
		var payload sql.NullString
		if err := rows.Scan(&event.EventID, &event.SessionID, &event.Ts, &event.Type, &payload); err != nil {
			return nil, err
		}
		if payload.Valid && payload.String != "" {
			event.Payload = json.RawMessage(payload.String)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

func nullString(b []byte) sql.NullString {
	if b == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}
