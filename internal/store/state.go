// Package store persists the client's local state: the bearer token (the
// browser localStorage analog), the set of notification IDs already
// announced, and a stable device ID for push registration.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store is the SQLite-backed local state store.
type Store struct {
	db *sql.DB

	mu    sync.RWMutex
	token string
}

// NewStore opens (creating if needed) the local state database. Use
// ":memory:" for tests.
func NewStore(dbPath string) (*Store, error) {
	// Ensure target directory exists (e.g., ./data)
	if dir := filepath.Dir(dbPath); dir != "" && dir != "." && dbPath != ":memory:" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create state directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open(sqliteDriver, dbPath+"?_journal_mode=WAL&_foreign_keys=off")
	if err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate state database: %w", err)
	}
	if err := s.loadToken(); err != nil {
		return nil, err
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS session (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			token TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS seen_notifications (
			id INTEGER PRIMARY KEY,
			seen_at INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS device (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			device_id TEXT NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_seen_notifications_seen_at ON seen_notifications(seen_at)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return fmt.Errorf("failed to execute migration: %w", err)
		}
	}
	return nil
}

func (s *Store) loadToken() error {
	var token string
	err := s.db.QueryRow(`SELECT token FROM session WHERE id = 1`).Scan(&token)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load token: %w", err)
	}
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
	return nil
}

// Token returns the stored bearer token, or "" when logged out.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// SetToken persists a new bearer token.
func (s *Store) SetToken(token string) error {
	_, err := s.db.Exec(
		`INSERT INTO session (id, token, updated_at) VALUES (1, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET token = excluded.token, updated_at = excluded.updated_at`,
		token, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to store token: %w", err)
	}
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
	return nil
}

// ClearToken removes the stored bearer token.
func (s *Store) ClearToken() error {
	if _, err := s.db.Exec(`DELETE FROM session WHERE id = 1`); err != nil {
		return fmt.Errorf("failed to clear token: %w", err)
	}
	s.mu.Lock()
	s.token = ""
	s.mu.Unlock()
	return nil
}

// SeenNotificationIDs returns the set of notification IDs that have already
// been announced.
func (s *Store) SeenNotificationIDs(ctx context.Context) (map[int]bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM seen_notifications`)
	if err != nil {
		return nil, fmt.Errorf("failed to query seen notifications: %w", err)
	}
	defer rows.Close()

	seen := make(map[int]bool)
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan seen notification: %w", err)
		}
		seen[id] = true
	}
	return seen, rows.Err()
}

// MarkNotificationsSeen records IDs as announced. Re-marking is a no-op.
func (s *Store) MarkNotificationsSeen(ctx context.Context, ids []int) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().Unix()
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO seen_notifications (id, seen_at) VALUES (?, ?)
		 ON CONFLICT(id) DO NOTHING`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, id := range ids {
		if _, err := stmt.ExecContext(ctx, id, now); err != nil {
			return fmt.Errorf("failed to mark notification %d seen: %w", id, err)
		}
	}
	return tx.Commit()
}

// PruneSeenNotifications drops seen records older than the retention window
// so the table does not grow without bound.
func (s *Store) PruneSeenNotifications(ctx context.Context, olderThan time.Duration) error {
	cutoff := time.Now().Add(-olderThan).Unix()
	if _, err := s.db.ExecContext(ctx, `DELETE FROM seen_notifications WHERE seen_at < ?`, cutoff); err != nil {
		return fmt.Errorf("failed to prune seen notifications: %w", err)
	}
	return nil
}

// DeviceID returns the stable device identifier used for push registration,
// creating one on first call.
func (s *Store) DeviceID(ctx context.Context) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT device_id FROM device WHERE id = 1`).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return "", fmt.Errorf("failed to load device ID: %w", err)
	}

	id = uuid.NewString()
	if _, err := s.db.ExecContext(ctx, `INSERT INTO device (id, device_id) VALUES (1, ?)`, id); err != nil {
		return "", fmt.Errorf("failed to store device ID: %w", err)
	}
	return id, nil
}
