// SPDX-License-Identifier: MIT

// Package authz answers who may talk to the bot. The allow lists live in a
// SQLite database and are served from an in-memory cache; every predicate is
// fail-closed until the first successful refresh.
package authz

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // SQLite driver (pure Go, no CGO)
)

// Role names the four allow lists.
type Role string

const (
	RoleChannel   Role = "channels"
	RoleMentioner Role = "mentioners"
	RoleUser      Role = "users"
	RoleApprover  Role = "approvers"
)

// Store provides SQLite persistence for the access-control lists.
type Store struct {
	db *sql.DB
}

// NewStore opens the ACL database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	// modernc.org/sqlite takes pragmas as _pragma=name(value) DSN params.
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", dbPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open acl database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping acl database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run acl migrations: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS acl_entries (
		role TEXT NOT NULL CHECK(role IN ('channels', 'mentioners', 'users', 'approvers')),
		subject_id TEXT NOT NULL,
		created_at TEXT NOT NULL DEFAULT (datetime('now')),
		deleted_at TEXT,
		PRIMARY KEY (role, subject_id)
	);

	CREATE INDEX IF NOT EXISTS idx_acl_entries_role ON acl_entries(role) WHERE deleted_at IS NULL;
	`
	_, err := s.db.Exec(schema)
	return err
}

// Active returns the live subject IDs for one role. Soft-deleted rows are
// excluded.
func (s *Store) Active(ctx context.Context, role Role) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT subject_id FROM acl_entries WHERE role = ? AND deleted_at IS NULL`, string(role))
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", role, err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Grant adds or revives a subject in a role.
func (s *Store) Grant(ctx context.Context, role Role, subjectID string) error {
	_, err := s.db.ExecContext(ctx, `
	INSERT INTO acl_entries (role, subject_id) VALUES (?, ?)
	ON CONFLICT(role, subject_id) DO UPDATE SET deleted_at = NULL
	`, string(role), subjectID)
	return err
}

// Revoke soft-deletes a subject from a role.
func (s *Store) Revoke(ctx context.Context, role Role, subjectID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE acl_entries SET deleted_at = datetime('now') WHERE role = ? AND subject_id = ?`,
		string(role), subjectID)
	return err
}
