package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a session row does not exist.
var ErrNotFound = errors.New("store: session not found")

// Session is a persisted wallet pairing session.
type Session struct {
	ID          string `json:"id"`
	URI         string `json:"uri"`
	Status      string `json:"status"`
	Address     string `json:"address,omitempty"`
	Network     string `json:"network,omitempty"`
	CreatedAt   int64  `json:"created_at"`
	UpdatedAt   int64  `json:"updated_at"`
	ExpiresAt   int64  `json:"expires_at"`
	ConnectedAt int64  `json:"connected_at,omitempty"`
}

// SessionStore manages SQLite storage for pairing sessions.
type SessionStore struct {
	db *sql.DB
}

const createSessionsTable = `
CREATE TABLE IF NOT EXISTS sessions (
    id TEXT PRIMARY KEY,
    uri TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL,
    address TEXT NOT NULL DEFAULT '',
    network TEXT NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL,
    expires_at INTEGER NOT NULL,
    connected_at INTEGER NOT NULL DEFAULT 0
);
`

const createIndexes = `
CREATE INDEX IF NOT EXISTS idx_sessions_status ON sessions(status);
CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions(expires_at);
`

// NewSessionStore opens (or creates) the SQLite database at dbPath, applies
// the schema, and returns a ready-to-use SessionStore.
func NewSessionStore(dbPath string) (*SessionStore, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	for _, stmt := range []string{createSessionsTable, createIndexes} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec schema statement: %w", err)
		}
	}

	return &SessionStore{db: db}, nil
}

// Save inserts the session, or replaces the stored row with the same ID.
func (s *SessionStore) Save(ctx context.Context, sess *Session) error {
	const query = `
		INSERT INTO sessions
			(id, uri, status, address, network, created_at, updated_at, expires_at, connected_at)
		VALUES
			(?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			uri = excluded.uri,
			status = excluded.status,
			address = excluded.address,
			network = excluded.network,
			updated_at = excluded.updated_at,
			expires_at = excluded.expires_at,
			connected_at = excluded.connected_at
	`

	_, err := s.db.ExecContext(ctx, query,
		sess.ID,
		sess.URI,
		sess.Status,
		sess.Address,
		sess.Network,
		sess.CreatedAt,
		sess.UpdatedAt,
		sess.ExpiresAt,
		sess.ConnectedAt,
	)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Get returns the session with the given ID or ErrNotFound.
func (s *SessionStore) Get(ctx context.Context, id string) (*Session, error) {
	const query = `
		SELECT id, uri, status, address, network, created_at, updated_at, expires_at, connected_at
		FROM sessions
		WHERE id = ?
	`

	var sess Session
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&sess.ID, &sess.URI, &sess.Status, &sess.Address, &sess.Network,
		&sess.CreatedAt, &sess.UpdatedAt, &sess.ExpiresAt, &sess.ConnectedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return &sess, nil
}

// List returns sessions ordered by creation time (newest first). An empty
// status returns every session.
func (s *SessionStore) List(ctx context.Context, status string, limit int) ([]Session, error) {
	const query = `
		SELECT id, uri, status, address, network, created_at, updated_at, expires_at, connected_at
		FROM sessions
		WHERE (? = '' OR status = ?)
		ORDER BY created_at DESC, id
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, status, status, limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	return scanSessions(rows)
}

// UpdateStatus changes the status and optional address of a session.
func (s *SessionStore) UpdateStatus(ctx context.Context, id, status, address string, at time.Time) error {
	const query = `
		UPDATE sessions
		SET status = ?,
		    address = CASE WHEN ? = '' THEN address ELSE ? END,
		    updated_at = ?,
		    connected_at = CASE WHEN ? = 'connected' THEN ? ELSE connected_at END
		WHERE id = ?
	`

	ts := at.Unix()
	res, err := s.db.ExecContext(ctx, query, status, address, address, ts, status, ts, id)
	if err != nil {
		return fmt.Errorf("update session status: %w", err)
	}
	return expectOneRow(res)
}

// Delete removes a session.
func (s *SessionStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return expectOneRow(res)
}

// ExpireBefore marks every waiting session whose expiry is before cutoff as
// expired and returns the affected IDs.
func (s *SessionStore) ExpireBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin expire tx: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		`SELECT id FROM sessions WHERE status = 'waiting' AND expires_at < ? ORDER BY id`,
		cutoff.Unix())
	if err != nil {
		return nil, fmt.Errorf("select expired sessions: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan expired id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expired ids: %w", err)
	}

	if len(ids) > 0 {
		if _, err := tx.ExecContext(ctx,
			`UPDATE sessions SET status = 'expired', updated_at = ? WHERE status = 'waiting' AND expires_at < ?`,
			cutoff.Unix(), cutoff.Unix()); err != nil {
			return nil, fmt.Errorf("expire sessions: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit expire tx: %w", err)
	}
	return ids, nil
}

// Close closes the underlying database connection.
func (s *SessionStore) Close() error {
	return s.db.Close()
}

// --- helpers ----------------------------------------------------------------

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanSessions(rows *sql.Rows) ([]Session, error) {
	var sessions []Session
	for rows.Next() {
		var s Session
		if err := rows.Scan(
			&s.ID, &s.URI, &s.Status, &s.Address, &s.Network,
			&s.CreatedAt, &s.UpdatedAt, &s.ExpiresAt, &s.ConnectedAt,
		); err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session rows: %w", err)
	}
	return sessions, nil
}
