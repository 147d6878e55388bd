// Package journal records every boundary call made against a core - events
// processed and responses resolved - in admission order, durably, in SQLite.
//
// Because the engine is deterministic (single critical section, ordered
// request batches, no wall-clock reads), a journal is a complete description
// of a core's state: replaying the recorded calls against a fresh core of
// the same application reproduces the model exactly. That makes the journal
// both a crash-recovery mechanism and a determinism check.
package journal

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Call kinds as stored in the journal.
const (
	KindEvent   = "event"
	KindResolve = "resolve"
)

// Call is one recorded boundary call. RequestID is zero for events.
type Call struct {
	Seq       int64
	Session   string
	Kind      string
	RequestID uint32
	Payload   []byte
}

// Store is a SQLite-backed journal.
type Store struct {
	db *sql.DB
}

// Open creates or opens a journal database at path. Applies pragmas and the
// schema; idempotent, safe to call on an existing journal.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect journal: %w", err)
	}

	// SQLite allows one writer; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply journal schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Append records one boundary call for session. The seq the row receives is
// the call's replay position.
func (s *Store) Append(ctx context.Context, session, kind string, requestID uint32, payload []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO boundary_calls (session, kind, request_id, payload)
		VALUES (?, ?, ?, ?)
	`, session, kind, requestID, payload)
	if err != nil {
		return fmt.Errorf("append %s call: %w", kind, err)
	}
	return nil
}

// Calls returns every recorded call for session in replay order.
func (s *Store) Calls(ctx context.Context, session string) ([]Call, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, session, kind, request_id, payload
		FROM boundary_calls
		WHERE session = ?
		ORDER BY seq
	`, session)
	if err != nil {
		return nil, fmt.Errorf("read session %s: %w", session, err)
	}
	defer rows.Close()

	var calls []Call
	for rows.Next() {
		var c Call
		if err := rows.Scan(&c.Seq, &c.Session, &c.Kind, &c.RequestID, &c.Payload); err != nil {
			return nil, fmt.Errorf("scan call: %w", err)
		}
		calls = append(calls, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read session %s: %w", session, err)
	}
	return calls, nil
}

// Sessions lists the distinct session tokens in the journal, oldest first.
// UUIDv7 tokens sort by creation time, which is what makes this ordering
// meaningful.
func (s *Store) Sessions(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT session FROM boundary_calls ORDER BY session
	`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []string
	for rows.Next() {
		var session string
		if err := rows.Scan(&session); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}
