// Package store persists pipeline sessions in SQLite so that later CLI
// invocations can inspect the function table and iterator tuple a previous
// codegen run left behind.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"omegagen/internal/logging"
	"omegagen/internal/script"
	"omegagen/internal/ufunc"
)

// ErrSessionNotFound is returned when a session ID (or any session at all)
// does not exist.
var ErrSessionNotFound = errors.New("session not found")

// Session describes one persisted pipeline.
type Session struct {
	ID        string
	Label     string
	CreatedAt time.Time
	UpdatedAt time.Time
	RunCount  int
}

// Run records one script sent through a session's pipeline.
type Run struct {
	ID        string
	SessionID string
	CreatedAt time.Time
	Script    string
	Output    string
	Error     string
	// Statements is the placeholder count the run was given.
	Statements int
	Duration   time.Duration
}

// Store manages the session database.
type Store struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex
}

// Open creates or opens the session database at path. The special path
// ":memory:" opens a private in-memory database.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps :memory: databases coherent and serializes writers.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, dbPath: path}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logging.StoreDebug("Opened session store at %s", path)
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	logging.StoreDebug("Closing session store at %s", s.dbPath)
	return s.db.Close()
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		label TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		iterators_json TEXT NOT NULL DEFAULT '[]',
		functions_json TEXT NOT NULL DEFAULT '{}'
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_updated ON sessions(updated_at);

	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		script TEXT NOT NULL,
		output TEXT NOT NULL DEFAULT '',
		error TEXT NOT NULL DEFAULT '',
		duration_ns INTEGER NOT NULL DEFAULT 0,
		statements INTEGER NOT NULL DEFAULT 1,
		FOREIGN KEY (session_id) REFERENCES sessions(id)
	);
	CREATE INDEX IF NOT EXISTS idx_runs_session ON runs(session_id);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	_, err := RunMigrations(s.db)
	return err
}

// CreateSession starts an empty session.
func (s *Store) CreateSession(ctx context.Context, label string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	sess := Session{ID: uuid.NewString(), Label: label, CreatedAt: now, UpdatedAt: now}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, label, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		sess.ID, sess.Label, now.UnixNano(), now.UnixNano())
	if err != nil {
		return Session{}, fmt.Errorf("failed to create session: %w", err)
	}
	logging.Store("Created session %s (%s)", sess.ID, label)
	return sess, nil
}

// SaveState overwrites the accumulator stored for session id.
func (s *Store) SaveState(ctx context.Context, id string, state script.State) error {
	iters, err := json.Marshal(nonNil(state.Iterators))
	if err != nil {
		return fmt.Errorf("failed to marshal iterators: %w", err)
	}
	funcs := state.Functions
	if funcs == nil {
		funcs = make(ufunc.Table)
	}
	funcsJSON, err := json.Marshal(funcs)
	if err != nil {
		return fmt.Errorf("failed to marshal functions: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET iterators_json = ?, functions_json = ?, updated_at = ? WHERE id = ?`,
		string(iters), string(funcsJSON), time.Now().UnixNano(), id)
	if err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	logging.StoreDebug("Saved state for %s: %d iterators, %d functions", id, len(state.Iterators), len(funcs))
	return nil
}

// LoadState returns the accumulator stored for session id.
func (s *Store) LoadState(ctx context.Context, id string) (script.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var iters, funcs string
	err := s.db.QueryRowContext(ctx,
		`SELECT iterators_json, functions_json FROM sessions WHERE id = ?`, id).Scan(&iters, &funcs)
	if errors.Is(err, sql.ErrNoRows) {
		return script.State{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if err != nil {
		return script.State{}, fmt.Errorf("failed to load state: %w", err)
	}

	var state script.State
	if err := json.Unmarshal([]byte(iters), &state.Iterators); err != nil {
		return script.State{}, fmt.Errorf("failed to decode iterators: %w", err)
	}
	if err := json.Unmarshal([]byte(funcs), &state.Functions); err != nil {
		return script.State{}, fmt.Errorf("failed to decode functions: %w", err)
	}
	return state, nil
}

// LatestSession returns the most recently updated session.
func (s *Store) LatestSession(ctx context.Context) (Session, error) {
	sessions, err := s.querySessions(ctx, `ORDER BY s.updated_at DESC, s.rowid DESC LIMIT 1`)
	if err != nil {
		return Session{}, err
	}
	if len(sessions) == 0 {
		return Session{}, ErrSessionNotFound
	}
	return sessions[0], nil
}

// ListSessions returns every session, newest first.
func (s *Store) ListSessions(ctx context.Context) ([]Session, error) {
	return s.querySessions(ctx, `ORDER BY s.updated_at DESC, s.rowid DESC`)
}

func (s *Store) querySessions(ctx context.Context, tail string) ([]Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.label, s.created_at, s.updated_at,
			(SELECT COUNT(*) FROM runs r WHERE r.session_id = s.id)
		FROM sessions s `+tail)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var sess Session
		var created, updated int64
		if err := rows.Scan(&sess.ID, &sess.Label, &created, &updated, &sess.RunCount); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sess.CreatedAt = time.Unix(0, created)
		sess.UpdatedAt = time.Unix(0, updated)
		out = append(out, sess)
	}
	return out, rows.Err()
}

// RecordRun stores one engine run for a session. ID and CreatedAt are filled
// in when empty.
func (s *Store) RecordRun(ctx context.Context, run Run) (Run, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, session_id, created_at, script, output, error, duration_ns, statements)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.SessionID, run.CreatedAt.UnixNano(), run.Script, run.Output, run.Error,
		int64(run.Duration), run.Statements)
	if err != nil {
		return Run{}, fmt.Errorf("failed to record run: %w", err)
	}
	return run, nil
}

// ListRuns returns the runs of a session in the order they were recorded.
func (s *Store) ListRuns(ctx context.Context, sessionID string) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, created_at, script, output, error, duration_ns, statements FROM runs
		WHERE session_id = ? ORDER BY created_at, rowid`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var run Run
		var created, duration int64
		if err := rows.Scan(&run.ID, &run.SessionID, &created, &run.Script, &run.Output, &run.Error,
			&duration, &run.Statements); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run.CreatedAt = time.Unix(0, created)
		run.Duration = time.Duration(duration)
		out = append(out, run)
	}
	return out, rows.Err()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
