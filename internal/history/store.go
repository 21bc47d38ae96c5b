package history

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// Run is one recorded model submission outcome.
type Run struct {
	ID         int64         `json:"id"`
	ModelAlias string        `json:"model_alias"`
	Schema     string        `json:"schema"`
	SessionID  string        `json:"session_id"`
	Packages   string        `json:"packages"`
	Status     string        `json:"status"`
	Error      string        `json:"error,omitempty"`
	Duration   time.Duration `json:"duration"`
	CreatedAt  time.Time     `json:"created_at"`
}

// Store persists submission outcomes in SQLite. It is observability only;
// nothing reads it back during execution.
type Store struct {
	db *sql.DB
}

// NewStore opens (and migrates) the history database at path.
func NewStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping history database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate history database: %w", err)
	}
	return store, nil
}

func (s *Store) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		model_alias TEXT NOT NULL,
		schema_name TEXT NOT NULL,
		session_id TEXT NOT NULL,
		packages TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		error TEXT NOT NULL DEFAULT '',
		duration_ms INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err := s.db.Exec(query)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordRun saves one submission outcome.
func (s *Store) RecordRun(run Run) error {
	query := `INSERT INTO runs (model_alias, schema_name, session_id, packages, status, error, duration_ms, created_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	createdAt := run.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.db.Exec(query, run.ModelAlias, run.Schema, run.SessionID, run.Packages,
		run.Status, run.Error, run.Duration.Milliseconds(), createdAt)
	return err
}

// RecentRuns retrieves the most recent submissions, newest first.
func (s *Store) RecentRuns(limit int) ([]Run, error) {
	query := `SELECT id, model_alias, schema_name, session_id, packages, status, error, duration_ms, created_at
	          FROM runs ORDER BY id DESC LIMIT ?`
	rows, err := s.db.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Run
	for rows.Next() {
		var run Run
		var durationMS int64
		if err := rows.Scan(&run.ID, &run.ModelAlias, &run.Schema, &run.SessionID,
			&run.Packages, &run.Status, &run.Error, &durationMS, &run.CreatedAt); err != nil {
			return nil, err
		}
		run.Duration = time.Duration(durationMS) * time.Millisecond
		results = append(results, run)
	}
	return results, rows.Err()
}
