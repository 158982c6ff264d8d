// Package runlog persists training metrics in a SQLite database so runs
// can be compared after the process exits.
package runlog

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	started_at  TEXT NOT NULL,
	config_json TEXT NOT NULL,
	final_loss  REAL,
	steps       INTEGER
);
CREATE TABLE IF NOT EXISTS steps (
	run_id         TEXT NOT NULL REFERENCES runs(id),
	step           INTEGER NOT NULL,
	loss           REAL NOT NULL,
	lr             REAL NOT NULL,
	tokens_per_sec REAL NOT NULL,
	PRIMARY KEY (run_id, step)
);
`

// Store wraps the metrics database. Safe for use from a single goroutine;
// the trainer is single-threaded by design.
type Store struct {
	db *sql.DB
}

// Run is one row of the runs table.
type Run struct {
	ID        string
	StartedAt time.Time
	Config    string
	FinalLoss sql.NullFloat64
	Steps     sql.NullInt64
}

// Open creates or opens the database at path and ensures the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("runlog: open %s: %w", path, err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("runlog: enable foreign keys: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("runlog: create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Begin records a new run with its configuration serialized as JSON and
// returns the run id.
func (s *Store) Begin(cfgJSON string) (string, error) {
	id := uuid.NewString()
	_, err := s.db.Exec(
		"INSERT INTO runs (id, started_at, config_json) VALUES (?, ?, ?)",
		id, time.Now().UTC().Format(time.RFC3339), cfgJSON,
	)
	if err != nil {
		return "", fmt.Errorf("runlog: begin run: %w", err)
	}
	return id, nil
}

// LogStep records one training step.
func (s *Store) LogStep(runID string, step int, loss, lr, tokensPerSec float64) error {
	_, err := s.db.Exec(
		"INSERT INTO steps (run_id, step, loss, lr, tokens_per_sec) VALUES (?, ?, ?, ?, ?)",
		runID, step, loss, lr, tokensPerSec,
	)
	if err != nil {
		return fmt.Errorf("runlog: log step %d: %w", step, err)
	}
	return nil
}

// Finish stamps the run with its final loss and step count.
func (s *Store) Finish(runID string, finalLoss float64, steps int) error {
	_, err := s.db.Exec(
		"UPDATE runs SET final_loss = ?, steps = ? WHERE id = ?",
		finalLoss, steps, runID,
	)
	if err != nil {
		return fmt.Errorf("runlog: finish run: %w", err)
	}
	return nil
}

// Runs lists the most recent runs, newest first.
func (s *Store) Runs(limit int) ([]Run, error) {
	rows, err := s.db.Query(
		"SELECT id, started_at, config_json, final_loss, steps FROM runs ORDER BY started_at DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("runlog: list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Run
	for rows.Next() {
		var r Run
		var started string
		if err := rows.Scan(&r.ID, &started, &r.Config, &r.FinalLoss, &r.Steps); err != nil {
			return nil, fmt.Errorf("runlog: scan run: %w", err)
		}
		if ts, err := time.Parse(time.RFC3339, started); err == nil {
			r.StartedAt = ts
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }
