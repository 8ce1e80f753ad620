// Package runlog persists the history of planning runs in a local SQLite
// database: one row per run, one row per action outcome within the run.
// The store is diagnostic only; planning never reads it back for
// decisions.
package runlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver
)

// Outcomes recorded for a finished run.
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
)

// Run is one recorded planning run.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Outcome    string
}

// ActionRecord is the outcome of one action within a run.
type ActionRecord struct {
	Position   int
	Action     string
	Category   string
	Candidates int
	Selected   []string
	Error      string
}

// Store writes run history to a SQLite database. SQLite supports a single
// writer, so the connection pool is capped at one.
type Store struct {
	db *sql.DB

	beginStmt  *sql.Stmt
	finishStmt *sql.Stmt
	actionStmt *sql.Stmt
}

// Open opens or creates the run log database at path.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("run log path cannot be empty")
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open run log: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize run log schema: %w", err)
	}
	if err := s.prepareStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("prepare run log statements: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started_at INTEGER NOT NULL,
		finished_at INTEGER,
		outcome TEXT
	);

	CREATE TABLE IF NOT EXISTS run_actions (
		run_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		action TEXT NOT NULL,
		category TEXT NOT NULL,
		candidates INTEGER NOT NULL,
		selected TEXT NOT NULL,
		error TEXT,
		PRIMARY KEY (run_id, position)
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) prepareStatements() error {
	var err error

	s.beginStmt, err = s.db.Prepare(`INSERT INTO runs (id, started_at) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("begin statement: %w", err)
	}
	s.finishStmt, err = s.db.Prepare(`UPDATE runs SET finished_at = ?, outcome = ? WHERE id = ?`)
	if err != nil {
		return fmt.Errorf("finish statement: %w", err)
	}
	s.actionStmt, err = s.db.Prepare(`
		INSERT INTO run_actions (run_id, position, action, category, candidates, selected, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("action statement: %w", err)
	}
	return nil
}

// BeginRun records the start of a run and returns its id.
func (s *Store) BeginRun(ctx context.Context) (string, error) {
	id := uuid.NewString()
	if _, err := s.beginStmt.ExecContext(ctx, id, time.Now().Unix()); err != nil {
		return "", fmt.Errorf("record run start: %w", err)
	}
	return id, nil
}

// FinishRun records the end of a run and its outcome.
func (s *Store) FinishRun(ctx context.Context, runID, outcome string) error {
	if _, err := s.finishStmt.ExecContext(ctx, time.Now().Unix(), outcome, runID); err != nil {
		return fmt.Errorf("record run finish: %w", err)
	}
	return nil
}

// RecordAction records one action outcome within a run.
func (s *Store) RecordAction(ctx context.Context, runID string, rec ActionRecord) error {
	selected, err := json.Marshal(rec.Selected)
	if err != nil {
		return fmt.Errorf("marshal selection: %w", err)
	}
	_, err = s.actionStmt.ExecContext(ctx,
		runID, rec.Position, rec.Action, rec.Category,
		rec.Candidates, string(selected), rec.Error,
	)
	if err != nil {
		return fmt.Errorf("record action: %w", err)
	}
	return nil
}

// Runs returns the most recent runs, newest first.
func (s *Store) Runs(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, finished_at, outcome
		FROM runs ORDER BY started_at DESC, id LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r        Run
			started  int64
			finished sql.NullInt64
			outcome  sql.NullString
		)
		if err := rows.Scan(&r.ID, &started, &finished, &outcome); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.StartedAt = time.Unix(started, 0)
		if finished.Valid {
			r.FinishedAt = time.Unix(finished.Int64, 0)
		}
		r.Outcome = outcome.String
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Actions returns the action outcomes of one run in position order.
func (s *Store) Actions(ctx context.Context, runID string) ([]ActionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT position, action, category, candidates, selected, error
		FROM run_actions WHERE run_id = ? ORDER BY position
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("list actions: %w", err)
	}
	defer rows.Close()

	var records []ActionRecord
	for rows.Next() {
		var (
			rec      ActionRecord
			selected string
			errText  sql.NullString
		)
		if err := rows.Scan(&rec.Position, &rec.Action, &rec.Category, &rec.Candidates, &selected, &errText); err != nil {
			return nil, fmt.Errorf("scan action: %w", err)
		}
		if err := json.Unmarshal([]byte(selected), &rec.Selected); err != nil {
			return nil, fmt.Errorf("unmarshal selection: %w", err)
		}
		rec.Error = errText.String
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Close releases the database.
func (s *Store) Close() error {
	for _, stmt := range []*sql.Stmt{s.beginStmt, s.finishStmt, s.actionStmt} {
		if stmt != nil {
			stmt.Close()
		}
	}
	_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return s.db.Close()
}
