// Package journal records run history in SQLite: one row per run plus one
// row per (scene, phase) outcome. The journal is observability only; the
// orchestrator never consults prior runs to decide what to process.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"fieldprep/internal/config"
)

// Store persists run history.
type Store struct {
	db   *sql.DB
	path string
}

// Outcome values recorded per run and per phase result.
const (
	OutcomeSuccess     = "success"
	OutcomeFailed      = "failed"
	OutcomeSkipped     = "skipped"
	OutcomeInterrupted = "interrupted"
)

// Open initializes or connects to the journal database and applies the
// schema.
func Open(cfg *config.Config) (*Store, error) {
	dbPath := cfg.JournalPath()
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("ensure journal directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.applySchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) applySchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
            id TEXT PRIMARY KEY,
            started_at TEXT NOT NULL,
            finished_at TEXT,
            outcome TEXT
        )`,
		`CREATE TABLE IF NOT EXISTS phase_results (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            run_id TEXT NOT NULL REFERENCES runs(id),
            scene TEXT NOT NULL,
            phase TEXT NOT NULL,
            status TEXT NOT NULL,
            detail TEXT,
            created_at TEXT NOT NULL
        )`,
		`CREATE INDEX IF NOT EXISTS idx_phase_results_run ON phase_results(run_id)`,
	}
	for _, statement := range statements {
		if _, err := s.db.ExecContext(ctx, statement); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

// BeginRun records the start of a run.
func (s *Store) BeginRun(ctx context.Context, runID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, started_at) VALUES (?, ?)`,
		runID, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// FinishRun records the end and overall outcome of a run.
func (s *Store) FinishRun(ctx context.Context, runID, outcome string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, outcome = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339Nano), outcome, runID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// RecordResult appends one (scene, phase) outcome. Phase summaries use an
// empty scene.
func (s *Store) RecordResult(ctx context.Context, runID, sceneName, phase, status, detail string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO phase_results (run_id, scene, phase, status, detail, created_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		runID, sceneName, phase, status, nullableString(detail),
		time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert phase result: %w", err)
	}
	return nil
}

// PhaseResult is one recorded outcome row.
type PhaseResult struct {
	Scene     string
	Phase     string
	Status    string
	Detail    string
	CreatedAt string
}

// ResultsForRun loads the recorded outcomes of one run in insertion order.
func (s *Store) ResultsForRun(ctx context.Context, runID string) ([]PhaseResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT scene, phase, status, detail, created_at
         FROM phase_results WHERE run_id = ? ORDER BY id`,
		runID)
	if err != nil {
		return nil, fmt.Errorf("query phase results: %w", err)
	}
	defer rows.Close()

	var results []PhaseResult
	for rows.Next() {
		var result PhaseResult
		var detail sql.NullString
		if err := rows.Scan(&result.Scene, &result.Phase, &result.Status, &detail, &result.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan phase result: %w", err)
		}
		result.Detail = detail.String
		results = append(results, result)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate phase results: %w", err)
	}
	return results, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
