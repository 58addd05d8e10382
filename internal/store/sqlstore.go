package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"prism/internal/workflow"

	_ "modernc.org/sqlite"
)

// nowUTC returns the current UTC time as an ISO 8601 string.
func nowUTC() string { return time.Now().UTC().Format(time.RFC3339) }

// SqlStore implements Store with SQLite.
type SqlStore struct {
	db *sql.DB
}

// Open opens or creates a SQLite DB at path and runs migrations.
// Creates the parent directory (e.g. .prism) if it does not exist.
func Open(path string) (*SqlStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	s := &SqlStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SqlStore) migrate() error {
	var tableCount int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableCount)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableCount == 0 {
		if _, err := s.db.Exec(schemaV1); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_version(version) VALUES(?)", schemaVersionV1); err != nil {
			return fmt.Errorf("set schema version: %w", err)
		}
		return nil
	}

	var v int
	err = s.db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&v)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("read schema version: %w", err)
	}
	if errors.Is(err, sql.ErrNoRows) {
		v = schemaVersionV1
		if _, err := s.db.Exec("INSERT INTO schema_version(version) VALUES(?)", v); err != nil {
			return fmt.Errorf("set schema version: %w", err)
		}
	}
	if v != schemaVersionV1 {
		return fmt.Errorf("unknown schema version %d", v)
	}
	return nil
}

// Close closes the database connection.
func (s *SqlStore) Close() error {
	return s.db.Close()
}

// SaveRun upserts the state snapshot as a JSON payload and re-syncs the
// run's interaction rows. Interactions are append-only upstream, so the
// sync only inserts rows past the stored sequence.
func (s *SqlStore) SaveRun(state *workflow.WorkflowState) error {
	if state == nil {
		return errors.New("state is nil")
	}
	if state.RunID == "" {
		return errors.New("state has no run id")
	}
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin save tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := nowUTC()
	_, err = tx.Exec(
		`INSERT INTO runs(run_id, paper, completed, awaiting_input, state_payload, created_at, updated_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(run_id) DO UPDATE SET
		   paper = excluded.paper,
		   completed = excluded.completed,
		   awaiting_input = excluded.awaiting_input,
		   state_payload = excluded.state_payload,
		   updated_at = excluded.updated_at`,
		state.RunID, state.Paper, boolInt(state.Completed), boolInt(state.AwaitingInput), payload, now, now,
	)
	if err != nil {
		return fmt.Errorf("upsert run: %w", err)
	}

	var stored int
	if err := tx.QueryRow(
		"SELECT COUNT(*) FROM interactions WHERE run_id = ?", state.RunID,
	).Scan(&stored); err != nil {
		return fmt.Errorf("count interactions: %w", err)
	}
	for i := stored; i < len(state.Interactions); i++ {
		it := state.Interactions[i]
		_, err = tx.Exec(
			`INSERT INTO interactions(run_id, seq, trigger_name, question, response, effect, at)
			 VALUES(?, ?, ?, ?, ?, ?, ?)`,
			state.RunID, i, it.Trigger, it.Question, it.Response, it.Effect,
			it.At.UTC().Format(time.RFC3339),
		)
		if err != nil {
			return fmt.Errorf("insert interaction: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save tx: %w", err)
	}
	return nil
}

// LoadRun returns the saved snapshot, or nil if not found.
func (s *SqlStore) LoadRun(runID string) (*workflow.WorkflowState, error) {
	var payload []byte
	err := s.db.QueryRow(
		"SELECT state_payload FROM runs WHERE run_id = ?", runID,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	var state workflow.WorkflowState
	if err := json.Unmarshal(payload, &state); err != nil {
		return nil, fmt.Errorf("unmarshal state: %w", err)
	}
	return &state, nil
}

// ListRuns returns all run summaries, most recently updated first.
func (s *SqlStore) ListRuns() ([]RunSummary, error) {
	rows, err := s.db.Query(
		`SELECT run_id, paper, completed, awaiting_input, created_at, updated_at
		 FROM runs ORDER BY updated_at DESC, run_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()
	var list []RunSummary
	for rows.Next() {
		var r RunSummary
		var completed, awaiting int
		if err := rows.Scan(&r.RunID, &r.Paper, &completed, &awaiting, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Completed = completed == 1
		r.AwaitingInput = awaiting == 1
		list = append(list, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return list, nil
}

// ListInteractions returns the run's interaction history in append order.
func (s *SqlStore) ListInteractions(runID string) ([]workflow.Interaction, error) {
	rows, err := s.db.Query(
		`SELECT trigger_name, question, response, effect, at
		 FROM interactions WHERE run_id = ? ORDER BY seq`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("list interactions: %w", err)
	}
	defer rows.Close()
	var list []workflow.Interaction
	for rows.Next() {
		var it workflow.Interaction
		var at string
		if err := rows.Scan(&it.Trigger, &it.Question, &it.Response, &it.Effect, &at); err != nil {
			return nil, fmt.Errorf("scan interaction: %w", err)
		}
		if at != "" {
			if t, perr := time.Parse(time.RFC3339, at); perr == nil {
				it.At = t
			}
		}
		list = append(list, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list interactions: %w", err)
	}
	return list, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
