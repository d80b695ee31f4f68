// Package ledger persists run records and per-turn cost entries in SQLite.
// It implements the CostLedger port and backs the run archive served by the
// API and the history command.
package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/sentinel-review/sentinel/internal/core"
	"github.com/sentinel-review/sentinel/internal/logging"
	"github.com/sentinel-review/sentinel/internal/service"
)

//go:embed migrations/001_initial_schema.sql
var migrationV1 string

// SQLiteLedger stores runs and cost entries in a single SQLite database.
type SQLiteLedger struct {
	db     *sql.DB
	logger *logging.Logger
	mu     sync.RWMutex
}

// Option configures the ledger.
type Option func(*SQLiteLedger)

// WithLogger sets the ledger logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *SQLiteLedger) { s.logger = l }
}

// Open creates or opens the ledger database at dbPath and applies pending
// migrations.
func Open(dbPath string, opts ...Option) (*SQLiteLedger, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
		return nil, fmt.Errorf("creating ledger directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("opening ledger database: %w", err)
	}

	s := &SQLiteLedger{db: db, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *SQLiteLedger) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteLedger) migrate() error {
	var version int
	err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	if err != nil {
		// Table does not exist yet.
		version = 0
	}
	if version < 1 {
		if _, err := s.db.Exec(migrationV1); err != nil {
			return fmt.Errorf("applying migration v1: %w", err)
		}
	}
	return nil
}

// RecordAgentCost writes one per-turn cost entry. Write failures are logged
// and swallowed: a ledger problem must never abort a run in flight.
func (s *SQLiteLedger) RecordAgentCost(ctx context.Context, runID string, agent core.AgentID, cost float64, tokens int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cost_entries (run_id, agent, cost, tokens) VALUES (?, ?, ?, ?)`,
		runID, string(agent), cost, tokens,
	)
	if err != nil {
		s.logger.Warn("ledger: cost entry write failed",
			"run_id", runID,
			"agent", agent,
			"error", err,
		)
	}
}

// SaveRun archives a finished run. Saving the same run ID again replaces
// the stored record.
func (s *SQLiteLedger) SaveRun(ctx context.Context, result *service.RunResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshaling run result: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (
			run_id, repository_owner, repository_name, change_set_id,
			success, review_status, completion_reason,
			total_cost, total_tokens, iterations,
			started_at, completed_at, result_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			success = excluded.success,
			review_status = excluded.review_status,
			completion_reason = excluded.completion_reason,
			total_cost = excluded.total_cost,
			total_tokens = excluded.total_tokens,
			iterations = excluded.iterations,
			completed_at = excluded.completed_at,
			result_json = excluded.result_json`,
		result.RunID, result.RepositoryOwner, result.RepositoryName, result.ChangeSetID,
		boolToInt(result.Success), string(result.ReviewStatus), result.CompletionReason,
		result.TotalCost, result.TotalTokens, result.Metadata.Iterations,
		result.Metadata.StartedAt.UTC().Format(time.RFC3339Nano),
		result.Metadata.CompletedAt.UTC().Format(time.RFC3339Nano),
		string(resultJSON),
	)
	if err != nil {
		return fmt.Errorf("saving run %s: %w", result.RunID, err)
	}
	return nil
}

// GetRun loads one archived run by ID.
func (s *SQLiteLedger) GetRun(ctx context.Context, runID string) (*service.RunResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var resultJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT result_json FROM runs WHERE run_id = ?`, runID,
	).Scan(&resultJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound("run", runID)
	}
	if err != nil {
		return nil, fmt.Errorf("loading run %s: %w", runID, err)
	}

	var result service.RunResult
	if err := json.Unmarshal([]byte(resultJSON), &result); err != nil {
		return nil, fmt.Errorf("decoding run %s: %w", runID, err)
	}
	return &result, nil
}

// RunSummary is one row of the run archive listing.
type RunSummary struct {
	RunID            string    `json:"run_id"`
	RepositoryOwner  string    `json:"repository_owner"`
	RepositoryName   string    `json:"repository_name"`
	ChangeSetID      int       `json:"change_set_id"`
	Success          bool      `json:"success"`
	ReviewStatus     string    `json:"review_status"`
	CompletionReason string    `json:"completion_reason"`
	TotalCost        float64   `json:"total_cost"`
	TotalTokens      int       `json:"total_tokens"`
	Iterations       int       `json:"iterations"`
	StartedAt        time.Time `json:"started_at"`
	CompletedAt      time.Time `json:"completed_at"`
}

// ListRuns returns archived runs, most recent first. A limit of 0 applies
// the default page size.
func (s *SQLiteLedger) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 50
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, repository_owner, repository_name, change_set_id,
		       success, review_status, completion_reason,
		       total_cost, total_tokens, iterations, started_at, completed_at
		FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var (
			r                      RunSummary
			success                int
			startedAt, completedAt string
		)
		if err := rows.Scan(
			&r.RunID, &r.RepositoryOwner, &r.RepositoryName, &r.ChangeSetID,
			&success, &r.ReviewStatus, &r.CompletionReason,
			&r.TotalCost, &r.TotalTokens, &r.Iterations, &startedAt, &completedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning run row: %w", err)
		}
		r.Success = success != 0
		r.StartedAt, _ = time.Parse(time.RFC3339Nano, startedAt)
		r.CompletedAt, _ = time.Parse(time.RFC3339Nano, completedAt)
		out = append(out, r)
	}
	return out, rows.Err()
}

// CostEntry is one recorded per-turn spend row.
type CostEntry struct {
	RunID  string  `json:"run_id"`
	Agent  string  `json:"agent"`
	Cost   float64 `json:"cost"`
	Tokens int     `json:"tokens"`
}

// RunCosts returns the cost entries recorded for one run, in insertion
// order.
func (s *SQLiteLedger) RunCosts(ctx context.Context, runID string) ([]CostEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, agent, cost, tokens FROM cost_entries WHERE run_id = ? ORDER BY id`,
		runID)
	if err != nil {
		return nil, fmt.Errorf("listing cost entries: %w", err)
	}
	defer rows.Close()

	var out []CostEntry
	for rows.Next() {
		var e CostEntry
		if err := rows.Scan(&e.RunID, &e.Agent, &e.Cost, &e.Tokens); err != nil {
			return nil, fmt.Errorf("scanning cost row: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
