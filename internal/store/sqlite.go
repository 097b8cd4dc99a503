package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/seantiz/dispatch/internal/model"

	_ "modernc.org/sqlite"
)

const createResultsTable = `
CREATE TABLE IF NOT EXISTS task_results (
    task_id        TEXT PRIMARY KEY,
    target_name    TEXT NOT NULL,
    status         TEXT NOT NULL,
    result         TEXT,
    error          TEXT,
    execution_time REAL NOT NULL,
    completed_at   INTEGER NOT NULL
)`

const createResultsIndex = `
CREATE INDEX IF NOT EXISTS idx_task_results_completed_at
    ON task_results (completed_at DESC)`

const createWorkflowRunsTable = `
CREATE TABLE IF NOT EXISTS workflow_runs (
    workflow_id TEXT PRIMARY KEY,
    name        TEXT,
    status      TEXT NOT NULL,
    failed_step TEXT,
    error       TEXT,
    results     TEXT NOT NULL,
    started_at  INTEGER NOT NULL,
    finished_at INTEGER NOT NULL
)`

// Compile-time interface satisfaction check.
var _ Store = (*SQLiteStore)(nil)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens the SQLite database at dbPath and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	for _, stmt := range []string{createResultsTable, createResultsIndex, createWorkflowRunsTable} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveResult inserts a terminal task result. An existing row for the same
// task id is left untouched.
func (s *SQLiteStore) SaveResult(ctx context.Context, res *model.TaskResult) error {
	payload, err := encodePayload(res.Result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO task_results (
			task_id, target_name, status, result, error, execution_time, completed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		res.TaskID, res.TargetName, res.Status, payload, nullString(res.Error),
		res.ExecutionTime, res.CompletedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert result: %w", err)
	}
	return nil
}

// GetResult retrieves an archived result by task id.
func (s *SQLiteStore) GetResult(ctx context.Context, id string) (*model.TaskResult, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT task_id, target_name, status, result, error, execution_time, completed_at
		FROM task_results WHERE task_id = ?`, id,
	)
	res, err := scanResult(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get result: %w", err)
	}
	return res, nil
}

// ListResults returns a page of results ordered by completed_at DESC, along
// with the total count of archived results.
func (s *SQLiteStore) ListResults(ctx context.Context, limit, offset int) ([]*model.TaskResult, int, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, 0, fmt.Errorf("begin read tx: %w", err)
	}
	defer tx.Rollback()

	var total int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM task_results").Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count results: %w", err)
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT task_id, target_name, status, result, error, execution_time, completed_at
		FROM task_results ORDER BY completed_at DESC LIMIT ? OFFSET ?`, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list results: %w", err)
	}
	defer rows.Close()

	var results []*model.TaskResult
	for rows.Next() {
		res, err := scanResult(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan result: %w", err)
		}
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate results: %w", err)
	}

	return results, total, nil
}

// GetResultStats computes totals, per-status and per-target counts, and the
// mean execution time over every archived result.
func (s *SQLiteStore) GetResultStats(ctx context.Context) (*ResultStats, error) {
	stats := &ResultStats{
		CountByStatus: make(map[string]int),
		CountByTarget: make(map[string]int),
	}

	var avg sql.NullFloat64
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), AVG(execution_time) FROM task_results",
	).Scan(&stats.Total, &avg); err != nil {
		return nil, fmt.Errorf("aggregate results: %w", err)
	}
	if avg.Valid {
		stats.AvgExecutionTime = avg.Float64
	}

	if err := s.countBy(ctx, "status", stats.CountByStatus); err != nil {
		return nil, err
	}
	if err := s.countBy(ctx, "target_name", stats.CountByTarget); err != nil {
		return nil, err
	}
	return stats, nil
}

// countBy fills dst with row counts grouped by column. column is always a
// constant supplied by this package.
func (s *SQLiteStore) countBy(ctx context.Context, column string, dst map[string]int) error {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+column+", COUNT(*) FROM task_results GROUP BY "+column)
	if err != nil {
		return fmt.Errorf("count by %s: %w", column, err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return fmt.Errorf("scan %s count: %w", column, err)
		}
		dst[key] = n
	}
	return rows.Err()
}

// SaveWorkflowRun archives a finished workflow run. Step results are stored
// as one JSON document.
func (s *SQLiteStore) SaveWorkflowRun(ctx context.Context, run *model.WorkflowRun) error {
	steps := run.Results
	if steps == nil {
		steps = run.PartialResults
	}
	doc, err := json.Marshal(steps)
	if err != nil {
		return fmt.Errorf("encode workflow results: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO workflow_runs (
			workflow_id, name, status, failed_step, error, results, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.WorkflowID, nullString(run.Name), run.Status, nullString(run.FailedStep),
		nullString(run.Error), string(doc), run.StartedAt.UnixNano(), run.FinishedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert workflow run: %w", err)
	}
	return nil
}

// GetWorkflowRun retrieves an archived workflow run. Results of a failed run
// come back in PartialResults.
func (s *SQLiteStore) GetWorkflowRun(ctx context.Context, id string) (*model.WorkflowRun, error) {
	var (
		run                      model.WorkflowRun
		name, failedStep, errMsg sql.NullString
		doc                      string
		started, finished        int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT workflow_id, name, status, failed_step, error, results, started_at, finished_at
		FROM workflow_runs WHERE workflow_id = ?`, id,
	).Scan(&run.WorkflowID, &name, &run.Status, &failedStep, &errMsg, &doc, &started, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get workflow run: %w", err)
	}

	var steps map[string]*model.TaskResult
	if err := json.Unmarshal([]byte(doc), &steps); err != nil {
		return nil, fmt.Errorf("decode workflow results: %w", err)
	}

	run.Name = name.String
	run.FailedStep = failedStep.String
	run.Error = errMsg.String
	run.StartedAt = time.Unix(0, started).UTC()
	run.FinishedAt = time.Unix(0, finished).UTC()
	if run.Status == model.StatusSuccess {
		run.Results = steps
	} else {
		run.PartialResults = steps
	}
	return &run, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanResult(row rowScanner) (*model.TaskResult, error) {
	var (
		res       model.TaskResult
		payload   sql.NullString
		errMsg    sql.NullString
		completed int64
	)
	if err := row.Scan(
		&res.TaskID, &res.TargetName, &res.Status, &payload, &errMsg,
		&res.ExecutionTime, &completed,
	); err != nil {
		return nil, err
	}

	if payload.Valid {
		if err := json.Unmarshal([]byte(payload.String), &res.Result); err != nil {
			return nil, fmt.Errorf("decode result payload: %w", err)
		}
	}
	res.Error = errMsg.String
	res.CompletedAt = time.Unix(0, completed).UTC()
	return &res, nil
}

func encodePayload(v any) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
