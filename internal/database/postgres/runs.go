package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kozaktomas/face-sorter/internal/database"
)

// RunRepository implements database.RunWriter.
type RunRepository struct {
	pool *Pool
}

// NewRunRepository creates a repository on the pool.
func NewRunRepository(pool *Pool) *RunRepository {
	return &RunRepository{pool: pool}
}

// SaveRun stores a finished run, replacing a run with the same ID.
func (r *RunRepository) SaveRun(ctx context.Context, run database.RunRecord) error {
	summary, err := json.Marshal(run.Summary)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO runs (id, started_at, finished_at, input_dir, output_dir, cancelled, summary)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			finished_at = EXCLUDED.finished_at,
			cancelled = EXCLUDED.cancelled,
			summary = EXCLUDED.summary
	`, run.ID, run.StartedAt, run.FinishedAt, run.InputDir, run.OutputDir, run.Cancelled, summary)
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	return nil
}

const runColumns = "id, started_at, finished_at, input_dir, output_dir, cancelled, summary"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*database.RunRecord, error) {
	var run database.RunRecord
	var summary []byte
	if err := row.Scan(&run.ID, &run.StartedAt, &run.FinishedAt, &run.InputDir, &run.OutputDir, &run.Cancelled, &summary); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(summary, &run.Summary); err != nil {
		return nil, fmt.Errorf("unmarshal summary: %w", err)
	}
	return &run, nil
}

// GetRun returns a run by ID, nil if not found.
func (r *RunRepository) GetRun(ctx context.Context, id string) (*database.RunRecord, error) {
	run, err := scanRun(r.pool.QueryRow(ctx, "SELECT "+runColumns+" FROM runs WHERE id = $1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// ListRuns returns the most recent runs first.
func (r *RunRepository) ListRuns(ctx context.Context, limit int) ([]database.RunRecord, error) {
	if limit <= 0 {
		limit = database.DefaultRunListLimit
	}

	rows, err := r.pool.Query(ctx, "SELECT "+runColumns+" FROM runs ORDER BY started_at DESC LIMIT $1", limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []database.RunRecord
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}
