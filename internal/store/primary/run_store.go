package primary

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"optimus/internal/models"
	"optimus/internal/store"
)

// --- Run Ledger Implementation ---

const runColumns = `id, run_id, task_types, total_products, processed_products,
	failed_products, status, created_at, updated_at, completed_at`

func scanRun(row pgx.Row) (*models.PipelineRun, error) {
	r := &models.PipelineRun{}
	err := row.Scan(
		&r.ID, &r.RunID, &r.TaskTypes, &r.Total, &r.Processed,
		&r.Failed, &r.Status, &r.CreatedAt, &r.UpdatedAt, &r.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return r, nil
}

// CreateRun inserts a pending run ledger row.
func (s *StoreImpl) CreateRun(ctx context.Context, runID uuid.UUID, taskTypes []models.TaskType, total int) (*models.PipelineRun, error) {
	names := make([]string, len(taskTypes))
	for i, t := range taskTypes {
		names[i] = string(t)
	}
	query := fmt.Sprintf(`
		INSERT INTO pipeline_runs (run_id, task_types, total_products, processed_products, failed_products, status, created_at, updated_at)
		VALUES ($1, $2, $3, 0, 0, $4, $5, $5)
		RETURNING %s`, runColumns)

	run, err := scanRun(s.db.QueryRow(ctx, query, runID, strings.Join(names, ","), total, models.RunStatusPending, time.Now()))
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline run %s: %w", runID, err)
	}
	return run, nil
}

// GetRun retrieves a run ledger row by its public run ID.
func (s *StoreImpl) GetRun(ctx context.Context, runID uuid.UUID) (*models.PipelineRun, error) {
	query := fmt.Sprintf(`SELECT %s FROM pipeline_runs WHERE run_id = $1`, runColumns)
	run, err := scanRun(s.db.QueryRow(ctx, query, runID))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get pipeline run %s: %w", runID, err)
	}
	return run, nil
}

// UpdateRunCounters writes the live counters and status for an in-flight run.
func (s *StoreImpl) UpdateRunCounters(ctx context.Context, runID uuid.UUID, processed, failed int, status string) error {
	query := `UPDATE pipeline_runs
		SET processed_products = $1, failed_products = $2, status = $3, updated_at = $4
		WHERE run_id = $5`
	cmdTag, err := s.db.Exec(ctx, query, processed, failed, status, time.Now(), runID)
	if err != nil {
		return fmt.Errorf("failed to update counters for run %s: %w", runID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("run %s not found to update counters: %w", runID, store.ErrNotFound)
	}
	return nil
}

// UpdateRunTotal rewrites the job total for a run whose product set was
// re-expanded at execution time.
func (s *StoreImpl) UpdateRunTotal(ctx context.Context, runID uuid.UUID, total int) error {
	query := `UPDATE pipeline_runs SET total_products = $1, updated_at = $2 WHERE run_id = $3`
	cmdTag, err := s.db.Exec(ctx, query, total, time.Now(), runID)
	if err != nil {
		return fmt.Errorf("failed to update total for run %s: %w", runID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("run %s not found to update total: %w", runID, store.ErrNotFound)
	}
	return nil
}

// CompleteRun finalizes a run with terminal counters, status and timestamp.
func (s *StoreImpl) CompleteRun(ctx context.Context, runID uuid.UUID, processed, failed int, status string) error {
	query := `UPDATE pipeline_runs
		SET processed_products = $1, failed_products = $2, status = $3, updated_at = $4, completed_at = $4
		WHERE run_id = $5`
	cmdTag, err := s.db.Exec(ctx, query, processed, failed, status, time.Now(), runID)
	if err != nil {
		return fmt.Errorf("failed to complete run %s: %w", runID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("run %s not found to complete: %w", runID, store.ErrNotFound)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (s *StoreImpl) ListRuns(ctx context.Context, limit int) ([]*models.PipelineRun, error) {
	if limit <= 0 {
		limit = 20
	}
	query := fmt.Sprintf(`SELECT %s FROM pipeline_runs ORDER BY created_at DESC LIMIT $1`, runColumns)
	rows, err := s.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query pipeline runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.PipelineRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pipeline run row: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pipeline run rows: %w", err)
	}
	return runs, nil
}

// Ensure StoreImpl satisfies the RunStore interface
var _ store.RunStore = (*StoreImpl)(nil)
