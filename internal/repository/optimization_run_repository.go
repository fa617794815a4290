package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/edtia/edtia-api/internal/models"
	appErrors "github.com/edtia/edtia-api/pkg/errors"
)

// OptimizationRunRepository persists solver run records.
type OptimizationRunRepository struct {
	db *sqlx.DB
}

// NewOptimizationRunRepository constructs the repository.
func NewOptimizationRunRepository(db *sqlx.DB) *OptimizationRunRepository {
	return &OptimizationRunRepository{db: db}
}

// Create inserts a new run record, assigning an id when absent.
func (r *OptimizationRunRepository) Create(ctx context.Context, run *models.OptimizationRun) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}

	const query = `
INSERT INTO optimization_runs (id, timetable_id, status, solver_status, initial_score, final_score, conflicts_resolved, compute_seconds, started_at)
VALUES (:id, :timetable_id, :status, :solver_status, :initial_score, :final_score, :conflicts_resolved, :compute_seconds, :started_at)`

	if _, err := r.db.NamedExecContext(ctx, query, run); err != nil {
		return fmt.Errorf("insert optimization run: %w", err)
	}
	return nil
}

// UpdateStatus moves a run to a new lifecycle status.
func (r *OptimizationRunRepository) UpdateStatus(ctx context.Context, id string, status models.RunStatus) error {
	const query = `UPDATE optimization_runs SET status = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status); err != nil {
		return fmt.Errorf("update optimization run %s: %w", id, err)
	}
	return nil
}

// Finish records the terminal outcome of a run.
func (r *OptimizationRunRepository) Finish(ctx context.Context, run *models.OptimizationRun) error {
	const query = `
UPDATE optimization_runs
SET status = :status,
    solver_status = :solver_status,
    initial_score = :initial_score,
    final_score = :final_score,
    conflicts_resolved = :conflicts_resolved,
    compute_seconds = :compute_seconds,
    completed_at = :completed_at
WHERE id = :id`

	if _, err := r.db.NamedExecContext(ctx, query, run); err != nil {
		return fmt.Errorf("finish optimization run %s: %w", run.ID, err)
	}
	return nil
}

// FindByID returns one run record.
func (r *OptimizationRunRepository) FindByID(ctx context.Context, id string) (*models.OptimizationRun, error) {
	const query = `SELECT id, timetable_id, status, solver_status, initial_score, final_score, conflicts_resolved, compute_seconds, started_at, completed_at
FROM optimization_runs WHERE id = $1`

	var run models.OptimizationRun
	if err := r.db.GetContext(ctx, &run, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "optimization run not found")
		}
		return nil, fmt.Errorf("find optimization run %s: %w", id, err)
	}
	return &run, nil
}

// FindActiveByTimetable returns the newest non-terminal run for a
// timetable, or nil when none is in flight.
func (r *OptimizationRunRepository) FindActiveByTimetable(ctx context.Context, timetableID int64) (*models.OptimizationRun, error) {
	const query = `SELECT id, timetable_id, status, solver_status, initial_score, final_score, conflicts_resolved, compute_seconds, started_at, completed_at
FROM optimization_runs
WHERE timetable_id = $1 AND status IN ('pending', 'running')
ORDER BY started_at DESC LIMIT 1`

	var run models.OptimizationRun
	if err := r.db.GetContext(ctx, &run, query, timetableID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find active run for timetable %d: %w", timetableID, err)
	}
	return &run, nil
}
