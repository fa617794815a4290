package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edtia/edtia-api/internal/models"
	appErrors "github.com/edtia/edtia-api/pkg/errors"
)

func TestOptimizationRunRepositoryCreateAndFind(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewOptimizationRunRepository(db)

	mock.ExpectExec("INSERT INTO optimization_runs").
		WillReturnResult(sqlmock.NewResult(1, 1))

	run := &models.OptimizationRun{TimetableID: 7, Status: models.RunPending}
	require.NoError(t, repo.Create(context.Background(), run))
	assert.NotEmpty(t, run.ID, "id assigned on insert")
	assert.False(t, run.StartedAt.IsZero())

	started := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "timetable_id", "status", "solver_status", "initial_score", "final_score", "conflicts_resolved", "compute_seconds", "started_at", "completed_at"}).
		AddRow(run.ID, 7, "running", "", 4.5, 0.0, 0, 0.0, started, nil)
	mock.ExpectQuery("SELECT id, timetable_id, status").
		WithArgs(run.ID).
		WillReturnRows(rows)

	found, err := repo.FindByID(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunRunning, found.Status)
	assert.Equal(t, int64(7), found.TimetableID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOptimizationRunRepositoryFinishPersistsBothScores(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewOptimizationRunRepository(db)

	completed := time.Now().UTC()
	run := &models.OptimizationRun{
		ID:                "run-1",
		TimetableID:       7,
		Status:            models.RunCompleted,
		SolverStatus:      "optimal",
		InitialScore:      4.5,
		FinalScore:        0,
		ConflictsResolved: 2,
		ComputeSeconds:    1.5,
		CompletedAt:       &completed,
	}

	mock.ExpectExec("UPDATE optimization_runs").
		WithArgs("completed", "optimal", 4.5, 0.0, 2, 1.5, completed, "run-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Finish(context.Background(), run))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOptimizationRunRepositoryFindByIDNotFound(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewOptimizationRunRepository(db)

	mock.ExpectQuery("SELECT id, timetable_id, status").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.FindByID(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestOptimizationRunRepositoryFindActiveByTimetable(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewOptimizationRunRepository(db)

	mock.ExpectQuery("SELECT id, timetable_id, status").
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	run, err := repo.FindActiveByTimetable(context.Background(), 7)
	require.NoError(t, err)
	assert.Nil(t, run, "no active run")

	started := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "timetable_id", "status", "solver_status", "initial_score", "final_score", "conflicts_resolved", "compute_seconds", "started_at", "completed_at"}).
		AddRow("run-1", 7, "running", "", 0.0, 0.0, 0, 0.0, started, nil)
	mock.ExpectQuery("SELECT id, timetable_id, status").
		WithArgs(int64(7)).
		WillReturnRows(rows)

	run, err = repo.FindActiveByTimetable(context.Background(), 7)
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, "run-1", run.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSolutionRepositoryReplace(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSolutionRepository(db)

	mock.ExpectExec("DELETE FROM timetable_assignments").
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("INSERT INTO timetable_assignments").
		WillReturnResult(sqlmock.NewResult(1, 1))

	slot, err := models.NewTimeSlot(1, 540, 595)
	require.NoError(t, err)
	assignments := []models.Assignment{{RequirementID: 1, TeacherID: 10, ClassID: 20, RoomID: 30, Slot: slot}}

	require.NoError(t, repo.Replace(context.Background(), nil, 7, assignments))
	assert.NoError(t, mock.ExpectationsWereMet())
}
