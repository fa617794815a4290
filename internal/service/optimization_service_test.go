package service

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edtia/edtia-api/internal/dto"
	"github.com/edtia/edtia-api/internal/models"
	"github.com/edtia/edtia-api/internal/solver"
	appErrors "github.com/edtia/edtia-api/pkg/errors"
)

type stubRequirementLister struct {
	reqs []models.CourseRequirement
	err  error
}

func (s *stubRequirementLister) ListByTimetable(ctx context.Context, timetableID int64) ([]models.CourseRequirement, error) {
	return s.reqs, s.err
}

type stubRoomLister struct {
	rooms []models.Room
	err   error
}

func (s *stubRoomLister) ListByTimetable(ctx context.Context, timetableID int64) ([]models.Room, error) {
	return s.rooms, s.err
}

type stubConstraintLister struct {
	constraints []models.Constraint
	err         error
}

func (s *stubConstraintLister) ListByTimetable(ctx context.Context, timetableID int64) ([]models.Constraint, error) {
	return s.constraints, s.err
}

type stubTeacherLimitLister struct {
	limits []models.TeacherLimits
	err    error
}

func (s *stubTeacherLimitLister) ListByTimetable(ctx context.Context, timetableID int64) ([]models.TeacherLimits, error) {
	return s.limits, s.err
}

// blockingRequirementLister parks the worker inside the load phase until
// the run context is cancelled, like a slow query would.
type blockingRequirementLister struct {
	entered chan struct{}
	once    sync.Once
}

func (s *blockingRequirementLister) ListByTimetable(ctx context.Context, timetableID int64) ([]models.CourseRequirement, error) {
	s.once.Do(func() { close(s.entered) })
	<-ctx.Done()
	return nil, ctx.Err()
}

type stubSolutionStore struct {
	mu          sync.Mutex
	stored      []models.Assignment
	replaced    []models.Assignment
	replacedFor int64
}

func (s *stubSolutionStore) Replace(ctx context.Context, exec sqlx.ExtContext, timetableID int64, assignments []models.Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replaced = assignments
	s.replacedFor = timetableID
	return nil
}

func (s *stubSolutionStore) ListByTimetable(ctx context.Context, timetableID int64) ([]models.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stored, nil
}

func (s *stubSolutionStore) replacedSnapshot() ([]models.Assignment, int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.replaced, s.replacedFor
}

type stubRunStore struct {
	mu       sync.Mutex
	seq      int
	created  []models.OptimizationRun
	statuses map[string]models.RunStatus
	finished map[string]models.OptimizationRun
	active   *models.OptimizationRun
	byID     map[string]models.OptimizationRun
}

func newStubRunStore() *stubRunStore {
	return &stubRunStore{
		statuses: make(map[string]models.RunStatus),
		finished: make(map[string]models.OptimizationRun),
		byID:     make(map[string]models.OptimizationRun),
	}
}

func (s *stubRunStore) Create(ctx context.Context, run *models.OptimizationRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	run.ID = fmt.Sprintf("run-%d", s.seq)
	s.created = append(s.created, *run)
	s.statuses[run.ID] = run.Status
	s.byID[run.ID] = *run
	return nil
}

func (s *stubRunStore) UpdateStatus(ctx context.Context, id string, status models.RunStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[id] = status
	return nil
}

func (s *stubRunStore) Finish(ctx context.Context, run *models.OptimizationRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finished[run.ID] = *run
	s.statuses[run.ID] = run.Status
	s.byID[run.ID] = *run
	return nil
}

func (s *stubRunStore) FindByID(ctx context.Context, id string) (*models.OptimizationRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.byID[id]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "optimization run not found")
	}
	return &run, nil
}

func (s *stubRunStore) FindActiveByTimetable(ctx context.Context, timetableID int64) (*models.OptimizationRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active, nil
}

func (s *stubRunStore) finishedRun(id string) (models.OptimizationRun, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.finished[id]
	return run, ok
}

type mockTxProvider struct {
	db *sqlx.DB
}

func newMockTxProvider(t *testing.T) (*mockTxProvider, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return &mockTxProvider{db: sqlx.NewDb(db, "sqlmock")}, mock, func() { db.Close() }
}

func (p *mockTxProvider) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return p.db.BeginTxx(ctx, opts)
}

func testRequirement(id, teacherID, classID int64) models.CourseRequirement {
	return models.CourseRequirement{
		ID: id, SubjectID: id, ClassID: classID, TeacherID: teacherID,
		ClassSize: 25, WeeklyMinutes: 55, SessionMinutes: 55,
	}
}

func testRoom(id int64) models.Room {
	return models.Room{ID: id, Name: "room", Type: models.RoomClassroom, Capacity: 30}
}

func newOptimizationService(t *testing.T, reqs requirementLister, solutions *stubSolutionStore, runs *stubRunStore, limits ...models.TeacherLimits) (*OptimizationService, sqlmock.Sqlmock, func()) {
	t.Helper()
	tx, mock, cleanup := newMockTxProvider(t)
	svc := NewOptimizationService(
		reqs,
		&stubRoomLister{rooms: []models.Room{testRoom(30)}},
		&stubConstraintLister{},
		&stubTeacherLimitLister{limits: limits},
		solutions,
		runs,
		tx,
		nil, nil, nil,
		OptimizationServiceConfig{DefaultBudget: 5 * time.Second, MaxBudget: 10 * time.Second, SlotMinutes: 55, Workers: 1},
	)
	return svc, mock, cleanup
}

func TestOptimizationServiceRunLifecycle(t *testing.T) {
	reqs := &stubRequirementLister{reqs: []models.CourseRequirement{testRequirement(1, 10, 20)}}
	solutions := &stubSolutionStore{
		// The stored draft contains a teacher clash the run should clear.
		stored: []models.Assignment{
			{RequirementID: 1, TeacherID: 10, ClassID: 20, RoomID: 30, Slot: models.TimeSlot{Day: 1, Start: 540, End: 600}},
			{RequirementID: 2, TeacherID: 10, ClassID: 21, RoomID: 31, Slot: models.TimeSlot{Day: 1, Start: 570, End: 630}},
		},
	}
	runs := newStubRunStore()
	svc, mock, cleanup := newOptimizationService(t, reqs, solutions, runs)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectCommit()

	svc.Start(context.Background())
	defer svc.Stop()

	resp, err := svc.StartRun(context.Background(), 7, dto.StartOptimizationRequest{})
	require.NoError(t, err)
	assert.Equal(t, string(models.RunPending), resp.Status)

	require.Eventually(t, func() bool {
		run, ok := runs.finishedRun(resp.ID)
		return ok && run.Status.Terminal()
	}, 5*time.Second, 20*time.Millisecond)

	run, _ := runs.finishedRun(resp.ID)
	assert.Equal(t, models.RunCompleted, run.Status)
	assert.Equal(t, string(solver.StatusOptimal), run.SolverStatus)
	assert.Equal(t, 1, run.ConflictsResolved)
	assert.Zero(t, run.FinalScore)
	require.NotNil(t, run.CompletedAt)

	replaced, forTimetable := solutions.replacedSnapshot()
	assert.Equal(t, int64(7), forTimetable)
	assert.Len(t, replaced, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOptimizationServiceRejectsSecondRun(t *testing.T) {
	runs := newStubRunStore()
	runs.active = &models.OptimizationRun{ID: "run-9", TimetableID: 7, Status: models.RunRunning}
	svc, _, cleanup := newOptimizationService(t, &stubRequirementLister{}, &stubSolutionStore{}, runs)
	defer cleanup()

	_, err := svc.StartRun(context.Background(), 7, dto.StartOptimizationRequest{})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrRunActive.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "run-9")
}

func TestOptimizationServiceRegistryBlocksConcurrentStart(t *testing.T) {
	runs := newStubRunStore()
	svc, _, cleanup := newOptimizationService(t, &stubRequirementLister{}, &stubSolutionStore{}, runs)
	defer cleanup()

	require.NoError(t, svc.acquire(7, &activeRun{runID: "run-1", cancel: func() {}}))

	_, err := svc.StartRun(context.Background(), 7, dto.StartOptimizationRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrRunActive.Code, appErrors.FromError(err).Code)
}

func TestOptimizationServiceStartRunValidation(t *testing.T) {
	svc, _, cleanup := newOptimizationService(t, &stubRequirementLister{}, &stubSolutionStore{}, newStubRunStore())
	defer cleanup()

	_, err := svc.StartRun(context.Background(), 0, dto.StartOptimizationRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestOptimizationServiceCancel(t *testing.T) {
	runs := newStubRunStore()
	svc, _, cleanup := newOptimizationService(t, &stubRequirementLister{}, &stubSolutionStore{}, runs)
	defer cleanup()

	run := &models.OptimizationRun{TimetableID: 7, Status: models.RunRunning}
	require.NoError(t, runs.Create(context.Background(), run))
	runs.UpdateStatus(context.Background(), run.ID, models.RunRunning)

	runCtx, cancel := context.WithCancel(context.Background())
	require.NoError(t, svc.acquire(7, &activeRun{runID: run.ID, ctx: runCtx, cancel: cancel}))

	require.NoError(t, svc.Cancel(context.Background(), run.ID))
	select {
	case <-runCtx.Done():
	default:
		t.Fatal("cancel did not propagate to the run context")
	}
}

func TestOptimizationServiceCancelDuringLoadMarksCancelled(t *testing.T) {
	reqs := &blockingRequirementLister{entered: make(chan struct{})}
	runs := newStubRunStore()
	svc, _, cleanup := newOptimizationService(t, reqs, &stubSolutionStore{}, runs)
	defer cleanup()

	svc.Start(context.Background())
	defer svc.Stop()

	resp, err := svc.StartRun(context.Background(), 7, dto.StartOptimizationRequest{})
	require.NoError(t, err)

	select {
	case <-reqs.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("worker never reached the load phase")
	}
	require.NoError(t, svc.Cancel(context.Background(), resp.ID))

	require.Eventually(t, func() bool {
		run, ok := runs.finishedRun(resp.ID)
		return ok && run.Status.Terminal()
	}, 5*time.Second, 20*time.Millisecond)

	run, _ := runs.finishedRun(resp.ID)
	assert.Equal(t, models.RunCancelled, run.Status, "a caller abort is never a failure")
	require.NotNil(t, run.CompletedAt)
}

func TestOptimizationServiceRunHonoursTeacherCeilings(t *testing.T) {
	reqs := &stubRequirementLister{reqs: []models.CourseRequirement{testRequirement(1, 10, 20), testRequirement(2, 10, 21)}}
	runs := newStubRunStore()
	svc, _, cleanup := newOptimizationService(t, reqs, &stubSolutionStore{}, runs,
		models.TeacherLimits{TeacherID: 10, MaxWeekMinutes: 55})
	defer cleanup()

	svc.Start(context.Background())
	defer svc.Stop()

	resp, err := svc.StartRun(context.Background(), 7, dto.StartOptimizationRequest{})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		run, ok := runs.finishedRun(resp.ID)
		return ok && run.Status.Terminal()
	}, 5*time.Second, 20*time.Millisecond)

	run, _ := runs.finishedRun(resp.ID)
	assert.Equal(t, models.RunFailed, run.Status)
	assert.Equal(t, string(solver.StatusInfeasible), run.SolverStatus)
	assert.Contains(t, run.Evidence, "teacher_hour_ceiling")
}

func TestOptimizationServiceCancelFinishedRun(t *testing.T) {
	runs := newStubRunStore()
	svc, _, cleanup := newOptimizationService(t, &stubRequirementLister{}, &stubSolutionStore{}, runs)
	defer cleanup()

	run := &models.OptimizationRun{TimetableID: 7, Status: models.RunPending}
	require.NoError(t, runs.Create(context.Background(), run))
	run.Status = models.RunCompleted
	require.NoError(t, runs.Finish(context.Background(), run))

	err := svc.Cancel(context.Background(), run.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestOptimizationServiceSolveTimetableInline(t *testing.T) {
	svc, _, cleanup := newOptimizationService(t, &stubRequirementLister{}, &stubSolutionStore{}, newStubRunStore())
	defer cleanup()

	resp, err := svc.SolveTimetable(context.Background(), dto.SolveTimetableRequest{
		TimetableID:  7,
		Requirements: []models.CourseRequirement{testRequirement(1, 10, 20), testRequirement(2, 11, 21)},
		Rooms:        []models.Room{testRoom(30)},
	})
	require.NoError(t, err)
	assert.Equal(t, string(solver.StatusOptimal), resp.Status)
	assert.Len(t, resp.Assignments, 2)
}

func TestOptimizationServiceSolveTimetableInfeasible(t *testing.T) {
	svc, _, cleanup := newOptimizationService(t, &stubRequirementLister{}, &stubSolutionStore{}, newStubRunStore())
	defer cleanup()

	labReq := testRequirement(1, 10, 20)
	labReq.RoomType = models.RoomLab

	resp, err := svc.SolveTimetable(context.Background(), dto.SolveTimetableRequest{
		TimetableID:  7,
		Requirements: []models.CourseRequirement{labReq},
		Rooms:        []models.Room{testRoom(30)},
	})
	require.NoError(t, err)
	assert.Equal(t, string(solver.StatusInfeasible), resp.Status)
	assert.Contains(t, resp.Evidence, "room_type_match")
	assert.Empty(t, resp.Assignments)
}

func TestOptimizationServiceSolveTimetableGuardsTimetable(t *testing.T) {
	svc, _, cleanup := newOptimizationService(t, &stubRequirementLister{}, &stubSolutionStore{}, newStubRunStore())
	defer cleanup()

	require.NoError(t, svc.acquire(7, &activeRun{runID: "run-1", cancel: func() {}}))

	_, err := svc.SolveTimetable(context.Background(), dto.SolveTimetableRequest{
		TimetableID:  7,
		Requirements: []models.CourseRequirement{testRequirement(1, 10, 20)},
		Rooms:        []models.Room{testRoom(30)},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrRunActive.Code, appErrors.FromError(err).Code)
}
