package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/edtia/edtia-api/internal/conflict"
	"github.com/edtia/edtia-api/internal/constraint"
	"github.com/edtia/edtia-api/internal/dto"
	"github.com/edtia/edtia-api/internal/models"
	"github.com/edtia/edtia-api/internal/solver"
	appErrors "github.com/edtia/edtia-api/pkg/errors"
	"github.com/edtia/edtia-api/pkg/jobs"
)

type requirementLister interface {
	ListByTimetable(ctx context.Context, timetableID int64) ([]models.CourseRequirement, error)
}

type roomLister interface {
	ListByTimetable(ctx context.Context, timetableID int64) ([]models.Room, error)
}

type constraintLister interface {
	ListByTimetable(ctx context.Context, timetableID int64) ([]models.Constraint, error)
}

type teacherLimitLister interface {
	ListByTimetable(ctx context.Context, timetableID int64) ([]models.TeacherLimits, error)
}

type solutionStore interface {
	Replace(ctx context.Context, exec sqlx.ExtContext, timetableID int64, assignments []models.Assignment) error
	ListByTimetable(ctx context.Context, timetableID int64) ([]models.Assignment, error)
}

type runStore interface {
	Create(ctx context.Context, run *models.OptimizationRun) error
	UpdateStatus(ctx context.Context, id string, status models.RunStatus) error
	Finish(ctx context.Context, run *models.OptimizationRun) error
	FindByID(ctx context.Context, id string) (*models.OptimizationRun, error)
	FindActiveByTimetable(ctx context.Context, timetableID int64) (*models.OptimizationRun, error)
}

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

// OptimizationServiceConfig bounds solver runs and sizes the worker pool.
type OptimizationServiceConfig struct {
	DefaultBudget time.Duration
	MaxBudget     time.Duration
	SlotMinutes   int
	Workers       int
	BufferSize    int
}

// activeRun tracks one in-flight solver run so a second request for the
// same timetable is rejected and cancellation reaches the search loop.
type activeRun struct {
	runID  string
	ctx    context.Context
	cancel context.CancelFunc
}

// OptimizationService is the job controller around the solver: it owns run
// records, the at-most-one-run-per-timetable rule, background execution
// and post-solve verification. It is the only component the transport
// layer talks to for optimization.
type OptimizationService struct {
	requirements requirementLister
	rooms        roomLister
	constraints  constraintLister
	limits       teacherLimitLister
	solutions    solutionStore
	runs         runStore
	tx           txProvider
	validator    *validator.Validate
	metrics      *MetricsService
	logger       *zap.Logger
	cfg          OptimizationServiceConfig

	queue *jobs.Queue

	mu     sync.Mutex
	active map[int64]*activeRun
}

type optimizationJob struct {
	runID       string
	timetableID int64
	budget      time.Duration
	slotMinutes int
	hours       *models.EstablishmentHours
}

// NewOptimizationService wires the controller. Call Start before enqueuing
// runs and Stop on shutdown.
func NewOptimizationService(
	requirements requirementLister,
	rooms roomLister,
	constraints constraintLister,
	limits teacherLimitLister,
	solutions solutionStore,
	runs runStore,
	tx txProvider,
	validate *validator.Validate,
	metrics *MetricsService,
	logger *zap.Logger,
	cfg OptimizationServiceConfig,
) *OptimizationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DefaultBudget <= 0 {
		cfg.DefaultBudget = 30 * time.Second
	}
	if cfg.MaxBudget <= 0 {
		cfg.MaxBudget = 5 * time.Minute
	}

	s := &OptimizationService{
		requirements: requirements,
		rooms:        rooms,
		constraints:  constraints,
		limits:       limits,
		solutions:    solutions,
		runs:         runs,
		tx:           tx,
		validator:    validate,
		metrics:      metrics,
		logger:       logger,
		cfg:          cfg,
		active:       make(map[int64]*activeRun),
	}
	s.queue = jobs.NewQueue("optimization", s.handleJob, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		MaxRetries: 1,
		Logger:     logger,
	})
	return s
}

// Start launches the background workers.
func (s *OptimizationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the workers.
func (s *OptimizationService) Stop() {
	s.queue.Stop()
}

// StartRun creates a run record and schedules the solver in the
// background. A second request while a run is in flight for the same
// timetable is rejected with the active run id.
func (s *OptimizationService) StartRun(ctx context.Context, timetableID int64, req dto.StartOptimizationRequest) (dto.OptimizationRunResponse, error) {
	if timetableID == 0 {
		return dto.OptimizationRunResponse{}, appErrors.Clone(appErrors.ErrValidation, "timetable id is required")
	}
	if err := s.validator.Struct(req); err != nil {
		return dto.OptimizationRunResponse{}, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}

	if existing, err := s.runs.FindActiveByTimetable(ctx, timetableID); err != nil {
		return dto.OptimizationRunResponse{}, err
	} else if existing != nil {
		return dto.OptimizationRunResponse{}, appErrors.Clone(appErrors.ErrRunActive,
			fmt.Sprintf("run %s is already active for timetable %d", existing.ID, timetableID))
	}

	runCtx, cancel := context.WithCancel(context.Background())
	entry := &activeRun{ctx: runCtx, cancel: cancel}
	if err := s.acquire(timetableID, entry); err != nil {
		cancel()
		return dto.OptimizationRunResponse{}, err
	}

	run := &models.OptimizationRun{
		TimetableID: timetableID,
		Status:      models.RunPending,
		StartedAt:   time.Now().UTC(),
	}
	if err := s.runs.Create(ctx, run); err != nil {
		s.release(timetableID, entry.runID)
		cancel()
		return dto.OptimizationRunResponse{}, err
	}
	s.mu.Lock()
	entry.runID = run.ID
	s.mu.Unlock()

	job := jobs.Job{
		ID:   run.ID,
		Type: "optimize_timetable",
		Payload: optimizationJob{
			runID:       run.ID,
			timetableID: timetableID,
			budget:      s.budget(req.BudgetSeconds),
			slotMinutes: s.slotMinutes(req.SlotMinutes),
			hours:       req.Hours,
		},
	}
	if err := s.queue.Enqueue(job); err != nil {
		s.release(timetableID, run.ID)
		cancel()
		run.Status = models.RunFailed
		now := time.Now().UTC()
		run.CompletedAt = &now
		if finishErr := s.runs.Finish(ctx, run); finishErr != nil {
			s.logger.Error("failed to mark unqueued run", zap.String("runId", run.ID), zap.Error(finishErr))
		}
		return dto.OptimizationRunResponse{}, fmt.Errorf("enqueue optimization run: %w", err)
	}

	s.logger.Info("optimization run queued",
		zap.String("runId", run.ID),
		zap.Int64("timetableId", timetableID))
	return dto.NewOptimizationRunResponse(*run), nil
}

// GetRun returns the current state of a run record.
func (s *OptimizationService) GetRun(ctx context.Context, runID string) (dto.OptimizationRunResponse, error) {
	run, err := s.runs.FindByID(ctx, runID)
	if err != nil {
		return dto.OptimizationRunResponse{}, err
	}
	return dto.NewOptimizationRunResponse(*run), nil
}

// Cancel aborts an in-flight run cooperatively. The solver observes the
// cancellation at its next backtracking step; the run record turns
// cancelled when it exits.
func (s *OptimizationService) Cancel(ctx context.Context, runID string) error {
	run, err := s.runs.FindByID(ctx, runID)
	if err != nil {
		return err
	}
	if run.Status.Terminal() {
		return appErrors.Clone(appErrors.ErrPreconditionFailed,
			fmt.Sprintf("run %s already finished with status %s", runID, run.Status))
	}

	s.mu.Lock()
	entry := s.active[run.TimetableID]
	s.mu.Unlock()
	if entry == nil || entry.runID != runID {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "run is not executing in this process")
	}
	entry.cancel()
	s.logger.Info("optimization run cancel requested", zap.String("runId", runID))
	return nil
}

// SolveTimetable runs the solver synchronously over an inline problem. It
// participates in the same per-timetable exclusion as background runs.
func (s *OptimizationService) SolveTimetable(ctx context.Context, req dto.SolveTimetableRequest) (dto.SolveTimetableResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.SolveTimetableResponse{}, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}

	if err := s.acquire(req.TimetableID, &activeRun{runID: "inline", ctx: ctx, cancel: func() {}}); err != nil {
		return dto.SolveTimetableResponse{}, err
	}
	defer s.release(req.TimetableID, "inline")

	catalog := constraint.NewCatalog(constraint.Config{
		Hours:         hoursOrDefault(req.Hours),
		Constraints:   req.Constraints,
		TeacherLimits: req.TeacherLimits,
		Requirements:  req.Requirements,
	})
	slv := solver.New(catalog, req.Rooms, solver.Options{
		Budget:      s.budget(req.BudgetSeconds),
		SlotMinutes: s.slotMinutes(0),
		Logger:      s.logger,
	})

	result, err := slv.Solve(ctx, req.Requirements)
	if err != nil {
		return dto.SolveTimetableResponse{}, err
	}
	s.metrics.ObserveSolverRun(string(result.Status), result.Elapsed, result.Penalty, solved(result.Status))

	return dto.SolveTimetableResponse{
		Status:      string(result.Status),
		Assignments: result.Assignments,
		Penalty:     result.Penalty,
		Evidence:    result.Evidence,
		ElapsedMs:   result.Elapsed.Milliseconds(),
	}, nil
}

// handleJob executes one queued run. Errors are swallowed after updating
// the run record: retrying a solver run automatically would break the
// single-run rule.
func (s *OptimizationService) handleJob(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(optimizationJob)
	if !ok {
		s.logger.Error("unexpected job payload", zap.String("jobId", job.ID))
		return nil
	}

	s.mu.Lock()
	entry := s.active[payload.timetableID]
	s.mu.Unlock()
	if entry == nil || entry.runID != payload.runID {
		s.finishRun(&models.OptimizationRun{ID: payload.runID, Status: models.RunCancelled})
		return nil
	}
	defer s.release(payload.timetableID, payload.runID)

	s.execute(entry.ctx, payload)
	return nil
}

func (s *OptimizationService) execute(ctx context.Context, payload optimizationJob) {
	run := &models.OptimizationRun{
		ID:          payload.runID,
		TimetableID: payload.timetableID,
		Status:      models.RunRunning,
	}
	if err := s.runs.UpdateStatus(context.Background(), payload.runID, models.RunRunning); err != nil {
		s.logger.Error("failed to mark run running", zap.String("runId", payload.runID), zap.Error(err))
	}

	requirements, err := s.requirements.ListByTimetable(ctx, payload.timetableID)
	if err == nil && len(requirements) == 0 {
		err = appErrors.Clone(appErrors.ErrPreconditionFailed, "timetable has no course requirements")
	}
	var rooms []models.Room
	if err == nil {
		rooms, err = s.rooms.ListByTimetable(ctx, payload.timetableID)
	}
	var constraints []models.Constraint
	if err == nil {
		constraints, err = s.constraints.ListByTimetable(ctx, payload.timetableID)
	}
	var limits []models.TeacherLimits
	if err == nil {
		limits, err = s.limits.ListByTimetable(ctx, payload.timetableID)
	}
	if err != nil {
		s.failRun(ctx, run, err)
		return
	}

	catalog := constraint.NewCatalog(constraint.Config{
		Hours:         hoursOrDefault(payload.hours),
		Constraints:   constraints,
		TeacherLimits: limits,
		Requirements:  requirements,
	})

	// Baseline for the improvement report: the currently stored solution.
	previous, err := s.solutions.ListByTimetable(ctx, payload.timetableID)
	if err != nil {
		s.failRun(ctx, run, err)
		return
	}
	initialConflicts := len(conflict.Detect(previous))
	run.InitialScore = catalog.Penalty(previous)

	slv := solver.New(catalog, rooms, solver.Options{
		Budget:      payload.budget,
		SlotMinutes: payload.slotMinutes,
		Logger:      s.logger,
	})
	result, err := slv.Solve(ctx, requirements)
	if err != nil {
		s.failRun(ctx, run, err)
		return
	}

	run.SolverStatus = string(result.Status)
	run.ComputeSeconds = result.Elapsed.Seconds()
	run.Evidence = result.Evidence
	s.metrics.ObserveSolverRun(string(result.Status), result.Elapsed, result.Penalty, solved(result.Status))

	if !solved(result.Status) {
		if result.Status == solver.StatusCancelled {
			run.Status = models.RunCancelled
		} else {
			run.Status = models.RunFailed
		}
		s.finishRun(run)
		return
	}

	// Solutions are re-verified before they replace anything.
	if residual := conflict.Detect(result.Assignments); len(residual) > 0 {
		s.logger.Error("solver produced a conflicting solution",
			zap.String("runId", run.ID),
			zap.Int("conflicts", len(residual)))
		run.Status = models.RunFailed
		s.finishRun(run)
		return
	}

	if err := s.persistSolution(payload.timetableID, result.Assignments); err != nil {
		s.failRun(ctx, run, err)
		return
	}

	run.Status = models.RunCompleted
	run.FinalScore = result.Penalty
	run.ConflictsResolved = initialConflicts
	s.finishRun(run)
	s.logger.Info("optimization run completed",
		zap.String("runId", run.ID),
		zap.Int64("timetableId", payload.timetableID),
		zap.String("solverStatus", run.SolverStatus),
		zap.Float64("finalScore", run.FinalScore),
		zap.Int("conflictsResolved", run.ConflictsResolved))
}

func (s *OptimizationService) persistSolution(timetableID int64, assignments []models.Assignment) error {
	ctx := context.Background()
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin solution transaction: %w", err)
	}
	if err := s.solutions.Replace(ctx, tx, timetableID, assignments); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit solution: %w", err)
	}
	return nil
}

// failRun records the terminal outcome of an aborted run. A caller
// initiated cancel surfaces as context.Canceled from any loading step
// when it lands before the solver starts; that is a cancellation, not
// a failure.
func (s *OptimizationService) failRun(ctx context.Context, run *models.OptimizationRun, cause error) {
	if errors.Is(cause, context.Canceled) || (ctx != nil && errors.Is(ctx.Err(), context.Canceled)) {
		s.logger.Info("optimization run cancelled",
			zap.String("runId", run.ID),
			zap.Int64("timetableId", run.TimetableID))
		run.Status = models.RunCancelled
		s.finishRun(run)
		return
	}

	s.logger.Error("optimization run failed",
		zap.String("runId", run.ID),
		zap.Int64("timetableId", run.TimetableID),
		zap.Error(cause))
	run.Status = models.RunFailed
	s.finishRun(run)
}

// finishRun writes the terminal record using a fresh context so the
// outcome is persisted even when the run context is already cancelled.
func (s *OptimizationService) finishRun(run *models.OptimizationRun) {
	now := time.Now().UTC()
	run.CompletedAt = &now
	if err := s.runs.Finish(context.Background(), run); err != nil {
		s.logger.Error("failed to persist run outcome", zap.String("runId", run.ID), zap.Error(err))
	}
}

func (s *OptimizationService) acquire(timetableID int64, entry *activeRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.active[timetableID]; ok {
		return appErrors.Clone(appErrors.ErrRunActive,
			fmt.Sprintf("run %s is already active for timetable %d", existing.runID, timetableID))
	}
	s.active[timetableID] = entry
	return nil
}

func (s *OptimizationService) release(timetableID int64, runID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.active[timetableID]; ok && existing.runID == runID {
		delete(s.active, timetableID)
	}
}

func (s *OptimizationService) budget(requestedSeconds int) time.Duration {
	budget := s.cfg.DefaultBudget
	if requestedSeconds > 0 {
		budget = time.Duration(requestedSeconds) * time.Second
	}
	if budget > s.cfg.MaxBudget {
		budget = s.cfg.MaxBudget
	}
	return budget
}

func (s *OptimizationService) slotMinutes(requested int) int {
	if requested > 0 {
		return requested
	}
	return s.cfg.SlotMinutes
}

func solved(status solver.Status) bool {
	return status == solver.StatusOptimal || status == solver.StatusFeasibleTimedOut
}

func hoursOrDefault(hours *models.EstablishmentHours) models.EstablishmentHours {
	if hours != nil && len(hours.OpenDays) > 0 {
		return *hours
	}
	return models.DefaultEstablishmentHours()
}
