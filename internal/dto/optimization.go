package dto

import (
	"time"

	"github.com/edtia/edtia-api/internal/models"
)

// StartOptimizationRequest starts a background solver run over a stored
// timetable. All scheduling inputs are loaded from the repositories; the
// request only tunes the run.
type StartOptimizationRequest struct {
	BudgetSeconds int                        `json:"budgetSeconds" validate:"omitempty,min=1,max=300"`
	SlotMinutes   int                        `json:"slotMinutes" validate:"omitempty,min=15,max=240"`
	Hours         *models.EstablishmentHours `json:"hours"`
}

// SolveTimetableRequest carries a self-contained solve problem: demand,
// room pool and constraints inline, nothing loaded from storage.
type SolveTimetableRequest struct {
	TimetableID   int64                      `json:"timetableId" validate:"required"`
	Requirements  []models.CourseRequirement `json:"requirements" validate:"required,min=1"`
	Rooms         []models.Room              `json:"rooms" validate:"required,min=1"`
	Constraints   []models.Constraint        `json:"constraints"`
	TeacherLimits []models.TeacherLimits     `json:"teacherLimits"`
	Hours         *models.EstablishmentHours `json:"hours"`
	BudgetSeconds int                        `json:"budgetSeconds" validate:"omitempty,min=1,max=300"`
}

// SolveTimetableResponse is the synchronous solver outcome.
type SolveTimetableResponse struct {
	Status      string              `json:"status"`
	Assignments []models.Assignment `json:"assignments,omitempty"`
	Penalty     float64             `json:"penalty"`
	Evidence    []string            `json:"evidence,omitempty"`
	ElapsedMs   int64               `json:"elapsedMs"`
}

// OptimizationRunResponse describes one run record.
type OptimizationRunResponse struct {
	ID                string     `json:"id"`
	TimetableID       int64      `json:"timetableId"`
	Status            string     `json:"status"`
	SolverStatus      string     `json:"solverStatus,omitempty"`
	InitialScore      float64    `json:"initialScore"`
	FinalScore        float64    `json:"finalScore"`
	ConflictsResolved int        `json:"conflictsResolved"`
	ComputeSeconds    float64    `json:"computeSeconds"`
	Evidence          []string   `json:"evidence,omitempty"`
	StartedAt         time.Time  `json:"startedAt"`
	CompletedAt       *time.Time `json:"completedAt,omitempty"`
}

// NewOptimizationRunResponse maps a run record to its API shape.
func NewOptimizationRunResponse(run models.OptimizationRun) OptimizationRunResponse {
	return OptimizationRunResponse{
		ID:                run.ID,
		TimetableID:       run.TimetableID,
		Status:            string(run.Status),
		SolverStatus:      run.SolverStatus,
		InitialScore:      run.InitialScore,
		FinalScore:        run.FinalScore,
		ConflictsResolved: run.ConflictsResolved,
		ComputeSeconds:    run.ComputeSeconds,
		Evidence:          run.Evidence,
		StartedAt:         run.StartedAt,
		CompletedAt:       run.CompletedAt,
	}
}
