package models

import "time"

// RunStatus tracks the lifecycle of a background optimization run.
type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
	RunCancelled RunStatus = "cancelled"
)

// Terminal reports whether the run will no longer change.
func (s RunStatus) Terminal() bool {
	return s == RunCompleted || s == RunFailed || s == RunCancelled
}

// OptimizationRun records one solver execution over a timetable: what was
// asked, how it went and how long it took.
type OptimizationRun struct {
	ID                string     `db:"id" json:"id"`
	TimetableID       int64      `db:"timetable_id" json:"timetableId"`
	Status            RunStatus  `db:"status" json:"status"`
	SolverStatus      string     `db:"solver_status" json:"solverStatus,omitempty"`
	InitialScore      float64    `db:"initial_score" json:"initialScore"`
	FinalScore        float64    `db:"final_score" json:"finalScore"`
	ConflictsResolved int        `db:"conflicts_resolved" json:"conflictsResolved"`
	ComputeSeconds    float64    `db:"compute_seconds" json:"computeSeconds"`
	Evidence          []string   `db:"-" json:"evidence,omitempty"`
	StartedAt         time.Time  `db:"started_at" json:"startedAt"`
	CompletedAt       *time.Time `db:"completed_at" json:"completedAt,omitempty"`
}
