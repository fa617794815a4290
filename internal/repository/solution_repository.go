package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/edtia/edtia-api/internal/models"
)

// SolutionRepository persists accepted assignment sets.
type SolutionRepository struct {
	db *sqlx.DB
}

// NewSolutionRepository constructs the repository.
func NewSolutionRepository(db *sqlx.DB) *SolutionRepository {
	return &SolutionRepository{db: db}
}

func (r *SolutionRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

type assignmentRow struct {
	TimetableID   int64 `db:"timetable_id"`
	RequirementID int64 `db:"requirement_id"`
	TeacherID     int64 `db:"teacher_id"`
	ClassID       int64 `db:"class_id"`
	RoomID        int64 `db:"room_id"`
	DayOfWeek     int   `db:"day_of_week"`
	StartMin      int   `db:"start_min"`
	EndMin        int   `db:"end_min"`
}

// Replace swaps the stored solution of a timetable for the given set.
// Callers pass a transaction so the delete and the inserts land together.
func (r *SolutionRepository) Replace(ctx context.Context, exec sqlx.ExtContext, timetableID int64, assignments []models.Assignment) error {
	target := r.exec(exec)

	if _, err := target.ExecContext(ctx, `DELETE FROM timetable_assignments WHERE timetable_id = $1`, timetableID); err != nil {
		return fmt.Errorf("clear assignments for timetable %d: %w", timetableID, err)
	}

	const query = `
INSERT INTO timetable_assignments (timetable_id, requirement_id, teacher_id, class_id, room_id, day_of_week, start_min, end_min)
VALUES (:timetable_id, :requirement_id, :teacher_id, :class_id, :room_id, :day_of_week, :start_min, :end_min)`

	for _, a := range assignments {
		row := assignmentRow{
			TimetableID:   timetableID,
			RequirementID: a.RequirementID,
			TeacherID:     a.TeacherID,
			ClassID:       a.ClassID,
			RoomID:        a.RoomID,
			DayOfWeek:     a.Slot.Day,
			StartMin:      a.Slot.Start,
			EndMin:        a.Slot.End,
		}
		if _, err := sqlx.NamedExecContext(ctx, target, query, row); err != nil {
			return fmt.Errorf("insert assignment for requirement %d: %w", a.RequirementID, err)
		}
	}
	return nil
}

// ListByTimetable returns the stored solution ordered by day and start.
func (r *SolutionRepository) ListByTimetable(ctx context.Context, timetableID int64) ([]models.Assignment, error) {
	const query = `SELECT timetable_id, requirement_id, teacher_id, class_id, room_id, day_of_week, start_min, end_min
FROM timetable_assignments WHERE timetable_id = $1 ORDER BY day_of_week ASC, start_min ASC, requirement_id ASC`

	var rows []assignmentRow
	if err := r.db.SelectContext(ctx, &rows, query, timetableID); err != nil {
		return nil, fmt.Errorf("list assignments for timetable %d: %w", timetableID, err)
	}

	assignments := make([]models.Assignment, 0, len(rows))
	for _, row := range rows {
		slot, err := models.NewTimeSlot(row.DayOfWeek, row.StartMin, row.EndMin)
		if err != nil {
			return nil, fmt.Errorf("stored assignment for requirement %d: %w", row.RequirementID, err)
		}
		assignments = append(assignments, models.Assignment{
			RequirementID: row.RequirementID,
			TeacherID:     row.TeacherID,
			ClassID:       row.ClassID,
			RoomID:        row.RoomID,
			Slot:          slot,
		})
	}
	return assignments, nil
}
