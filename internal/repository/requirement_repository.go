package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/edtia/edtia-api/internal/models"
)

// CourseRequirementRepository loads the weekly demand attached to a
// timetable draft.
type CourseRequirementRepository struct {
	db *sqlx.DB
}

// NewCourseRequirementRepository constructs the repository.
func NewCourseRequirementRepository(db *sqlx.DB) *CourseRequirementRepository {
	return &CourseRequirementRepository{db: db}
}

type requirementRow struct {
	ID             int64          `db:"id"`
	SubjectID      int64          `db:"subject_id"`
	ClassID        int64          `db:"class_id"`
	TeacherID      int64          `db:"teacher_id"`
	ClassSize      int            `db:"class_size"`
	WeeklyMinutes  int            `db:"weekly_minutes"`
	SessionMinutes int            `db:"session_minutes"`
	RoomType       string         `db:"room_type"`
	Preferences    types.JSONText `db:"preferences"`
}

// ListByTimetable returns the requirements of a timetable ordered by id.
func (r *CourseRequirementRepository) ListByTimetable(ctx context.Context, timetableID int64) ([]models.CourseRequirement, error) {
	const query = `SELECT id, subject_id, class_id, teacher_id, class_size, weekly_minutes, session_minutes, room_type, preferences
FROM course_requirements WHERE timetable_id = $1 ORDER BY id ASC`

	var rows []requirementRow
	if err := r.db.SelectContext(ctx, &rows, query, timetableID); err != nil {
		return nil, fmt.Errorf("list course requirements: %w", err)
	}

	requirements := make([]models.CourseRequirement, 0, len(rows))
	for _, row := range rows {
		req := models.CourseRequirement{
			ID:             row.ID,
			SubjectID:      row.SubjectID,
			ClassID:        row.ClassID,
			TeacherID:      row.TeacherID,
			ClassSize:      row.ClassSize,
			WeeklyMinutes:  row.WeeklyMinutes,
			SessionMinutes: row.SessionMinutes,
			RoomType:       models.RoomType(row.RoomType),
		}
		if len(row.Preferences) > 0 {
			if err := json.Unmarshal(row.Preferences, &req.Preferences); err != nil {
				return nil, fmt.Errorf("decode preferences for requirement %d: %w", row.ID, err)
			}
		}
		requirements = append(requirements, req)
	}
	return requirements, nil
}
