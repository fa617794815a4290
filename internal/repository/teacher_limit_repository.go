package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/edtia/edtia-api/internal/models"
)

// TeacherLimitRepository loads per-teacher hour ceilings.
type TeacherLimitRepository struct {
	db *sqlx.DB
}

// NewTeacherLimitRepository constructs the repository.
func NewTeacherLimitRepository(db *sqlx.DB) *TeacherLimitRepository {
	return &TeacherLimitRepository{db: db}
}

// ListByTimetable returns the hour ceilings declared for teachers at the
// timetable's establishment. Teachers without a row are unlimited.
func (r *TeacherLimitRepository) ListByTimetable(ctx context.Context, timetableID int64) ([]models.TeacherLimits, error) {
	const query = `
SELECT l.teacher_id, l.max_daily_minutes, l.max_week_minutes
FROM teacher_limits l
JOIN timetables t ON t.establishment_id = l.establishment_id
WHERE t.id = $1
ORDER BY l.teacher_id`

	var limits []models.TeacherLimits
	if err := r.db.SelectContext(ctx, &limits, query, timetableID); err != nil {
		return nil, fmt.Errorf("list teacher limits for timetable %d: %w", timetableID, err)
	}
	return limits, nil
}
