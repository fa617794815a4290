package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/edtia/edtia-api/internal/models"
)

// ConstraintRepository loads the establishment-configured scheduling rules.
type ConstraintRepository struct {
	db *sqlx.DB
}

// NewConstraintRepository constructs the repository.
func NewConstraintRepository(db *sqlx.DB) *ConstraintRepository {
	return &ConstraintRepository{db: db}
}

type constraintRow struct {
	ID       int64          `db:"id"`
	Name     string         `db:"name"`
	Kind     string         `db:"kind"`
	Priority int            `db:"priority"`
	Weight   float64        `db:"weight"`
	TargetID int64          `db:"target_id"`
	Windows  types.JSONText `db:"windows"`
}

// ListByTimetable returns active constraints for the establishment owning
// the timetable, highest priority first.
func (r *ConstraintRepository) ListByTimetable(ctx context.Context, timetableID int64) ([]models.Constraint, error) {
	const query = `SELECT c.id, c.name, c.kind, c.priority, c.weight, c.target_id, c.windows
FROM scheduling_constraints c
JOIN timetables t ON t.establishment_id = c.establishment_id
WHERE t.id = $1 AND c.active = TRUE
ORDER BY c.priority DESC, c.id ASC`

	var rows []constraintRow
	if err := r.db.SelectContext(ctx, &rows, query, timetableID); err != nil {
		return nil, fmt.Errorf("list constraints for timetable %d: %w", timetableID, err)
	}

	constraints := make([]models.Constraint, 0, len(rows))
	for _, row := range rows {
		c := models.Constraint{
			ID:       row.ID,
			Name:     row.Name,
			Kind:     models.ConstraintKind(row.Kind),
			Priority: row.Priority,
			Weight:   row.Weight,
			TargetID: row.TargetID,
		}
		if len(row.Windows) > 0 {
			if err := json.Unmarshal(row.Windows, &c.Windows); err != nil {
				return nil, fmt.Errorf("decode windows for constraint %d: %w", row.ID, err)
			}
		}
		constraints = append(constraints, c)
	}
	return constraints, nil
}
