package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/edtia/edtia-api/internal/models"
)

// SubstituteRepository loads the substitute candidate pool.
type SubstituteRepository struct {
	db *sqlx.DB
}

// NewSubstituteRepository constructs the repository.
func NewSubstituteRepository(db *sqlx.DB) *SubstituteRepository {
	return &SubstituteRepository{db: db}
}

type substituteRow struct {
	TeacherID       int64          `db:"teacher_id"`
	Subjects        types.JSONText `db:"subjects"`
	Availability    types.JSONText `db:"availability"`
	AvailableFrom   time.Time      `db:"available_from"`
	AvailableTo     *time.Time     `db:"available_to"`
	DistanceKm      float64        `db:"distance_km"`
	MaxTravelKm     float64        `db:"max_travel_km"`
	Rating          float64        `db:"rating"`
	ExperienceYears float64        `db:"experience_years"`
	AbsenceRisk     *float64       `db:"absence_risk"`
}

// ListAvailable returns candidates whose declared period covers any part of
// the given date range, ordered by teacher id.
func (r *SubstituteRepository) ListAvailable(ctx context.Context, from, to time.Time) ([]models.SubstituteCandidate, error) {
	const query = `SELECT teacher_id, subjects, availability, available_from, available_to, distance_km, max_travel_km, rating, experience_years, absence_risk
FROM substitute_candidates
WHERE available_from <= $2 AND (available_to IS NULL OR available_to >= $1)
ORDER BY teacher_id ASC`

	var rows []substituteRow
	if err := r.db.SelectContext(ctx, &rows, query, from, to); err != nil {
		return nil, fmt.Errorf("list substitute candidates: %w", err)
	}

	pool := make([]models.SubstituteCandidate, 0, len(rows))
	for _, row := range rows {
		c := models.SubstituteCandidate{
			TeacherID:       row.TeacherID,
			AvailableFrom:   row.AvailableFrom,
			AvailableTo:     row.AvailableTo,
			DistanceKm:      row.DistanceKm,
			MaxTravelKm:     row.MaxTravelKm,
			Rating:          row.Rating,
			ExperienceYears: row.ExperienceYears,
			AbsenceRisk:     row.AbsenceRisk,
		}
		if len(row.Subjects) > 0 {
			if err := json.Unmarshal(row.Subjects, &c.Subjects); err != nil {
				return nil, fmt.Errorf("decode subjects for candidate %d: %w", row.TeacherID, err)
			}
		}
		if len(row.Availability) > 0 {
			if err := json.Unmarshal(row.Availability, &c.Availability); err != nil {
				return nil, fmt.Errorf("decode availability for candidate %d: %w", row.TeacherID, err)
			}
		}
		pool = append(pool, c)
	}
	return pool, nil
}
