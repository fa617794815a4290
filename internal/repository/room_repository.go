package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/edtia/edtia-api/internal/models"
)

// RoomRepository exposes the room pool of an establishment.
type RoomRepository struct {
	db *sqlx.DB
}

// NewRoomRepository constructs the repository.
func NewRoomRepository(db *sqlx.DB) *RoomRepository {
	return &RoomRepository{db: db}
}

// ListByTimetable returns the usable rooms of the establishment owning the
// timetable, ordered by id.
func (r *RoomRepository) ListByTimetable(ctx context.Context, timetableID int64) ([]models.Room, error) {
	const query = `SELECT r.id, r.name, r.room_type, r.capacity
FROM rooms r
JOIN timetables t ON t.establishment_id = r.establishment_id
WHERE t.id = $1 AND r.usable = TRUE
ORDER BY r.id ASC`

	var rooms []models.Room
	if err := r.db.SelectContext(ctx, &rooms, query, timetableID); err != nil {
		return nil, fmt.Errorf("list rooms for timetable %d: %w", timetableID, err)
	}
	return rooms, nil
}
