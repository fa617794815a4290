package dto

import "github.com/edtia/edtia-api/internal/models"

// DetectConflictsRequest audits an inline assignment snapshot, e.g. after a
// manual edit that has not been persisted yet.
type DetectConflictsRequest struct {
	TimetableID int64               `json:"timetableId"`
	Assignments []models.Assignment `json:"assignments" validate:"required,min=1"`
}

// ConflictListResponse returns detected clashes, worst first.
type ConflictListResponse struct {
	TimetableID int64                   `json:"timetableId,omitempty"`
	Conflicts   []models.ConflictRecord `json:"conflicts"`
	Count       int                     `json:"count"`
}
