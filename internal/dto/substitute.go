package dto

import "github.com/edtia/edtia-api/internal/models"

// RankSubstitutesRequest ranks replacement candidates for an absence. When
// Pool is empty the candidate pool is loaded from storage. Refresh bypasses
// the cached shortlist.
type RankSubstitutesRequest struct {
	Absence models.Absence               `json:"absence" validate:"required"`
	Pool    []models.SubstituteCandidate `json:"pool"`
	Refresh bool                         `json:"refresh"`
}

// SubstituteShortlistResponse is the ranked shortlist for one absence.
type SubstituteShortlistResponse struct {
	AbsenceID int64               `json:"absenceId"`
	Scores    []models.MatchScore `json:"scores"`
	Cached    bool                `json:"cached"`
}
