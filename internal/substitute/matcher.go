// Package substitute ranks replacement candidates for a declared teacher
// absence. Ranking is a pure function over the absence and the candidate
// pool: no I/O, no caching, safe to call concurrently.
package substitute

import (
	"sort"

	"github.com/samber/lo"

	"github.com/edtia/edtia-api/internal/models"
)

// Weights of the four fitness dimensions. They sum to 1 so the total stays
// in [0,1].
const (
	weightCompetence   = 0.4
	weightAvailability = 0.3
	weightGeography    = 0.2
	weightExperience   = 0.1
)

// ShortlistSize caps the ranked output.
const ShortlistSize = 10

// Rank scores every candidate against the absence and returns at most
// ShortlistSize results, best first. Candidates with zero competence or
// zero availability are excluded before ranking: a zero-fit candidate is
// never proposed. Ties break on higher experience, then lower teacher id,
// so the ranking is deterministic.
func Rank(absence models.Absence, pool []models.SubstituteCandidate) ([]models.MatchScore, error) {
	if err := absence.Validate(); err != nil {
		return nil, err
	}

	scores := lo.FilterMap(pool, func(c models.SubstituteCandidate, _ int) (models.MatchScore, bool) {
		score := Score(absence, c)
		if score.Competence == 0 || score.Availability == 0 {
			return models.MatchScore{}, false
		}
		return score, true
	})

	sort.SliceStable(scores, func(i, j int) bool {
		if scores[i].Total != scores[j].Total {
			return scores[i].Total > scores[j].Total
		}
		if scores[i].Experience != scores[j].Experience {
			return scores[i].Experience > scores[j].Experience
		}
		return scores[i].TeacherID < scores[j].TeacherID
	})

	if len(scores) > ShortlistSize {
		scores = scores[:ShortlistSize]
	}
	return scores, nil
}

// Score computes the four normalized sub-scores and their weighted total
// for one candidate. Exposed so callers can explain a ranking.
func Score(absence models.Absence, c models.SubstituteCandidate) models.MatchScore {
	competence := competenceScore(absence.RequiredSubjects, c.Subjects)
	availability := availabilityScore(absence, c)
	geography := geographyScore(c.DistanceKm, c.MaxTravelKm)
	experience := experienceScore(c.ExperienceYears, c.Rating)

	return models.MatchScore{
		TeacherID:    c.TeacherID,
		Competence:   competence,
		Availability: availability,
		Geography:    geography,
		Experience:   experience,
		Total: weightCompetence*competence +
			weightAvailability*availability +
			weightGeography*geography +
			weightExperience*experience,
	}
}

// competenceScore is the fraction of required subjects the candidate
// teaches. No required subjects means no demonstrable competence.
func competenceScore(required, taught []int64) float64 {
	if len(required) == 0 {
		return 0
	}
	matched := len(lo.Intersect(required, taught))
	return float64(matched) / float64(len(required))
}

// availabilityScore is the fraction of absence days the candidate's
// declared calendar covers, honouring the optional intra-day window.
func availabilityScore(absence models.Absence, c models.SubstituteCandidate) float64 {
	days := absence.Days()
	if days <= 0 {
		return 0
	}
	covered := 0
	for d := 0; d < days; d++ {
		date := absence.From.AddDate(0, 0, d)
		if c.AvailableOn(date, absence.StartMin, absence.EndMin) {
			covered++
		}
	}
	return float64(covered) / float64(days)
}

func geographyScore(distanceKm, maxTravelKm float64) float64 {
	if maxTravelKm <= 0 {
		if distanceKm > 0 {
			return 0
		}
		return 1
	}
	score := 1 - distanceKm/maxTravelKm
	if score < 0 {
		return 0
	}
	return score
}

// experienceScore averages tenure (capped at ten years) and the historical
// rating on its five-point scale.
func experienceScore(years, rating float64) float64 {
	tenure := years / 10
	if tenure > 1 {
		tenure = 1
	}
	if tenure < 0 {
		tenure = 0
	}
	rated := rating / 5
	if rated > 1 {
		rated = 1
	}
	if rated < 0 {
		rated = 0
	}
	return (tenure + rated) / 2
}
