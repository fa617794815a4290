package models

import "time"

// WeeklyAvailability maps day of week (1-7) to windows a substitute has
// declared free. Parsed and validated at ingestion, never inside scoring.
type WeeklyAvailability map[int][]TimeSlot

// Covers reports whether any declared window fully covers the given slot.
func (w WeeklyAvailability) Covers(slot TimeSlot) bool {
	for _, window := range w[slot.Day] {
		if window.Day == slot.Day && window.Start <= slot.Start && slot.End <= window.End {
			return true
		}
	}
	return false
}

// SubstituteCandidate is one member of the substitute pool considered for an
// absence. AbsenceRisk, when present, comes from the external predictor and
// is carried as an opaque advisory value only.
type SubstituteCandidate struct {
	TeacherID       int64              `db:"teacher_id" json:"teacherId"`
	Subjects        []int64            `db:"-" json:"subjects"`
	Availability    WeeklyAvailability `db:"-" json:"availability"`
	AvailableFrom   time.Time          `db:"available_from" json:"availableFrom"`
	AvailableTo     *time.Time         `db:"available_to" json:"availableTo,omitempty"`
	DistanceKm      float64            `db:"distance_km" json:"distanceKm"`
	MaxTravelKm     float64            `db:"max_travel_km" json:"maxTravelKm"`
	Rating          float64            `db:"rating" json:"rating"`
	ExperienceYears float64            `db:"experience_years" json:"experienceYears"`
	AbsenceRisk     *float64           `db:"absence_risk" json:"absenceRisk,omitempty"`
}

// AvailableOn reports availability for a calendar date, honouring the
// candidate's declared availability period and weekly calendar.
func (c SubstituteCandidate) AvailableOn(date time.Time, startMin, endMin *int) bool {
	if date.Before(c.AvailableFrom) {
		return false
	}
	if c.AvailableTo != nil && date.After(*c.AvailableTo) {
		return false
	}
	day := int(date.Weekday())
	if day == 0 {
		day = 7
	}
	windows := c.Availability[day]
	if len(windows) == 0 {
		return false
	}
	if startMin == nil || endMin == nil {
		return true
	}
	for _, window := range windows {
		if window.Start <= *startMin && *endMin <= window.End {
			return true
		}
	}
	return false
}

// MatchScore carries the per-dimension fitness of one candidate.
type MatchScore struct {
	TeacherID    int64   `json:"teacherId"`
	Competence   float64 `json:"competence"`
	Availability float64 `json:"availability"`
	Geography    float64 `json:"geography"`
	Experience   float64 `json:"experience"`
	Total        float64 `json:"total"`
}
