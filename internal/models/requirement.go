package models

import (
	"fmt"

	appErrors "github.com/edtia/edtia-api/pkg/errors"
)

// SlotPreference expresses a wanted or avoided window for a requirement.
// Hard preferences prune the search space; soft ones only affect the
// objective through Weight.
type SlotPreference struct {
	Window TimeSlot `json:"window"`
	Avoid  bool     `json:"avoid"`
	Hard   bool     `json:"hard"`
	Weight float64  `json:"weight"`
}

// CourseRequirement is the unit of demand handed to the solver: a subject
// taught by a teacher to a class for a weekly amount of time, split into
// sessions of SessionMinutes each. The solver never mutates it.
type CourseRequirement struct {
	ID             int64            `db:"id" json:"id"`
	SubjectID      int64            `db:"subject_id" json:"subjectId"`
	ClassID        int64            `db:"class_id" json:"classId"`
	TeacherID      int64            `db:"teacher_id" json:"teacherId"`
	ClassSize      int              `db:"class_size" json:"classSize"`
	WeeklyMinutes  int              `db:"weekly_minutes" json:"weeklyMinutes"`
	SessionMinutes int              `db:"session_minutes" json:"sessionMinutes"`
	RoomType       RoomType         `db:"room_type" json:"roomType"`
	Preferences    []SlotPreference `db:"-" json:"preferences,omitempty"`
}

// Sessions returns how many assignments are needed to satisfy the weekly
// duration. Partial remainders round up to a full session.
func (r CourseRequirement) Sessions() int {
	if r.SessionMinutes <= 0 {
		return 0
	}
	return (r.WeeklyMinutes + r.SessionMinutes - 1) / r.SessionMinutes
}

// Validate rejects malformed demand before any search starts.
func (r CourseRequirement) Validate() error {
	if r.ID == 0 {
		return appErrors.Clone(appErrors.ErrValidation, "requirement id is required")
	}
	if r.TeacherID == 0 || r.ClassID == 0 {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("requirement %d must reference a teacher and a class", r.ID))
	}
	if r.WeeklyMinutes <= 0 {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("requirement %d weekly minutes must be positive", r.ID))
	}
	if r.SessionMinutes <= 0 || r.SessionMinutes > MinutesPerDay {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("requirement %d session minutes out of range", r.ID))
	}
	return nil
}
