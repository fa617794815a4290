package models

import (
	"time"

	appErrors "github.com/edtia/edtia-api/pkg/errors"
)

// AbsenceType mirrors the declared reason categories.
type AbsenceType string

const (
	AbsenceSickness  AbsenceType = "sickness"
	AbsenceTraining  AbsenceType = "training"
	AbsenceLeave     AbsenceType = "leave"
	AbsenceMaternity AbsenceType = "maternity"
	AbsencePaternity AbsenceType = "paternity"
	AbsenceFamily    AbsenceType = "family"
	AbsenceOther     AbsenceType = "other"
)

// AbsenceStatus tracks the workflow state of a declared absence.
type AbsenceStatus string

const (
	AbsenceDeclared  AbsenceStatus = "declared"
	AbsenceValidated AbsenceStatus = "validated"
	AbsenceCovered   AbsenceStatus = "covered"
	AbsenceCancelled AbsenceStatus = "cancelled"
)

// Absence describes a teacher's unavailability over a date range, with an
// optional intra-day time window (minutes since midnight).
type Absence struct {
	ID               int64         `db:"id" json:"id"`
	TeacherID        int64         `db:"teacher_id" json:"teacherId"`
	Type             AbsenceType   `db:"absence_type" json:"type"`
	Status           AbsenceStatus `db:"status" json:"status"`
	From             time.Time     `db:"date_from" json:"from"`
	To               time.Time     `db:"date_to" json:"to"`
	StartMin         *int          `db:"start_min" json:"startMin,omitempty"`
	EndMin           *int          `db:"end_min" json:"endMin,omitempty"`
	RequiredSubjects []int64       `db:"-" json:"requiredSubjects"`
}

// Validate rejects malformed absences before any ranking starts.
func (a Absence) Validate() error {
	if a.TeacherID == 0 {
		return appErrors.Clone(appErrors.ErrValidation, "absence must reference a teacher")
	}
	if a.To.Before(a.From) {
		return appErrors.Clone(appErrors.ErrValidation, "absence end date precedes its start date")
	}
	if a.StartMin != nil && a.EndMin != nil && *a.StartMin >= *a.EndMin {
		return appErrors.Clone(appErrors.ErrValidation, "absence time window start must precede its end")
	}
	return nil
}

// Days returns the inclusive day count of the absence.
func (a Absence) Days() int {
	return int(a.To.Sub(a.From).Hours()/24) + 1
}
