package models

import (
	"fmt"

	appErrors "github.com/edtia/edtia-api/pkg/errors"
)

// MinutesPerDay bounds the start/end fields of a TimeSlot.
const MinutesPerDay = 24 * 60

// TimeSlot is an immutable weekly slot: a day of week (1 = Monday .. 7 =
// Sunday) and a [Start, End) window in minutes since midnight.
type TimeSlot struct {
	Day   int `db:"day_of_week" json:"dayOfWeek"`
	Start int `db:"start_min" json:"startMin"`
	End   int `db:"end_min" json:"endMin"`
}

// NewTimeSlot validates the window at construction so that downstream
// components stay total over well-formed values.
func NewTimeSlot(day, start, end int) (TimeSlot, error) {
	if day < 1 || day > 7 {
		return TimeSlot{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("day of week %d out of range 1-7", day))
	}
	if start < 0 || end > MinutesPerDay {
		return TimeSlot{}, appErrors.Clone(appErrors.ErrValidation, "slot times must fall within a single day")
	}
	if start >= end {
		return TimeSlot{}, appErrors.Clone(appErrors.ErrValidation, "slot start must precede its end")
	}
	return TimeSlot{Day: day, Start: start, End: end}, nil
}

// Overlaps reports strict interval overlap on the same day. Back-to-back
// slots (End == other.Start) do not overlap.
func (s TimeSlot) Overlaps(other TimeSlot) bool {
	return s.Day == other.Day && s.Start < other.End && other.Start < s.End
}

// Contains reports whether the window fully covers other on the same day.
func (s TimeSlot) Contains(other TimeSlot) bool {
	return s.Day == other.Day && s.Start <= other.Start && other.End <= s.End
}

// Minutes returns the slot duration.
func (s TimeSlot) Minutes() int {
	return s.End - s.Start
}

func (s TimeSlot) String() string {
	return fmt.Sprintf("day %d %02d:%02d-%02d:%02d", s.Day, s.Start/60, s.Start%60, s.End/60, s.End%60)
}
