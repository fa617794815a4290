package models

// EstablishmentHours captures the scheduling window of a school: opening
// hours, lunch exclusion and open days. Minutes since midnight, matching
// TimeSlot.
type EstablishmentHours struct {
	DayStart   int   `json:"dayStartMin"`
	DayEnd     int   `json:"dayEndMin"`
	LunchStart int   `json:"lunchStartMin"`
	LunchEnd   int   `json:"lunchEndMin"`
	OpenDays   []int `json:"openDays"`
}

// DefaultEstablishmentHours mirrors the common configuration: 08:00-17:00,
// lunch 12:00-13:00, Monday through Friday.
func DefaultEstablishmentHours() EstablishmentHours {
	return EstablishmentHours{
		DayStart:   8 * 60,
		DayEnd:     17 * 60,
		LunchStart: 12 * 60,
		LunchEnd:   13 * 60,
		OpenDays:   []int{1, 2, 3, 4, 5},
	}
}

// OpenOn reports whether the establishment operates on the given day.
func (h EstablishmentHours) OpenOn(day int) bool {
	for _, d := range h.OpenDays {
		if d == day {
			return true
		}
	}
	return false
}

// Admits reports whether a slot fits inside opening hours and avoids the
// lunch window.
func (h EstablishmentHours) Admits(slot TimeSlot) bool {
	if !h.OpenOn(slot.Day) {
		return false
	}
	if slot.Start < h.DayStart || slot.End > h.DayEnd {
		return false
	}
	if h.LunchEnd > h.LunchStart && slot.Start < h.LunchEnd && h.LunchStart < slot.End {
		return false
	}
	return true
}

// TeacherLimits caps a teacher's assigned minutes. Zero means unlimited.
type TeacherLimits struct {
	TeacherID       int64 `db:"teacher_id" json:"teacherId"`
	MaxDailyMinutes int   `db:"max_daily_minutes" json:"maxDailyMinutes"`
	MaxWeekMinutes  int   `db:"max_week_minutes" json:"maxWeekMinutes"`
}
