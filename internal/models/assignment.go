package models

// Assignment binds one session of a course requirement to a slot and a room.
// Teacher and class ids are denormalised so a solution snapshot is
// self-contained for indexing and conflict detection.
type Assignment struct {
	RequirementID int64    `json:"requirementId"`
	TeacherID     int64    `json:"teacherId"`
	ClassID       int64    `json:"classId"`
	RoomID        int64    `json:"roomId"`
	Slot          TimeSlot `json:"slot"`
}

// Resource returns the id owning the assignment for the given kind.
func (a Assignment) Resource(kind ResourceKind) int64 {
	switch kind {
	case ResourceTeacher:
		return a.TeacherID
	case ResourceRoom:
		return a.RoomID
	case ResourceClass:
		return a.ClassID
	}
	return 0
}

// Solution is a complete assignment set for one timetable.
type Solution struct {
	TimetableID int64        `json:"timetableId"`
	Assignments []Assignment `json:"assignments"`
}
