package constraint

// TeacherLoads accumulates assigned minutes per teacher, per day and per
// week, so hour-ceiling checks stay O(1) during search. Owned by a single
// solver branch; never shared across branches.
type TeacherLoads struct {
	daily  map[loadKey]int
	weekly map[int64]int
}

type loadKey struct {
	teacherID int64
	day       int
}

// NewTeacherLoads returns an empty load tracker.
func NewTeacherLoads() *TeacherLoads {
	return &TeacherLoads{
		daily:  make(map[loadKey]int),
		weekly: make(map[int64]int),
	}
}

// Add records minutes for the teacher on the given day.
func (l *TeacherLoads) Add(teacherID int64, day, minutes int) {
	l.daily[loadKey{teacherID, day}] += minutes
	l.weekly[teacherID] += minutes
}

// Remove reverses a previous Add.
func (l *TeacherLoads) Remove(teacherID int64, day, minutes int) {
	key := loadKey{teacherID, day}
	if l.daily[key] >= minutes {
		l.daily[key] -= minutes
	}
	if l.weekly[teacherID] >= minutes {
		l.weekly[teacherID] -= minutes
	}
}

// Daily returns accumulated minutes for the teacher on the day.
func (l *TeacherLoads) Daily(teacherID int64, day int) int {
	return l.daily[loadKey{teacherID, day}]
}

// Weekly returns accumulated minutes for the teacher over the week.
func (l *TeacherLoads) Weekly(teacherID int64) int {
	return l.weekly[teacherID]
}
