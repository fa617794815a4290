package models

// ConstraintKind scopes a configured constraint to a resource family.
type ConstraintKind string

const (
	ConstraintTeacher ConstraintKind = "teacher"
	ConstraintRoom    ConstraintKind = "room"
	ConstraintClass   ConstraintKind = "class"
	ConstraintSubject ConstraintKind = "subject"
	ConstraintGlobal  ConstraintKind = "global"
)

// PriorityCritical marks a constraint as hard: it must hold in any accepted
// solution. Lower priorities are soft and only contribute penalties.
const PriorityCritical = 5

// Constraint is an establishment-configured scheduling rule in typed form:
// the target resource must not be scheduled inside any of the windows.
// Read-only to the solver for the whole run.
type Constraint struct {
	ID       int64          `db:"id" json:"id"`
	Name     string         `db:"name" json:"name"`
	Kind     ConstraintKind `db:"kind" json:"kind"`
	Priority int            `db:"priority" json:"priority"`
	Weight   float64        `db:"weight" json:"weight"`
	TargetID int64          `db:"target_id" json:"targetId"`
	Windows  []TimeSlot     `db:"-" json:"windows"`
}

// Hard reports whether the constraint prunes search branches.
func (c Constraint) Hard() bool {
	return c.Priority >= PriorityCritical
}
