package constraint

import (
	"sort"

	"github.com/edtia/edtia-api/internal/models"
)

// Rule names double as infeasibility evidence, so they are stable
// identifiers rather than prose.
const (
	RuleTeacherClash   = "teacher_double_booking"
	RuleRoomClash      = "room_double_booking"
	RuleClassClash     = "class_double_booking"
	RuleRoomCapacity   = "room_capacity"
	RuleRoomType       = "room_type_match"
	RuleTeacherCeiling = "teacher_hour_ceiling"
	RuleOpeningHours   = "opening_hours"
	RuleHardWindow     = "hard_unavailability_window"
	RuleHardPreference = "hard_slot_preference"
)

// --- Hard rules ---

type noTeacherClash struct{}

func (noTeacherClash) Name() string { return RuleTeacherClash }

func (noTeacherClash) Allows(p Placement) bool {
	return !p.Index.HasOverlap(models.ResourceTeacher, p.Requirement.TeacherID, p.Slot.Day, p.Slot.Start, p.Slot.End)
}

type noRoomClash struct{}

func (noRoomClash) Name() string { return RuleRoomClash }

func (noRoomClash) Allows(p Placement) bool {
	return !p.Index.HasOverlap(models.ResourceRoom, p.Room.ID, p.Slot.Day, p.Slot.Start, p.Slot.End)
}

type noClassClash struct{}

func (noClassClash) Name() string { return RuleClassClash }

func (noClassClash) Allows(p Placement) bool {
	return !p.Index.HasOverlap(models.ResourceClass, p.Requirement.ClassID, p.Slot.Day, p.Slot.Start, p.Slot.End)
}

type roomCapacity struct{}

func (roomCapacity) Name() string { return RuleRoomCapacity }

func (roomCapacity) Allows(p Placement) bool {
	return p.Room.Capacity >= p.Requirement.ClassSize
}

type roomTypeMatch struct{}

func (roomTypeMatch) Name() string { return RuleRoomType }

func (roomTypeMatch) Allows(p Placement) bool {
	if p.Requirement.RoomType == "" {
		return true
	}
	return p.Room.Type == p.Requirement.RoomType
}

type teacherHourCeiling struct {
	limits map[int64]models.TeacherLimits
}

func (teacherHourCeiling) Name() string { return RuleTeacherCeiling }

func (r teacherHourCeiling) Allows(p Placement) bool {
	limit, ok := r.limits[p.Requirement.TeacherID]
	if !ok {
		return true
	}
	minutes := p.Slot.Minutes()
	if limit.MaxDailyMinutes > 0 && p.Loads.Daily(p.Requirement.TeacherID, p.Slot.Day)+minutes > limit.MaxDailyMinutes {
		return false
	}
	if limit.MaxWeekMinutes > 0 && p.Loads.Weekly(p.Requirement.TeacherID)+minutes > limit.MaxWeekMinutes {
		return false
	}
	return true
}

type openingHours struct {
	hours models.EstablishmentHours
}

func (openingHours) Name() string { return RuleOpeningHours }

func (r openingHours) Allows(p Placement) bool {
	return r.hours.Admits(p.Slot)
}

type hardWindowExclusion struct {
	constraints []models.Constraint
}

func (hardWindowExclusion) Name() string { return RuleHardWindow }

func (r hardWindowExclusion) Allows(p Placement) bool {
	for _, c := range r.constraints {
		if !constraintTargets(c, p) {
			continue
		}
		for _, window := range c.Windows {
			if window.Overlaps(p.Slot) {
				return false
			}
		}
	}
	return true
}

type hardPreference struct{}

func (hardPreference) Name() string { return RuleHardPreference }

// Hard avoid-preferences forbid overlapping windows; hard positive
// preferences require the slot to fall inside one of them.
func (hardPreference) Allows(p Placement) bool {
	hasPositive := false
	insidePositive := false
	for _, pref := range p.Requirement.Preferences {
		if !pref.Hard {
			continue
		}
		if pref.Avoid {
			if pref.Window.Overlaps(p.Slot) {
				return false
			}
			continue
		}
		hasPositive = true
		if pref.Window.Contains(p.Slot) {
			insidePositive = true
		}
	}
	return !hasPositive || insidePositive
}

func constraintTargets(c models.Constraint, p Placement) bool {
	switch c.Kind {
	case models.ConstraintTeacher:
		return c.TargetID == 0 || c.TargetID == p.Requirement.TeacherID
	case models.ConstraintRoom:
		return c.TargetID == 0 || c.TargetID == p.Room.ID
	case models.ConstraintClass:
		return c.TargetID == 0 || c.TargetID == p.Requirement.ClassID
	case models.ConstraintSubject:
		return c.TargetID == 0 || c.TargetID == p.Requirement.SubjectID
	case models.ConstraintGlobal:
		return true
	}
	return false
}

// --- Soft rules ---

type preferenceAffinity struct {
	weight float64
}

func (preferenceAffinity) Name() string { return "slot_preference_affinity" }

func (r preferenceAffinity) Weight() float64 { return r.weight }

// Satisfied positive preferences earn a bonus (negative penalty); violated
// avoid-preferences cost their weight.
func (r preferenceAffinity) Penalty(assignments []models.Assignment, env Environment) float64 {
	var total float64
	for _, a := range assignments {
		req, ok := env.Requirements[a.RequirementID]
		if !ok {
			continue
		}
		for _, pref := range req.Preferences {
			if pref.Hard {
				continue
			}
			weight := pref.Weight
			if weight <= 0 {
				weight = r.weight
			}
			if pref.Avoid {
				if pref.Window.Overlaps(a.Slot) {
					total += weight
				}
			} else if pref.Window.Contains(a.Slot) {
				total -= weight
			}
		}
	}
	return total
}

type softWindowExclusion struct {
	weight      float64
	constraints []models.Constraint
}

func (softWindowExclusion) Name() string { return "soft_unavailability_window" }

func (r softWindowExclusion) Weight() float64 { return r.weight }

func (r softWindowExclusion) Penalty(assignments []models.Assignment, env Environment) float64 {
	var total float64
	for _, c := range r.constraints {
		weight := c.Weight
		if weight <= 0 {
			weight = r.weight
		}
		for _, a := range assignments {
			req, ok := env.Requirements[a.RequirementID]
			if !ok {
				continue
			}
			p := Placement{Requirement: req, Room: models.Room{ID: a.RoomID}, Slot: a.Slot}
			if !constraintTargets(c, p) {
				continue
			}
			for _, window := range c.Windows {
				if window.Overlaps(a.Slot) {
					total += weight
					break
				}
			}
		}
	}
	return total
}

type balancedDailyLoad struct {
	weight float64
}

func (balancedDailyLoad) Name() string { return "balanced_daily_load" }

func (r balancedDailyLoad) Weight() float64 { return r.weight }

// Penalises uneven per-day load for each class: the spread between its
// heaviest and lightest taught day, in hours. Days without lessons do not
// count, so a compact single-day schedule scores zero.
func (r balancedDailyLoad) Penalty(assignments []models.Assignment, env Environment) float64 {
	perClassDay := make(map[int64]map[int]int)
	for _, a := range assignments {
		if perClassDay[a.ClassID] == nil {
			perClassDay[a.ClassID] = make(map[int]int)
		}
		perClassDay[a.ClassID][a.Slot.Day] += a.Slot.Minutes()
	}

	classIDs := make([]int64, 0, len(perClassDay))
	for id := range perClassDay {
		classIDs = append(classIDs, id)
	}
	sort.Slice(classIDs, func(i, j int) bool { return classIDs[i] < classIDs[j] })

	var total float64
	for _, classID := range classIDs {
		minLoad, maxLoad := -1, 0
		for _, load := range perClassDay[classID] {
			if load > maxLoad {
				maxLoad = load
			}
			if minLoad < 0 || load < minLoad {
				minLoad = load
			}
		}
		if minLoad < 0 {
			minLoad = 0
		}
		total += r.weight * float64(maxLoad-minLoad) / 60.0
	}
	return total
}

type dayEndGaps struct {
	weight float64
}

func (dayEndGaps) Name() string { return "day_end_gaps" }

func (r dayEndGaps) Weight() float64 { return r.weight }

// Penalises idle gaps between consecutive lessons of a class on the same
// day, in hours. The lunch window is not counted as a gap.
func (r dayEndGaps) Penalty(assignments []models.Assignment, env Environment) float64 {
	type classDay struct {
		classID int64
		day     int
	}
	grouped := make(map[classDay][]models.Assignment)
	keys := make([]classDay, 0)
	for _, a := range assignments {
		key := classDay{a.ClassID, a.Slot.Day}
		if _, seen := grouped[key]; !seen {
			keys = append(keys, key)
		}
		grouped[key] = append(grouped[key], a)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].classID != keys[j].classID {
			return keys[i].classID < keys[j].classID
		}
		return keys[i].day < keys[j].day
	})

	lunch := env.Hours.LunchEnd - env.Hours.LunchStart
	var total float64
	for _, key := range keys {
		group := grouped[key]
		sort.Slice(group, func(i, j int) bool { return group[i].Slot.Start < group[j].Slot.Start })
		for i := 1; i < len(group); i++ {
			gap := group[i].Slot.Start - group[i-1].Slot.End
			if gap <= 0 {
				continue
			}
			if lunch > 0 && group[i-1].Slot.End <= env.Hours.LunchStart && group[i].Slot.Start >= env.Hours.LunchEnd {
				gap -= lunch
			}
			if gap > 0 {
				total += r.weight * float64(gap) / 60.0
			}
		}
	}
	return total
}
