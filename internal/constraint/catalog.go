// Package constraint holds the typed, prioritized rule catalog evaluated
// against candidate assignment sets. Rules are pure functions over the data
// model and perform no I/O.
package constraint

import (
	"sort"

	"github.com/edtia/edtia-api/internal/interval"
	"github.com/edtia/edtia-api/internal/models"
)

// Placement is one candidate binding under evaluation by hard rules.
type Placement struct {
	Requirement models.CourseRequirement
	Room        models.Room
	Slot        models.TimeSlot
	Index       *interval.Index
	Loads       *TeacherLoads
}

// PlacementRule is a hard constraint: a violating placement prunes the
// search branch immediately.
type PlacementRule interface {
	Name() string
	Allows(p Placement) bool
}

// PenaltyRule is a soft constraint contributing weight-scaled penalties
// (or negative bonuses) to the objective.
type PenaltyRule interface {
	Name() string
	Weight() float64
	Penalty(assignments []models.Assignment, env Environment) float64
}

// Environment is the read-only context penalty rules evaluate against.
type Environment struct {
	Hours        models.EstablishmentHours
	Requirements map[int64]models.CourseRequirement
}

// Config assembles a catalog from establishment configuration.
type Config struct {
	Hours         models.EstablishmentHours
	Constraints   []models.Constraint
	TeacherLimits []models.TeacherLimits
	Requirements  []models.CourseRequirement

	// Weights for the built-in soft rules. Zero values fall back to
	// defaults.
	PreferenceWeight     float64
	UnavailabilityWeight float64
	BalanceWeight        float64
	GapWeight            float64
}

const (
	defaultPreferenceWeight     = 1.0
	defaultUnavailabilityWeight = 2.0
	defaultBalanceWeight        = 0.5
	defaultGapWeight            = 1.0
)

// Catalog is the full rule set for one solver run. Read-only once built and
// therefore safe to share across parallel branch evaluation.
type Catalog struct {
	hard       []PlacementRule
	soft       []PenaltyRule
	env        Environment
	prefWeight float64
}

// NewCatalog builds the built-in rules plus the configured establishment
// constraints. Priority 5 ("critical") constraints become hard rules,
// everything below contributes penalties.
func NewCatalog(cfg Config) *Catalog {
	if cfg.PreferenceWeight <= 0 {
		cfg.PreferenceWeight = defaultPreferenceWeight
	}
	if cfg.UnavailabilityWeight <= 0 {
		cfg.UnavailabilityWeight = defaultUnavailabilityWeight
	}
	if cfg.BalanceWeight <= 0 {
		cfg.BalanceWeight = defaultBalanceWeight
	}
	if cfg.GapWeight <= 0 {
		cfg.GapWeight = defaultGapWeight
	}
	if len(cfg.Hours.OpenDays) == 0 {
		cfg.Hours = models.DefaultEstablishmentHours()
	}

	limits := make(map[int64]models.TeacherLimits, len(cfg.TeacherLimits))
	for _, l := range cfg.TeacherLimits {
		limits[l.TeacherID] = l
	}

	var hardWindows, softWindows []models.Constraint
	for _, c := range cfg.Constraints {
		if c.Hard() {
			hardWindows = append(hardWindows, c)
		} else {
			softWindows = append(softWindows, c)
		}
	}

	requirements := make(map[int64]models.CourseRequirement, len(cfg.Requirements))
	for _, r := range cfg.Requirements {
		requirements[r.ID] = r
	}

	c := &Catalog{
		env:        Environment{Hours: cfg.Hours, Requirements: requirements},
		prefWeight: cfg.PreferenceWeight,
	}
	c.hard = []PlacementRule{
		noTeacherClash{},
		noRoomClash{},
		noClassClash{},
		roomCapacity{},
		roomTypeMatch{},
		teacherHourCeiling{limits: limits},
		openingHours{hours: cfg.Hours},
		hardWindowExclusion{constraints: hardWindows},
		hardPreference{},
	}
	c.soft = []PenaltyRule{
		preferenceAffinity{weight: cfg.PreferenceWeight},
		softWindowExclusion{weight: cfg.UnavailabilityWeight, constraints: softWindows},
		balancedDailyLoad{weight: cfg.BalanceWeight},
		dayEndGaps{weight: cfg.GapWeight},
	}
	return c
}

// Hard returns the hard rules in evaluation order.
func (c *Catalog) Hard() []PlacementRule {
	return c.hard
}

// Allows runs every hard rule against the placement, returning the name of
// the first rule that rejects it.
func (c *Catalog) Allows(p Placement) (bool, string) {
	for _, rule := range c.hard {
		if !rule.Allows(p) {
			return false, rule.Name()
		}
	}
	return true, ""
}

// Penalty evaluates all soft rules over the assignment set. Lower is
// better; satisfied preference bonuses may push the total negative.
func (c *Catalog) Penalty(assignments []models.Assignment) float64 {
	ordered := make([]models.Assignment, len(assignments))
	copy(ordered, assignments)
	sort.Slice(ordered, func(i, j int) bool {
		return assignmentLess(ordered[i], ordered[j])
	})

	var total float64
	for _, rule := range c.soft {
		total += rule.Penalty(ordered, c.env)
	}
	return total
}

// Env exposes the evaluation environment for the solver.
func (c *Catalog) Env() Environment {
	return c.env
}

// PenaltyFloor returns a lower bound on Penalty over any assignment set
// drawn from the configured requirements: every soft positive preference
// bonus earned and nothing else incurred. A solution scoring the floor is
// provably optimal.
func (c *Catalog) PenaltyFloor() float64 {
	ids := make([]int64, 0, len(c.env.Requirements))
	for id := range c.env.Requirements {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var floor float64
	for _, id := range ids {
		req := c.env.Requirements[id]
		var perSession float64
		for _, pref := range req.Preferences {
			if pref.Hard || pref.Avoid {
				continue
			}
			weight := pref.Weight
			if weight <= 0 {
				weight = c.prefWeight
			}
			perSession += weight
		}
		floor -= perSession * float64(req.Sessions())
	}
	return floor
}

func assignmentLess(a, b models.Assignment) bool {
	if a.Slot.Day != b.Slot.Day {
		return a.Slot.Day < b.Slot.Day
	}
	if a.Slot.Start != b.Slot.Start {
		return a.Slot.Start < b.Slot.Start
	}
	if a.RequirementID != b.RequirementID {
		return a.RequirementID < b.RequirementID
	}
	return a.RoomID < b.RoomID
}
