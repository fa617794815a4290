// Package conflict enumerates pairwise resource clashes in a timetable
// snapshot. The detector is stateless and side-effect free: it is used both
// as a post-solve verifier and as a standalone audit over manually edited
// timetables.
package conflict

import (
	"sort"

	"github.com/edtia/edtia-api/internal/models"
)

// Detect returns every pair of assignments sharing a teacher, room or class
// whose time slots strictly overlap on the same day. Touching endpoints are
// not conflicts. The result ordering is total, so repeated runs over an
// unchanged snapshot yield identical output.
func Detect(assignments []models.Assignment) []models.ConflictRecord {
	var records []models.ConflictRecord
	for _, kind := range models.ResourceKinds {
		records = append(records, sweep(kind, assignments)...)
	}

	sort.SliceStable(records, func(i, j int) bool {
		return recordLess(records[i], records[j])
	})
	return records
}

// sweep groups assignments by (resource, day), sorts each group by start
// time and reports every overlapping pair, adjacent or further apart.
func sweep(kind models.ResourceKind, assignments []models.Assignment) []models.ConflictRecord {
	type groupKey struct {
		resourceID int64
		day        int
	}
	groups := make(map[groupKey][]models.Assignment)
	var keys []groupKey
	for _, a := range assignments {
		id := a.Resource(kind)
		if id == 0 {
			continue
		}
		key := groupKey{id, a.Slot.Day}
		if _, seen := groups[key]; !seen {
			keys = append(keys, key)
		}
		groups[key] = append(groups[key], a)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].resourceID != keys[j].resourceID {
			return keys[i].resourceID < keys[j].resourceID
		}
		return keys[i].day < keys[j].day
	})

	var records []models.ConflictRecord
	for _, key := range keys {
		group := groups[key]
		sort.Slice(group, func(i, j int) bool {
			if group[i].Slot.Start != group[j].Slot.Start {
				return group[i].Slot.Start < group[j].Slot.Start
			}
			if group[i].Slot.End != group[j].Slot.End {
				return group[i].Slot.End < group[j].Slot.End
			}
			return group[i].RequirementID < group[j].RequirementID
		})
		for i := 0; i < len(group); i++ {
			for j := i + 1; j < len(group); j++ {
				// Sorted by start: once a later entry starts at or past
				// this end, no further pair with i can overlap.
				if group[j].Slot.Start >= group[i].Slot.End {
					break
				}
				records = append(records, models.ConflictRecord{
					Kind:       kind,
					ResourceID: key.resourceID,
					First:      group[i],
					Second:     group[j],
					Severity:   models.SeverityCritical,
				})
			}
		}
	}
	return records
}

func recordLess(a, b models.ConflictRecord) bool {
	if a.First.Slot.Day != b.First.Slot.Day {
		return a.First.Slot.Day < b.First.Slot.Day
	}
	if a.First.Slot.Start != b.First.Slot.Start {
		return a.First.Slot.Start < b.First.Slot.Start
	}
	if a.Kind != b.Kind {
		return kindOrder(a.Kind) < kindOrder(b.Kind)
	}
	if a.ResourceID != b.ResourceID {
		return a.ResourceID < b.ResourceID
	}
	if a.First.RequirementID != b.First.RequirementID {
		return a.First.RequirementID < b.First.RequirementID
	}
	return a.Second.RequirementID < b.Second.RequirementID
}

func kindOrder(kind models.ResourceKind) int {
	for i, k := range models.ResourceKinds {
		if k == kind {
			return i
		}
	}
	return len(models.ResourceKinds)
}
