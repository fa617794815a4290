// Package interval indexes assignments by (resource, day) and answers
// overlap queries for the solver's hard-constraint checks and the conflict
// detector.
package interval

import (
	"sort"

	"github.com/edtia/edtia-api/internal/models"
)

type bucketKey struct {
	Kind models.ResourceKind
	ID   int64
	Day  int
}

// Index holds per-(resource, day) buckets of assignments sorted by start
// time. It supports incremental insertion and removal so the solver can
// explore partial solutions cheaply. Not safe for concurrent mutation.
type Index struct {
	buckets map[bucketKey][]models.Assignment
	size    int
}

// NewIndex builds an index over an existing assignment set.
func NewIndex(assignments []models.Assignment) *Index {
	idx := &Index{buckets: make(map[bucketKey][]models.Assignment)}
	for _, a := range assignments {
		idx.Insert(a)
	}
	return idx
}

// Len returns the number of indexed assignments.
func (x *Index) Len() int {
	return x.size
}

// Insert adds the assignment under its teacher, room and class buckets.
func (x *Index) Insert(a models.Assignment) {
	for _, kind := range models.ResourceKinds {
		id := a.Resource(kind)
		if id == 0 {
			continue
		}
		key := bucketKey{Kind: kind, ID: id, Day: a.Slot.Day}
		bucket := x.buckets[key]
		at := sort.Search(len(bucket), func(i int) bool {
			return !entryLess(bucket[i], a)
		})
		bucket = append(bucket, models.Assignment{})
		copy(bucket[at+1:], bucket[at:])
		bucket[at] = a
		x.buckets[key] = bucket
	}
	x.size++
}

// Remove deletes the assignment from all of its buckets. Unknown
// assignments are ignored.
func (x *Index) Remove(a models.Assignment) {
	removed := false
	for _, kind := range models.ResourceKinds {
		id := a.Resource(kind)
		if id == 0 {
			continue
		}
		key := bucketKey{Kind: kind, ID: id, Day: a.Slot.Day}
		bucket := x.buckets[key]
		for i, entry := range bucket {
			if sameAssignment(entry, a) {
				x.buckets[key] = append(bucket[:i], bucket[i+1:]...)
				removed = true
				break
			}
		}
	}
	if removed {
		x.size--
	}
}

// Overlaps returns every indexed assignment of the resource whose interval
// strictly overlaps [start, end) on the given day, in start order.
// Back-to-back intervals are not overlaps.
func (x *Index) Overlaps(kind models.ResourceKind, resourceID int64, day, start, end int) []models.Assignment {
	bucket := x.buckets[bucketKey{Kind: kind, ID: resourceID, Day: day}]
	if len(bucket) == 0 {
		return nil
	}
	// Entries starting at or after end cannot overlap.
	limit := sort.Search(len(bucket), func(i int) bool {
		return bucket[i].Slot.Start >= end
	})
	var result []models.Assignment
	for _, entry := range bucket[:limit] {
		if entry.Slot.End > start {
			result = append(result, entry)
		}
	}
	return result
}

// HasOverlap is Overlaps without materialising matches.
func (x *Index) HasOverlap(kind models.ResourceKind, resourceID int64, day, start, end int) bool {
	bucket := x.buckets[bucketKey{Kind: kind, ID: resourceID, Day: day}]
	limit := sort.Search(len(bucket), func(i int) bool {
		return bucket[i].Slot.Start >= end
	})
	for _, entry := range bucket[:limit] {
		if entry.Slot.End > start {
			return true
		}
	}
	return false
}

func entryLess(a, b models.Assignment) bool {
	if a.Slot.Start != b.Slot.Start {
		return a.Slot.Start < b.Slot.Start
	}
	if a.Slot.End != b.Slot.End {
		return a.Slot.End < b.Slot.End
	}
	return a.RequirementID < b.RequirementID
}

func sameAssignment(a, b models.Assignment) bool {
	return a.RequirementID == b.RequirementID &&
		a.RoomID == b.RoomID &&
		a.Slot == b.Slot
}
