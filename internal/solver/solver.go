// Package solver implements the constructive backtracking search that turns
// course requirements into a conflict-free weekly timetable. The search is
// CPU-bound and synchronous; callers run it off the request path and control
// it through the context and the wall-clock budget.
package solver

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/edtia/edtia-api/internal/constraint"
	"github.com/edtia/edtia-api/internal/interval"
	"github.com/edtia/edtia-api/internal/models"
	appErrors "github.com/edtia/edtia-api/pkg/errors"
)

// Status is the terminal state of a solver run.
type Status string

const (
	// StatusOptimal means every requirement is placed and the explored
	// space cannot improve the objective.
	StatusOptimal Status = "optimal"
	// StatusFeasibleTimedOut means a complete conflict-free solution was
	// found but the budget expired before the search space was exhausted.
	StatusFeasibleTimedOut Status = "feasible_timed_out"
	// StatusInfeasible means the explored space proves the hard
	// constraints cannot be jointly satisfied.
	StatusInfeasible Status = "infeasible"
	// StatusTimedOut means the budget expired with no feasible solution.
	StatusTimedOut Status = "timed_out"
	// StatusCancelled means the caller aborted the run.
	StatusCancelled Status = "cancelled"
)

// ReasonNoCandidates is reported as evidence when a requirement has no
// candidate slots at all, before any rule gets a say.
const ReasonNoCandidates = "no_candidate_slots"

const (
	defaultBudget      = 30 * time.Second
	defaultSlotMinutes = 55
)

// Options tunes a solver instance. Zero values fall back to defaults.
type Options struct {
	// Budget is the wall-clock limit for one Solve call.
	Budget time.Duration
	// SlotMinutes is the grid step for candidate start times.
	SlotMinutes int
	Logger      *zap.Logger
}

// Result is the outcome of one Solve call. Assignments is only meaningful
// for StatusOptimal and StatusFeasibleTimedOut; Evidence only for
// StatusInfeasible.
type Result struct {
	Status      Status              `json:"status"`
	Assignments []models.Assignment `json:"assignments,omitempty"`
	Penalty     float64             `json:"penalty"`
	Evidence    []string            `json:"evidence,omitempty"`
	Nodes       int                 `json:"nodes"`
	Elapsed     time.Duration       `json:"elapsed"`
}

// Solver owns the read-only search inputs: the rule catalog and the room
// pool. A Solver is safe to reuse sequentially; each Solve call carries its
// own mutable state.
type Solver struct {
	catalog *constraint.Catalog
	rooms   []models.Room
	hours   models.EstablishmentHours
	opts    Options
	logger  *zap.Logger
}

// New builds a solver over the given catalog and room pool.
func New(catalog *constraint.Catalog, rooms []models.Room, opts Options) *Solver {
	if opts.Budget <= 0 {
		opts.Budget = defaultBudget
	}
	if opts.SlotMinutes <= 0 {
		opts.SlotMinutes = defaultSlotMinutes
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	ordered := make([]models.Room, len(rooms))
	copy(ordered, rooms)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	return &Solver{
		catalog: catalog,
		rooms:   ordered,
		hours:   catalog.Env().Hours,
		opts:    opts,
		logger:  opts.Logger,
	}
}

type candidate struct {
	slot models.TimeSlot
	room models.Room
}

// session is one schedulable unit of a requirement. ordinal orders the
// sessions of a single requirement so interchangeable placements are
// explored once.
type session struct {
	req        models.CourseRequirement
	ordinal    int
	candidates []candidate
}

type searchState struct {
	sessions []*session
	placedAt []int // candidate index per session, -1 when unplaced
	index    *interval.Index
	loads    *constraint.TeacherLoads
	placed   []models.Assignment

	best        []models.Assignment
	bestPenalty float64
	haveBest    bool
	floor       float64

	evidenceDepth int
	evidence      map[string]struct{}

	deadline time.Time
	nodes    int
}

// Solve searches for a complete conflict-free assignment set. It validates
// requirements up front, then runs depth-first backtracking with
// most-constrained-first session selection and least-constraining-value
// candidate ordering. Cancellation and the budget are checked at every
// search node.
func (s *Solver) Solve(ctx context.Context, requirements []models.CourseRequirement) (Result, error) {
	started := time.Now()
	for _, req := range requirements {
		if err := req.Validate(); err != nil {
			return Result{}, err
		}
	}

	sessions, infeasible := s.expand(requirements)
	if infeasible != nil {
		s.logger.Debug("no candidate slots for requirement",
			zap.Strings("evidence", infeasible))
		return Result{
			Status:   StatusInfeasible,
			Evidence: infeasible,
			Elapsed:  time.Since(started),
		}, nil
	}

	state := &searchState{
		sessions:      sessions,
		placedAt:      make([]int, len(sessions)),
		index:         interval.NewIndex(nil),
		loads:         constraint.NewTeacherLoads(),
		evidenceDepth: -1,
		evidence:      make(map[string]struct{}),
		floor:         s.catalog.PenaltyFloor(),
		deadline:      started.Add(s.opts.Budget),
	}
	for i := range state.placedAt {
		state.placedAt[i] = -1
	}

	stop := s.search(ctx, state)
	elapsed := time.Since(started)

	result := Result{Nodes: state.nodes, Elapsed: elapsed}
	switch {
	case stop == stopCancelled:
		result.Status = StatusCancelled
	case stop == stopDeadline && state.haveBest:
		result.Status = StatusFeasibleTimedOut
		result.Assignments = state.best
		result.Penalty = state.bestPenalty
	case stop == stopDeadline:
		result.Status = StatusTimedOut
	case state.haveBest:
		// Either the search space was exhausted or the best solution hit
		// the penalty floor; both prove no improvement is possible.
		result.Status = StatusOptimal
		result.Assignments = state.best
		result.Penalty = state.bestPenalty
	default:
		result.Status = StatusInfeasible
		result.Evidence = sortedReasons(state.evidence)
	}

	if result.Assignments != nil {
		sortAssignments(result.Assignments)
	}
	s.logger.Debug("solver finished",
		zap.String("status", string(result.Status)),
		zap.Int("sessions", len(sessions)),
		zap.Int("nodes", state.nodes),
		zap.Duration("elapsed", elapsed))
	return result, nil
}

// expand splits requirements into sessions and precomputes each session's
// static candidate list using the hard rules that do not depend on search
// state. A requirement left with zero candidates proves infeasibility up
// front; the rejecting rule names are the evidence.
func (s *Solver) expand(requirements []models.CourseRequirement) ([]*session, []string) {
	ordered := make([]models.CourseRequirement, len(requirements))
	copy(ordered, requirements)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	emptyIndex := interval.NewIndex(nil)
	emptyLoads := constraint.NewTeacherLoads()

	var sessions []*session
	for _, req := range ordered {
		reasons := make(map[string]struct{})
		var candidates []candidate
		for _, slot := range s.slotGrid(req.SessionMinutes) {
			for _, room := range s.rooms {
				p := constraint.Placement{
					Requirement: req,
					Room:        room,
					Slot:        slot,
					Index:       emptyIndex,
					Loads:       emptyLoads,
				}
				if ok, reason := s.catalog.Allows(p); !ok {
					reasons[reason] = struct{}{}
					continue
				}
				candidates = append(candidates, candidate{slot: slot, room: room})
			}
		}
		if len(candidates) == 0 {
			if len(reasons) == 0 {
				reasons[ReasonNoCandidates] = struct{}{}
			}
			return nil, sortedReasons(reasons)
		}
		for ordinal := 0; ordinal < req.Sessions(); ordinal++ {
			sessions = append(sessions, &session{req: req, ordinal: ordinal, candidates: candidates})
		}
	}
	return sessions, nil
}

// slotGrid enumerates candidate slots of the given duration over the open
// days, stepping inside each teaching block (morning and afternoon) so the
// lunch break never shifts the grid.
func (s *Solver) slotGrid(durationMinutes int) []models.TimeSlot {
	type block struct{ start, end int }
	blocks := []block{{s.hours.DayStart, s.hours.DayEnd}}
	if s.hours.LunchEnd > s.hours.LunchStart {
		blocks = []block{
			{s.hours.DayStart, s.hours.LunchStart},
			{s.hours.LunchEnd, s.hours.DayEnd},
		}
	}

	days := make([]int, len(s.hours.OpenDays))
	copy(days, s.hours.OpenDays)
	sort.Ints(days)

	var slots []models.TimeSlot
	for _, day := range days {
		for _, b := range blocks {
			for start := b.start; start+durationMinutes <= b.end; start += s.opts.SlotMinutes {
				slot, err := models.NewTimeSlot(day, start, start+durationMinutes)
				if err != nil {
					continue
				}
				slots = append(slots, slot)
			}
		}
	}
	return slots
}

type stopReason int

const (
	stopNone stopReason = iota
	stopDeadline
	stopCancelled
	stopProven
)

// search explores placements depth-first. It returns stopNone when the
// subtree was exhausted, otherwise the reason the run must end.
func (s *Solver) search(ctx context.Context, st *searchState) stopReason {
	st.nodes++
	select {
	case <-ctx.Done():
		return stopCancelled
	default:
	}
	if time.Now().After(st.deadline) {
		return stopDeadline
	}

	next, feasible, reasons := s.selectSession(st)
	if next < 0 {
		penalty := s.catalog.Penalty(st.placed)
		if !st.haveBest || penalty < st.bestPenalty {
			st.best = append(st.best[:0], st.placed...)
			st.bestPenalty = penalty
			st.haveBest = true
		}
		if st.bestPenalty <= st.floor {
			return stopProven
		}
		return stopNone
	}
	if len(feasible) == 0 {
		if len(reasons) == 0 {
			reasons = map[string]struct{}{ReasonNoCandidates: {}}
		}
		depth := len(st.placed)
		if depth > st.evidenceDepth {
			st.evidenceDepth = depth
			st.evidence = reasons
		}
		return stopNone
	}

	sess := st.sessions[next]
	s.orderCandidates(st, next, feasible)
	for _, ci := range feasible {
		cand := sess.candidates[ci]
		a := models.Assignment{
			RequirementID: sess.req.ID,
			TeacherID:     sess.req.TeacherID,
			ClassID:       sess.req.ClassID,
			RoomID:        cand.room.ID,
			Slot:          cand.slot,
		}
		st.index.Insert(a)
		st.loads.Add(sess.req.TeacherID, cand.slot.Day, cand.slot.Minutes())
		st.placed = append(st.placed, a)
		st.placedAt[next] = ci

		stop := s.search(ctx, st)

		st.placedAt[next] = -1
		st.placed = st.placed[:len(st.placed)-1]
		st.loads.Remove(sess.req.TeacherID, cand.slot.Day, cand.slot.Minutes())
		st.index.Remove(a)

		if stop != stopNone {
			return stop
		}
	}
	return stopNone
}

// selectSession picks the unplaced session with the fewest feasible
// candidates under the current partial solution. Returns -1 when every
// session is placed. Ties break on requirement id then session ordinal so
// selection is deterministic.
func (s *Solver) selectSession(st *searchState) (int, []int, map[string]struct{}) {
	bestIdx := -1
	var bestFeasible []int
	var bestReasons map[string]struct{}

	for i, sess := range st.sessions {
		if st.placedAt[i] != -1 {
			continue
		}
		// Sessions of one requirement are interchangeable: hold session k
		// back until session k-1 is placed, and only at later slots.
		if sess.ordinal > 0 && st.placedAt[i-1] == -1 {
			continue
		}
		feasible, reasons := s.feasibleCandidates(st, i)
		if bestIdx == -1 || len(feasible) < len(bestFeasible) {
			bestIdx = i
			bestFeasible = feasible
			bestReasons = reasons
			if len(feasible) == 0 {
				break
			}
		}
	}
	return bestIdx, bestFeasible, bestReasons
}

// feasibleCandidates filters a session's static candidates against the
// current index and loads, collecting reject reasons for evidence.
func (s *Solver) feasibleCandidates(st *searchState, idx int) ([]int, map[string]struct{}) {
	sess := st.sessions[idx]
	reasons := make(map[string]struct{})
	var feasible []int
	for ci, cand := range sess.candidates {
		if sess.ordinal > 0 && !afterPlacedSibling(st, idx, cand) {
			continue
		}
		p := constraint.Placement{
			Requirement: sess.req,
			Room:        cand.room,
			Slot:        cand.slot,
			Index:       st.index,
			Loads:       st.loads,
		}
		if ok, reason := s.catalog.Allows(p); !ok {
			reasons[reason] = struct{}{}
			continue
		}
		feasible = append(feasible, ci)
	}
	return feasible, reasons
}

func afterPlacedSibling(st *searchState, idx int, cand candidate) bool {
	prev := st.sessions[idx-1].candidates[st.placedAt[idx-1]]
	if cand.slot.Day != prev.slot.Day {
		return cand.slot.Day > prev.slot.Day
	}
	if cand.slot.Start != prev.slot.Start {
		return cand.slot.Start > prev.slot.Start
	}
	return cand.room.ID > prev.room.ID
}

// orderCandidates sorts the feasible candidate indices least-constraining
// first: candidates that would block fewer candidate slots of the other
// unplaced sessions are tried before more disruptive ones. Ties break on
// day, start and room id.
func (s *Solver) orderCandidates(st *searchState, idx int, feasible []int) {
	sess := st.sessions[idx]
	blocked := make(map[int]int, len(feasible))
	for _, ci := range feasible {
		blocked[ci] = s.blockedCount(st, idx, sess.candidates[ci])
	}
	sort.SliceStable(feasible, func(i, j int) bool {
		a, b := sess.candidates[feasible[i]], sess.candidates[feasible[j]]
		if blocked[feasible[i]] != blocked[feasible[j]] {
			return blocked[feasible[i]] < blocked[feasible[j]]
		}
		if a.slot.Day != b.slot.Day {
			return a.slot.Day < b.slot.Day
		}
		if a.slot.Start != b.slot.Start {
			return a.slot.Start < b.slot.Start
		}
		return a.room.ID < b.room.ID
	})
}

// blockedCount counts candidate slots of other unplaced sessions that the
// given placement would rule out through a shared teacher, class or room.
func (s *Solver) blockedCount(st *searchState, idx int, cand candidate) int {
	sess := st.sessions[idx]
	count := 0
	for j, other := range st.sessions {
		if j == idx || st.placedAt[j] != -1 {
			continue
		}
		shareTeacher := other.req.TeacherID == sess.req.TeacherID
		shareClass := other.req.ClassID == sess.req.ClassID
		for _, oc := range other.candidates {
			if !oc.slot.Overlaps(cand.slot) {
				continue
			}
			if shareTeacher || shareClass || oc.room.ID == cand.room.ID {
				count++
			}
		}
	}
	return count
}

func sortAssignments(assignments []models.Assignment) {
	sort.Slice(assignments, func(i, j int) bool {
		a, b := assignments[i], assignments[j]
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
	})
}

func sortedReasons(reasons map[string]struct{}) []string {
	out := make([]string, 0, len(reasons))
	for r := range reasons {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

// Err maps a terminal status to the matching API error, nil for the two
// statuses that carry a usable solution.
func (r Result) Err() error {
	switch r.Status {
	case StatusInfeasible:
		return appErrors.Clone(appErrors.ErrInfeasible, "no feasible timetable: "+joinEvidence(r.Evidence))
	case StatusTimedOut:
		return appErrors.ErrSolverTimeout
	case StatusCancelled:
		return appErrors.ErrCancelled
	}
	return nil
}

func joinEvidence(evidence []string) string {
	if len(evidence) == 0 {
		return "unknown cause"
	}
	out := evidence[0]
	for _, e := range evidence[1:] {
		out += ", " + e
	}
	return out
}
