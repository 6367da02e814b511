// Package scheduler places weekly lessons of one group onto a days x periods
// grid while honouring day restrictions and teacher availability.
package scheduler

import "sort"

// Input is the read-only snapshot one engine run works on.
type Input struct {
	Grid     Grid
	Subjects []Subject
	Teachers map[string]Teacher
	// Reserved lists slots per teacher that are already taken elsewhere.
	Reserved map[string][]Slot
}

// Result is the outcome of one run.
type Result struct {
	Strategy   string         `json:"strategy"`
	Sessions   []Session      `json:"sessions"`
	UnmetHours map[string]int `json:"unmetHours"`
}

// Unmet returns the hours that could not be placed for a subject.
func (r *Result) Unmet(subjectID string) int {
	if r == nil {
		return 0
	}
	return r.UnmetHours[subjectID]
}

// Placed counts the sessions of a subject.
func (r *Result) Placed(subjectID string) int {
	if r == nil {
		return 0
	}
	count := 0
	for _, s := range r.Sessions {
		if s.SubjectID == subjectID {
			count++
		}
	}
	return count
}

// Strategy decides where the sessions of every subject go.
type Strategy interface {
	Name() string
	Assign(checker *Checker, occ *Occupancy, subjects []Subject)
}

// Generate runs the deterministic greedy strategy.
func Generate(in Input) (*Result, error) {
	return Run(in, Greedy())
}

// Run validates the input and executes the strategy on fresh occupancy.
// Unplaceable hours are reported in UnmetHours, never as an error.
func Run(in Input, strategy Strategy) (*Result, error) {
	if err := Validate(in); err != nil {
		return nil, err
	}
	if strategy == nil {
		strategy = Greedy()
	}

	checker := NewChecker(in.Grid, in.Teachers)
	occ := NewOccupancy(in.Grid)
	for teacherID, slots := range in.Reserved {
		for _, slot := range slots {
			occ.Reserve(teacherID, slot)
		}
	}

	strategy.Assign(checker, occ, in.Subjects)

	unmet := make(map[string]int)
	for _, subject := range in.Subjects {
		if missing := subject.WeeklyHours - occ.Placed(subject.ID); missing > 0 {
			unmet[subject.ID] = missing
		}
	}
	return &Result{
		Strategy:   strategy.Name(),
		Sessions:   occ.Sessions(),
		UnmetHours: unmet,
	}, nil
}

type greedyStrategy struct{}

// Greedy spreads subjects over the least loaded days, then fills remaining
// gaps row by row.
func Greedy() Strategy {
	return greedyStrategy{}
}

func (greedyStrategy) Name() string { return "greedy" }

func (g greedyStrategy) Assign(checker *Checker, occ *Occupancy, subjects []Subject) {
	sorted := make([]Subject, len(subjects))
	copy(sorted, subjects)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].WeeklyHours > sorted[j].WeeklyHours
	})

	for _, subject := range sorted {
		g.distribute(checker, occ, subject)
	}
	for _, subject := range sorted {
		g.fillGaps(checker, occ, subject)
	}
}

// distribute places at most one session per day, always on the least loaded
// admissible day. Days where the teacher is busy in every free period are
// skipped for the rest of this subject's search.
func (greedyStrategy) distribute(checker *Checker, occ *Occupancy, subject Subject) {
	grid := checker.Grid()
	exhausted := make(map[int]bool)
	for occ.Placed(subject.ID) < subject.WeeklyHours {
		day := -1
		for d := 0; d < grid.Days; d++ {
			if exhausted[d] || !checker.DayAllowed(subject, d) {
				continue
			}
			if occ.DayLoad(d) >= grid.Periods || checker.SubjectOnDay(occ, subject.ID, d) {
				continue
			}
			if day == -1 || occ.DayLoad(d) < occ.DayLoad(day) {
				day = d
			}
		}
		if day == -1 {
			return
		}

		placed := false
		for period := 1; period <= grid.Periods; period++ {
			if checker.SlotFree(occ, day, period) && checker.TeacherFree(occ, subject.TeacherID, day, period) {
				placed = occ.Place(subject.ID, subject.TeacherID, day, period) == nil
				break
			}
		}
		if !placed {
			exhausted[day] = true
		}
	}
}

// fillGaps takes the first admissible slot in day-major order. A second
// session on a day the subject already has is accepted only when no other
// slot is left anywhere in the grid.
func (greedyStrategy) fillGaps(checker *Checker, occ *Occupancy, subject Subject) {
	for occ.Placed(subject.ID) < subject.WeeklyHours {
		slot, ok := firstFit(checker, occ, subject, false)
		if !ok {
			slot, ok = firstFit(checker, occ, subject, true)
		}
		if !ok {
			return
		}
		if err := occ.Place(subject.ID, subject.TeacherID, slot.Day, slot.Period); err != nil {
			return
		}
	}
}

func firstFit(checker *Checker, occ *Occupancy, subject Subject, allowSameDay bool) (Slot, bool) {
	grid := checker.Grid()
	for day := 0; day < grid.Days; day++ {
		for period := 1; period <= grid.Periods; period++ {
			if checker.Admits(occ, subject, day, period, allowSameDay) {
				return Slot{Day: day, Period: period}, true
			}
		}
	}
	return Slot{}, false
}
