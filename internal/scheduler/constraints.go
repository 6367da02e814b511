package scheduler

import "fmt"

// Placement rejection reasons.
const (
	ReasonOutOfGrid      = "OUT_OF_GRID"
	ReasonDayRestricted  = "DAY_RESTRICTED"
	ReasonSlotTaken      = "SLOT_TAKEN"
	ReasonTeacherBusy    = "TEACHER_BUSY"
	ReasonQuotaExceeded  = "QUOTA_EXCEEDED"
	ReasonUnknownSubject = "UNKNOWN_SUBJECT"
)

// PlacementError explains why a session cannot go into a slot.
type PlacementError struct {
	Reason    string
	SubjectID string
	Day       int
	Period    int
}

func (e *PlacementError) Error() string {
	switch e.Reason {
	case ReasonOutOfGrid:
		return fmt.Sprintf("slot day %d period %d is outside the grid", e.Day, e.Period)
	case ReasonDayRestricted:
		return fmt.Sprintf("subject %s cannot be scheduled on day %d", e.SubjectID, e.Day)
	case ReasonSlotTaken:
		return fmt.Sprintf("slot day %d period %d is already taken", e.Day, e.Period)
	case ReasonTeacherBusy:
		return fmt.Sprintf("teacher of subject %s is busy on day %d period %d", e.SubjectID, e.Day, e.Period)
	case ReasonQuotaExceeded:
		return fmt.Sprintf("subject %s already has all weekly hours placed", e.SubjectID)
	case ReasonUnknownSubject:
		return fmt.Sprintf("subject %s is not part of this schedule", e.SubjectID)
	}
	return fmt.Sprintf("cannot place subject %s on day %d period %d", e.SubjectID, e.Day, e.Period)
}

// Checker evaluates placement predicates. It never mutates occupancy.
type Checker struct {
	grid     Grid
	teachers map[string]Teacher
}

// NewChecker builds a checker over the grid and teacher lookup.
func NewChecker(grid Grid, teachers map[string]Teacher) *Checker {
	if teachers == nil {
		teachers = map[string]Teacher{}
	}
	return &Checker{grid: grid, teachers: teachers}
}

// Grid exposes the grid the checker validates against.
func (c *Checker) Grid() Grid {
	return c.grid
}

// DayAllowed reports whether the subject may be taught on day.
func (c *Checker) DayAllowed(subject Subject, day int) bool {
	for _, d := range subject.RestrictedDays {
		if d == day {
			return false
		}
	}
	if subject.TeacherID == "" {
		return true
	}
	for _, d := range c.teachers[subject.TeacherID].RestrictedDays {
		if d == day {
			return false
		}
	}
	return true
}

// SlotFree reports whether the slot is empty.
func (c *Checker) SlotFree(occ *Occupancy, day, period int) bool {
	return occ.SlotFree(day, period)
}

// TeacherFree reports whether the teacher can take the slot.
func (c *Checker) TeacherFree(occ *Occupancy, teacherID string, day, period int) bool {
	return occ.TeacherFree(teacherID, day, period)
}

// SubjectOnDay reports whether the subject already has a lesson that day.
func (c *Checker) SubjectOnDay(occ *Occupancy, subjectID string, day int) bool {
	return occ.SubjectOnDay(subjectID, day)
}

// Admits is the hard-constraint test shared by every strategy. When
// allowSameDay is false the subject must not already be on that day.
func (c *Checker) Admits(occ *Occupancy, subject Subject, day, period int, allowSameDay bool) bool {
	if !c.grid.IsValidSlot(day, period) {
		return false
	}
	if !c.DayAllowed(subject, day) {
		return false
	}
	if !c.SlotFree(occ, day, period) || !c.TeacherFree(occ, subject.TeacherID, day, period) {
		return false
	}
	return allowSameDay || !c.SubjectOnDay(occ, subject.ID, day)
}

// CheckSlot validates putting an existing session of subject into a slot.
// The weekly quota is not consulted, so it fits moves.
func (c *Checker) CheckSlot(occ *Occupancy, subject Subject, day, period int) error {
	perr := &PlacementError{SubjectID: subject.ID, Day: day, Period: period}
	switch {
	case !c.grid.IsValidSlot(day, period):
		perr.Reason = ReasonOutOfGrid
	case !c.DayAllowed(subject, day):
		perr.Reason = ReasonDayRestricted
	case !c.SlotFree(occ, day, period):
		perr.Reason = ReasonSlotTaken
	case !c.TeacherFree(occ, subject.TeacherID, day, period):
		perr.Reason = ReasonTeacherBusy
	default:
		return nil
	}
	return perr
}

// CheckPlacement validates one new session, quota included.
func (c *Checker) CheckPlacement(occ *Occupancy, subject Subject, day, period int) error {
	if err := c.CheckSlot(occ, subject, day, period); err != nil {
		return err
	}
	if occ.Placed(subject.ID) >= subject.WeeklyHours {
		return &PlacementError{Reason: ReasonQuotaExceeded, SubjectID: subject.ID, Day: day, Period: period}
	}
	return nil
}
