package scheduler

import "fmt"

type placement struct {
	subjectID string
	teacherID string
}

// Occupancy tracks which slots are filled and when each teacher is busy.
// It is built fresh for every engine run or manual edit and is not safe for
// concurrent use.
type Occupancy struct {
	grid        Grid
	slots       map[Slot]placement
	teachers    map[string]map[Slot]struct{}
	reserved    map[string]map[Slot]struct{}
	subjectDays map[string]map[int]int
	placed      map[string]int
	dayLoad     []int
}

// NewOccupancy returns an empty tracker for the grid.
func NewOccupancy(grid Grid) *Occupancy {
	days := grid.Days
	if days < 0 {
		days = 0
	}
	return &Occupancy{
		grid:        grid,
		slots:       make(map[Slot]placement),
		teachers:    make(map[string]map[Slot]struct{}),
		reserved:    make(map[string]map[Slot]struct{}),
		subjectDays: make(map[string]map[int]int),
		placed:      make(map[string]int),
		dayLoad:     make([]int, days),
	}
}

// Reserve marks a teacher as busy at a slot without creating a session.
// Used for lessons the teacher already gives to other groups.
func (o *Occupancy) Reserve(teacherID string, slot Slot) {
	if teacherID == "" || !o.grid.IsValidSlot(slot.Day, slot.Period) {
		return
	}
	if o.reserved[teacherID] == nil {
		o.reserved[teacherID] = make(map[Slot]struct{})
	}
	o.reserved[teacherID][slot] = struct{}{}
}

// Place records a session. It refuses occupied slots and busy teachers.
func (o *Occupancy) Place(subjectID, teacherID string, day, period int) error {
	slot := Slot{Day: day, Period: period}
	if !o.grid.IsValidSlot(day, period) {
		return fmt.Errorf("slot %d/%d outside grid", day, period)
	}
	if !o.SlotFree(day, period) {
		return fmt.Errorf("slot %d/%d already taken", day, period)
	}
	if !o.TeacherFree(teacherID, day, period) {
		return fmt.Errorf("teacher %s busy at %d/%d", teacherID, day, period)
	}

	o.record(subjectID, teacherID, slot)
	return nil
}

// record stores a session without checking it. The slot must be inside the grid.
func (o *Occupancy) record(subjectID, teacherID string, slot Slot) {
	o.slots[slot] = placement{subjectID: subjectID, teacherID: teacherID}
	if teacherID != "" {
		if o.teachers[teacherID] == nil {
			o.teachers[teacherID] = make(map[Slot]struct{})
		}
		o.teachers[teacherID][slot] = struct{}{}
	}
	if o.subjectDays[subjectID] == nil {
		o.subjectDays[subjectID] = make(map[int]int)
	}
	o.subjectDays[subjectID][slot.Day]++
	o.placed[subjectID]++
	o.dayLoad[slot.Day]++
}

// Remove clears a slot and returns the session that occupied it.
func (o *Occupancy) Remove(day, period int) (Session, bool) {
	slot := Slot{Day: day, Period: period}
	p, ok := o.slots[slot]
	if !ok {
		return Session{}, false
	}
	delete(o.slots, slot)
	if p.teacherID != "" {
		delete(o.teachers[p.teacherID], slot)
	}
	if days := o.subjectDays[p.subjectID]; days != nil {
		days[day]--
		if days[day] <= 0 {
			delete(days, day)
		}
	}
	o.placed[p.subjectID]--
	o.dayLoad[day]--
	return Session{SubjectID: p.subjectID, Day: day, Period: period}, true
}

// SlotFree reports whether no session occupies the slot.
func (o *Occupancy) SlotFree(day, period int) bool {
	_, taken := o.slots[Slot{Day: day, Period: period}]
	return !taken
}

// TeacherFree is true for an empty teacher id or a teacher with nothing at the slot.
func (o *Occupancy) TeacherFree(teacherID string, day, period int) bool {
	if teacherID == "" {
		return true
	}
	slot := Slot{Day: day, Period: period}
	if _, busy := o.teachers[teacherID][slot]; busy {
		return false
	}
	if _, busy := o.reserved[teacherID][slot]; busy {
		return false
	}
	return true
}

// SubjectOnDay reports whether the subject already has a session on day.
func (o *Occupancy) SubjectOnDay(subjectID string, day int) bool {
	return o.subjectDays[subjectID][day] > 0
}

// Placed is the number of sessions recorded for a subject.
func (o *Occupancy) Placed(subjectID string) int {
	return o.placed[subjectID]
}

// DayLoad is the number of sessions on a day across all subjects.
func (o *Occupancy) DayLoad(day int) int {
	if day < 0 || day >= len(o.dayLoad) {
		return 0
	}
	return o.dayLoad[day]
}

// Len is the total number of sessions.
func (o *Occupancy) Len() int {
	return len(o.slots)
}

// Sessions returns all sessions sorted by day and period.
func (o *Occupancy) Sessions() []Session {
	sessions := make([]Session, 0, len(o.slots))
	for slot, p := range o.slots {
		sessions = append(sessions, Session{SubjectID: p.subjectID, Day: slot.Day, Period: slot.Period})
	}
	SortSessions(sessions)
	return sessions
}
