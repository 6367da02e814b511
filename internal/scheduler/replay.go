package scheduler

// Replay rebuilds occupancy from stored sessions, checking each one against
// the same rules the engine obeys. It stops at the first violation.
// Reserved teacher slots, when given, are applied before any session.
func Replay(checker *Checker, subjects map[string]Subject, sessions []Session, reserved map[string][]Slot) (*Occupancy, error) {
	occ := NewOccupancy(checker.Grid())
	for teacherID, slots := range reserved {
		for _, slot := range slots {
			occ.Reserve(teacherID, slot)
		}
	}

	ordered := make([]Session, len(sessions))
	copy(ordered, sessions)
	SortSessions(ordered)

	for _, s := range ordered {
		subject, ok := subjects[s.SubjectID]
		if !ok {
			return nil, &PlacementError{Reason: ReasonUnknownSubject, SubjectID: s.SubjectID, Day: s.Day, Period: s.Period}
		}
		if err := checker.CheckPlacement(occ, subject, s.Day, s.Period); err != nil {
			return nil, err
		}
		if err := occ.Place(subject.ID, subject.TeacherID, s.Day, s.Period); err != nil {
			return nil, err
		}
	}
	return occ, nil
}

// Restore rebuilds occupancy from stored sessions without judging them, so
// lessons written under older catalog rules can still be removed or moved.
// Sessions of unknown subjects keep their slot but bind no teacher. Sessions
// outside the grid and repeated slots are dropped.
func Restore(grid Grid, subjects map[string]Subject, sessions []Session, reserved map[string][]Slot) *Occupancy {
	occ := NewOccupancy(grid)
	for teacherID, slots := range reserved {
		for _, slot := range slots {
			occ.Reserve(teacherID, slot)
		}
	}
	for _, s := range sessions {
		if !grid.IsValidSlot(s.Day, s.Period) || !occ.SlotFree(s.Day, s.Period) {
			continue
		}
		occ.record(s.SubjectID, subjects[s.SubjectID].TeacherID, Slot{Day: s.Day, Period: s.Period})
	}
	return occ
}
