package scheduler

import "math/rand"

type randomStrategy struct {
	rng *rand.Rand
}

// Random picks uniformly among the admissible slots of each subject. The same
// seed reproduces the same schedule.
func Random(seed int64) Strategy {
	return &randomStrategy{rng: rand.New(rand.NewSource(seed))}
}

func (*randomStrategy) Name() string { return "random" }

func (r *randomStrategy) Assign(checker *Checker, occ *Occupancy, subjects []Subject) {
	for _, subject := range subjects {
		for occ.Placed(subject.ID) < subject.WeeklyHours {
			candidates := candidateSlots(checker, occ, subject, false)
			if len(candidates) == 0 {
				candidates = candidateSlots(checker, occ, subject, true)
			}
			if len(candidates) == 0 {
				break
			}
			pick := candidates[r.rng.Intn(len(candidates))]
			if err := occ.Place(subject.ID, subject.TeacherID, pick.Day, pick.Period); err != nil {
				break
			}
		}
	}
}

func candidateSlots(checker *Checker, occ *Occupancy, subject Subject, allowSameDay bool) []Slot {
	var slots []Slot
	for _, slot := range checker.Grid().Slots() {
		if checker.Admits(occ, subject, slot.Day, slot.Period, allowSameDay) {
			slots = append(slots, slot)
		}
	}
	return slots
}
