package scheduler

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrInvalidInput is matched by every ValidationError.
var ErrInvalidInput = errors.New("invalid scheduler input")

// ValidationError lists everything wrong with an engine input.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrInvalidInput.Error(), strings.Join(e.Problems, "; "))
}

// Is lets errors.Is match ErrInvalidInput.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

func (e *ValidationError) add(format string, args ...any) {
	e.Problems = append(e.Problems, fmt.Sprintf(format, args...))
}

// Validate checks an input before any placement happens.
func Validate(in Input) error {
	verr := &ValidationError{}
	if err := in.Grid.Validate(); err != nil {
		verr.add("%s", err.Error())
		return verr
	}

	for _, id := range sortedKeys(in.Teachers) {
		teacher := in.Teachers[id]
		if teacher.ID != "" && teacher.ID != id {
			verr.add("teacher key %s does not match id %s", id, teacher.ID)
		}
		for _, day := range teacher.RestrictedDays {
			if !in.Grid.IsValidDay(day) {
				verr.add("teacher %s restricted day %d outside [0,%d)", id, day, in.Grid.Days)
			}
		}
	}

	seen := make(map[string]struct{}, len(in.Subjects))
	for i, subject := range in.Subjects {
		if subject.ID == "" {
			verr.add("subject #%d has no id", i)
			continue
		}
		if _, dup := seen[subject.ID]; dup {
			verr.add("subject %s listed twice", subject.ID)
		}
		seen[subject.ID] = struct{}{}
		if subject.WeeklyHours <= 0 {
			verr.add("subject %s weeklyHours must be positive, got %d", subject.ID, subject.WeeklyHours)
		}
		for _, day := range subject.RestrictedDays {
			if !in.Grid.IsValidDay(day) {
				verr.add("subject %s restricted day %d outside [0,%d)", subject.ID, day, in.Grid.Days)
			}
		}
		if subject.TeacherID != "" {
			if _, ok := in.Teachers[subject.TeacherID]; !ok {
				verr.add("subject %s references unknown teacher %s", subject.ID, subject.TeacherID)
			}
		}
	}

	for _, teacherID := range sortedKeys(in.Reserved) {
		for _, slot := range in.Reserved[teacherID] {
			if !in.Grid.IsValidSlot(slot.Day, slot.Period) {
				verr.add("reserved slot %d/%d of teacher %s outside grid", slot.Day, slot.Period, teacherID)
			}
		}
	}

	if len(verr.Problems) > 0 {
		return verr
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
