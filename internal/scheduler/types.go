package scheduler

import "sort"

// Subject is one weekly teaching requirement of a group.
type Subject struct {
	ID             string `json:"id"`
	Name           string `json:"name,omitempty"`
	WeeklyHours    int    `json:"weeklyHours"`
	TeacherID      string `json:"teacherId,omitempty"`
	RestrictedDays []int  `json:"restrictedDays,omitempty"`
}

// Teacher carries the days a teacher cannot work.
type Teacher struct {
	ID             string `json:"id"`
	RestrictedDays []int  `json:"restrictedDays,omitempty"`
}

// Session is one placed lesson.
type Session struct {
	SubjectID string `json:"subjectId"`
	Day       int    `json:"day"`
	Period    int    `json:"period"`
}

// Slot returns the grid cell of the session.
func (s Session) Slot() Slot {
	return Slot{Day: s.Day, Period: s.Period}
}

// SortSessions orders sessions by day, then period.
func SortSessions(sessions []Session) {
	sort.SliceStable(sessions, func(i, j int) bool {
		if sessions[i].Day == sessions[j].Day {
			return sessions[i].Period < sessions[j].Period
		}
		return sessions[i].Day < sessions[j].Day
	})
}
