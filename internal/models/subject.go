package models

import (
	"time"

	"github.com/lib/pq"
)

// Subject is a weekly teaching requirement of a group.
type Subject struct {
	ID             string        `db:"id" json:"id"`
	GroupID        string        `db:"group_id" json:"group_id"`
	TeacherID      *string       `db:"teacher_id" json:"teacher_id,omitempty"`
	Name           string        `db:"name" json:"name"`
	ShortName      string        `db:"short_name" json:"short_name"`
	HoursPerWeek   int           `db:"hours_per_week" json:"hours_per_week"`
	RestrictedDays pq.Int64Array `db:"restricted_days" json:"restricted_days"`
	CreatedAt      time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time     `db:"updated_at" json:"updated_at"`
}

// TeacherIDValue returns the teacher id or an empty string.
func (s Subject) TeacherIDValue() string {
	if s.TeacherID == nil {
		return ""
	}
	return *s.TeacherID
}

// SubjectFilter captures supported filters for listing subjects.
type SubjectFilter struct {
	GroupID   string
	TeacherID string
	Search    string
	Page      int
	PageSize  int
}
