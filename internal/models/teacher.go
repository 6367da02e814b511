package models

import (
	"time"

	"github.com/lib/pq"
)

// Teacher is a staff member that can be assigned to subjects.
type Teacher struct {
	ID             string        `db:"id" json:"id"`
	FullName       string        `db:"full_name" json:"full_name"`
	ShortName      string        `db:"short_name" json:"short_name"`
	Department     string        `db:"department" json:"department"`
	Position       string        `db:"position" json:"position"`
	RestrictedDays pq.Int64Array `db:"restricted_days" json:"restricted_days"`
	CreatedAt      time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time     `db:"updated_at" json:"updated_at"`
}

// TeacherFilter captures supported filters for listing teachers.
type TeacherFilter struct {
	Department string
	Search     string
	Page       int
	PageSize   int
}

// IntDays converts a postgres int array into plain day indexes.
func IntDays(days pq.Int64Array) []int {
	out := make([]int, 0, len(days))
	for _, d := range days {
		out = append(out, int(d))
	}
	return out
}

// Int64Days converts day indexes into a postgres int array.
func Int64Days(days []int) pq.Int64Array {
	out := make(pq.Int64Array, 0, len(days))
	for _, d := range days {
		out = append(out, int64(d))
	}
	return out
}
