package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// SavedSchedule is a named snapshot of a group's timetable.
type SavedSchedule struct {
	ID        string         `db:"id" json:"id"`
	GroupID   string         `db:"group_id" json:"group_id"`
	Name      string         `db:"name" json:"name"`
	Items     types.JSONText `db:"items" json:"items"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
}
