package models

import "time"

// Group is a class of students that shares one weekly timetable.
type Group struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	ShortName string    `db:"short_name" json:"short_name"`
	Faculty   string    `db:"faculty" json:"faculty"`
	Year      int       `db:"year" json:"year"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// GroupFilter defines filter criteria for listing groups.
type GroupFilter struct {
	Faculty  string
	Search   string
	Page     int
	PageSize int
}
