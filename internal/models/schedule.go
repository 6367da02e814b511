package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// ScheduleSource records how a schedule version came to be.
type ScheduleSource string

const (
	ScheduleSourceGenerated ScheduleSource = "GENERATED"
	ScheduleSourcePreview   ScheduleSource = "PREVIEW"
	ScheduleSourceManual    ScheduleSource = "MANUAL"
	ScheduleSourceImported  ScheduleSource = "IMPORTED"
	ScheduleSourceRestored  ScheduleSource = "RESTORED"
)

// DefaultScheduleName names the working timetable of a group.
const DefaultScheduleName = "main"

// Schedule is one version of a group's weekly timetable. The highest version
// is the current one.
type Schedule struct {
	ID        string         `db:"id" json:"id"`
	GroupID   string         `db:"group_id" json:"group_id"`
	Version   int            `db:"version" json:"version"`
	Name      string         `db:"name" json:"name"`
	Source    ScheduleSource `db:"source" json:"source"`
	Meta      types.JSONText `db:"meta" json:"meta"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt time.Time      `db:"updated_at" json:"updated_at"`
}

// ScheduleItem is one lesson inside a schedule version.
type ScheduleItem struct {
	ID         string    `db:"id" json:"id"`
	ScheduleID string    `db:"schedule_id" json:"schedule_id"`
	SubjectID  string    `db:"subject_id" json:"subject_id"`
	Day        int       `db:"day" json:"day"`
	Period     int       `db:"period" json:"period"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// ScheduleWithItems bundles a version with its lessons.
type ScheduleWithItems struct {
	Schedule
	Items []ScheduleItem `json:"items"`
}

// TeacherBusySlot is a slot where a teacher already teaches another group.
type TeacherBusySlot struct {
	TeacherID string `db:"teacher_id" json:"teacher_id"`
	GroupID   string `db:"group_id" json:"group_id"`
	Day       int    `db:"day" json:"day"`
	Period    int    `db:"period" json:"period"`
}
