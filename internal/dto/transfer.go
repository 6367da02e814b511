package dto

import "time"

// TransferSubject is a subject as written in export documents.
type TransferSubject struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	ShortName      string  `json:"shortName,omitempty"`
	HoursPerWeek   int     `json:"hoursPerWeek"`
	TeacherID      *string `json:"teacherId,omitempty"`
	RestrictedDays []int   `json:"restrictedDays,omitempty"`
}

// TransferDocument is the JSON export/import format of a group timetable.
type TransferDocument struct {
	GroupID    string                `json:"groupId,omitempty"`
	ExportedAt time.Time             `json:"exportedAt,omitempty"`
	Subjects   []TransferSubject     `json:"subjects"`
	Schedule   []ScheduleItemPayload `json:"schedule" validate:"dive"`
}

// ImportScheduleRequest imports a document into a group.
type ImportScheduleRequest struct {
	GroupID  string           `json:"groupId" validate:"required"`
	Document TransferDocument `json:"document"`
}

// ExportFileRequest asks for a rendered timetable file.
type ExportFileRequest struct {
	GroupID string `json:"groupId" validate:"required"`
	Format  string `json:"format" validate:"required,oneof=csv pdf"`
}

// ExportFileResponse points to the rendered file.
type ExportFileResponse struct {
	Token     string    `json:"token"`
	URL       string    `json:"url"`
	Format    string    `json:"format"`
	ExpiresAt time.Time `json:"expiresAt"`
}
