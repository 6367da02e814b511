package dto

import "github.com/noah-isme/timetable-api/internal/scheduler"

// Generation modes accepted by preview.
const (
	ModeDeterministic = "deterministic"
	ModeRandom        = "random"
)

// GenerateScheduleRequest asks for a new schedule version of a group.
type GenerateScheduleRequest struct {
	GroupID string `json:"groupId" validate:"required"`
}

// BatchGenerateRequest queues generation for several groups.
type BatchGenerateRequest struct {
	GroupIDs []string `json:"groupIds" validate:"required,min=1,dive,required"`
}

// BatchGenerateResponse lists the queued job ids per group.
type BatchGenerateResponse struct {
	Jobs map[string]string `json:"jobs"`
}

// PreviewScheduleRequest builds a proposal without persisting it.
type PreviewScheduleRequest struct {
	GroupID string `json:"groupId" validate:"required"`
	Mode    string `json:"mode" validate:"omitempty,oneof=deterministic random"`
	Seed    *int64 `json:"seed"`
}

// UnmetSubject reports the hours the engine could not place.
type UnmetSubject struct {
	SubjectID string `json:"subjectId"`
	Name      string `json:"name"`
	Required  int    `json:"required"`
	Missing   int    `json:"missing"`
}

// GenerateScheduleResponse is returned by generate and preview.
type GenerateScheduleResponse struct {
	ScheduleID string              `json:"scheduleId,omitempty"`
	ProposalID string              `json:"proposalId,omitempty"`
	GroupID    string              `json:"groupId"`
	Version    int                 `json:"version,omitempty"`
	Strategy   string              `json:"strategy"`
	Seed       *int64              `json:"seed,omitempty"`
	Grid       scheduler.Grid      `json:"grid"`
	Sessions   []scheduler.Session `json:"sessions"`
	Unmet      []UnmetSubject      `json:"unmet"`
}

// ScheduleItemPayload is one lesson in API payloads.
type ScheduleItemPayload struct {
	SubjectID string `json:"subjectId" validate:"required"`
	Day       int    `json:"day" validate:"min=0"`
	Period    int    `json:"period" validate:"min=1"`
}

// ReplaceScheduleRequest overwrites the current schedule of a group.
type ReplaceScheduleRequest struct {
	GroupID string                `json:"groupId" validate:"required"`
	Items   []ScheduleItemPayload `json:"items" validate:"dive"`
}

// PlaceSessionRequest adds one lesson to the current schedule.
type PlaceSessionRequest struct {
	GroupID   string `json:"groupId" validate:"required"`
	SubjectID string `json:"subjectId" validate:"required"`
	Day       int    `json:"day" validate:"min=0"`
	Period    int    `json:"period" validate:"min=1"`
}

// RemoveSessionRequest clears one slot of the current schedule.
type RemoveSessionRequest struct {
	GroupID string `form:"groupId" json:"groupId" validate:"required"`
	Day     int    `form:"day" json:"day" validate:"min=0"`
	Period  int    `form:"period" json:"period" validate:"min=1"`
}

// SlotPayload addresses a grid cell.
type SlotPayload struct {
	Day    int `json:"day" validate:"min=0"`
	Period int `json:"period" validate:"min=1"`
}

// MoveSessionRequest moves one lesson to another slot.
type MoveSessionRequest struct {
	GroupID string      `json:"groupId" validate:"required"`
	From    SlotPayload `json:"from"`
	To      SlotPayload `json:"to"`
}

// ScheduleView is the current timetable of a group.
type ScheduleView struct {
	ScheduleID string                `json:"scheduleId,omitempty"`
	GroupID    string                `json:"groupId"`
	Version    int                   `json:"version"`
	Name       string                `json:"name,omitempty"`
	Source     string                `json:"source,omitempty"`
	Items      []ScheduleItemPayload `json:"items"`
}

// SubjectProgress shows how many weekly hours of a subject are placed.
type SubjectProgress struct {
	SubjectID string `json:"subjectId"`
	Name      string `json:"name"`
	Required  int    `json:"required"`
	Placed    int    `json:"placed"`
	Complete  bool   `json:"complete"`
}

// ScheduleStatus summarises hours placed per subject.
type ScheduleStatus struct {
	GroupID  string            `json:"groupId"`
	Version  int               `json:"version"`
	Complete bool              `json:"complete"`
	Subjects []SubjectProgress `json:"subjects"`
}

// ScheduleQuery selects a group.
type ScheduleQuery struct {
	GroupID string `form:"groupId" json:"groupId" validate:"required"`
}
