package dto

// CreateSavedScheduleRequest stores a named snapshot.
type CreateSavedScheduleRequest struct {
	GroupID string                `json:"groupId" validate:"required"`
	Name    string                `json:"name" validate:"required,max=255"`
	Items   []ScheduleItemPayload `json:"items" validate:"required,dive"`
}

// SavedScheduleQuery filters snapshots.
type SavedScheduleQuery struct {
	GroupID string `form:"groupId" json:"groupId"`
}
