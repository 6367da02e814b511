package dto

// CreateGroupRequest creates a student group.
type CreateGroupRequest struct {
	Name      string `json:"name" validate:"required,max=128"`
	ShortName string `json:"shortName" validate:"required,max=32"`
	Faculty   string `json:"faculty" validate:"omitempty,max=128"`
	Year      int    `json:"year" validate:"omitempty,min=1,max=10"`
}

// UpdateGroupRequest replaces group attributes.
type UpdateGroupRequest struct {
	Name      string `json:"name" validate:"required,max=128"`
	ShortName string `json:"shortName" validate:"required,max=32"`
	Faculty   string `json:"faculty" validate:"omitempty,max=128"`
	Year      int    `json:"year" validate:"omitempty,min=1,max=10"`
}

// CreateTeacherRequest creates a teacher.
type CreateTeacherRequest struct {
	FullName       string `json:"fullName" validate:"required,max=255"`
	ShortName      string `json:"shortName" validate:"omitempty,max=64"`
	Department     string `json:"department" validate:"omitempty,max=128"`
	Position       string `json:"position" validate:"omitempty,max=128"`
	RestrictedDays []int  `json:"restrictedDays" validate:"omitempty,dive,min=0"`
}

// UpdateTeacherRequest replaces teacher attributes.
type UpdateTeacherRequest struct {
	FullName       string `json:"fullName" validate:"required,max=255"`
	ShortName      string `json:"shortName" validate:"omitempty,max=64"`
	Department     string `json:"department" validate:"omitempty,max=128"`
	Position       string `json:"position" validate:"omitempty,max=128"`
	RestrictedDays []int  `json:"restrictedDays" validate:"omitempty,dive,min=0"`
}

// CreateSubjectRequest attaches a weekly requirement to a group.
type CreateSubjectRequest struct {
	GroupID        string  `json:"groupId" validate:"required"`
	TeacherID      *string `json:"teacherId" validate:"omitempty"`
	Name           string  `json:"name" validate:"required,max=255"`
	ShortName      string  `json:"shortName" validate:"omitempty,max=64"`
	HoursPerWeek   int     `json:"hoursPerWeek" validate:"required,min=1"`
	RestrictedDays []int   `json:"restrictedDays" validate:"omitempty,dive,min=0"`
}

// UpdateSubjectRequest replaces subject attributes.
type UpdateSubjectRequest struct {
	GroupID        string  `json:"groupId" validate:"required"`
	TeacherID      *string `json:"teacherId" validate:"omitempty"`
	Name           string  `json:"name" validate:"required,max=255"`
	ShortName      string  `json:"shortName" validate:"omitempty,max=64"`
	HoursPerWeek   int     `json:"hoursPerWeek" validate:"required,min=1"`
	RestrictedDays []int   `json:"restrictedDays" validate:"omitempty,dive,min=0"`
}
