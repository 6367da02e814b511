package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-api/internal/dto"
	"github.com/noah-isme/timetable-api/internal/models"
	"github.com/noah-isme/timetable-api/internal/scheduler"
)

type subjectRepository interface {
	List(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, int, error)
	FindByID(ctx context.Context, id string) (*models.Subject, error)
	Create(ctx context.Context, subject *models.Subject) error
	Update(ctx context.Context, subject *models.Subject) error
	Delete(ctx context.Context, id string) error
}

type subjectTeacherReader interface {
	FindByID(ctx context.Context, id string) (*models.Teacher, error)
}

type scheduleInvalidator interface {
	Invalidate(ctx context.Context, groupID string)
}

// SubjectService manages the weekly requirements of groups.
type SubjectService struct {
	repo      subjectRepository
	groups    scheduleGroupReader
	teachers  subjectTeacherReader
	schedules scheduleInvalidator
	grid      scheduler.Grid
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSubjectService constructs a SubjectService.
func NewSubjectService(
	repo subjectRepository,
	groups scheduleGroupReader,
	teachers subjectTeacherReader,
	schedules scheduleInvalidator,
	grid scheduler.Grid,
	validate *validator.Validate,
	logger *zap.Logger,
) *SubjectService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if grid.Days <= 0 || grid.Periods <= 0 {
		grid = scheduler.DefaultGrid()
	}
	return &SubjectService{
		repo:      repo,
		groups:    groups,
		teachers:  teachers,
		schedules: schedules,
		grid:      grid,
		validator: newValidator(validate),
		logger:    logger,
	}
}

// List returns subjects plus pagination data.
func (s *SubjectService) List(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, *models.Pagination, error) {
	subjects, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list subjects")
	}
	return subjects, paginationOf(filter.Page, filter.PageSize, total), nil
}

// Get returns a subject by id.
func (s *SubjectService) Get(ctx context.Context, id string) (*models.Subject, error) {
	subject, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "subject")
	}
	return subject, nil
}

// Create attaches a new subject to a group.
func (s *SubjectService) Create(ctx context.Context, req dto.CreateSubjectRequest) (*models.Subject, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, invalidPayload(err, "invalid subject payload")
	}
	teacherID, err := s.checkReferences(ctx, req.GroupID, req.TeacherID, req.RestrictedDays)
	if err != nil {
		return nil, err
	}

	subject := &models.Subject{
		GroupID:        req.GroupID,
		TeacherID:      teacherID,
		Name:           strings.TrimSpace(req.Name),
		ShortName:      strings.TrimSpace(req.ShortName),
		HoursPerWeek:   req.HoursPerWeek,
		RestrictedDays: models.Int64Days(req.RestrictedDays),
	}
	if err := s.repo.Create(ctx, subject); err != nil {
		return nil, writeError(err, "subject", "create")
	}
	return subject, nil
}

// Update modifies a subject. Cached schedules of the old and new group are dropped.
func (s *SubjectService) Update(ctx context.Context, id string, req dto.UpdateSubjectRequest) (*models.Subject, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, invalidPayload(err, "invalid subject payload")
	}
	subject, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	teacherID, err := s.checkReferences(ctx, req.GroupID, req.TeacherID, req.RestrictedDays)
	if err != nil {
		return nil, err
	}

	previousGroup := subject.GroupID
	subject.GroupID = req.GroupID
	subject.TeacherID = teacherID
	subject.Name = strings.TrimSpace(req.Name)
	subject.ShortName = strings.TrimSpace(req.ShortName)
	subject.HoursPerWeek = req.HoursPerWeek
	subject.RestrictedDays = models.Int64Days(req.RestrictedDays)
	if err := s.repo.Update(ctx, subject); err != nil {
		return nil, writeError(err, "subject", "update")
	}

	s.invalidate(ctx, previousGroup)
	if previousGroup != subject.GroupID {
		s.invalidate(ctx, subject.GroupID)
	}
	return subject, nil
}

// Delete removes a subject together with its scheduled sessions.
func (s *SubjectService) Delete(ctx context.Context, id string) error {
	subject, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return writeError(err, "subject", "delete")
	}
	s.invalidate(ctx, subject.GroupID)
	return nil
}

// checkReferences validates restricted days and that the group and the
// optional teacher exist. It returns the normalized teacher id.
func (s *SubjectService) checkReferences(ctx context.Context, groupID string, teacherID *string, days []int) (*string, error) {
	if err := validateDays(s.grid, days, "restrictedDays"); err != nil {
		return nil, err
	}
	if _, err := s.groups.FindByID(ctx, groupID); err != nil {
		return nil, lookupError(err, "group")
	}
	teacherID = normalizeOptional(teacherID)
	if teacherID != nil {
		if _, err := s.teachers.FindByID(ctx, *teacherID); err != nil {
			return nil, lookupError(err, "teacher")
		}
	}
	return teacherID, nil
}

func (s *SubjectService) invalidate(ctx context.Context, groupID string) {
	if s.schedules != nil {
		s.schedules.Invalidate(ctx, groupID)
	}
}

func normalizeOptional(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
