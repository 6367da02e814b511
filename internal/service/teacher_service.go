package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-api/internal/dto"
	"github.com/noah-isme/timetable-api/internal/models"
	"github.com/noah-isme/timetable-api/internal/scheduler"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
)

type teacherRepository interface {
	List(ctx context.Context, filter models.TeacherFilter) ([]models.Teacher, int, error)
	FindByID(ctx context.Context, id string) (*models.Teacher, error)
	Create(ctx context.Context, teacher *models.Teacher) error
	Update(ctx context.Context, teacher *models.Teacher) error
	Delete(ctx context.Context, id string) error
	CountSubjects(ctx context.Context, id string) (int, error)
}

// TeacherService orchestrates teacher operations.
type TeacherService struct {
	repo      teacherRepository
	grid      scheduler.Grid
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTeacherService constructs a TeacherService. Restricted days are checked
// against grid.
func NewTeacherService(repo teacherRepository, grid scheduler.Grid, validate *validator.Validate, logger *zap.Logger) *TeacherService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if grid.Days <= 0 || grid.Periods <= 0 {
		grid = scheduler.DefaultGrid()
	}
	return &TeacherService{repo: repo, grid: grid, validator: newValidator(validate), logger: logger}
}

// List returns teachers plus pagination data.
func (s *TeacherService) List(ctx context.Context, filter models.TeacherFilter) ([]models.Teacher, *models.Pagination, error) {
	teachers, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list teachers")
	}
	return teachers, paginationOf(filter.Page, filter.PageSize, total), nil
}

// Get returns a teacher by id.
func (s *TeacherService) Get(ctx context.Context, id string) (*models.Teacher, error) {
	teacher, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "teacher")
	}
	return teacher, nil
}

// Create registers a new teacher record.
func (s *TeacherService) Create(ctx context.Context, req dto.CreateTeacherRequest) (*models.Teacher, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, invalidPayload(err, "invalid teacher payload")
	}
	if err := validateDays(s.grid, req.RestrictedDays, "restrictedDays"); err != nil {
		return nil, err
	}

	teacher := &models.Teacher{
		FullName:       strings.TrimSpace(req.FullName),
		ShortName:      strings.TrimSpace(req.ShortName),
		Department:     strings.TrimSpace(req.Department),
		Position:       strings.TrimSpace(req.Position),
		RestrictedDays: models.Int64Days(req.RestrictedDays),
	}
	if err := s.repo.Create(ctx, teacher); err != nil {
		return nil, writeError(err, "teacher", "create")
	}
	return teacher, nil
}

// Update modifies an existing teacher.
func (s *TeacherService) Update(ctx context.Context, id string, req dto.UpdateTeacherRequest) (*models.Teacher, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, invalidPayload(err, "invalid teacher payload")
	}
	if err := validateDays(s.grid, req.RestrictedDays, "restrictedDays"); err != nil {
		return nil, err
	}
	teacher, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	teacher.FullName = strings.TrimSpace(req.FullName)
	teacher.ShortName = strings.TrimSpace(req.ShortName)
	teacher.Department = strings.TrimSpace(req.Department)
	teacher.Position = strings.TrimSpace(req.Position)
	teacher.RestrictedDays = models.Int64Days(req.RestrictedDays)
	if err := s.repo.Update(ctx, teacher); err != nil {
		return nil, writeError(err, "teacher", "update")
	}
	return teacher, nil
}

// Delete removes a teacher no subject is assigned to.
func (s *TeacherService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	count, err := s.repo.CountSubjects(ctx, id)
	if err != nil {
		return internalError(err, "failed to count teacher subjects")
	}
	if count > 0 {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "teacher is still assigned to subjects")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return writeError(err, "teacher", "delete")
	}
	return nil
}
