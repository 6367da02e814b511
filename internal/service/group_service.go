package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-api/internal/dto"
	"github.com/noah-isme/timetable-api/internal/models"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
)

type groupRepository interface {
	List(ctx context.Context, filter models.GroupFilter) ([]models.Group, int, error)
	FindByID(ctx context.Context, id string) (*models.Group, error)
	ExistsByName(ctx context.Context, name, shortName, excludeID string) (bool, error)
	Create(ctx context.Context, group *models.Group) error
	Update(ctx context.Context, group *models.Group) error
	Delete(ctx context.Context, id string) error
	CountSubjects(ctx context.Context, id string) (int, error)
	CountSchedules(ctx context.Context, id string) (int, error)
}

// GroupService orchestrates group operations.
type GroupService struct {
	repo      groupRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewGroupService constructs a GroupService.
func NewGroupService(repo groupRepository, validate *validator.Validate, logger *zap.Logger) *GroupService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GroupService{repo: repo, validator: newValidator(validate), logger: logger}
}

// List returns groups plus pagination data.
func (s *GroupService) List(ctx context.Context, filter models.GroupFilter) ([]models.Group, *models.Pagination, error) {
	groups, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list groups")
	}
	return groups, paginationOf(filter.Page, filter.PageSize, total), nil
}

// Get returns a group by id.
func (s *GroupService) Get(ctx context.Context, id string) (*models.Group, error) {
	group, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "group")
	}
	return group, nil
}

// Create registers a new group.
func (s *GroupService) Create(ctx context.Context, req dto.CreateGroupRequest) (*models.Group, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, invalidPayload(err, "invalid group payload")
	}
	if err := s.ensureUnique(ctx, req.Name, req.ShortName, ""); err != nil {
		return nil, err
	}

	group := &models.Group{
		Name:      strings.TrimSpace(req.Name),
		ShortName: strings.TrimSpace(req.ShortName),
		Faculty:   strings.TrimSpace(req.Faculty),
		Year:      req.Year,
	}
	if err := s.repo.Create(ctx, group); err != nil {
		return nil, writeError(err, "group", "create")
	}
	return group, nil
}

// Update modifies an existing group.
func (s *GroupService) Update(ctx context.Context, id string, req dto.UpdateGroupRequest) (*models.Group, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, invalidPayload(err, "invalid group payload")
	}
	group, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.ensureUnique(ctx, req.Name, req.ShortName, id); err != nil {
		return nil, err
	}

	group.Name = strings.TrimSpace(req.Name)
	group.ShortName = strings.TrimSpace(req.ShortName)
	group.Faculty = strings.TrimSpace(req.Faculty)
	group.Year = req.Year
	if err := s.repo.Update(ctx, group); err != nil {
		return nil, writeError(err, "group", "update")
	}
	return group, nil
}

// Delete removes a group that no subject or schedule refers to.
func (s *GroupService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	subjects, err := s.repo.CountSubjects(ctx, id)
	if err != nil {
		return internalError(err, "failed to count group subjects")
	}
	schedules, err := s.repo.CountSchedules(ctx, id)
	if err != nil {
		return internalError(err, "failed to count group schedules")
	}
	if subjects > 0 || schedules > 0 {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "group still has subjects or schedules")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return writeError(err, "group", "delete")
	}
	s.logger.Info("group deleted", zap.String("group_id", id))
	return nil
}

func (s *GroupService) ensureUnique(ctx context.Context, name, shortName, excludeID string) error {
	exists, err := s.repo.ExistsByName(ctx, strings.TrimSpace(name), strings.TrimSpace(shortName), excludeID)
	if err != nil {
		return internalError(err, "failed to check group uniqueness")
	}
	if exists {
		return appErrors.Clone(appErrors.ErrConflict, "group name already used")
	}
	return nil
}
