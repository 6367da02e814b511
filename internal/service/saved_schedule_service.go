package service

import (
	"context"
	"encoding/json"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-api/internal/dto"
	"github.com/noah-isme/timetable-api/internal/models"
)

type savedScheduleRepository interface {
	List(ctx context.Context, groupID string) ([]models.SavedSchedule, error)
	FindByID(ctx context.Context, id string) (*models.SavedSchedule, error)
	Create(ctx context.Context, saved *models.SavedSchedule) error
	Delete(ctx context.Context, id string) error
}

// SavedScheduleService manages named timetable snapshots.
type SavedScheduleService struct {
	repo      savedScheduleRepository
	snapshots *SnapshotLoader
	writer    *ScheduleWriter
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSavedScheduleService constructs the service.
func NewSavedScheduleService(repo savedScheduleRepository, snapshots *SnapshotLoader, writer *ScheduleWriter, validate *validator.Validate, logger *zap.Logger) *SavedScheduleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SavedScheduleService{repo: repo, snapshots: snapshots, writer: writer, validator: newValidator(validate), logger: logger}
}

// List returns snapshots newest first, optionally filtered by group.
func (s *SavedScheduleService) List(ctx context.Context, query dto.SavedScheduleQuery) ([]models.SavedSchedule, error) {
	items, err := s.repo.List(ctx, query.GroupID)
	if err != nil {
		return nil, internalError(err, "failed to list saved schedules")
	}
	return items, nil
}

// Get returns a snapshot.
func (s *SavedScheduleService) Get(ctx context.Context, id string) (*models.SavedSchedule, error) {
	saved, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "saved schedule")
	}
	return saved, nil
}

// Create stores a named snapshot of the given items.
func (s *SavedScheduleService) Create(ctx context.Context, req dto.CreateSavedScheduleRequest) (*models.SavedSchedule, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, invalidPayload(err, "invalid saved schedule payload")
	}
	if _, err := s.snapshots.groups.FindByID(ctx, req.GroupID); err != nil {
		return nil, lookupError(err, "group")
	}

	payload, err := json.Marshal(req.Items)
	if err != nil {
		return nil, internalError(err, "failed to encode saved schedule")
	}
	saved := &models.SavedSchedule{GroupID: req.GroupID, Name: req.Name, Items: types.JSONText(payload)}
	if err := s.repo.Create(ctx, saved); err != nil {
		return nil, writeError(err, "saved schedule", "create")
	}
	return saved, nil
}

// Delete removes a snapshot.
func (s *SavedScheduleService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return writeError(err, "saved schedule", "delete")
	}
	return nil
}

// Restore validates a snapshot against the current catalog and stores it as
// the group's next schedule version.
func (s *SavedScheduleService) Restore(ctx context.Context, id string) (*dto.ScheduleView, error) {
	saved, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	var payload []dto.ScheduleItemPayload
	if err := saved.Items.Unmarshal(&payload); err != nil {
		return nil, internalError(err, "failed to decode saved schedule")
	}

	snapshot, err := s.snapshots.Load(ctx, saved.GroupID)
	if err != nil {
		return nil, err
	}
	occ, err := snapshot.Replay(payloadToSessions(payload))
	if err != nil {
		return nil, err
	}

	meta, _ := json.Marshal(map[string]string{"savedScheduleId": saved.ID, "savedScheduleName": saved.Name})
	items := sessionsToItems(occ.Sessions())
	var schedule *models.Schedule
	err = s.writer.InTx(ctx, saved.GroupID, func(tx *sqlx.Tx) error {
		if err := s.writer.CheckTeachers(ctx, snapshot, occ.Sessions()); err != nil {
			return err
		}
		var werr error
		schedule, werr = s.writer.CreateVersion(ctx, tx, saved.GroupID, models.ScheduleSourceRestored, types.JSONText(meta), items)
		return werr
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("saved schedule restored", zap.String("saved_schedule_id", saved.ID), zap.String("group_id", saved.GroupID), zap.Int("version", schedule.Version))
	return scheduleView(saved.GroupID, schedule, items), nil
}
