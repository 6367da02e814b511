package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-api/internal/dto"
	"github.com/noah-isme/timetable-api/internal/models"
	"github.com/noah-isme/timetable-api/internal/scheduler"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
)

// ScheduleService reads group timetables and applies manual edits. Every edit
// is checked with the same rules the engine follows.
type ScheduleService struct {
	repo      scheduleRepository
	snapshots *SnapshotLoader
	writer    *ScheduleWriter
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewScheduleService constructs the service.
func NewScheduleService(repo scheduleRepository, snapshots *SnapshotLoader, writer *ScheduleWriter, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *ScheduleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleService{
		repo:      repo,
		snapshots: snapshots,
		writer:    writer,
		cache:     cache,
		metrics:   metrics,
		validator: newValidator(validate),
		logger:    logger,
	}
}

// Latest returns the current schedule of a group and whether it came from
// the cache. A group without any version yields an empty item list.
func (s *ScheduleService) Latest(ctx context.Context, groupID string) (*dto.ScheduleView, bool, error) {
	if groupID == "" {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "groupId is required")
	}
	return remember(ctx, s.cache, scheduleCacheKey(groupID), func(ctx context.Context) (*dto.ScheduleView, error) {
		schedule, items, err := s.writer.Current(ctx, nil, groupID)
		if err != nil {
			return nil, err
		}
		if schedule == nil {
			if _, err := s.snapshots.groups.FindByID(ctx, groupID); err != nil {
				return nil, lookupError(err, "group")
			}
		}
		return scheduleView(groupID, schedule, items), nil
	})
}

// ListVersions returns every stored version of a group, newest first.
func (s *ScheduleService) ListVersions(ctx context.Context, groupID string) ([]models.Schedule, error) {
	if groupID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "groupId is required")
	}
	versions, err := s.repo.ListByGroup(ctx, groupID)
	if err != nil {
		return nil, internalError(err, "failed to list schedule versions")
	}
	return versions, nil
}

// DeleteVersion removes one stored version.
func (s *ScheduleService) DeleteVersion(ctx context.Context, scheduleID string) error {
	schedule, err := s.repo.FindByID(ctx, scheduleID)
	if err != nil {
		return lookupError(err, "schedule")
	}
	if err := s.repo.Delete(ctx, scheduleID); err != nil {
		return writeError(err, "schedule", "delete")
	}
	s.writer.Invalidate(ctx, schedule.GroupID)
	return nil
}

// Replace overwrites the current schedule with a complete item set.
func (s *ScheduleService) Replace(ctx context.Context, req dto.ReplaceScheduleRequest) (*dto.ScheduleView, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, invalidPayload(err, "invalid schedule payload")
	}
	snapshot, err := s.snapshots.Load(ctx, req.GroupID)
	if err != nil {
		return nil, err
	}
	occ, err := snapshot.Replay(payloadToSessions(req.Items))
	if err != nil {
		s.metrics.ObserveScheduleEdit("replace", err)
		return nil, err
	}

	view, err := s.commit(ctx, snapshot, func(*models.Schedule, []models.ScheduleItem) ([]scheduler.Session, []scheduler.Session, error) {
		sessions := occ.Sessions()
		return sessions, sessions, nil
	})
	s.metrics.ObserveScheduleEdit("replace", err)
	return view, err
}

// PlaceSession adds one lesson to the current schedule. Lessons already
// stored are kept as they are; only the new one is checked.
func (s *ScheduleService) PlaceSession(ctx context.Context, req dto.PlaceSessionRequest) (*dto.ScheduleView, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, invalidPayload(err, "invalid session payload")
	}
	snapshot, err := s.snapshots.Load(ctx, req.GroupID)
	if err != nil {
		return nil, err
	}

	view, err := s.commit(ctx, snapshot, func(_ *models.Schedule, items []models.ScheduleItem) ([]scheduler.Session, []scheduler.Session, error) {
		subject, ok := snapshot.SubjectIndex()[req.SubjectID]
		if !ok {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("subject %s does not belong to the group", req.SubjectID))
		}
		occ := snapshot.Restore(itemsToSessions(items))
		if err := snapshot.Checker().CheckPlacement(occ, subject, req.Day, req.Period); err != nil {
			return nil, nil, engineError(err)
		}
		if err := occ.Place(subject.ID, subject.TeacherID, req.Day, req.Period); err != nil {
			return nil, nil, internalError(err, "failed to place session")
		}
		added := []scheduler.Session{{SubjectID: subject.ID, Day: req.Day, Period: req.Period}}
		return occ.Sessions(), added, nil
	})
	s.metrics.ObserveScheduleEdit("place", err)
	return view, err
}

// RemoveSession clears one slot of the current schedule. It succeeds even
// when other stored lessons no longer match the catalog.
func (s *ScheduleService) RemoveSession(ctx context.Context, req dto.RemoveSessionRequest) (*dto.ScheduleView, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, invalidPayload(err, "invalid session payload")
	}
	snapshot, err := s.snapshots.Load(ctx, req.GroupID)
	if err != nil {
		return nil, err
	}

	view, err := s.commit(ctx, snapshot, func(_ *models.Schedule, items []models.ScheduleItem) ([]scheduler.Session, []scheduler.Session, error) {
		occ := snapshot.Restore(itemsToSessions(items))
		if _, ok := occ.Remove(req.Day, req.Period); !ok {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("no session on day %d period %d", req.Day, req.Period))
		}
		return occ.Sessions(), nil, nil
	})
	s.metrics.ObserveScheduleEdit("remove", err)
	return view, err
}

// MoveSession moves one lesson to another slot. The source slot is vacated
// before the target is checked, so moving within the same day is allowed.
// The weekly quota is not consulted since the lesson count stays the same.
func (s *ScheduleService) MoveSession(ctx context.Context, req dto.MoveSessionRequest) (*dto.ScheduleView, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, invalidPayload(err, "invalid move payload")
	}
	if req.From == req.To {
		return nil, appErrors.Clone(appErrors.ErrValidation, "source and target slot are the same")
	}
	snapshot, err := s.snapshots.Load(ctx, req.GroupID)
	if err != nil {
		return nil, err
	}

	view, err := s.commit(ctx, snapshot, func(_ *models.Schedule, items []models.ScheduleItem) ([]scheduler.Session, []scheduler.Session, error) {
		occ := snapshot.Restore(itemsToSessions(items))
		moved, ok := occ.Remove(req.From.Day, req.From.Period)
		if !ok {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("no session on day %d period %d", req.From.Day, req.From.Period))
		}
		subject, ok := snapshot.SubjectIndex()[moved.SubjectID]
		if !ok {
			return nil, nil, engineError(&scheduler.PlacementError{Reason: scheduler.ReasonUnknownSubject, SubjectID: moved.SubjectID, Day: req.To.Day, Period: req.To.Period})
		}
		if err := snapshot.Checker().CheckSlot(occ, subject, req.To.Day, req.To.Period); err != nil {
			return nil, nil, engineError(err)
		}
		if err := occ.Place(subject.ID, subject.TeacherID, req.To.Day, req.To.Period); err != nil {
			return nil, nil, internalError(err, "failed to move session")
		}
		added := []scheduler.Session{{SubjectID: subject.ID, Day: req.To.Day, Period: req.To.Period}}
		return occ.Sessions(), added, nil
	})
	s.metrics.ObserveScheduleEdit("move", err)
	return view, err
}

// Status reports placed against required hours for every subject of the group.
func (s *ScheduleService) Status(ctx context.Context, groupID string) (*dto.ScheduleStatus, error) {
	if groupID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "groupId is required")
	}
	snapshot, err := s.snapshots.Load(ctx, groupID)
	if err != nil {
		return nil, err
	}
	schedule, items, err := s.writer.Current(ctx, nil, groupID)
	if err != nil {
		return nil, err
	}

	placed := make(map[string]int)
	for _, item := range items {
		placed[item.SubjectID]++
	}

	status := &dto.ScheduleStatus{GroupID: groupID, Complete: true, Subjects: make([]dto.SubjectProgress, 0, len(snapshot.Subjects))}
	if schedule != nil {
		status.Version = schedule.Version
	}
	for _, subject := range snapshot.Subjects {
		progress := dto.SubjectProgress{
			SubjectID: subject.ID,
			Name:      subject.Name,
			Required:  subject.HoursPerWeek,
			Placed:    placed[subject.ID],
		}
		progress.Complete = progress.Placed >= progress.Required
		if !progress.Complete {
			status.Complete = false
		}
		status.Subjects = append(status.Subjects, progress)
	}
	return status, nil
}

// commit reads the current version under the group lock, lets edit compute
// the new session list and writes it back in place. Sessions edit reports as
// added are checked against teacher slots of other groups before writing.
func (s *ScheduleService) commit(ctx context.Context, snapshot *GroupSnapshot, edit func(*models.Schedule, []models.ScheduleItem) ([]scheduler.Session, []scheduler.Session, error)) (*dto.ScheduleView, error) {
	groupID := snapshot.Group.ID
	var (
		saved *models.Schedule
		items []models.ScheduleItem
	)
	err := s.writer.InTx(ctx, groupID, func(tx *sqlx.Tx) error {
		current, currentItems, err := s.writer.Current(ctx, tx, groupID)
		if err != nil {
			return err
		}
		sessions, added, err := edit(current, currentItems)
		if err != nil {
			return err
		}
		if err := s.writer.CheckTeachers(ctx, snapshot, added); err != nil {
			return err
		}
		items = sessionsToItems(sessions)
		saved, err = s.writer.Overwrite(ctx, tx, current, groupID, models.ScheduleSourceManual, items)
		return err
	})
	if err != nil {
		var appErr *appErrors.Error
		if !errors.As(err, &appErr) {
			err = internalError(err, "failed to save schedule")
		}
		return nil, err
	}
	return scheduleView(groupID, saved, items), nil
}
