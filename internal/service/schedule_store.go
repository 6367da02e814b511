package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-api/internal/dto"
	"github.com/noah-isme/timetable-api/internal/models"
	"github.com/noah-isme/timetable-api/internal/scheduler"
)

type scheduleGroupReader interface {
	FindByID(ctx context.Context, id string) (*models.Group, error)
}

type scheduleSubjectLister interface {
	ListByGroup(ctx context.Context, groupID string) ([]models.Subject, error)
}

type scheduleTeacherFinder interface {
	FindByIDs(ctx context.Context, ids []string) ([]models.Teacher, error)
}

type scheduleRepository interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
	LockGroup(ctx context.Context, exec sqlx.ExtContext, groupID string) error
	CreateVersioned(ctx context.Context, exec sqlx.ExtContext, schedule *models.Schedule) error
	Latest(ctx context.Context, exec sqlx.ExtContext, groupID string) (*models.Schedule, error)
	ListByGroup(ctx context.Context, groupID string) ([]models.Schedule, error)
	FindByID(ctx context.Context, id string) (*models.Schedule, error)
	Delete(ctx context.Context, id string) error
	Touch(ctx context.Context, exec sqlx.ExtContext, id string, source models.ScheduleSource, meta types.JSONText) error
	ListItems(ctx context.Context, exec sqlx.ExtContext, scheduleID string) ([]models.ScheduleItem, error)
	ReplaceItems(ctx context.Context, exec sqlx.ExtContext, scheduleID string, items []models.ScheduleItem) error
	TeacherBusySlots(ctx context.Context, teacherIDs []string, excludeGroupID string) ([]models.TeacherBusySlot, error)
	LockTeachers(ctx context.Context, exec sqlx.ExtContext) error
}

// GroupSnapshot is everything the engine needs to know about one group.
type GroupSnapshot struct {
	Group    *models.Group
	Subjects []models.Subject
	Teachers map[string]models.Teacher
	Input    scheduler.Input
}

// Checker returns a constraint checker over the snapshot.
func (s *GroupSnapshot) Checker() *scheduler.Checker {
	return scheduler.NewChecker(s.Input.Grid, s.Input.Teachers)
}

// SubjectIndex maps subject ids to engine subjects.
func (s *GroupSnapshot) SubjectIndex() map[string]scheduler.Subject {
	index := make(map[string]scheduler.Subject, len(s.Input.Subjects))
	for _, subject := range s.Input.Subjects {
		index[subject.ID] = subject
	}
	return index
}

// Replay validates sessions against the snapshot.
func (s *GroupSnapshot) Replay(sessions []scheduler.Session) (*scheduler.Occupancy, error) {
	occ, err := scheduler.Replay(s.Checker(), s.SubjectIndex(), sessions, s.Input.Reserved)
	if err != nil {
		return nil, engineError(err)
	}
	return occ, nil
}

// Restore loads stored sessions as they are. Only what an edit adds is
// checked afterwards.
func (s *GroupSnapshot) Restore(sessions []scheduler.Session) *scheduler.Occupancy {
	return scheduler.Restore(s.Input.Grid, s.SubjectIndex(), sessions, s.Input.Reserved)
}

// TeacherIDs lists the distinct teachers of the group's subjects.
func (s *GroupSnapshot) TeacherIDs() []string {
	ids := make([]string, 0, len(s.Teachers))
	seen := make(map[string]struct{})
	for _, subject := range s.Input.Subjects {
		if subject.TeacherID == "" {
			continue
		}
		if _, ok := seen[subject.TeacherID]; ok {
			continue
		}
		seen[subject.TeacherID] = struct{}{}
		ids = append(ids, subject.TeacherID)
	}
	return ids
}

// SnapshotConfig shapes snapshot loading.
type SnapshotConfig struct {
	Grid               scheduler.Grid
	CrossGroupTeachers bool
}

// SnapshotLoader assembles engine input from the catalog tables.
type SnapshotLoader struct {
	groups    scheduleGroupReader
	subjects  scheduleSubjectLister
	teachers  scheduleTeacherFinder
	schedules scheduleRepository
	cfg       SnapshotConfig
}

// NewSnapshotLoader wires the readers used to build engine input.
func NewSnapshotLoader(groups scheduleGroupReader, subjects scheduleSubjectLister, teachers scheduleTeacherFinder, schedules scheduleRepository, cfg SnapshotConfig) *SnapshotLoader {
	if cfg.Grid.Days <= 0 || cfg.Grid.Periods <= 0 {
		cfg.Grid = scheduler.DefaultGrid()
	}
	return &SnapshotLoader{groups: groups, subjects: subjects, teachers: teachers, schedules: schedules, cfg: cfg}
}

// Grid returns the configured weekly grid.
func (l *SnapshotLoader) Grid() scheduler.Grid {
	return l.cfg.Grid
}

// Load reads the group, its subjects and their teachers. When cross group
// teachers are enabled, slots the teachers use in other groups' current
// schedules become reservations.
func (l *SnapshotLoader) Load(ctx context.Context, groupID string) (*GroupSnapshot, error) {
	group, err := l.groups.FindByID(ctx, groupID)
	if err != nil {
		return nil, lookupError(err, "group")
	}

	subjects, err := l.subjects.ListByGroup(ctx, groupID)
	if err != nil {
		return nil, internalError(err, "failed to load subjects")
	}

	teacherIDs := make([]string, 0)
	seen := make(map[string]struct{})
	for _, subject := range subjects {
		id := subject.TeacherIDValue()
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		teacherIDs = append(teacherIDs, id)
	}

	teachers := make(map[string]models.Teacher, len(teacherIDs))
	if len(teacherIDs) > 0 {
		rows, err := l.teachers.FindByIDs(ctx, teacherIDs)
		if err != nil {
			return nil, internalError(err, "failed to load teachers")
		}
		for _, t := range rows {
			teachers[t.ID] = t
		}
	}

	input := scheduler.Input{
		Grid:     l.cfg.Grid,
		Subjects: make([]scheduler.Subject, 0, len(subjects)),
		Teachers: make(map[string]scheduler.Teacher, len(teachers)),
	}
	for _, subject := range subjects {
		input.Subjects = append(input.Subjects, scheduler.Subject{
			ID:             subject.ID,
			Name:           subject.Name,
			WeeklyHours:    subject.HoursPerWeek,
			TeacherID:      subject.TeacherIDValue(),
			RestrictedDays: models.IntDays(subject.RestrictedDays),
		})
	}
	for id, t := range teachers {
		input.Teachers[id] = scheduler.Teacher{ID: id, RestrictedDays: models.IntDays(t.RestrictedDays)}
	}

	if l.cfg.CrossGroupTeachers && len(teacherIDs) > 0 {
		busy, err := l.schedules.TeacherBusySlots(ctx, teacherIDs, groupID)
		if err != nil {
			return nil, internalError(err, "failed to load teacher availability")
		}
		input.Reserved = reservations(l.cfg.Grid, busy)
	}

	return &GroupSnapshot{Group: group, Subjects: subjects, Teachers: teachers, Input: input}, nil
}

// reservations drops slots outside the grid, which can exist when the grid
// shrank after other schedules were stored.
func reservations(grid scheduler.Grid, busy []models.TeacherBusySlot) map[string][]scheduler.Slot {
	if len(busy) == 0 {
		return nil
	}
	out := make(map[string][]scheduler.Slot)
	for _, b := range busy {
		if !grid.IsValidSlot(b.Day, b.Period) {
			continue
		}
		out[b.TeacherID] = append(out[b.TeacherID], scheduler.Slot{Day: b.Day, Period: b.Period})
	}
	return out
}

// ScheduleWriterConfig shapes schedule writes.
type ScheduleWriterConfig struct {
	// CrossGroupTeachers serializes all schedule writes so teacher slots
	// read from other groups stay valid until commit.
	CrossGroupTeachers bool
}

const teacherLockKey = "schedule:teachers"

// ScheduleWriter persists schedule versions. Writes for one group are
// serialized by an in-process lock and a database advisory lock.
type ScheduleWriter struct {
	repo   scheduleRepository
	cache  *CacheService
	logger *zap.Logger
	locks  *keyedMutex
	cfg    ScheduleWriterConfig
}

// NewScheduleWriter constructs the writer shared by every schedule mutating service.
func NewScheduleWriter(repo scheduleRepository, cache *CacheService, logger *zap.Logger, cfg ScheduleWriterConfig) *ScheduleWriter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleWriter{repo: repo, cache: cache, logger: logger, locks: newKeyedMutex(), cfg: cfg}
}

// InTx runs fn in a transaction holding the group's locks and drops the
// group's cached schedule after a successful commit. With cross group
// teachers enabled the teacher lock is taken first.
func (w *ScheduleWriter) InTx(ctx context.Context, groupID string, fn func(tx *sqlx.Tx) error) (err error) {
	if w.cfg.CrossGroupTeachers {
		unlockTeachers := w.locks.Lock(teacherLockKey)
		defer unlockTeachers()
	}
	unlock := w.locks.Lock(groupID)
	defer unlock()

	tx, err := w.repo.BeginTxx(ctx, nil)
	if err != nil {
		return internalError(err, "failed to start transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if w.cfg.CrossGroupTeachers {
		if err = w.repo.LockTeachers(ctx, tx); err != nil {
			return internalError(err, "failed to lock teacher schedules")
		}
	}
	if err = w.repo.LockGroup(ctx, tx, groupID); err != nil {
		return internalError(err, "failed to lock group schedule")
	}
	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return internalError(err, "failed to commit schedule")
	}

	w.Invalidate(ctx, groupID)
	return nil
}

// CheckTeachers reads again where the group's teachers teach other groups
// and rejects sessions that collide with those slots. Call it inside InTx.
func (w *ScheduleWriter) CheckTeachers(ctx context.Context, snapshot *GroupSnapshot, sessions []scheduler.Session) error {
	if !w.cfg.CrossGroupTeachers || len(sessions) == 0 {
		return nil
	}
	teacherIDs := snapshot.TeacherIDs()
	if len(teacherIDs) == 0 {
		return nil
	}
	busy, err := w.repo.TeacherBusySlots(ctx, teacherIDs, snapshot.Group.ID)
	if err != nil {
		return internalError(err, "failed to load teacher availability")
	}
	taken := reservations(snapshot.Input.Grid, busy)
	if len(taken) == 0 {
		return nil
	}

	index := snapshot.SubjectIndex()
	for _, session := range sessions {
		subject, ok := index[session.SubjectID]
		if !ok || subject.TeacherID == "" {
			continue
		}
		for _, slot := range taken[subject.TeacherID] {
			if slot.Day == session.Day && slot.Period == session.Period {
				return engineError(&scheduler.PlacementError{
					Reason:    scheduler.ReasonTeacherBusy,
					SubjectID: subject.ID,
					Day:       session.Day,
					Period:    session.Period,
				})
			}
		}
	}
	return nil
}

// Invalidate drops the cached schedule views of a group.
func (w *ScheduleWriter) Invalidate(ctx context.Context, groupID string) {
	if err := w.cache.Invalidate(ctx, scheduleCacheKey(groupID)); err != nil {
		w.logger.Warn("failed to invalidate schedule cache", zap.String("group_id", groupID), zap.Error(err))
	}
}

// Current returns the latest version and its items, or a nil schedule when
// the group has none yet.
func (w *ScheduleWriter) Current(ctx context.Context, exec sqlx.ExtContext, groupID string) (*models.Schedule, []models.ScheduleItem, error) {
	schedule, err := w.repo.Latest(ctx, exec, groupID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, nil
		}
		return nil, nil, internalError(err, "failed to load schedule")
	}
	items, err := w.repo.ListItems(ctx, exec, schedule.ID)
	if err != nil {
		return nil, nil, internalError(err, "failed to load schedule items")
	}
	return schedule, items, nil
}

// CreateVersion stores items as a new version of the group schedule.
func (w *ScheduleWriter) CreateVersion(ctx context.Context, exec sqlx.ExtContext, groupID string, source models.ScheduleSource, meta types.JSONText, items []models.ScheduleItem) (*models.Schedule, error) {
	schedule := &models.Schedule{GroupID: groupID, Source: source, Meta: meta}
	if err := w.repo.CreateVersioned(ctx, exec, schedule); err != nil {
		return nil, internalError(err, "failed to create schedule version")
	}
	if err := w.repo.ReplaceItems(ctx, exec, schedule.ID, items); err != nil {
		return nil, internalError(err, "failed to store schedule items")
	}
	return schedule, nil
}

// Overwrite replaces the items of the latest version in place, creating the
// first version when the group has none.
func (w *ScheduleWriter) Overwrite(ctx context.Context, exec sqlx.ExtContext, current *models.Schedule, groupID string, source models.ScheduleSource, items []models.ScheduleItem) (*models.Schedule, error) {
	if current == nil {
		return w.CreateVersion(ctx, exec, groupID, source, nil, items)
	}
	if err := w.repo.Touch(ctx, exec, current.ID, source, current.Meta); err != nil {
		return nil, internalError(err, "failed to update schedule")
	}
	if err := w.repo.ReplaceItems(ctx, exec, current.ID, items); err != nil {
		return nil, internalError(err, "failed to store schedule items")
	}
	current.Source = source
	return current, nil
}

func scheduleCacheKey(groupID string) string {
	return "schedule:latest:" + groupID
}

func scheduleView(groupID string, schedule *models.Schedule, items []models.ScheduleItem) *dto.ScheduleView {
	view := &dto.ScheduleView{GroupID: groupID, Items: make([]dto.ScheduleItemPayload, 0, len(items))}
	if schedule != nil {
		view.ScheduleID = schedule.ID
		view.Version = schedule.Version
		view.Name = schedule.Name
		view.Source = string(schedule.Source)
	}
	sessions := itemsToSessions(items)
	scheduler.SortSessions(sessions)
	view.Items = append(view.Items, sessionsToPayload(sessions)...)
	return view
}
