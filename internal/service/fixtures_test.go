package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/timetable-api/internal/models"
	"github.com/noah-isme/timetable-api/internal/scheduler"
)

func strPtr(v string) *string { return &v }

type groupRepoStub struct {
	items     map[string]*models.Group
	subjects  map[string]int
	schedules map[string]int
	taken     map[string]string
	deleted   []string
	listErr   error
}

func newGroupRepoStub(groups ...models.Group) *groupRepoStub {
	repo := &groupRepoStub{items: map[string]*models.Group{}, subjects: map[string]int{}, schedules: map[string]int{}, taken: map[string]string{}}
	for i := range groups {
		g := groups[i]
		repo.items[g.ID] = &g
		repo.taken[strings.ToLower(g.Name)] = g.ID
	}
	return repo
}

func (r *groupRepoStub) List(ctx context.Context, filter models.GroupFilter) ([]models.Group, int, error) {
	if r.listErr != nil {
		return nil, 0, r.listErr
	}
	out := make([]models.Group, 0, len(r.items))
	for _, g := range r.items {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, len(out), nil
}

func (r *groupRepoStub) FindByID(ctx context.Context, id string) (*models.Group, error) {
	if g, ok := r.items[id]; ok {
		cp := *g
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (r *groupRepoStub) ExistsByName(ctx context.Context, name, shortName, excludeID string) (bool, error) {
	owner, ok := r.taken[strings.ToLower(name)]
	return ok && owner != excludeID, nil
}

func (r *groupRepoStub) Create(ctx context.Context, group *models.Group) error {
	group.ID = fmt.Sprintf("group-%d", len(r.items)+1)
	group.CreatedAt = time.Now()
	group.UpdatedAt = group.CreatedAt
	cp := *group
	r.items[group.ID] = &cp
	r.taken[strings.ToLower(group.Name)] = group.ID
	return nil
}

func (r *groupRepoStub) Update(ctx context.Context, group *models.Group) error {
	if _, ok := r.items[group.ID]; !ok {
		return sql.ErrNoRows
	}
	cp := *group
	r.items[group.ID] = &cp
	return nil
}

func (r *groupRepoStub) Delete(ctx context.Context, id string) error {
	if _, ok := r.items[id]; !ok {
		return sql.ErrNoRows
	}
	delete(r.items, id)
	r.deleted = append(r.deleted, id)
	return nil
}

func (r *groupRepoStub) CountSubjects(ctx context.Context, id string) (int, error) {
	return r.subjects[id], nil
}

func (r *groupRepoStub) CountSchedules(ctx context.Context, id string) (int, error) {
	return r.schedules[id], nil
}

type teacherRepoStub struct {
	items    map[string]*models.Teacher
	subjects map[string]int
	deleted  []string
}

func newTeacherRepoStub(teachers ...models.Teacher) *teacherRepoStub {
	repo := &teacherRepoStub{items: map[string]*models.Teacher{}, subjects: map[string]int{}}
	for i := range teachers {
		t := teachers[i]
		repo.items[t.ID] = &t
	}
	return repo
}

func (r *teacherRepoStub) List(ctx context.Context, filter models.TeacherFilter) ([]models.Teacher, int, error) {
	out := make([]models.Teacher, 0, len(r.items))
	for _, t := range r.items {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullName < out[j].FullName })
	return out, len(out), nil
}

func (r *teacherRepoStub) FindByID(ctx context.Context, id string) (*models.Teacher, error) {
	if t, ok := r.items[id]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (r *teacherRepoStub) FindByIDs(ctx context.Context, ids []string) ([]models.Teacher, error) {
	out := make([]models.Teacher, 0, len(ids))
	for _, id := range ids {
		if t, ok := r.items[id]; ok {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (r *teacherRepoStub) Create(ctx context.Context, teacher *models.Teacher) error {
	teacher.ID = fmt.Sprintf("teacher-%d", len(r.items)+1)
	cp := *teacher
	r.items[teacher.ID] = &cp
	return nil
}

func (r *teacherRepoStub) Update(ctx context.Context, teacher *models.Teacher) error {
	cp := *teacher
	r.items[teacher.ID] = &cp
	return nil
}

func (r *teacherRepoStub) Delete(ctx context.Context, id string) error {
	delete(r.items, id)
	r.deleted = append(r.deleted, id)
	return nil
}

func (r *teacherRepoStub) CountSubjects(ctx context.Context, id string) (int, error) {
	return r.subjects[id], nil
}

type subjectRepoStub struct {
	items   []models.Subject
	deleted []string
}

func (r *subjectRepoStub) List(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, int, error) {
	out := make([]models.Subject, 0, len(r.items))
	for _, s := range r.items {
		if filter.GroupID != "" && s.GroupID != filter.GroupID {
			continue
		}
		out = append(out, s)
	}
	return out, len(out), nil
}

func (r *subjectRepoStub) ListByGroup(ctx context.Context, groupID string) ([]models.Subject, error) {
	out, _, err := r.List(ctx, models.SubjectFilter{GroupID: groupID})
	return out, err
}

func (r *subjectRepoStub) FindByID(ctx context.Context, id string) (*models.Subject, error) {
	for _, s := range r.items {
		if s.ID == id {
			cp := s
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *subjectRepoStub) Create(ctx context.Context, subject *models.Subject) error {
	subject.ID = fmt.Sprintf("subject-%d", len(r.items)+1)
	r.items = append(r.items, *subject)
	return nil
}

func (r *subjectRepoStub) Update(ctx context.Context, subject *models.Subject) error {
	for i := range r.items {
		if r.items[i].ID == subject.ID {
			r.items[i] = *subject
			return nil
		}
	}
	return sql.ErrNoRows
}

func (r *subjectRepoStub) Delete(ctx context.Context, id string) error {
	for i := range r.items {
		if r.items[i].ID == id {
			r.items = append(r.items[:i], r.items[i+1:]...)
			r.deleted = append(r.deleted, id)
			return nil
		}
	}
	return sql.ErrNoRows
}

// scheduleRepoStub keeps versions in memory. Transactions come from sqlmock
// so commit and rollback can be asserted. Slots busy for teachers are the
// busy list plus the latest versions of other groups.
type scheduleRepoStub struct {
	mu            sync.Mutex
	db            *sqlx.DB
	subjects      *subjectRepoStub
	versions      map[string][]models.Schedule
	items         map[string][]models.ScheduleItem
	busy          []models.TeacherBusySlot
	locked        []string
	teacherLocks  int
	// onTeacherLock runs once when the teacher lock is next taken.
	onTeacherLock func()
	seq           int
	writeErr      error
}

func newScheduleRepoStub(t *testing.T) (*scheduleRepoStub, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &scheduleRepoStub{
		db:       sqlx.NewDb(db, "sqlmock"),
		versions: map[string][]models.Schedule{},
		items:    map[string][]models.ScheduleItem{},
	}, mock
}

func (r *scheduleRepoStub) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return r.db.BeginTxx(ctx, opts)
}

func (r *scheduleRepoStub) LockGroup(ctx context.Context, exec sqlx.ExtContext, groupID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.locked = append(r.locked, groupID)
	return nil
}

func (r *scheduleRepoStub) LockTeachers(ctx context.Context, exec sqlx.ExtContext) error {
	r.mu.Lock()
	r.teacherLocks++
	hook := r.onTeacherLock
	r.onTeacherLock = nil
	r.mu.Unlock()
	if hook != nil {
		hook()
	}
	return nil
}

func (r *scheduleRepoStub) CreateVersioned(ctx context.Context, exec sqlx.ExtContext, schedule *models.Schedule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.writeErr != nil {
		return r.writeErr
	}
	r.seq++
	schedule.ID = fmt.Sprintf("schedule-%d", r.seq)
	schedule.Version = len(r.versions[schedule.GroupID]) + 1
	if schedule.Name == "" {
		schedule.Name = models.DefaultScheduleName
	}
	r.versions[schedule.GroupID] = append(r.versions[schedule.GroupID], *schedule)
	return nil
}

func (r *scheduleRepoStub) Latest(ctx context.Context, exec sqlx.ExtContext, groupID string) (*models.Schedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	versions := r.versions[groupID]
	if len(versions) == 0 {
		return nil, sql.ErrNoRows
	}
	latest := versions[len(versions)-1]
	return &latest, nil
}

func (r *scheduleRepoStub) ListByGroup(ctx context.Context, groupID string) ([]models.Schedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	versions := r.versions[groupID]
	out := make([]models.Schedule, 0, len(versions))
	for i := len(versions) - 1; i >= 0; i-- {
		out = append(out, versions[i])
	}
	return out, nil
}

func (r *scheduleRepoStub) FindByID(ctx context.Context, id string) (*models.Schedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, versions := range r.versions {
		for _, v := range versions {
			if v.ID == id {
				cp := v
				return &cp, nil
			}
		}
	}
	return nil, sql.ErrNoRows
}

func (r *scheduleRepoStub) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for group, versions := range r.versions {
		for i, v := range versions {
			if v.ID == id {
				r.versions[group] = append(versions[:i], versions[i+1:]...)
				delete(r.items, id)
				return nil
			}
		}
	}
	return sql.ErrNoRows
}

func (r *scheduleRepoStub) Touch(ctx context.Context, exec sqlx.ExtContext, id string, source models.ScheduleSource, meta types.JSONText) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for group, versions := range r.versions {
		for i := range versions {
			if versions[i].ID == id {
				r.versions[group][i].Source = source
				return nil
			}
		}
	}
	return sql.ErrNoRows
}

func (r *scheduleRepoStub) ListItems(ctx context.Context, exec sqlx.ExtContext, scheduleID string) ([]models.ScheduleItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.ScheduleItem(nil), r.items[scheduleID]...), nil
}

func (r *scheduleRepoStub) ReplaceItems(ctx context.Context, exec sqlx.ExtContext, scheduleID string, items []models.ScheduleItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.writeErr != nil {
		return r.writeErr
	}
	stored := make([]models.ScheduleItem, len(items))
	for i, item := range items {
		item.ScheduleID = scheduleID
		stored[i] = item
	}
	r.items[scheduleID] = stored
	return nil
}

func (r *scheduleRepoStub) TeacherBusySlots(ctx context.Context, teacherIDs []string, excludeGroupID string) ([]models.TeacherBusySlot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := append([]models.TeacherBusySlot(nil), r.busy...)
	if r.subjects == nil {
		return out, nil
	}
	wanted := make(map[string]bool, len(teacherIDs))
	for _, id := range teacherIDs {
		wanted[id] = true
	}
	teacherOf := make(map[string]string)
	for _, subject := range r.subjects.items {
		teacherOf[subject.ID] = subject.TeacherIDValue()
	}
	for groupID, versions := range r.versions {
		if groupID == excludeGroupID || len(versions) == 0 {
			continue
		}
		for _, item := range r.items[versions[len(versions)-1].ID] {
			if teacher := teacherOf[item.SubjectID]; wanted[teacher] {
				out = append(out, models.TeacherBusySlot{TeacherID: teacher, GroupID: groupID, Day: item.Day, Period: item.Period})
			}
		}
	}
	return out, nil
}

// seed stores items as a new version of the group.
func (r *scheduleRepoStub) seed(groupID string, sessions ...scheduler.Session) *models.Schedule {
	schedule := &models.Schedule{GroupID: groupID, Source: models.ScheduleSourceManual}
	_ = r.CreateVersioned(context.Background(), nil, schedule)
	_ = r.ReplaceItems(context.Background(), nil, schedule.ID, sessionsToItems(sessions))
	return schedule
}

type catalogFixture struct {
	groups    *groupRepoStub
	teachers  *teacherRepoStub
	subjects  *subjectRepoStub
	schedules *scheduleRepoStub
	mock      sqlmock.Sqlmock
	snapshots *SnapshotLoader
	writer    *ScheduleWriter
}

// newCatalogFixture builds group g1 with math (3h, teacher t1) and art
// (2h, teacher t2) on the default 5x5 grid.
func newCatalogFixture(t *testing.T) *catalogFixture {
	t.Helper()
	schedules, mock := newScheduleRepoStub(t)
	f := &catalogFixture{
		groups: newGroupRepoStub(models.Group{ID: "g1", Name: "Class 1A", ShortName: "1A"}, models.Group{ID: "g2", Name: "Class 1B", ShortName: "1B"}),
		teachers: newTeacherRepoStub(
			models.Teacher{ID: "t1", FullName: "Ada Lovelace", ShortName: "AL"},
			models.Teacher{ID: "t2", FullName: "Grace Hopper", ShortName: "GH"},
		),
		subjects: &subjectRepoStub{items: []models.Subject{
			{ID: "math", GroupID: "g1", TeacherID: strPtr("t1"), Name: "Math", HoursPerWeek: 3},
			{ID: "art", GroupID: "g1", TeacherID: strPtr("t2"), Name: "Art", HoursPerWeek: 2},
		}},
		schedules: schedules,
		mock:      mock,
	}
	schedules.subjects = f.subjects
	f.snapshots = NewSnapshotLoader(f.groups, f.subjects, f.teachers, f.schedules, SnapshotConfig{CrossGroupTeachers: true})
	f.writer = NewScheduleWriter(f.schedules, nil, nil, ScheduleWriterConfig{CrossGroupTeachers: true})
	return f
}

// expectCommit registers one successful transaction on the mock.
func (f *catalogFixture) expectCommit() {
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
}

func (f *catalogFixture) expectRollback() {
	f.mock.ExpectBegin()
	f.mock.ExpectRollback()
}
