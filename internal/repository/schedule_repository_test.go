package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/timetable-api/internal/models"
)

func TestScheduleRepositoryCreateVersioned(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewScheduleRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(MAX(version), 0) + 1 FROM schedules WHERE group_id = $1")).
		WithArgs("g-1").
		WillReturnRows(sqlmock.NewRows([]string{"next"}).AddRow(3))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO schedules")).
		WithArgs(sqlmock.AnyArg(), "g-1", 3, models.DefaultScheduleName, string(models.ScheduleSourceGenerated), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	schedule := &models.Schedule{GroupID: "g-1"}
	require.NoError(t, repo.CreateVersioned(context.Background(), nil, schedule))
	assert.Equal(t, 3, schedule.Version)
	assert.Equal(t, types.JSONText(`{}`), schedule.Meta)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleRepositoryCreateVersionedRequiresGroup(t *testing.T) {
	db, _, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewScheduleRepository(db)

	assert.Error(t, repo.CreateVersioned(context.Background(), nil, &models.Schedule{}))
	assert.Error(t, repo.CreateVersioned(context.Background(), nil, nil))
}

func TestScheduleRepositoryLatestNotFound(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewScheduleRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM schedules WHERE group_id = $1 ORDER BY version DESC LIMIT 1")).
		WithArgs("g-1").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Latest(context.Background(), nil, "g-1")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleRepositoryReplaceItemsInTransaction(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewScheduleRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock(hashtext($1))")).
		WithArgs("g-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM schedule_items WHERE schedule_id = $1")).
		WithArgs("sch-1").
		WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO schedule_items")).
		WithArgs(sqlmock.AnyArg(), "sch-1", "s-1", 0, 1, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO schedule_items")).
		WithArgs(sqlmock.AnyArg(), "sch-1", "s-2", 0, 2, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	tx, err := repo.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	require.NoError(t, repo.LockGroup(context.Background(), tx, "g-1"))
	items := []models.ScheduleItem{{SubjectID: "s-1", Day: 0, Period: 1}, {SubjectID: "s-2", Day: 0, Period: 2}}
	require.NoError(t, repo.ReplaceItems(context.Background(), tx, "sch-1", items))
	require.NoError(t, tx.Commit())

	assert.NotEmpty(t, items[0].ID)
	assert.Equal(t, "sch-1", items[1].ScheduleID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleRepositoryTeacherBusySlots(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewScheduleRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT s.teacher_id, sch.group_id, si.day, si.period FROM schedule_items si")).
		WithArgs(sqlmock.AnyArg(), "g-1").
		WillReturnRows(sqlmock.NewRows([]string{"teacher_id", "group_id", "day", "period"}).AddRow("t-1", "g-2", 1, 3))

	slots, err := repo.TeacherBusySlots(context.Background(), []string{"t-1"}, "g-1")
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, models.TeacherBusySlot{TeacherID: "t-1", GroupID: "g-2", Day: 1, Period: 3}, slots[0])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleRepositoryListItems(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewScheduleRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, schedule_id, subject_id, day, period, created_at FROM schedule_items WHERE schedule_id = $1 ORDER BY day ASC, period ASC")).
		WithArgs("sch-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "schedule_id", "subject_id", "day", "period", "created_at"}).
			AddRow("i-1", "sch-1", "s-1", 0, 1, now))

	items, err := repo.ListItems(context.Background(), nil, "sch-1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 1, items[0].Period)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleRepositoryLockTeachers(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewScheduleRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock(hashtext($1))")).
		WithArgs("schedule:teachers").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	tx, err := repo.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	require.NoError(t, repo.LockTeachers(context.Background(), tx))
	require.NoError(t, tx.Rollback())
	assert.NoError(t, mock.ExpectationsWereMet())
}
