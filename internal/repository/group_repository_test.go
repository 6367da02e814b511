package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/timetable-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestGroupRepositoryList(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewGroupRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "name", "short_name", "faculty", "year", "created_at", "updated_at"}).
		AddRow("g-1", "Applied Informatics 21", "AI-21", "IT", 2, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, short_name, faculty, year, created_at, updated_at FROM groups WHERE 1=1 AND (LOWER(name) LIKE $1 OR LOWER(short_name) LIKE $1) ORDER BY name ASC LIMIT 20 OFFSET 0")).
		WithArgs("%ai%").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM groups WHERE 1=1")).
		WithArgs("%ai%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	groups, total, err := repo.List(context.Background(), models.GroupFilter{Search: "AI"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, groups, 1)
	assert.Equal(t, "AI-21", groups[0].ShortName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGroupRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewGroupRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO groups")).
		WithArgs(sqlmock.AnyArg(), "Physics 1", "PH-1", "", 1, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	group := &models.Group{Name: "Physics 1", ShortName: "PH-1"}
	require.NoError(t, repo.Create(context.Background(), group))
	assert.NotEmpty(t, group.ID)
	assert.Equal(t, 1, group.Year)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGroupRepositoryExistsByName(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewGroupRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM groups WHERE (LOWER(name) = LOWER($1) OR LOWER(short_name) = LOWER($2)) AND id <> $3 LIMIT 1")).
		WithArgs("Physics 1", "PH-1", "g-1").
		WillReturnError(sql.ErrNoRows)

	exists, err := repo.ExistsByName(context.Background(), "Physics 1", "PH-1", "g-1")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGroupRepositoryDeleteNotFound(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewGroupRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM groups WHERE id = $1")).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGroupRepositoryCountDependencies(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewGroupRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM subjects WHERE group_id = $1")).
		WithArgs("g-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM schedules WHERE group_id = $1")).
		WithArgs("g-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	subjects, err := repo.CountSubjects(context.Background(), "g-1")
	require.NoError(t, err)
	schedules, err := repo.CountSchedules(context.Background(), "g-1")
	require.NoError(t, err)
	assert.Equal(t, 3, subjects)
	assert.Equal(t, 0, schedules)
	assert.NoError(t, mock.ExpectationsWereMet())
}
