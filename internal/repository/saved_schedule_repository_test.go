package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/timetable-api/internal/models"
)

func TestSavedScheduleRepositoryListByGroup(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSavedScheduleRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, group_id, name, items, created_at FROM saved_schedules WHERE group_id = $1 ORDER BY created_at DESC")).
		WithArgs("g-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "group_id", "name", "items", "created_at"}).
			AddRow("sv-1", "g-1", "before exams", []byte(`[{"subjectId":"s-1","day":0,"period":1}]`), time.Now()))

	list, err := repo.List(context.Background(), "g-1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "before exams", list[0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSavedScheduleRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSavedScheduleRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO saved_schedules")).
		WithArgs(sqlmock.AnyArg(), "g-1", "draft", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	saved := &models.SavedSchedule{GroupID: "g-1", Name: "draft"}
	require.NoError(t, repo.Create(context.Background(), saved))
	assert.NotEmpty(t, saved.ID)
	assert.Equal(t, "[]", string(saved.Items))
	assert.NoError(t, mock.ExpectationsWereMet())
}
