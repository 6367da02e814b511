package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-api/internal/dto"
	"github.com/noah-isme/timetable-api/internal/models"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
)

type savedScheduleRepoStub struct {
	items []models.SavedSchedule
}

func (r *savedScheduleRepoStub) List(ctx context.Context, groupID string) ([]models.SavedSchedule, error) {
	out := make([]models.SavedSchedule, 0)
	for i := len(r.items) - 1; i >= 0; i-- {
		if groupID == "" || r.items[i].GroupID == groupID {
			out = append(out, r.items[i])
		}
	}
	return out, nil
}

func (r *savedScheduleRepoStub) FindByID(ctx context.Context, id string) (*models.SavedSchedule, error) {
	for _, item := range r.items {
		if item.ID == id {
			cp := item
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *savedScheduleRepoStub) Create(ctx context.Context, saved *models.SavedSchedule) error {
	saved.ID = fmt.Sprintf("saved-%d", len(r.items)+1)
	r.items = append(r.items, *saved)
	return nil
}

func (r *savedScheduleRepoStub) Delete(ctx context.Context, id string) error {
	for i, item := range r.items {
		if item.ID == id {
			r.items = append(r.items[:i], r.items[i+1:]...)
			return nil
		}
	}
	return sql.ErrNoRows
}

func newSavedScheduleFixture(t *testing.T) (*catalogFixture, *savedScheduleRepoStub, *SavedScheduleService) {
	t.Helper()
	f := newCatalogFixture(t)
	repo := &savedScheduleRepoStub{}
	return f, repo, NewSavedScheduleService(repo, f.snapshots, f.writer, validator.New(), zap.NewNop())
}

func TestSavedScheduleServiceCreateAndList(t *testing.T) {
	_, repo, svc := newSavedScheduleFixture(t)

	saved, err := svc.Create(context.Background(), dto.CreateSavedScheduleRequest{
		GroupID: "g1",
		Name:    "draft",
		Items:   []dto.ScheduleItemPayload{{SubjectID: "math", Day: 0, Period: 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, "saved-1", saved.ID)
	assert.JSONEq(t, `[{"subjectId":"math","day":0,"period":1}]`, string(saved.Items))

	_, err = svc.Create(context.Background(), dto.CreateSavedScheduleRequest{GroupID: "g1", Name: "second", Items: []dto.ScheduleItemPayload{}})
	require.NoError(t, err)

	list, err := svc.List(context.Background(), dto.SavedScheduleQuery{GroupID: "g1"})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "second", list[0].Name)

	_, err = svc.Create(context.Background(), dto.CreateSavedScheduleRequest{GroupID: "missing", Name: "x", Items: []dto.ScheduleItemPayload{}})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	_, err = svc.Create(context.Background(), dto.CreateSavedScheduleRequest{GroupID: "g1"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	assert.Len(t, repo.items, 2)
}

func TestSavedScheduleServiceRestore(t *testing.T) {
	f, _, svc := newSavedScheduleFixture(t)
	saved, err := svc.Create(context.Background(), dto.CreateSavedScheduleRequest{
		GroupID: "g1",
		Name:    "monday heavy",
		Items: []dto.ScheduleItemPayload{
			{SubjectID: "math", Day: 0, Period: 1},
			{SubjectID: "art", Day: 0, Period: 2},
		},
	})
	require.NoError(t, err)

	f.expectCommit()
	view, err := svc.Restore(context.Background(), saved.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, view.Version)
	assert.Equal(t, string(models.ScheduleSourceRestored), view.Source)
	assert.Len(t, view.Items, 2)
	assert.Contains(t, string(f.schedules.versions["g1"][0].Meta), saved.ID)

	_, err = svc.Restore(context.Background(), "missing")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestSavedScheduleServiceRestoreRejectsInvalidSnapshot(t *testing.T) {
	f, _, svc := newSavedScheduleFixture(t)
	saved, err := svc.Create(context.Background(), dto.CreateSavedScheduleRequest{
		GroupID: "g1",
		Name:    "too much art",
		Items: []dto.ScheduleItemPayload{
			{SubjectID: "art", Day: 0, Period: 1},
			{SubjectID: "art", Day: 1, Period: 1},
			{SubjectID: "art", Day: 2, Period: 1},
		},
	})
	require.NoError(t, err)

	_, err = svc.Restore(context.Background(), saved.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrConflict)
	assert.Empty(t, f.schedules.versions)
}

func TestSavedScheduleServiceDelete(t *testing.T) {
	_, repo, svc := newSavedScheduleFixture(t)
	repo.items = []models.SavedSchedule{{ID: "s1", GroupID: "g1", Name: "old"}}

	require.NoError(t, svc.Delete(context.Background(), "s1"))
	assert.Empty(t, repo.items)
	assert.ErrorIs(t, svc.Delete(context.Background(), "s1"), appErrors.ErrNotFound)
}
