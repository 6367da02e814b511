package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/noah-isme/timetable-api/internal/models"
)

// SavedScheduleRepository stores named timetable snapshots.
type SavedScheduleRepository struct {
	db *sqlx.DB
}

// NewSavedScheduleRepository constructs repository.
func NewSavedScheduleRepository(db *sqlx.DB) *SavedScheduleRepository {
	return &SavedScheduleRepository{db: db}
}

// List returns snapshots newest first, optionally for one group.
func (r *SavedScheduleRepository) List(ctx context.Context, groupID string) ([]models.SavedSchedule, error) {
	query := `SELECT id, group_id, name, items, created_at FROM saved_schedules`
	var args []interface{}
	if groupID != "" {
		query += ` WHERE group_id = $1`
		args = append(args, groupID)
	}
	query += ` ORDER BY created_at DESC`

	var items []models.SavedSchedule
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("list saved schedules: %w", err)
	}
	return items, nil
}

// FindByID loads a snapshot.
func (r *SavedScheduleRepository) FindByID(ctx context.Context, id string) (*models.SavedSchedule, error) {
	var saved models.SavedSchedule
	if err := r.db.GetContext(ctx, &saved, `SELECT id, group_id, name, items, created_at FROM saved_schedules WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &saved, nil
}

// Create persists a snapshot.
func (r *SavedScheduleRepository) Create(ctx context.Context, saved *models.SavedSchedule) error {
	if saved.ID == "" {
		saved.ID = uuid.NewString()
	}
	if len(saved.Items) == 0 {
		saved.Items = types.JSONText(`[]`)
	}
	if saved.CreatedAt.IsZero() {
		saved.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO saved_schedules (id, group_id, name, items, created_at) VALUES (:id, :group_id, :name, :items, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, saved); err != nil {
		return fmt.Errorf("create saved schedule: %w", err)
	}
	return nil
}

// Delete removes a snapshot.
func (r *SavedScheduleRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM saved_schedules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete saved schedule: %w", err)
	}
	return expectAffected(result, "delete saved schedule")
}
