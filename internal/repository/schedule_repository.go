package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"

	"github.com/noah-isme/timetable-api/internal/models"
)

// ScheduleRepository persists versioned group timetables and their items.
type ScheduleRepository struct {
	db *sqlx.DB
}

// NewScheduleRepository constructs repository.
func NewScheduleRepository(db *sqlx.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

const scheduleColumns = "id, group_id, version, name, source, meta, created_at, updated_at"

func (r *ScheduleRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// BeginTxx opens a transaction on the underlying database.
func (r *ScheduleRepository) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return r.db.BeginTxx(ctx, opts)
}

const teacherLockName = "schedule:teachers"

// LockGroup takes a transaction scoped advisory lock for the group.
func (r *ScheduleRepository) LockGroup(ctx context.Context, exec sqlx.ExtContext, groupID string) error {
	if _, err := r.exec(exec).ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, groupID); err != nil {
		return fmt.Errorf("lock group schedule: %w", err)
	}
	return nil
}

// LockTeachers takes the transaction scoped advisory lock shared by every
// schedule write that depends on teacher slots of other groups.
func (r *ScheduleRepository) LockTeachers(ctx context.Context, exec sqlx.ExtContext) error {
	if _, err := r.exec(exec).ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, teacherLockName); err != nil {
		return fmt.Errorf("lock teacher schedules: %w", err)
	}
	return nil
}

// CreateVersioned inserts a schedule assigning the next version for the group.
func (r *ScheduleRepository) CreateVersioned(ctx context.Context, exec sqlx.ExtContext, schedule *models.Schedule) error {
	if schedule == nil {
		return fmt.Errorf("schedule payload is nil")
	}
	if schedule.GroupID == "" {
		return fmt.Errorf("group_id is required")
	}
	if schedule.ID == "" {
		schedule.ID = uuid.NewString()
	}
	if schedule.Name == "" {
		schedule.Name = models.DefaultScheduleName
	}
	if schedule.Source == "" {
		schedule.Source = models.ScheduleSourceGenerated
	}
	if len(schedule.Meta) == 0 {
		schedule.Meta = types.JSONText(`{}`)
	}
	now := time.Now().UTC()
	if schedule.CreatedAt.IsZero() {
		schedule.CreatedAt = now
	}
	schedule.UpdatedAt = now

	target := r.exec(exec)

	const nextVersionQuery = `SELECT COALESCE(MAX(version), 0) + 1 FROM schedules WHERE group_id = $1`
	if err := sqlx.GetContext(ctx, target, &schedule.Version, nextVersionQuery, schedule.GroupID); err != nil {
		return fmt.Errorf("compute next schedule version: %w", err)
	}

	const insertQuery = `INSERT INTO schedules (id, group_id, version, name, source, meta, created_at, updated_at) VALUES (:id, :group_id, :version, :name, :source, :meta, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, target, insertQuery, schedule); err != nil {
		return fmt.Errorf("insert schedule: %w", err)
	}
	return nil
}

// Latest returns the highest version of a group's schedule.
func (r *ScheduleRepository) Latest(ctx context.Context, exec sqlx.ExtContext, groupID string) (*models.Schedule, error) {
	query := "SELECT " + scheduleColumns + " FROM schedules WHERE group_id = $1 ORDER BY version DESC LIMIT 1"
	var schedule models.Schedule
	if err := sqlx.GetContext(ctx, r.exec(exec), &schedule, query, groupID); err != nil {
		return nil, err
	}
	return &schedule, nil
}

// ListByGroup returns all versions of a group, newest first.
func (r *ScheduleRepository) ListByGroup(ctx context.Context, groupID string) ([]models.Schedule, error) {
	query := "SELECT " + scheduleColumns + " FROM schedules WHERE group_id = $1 ORDER BY version DESC"
	var schedules []models.Schedule
	if err := r.db.SelectContext(ctx, &schedules, query, groupID); err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	return schedules, nil
}

// FindByID loads a schedule by its identifier.
func (r *ScheduleRepository) FindByID(ctx context.Context, id string) (*models.Schedule, error) {
	var schedule models.Schedule
	if err := r.db.GetContext(ctx, &schedule, "SELECT "+scheduleColumns+" FROM schedules WHERE id = $1", id); err != nil {
		return nil, err
	}
	return &schedule, nil
}

// Delete removes a stored schedule version together with its items.
func (r *ScheduleRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM schedules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}
	return expectAffected(result, "delete schedule")
}

// Touch records an in-place edit of a schedule version.
func (r *ScheduleRepository) Touch(ctx context.Context, exec sqlx.ExtContext, id string, source models.ScheduleSource, meta types.JSONText) error {
	if len(meta) == 0 {
		meta = types.JSONText(`{}`)
	}
	result, err := r.exec(exec).ExecContext(ctx, `UPDATE schedules SET source = $1, meta = $2, updated_at = $3 WHERE id = $4`, source, meta, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("touch schedule: %w", err)
	}
	return expectAffected(result, "touch schedule")
}

// ListItems returns the lessons of a schedule ordered by day and period.
func (r *ScheduleRepository) ListItems(ctx context.Context, exec sqlx.ExtContext, scheduleID string) ([]models.ScheduleItem, error) {
	const query = `SELECT id, schedule_id, subject_id, day, period, created_at FROM schedule_items WHERE schedule_id = $1 ORDER BY day ASC, period ASC`
	var items []models.ScheduleItem
	if err := sqlx.SelectContext(ctx, r.exec(exec), &items, query, scheduleID); err != nil {
		return nil, fmt.Errorf("list schedule items: %w", err)
	}
	return items, nil
}

// ReplaceItems swaps every lesson of a schedule for the given set.
func (r *ScheduleRepository) ReplaceItems(ctx context.Context, exec sqlx.ExtContext, scheduleID string, items []models.ScheduleItem) error {
	target := r.exec(exec)
	if _, err := target.ExecContext(ctx, `DELETE FROM schedule_items WHERE schedule_id = $1`, scheduleID); err != nil {
		return fmt.Errorf("clear schedule items: %w", err)
	}
	if len(items) == 0 {
		return nil
	}

	now := time.Now().UTC()
	const insertQuery = `INSERT INTO schedule_items (id, schedule_id, subject_id, day, period, created_at) VALUES (:id, :schedule_id, :subject_id, :day, :period, :created_at)`
	for i := range items {
		item := items[i]
		if item.ID == "" {
			item.ID = uuid.NewString()
		}
		item.ScheduleID = scheduleID
		if item.CreatedAt.IsZero() {
			item.CreatedAt = now
		}
		if _, err := sqlx.NamedExecContext(ctx, target, insertQuery, item); err != nil {
			return fmt.Errorf("insert schedule item: %w", err)
		}
		items[i] = item
	}
	return nil
}

// TeacherBusySlots lists the slots the given teachers use in the current
// schedules of other groups.
func (r *ScheduleRepository) TeacherBusySlots(ctx context.Context, teacherIDs []string, excludeGroupID string) ([]models.TeacherBusySlot, error) {
	if len(teacherIDs) == 0 {
		return nil, nil
	}
	const query = `SELECT s.teacher_id, sch.group_id, si.day, si.period FROM schedule_items si JOIN schedules sch ON sch.id = si.schedule_id JOIN subjects s ON s.id = si.subject_id WHERE s.teacher_id = ANY($1) AND sch.group_id <> $2 AND sch.version = (SELECT MAX(latest.version) FROM schedules latest WHERE latest.group_id = sch.group_id) ORDER BY si.day, si.period`
	var slots []models.TeacherBusySlot
	if err := r.db.SelectContext(ctx, &slots, query, pq.Array(teacherIDs), excludeGroupID); err != nil {
		return nil, fmt.Errorf("list teacher busy slots: %w", err)
	}
	return slots, nil
}
