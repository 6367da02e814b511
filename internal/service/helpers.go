package service

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"

	"github.com/noah-isme/timetable-api/internal/dto"
	"github.com/noah-isme/timetable-api/internal/models"
	"github.com/noah-isme/timetable-api/internal/scheduler"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
)

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

func isPQCode(err error, code string) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == code
}

func invalidPayload(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
}

func internalError(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

// lookupError maps repository misses to NOT_FOUND and everything else to INTERNAL_ERROR.
func lookupError(err error, entity string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, entity+" not found")
	}
	return internalError(err, "failed to load "+entity)
}

// writeError maps persistence failures of create/update/delete calls.
func writeError(err error, entity, action string) error {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return appErrors.Clone(appErrors.ErrNotFound, entity+" not found")
	case isPQCode(err, pqUniqueViolation):
		return appErrors.Clone(appErrors.ErrConflict, entity+" already exists")
	case isPQCode(err, pqForeignKeyViolation):
		return appErrors.Clone(appErrors.ErrPreconditionFailed, entity+" references missing or still referenced records")
	}
	return internalError(err, fmt.Sprintf("failed to %s %s", action, entity))
}

// engineError turns scheduler failures into API errors.
func engineError(err error) error {
	var verr *scheduler.ValidationError
	if errors.As(err, &verr) {
		return appErrors.Clone(appErrors.ErrValidation, strings.Join(verr.Problems, "; "))
	}
	var perr *scheduler.PlacementError
	if errors.As(err, &perr) {
		return appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("%s: %s", perr.Reason, perr.Error()))
	}
	return internalError(err, "scheduler failure")
}

// validateDays checks that day indexes fall inside the grid.
func validateDays(grid scheduler.Grid, days []int, field string) error {
	for _, day := range days {
		if !grid.IsValidDay(day) {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s contains day %d outside 0..%d", field, day, grid.Days-1))
		}
	}
	return nil
}

func newValidator(v *validator.Validate) *validator.Validate {
	if v == nil {
		return validator.New()
	}
	return v
}

func paginationOf(page, size, total int) *models.Pagination {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	return &models.Pagination{Page: page, PageSize: size, TotalCount: total}
}

func itemsToSessions(items []models.ScheduleItem) []scheduler.Session {
	sessions := make([]scheduler.Session, 0, len(items))
	for _, item := range items {
		sessions = append(sessions, scheduler.Session{SubjectID: item.SubjectID, Day: item.Day, Period: item.Period})
	}
	return sessions
}

func sessionsToItems(sessions []scheduler.Session) []models.ScheduleItem {
	items := make([]models.ScheduleItem, 0, len(sessions))
	for _, s := range sessions {
		items = append(items, models.ScheduleItem{SubjectID: s.SubjectID, Day: s.Day, Period: s.Period})
	}
	return items
}

func payloadToSessions(items []dto.ScheduleItemPayload) []scheduler.Session {
	sessions := make([]scheduler.Session, 0, len(items))
	for _, item := range items {
		sessions = append(sessions, scheduler.Session{SubjectID: item.SubjectID, Day: item.Day, Period: item.Period})
	}
	return sessions
}

func sessionsToPayload(sessions []scheduler.Session) []dto.ScheduleItemPayload {
	items := make([]dto.ScheduleItemPayload, 0, len(sessions))
	for _, s := range sessions {
		items = append(items, dto.ScheduleItemPayload{SubjectID: s.SubjectID, Day: s.Day, Period: s.Period})
	}
	return items
}

// keyedMutex serializes work per key while letting different keys proceed.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedEntry
}

type keyedEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*keyedEntry)}
}

// Lock blocks until key is free and returns the matching unlock func.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	entry, ok := k.locks[key]
	if !ok {
		entry = &keyedEntry{}
		k.locks[key] = entry
	}
	entry.refs++
	k.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		k.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
