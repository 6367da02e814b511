package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/timetable-api/internal/dto"
	"github.com/noah-isme/timetable-api/internal/middleware"
	"github.com/noah-isme/timetable-api/internal/models"
	"github.com/noah-isme/timetable-api/pkg/response"
)

type scheduleService interface {
	Latest(ctx context.Context, groupID string) (*dto.ScheduleView, bool, error)
	ListVersions(ctx context.Context, groupID string) ([]models.Schedule, error)
	DeleteVersion(ctx context.Context, scheduleID string) error
	Replace(ctx context.Context, req dto.ReplaceScheduleRequest) (*dto.ScheduleView, error)
	PlaceSession(ctx context.Context, req dto.PlaceSessionRequest) (*dto.ScheduleView, error)
	RemoveSession(ctx context.Context, req dto.RemoveSessionRequest) (*dto.ScheduleView, error)
	MoveSession(ctx context.Context, req dto.MoveSessionRequest) (*dto.ScheduleView, error)
	Status(ctx context.Context, groupID string) (*dto.ScheduleStatus, error)
}

// ScheduleHandler exposes the stored timetable and manual edits.
type ScheduleHandler struct {
	schedules scheduleService
}

// NewScheduleHandler constructs the handler.
func NewScheduleHandler(schedules scheduleService) *ScheduleHandler {
	return &ScheduleHandler{schedules: schedules}
}

// Latest godoc
// @Summary Current timetable of a group
// @Tags Schedule
// @Produce json
// @Param groupId query string true "Group ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /schedule [get]
func (h *ScheduleHandler) Latest(c *gin.Context) {
	view, hit, err := h.schedules.Latest(c.Request.Context(), c.Query("groupId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, view, nil, middleware.ResponseMeta(c))
}

// Replace godoc
// @Summary Replace the current timetable
// @Description Every item is checked against the group's catalog before anything is stored
// @Tags Schedule
// @Accept json
// @Produce json
// @Param payload body dto.ReplaceScheduleRequest true "Complete item set"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /schedule [put]
func (h *ScheduleHandler) Replace(c *gin.Context) {
	var req dto.ReplaceScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidBody(err, "invalid schedule payload"))
		return
	}
	view, err := h.schedules.Replace(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// Status godoc
// @Summary Placed vs required hours per subject
// @Tags Schedule
// @Produce json
// @Param groupId query string true "Group ID"
// @Success 200 {object} response.Envelope
// @Router /schedule/status [get]
func (h *ScheduleHandler) Status(c *gin.Context) {
	status, err := h.schedules.Status(c.Request.Context(), c.Query("groupId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, nil)
}

// Versions godoc
// @Summary List stored timetable versions
// @Tags Schedule
// @Produce json
// @Param groupId query string true "Group ID"
// @Success 200 {object} response.Envelope
// @Router /schedule/versions [get]
func (h *ScheduleHandler) Versions(c *gin.Context) {
	versions, err := h.schedules.ListVersions(c.Request.Context(), c.Query("groupId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, versions, nil)
}

// DeleteVersion godoc
// @Summary Delete a stored version
// @Tags Schedule
// @Param id path string true "Schedule ID"
// @Success 204
// @Router /schedule/versions/{id} [delete]
func (h *ScheduleHandler) DeleteVersion(c *gin.Context) {
	if err := h.schedules.DeleteVersion(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// PlaceSession godoc
// @Summary Place one lesson
// @Tags Schedule
// @Accept json
// @Produce json
// @Param payload body dto.PlaceSessionRequest true "Lesson"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /schedule/sessions [post]
func (h *ScheduleHandler) PlaceSession(c *gin.Context) {
	var req dto.PlaceSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidBody(err, "invalid session payload"))
		return
	}
	view, err := h.schedules.PlaceSession(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// RemoveSession godoc
// @Summary Clear one slot
// @Tags Schedule
// @Produce json
// @Param groupId query string true "Group ID"
// @Param day query int true "Day index"
// @Param period query int true "Period number"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /schedule/sessions [delete]
func (h *ScheduleHandler) RemoveSession(c *gin.Context) {
	var req dto.RemoveSessionRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, invalidBody(err, "invalid session query"))
		return
	}
	view, err := h.schedules.RemoveSession(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// MoveSession godoc
// @Summary Move one lesson to another slot
// @Tags Schedule
// @Accept json
// @Produce json
// @Param payload body dto.MoveSessionRequest true "Move"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /schedule/sessions/move [post]
func (h *ScheduleHandler) MoveSession(c *gin.Context) {
	var req dto.MoveSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidBody(err, "invalid move payload"))
		return
	}
	view, err := h.schedules.MoveSession(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}
