package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/timetable-api/internal/dto"
	"github.com/noah-isme/timetable-api/internal/models"
	"github.com/noah-isme/timetable-api/pkg/response"
)

type savedScheduleService interface {
	List(ctx context.Context, query dto.SavedScheduleQuery) ([]models.SavedSchedule, error)
	Get(ctx context.Context, id string) (*models.SavedSchedule, error)
	Create(ctx context.Context, req dto.CreateSavedScheduleRequest) (*models.SavedSchedule, error)
	Delete(ctx context.Context, id string) error
	Restore(ctx context.Context, id string) (*dto.ScheduleView, error)
}

// SavedScheduleHandler exposes named timetable snapshots.
type SavedScheduleHandler struct {
	saved savedScheduleService
}

// NewSavedScheduleHandler constructs the handler.
func NewSavedScheduleHandler(saved savedScheduleService) *SavedScheduleHandler {
	return &SavedScheduleHandler{saved: saved}
}

// List godoc
// @Summary List saved schedules
// @Tags Saved Schedules
// @Produce json
// @Param groupId query string false "Filter by group"
// @Success 200 {object} response.Envelope
// @Router /saved-schedules [get]
func (h *SavedScheduleHandler) List(c *gin.Context) {
	var query dto.SavedScheduleQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, invalidBody(err, "invalid query"))
		return
	}
	items, err := h.saved.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Get godoc
// @Summary Get saved schedule
// @Tags Saved Schedules
// @Produce json
// @Param id path string true "Saved schedule ID"
// @Success 200 {object} response.Envelope
// @Router /saved-schedules/{id} [get]
func (h *SavedScheduleHandler) Get(c *gin.Context) {
	saved, err := h.saved.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, saved, nil)
}

// Create godoc
// @Summary Save a named snapshot
// @Tags Saved Schedules
// @Accept json
// @Produce json
// @Param payload body dto.CreateSavedScheduleRequest true "Snapshot"
// @Success 201 {object} response.Envelope
// @Router /saved-schedules [post]
func (h *SavedScheduleHandler) Create(c *gin.Context) {
	var req dto.CreateSavedScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidBody(err, "invalid saved schedule payload"))
		return
	}
	saved, err := h.saved.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, saved)
}

// Delete godoc
// @Summary Delete saved schedule
// @Tags Saved Schedules
// @Param id path string true "Saved schedule ID"
// @Success 204
// @Router /saved-schedules/{id} [delete]
func (h *SavedScheduleHandler) Delete(c *gin.Context) {
	if err := h.saved.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Restore godoc
// @Summary Restore a snapshot as the current timetable
// @Tags Saved Schedules
// @Produce json
// @Param id path string true "Saved schedule ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /saved-schedules/{id}/restore [post]
func (h *SavedScheduleHandler) Restore(c *gin.Context) {
	view, err := h.saved.Restore(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}
