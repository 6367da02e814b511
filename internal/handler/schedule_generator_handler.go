package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/timetable-api/internal/dto"
	"github.com/noah-isme/timetable-api/pkg/jobs"
	"github.com/noah-isme/timetable-api/pkg/response"
)

type scheduleGenerator interface {
	Generate(ctx context.Context, req dto.GenerateScheduleRequest) (*dto.GenerateScheduleResponse, error)
	Preview(ctx context.Context, req dto.PreviewScheduleRequest) (*dto.GenerateScheduleResponse, error)
	SaveProposal(ctx context.Context, proposalID string) (*dto.GenerateScheduleResponse, error)
}

type scheduleBatcher interface {
	Enqueue(ctx context.Context, req dto.BatchGenerateRequest) (*dto.BatchGenerateResponse, error)
	Status(jobID string) (*jobs.Record, error)
}

// ScheduleGeneratorHandler exposes the assignment engine.
type ScheduleGeneratorHandler struct {
	generator scheduleGenerator
	batch     scheduleBatcher
}

// NewScheduleGeneratorHandler constructs the handler.
func NewScheduleGeneratorHandler(generator scheduleGenerator, batch scheduleBatcher) *ScheduleGeneratorHandler {
	return &ScheduleGeneratorHandler{generator: generator, batch: batch}
}

// Generate godoc
// @Summary Generate and store a timetable
// @Description Runs the deterministic engine and stores the result as the group's next version
// @Tags Schedule Generator
// @Accept json
// @Produce json
// @Param payload body dto.GenerateScheduleRequest true "Group"
// @Success 201 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /schedule/generate [post]
func (h *ScheduleGeneratorHandler) Generate(c *gin.Context) {
	var req dto.GenerateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidBody(err, "invalid generate payload"))
		return
	}
	result, err := h.generator.Generate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// Preview godoc
// @Summary Preview a timetable without storing it
// @Tags Schedule Generator
// @Accept json
// @Produce json
// @Param payload body dto.PreviewScheduleRequest true "Preview options"
// @Success 200 {object} response.Envelope
// @Router /schedule/preview [post]
func (h *ScheduleGeneratorHandler) Preview(c *gin.Context) {
	var req dto.PreviewScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidBody(err, "invalid preview payload"))
		return
	}
	result, err := h.generator.Preview(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// SaveProposal godoc
// @Summary Store a previewed timetable
// @Tags Schedule Generator
// @Produce json
// @Param proposalId path string true "Proposal ID"
// @Success 201 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /schedule/preview/{proposalId}/save [post]
func (h *ScheduleGeneratorHandler) SaveProposal(c *gin.Context) {
	result, err := h.generator.SaveProposal(c.Request.Context(), c.Param("proposalId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// Batch godoc
// @Summary Regenerate several groups in the background
// @Tags Schedule Generator
// @Accept json
// @Produce json
// @Param payload body dto.BatchGenerateRequest true "Groups"
// @Success 202 {object} response.Envelope
// @Router /schedule/generate/batch [post]
func (h *ScheduleGeneratorHandler) Batch(c *gin.Context) {
	var req dto.BatchGenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidBody(err, "invalid batch payload"))
		return
	}
	result, err := h.batch.Enqueue(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, result)
}

// BatchStatus godoc
// @Summary Background generation job status
// @Tags Schedule Generator
// @Produce json
// @Param jobId path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /schedule/generate/batch/{jobId} [get]
func (h *ScheduleGeneratorHandler) BatchStatus(c *gin.Context) {
	record, err := h.batch.Status(c.Param("jobId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}
