package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/timetable-api/internal/dto"
	"github.com/noah-isme/timetable-api/internal/service"
	"github.com/noah-isme/timetable-api/pkg/response"
)

type transferService interface {
	ExportJSON(ctx context.Context, groupID string) (*dto.TransferDocument, error)
	ImportJSON(ctx context.Context, req dto.ImportScheduleRequest) (*dto.ScheduleView, error)
	ExportFile(ctx context.Context, req dto.ExportFileRequest) (*dto.ExportFileResponse, error)
	Open(token string) (*service.ExportDownload, error)
}

// TransferHandler exposes timetable import and export.
type TransferHandler struct {
	transfer transferService
}

// NewTransferHandler constructs the handler.
func NewTransferHandler(transfer transferService) *TransferHandler {
	return &TransferHandler{transfer: transfer}
}

// ExportJSON godoc
// @Summary Export subjects and timetable as JSON
// @Tags Transfer
// @Produce json
// @Param groupId query string true "Group ID"
// @Success 200 {object} response.Envelope
// @Router /schedule/export [get]
func (h *TransferHandler) ExportJSON(c *gin.Context) {
	doc, err := h.transfer.ExportJSON(c.Request.Context(), c.Query("groupId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, doc, nil)
}

// Import godoc
// @Summary Import a timetable document
// @Tags Transfer
// @Accept json
// @Produce json
// @Param payload body dto.ImportScheduleRequest true "Document"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /schedule/import [post]
func (h *TransferHandler) Import(c *gin.Context) {
	var req dto.ImportScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidBody(err, "invalid import payload"))
		return
	}
	view, err := h.transfer.ImportJSON(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, view)
}

// ExportFile godoc
// @Summary Render the timetable as CSV or PDF
// @Description Returns a signed link that expires after the configured TTL
// @Tags Transfer
// @Accept json
// @Produce json
// @Param payload body dto.ExportFileRequest true "Export options"
// @Success 201 {object} response.Envelope
// @Router /schedule/export/file [post]
func (h *TransferHandler) ExportFile(c *gin.Context) {
	var req dto.ExportFileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidBody(err, "invalid export payload"))
		return
	}
	result, err := h.transfer.ExportFile(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// Download godoc
// @Summary Download an exported file
// @Tags Transfer
// @Produce octet-stream
// @Param token query string true "Signed token"
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Router /exports/download [get]
func (h *TransferHandler) Download(c *gin.Context) {
	download, err := h.transfer.Open(c.Query("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer download.File.Close()

	info, err := download.File.Stat()
	if err != nil {
		response.Error(c, err)
		return
	}
	c.DataFromReader(http.StatusOK, info.Size(), download.ContentType, download.File, map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", download.FileName),
	})
}
