package handler

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/timetable-api/internal/dto"
	"github.com/noah-isme/timetable-api/internal/service"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
)

type transferServiceMock struct {
	file     string
	imported dto.ImportScheduleRequest
}

func (m *transferServiceMock) ExportJSON(_ context.Context, groupID string) (*dto.TransferDocument, error) {
	return &dto.TransferDocument{GroupID: groupID, Subjects: []dto.TransferSubject{{ID: "math", Name: "Math", HoursPerWeek: 3}}}, nil
}

func (m *transferServiceMock) ImportJSON(_ context.Context, req dto.ImportScheduleRequest) (*dto.ScheduleView, error) {
	m.imported = req
	return &dto.ScheduleView{GroupID: req.GroupID, Version: 4}, nil
}

func (m *transferServiceMock) ExportFile(_ context.Context, req dto.ExportFileRequest) (*dto.ExportFileResponse, error) {
	return &dto.ExportFileResponse{Token: "tok", URL: "/api/v1/exports/download?token=tok", Format: req.Format}, nil
}

func (m *transferServiceMock) Open(token string) (*service.ExportDownload, error) {
	if token != "tok" {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid download link")
	}
	f, err := os.Open(m.file)
	if err != nil {
		return nil, err
	}
	return &service.ExportDownload{File: f, FileName: "timetable.csv", ContentType: "text/csv"}, nil
}

func transferRouter(svc *transferServiceMock) *gin.Engine {
	h := NewTransferHandler(svc)
	router := newTestRouter()
	router.GET("/schedule/export", h.ExportJSON)
	router.POST("/schedule/import", h.Import)
	router.POST("/schedule/export/file", h.ExportFile)
	router.GET("/exports/download", h.Download)
	return router
}

func TestTransferHandlerDownloadStreamsFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "timetable.csv")
	require.NoError(t, os.WriteFile(file, []byte("Period,Monday\n1,Math\n"), 0o600))
	router := transferRouter(&transferServiceMock{file: file})

	w := perform(router, http.MethodGet, "/exports/download?token=tok", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="timetable.csv"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "Period,Monday\n1,Math\n", w.Body.String())
}

func TestTransferHandlerDownloadRejectsBadToken(t *testing.T) {
	router := transferRouter(&transferServiceMock{})

	w := perform(router, http.MethodGet, "/exports/download?token=forged", "")

	requireErrorCode(t, w, http.StatusForbidden, appErrors.ErrForbidden.Code)
}

func TestTransferHandlerImport(t *testing.T) {
	svc := &transferServiceMock{}
	router := transferRouter(svc)

	w := perform(router, http.MethodPost, "/schedule/import", `{"groupId":"g1","document":{"subjects":[],"schedule":[{"subjectId":"math","day":0,"period":1}]}}`)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "g1", svc.imported.GroupID)
	require.Len(t, svc.imported.Document.Schedule, 1)
	assert.Equal(t, "math", svc.imported.Document.Schedule[0].SubjectID)
}

func TestTransferHandlerExports(t *testing.T) {
	router := transferRouter(&transferServiceMock{})

	w := perform(router, http.MethodGet, "/schedule/export?groupId=g1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"hoursPerWeek":3`)

	w = perform(router, http.MethodPost, "/schedule/export/file", `{"groupId":"g1","format":"pdf"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"format":"pdf"`)
}
