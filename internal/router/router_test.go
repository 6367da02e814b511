package router

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/timetable-api/internal/handler"
	"github.com/noah-isme/timetable-api/internal/models"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
)

type tokenStub struct {
	role models.UserRole
}

func (s tokenStub) ValidateToken(token string) (*models.JWTClaims, error) {
	if token != "valid" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
	}
	return &models.JWTClaims{Email: "user@example.com", Role: s.role}, nil
}

func newTestEngine(role models.UserRole) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return New(Handlers{
		Auth:           handler.NewAuthHandler(nil),
		Groups:         handler.NewGroupHandler(nil),
		Teachers:       handler.NewTeacherHandler(nil),
		Subjects:       handler.NewSubjectHandler(nil),
		Schedule:       handler.NewScheduleHandler(nil),
		Generator:      handler.NewScheduleGeneratorHandler(nil, nil),
		SavedSchedules: handler.NewSavedScheduleHandler(nil),
		Transfer:       handler.NewTransferHandler(nil),
		Metrics:        handler.NewMetricsHandler(nil, nil),
	}, Options{APIPrefix: "/api/v1/", Tokens: tokenStub{role: role}})
}

func TestRouterRegistersRouteTable(t *testing.T) {
	engine := newTestEngine(models.RoleAdmin)

	registered := make(map[string]bool)
	for _, route := range engine.Routes() {
		registered[route.Method+" "+route.Path] = true
	}

	for _, want := range []string{
		"GET /health", "GET /ready", "GET /metrics",
		"POST /api/v1/auth/login",
		"GET /api/v1/groups", "DELETE /api/v1/groups/:id",
		"PUT /api/v1/teachers/:id",
		"POST /api/v1/subjects",
		"GET /api/v1/schedule", "PUT /api/v1/schedule",
		"POST /api/v1/schedule/generate", "POST /api/v1/schedule/generate/batch",
		"GET /api/v1/schedule/generate/batch/:jobId",
		"POST /api/v1/schedule/preview", "POST /api/v1/schedule/preview/:proposalId/save",
		"GET /api/v1/schedule/status", "GET /api/v1/schedule/versions", "DELETE /api/v1/schedule/versions/:id",
		"POST /api/v1/schedule/sessions", "DELETE /api/v1/schedule/sessions", "POST /api/v1/schedule/sessions/move",
		"GET /api/v1/schedule/export", "POST /api/v1/schedule/import", "POST /api/v1/schedule/export/file",
		"GET /api/v1/exports/download",
		"GET /api/v1/saved-schedules", "POST /api/v1/saved-schedules/:id/restore",
	} {
		assert.True(t, registered[want], "missing route %s", want)
	}
	assert.False(t, registered["GET /docs/*any"])
}

func TestRouterGuardsWrites(t *testing.T) {
	engine := newTestEngine(models.UserRole("VIEWER"))

	cases := []struct {
		method string
		path   string
		token  string
		status int
	}{
		{http.MethodPost, "/api/v1/groups", "", http.StatusUnauthorized},
		{http.MethodPost, "/api/v1/groups", "expired", http.StatusUnauthorized},
		{http.MethodPost, "/api/v1/groups", "valid", http.StatusForbidden},
		{http.MethodPost, "/api/v1/schedule/generate", "", http.StatusUnauthorized},
		{http.MethodDelete, "/api/v1/schedule/sessions?groupId=g1&day=0&period=1", "valid", http.StatusForbidden},
		{http.MethodPost, "/api/v1/saved-schedules/s1/restore", "", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(tc.method, tc.path, strings.NewReader(`{}`))
		req.Header.Set("Content-Type", "application/json")
		if tc.token != "" {
			req.Header.Set("Authorization", "Bearer "+tc.token)
		}
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)
		require.Equal(t, tc.status, w.Code, "%s %s", tc.method, tc.path)
	}
}

func TestRouterHealthIsPublic(t *testing.T) {
	engine := newTestEngine(models.RoleAdmin)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
}
