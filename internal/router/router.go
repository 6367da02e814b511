// Package router binds handlers to the HTTP route table.
package router

import (
	"strings"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/noah-isme/timetable-api/internal/handler"
	"github.com/noah-isme/timetable-api/internal/middleware"
	"github.com/noah-isme/timetable-api/internal/models"
)

// Handlers groups every HTTP handler the router exposes.
type Handlers struct {
	Auth           *handler.AuthHandler
	Groups         *handler.GroupHandler
	Teachers       *handler.TeacherHandler
	Subjects       *handler.SubjectHandler
	Schedule       *handler.ScheduleHandler
	Generator      *handler.ScheduleGeneratorHandler
	SavedSchedules *handler.SavedScheduleHandler
	Transfer       *handler.TransferHandler
	Metrics        *handler.MetricsHandler
}

// Options configures the route table.
type Options struct {
	APIPrefix string
	Tokens    middleware.TokenValidator
	// Docs mounts the swagger UI on /docs.
	Docs bool
}

// New builds the engine. Global middlewares run before every route.
func New(h Handlers, opts Options, global ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(global...)

	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	r.GET("/metrics", h.Metrics.Prometheus)
	if opts.Docs {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	prefix := "/" + strings.Trim(opts.APIPrefix, "/")
	if prefix == "/" {
		prefix = ""
	}
	api := r.Group(prefix)
	admin := []gin.HandlerFunc{middleware.JWT(opts.Tokens), middleware.RequireRoles(models.RoleAdmin)}
	adminOnly := func(fn gin.HandlerFunc) []gin.HandlerFunc {
		return append(append([]gin.HandlerFunc{}, admin...), fn)
	}

	api.POST("/auth/login", h.Auth.Login)

	groups := api.Group("/groups")
	groups.GET("", h.Groups.List)
	groups.POST("", adminOnly(h.Groups.Create)...)
	groups.GET("/:id", h.Groups.Get)
	groups.PUT("/:id", adminOnly(h.Groups.Update)...)
	groups.DELETE("/:id", adminOnly(h.Groups.Delete)...)

	teachers := api.Group("/teachers")
	teachers.GET("", h.Teachers.List)
	teachers.POST("", adminOnly(h.Teachers.Create)...)
	teachers.GET("/:id", h.Teachers.Get)
	teachers.PUT("/:id", adminOnly(h.Teachers.Update)...)
	teachers.DELETE("/:id", adminOnly(h.Teachers.Delete)...)

	subjects := api.Group("/subjects")
	subjects.GET("", h.Subjects.List)
	subjects.POST("", adminOnly(h.Subjects.Create)...)
	subjects.GET("/:id", h.Subjects.Get)
	subjects.PUT("/:id", adminOnly(h.Subjects.Update)...)
	subjects.DELETE("/:id", adminOnly(h.Subjects.Delete)...)

	schedule := api.Group("/schedule")
	schedule.GET("", h.Schedule.Latest)
	schedule.PUT("", adminOnly(h.Schedule.Replace)...)
	schedule.GET("/status", h.Schedule.Status)
	schedule.GET("/versions", h.Schedule.Versions)
	schedule.DELETE("/versions/:id", adminOnly(h.Schedule.DeleteVersion)...)
	schedule.POST("/sessions", adminOnly(h.Schedule.PlaceSession)...)
	schedule.DELETE("/sessions", adminOnly(h.Schedule.RemoveSession)...)
	schedule.POST("/sessions/move", adminOnly(h.Schedule.MoveSession)...)

	schedule.POST("/generate", adminOnly(h.Generator.Generate)...)
	schedule.POST("/generate/batch", adminOnly(h.Generator.Batch)...)
	schedule.GET("/generate/batch/:jobId", adminOnly(h.Generator.BatchStatus)...)
	schedule.POST("/preview", adminOnly(h.Generator.Preview)...)
	schedule.POST("/preview/:proposalId/save", adminOnly(h.Generator.SaveProposal)...)

	schedule.GET("/export", h.Transfer.ExportJSON)
	schedule.POST("/export/file", h.Transfer.ExportFile)
	schedule.POST("/import", adminOnly(h.Transfer.Import)...)
	api.GET("/exports/download", h.Transfer.Download)

	saved := api.Group("/saved-schedules")
	saved.GET("", h.SavedSchedules.List)
	saved.POST("", adminOnly(h.SavedSchedules.Create)...)
	saved.GET("/:id", h.SavedSchedules.Get)
	saved.DELETE("/:id", adminOnly(h.SavedSchedules.Delete)...)
	saved.POST("/:id/restore", adminOnly(h.SavedSchedules.Restore)...)

	return r
}
