package httptransport

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	sloggin "github.com/samber/slog-gin"

	"github.com/hookline/hookline/internal/transport/http/handler"
	"github.com/hookline/hookline/internal/transport/http/middleware"
)

func NewRouter(
	logger *slog.Logger,
	scheduleHandler *handler.ScheduleHandler,
	logHandler *handler.ExecutionLogHandler,
	eventsHandler *handler.EventsHandler,
	jwtKey []byte,
) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Security())
	r.Use(sloggin.New(logger))
	r.Use(middleware.Metrics())

	authMW := middleware.Auth(jwtKey)

	schedules := r.Group("/schedules", authMW)
	schedules.POST("", scheduleHandler.Create)
	schedules.GET("", scheduleHandler.List)
	schedules.POST("/preview", scheduleHandler.Preview)
	schedules.GET("/:id", scheduleHandler.GetByID)
	schedules.PUT("/:id", scheduleHandler.Update)
	schedules.DELETE("/:id", scheduleHandler.Delete)
	schedules.POST("/:id/pause", scheduleHandler.Pause)
	schedules.POST("/:id/resume", scheduleHandler.Resume)
	schedules.POST("/:id/trigger", scheduleHandler.Trigger)

	logs := r.Group("/logs", authMW)
	logs.GET("", logHandler.List)
	logs.DELETE("", logHandler.Clear)
	logs.DELETE("/:id", logHandler.Delete)

	events := r.Group("/events", authMW)
	events.GET("", eventsHandler.Stream)

	return r
}
