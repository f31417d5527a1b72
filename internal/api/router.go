package api

import (
	"log/slog"

	"focuslock/internal/api/handlers"
	"focuslock/internal/api/middleware"
	"focuslock/internal/core"
	"focuslock/internal/scheduler"
	"focuslock/internal/storage"

	"github.com/gin-gonic/gin"
)

// RouterConfig holds dependencies for the API router
type RouterConfig struct {
	Storage    storage.Storage
	Controller *core.Controller
	Ledger     *core.TapoutLedger
	Scheduler  *scheduler.Scheduler
	Reconciler *core.Reconciler
	AdminKey   string
	Logger     *slog.Logger
}

// NewRouter creates and configures the Gin router
func NewRouter(config RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Apply global middleware
	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery(config.Logger))
	router.Use(middleware.Logging(config.Logger))
	router.Use(middleware.ContentType())

	// Health check (no auth)
	healthHandler := handlers.NewHealthHandler()
	router.GET("/health", healthHandler.GetHealth)

	// API v1 routes (per-user token auth)
	v1 := router.Group("/v1")
	v1.Use(middleware.UserAuth(config.Storage))
	{
		// Preset endpoints
		presetsHandler := handlers.NewPresetsHandler(
			config.Storage,
			config.Controller,
			config.Logger,
		)
		v1.GET("/presets", presetsHandler.ListPresets)
		v1.POST("/presets", presetsHandler.CreatePreset)
		v1.GET("/presets/:id", presetsHandler.GetPreset)
		v1.PATCH("/presets/:id", presetsHandler.UpdatePreset)
		v1.DELETE("/presets/:id", presetsHandler.DeletePreset)
		v1.POST("/presets/:id/enable", presetsHandler.EnableSchedule)
		v1.POST("/presets/:id/disable", presetsHandler.DisableSchedule)

		// Session endpoints
		sessionHandler := handlers.NewSessionHandler(
			config.Controller,
			config.Ledger,
			config.Logger,
		)
		v1.GET("/session", sessionHandler.GetSession)
		v1.POST("/session/activate", sessionHandler.Activate)
		v1.POST("/session/slide-unlock", sessionHandler.SlideUnlock)
		v1.POST("/session/tapout", sessionHandler.Tapout)
		v1.GET("/tapouts", sessionHandler.GetTapouts)

		// Device callback endpoints
		scheduleHandler := handlers.NewScheduleHandler(
			config.Scheduler,
			config.Reconciler,
			config.Logger,
		)
		v1.POST("/schedule/alarm-fired", scheduleHandler.AlarmFired)
		v1.POST("/app/foreground", scheduleHandler.AppForeground)
	}

	// Admin routes (shared admin key)
	admin := router.Group("/v1/admin")
	admin.Use(middleware.AdminAuth(config.AdminKey))
	{
		usersHandler := handlers.NewUsersHandler(config.Storage, config.Logger)
		admin.POST("/users", usersHandler.CreateUser)
		admin.GET("/users", usersHandler.ListUsers)
	}

	return router
}
