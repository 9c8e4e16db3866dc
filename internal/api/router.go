package api

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/fieldops/replanner/internal/job"
	"github.com/fieldops/replanner/internal/replan"
	"github.com/fieldops/replanner/internal/repository"
)

// Router creates and configures the Echo router.
type Router struct {
	echo     *echo.Echo
	handlers *Handlers
}

// NewRouter creates a new Echo router with all routes.
func NewRouter(scheduler *job.JobScheduler, orchestrator *replan.Orchestrator, db repository.Database) *Router {
	e := echo.New()

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{echo.GET, echo.POST},
		AllowHeaders: []string{echo.HeaderContentType, echo.HeaderAuthorization},
	}))

	r := &Router{
		echo: e,
		handlers: &Handlers{
			scheduler:    scheduler,
			orchestrator: orchestrator,
			db:           db,
		},
	}

	r.registerRoutes()
	return r
}

// registerRoutes configures all API routes.
func (r *Router) registerRoutes() {
	r.echo.GET("/api/health", r.handlers.Health)
	r.echo.GET("/api/health/db", r.handlers.HealthDB)
	r.echo.GET("/api/health/redis", r.handlers.HealthRedis)

	replanGroup := r.echo.Group("/api/replan")
	replanGroup.POST("/run", r.handlers.RunReplan)
	replanGroup.POST("/run-sync", r.handlers.RunReplanSync)
	replanGroup.GET("/runs", r.handlers.ListRuns)
}

// Start starts the HTTP server.
func (r *Router) Start(addr string) error {
	return r.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (r *Router) Shutdown() error {
	return r.echo.Close()
}
