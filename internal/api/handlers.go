package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/fieldops/replanner/internal/entity"
	"github.com/fieldops/replanner/internal/job"
	"github.com/fieldops/replanner/internal/replan"
	"github.com/fieldops/replanner/internal/repository"
)

// Handlers contains all HTTP request handlers.
type Handlers struct {
	scheduler    *job.JobScheduler
	orchestrator *replan.Orchestrator
	db           repository.Database
}

// RunReplanRequest is the (optional, empty-bodied) request for a manual
// replan trigger.
type RunReplanRequest struct {
	TriggeredBy string `json:"triggered_by"`
}

// RunReplanResponse reports that a replan run was accepted for
// asynchronous execution.
type RunReplanResponse struct {
	TaskID string `json:"task_id"`
}

// RunReplan enqueues one replan run. It returns 202 Accepted once the
// task is queued — the run itself happens out of band in the worker
// process. A run already in progress yields 429, since Asynq's unique
// window alone can't tell the caller why the enqueue was rejected.
func (h *Handlers) RunReplan(c echo.Context) error {
	var req RunReplanRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponseWithCode("INVALID_REQUEST", err.Error()))
	}
	if req.TriggeredBy == "" {
		req.TriggeredBy = "manual"
	}

	if h.orchestrator.Status() == entity.RunStatusInProgress {
		return c.JSON(http.StatusTooManyRequests, ErrorResponseWithCode("RUN_IN_PROGRESS", "a replan run is already in progress"))
	}

	info, err := h.scheduler.EnqueueReplanRun(c.Request().Context(), req.TriggeredBy)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, ErrorResponseWithCode("ENQUEUE_FAILED", err.Error()))
	}

	return c.JSON(http.StatusAccepted, SuccessResponse(RunReplanResponse{TaskID: info.ID}))
}

// RunReplanSync executes one replan run inline and waits for it to
// finish, returning its full outcome. Intended for operator tooling and
// local debugging where enqueue-and-poll is more ceremony than needed.
func (h *Handlers) RunReplanSync(c echo.Context) error {
	var req RunReplanRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponseWithCode("INVALID_REQUEST", err.Error()))
	}
	if req.TriggeredBy == "" {
		req.TriggeredBy = "manual_sync"
	}

	result, err := h.orchestrator.Run(c.Request().Context(), req.TriggeredBy)
	if err != nil {
		if errors.Is(err, replan.ErrRunInProgress) {
			return c.JSON(http.StatusTooManyRequests, ErrorResponseWithCode("RUN_IN_PROGRESS", err.Error()))
		}
		return c.JSON(http.StatusInternalServerError, ErrorResponseWithCode("RUN_FAILED", err.Error()))
	}

	return c.JSON(http.StatusOK, SuccessResponseWithNotes(result, result.Notes))
}

// ListRuns returns the most recent replan run records, newest first.
func (h *Handlers) ListRuns(c echo.Context) error {
	limit := 20
	if raw := c.QueryParam("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	runs, err := h.db.RunRecordRepository().ListRecent(c.Request().Context(), limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, ErrorResponseWithCode("QUERY_FAILED", err.Error()))
	}

	return c.JSON(http.StatusOK, SuccessResponse(runs))
}

// Health reports liveness only — it never touches the database or
// Redis, so a load balancer's liveness probe never fails because a
// downstream dependency is slow.
func (h *Handlers) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, SuccessResponse(map[string]string{"status": "UP"}))
}

// HealthDB reports whether the database connection is reachable.
func (h *Handlers) HealthDB(c echo.Context) error {
	if err := h.db.Health(c.Request().Context()); err != nil {
		return c.JSON(http.StatusServiceUnavailable, ErrorResponseWithCode("DB_UNREACHABLE", err.Error()))
	}
	return c.JSON(http.StatusOK, SuccessResponse(map[string]string{"database": "UP"}))
}

// HealthRedis reports whether the job queue's Redis connection is
// reachable.
func (h *Handlers) HealthRedis(c echo.Context) error {
	if err := h.scheduler.Ping(c.Request().Context()); err != nil {
		return c.JSON(http.StatusServiceUnavailable, ErrorResponseWithCode("REDIS_UNREACHABLE", err.Error()))
	}
	return c.JSON(http.StatusOK, SuccessResponse(map[string]string{"redis": "UP"}))
}
