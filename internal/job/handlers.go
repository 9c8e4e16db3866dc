package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/fieldops/replanner/internal/replan"
)

// JobHandlers manages job execution handlers.
type JobHandlers struct {
	orchestrator *replan.Orchestrator
	logger       *zap.SugaredLogger
}

// NewJobHandlers creates a new job handlers instance.
func NewJobHandlers(orchestrator *replan.Orchestrator, logger *zap.SugaredLogger) *JobHandlers {
	return &JobHandlers{orchestrator: orchestrator, logger: logger}
}

// RegisterHandlers registers all job handlers with the Asynq mux.
func (h *JobHandlers) RegisterHandlers(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeReplanRun, h.HandleReplanRun)
}

// HandleReplanRun executes one replan run. A run already in progress
// is not a task failure — it means a previous invocation of this same
// task type is still working, so the task is dropped without retry.
func (h *JobHandlers) HandleReplanRun(ctx context.Context, t *asynq.Task) error {
	var payload ReplanRunPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", asynq.SkipRetry)
	}

	result, err := h.orchestrator.Run(ctx, payload.TriggeredBy)
	if err != nil {
		if errors.Is(err, replan.ErrRunInProgress) {
			h.logger.Infow("replan run skipped, one is already in progress", "triggered_by", payload.TriggeredBy)
			return nil
		}
		h.logger.Errorw("replan run task failed", "triggered_by", payload.TriggeredBy, "error", err)
		return fmt.Errorf("replan run: %w", err)
	}

	h.logger.Infow("replan run task completed",
		"triggered_by", payload.TriggeredBy,
		"passes_executed", result.PassesExecuted,
		"jobs_scheduled", result.JobsScheduled,
		"jobs_pending_review", result.JobsPendingReview,
	)
	return nil
}
