package job

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

// JobScheduler manages job enqueueing to Asynq.
type JobScheduler struct {
	client *asynq.Client
}

// NewJobScheduler creates a new job scheduler.
func NewJobScheduler(redisAddr string) (*JobScheduler, error) {
	client := asynq.NewClient(asynq.RedisClientOpt{Addr: redisAddr})

	if err := client.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &JobScheduler{client: client}, nil
}

// Job types.
const (
	TypeReplanRun = "replan:run"
)

// ReplanRunPayload is the payload for a replan run job. TriggeredBy
// identifies the caller for audit logging — "scheduled" for the
// periodic trigger, "manual" for an operator-initiated run via the API.
type ReplanRunPayload struct {
	TriggeredBy string `json:"triggered_by"`
}

// EnqueueReplanRun enqueues a replan run job. Only one such task is
// ever processed at a time — the orchestrator itself enforces the
// single-flight rule, so this enqueue never blocks on it.
func (s *JobScheduler) EnqueueReplanRun(ctx context.Context, triggeredBy string) (*asynq.TaskInfo, error) {
	payload := ReplanRunPayload{TriggeredBy: triggeredBy}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	task := asynq.NewTask(TypeReplanRun, payloadBytes)

	info, err := s.client.EnqueueContext(ctx, task, asynq.MaxRetry(0), asynq.Timeout(15*time.Minute), asynq.Unique(time.Minute))
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue replan run job: %w", err)
	}

	return info, nil
}

// Close closes the job scheduler and releases resources.
func (s *JobScheduler) Close() error {
	return s.client.Close()
}

// Ping verifies the scheduler's Redis connection is reachable.
func (s *JobScheduler) Ping(ctx context.Context) error {
	return s.client.Ping(ctx)
}

// GetTaskInfo retrieves information about a task.
func (s *JobScheduler) GetTaskInfo(ctx context.Context, taskID string) (*asynq.TaskInfo, error) {
	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: s.client.String()})
	defer inspector.Close()

	return inspector.GetTaskInfo(ctx, "default", taskID)
}
