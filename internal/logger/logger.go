// Package logger configures zap for the replanner and carries run and
// job identifiers through context so every log line from one replan
// pass can be correlated.
package logger

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type contextKey string

const (
	runIDKey contextKey = "run-id"
	jobIDKey contextKey = "job-id"
)

// New builds a SugaredLogger configured for env. If env is empty it
// reads APP_ENV, defaulting to production if unset or unrecognized.
//
// Development mode: colorized console output, debug level, readable
// timestamps. Production mode: JSON to stdout, info level and above,
// ISO8601 timestamps, suited to log aggregation.
func New(env string) (*zap.SugaredLogger, error) {
	if env == "" {
		env = os.Getenv("APP_ENV")
	}

	var config zap.Config

	switch env {
	case "development", "dev":
		config = zap.NewDevelopmentConfig()
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		config.OutputPaths = []string{"stdout"}
		config.ErrorOutputPaths = []string{"stderr"}

	default:
		config = zap.NewProductionConfig()
		config.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
		config.OutputPaths = []string{"stdout"}
		config.ErrorOutputPaths = []string{"stderr"}
		config.EncoderConfig.CallerKey = "caller"
		config.EncoderConfig.LevelKey = "level"
		config.EncoderConfig.MessageKey = "message"
		config.EncoderConfig.TimeKey = "timestamp"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	built, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	return built.Sugar(), nil
}

// WithRunID injects a replan run id into ctx.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// ExtractRunID retrieves the run id stored by WithRunID, or "".
func ExtractRunID(ctx context.Context) string {
	if id, ok := ctx.Value(runIDKey).(string); ok {
		return id
	}
	return ""
}

// WithJobID injects a job id into ctx.
func WithJobID(ctx context.Context, jobID string) context.Context {
	return context.WithValue(ctx, jobIDKey, jobID)
}

// ExtractJobID retrieves the job id stored by WithJobID, or "".
func ExtractJobID(ctx context.Context) string {
	if id, ok := ctx.Value(jobIDKey).(string); ok {
		return id
	}
	return ""
}

// FromContext returns logger with run id and job id fields attached
// from ctx, when present. Safe to call with a bare logger every time;
// absent ids are simply omitted.
func FromContext(ctx context.Context, base *zap.SugaredLogger) *zap.SugaredLogger {
	out := base
	if id := ExtractRunID(ctx); id != "" {
		out = out.With("run_id", id)
	}
	if id := ExtractJobID(ctx); id != "" {
		out = out.With("job_id", id)
	}
	return out
}

// LogPassResult logs the outcome of one replan pass.
func LogPassResult(l *zap.SugaredLogger, pass string, scheduled, unresolved int, durationMS int64) {
	l.Infow("replan pass completed",
		"pass", pass,
		"scheduled_count", scheduled,
		"unresolved_count", unresolved,
		"duration_ms", durationMS,
	)
}

// LogExternalCall logs a call to an external dependency (optimizer,
// distance matrix, device location service).
func LogExternalCall(l *zap.SugaredLogger, service, operation string, durationMS int64, err error) {
	if err != nil {
		l.Errorw("external call failed",
			"service", service,
			"operation", operation,
			"duration_ms", durationMS,
			"error", err,
		)
		return
	}

	l.Infow("external call succeeded",
		"service", service,
		"operation", operation,
		"duration_ms", durationMS,
	)
}
