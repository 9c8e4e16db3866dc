// Package replan drives one end-to-end replan run: it pulls the
// technicians and jobs that are candidates for rescheduling, makes a
// same-day pass and however many overflow passes onto later calendar
// dates are needed to place everything the shift envelope allows, and
// finishes with a single batched write of the outcome. Apart from the
// run record, which is created when the run starts and updated when it
// ends, nothing is written to the database until that final write — the
// whole run's decisions live in an in-memory JobSchedulingState per job
// until then.
package replan

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fieldops/replanner/internal/config"
	"github.com/fieldops/replanner/internal/entity"
	"github.com/fieldops/replanner/internal/externalsvc"
	"github.com/fieldops/replanner/internal/logger"
	"github.com/fieldops/replanner/internal/metrics"
	"github.com/fieldops/replanner/internal/payload"
	"github.com/fieldops/replanner/internal/repository"
	"github.com/fieldops/replanner/internal/timeutil"
	"github.com/fieldops/replanner/internal/traveltime"
	"github.com/fieldops/replanner/internal/validation"
)

// ErrRunInProgress is returned by Run when a previous run has not yet
// finished. Exactly one run may be in flight at a time, process-wide.
var ErrRunInProgress = fmt.Errorf("replan: a run is already in progress")

// Optimizer is the narrow surface runPass needs from
// externalsvc.OptimizerClient.
type Optimizer interface {
	Optimize(ctx context.Context, p *payload.Payload) (*externalsvc.OptimizeResult, error)
}

// DeviceLocations is the narrow surface the device-location overlay
// needs from externalsvc.DeviceLocationClient.
type DeviceLocations interface {
	Fetch(ctx context.Context, deviceID string) (*externalsvc.Location, error)
}

// Orchestrator coordinates one replan run end to end.
type Orchestrator struct {
	db        repository.Database
	optimizer Optimizer
	devices   DeviceLocations
	cache     traveltime.Cache
	cfg       *config.Config
	logger    *zap.SugaredLogger
	metrics   *metrics.Registry
	loc       *time.Location
	depot     traveltime.Coordinate
	clock     func() time.Time

	status atomic.Value // entity.RunStatus
	mu     sync.RWMutex // guards the single-flight transition
}

// New constructs an Orchestrator. Its reported Status is
// RunStatusCompleted until the first Run call, since no run has failed
// or is in progress yet.
func New(
	db repository.Database,
	optimizer Optimizer,
	devices DeviceLocations,
	cache traveltime.Cache,
	cfg *config.Config,
	log *zap.SugaredLogger,
	reg *metrics.Registry,
) (*Orchestrator, error) {
	loc, err := timeutil.BusinessLocation(cfg.BusinessTimezone)
	if err != nil {
		return nil, fmt.Errorf("load business timezone: %w", err)
	}

	o := &Orchestrator{
		db:        db,
		optimizer: optimizer,
		devices:   devices,
		cache:     cache,
		cfg:       cfg,
		logger:    log,
		metrics:   reg,
		loc:       loc,
		depot:     traveltime.Coordinate{Lat: cfg.DepotLat, Lng: cfg.DepotLng},
		clock:     entity.Now,
	}
	o.status.Store(entity.RunStatusCompleted)
	return o, nil
}

// Status reports the orchestrator's current run state.
func (o *Orchestrator) Status() entity.RunStatus {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.status.Load().(entity.RunStatus)
}

// tryStart claims the single-flight slot, returning false if a run is
// already in progress.
func (o *Orchestrator) tryStart() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.status.Load().(entity.RunStatus) == entity.RunStatusInProgress {
		return false
	}
	o.status.Store(entity.RunStatusInProgress)
	return true
}

func (o *Orchestrator) finish(status entity.RunStatus) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.status.Store(status)
}

// RunResult summarizes the outcome of one completed run.
type RunResult struct {
	RunID             entity.RunID
	PassesExecuted    int
	JobsScheduled     int
	JobsPendingReview int
	Duration          time.Duration
	Notes             *validation.Result
}

// Run executes one full replan pass sequence: today, up to
// cfg.OverflowMaxPasses overflow passes, then the final batched write.
// It rejects concurrent invocation with ErrRunInProgress.
func (o *Orchestrator) Run(ctx context.Context, triggeredBy string) (*RunResult, error) {
	if !o.tryStart() {
		return nil, ErrRunInProgress
	}
	o.metrics.SetSingleFlightLocked(true)
	defer o.metrics.SetSingleFlightLocked(false)

	runID := uuid.New()
	startedAt := o.clock()
	ctx = logger.WithRunID(ctx, runID.String())
	log := logger.FromContext(ctx, o.logger)

	record := entity.NewRunRecord(runID, startedAt)
	if err := o.db.RunRecordRepository().Create(ctx, record); err != nil {
		o.finish(entity.RunStatusFailed)
		return nil, fmt.Errorf("create run record: %w", err)
	}

	log.Infow("replan run starting", "triggered_by", triggeredBy)

	result, runErr := o.execute(ctx, log, runID, startedAt)
	completedAt := o.clock()

	if runErr != nil {
		log.Errorw("replan run failed", "error", runErr, "passes_executed", result.PassesExecuted)
		record.MarkFailed(completedAt, result.PassesExecuted, runErr)
		if err := o.db.RunRecordRepository().Update(ctx, record); err != nil {
			log.Warnw("failed to persist failed run record", "error", err)
		}
		o.finish(entity.RunStatusFailed)
		o.metrics.RecordRunOutcome("failed", 0)
		return nil, runErr
	}

	record.MarkCompleted(completedAt, result.PassesExecuted, result.JobsScheduled, result.JobsPendingReview)
	if err := o.db.RunRecordRepository().Update(ctx, record); err != nil {
		log.Warnw("failed to persist completed run record", "error", err)
	}
	o.finish(entity.RunStatusCompleted)
	o.metrics.RecordRunOutcome("completed", result.JobsScheduled)

	result.Duration = completedAt.Sub(startedAt)
	log.Infow("replan run completed",
		"passes_executed", result.PassesExecuted,
		"jobs_scheduled", result.JobsScheduled,
		"jobs_pending_review", result.JobsPendingReview,
		"duration_ms", result.Duration.Milliseconds(),
	)
	return result, nil
}

// execute runs the phase sequence, always returning a RunResult
// (possibly partial) so the caller can record PassesExecuted even on
// failure.
func (o *Orchestrator) execute(ctx context.Context, log *zap.SugaredLogger, runID entity.RunID, now time.Time) (*RunResult, error) {
	result := &RunResult{RunID: runID, Notes: validation.NewResult()}

	data, err := o.fetchPhase0(ctx, log, now)
	if err != nil {
		return result, fmt.Errorf("fetch phase: %w", err)
	}

	if len(data.schedulable) == 0 && len(data.fixed) == 0 {
		log.Infow("no schedulable or fixed-time jobs found, nothing to plan")
	} else {
		if err := o.runTodayPass(ctx, log, data, now); err != nil {
			return result, fmt.Errorf("today pass: %w", err)
		}
		result.PassesExecuted++
		result.Notes.AddInfo("today_pass", fmt.Sprintf("today pass completed with %d jobs still pending", len(pendingJobs(data))))

		for loopCount := 1; loopCount <= o.cfg.OverflowMaxPasses; loopCount++ {
			if !anyPendingOrTransient(data.schedulable) {
				break
			}
			targetDate := timeutil.AddCalendarDaysUTC(now, loopCount)
			ran, err := o.runOverflowPass(ctx, log, data, now, targetDate, loopCount)
			if err != nil {
				return result, fmt.Errorf("overflow pass %d: %w", loopCount, err)
			}
			if ran {
				result.PassesExecuted++
			}
		}
	}

	scheduled, pendingReview, err := o.finalWrite(ctx, log, data)
	if err != nil {
		return result, fmt.Errorf("final write: %w", err)
	}
	result.PassesExecuted++
	result.JobsScheduled = scheduled
	result.JobsPendingReview = pendingReview
	return result, nil
}

func anyTechnicianHasWindow(technicians []*entity.Technician, date time.Time, loc *time.Location) (bool, error) {
	for _, tech := range technicians {
		windows, err := availabilityWindows(tech, date, loc)
		if err != nil {
			return false, err
		}
		if len(windows) > 0 {
			return true, nil
		}
	}
	return false, nil
}

func overflowPassLabel(loopCount int) string {
	return "overflow_" + strconv.Itoa(loopCount)
}
