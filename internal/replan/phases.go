package replan

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fieldops/replanner/internal/availability"
	"github.com/fieldops/replanner/internal/bundling"
	"github.com/fieldops/replanner/internal/concurrent"
	"github.com/fieldops/replanner/internal/eligibility"
	"github.com/fieldops/replanner/internal/entity"
	"github.com/fieldops/replanner/internal/equipment"
	"github.com/fieldops/replanner/internal/logger"
	"github.com/fieldops/replanner/internal/payload"
	"github.com/fieldops/replanner/internal/resultsprocessor"
	"github.com/fieldops/replanner/internal/timeutil"
)

// jobRunState carries a job alongside its run-local scheduling state
// so lookups by job id never need a second map.
type jobRunState struct {
	job   *entity.Job
	state *entity.JobSchedulingState
}

type equipmentKey struct {
	orderID   entity.OrderID
	serviceID entity.ServiceID
}

// phase0Data is everything fetched once at the start of a run and
// threaded through every subsequent pass.
type phase0Data struct {
	technicians    []*entity.Technician
	vansByID       map[entity.VanID]*entity.Van
	ordersByID     map[entity.OrderID]*entity.Order
	addressByOrder map[entity.OrderID]entity.AddressID
	addresses      []*entity.Address

	schedulable map[entity.JobID]*jobRunState // queued jobs, tracked pass to pass
	fixed       []*entity.Job                 // fixed_time jobs in the relevant set
	lockedToday []*entity.Job                 // locked jobs narrowing today's windows

	finalAssignments    map[entity.JobID]resultsprocessor.ScheduledJobUpdate
	requiredModelsCache map[equipmentKey]map[string]struct{}
}

// fetchPhase0 loads the active technicians, the schedulable and
// fixed-time jobs for the run, the locked jobs narrowing today's
// windows, and every order/address those jobs reference. Technicians'
// current positions are overlaid from the device-location service on
// a best-effort basis — a failed or missing fix simply leaves a
// technician's home address as their starting point.
func (o *Orchestrator) fetchPhase0(ctx context.Context, log *zap.SugaredLogger, now time.Time) (*phase0Data, error) {
	var technicians []*entity.Technician
	var relevantJobs []*entity.Job
	var fixedJobs []*entity.Job

	errs := concurrent.RunAll(
		func() error {
			var err error
			technicians, err = o.db.TechnicianRepository().ListActive(ctx)
			return err
		},
		func() error {
			var err error
			relevantJobs, err = o.db.JobRepository().ListSchedulableForDate(ctx, now)
			return err
		},
		func() error {
			var err error
			fixedJobs, err = o.db.JobRepository().ListFixedTime(ctx)
			return err
		},
	)
	if err := concurrent.FirstError(errs); err != nil {
		return nil, fmt.Errorf("fetch technicians and jobs: %w", err)
	}

	lockedToday, err := o.db.JobRepository().ListLockedForDate(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("fetch locked jobs: %w", err)
	}

	vans, err := o.db.VanRepository().ListByIDs(ctx, distinctVanIDs(technicians))
	if err != nil {
		return nil, fmt.Errorf("fetch vans: %w", err)
	}

	data := &phase0Data{
		technicians:         technicians,
		vansByID:            indexVans(vans),
		lockedToday:         lockedToday,
		finalAssignments:    make(map[entity.JobID]resultsprocessor.ScheduledJobUpdate),
		requiredModelsCache: make(map[equipmentKey]map[string]struct{}),
		schedulable:         make(map[entity.JobID]*jobRunState),
	}

	for _, job := range relevantJobs {
		if job.Status == entity.JobStatusQueued {
			data.schedulable[job.ID] = &jobRunState{
				job:   job,
				state: &entity.JobSchedulingState{JobID: job.ID, LastStatus: entity.SchedulingPending},
			}
		}
	}
	data.fixed = fixedJobs

	o.overlayDeviceLocations(ctx, log, technicians, data.vansByID)

	if err := o.loadOrdersAndAddresses(ctx, data, append(relevantJobs, fixedJobs...)); err != nil {
		return nil, err
	}

	return data, nil
}

func distinctVanIDs(technicians []*entity.Technician) []entity.VanID {
	var ids []entity.VanID
	for _, t := range technicians {
		if t.VanID != nil {
			ids = append(ids, *t.VanID)
		}
	}
	return ids
}

func indexVans(vans []*entity.Van) map[entity.VanID]*entity.Van {
	out := make(map[entity.VanID]*entity.Van, len(vans))
	for _, v := range vans {
		out[v.ID] = v
	}
	return out
}

// overlayDeviceLocations refreshes each van-carrying technician's
// CurrentLat/CurrentLng from its onboard device's last reported
// position. A fetch failure or missing fix is logged and skipped —
// it never aborts the run, since payload assembly falls back to the
// technician's home address for any unset position.
func (o *Orchestrator) overlayDeviceLocations(ctx context.Context, log *zap.SugaredLogger, technicians []*entity.Technician, vansByID map[entity.VanID]*entity.Van) {
	var tasks []concurrent.Task
	for _, tech := range technicians {
		tech := tech
		if tech.VanID == nil {
			continue
		}
		van, ok := vansByID[*tech.VanID]
		if !ok || van.DeviceID == nil {
			continue
		}
		deviceID := *van.DeviceID
		tasks = append(tasks, func() error {
			loc, err := o.devices.Fetch(ctx, deviceID)
			if err != nil {
				log.Warnw("device location fetch failed, technician falls back to home address",
					"technician_id", tech.ID, "device_id", deviceID, "error", err)
				return err
			}
			if loc == nil {
				return nil
			}
			tech.CurrentLat = &loc.Lat
			tech.CurrentLng = &loc.Lng
			return nil
		})
	}
	if len(tasks) > 0 {
		concurrent.RunAll(tasks...)
	}
}

// loadOrdersAndAddresses batch-fetches every order and address the
// run's jobs reference, one round trip each rather than one per item.
func (o *Orchestrator) loadOrdersAndAddresses(ctx context.Context, data *phase0Data, jobs []*entity.Job) error {
	orderIDSet := make(map[entity.OrderID]struct{})
	for _, j := range jobs {
		orderIDSet[j.OrderID] = struct{}{}
	}
	orderIDs := make([]entity.OrderID, 0, len(orderIDSet))
	for id := range orderIDSet {
		orderIDs = append(orderIDs, id)
	}

	orders, err := o.db.OrderRepository().ListByIDs(ctx, orderIDs)
	if err != nil {
		return fmt.Errorf("list orders: %w", err)
	}

	data.ordersByID = make(map[entity.OrderID]*entity.Order, len(orders))
	data.addressByOrder = make(map[entity.OrderID]entity.AddressID, len(orders))
	addressIDSet := make(map[entity.AddressID]struct{})
	for _, ord := range orders {
		data.ordersByID[ord.ID] = ord
		data.addressByOrder[ord.ID] = ord.AddressID
		addressIDSet[ord.AddressID] = struct{}{}
	}

	addressIDs := make([]entity.AddressID, 0, len(addressIDSet))
	for id := range addressIDSet {
		addressIDs = append(addressIDs, id)
	}
	addresses, err := o.db.AddressRepository().ListByIDs(ctx, addressIDs)
	if err != nil {
		return fmt.Errorf("list addresses: %w", err)
	}
	data.addresses = addresses
	return nil
}

// runTodayPass is phase 1: plan everything still pending against
// today's windows, narrowed by the jobs already locked in progress.
func (o *Orchestrator) runTodayPass(ctx context.Context, log *zap.SugaredLogger, data *phase0Data, now time.Time) error {
	pending := pendingJobs(data)
	if len(pending) == 0 {
		log.Infow("no pending jobs for today's pass")
		return nil
	}

	fixedToday := fixedJobsOnDate(data.fixed, now)
	passJobs := mergeJobs(pending, fixedToday)

	return o.runPass(ctx, log, "today", data, passJobs, now, now, data.lockedToday)
}

// runOverflowPass is one iteration of phase 2, stepping loopCount
// calendar days past now. It returns ran=false when the pass was
// skipped outright — no technician has any window that date, or there
// was nothing left to plan for it — so the caller can tell a real
// optimizer invocation from a no-op one.
func (o *Orchestrator) runOverflowPass(ctx context.Context, log *zap.SugaredLogger, data *phase0Data, now, targetDate time.Time, loopCount int) (ran bool, err error) {
	label := timeutil.DateLabel(targetDate)
	passLog := log.With("overflow_pass", loopCount, "target_date", label)

	technicians, err := o.db.TechnicianRepository().ListActive(ctx)
	if err != nil {
		return false, fmt.Errorf("refetch technicians: %w", err)
	}
	data.technicians = technicians

	hasWindow, err := anyTechnicianHasWindow(technicians, targetDate, o.loc)
	if err != nil {
		return false, fmt.Errorf("probe technician availability: %w", err)
	}
	if !hasWindow {
		passLog.Infow("no technician has any window on target date, recording transient failure")
		for _, rs := range data.schedulable {
			if !isOpenForRetry(rs.state) {
				continue
			}
			rs.state.RecordAttempt(entity.SchedulingAttempt{
				Timestamp: now, PlanningDay: label, Success: false,
				FailureReason: entity.FailureNoTechnicianAvailability,
			})
			o.metrics.RecordUnresolved(string(entity.FailureNoTechnicianAvailability))
		}
		return false, nil
	}

	pending := pendingJobs(data)
	fixedOnTarget := fixedJobsOnDate(data.fixed, targetDate)
	if len(pending) == 0 && len(fixedOnTarget) == 0 {
		return false, nil
	}

	passJobs := mergeJobs(pending, fixedOnTarget)
	if err := o.runPass(ctx, passLog, overflowPassLabel(loopCount), data, passJobs, targetDate, now, nil); err != nil {
		return false, err
	}
	o.metrics.RecordOverflowPass(overflowPassLabel(loopCount))
	return true, nil
}

// runPass is the common core of both the today pass and every overflow
// pass: bundle, resolve equipment eligibility, assemble the optimizer
// payload, submit it, fan the response back out to jobs, and confirm
// any fixed-time jobs landing on targetDate.
func (o *Orchestrator) runPass(
	ctx context.Context,
	log *zap.SugaredLogger,
	passLabel string,
	data *phase0Data,
	passJobs []*entity.Job,
	targetDate time.Time,
	now time.Time,
	lockedJobs []*entity.Job,
) error {
	start := o.clock()
	planningDay := timeutil.DateLabel(targetDate)

	items := bundling.BuildSchedulableItems(passJobs, data.addressByOrder)

	requiredModelsByJob, err := o.requiredModelsFor(ctx, passJobs, data)
	if err != nil {
		return fmt.Errorf("resolve equipment requirements: %w", err)
	}

	vanEquipmentByVan := make(map[entity.VanID][]string, len(data.vansByID))
	for id, van := range data.vansByID {
		vanEquipmentByVan[id] = van.Equipment
	}

	elig := eligibility.Resolve(items, data.technicians, requiredModelsByJob, vanEquipmentByVan)
	o.applyIneligible(log, data, elig.IneligibleItems, planningDay, now)

	var updates, unresolved int
	if len(elig.EligibleItems) > 0 {
		earliestStartByItem := make(map[string]*time.Time, len(elig.EligibleItems))
		for _, item := range elig.EligibleItems {
			if order, ok := data.ordersByID[item.OrderID]; ok {
				earliestStartByItem[item.ID] = order.EarliestAvailableTime
			}
		}

		addrLookup := newAddressLookup(data.addresses)
		p, err := payload.Assemble(ctx, targetDate, now, data.technicians, elig.EligibleItems, addrLookup,
			earliestStartByItem, lockedJobs, o.depot, o.cfg.PredictiveHourUTC, o.cache, o.loc)
		if err != nil {
			return fmt.Errorf("assemble payload: %w", err)
		}

		callStart := o.clock()
		optimized, optErr := o.optimizer.Optimize(ctx, p)
		logger.LogExternalCall(log, "optimizer", "optimize", o.clock().Sub(callStart).Milliseconds(), optErr)
		o.metrics.RecordExternalCall("optimizer", "optimize", o.clock().Sub(callStart).Seconds())
		if optErr != nil {
			return fmt.Errorf("optimize: %w", optErr)
		}

		stops, unresolvedItems := toProcessorResult(optimized)
		itemsByID := make(map[string]entity.SchedulableItem, len(elig.EligibleItems))
		for _, item := range elig.EligibleItems {
			itemsByID[item.ID] = item
		}

		processed := resultsprocessor.Process(stops, unresolvedItems, itemsByID)
		o.applyPassResult(log, data, processed, itemsByID, planningDay, now)
		updates, unresolved = len(processed.Updates), len(processed.Unresolved)

		for _, ignored := range processed.Ignored {
			log.Warnw("optimizer referenced an item this pass never offered", "item_id", ignored)
		}
	}

	o.confirmFixedTimeJobs(data, passJobs, targetDate)

	duration := o.clock().Sub(start).Seconds()
	o.metrics.RecordPassDuration(passLabel, duration)
	logger.LogPassResult(log, passLabel, updates, unresolved, int64(duration*1000))
	return nil
}

// requiredModelsFor resolves the equipment models each job requires,
// memoized per (order, service) pair across the whole run — an
// overflow pass retrying the same job never re-resolves it.
func (o *Orchestrator) requiredModelsFor(ctx context.Context, jobs []*entity.Job, data *phase0Data) (map[entity.JobID]map[string]struct{}, error) {
	lookup := &equipmentLookup{db: o.db}
	out := make(map[entity.JobID]map[string]struct{}, len(jobs))
	for _, job := range jobs {
		key := equipmentKey{orderID: job.OrderID, serviceID: job.ServiceID}
		models, ok := data.requiredModelsCache[key]
		if !ok {
			var err error
			models, err = equipment.RequiredModelsForJob(ctx, lookup, job)
			if err != nil {
				return nil, fmt.Errorf("required models for job %s: %w", job.ID, err)
			}
			data.requiredModelsCache[key] = models
		}
		out[job.ID] = models
	}
	return out, nil
}

// applyIneligible marks every job in an ineligible item as a
// persistent equipment failure. Fixed-time jobs are never tracked in
// data.schedulable, so ineligibility never touches them here — their
// technician is fixed at intake, not chosen by eligibility.
func (o *Orchestrator) applyIneligible(log *zap.SugaredLogger, data *phase0Data, ineligible []entity.IneligibleItem, planningDay string, now time.Time) {
	for _, ineligibleItem := range ineligible {
		for _, job := range ineligibleItem.Item.Jobs {
			rs, ok := data.schedulable[job.ID]
			if !ok {
				continue
			}
			rs.state.RecordAttempt(entity.SchedulingAttempt{
				Timestamp: now, PlanningDay: planningDay, Success: false, FailureReason: ineligibleItem.Reason,
			})
			log.Warnw("job ineligible, no technician carries the required equipment",
				"job_id", job.ID, "reason", ineligibleItem.Reason)
			o.metrics.RecordUnresolved(string(ineligibleItem.Reason))
		}
	}
}

// applyPassResult folds one pass's optimizer response into the
// run-local scheduling state.
func (o *Orchestrator) applyPassResult(log *zap.SugaredLogger, data *phase0Data, processed resultsprocessor.Result, itemsByID map[string]entity.SchedulableItem, planningDay string, now time.Time) {
	for _, u := range processed.Updates {
		rs, ok := data.schedulable[u.JobID]
		if !ok {
			continue // fixed-time job; confirmed separately, never via the optimizer response
		}
		if !isOpenForRetry(rs.state) {
			log.Warnw("optimizer returned an assignment for a job already resolved, ignoring",
				"job_id", u.JobID, "status", rs.state.LastStatus)
			continue
		}
		techID, scheduledTime := u.TechnicianID, u.ScheduledStartTime
		rs.state.RecordAttempt(entity.SchedulingAttempt{
			Timestamp: now, PlanningDay: planningDay, Success: true,
			AssignedTechnicianID: &techID, AssignedTime: &scheduledTime,
		})
		data.finalAssignments[u.JobID] = u
	}

	for _, un := range processed.Unresolved {
		item, ok := itemsByID[un.ItemID]
		if !ok {
			continue
		}
		reason := un.Reason
		if reason == "" {
			reason = entity.FailureOptimizerOther
		}
		for _, job := range item.Jobs {
			rs, ok := data.schedulable[job.ID]
			if !ok {
				continue
			}
			rs.state.RecordAttempt(entity.SchedulingAttempt{
				Timestamp: now, PlanningDay: planningDay, Success: false, FailureReason: reason,
			})
			o.metrics.RecordUnresolved(string(reason))
		}
	}
}

// confirmFixedTimeJobs records a final assignment for every fixed-time
// job in passJobs landing on targetDate, using its own fixed time and
// already-assigned technician — this always overrides anything the
// solver may have returned for it, since a fixed-time job's schedule
// is an intake decision, not one the optimizer makes.
func (o *Orchestrator) confirmFixedTimeJobs(data *phase0Data, passJobs []*entity.Job, targetDate time.Time) {
	label := timeutil.DateLabel(targetDate)
	for _, job := range passJobs {
		if job.Status != entity.JobStatusFixedTime {
			continue
		}
		if job.FixedScheduleTime == nil || job.AssignedTechnicianID == nil {
			continue
		}
		if timeutil.DateLabel(*job.FixedScheduleTime) != label {
			continue
		}
		data.finalAssignments[job.ID] = resultsprocessor.ScheduledJobUpdate{
			JobID: job.ID, TechnicianID: *job.AssignedTechnicianID, ScheduledStartTime: *job.FixedScheduleTime,
		}
	}
}

// finalWrite is phase 3: translate the run-local scheduling state of
// every tracked job into a persisted JobStatus, inside one
// transaction. Any single failure rolls the whole batch back — a
// replan run either fully lands or leaves every job exactly as it
// found it.
func (o *Orchestrator) finalWrite(ctx context.Context, log *zap.SugaredLogger, data *phase0Data) (scheduled, pendingReview int, err error) {
	if len(data.schedulable) == 0 {
		return 0, 0, nil
	}

	tx, err := o.db.BeginTx(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("begin final write transaction: %w", err)
	}

	affected := make([]entity.JobID, 0, len(data.schedulable))
	writeErr := func() error {
		for jobID, rs := range data.schedulable {
			affected = append(affected, jobID)
			if rs.state.LastStatus == entity.SchedulingScheduled {
				assignment, ok := data.finalAssignments[jobID]
				if !ok {
					return fmt.Errorf("job %s marked scheduled with no recorded assignment", jobID)
				}
				if err := tx.JobRepository().UpdateSchedule(ctx, jobID, assignment.TechnicianID, assignment.ScheduledStartTime); err != nil {
					return fmt.Errorf("update schedule for job %s: %w", jobID, err)
				}
				scheduled++
				continue
			}

			if err := tx.JobRepository().MarkPendingReview(ctx, jobID, lastFailureReason(rs.state)); err != nil {
				return fmt.Errorf("mark pending review for job %s: %w", jobID, err)
			}
			pendingReview++
		}
		return nil
	}()

	if writeErr != nil {
		_ = tx.Rollback()
		return 0, 0, fmt.Errorf("final write aborted, affecting %d jobs, no partial write applied: %w", len(affected), writeErr)
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("commit final write: %w", err)
	}

	o.persistSchedulingStates(ctx, log, data)
	return scheduled, pendingReview, nil
}

// persistSchedulingStates writes the run-local attempt history to the
// audit table after a successful final write. This is a best-effort
// side record for operators reviewing a run; it never feeds back into
// any scheduling decision, so a failure here is logged, not returned.
func (o *Orchestrator) persistSchedulingStates(ctx context.Context, log *zap.SugaredLogger, data *phase0Data) {
	for _, rs := range data.schedulable {
		if err := o.db.JobSchedulingStateRepository().Upsert(ctx, rs.state); err != nil {
			log.Warnw("failed to persist job scheduling state for audit", "job_id", rs.state.JobID, "error", err)
		}
	}
}

func lastFailureReason(state *entity.JobSchedulingState) entity.FailureReason {
	for i := len(state.Attempts) - 1; i >= 0; i-- {
		if !state.Attempts[i].Success {
			return state.Attempts[i].FailureReason
		}
	}
	return entity.FailureUnknown
}

func isOpenForRetry(state *entity.JobSchedulingState) bool {
	return state.LastStatus == entity.SchedulingPending || state.LastStatus == entity.SchedulingFailedTransient
}

func pendingJobs(data *phase0Data) []*entity.Job {
	var out []*entity.Job
	for _, rs := range data.schedulable {
		if isOpenForRetry(rs.state) {
			out = append(out, rs.job)
		}
	}
	return out
}

func anyPendingOrTransient(jobs map[entity.JobID]*jobRunState) bool {
	for _, rs := range jobs {
		if isOpenForRetry(rs.state) {
			return true
		}
	}
	return false
}

func fixedJobsOnDate(fixed []*entity.Job, date time.Time) []*entity.Job {
	label := timeutil.DateLabel(date)
	var out []*entity.Job
	for _, j := range fixed {
		if j.FixedScheduleTime != nil && timeutil.DateLabel(*j.FixedScheduleTime) == label {
			out = append(out, j)
		}
	}
	return out
}

// mergeJobs unions pending and fixed by job id, fixed-job data taking
// precedence on any collision.
func mergeJobs(pending, fixed []*entity.Job) []*entity.Job {
	seen := make(map[entity.JobID]bool, len(fixed))
	out := make([]*entity.Job, 0, len(pending)+len(fixed))
	for _, j := range fixed {
		seen[j.ID] = true
		out = append(out, j)
	}
	for _, j := range pending {
		if seen[j.ID] {
			continue
		}
		out = append(out, j)
	}
	return out
}

func availabilityWindows(tech *entity.Technician, date time.Time, loc *time.Location) (entity.DailyAvailability, error) {
	return availability.CalculateWindowsForTechnician(tech, date, date, loc)
}
