package entity

import (
	"time"

	"github.com/google/uuid"
)

// Type aliases for domain identifiers and temporal types.
type (
	TechnicianID = uuid.UUID
	VanID        = uuid.UUID
	OrderID      = uuid.UUID
	JobID        = uuid.UUID
	ServiceID    = uuid.UUID
	AddressID    = uuid.UUID
	CustomerID   = uuid.UUID
	RunID        = uuid.UUID
	Date         = time.Time
)

// Now returns the current instant in UTC. Centralized so tests can
// substitute a fixed clock by constructing instants directly instead
// of calling this at arbitrary points.
func Now() time.Time {
	return time.Now().UTC()
}

// ServiceCategory groups services and equipment models along the axis
// used for equipment requirement resolution.
type ServiceCategory string

const (
	CategoryADAS   ServiceCategory = "adas"
	CategoryAirbag ServiceCategory = "airbag"
	CategoryImmo   ServiceCategory = "immo"
	CategoryProg   ServiceCategory = "prog"
	CategoryDiag   ServiceCategory = "diag"
)

// Address is a physical location with optional geocoding.
type Address struct {
	ID     AddressID
	Street string
	Lat    *float64
	Lng    *float64
}

// HasCoordinates reports whether the address has been geocoded.
func (a *Address) HasCoordinates() bool {
	return a.Lat != nil && a.Lng != nil
}

// YMM is a (year, make, model) vehicle reference row.
type YMM struct {
	ID    int64
	Year  int
	Make  string
	Model string
}

// Service is a billable unit of work, categorized for equipment lookup.
type Service struct {
	ID       ServiceID
	Name     string
	Category ServiceCategory
}

// EquipmentModel is a piece of shop equipment a van may carry.
type EquipmentModel struct {
	Model    string
	Category ServiceCategory
}

// Van is a technician's mobile inventory and (optionally) live position.
type Van struct {
	ID           VanID
	Equipment    []string // equipment model identifiers carried
	DeviceID     *string
	CurrentLat   *float64
	CurrentLng   *float64
	LocationTime *time.Time
}

// HasModel reports whether the van's inventory includes the given
// equipment model.
func (v *Van) HasModel(model string) bool {
	for _, m := range v.Equipment {
		if m == model {
			return true
		}
	}
	return false
}

// HoursEntry is one default weekly-hours row for a technician.
type HoursEntry struct {
	DayOfWeek   time.Weekday
	StartTime   string // "HH:MM:SS" in business timezone
	EndTime     string
	IsAvailable bool
}

// ExceptionType distinguishes the two kinds of per-date override.
type ExceptionType string

const (
	ExceptionTimeOff     ExceptionType = "time_off"
	ExceptionCustomHours ExceptionType = "custom_hours"
)

// AvailabilityException overrides a technician's default hours for a
// single calendar date.
type AvailabilityException struct {
	Date      string // YYYY-MM-DD
	Type      ExceptionType
	Available bool
	StartTime *string
	EndTime   *string
}

// Technician is a mobile worker with a van, home base, and a weekly
// availability template overridden per-date by exceptions.
type Technician struct {
	ID           TechnicianID
	VanID        *VanID
	HomeLat      float64
	HomeLng      float64
	DefaultHours []HoursEntry
	Exceptions   map[string]AvailabilityException // keyed by YYYY-MM-DD
	CurrentLat   *float64                         // overlaid from device location, today only
	CurrentLng   *float64
}

// ExceptionFor returns the exception registered for the given date
// label, if any.
func (t *Technician) ExceptionFor(dateLabel string) (AvailabilityException, bool) {
	if t.Exceptions == nil {
		return AvailabilityException{}, false
	}
	e, ok := t.Exceptions[dateLabel]
	return e, ok
}

// HoursForWeekday returns the default hours entries registered for a
// given day of week (there may be more than one, though in practice
// exactly zero or one is typical).
func (t *Technician) HoursForWeekday(day time.Weekday) []HoursEntry {
	var out []HoursEntry
	for _, h := range t.DefaultHours {
		if h.DayOfWeek == day {
			out = append(out, h)
		}
	}
	return out
}

// Order groups one or more jobs performed at one address for one
// vehicle and customer.
type Order struct {
	ID                    OrderID
	CustomerID            CustomerID
	AddressID             AddressID
	YMMID                 *int64
	EarliestAvailableTime *time.Time
}

// JobStatus is the lifecycle state of a job as persisted in the jobs
// table. Exactly one of queued, fixed_time, pending_review is ever
// written back by a run; the others are read-only inputs.
type JobStatus string

const (
	JobStatusQueued        JobStatus = "queued"
	JobStatusEnRoute       JobStatus = "en_route"
	JobStatusInProgress    JobStatus = "in_progress"
	JobStatusFixedTime     JobStatus = "fixed_time"
	JobStatusPendingReview JobStatus = "pending_review"
)

// IsLocked reports whether the job's current status means its time on
// its technician's day is not re-planned.
func (s JobStatus) IsLocked() bool {
	return s == JobStatusEnRoute || s == JobStatusInProgress || s == JobStatusFixedTime
}

// Job is a single unit of dispatchable work.
type Job struct {
	ID                   JobID
	OrderID              OrderID
	ServiceID            ServiceID
	DurationMinutes      int
	Priority             int
	Status               JobStatus
	AssignedTechnicianID *TechnicianID
	FixedScheduleTime    *time.Time
	EstimatedSchedTime   *time.Time
}

// TimeWindow is a closed-open interval [Start, End) of UTC instants.
type TimeWindow struct {
	Start time.Time
	End   time.Time
}

// Duration returns the window's length.
func (w TimeWindow) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// Overlaps reports whether two windows share any instant.
func (w TimeWindow) Overlaps(other TimeWindow) bool {
	return w.Start.Before(other.End) && other.Start.Before(w.End)
}

// DailyAvailability maps a calendar date label (YYYY-MM-DD, UTC
// components) to an ordered, non-overlapping list of TimeWindows for
// that date. Empty days are omitted from the map entirely.
type DailyAvailability map[string][]TimeWindow

// AvailabilityGap is an unavailable sub-interval within a technician's
// shift envelope for a date.
type AvailabilityGap struct {
	TechnicianID    TechnicianID
	Start           time.Time
	End             time.Time
	DurationSeconds int64
}

// FailureReason classifies why a schedulable item failed to be placed.
// Only the first two are persistent; the remainder are transient and
// eligible for retry in a later pass.
type FailureReason string

const (
	FailureNoEligibleTechnicianEquipment FailureReason = "NO_ELIGIBLE_TECHNICIAN_EQUIPMENT"
	FailureNoAssignedVan                 FailureReason = "NO_ASSIGNED_VAN"
	FailureOptimizerTimeConstraint       FailureReason = "OPTIMIZER_TIME_CONSTRAINT"
	FailureOptimizerCapacityConstraint   FailureReason = "OPTIMIZER_CAPACITY_CONSTRAINT"
	FailureOptimizerOther                FailureReason = "OPTIMIZER_OTHER"
	FailureNoTechnicianAvailability      FailureReason = "NO_TECHNICIAN_AVAILABILITY"
	FailureUnknown                       FailureReason = "UNKNOWN"
)

// IsPersistent reports whether a failure reason should prevent further
// retries of the affected job.
func (f FailureReason) IsPersistent() bool {
	return f == FailureNoEligibleTechnicianEquipment || f == FailureNoAssignedVan
}

// SchedulingStatus is the per-job state tracked across passes within a
// single orchestrator run. It never touches the database directly;
// only the final write translates it into a JobStatus.
type SchedulingStatus string

const (
	SchedulingPending          SchedulingStatus = "pending"
	SchedulingScheduled        SchedulingStatus = "scheduled"
	SchedulingFailedTransient  SchedulingStatus = "failed_transient"
	SchedulingFailedPersistent SchedulingStatus = "failed_persistent"
)

// SchedulingAttempt records the outcome of one pass's effort to place
// a job.
type SchedulingAttempt struct {
	Timestamp            time.Time
	PlanningDay          string // YYYY-MM-DD
	Success              bool
	FailureReason        FailureReason
	AssignedTechnicianID *TechnicianID
	AssignedTime         *time.Time
}

// JobSchedulingState is the run-local record of a job's progress
// across passes.
type JobSchedulingState struct {
	JobID      JobID
	Attempts   []SchedulingAttempt
	LastStatus SchedulingStatus
}

// RecordAttempt appends an attempt and updates LastStatus accordingly.
func (s *JobSchedulingState) RecordAttempt(attempt SchedulingAttempt) {
	s.Attempts = append(s.Attempts, attempt)
	if attempt.Success {
		s.LastStatus = SchedulingScheduled
		return
	}
	if attempt.FailureReason.IsPersistent() {
		s.LastStatus = SchedulingFailedPersistent
		return
	}
	s.LastStatus = SchedulingFailedTransient
}

// ItemKind tags a SchedulableItem as either a single job or a bundle
// of jobs sharing an order.
type ItemKind string

const (
	ItemSingleJob ItemKind = "single_job"
	ItemBundle    ItemKind = "bundle"
)

// SchedulableItem is either a SingleJob or a Bundle, carrying the set
// of technician ids currently believed eligible to perform it. The
// identifier scheme ("bundle_{orderId}" / "job_{jobId}") is load
// bearing at the optimizer boundary and must be preserved exactly.
type SchedulableItem struct {
	Kind                  ItemKind
	ID                    string // "bundle_{orderId}" or "job_{jobId}"
	OrderID               OrderID
	Jobs                  []*Job // one for SingleJob, >=2 for Bundle
	AddressID             AddressID
	DurationMinutes       int
	Priority              int
	EligibleTechnicianIDs []TechnicianID
}

// JobIDs returns the ids of every constituent job.
func (i *SchedulableItem) JobIDs() []JobID {
	ids := make([]JobID, len(i.Jobs))
	for idx, j := range i.Jobs {
		ids[idx] = j.ID
	}
	return ids
}

// SingleJobItemID formats the load-bearing identifier for a job.
func SingleJobItemID(jobID JobID) string {
	return "job_" + jobID.String()
}

// BundleItemID formats the load-bearing identifier for an order bundle.
func BundleItemID(orderID OrderID) string {
	return "bundle_" + orderID.String()
}

// IneligibleItem is a SchedulableItem for which no technician
// qualifies, carried forward as a persistent failure.
type IneligibleItem struct {
	Item   SchedulableItem
	Reason FailureReason
}

// RunStatus is the lifecycle state of one orchestrator run, persisted
// for audit and for the trigger layer's single-flight check.
type RunStatus string

const (
	RunStatusInProgress RunStatus = "in_progress"
	RunStatusCompleted  RunStatus = "completed"
	RunStatusFailed     RunStatus = "failed"
)

// RunRecord is the audit trail of one orchestrator run, independent of
// the run-local JobSchedulingState map (which never reaches the
// database).
type RunRecord struct {
	ID                RunID
	Status            RunStatus
	StartedAt         time.Time
	CompletedAt       *time.Time
	PassesExecuted    int
	JobsScheduled     int
	JobsPendingReview int
	ErrorMessage      *string
}

// NewRunRecord starts a fresh in-progress record for a run beginning now.
func NewRunRecord(id RunID, startedAt time.Time) *RunRecord {
	return &RunRecord{ID: id, Status: RunStatusInProgress, StartedAt: startedAt}
}

// MarkCompleted finalizes the record as a success.
func (r *RunRecord) MarkCompleted(completedAt time.Time, passesExecuted, jobsScheduled, jobsPendingReview int) {
	r.Status = RunStatusCompleted
	r.CompletedAt = &completedAt
	r.PassesExecuted = passesExecuted
	r.JobsScheduled = jobsScheduled
	r.JobsPendingReview = jobsPendingReview
}

// MarkFailed finalizes the record as a failure, carrying err's message.
func (r *RunRecord) MarkFailed(completedAt time.Time, passesExecuted int, err error) {
	r.Status = RunStatusFailed
	r.CompletedAt = &completedAt
	r.PassesExecuted = passesExecuted
	msg := err.Error()
	r.ErrorMessage = &msg
}
