package replan

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fieldops/replanner/internal/config"
	"github.com/fieldops/replanner/internal/entity"
	"github.com/fieldops/replanner/internal/externalsvc"
	"github.com/fieldops/replanner/internal/metrics"
	"github.com/fieldops/replanner/internal/payload"
	"github.com/fieldops/replanner/internal/repository"
	"github.com/fieldops/replanner/internal/repository/memory"
	"github.com/fieldops/replanner/internal/traveltime"
)

// fixedNow is a Thursday afternoon, used as the frozen "now" for every
// test in this file so a pass's "today" label is deterministic.
func fixedNow() time.Time {
	return time.Date(2026, 7, 30, 16, 0, 0, 0, time.UTC)
}

type responderFunc func(call int, p *payload.Payload) (*externalsvc.OptimizeResult, error)

type fakeOptimizer struct {
	mu        sync.Mutex
	calls     []*payload.Payload
	responder responderFunc
	started   chan struct{}
	block     chan struct{}
}

func (f *fakeOptimizer) Optimize(_ context.Context, p *payload.Payload) (*externalsvc.OptimizeResult, error) {
	f.mu.Lock()
	call := len(f.calls)
	f.calls = append(f.calls, p)
	f.mu.Unlock()

	if call == 0 {
		if f.started != nil {
			close(f.started)
		}
		if f.block != nil {
			<-f.block
		}
	}
	return f.responder(call, p)
}

func (f *fakeOptimizer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// scheduleAllResponder assigns every offered item to its first eligible
// technician, at that technician's shift start (or its own fixed time,
// for a fixed-time item).
func scheduleAllResponder(_ int, p *payload.Payload) (*externalsvc.OptimizeResult, error) {
	shiftStart := make(map[entity.TechnicianID]time.Time, len(p.Technicians))
	for _, t := range p.Technicians {
		shiftStart[t.TechnicianID] = t.ShiftStart
	}

	result := &externalsvc.OptimizeResult{}
	for _, item := range p.Items {
		if len(item.EligibleTechnicianIDs) == 0 {
			result.Unresolved = append(result.Unresolved, externalsvc.UnresolvedItem{
				ItemID: item.ItemID, Reason: entity.FailureOptimizerOther,
			})
			continue
		}
		techID := item.EligibleTechnicianIDs[0]
		start := shiftStart[techID]
		if item.FixedTime != nil {
			start = *item.FixedTime
		}
		result.Stops = append(result.Stops, externalsvc.RouteStop{
			ItemID: item.ItemID, TechnicianID: techID, ScheduledStart: start,
		})
	}
	return result, nil
}

func unresolveAllResponder(_ int, p *payload.Payload) (*externalsvc.OptimizeResult, error) {
	result := &externalsvc.OptimizeResult{}
	for _, item := range p.Items {
		result.Unresolved = append(result.Unresolved, externalsvc.UnresolvedItem{
			ItemID: item.ItemID, Reason: entity.FailureOptimizerOther,
		})
	}
	return result, nil
}

// unresolveFirstCallOnly unresolves every item on the first call and
// resolves everything afterward, simulating a job that misses today's
// shift but lands on the first overflow pass.
func unresolveFirstCallOnly(call int, p *payload.Payload) (*externalsvc.OptimizeResult, error) {
	if call == 0 {
		return unresolveAllResponder(call, p)
	}
	return scheduleAllResponder(call, p)
}

type fakeDevices struct{}

func (fakeDevices) Fetch(context.Context, string) (*externalsvc.Location, error) { return nil, nil }

type fakeCache struct{}

func (fakeCache) BulkLookup(_ context.Context, pairs []traveltime.Pair, _ traveltime.Mode, _ *time.Time) ([]int64, error) {
	out := make([]int64, len(pairs))
	for i := range out {
		out[i] = 300
	}
	return out, nil
}

func allDayHours(unavailable map[time.Weekday]bool) []entity.HoursEntry {
	var hours []entity.HoursEntry
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		hours = append(hours, entity.HoursEntry{
			DayOfWeek: wd, StartTime: "08:00:00", EndTime: "18:00:00",
			IsAvailable: !unavailable[wd],
		})
	}
	return hours
}

func seedTechnician(store *memory.Store, unavailable map[time.Weekday]bool) *entity.Technician {
	vanID := uuid.New()
	store.PutVan(&entity.Van{ID: vanID, Equipment: nil})
	tech := &entity.Technician{
		ID: uuid.New(), VanID: &vanID, HomeLat: 51.0, HomeLng: -114.0,
		DefaultHours: allDayHours(unavailable),
	}
	store.PutTechnician(tech)
	return tech
}

func seedAddress(store *memory.Store, lat, lng float64) *entity.Address {
	addr := &entity.Address{ID: uuid.New(), Street: "123 Test St", Lat: &lat, Lng: &lng}
	store.PutAddress(addr)
	return addr
}

func seedQueuedJob(store *memory.Store, addr *entity.Address) *entity.Job {
	orderID := uuid.New()
	store.PutOrder(&entity.Order{ID: orderID, CustomerID: uuid.New(), AddressID: addr.ID})
	job := &entity.Job{
		ID: uuid.New(), OrderID: orderID, ServiceID: uuid.New(),
		DurationMinutes: 60, Priority: 1, Status: entity.JobStatusQueued,
	}
	store.PutJob(job)
	return job
}

func newTestOrchestrator(t *testing.T, db repository.Database, optimizer Optimizer, overflowMaxPasses int, now time.Time) *Orchestrator {
	t.Helper()
	cfg := &config.Config{
		BusinessTimezone:  "America/Edmonton",
		DepotLat:          51.0,
		DepotLng:          -114.0,
		OverflowMaxPasses: overflowMaxPasses,
		PredictiveHourUTC: 15,
	}
	reg := metrics.NewWithRegistry(prometheus.NewRegistry())
	o, err := New(db, optimizer, fakeDevices{}, fakeCache{}, cfg, zap.NewNop().Sugar(), reg)
	require.NoError(t, err)
	o.clock = func() time.Time { return now }
	return o
}

func TestRun_HappyPath_SchedulesEverythingInTodayPass(t *testing.T) {
	store := memory.NewStore()
	seedTechnician(store, nil)
	addr := seedAddress(store, 51.01, -114.01)
	job := seedQueuedJob(store, addr)

	db := memory.NewDatabase(store)
	optimizer := &fakeOptimizer{responder: scheduleAllResponder}
	o := newTestOrchestrator(t, db, optimizer, 3, fixedNow())

	result, err := o.Run(context.Background(), "manual")
	require.NoError(t, err)

	assert.Equal(t, 1, optimizer.callCount())
	assert.Equal(t, 2, result.PassesExecuted) // today + final write, no overflow needed
	assert.Equal(t, 1, result.JobsScheduled)
	assert.Equal(t, 0, result.JobsPendingReview)
	assert.Equal(t, entity.RunStatusCompleted, o.Status())

	updated, err := db.JobRepository().GetByID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.JobStatusQueued, updated.Status)
	require.NotNil(t, updated.AssignedTechnicianID)
	require.NotNil(t, updated.EstimatedSchedTime)
}

func TestRun_OverflowPass_SchedulesJobUnplaceableToday(t *testing.T) {
	store := memory.NewStore()
	seedTechnician(store, nil)
	addr := seedAddress(store, 51.01, -114.01)
	job := seedQueuedJob(store, addr)

	db := memory.NewDatabase(store)
	optimizer := &fakeOptimizer{responder: unresolveFirstCallOnly}
	o := newTestOrchestrator(t, db, optimizer, 3, fixedNow())

	result, err := o.Run(context.Background(), "manual")
	require.NoError(t, err)

	assert.Equal(t, 2, optimizer.callCount(), "today pass plus exactly one overflow pass")
	assert.Equal(t, 3, result.PassesExecuted) // today + 1 overflow + final write
	assert.Equal(t, 1, result.JobsScheduled)
	assert.Equal(t, 0, result.JobsPendingReview)

	updated, err := db.JobRepository().GetByID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.JobStatusQueued, updated.Status)
	require.NotNil(t, updated.AssignedTechnicianID)
}

func TestRun_OverflowExhausted_MarksPendingReview(t *testing.T) {
	store := memory.NewStore()
	seedTechnician(store, nil)
	addr := seedAddress(store, 51.01, -114.01)
	job := seedQueuedJob(store, addr)

	db := memory.NewDatabase(store)
	optimizer := &fakeOptimizer{responder: unresolveAllResponder}
	o := newTestOrchestrator(t, db, optimizer, 3, fixedNow())

	result, err := o.Run(context.Background(), "manual")
	require.NoError(t, err)

	assert.Equal(t, 4, optimizer.callCount(), "today pass plus all 3 overflow passes")
	assert.Equal(t, 0, result.JobsScheduled)
	assert.Equal(t, 1, result.JobsPendingReview)

	updated, err := db.JobRepository().GetByID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.JobStatusPendingReview, updated.Status)
}

func TestRun_IneligibleJob_SkipsOptimizerAndRecordsEquipmentFailure(t *testing.T) {
	store := memory.NewStore()
	tech := seedTechnician(store, nil) // van carries no equipment

	serviceID := uuid.New()
	store.PutService(&entity.Service{ID: serviceID, Name: "ADAS calibration", Category: entity.CategoryADAS})

	ymmID := int64(7)
	store.PutYMM(entity.YMM{ID: ymmID, Year: 2024, Make: "Toyota", Model: "Camry"})
	store.PutRequiredModels(ymmID, serviceID, []string{"adas-alpha"})

	addr := seedAddress(store, 51.01, -114.01)
	orderID := uuid.New()
	store.PutOrder(&entity.Order{ID: orderID, CustomerID: uuid.New(), AddressID: addr.ID, YMMID: &ymmID})
	job := &entity.Job{ID: uuid.New(), OrderID: orderID, ServiceID: serviceID, DurationMinutes: 60, Priority: 1, Status: entity.JobStatusQueued}
	store.PutJob(job)

	db := memory.NewDatabase(store)
	optimizer := &fakeOptimizer{responder: scheduleAllResponder}
	o := newTestOrchestrator(t, db, optimizer, 3, fixedNow())

	result, err := o.Run(context.Background(), "manual")
	require.NoError(t, err)

	assert.Equal(t, 0, optimizer.callCount(), "an ineligible job never reaches the optimizer")
	assert.Equal(t, 0, result.JobsScheduled)
	assert.Equal(t, 1, result.JobsPendingReview)
	_ = tech

	updated, err := db.JobRepository().GetByID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.JobStatusPendingReview, updated.Status)
}

func TestRun_RejectsConcurrentInvocation(t *testing.T) {
	store := memory.NewStore()
	seedTechnician(store, nil)
	addr := seedAddress(store, 51.01, -114.01)
	seedQueuedJob(store, addr)

	db := memory.NewDatabase(store)
	started := make(chan struct{})
	block := make(chan struct{})
	optimizer := &fakeOptimizer{responder: scheduleAllResponder, started: started, block: block}
	o := newTestOrchestrator(t, db, optimizer, 3, fixedNow())

	done := make(chan error, 1)
	go func() {
		_, err := o.Run(context.Background(), "manual")
		done <- err
	}()

	<-started
	assert.Equal(t, entity.RunStatusInProgress, o.Status())

	_, err := o.Run(context.Background(), "manual")
	assert.ErrorIs(t, err, ErrRunInProgress)

	close(block)
	require.NoError(t, <-done)
	assert.Equal(t, entity.RunStatusCompleted, o.Status())
}

func TestAnyTechnicianHasWindow_SkipsWeekend(t *testing.T) {
	loc, err := timeutilBusinessLocation(t)
	require.NoError(t, err)

	tech := &entity.Technician{
		ID:           uuid.New(),
		HomeLat:      51.0,
		HomeLng:      -114.0,
		DefaultHours: allDayHours(map[time.Weekday]bool{time.Saturday: true, time.Sunday: true}),
	}

	friday := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	saturday := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	sunday := time.Date(2026, 8, 2, 0, 0, 0, 0, time.UTC)
	monday := time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC)

	has, err := anyTechnicianHasWindow([]*entity.Technician{tech}, friday, loc)
	require.NoError(t, err)
	assert.True(t, has)

	has, err = anyTechnicianHasWindow([]*entity.Technician{tech}, saturday, loc)
	require.NoError(t, err)
	assert.False(t, has)

	has, err = anyTechnicianHasWindow([]*entity.Technician{tech}, sunday, loc)
	require.NoError(t, err)
	assert.False(t, has)

	has, err = anyTechnicianHasWindow([]*entity.Technician{tech}, monday, loc)
	require.NoError(t, err)
	assert.True(t, has)
}

func timeutilBusinessLocation(t *testing.T) (*time.Location, error) {
	t.Helper()
	return time.LoadLocation("America/Edmonton")
}
