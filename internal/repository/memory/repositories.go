package memory

import (
	"context"
	"sort"
	"time"

	"github.com/fieldops/replanner/internal/entity"
	"github.com/fieldops/replanner/internal/repository"
)

type technicianRepository struct{ store *Store }

func (r *technicianRepository) GetByID(ctx context.Context, id entity.TechnicianID) (*entity.Technician, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	tech, ok := r.store.technicians[id]
	if !ok {
		return nil, &repository.NotFoundError{ResourceType: "Technician", ResourceID: id.String()}
	}
	return tech, nil
}

func (r *technicianRepository) ListActive(ctx context.Context) ([]*entity.Technician, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	technicians := make([]*entity.Technician, 0, len(r.store.technicians))
	for _, t := range r.store.technicians {
		technicians = append(technicians, t)
	}
	return technicians, nil
}

func (r *technicianRepository) UpdateCurrentLocation(ctx context.Context, id entity.TechnicianID, lat, lng float64, observedAt time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	tech, ok := r.store.technicians[id]
	if !ok {
		return &repository.NotFoundError{ResourceType: "Technician", ResourceID: id.String()}
	}
	tech.CurrentLat = &lat
	tech.CurrentLng = &lng
	return nil
}

func (r *technicianRepository) Count(ctx context.Context) (int64, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return int64(len(r.store.technicians)), nil
}

type vanRepository struct{ store *Store }

func (r *vanRepository) GetByID(ctx context.Context, id entity.VanID) (*entity.Van, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	van, ok := r.store.vans[id]
	if !ok {
		return nil, &repository.NotFoundError{ResourceType: "Van", ResourceID: id.String()}
	}
	return van, nil
}

func (r *vanRepository) ListByIDs(ctx context.Context, ids []entity.VanID) ([]*entity.Van, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var vans []*entity.Van
	for _, id := range ids {
		if van, ok := r.store.vans[id]; ok {
			vans = append(vans, van)
		}
	}
	return vans, nil
}

func (r *vanRepository) UpdateDeviceLocation(ctx context.Context, id entity.VanID, lat, lng float64, observedAt time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	van, ok := r.store.vans[id]
	if !ok {
		return &repository.NotFoundError{ResourceType: "Van", ResourceID: id.String()}
	}
	van.CurrentLat = &lat
	van.CurrentLng = &lng
	van.LocationTime = &observedAt
	return nil
}

func (r *vanRepository) Count(ctx context.Context) (int64, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return int64(len(r.store.vans)), nil
}

type jobRepository struct{ store *Store }

func (r *jobRepository) GetByID(ctx context.Context, id entity.JobID) (*entity.Job, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	job, ok := r.store.jobs[id]
	if !ok {
		return nil, &repository.NotFoundError{ResourceType: "Job", ResourceID: id.String()}
	}
	return job, nil
}

func (r *jobRepository) ListSchedulableForDate(ctx context.Context, date time.Time) ([]*entity.Job, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var jobs []*entity.Job
	for _, job := range r.store.jobs {
		if job.Status == entity.JobStatusPendingReview {
			continue
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func (r *jobRepository) ListLockedForDate(ctx context.Context, date time.Time) ([]*entity.Job, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var jobs []*entity.Job
	for _, job := range r.store.jobs {
		if job.Status.IsLocked() && job.AssignedTechnicianID != nil {
			jobs = append(jobs, job)
		}
	}
	return jobs, nil
}

func (r *jobRepository) ListFixedTime(ctx context.Context) ([]*entity.Job, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var jobs []*entity.Job
	for _, job := range r.store.jobs {
		if job.Status == entity.JobStatusFixedTime {
			jobs = append(jobs, job)
		}
	}
	return jobs, nil
}

func (r *jobRepository) UpdateSchedule(ctx context.Context, jobID entity.JobID, technicianID entity.TechnicianID, scheduledTime time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	job, ok := r.store.jobs[jobID]
	if !ok {
		return &repository.NotFoundError{ResourceType: "Job", ResourceID: jobID.String()}
	}
	job.AssignedTechnicianID = &technicianID
	job.EstimatedSchedTime = &scheduledTime
	job.Status = entity.JobStatusQueued
	return nil
}

func (r *jobRepository) MarkPendingReview(ctx context.Context, jobID entity.JobID, reason entity.FailureReason) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	job, ok := r.store.jobs[jobID]
	if !ok {
		return &repository.NotFoundError{ResourceType: "Job", ResourceID: jobID.String()}
	}
	job.Status = entity.JobStatusPendingReview
	return nil
}

func (r *jobRepository) Count(ctx context.Context) (int64, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return int64(len(r.store.jobs)), nil
}

type orderRepository struct{ store *Store }

func (r *orderRepository) GetByID(ctx context.Context, id entity.OrderID) (*entity.Order, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	order, ok := r.store.orders[id]
	if !ok {
		return nil, &repository.NotFoundError{ResourceType: "Order", ResourceID: id.String()}
	}
	return order, nil
}

func (r *orderRepository) ListByIDs(ctx context.Context, ids []entity.OrderID) ([]*entity.Order, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var orders []*entity.Order
	for _, id := range ids {
		if order, ok := r.store.orders[id]; ok {
			orders = append(orders, order)
		}
	}
	return orders, nil
}

func (r *orderRepository) Count(ctx context.Context) (int64, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return int64(len(r.store.orders)), nil
}

type addressRepository struct{ store *Store }

func (r *addressRepository) GetByID(ctx context.Context, id entity.AddressID) (*entity.Address, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	addr, ok := r.store.addresses[id]
	if !ok {
		return nil, &repository.NotFoundError{ResourceType: "Address", ResourceID: id.String()}
	}
	return addr, nil
}

func (r *addressRepository) ListByIDs(ctx context.Context, ids []entity.AddressID) ([]*entity.Address, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var addresses []*entity.Address
	for _, id := range ids {
		if addr, ok := r.store.addresses[id]; ok {
			addresses = append(addresses, addr)
		}
	}
	return addresses, nil
}

func (r *addressRepository) Count(ctx context.Context) (int64, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return int64(len(r.store.addresses)), nil
}

type serviceRepository struct{ store *Store }

func (r *serviceRepository) GetByID(ctx context.Context, id entity.ServiceID) (*entity.Service, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	svc, ok := r.store.services[id]
	if !ok {
		return nil, &repository.NotFoundError{ResourceType: "Service", ResourceID: id.String()}
	}
	return svc, nil
}

func (r *serviceRepository) Count(ctx context.Context) (int64, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return int64(len(r.store.services)), nil
}

type ymmRepository struct{ store *Store }

func (r *ymmRepository) FindByMakeModel(ctx context.Context, year int, make_, model string) (int64, bool, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	for id, y := range r.store.ymmByID {
		if y.Year == year && equalFold(y.Make, make_) && equalFold(y.Model, model) {
			return id, true, nil
		}
	}
	return 0, false, nil
}

func (r *ymmRepository) RequiredModels(ctx context.Context, ymmID int64, serviceID entity.ServiceID) ([]string, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return r.store.requiredModels[ymmServiceKey{ymmID, serviceID}], nil
}

func (r *ymmRepository) Count(ctx context.Context) (int64, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return int64(len(r.store.ymmByID)), nil
}

func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

type equipmentRepository struct{ store *Store }

func (r *equipmentRepository) ModelExistsNamed(ctx context.Context, name string) (bool, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	for model := range r.store.equipmentModels {
		if equalFold(model, name) {
			return true, nil
		}
	}
	return false, nil
}

func (r *equipmentRepository) ServiceCategory(ctx context.Context, serviceID entity.ServiceID) (entity.ServiceCategory, bool, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	svc, ok := r.store.services[serviceID]
	if !ok {
		return "", false, nil
	}
	return svc.Category, true, nil
}

func (r *equipmentRepository) Count(ctx context.Context) (int64, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return int64(len(r.store.equipmentModels)), nil
}

type schedulingStateRepository struct{ store *Store }

func (r *schedulingStateRepository) GetByJobID(ctx context.Context, jobID entity.JobID) (*entity.JobSchedulingState, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	state, ok := r.store.schedulingStates[jobID]
	if !ok {
		return nil, &repository.NotFoundError{ResourceType: "JobSchedulingState", ResourceID: jobID.String()}
	}
	return state, nil
}

func (r *schedulingStateRepository) Upsert(ctx context.Context, state *entity.JobSchedulingState) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.schedulingStates[state.JobID] = state
	return nil
}

func (r *schedulingStateRepository) Count(ctx context.Context) (int64, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return int64(len(r.store.schedulingStates)), nil
}

type runRecordRepository struct{ store *Store }

func (r *runRecordRepository) Create(ctx context.Context, record *entity.RunRecord) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.runRecords[record.ID] = record
	return nil
}

func (r *runRecordRepository) Update(ctx context.Context, record *entity.RunRecord) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.runRecords[record.ID]; !ok {
		return &repository.NotFoundError{ResourceType: "RunRecord", ResourceID: record.ID.String()}
	}
	r.store.runRecords[record.ID] = record
	return nil
}

func (r *runRecordRepository) GetByID(ctx context.Context, id entity.RunID) (*entity.RunRecord, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	record, ok := r.store.runRecords[id]
	if !ok {
		return nil, &repository.NotFoundError{ResourceType: "RunRecord", ResourceID: id.String()}
	}
	return record, nil
}

func (r *runRecordRepository) ListRecent(ctx context.Context, limit int) ([]*entity.RunRecord, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	records := make([]*entity.RunRecord, 0, len(r.store.runRecords))
	for _, rec := range r.store.runRecords {
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].StartedAt.After(records[j].StartedAt)
	})
	if len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

func (r *runRecordRepository) Count(ctx context.Context) (int64, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return int64(len(r.store.runRecords)), nil
}
