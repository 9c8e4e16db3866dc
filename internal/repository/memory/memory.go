// Package memory is an in-memory implementation of repository.Database,
// used by orchestrator and payload-assembly tests that need a full
// data-access surface without a live PostgreSQL instance.
package memory

import (
	"context"
	"sync"

	"github.com/fieldops/replanner/internal/entity"
	"github.com/fieldops/replanner/internal/repository"
)

// Store is a shared in-memory dataset for all entity types. A Database
// and any Transaction derived from it point at the same Store, so
// writes made inside a transaction are visible to the rest of the
// process immediately — there is no isolation or rollback of actual
// data, only of the Commit/Rollback bookkeeping calls themselves.
type Store struct {
	mu sync.RWMutex

	technicians      map[entity.TechnicianID]*entity.Technician
	vans             map[entity.VanID]*entity.Van
	jobs             map[entity.JobID]*entity.Job
	orders           map[entity.OrderID]*entity.Order
	addresses        map[entity.AddressID]*entity.Address
	services         map[entity.ServiceID]*entity.Service
	ymmByID          map[int64]entity.YMM
	requiredModels   map[ymmServiceKey][]string
	equipmentModels  map[string]bool
	schedulingStates map[entity.JobID]*entity.JobSchedulingState
	runRecords       map[entity.RunID]*entity.RunRecord
}

type ymmServiceKey struct {
	ymmID     int64
	serviceID entity.ServiceID
}

// NewStore creates an empty in-memory dataset.
func NewStore() *Store {
	return &Store{
		technicians:      make(map[entity.TechnicianID]*entity.Technician),
		vans:             make(map[entity.VanID]*entity.Van),
		jobs:             make(map[entity.JobID]*entity.Job),
		orders:           make(map[entity.OrderID]*entity.Order),
		addresses:        make(map[entity.AddressID]*entity.Address),
		services:         make(map[entity.ServiceID]*entity.Service),
		ymmByID:          make(map[int64]entity.YMM),
		requiredModels:   make(map[ymmServiceKey][]string),
		equipmentModels:  make(map[string]bool),
		schedulingStates: make(map[entity.JobID]*entity.JobSchedulingState),
		runRecords:       make(map[entity.RunID]*entity.RunRecord),
	}
}

// Seed helpers let tests populate the store directly, bypassing the
// repository interfaces (there is no ingestion pipeline to go through
// in-memory).

func (s *Store) PutTechnician(t *entity.Technician) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.technicians[t.ID] = t
}

func (s *Store) PutVan(v *entity.Van) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vans[v.ID] = v
}

func (s *Store) PutJob(j *entity.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[j.ID] = j
}

func (s *Store) PutOrder(o *entity.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[o.ID] = o
}

func (s *Store) PutAddress(a *entity.Address) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addresses[a.ID] = a
}

func (s *Store) PutService(svc *entity.Service) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.services[svc.ID] = svc
}

func (s *Store) PutYMM(y entity.YMM) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ymmByID[y.ID] = y
}

func (s *Store) PutRequiredModels(ymmID int64, serviceID entity.ServiceID, models []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requiredModels[ymmServiceKey{ymmID, serviceID}] = models
}

func (s *Store) PutEquipmentModel(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.equipmentModels[name] = true
}

// database implements repository.Database over a Store.
type database struct {
	store *Store

	technicians      *technicianRepository
	vans             *vanRepository
	jobs             *jobRepository
	orders           *orderRepository
	addresses        *addressRepository
	services         *serviceRepository
	ymms             *ymmRepository
	equipment        *equipmentRepository
	schedulingStates *schedulingStateRepository
	runRecords       *runRecordRepository
}

// NewDatabase wraps store behind repository.Database.
func NewDatabase(store *Store) repository.Database {
	return &database{
		store:            store,
		technicians:      &technicianRepository{store},
		vans:             &vanRepository{store},
		jobs:             &jobRepository{store},
		orders:           &orderRepository{store},
		addresses:        &addressRepository{store},
		services:         &serviceRepository{store},
		ymms:             &ymmRepository{store},
		equipment:        &equipmentRepository{store},
		schedulingStates: &schedulingStateRepository{store},
		runRecords:       &runRecordRepository{store},
	}
}

func (d *database) BeginTx(ctx context.Context) (repository.Transaction, error) {
	return &transaction{database: d}, nil
}

func (d *database) TechnicianRepository() repository.TechnicianRepository { return d.technicians }
func (d *database) VanRepository() repository.VanRepository               { return d.vans }
func (d *database) JobRepository() repository.JobRepository               { return d.jobs }
func (d *database) OrderRepository() repository.OrderRepository           { return d.orders }
func (d *database) AddressRepository() repository.AddressRepository       { return d.addresses }
func (d *database) ServiceRepository() repository.ServiceRepository       { return d.services }
func (d *database) YMMRepository() repository.YMMRepository               { return d.ymms }
func (d *database) EquipmentRepository() repository.EquipmentRepository   { return d.equipment }
func (d *database) JobSchedulingStateRepository() repository.JobSchedulingStateRepository {
	return d.schedulingStates
}
func (d *database) RunRecordRepository() repository.RunRecordRepository { return d.runRecords }

func (d *database) Close() error                    { return nil }
func (d *database) Health(ctx context.Context) error { return nil }

// transaction is a no-op transaction wrapper: the in-memory store has
// no concept of atomic multi-write rollback, so Commit and Rollback
// are both bookkeeping only.
type transaction struct {
	*database
}

func (t *transaction) Commit() error   { return nil }
func (t *transaction) Rollback() error { return nil }
