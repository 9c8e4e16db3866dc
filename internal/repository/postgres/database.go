package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fieldops/replanner/internal/repository"
)

// database wires the concrete PostgreSQL repositories behind
// repository.Database.
type database struct {
	db *DB

	technicians       *TechnicianRepository
	vans              *VanRepository
	jobs              *JobRepository
	orders            *OrderRepository
	addresses         *AddressRepository
	services          *ServiceRepository
	ymms              *YMMRepository
	equipment         *EquipmentRepository
	schedulingStates  *JobSchedulingStateRepository
	runRecords        *RunRecordRepository
}

// NewDatabase constructs a repository.Database backed by a live
// PostgreSQL connection.
func NewDatabase(db *DB) repository.Database {
	return &database{
		db:               db,
		technicians:      NewTechnicianRepository(db.DB),
		vans:             NewVanRepository(db.DB),
		jobs:             NewJobRepository(db.DB),
		orders:           NewOrderRepository(db.DB),
		addresses:        NewAddressRepository(db.DB),
		services:         NewServiceRepository(db.DB),
		ymms:             NewYMMRepository(db.DB),
		equipment:        NewEquipmentRepository(db.DB),
		schedulingStates: NewJobSchedulingStateRepository(db.DB),
		runRecords:       NewRunRecordRepository(db.DB),
	}
}

func (d *database) BeginTx(ctx context.Context) (repository.Transaction, error) {
	tx, err := d.db.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return newTransaction(tx), nil
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

func (d *database) Close() error                    { return d.db.Close() }
func (d *database) Health(ctx context.Context) error { return d.db.Health(ctx) }

// transaction wires the same repositories against a *sql.Tx instead of
// the pooled *sql.DB, for callers that need atomic multi-repository
// writes (the final batched write of a replan run).
type transaction struct {
	tx *sql.Tx

	technicians      *TechnicianRepository
	vans             *VanRepository
	jobs             *JobRepository
	orders           *OrderRepository
	addresses        *AddressRepository
	services         *ServiceRepository
	ymms             *YMMRepository
	equipment        *EquipmentRepository
	schedulingStates *JobSchedulingStateRepository
	runRecords       *RunRecordRepository
}

func newTransaction(tx *sql.Tx) *transaction {
	// sql.Tx satisfies sqlExecutor, so every repository type is reused
	// unmodified against an in-flight transaction.
	return &transaction{
		tx:               tx,
		technicians:      NewTechnicianRepository(tx),
		vans:             NewVanRepository(tx),
		jobs:             NewJobRepository(tx),
		orders:           NewOrderRepository(tx),
		addresses:        NewAddressRepository(tx),
		services:         NewServiceRepository(tx),
		ymms:             NewYMMRepository(tx),
		equipment:        NewEquipmentRepository(tx),
		schedulingStates: NewJobSchedulingStateRepository(tx),
		runRecords:       NewRunRecordRepository(tx),
	}
}

func (t *transaction) Commit() error   { return t.tx.Commit() }
func (t *transaction) Rollback() error { return t.tx.Rollback() }

func (t *transaction) TechnicianRepository() repository.TechnicianRepository { return t.technicians }
func (t *transaction) VanRepository() repository.VanRepository               { return t.vans }
func (t *transaction) JobRepository() repository.JobRepository               { return t.jobs }
func (t *transaction) OrderRepository() repository.OrderRepository           { return t.orders }
func (t *transaction) AddressRepository() repository.AddressRepository       { return t.addresses }
func (t *transaction) ServiceRepository() repository.ServiceRepository       { return t.services }
func (t *transaction) YMMRepository() repository.YMMRepository               { return t.ymms }
func (t *transaction) EquipmentRepository() repository.EquipmentRepository   { return t.equipment }
func (t *transaction) JobSchedulingStateRepository() repository.JobSchedulingStateRepository {
	return t.schedulingStates
}
func (t *transaction) RunRecordRepository() repository.RunRecordRepository { return t.runRecords }
