// Package equipment resolves the set of equipment models a job
// requires, by way of the job's vehicle YMM and service.
package equipment

import (
	"context"

	"github.com/fieldops/replanner/internal/entity"
)

// Lookup is the read-only surface this resolver needs from the
// data-access layer; it is a narrow slice of repository.Database kept
// here to avoid a dependency cycle between packages.
type Lookup interface {
	// YMMIDForOrder resolves an order's vehicle to a ymm_id, matching
	// make/model case-insensitively. Returns (0, false) if the order
	// has no vehicle on file.
	YMMIDForOrder(ctx context.Context, orderID entity.OrderID) (int64, bool, error)
	// EquipmentModelsFor returns the equipment models required for a
	// (ymm_id, service_id) pair, per the unified requirements table.
	EquipmentModelsFor(ctx context.Context, ymmID int64, serviceID entity.ServiceID) ([]string, error)
	// EquipmentModelNamedLike an exact-match probe for the
	// generic-category fallback: does an equipment model exist whose
	// identifier string equals name?
	EquipmentModelNamedLike(ctx context.Context, name string) (bool, error)
	// ServiceCategory returns the category of a service.
	ServiceCategory(ctx context.Context, serviceID entity.ServiceID) (entity.ServiceCategory, bool, error)
}

// RequiredModelsForJob resolves the set of equipment model identifiers
// a job requires.
//
//  1. If the job has no order or no service, nothing is required —
//     ineligibility on the equipment axis is impossible for such a job.
//  2. Resolve the order's vehicle to a ymm_id. No vehicle on file means
//     nothing is required.
//  3. Look up (ymmID, serviceID) in the unified requirements table.
//  4. If that lookup returns no rows, fall back to the generic-category
//     probe: if an equipment model exists whose identifier string
//     equals the service's category name (e.g. a model literally named
//     "prog"), require exactly that model. Otherwise require nothing.
func RequiredModelsForJob(ctx context.Context, lookup Lookup, job *entity.Job) (map[string]struct{}, error) {
	required := make(map[string]struct{})

	if job.OrderID == (entity.OrderID{}) || job.ServiceID == (entity.ServiceID{}) {
		return required, nil
	}

	ymmID, ok, err := lookup.YMMIDForOrder(ctx, job.OrderID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return required, nil
	}

	models, err := lookup.EquipmentModelsFor(ctx, ymmID, job.ServiceID)
	if err != nil {
		return nil, err
	}
	if len(models) > 0 {
		for _, m := range models {
			required[m] = struct{}{}
		}
		return required, nil
	}

	category, ok, err := lookup.ServiceCategory(ctx, job.ServiceID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return required, nil
	}

	exists, err := lookup.EquipmentModelNamedLike(ctx, string(category))
	if err != nil {
		return nil, err
	}
	if exists {
		required[string(category)] = struct{}{}
	}

	return required, nil
}
