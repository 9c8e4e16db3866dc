package replan

import (
	"context"

	"github.com/fieldops/replanner/internal/entity"
	"github.com/fieldops/replanner/internal/repository"
)

// equipmentLookup adapts repository.Database to equipment.Lookup. It
// resolves a job's vehicle YMM by way of the order's YMMID column
// directly — no separate make/model matching step is needed here,
// that matching already happened when the order was ingested.
type equipmentLookup struct {
	db repository.Database
}

func (l *equipmentLookup) YMMIDForOrder(ctx context.Context, orderID entity.OrderID) (int64, bool, error) {
	order, err := l.db.OrderRepository().GetByID(ctx, orderID)
	if err != nil {
		if repository.IsNotFound(err) {
			return 0, false, nil
		}
		return 0, false, err
	}
	if order.YMMID == nil {
		return 0, false, nil
	}
	return *order.YMMID, true, nil
}

func (l *equipmentLookup) EquipmentModelsFor(ctx context.Context, ymmID int64, serviceID entity.ServiceID) ([]string, error) {
	return l.db.YMMRepository().RequiredModels(ctx, ymmID, serviceID)
}

func (l *equipmentLookup) EquipmentModelNamedLike(ctx context.Context, name string) (bool, error) {
	return l.db.EquipmentRepository().ModelExistsNamed(ctx, name)
}

func (l *equipmentLookup) ServiceCategory(ctx context.Context, serviceID entity.ServiceID) (entity.ServiceCategory, bool, error) {
	return l.db.EquipmentRepository().ServiceCategory(ctx, serviceID)
}

// addressLookup answers payload.AddressLookup from a pre-fetched set
// of addresses, so payload assembly never issues its own queries mid-pass.
type addressLookup struct {
	byID map[entity.AddressID]*entity.Address
}

func newAddressLookup(addresses []*entity.Address) *addressLookup {
	byID := make(map[entity.AddressID]*entity.Address, len(addresses))
	for _, a := range addresses {
		byID[a.ID] = a
	}
	return &addressLookup{byID: byID}
}

func (l *addressLookup) CoordinatesForAddress(addressID entity.AddressID) (lat, lng float64, ok bool) {
	addr, found := l.byID[addressID]
	if !found || !addr.HasCoordinates() {
		return 0, 0, false
	}
	return *addr.Lat, *addr.Lng, true
}
