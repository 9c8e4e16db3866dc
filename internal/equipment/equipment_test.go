package equipment

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldops/replanner/internal/entity"
)

type fakeLookup struct {
	ymmByOrder       map[entity.OrderID]int64
	modelsByYMMSvc   map[int64]map[entity.ServiceID][]string
	genericModels    map[string]bool
	categoryByService map[entity.ServiceID]entity.ServiceCategory
}

func (f *fakeLookup) YMMIDForOrder(_ context.Context, orderID entity.OrderID) (int64, bool, error) {
	id, ok := f.ymmByOrder[orderID]
	return id, ok, nil
}

func (f *fakeLookup) EquipmentModelsFor(_ context.Context, ymmID int64, serviceID entity.ServiceID) ([]string, error) {
	return f.modelsByYMMSvc[ymmID][serviceID], nil
}

func (f *fakeLookup) EquipmentModelNamedLike(_ context.Context, name string) (bool, error) {
	return f.genericModels[name], nil
}

func (f *fakeLookup) ServiceCategory(_ context.Context, serviceID entity.ServiceID) (entity.ServiceCategory, bool, error) {
	c, ok := f.categoryByService[serviceID]
	return c, ok, nil
}

func TestRequiredModelsForJob_DirectMatch(t *testing.T) {
	order := uuid.New()
	service := uuid.New()
	job := &entity.Job{OrderID: order, ServiceID: service}

	lookup := &fakeLookup{
		ymmByOrder: map[entity.OrderID]int64{order: 42},
		modelsByYMMSvc: map[int64]map[entity.ServiceID][]string{
			42: {service: {"adas-alpha"}},
		},
	}

	required, err := RequiredModelsForJob(context.Background(), lookup, job)
	require.NoError(t, err)
	assert.Contains(t, required, "adas-alpha")
	assert.Len(t, required, 1)
}

func TestRequiredModelsForJob_GenericCategoryFallback(t *testing.T) {
	order := uuid.New()
	service := uuid.New()
	job := &entity.Job{OrderID: order, ServiceID: service}

	lookup := &fakeLookup{
		ymmByOrder:        map[entity.OrderID]int64{order: 7},
		modelsByYMMSvc:    map[int64]map[entity.ServiceID][]string{},
		categoryByService: map[entity.ServiceID]entity.ServiceCategory{service: entity.CategoryProg},
		genericModels:     map[string]bool{"prog": true},
	}

	required, err := RequiredModelsForJob(context.Background(), lookup, job)
	require.NoError(t, err)
	assert.Contains(t, required, "prog")
}

func TestRequiredModelsForJob_NoFallbackModel(t *testing.T) {
	order := uuid.New()
	service := uuid.New()
	job := &entity.Job{OrderID: order, ServiceID: service}

	lookup := &fakeLookup{
		ymmByOrder:        map[entity.OrderID]int64{order: 7},
		modelsByYMMSvc:    map[int64]map[entity.ServiceID][]string{},
		categoryByService: map[entity.ServiceID]entity.ServiceCategory{service: entity.CategoryDiag},
		genericModels:     map[string]bool{},
	}

	required, err := RequiredModelsForJob(context.Background(), lookup, job)
	require.NoError(t, err)
	assert.Empty(t, required)
}

func TestRequiredModelsForJob_NoOrderOrService(t *testing.T) {
	job := &entity.Job{}
	required, err := RequiredModelsForJob(context.Background(), &fakeLookup{}, job)
	require.NoError(t, err)
	assert.Empty(t, required)
}

func TestRequiredModelsForJob_NoVehicleOnFile(t *testing.T) {
	order := uuid.New()
	service := uuid.New()
	job := &entity.Job{OrderID: order, ServiceID: service}

	lookup := &fakeLookup{ymmByOrder: map[entity.OrderID]int64{}}
	required, err := RequiredModelsForJob(context.Background(), lookup, job)
	require.NoError(t, err)
	assert.Empty(t, required)
}
