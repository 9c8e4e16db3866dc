package resultsprocessor

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldops/replanner/internal/entity"
)

func TestProcess_BundleStopFansOutToEachJob(t *testing.T) {
	tech := uuid.New()
	jobX := &entity.Job{ID: uuid.New()}
	jobY := &entity.Job{ID: uuid.New()}
	order := uuid.New()
	bundleID := entity.BundleItemID(order)
	item := entity.SchedulableItem{Kind: entity.ItemBundle, ID: bundleID, Jobs: []*entity.Job{jobX, jobY}}

	start := time.Date(2026, 7, 31, 9, 0, 0, 0, time.UTC)
	result := Process(
		[]RouteStop{{ItemID: bundleID, TechnicianID: tech, ScheduledStart: start}},
		nil,
		map[string]entity.SchedulableItem{bundleID: item},
	)

	require.Len(t, result.Updates, 2)
	for _, u := range result.Updates {
		assert.Equal(t, tech, u.TechnicianID)
		assert.Equal(t, start, u.ScheduledStartTime)
	}
}

func TestProcess_SingleJobStop(t *testing.T) {
	tech := uuid.New()
	job := &entity.Job{ID: uuid.New()}
	itemID := entity.SingleJobItemID(job.ID)
	item := entity.SchedulableItem{Kind: entity.ItemSingleJob, ID: itemID, Jobs: []*entity.Job{job}}

	start := time.Date(2026, 7, 31, 9, 0, 0, 0, time.UTC)
	result := Process(
		[]RouteStop{{ItemID: itemID, TechnicianID: tech, ScheduledStart: start}},
		nil,
		map[string]entity.SchedulableItem{itemID: item},
	)

	require.Len(t, result.Updates, 1)
	assert.Equal(t, job.ID, result.Updates[0].JobID)
}

func TestProcess_UnknownItemIDIsIgnoredNotApplied(t *testing.T) {
	result := Process(
		[]RouteStop{{ItemID: "job_does-not-exist", TechnicianID: uuid.New()}},
		nil,
		map[string]entity.SchedulableItem{},
	)
	assert.Empty(t, result.Updates)
	assert.Contains(t, result.Ignored, "job_does-not-exist")
}

func TestProcess_UnresolvedItemPassesThrough(t *testing.T) {
	job := &entity.Job{ID: uuid.New()}
	itemID := entity.SingleJobItemID(job.ID)
	item := entity.SchedulableItem{Kind: entity.ItemSingleJob, ID: itemID, Jobs: []*entity.Job{job}}

	result := Process(
		nil,
		[]UnresolvedItem{{ItemID: itemID, Reason: entity.FailureOptimizerTimeConstraint}},
		map[string]entity.SchedulableItem{itemID: item},
	)
	require.Len(t, result.Unresolved, 1)
	assert.Equal(t, entity.FailureOptimizerTimeConstraint, result.Unresolved[0].Reason)
}
