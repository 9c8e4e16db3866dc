// Package bundling groups the jobs selected for a pass into
// SchedulableItems: same-order jobs become a single Bundle, solitary
// jobs become a SingleJob, and fixed_time jobs are always singletons.
// The pass has already loaded every candidate job in one batch query,
// so this groups in a single in-memory pass with no further
// data-access calls — no N+1 queries here, same discipline the
// coverage aggregator uses for its own batch pass.
package bundling

import (
	"github.com/fieldops/replanner/internal/entity"
)

// BuildSchedulableItems groups jobs into SchedulableItems. Every job
// with status fixed_time becomes its own SingleJob, never bundled.
// The remainder are grouped by OrderID: a group of two or more jobs
// becomes a Bundle with the address shared by its jobs, duration equal
// to the sum of constituent durations, and priority equal to the
// maximum; a group of exactly one job becomes a SingleJob.
func BuildSchedulableItems(jobs []*entity.Job, addressByOrder map[entity.OrderID]entity.AddressID) []entity.SchedulableItem {
	var items []entity.SchedulableItem
	groups := make(map[entity.OrderID][]*entity.Job)
	var groupOrder []entity.OrderID

	for _, job := range jobs {
		if job.Status == entity.JobStatusFixedTime {
			items = append(items, singleJobItem(job, addressByOrder))
			continue
		}
		if _, seen := groups[job.OrderID]; !seen {
			groupOrder = append(groupOrder, job.OrderID)
		}
		groups[job.OrderID] = append(groups[job.OrderID], job)
	}

	for _, orderID := range groupOrder {
		group := groups[orderID]
		if len(group) == 1 {
			items = append(items, singleJobItem(group[0], addressByOrder))
			continue
		}
		items = append(items, bundleItem(orderID, group, addressByOrder))
	}

	return items
}

func singleJobItem(job *entity.Job, addressByOrder map[entity.OrderID]entity.AddressID) entity.SchedulableItem {
	return entity.SchedulableItem{
		Kind:            entity.ItemSingleJob,
		ID:              entity.SingleJobItemID(job.ID),
		OrderID:         job.OrderID,
		Jobs:            []*entity.Job{job},
		AddressID:       addressByOrder[job.OrderID],
		DurationMinutes: job.DurationMinutes,
		Priority:        job.Priority,
	}
}

func bundleItem(orderID entity.OrderID, jobs []*entity.Job, addressByOrder map[entity.OrderID]entity.AddressID) entity.SchedulableItem {
	duration := 0
	priority := jobs[0].Priority
	for _, j := range jobs {
		duration += j.DurationMinutes
		if j.Priority > priority {
			priority = j.Priority
		}
	}
	return entity.SchedulableItem{
		Kind:            entity.ItemBundle,
		ID:              entity.BundleItemID(orderID),
		OrderID:         orderID,
		Jobs:            jobs,
		AddressID:       addressByOrder[orderID],
		DurationMinutes: duration,
		Priority:        priority,
	}
}
