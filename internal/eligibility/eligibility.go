// Package eligibility decides which technicians qualify to perform
// each SchedulableItem, given the equipment models each item requires
// and the equipment inventory of each technician's van.
package eligibility

import (
	"github.com/fieldops/replanner/internal/entity"
)

// Result is the outcome of resolving eligibility for one pass's items.
type Result struct {
	EligibleItems   []entity.SchedulableItem
	IneligibleItems []entity.IneligibleItem
}

// Resolve evaluates every item against technicians, given the required
// equipment models for each constituent job (requiredModelsByJob,
// keyed by job id) and each technician's van equipment
// (vanEquipmentByVan, keyed by van id).
//
// A technician is eligible for a set of required models iff their
// van's equipment set is a superset of it; a technician with no
// assigned van is eligible only when the required set is empty.
//
// For a Bundle, the required sets of its constituent jobs are unioned
// and evaluated once: if at least one technician is eligible for the
// union, the whole bundle is eligible. If none is, the bundle is
// broken — each constituent job is evaluated independently and folded
// into the output individually, never re-grouped.
func Resolve(
	items []entity.SchedulableItem,
	technicians []*entity.Technician,
	requiredModelsByJob map[entity.JobID]map[string]struct{},
	vanEquipmentByVan map[entity.VanID][]string,
) Result {
	var result Result

	for _, item := range items {
		switch item.Kind {
		case entity.ItemBundle:
			resolveBundle(item, technicians, requiredModelsByJob, vanEquipmentByVan, &result)
		default:
			resolveSingle(item, technicians, requiredModelsByJob, vanEquipmentByVan, &result)
		}
	}

	return result
}

func resolveSingle(item entity.SchedulableItem, technicians []*entity.Technician, requiredModelsByJob map[entity.JobID]map[string]struct{}, vanEquipmentByVan map[entity.VanID][]string, result *Result) {
	required := requiredModelsByJob[item.Jobs[0].ID]
	eligible := findEligibleTechnicians(required, technicians, vanEquipmentByVan)
	if len(eligible) == 0 {
		result.IneligibleItems = append(result.IneligibleItems, entity.IneligibleItem{
			Item:   item,
			Reason: entity.FailureNoEligibleTechnicianEquipment,
		})
		return
	}
	item.EligibleTechnicianIDs = eligible
	result.EligibleItems = append(result.EligibleItems, item)
}

func resolveBundle(item entity.SchedulableItem, technicians []*entity.Technician, requiredModelsByJob map[entity.JobID]map[string]struct{}, vanEquipmentByVan map[entity.VanID][]string, result *Result) {
	union := make(map[string]struct{})
	for _, job := range item.Jobs {
		for m := range requiredModelsByJob[job.ID] {
			union[m] = struct{}{}
		}
	}

	eligible := findEligibleTechnicians(union, technicians, vanEquipmentByVan)
	if len(eligible) > 0 {
		item.EligibleTechnicianIDs = eligible
		result.EligibleItems = append(result.EligibleItems, item)
		return
	}

	// Bundle-break: evaluate each constituent job independently.
	for _, job := range item.Jobs {
		single := entity.SchedulableItem{
			Kind:            entity.ItemSingleJob,
			ID:              entity.SingleJobItemID(job.ID),
			OrderID:         item.OrderID,
			Jobs:            []*entity.Job{job},
			AddressID:       item.AddressID,
			DurationMinutes: job.DurationMinutes,
			Priority:        job.Priority,
		}
		resolveSingle(single, technicians, requiredModelsByJob, vanEquipmentByVan, result)
	}
}

// findEligibleTechnicians returns the ids of every technician whose
// van equipment is a superset of required.
func findEligibleTechnicians(required map[string]struct{}, technicians []*entity.Technician, vanEquipmentByVan map[entity.VanID][]string) []entity.TechnicianID {
	var eligible []entity.TechnicianID
	for _, tech := range technicians {
		if tech.VanID == nil {
			if len(required) == 0 {
				eligible = append(eligible, tech.ID)
			}
			continue
		}
		vanEquipment := vanEquipmentByVan[*tech.VanID]
		if supersetOf(vanEquipment, required) {
			eligible = append(eligible, tech.ID)
		}
	}
	return eligible
}

func supersetOf(inventory []string, required map[string]struct{}) bool {
	if len(required) == 0 {
		return true
	}
	have := make(map[string]struct{}, len(inventory))
	for _, m := range inventory {
		have[m] = struct{}{}
	}
	for m := range required {
		if _, ok := have[m]; !ok {
			return false
		}
	}
	return true
}
