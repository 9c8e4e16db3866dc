package replan

import (
	"github.com/fieldops/replanner/internal/externalsvc"
	"github.com/fieldops/replanner/internal/resultsprocessor"
)

// toProcessorResult re-shapes an optimizer response into the types
// resultsprocessor.Process expects, keeping the HTTP client package
// free of any dependency on the fan-out package and vice versa.
func toProcessorResult(r *externalsvc.OptimizeResult) ([]resultsprocessor.RouteStop, []resultsprocessor.UnresolvedItem) {
	stops := make([]resultsprocessor.RouteStop, len(r.Stops))
	for i, s := range r.Stops {
		stops[i] = resultsprocessor.RouteStop{
			ItemID:         s.ItemID,
			TechnicianID:   s.TechnicianID,
			ScheduledStart: s.ScheduledStart,
		}
	}

	unresolved := make([]resultsprocessor.UnresolvedItem, len(r.Unresolved))
	for i, u := range r.Unresolved {
		unresolved[i] = resultsprocessor.UnresolvedItem{ItemID: u.ItemID, Reason: u.Reason}
	}

	return stops, unresolved
}
