package syncer

import (
	"costtracker/internal/model"
)

// Totals derives the cost summary from the two projections. Pure: recomputed
// from scratch on every call, integer cents only, an unfetched or empty
// projection contributes zero.
func Totals(items Projection[model.CostItem], otherCosts Projection[model.OtherCost]) model.Totals {
	var t model.Totals
	for _, it := range items.Entries {
		t.Items += it.Cost
	}
	for _, oc := range otherCosts.Entries {
		t.OtherCosts += oc.Amount
	}
	t.Grand = t.Items + t.OtherCosts
	return t
}
