package syncer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"costtracker/internal/model"
	"costtracker/internal/money"
)

func TestTotals_ExactCents(t *testing.T) {
	t.Parallel()

	items := Projection[model.CostItem]{Entries: []model.CostItem{
		item("cable", 1299),
		item("tenth", 10),
		item("fifth", 20),
	}}
	other := Projection[model.OtherCost]{Entries: []model.OtherCost{
		{OtherCostFields: model.OtherCostFields{Description: "permit", Amount: 9999}},
	}}

	got := Totals(items, other)
	assert.Equal(t, money.Cents(1329), got.Items)
	assert.Equal(t, money.Cents(9999), got.OtherCosts)
	assert.Equal(t, money.Cents(11328), got.Grand)
	assert.Equal(t, "113.28", got.Grand.String())
}

func TestTotals_EmptyAndUnfetchedContributeZero(t *testing.T) {
	t.Parallel()

	got := Totals(Projection[model.CostItem]{}, Projection[model.OtherCost]{})
	assert.Equal(t, model.Totals{}, got)
}
