package fulfillment

import (
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/cakestore-backend/internal/capacity"
	"github.com/angelmondragon/cakestore-backend/internal/catalog"
	pkgerrors "github.com/angelmondragon/cakestore-backend/pkg/errors"
	"github.com/angelmondragon/cakestore-backend/pkg/types"
)

var (
	dayD      = types.NewDate(2026, 10, 19)
	morning   = time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)
	evening   = time.Date(2026, 10, 19, 19, 0, 0, 0, time.UTC)
	estimator = NewEstimator(DefaultPolicy())
)

func stocked(stock int) catalog.Product {
	return catalog.NewStocked(uuid.New(), "Macaron box", decimal.NewFromInt(12), stock, nil)
}

func madeToOrder(leadHours int) catalog.Product {
	return catalog.NewMadeToOrder(uuid.New(), "Layer cake", decimal.NewFromInt(40), leadHours, nil)
}

func catalogOf(products ...catalog.Product) map[uuid.UUID]catalog.Product {
	out := make(map[uuid.UUID]catalog.Product, len(products))
	for _, p := range products {
		out[p.ID] = p
	}
	return out
}

func openSnapshot() capacity.Snapshot {
	return capacity.NewSnapshot(nil, 50)
}

func slot(date types.Date, maxCapacity, reserved int) capacity.Slot {
	return capacity.Slot{Date: date, MaxCapacity: maxCapacity, ReservedCapacity: reserved, Seeded: true}
}

func TestStockedLineShipsNextDay(t *testing.T) {
	p := stocked(5)
	est, err := estimator.Estimate([]Line{{ProductID: p.ID, Quantity: 1}}, catalogOf(p), openSnapshot(), morning)
	require.NoError(t, err)
	assert.True(t, est.Available)
	assert.Equal(t, dayD.AddDays(1), est.EarliestDate)
	assert.Empty(t, est.StockIssues)
}

func TestStockShortfallIsReportedWithoutShiftingDate(t *testing.T) {
	p := stocked(5)
	lines := []Line{{ProductID: p.ID, Quantity: 3}, {ProductID: p.ID, Quantity: 3}}
	est, err := estimator.Estimate(lines, catalogOf(p), openSnapshot(), morning)
	require.NoError(t, err)
	assert.True(t, est.Available)
	assert.Equal(t, dayD.AddDays(1), est.EarliestDate)
	require.Len(t, est.StockIssues, 1)
	assert.Equal(t, StockIssue{ProductID: p.ID, Requested: 6, Available: 5}, est.StockIssues[0])
	require.Len(t, est.Lines, 1)
}

func TestMadeToOrderBeforeCutoff(t *testing.T) {
	p := madeToOrder(24)
	est, err := estimator.Estimate([]Line{{ProductID: p.ID, Quantity: 1}}, catalogOf(p), openSnapshot(), morning)
	require.NoError(t, err)
	assert.Equal(t, dayD.AddDays(1), est.EarliestDate)
}

func TestMadeToOrderAfterCutoff(t *testing.T) {
	p := madeToOrder(24)
	est, err := estimator.Estimate([]Line{{ProductID: p.ID, Quantity: 1}}, catalogOf(p), openSnapshot(), evening)
	require.NoError(t, err)
	assert.Equal(t, dayD.AddDays(2), est.EarliestDate)

	atCutoff := time.Date(2026, 10, 19, 18, 0, 0, 0, time.UTC)
	est, err = estimator.Estimate([]Line{{ProductID: p.ID, Quantity: 1}}, catalogOf(p), openSnapshot(), atCutoff)
	require.NoError(t, err)
	assert.Equal(t, dayD.AddDays(2), est.EarliestDate)
}

func TestLeadTimeBeyondCutoffFloorWins(t *testing.T) {
	p := madeToOrder(72)
	est, err := estimator.Estimate([]Line{{ProductID: p.ID, Quantity: 1}}, catalogOf(p), openSnapshot(), morning)
	require.NoError(t, err)
	assert.Equal(t, dayD.AddDays(3), est.EarliestDate)

	zeroLead := madeToOrder(0)
	est, err = estimator.Estimate([]Line{{ProductID: zeroLead.ID, Quantity: 1}}, catalogOf(zeroLead), openSnapshot(), morning)
	require.NoError(t, err)
	assert.Equal(t, dayD.AddDays(1), est.EarliestDate)
}

func TestCutoffUsesPolicyTimeZone(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)
	policy := DefaultPolicy()
	policy.Location = berlin
	local := NewEstimator(policy)

	// 16:30 UTC is 18:30 in Berlin summer time.
	now := time.Date(2026, 10, 19, 16, 30, 0, 0, time.UTC)
	p := madeToOrder(24)
	est, err := local.Estimate([]Line{{ProductID: p.ID, Quantity: 1}}, catalogOf(p), openSnapshot(), now)
	require.NoError(t, err)
	assert.Equal(t, dayD.AddDays(2), est.EarliestDate)

	est, err = estimator.Estimate([]Line{{ProductID: p.ID, Quantity: 1}}, catalogOf(p), openSnapshot(), now)
	require.NoError(t, err)
	assert.Equal(t, dayD.AddDays(1), est.EarliestDate)
}

func TestFullDayAdvancesSearch(t *testing.T) {
	p := madeToOrder(24)
	snap := capacity.NewSnapshot([]capacity.Slot{slot(dayD.AddDays(1), 10, 8)}, 50)
	est, err := estimator.Estimate([]Line{{ProductID: p.ID, Quantity: 10}}, catalogOf(p), snap, morning)
	require.NoError(t, err)
	assert.True(t, est.Available)
	assert.Equal(t, dayD.AddDays(2), est.EarliestDate)
	assert.Equal(t, dayD.AddDays(1), est.Lines[0].Floor)
}

func TestHorizonExhaustedIsUnavailable(t *testing.T) {
	p := madeToOrder(24)
	snap := capacity.NewSnapshot([]capacity.Slot{slot(dayD.AddDays(1), 10, 8)}, 0)
	est, err := estimator.Estimate([]Line{{ProductID: p.ID, Quantity: 10}}, catalogOf(p), snap, morning)
	require.NoError(t, err)
	assert.False(t, est.Available)
	assert.True(t, est.EarliestDate.IsZero())
	assert.Equal(t, dayD.AddDays(30), est.HorizonEnd)

	fitsOnLastDay := capacity.NewSnapshot([]capacity.Slot{slot(dayD.AddDays(30), 10, 0)}, 0)
	est, err = estimator.Estimate([]Line{{ProductID: p.ID, Quantity: 10}}, catalogOf(p), fitsOnLastDay, morning)
	require.NoError(t, err)
	assert.True(t, est.Available)
	assert.Equal(t, dayD.AddDays(30), est.EarliestDate)

	pastHorizon := capacity.NewSnapshot([]capacity.Slot{slot(dayD.AddDays(31), 10, 0)}, 0)
	est, err = estimator.Estimate([]Line{{ProductID: p.ID, Quantity: 10}}, catalogOf(p), pastHorizon, morning)
	require.NoError(t, err)
	assert.False(t, est.Available)
}

func TestCartTakesLatestLineDate(t *testing.T) {
	box := stocked(10)
	cake := madeToOrder(48)
	lines := []Line{{ProductID: box.ID, Quantity: 2}, {ProductID: cake.ID, Quantity: 1}}
	est, err := estimator.Estimate(lines, catalogOf(box, cake), openSnapshot(), morning)
	require.NoError(t, err)
	assert.Equal(t, dayD.AddDays(2), est.EarliestDate)
	require.Len(t, est.Lines, 2)
}

func TestCombinedMadeToOrderQuantityMustFitOneDay(t *testing.T) {
	first := madeToOrder(24)
	second := madeToOrder(24)
	snap := capacity.NewSnapshot([]capacity.Slot{slot(dayD.AddDays(1), 10, 0)}, 50)
	lines := []Line{{ProductID: first.ID, Quantity: 6}, {ProductID: second.ID, Quantity: 6}}

	est, err := estimator.Estimate(lines, catalogOf(first, second), snap, morning)
	require.NoError(t, err)
	for _, line := range est.Lines {
		assert.Equal(t, dayD.AddDays(1), line.Date)
	}
	assert.Equal(t, dayD.AddDays(2), est.EarliestDate)
}

func TestEstimateIsMonotonicInQuantity(t *testing.T) {
	cake := madeToOrder(24)
	box := stocked(3)
	snap := capacity.NewSnapshot([]capacity.Slot{
		slot(dayD.AddDays(1), 10, 6),
		slot(dayD.AddDays(2), 12, 0),
		slot(dayD.AddDays(3), 5, 5),
		slot(dayD.AddDays(4), 20, 2),
	}, 8)

	var previous types.Date
	wasAvailable := true
	for qty := 1; qty <= 25; qty++ {
		lines := []Line{{ProductID: box.ID, Quantity: 1}, {ProductID: cake.ID, Quantity: qty}}
		est, err := estimator.Estimate(lines, catalogOf(cake, box), snap, morning)
		require.NoError(t, err)
		if !est.Available {
			wasAvailable = false
			continue
		}
		require.True(t, wasAvailable, "quantity %d became available again", qty)
		assert.False(t, est.EarliestDate.Before(previous), "quantity %d moved the date earlier", qty)
		previous = est.EarliestDate
	}
}

func TestEstimateIsRepeatable(t *testing.T) {
	cake := madeToOrder(30)
	box := stocked(1)
	snap := capacity.NewSnapshot([]capacity.Slot{slot(dayD.AddDays(2), 4, 3)}, 50)
	lines := []Line{{ProductID: cake.ID, Quantity: 2}, {ProductID: box.ID, Quantity: 2}}

	first, err := estimator.Estimate(lines, catalogOf(cake, box), snap, evening)
	require.NoError(t, err)
	second, err := estimator.Estimate(lines, catalogOf(cake, box), snap, evening)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestEstimateValidation(t *testing.T) {
	_, err := estimator.Estimate(nil, nil, openSnapshot(), morning)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	p := stocked(1)
	_, err = estimator.Estimate([]Line{{ProductID: p.ID, Quantity: 0}}, catalogOf(p), openSnapshot(), morning)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	_, err = estimator.Estimate([]Line{{ProductID: uuid.New(), Quantity: 1}}, catalogOf(p), openSnapshot(), morning)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}

func TestConsolidateMergesAndSorts(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	merged := Consolidate([]Line{{ProductID: a, Quantity: 1}, {ProductID: b, Quantity: 2}, {ProductID: a, Quantity: 4}})
	require.Len(t, merged, 2)
	assert.True(t, merged[0].ProductID.String() < merged[1].ProductID.String())
	totals := map[uuid.UUID]int{merged[0].ProductID: merged[0].Quantity, merged[1].ProductID: merged[1].Quantity}
	assert.Equal(t, 5, totals[a])
	assert.Equal(t, 2, totals[b])
}

func TestValidateLinesBoundsQuantities(t *testing.T) {
	p := stocked(1)
	other := stocked(1)

	require.NoError(t, ValidateLines([]Line{{ProductID: p.ID, Quantity: MaxLineQuantity}}))

	err := ValidateLines([]Line{{ProductID: p.ID, Quantity: MaxLineQuantity + 1}})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	// each line is in range but the merged total is not
	err = ValidateLines([]Line{{ProductID: p.ID, Quantity: MaxLineQuantity}, {ProductID: other.ID, Quantity: 1}, {ProductID: p.ID, Quantity: 1}})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	err = ValidateLines([]Line{{ProductID: p.ID, Quantity: math.MaxInt}, {ProductID: p.ID, Quantity: math.MaxInt}})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestEstimateRejectsHugeQuantities(t *testing.T) {
	cake := madeToOrder(24)
	_, err := estimator.Estimate([]Line{{ProductID: cake.ID, Quantity: math.MaxInt}}, catalogOf(cake), openSnapshot(), morning)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestEarliestFloorRejectsOutOfRangeLeadTime(t *testing.T) {
	atLimit := madeToOrder(catalog.MaxLeadTimeHours)
	floor, err := estimator.EarliestFloor(atLimit, morning)
	require.NoError(t, err)
	assert.True(t, floor.After(dayD.AddDays(364)))

	// rows written before the lead time bound existed can still carry these
	for _, hours := range []int{-1, catalog.MaxLeadTimeHours + 1, 3_000_000} {
		bad := madeToOrder(hours)
		_, err := estimator.EarliestFloor(bad, morning)
		assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInternal), "lead time %d", hours)

		_, err = estimator.Estimate([]Line{{ProductID: bad.ID, Quantity: 1}}, catalogOf(bad), openSnapshot(), morning)
		assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInternal), "lead time %d", hours)
	}
}
