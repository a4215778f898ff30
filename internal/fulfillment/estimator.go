package fulfillment

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/cakestore-backend/internal/capacity"
	"github.com/angelmondragon/cakestore-backend/internal/catalog"
	"github.com/angelmondragon/cakestore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/cakestore-backend/pkg/errors"
	"github.com/angelmondragon/cakestore-backend/pkg/types"
)

// LineEstimate is the earliest day one consolidated cart line could be fulfilled on its own.
type LineEstimate struct {
	ProductID uuid.UUID
	Kind      enums.ProductKind
	Quantity  int
	Floor     types.Date
	Date      types.Date
	Available bool
}

// StockIssue reports a stocked line the shelf cannot currently cover. It does not move the date.
type StockIssue struct {
	ProductID uuid.UUID
	Requested int
	Available int
}

// Estimate is the answer for a whole cart. EarliestDate is zero when Available is false.
type Estimate struct {
	Today        types.Date
	HorizonEnd   types.Date
	EarliestDate types.Date
	Available    bool
	Lines        []LineEstimate
	StockIssues  []StockIssue
}

// Estimator is pure: the same lines, products, snapshot and instant always give the same answer.
type Estimator struct {
	policy Policy
}

func NewEstimator(policy Policy) Estimator {
	return Estimator{policy: policy}
}

func (e Estimator) Policy() Policy {
	return e.policy
}

// EarliestFloor is the first day a product can be ready, before capacity is considered.
func (e Estimator) EarliestFloor(product catalog.Product, now time.Time) (types.Date, error) {
	switch product.Kind {
	case enums.ProductKindStocked:
		return e.policy.Today(now).AddDays(e.policy.StockedOffsetDays), nil
	case enums.ProductKindMadeToOrder:
		hours := 0
		if product.MadeToOrder != nil {
			hours = product.MadeToOrder.LeadTimeHours
		}
		if product.MadeToOrder == nil || hours < 0 || hours > catalog.MaxLeadTimeHours {
			return types.Date{}, malformedProduct(product.ID)
		}
		lead := time.Duration(hours) * time.Hour
		ready := types.DateOf(now.Add(lead), e.policy.location())
		return types.MaxDate(ready, e.policy.CutoffFloor(now)), nil
	default:
		return types.Date{}, malformedProduct(product.ID)
	}
}

// Estimate finds the earliest day the whole cart can be produced together. Each made-to-order
// line searches forward from its floor for a day with room, the cart takes the latest of the
// line dates, and the combined made-to-order quantity must then fit on that single day.
func (e Estimator) Estimate(lines []Line, products map[uuid.UUID]catalog.Product, snap capacity.Snapshot, now time.Time) (Estimate, error) {
	if err := ValidateLines(lines); err != nil {
		return Estimate{}, err
	}
	result := Estimate{
		Today:      e.policy.Today(now),
		HorizonEnd: e.policy.HorizonEnd(now),
		Available:  true,
	}

	var cartDate types.Date
	madeToOrderTotal := 0
	for _, line := range Consolidate(lines) {
		product, ok := products[line.ProductID]
		if !ok {
			return Estimate{}, pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
				WithDetails(map[string]any{"product_id": line.ProductID.String()})
		}
		floor, err := e.EarliestFloor(product, now)
		if err != nil {
			return Estimate{}, err
		}
		est := LineEstimate{
			ProductID: line.ProductID,
			Kind:      product.Kind,
			Quantity:  line.Quantity,
			Floor:     floor,
		}

		switch product.Kind {
		case enums.ProductKindStocked:
			est.Date, est.Available = floor, true
			if product.Stocked == nil || product.Stocked.StockQuantity < line.Quantity {
				available := 0
				if product.Stocked != nil {
					available = product.Stocked.StockQuantity
				}
				result.StockIssues = append(result.StockIssues, StockIssue{
					ProductID: line.ProductID,
					Requested: line.Quantity,
					Available: available,
				})
			}
		case enums.ProductKindMadeToOrder:
			madeToOrderTotal += line.Quantity
			est.Date, est.Available = e.firstFit(snap, floor, result.HorizonEnd, line.Quantity)
		}

		if !est.Available {
			result.Available = false
		} else {
			cartDate = types.MaxDate(cartDate, est.Date)
		}
		result.Lines = append(result.Lines, est)
	}

	if !result.Available {
		return result, nil
	}
	if madeToOrderTotal > 0 {
		date, ok := e.firstFit(snap, cartDate, result.HorizonEnd, madeToOrderTotal)
		if !ok {
			result.Available = false
			return result, nil
		}
		cartDate = date
	}
	result.EarliestDate = cartDate
	return result, nil
}

// firstFit scans from..horizon for the first day where qty more units fit.
func (e Estimator) firstFit(snap capacity.Snapshot, from, horizon types.Date, qty int) (types.Date, bool) {
	for day := from; !day.After(horizon); day = day.AddDays(1) {
		if snap.Fits(day, qty) {
			return day, true
		}
	}
	return types.Date{}, false
}

func malformedProduct(id uuid.UUID) *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeInternal, "product variant payload missing or out of range").
		WithDetails(map[string]any{"product_id": id.String()})
}
