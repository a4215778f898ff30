package controllers

import (
	"net/http"

	"github.com/angelmondragon/cakestore-backend/api/responses"
	"github.com/angelmondragon/cakestore-backend/api/validators"
	"github.com/angelmondragon/cakestore-backend/internal/capacity"
	"github.com/angelmondragon/cakestore-backend/internal/clock"
	"github.com/angelmondragon/cakestore-backend/internal/fulfillment"
	pkgerrors "github.com/angelmondragon/cakestore-backend/pkg/errors"
	"github.com/angelmondragon/cakestore-backend/pkg/logger"
	"github.com/angelmondragon/cakestore-backend/pkg/types"
)

type UpdateCapacityRequest struct {
	MaxCapacity *int `json:"max_capacity" validate:"required,gte=0,max=100000"`
}

// SlotList returns per-day production availability between ?from= and ?to=. Both default to
// the booking window: today through the horizon end.
func SlotList(svc capacity.Service, clk clock.Clock, policy fulfillment.Policy, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "capacity service unavailable"))
			return
		}

		from, to, err := parseRange(r, clk, policy)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		slots, err := svc.ListSlots(r.Context(), from, to)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, slots)
	}
}

// AdminCapacityUpdate changes max_capacity for one day. Lowering it below the reserved
// amount is rejected by the ledger.
func AdminCapacityUpdate(svc capacity.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "capacity service unavailable"))
			return
		}

		date, err := validators.ParseDateParam(r, "date")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body UpdateCapacityRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		slot, err := svc.UpdateMaxCapacity(r.Context(), date, *body.MaxCapacity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, slot)
	}
}

func parseRange(r *http.Request, clk clock.Clock, policy fulfillment.Policy) (types.Date, types.Date, error) {
	from, err := validators.ParseQueryDate(r, "from")
	if err != nil {
		return types.Date{}, types.Date{}, err
	}
	to, err := validators.ParseQueryDate(r, "to")
	if err != nil {
		return types.Date{}, types.Date{}, err
	}

	now := clk.Now()
	start := policy.Today(now)
	if from != nil {
		start = *from
	}
	end := policy.HorizonEnd(now)
	if to != nil {
		end = *to
	}
	return start, end, nil
}
