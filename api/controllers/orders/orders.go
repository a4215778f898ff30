package orders

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/cakestore-backend/api/responses"
	"github.com/angelmondragon/cakestore-backend/api/validators"
	internalorders "github.com/angelmondragon/cakestore-backend/internal/orders"
	"github.com/angelmondragon/cakestore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/cakestore-backend/pkg/errors"
	"github.com/angelmondragon/cakestore-backend/pkg/logger"
	"github.com/angelmondragon/cakestore-backend/pkg/pagination"
)

// Place reserves capacity and stock for the requested delivery date and records the order.
// Conflicts come back as INSUFFICIENT_STOCK or CAPACITY_EXCEEDED with the offending product
// or date in details.
func Place(svc internalorders.PlacementService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "placement service unavailable"))
			return
		}

		var payload PlaceOrderRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if payload.DeliveryDate.IsZero() {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "validation failed").
				WithDetails(map[string]string{"delivery_date": "is required"}))
			return
		}

		confirmation, err := svc.Place(r.Context(), payload.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		w.Header().Set("Location", "/api/v1/orders/"+confirmation.OrderID.String())
		responses.WriteSuccessStatus(w, http.StatusCreated, internalorders.NewConfirmationDTO(*confirmation))
	}
}

func Detail(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Get(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// List pages through orders newest first, filtered by ?status= and ?delivery_date=.
func List(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filters, err := buildFilters(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.List(r.Context(), filters, pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func buildFilters(r *http.Request) (internalorders.ListFilters, error) {
	var filters internalorders.ListFilters
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		status, err := enums.ParseOrderStatus(raw)
		if err != nil {
			return filters, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order status").
				WithDetails(map[string]any{"field": "status"})
		}
		filters.Status = &status
	}
	date, err := validators.ParseQueryDate(r, "delivery_date")
	if err != nil {
		return filters, err
	}
	filters.DeliveryDate = date
	return filters, nil
}
