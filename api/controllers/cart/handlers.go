package cart

import (
	"net/http"

	"github.com/angelmondragon/cakestore-backend/api/responses"
	"github.com/angelmondragon/cakestore-backend/api/validators"
	"github.com/angelmondragon/cakestore-backend/internal/fulfillment"
	pkgerrors "github.com/angelmondragon/cakestore-backend/pkg/errors"
	"github.com/angelmondragon/cakestore-backend/pkg/logger"
)

// Validate estimates the earliest delivery date for a cart. It never reserves anything, so
// clients may call it as often as the cart changes.
func Validate(svc fulfillment.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "estimator unavailable"))
			return
		}

		var payload ValidateCartRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		est, err := svc.Estimate(r.Context(), payload.lines())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newValidateCartResponse(*est))
	}
}
