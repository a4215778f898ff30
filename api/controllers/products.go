package controllers

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/cakestore-backend/api/responses"
	"github.com/angelmondragon/cakestore-backend/api/validators"
	"github.com/angelmondragon/cakestore-backend/internal/catalog"
	"github.com/angelmondragon/cakestore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/cakestore-backend/pkg/errors"
	"github.com/angelmondragon/cakestore-backend/pkg/logger"
)

// ProductList returns active products, optionally narrowed by ?kind=stocked|made_to_order.
func ProductList(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		var kind *enums.ProductKind
		if raw := strings.TrimSpace(r.URL.Query().Get("kind")); raw != "" {
			parsed, err := enums.ParseProductKind(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product kind").
					WithDetails(map[string]any{"field": "kind"}))
				return
			}
			kind = &parsed
		}

		products, err := svc.List(r.Context(), kind)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, products)
	}
}

func ProductDetail(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		productID, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.Get(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}
