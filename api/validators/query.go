package validators

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/cakestore-backend/pkg/errors"
	"github.com/angelmondragon/cakestore-backend/pkg/types"
)

func ParseQueryInt(r *http.Request, key string, defaultVal, min, max int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return defaultVal, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "query parameter must be numeric").WithDetails(map[string]any{"field": key})
	}
	if value < min || value > max {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "query parameter out of range").WithDetails(map[string]any{"field": key, "min": min, "max": max})
	}
	return value, nil
}

// ParseQueryDate reads an optional YYYY-MM-DD query parameter. A missing value returns nil.
func ParseQueryDate(r *http.Request, key string) (*types.Date, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return nil, nil
	}
	date, err := types.ParseDate(raw)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "query parameter must be a date").WithDetails(map[string]any{"field": key, "format": "YYYY-MM-DD"})
	}
	return &date, nil
}

// ParseUUIDParam reads a uuid path parameter.
func ParseUUIDParam(r *http.Request, key string) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, key))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "path parameter required").WithDetails(map[string]any{"field": key})
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "path parameter must be a uuid").WithDetails(map[string]any{"field": key})
	}
	return id, nil
}

// ParseDateParam reads a YYYY-MM-DD path parameter.
func ParseDateParam(r *http.Request, key string) (types.Date, error) {
	raw := strings.TrimSpace(chi.URLParam(r, key))
	date, err := types.ParseDate(raw)
	if err != nil {
		return types.Date{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "path parameter must be a date").WithDetails(map[string]any{"field": key, "format": "YYYY-MM-DD"})
	}
	return date, nil
}
