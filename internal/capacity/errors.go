package capacity

import (
	pkgerrors "github.com/angelmondragon/cakestore-backend/pkg/errors"
	"github.com/angelmondragon/cakestore-backend/pkg/types"
)

func capacityExceeded(date types.Date, requested, remaining int) *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeCapacityExceeded, "not enough production capacity on the requested date").
		WithDetails(map[string]any{
			"date":      date.String(),
			"requested": requested,
			"remaining": remaining,
		})
}

func invalidQuantity(delta int) *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeValidation, "capacity delta must be positive").
		WithDetails(map[string]any{"delta": delta})
}
