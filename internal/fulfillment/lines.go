package fulfillment

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/angelmondragon/cakestore-backend/internal/catalog"
	pkgerrors "github.com/angelmondragon/cakestore-backend/pkg/errors"
)

const (
	// MaxCartLines bounds a single estimate or placement.
	MaxCartLines = 100
	// MaxLineQuantity bounds one line and the merged total of any one product.
	MaxLineQuantity = 10000
)

// Line is one cart entry.
type Line struct {
	ProductID uuid.UUID
	Quantity  int
}

// ValidateLines rejects empty carts, blank product ids and quantities outside
// 1..MaxLineQuantity, both per line and once repeated products are merged.
func ValidateLines(lines []Line) error {
	if len(lines) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}
	if len(lines) > MaxCartLines {
		return pkgerrors.New(pkgerrors.CodeValidation, "too many cart lines").
			WithDetails(map[string]any{"max_lines": MaxCartLines})
	}
	for i, line := range lines {
		if line.ProductID == uuid.Nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "product id is required").
				WithDetails(map[string]any{"line": i})
		}
		if line.Quantity < 1 {
			return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1").
				WithDetails(map[string]any{"line": i, "product_id": line.ProductID.String(), "quantity": line.Quantity})
		}
		if line.Quantity > MaxLineQuantity {
			return quantityTooLarge(line.ProductID, line.Quantity).WithDetails(map[string]any{
				"line": i, "product_id": line.ProductID.String(), "quantity": line.Quantity, "max_quantity": MaxLineQuantity,
			})
		}
	}
	// every line is now at most MaxLineQuantity, so the merged sums cannot overflow
	for _, line := range Consolidate(lines) {
		if line.Quantity > MaxLineQuantity {
			return quantityTooLarge(line.ProductID, line.Quantity)
		}
	}
	return nil
}

func quantityTooLarge(productID uuid.UUID, qty int) *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeValidation, "quantity exceeds the per-product limit").
		WithDetails(map[string]any{"product_id": productID.String(), "quantity": qty, "max_quantity": MaxLineQuantity})
}

// Consolidate merges repeated products and orders the result by product id, which is also
// the order reservations take row locks in.
func Consolidate(lines []Line) []Line {
	totals := make(map[uuid.UUID]int, len(lines))
	for _, line := range lines {
		totals[line.ProductID] += line.Quantity
	}
	out := make([]Line, 0, len(totals))
	for id, qty := range totals {
		out = append(out, Line{ProductID: id, Quantity: qty})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ProductID.String() < out[j].ProductID.String()
	})
	return out
}

// LoadProducts fetches every referenced product in one query. An unknown id is NotFound and
// an inactive product is a validation error.
func LoadProducts(ctx context.Context, repo catalog.Repository, lines []Line) (map[uuid.UUID]catalog.Product, error) {
	ids := make([]uuid.UUID, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ProductID)
	}
	products, err := repo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, line := range lines {
		product, ok := products[line.ProductID]
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
				WithDetails(map[string]any{"product_id": line.ProductID.String()})
		}
		if !product.Active {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product is not available for sale").
				WithDetails(map[string]any{"product_id": line.ProductID.String()})
		}
	}
	return products, nil
}
