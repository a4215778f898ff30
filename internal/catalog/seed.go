package catalog

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/cakestore-backend/pkg/types"
)

func ptr[T any](v T) *T { return &v }

// DemoProducts is the starter catalog for a fresh development database. Expiry dates are
// relative to today so the stocked goods are sellable right after seeding.
func DemoProducts(today types.Date) []Product {
	tiramisu := NewStocked(uuid.New(), "Signature Tiramisu Box", decimal.RequireFromString("25.00"), 20, ptr(today.AddDays(3)))
	tiramisu.Description = ptr("Classic Italian coffee dessert, ready to pick up.")

	macarons := NewStocked(uuid.New(), "Double Chocolate Macarons (Set of 6)", decimal.RequireFromString("18.50"), 50, ptr(today.AddDays(5)))
	macarons.Description = ptr("Chocolate ganache between airy shells.")

	crepe := NewStocked(uuid.New(), "Matcha Crepe Slice", decimal.RequireFromString("8.00"), 15, ptr(today.AddDays(2)))
	crepe.Description = ptr("Layers of crepes with matcha cream.")

	birthday := NewMadeToOrder(uuid.New(), "Classic Birthday Cake", decimal.RequireFromString("45.00"), 24, types.Customization{
		"fields": []any{
			map[string]any{"key": "size", "type": "select", "label": "Size", "options": []any{"6 inch", "8 inch", "10 inch"}},
			map[string]any{"key": "flavor", "type": "select", "label": "Flavor", "options": []any{"Vanilla", "Chocolate", "Red Velvet"}},
			map[string]any{"key": "inscription", "type": "text", "label": "Inscription", "maxLength": 30},
		},
	})
	birthday.Description = ptr("Vanilla sponge with buttercream and a custom inscription.")

	wedding := NewMadeToOrder(uuid.New(), "Custom Wedding Cake Tier", decimal.RequireFromString("150.00"), 48, types.Customization{
		"fields": []any{
			map[string]any{"key": "tiers", "type": "select", "label": "Tiers", "options": []any{"2 Tiers", "3 Tiers"}},
			map[string]any{"key": "floral_decoration", "type": "checkbox", "label": "Add Fresh Flowers"},
			map[string]any{"key": "note", "type": "textarea", "label": "Special Instructions"},
		},
	})
	wedding.Description = ptr("Tiered cake for special occasions. Requires 48h notice.")

	hidden := NewStocked(uuid.New(), "Hidden Test Cake", decimal.RequireFromString("999.00"), 0, nil)
	hidden.Active = false

	return []Product{tiramisu, macarons, crepe, birthday, wedding, hidden}
}

// SeedDemo writes DemoProducts into an empty catalog and reports how many were created. A
// catalog with any product, active or not, is left alone.
func SeedDemo(ctx context.Context, repo Repository, today types.Date) (int, error) {
	existing, err := repo.Count(ctx)
	if err != nil {
		return 0, err
	}
	if existing > 0 {
		return 0, nil
	}
	created := 0
	for _, product := range DemoProducts(today) {
		if _, err := repo.Create(ctx, product); err != nil {
			return created, err
		}
		created++
	}
	return created, nil
}
