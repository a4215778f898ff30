package catalog

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/cakestore-backend/pkg/enums"
	"github.com/angelmondragon/cakestore-backend/pkg/types"
)

// ProductDTO is the storefront view of a product.
type ProductDTO struct {
	ID          uuid.UUID         `json:"id"`
	Kind        enums.ProductKind `json:"kind"`
	Name        string            `json:"name"`
	Description *string           `json:"description,omitempty"`
	Price       decimal.Decimal   `json:"price"`
	Active      bool              `json:"active"`

	StockQuantity *int        `json:"stock_quantity,omitempty"`
	ExpiryDate    *types.Date `json:"expiry_date,omitempty"`

	LeadTimeHours       *int                `json:"lead_time_hours,omitempty"`
	CustomizationSchema types.Customization `json:"customization_schema,omitempty"`
}

func NewProductDTO(p Product) ProductDTO {
	dto := ProductDTO{
		ID:          p.ID,
		Kind:        p.Kind,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		Active:      p.Active,
	}
	switch p.Kind {
	case enums.ProductKindStocked:
		if p.Stocked != nil {
			stock := p.Stocked.StockQuantity
			dto.StockQuantity = &stock
			dto.ExpiryDate = p.Stocked.ExpiryDate
		}
	case enums.ProductKindMadeToOrder:
		if p.MadeToOrder != nil {
			lead := p.MadeToOrder.LeadTimeHours
			dto.LeadTimeHours = &lead
			dto.CustomizationSchema = p.MadeToOrder.CustomizationSchema
		}
	}
	return dto
}
