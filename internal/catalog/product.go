package catalog

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/cakestore-backend/pkg/db/models"
	"github.com/angelmondragon/cakestore-backend/pkg/enums"
	"github.com/angelmondragon/cakestore-backend/pkg/types"
)

// Product is a closed tagged variant: Kind selects which of Stocked or MadeToOrder is set.
type Product struct {
	ID          uuid.UUID
	Name        string
	Description *string
	Price       decimal.Decimal
	Active      bool
	Kind        enums.ProductKind

	Stocked     *StockedGood
	MadeToOrder *MadeToOrderGood
}

// StockedGood ships from on-hand inventory.
type StockedGood struct {
	StockQuantity int
	ExpiryDate    *types.Date
}

// MaxLeadTimeHours caps a kitchen lead time at one year, matching the products table CHECK.
const MaxLeadTimeHours = 24 * 365

// MadeToOrderGood needs kitchen time and consumes daily production capacity.
type MadeToOrderGood struct {
	LeadTimeHours       int
	CustomizationSchema types.Customization
}

func NewStocked(id uuid.UUID, name string, price decimal.Decimal, stock int, expiry *types.Date) Product {
	return Product{
		ID:      id,
		Name:    name,
		Price:   price,
		Active:  true,
		Kind:    enums.ProductKindStocked,
		Stocked: &StockedGood{StockQuantity: stock, ExpiryDate: expiry},
	}
}

func NewMadeToOrder(id uuid.UUID, name string, price decimal.Decimal, leadTimeHours int, schema types.Customization) Product {
	return Product{
		ID:          id,
		Name:        name,
		Price:       price,
		Active:      true,
		Kind:        enums.ProductKindMadeToOrder,
		MadeToOrder: &MadeToOrderGood{LeadTimeHours: leadTimeHours, CustomizationSchema: schema},
	}
}

// Validate checks the variant payload matches the tag and holds non-negative counters.
func (p Product) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("product name is required")
	}
	if p.Price.IsNegative() {
		return fmt.Errorf("product price must not be negative")
	}
	switch p.Kind {
	case enums.ProductKindStocked:
		if p.Stocked == nil || p.MadeToOrder != nil {
			return fmt.Errorf("stocked product must carry only the stocked payload")
		}
		if p.Stocked.StockQuantity < 0 {
			return fmt.Errorf("stock quantity must not be negative")
		}
	case enums.ProductKindMadeToOrder:
		if p.MadeToOrder == nil || p.Stocked != nil {
			return fmt.Errorf("made-to-order product must carry only the made-to-order payload")
		}
		if p.MadeToOrder.LeadTimeHours < 0 || p.MadeToOrder.LeadTimeHours > MaxLeadTimeHours {
			return fmt.Errorf("lead time must be between 0 and %d hours", MaxLeadTimeHours)
		}
	default:
		return fmt.Errorf("unknown product kind %q", p.Kind)
	}
	return nil
}

// FromModel maps the single-table row into the variant.
func FromModel(m models.Product) Product {
	p := Product{
		ID:          m.ID,
		Name:        m.Name,
		Description: m.Description,
		Price:       m.Price,
		Active:      m.IsActive,
		Kind:        m.Kind,
	}
	switch m.Kind {
	case enums.ProductKindStocked:
		p.Stocked = &StockedGood{StockQuantity: m.StockQuantity, ExpiryDate: m.ExpiryDate}
	case enums.ProductKindMadeToOrder:
		p.MadeToOrder = &MadeToOrderGood{LeadTimeHours: m.LeadTimeHours, CustomizationSchema: m.CustomizationSchema}
	}
	return p
}

// ToModel flattens the variant into the products row; the unused variant columns stay zero.
func (p Product) ToModel() models.Product {
	m := models.Product{
		ID:          p.ID,
		Kind:        p.Kind,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		IsActive:    p.Active,
	}
	switch p.Kind {
	case enums.ProductKindStocked:
		if p.Stocked != nil {
			m.StockQuantity = p.Stocked.StockQuantity
			m.ExpiryDate = p.Stocked.ExpiryDate
		}
	case enums.ProductKindMadeToOrder:
		if p.MadeToOrder != nil {
			m.LeadTimeHours = p.MadeToOrder.LeadTimeHours
			m.CustomizationSchema = p.MadeToOrder.CustomizationSchema
		}
	}
	return m
}
