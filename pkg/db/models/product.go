package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/cakestore-backend/pkg/enums"
	"github.com/angelmondragon/cakestore-backend/pkg/types"
)

// Product is the single-table row behind both catalog variants. Stocked products use
// StockQuantity and ExpiryDate; made-to-order products use LeadTimeHours and
// CustomizationSchema.
type Product struct {
	ID                  uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	Kind                enums.ProductKind   `gorm:"column:kind;type:varchar(32);not null;index"`
	Name                string              `gorm:"column:name;not null"`
	Description         *string             `gorm:"column:description"`
	Price               decimal.Decimal     `gorm:"column:price;type:decimal(20,4);not null"`
	IsActive            bool                `gorm:"column:is_active;not null"`
	StockQuantity       int                 `gorm:"column:stock_quantity;not null;default:0;check:chk_products_stock_non_negative,stock_quantity >= 0"`
	ExpiryDate          *types.Date         `gorm:"column:expiry_date"`
	LeadTimeHours       int                 `gorm:"column:lead_time_hours;not null;default:0;check:chk_products_lead_time_range,lead_time_hours BETWEEN 0 AND 8760"`
	CustomizationSchema types.Customization `gorm:"column:customization_schema"`
	CreatedAt           time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(_ *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
