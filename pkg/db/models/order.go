package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/cakestore-backend/pkg/enums"
	"github.com/angelmondragon/cakestore-backend/pkg/types"
)

// Order is written once per successful placement.
type Order struct {
	ID              uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	CustomerName    string            `gorm:"column:customer_name;not null"`
	CustomerEmail   string            `gorm:"column:customer_email;not null"`
	CustomerPhone   *string           `gorm:"column:customer_phone"`
	DeliveryAddress *string           `gorm:"column:delivery_address"`
	DeliveryDate    types.Date        `gorm:"column:delivery_date;not null;index"`
	Status          enums.OrderStatus `gorm:"column:status;type:varchar(32);not null"`
	TotalAmount     decimal.Decimal   `gorm:"column:total_amount;type:decimal(20,4);not null"`
	Items           []OrderItem       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(_ *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

// OrderItem snapshots the product at purchase time. It deliberately carries no foreign key
// to products so later catalog edits never rewrite history.
type OrderItem struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	OrderID       uuid.UUID           `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID     uuid.UUID           `gorm:"column:product_id;type:uuid;not null"`
	ProductKind   enums.ProductKind   `gorm:"column:product_kind;type:varchar(32);not null"`
	ProductName   string              `gorm:"column:product_name;not null"`
	UnitPrice     decimal.Decimal     `gorm:"column:unit_price;type:decimal(20,4);not null"`
	Quantity      int                 `gorm:"column:quantity;not null;check:chk_order_items_quantity_positive,quantity >= 1"`
	Customization types.Customization `gorm:"column:customization"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
}

func (i *OrderItem) BeforeCreate(_ *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// LineTotal is unit price times quantity.
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}
