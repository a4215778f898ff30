package payloads

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/cakestore-backend/pkg/enums"
	"github.com/angelmondragon/cakestore-backend/pkg/types"
)

// OrderPlacedEvent is emitted in the same transaction that reserves capacity and stock.
type OrderPlacedEvent struct {
	OrderID          uuid.UUID         `json:"order_id"`
	Status           enums.OrderStatus `json:"status"`
	DeliveryDate     types.Date        `json:"delivery_date"`
	TotalAmount      decimal.Decimal   `json:"total_amount"`
	CapacityReserved int               `json:"capacity_reserved"`
	Lines            []OrderPlacedLine `json:"lines"`
}

// OrderPlacedLine names one reserved line of the order.
type OrderPlacedLine struct {
	ProductID uuid.UUID         `json:"product_id"`
	Kind      enums.ProductKind `json:"kind"`
	Quantity  int               `json:"quantity"`
}

// CapacityMaxUpdatedEvent reports an admin change to a day's production quota.
type CapacityMaxUpdatedEvent struct {
	Date             types.Date `json:"date"`
	PreviousMax      int        `json:"previous_max"`
	MaxCapacity      int        `json:"max_capacity"`
	ReservedCapacity int        `json:"reserved_capacity"`
}
