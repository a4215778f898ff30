package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/cakestore-backend/pkg/db/models"
	"github.com/angelmondragon/cakestore-backend/pkg/enums"
	"github.com/angelmondragon/cakestore-backend/pkg/types"
)

// OrderItemDTO is the snapshot line of an order.
type OrderItemDTO struct {
	ProductID     uuid.UUID           `json:"product_id"`
	ProductKind   enums.ProductKind   `json:"product_kind"`
	ProductName   string              `json:"product_name"`
	UnitPrice     decimal.Decimal     `json:"unit_price"`
	Quantity      int                 `json:"quantity"`
	LineTotal     decimal.Decimal     `json:"line_total"`
	Customization types.Customization `json:"customization,omitempty"`
}

// OrderDTO is the API view of a placed order.
type OrderDTO struct {
	ID              uuid.UUID         `json:"id"`
	Status          enums.OrderStatus `json:"status"`
	DeliveryDate    types.Date        `json:"delivery_date"`
	CustomerName    string            `json:"customer_name"`
	CustomerEmail   string            `json:"customer_email"`
	CustomerPhone   *string           `json:"customer_phone,omitempty"`
	DeliveryAddress *string           `json:"delivery_address,omitempty"`
	TotalAmount     decimal.Decimal   `json:"total_amount"`
	Items           []OrderItemDTO    `json:"items"`
	CreatedAt       time.Time         `json:"created_at"`
}

// OrderList is one page of orders.
type OrderList struct {
	Orders     []OrderDTO `json:"orders"`
	NextCursor string     `json:"next_cursor,omitempty"`
}

// ConfirmationDTO is returned by a successful placement.
type ConfirmationDTO struct {
	OrderID      uuid.UUID         `json:"order_id"`
	Status       enums.OrderStatus `json:"status"`
	DeliveryDate types.Date        `json:"delivery_date"`
	TotalAmount  decimal.Decimal   `json:"total_amount"`
}

func NewConfirmationDTO(c Confirmation) ConfirmationDTO {
	return ConfirmationDTO{
		OrderID:      c.OrderID,
		Status:       c.Status,
		DeliveryDate: c.DeliveryDate,
		TotalAmount:  c.TotalAmount,
	}
}

func NewOrderDTO(order models.Order) OrderDTO {
	items := make([]OrderItemDTO, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, OrderItemDTO{
			ProductID:     item.ProductID,
			ProductKind:   item.ProductKind,
			ProductName:   item.ProductName,
			UnitPrice:     item.UnitPrice,
			Quantity:      item.Quantity,
			LineTotal:     item.LineTotal(),
			Customization: item.Customization,
		})
	}
	return OrderDTO{
		ID:              order.ID,
		Status:          order.Status,
		DeliveryDate:    order.DeliveryDate,
		CustomerName:    order.CustomerName,
		CustomerEmail:   order.CustomerEmail,
		CustomerPhone:   order.CustomerPhone,
		DeliveryAddress: order.DeliveryAddress,
		TotalAmount:     order.TotalAmount,
		Items:           items,
		CreatedAt:       order.CreatedAt,
	}
}
