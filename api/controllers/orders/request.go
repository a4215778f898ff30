package orders

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/cakestore-backend/api/validators"
	internalorders "github.com/angelmondragon/cakestore-backend/internal/orders"
	"github.com/angelmondragon/cakestore-backend/pkg/types"
)

const (
	maxNameLen    = 200
	maxEmailLen   = 320
	maxPhoneLen   = 40
	maxAddressLen = 500
)

type CustomerRequest struct {
	Name    string  `json:"name" validate:"required,max=200"`
	Email   string  `json:"email" validate:"required,email,max=320"`
	Phone   *string `json:"phone,omitempty" validate:"omitempty,max=40"`
	Address *string `json:"address,omitempty" validate:"omitempty,max=500"`
}

type PlaceOrderItem struct {
	ProductID     uuid.UUID           `json:"product_id" validate:"required"`
	Quantity      int                 `json:"quantity" validate:"gt=0,max=10000"`
	Customization types.Customization `json:"customization,omitempty"`
}

// PlaceOrderRequest carries the delivery date the customer picked from a prior estimate.
type PlaceOrderRequest struct {
	Customer     CustomerRequest  `json:"customer"`
	DeliveryDate types.Date       `json:"delivery_date"`
	Items        []PlaceOrderItem `json:"items" validate:"required,min=1,max=100,dive"`
}

func (r PlaceOrderRequest) toInput() internalorders.PlaceInput {
	lines := make([]internalorders.PlaceLine, 0, len(r.Items))
	for _, item := range r.Items {
		lines = append(lines, internalorders.PlaceLine{
			ProductID:     item.ProductID,
			Quantity:      item.Quantity,
			Customization: item.Customization,
		})
	}
	return internalorders.PlaceInput{
		Customer: internalorders.Customer{
			Name:    validators.SanitizeString(r.Customer.Name, maxNameLen),
			Email:   validators.SanitizeString(r.Customer.Email, maxEmailLen),
			Phone:   validators.SanitizeOptional(r.Customer.Phone, maxPhoneLen),
			Address: validators.SanitizeOptional(r.Customer.Address, maxAddressLen),
		},
		DesiredDate: r.DeliveryDate,
		Lines:       lines,
	}
}
