package enums

// OrderStatus tracks an order through the bakery. Placement only ever assigns New; the rest
// belong to back-office tooling.
type OrderStatus string

const (
	OrderStatusNew         OrderStatus = "new"
	OrderStatusConfirmed   OrderStatus = "confirmed"
	OrderStatusProduction  OrderStatus = "production"
	OrderStatusReadyToShip OrderStatus = "ready_to_ship"
	OrderStatusDelivering  OrderStatus = "delivering"
	OrderStatusCompleted   OrderStatus = "completed"
	OrderStatusCancelled   OrderStatus = "cancelled"
)

var orderStatuses = []OrderStatus{
	OrderStatusNew,
	OrderStatusConfirmed,
	OrderStatusProduction,
	OrderStatusReadyToShip,
	OrderStatusDelivering,
	OrderStatusCompleted,
	OrderStatusCancelled,
}

func (s OrderStatus) String() string { return string(s) }

func (s OrderStatus) IsValid() bool { return known(s, orderStatuses) }

func ParseOrderStatus(value string) (OrderStatus, error) {
	return parse(value, "order status", orderStatuses)
}
