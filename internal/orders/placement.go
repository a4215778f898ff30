package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/cakestore-backend/internal/capacity"
	"github.com/angelmondragon/cakestore-backend/internal/catalog"
	"github.com/angelmondragon/cakestore-backend/internal/clock"
	"github.com/angelmondragon/cakestore-backend/internal/fulfillment"
	"github.com/angelmondragon/cakestore-backend/internal/inventory"
	dbpkg "github.com/angelmondragon/cakestore-backend/pkg/db"
	"github.com/angelmondragon/cakestore-backend/pkg/db/models"
	"github.com/angelmondragon/cakestore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/cakestore-backend/pkg/errors"
	"github.com/angelmondragon/cakestore-backend/pkg/logger"
	"github.com/angelmondragon/cakestore-backend/pkg/metrics"
	"github.com/angelmondragon/cakestore-backend/pkg/outbox"
	"github.com/angelmondragon/cakestore-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/cakestore-backend/pkg/types"
)

const (
	defaultMaxAttempts = 4
	defaultBaseBackoff = 25 * time.Millisecond
	maxBackoff         = time.Second
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Customer is the contact block captured with an order.
type Customer struct {
	Name    string
	Email   string
	Phone   *string
	Address *string
}

// PlaceLine is one requested cart line. Customization is kept only for made-to-order goods.
type PlaceLine struct {
	ProductID     uuid.UUID
	Quantity      int
	Customization types.Customization
}

type PlaceInput struct {
	Customer    Customer
	DesiredDate types.Date
	Lines       []PlaceLine
}

// Confirmation is returned once the order and all of its reservations are committed.
type Confirmation struct {
	OrderID      uuid.UUID
	Status       enums.OrderStatus
	DeliveryDate types.Date
	TotalAmount  decimal.Decimal
	Attempts     int

	reservedUnits map[enums.ProductKind]int
}

// PlacementService commits an order against a caller-chosen delivery date.
type PlacementService interface {
	Place(ctx context.Context, input PlaceInput) (*Confirmation, error)
}

type PlacementParams struct {
	DB          txRunner
	Products    catalog.Repository
	Capacity    capacity.Ledger
	Inventory   inventory.Ledger
	Orders      Repository
	Outbox      outbox.Emitter
	Clock       clock.Clock
	Policy      fulfillment.Policy
	MaxAttempts int
	BaseBackoff time.Duration
	Metrics     *metrics.SchedulingMetrics
	Logger      *logger.Logger
}

type placementService struct {
	db          txRunner
	products    catalog.Repository
	capacity    capacity.Ledger
	inventory   inventory.Ledger
	orders      Repository
	outbox      outbox.Emitter
	clock       clock.Clock
	estimator   fulfillment.Estimator
	maxAttempts int
	baseBackoff time.Duration
	metrics     *metrics.SchedulingMetrics
	logg        *logger.Logger
}

func NewPlacementService(params PlacementParams) (PlacementService, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Products == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if params.Capacity == nil {
		return nil, fmt.Errorf("capacity ledger required")
	}
	if params.Inventory == nil {
		return nil, fmt.Errorf("inventory ledger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.Clock == nil {
		return nil, fmt.Errorf("clock required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	maxAttempts := params.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	baseBackoff := params.BaseBackoff
	if baseBackoff <= 0 {
		baseBackoff = defaultBaseBackoff
	}
	return &placementService{
		db:          params.DB,
		products:    params.Products,
		capacity:    params.Capacity,
		inventory:   params.Inventory,
		orders:      params.Orders,
		outbox:      params.Outbox,
		clock:       params.Clock,
		estimator:   fulfillment.NewEstimator(params.Policy),
		maxAttempts: maxAttempts,
		baseBackoff: baseBackoff,
		metrics:     params.Metrics,
		logg:        params.Logger,
	}, nil
}

// Place re-validates the cart against the live ledgers and commits stock decrements,
// capacity reservations, the order and its outbox event in one transaction. Lock
// contention restarts the whole transaction with backoff; exhausting the budget yields a
// retryable Contention error and leaves no trace.
func (s *placementService) Place(ctx context.Context, input PlaceInput) (*Confirmation, error) {
	if err := validatePlaceInput(input); err != nil {
		s.metrics.IncPlacement(metrics.OutcomeInvalid)
		return nil, err
	}
	now := s.clock.Now()

	backoff := retry.WithMaxRetries(uint64(s.maxAttempts-1),
		retry.WithCappedDuration(maxBackoff,
			retry.WithJitterPercent(20, retry.NewExponential(s.baseBackoff))))

	attempts := 0
	var confirmation *Confirmation
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++
		result, err := s.placeOnce(ctx, input, now)
		if err != nil {
			if dbpkg.IsContention(err) {
				s.logg.Warn(s.logg.WithField(ctx, "attempt", attempts), "order placement hit lock contention")
				return retry.RetryableError(err)
			}
			return err
		}
		confirmation = result
		return nil
	})
	s.metrics.ObservePlacementAttempts(attempts)
	if err != nil {
		err = classifyPlaceError(err, attempts)
		s.metrics.IncPlacement(placementOutcome(err))
		return nil, err
	}

	confirmation.Attempts = attempts
	s.metrics.IncPlacement(metrics.OutcomePlaced)
	// counted only once the transaction has committed
	for kind, units := range confirmation.reservedUnits {
		s.metrics.AddUnitsReserved(string(kind), units)
	}

	logCtx := s.logg.WithOrderID(ctx, confirmation.OrderID.String())
	logCtx = s.logg.WithDeliveryDate(logCtx, confirmation.DeliveryDate.String())
	logCtx = s.logg.WithFields(logCtx, map[string]any{
		"attempts": attempts,
		"lines":    len(input.Lines),
		"total":    confirmation.TotalAmount.StringFixed(2),
	})
	s.logg.Info(logCtx, "order placed")
	return confirmation, nil
}

func (s *placementService) placeOnce(ctx context.Context, input PlaceInput, now time.Time) (*Confirmation, error) {
	lines := make([]fulfillment.Line, 0, len(input.Lines))
	for _, line := range input.Lines {
		lines = append(lines, fulfillment.Line{ProductID: line.ProductID, Quantity: line.Quantity})
	}
	consolidated := fulfillment.Consolidate(lines)

	var confirmation *Confirmation
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		products, err := fulfillment.LoadProducts(ctx, s.products.WithTx(tx), consolidated)
		if err != nil {
			return err
		}
		if err := s.checkDeliveryDate(input.DesiredDate, consolidated, products, now); err != nil {
			return err
		}

		stock := s.inventory.WithTx(tx)
		slots := s.capacity.WithTx(tx)
		reservedUnits := map[enums.ProductKind]int{}
		// consolidated is sorted by product id, so concurrent placements lock product rows in
		// the same order and then the single capacity row.
		for _, line := range consolidated {
			if products[line.ProductID].Kind != enums.ProductKindStocked {
				continue
			}
			if _, err := stock.TryReserve(ctx, line.ProductID, line.Quantity); err != nil {
				return err
			}
			reservedUnits[enums.ProductKindStocked] += line.Quantity
		}
		for _, line := range consolidated {
			if products[line.ProductID].Kind != enums.ProductKindMadeToOrder {
				continue
			}
			if _, err := slots.TryReserve(ctx, input.DesiredDate, line.Quantity); err != nil {
				return err
			}
			reservedUnits[enums.ProductKindMadeToOrder] += line.Quantity
		}

		order := buildOrder(input, products)
		if err := s.orders.WithTx(tx).Create(ctx, order); err != nil {
			return err
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderPlaced,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID.String(),
			Source:        "api",
			OccurredAt:    now,
			Data:          orderPlacedPayload(order, consolidated, products, reservedUnits[enums.ProductKindMadeToOrder]),
		}); err != nil {
			return err
		}

		confirmation = &Confirmation{
			OrderID:       order.ID,
			Status:        order.Status,
			DeliveryDate:  order.DeliveryDate,
			TotalAmount:   order.TotalAmount,
			reservedUnits: reservedUnits,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return confirmation, nil
}

// checkDeliveryDate never trusts the caller's earlier estimate: the date must still be on
// or after every line's earliest floor and inside the scheduling horizon.
func (s *placementService) checkDeliveryDate(desired types.Date, lines []fulfillment.Line, products map[uuid.UUID]catalog.Product, now time.Time) error {
	policy := s.estimator.Policy()
	if horizon := policy.HorizonEnd(now); desired.After(horizon) {
		return pkgerrors.New(pkgerrors.CodeValidation, "delivery date is beyond the scheduling horizon").
			WithDetails(map[string]any{"delivery_date": desired.String(), "latest_date": horizon.String()})
	}
	for _, line := range lines {
		floor, err := s.estimator.EarliestFloor(products[line.ProductID], now)
		if err != nil {
			return err
		}
		if desired.Before(floor) {
			return pkgerrors.New(pkgerrors.CodeValidation, "delivery date is earlier than the product can be ready").
				WithDetails(map[string]any{
					"product_id":    line.ProductID.String(),
					"delivery_date": desired.String(),
					"earliest_date": floor.String(),
				})
		}
	}
	return nil
}

func buildOrder(input PlaceInput, products map[uuid.UUID]catalog.Product) *models.Order {
	order := &models.Order{
		ID:              uuid.New(),
		CustomerName:    strings.TrimSpace(input.Customer.Name),
		CustomerEmail:   strings.TrimSpace(input.Customer.Email),
		CustomerPhone:   input.Customer.Phone,
		DeliveryAddress: input.Customer.Address,
		DeliveryDate:    input.DesiredDate,
		Status:          enums.OrderStatusNew,
		TotalAmount:     decimal.Zero,
		Items:           make([]models.OrderItem, 0, len(input.Lines)),
	}
	for _, line := range input.Lines {
		product := products[line.ProductID]
		item := models.OrderItem{
			OrderID:     order.ID,
			ProductID:   product.ID,
			ProductKind: product.Kind,
			ProductName: product.Name,
			UnitPrice:   product.Price,
			Quantity:    line.Quantity,
		}
		if product.Kind == enums.ProductKindMadeToOrder {
			item.Customization = line.Customization
		}
		order.TotalAmount = order.TotalAmount.Add(item.LineTotal())
		order.Items = append(order.Items, item)
	}
	return order
}

func orderPlacedPayload(order *models.Order, lines []fulfillment.Line, products map[uuid.UUID]catalog.Product, capacityReserved int) payloads.OrderPlacedEvent {
	out := payloads.OrderPlacedEvent{
		OrderID:          order.ID,
		Status:           order.Status,
		DeliveryDate:     order.DeliveryDate,
		TotalAmount:      order.TotalAmount,
		CapacityReserved: capacityReserved,
		Lines:            make([]payloads.OrderPlacedLine, 0, len(lines)),
	}
	for _, line := range lines {
		out.Lines = append(out.Lines, payloads.OrderPlacedLine{
			ProductID: line.ProductID,
			Kind:      products[line.ProductID].Kind,
			Quantity:  line.Quantity,
		})
	}
	return out
}

func validatePlaceInput(input PlaceInput) error {
	if strings.TrimSpace(input.Customer.Name) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "customer name is required")
	}
	if strings.TrimSpace(input.Customer.Email) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "customer email is required")
	}
	if input.DesiredDate.IsZero() {
		return pkgerrors.New(pkgerrors.CodeValidation, "delivery date is required")
	}
	lines := make([]fulfillment.Line, 0, len(input.Lines))
	for _, line := range input.Lines {
		lines = append(lines, fulfillment.Line{ProductID: line.ProductID, Quantity: line.Quantity})
	}
	return fulfillment.ValidateLines(lines)
}

func classifyPlaceError(err error, attempts int) error {
	switch {
	case dbpkg.IsContention(err):
		return pkgerrors.Wrap(pkgerrors.CodeContention, err, "order placement could not acquire its reservations").
			WithDetails(map[string]any{"attempts": attempts})
	case pkgerrors.As(err) != nil:
		return err
	case dbpkg.IsCheckViolation(err):
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "reservation rejected by ledger constraint")
	default:
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "place order")
	}
}

func placementOutcome(err error) string {
	typed := pkgerrors.As(err)
	if typed == nil {
		return metrics.OutcomeError
	}
	switch typed.Code() {
	case pkgerrors.CodeInsufficientStock:
		return metrics.OutcomeInsufficientStock
	case pkgerrors.CodeCapacityExceeded:
		return metrics.OutcomeCapacityExceeded
	case pkgerrors.CodeContention:
		return metrics.OutcomeContention
	case pkgerrors.CodeNotFound:
		return metrics.OutcomeNotFound
	case pkgerrors.CodeValidation:
		return metrics.OutcomeInvalid
	default:
		return metrics.OutcomeError
	}
}
