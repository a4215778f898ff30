package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/angelmondragon/cakestore-backend/pkg/db/models"
	"github.com/angelmondragon/cakestore-backend/pkg/enums"
	"github.com/angelmondragon/cakestore-backend/pkg/outbox"
	"github.com/angelmondragon/cakestore-backend/pkg/outbox/payloads"
)

// Route describes how one event type leaves the outbox: the aggregate it must belong to, the
// topic it goes to and how its payload is decoded.
type Route struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	Topic         string

	decode func(json.RawMessage) (any, error)
	// key picks the partition / ordering key from the decoded payload.
	key func(payload any, aggregateID string) string
	// attributes adds payload-derived message attributes for subscribers that filter.
	attributes func(payload any) map[string]string
}

// ResolvedEvent is an outbox row ready to publish.
type ResolvedEvent struct {
	Route      Route
	Envelope   outbox.PayloadEnvelope
	Payload    any
	Key        string
	Attributes map[string]string
}

// EventRegistry maps each supported event type to its route.
type EventRegistry struct {
	routes map[enums.OutboxEventType]Route
}

// NewEventRegistry sends order and capacity events to ordersTopic, which is a Pub/Sub topic
// or a Kafka topic depending on the configured sink. Order events are keyed by delivery date
// so a production-plan consumer sees each day's orders in commit order.
func NewEventRegistry(ordersTopic string) (*EventRegistry, error) {
	topic := strings.TrimSpace(ordersTopic)
	if topic == "" {
		return nil, errors.New("orders topic is required")
	}

	reg := &EventRegistry{routes: map[enums.OutboxEventType]Route{}}
	reg.add(Route{
		EventType:     enums.EventOrderPlaced,
		AggregateType: enums.AggregateOrder,
		Topic:         topic,
		decode:        decodeAs[payloads.OrderPlacedEvent],
		key: func(payload any, _ string) string {
			return payload.(*payloads.OrderPlacedEvent).DeliveryDate.String()
		},
		attributes: func(payload any) map[string]string {
			p := payload.(*payloads.OrderPlacedEvent)
			return map[string]string{
				"delivery_date": p.DeliveryDate.String(),
				"order_status":  p.Status.String(),
			}
		},
	})
	reg.add(Route{
		EventType:     enums.EventCapacityMaxUpdated,
		AggregateType: enums.AggregateCapacitySlot,
		Topic:         topic,
		decode:        decodeAs[payloads.CapacityMaxUpdatedEvent],
		attributes: func(payload any) map[string]string {
			return map[string]string{"delivery_date": payload.(*payloads.CapacityMaxUpdatedEvent).Date.String()}
		},
	})
	return reg, nil
}

func (r *EventRegistry) add(route Route) {
	r.routes[route.EventType] = route
}

// Routes lists the registered event types.
func (r *EventRegistry) Routes() []Route {
	out := make([]Route, 0, len(r.routes))
	for _, route := range r.routes {
		out = append(out, route)
	}
	return out
}

// Resolve checks the row against its route and decodes the typed payload. Every failure is
// non-retryable since the stored row will not change.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	route, ok := r.routes[event.EventType]
	if !ok {
		return nil, NewNonRetryableError(fmt.Errorf("unsupported event type %s", event.EventType))
	}
	if route.AggregateType != event.AggregateType {
		return nil, NewNonRetryableError(fmt.Errorf("event %s belongs to %s, row says %s", event.EventType, route.AggregateType, event.AggregateType))
	}
	if strings.TrimSpace(event.AggregateID) == "" {
		return nil, NewNonRetryableError(errors.New("missing aggregate_id"))
	}

	envelope, err := outbox.DecodeEnvelope(event.Payload)
	if err != nil {
		return nil, NewNonRetryableError(err)
	}
	payload, err := route.decode(envelope.Data)
	if err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode %s payload: %w", event.EventType, err))
	}

	resolved := &ResolvedEvent{
		Route:    route,
		Envelope: envelope,
		Payload:  payload,
		Key:      event.AggregateID,
	}
	if route.key != nil {
		if key := route.key(payload, event.AggregateID); key != "" {
			resolved.Key = key
		}
	}
	if route.attributes != nil {
		resolved.Attributes = route.attributes(payload)
	}
	return resolved, nil
}

func decodeAs[T any](data json.RawMessage) (any, error) {
	payload := new(T)
	if err := json.Unmarshal(data, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// NonRetryableError tells the publisher to dead-letter the row instead of retrying it.
type NonRetryableError struct {
	Err error
}

func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error {
	return e.Err
}
