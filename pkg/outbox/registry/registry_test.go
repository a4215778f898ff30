package registry

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/cakestore-backend/pkg/db/models"
	"github.com/angelmondragon/cakestore-backend/pkg/enums"
	"github.com/angelmondragon/cakestore-backend/pkg/outbox"
	"github.com/angelmondragon/cakestore-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/cakestore-backend/pkg/types"
)

func TestResolveOrderPlacedKeysByDeliveryDate(t *testing.T) {
	reg := newTestEventRegistry(t)

	orderID := uuid.New()
	event := models.OutboxEvent{
		EventType:     enums.EventOrderPlaced,
		AggregateType: enums.AggregateOrder,
		AggregateID:   orderID.String(),
		Payload: envelopeFor(t, payloads.OrderPlacedEvent{
			OrderID:          orderID,
			Status:           enums.OrderStatusNew,
			DeliveryDate:     types.NewDate(2026, 10, 20),
			TotalAmount:      decimal.RequireFromString("54.50"),
			CapacityReserved: 1,
		}),
	}

	resolved, err := reg.Resolve(event)
	require.NoError(t, err)
	assert.Equal(t, "orders-topic", resolved.Route.Topic)
	assert.Equal(t, "2026-10-20", resolved.Key)
	assert.Equal(t, map[string]string{"delivery_date": "2026-10-20", "order_status": "new"}, resolved.Attributes)
	assert.NotEmpty(t, resolved.Envelope.EventID)
	assert.False(t, resolved.Envelope.OccurredAt.IsZero())

	payload, ok := resolved.Payload.(*payloads.OrderPlacedEvent)
	require.True(t, ok, "unexpected payload type %T", resolved.Payload)
	assert.Equal(t, orderID, payload.OrderID)
}

func TestResolveCapacityEventKeepsAggregateKey(t *testing.T) {
	reg := newTestEventRegistry(t)

	event := models.OutboxEvent{
		EventType:     enums.EventCapacityMaxUpdated,
		AggregateType: enums.AggregateCapacitySlot,
		AggregateID:   "2026-10-20",
		Payload:       rawEnvelope(t, []byte(`{"date":"2026-10-20","previous_max":50,"max_capacity":60,"reserved_capacity":12}`)),
	}
	resolved, err := reg.Resolve(event)
	require.NoError(t, err)

	payload := resolved.Payload.(*payloads.CapacityMaxUpdatedEvent)
	assert.Equal(t, 60, payload.MaxCapacity)
	assert.Equal(t, 50, payload.PreviousMax)
	assert.Equal(t, "2026-10-20", resolved.Key)
	assert.Equal(t, "2026-10-20", resolved.Attributes["delivery_date"])
}

func TestResolveRejectsBadRowsAsNonRetryable(t *testing.T) {
	reg := newTestEventRegistry(t)

	cases := map[string]models.OutboxEvent{
		"unknown event": {
			EventType:     enums.OutboxEventType("order_refunded"),
			AggregateType: enums.AggregateOrder,
			AggregateID:   uuid.NewString(),
			Payload:       rawEnvelope(t, []byte(`{}`)),
		},
		"aggregate mismatch": {
			EventType:     enums.EventOrderPlaced,
			AggregateType: enums.AggregateCapacitySlot,
			AggregateID:   uuid.NewString(),
			Payload:       rawEnvelope(t, []byte(`{}`)),
		},
		"missing aggregate id": {
			EventType:     enums.EventOrderPlaced,
			AggregateType: enums.AggregateOrder,
			Payload:       rawEnvelope(t, []byte(`{}`)),
		},
		"null payload": {
			EventType:     enums.EventOrderPlaced,
			AggregateType: enums.AggregateOrder,
			AggregateID:   uuid.NewString(),
			Payload:       rawEnvelope(t, []byte("null")),
		},
		"broken envelope": {
			EventType:     enums.EventOrderPlaced,
			AggregateType: enums.AggregateOrder,
			AggregateID:   uuid.NewString(),
			Payload:       types.RawJSON(`{"data":`),
		},
		"payload shape": {
			EventType:     enums.EventOrderPlaced,
			AggregateType: enums.AggregateOrder,
			AggregateID:   uuid.NewString(),
			Payload:       rawEnvelope(t, []byte(`{"order_id":42}`)),
		},
	}
	for name, event := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := reg.Resolve(event)
			require.Error(t, err)
			var nonRetry NonRetryableError
			assert.True(t, errors.As(err, &nonRetry), "expected non-retryable, got %T", err)
		})
	}
}

func TestNewEventRegistry(t *testing.T) {
	_, err := NewEventRegistry("  ")
	assert.Error(t, err)

	reg := newTestEventRegistry(t)
	assert.Len(t, reg.Routes(), 2)
}

func newTestEventRegistry(t *testing.T) *EventRegistry {
	t.Helper()
	reg, err := NewEventRegistry("orders-topic")
	require.NoError(t, err)
	return reg
}

func envelopeFor(t *testing.T, payload any) types.RawJSON {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return rawEnvelope(t, data)
}

func rawEnvelope(t *testing.T, data []byte) types.RawJSON {
	t.Helper()
	raw, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    outbox.EnvelopeVersion,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       data,
	})
	require.NoError(t, err)
	return raw
}
