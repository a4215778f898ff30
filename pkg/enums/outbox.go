package enums

// OutboxAggregateType names the aggregate an outbox event belongs to.
type OutboxAggregateType string

const (
	AggregateOrder        OutboxAggregateType = "order"
	AggregateCapacitySlot OutboxAggregateType = "capacity_slot"
)

var aggregateTypes = []OutboxAggregateType{AggregateOrder, AggregateCapacitySlot}

func (a OutboxAggregateType) IsValid() bool { return known(a, aggregateTypes) }

func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	return parse(value, "aggregate type", aggregateTypes)
}

// OutboxEventType names the domain event stored in outbox_events.
type OutboxEventType string

const (
	EventOrderPlaced        OutboxEventType = "order_placed"
	EventCapacityMaxUpdated OutboxEventType = "capacity_max_updated"
)

var eventTypes = []OutboxEventType{EventOrderPlaced, EventCapacityMaxUpdated}

func (e OutboxEventType) IsValid() bool { return known(e, eventTypes) }

func ParseOutboxEventType(value string) (OutboxEventType, error) {
	return parse(value, "event type", eventTypes)
}

// OutboxDLQErrorReason records why the publisher dead-lettered a row.
type OutboxDLQErrorReason string

const (
	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)

var dlqReasons = []OutboxDLQErrorReason{OutboxDLQReasonMaxAttempts, OutboxDLQReasonNonRetryable}

func (r OutboxDLQErrorReason) IsValid() bool { return known(r, dlqReasons) }
