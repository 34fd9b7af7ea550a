package enums

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateOrder        OutboxAggregateType = "order"
	AggregateNotification OutboxAggregateType = "notification"
)

var aggregateTypes = set[OutboxAggregateType]{AggregateOrder, AggregateNotification}

func (a OutboxAggregateType) IsValid() bool { return aggregateTypes.has(a) }

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventOrderCreated          OutboxEventType = "order_created"
	EventOrderStatusChanged    OutboxEventType = "order_status_changed"
	EventOrderCanceled         OutboxEventType = "order_canceled"
	EventNotificationRequested OutboxEventType = "notification_requested"
)

var eventTypes = set[OutboxEventType]{
	EventOrderCreated,
	EventOrderStatusChanged,
	EventOrderCanceled,
	EventNotificationRequested,
}

func (e OutboxEventType) IsValid() bool { return eventTypes.has(e) }

// OutboxDLQErrorReason records why a row left the outbox for the DLQ table.
type OutboxDLQErrorReason string

const (
	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)

var dlqReasons = set[OutboxDLQErrorReason]{OutboxDLQReasonMaxAttempts, OutboxDLQReasonNonRetryable}

func (r OutboxDLQErrorReason) IsValid() bool { return dlqReasons.has(r) }
