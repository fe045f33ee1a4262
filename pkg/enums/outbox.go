package enums

// OutboxAggregateType is aggregate_type: the row an event describes.
type OutboxAggregateType string

const (
	AggregateContentItem     OutboxAggregateType = "content_item"
	AggregateStarTransaction OutboxAggregateType = "star_transaction"
)

var aggregateTypes = []OutboxAggregateType{AggregateContentItem, AggregateStarTransaction}

func (a OutboxAggregateType) IsValid() bool { return member(a, aggregateTypes) }

func ParseOutboxAggregateType(raw string) (OutboxAggregateType, error) {
	return parse("aggregate type", raw, aggregateTypes)
}

// OutboxEventType is event_type. It doubles as the Pub/Sub "event_type"
// attribute consumers filter on.
type OutboxEventType string

const (
	EventStarViewCharged  OutboxEventType = "star_view_charged"
	EventContentModerated OutboxEventType = "content_moderated"
)

var eventTypes = []OutboxEventType{EventStarViewCharged, EventContentModerated}

func (e OutboxEventType) IsValid() bool { return member(e, eventTypes) }

func ParseOutboxEventType(raw string) (OutboxEventType, error) {
	return parse("event type", raw, eventTypes)
}

// OutboxDLQErrorReason records why the publisher gave up on an event.
type OutboxDLQErrorReason string

const (
	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)

var dlqReasons = []OutboxDLQErrorReason{OutboxDLQReasonMaxAttempts, OutboxDLQReasonNonRetryable}

func (r OutboxDLQErrorReason) IsValid() bool { return member(r, dlqReasons) }
