package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/starfeed/backend/pkg/config"
	"github.com/starfeed/backend/pkg/db/models"
	"github.com/starfeed/backend/pkg/enums"
	"github.com/starfeed/backend/pkg/outbox"
	"github.com/starfeed/backend/pkg/outbox/payloads"
)

// PermanentError marks an outbox row that will never publish, however often
// it is retried. The publisher dead-letters it straight away.
type PermanentError struct{ Err error }

func (e PermanentError) Error() string {
	if e.Err == nil {
		return "permanent outbox failure"
	}
	return e.Err.Error()
}

func (e PermanentError) Unwrap() error { return e.Err }

func Permanent(err error) error { return PermanentError{Err: err} }

func IsPermanent(err error) bool {
	var perm PermanentError
	return errors.As(err, &perm)
}

// Route is where an event type is published.
type Route struct {
	Aggregate enums.OutboxAggregateType
	Topic     string
}

// Resolved is a row that passed validation, with its payload decoded.
type Resolved struct {
	Route    Route
	Envelope outbox.Envelope
	Payload  any
}

// Routes maps event types to topics and checks rows before they publish.
type Routes struct {
	routes   map[enums.OutboxEventType]Route
	decoders *DecoderRegistry
}

func NewRoutes(cfg config.PubSubConfig) (*Routes, error) {
	switch {
	case cfg.LedgerTopic == "":
		return nil, errors.New("ledger topic is required")
	case cfg.ModerationTopic == "":
		return nil, errors.New("moderation topic is required")
	}

	decoders := NewDecoderRegistry()
	RegisterJSON[payloads.StarViewChargedEvent](decoders, enums.EventStarViewCharged, 1)
	RegisterJSON[payloads.ContentModeratedEvent](decoders, enums.EventContentModerated, 1)

	return &Routes{
		routes: map[enums.OutboxEventType]Route{
			enums.EventStarViewCharged:  {Aggregate: enums.AggregateStarTransaction, Topic: cfg.LedgerTopic},
			enums.EventContentModerated: {Aggregate: enums.AggregateContentItem, Topic: cfg.ModerationTopic},
		},
		decoders: decoders,
	}, nil
}

// Topics returns each distinct topic once, sorted.
func (r *Routes) Topics() []string {
	set := map[string]struct{}{}
	for _, route := range r.routes {
		set[route.Topic] = struct{}{}
	}
	topics := make([]string, 0, len(set))
	for topic := range set {
		topics = append(topics, topic)
	}
	sort.Strings(topics)
	return topics
}

// Resolve fails with a PermanentError for anything a retry cannot fix.
func (r *Routes) Resolve(row models.OutboxEvent) (*Resolved, error) {
	route, ok := r.routes[row.EventType]
	if !ok {
		return nil, Permanent(fmt.Errorf("no route for event type %s", row.EventType))
	}
	if row.AggregateType != route.Aggregate {
		return nil, Permanent(fmt.Errorf("%s belongs to %s, row says %s", row.EventType, route.Aggregate, row.AggregateType))
	}
	if row.AggregateID == uuid.Nil {
		return nil, Permanent(errors.New("aggregate id missing"))
	}

	var env outbox.Envelope
	if err := json.Unmarshal(row.Payload, &env); err != nil {
		return nil, Permanent(fmt.Errorf("decode envelope: %w", err))
	}
	if data := bytes.TrimSpace(env.Data); len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, Permanent(fmt.Errorf("%s envelope has no data", row.EventType))
	}

	payload, err := r.decoders.Decode(row.EventType, env.Version, env.Data)
	if err != nil {
		return nil, Permanent(err)
	}
	return &Resolved{Route: route, Envelope: env, Payload: payload}, nil
}
