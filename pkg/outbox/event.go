// Package outbox implements the transactional outbox: services queue events
// in the same transaction as the state change they describe, and the
// outbox-publisher ships committed rows to Pub/Sub.
package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/starfeed/backend/pkg/db/models"
	"github.com/starfeed/backend/pkg/enums"
	"github.com/starfeed/backend/pkg/logger"
)

const currentVersion = 1

// Actor is who caused the event.
type Actor struct {
	AccountID uuid.UUID `json:"accountId"`
	Role      string    `json:"role,omitempty"`
}

// Envelope is stored in outbox_events.payload and published unchanged as the
// message body. Consumers dedupe on EventID.
type Envelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *Actor          `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

type Event struct {
	Type        enums.OutboxEventType
	Aggregate   enums.OutboxAggregateType
	AggregateID uuid.UUID
	Actor       *Actor
	Data        any
	// Version defaults to the current envelope version.
	Version    int
	OccurredAt time.Time
}

func (e Event) validate() error {
	switch {
	case !e.Type.IsValid():
		return fmt.Errorf("invalid outbox event type %q", e.Type)
	case !e.Aggregate.IsValid():
		return fmt.Errorf("invalid outbox aggregate type %q", e.Aggregate)
	case e.AggregateID == uuid.Nil:
		return errors.New("aggregate id required")
	}
	return nil
}

func (e Event) envelope() (Envelope, error) {
	data, err := json.Marshal(e.Data)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s data: %w", e.Type, err)
	}
	env := Envelope{
		Version:    e.Version,
		EventID:    uuid.NewString(),
		OccurredAt: e.OccurredAt,
		Actor:      e.Actor,
		Data:       data,
	}
	if env.Version <= 0 {
		env.Version = currentVersion
	}
	if env.OccurredAt.IsZero() {
		env.OccurredAt = time.Now().UTC()
	}
	return env, nil
}

// Emitter queues events.
type Emitter struct {
	store *Store
	logg  *logger.Logger
}

func NewEmitter(store *Store, logg *logger.Logger) *Emitter {
	return &Emitter{store: store, logg: logg}
}

// Emit writes ev into tx. It must run inside the transaction that makes the
// change ev describes, so the event exists exactly when the change commits.
func (e *Emitter) Emit(ctx context.Context, tx *gorm.DB, ev Event) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if err := ev.validate(); err != nil {
		return err
	}
	env, err := ev.envelope()
	if err != nil {
		return err
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	if err := e.store.Enqueue(tx, models.OutboxEvent{
		EventType:     ev.Type,
		AggregateType: ev.Aggregate,
		AggregateID:   ev.AggregateID,
		Payload:       payload,
	}); err != nil {
		return err
	}

	if e.logg != nil {
		e.logg.Debug(e.logg.WithFields(ctx, map[string]any{
			"event_id":       env.EventID,
			"event_type":     ev.Type,
			"aggregate_type": ev.Aggregate,
			"aggregate_id":   ev.AggregateID.String(),
		}), "outbox.queued")
	}
	return nil
}
