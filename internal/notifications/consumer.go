package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/starfeed/backend/pkg/enums"
	"github.com/starfeed/backend/pkg/logger"
	"github.com/starfeed/backend/pkg/outbox"
	"github.com/starfeed/backend/pkg/outbox/idempotency"
	"github.com/starfeed/backend/pkg/outbox/payloads"
	"github.com/starfeed/backend/pkg/outbox/registry"
)

// ModerationConsumerName scopes dedupe keys and worker logs.
const ModerationConsumerName = "moderation-notifications"

type notifier interface {
	Notify(ctx context.Context, accountID uuid.UUID, message Message) error
}

// Consumer tells content owners when an admin suspends or restores their post
// or story.
type Consumer struct {
	notifier     notifier
	subscription *pubsub.Subscriber
	guard        *idempotency.Guard
	decoders     *registry.DecoderRegistry
	logg         *logger.Logger
}

func NewConsumer(n notifier, subscription *pubsub.Subscriber, guard *idempotency.Guard, logg *logger.Logger) (*Consumer, error) {
	switch {
	case n == nil:
		return nil, errors.New("notifier required")
	case subscription == nil:
		return nil, errors.New("moderation subscription required")
	case guard == nil:
		return nil, errors.New("idempotency guard required")
	case logg == nil:
		return nil, errors.New("logger required")
	}
	c := &Consumer{notifier: n, subscription: subscription, guard: guard, logg: logg}
	c.decoders = registry.NewDecoderRegistry()
	registry.RegisterJSON[payloads.ContentModeratedEvent](c.decoders, enums.EventContentModerated, 1)
	return c, nil
}

// Run receives until ctx is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if c.handle(ctx, msg) {
			msg.Ack()
			return
		}
		msg.Nack()
	})
}

// handle reports whether msg should be acked. Only a failed notification is
// retried; messages that can never succeed are logged and dropped.
func (c *Consumer) handle(ctx context.Context, msg *pubsub.Message) bool {
	eventType := msg.Attributes["event_type"]
	ctx = c.logg.WithFields(ctx, map[string]any{"message_id": msg.ID, "event_type": eventType})
	if eventType != string(enums.EventContentModerated) {
		c.logg.Debug(ctx, "skipping non-moderation event")
		return true
	}

	var env outbox.Envelope
	if err := json.Unmarshal(msg.Data, &env); err != nil {
		c.logg.Error(ctx, "dropping undecodable envelope", err)
		return true
	}
	eventID, err := uuid.Parse(env.EventID)
	if err != nil {
		c.logg.Error(ctx, "dropping envelope without event id", err)
		return true
	}

	ran, err := c.guard.Once(ctx, eventID, func(ctx context.Context) error {
		event, err := registry.DecodeAs[payloads.ContentModeratedEvent](c.decoders, enums.EventContentModerated, env.Version, env.Data)
		if err != nil {
			return fmt.Errorf("decode payload: %w", err)
		}
		message, err := moderationNotice(event)
		if err != nil {
			return err
		}
		return c.notifier.Notify(ctx, event.OwnerAccountID, message)
	})
	if err != nil {
		c.logg.Error(ctx, "moderation notification failed", err)
		return false
	}
	if ran {
		c.logg.Info(ctx, "owner notified of moderation change")
	} else {
		c.logg.Info(ctx, "event already processed")
	}
	return true
}

func moderationNotice(event payloads.ContentModeratedEvent) (Message, error) {
	if event.OwnerAccountID == uuid.Nil {
		return Message{}, errors.New("owner account id missing")
	}
	kind := "content"
	if event.Kind != "" {
		kind = string(event.Kind)
	}
	m := Message{Type: enums.NotificationTypeModeration, Link: "/content/" + event.ContentID.String()}
	switch event.Status {
	case enums.ContentStatusSuspended:
		m.Title = "Your " + kind + " was suspended"
		m.Body = "Your " + kind + " is hidden from the feed."
		if event.Reason != "" {
			m.Body += " Reason: " + event.Reason
		}
	case enums.ContentStatusActive:
		m.Title = "Your " + kind + " was restored"
		m.Body = "Your " + kind + " is visible in the feed again."
	default:
		return Message{}, fmt.Errorf("unhandled content status %q", event.Status)
	}
	return m, nil
}
