// Package idempotency dedupes Pub/Sub deliveries per consumer. Pub/Sub is
// at-least-once, so every handler that writes must run behind a Guard.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type store interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	IdempotencyKey(scope, id string) string
}

// Guard claims event ids for one consumer. A claim lasts ttl; zero keeps it
// until evicted.
type Guard struct {
	store    store
	consumer string
	ttl      time.Duration
}

func NewGuard(s store, consumer string, ttl time.Duration) (*Guard, error) {
	switch {
	case s == nil:
		return nil, errors.New("idempotency store is required")
	case consumer == "":
		return nil, errors.New("consumer name is required")
	case ttl < 0:
		return nil, errors.New("ttl must be non-negative")
	}
	return &Guard{store: s, consumer: consumer, ttl: ttl}, nil
}

// Once runs fn unless eventID was already claimed by this consumer. ran is
// false for duplicates. When fn fails the claim is dropped so a redelivery
// can try again.
func (g *Guard) Once(ctx context.Context, eventID uuid.UUID, fn func(context.Context) error) (ran bool, err error) {
	if eventID == uuid.Nil {
		return false, errors.New("event id is required")
	}
	key := g.store.IdempotencyKey("evt:"+g.consumer, eventID.String())

	claimed, err := g.store.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), g.ttl)
	if err != nil {
		return false, fmt.Errorf("claim %s: %w", eventID, err)
	}
	if !claimed {
		return false, nil
	}

	if err := fn(ctx); err != nil {
		if delErr := g.store.Del(context.WithoutCancel(ctx), key); delErr != nil {
			err = errors.Join(err, fmt.Errorf("release claim: %w", delErr))
		}
		return true, err
	}
	return true, nil
}
