package presence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	pkgerrors "github.com/starfeed/backend/pkg/errors"
)

const defaultTTL = 90 * time.Second

// Store is the subset of the redis client presence needs.
type Store interface {
	PresenceKey(accountID string) string
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
}

// Status is the online state of one account. LastSeenAt is the time of the
// latest heartbeat while the marker is live.
type Status struct {
	AccountID  uuid.UUID  `json:"account_id"`
	Online     bool       `json:"online"`
	LastSeenAt *time.Time `json:"last_seen_at,omitempty"`
}

// Service tracks online presence as an expiring marker per account. Clients
// refresh it with SetOnline; a missed heartbeat lets it lapse after the TTL.
type Service interface {
	SetOnline(ctx context.Context, accountID uuid.UUID) (*Status, error)
	SetOffline(ctx context.Context, accountID uuid.UUID) error
	IsOnline(ctx context.Context, accountID uuid.UUID) (*Status, error)
}

type service struct {
	store Store
	ttl   time.Duration
	now   func() time.Time
}

func NewService(store Store, ttl time.Duration) (Service, error) {
	if store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "presence store required")
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &service{store: store, ttl: ttl, now: time.Now}, nil
}

func (s *service) SetOnline(ctx context.Context, accountID uuid.UUID) (*Status, error) {
	if accountID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "account id required")
	}
	seen := s.now().UTC()
	if err := s.store.Set(ctx, s.store.PresenceKey(accountID.String()), seen.Format(time.RFC3339Nano), s.ttl); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "set presence")
	}
	return &Status{AccountID: accountID, Online: true, LastSeenAt: &seen}, nil
}

func (s *service) SetOffline(ctx context.Context, accountID uuid.UUID) error {
	if accountID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "account id required")
	}
	if err := s.store.Del(ctx, s.store.PresenceKey(accountID.String())); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear presence")
	}
	return nil
}

func (s *service) IsOnline(ctx context.Context, accountID uuid.UUID) (*Status, error) {
	if accountID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "account id required")
	}
	raw, err := s.store.Get(ctx, s.store.PresenceKey(accountID.String()))
	if errors.Is(err, goredis.Nil) {
		return &Status{AccountID: accountID}, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read presence")
	}
	status := &Status{AccountID: accountID, Online: true}
	if seen, parseErr := time.Parse(time.RFC3339Nano, raw); parseErr == nil {
		status.LastSeenAt = &seen
	}
	return status, nil
}
