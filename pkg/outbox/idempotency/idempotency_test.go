package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	keys   map[string]time.Duration
	setErr error
}

func newMemStore() *memStore { return &memStore{keys: map[string]time.Duration{}} }

func (m *memStore) SetNX(_ context.Context, key string, _ any, ttl time.Duration) (bool, error) {
	if m.setErr != nil {
		return false, m.setErr
	}
	if _, ok := m.keys[key]; ok {
		return false, nil
	}
	m.keys[key] = ttl
	return true, nil
}

func (m *memStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.keys, k)
	}
	return nil
}

func (m *memStore) IdempotencyKey(scope, id string) string { return "sf:idempotency:" + scope + ":" + id }

func TestOnceRunsEachEventOnce(t *testing.T) {
	store := newMemStore()
	guard, err := NewGuard(store, "moderation-notifications", 24*time.Hour)
	require.NoError(t, err)

	id := uuid.New()
	calls := 0
	handle := func(context.Context) error { calls++; return nil }

	ran, err := guard.Once(context.Background(), id, handle)
	require.NoError(t, err)
	require.True(t, ran)

	ran, err = guard.Once(context.Background(), id, handle)
	require.NoError(t, err)
	require.False(t, ran)
	require.Equal(t, 1, calls)

	require.Equal(t, 24*time.Hour, store.keys["sf:idempotency:evt:moderation-notifications:"+id.String()])
}

func TestOnceReleasesClaimOnFailure(t *testing.T) {
	store := newMemStore()
	guard, err := NewGuard(store, "c", time.Hour)
	require.NoError(t, err)

	boom := errors.New("db down")
	id := uuid.New()
	ran, err := guard.Once(context.Background(), id, func(context.Context) error { return boom })
	require.True(t, ran)
	require.ErrorIs(t, err, boom)
	require.Empty(t, store.keys)

	ran, err = guard.Once(context.Background(), id, func(context.Context) error { return nil })
	require.NoError(t, err)
	require.True(t, ran, "redelivery after failure must run again")
}

func TestOnceStoreError(t *testing.T) {
	store := newMemStore()
	store.setErr = errors.New("redis timeout")
	guard, err := NewGuard(store, "c", time.Hour)
	require.NoError(t, err)

	ran, err := guard.Once(context.Background(), uuid.New(), func(context.Context) error {
		t.Fatal("handler must not run without a claim")
		return nil
	})
	require.False(t, ran)
	require.ErrorContains(t, err, "redis timeout")
}

func TestNewGuardValidates(t *testing.T) {
	_, err := NewGuard(nil, "c", time.Hour)
	require.Error(t, err)
	_, err = NewGuard(newMemStore(), "", time.Hour)
	require.Error(t, err)
	_, err = NewGuard(newMemStore(), "c", -time.Second)
	require.Error(t, err)

	guard, err := NewGuard(newMemStore(), "c", 0)
	require.NoError(t, err)
	_, err = guard.Once(context.Background(), uuid.Nil, func(context.Context) error { return nil })
	require.Error(t, err)
}
