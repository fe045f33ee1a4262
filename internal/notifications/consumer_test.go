package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starfeed/backend/pkg/enums"
	"github.com/starfeed/backend/pkg/logger"
	"github.com/starfeed/backend/pkg/outbox"
	"github.com/starfeed/backend/pkg/outbox/idempotency"
	"github.com/starfeed/backend/pkg/outbox/payloads"
)

type sentNotice struct {
	to      uuid.UUID
	message Message
}

type recordingNotifier struct {
	sent []sentNotice
	err  error
}

func (r *recordingNotifier) Notify(_ context.Context, accountID uuid.UUID, message Message) error {
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, sentNotice{accountID, message})
	return nil
}

type memoryKeys map[string]bool

func (m memoryKeys) SetNX(_ context.Context, key string, _ any, _ time.Duration) (bool, error) {
	if m[key] {
		return false, nil
	}
	m[key] = true
	return true, nil
}

func (m memoryKeys) IdempotencyKey(scope, id string) string { return scope + ":" + id }

func (m memoryKeys) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m, key)
	}
	return nil
}

// testConsumer skips the subscription; handle is driven directly.
func testConsumer(t *testing.T, n notifier) (*Consumer, memoryKeys) {
	t.Helper()
	keys := memoryKeys{}
	guard, err := idempotency.NewGuard(keys, ModerationConsumerName, time.Hour)
	require.NoError(t, err)
	c, err := NewConsumer(n, &pubsub.Subscriber{}, guard, logger.New(logger.Options{ServiceName: "test"}))
	require.NoError(t, err)
	return c, keys
}

func moderated(t *testing.T, event payloads.ContentModeratedEvent) *pubsub.Message {
	t.Helper()
	data, err := json.Marshal(event)
	require.NoError(t, err)
	env, err := json.Marshal(outbox.Envelope{Version: 1, EventID: uuid.NewString(), OccurredAt: time.Now().UTC(), Data: data})
	require.NoError(t, err)
	return &pubsub.Message{
		ID:         "m-" + event.ContentID.String()[:8],
		Data:       env,
		Attributes: map[string]string{"event_type": string(enums.EventContentModerated)},
	}
}

func TestConsumerNotifiesOwnerOnce(t *testing.T) {
	n := &recordingNotifier{}
	c, _ := testConsumer(t, n)
	owner, content := uuid.New(), uuid.New()
	msg := moderated(t, payloads.ContentModeratedEvent{
		ContentID:      content,
		OwnerAccountID: owner,
		Kind:           enums.ContentKindStory,
		Status:         enums.ContentStatusSuspended,
		Reason:         "spam",
	})

	assert.True(t, c.handle(context.Background(), msg))
	assert.True(t, c.handle(context.Background(), msg), "redelivery is acked")

	require.Len(t, n.sent, 1)
	assert.Equal(t, owner, n.sent[0].to)
	assert.Equal(t, Message{
		Type:  enums.NotificationTypeModeration,
		Title: "Your story was suspended",
		Body:  "Your story is hidden from the feed. Reason: spam",
		Link:  "/content/" + content.String(),
	}, n.sent[0].message)
}

func TestConsumerAcksWhatItCannotUse(t *testing.T) {
	cases := map[string]*pubsub.Message{
		"other event": {Data: []byte(`{}`), Attributes: map[string]string{"event_type": string(enums.EventStarViewCharged)}},
		"bad json":    {Data: []byte(`not-json`), Attributes: map[string]string{"event_type": string(enums.EventContentModerated)}},
		"no event id": {Data: []byte(`{"version":1,"data":{}}`), Attributes: map[string]string{"event_type": string(enums.EventContentModerated)}},
	}
	for name, msg := range cases {
		t.Run(name, func(t *testing.T) {
			n := &recordingNotifier{}
			c, _ := testConsumer(t, n)
			assert.True(t, c.handle(context.Background(), msg))
			assert.Empty(t, n.sent)
		})
	}
}

func TestConsumerNacksAndReleasesKeyOnFailure(t *testing.T) {
	c, keys := testConsumer(t, &recordingNotifier{err: errors.New("db down")})
	msg := moderated(t, payloads.ContentModeratedEvent{
		ContentID:      uuid.New(),
		OwnerAccountID: uuid.New(),
		Kind:           enums.ContentKindPost,
		Status:         enums.ContentStatusActive,
	})

	assert.False(t, c.handle(context.Background(), msg))
	assert.Empty(t, keys, "key is released so redelivery can retry")
}

func TestModerationNotice(t *testing.T) {
	restored, err := moderationNotice(payloads.ContentModeratedEvent{
		ContentID:      uuid.New(),
		OwnerAccountID: uuid.New(),
		Status:         enums.ContentStatusActive,
	})
	require.NoError(t, err)
	assert.Equal(t, "Your content was restored", restored.Title)

	suspended, err := moderationNotice(payloads.ContentModeratedEvent{
		OwnerAccountID: uuid.New(),
		Kind:           enums.ContentKindPost,
		Status:         enums.ContentStatusSuspended,
	})
	require.NoError(t, err)
	assert.Equal(t, "Your post is hidden from the feed.", suspended.Body)

	_, err = moderationNotice(payloads.ContentModeratedEvent{Status: enums.ContentStatusActive})
	assert.Error(t, err)

	_, err = moderationNotice(payloads.ContentModeratedEvent{OwnerAccountID: uuid.New(), Status: "archived"})
	assert.Error(t, err)
}
