package registry

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starfeed/backend/pkg/config"
	"github.com/starfeed/backend/pkg/db/models"
	"github.com/starfeed/backend/pkg/enums"
	"github.com/starfeed/backend/pkg/outbox"
	"github.com/starfeed/backend/pkg/outbox/payloads"
)

func testRoutes(t *testing.T) *Routes {
	t.Helper()
	routes, err := NewRoutes(config.PubSubConfig{LedgerTopic: "ledger", ModerationTopic: "moderation"})
	require.NoError(t, err)
	return routes
}

func envelopeOf(t *testing.T, version int, data any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	env, err := json.Marshal(outbox.Envelope{
		Version:    version,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       raw,
	})
	require.NoError(t, err)
	return env
}

func TestResolveViewCharge(t *testing.T) {
	routes := testRoutes(t)
	txID := uuid.New()
	row := models.OutboxEvent{
		EventType:     enums.EventStarViewCharged,
		AggregateType: enums.AggregateStarTransaction,
		AggregateID:   txID,
		Payload: envelopeOf(t, 1, payloads.StarViewChargedEvent{
			TransactionID:   txID,
			StarsSpent:      3,
			OwnerEarnNGN:    decimal.NewFromInt(900),
			ViewerEarnNGN:   decimal.NewFromInt(300),
			PlatformEarnNGN: decimal.NewFromInt(300),
		}),
	}

	resolved, err := routes.Resolve(row)
	require.NoError(t, err)
	assert.Equal(t, "ledger", resolved.Route.Topic)
	assert.NotEmpty(t, resolved.Envelope.EventID)

	payload, ok := resolved.Payload.(payloads.StarViewChargedEvent)
	require.True(t, ok, "payload is %T", resolved.Payload)
	assert.Equal(t, txID, payload.TransactionID)
	assert.True(t, payload.OwnerEarnNGN.Equal(decimal.NewFromInt(900)))
}

func TestResolveModeration(t *testing.T) {
	routes := testRoutes(t)
	contentID := uuid.New()
	resolved, err := routes.Resolve(models.OutboxEvent{
		EventType:     enums.EventContentModerated,
		AggregateType: enums.AggregateContentItem,
		AggregateID:   contentID,
		Payload:       envelopeOf(t, 1, payloads.ContentModeratedEvent{ContentID: contentID, Status: enums.ContentStatusSuspended}),
	})
	require.NoError(t, err)
	assert.Equal(t, "moderation", resolved.Route.Topic)
	assert.Equal(t, []string{"ledger", "moderation"}, routes.Topics())
}

func TestResolvePermanentFailures(t *testing.T) {
	routes := testRoutes(t)
	cases := map[string]models.OutboxEvent{
		"unknown type": {
			EventType: "order_created", AggregateType: enums.AggregateContentItem,
			AggregateID: uuid.New(), Payload: envelopeOf(t, 1, map[string]string{}),
		},
		"aggregate mismatch": {
			EventType: enums.EventStarViewCharged, AggregateType: enums.AggregateContentItem,
			AggregateID: uuid.New(), Payload: envelopeOf(t, 1, map[string]int{"starsSpent": 1}),
		},
		"nil aggregate id": {
			EventType: enums.EventStarViewCharged, AggregateType: enums.AggregateStarTransaction,
			Payload: envelopeOf(t, 1, map[string]string{}),
		},
		"null data": {
			EventType: enums.EventStarViewCharged, AggregateType: enums.AggregateStarTransaction,
			AggregateID: uuid.New(), Payload: envelopeOf(t, 1, nil),
		},
		"broken envelope": {
			EventType: enums.EventStarViewCharged, AggregateType: enums.AggregateStarTransaction,
			AggregateID: uuid.New(), Payload: json.RawMessage(`{"version":`),
		},
		"unknown version": {
			EventType: enums.EventStarViewCharged, AggregateType: enums.AggregateStarTransaction,
			AggregateID: uuid.New(), Payload: envelopeOf(t, 7, map[string]int{"starsSpent": 1}),
		},
	}
	for name, row := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := routes.Resolve(row)
			require.Error(t, err)
			assert.True(t, IsPermanent(err))
		})
	}
}

func TestNewRoutesRequiresTopics(t *testing.T) {
	_, err := NewRoutes(config.PubSubConfig{LedgerTopic: "ledger"})
	require.Error(t, err)
}

func TestPermanentWrapsCause(t *testing.T) {
	cause := errors.New("bad payload")
	err := Permanent(cause)
	assert.ErrorIs(t, err, cause)
	assert.True(t, IsPermanent(err))
	assert.False(t, IsPermanent(cause))
	assert.Equal(t, "permanent outbox failure", PermanentError{}.Error())
}
