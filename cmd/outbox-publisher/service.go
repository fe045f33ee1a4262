package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/starfeed/backend/pkg/config"
	"github.com/starfeed/backend/pkg/db/models"
	"github.com/starfeed/backend/pkg/enums"
	"github.com/starfeed/backend/pkg/logger"
	"github.com/starfeed/backend/pkg/metrics"
	"github.com/starfeed/backend/pkg/outbox/registry"
)

const (
	publishTimeout = 15 * time.Second
	maxIdleBackoff = 10 * time.Second
	jitter         = 250 * time.Millisecond
)

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type pinger interface {
	Ping(context.Context) error
}

type outboxStore interface {
	Claim(tx *gorm.DB, limit, ceiling int) ([]models.OutboxEvent, error)
	MarkPublished(tx *gorm.DB, id uuid.UUID) error
	RecordFailure(tx *gorm.DB, id uuid.UUID, cause error) error
	DeadLetter(tx *gorm.DB, row models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error, ceiling int) error
}

type resolver interface {
	Resolve(models.OutboxEvent) (*registry.Resolved, error)
}

// sender publishes one message and waits for the server ack.
type sender interface {
	Send(ctx context.Context, topic string, msg *gcppubsub.Message) error
}

type ServiceParams struct {
	Config  *config.Config
	Logger  *logger.Logger
	DB      dbClient
	PubSub  pinger
	Store   outboxStore
	Routes  resolver
	Sender  sender
	Metrics *metrics.OutboxMetrics
}

// Service drains outbox_events to Pub/Sub. A batch is claimed and settled in
// one transaction, so concurrent publishers never hold the same row.
type Service struct {
	logg    *logger.Logger
	db      dbClient
	pubsub  pinger
	store   outboxStore
	routes  resolver
	sender  sender
	metrics *metrics.OutboxMetrics

	batch    int
	ceiling  int
	interval time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Config == nil:
		return nil, errors.New("config is required")
	case params.Logger == nil:
		return nil, errors.New("logger is required")
	case params.DB == nil:
		return nil, errors.New("database client is required")
	case params.PubSub == nil:
		return nil, errors.New("pubsub client is required")
	case params.Store == nil:
		return nil, errors.New("outbox store is required")
	case params.Routes == nil:
		return nil, errors.New("event routes are required")
	case params.Sender == nil:
		return nil, errors.New("sender is required")
	}

	cfg := params.Config.Outbox
	return &Service{
		logg:     params.Logger,
		db:       params.DB,
		pubsub:   params.PubSub,
		store:    params.Store,
		routes:   params.Routes,
		sender:   params.Sender,
		metrics:  params.Metrics,
		batch:    positive(cfg.BatchSize, 50),
		ceiling:  positive(cfg.MaxAttempts, 10),
		interval: time.Duration(positive(cfg.PollIntervalMS, 500)) * time.Millisecond,
	}, nil
}

func positive(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

func (s *Service) Run(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	if err := s.pubsub.Ping(ctx); err != nil {
		return fmt.Errorf("pubsub ping failed: %w", err)
	}

	wait := s.interval
	for {
		if err := ctx.Err(); err != nil {
			s.logg.Info(ctx, "outbox.stopping")
			return err
		}

		batch, err := s.drain(ctx)
		switch {
		case err != nil:
			s.logg.Error(ctx, "outbox.batch_failed", err)
			wait = min(wait*2, maxIdleBackoff)
		case batch.settled > 0:
			wait = s.interval
			continue
		case batch.claimed > 0:
			// every send failed; treat it like an error
			wait = min(wait*2, maxIdleBackoff)
		default:
			wait = s.interval
		}
		if err := sleep(ctx, wait+rand.N(jitter)); err != nil {
			return err
		}
	}
}

// batchResult counts the rows a drain claimed and the ones it finished with,
// either published or dead-lettered.
type batchResult struct {
	claimed int
	settled int
}

// drain claims one batch and settles every row in it. A returned error means
// bookkeeping failed and the whole batch rolled back.
func (s *Service) drain(ctx context.Context) (batchResult, error) {
	var res batchResult
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := s.store.Claim(tx, s.batch, s.ceiling)
		if err != nil {
			return fmt.Errorf("claim: %w", err)
		}
		res = batchResult{claimed: len(rows)}
		for _, row := range rows {
			done, err := s.settle(ctx, tx, row)
			if err != nil {
				return err
			}
			if done {
				res.settled++
			}
		}
		return nil
	})
	if err != nil {
		return batchResult{}, err
	}
	return res, nil
}

// settle reports false when the row was left for a later attempt.
func (s *Service) settle(ctx context.Context, tx *gorm.DB, row models.OutboxEvent) (bool, error) {
	resolved, err := s.routes.Resolve(row)
	if err != nil {
		return true, s.deadLetter(ctx, tx, row, enums.OutboxDLQReasonNonRetryable, err, fieldsFor(row, nil))
	}

	fields := fieldsFor(row, resolved)
	sendErr := s.send(ctx, row, resolved)
	switch {
	case sendErr == nil:
		if err := s.store.MarkPublished(tx, row.ID); err != nil {
			return false, fmt.Errorf("mark %s published: %w", row.ID, err)
		}
		s.metrics.IncPublished(string(row.EventType))
		s.logg.Info(s.logg.WithFields(ctx, fields), "outbox.published")
		return true, nil
	case registry.IsPermanent(sendErr):
		return true, s.deadLetter(ctx, tx, row, enums.OutboxDLQReasonNonRetryable, sendErr, fields)
	case row.AttemptCount+1 >= s.ceiling:
		return true, s.deadLetter(ctx, tx, row, enums.OutboxDLQReasonMaxAttempts,
			fmt.Errorf("gave up after %d attempts: %w", row.AttemptCount+1, sendErr), fields)
	}

	fields["error"] = sendErr.Error()
	s.logg.Warn(s.logg.WithFields(ctx, fields), "outbox.publish_failed")
	s.metrics.IncFailed(string(row.EventType))
	if err := s.store.RecordFailure(tx, row.ID, sendErr); err != nil {
		return false, fmt.Errorf("record %s failure: %w", row.ID, err)
	}
	return false, nil
}

func (s *Service) deadLetter(ctx context.Context, tx *gorm.DB, row models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error, fields map[string]any) error {
	fields["error_reason"] = reason
	fields["error"] = cause.Error()
	s.logg.Warn(s.logg.WithFields(ctx, fields), "outbox.dead_lettered")

	if err := s.store.DeadLetter(tx, row, reason, cause, s.ceiling); err != nil {
		return fmt.Errorf("dead-letter %s: %w", row.ID, err)
	}
	s.metrics.IncDeadLettered(string(row.EventType), string(reason))
	return nil
}

// send publishes the stored envelope unchanged. Attributes carry enough for
// subscription filters without decoding the body.
func (s *Service) send(ctx context.Context, row models.OutboxEvent, resolved *registry.Resolved) error {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	return s.sender.Send(ctx, resolved.Route.Topic, &gcppubsub.Message{
		Data: row.Payload,
		Attributes: map[string]string{
			"event_id":       resolved.Envelope.EventID,
			"event_type":     string(row.EventType),
			"event_version":  strconv.Itoa(resolved.Envelope.Version),
			"aggregate_type": string(row.AggregateType),
			"aggregate_id":   row.AggregateID.String(),
			"created_at":     row.CreatedAt.UTC().Format(time.RFC3339Nano),
		},
	})
}

func fieldsFor(row models.OutboxEvent, resolved *registry.Resolved) map[string]any {
	fields := map[string]any{
		"outbox_id":      row.ID.String(),
		"event_type":     row.EventType,
		"aggregate_type": row.AggregateType,
		"aggregate_id":   row.AggregateID.String(),
		"attempt_count":  row.AttemptCount,
	}
	if resolved != nil {
		fields["topic"] = resolved.Route.Topic
		fields["event_id"] = resolved.Envelope.EventID
	}
	if row.LastError != nil {
		fields["last_error"] = *row.LastError
	}
	return fields
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type publisherSource interface {
	Publisher(topic string) *gcppubsub.Publisher
}

// topicSender sends through the client's shared per-topic publishers.
type topicSender struct {
	source publisherSource
}

func (t topicSender) Send(ctx context.Context, topic string, msg *gcppubsub.Message) error {
	pub := t.source.Publisher(topic)
	if pub == nil {
		return registry.Permanent(fmt.Errorf("no publisher for topic %q", topic))
	}
	_, err := pub.Publish(ctx, msg).Get(ctx)
	return err
}
