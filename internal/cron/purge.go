package cron

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/starfeed/backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// purgeFunc deletes rows older than cutoff and reports how many went.
type purgeFunc func(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)

// purgeJob is a retention sweep: everything its purge func considers finished
// and older than the window is deleted in one transaction.
type purgeJob struct {
	name   string
	logg   *logger.Logger
	db     txRunner
	window time.Duration
	purge  purgeFunc
	fields map[string]any
	now    func() time.Time
}

func (j *purgeJob) Name() string { return j.name }

func (j *purgeJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.window)
	var deleted int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) (err error) {
		deleted, err = j.purge(ctx, tx, cutoff)
		return err
	})
	if err != nil {
		return err
	}

	fields := map[string]any{"cutoff": cutoff, "window": j.window.String(), "rows_deleted": deleted}
	for k, v := range j.fields {
		fields[k] = v
	}
	j.logg.Info(j.logg.WithFields(ctx, fields), j.name+" purged rows")
	return nil
}

func newPurgeJob(name string, logg *logger.Logger, db txRunner, window time.Duration, purge purgeFunc) (*purgeJob, error) {
	switch {
	case logg == nil:
		return nil, errors.New("logger required")
	case db == nil:
		return nil, errors.New("db runner required")
	case window <= 0:
		return nil, errors.New("retention window must be positive")
	}
	return &purgeJob{name: name, logg: logg, db: db, window: window, purge: purge, now: time.Now}, nil
}

type readNotificationPurger interface {
	DeleteOlderThan(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

// NewNotificationCleanupJob drops read notifications older than the
// retention. Unread ones are kept however old they are.
func NewNotificationCleanupJob(logg *logger.Logger, db txRunner, repo readNotificationPurger, retentionDays int) (Job, error) {
	if repo == nil {
		return nil, errors.New("notifications repository required")
	}
	if retentionDays <= 0 {
		retentionDays = 30
	}
	job, err := newPurgeJob("notification-cleanup", logg, db, time.Duration(retentionDays)*24*time.Hour, repo.DeleteOlderThan)
	if err != nil {
		return nil, err
	}
	job.fields = map[string]any{"retention_days": retentionDays}
	return job, nil
}

type outboxPurger interface {
	Purge(ctx context.Context, tx *gorm.DB, cutoff time.Time, ceiling int) (int64, error)
}

// NewOutboxRetentionJob drops outbox rows the publisher is done with. ceiling
// must match the publisher's attempt limit: rows parked there already have a
// copy in the DLQ.
func NewOutboxRetentionJob(logg *logger.Logger, db txRunner, store outboxPurger, retention time.Duration, ceiling int) (Job, error) {
	if store == nil {
		return nil, errors.New("outbox store required")
	}
	if retention <= 0 {
		retention = 7 * 24 * time.Hour
	}
	if ceiling <= 0 {
		ceiling = 10
	}
	job, err := newPurgeJob("outbox-retention", logg, db, retention, func(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
		return store.Purge(ctx, tx, cutoff, ceiling)
	})
	if err != nil {
		return nil, err
	}
	job.fields = map[string]any{"attempt_ceiling": ceiling}
	return job, nil
}
