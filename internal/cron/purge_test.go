package cron

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/starfeed/backend/pkg/logger"
)

type inlineTx struct{}

func (inlineTx) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error { return fn(nil) }

type purgeCall struct {
	cutoff  time.Time
	ceiling int
}

type fakePurger struct {
	calls []purgeCall
	rows  int64
	err   error
}

func (f *fakePurger) DeleteOlderThan(_ context.Context, _ *gorm.DB, cutoff time.Time) (int64, error) {
	f.calls = append(f.calls, purgeCall{cutoff: cutoff})
	return f.rows, f.err
}

func (f *fakePurger) Purge(_ context.Context, _ *gorm.DB, cutoff time.Time, ceiling int) (int64, error) {
	f.calls = append(f.calls, purgeCall{cutoff: cutoff, ceiling: ceiling})
	return f.rows, f.err
}

func quietLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard})
}

func pinClock(t *testing.T, job Job, now time.Time) {
	t.Helper()
	pj, ok := job.(*purgeJob)
	require.True(t, ok, "got %T", job)
	pj.now = func() time.Time { return now }
}

func TestNotificationCleanupCutoff(t *testing.T) {
	tests := []struct {
		name string
		days int
		want time.Time
	}{
		{name: "default thirty days", days: 0, want: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
		{name: "configured week", days: 7, want: time.Date(2026, 1, 24, 0, 0, 0, 0, time.UTC)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			repo := &fakePurger{rows: 4}
			job, err := NewNotificationCleanupJob(quietLogger(), inlineTx{}, repo, tc.days)
			require.NoError(t, err)
			pinClock(t, job, time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC))

			require.NoError(t, job.Run(context.Background()))
			require.Len(t, repo.calls, 1)
			assert.True(t, repo.calls[0].cutoff.Equal(tc.want), "cutoff %s", repo.calls[0].cutoff)
			assert.Equal(t, "notification-cleanup", job.Name())
		})
	}
}

func TestOutboxRetentionPassesCeiling(t *testing.T) {
	store := &fakePurger{}
	job, err := NewOutboxRetentionJob(quietLogger(), inlineTx{}, store, 48*time.Hour, 3)
	require.NoError(t, err)
	now := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	pinClock(t, job, now)

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, []purgeCall{{cutoff: now.Add(-48 * time.Hour), ceiling: 3}}, store.calls)
}

func TestOutboxRetentionDefaults(t *testing.T) {
	store := &fakePurger{}
	job, err := NewOutboxRetentionJob(quietLogger(), inlineTx{}, store, 0, 0)
	require.NoError(t, err)
	now := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	pinClock(t, job, now)

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, []purgeCall{{cutoff: time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC), ceiling: 10}}, store.calls)
}

func TestPurgeJobReturnsStoreError(t *testing.T) {
	boom := errors.New("statement timeout")
	job, err := NewOutboxRetentionJob(quietLogger(), inlineTx{}, &fakePurger{err: boom}, time.Hour, 5)
	require.NoError(t, err)
	require.ErrorIs(t, job.Run(context.Background()), boom)
}

func TestPurgeJobsRequireDependencies(t *testing.T) {
	_, err := NewNotificationCleanupJob(quietLogger(), inlineTx{}, nil, 30)
	require.Error(t, err)
	_, err = NewOutboxRetentionJob(nil, inlineTx{}, &fakePurger{}, time.Hour, 5)
	require.Error(t, err)
	_, err = NewOutboxRetentionJob(quietLogger(), nil, &fakePurger{}, time.Hour, 5)
	require.Error(t, err)
}
