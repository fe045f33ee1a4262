package cron

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type namedJob string

func (n namedJob) Name() string              { return string(n) }
func (n namedJob) Run(context.Context) error { return nil }

func TestRegistryKeepsOrderAndRejectsDuplicates(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.Add(namedJob("outbox-retention"), time.Hour))
	require.NoError(t, registry.Add(namedJob("view-count-reconcile"), 15*time.Minute))

	require.Error(t, registry.Add(namedJob("outbox-retention"), time.Minute))
	require.Error(t, registry.Add(namedJob("zero"), 0))
	require.Error(t, registry.Add(nil, time.Minute))

	assert.Equal(t, []string{"outbox-retention", "view-count-reconcile"}, registry.Names())

	entries := registry.Entries()
	entries[0].Every = time.Nanosecond
	assert.Equal(t, time.Hour, registry.Entries()[0].Every, "entries must be copied")
}
