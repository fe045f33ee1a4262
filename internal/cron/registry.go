package cron

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Job is one maintenance task. Jobs must be safe to rerun; two replicas may
// both run a job in the same period after a restart.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Entry pairs a job with how often it should run.
type Entry struct {
	Job   Job
	Every time.Duration
}

// Registry holds the schedule in registration order. Job names are unique.
type Registry struct {
	entries []Entry
	names   map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{names: map[string]struct{}{}}
}

func (r *Registry) Add(job Job, every time.Duration) error {
	if job == nil {
		return errors.New("nil job")
	}
	if every <= 0 {
		return fmt.Errorf("job %s: cadence must be positive", job.Name())
	}
	if _, dup := r.names[job.Name()]; dup {
		return fmt.Errorf("job %s registered twice", job.Name())
	}
	r.names[job.Name()] = struct{}{}
	r.entries = append(r.entries, Entry{Job: job, Every: every})
	return nil
}

// Entries returns a copy of the schedule.
func (r *Registry) Entries() []Entry {
	return append([]Entry(nil), r.entries...)
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		names = append(names, e.Job.Name())
	}
	return names
}
