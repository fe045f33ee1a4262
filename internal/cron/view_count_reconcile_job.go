package cron

import (
	"context"
	"fmt"

	"github.com/starfeed/backend/pkg/logger"
)

type ViewCountReconcileJobParams struct {
	Logger     *logger.Logger
	Repository viewCountReconciler
}

// viewCountReconciler rewrites content view counters from the view records.
type viewCountReconciler interface {
	ReconcileViewCounts(ctx context.Context) (int64, error)
}

func NewViewCountReconcileJob(params ViewCountReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("content repository required")
	}
	return &viewCountReconcileJob{logg: params.Logger, repo: params.Repository}, nil
}

type viewCountReconcileJob struct {
	logg *logger.Logger
	repo viewCountReconciler
}

func (j *viewCountReconcileJob) Name() string { return "view-count-reconcile" }

func (j *viewCountReconcileJob) Run(ctx context.Context) error {
	fixed, err := j.repo.ReconcileViewCounts(ctx)
	if err != nil {
		return fmt.Errorf("reconcile view counts: %w", err)
	}
	logCtx := j.logg.WithField(ctx, "items_corrected", fixed)
	if fixed > 0 {
		j.logg.Warn(logCtx, "view counters drifted from view records")
		return nil
	}
	j.logg.Info(logCtx, "view counters consistent")
	return nil
}
