package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/restaurant-checkout/internal/reconciliation"
	"github.com/angelmondragon/restaurant-checkout/pkg/logger"
)

const defaultReconciliationEvery = 5 * time.Minute

type reconciliationRunner interface {
	RunOnce(ctx context.Context) (reconciliation.Summary, error)
}

type openGapCounter interface {
	CountOpen(ctx context.Context) (int64, error)
}

type ReconciliationJobParams struct {
	Logger    *logger.Logger
	Processor reconciliationRunner
	Gaps      openGapCounter
	Every     time.Duration
}

// NewReconciliationJob retries open payment reconciliations on every run.
func NewReconciliationJob(params ReconciliationJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Processor == nil {
		return nil, fmt.Errorf("reconciliation processor required")
	}
	every := params.Every
	if every <= 0 {
		every = defaultReconciliationEvery
	}
	return &reconciliationJob{
		logg:      params.Logger,
		processor: params.Processor,
		gaps:      params.Gaps,
		every:     every,
	}, nil
}

type reconciliationJob struct {
	logg      *logger.Logger
	processor reconciliationRunner
	gaps      openGapCounter
	every     time.Duration
}

func (j *reconciliationJob) Name() string { return "payment-reconciliation" }

func (j *reconciliationJob) Every() time.Duration { return j.every }

func (j *reconciliationJob) Run(ctx context.Context) error {
	summary, err := j.processor.RunOnce(ctx)
	fields := map[string]any{
		"processed": summary.Processed,
		"resolved":  summary.Resolved,
		"retried":   summary.Retried,
		"escalated": summary.Escalated,
	}
	if j.gaps != nil {
		if open, countErr := j.gaps.CountOpen(ctx); countErr == nil {
			fields["open"] = open
		}
	}
	logCtx := j.logg.WithFields(ctx, fields)
	if err != nil {
		return fmt.Errorf("payment reconciliation: %w", err)
	}
	if summary.Processed > 0 {
		j.logg.Info(logCtx, "payment reconciliation run complete")
	}
	return nil
}
