package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/angelmondragon/restaurant-checkout/internal/reconciliation"
	"github.com/angelmondragon/restaurant-checkout/pkg/logger"
)

type fakeProcessor struct {
	runs    int
	summary reconciliation.Summary
	err     error
}

func (f *fakeProcessor) RunOnce(context.Context) (reconciliation.Summary, error) {
	f.runs++
	return f.summary, f.err
}

type fakeGapCounter struct{ open int64 }

func (f fakeGapCounter) CountOpen(context.Context) (int64, error) { return f.open, nil }

func TestReconciliationJobRunsProcessor(t *testing.T) {
	processor := &fakeProcessor{summary: reconciliation.Summary{Processed: 2, Resolved: 1, Retried: 1}}
	job, err := NewReconciliationJob(ReconciliationJobParams{
		Logger:    logger.Nop(),
		Processor: processor,
		Gaps:      fakeGapCounter{open: 1},
		Every:     time.Minute,
	})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if processor.runs != 1 {
		t.Fatalf("expected processor run once, got %d", processor.runs)
	}
	if periodic, ok := job.(Periodic); !ok || periodic.Every() != time.Minute {
		t.Fatalf("expected configured interval")
	}
}

func TestReconciliationJobReportsFailures(t *testing.T) {
	processor := &fakeProcessor{err: errors.New("row failed")}
	job, err := NewReconciliationJob(ReconciliationJobParams{Logger: logger.Nop(), Processor: processor})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
}

func TestReconciliationJobRequiresProcessor(t *testing.T) {
	if _, err := NewReconciliationJob(ReconciliationJobParams{Logger: logger.Nop()}); err == nil {
		t.Fatalf("expected error")
	}
}
