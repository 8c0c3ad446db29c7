package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/angelmondragon/restaurant-checkout/pkg/logger"
)

type fakeLock struct {
	held     bool
	acquires int
	jobs     []string
}

func (f *fakeLock) Acquire(_ context.Context, job string) (bool, error) {
	if f.held {
		return false, nil
	}
	f.held = true
	f.acquires++
	f.jobs = append(f.jobs, job)
	return true, nil
}

func (f *fakeLock) Release(context.Context, string) error { f.held = false; return nil }

type testJob struct {
	name  string
	err   error
	every time.Duration
	runs  int
	run   func()
}

func (t *testJob) Name() string { return t.name }

func (t *testJob) Run(context.Context) error {
	t.runs++
	if t.run != nil {
		t.run()
	}
	return t.err
}

type periodicJob struct {
	testJob
}

func (p *periodicJob) Every() time.Duration { return p.every }

func newCronService(t *testing.T, lock Lock, now *time.Time, jobs ...Job) *Service {
	t.Helper()
	registry, err := NewRegistry(jobs...)
	if err != nil {
		t.Fatalf("register jobs: %v", err)
	}
	svc, err := NewService(ServiceParams{
		Logger:   logger.Nop(),
		Registry: registry,
		Lock:     lock,
		Clock:    func() time.Time { return *now },
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	return svc
}

func TestServiceRunCycleRunsAllJobsEvenOnFailure(t *testing.T) {
	now := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	success := &testJob{name: "success"}
	failure := &testJob{name: "fail", err: errors.New("boom")}
	svc := newCronService(t, &fakeLock{}, &now, success, failure)

	if err := svc.runCycle(context.Background()); err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if success.runs != 1 || failure.runs != 1 {
		t.Fatalf("expected both jobs to run once, got %d and %d", success.runs, failure.runs)
	}
}

func TestServiceSkipsCycleWhenLockHeld(t *testing.T) {
	now := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	job := &testJob{name: "reconcile"}
	svc := newCronService(t, &fakeLock{held: true}, &now, job)

	if err := svc.runCycle(context.Background()); err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if job.runs != 0 {
		t.Fatalf("job should not run without the lock")
	}
}

func TestServiceHonorsPeriodicJobs(t *testing.T) {
	now := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	lock := &fakeLock{}
	everyTick := &testJob{name: "tick"}
	daily := &periodicJob{testJob{name: "daily", every: 24 * time.Hour}}
	svc := newCronService(t, lock, &now, everyTick, daily)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := svc.runCycle(ctx); err != nil {
			t.Fatalf("run cycle: %v", err)
		}
		now = now.Add(time.Hour)
	}
	if everyTick.runs != 3 {
		t.Fatalf("expected tick job every cycle, ran %d", everyTick.runs)
	}
	if daily.runs != 1 {
		t.Fatalf("expected daily job once, ran %d", daily.runs)
	}

	now = now.Add(24 * time.Hour)
	if err := svc.runCycle(ctx); err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if daily.runs != 2 {
		t.Fatalf("expected daily job to run again after its interval, ran %d", daily.runs)
	}
}

func TestServiceDoesNotTakeLockWhenNothingIsDue(t *testing.T) {
	now := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	lock := &fakeLock{}
	daily := &periodicJob{testJob{name: "daily", every: 24 * time.Hour}}
	svc := newCronService(t, lock, &now, daily)
	ctx := context.Background()

	if err := svc.runCycle(ctx); err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	now = now.Add(time.Minute)
	if err := svc.runCycle(ctx); err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if lock.acquires != 1 {
		t.Fatalf("expected a single lock acquisition, got %d", lock.acquires)
	}
}
