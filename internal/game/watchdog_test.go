package game

import (
	"context"
	"testing"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
)

func newTestScheduler(t *testing.T) gocron.Scheduler {
	t.Helper()
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	t.Cleanup(func() { _ = scheduler.Shutdown() })
	return scheduler
}

func TestWatchdogScheduleAndCancel(t *testing.T) {
	scheduler := newTestScheduler(t)
	clock := clockwork.NewFakeClockAt(time.Now().Add(time.Hour))
	wd := NewWatchdog(scheduler, clock)

	err := wd.Schedule("game-1", time.Minute, func(context.Context) error { return nil })
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	jobs := scheduler.Jobs()
	if len(jobs) != 1 {
		t.Fatalf("jobs = %d, want 1", len(jobs))
	}
	if tags := jobs[0].Tags(); len(tags) != 1 || tags[0] != watchdogTag("game-1") {
		t.Fatalf("job tags = %v", tags)
	}

	wd.Cancel("game-1")
	if jobs := scheduler.Jobs(); len(jobs) != 0 {
		t.Fatalf("jobs after cancel = %d, want 0", len(jobs))
	}
}

func TestWatchdogUsesInjectedClock(t *testing.T) {
	scheduler := newTestScheduler(t)
	// A clock lagging an hour behind wall time makes the one-shot start
	// date already past, which the scheduler rejects. This only happens
	// when the deadline comes from the injected clock.
	clock := clockwork.NewFakeClockAt(time.Now().Add(-time.Hour))
	wd := NewWatchdog(scheduler, clock)

	err := wd.Schedule("game-1", time.Minute, func(context.Context) error { return nil })
	if err == nil {
		t.Fatalf("Schedule against a lagging clock did not fail")
	}
}
