package matchmaking

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

func TestPendingTimeoutsScheduleAndCancel(t *testing.T) {
	scheduler := newTestScheduler(t)
	clock := clockwork.NewFakeClockAt(time.Now().Add(time.Hour))
	timeouts := NewPendingTimeouts(scheduler, clock)

	err := timeouts.Schedule("pg-1", 5*time.Second, func(context.Context) error { return nil })
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	jobs := scheduler.Jobs()
	if len(jobs) != 1 {
		t.Fatalf("jobs = %d, want 1", len(jobs))
	}
	if tags := jobs[0].Tags(); len(tags) != 1 || tags[0] != timeoutTag("pg-1") {
		t.Fatalf("job tags = %v", tags)
	}

	timeouts.Cancel("pg-1")
	if jobs := scheduler.Jobs(); len(jobs) != 0 {
		t.Fatalf("jobs after cancel = %d, want 0", len(jobs))
	}
}

func TestPendingTimeoutsUseInjectedClock(t *testing.T) {
	scheduler := newTestScheduler(t)
	// A lagging clock puts the one-shot start date in the past, which the
	// scheduler rejects. Only a deadline computed from the injected clock
	// can trip this.
	clock := clockwork.NewFakeClockAt(time.Now().Add(-time.Hour))
	timeouts := NewPendingTimeouts(scheduler, clock)

	err := timeouts.Schedule("pg-1", 5*time.Second, func(context.Context) error { return nil })
	if err == nil {
		t.Fatalf("Schedule against a lagging clock did not fail")
	}
}
