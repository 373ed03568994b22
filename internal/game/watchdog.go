package game

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/RUKAYAT-CODER/bunnychess/internal/obslog"
)

// CheckScheduler schedules the deferred safety check that guarantees every
// game is eventually finalized, and cancels it on normal completion.
type CheckScheduler interface {
	Schedule(gameID string, delay time.Duration, task func(ctx context.Context) error) error
	Cancel(gameID string)
}

// Watchdog runs deferred game checks on a gocron scheduler, one one-shot
// job per game id.
type Watchdog struct {
	scheduler gocron.Scheduler
	clock     clockwork.Clock
}

func NewWatchdog(scheduler gocron.Scheduler, clock clockwork.Clock) *Watchdog {
	return &Watchdog{scheduler: scheduler, clock: clock}
}

func (w *Watchdog) Schedule(gameID string, delay time.Duration, task func(ctx context.Context) error) error {
	_, err := w.scheduler.NewJob(
		gocron.OneTimeJob(gocron.OneTimeJobStartDateTime(w.clock.Now().Add(delay))),
		gocron.NewTask(func() {
			if err := task(context.Background()); err != nil {
				obslog.L().Error("game_watchdog_error",
					zap.String("game_id", gameID),
					zap.Error(err),
				)
			}
		}),
		gocron.WithTags(watchdogTag(gameID)),
	)
	return err
}

func (w *Watchdog) Cancel(gameID string) {
	w.scheduler.RemoveByTags(watchdogTag(gameID))
}

func watchdogTag(gameID string) string {
	return "check-game:" + gameID
}
