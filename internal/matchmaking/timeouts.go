package matchmaking

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/RUKAYAT-CODER/bunnychess/internal/obslog"
)

// TimeoutScheduler arms the rendezvous deadline for a pending game and
// disarms it when the game starts.
type TimeoutScheduler interface {
	Schedule(pendingGameID string, delay time.Duration, task func(ctx context.Context) error) error
	Cancel(pendingGameID string)
}

// PendingTimeouts runs pending-game deadlines on a gocron scheduler, one
// one-shot job per pending game id.
type PendingTimeouts struct {
	scheduler gocron.Scheduler
	clock     clockwork.Clock
}

func NewPendingTimeouts(scheduler gocron.Scheduler, clock clockwork.Clock) *PendingTimeouts {
	return &PendingTimeouts{scheduler: scheduler, clock: clock}
}

func (p *PendingTimeouts) Schedule(pendingGameID string, delay time.Duration, task func(ctx context.Context) error) error {
	_, err := p.scheduler.NewJob(
		gocron.OneTimeJob(gocron.OneTimeJobStartDateTime(p.clock.Now().Add(delay))),
		gocron.NewTask(func() {
			if err := task(context.Background()); err != nil {
				obslog.L().Error("pending_game_timeout_error",
					zap.String("pending_game_id", pendingGameID),
					zap.Error(err),
				)
			}
		}),
		gocron.WithTags(timeoutTag(pendingGameID)),
	)
	return err
}

func (p *PendingTimeouts) Cancel(pendingGameID string) {
	p.scheduler.RemoveByTags(timeoutTag(pendingGameID))
}

func timeoutTag(pendingGameID string) string {
	return "pending-game:" + pendingGameID
}
