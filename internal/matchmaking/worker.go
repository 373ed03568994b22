package matchmaking

import (
	"context"
	"errors"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"

	"github.com/RUKAYAT-CODER/bunnychess/internal/chessgame"
	"github.com/RUKAYAT-CODER/bunnychess/internal/obslog"
)

// QueueWorker drives the periodic matching cycles: one recurring job per
// game type and partition, ranked and normal on their own cadence.
type QueueWorker struct {
	queues    *QueueService
	pending   *PendingGameService
	scheduler gocron.Scheduler
	intervals map[bool]time.Duration
}

// NewQueueWorker builds the worker. Non-positive intervals fall back to
// the partition defaults.
func NewQueueWorker(queues *QueueService, pending *PendingGameService, scheduler gocron.Scheduler, rankedInterval, normalInterval time.Duration) *QueueWorker {
	if rankedInterval <= 0 {
		rankedInterval = RankedQueueConfig.Interval
	}
	if normalInterval <= 0 {
		normalInterval = NormalQueueConfig.Interval
	}
	return &QueueWorker{
		queues:    queues,
		pending:   pending,
		scheduler: scheduler,
		intervals: map[bool]time.Duration{true: rankedInterval, false: normalInterval},
	}
}

// Start registers all matching jobs. The scheduler itself is started by
// the caller.
func (w *QueueWorker) Start() error {
	for _, gameType := range chessgame.GameTypes() {
		for _, ranked := range []bool{true, false} {
			_, err := w.scheduler.NewJob(
				gocron.DurationJob(w.intervals[ranked]),
				gocron.NewTask(func() {
					w.runCycle(context.Background(), gameType, ranked)
				}),
				gocron.WithTags("matchmaking:"+string(gameType)+":"+partition(ranked)),
			)
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// runCycle matches one partition once. A pair whose players raced out of
// the queue is skipped; everything else in the batch still proceeds.
func (w *QueueWorker) runCycle(ctx context.Context, gameType chessgame.GameType, ranked bool) {
	pairs, err := w.queues.MatchPlayersInQueue(ctx, gameType, ranked)
	if err != nil {
		obslog.L().Error("matchmaking_cycle_error",
			zap.String("game_type", string(gameType)),
			zap.Bool("ranked", ranked),
			zap.Error(err),
		)
		return
	}
	for _, pair := range pairs {
		if err := w.queues.RemoveMatchedPlayersFromQueue(ctx, gameType, ranked, pair); err != nil {
			if errors.Is(err, ErrInconsistentStatus) {
				obslog.L().Debug("matchmaking_pair_skipped",
					zap.String("account_id_0", pair.AccountID0),
					zap.String("account_id_1", pair.AccountID1),
				)
				continue
			}
			obslog.L().Error("matchmaking_remove_error",
				zap.String("account_id_0", pair.AccountID0),
				zap.String("account_id_1", pair.AccountID1),
				zap.Error(err),
			)
			continue
		}
		if _, err := w.pending.CreatePendingGame(ctx, pair, gameType, ranked); err != nil {
			obslog.L().Error("pending_game_create_error",
				zap.String("account_id_0", pair.AccountID0),
				zap.String("account_id_1", pair.AccountID1),
				zap.Error(err),
			)
		}
	}
}
