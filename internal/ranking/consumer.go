package ranking

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/RUKAYAT-CODER/bunnychess/internal/obslog"
	"github.com/RUKAYAT-CODER/bunnychess/internal/stream"
)

// MessageSource is the consuming side of the event stream. Satisfied by
// *kafka.Reader.
type MessageSource interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

// StatusCleaner clears matchmaking player statuses once a game is over.
type StatusCleaner interface {
	DeletePlayingStatuses(ctx context.Context, gameID string, accountIDs ...string) error
}

// GameOverConsumer drains game-over events: rating updates first, then the
// matchmaking status cleanup that frees both players to queue again. The
// offset is committed only after both succeed, so a crash mid-handle means
// redelivery, which the ledger and the status guards both tolerate.
type GameOverConsumer struct {
	source   MessageSource
	service  *Service
	statuses StatusCleaner
}

func NewGameOverConsumer(source MessageSource, service *Service, statuses StatusCleaner) *GameOverConsumer {
	return &GameOverConsumer{source: source, service: service, statuses: statuses}
}

// Run blocks until ctx is cancelled.
func (c *GameOverConsumer) Run(ctx context.Context) error {
	for {
		msg, err := c.source.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
		if err := c.handle(ctx, msg); err != nil {
			obslog.L().Error("game_over_handle_error",
				zap.String("key", string(msg.Key)),
				zap.Error(err),
			)
			continue
		}
		if err := c.source.CommitMessages(ctx, msg); err != nil {
			obslog.L().Error("game_over_commit_error", zap.Error(err))
		}
	}
}

func (c *GameOverConsumer) handle(ctx context.Context, msg kafka.Message) error {
	if string(msg.Key) != stream.SubjectGameOver {
		return nil
	}
	var ev stream.GameOverEvent
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		return err
	}
	if err := c.service.ProcessGameResult(ctx, ev); err != nil {
		return err
	}
	return c.statuses.DeletePlayingStatuses(ctx, ev.GameID, ev.AccountID0, ev.AccountID1)
}
