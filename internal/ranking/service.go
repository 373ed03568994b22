package ranking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/RUKAYAT-CODER/bunnychess/internal/obslog"
	"github.com/RUKAYAT-CODER/bunnychess/internal/stream"
)

// Store is the persistence surface the rating engine needs.
type Store interface {
	InsertRanking(ctx context.Context, accountID string, mmr float64) error
	FindRanking(ctx context.Context, accountID string) (Ranking, error)
	UpdateRankings(ctx context.Context, gameID string, ranked bool, changes []MmrChange) (bool, error)
}

// Service computes and persists Elo changes from finished games.
type Service struct {
	store     Store
	publisher stream.Publisher
}

func NewService(store Store, publisher stream.Publisher) *Service {
	return &Service{store: store, publisher: publisher}
}

// GetOrCreateRanking returns the account's rating, creating it at the
// starting value on first sight. A lost insert race falls back to the row
// the winner created.
func (s *Service) GetOrCreateRanking(ctx context.Context, accountID string) (Ranking, error) {
	rk, err := s.store.FindRanking(ctx, accountID)
	if err == nil {
		return rk, nil
	}
	if !errors.Is(err, ErrRankingNotFound) {
		return Ranking{}, err
	}
	if err := s.store.InsertRanking(ctx, accountID, StartingMmr); err != nil {
		if errors.Is(err, ErrRankingAlreadyExists) {
			return s.store.FindRanking(ctx, accountID)
		}
		return Ranking{}, err
	}
	return Ranking{AccountID: accountID, NormalMmr: StartingMmr, RankedMmr: StartingMmr}, nil
}

// GetRankingOrDefault never fails: a missing row reads as the starting
// rating. Used where a rating is informational rather than authoritative.
func (s *Service) GetRankingOrDefault(ctx context.Context, accountID string) Ranking {
	rk, err := s.store.FindRanking(ctx, accountID)
	if err != nil {
		if !errors.Is(err, ErrRankingNotFound) {
			obslog.L().Warn("ranking_lookup_error", zap.String("account_id", accountID), zap.Error(err))
		}
		return Ranking{AccountID: accountID, NormalMmr: StartingMmr, RankedMmr: StartingMmr}
	}
	return rk
}

// ProcessGameResult turns a finished game into rating changes on the
// ladder matching the game's ranked flag. Reprocessing the same game is a
// no-op thanks to the ledger constraint in the store.
func (s *Service) ProcessGameResult(ctx context.Context, ev stream.GameOverEvent) error {
	var meta Metadata
	if err := json.Unmarshal([]byte(ev.Metadata), &meta); err != nil {
		return fmt.Errorf("game %s metadata: %w", ev.GameID, err)
	}

	score0 := scoreFor(ev, ev.AccountID0)
	mmr0, err := s.snapshotMmr(ctx, meta, ev.AccountID0)
	if err != nil {
		return err
	}
	mmr1, err := s.snapshotMmr(ctx, meta, ev.AccountID1)
	if err != nil {
		return err
	}

	delta0, delta1, err := calculateElo(mmr0, mmr1, score0)
	if err != nil {
		return fmt.Errorf("game %s: %w", ev.GameID, err)
	}
	changes := []MmrChange{
		{AccountID: ev.AccountID0, Delta: delta0, NewMmr: mmr0 + delta0},
		{AccountID: ev.AccountID1, Delta: delta1, NewMmr: mmr1 + delta1},
	}

	applied, err := s.store.UpdateRankings(ctx, ev.GameID, meta.Ranked, changes)
	if err != nil {
		return err
	}
	if !applied {
		obslog.L().Info("ranking_update_skipped",
			zap.String("game_id", ev.GameID),
			zap.String("reason", "already_processed"),
		)
		return nil
	}

	for _, change := range changes {
		if err := s.publisher.Publish(ctx, stream.SubjectEloChange, stream.EloChangeEvent{
			AccountID: change.AccountID,
			EloChange: change.Delta,
			NewElo:    change.NewMmr,
			Ranked:    meta.Ranked,
		}); err != nil {
			// Ratings are committed; a lost notification is not worth failing
			// the message for.
			obslog.L().Error("elo_change_publish_error",
				zap.String("game_id", ev.GameID),
				zap.String("account_id", change.AccountID),
				zap.Error(err),
			)
		}
	}
	obslog.L().Info("ranking_updated",
		zap.String("game_id", ev.GameID),
		zap.Float64("delta0", delta0),
		zap.Float64("delta1", delta1),
	)
	return nil
}

// snapshotMmr prefers the rating snapshot taken at game creation, falling
// back to the stored rating for snapshots that predate an account.
func (s *Service) snapshotMmr(ctx context.Context, meta Metadata, accountID string) (float64, error) {
	if mmr, ok := meta.Mmr[accountID]; ok {
		return mmr, nil
	}
	rk, err := s.GetOrCreateRanking(ctx, accountID)
	if err != nil {
		return 0, err
	}
	return rk.MmrFor(meta.Ranked), nil
}

func scoreFor(ev stream.GameOverEvent, accountID string) float64 {
	switch ev.WinnerAccountID {
	case "":
		return ScoreDraw
	case accountID:
		return ScoreWin
	default:
		return ScoreLoss
	}
}
