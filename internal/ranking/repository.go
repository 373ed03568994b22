package ranking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
)

const uniqueViolation = "23505"

// Repository stores rankings and the per-game mmr change ledger in postgres.
//
// Expected schema:
//
//	CREATE TABLE rankings (
//	    account_id TEXT PRIMARY KEY,
//	    normal_mmr DOUBLE PRECISION NOT NULL,
//	    ranked_mmr DOUBLE PRECISION NOT NULL,
//	    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
//	CREATE TABLE mmr_changes (
//	    game_id    TEXT NOT NULL,
//	    account_id TEXT NOT NULL,
//	    mmr_change DOUBLE PRECISION NOT NULL,
//	    ranked     BOOLEAN NOT NULL,
//	    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
//	    PRIMARY KEY (game_id, account_id)
//	);
type Repository struct {
	db *sql.DB
}

func NewRepository(databaseURL string) (*Repository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// InsertRanking creates a fresh rating row with both ladders at seed.
func (r *Repository) InsertRanking(ctx context.Context, accountID string, mmr float64) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO rankings (account_id, normal_mmr, ranked_mmr) VALUES ($1, $2, $2)`,
		accountID, mmr,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("account %s: %w", accountID, ErrRankingAlreadyExists)
	}
	return err
}

// FindRanking loads one account's rating.
func (r *Repository) FindRanking(ctx context.Context, accountID string) (Ranking, error) {
	var rk Ranking
	err := r.db.QueryRowContext(ctx,
		`SELECT account_id, normal_mmr, ranked_mmr, updated_at FROM rankings WHERE account_id = $1`,
		accountID,
	).Scan(&rk.AccountID, &rk.NormalMmr, &rk.RankedMmr, &rk.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Ranking{}, fmt.Errorf("account %s: %w", accountID, ErrRankingNotFound)
	}
	if err != nil {
		return Ranking{}, err
	}
	return rk, nil
}

// UpdateRankings applies a game's rating deltas in one transaction. The
// ledger row on (game_id, account_id) makes the whole call idempotent: a
// redelivered game result hits the unique constraint and the call reports
// applied=false without touching any rating.
func (r *Repository) UpdateRankings(ctx context.Context, gameID string, ranked bool, changes []MmrChange) (bool, error) {
	update := `UPDATE rankings SET normal_mmr = normal_mmr + $1, updated_at = now() WHERE account_id = $2`
	if ranked {
		update = `UPDATE rankings SET ranked_mmr = ranked_mmr + $1, updated_at = now() WHERE account_id = $2`
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	for _, change := range changes {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO mmr_changes (game_id, account_id, mmr_change, ranked) VALUES ($1, $2, $3, $4)`,
			gameID, change.AccountID, change.Delta, ranked,
		); err != nil {
			if isUniqueViolation(err) {
				return false, nil
			}
			return false, err
		}
		if _, err := tx.ExecContext(ctx, update, change.Delta, change.AccountID); err != nil {
			return false, err
		}
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
