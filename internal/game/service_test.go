package game

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"

	"github.com/RUKAYAT-CODER/bunnychess/internal/chessgame"
	"github.com/RUKAYAT-CODER/bunnychess/internal/stream"
)

type publishedEvent struct {
	subject string
	payload any
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *recordingPublisher) Publish(_ context.Context, subject string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{subject: subject, payload: payload})
	return nil
}

func (p *recordingPublisher) bySubject(subject string) []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []publishedEvent
	for _, ev := range p.events {
		if ev.subject == subject {
			out = append(out, ev)
		}
	}
	return out
}

type fakeCheckScheduler struct {
	mu        sync.Mutex
	tasks     map[string]func(ctx context.Context) error
	delays    map[string]time.Duration
	cancelled []string
}

func newFakeCheckScheduler() *fakeCheckScheduler {
	return &fakeCheckScheduler{
		tasks:  map[string]func(ctx context.Context) error{},
		delays: map[string]time.Duration{},
	}
}

func (f *fakeCheckScheduler) Schedule(gameID string, delay time.Duration, task func(ctx context.Context) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks[gameID] = task
	f.delays[gameID] = delay
	return nil
}

func (f *fakeCheckScheduler) Cancel(gameID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, gameID)
	delete(f.tasks, gameID)
}

type testEnv struct {
	svc       *Service
	repo      *Repository
	clock     clockwork.FakeClock
	publisher *recordingPublisher
	checks    *fakeCheckScheduler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	clock := clockwork.NewFakeClockAt(time.UnixMilli(1_700_000_000_000))
	repo := NewRepository(rdb, clock)
	publisher := &recordingPublisher{}
	checks := newFakeCheckScheduler()
	return &testEnv{
		svc:       NewService(repo, publisher, checks, clock),
		repo:      repo,
		clock:     clock,
		publisher: publisher,
		checks:    checks,
	}
}

func TestCreateGameStoresStateAndSchedulesCheck(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	g, err := env.svc.CreateGame(ctx, "acc-0", "acc-1", chessgame.Blitz5Plus3, "meta")
	if err != nil {
		t.Fatalf("CreateGame: %v", err)
	}

	stored, err := env.svc.GetGame(ctx, g.ID())
	if err != nil {
		t.Fatalf("GetGame: %v", err)
	}
	if stored.Seq() != 0 {
		t.Fatalf("seq = %d, want 0", stored.Seq())
	}
	ids := stored.AccountIDs()
	if !(ids.W == "acc-0" && ids.B == "acc-1") && !(ids.W == "acc-1" && ids.B == "acc-0") {
		t.Fatalf("unexpected side assignment: %+v", ids)
	}

	if got := env.publisher.bySubject(stream.SubjectGameStart); len(got) != 1 {
		t.Fatalf("game start events = %d, want 1", len(got))
	}
	wantDelay := time.Duration(2*5*time.Minute.Milliseconds()+3000*chessgame.MaxMoves) * time.Millisecond
	if env.checks.delays[g.ID()] != wantDelay {
		t.Fatalf("check delay = %v, want %v", env.checks.delays[g.ID()], wantDelay)
	}
}

func TestConcurrentUpdateLosesSeqRace(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	g, err := env.svc.CreateGame(ctx, "acc-0", "acc-1", chessgame.Rapid10Plus0, "")
	if err != nil {
		t.Fatalf("CreateGame: %v", err)
	}
	whiteID := g.AccountIDs().W

	g1, err := env.svc.GetGame(ctx, g.ID())
	if err != nil {
		t.Fatalf("GetGame: %v", err)
	}
	g2, err := env.svc.GetGame(ctx, g.ID())
	if err != nil {
		t.Fatalf("GetGame: %v", err)
	}

	if err := g1.Move(whiteID, "e2e4"); err != nil {
		t.Fatalf("Move: %v", err)
	}
	if err := env.repo.UpdateGame(ctx, g1); err != nil {
		t.Fatalf("first UpdateGame: %v", err)
	}

	if err := g2.Move(whiteID, "d2d4"); err != nil {
		t.Fatalf("Move: %v", err)
	}
	if err := env.repo.UpdateGame(ctx, g2); !errors.Is(err, ErrConcurrentUpdate) {
		t.Fatalf("second UpdateGame error = %v, want ErrConcurrentUpdate", err)
	}

	// Exactly one move must be persisted.
	stored, err := env.svc.GetGame(ctx, g.ID())
	if err != nil {
		t.Fatalf("GetGame: %v", err)
	}
	if stored.Seq() != 1 {
		t.Fatalf("stored seq = %d, want 1", stored.Seq())
	}
	if got := stored.HistoryUCI()[0]; got != "e2e4" {
		t.Fatalf("stored move = %q, want winner's e2e4", got)
	}
}

func TestMakeMoveEmitsStateUpdate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	g, err := env.svc.CreateGame(ctx, "acc-0", "acc-1", chessgame.Rapid10Plus0, "")
	if err != nil {
		t.Fatalf("CreateGame: %v", err)
	}
	whiteID := g.AccountIDs().W

	env.clock.Advance(5 * time.Second)
	updated, err := env.svc.MakeMove(ctx, g.ID(), whiteID, "e2e4")
	if err != nil {
		t.Fatalf("MakeMove: %v", err)
	}
	if updated.Seq() != 1 {
		t.Fatalf("seq = %d, want 1", updated.Seq())
	}

	events := env.publisher.bySubject(stream.SubjectGameStateUpdate)
	if len(events) != 1 {
		t.Fatalf("state update events = %d, want 1", len(events))
	}
	ev := events[0].payload.(stream.GameStateUpdateEvent)
	if ev.Seq != 1 || ev.Move != "e2e4" {
		t.Fatalf("unexpected state update event: %+v", ev)
	}
	if ev.Clocks.W != 595000 {
		t.Fatalf("event white clock = %d, want 595000", ev.Clocks.W)
	}
}

func TestResignFinalizesGame(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	g, err := env.svc.CreateGame(ctx, "acc-0", "acc-1", chessgame.Blitz3Plus0, "meta")
	if err != nil {
		t.Fatalf("CreateGame: %v", err)
	}
	blackID := g.AccountIDs().B

	if _, err := env.svc.Resign(ctx, g.ID(), blackID); err != nil {
		t.Fatalf("Resign: %v", err)
	}

	events := env.publisher.bySubject(stream.SubjectGameOver)
	if len(events) != 1 {
		t.Fatalf("game over events = %d, want 1", len(events))
	}
	ev := events[0].payload.(stream.GameOverEvent)
	if ev.GameOverReason != string(chessgame.ReasonResignation) {
		t.Fatalf("reason = %s, want resignation", ev.GameOverReason)
	}
	if ev.WinnerAccountID != g.AccountIDs().W {
		t.Fatalf("winner = %s, want %s", ev.WinnerAccountID, g.AccountIDs().W)
	}
	if ev.Metadata != "meta" {
		t.Fatalf("metadata = %q, want passthrough", ev.Metadata)
	}

	if _, err := env.svc.GetGame(ctx, g.ID()); !errors.Is(err, ErrGameNotFound) {
		t.Fatalf("finished game lookup error = %v, want ErrGameNotFound", err)
	}
	if len(env.checks.cancelled) != 1 || env.checks.cancelled[0] != g.ID() {
		t.Fatalf("deferred check not cancelled: %v", env.checks.cancelled)
	}
}

func TestDeferredCheckFinalizesTimedOutGame(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	g, err := env.svc.CreateGame(ctx, "acc-0", "acc-1", chessgame.Bullet1Plus0, "")
	if err != nil {
		t.Fatalf("CreateGame: %v", err)
	}

	// Both players disappear; white's clock runs out untouched.
	env.clock.Advance(3 * time.Minute)
	if err := env.svc.CheckStoredGame(ctx, g.ID()); err != nil {
		t.Fatalf("CheckStoredGame: %v", err)
	}

	events := env.publisher.bySubject(stream.SubjectGameOver)
	if len(events) != 1 {
		t.Fatalf("game over events = %d, want 1", len(events))
	}
	ev := events[0].payload.(stream.GameOverEvent)
	if ev.GameOverReason != string(chessgame.ReasonWhiteTimeout) {
		t.Fatalf("reason = %s, want white_timeout", ev.GameOverReason)
	}
	if _, err := env.svc.GetGame(ctx, g.ID()); !errors.Is(err, ErrGameNotFound) {
		t.Fatalf("game still stored after deferred check")
	}
}

func TestDeferredCheckMissingGameIsNoop(t *testing.T) {
	env := newTestEnv(t)

	if err := env.svc.CheckStoredGame(context.Background(), "already-processed"); err != nil {
		t.Fatalf("CheckStoredGame on missing game: %v", err)
	}
	if len(env.publisher.events) != 0 {
		t.Fatalf("unexpected events: %+v", env.publisher.events)
	}
}
