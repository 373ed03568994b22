package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/RUKAYAT-CODER/bunnychess/internal/config"
	"github.com/RUKAYAT-CODER/bunnychess/internal/game"
	"github.com/RUKAYAT-CODER/bunnychess/internal/matchmaking"
	"github.com/RUKAYAT-CODER/bunnychess/internal/obslog"
	"github.com/RUKAYAT-CODER/bunnychess/internal/ranking"
	"github.com/RUKAYAT-CODER/bunnychess/internal/stream"
)

func main() {
	cfg, err := config.Load(".")
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer obslog.Sync()

	clock := clockwork.NewRealClock()

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		obslog.L().Fatal("redis_url_error", zap.Error(err))
	}
	rdb := redis.NewClient(opts)
	defer func() { _ = rdb.Close() }()

	rankingRepo, err := ranking.NewRepository(cfg.DatabaseURL)
	if err != nil {
		obslog.L().Fatal("postgres_init_error", zap.Error(err))
	}
	defer func() { _ = rankingRepo.Close() }()

	publisher, err := stream.NewKafkaPublisher(cfg.Brokers(), cfg.KafkaTopic)
	if err != nil {
		obslog.L().Fatal("kafka_init_error", zap.Error(err))
	}
	defer func() { _ = publisher.Close() }()

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		obslog.L().Fatal("scheduler_init_error", zap.Error(err))
	}

	// Game lifecycle.
	gameRepo := game.NewRepository(rdb, clock)
	watchdog := game.NewWatchdog(scheduler, clock)
	gameService := game.NewService(gameRepo, publisher, watchdog, clock)

	// Rating engine.
	rankingService := ranking.NewService(rankingRepo, publisher)

	// Matchmaking.
	statuses := matchmaking.NewPlayerStatusStore(rdb)
	queues := matchmaking.NewQueueService(rdb, statuses, rankingService, clock)
	timeouts := matchmaking.NewPendingTimeouts(scheduler, clock)
	pending := matchmaking.NewPendingGameService(
		rdb, statuses, rankingService, gameService, publisher, timeouts, cfg.PendingGameTimeout,
	)
	worker := matchmaking.NewQueueWorker(queues, pending, scheduler, cfg.RankedQueueInterval, cfg.NormalQueueInterval)
	if err := worker.Start(); err != nil {
		obslog.L().Fatal("queue_worker_error", zap.Error(err))
	}
	scheduler.Start()

	// Game-over consumer: ratings plus status cleanup.
	reader := stream.NewGameOverReader(cfg.Brokers(), cfg.KafkaTopic, cfg.KafkaGroupID)
	defer func() { _ = reader.Close() }()
	consumer := ranking.NewGameOverConsumer(reader, rankingService, statuses)

	ctx, cancel := context.WithCancel(context.Background())
	consumerDone := make(chan error, 1)
	go func() {
		consumerDone <- consumer.Run(ctx)
	}()

	obslog.L().Info("bunnychessd_started",
		zap.String("kafka_topic", cfg.KafkaTopic),
		zap.String("kafka_group_id", cfg.KafkaGroupID),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		obslog.L().Info("shutdown_signal", zap.String("signal", sig.String()))
	case err := <-consumerDone:
		if err != nil {
			obslog.L().Error("consumer_stopped", zap.Error(err))
		}
	}

	cancel()
	if err := scheduler.Shutdown(); err != nil {
		obslog.L().Error("scheduler_shutdown_error", zap.Error(err))
	}
}
