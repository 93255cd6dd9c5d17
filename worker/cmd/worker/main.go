package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"
	"go.uber.org/automaxprocs/maxprocs"
	"go.uber.org/zap"

	"cadconverter/conversion/gate"
	"cadconverter/conversion/invoker"
	"cadconverter/conversion/pipeline"
	"cadconverter/conversion/workspace"
	"cadconverter/worker/cache"
	"cadconverter/worker/config"
	"cadconverter/worker/kafka"
	"cadconverter/worker/pool"
	"cadconverter/worker/repository"
	"cadconverter/worker/service"
)

func main() {
	cfg := config.Load()

	rulesPath := pflag.String("rules", cfg.FormatRules, "path to the format rules file")
	pflag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		os.Exit(1)
	}
	defer logger.Sync()

	if _, err := maxprocs.Set(maxprocs.Logger(logger.Sugar().Infof)); err != nil {
		logger.Warn("Failed to set GOMAXPROCS", zap.Error(err))
	}

	logger.Info("Worker service starting",
		zap.String("topic", cfg.KafkaTopic),
		zap.String("group", cfg.KafkaGroupID),
		zap.Int("workers", cfg.WorkerCount),
	)

	for _, dir := range []string{cfg.ScratchRoot, cfg.ResultDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.Fatal("Failed to create directory", zap.String("dir", dir), zap.Error(err))
		}
	}

	rules, err := invoker.LoadRules(*rulesPath)
	if err != nil {
		logger.Fatal("Failed to load format rules", zap.String("path", *rulesPath), zap.Error(err))
	}
	registry, err := invoker.NewRegistry(rules, cfg.MaxDiagBytes, logger)
	if err != nil {
		logger.Fatal("Failed to build converter registry", zap.Error(err))
	}

	workspaces, err := workspace.NewManager(cfg.ScratchRoot, logger)
	if err != nil {
		logger.Fatal("Failed to initialize scratch root", zap.Error(err))
	}

	coordinator := pipeline.New(workspaces, registry, gate.New(cfg.MaxConcurrent), cfg.ConvertTimeout, logger)

	connCtx, connCancel := context.WithTimeout(context.Background(), 10*time.Second)
	db, err := pgxpool.New(connCtx, cfg.DatabaseURL)
	if err == nil {
		err = db.Ping(connCtx)
	}
	connCancel()
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()

	consumer, err := kafka.NewConsumer([]string{cfg.KafkaBrokers}, cfg.KafkaGroupID, logger)
	if err != nil {
		logger.Fatal("Failed to create Kafka consumer", zap.Error(err))
	}
	defer consumer.Close()

	processor := service.NewProcessor(
		repository.NewPostgresRepo(db),
		cache.NewStatusCache(redisClient),
		coordinator,
		cfg.ResultDir,
		logger,
	)

	workers := pool.NewWorkerPool(cfg.WorkerCount, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		for {
			err := consumer.Consume(ctx, cfg.KafkaTopic, func(ctx context.Context, msg *kafka.TaskMessage) error {
				return workers.Do(ctx, msg, processor.Process)
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Consumer error, retrying", zap.Error(err))
				time.Sleep(time.Second)
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down worker")
	cancel()
	workers.Wait()
	logger.Info("Worker stopped")
}
