package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/automaxprocs/maxprocs"
	"go.uber.org/zap"

	"cadconverter/api/cache"
	"cadconverter/api/config"
	"cadconverter/api/database"
	"cadconverter/api/handlers"
	"cadconverter/api/kafka"
	"cadconverter/api/middleware"
	"cadconverter/api/repository"
	"cadconverter/api/service"
	"cadconverter/conversion/gate"
	"cadconverter/conversion/invoker"
	"cadconverter/conversion/pipeline"
	"cadconverter/conversion/workspace"
)

func main() {
	cfg := config.Load()

	rulesPath := pflag.String("rules", cfg.FormatRules, "path to the format rules file")
	port := pflag.String("port", cfg.Port, "listen port")
	pflag.Parse()

	var logger *zap.Logger
	var err error
	if cfg.Env == "production" {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		os.Exit(1)
	}
	defer logger.Sync()

	if _, err := maxprocs.Set(maxprocs.Logger(logger.Sugar().Infof)); err != nil {
		logger.Warn("Failed to set GOMAXPROCS", zap.Error(err))
	}

	logger.Info("API service starting", zap.String("port", *port))

	for _, dir := range []string{cfg.ScratchRoot, cfg.UploadDir, cfg.ResultDir} {
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
	logger.Info("Format rules loaded", zap.Strings("pairs", registry.Pairs()))

	workspaces, err := workspace.NewManager(cfg.ScratchRoot, logger)
	if err != nil {
		logger.Fatal("Failed to initialize scratch root", zap.Error(err))
	}

	coordinator := pipeline.New(workspaces, registry, gate.New(cfg.MaxConcurrent), cfg.ConvertTimeout, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	db, err := database.Connect(ctx, cfg.DatabaseURL)
	cancel()
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	redisCache, err := database.ConnectCache(cfg.RedisAddr)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisCache.Close()

	producer, err := kafka.NewProducer([]string{cfg.KafkaBrokers})
	if err != nil {
		logger.Fatal("Failed to create Kafka producer", zap.Error(err))
	}
	defer producer.Close()

	repo := repository.NewPostgresRepo(db)
	statusCache := cache.NewStatusCache(redisCache)
	taskService := service.NewTaskService(repo, statusCache, producer, cfg.KafkaTopic, logger)

	convertHandler := handlers.NewConvertHandler(coordinator, registry, cfg.MaxFileSize, logger)
	extractHandler := handlers.NewExtractHandler(coordinator, cfg.MaxFileSize, logger)
	taskHandler := handlers.NewTaskHandler(taskService, cfg.UploadDir, cfg.MaxFileSize, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /convert", convertHandler.Convert)
	mux.HandleFunc("POST /extract", extractHandler.Extract)
	mux.HandleFunc("GET /health", convertHandler.Health)
	mux.HandleFunc("POST /tasks", taskHandler.Submit)
	mux.HandleFunc("GET /tasks/{id}", taskHandler.Status)
	mux.HandleFunc("GET /tasks/{id}/result", taskHandler.Result)

	handler := middleware.TraceID(middleware.Logging(logger)(middleware.Recovery(logger)(mux)))

	server := &http.Server{
		Addr:    ":" + *port,
		Handler: handler,
	}

	go func() {
		logger.Info("Server started", zap.String("address", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Forced shutdown", zap.Error(err))
	}
	logger.Info("Server stopped")
}
