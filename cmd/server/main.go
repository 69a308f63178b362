package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/martinlepro/Server-fusionn-e-donn-et-friend/internal/config"
	"github.com/martinlepro/Server-fusionn-e-donn-et-friend/internal/docstore"
	"github.com/martinlepro/Server-fusionn-e-donn-et-friend/internal/handler"
	"github.com/martinlepro/Server-fusionn-e-donn-et-friend/internal/identity"
	"github.com/martinlepro/Server-fusionn-e-donn-et-friend/internal/kafka"
	"github.com/martinlepro/Server-fusionn-e-donn-et-friend/internal/leaderboard"
	"github.com/martinlepro/Server-fusionn-e-donn-et-friend/internal/postgres"
	"github.com/martinlepro/Server-fusionn-e-donn-et-friend/internal/progress"
	"github.com/martinlepro/Server-fusionn-e-donn-et-friend/internal/relationship"
	"github.com/martinlepro/Server-fusionn-e-donn-et-friend/internal/websocket"
	"github.com/martinlepro/Server-fusionn-e-donn-et-friend/internal/worker"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Warn("failed to load config file, using defaults", "error", err)
		cfg = config.DefaultConfig()
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize the document store
	logger.Info("connecting to Redis", "addr", cfg.Redis.Addr)
	store, err := docstore.NewRedis(&cfg.Redis, logger)
	if err != nil {
		logger.Error("failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	logger.Info("connected to Redis")

	// Initialize the PostgreSQL audit sidecar
	var audit *postgres.AuditLog
	if cfg.Postgres.Enabled {
		logger.Info("connecting to PostgreSQL", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
		audit, err = postgres.NewAuditLog(&cfg.Postgres, logger)
		if err != nil {
			logger.Error("failed to connect to PostgreSQL", "error", err)
			os.Exit(1)
		}
		defer audit.Close()
		logger.Info("connected to PostgreSQL")

		// Run database migrations
		if err := audit.RunMigrations(ctx); err != nil {
			logger.Error("failed to run migrations", "error", err)
			os.Exit(1)
		}
	}

	// Initialize WebSocket hub
	wsHub := websocket.NewHub(logger)
	go wsHub.Run()
	logger.Info("WebSocket hub initialized")

	// Initialize core components
	registry := identity.NewRegistry(store, &cfg.Social, logger)
	relations := relationship.NewManager(store, registry, logger)
	progressStore := progress.NewStore(store, &cfg.Social, logger)
	projector := leaderboard.NewProjector(store, &cfg.Social, logger)

	// Initialize snapshot worker
	var snapshotWorker *worker.SnapshotWorker
	if audit != nil && cfg.Snapshot.Enabled {
		snapshotWorker = worker.NewSnapshotWorker(
			projector,
			audit,
			cfg.Social.RankingField,
			&cfg.Snapshot,
			logger,
		)
		if err := snapshotWorker.Start(ctx); err != nil {
			logger.Error("failed to start snapshot worker", "error", err)
			os.Exit(1)
		}
	}

	// Initialize Kafka consumer for high-load progress ingestion
	var kafkaConsumer *kafka.Consumer
	if cfg.Kafka.Enabled {
		logger.Info("initializing Kafka consumer",
			"brokers", cfg.Kafka.Brokers,
			"topic", cfg.Kafka.Topic,
		)
		var err error
		kafkaConsumer, err = kafka.NewConsumer(&cfg.Kafka, progressStore, logger)
		if err != nil {
			logger.Warn("failed to create Kafka consumer, continuing without Kafka", "error", err)
		} else {
			if err := kafkaConsumer.Start(); err != nil {
				logger.Warn("failed to start Kafka consumer, continuing without Kafka", "error", err)
				kafkaConsumer = nil
			} else {
				logger.Info("Kafka consumer started successfully")
			}
		}
	}

	// Initialize HTTP handler
	httpHandler := handler.NewHandler(registry, relations, progressStore, projector, wsHub, audit, logger)

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      httpHandler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting HTTP server", "port", cfg.Server.Port)
		logger.Info("WebSocket endpoint available at /ws")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Stop WebSocket hub
	wsHub.Stop()

	// Stop Kafka consumer
	if kafkaConsumer != nil {
		if err := kafkaConsumer.Stop(); err != nil {
			logger.Error("failed to stop Kafka consumer", "error", err)
		}
	}

	// Stop snapshot worker
	if snapshotWorker != nil {
		if err := snapshotWorker.Stop(); err != nil {
			logger.Error("failed to stop snapshot worker", "error", err)
		}
	}

	// Shutdown HTTP server
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown server", "error", err)
	}

	logger.Info("server stopped")
}
