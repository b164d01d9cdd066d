package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"carboniq/internal/core"
	httpProtocol "carboniq/internal/protocols/http"
	tcpProtocol "carboniq/internal/protocols/tcp"
	"carboniq/internal/repository"
	"carboniq/pkg/config"
	"carboniq/pkg/database"
	"carboniq/pkg/logger"
)

func main() {
	configPath := os.Getenv("CARBONIQ_CONFIG")
	if configPath == "" {
		configPath = "./configs/development.yaml"
	}

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logger.Init(cfg.Logging)
	defer logger.Sync()

	logger.Info("Starting CarbonIQ rewards engine...")
	if cfg.JWT.Secret == "" {
		logger.Warn("jwt.secret is empty; every authenticated request will be rejected")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to storage
	store, err := repository.Open(ctx, cfg.Storage, cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to open storage: %v", err)
	}
	defer store.Close()

	// Initialize core services
	catalog, err := core.LoadBadgeCatalog()
	if err != nil {
		logger.Fatalf("Failed to load badge catalogue: %v", err)
	}
	rewardsSvc := core.NewRewardsService(store.Repos, catalog, core.OptionsFromConfig(cfg.Rewards))

	warmCtx, warmCancel := context.WithTimeout(ctx, time.Minute)
	if err := rewardsSvc.Warm(warmCtx); err != nil {
		warmCancel()
		logger.Fatalf("Failed to warm leaderboards: %v", err)
	}
	warmCancel()
	logger.Infof("Loaded %d badges and warmed leaderboards", len(catalog.Definitions()))

	dispatcher := core.NewDispatcher(rewardsSvc, core.DispatcherConfig{
		Workers:      cfg.Rewards.Workers,
		QueueSize:    cfg.Rewards.QueueSize,
		MaxAttempts:  cfg.Rewards.MaxAttempts,
		RetryBackoff: cfg.Rewards.RetryBackoff,
	})
	dispatcher.Start(ctx)

	// Optional redis mirror for the leaderboards
	var mirror repository.LeaderboardMirror
	if cfg.Redis.Enabled {
		rdb, err := database.NewRedisClient(cfg.Redis.Connection())
		if err != nil {
			logger.Errorf("Redis unavailable, leaderboard mirror disabled: %v", err)
		} else {
			defer rdb.Close()
			mirror = repository.NewRedisLeaderboardMirror(rdb, cfg.Redis.KeyPrefix)
			logger.Infof("Publishing leaderboards to redis at %s", cfg.Redis.Addr)
		}
	}

	scheduler := core.NewScheduler(rewardsSvc, mirror, cfg.Rewards.RankRefreshInterval)
	go func() {
		if err := scheduler.RunOnce(ctx); err != nil {
			logger.Errorf("Initial leaderboard publish failed: %v", err)
		}
		scheduler.Run(ctx)
	}()

	// 1. HTTP REST API Server
	verifier := core.NewTokenVerifier(cfg.JWT.Secret, cfg.JWT.Issuer)
	httpServer := httpProtocol.NewServer(cfg, rewardsSvc, verifier, dispatcher, store.HealthCheck)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Errorf("HTTP server panic recovered: %v", r)
			}
		}()
		logger.Infof("Starting HTTP server on %s", cfg.HTTPAddr())
		if err := httpServer.Start(cfg.HTTPAddr()); err != nil {
			logger.Errorf("HTTP server error: %v", err)
		}
	}()

	// 2. TCP event ingest
	tcpServer := tcpProtocol.NewServer(cfg.TCPAddr(), dispatcher, cfg.Server.TCPRateLimit)
	if os.Getenv("ENABLE_TCP") != "false" {
		if err := tcpServer.Start(); err != nil {
			logger.Fatalf("Failed to start TCP ingest: %v", err)
		}
	} else {
		logger.Info("TCP ingest disabled (ENABLE_TCP=false)")
	}

	logger.Info("Rewards engine started")
	logger.Info("Press Ctrl+C to shutdown")

	// Block until shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	logger.Infof("Received signal: %v", sig)

	// Graceful shutdown: stop intake first, then drain the queue
	logger.Info("Shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("HTTP shutdown error: %v", err)
	}
	logger.Info("HTTP server stopped")

	tcpServer.Stop()

	dispatcher.Stop()
	logger.Info("Dispatcher drained")

	cancel()
	logger.Info("Shutdown complete")
}
