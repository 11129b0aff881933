package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/agrocredit-engine/internal/api_gateway"
	"github.com/agrocredit-engine/internal/api_gateway/service"
	"github.com/agrocredit-engine/internal/config"
	"github.com/agrocredit-engine/internal/data/mongo"
	"github.com/agrocredit-engine/internal/data/postgres"
	"github.com/agrocredit-engine/internal/logger"
	"github.com/agrocredit-engine/internal/platform/messaging/producers"
	"github.com/agrocredit-engine/internal/platform/persistence"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	// Initialize configuration
	cfg, err := config.LoadConfig("api_gateway")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewLogger(cfg)

	// Initialize databases with app context
	postgresDB, err := persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
	if err != nil {
		log.Error("Failed to initialize PostgreSQL", "error", err)
		os.Exit(1)
	}

	mongoDB, err := persistence.NewMongoDB(appCtx, log, &cfg.MongoDB)
	if err != nil {
		log.Error("Failed to initialize MongoDB", "error", err)
		os.Exit(1)
	}

	// Initialize Kafka producer publishing period advancements to the processor
	periodProducer, err := producers.NewPeriodEventProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize period event producer", "error", err)
		os.Exit(1)
	}

	// Initialize repositories
	accountRepo := postgres.NewAccountRepository(log, postgresDB)
	dealRepo := postgres.NewDealRepository(log, postgresDB)
	assetRepo := postgres.NewAssetRepository(log, postgresDB)
	profileRepo := postgres.NewCreditProfileRepository(log, postgresDB)
	statsRepo := postgres.NewStatisticsRepository(log, postgresDB)
	outboxRepo := postgres.NewOutboxRepository(log, postgresDB)
	historyRepo := mongo.NewCreditHistoryRepository(log, mongoDB.Database())

	// Initialize services
	accountService := service.NewAccountService(accountRepo, statsRepo)
	creditService := service.NewCreditService(log, accountRepo, assetRepo, dealRepo, profileRepo, historyRepo)
	dealService := service.NewDealService(
		log,
		postgresDB,
		accountRepo,
		dealRepo,
		assetRepo,
		profileRepo,
		statsRepo,
		outboxRepo,
		creditService,
		service.NewRateCurve(&cfg.Financing),
		&cfg.Financing,
	)
	periodService := service.NewPeriodService(log, periodProducer)

	// Initialize REST server
	server := api_gateway.NewServer(log, cfg, accountService, dealService, creditService, periodService)
	log.Info("REST server initialized")

	// Create error channel for server errors
	errChan := make(chan error, 1)

	// Start server in goroutine
	go func() {
		log.Info("Starting HTTP server", "port", cfg.Server.Port)
		if err := server.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// Set up signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	// Wait for a shutdown signal or error
	var serverErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Server error occurred", "error", err)
		serverErr = err
	}

	// Cancel the application context
	cancelAppCtx()

	// Create a shutdown context with timeout
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	// Graceful shutdown sequence
	log.Info("Starting graceful shutdown...")

	// Shutdown postgres connection pool
	postgresDB.Close()

	// Shutdown HTTP server
	if err = server.Stop(shutdownCtx); err != nil {
		log.Error("Error during server shutdown", "error", err)
	}

	if err = periodProducer.Close(); err != nil {
		log.Error("Error closing Kafka producer", "error", err)
	}

	if err = mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
	}

	// Final status
	if serverErr != nil {
		log.Error("HTTP server shutdown with errors", "error", serverErr)
	}
	if err != nil {
		log.Error("Server shutdown completed with errors")
	} else {
		log.Info("Server shutdown completed successfully")
	}
}
