package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nbakenov/tournament-core/config"
	"github.com/nbakenov/tournament-core/db"
	"github.com/nbakenov/tournament-core/events"
	"github.com/nbakenov/tournament-core/handlers"
	"github.com/nbakenov/tournament-core/repositories"
	"github.com/nbakenov/tournament-core/routes"
	"github.com/nbakenov/tournament-core/services"
	"github.com/nbakenov/tournament-core/storage"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort))

	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		} else {
			logger.Info("database connection closed")
		}
	}()
	logger.Info("database connection established")

	var uploader storage.FileUploader
	if cfg.R2Configured() {
		uploader, err = storage.NewCloudflareR2Uploader(storage.CloudflareR2UploaderConfig{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicBaseURL:   cfg.R2PublicBaseURL,
		})
		if err != nil {
			logger.Error("failed to initialize Cloudflare R2 uploader", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("Cloudflare R2 uploader initialized")
	} else {
		logger.Warn("R2 storage not configured, evidence file uploads disabled")
	}

	hub := events.NewHub(logger)
	go hub.Run()
	logger.Info("event hub started")

	tournamentRepo := repositories.NewPostgresTournamentRepository(dbConn)
	bracketRepo := repositories.NewPostgresBracketRepository(dbConn)
	matchRepo := repositories.NewPostgresMatchRepository(dbConn)
	groupRepo := repositories.NewPostgresGroupRepository(dbConn)
	submissionRepo := repositories.NewPostgresSubmissionRepository(dbConn)
	disputeRepo := repositories.NewPostgresDisputeRepository(dbConn)
	logRepo := repositories.NewPostgresVerificationLogRepository(dbConn)
	logger.Info("repositories initialized")

	propagator := services.NewAdvancementPropagator(matchRepo, bracketRepo, groupRepo, logRepo, logger)
	tournamentService := services.NewTournamentService(dbConn, tournamentRepo, bracketRepo, matchRepo, groupRepo, hub, logger)
	matchService := services.NewMatchService(dbConn, matchRepo, submissionRepo, logRepo, propagator, hub, logger)
	disputeService := services.NewDisputeService(dbConn, disputeRepo, submissionRepo, matchRepo, logRepo, matchService, uploader, hub, logger)
	overviewService := services.NewOverviewService(tournamentRepo, bracketRepo, matchRepo, groupRepo, propagator)
	logger.Info("services initialized")

	router := routes.InitRoutes(routes.Handlers{
		Tournament: handlers.NewTournamentHandler(tournamentService, matchService, overviewService, propagator),
		Match:      handlers.NewMatchHandler(matchService),
		Dispute:    handlers.NewDisputeHandler(disputeService),
		WebSocket:  handlers.NewWebSocketHandler(hub, tournamentService, logger),
	}, cfg.JWTSecretKey)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  time.Minute,
	}

	shutdownErr := make(chan error)
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		s := <-quit
		logger.Info("shutting down server", slog.String("signal", s.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()
		shutdownErr <- server.Shutdown(ctx)
	}()

	logger.Info("starting server", slog.String("addr", server.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", slog.Any("error", err))
		os.Exit(1)
	}
	if err := <-shutdownErr; err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("server stopped")
}
