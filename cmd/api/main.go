package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/saturnino-fabrica-de-software/ponto/internal/api"
	"github.com/saturnino-fabrica-de-software/ponto/internal/config"
	"github.com/saturnino-fabrica-de-software/ponto/internal/database"
	"github.com/saturnino-fabrica-de-software/ponto/internal/fraud"
	"github.com/saturnino-fabrica-de-software/ponto/internal/identity"
	"github.com/saturnino-fabrica-de-software/ponto/internal/liveness"
	"github.com/saturnino-fabrica-de-software/ponto/internal/repository"
	"github.com/saturnino-fabrica-de-software/ponto/internal/service"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize logger
	logger := config.NewLogger(cfg.Environment)
	slog.SetDefault(logger)

	logger.Info("starting Ponto API",
		slog.String("environment", cfg.Environment),
		slog.Int("port", cfg.Port),
	)

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Database pool
	pool, err := database.NewPool(ctx, database.DefaultPoolConfig(cfg.DatabaseURL))
	if err != nil {
		return fmt.Errorf("failed to create database pool: %w", err)
	}
	defer pool.Close()

	// Repositories
	attendanceRepo := repository.NewAttendanceRepository(pool)
	siteRepo := repository.NewSiteRepository(pool)

	// Liveness scorer
	livenessCfg := liveness.Config{
		Enabled:   cfg.LivenessEnabled,
		Threshold: cfg.LivenessThreshold,
		MinFrames: cfg.LivenessMinFrames,
		MaxFrames: cfg.LivenessMaxFrames,
		Quality: liveness.QualityConfig{
			MinWidth:      cfg.QualityMinWidth,
			MinHeight:     cfg.QualityMinHeight,
			BrightnessMin: cfg.QualityBrightnessMin,
			BrightnessMax: cfg.QualityBrightnessMax,
			MinSharpness:  cfg.QualityMinSharpness,
		},
	}
	scorer := liveness.NewScorer(livenessCfg)

	// Identity matcher: external embedder + pgvector similarity search
	embedderCfg := identity.DefaultClientConfig()
	embedderCfg.BaseURL = cfg.EmbedderURL
	embedderCfg.Model = cfg.EmbedderModel
	embedderCfg.Detector = cfg.EmbedderDetector
	embedder := identity.NewClient(embedderCfg)
	matcher := identity.NewPgVectorMatcher(pool, embedder, cfg.FaceMatchThreshold)

	// Fraud detector
	fraudCfg := fraud.Config{
		MaxReasonableSpeedKmh:   cfg.MaxReasonableSpeedKmh,
		TravelWindowMinutes:     cfg.ImpossibleTravelWindowMinutes,
		LocationLookbackDays:    cfg.LocationAnomalyLookbackDays,
		ZScoreThreshold:         cfg.ZScoreThreshold,
		DeviceLookbackDays:      cfg.DeviceAnomalyLookbackDays,
		DeviceCountThreshold:    cfg.DeviceCountThreshold,
		ConcurrentWindowMinutes: cfg.ConcurrentWindowMinutes,
	}
	detector := fraud.NewDetector(attendanceRepo, fraudCfg)

	// Attendance orchestrator
	svc := service.NewAttendanceService(
		attendanceRepo,
		siteRepo,
		scorer,
		matcher,
		detector,
		service.Config{
			GeoValidationEnabled: cfg.GeoValidationEnabled,
			IdentityTimeout:      cfg.IdentityTimeout,
		},
		logger,
	)

	// Setup router
	router := api.NewRouter(logger, &api.Dependencies{
		AttendanceService: svc,
		DB:                pool,
	})
	router.Setup()

	// Start server in goroutine
	errChan := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Port)
		logger.Info("server listening", slog.String("addr", addr))
		if err := router.Listen(addr); err != nil {
			errChan <- err
		}
	}()

	// Wait for shutdown signal or error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down server...")
	if err := router.Shutdown(); err != nil {
		logger.Error("shutdown error", slog.Any("error", err))
	}

	<-shutdownCtx.Done()
	logger.Info("server stopped")

	return nil
}
