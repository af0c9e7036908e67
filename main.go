package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	appLogger "github.com/gatherly/plan-engine/app/logger"
	"github.com/gatherly/plan-engine/app/observability/metrics"
	"github.com/gatherly/plan-engine/app/tracer"
	"github.com/gatherly/plan-engine/internal/api/agents"
	"github.com/gatherly/plan-engine/internal/api/events"
	"github.com/gatherly/plan-engine/internal/api/geo"
	"github.com/gatherly/plan-engine/internal/api/places"
	"github.com/gatherly/plan-engine/internal/api/planner"
	api "github.com/gatherly/plan-engine/internal/router"

	"github.com/gatherly/plan-engine/config"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
)

func main() {
	// Use standard log until slog is configured, in case godotenv fails
	err := godotenv.Load()
	if err != nil {
		log.Println("Warning: .env file not found or error loading:", err)
	}

	cfg, err := config.InitConfig()
	if err != nil {
		log.Fatalf("FATAL: Error initializing config: %v", err)
	}

	logger := setupLogger()
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	metricsHandler := tracer.InitTracingAndMetrics()
	metrics.InitAppMetrics()

	// --- Dependency Injection ---
	geoService, err := geo.NewServiceImpl(cfg.Providers, nil, logger)
	if err != nil {
		logger.Error("Failed to initialize geocoding gateway", slog.Any("error", err))
		os.Exit(1)
	}
	placesService, err := places.NewServiceImpl(cfg.Providers, cfg.Planning, logger)
	if err != nil {
		logger.Error("Failed to initialize proximity gateway", slog.Any("error", err))
		os.Exit(1)
	}
	eventsService := events.NewServiceImpl(cfg.Providers, cfg.Planning, logger)
	registry := agents.NewRegistry()
	plannerService := planner.NewServiceImpl(&cfg, logger, geoService, placesService, eventsService, registry)
	plannerHandler := planner.NewPlannerHandler(plannerService, logger)

	// --- Router Setup ---
	routerConfig := &api.Config{
		PlannerHandler: plannerHandler,
		MetricsHandler: metricsHandler,
	}
	mainRouter := api.SetupRouter(routerConfig)

	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(appLogger.StructuredLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.StripSlashes)
	router.Use(middleware.Timeout(cfg.Server.Timeout))
	router.Use(middleware.Compress(5, "application/json"))
	router.Mount("/", mainRouter)

	// --- HTTP Server Setup ---
	serverAddress := fmt.Sprintf(":%s", cfg.Server.HTTPPort)
	srv := &http.Server{
		Addr:         serverAddress,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	go func() {
		logger.Info("Starting HTTP server", slog.String("address", serverAddress))
		err := srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server ListenAndServe error", slog.Any("error", err))
			cancel()
		}
	}()

	<-ctx.Done()

	// --- Graceful Shutdown ---
	logger.Info("Shutdown signal received, starting graceful shutdown...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server graceful shutdown failed", slog.Any("error", err))
	} else {
		logger.Info("HTTP server gracefully stopped")
	}

	logger.Info("Application shut down complete.")
}

// setupLogger configures and returns the application logger.
func setupLogger() *slog.Logger {
	var logger *slog.Logger
	env := os.Getenv("APP_ENV")

	if env == "development" || env == "" {
		tintOpts := &tint.Options{
			Level:      slog.LevelDebug,
			TimeFormat: time.Kitchen,
			AddSource:  true,
		}
		logger = slog.New(tint.NewHandler(os.Stdout, tintOpts))
		log.Println("Initialized development logger (tint)")
	} else {
		jsonOpts := &slog.HandlerOptions{
			Level:     slog.LevelInfo,
			AddSource: false,
		}
		logger = slog.New(slog.NewJSONHandler(os.Stdout, jsonOpts))
		log.Println("Initialized production logger (JSON)")
	}
	return logger
}
