package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/fragezeichen/roulette/internal/analytics"
	"github.com/fragezeichen/roulette/internal/catalog"
	"github.com/fragezeichen/roulette/internal/config"
	"github.com/fragezeichen/roulette/internal/itunes"
	"github.com/fragezeichen/roulette/internal/ratelimit"
	"github.com/fragezeichen/roulette/internal/redis"
	"github.com/fragezeichen/roulette/internal/refreshlock"
	"github.com/fragezeichen/roulette/internal/roulette"
	"github.com/fragezeichen/roulette/internal/selector"
	"github.com/fragezeichen/roulette/internal/server"
	"github.com/fragezeichen/roulette/internal/store"
	"github.com/fragezeichen/roulette/internal/version"
)

// infrastructure holds core infrastructure components.
type infrastructure struct {
	redisClient redis.Client // nil when nothing needs Redis
	backend     store.Backend
	cache       *store.Cache
	locker      refreshlock.Locker // nil when the refresh lock is disabled
	limiter     ratelimit.Service  // nil when rate limiting is disabled
}

// services holds application services.
type services struct {
	builder   *catalog.Builder
	scheduler *catalog.Scheduler
	tracker   *analytics.Tracker
	roulette  *roulette.Service
}

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	// Setup logger
	logger := setupLogger()

	// Create application context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load and validate configuration
	cfg, err := loadAndValidateConfig(ctx, logger, *configPath)
	if err != nil {
		logger.WithError(err).Fatal("Configuration error")
	}

	// Setup infrastructure (redis, store, refresh lock, rate limiter)
	infra, err := setupInfrastructure(ctx, logger, cfg)
	if err != nil {
		logger.WithError(err).Fatal("Infrastructure setup failed")
	}

	// Setup services (catalog, selector, analytics)
	svc, err := setupServices(ctx, logger, cfg, infra)
	if err != nil {
		logger.WithError(err).Fatal("Service setup failed")
	}

	// Start HTTP server
	srv, err := startServer(cfg, logger, infra, svc)
	if err != nil {
		logger.WithError(err).Fatal("Server startup failed")
	}

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan

	logger.WithField("signal", sig.String()).Info("Received shutdown signal")

	// Cancel application context to signal all services to stop
	cancel()

	// Perform graceful shutdown
	shutdownGracefully(logger, cfg, srv, svc, infra)
}

// setupLogger creates and configures the application logger.
func setupLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	logger.WithFields(logrus.Fields{
		"version":    version.Short(),
		"git_commit": version.GitCommit,
		"build_date": version.BuildDate,
	}).Info("Starting...")

	return logger
}

// loadAndValidateConfig loads the configuration file and validates it.
func loadAndValidateConfig(
	_ context.Context,
	logger *logrus.Logger,
	configPath string,
) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	// Set log level from config
	level, parseErr := logrus.ParseLevel(cfg.Server.LogLevel)
	if parseErr != nil {
		logger.WithError(parseErr).Warn("Invalid log level, using info")

		level = logrus.InfoLevel
	}

	logger.SetLevel(level)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"port":          cfg.Server.Port,
		"log_level":     cfg.Server.LogLevel,
		"store":         cfg.Store.Backend,
		"refresh_lock":  cfg.RefreshLock.Enabled,
		"rate_limiting": cfg.RateLimiting.Enabled,
	}).Info("Configuration loaded")

	return cfg, nil
}

// setupInfrastructure connects Redis when needed, opens the store backend and
// loads the persisted cache.
func setupInfrastructure(
	ctx context.Context,
	logger *logrus.Logger,
	cfg *config.Config,
) (*infrastructure, error) {
	infra := &infrastructure{}

	if cfg.NeedsRedis() {
		infra.redisClient = redis.NewClient(logger, cfg.Redis.Client())

		if err := infra.redisClient.Start(ctx); err != nil {
			return nil, fmt.Errorf("failed to start Redis client: %w", err)
		}
	}

	switch cfg.Store.Backend {
	case config.StoreBackendRedis:
		infra.backend = store.NewRedisBackend(infra.redisClient)
	case config.StoreBackendMemory:
		infra.backend = store.NewMemoryBackend()
	default:
		bolt, err := store.OpenBolt(cfg.Store.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open store: %w", err)
		}

		infra.backend = bolt
	}

	infra.cache = store.New(logger, infra.backend)

	// A damaged record is skipped during load; only backend I/O failures abort.
	if err := infra.cache.Load(ctx); err != nil {
		return nil, fmt.Errorf("failed to load cache: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"backend": infra.backend.Name(),
		"items":   infra.cache.Len(),
		"marker":  infra.cache.Marker().String(),
	}).Info("Cache loaded")

	if cfg.RefreshLock.Enabled {
		infra.locker = refreshlock.New(logger, cfg.RefreshLock, infra.redisClient)
	}

	if cfg.RateLimiting.Enabled {
		infra.limiter = ratelimit.NewService(logger, infra.redisClient, cfg.RateLimiting.FailureMode)

		if err := infra.limiter.Start(ctx); err != nil {
			return nil, fmt.Errorf("failed to start rate limiter: %w", err)
		}
	}

	return infra, nil
}

// setupServices wires the catalog builder, scheduler, selector and usage
// tracker. The startup build runs in the scheduler so a slow or unreachable
// upstream never blocks serving the cached catalog.
func setupServices(
	ctx context.Context,
	logger *logrus.Logger,
	cfg *config.Config,
	infra *infrastructure,
) (*services, error) {
	svc := &services{}

	source, err := itunes.New(&cfg.Source, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create iTunes client: %w", err)
	}

	svc.builder = catalog.NewBuilder(logger, cfg.Catalog, source, infra.cache, infra.locker)

	svc.scheduler = catalog.NewScheduler(logger, svc.builder, cfg.Catalog.CheckInterval)
	if err := svc.scheduler.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start catalog scheduler: %w", err)
	}

	svc.tracker = analytics.New(logger, cfg.Analytics, infra.cache)
	if err := svc.tracker.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start analytics tracker: %w", err)
	}

	svc.roulette = roulette.NewService(
		logger,
		svc.builder,
		selector.New(logger, svc.builder),
		svc.tracker,
		cfg.Catalog.MinItems,
	)

	logger.Info("Catalog services started")

	return svc, nil
}

// startServer creates and starts the HTTP server.
func startServer(
	cfg *config.Config,
	logger *logrus.Logger,
	infra *infrastructure,
	svc *services,
) (*server.Server, error) {
	srv, err := server.New(logger, cfg, svc.roulette, infra.limiter)
	if err != nil {
		return nil, fmt.Errorf("failed to create server: %w", err)
	}

	// Start server in goroutine
	go func() {
		logger.WithField("port", cfg.Server.Port).Info("HTTP server starting")

		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("HTTP server error")
		}
	}()

	return srv, nil
}

// shutdownGracefully performs graceful shutdown of all services.
// Shutdown order:
// 1. HTTP server (stop accepting requests).
// 2. Scheduler and builder (abort background refreshes, nothing is committed).
// 3. Analytics tracker (final counter flush).
// 4. Store backend, then the Redis client.
func shutdownGracefully(
	logger *logrus.Logger,
	cfg *config.Config,
	srv *server.Server,
	svc *services,
	infra *infrastructure,
) {
	logger.Info("Initiating graceful shutdown...")

	// Create a timeout context for the shutdown process
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	// Stop HTTP server
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Error during server shutdown")
	}

	if err := svc.scheduler.Stop(); err != nil {
		logger.WithError(err).Error("Error stopping catalog scheduler")
	}

	svc.builder.Stop()

	if err := svc.tracker.Stop(); err != nil {
		logger.WithError(err).Error("Error flushing usage counters")
	}

	if infra.limiter != nil {
		if err := infra.limiter.Stop(); err != nil {
			logger.WithError(err).Error("Error stopping rate limiter")
		}
	}

	if err := infra.backend.Close(); err != nil {
		logger.WithError(err).Error("Error closing store")
	}

	// Stop Redis client (closes connections)
	if infra.redisClient != nil {
		if err := infra.redisClient.Stop(); err != nil {
			logger.WithError(err).Error("Error stopping Redis client")
		}
	}

	logger.Info("Server stopped gracefully")
}
