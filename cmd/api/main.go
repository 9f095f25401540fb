package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/pratik-mahalle/muscleai/internal/api/handlers"
	"github.com/pratik-mahalle/muscleai/internal/api/router"
	"github.com/pratik-mahalle/muscleai/internal/cache"
	"github.com/pratik-mahalle/muscleai/internal/config"
	"github.com/pratik-mahalle/muscleai/internal/integrations"
	"github.com/pratik-mahalle/muscleai/internal/pkg/logger"
	"github.com/pratik-mahalle/muscleai/internal/pkg/validator"
	"github.com/pratik-mahalle/muscleai/internal/ratelimit"
	"github.com/pratik-mahalle/muscleai/internal/repository/postgres"
	"github.com/pratik-mahalle/muscleai/internal/services"
	"github.com/pratik-mahalle/muscleai/internal/worker"
	"github.com/pratik-mahalle/muscleai/migrations"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

// @title MuscleAI API
// @version 1.0
// @description Quota-gated physique photo analysis.
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		OutputPath: cfg.Logging.OutputPath,
	})

	if err := run(cfg, log); err != nil {
		log.ErrorWithErr(err, "Server exited with error")
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Quota ledger
	db, err := postgres.New(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	migrationFS, err := migrations.For(cfg.Database.Driver)
	if err != nil {
		return err
	}
	ran, err := postgres.RunMigrations(db, cfg.Database.Driver, migrationFS)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	if len(ran) > 0 {
		log.WithFields(map[string]interface{}{"applied": ran}).Info("Migrations applied")
	}

	subscriptions := services.NewSubscriptionService(
		postgres.NewSubscriptionRepository(db, cfg.Database.Driver),
		services.PlansFromConfig(cfg.Billing),
		cfg.Billing.SubscriptionPeriod,
		log,
	)

	// Analysis cache
	store, err := cache.NewStore(ctx, cfg.Cache)
	if err != nil {
		return fmt.Errorf("failed to open cache store: %w", err)
	}
	if closer, ok := store.(io.Closer); ok {
		defer closer.Close()
	}
	analysisCache := cache.New(store, cfg.Cache.TTL, log)

	// Vision models
	chain, err := services.ResolveModelChain(cfg.Models.Chain, integrations.NewRegistryFromConfig(cfg.Models), log)
	if err != nil {
		return err
	}

	analysis := services.NewAnalysisService(
		subscriptions,
		analysisCache,
		ratelimit.NewWindow(cfg.Analysis.RateLimitRequests, cfg.Analysis.RateLimitWindow),
		chain,
		cfg.Analysis,
		log,
	)
	billing := services.NewBillingService(subscriptions, cfg.Billing, log)

	var housekeeper *worker.Housekeeper
	if cfg.Worker.Enabled {
		housekeeper, err = worker.NewHousekeeper(
			subscriptions,
			analysisCache,
			cfg.Worker.ExpireSchedule,
			cfg.Worker.CacheSweepSchedule,
			log,
		)
		if err != nil {
			return err
		}
		if err := housekeeper.Start(); err != nil {
			return err
		}
	}

	h := &router.Handlers{
		Health:   handlers.NewHealthHandler(db, version, log),
		Analysis: handlers.NewAnalysisHandler(analysis, cfg.Analysis.MaxImageBytes, log),
		Quota:    handlers.NewQuotaHandler(subscriptions, log),
		Billing:  handlers.NewBillingHandler(billing, log, validator.New()),
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.New(cfg, log, h),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithFields(map[string]interface{}{
			"addr":        srv.Addr,
			"version":     version,
			"environment": cfg.Server.Environment,
			"models":      len(chain),
			"cache":       cfg.Cache.Backend,
		}).Info("Server starting")

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if housekeeper != nil {
		housekeeper.Stop(shutdownCtx)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("Server stopped")
	return nil
}
