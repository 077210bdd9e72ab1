package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"P3Recon/internal/config"
	"P3Recon/internal/domain"
	"P3Recon/internal/infrastructure/dataset"
	"P3Recon/internal/infrastructure/enricher"
	"P3Recon/internal/infrastructure/httpapi"
	"P3Recon/internal/infrastructure/httpcache"
	"P3Recon/internal/infrastructure/scheduler"
	"P3Recon/internal/infrastructure/storage"
	"P3Recon/internal/logging"
	"P3Recon/internal/usecase"
)

const shutdownTimeout = 10 * time.Second

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	repo      *storage.SQLRepository
	refresher *usecase.Refresher
	searcher  *usecase.Searcher
	scheduler *usecase.Scheduler
	server    *httpapi.Server
}

// New opens the store and builds every adapter and use case.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := scheduler.Validate(cfg.Scheduler.CronExpression); err != nil {
		return nil, &domain.ConfigError{Field: "scheduler.cronExpression", Reason: err.Error()}
	}

	repo, err := storage.Open(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	cache, err := httpcache.New(cfg.Cache, httpcache.WithLogger(baseLogger.With("component", "httpcache")))
	if err != nil {
		_ = repo.Close()
		return nil, err
	}

	registry, err := enricher.Build(cfg.Enrichers, cache, baseLogger.With("component", "enrichment"))
	if err != nil {
		_ = repo.Close()
		return nil, err
	}

	refreshLogger := baseLogger.With("component", "refresh")
	refresher := usecase.NewRefresher(usecase.RefreshDeps{
		Dataset:    dataset.NewIngestor(cache, cfg.Dataset, baseLogger.With("component", "dataset")),
		Repository: repo,
		Enrichers:  registry,
		Logger:     refreshLogger,
		OnFinish: func(domain.RefreshSummary) {
			stats := cache.Stats()
			refreshLogger.Info("request cache", "hits", stats.Hits, "misses", stats.Misses, "fetched", stats.Fetched)
		},
	})
	searcher := usecase.NewSearcher(repo, cfg.Search.MaxRadiusMiles, baseLogger.With("component", "search"))

	params := DefaultParams(cfg)
	sched := usecase.NewScheduler(
		scheduler.NewCronScheduler(cfg.Scheduler.CronExpression, cfg.Scheduler.Location(), baseLogger.With("component", "scheduler")),
		refresher,
		params,
	)

	server := httpapi.NewServer(httpapi.Settings{
		Addr:               cfg.Server.Addr,
		DefaultRadiusMiles: cfg.Search.DefaultRadiusMiles,
		DefaultParams:      params,
	}, refresher, searcher, baseLogger.With("component", "httpapi"))

	return &Application{
		cfg:       cfg,
		logger:    baseLogger,
		repo:      repo,
		refresher: refresher,
		searcher:  searcher,
		scheduler: sched,
		server:    server,
	}, nil
}

// DefaultParams returns the refresh thresholds configured for unattended runs.
func DefaultParams(cfg config.Config) domain.RefreshParams {
	return domain.RefreshParams{MinAcres: cfg.Refresh.MinAcres, MinBldgSqft: cfg.Refresh.MinBldgSqft}
}

// Refresher exposes the refresh use case for one-shot commands.
func (a *Application) Refresher() *usecase.Refresher {
	return a.refresher
}

// Searcher exposes the query use case for one-shot commands.
func (a *Application) Searcher() *usecase.Searcher {
	return a.searcher
}

// Serve seeds an empty store, then serves HTTP and runs the scheduler until
// ctx is done. In-flight requests and a running refresh are drained on exit.
func (a *Application) Serve(ctx context.Context) error {
	if _, err := a.refresher.EnsureSeeded(ctx, DefaultParams(a.cfg)); err != nil {
		return fmt.Errorf("seed store: %w", err)
	}

	if err := a.server.Start(ctx); err != nil {
		return err
	}
	if err := a.scheduler.Start(ctx); err != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return errors.Join(err, a.server.Shutdown(shutdownCtx))
	}

	<-ctx.Done()
	a.logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	errs := []error{a.server.Shutdown(shutdownCtx), a.scheduler.Stop(shutdownCtx)}
	a.refresher.Wait()
	return errors.Join(errs...)
}

// Close releases the store.
func (a *Application) Close() error {
	return a.repo.Close()
}
