// Package app assembles the ingestion service from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/hazard-ingest-service/internal/adapter/archive"
	"github.com/couchcryptid/hazard-ingest-service/internal/adapter/feed"
	kafkaadapter "github.com/couchcryptid/hazard-ingest-service/internal/adapter/kafka"
	"github.com/couchcryptid/hazard-ingest-service/internal/adapter/mapbox"
	"github.com/couchcryptid/hazard-ingest-service/internal/adapter/memory"
	"github.com/couchcryptid/hazard-ingest-service/internal/adapter/postgres"
	"github.com/couchcryptid/hazard-ingest-service/internal/config"
	"github.com/couchcryptid/hazard-ingest-service/internal/domain"
	"github.com/couchcryptid/hazard-ingest-service/internal/observability"
	"github.com/couchcryptid/hazard-ingest-service/internal/pipeline"
	"github.com/couchcryptid/hazard-ingest-service/internal/query"
)

// Store is the record store used by both the write and read paths.
type Store interface {
	pipeline.Store
	pipeline.Lookup
	query.Reader
	Ping(ctx context.Context) error
	Close() error
}

// App holds the wired components.
type App struct {
	Store     Store
	Scheduler *pipeline.Scheduler
	Queries   *query.Service

	closers []func() error
	logger  *slog.Logger
}

// New wires the store, adapters, pipeline, scheduler, and query facade.
// The caller must Close the returned App.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) (*App, error) {
	a := &App{logger: logger}

	store, err := OpenStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Store = store
	a.closers = append(a.closers, store.Close)

	fetchers, err := Fetchers(cfg, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	var opts []pipeline.Option
	if cfg.KafkaEnabled {
		pub := kafkaadapter.NewPublisher(cfg, logger)
		a.closers = append(a.closers, pub.Close)
		opts = append(opts, pipeline.WithPublisher(pub))
		logger.Info("kafka change feed enabled", "topic", cfg.KafkaTopic, "brokers", cfg.KafkaBrokers)
	}
	if cfg.ArchiveBucket != "" {
		arc, err := archive.New(ctx, cfg, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		opts = append(opts, pipeline.WithArchiver(arc))
		logger.Info("raw payload archive enabled", "bucket", cfg.ArchiveBucket, "prefix", cfg.ArchivePrefix)
	}

	if geo := Geocoder(cfg, logger, metrics); geo != nil {
		opts = append(opts, pipeline.WithEnricher(pipeline.NewEnricher(geo, store, pipeline.EnricherConfig{
			MaxLookups: cfg.MapboxMaxLookups,
			Budget:     cfg.MapboxBudget,
		}, logger, metrics)))
	}

	p := pipeline.New(pipeline.NewTransformer(), pipeline.NewEngine(store, logger), logger, metrics, opts...)

	a.Scheduler = pipeline.NewScheduler(p, fetchers, pipeline.SchedulerConfig{
		Interval:       cfg.PollInterval,
		MaxConcurrency: cfg.MaxConcurrentSources,
	}, logger, metrics)
	a.Queries = query.NewService(store, a.Scheduler, cfg.RefreshOnRead, logger)
	return a, nil
}

// CheckReadiness reports ready once the store answers and a cycle has completed.
func (a *App) CheckReadiness(ctx context.Context) error {
	if err := a.Store.Ping(ctx); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	return a.Scheduler.CheckReadiness(ctx)
}

// Close releases the publisher and the store, in reverse order of creation.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}

// OpenStore returns the PostgreSQL store, migrated to the latest schema, when
// DatabaseURL is set, and the in-memory store otherwise.
func OpenStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Store, error) {
	if cfg.DatabaseURL == "" {
		logger.Warn("DATABASE_URL not set, records are kept in memory only")
		return memory.New(nil), nil
	}
	store, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	version, err := store.Migrate()
	if err != nil {
		store.Close()
		return nil, err
	}
	logger.Info("postgres store ready", "schema_version", version)
	return store, nil
}

// Fetchers builds one adapter per enabled source, in configuration order.
func Fetchers(cfg *config.Config, logger *slog.Logger) ([]pipeline.Fetcher, error) {
	enabled := cfg.EnabledSources()
	if len(enabled) == 0 {
		return nil, errors.New("no sources enabled")
	}
	out := make([]pipeline.Fetcher, 0, len(enabled))
	for _, sc := range enabled {
		a, err := feed.New(sc.ID, feed.Options{
			URL:     sc.URL,
			Timeout: sc.Timeout,
			MapKey:  cfg.FIRMSKey,
		}, logger)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// Geocoder returns the cached Mapbox geocoder, or nil when geocoding is disabled.
func Geocoder(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) domain.Geocoder {
	if !cfg.MapboxEnabled {
		logger.Info("mapbox geocoding disabled")
		metrics.GeocodeEnabled.Set(0)
		return nil
	}
	client := mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, metrics, logger)
	metrics.GeocodeEnabled.Set(1)
	logger.Info("mapbox geocoding enabled",
		"cache_size", cfg.MapboxCacheSize,
		"timeout", cfg.MapboxTimeout,
		"max_lookups", cfg.MapboxMaxLookups,
		"budget", cfg.MapboxBudget,
	)
	return mapbox.NewCachedGeocoder(client, cfg.MapboxCacheSize, metrics)
}
