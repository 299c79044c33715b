// Package app wires adapters into a pipeline from configuration. Both the
// batch CLI and the HTTP service build on it.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/conagua-etl/internal/adapter/archive"
	"github.com/couchcryptid/conagua-etl/internal/adapter/cache"
	"github.com/couchcryptid/conagua-etl/internal/adapter/export"
	"github.com/couchcryptid/conagua-etl/internal/adapter/forecast"
	kafkaadapter "github.com/couchcryptid/conagua-etl/internal/adapter/kafka"
	"github.com/couchcryptid/conagua-etl/internal/adapter/portal"
	"github.com/couchcryptid/conagua-etl/internal/config"
	"github.com/couchcryptid/conagua-etl/internal/domain"
	"github.com/couchcryptid/conagua-etl/internal/observability"
	"github.com/couchcryptid/conagua-etl/internal/pipeline"
)

// Options selects the sinks attached to the pipeline.
type Options struct {
	// Export writes every dataset under cfg.OutputDir in cfg.ExportFormat.
	Export     bool
	SortByDate bool
}

// App is a fully wired pipeline plus the resources it owns.
type App struct {
	Pipeline *pipeline.Pipeline
	Exporter *export.Exporter

	fileCache *cache.FileCache
	kafka     *kafkaadapter.Writer
	logger    *slog.Logger
}

// New builds the fetch, cache, extract, transform and load stages.
func New(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics, opts Options) (*App, error) {
	a := &App{logger: logger}

	client := portal.NewClient(cfg.PortalBaseURL, cfg.ArchivePathTemplate, cfg.FetchTimeout, cfg.MaxArchiveBytes, logger, metrics)

	var store domain.ArchiveCache
	if cfg.CacheDir != "" {
		fc, err := cache.NewFileCache(cfg.CacheDir)
		if err != nil {
			return nil, fmt.Errorf("open archive cache: %w", err)
		}
		a.fileCache = fc
		store = fc
		logger.Info("archive cache on disk", "dir", cfg.CacheDir)
	} else {
		store = cache.NewMemoryCache(cfg.CacheSize)
		logger.Info("archive cache in memory", "max_entries", cfg.CacheSize)
	}
	fetcher := cache.NewCachedFetcher(client, store, logger, metrics)

	transformer, err := pipeline.NewTransformer(cfg.Layout)
	if err != nil {
		return nil, fmt.Errorf("build transformer: %w", err)
	}

	var loaders []pipeline.Loader
	if opts.Export {
		format, err := export.ParseFormat(cfg.ExportFormat)
		if err != nil {
			return nil, err
		}
		a.Exporter = export.NewExporter(cfg.OutputDir, format, cfg.MissingText, logger, metrics)
		loaders = append(loaders, a.Exporter)
	}
	if cfg.KafkaEnabled() {
		a.kafka = kafkaadapter.NewWriter(cfg, logger)
		loaders = append(loaders, a.kafka)
		logger.Info("kafka sink enabled", "topic", cfg.KafkaTopic, "brokers", cfg.KafkaBrokers)
	}

	var enrichers []pipeline.Enricher
	if cfg.ForecastEnabled() {
		source := forecast.NewSource(cfg.ForecastBaseURL, cfg.FetchTimeout, cfg.MaxArchiveBytes, logger)
		enrichers = append(enrichers, forecast.NewMerger(source, logger, metrics))
		logger.Info("forecast merge enabled", "base_url", cfg.ForecastBaseURL)
	}

	a.Pipeline = pipeline.New(fetcher, archive.NewExtractor(0), transformer, loaders, logger, metrics, pipeline.Options{
		Retries:    cfg.FetchRetries,
		Workers:    cfg.Workers,
		SortByDate: opts.SortByDate,
		Enrichers:  enrichers,
	})
	return a, nil
}

// CheckReadiness reports ready once the pipeline is marked ready and the
// disk cache, when configured, is usable.
func (a *App) CheckReadiness(ctx context.Context) error {
	if err := a.Pipeline.CheckReadiness(ctx); err != nil {
		return err
	}
	if a.fileCache != nil {
		return a.fileCache.CheckReadiness(ctx)
	}
	return nil
}

// Close releases sink connections.
func (a *App) Close() error {
	var errs []error
	if a.kafka != nil {
		if err := a.kafka.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close kafka writer: %w", err))
		}
	}
	return errors.Join(errs...)
}
