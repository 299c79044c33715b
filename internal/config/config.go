package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"

	"github.com/couchcryptid/conagua-etl/internal/domain"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	PortalBaseURL       string
	ArchivePathTemplate string
	FetchTimeout        time.Duration
	FetchRetries        int
	MaxArchiveBytes     int64

	// Seasonal outlook merged into current-year precipitation, enabled
	// when ForecastBaseURL is set.
	ForecastBaseURL string

	// Archive cache: a directory when CacheDir is set, otherwise an
	// in-memory LRU of CacheSize entries.
	CacheDir  string
	CacheSize int

	Workers      int
	LayoutConfig string
	Layout       domain.Layout

	OutputDir    string
	ExportFormat string
	MissingText  string

	// Kafka sink, enabled when KafkaTopic is set.
	KafkaBrokers []string
	KafkaTopic   string

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// ForecastEnabled reports whether the seasonal outlook should be merged.
func (c *Config) ForecastEnabled() bool {
	return c.ForecastBaseURL != ""
}

// KafkaEnabled reports whether records should also be published to Kafka.
func (c *Config) KafkaEnabled() bool {
	return c.KafkaTopic != ""
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	fetchTimeout, err := parseDuration("FETCH_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}
	fetchRetries, err := parseInt("FETCH_RETRIES", 3, 0)
	if err != nil {
		return nil, err
	}
	maxArchiveBytes, err := parseInt("MAX_ARCHIVE_BYTES", 64<<20, 1)
	if err != nil {
		return nil, err
	}
	cacheSize, err := parseInt("CACHE_SIZE", 64, 1)
	if err != nil {
		return nil, err
	}
	workers, err := parseInt("WORKERS", 4, 1)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		PortalBaseURL:       sharedcfg.EnvOrDefault("PORTAL_BASE_URL", "https://smn.conagua.gob.mx/tools/RESOURCES"),
		ArchivePathTemplate: sharedcfg.EnvOrDefault("ARCHIVE_PATH_TEMPLATE", "/{kind}/{state}/{year}.zip"),
		FetchTimeout:        fetchTimeout,
		FetchRetries:        fetchRetries,
		MaxArchiveBytes:     int64(maxArchiveBytes),
		ForecastBaseURL:     os.Getenv("FORECAST_BASE_URL"),
		CacheDir:            os.Getenv("CACHE_DIR"),
		CacheSize:           cacheSize,
		Workers:             workers,
		LayoutConfig:        os.Getenv("LAYOUT_CONFIG"),
		OutputDir:           sharedcfg.EnvOrDefault("OUTPUT_DIR", "data"),
		ExportFormat:        sharedcfg.EnvOrDefault("EXPORT_FORMAT", "csv"),
		MissingText:         os.Getenv("MISSING_TEXT"),
		KafkaBrokers:        sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:          os.Getenv("KAFKA_TOPIC"),
		HTTPAddr:            sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:            sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:           sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:     shutdownTimeout,
	}

	if cfg.PortalBaseURL == "" {
		return nil, errors.New("PORTAL_BASE_URL is required")
	}
	if cfg.ExportFormat != "csv" && cfg.ExportFormat != "xlsx" {
		return nil, fmt.Errorf("invalid EXPORT_FORMAT %q: want csv or xlsx", cfg.ExportFormat)
	}
	if cfg.KafkaEnabled() && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required when KAFKA_TOPIC is set")
	}

	cfg.Layout = domain.DefaultLayout()
	if cfg.LayoutConfig != "" {
		cfg.Layout, err = LoadLayout(cfg.LayoutConfig)
		if err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseInt(key string, def, minimum int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < minimum {
		return 0, fmt.Errorf("invalid %s: must be an integer >= %d", key, minimum)
	}
	return n, nil
}
