// Command conagua downloads CONAGUA weather archives for a set of states,
// kinds and years, normalizes them and writes one file per archive.
//
// Usage:
//
//	go run ./cmd/conagua \
//	  -states JAL,CDMX -kinds precipitation,temperature \
//	  -years 1999,2001-2003 -start 2001-01-01 -end 2002-06-30 \
//	  -format xlsx -out data -sort
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/couchcryptid/conagua-etl/internal/app"
	"github.com/couchcryptid/conagua-etl/internal/config"
	"github.com/couchcryptid/conagua-etl/internal/domain"
	"github.com/couchcryptid/conagua-etl/internal/observability"
	"github.com/couchcryptid/conagua-etl/internal/pipeline"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], observability.NewMetrics())
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, metrics *observability.Metrics) int {
	flags := flag.NewFlagSet("conagua", flag.ContinueOnError)
	states := flags.String("states", "all", "comma-separated state codes or names")
	kinds := flags.String("kinds", "", "comma-separated kinds: temperature, precipitation (default both)")
	years := flags.String("years", "", "years and ranges, e.g. 1999,2001-2003 (required)")
	start := flags.String("start", "", "first date to keep, YYYY-MM-DD")
	end := flags.String("end", "", "last date to keep, YYYY-MM-DD")
	format := flags.String("format", "", "export format: csv or xlsx (default EXPORT_FORMAT)")
	out := flags.String("out", "", "output directory (default OUTPUT_DIR)")
	sortByDate := flags.Bool("sort", false, "sort records by date and station")
	envFile := flags.String("env", ".env", "optional dotenv file")
	if err := flags.Parse(args); err != nil {
		return 2
	}

	if err := loadEnv(*envFile); err != nil {
		slog.Error("failed to load env file", "path", *envFile, "error", err)
		return 1
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}
	if *format != "" {
		cfg.ExportFormat = *format
	}
	if *out != "" {
		cfg.OutputDir = *out
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)

	keys, rng, err := selection(*states, *kinds, *years, *start, *end)
	if err != nil {
		logger.Error("invalid selection", "error", err)
		flags.Usage()
		return 2
	}

	a, err := app.New(cfg, logger, metrics, app.Options{Export: true, SortByDate: *sortByDate})
	if err != nil {
		logger.Error("failed to build pipeline", "error", err)
		return 1
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error("close error", "error", err)
		}
	}()

	logger.Info("batch starting", "keys", len(keys), "workers", cfg.Workers, "format", cfg.ExportFormat, "out", cfg.OutputDir)
	results := a.Pipeline.RunBatch(ctx, keys, rng)

	failed := summarize(logger, a, results)
	if failed > 0 {
		return 1
	}
	return 0
}

func selection(states, kinds, years, start, end string) ([]domain.ArchiveKey, domain.DateRange, error) {
	ss, err := parseStates(states)
	if err != nil {
		return nil, domain.DateRange{}, err
	}
	ks, err := parseKinds(kinds)
	if err != nil {
		return nil, domain.DateRange{}, err
	}
	ys, err := parseYears(years)
	if err != nil {
		return nil, domain.DateRange{}, err
	}
	rng, err := domain.ParseDateRange(start, end)
	if err != nil {
		return nil, domain.DateRange{}, err
	}
	keys, err := buildKeys(ss, ks, ys)
	if err != nil {
		return nil, domain.DateRange{}, err
	}
	return keys, rng, nil
}

// summarize logs one line per key and returns the number of failures.
func summarize(logger *slog.Logger, a *app.App, results []pipeline.Result) int {
	failed := 0
	for _, res := range results {
		attrs := []any{"key", res.Key.String()}
		if res.Err != nil {
			failed++
			logger.Error("key failed", append(attrs, "outcome", domain.FailureKind(res.Err), "error", res.Err)...)
			continue
		}
		logger.Info("key exported", append(attrs,
			"records", res.Dataset.Len(),
			"warnings", len(res.Warnings),
			"path", a.Exporter.Path(res.Key),
		)...)
	}
	return failed
}

// loadEnv reads path into the environment. A missing file is not an error.
func loadEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}
