package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/conagua-etl/internal/domain"
	"github.com/couchcryptid/conagua-etl/internal/observability"
)

// Extractor unpacks a raw archive into members.
type Extractor interface {
	Extract(data []byte) ([]domain.Member, error)
}

// Transformer parses members into a normalized dataset.
type Transformer interface {
	Transform(key domain.ArchiveKey, members []domain.Member) (domain.Dataset, []domain.ParseWarning, error)
}

// Enricher adds derived records to a parsed dataset before filtering.
// Returned warnings are reported with the key's parse warnings.
type Enricher interface {
	Enrich(ctx context.Context, key domain.ArchiveKey, ds domain.Dataset) (domain.Dataset, []domain.ParseWarning, error)
}

// Evicter is implemented by caching fetchers that can drop a stored archive.
type Evicter interface {
	Evict(ctx context.Context, key domain.ArchiveKey) error
}

// Loader writes a finished dataset to a destination.
type Loader interface {
	Load(ctx context.Context, key domain.ArchiveKey, ds domain.Dataset) error
}

// Options tune retries, concurrency and output ordering.
type Options struct {
	// Retries is the number of extra fetch attempts after a transport failure.
	Retries int
	// Workers bounds the number of keys processed at once by RunBatch.
	Workers int
	// SortByDate sorts each dataset by date and station before loading.
	SortByDate bool
	// Enrichers run in order after parsing, before the date filter.
	Enrichers []Enricher
}

// Result is the outcome of one archive key. Err is a *domain.KeyError when
// the key failed; Dataset and Warnings are set whenever parsing completed.
type Result struct {
	Key      domain.ArchiveKey
	Dataset  domain.Dataset
	Warnings []domain.ParseWarning
	Err      error
}

// Pipeline runs fetch, extract, parse, normalize, filter and load for
// archive keys.
type Pipeline struct {
	fetcher     domain.ArchiveFetcher
	extractor   Extractor
	transformer Transformer
	loaders     []Loader
	logger      *slog.Logger
	metrics     *observability.Metrics
	opts        Options
	ready       atomic.Bool

	// Exponential backoff between fetch retries: start at 200ms, double each
	// retry, cap at 5s.
	baseBackoff time.Duration
	maxBackoff  time.Duration
}

// New creates a Pipeline with the given stages and observability. Loaders
// may be empty.
func New(f domain.ArchiveFetcher, e Extractor, t Transformer, loaders []Loader, logger *slog.Logger, metrics *observability.Metrics, opts Options) *Pipeline {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	return &Pipeline{
		fetcher:     f,
		extractor:   e,
		transformer: t,
		loaders:     loaders,
		logger:      logger,
		metrics:     metrics,
		opts:        opts,
		baseBackoff: 200 * time.Millisecond,
		maxBackoff:  5 * time.Second,
	}
}

// CheckReadiness returns nil once at least one key has been processed
// successfully.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not processed any archive yet")
	}
	return nil
}

// MarkReady forces the readiness flag, for services that should accept
// traffic before their first request.
func (p *Pipeline) MarkReady() {
	p.ready.Store(true)
}

// Run processes a single key.
func (p *Pipeline) Run(ctx context.Context, key domain.ArchiveKey, r domain.DateRange) Result {
	logger := p.logger.With("run_id", uuid.NewString())
	return p.runKey(ctx, logger, key, r)
}

// RunBatch processes keys concurrently, at most Options.Workers at a time.
// Results are returned in the order of keys. A failing key never stops the
// others; cancelling ctx fails the keys that have not finished.
func (p *Pipeline) RunBatch(ctx context.Context, keys []domain.ArchiveKey, r domain.DateRange) []Result {
	logger := p.logger.With("run_id", uuid.NewString())
	logger.Info("batch started", "keys", len(keys), "workers", p.opts.Workers)

	results := make([]Result, len(keys))
	var g errgroup.Group
	g.SetLimit(p.opts.Workers)
	for i, key := range keys {
		g.Go(func() error {
			results[i] = p.runKey(ctx, logger, key, r)
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
		}
	}
	logger.Info("batch finished", "keys", len(keys), "failed", failed)
	return results
}

func (p *Pipeline) runKey(ctx context.Context, logger *slog.Logger, key domain.ArchiveKey, r domain.DateRange) Result {
	logger = logger.With("state", key.State.Code(), "kind", key.Kind.String(), "year", key.Year)
	start := time.Now()

	res, err := p.process(ctx, logger, key, r)
	if err != nil {
		res.Err = &domain.KeyError{Key: key, Err: err}
	}
	res.Key = key

	outcome := domain.FailureKind(err)
	p.metrics.KeysProcessed.WithLabelValues(outcome).Inc()
	p.metrics.PipelineDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		logger.Error("archive failed", "outcome", outcome, "error", err)
		return res
	}
	p.ready.Store(true)
	logger.Info("archive processed",
		"records", res.Dataset.Len(),
		"warnings", len(res.Warnings),
		"duration", time.Since(start),
	)
	return res
}

func (p *Pipeline) process(ctx context.Context, logger *slog.Logger, key domain.ArchiveKey, r domain.DateRange) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if err := key.Validate(); err != nil {
		return Result{}, err
	}
	if err := r.Validate(); err != nil {
		return Result{}, err
	}

	data, err := p.fetchWithRetry(ctx, logger, key)
	if err != nil {
		return Result{}, err
	}

	members, err := p.extractor.Extract(data)
	if err != nil {
		if errors.Is(err, domain.ErrCorruptArchive) {
			p.evict(ctx, logger, key)
		}
		return Result{}, err
	}
	p.metrics.MembersExtracted.Add(float64(len(members)))

	ds, warnings, err := p.transformer.Transform(key, members)
	res := Result{Warnings: warnings}
	p.metrics.ParseWarnings.WithLabelValues(key.Kind.String()).Add(float64(len(warnings)))
	for _, w := range warnings {
		logger.Debug("parse warning", "warning", w.String())
	}
	if err != nil {
		return res, err
	}
	p.metrics.RecordsParsed.WithLabelValues(key.Kind.String()).Add(float64(ds.Len()))

	for _, e := range p.opts.Enrichers {
		enriched, extra, err := e.Enrich(ctx, key, ds)
		res.Warnings = append(res.Warnings, extra...)
		p.metrics.ParseWarnings.WithLabelValues(key.Kind.String()).Add(float64(len(extra)))
		if err != nil {
			return res, fmt.Errorf("enrich: %w", err)
		}
		ds = enriched
	}

	ds, err = domain.Filter(ds, r)
	if err != nil {
		return res, err
	}
	if p.opts.SortByDate {
		ds = ds.SortByDate()
	}
	res.Dataset = ds

	for _, l := range p.loaders {
		if err := l.Load(ctx, key, ds); err != nil {
			return res, fmt.Errorf("load: %w", err)
		}
	}
	return res, nil
}

// evict drops a corrupt archive from the fetcher's cache so the next run
// downloads it again instead of failing on the same bytes.
func (p *Pipeline) evict(ctx context.Context, logger *slog.Logger, key domain.ArchiveKey) {
	ev, ok := p.fetcher.(Evicter)
	if !ok {
		return
	}
	if err := ev.Evict(ctx, key); err != nil {
		logger.Warn("archive cache eviction failed", "error", err)
		return
	}
	logger.Info("evicted corrupt archive from cache")
}

// fetchWithRetry retries transport failures with exponential backoff.
// Not-found and other errors are returned immediately.
func (p *Pipeline) fetchWithRetry(ctx context.Context, logger *slog.Logger, key domain.ArchiveKey) ([]byte, error) {
	backoff := p.baseBackoff
	for attempt := 0; ; attempt++ {
		data, err := p.fetcher.Fetch(ctx, key)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, domain.ErrTransport) || attempt >= p.opts.Retries || ctx.Err() != nil {
			return nil, err
		}
		logger.Warn("fetch failed, retrying", "attempt", attempt+1, "backoff", backoff, "error", err)
		if !sleepWithContext(ctx, backoff) {
			return nil, ctx.Err()
		}
		backoff = nextBackoff(backoff, p.maxBackoff)
	}
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
