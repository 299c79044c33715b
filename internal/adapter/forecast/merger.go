package forecast

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/couchcryptid/conagua-etl/internal/domain"
	"github.com/couchcryptid/conagua-etl/internal/observability"
)

// IssueSource returns the newest outlook as of now.
type IssueSource interface {
	Latest(ctx context.Context, now time.Time) (Issue, error)
}

// Merger adds forecast months to current-year precipitation datasets. The
// latest issue is fetched once per calendar month and shared by concurrent
// keys; failed fetches are not remembered.
type Merger struct {
	source  IssueSource
	logger  *slog.Logger
	metrics *observability.Metrics

	group   singleflight.Group
	mu      sync.Mutex
	issue   *Issue
	issueAt time.Time // first day of the month the issue was fetched in
}

// NewMerger creates a Merger over source.
func NewMerger(source IssueSource, logger *slog.Logger, metrics *observability.Metrics) *Merger {
	return &Merger{source: source, logger: logger, metrics: metrics}
}

// Enrich merges the latest issue into ds when key is precipitation for the
// current year. An unavailable forecast leaves ds unchanged and yields a
// warning.
func (m *Merger) Enrich(ctx context.Context, key domain.ArchiveKey, ds domain.Dataset) (domain.Dataset, []domain.ParseWarning, error) {
	now := domain.Now()
	if key.Kind != domain.Precipitation || key.Year != now.Year() {
		return ds, nil, nil
	}

	issue, err := m.latest(ctx, now)
	if err != nil {
		if ctx.Err() != nil {
			return ds, nil, ctx.Err()
		}
		m.metrics.ForecastMerges.WithLabelValues("unavailable").Inc()
		m.logger.Warn("forecast not merged", "key", key.String(), "error", err)
		return ds, []domain.ParseWarning{{
			Member: "forecast",
			Reason: fmt.Sprintf("forecast unavailable, not merged: %v", err),
		}}, nil
	}

	merged := domain.MergeForecast(ds, key.Year, issue.Forecasts)
	m.metrics.ForecastMerges.WithLabelValues("merged").Inc()
	m.logger.Debug("forecast merged", "key", key.String(), "issue", issue.URL, "added", merged.Len()-ds.Len())
	return merged, nil, nil
}

func (m *Merger) latest(ctx context.Context, now time.Time) (Issue, error) {
	month := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	m.mu.Lock()
	if m.issue != nil && m.issueAt.Equal(month) {
		issue := *m.issue
		m.mu.Unlock()
		return issue, nil
	}
	m.mu.Unlock()

	v, err, _ := m.group.Do(month.Format("2006-01"), func() (any, error) {
		issue, err := m.source.Latest(ctx, now)
		if err != nil {
			return nil, err
		}
		m.mu.Lock()
		m.issue, m.issueAt = &issue, month
		m.mu.Unlock()
		return issue, nil
	})
	if err != nil {
		return Issue{}, err
	}
	return v.(Issue), nil
}
