// Package forecast downloads CONAGUA's monthly seasonal precipitation outlook
// and merges its state-level figures into current-year datasets.
package forecast

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/couchcryptid/conagua-etl/internal/adapter/archive"
	"github.com/couchcryptid/conagua-etl/internal/domain"
)

// DefaultAttempts is how many monthly issues Latest tries, newest first.
const DefaultAttempts = 2

// ErrIssueNotFound is returned when the portal has not published an issue.
var ErrIssueNotFound = errors.New("forecast issue not published")

// Issue is one downloaded outlook.
type Issue struct {
	Year      int
	Month     time.Month
	URL       string
	Forecasts []domain.MonthlyForecast
}

// Source fetches outlook issues from the portal.
type Source struct {
	baseURL    string
	attempts   int
	maxBytes   int64
	httpClient *http.Client
	extractor  *archive.Extractor
	logger     *slog.Logger
}

// NewSource creates a Source for issues published under baseURL.
// maxBytes <= 0 disables the body size limit.
func NewSource(baseURL string, timeout time.Duration, maxBytes int64, logger *slog.Logger) *Source {
	return &Source{
		baseURL:    strings.TrimRight(baseURL, "/"),
		attempts:   DefaultAttempts,
		maxBytes:   maxBytes,
		httpClient: &http.Client{Timeout: timeout},
		extractor:  archive.NewExtractor(0),
		logger:     logger,
	}
}

// URL renders the address of the issue published in month of year.
func (s *Source) URL(year int, month time.Month) string {
	return s.baseURL + "/" + domain.ForecastIssueName(year, month)
}

// Latest returns the newest readable issue, starting with the month of now
// and stepping back one month per failed attempt.
func (s *Source) Latest(ctx context.Context, now time.Time) (Issue, error) {
	year, month := now.Year(), now.Month()
	var errs []error
	for range s.attempts {
		issue, err := s.Issue(ctx, year, month)
		if err == nil {
			return issue, nil
		}
		if ctx.Err() != nil {
			return Issue{}, ctx.Err()
		}
		s.logger.Warn("forecast issue unavailable, trying previous month",
			"year", year, "month", int(month), "error", err)
		errs = append(errs, err)

		month--
		if month < time.January {
			month = time.December
			year--
		}
	}
	return Issue{}, fmt.Errorf("no forecast issue in the last %d months: %w", s.attempts, errors.Join(errs...))
}

// Issue downloads and parses one issue.
func (s *Source) Issue(ctx context.Context, year int, month time.Month) (Issue, error) {
	u := s.URL(year, month)
	data, err := s.get(ctx, u)
	if err != nil {
		return Issue{}, err
	}
	members, err := s.extractor.Extract(data)
	if err != nil {
		return Issue{}, fmt.Errorf("%s: %w", u, err)
	}
	forecasts, err := Parse(members)
	if err != nil {
		return Issue{}, fmt.Errorf("%s: %w", u, err)
	}
	s.logger.Info("forecast issue fetched", "url", u, "months", len(forecasts))
	return Issue{Year: year, Month: month, URL: u, Forecasts: forecasts}, nil
}

func (s *Source) get(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", u, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusGone:
		return nil, fmt.Errorf("%s: %w", u, ErrIssueNotFound)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("%s: portal status %d", u, resp.StatusCode)
	}

	body := io.Reader(resp.Body)
	if s.maxBytes > 0 {
		body = io.LimitReader(resp.Body, s.maxBytes+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", u, err)
	}
	if s.maxBytes > 0 && int64(len(data)) > s.maxBytes {
		return nil, fmt.Errorf("%s: issue exceeds %d bytes", u, s.maxBytes)
	}
	return data, nil
}
