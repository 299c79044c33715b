package portal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/conagua-etl/internal/domain"
	"github.com/couchcryptid/conagua-etl/internal/observability"
)

// DefaultPathTemplate is the archive path used by the portal and the mock portal.
const DefaultPathTemplate = "/{kind}/{state}/{year}.zip"

// Client implements domain.ArchiveFetcher against the CONAGUA portal.
type Client struct {
	baseURL      string
	pathTemplate string
	maxBytes     int64
	httpClient   *http.Client
	logger       *slog.Logger
	metrics      *observability.Metrics
}

// NewClient creates a portal client. pathTemplate may use {state},
// {state_lower}, {kind} and {year}; an empty template uses DefaultPathTemplate.
// maxBytes <= 0 disables the body size limit.
func NewClient(baseURL, pathTemplate string, timeout time.Duration, maxBytes int64, logger *slog.Logger, metrics *observability.Metrics) *Client {
	if pathTemplate == "" {
		pathTemplate = DefaultPathTemplate
	}
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		pathTemplate: pathTemplate,
		maxBytes:     maxBytes,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger:  logger,
		metrics: metrics,
	}
}

// URL renders the archive URL for key.
func (c *Client) URL(key domain.ArchiveKey) string {
	return c.baseURL + ExpandPath(c.pathTemplate, key)
}

// ExpandPath substitutes the key's placeholders into template.
func ExpandPath(template string, key domain.ArchiveKey) string {
	r := strings.NewReplacer(
		"{state}", key.State.Code(),
		"{state_lower}", strings.ToLower(key.State.Code()),
		"{kind}", key.Kind.PortalCode(),
		"{year}", strconv.Itoa(key.Year),
	)
	return r.Replace(template)
}

// Fetch downloads the archive for key. A 404 or 410 yields *domain.NotFoundError;
// every other failure yields *domain.TransportError.
func (c *Client) Fetch(ctx context.Context, key domain.ArchiveKey) ([]byte, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}

	u := c.URL(key)
	start := time.Now()
	data, err := c.doRequest(ctx, key, u)
	c.metrics.FetchDuration.Observe(time.Since(start).Seconds())
	c.metrics.ArchivesFetched.WithLabelValues(domain.FailureKind(err)).Inc()
	if err != nil {
		return nil, err
	}

	c.logger.Debug("archive fetched", "key", key.String(), "url", u, "bytes", len(data))
	return data, nil
}

func (c *Client) doRequest(ctx context.Context, key domain.ArchiveKey, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &domain.TransportError{Key: key, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusGone:
		return nil, &domain.NotFoundError{Key: key, URL: u}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &domain.TransportError{Key: key, Err: fmt.Errorf("portal status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))}
	}

	data, err := c.readBody(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &domain.TransportError{Key: key, Err: err}
	}
	return data, nil
}

var errTooLarge = errors.New("archive exceeds size limit")

func (c *Client) readBody(body io.Reader) ([]byte, error) {
	if c.maxBytes <= 0 {
		return io.ReadAll(body)
	}
	data, err := io.ReadAll(io.LimitReader(body, c.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(data)) > c.maxBytes {
		return nil, fmt.Errorf("%w of %d bytes", errTooLarge, c.maxBytes)
	}
	return data, nil
}
