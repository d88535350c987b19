// Package aviationweather fetches raw METAR and TAF bulletins from the
// aviationweather.gov data API.
package aviationweather

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/couchcryptid/metar-display/internal/domain"
	"github.com/couchcryptid/metar-display/internal/observability"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// DefaultBaseURL is the public data API root.
const DefaultBaseURL = "https://aviationweather.gov/api/data"

const maxBodyBytes = 1 << 20

// ErrNoData is returned when the API answers successfully but has no report
// for the station.
var ErrNoData = errors.New("no report available")

// Options configures a Client.
type Options struct {
	BaseURL         string
	Timeout         time.Duration
	RateLimit       float64 // requests per second; <= 0 disables limiting
	BreakerFailures uint32  // consecutive failures that open an endpoint's breaker
}

// Client implements weathercache.Source against the aviation weather API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	breakers   map[domain.ReportKind]*gobreaker.CircuitBreaker
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates an API client with one circuit breaker per endpoint.
func NewClient(opts Options, metrics *observability.Metrics, logger *slog.Logger) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.BreakerFailures == 0 {
		opts.BreakerFailures = 5
	}

	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}

	c := &Client{
		baseURL:    opts.BaseURL,
		httpClient: &http.Client{Timeout: opts.Timeout},
		limiter:    rate.NewLimiter(limit, len(domain.ReportKinds)),
		breakers:   make(map[domain.ReportKind]*gobreaker.CircuitBreaker, len(domain.ReportKinds)),
		metrics:    metrics,
		logger:     logger,
	}
	for _, kind := range domain.ReportKinds {
		c.breakers[kind] = c.newBreaker(kind, opts.BreakerFailures)
	}
	return c
}

func (c *Client) newBreaker(kind domain.ReportKind, failures uint32) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        string(kind),
		MaxRequests: 1,
		Interval:    0,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("api circuit breaker state change",
				"endpoint", name, "from", from.String(), "to", to.String())
		},
	})
}

// Fetch returns the raw bulletin text of kind for station, exactly as the
// API returned it. headers are sent with the request.
func (c *Client) Fetch(ctx context.Context, kind domain.ReportKind, station string, headers domain.HeaderSet) (string, error) {
	cb, ok := c.breakers[kind]
	if !ok {
		return "", fmt.Errorf("unknown report kind %q", kind)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit: %w", err)
	}

	params := url.Values{
		"ids":    {station},
		"format": {"json"},
	}
	fullURL := fmt.Sprintf("%s/%s?%s", c.baseURL, kind, params.Encode())

	start := time.Now()
	result, err := cb.Execute(func() (interface{}, error) {
		return c.get(ctx, fullURL, headers)
	})
	c.metrics.FetchAPIDuration.WithLabelValues(string(kind)).Observe(time.Since(start).Seconds())
	if err != nil {
		return "", fmt.Errorf("%s request: %w", kind, err)
	}

	body, ok := result.([]byte)
	if !ok {
		return "", fmt.Errorf("%s request: unexpected result type %T", kind, result)
	}
	return decode(kind, body)
}

func (c *Client) get(ctx context.Context, fullURL string, headers domain.HeaderSet) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("api error: status %d: %.200s", resp.StatusCode, body)
	}
	return body, nil
}

// API response types. Only the raw text fields are used.

type report struct {
	RawOb  string `json:"rawOb"`
	RawTAF string `json:"rawTAF"`
}

func decode(kind domain.ReportKind, body []byte) (string, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return "", ErrNoData
	}

	var reports []report
	if err := json.Unmarshal(body, &reports); err != nil {
		return "", fmt.Errorf("decode %s response: %w", kind, err)
	}
	if len(reports) == 0 {
		return "", ErrNoData
	}

	raw := reports[0].RawOb
	if kind == domain.Forecast {
		raw = reports[0].RawTAF
	}
	if raw == "" {
		return "", ErrNoData
	}
	return raw, nil
}
