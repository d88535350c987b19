package aviationweather

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/couchcryptid/metar-display/internal/domain"
	"github.com/couchcryptid/metar-display/internal/observability"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	contentTypeJSON   = "application/json"
	headerContentType = "Content-Type"
	testStation       = "ZYTX"
)

func testClient(baseURL string, failures uint32) *Client {
	return NewClient(Options{
		BaseURL:         baseURL,
		Timeout:         5 * time.Second,
		BreakerFailures: failures,
	}, observability.NewMetricsForTesting(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func jsonHandler(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = io.WriteString(w, body)
	}
}

func TestClient_Fetch_Observation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/metar", r.URL.Path)
		assert.Equal(t, testStation, r.URL.Query().Get("ids"))
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))

		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = io.WriteString(w, `[{"icaoId":"ZYTX","rawOb":"ZYTX 010000Z 00000KT 9999 NSC 20/10 Q1013  "}]`)
	}))
	defer srv.Close()

	c := testClient(srv.URL, 5)
	raw, err := c.Fetch(context.Background(), domain.Observation, testStation, domain.HeaderSet{"User-Agent": "test-agent"})
	require.NoError(t, err)
	assert.Equal(t, "ZYTX 010000Z 00000KT 9999 NSC 20/10 Q1013  ", raw, "raw text is returned untrimmed")
}

func TestClient_Fetch_Forecast(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/taf", r.URL.Path)
		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = io.WriteString(w, `[{"rawTAF":"TAF ZYTX 010500Z 0106/0212 18004MPS 9999 NSC"}]`)
	}))
	defer srv.Close()

	raw, err := testClient(srv.URL, 5).Fetch(context.Background(), domain.Forecast, testStation, nil)
	require.NoError(t, err)
	assert.Equal(t, "TAF ZYTX 010500Z 0106/0212 18004MPS 9999 NSC", raw)
}

func TestClient_Fetch_NoData(t *testing.T) {
	tests := map[string]http.HandlerFunc{
		"empty array": jsonHandler(`[]`),
		"empty field": jsonHandler(`[{"rawOb":""}]`),
		"wrong field": jsonHandler(`[{"rawTAF":"TAF ZYTX"}]`),
		"no content": func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		},
	}
	for name, handler := range tests {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(handler)
			defer srv.Close()

			_, err := testClient(srv.URL, 5).Fetch(context.Background(), domain.Observation, testStation, nil)
			require.ErrorIs(t, err, ErrNoData)
		})
	}
}

func TestClient_Fetch_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL, 5).Fetch(context.Background(), domain.Observation, testStation, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502")
	assert.NotErrorIs(t, err, ErrNoData)
}

func TestClient_Fetch_MalformedJSON(t *testing.T) {
	srv := httptest.NewServer(jsonHandler(`{"rawOb":`))
	defer srv.Close()

	_, err := testClient(srv.URL, 5).Fetch(context.Background(), domain.Observation, testStation, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode metar response")
}

func TestClient_Fetch_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL, Timeout: 50 * time.Millisecond},
		observability.NewMetricsForTesting(), slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, err := c.Fetch(context.Background(), domain.Observation, testStation, nil)
	require.Error(t, err)
}

func TestClient_Fetch_BreakerOpensPerEndpoint(t *testing.T) {
	var metarCalls, tafCalls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metar" {
			metarCalls.Add(1)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		tafCalls.Add(1)
		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = io.WriteString(w, `[{"rawTAF":"TAF ZYTX"}]`)
	}))
	defer srv.Close()

	c := testClient(srv.URL, 2)
	ctx := context.Background()

	for range 2 {
		_, err := c.Fetch(ctx, domain.Observation, testStation, nil)
		require.Error(t, err)
	}
	_, err := c.Fetch(ctx, domain.Observation, testStation, nil)
	require.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, int32(2), metarCalls.Load(), "an open breaker must not reach the API")

	raw, err := c.Fetch(ctx, domain.Forecast, testStation, nil)
	require.NoError(t, err, "the forecast endpoint has its own breaker")
	assert.Equal(t, "TAF ZYTX", raw)
	assert.Equal(t, int32(1), tafCalls.Load())
}

func TestClient_Fetch_EmptyResultDoesNotTripBreaker(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = io.WriteString(w, `[]`)
	}))
	defer srv.Close()

	c := testClient(srv.URL, 1)
	for range 3 {
		_, err := c.Fetch(context.Background(), domain.Forecast, testStation, nil)
		require.ErrorIs(t, err, ErrNoData)
	}
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_Fetch_CancelledContext(t *testing.T) {
	srv := httptest.NewServer(jsonHandler(`[]`))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL, Timeout: time.Second, RateLimit: 0.001},
		observability.NewMetricsForTesting(), slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Fetch(ctx, domain.Observation, testStation, nil)
	require.Error(t, err)
}

func TestClient_Fetch_UnknownKind(t *testing.T) {
	_, err := testClient("http://127.0.0.1:0", 5).Fetch(context.Background(), domain.ReportKind("pirep"), testStation, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown report kind")
}
