//go:build smoke

package aviationweather

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/couchcryptid/metar-display/internal/domain"
	"github.com/couchcryptid/metar-display/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests hit the real aviationweather.gov API.
// Run with: go test -tags=smoke ./internal/adapter/aviationweather/ -v -count=1

func smokeClient() *Client {
	return NewClient(Options{Timeout: 10 * time.Second, RateLimit: 1},
		observability.NewMetricsForTesting(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestSmoke_Observation(t *testing.T) {
	raw, err := smokeClient().Fetch(context.Background(), domain.Observation, "KJFK", domain.DefaultHeaderPool()[0])
	require.NoError(t, err)
	assert.Contains(t, raw, "KJFK")
}

func TestSmoke_Forecast(t *testing.T) {
	raw, err := smokeClient().Fetch(context.Background(), domain.Forecast, "KJFK", domain.DefaultHeaderPool()[0])
	if errors.Is(err, ErrNoData) {
		t.Skip("no TAF currently issued for KJFK")
	}
	require.NoError(t, err)
	assert.Contains(t, raw, "KJFK")
}
