// Package ntp corrects the device clock against a network time server.
package ntp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/beevik/ntp"
	"github.com/couchcryptid/metar-display/internal/domain"
)

const queryTimeout = 5 * time.Second

// QueryFunc returns the offset of the local clock from host.
type QueryFunc func(host string) (time.Duration, error)

// Query asks host for the time and validates the answer.
func Query(host string) (time.Duration, error) {
	resp, err := ntp.QueryWithOptions(host, ntp.QueryOptions{Timeout: queryTimeout})
	if err != nil {
		return 0, err
	}
	if err := resp.Validate(); err != nil {
		return 0, fmt.Errorf("invalid response: %w", err)
	}
	return resp.ClockOffset, nil
}

// Syncer applies the measured offset to a WallClock.
type Syncer struct {
	host   string
	clock  *domain.WallClock
	query  QueryFunc
	logger *slog.Logger
}

// NewSyncer creates a Syncer for host. An empty host disables syncing.
func NewSyncer(host string, clock *domain.WallClock, query QueryFunc, logger *slog.Logger) *Syncer {
	if query == nil {
		query = Query
	}
	return &Syncer{host: host, clock: clock, query: query, logger: logger}
}

// Sync queries the server once and applies the offset. On failure the clock
// is left as it was.
func (s *Syncer) Sync(ctx context.Context) error {
	if s.host == "" {
		return errors.New("no time server configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	offset, err := s.query(s.host)
	if err != nil {
		return fmt.Errorf("query %s: %w", s.host, err)
	}

	s.clock.SetOffset(offset)
	s.logger.Info("clock synchronized", "server", s.host, "offset", offset.String(),
		"now", domain.FormatTimestamp(s.clock.Now()))
	return nil
}
