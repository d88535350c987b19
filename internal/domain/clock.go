package domain

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
)

// WallClock is the device time source. It wraps a clockwork.Clock and applies
// a correction learned from a network time source, so that the board's
// free-running clock can be trusted for the uptime budget and on-screen
// timestamps once a sync has succeeded.
type WallClock struct {
	clockwork.Clock
	offset atomic.Int64
}

// NewWallClock wraps base. Pass nil to use the real clock.
func NewWallClock(base clockwork.Clock) *WallClock {
	if base == nil {
		base = clockwork.NewRealClock()
	}
	return &WallClock{Clock: base}
}

// Now returns the corrected wall-clock time.
func (c *WallClock) Now() time.Time {
	return c.Clock.Now().Add(time.Duration(c.offset.Load()))
}

// Since returns the corrected time elapsed since t.
func (c *WallClock) Since(t time.Time) time.Duration {
	return c.Now().Sub(t)
}

// Until returns the corrected duration until t.
func (c *WallClock) Until(t time.Time) time.Duration {
	return t.Sub(c.Now())
}

// SetOffset records the correction measured against a network time source.
func (c *WallClock) SetOffset(d time.Duration) {
	c.offset.Store(int64(d))
}

// Offset returns the current correction.
func (c *WallClock) Offset() time.Duration {
	return time.Duration(c.offset.Load())
}

// Sleep blocks for d on clock or until ctx is cancelled. It returns ctx.Err()
// when cancelled.
func Sleep(ctx context.Context, clock clockwork.Clock, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-clock.After(d):
		return nil
	}
}

// FormatTimestamp renders t for the display and logs. A zero time means the
// value was never set.
func FormatTimestamp(t time.Time) string {
	if t.IsZero() {
		return "never updated"
	}
	return t.Format("2006-01-02 15:04:05")
}
