package provisioning

import (
	"context"
	"fmt"
	"log/slog"
	"net"

	"github.com/couchcryptid/metar-display/internal/domain"
	"github.com/couchcryptid/metar-display/internal/observability"
)

// Portal listens on Addr and serves the configuration form until a save
// succeeds.
type Portal struct {
	Addr    string
	Store   ConfigStore
	Metrics *observability.Metrics
	Logger  *slog.Logger

	// OnListening, if set, is called with the bound address before the
	// first accept.
	OnListening func(addr net.Addr)
}

// Run blocks until settings are saved or ctx ends.
func (p *Portal) Run(ctx context.Context, current domain.DeviceConfig) (domain.DeviceConfig, error) {
	srv, err := NewServer(p.Store, current, p.Metrics, p.Logger)
	if err != nil {
		return domain.DeviceConfig{}, err
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", p.Addr)
	if err != nil {
		return domain.DeviceConfig{}, fmt.Errorf("listen %s: %w", p.Addr, err)
	}
	defer ln.Close()

	p.Logger.Info("provisioning portal listening", "addr", ln.Addr().String())
	if p.OnListening != nil {
		p.OnListening(ln.Addr())
	}
	return srv.Serve(ctx, ln)
}
