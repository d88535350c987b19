package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/couchcryptid/metar-display/internal/adapter/aviationweather"
	"github.com/couchcryptid/metar-display/internal/adapter/gpio"
	httpadapter "github.com/couchcryptid/metar-display/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/metar-display/internal/adapter/kafka"
	"github.com/couchcryptid/metar-display/internal/adapter/ntp"
	"github.com/couchcryptid/metar-display/internal/adapter/qr"
	"github.com/couchcryptid/metar-display/internal/adapter/ssd1306"
	"github.com/couchcryptid/metar-display/internal/adapter/terminal"
	"github.com/couchcryptid/metar-display/internal/adapter/wifi"
	"github.com/couchcryptid/metar-display/internal/config"
	"github.com/couchcryptid/metar-display/internal/device"
	"github.com/couchcryptid/metar-display/internal/display"
	"github.com/couchcryptid/metar-display/internal/domain"
	"github.com/couchcryptid/metar-display/internal/observability"
	"github.com/couchcryptid/metar-display/internal/provisioning"
	"github.com/couchcryptid/metar-display/internal/store"
	"github.com/couchcryptid/metar-display/internal/weathercache"
	"github.com/prometheus/client_golang/prometheus"
)

// app holds the wired device and the resources to release on exit.
type app struct {
	machine *device.Machine
	ops     *httpadapter.Server
	closers []func() error
	logger  *slog.Logger
}

func newApp(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) (*app, error) {
	a := &app{logger: logger}

	surface, err := a.openSurface(cfg)
	if err != nil {
		a.close()
		return nil, err
	}
	button, reset, err := openGPIO(cfg, logger)
	if err != nil {
		a.close()
		return nil, err
	}

	clock := domain.NewWallClock(nil)
	st := newStore(cfg, logger)
	cache := newCache(cfg, st, clock, metrics, logger, a.sinkOption(cfg, logger)...)

	deps := device.Deps{
		Store: st,
		Network: wifi.New(wifi.Options{
			Interface:  cfg.WiFiIface,
			APSSID:     cfg.APSSID,
			APPassword: cfg.APPassword,
			APAddress:  cfg.APAddress,
		}, logger),
		Cache: cache,
		Pager: display.NewPager(surface, button, clock, cfg.ScrollInterval, metrics),
		Portal: &provisioning.Portal{
			Addr:    cfg.PortalAddr,
			Store:   st,
			Metrics: metrics,
			Logger:  logger,
		},
		QR:      qr.Encoder{},
		Reset:   reset,
		Surface: surface,
		Button:  button,
	}
	if cfg.NTPServer != "" {
		deps.TimeSync = ntp.NewSyncer(cfg.NTPServer, clock, nil, logger)
	}

	settings := device.Settings{
		JoinAttempts: cfg.JoinAttempts,
		JoinDelay:    cfg.JoinDelay,
		ErrorBackoff: cfg.ErrorBackoff,
		MaxUptime:    cfg.MaxUptime,
		ResetPulse:   cfg.ResetPulse,
		PortalURL:    cfg.PortalURL(),
		PortalIP:     cfg.APAddress.Addr().String(),
	}
	a.machine = device.New(deps, settings, clock, metrics, logger)

	if cfg.OpsAddr != "" {
		a.ops = httpadapter.NewServer(cfg.OpsAddr, cache, statusFunc(a.machine, cache), prometheus.DefaultGatherer, logger)
	}
	return a, nil
}

func (a *app) openSurface(cfg *config.Config) (display.Surface, error) {
	switch cfg.DisplayDriver {
	case "ssd1306":
		panel, err := ssd1306.Open(cfg.I2CBus)
		if err != nil {
			return nil, fmt.Errorf("open display: %w", err)
		}
		a.closers = append(a.closers, panel.Close)
		return display.NewFramebuffer(panel.Flush), nil
	default:
		return display.NewFramebuffer(terminal.New(os.Stdout, true).Flush), nil
	}
}

func openGPIO(cfg *config.Config, logger *slog.Logger) (display.Button, device.ResetLine, error) {
	if cfg.GPIODriver != "periph" {
		return gpio.NopButton{}, gpio.NopResetLine{Logger: logger}, nil
	}
	button, err := gpio.OpenButton(cfg.ButtonPin)
	if err != nil {
		return nil, nil, err
	}
	reset, err := gpio.OpenResetLine(cfg.ResetPin)
	if err != nil {
		return nil, nil, err
	}
	return button, reset, nil
}

func (a *app) sinkOption(cfg *config.Config, logger *slog.Logger) []weathercache.Option {
	if len(cfg.KafkaBrokers) == 0 {
		return nil
	}
	publisher := kafkaadapter.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
	a.closers = append(a.closers, publisher.Close)
	logger.Info("snapshot publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	return []weathercache.Option{weathercache.WithSink(publisher)}
}

func (a *app) close() {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	if err := errors.Join(errs...); err != nil {
		a.logger.Error("close error", "error", err)
	}
}

func newStore(cfg *config.Config, logger *slog.Logger) *store.FileStore {
	return store.NewFileStore(cfg.DataDir, logger)
}

func newCache(cfg *config.Config, st *store.FileStore, clock *domain.WallClock, metrics *observability.Metrics, logger *slog.Logger, opts ...weathercache.Option) *weathercache.Cache {
	client := aviationweather.NewClient(aviationweather.Options{
		BaseURL:         cfg.APIBaseURL,
		Timeout:         cfg.FetchTimeout,
		RateLimit:       cfg.APIRateLimit,
		BreakerFailures: cfg.APIBreakerFailures,
	}, metrics, logger)
	return weathercache.New(client, st, clock, cfg.FetchInterval, metrics, logger, opts...)
}

// statusFunc merges the machine state with the cached reports.
func statusFunc(m *device.Machine, cache *weathercache.Cache) httpadapter.StatusFunc {
	return func() domain.Status {
		s := m.Status()
		s.LastFetch = cache.LastFetch()
		reports := cache.Snapshots()
		if reports.Observation != nil {
			s.Observation = reports.Observation.Text
		}
		if reports.Forecast != nil {
			s.Forecast = reports.Forecast.Text
		}
		return s
	}
}
