// Package device runs the display's top-level control loop: boot, network
// join, provisioning, the report display loop and hardware resets.
package device

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/couchcryptid/metar-display/internal/display"
	"github.com/couchcryptid/metar-display/internal/domain"
	"github.com/couchcryptid/metar-display/internal/observability"
	"github.com/jonboulle/clockwork"
)

// ErrReset is returned by Run after the reset line has been pulsed. The
// process should exit so the board (or its supervisor) starts over.
var ErrReset = errors.New("hardware reset")

// Screen hold times.
const (
	statusHold  = time.Second
	failedHold  = 2 * time.Second
	summaryHold = 3 * time.Second
	fatalHold   = 3 * time.Second
)

// Reset reasons, used as metric labels.
const (
	ResetConfigError  = "config_error"
	ResetProvisioned  = "provisioned"
	ResetProvisioning = "provisioning_error"
	ResetUptime       = "uptime"
)

// ConfigStore loads the persisted device settings.
type ConfigStore interface {
	LoadConfig() (domain.DeviceConfig, error)
}

// Network joins the stored network and hosts the provisioning access point.
type Network interface {
	Join(ctx context.Context, ssid, password string) error
	Connected(ctx context.Context) (bool, error)
	StartAccessPoint(ctx context.Context) error
}

// TimeSyncer corrects the clock from a network time source.
type TimeSyncer interface {
	Sync(ctx context.Context) error
}

// WeatherCache returns the current reports for a station.
type WeatherCache interface {
	Fetch(ctx context.Context, station string) domain.Reports
}

// Pager shows wrapped report lines.
type Pager interface {
	Show(ctx context.Context, lines []string) display.Result
}

// Portal collects new settings from the user.
type Portal interface {
	Run(ctx context.Context, current domain.DeviceConfig) (domain.DeviceConfig, error)
}

// QREncoder renders a URL as a QR module matrix.
type QREncoder interface {
	Encode(content string) ([][]bool, error)
}

// ResetLine drives the board's reset input.
type ResetLine interface {
	Low() error
	High() error
}

// Deps are the machine's collaborators. TimeSync may be nil.
type Deps struct {
	Store    ConfigStore
	Network  Network
	TimeSync TimeSyncer
	Cache    WeatherCache
	Pager    Pager
	Portal   Portal
	QR       QREncoder
	Reset    ResetLine
	Surface  display.Surface
	Button   display.Button
}

// Settings are the machine's timing and presentation parameters.
type Settings struct {
	JoinAttempts int
	JoinDelay    time.Duration
	ErrorBackoff time.Duration
	MaxUptime    time.Duration
	ResetPulse   time.Duration

	// PortalURL is encoded in the provisioning QR code; PortalIP is shown
	// next to it.
	PortalURL string
	PortalIP  string

	SkipIntro bool
}

// DefaultSettings returns the stock device timings.
func DefaultSettings() Settings {
	return Settings{
		JoinAttempts: 10,
		JoinDelay:    time.Second,
		ErrorBackoff: 5 * time.Second,
		MaxUptime:    24 * time.Hour,
		ResetPulse:   10 * time.Millisecond,
		PortalURL:    "http://192.168.4.1",
		PortalIP:     "192.168.4.1",
	}
}

// Machine is the device controller. It is driven by a single goroutine;
// Status may be called concurrently.
type Machine struct {
	deps     Deps
	settings Settings
	clock    clockwork.Clock
	metrics  *observability.Metrics
	logger   *slog.Logger

	resetReason string

	mu        sync.Mutex
	cfg       domain.DeviceConfig
	state     State
	enteredAt time.Time
	lastReset time.Time
}

// New creates a Machine.
func New(deps Deps, settings Settings, clock clockwork.Clock, metrics *observability.Metrics, logger *slog.Logger) *Machine {
	return &Machine{
		deps:     deps,
		settings: settings,
		clock:    clock,
		metrics:  metrics,
		logger:   logger,
	}
}

// Run boots the device and runs until a hardware reset (ErrReset) or until
// ctx ends (ctx.Err()).
func (m *Machine) Run(ctx context.Context) error {
	return m.run(ctx, false)
}

// Provision boots the device straight into provisioning, skipping the
// network join.
func (m *Machine) Provision(ctx context.Context) error {
	return m.run(ctx, true)
}

func (m *Machine) run(ctx context.Context, provision bool) error {
	next := StateBoot
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		m.enter(next)

		var err error
		switch next {
		case StateBoot:
			next, err = m.boot(ctx, provision)
		case StateConnecting:
			next, err = m.connect(ctx)
		case StateProvisioning:
			next, err = m.provision(ctx)
		case StateRunning:
			next, err = m.running(ctx)
		case StateReset:
			return m.reset(ctx)
		default:
			return fmt.Errorf("unknown state %v", next)
		}
		if err != nil {
			return err
		}
	}
}

func (m *Machine) boot(ctx context.Context, provision bool) (State, error) {
	if !m.settings.SkipIntro {
		if err := display.PlayIntro(ctx, m.deps.Surface, m.clock); err != nil {
			if ctx.Err() != nil {
				return StateBoot, ctx.Err()
			}
			m.logger.Warn("intro animation failed", "error", err)
		}
	}

	cfg, err := m.deps.Store.LoadConfig()
	if err != nil {
		m.logger.Error("load config failed", "error", err)
		return m.fatal(ctx, err, true, ResetConfigError)
	}
	m.setConfig(cfg)
	m.logger.Info("config loaded", "ssid", cfg.SSID, "station", cfg.StationID)

	if provision {
		return StateProvisioning, nil
	}
	return StateConnecting, nil
}

func (m *Machine) connect(ctx context.Context) (State, error) {
	cfg := m.config()
	if cfg.SSID == "" {
		m.logger.Info("no network configured")
		return StateProvisioning, nil
	}

	m.show(display.ConnectingScreen(cfg.SSID))
	if err := m.sleep(ctx, statusHold); err != nil {
		return StateConnecting, err
	}

	connected, err := m.join(ctx, cfg)
	if err != nil {
		return StateConnecting, err
	}
	if !connected {
		m.logger.Warn("network join failed", "ssid", cfg.SSID, "attempts", m.settings.JoinAttempts)
		m.show(display.ConnectFailedScreen())
		if err := m.sleep(ctx, failedHold); err != nil {
			return StateConnecting, err
		}
		return StateProvisioning, nil
	}

	m.logger.Info("network connected", "ssid", cfg.SSID)
	if m.deps.TimeSync != nil {
		if err := m.deps.TimeSync.Sync(ctx); err != nil {
			m.logger.Warn("time sync failed, clock left uncorrected", "error", err)
		}
	}

	m.show(display.ConnectedScreen(cfg.SSID))
	if err := m.sleep(ctx, statusHold); err != nil {
		return StateConnecting, err
	}
	return StateRunning, nil
}

// join starts the connection and polls for it up to JoinAttempts times. Only
// context errors are returned.
func (m *Machine) join(ctx context.Context, cfg domain.DeviceConfig) (bool, error) {
	if err := m.deps.Network.Join(ctx, cfg.SSID, cfg.Password); err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		m.logger.Warn("network join command failed", "error", err)
		return false, nil
	}

	for attempt := 1; attempt <= m.settings.JoinAttempts; attempt++ {
		ok, err := m.deps.Network.Connected(ctx)
		if err != nil {
			m.logger.Debug("connectivity check failed", "attempt", attempt, "error", err)
		}
		if ok {
			return true, nil
		}
		if err := m.sleep(ctx, m.settings.JoinDelay); err != nil {
			return false, err
		}
	}
	return false, nil
}

func (m *Machine) provision(ctx context.Context) (State, error) {
	if err := m.deps.Network.StartAccessPoint(ctx); err != nil {
		if ctx.Err() != nil {
			return StateProvisioning, ctx.Err()
		}
		m.logger.Error("start access point failed", "error", err)
		return m.fatal(ctx, err, false, ResetProvisioning)
	}

	matrix, err := m.deps.QR.Encode(m.settings.PortalURL)
	if err != nil {
		m.logger.Warn("qr encode failed", "url", m.settings.PortalURL, "error", err)
	}
	m.show(display.QRScreen(m.settings.PortalIP, matrix))

	cfg, err := m.deps.Portal.Run(ctx, m.config())
	if err != nil {
		if ctx.Err() != nil {
			return StateProvisioning, ctx.Err()
		}
		m.logger.Error("provisioning portal failed", "error", err)
		return m.fatal(ctx, err, false, ResetProvisioning)
	}
	m.setConfig(cfg)

	m.show(display.ConfigSummaryScreen(cfg))
	if err := m.sleep(ctx, summaryHold); err != nil {
		return StateProvisioning, err
	}
	m.show(display.SavedScreen())
	if err := m.sleep(ctx, statusHold); err != nil {
		return StateProvisioning, err
	}

	m.resetReason = ResetProvisioned
	return StateReset, nil
}

func (m *Machine) running(ctx context.Context) (State, error) {
	start := m.clock.Now()
	station := m.config().StationID

	for {
		if err := ctx.Err(); err != nil {
			return StateRunning, err
		}

		if m.clock.Since(start) >= m.settings.MaxUptime {
			now := m.clock.Now()
			m.logger.Info("uptime budget reached", "started", domain.FormatTimestamp(start), "now", domain.FormatTimestamp(now))
			m.show(display.UptimeScreen(now))
			if err := m.sleep(ctx, fatalHold); err != nil {
				return StateRunning, err
			}
			m.resetReason = ResetUptime
			return StateReset, nil
		}

		if m.deps.Button.Pressed() {
			m.logger.Info("button pressed, entering provisioning")
			m.show(display.ButtonPressedScreen())
			if err := m.sleep(ctx, statusHold); err != nil {
				return StateRunning, err
			}
			return StateProvisioning, nil
		}

		next, done, err := m.cycle(ctx, station)
		if done || err != nil {
			return next, err
		}
	}
}

// cycle runs one fetch and display pass. done reports a state change.
func (m *Machine) cycle(ctx context.Context, station string) (State, bool, error) {
	reports := m.deps.Cache.Fetch(ctx, station)
	if err := ctx.Err(); err != nil {
		return StateRunning, true, err
	}

	if !reports.Any() {
		m.logger.Warn("no weather data", "station", station)
		m.show(display.NoDataScreen())
		return StateRunning, false, m.sleep(ctx, m.settings.ErrorBackoff)
	}

	res := m.deps.Pager.Show(ctx, domain.ComposeLines(reports, domain.LineWidth))
	switch res.Outcome {
	case display.OutcomeCancelled:
		m.logger.Info("paging cancelled by button, entering provisioning")
		return StateProvisioning, true, nil
	case display.OutcomeFailed:
		if err := ctx.Err(); err != nil {
			return StateRunning, true, err
		}
		m.logger.Error("display cycle failed, recovering", "error", res.Err)
		m.show(display.SystemErrorScreen())
		return StateRunning, false, m.sleep(ctx, m.settings.ErrorBackoff)
	}
	return StateRunning, false, nil
}

// fatal shows cause, waits, then schedules a reset.
func (m *Machine) fatal(ctx context.Context, cause error, atBoot bool, reason string) (State, error) {
	m.show(display.ErrorScreen(cause, atBoot))
	if err := m.sleep(ctx, fatalHold); err != nil {
		return StateReset, err
	}
	m.resetReason = reason
	return StateReset, nil
}

// reset pulses the reset line low then high. The pulse completes even if ctx
// has ended.
func (m *Machine) reset(ctx context.Context) error {
	reason := m.resetReason
	if reason == "" {
		reason = "unknown"
	}
	m.metrics.HardwareResets.WithLabelValues(reason).Inc()

	m.mu.Lock()
	previous := m.lastReset
	m.lastReset = m.clock.Now()
	m.mu.Unlock()
	m.logger.Warn("hardware reset", "reason", reason, "previous_reset", domain.FormatTimestamp(previous))

	if err := m.deps.Reset.Low(); err != nil {
		m.logger.Error("reset line low failed", "error", err)
	}
	_ = m.sleep(context.WithoutCancel(ctx), m.settings.ResetPulse)
	if err := m.deps.Reset.High(); err != nil {
		m.logger.Error("reset line high failed", "error", err)
	}
	return ErrReset
}

func (m *Machine) show(s display.Screen) {
	if err := display.Render(m.deps.Surface, s); err != nil {
		m.logger.Warn("display update failed", "error", err)
	}
}

func (m *Machine) sleep(ctx context.Context, d time.Duration) error {
	return domain.Sleep(ctx, m.clock, d)
}

func (m *Machine) enter(s State) {
	m.mu.Lock()
	m.state = s
	m.enteredAt = m.clock.Now()
	m.mu.Unlock()

	m.metrics.StateTransitions.WithLabelValues(s.String()).Inc()
	m.logger.Debug("state entered", "state", s.String())
}

func (m *Machine) config() domain.DeviceConfig {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg
}

func (m *Machine) setConfig(cfg domain.DeviceConfig) {
	m.mu.Lock()
	m.cfg = cfg
	m.mu.Unlock()
}

// Status reports the current state and settings. Report fields are left
// for the caller to fill.
func (m *Machine) Status() domain.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return domain.Status{
		State:     m.state.String(),
		EnteredAt: m.enteredAt,
		Station:   m.cfg.StationID,
		SSID:      m.cfg.SSID,
	}
}

// LastReset returns when the reset line was last pulsed by this process.
func (m *Machine) LastReset() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastReset
}
