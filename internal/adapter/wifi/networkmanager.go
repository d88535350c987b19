// Package wifi joins networks and hosts the provisioning access point through
// NetworkManager's D-Bus API.
package wifi

import (
	"context"
	"fmt"
	"log/slog"
	"net/netip"
	"sync"

	"github.com/Wifx/gonetworkmanager/v2"
)

const (
	// APConnection is the connection profile used for the provisioning
	// access point.
	APConnection = "metar-config"
	// StationConnection is the connection profile used to join the
	// configured network.
	StationConnection = "metar-station"
)

// client is the slice of NetworkManager the Manager drives.
type client interface {
	DeviceState(iface string) (gonetworkmanager.NmDeviceState, error)
	Activate(settings gonetworkmanager.ConnectionSettings, iface string) error
	DeleteProfile(id string) error
}

// Options configures the managed interface and the access point.
type Options struct {
	Interface  string
	APSSID     string
	APPassword string
	APAddress  netip.Prefix
}

// Manager implements the device's network operations. The D-Bus connection
// is opened on first use and kept.
type Manager struct {
	opts   Options
	dial   func() (client, error)
	logger *slog.Logger

	mu sync.Mutex
	nm client
}

// New creates a Manager backed by the system NetworkManager.
func New(opts Options, logger *slog.Logger) *Manager {
	return &Manager{opts: opts, dial: dialSystemBus, logger: logger}
}

// Join starts connecting the interface to ssid without waiting for the
// connection to come up; poll Connected for the result. A previous station
// profile is replaced.
func (m *Manager) Join(ctx context.Context, ssid, password string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	nm, err := m.client()
	if err != nil {
		return fmt.Errorf("join %q: %w", ssid, err)
	}
	if err := nm.DeleteProfile(StationConnection); err != nil {
		m.logger.Debug("no previous station profile", "error", err)
	}
	if err := nm.Activate(stationSettings(m.opts.Interface, ssid, password), m.opts.Interface); err != nil {
		return fmt.Errorf("join %q: %w", ssid, err)
	}
	return nil
}

// Connected reports whether the interface is fully activated.
func (m *Manager) Connected(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	nm, err := m.client()
	if err != nil {
		return false, err
	}
	state, err := nm.DeviceState(m.opts.Interface)
	if err != nil {
		return false, fmt.Errorf("device state %s: %w", m.opts.Interface, err)
	}
	return state == gonetworkmanager.NmDeviceStateActivated, nil
}

// StartAccessPoint replaces any previous provisioning profile and brings up a
// WPA2 access point with a shared IPv4 network at the configured address.
func (m *Manager) StartAccessPoint(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	nm, err := m.client()
	if err != nil {
		return fmt.Errorf("start access point: %w", err)
	}
	if err := nm.DeleteProfile(APConnection); err != nil {
		m.logger.Debug("no previous access point profile", "error", err)
	}
	if err := nm.Activate(accessPointSettings(m.opts), m.opts.Interface); err != nil {
		return fmt.Errorf("start access point: %w", err)
	}

	m.logger.Info("access point started", "ssid", m.opts.APSSID, "address", m.opts.APAddress.String())
	return nil
}

func (m *Manager) client() (client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.nm != nil {
		return m.nm, nil
	}
	nm, err := m.dial()
	if err != nil {
		return nil, fmt.Errorf("connect to NetworkManager: %w", err)
	}
	m.nm = nm
	return nm, nil
}

func stationSettings(iface, ssid, password string) gonetworkmanager.ConnectionSettings {
	s := gonetworkmanager.ConnectionSettings{
		"connection": {
			"id":             StationConnection,
			"type":           "802-11-wireless",
			"interface-name": iface,
		},
		"802-11-wireless": {
			"ssid": []byte(ssid),
			"mode": "infrastructure",
		},
		"ipv4": {"method": "auto"},
		"ipv6": {"method": "auto"},
	}
	if password != "" {
		s["802-11-wireless-security"] = map[string]interface{}{
			"key-mgmt": "wpa-psk",
			"psk":      password,
		}
	}
	return s
}

func accessPointSettings(opts Options) gonetworkmanager.ConnectionSettings {
	return gonetworkmanager.ConnectionSettings{
		"connection": {
			"id":             APConnection,
			"type":           "802-11-wireless",
			"interface-name": opts.Interface,
			"autoconnect":    false,
		},
		"802-11-wireless": {
			"ssid": []byte(opts.APSSID),
			"mode": "ap",
			"band": "bg",
		},
		"802-11-wireless-security": {
			"key-mgmt": "wpa-psk",
			"psk":      opts.APPassword,
		},
		"ipv4": {
			"method": "shared",
			"address-data": []map[string]interface{}{{
				"address": opts.APAddress.Addr().String(),
				"prefix":  uint32(opts.APAddress.Bits()),
			}},
		},
		"ipv6": {"method": "ignore"},
	}
}

// dbusClient adapts gonetworkmanager to client.
type dbusClient struct {
	nm       gonetworkmanager.NetworkManager
	settings gonetworkmanager.Settings
}

func dialSystemBus() (client, error) {
	nm, err := gonetworkmanager.NewNetworkManager()
	if err != nil {
		return nil, err
	}
	settings, err := gonetworkmanager.NewSettings()
	if err != nil {
		return nil, err
	}
	return &dbusClient{nm: nm, settings: settings}, nil
}

func (c *dbusClient) DeviceState(iface string) (gonetworkmanager.NmDeviceState, error) {
	dev, err := c.nm.GetDeviceByIpIface(iface)
	if err != nil {
		return gonetworkmanager.NmDeviceStateUnknown, err
	}
	return dev.GetPropertyState()
}

func (c *dbusClient) Activate(settings gonetworkmanager.ConnectionSettings, iface string) error {
	dev, err := c.nm.GetDeviceByIpIface(iface)
	if err != nil {
		return err
	}
	_, err = c.nm.AddAndActivateConnection(settings, dev)
	return err
}

// DeleteProfile removes every stored profile named id.
func (c *dbusClient) DeleteProfile(id string) error {
	conns, err := c.settings.ListConnections()
	if err != nil {
		return err
	}
	for _, conn := range conns {
		s, err := conn.GetSettings()
		if err != nil {
			continue
		}
		if name, _ := s["connection"]["id"].(string); name == id {
			if err := conn.Delete(); err != nil {
				return err
			}
		}
	}
	return nil
}
