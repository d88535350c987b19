package config

import (
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/metar-display", cfg.DataDir)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)

	assert.Equal(t, "https://aviationweather.gov/api/data", cfg.APIBaseURL)
	assert.Equal(t, 60*time.Second, cfg.FetchInterval)
	assert.Equal(t, 10*time.Second, cfg.FetchTimeout)
	assert.InDelta(t, 1.0, cfg.APIRateLimit, 0)
	assert.Equal(t, uint32(5), cfg.APIBreakerFailures)

	assert.Equal(t, 5*time.Second, cfg.ScrollInterval)
	assert.Equal(t, 24*time.Hour, cfg.MaxUptime)
	assert.Equal(t, 5*time.Second, cfg.ErrorBackoff)
	assert.Equal(t, 10, cfg.JoinAttempts)
	assert.Equal(t, time.Second, cfg.JoinDelay)
	assert.Equal(t, 10*time.Millisecond, cfg.ResetPulse)

	assert.Equal(t, ":80", cfg.PortalAddr)
	assert.Equal(t, "METAR_Config", cfg.APSSID)
	assert.Equal(t, "12345678", cfg.APPassword)
	assert.Equal(t, netip.MustParsePrefix("192.168.4.1/24"), cfg.APAddress)
	assert.Equal(t, "wlan0", cfg.WiFiIface)
	assert.Equal(t, "pool.ntp.org", cfg.NTPServer)

	assert.Equal(t, "terminal", cfg.DisplayDriver)
	assert.Equal(t, "none", cfg.GPIODriver)
	assert.Equal(t, "GPIO14", cfg.ButtonPin)
	assert.Equal(t, "GPIO0", cfg.ResetPin)

	assert.Empty(t, cfg.OpsAddr)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Equal(t, "aviation-weather-snapshots", cfg.KafkaTopic)
	assert.Equal(t, "http://192.168.4.1", cfg.PortalURL())
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("DATA_DIR", "/tmp/metar")
	t.Setenv("API_BASE_URL", "http://localhost:8081/api/data/")
	t.Setenv("FETCH_INTERVAL", "2m")
	t.Setenv("SCROLL_INTERVAL", "3s")
	t.Setenv("MAX_UPTIME", "12h")
	t.Setenv("JOIN_ATTEMPTS", "3")
	t.Setenv("API_RATE_LIMIT", "0")
	t.Setenv("API_BREAKER_FAILURES", "2")
	t.Setenv("PORTAL_ADDR", ":8080")
	t.Setenv("AP_ADDRESS", "10.42.0.1/24")
	t.Setenv("DISPLAY_DRIVER", "ssd1306")
	t.Setenv("I2C_BUS", "1")
	t.Setenv("GPIO_DRIVER", "periph")
	t.Setenv("NTP_SERVER", "")
	t.Setenv("OPS_ADDR", ":9090")
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/tmp/metar", cfg.DataDir)
	assert.Equal(t, "http://localhost:8081/api/data", cfg.APIBaseURL)
	assert.Equal(t, 2*time.Minute, cfg.FetchInterval)
	assert.Equal(t, 3*time.Second, cfg.ScrollInterval)
	assert.Equal(t, 12*time.Hour, cfg.MaxUptime)
	assert.Equal(t, 3, cfg.JoinAttempts)
	assert.Zero(t, cfg.APIRateLimit)
	assert.Equal(t, uint32(2), cfg.APIBreakerFailures)
	assert.Equal(t, "ssd1306", cfg.DisplayDriver)
	assert.Equal(t, "1", cfg.I2CBus)
	assert.Equal(t, "periph", cfg.GPIODriver)
	assert.Empty(t, cfg.NTPServer, "an explicitly empty NTP_SERVER disables time sync")
	assert.Equal(t, ":9090", cfg.OpsAddr)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "http://10.42.0.1:8080", cfg.PortalURL())
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		key, value, want string
	}{
		{"SHUTDOWN_TIMEOUT", "not-a-duration", "SHUTDOWN_TIMEOUT"},
		{"SHUTDOWN_TIMEOUT", "-1s", "SHUTDOWN_TIMEOUT"},
		{"FETCH_INTERVAL", "soon", "FETCH_INTERVAL"},
		{"SCROLL_INTERVAL", "0s", "SCROLL_INTERVAL"},
		{"RESET_PULSE", "-10ms", "RESET_PULSE"},
		{"JOIN_ATTEMPTS", "0", "JOIN_ATTEMPTS"},
		{"JOIN_ATTEMPTS", "9999", "JOIN_ATTEMPTS"},
		{"API_BREAKER_FAILURES", "many", "API_BREAKER_FAILURES"},
		{"API_RATE_LIMIT", "-1", "API_RATE_LIMIT"},
		{"AP_ADDRESS", "192.168.4.1", "AP_ADDRESS"},
		{"AP_PASSWORD", "short", "AP_PASSWORD"},
		{"DISPLAY_DRIVER", "hdmi", "DISPLAY_DRIVER"},
		{"GPIO_DRIVER", "sysfs", "GPIO_DRIVER"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
