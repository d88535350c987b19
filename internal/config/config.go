package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"
)

// Config holds all device settings, populated from environment variables.
// The provisioned network credentials and station live in the data directory,
// not here.
type Config struct {
	DataDir         string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Report API.
	APIBaseURL         string
	FetchInterval      time.Duration
	FetchTimeout       time.Duration
	APIRateLimit       float64
	APIBreakerFailures uint32

	// Device timing.
	ScrollInterval time.Duration
	MaxUptime      time.Duration
	ErrorBackoff   time.Duration
	JoinAttempts   int
	JoinDelay      time.Duration
	ResetPulse     time.Duration

	// Provisioning access point and portal.
	PortalAddr string
	APSSID     string
	APPassword string
	APAddress  netip.Prefix
	WiFiIface  string
	NTPServer  string

	// Hardware drivers.
	DisplayDriver string
	I2CBus        string
	GPIODriver    string
	ButtonPin     string
	ResetPin      string

	// Optional side channels; empty disables them.
	OpsAddr      string
	KafkaBrokers []string
	KafkaTopic   string
}

// Load reads configuration from environment variables (and a .env file when
// present), applying defaults where unset.
func Load() (*Config, error) {
	_ = godotenv.Load() // a missing .env file is the normal case on the device

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DataDir:         sharedcfg.EnvOrDefault("DATA_DIR", "/var/lib/metar-display"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		APIBaseURL: strings.TrimRight(sharedcfg.EnvOrDefault("API_BASE_URL", "https://aviationweather.gov/api/data"), "/"),

		PortalAddr: sharedcfg.EnvOrDefault("PORTAL_ADDR", ":80"),
		APSSID:     sharedcfg.EnvOrDefault("AP_SSID", "METAR_Config"),
		APPassword: sharedcfg.EnvOrDefault("AP_PASSWORD", "12345678"),
		WiFiIface:  sharedcfg.EnvOrDefault("WIFI_INTERFACE", "wlan0"),
		NTPServer:  os.Getenv("NTP_SERVER"),

		DisplayDriver: sharedcfg.EnvOrDefault("DISPLAY_DRIVER", "terminal"),
		I2CBus:        os.Getenv("I2C_BUS"),
		GPIODriver:    sharedcfg.EnvOrDefault("GPIO_DRIVER", "none"),
		ButtonPin:     sharedcfg.EnvOrDefault("BUTTON_PIN", "GPIO14"),
		ResetPin:      sharedcfg.EnvOrDefault("RESET_PIN", "GPIO0"),

		OpsAddr:    os.Getenv("OPS_ADDR"),
		KafkaTopic: sharedcfg.EnvOrDefault("KAFKA_TOPIC", "aviation-weather-snapshots"),
	}
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = sharedcfg.ParseBrokers(brokers)
	}
	if _, ok := os.LookupEnv("NTP_SERVER"); !ok {
		cfg.NTPServer = "pool.ntp.org"
	}

	durations := []struct {
		key string
		def string
		dst *time.Duration
	}{
		{"FETCH_INTERVAL", "60s", &cfg.FetchInterval},
		{"FETCH_TIMEOUT", "10s", &cfg.FetchTimeout},
		{"SCROLL_INTERVAL", "5s", &cfg.ScrollInterval},
		{"MAX_UPTIME", "24h", &cfg.MaxUptime},
		{"ERROR_BACKOFF", "5s", &cfg.ErrorBackoff},
		{"JOIN_DELAY", "1s", &cfg.JoinDelay},
		{"RESET_PULSE", "10ms", &cfg.ResetPulse},
	}
	for _, d := range durations {
		v, err := parsePositiveDuration(d.key, d.def)
		if err != nil {
			return nil, err
		}
		*d.dst = v
	}

	if cfg.JoinAttempts, err = parsePositiveInt("JOIN_ATTEMPTS", 10); err != nil {
		return nil, err
	}
	failures, err := parsePositiveInt("API_BREAKER_FAILURES", 5)
	if err != nil {
		return nil, err
	}
	cfg.APIBreakerFailures = uint32(failures) //nolint:gosec // bounded by parsePositiveInt

	rateStr := sharedcfg.EnvOrDefault("API_RATE_LIMIT", "1")
	cfg.APIRateLimit, err = strconv.ParseFloat(rateStr, 64)
	if err != nil || cfg.APIRateLimit < 0 {
		return nil, errors.New("invalid API_RATE_LIMIT")
	}

	cfg.APAddress, err = netip.ParsePrefix(sharedcfg.EnvOrDefault("AP_ADDRESS", "192.168.4.1/24"))
	if err != nil {
		return nil, fmt.Errorf("invalid AP_ADDRESS: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// PortalURL is the address encoded in the provisioning QR code.
func (c *Config) PortalURL() string {
	host := c.APAddress.Addr().String()
	if _, port, err := splitPort(c.PortalAddr); err == nil && port != "" && port != "80" {
		host += ":" + port
	}
	return "http://" + host
}

func (c *Config) validate() error {
	if c.DataDir == "" {
		return errors.New("DATA_DIR is required")
	}
	if c.APIBaseURL == "" {
		return errors.New("API_BASE_URL is required")
	}
	switch c.DisplayDriver {
	case "terminal", "ssd1306":
	default:
		return fmt.Errorf("invalid DISPLAY_DRIVER %q: want terminal or ssd1306", c.DisplayDriver)
	}
	switch c.GPIODriver {
	case "none", "periph":
	default:
		return fmt.Errorf("invalid GPIO_DRIVER %q: want none or periph", c.GPIODriver)
	}
	if len(c.APPassword) < 8 {
		return errors.New("AP_PASSWORD must be at least 8 characters")
	}
	if len(c.KafkaBrokers) > 0 && c.KafkaTopic == "" {
		return errors.New("KAFKA_BROKERS is set but KAFKA_TOPIC is empty")
	}
	return nil
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 || n > 1000 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}

func splitPort(addr string) (string, string, error) {
	i := strings.LastIndex(addr, ":")
	if i < 0 {
		return addr, "", errors.New("missing port")
	}
	return addr[:i], addr[i+1:], nil
}
