package domain

// DeviceConfig holds the settings collected by the provisioning portal.
type DeviceConfig struct {
	SSID      string
	Password  string
	StationID string
}

// DefaultDeviceConfig returns the settings used when nothing has been saved.
func DefaultDeviceConfig() DeviceConfig {
	return DeviceConfig{
		SSID:      "",
		Password:  "",
		StationID: "ZYTX",
	}
}

// HeaderSet is one set of HTTP headers sent with outbound report requests.
type HeaderSet map[string]string

// DefaultHeaderPool returns the built-in header pool used when no pool file
// is present.
func DefaultHeaderPool() []HeaderSet {
	return []HeaderSet{
		{
			"User-Agent": "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
			"Accept":     "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
		},
	}
}
