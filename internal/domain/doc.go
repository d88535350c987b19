// Package domain models the aviation weather reports shown on the display and
// the device configuration collected during provisioning.
//
// # Data Source
//
// Reports come from the Aviation Weather Center data API at
// https://aviationweather.gov/api/data. Two endpoints are used, both keyed by
// a four-letter ICAO station code and both returning a JSON array:
//
//	/metar?ids=ZYTX&format=json  →  [{"rawOb": "ZYTX 010000Z 00000KT ...", ...}]
//	/taf?ids=ZYTX&format=json    →  [{"rawTAF": "TAF ZYTX 010500Z ...", ...}]
//
// Only the first element's raw text field is used. An empty array means the
// station has no current report of that kind.
//
// # Report Conventions
//
// Observation (METAR):
//
//	The raw observation does not carry its report-type prefix, so the display
//	text is "METAR " + raw + "=". Trailing spaces in the raw text are trimmed
//	before the terminator is appended.
//
// Forecast (TAF):
//
//	The raw forecast already starts with "TAF", so the display text is
//	raw + "=".
//
// The "=" terminator is the WMO end-of-message marker used in bulletins.
//
// # Display Lines
//
// The 128×64 panel fits 16 characters per row. Reports are word-wrapped with
// [Wrap] and combined with [ComposeLines]: observation lines, one blank
// separator row when both reports are present, then forecast lines.
//
// # Device Configuration
//
// [DeviceConfig] is persisted as a flat JSON object with the keys WIFI_SSID,
// WIFI_PASSWORD and AIRPORT_CODE. Missing keys take the values of
// [DefaultDeviceConfig].
package domain
