package display

import (
	"context"
	"time"

	"github.com/couchcryptid/metar-display/internal/domain"
	"github.com/jonboulle/clockwork"
)

// Status screens shown by the device controller.

func ConnectingScreen(ssid string) Screen {
	return Screen{Lines: []Line{
		{Text: "WLAN Connecting", Y: 15},
		{Text: "SSID:", Y: 30},
		{Text: ssid, Y: 40},
	}}
}

func ConnectedScreen(ssid string) Screen {
	return Screen{Lines: []Line{
		{Text: "WLAN Connected!", Y: 15},
		{Text: "SSID:", Y: 30},
		{Text: ssid, Y: 40},
	}}
}

func ConnectFailedScreen() Screen {
	return Screen{Lines: []Line{
		{Text: "Connect failed", Y: 10},
		{Text: "Enter config mode", Y: 30},
	}}
}

func NoDataScreen() Screen {
	return Screen{Lines: []Line{
		{Text: "No weather data", Y: 20},
		{Text: "Retrying...", Y: 35},
	}}
}

func SystemErrorScreen() Screen {
	return Screen{Lines: []Line{
		{Text: "System Error", Y: 20},
		{Text: "Recovering...", Y: 35},
	}}
}

// UptimeScreen announces the scheduled restart; at is shown as the restart
// time.
func UptimeScreen(at time.Time) Screen {
	return Screen{Lines: []Line{
		{Text: "Run over 24h", X: 16, Y: 10},
		{Text: "Schedule Reboot", X: 4, Y: 25},
		{Text: domain.FormatTimestamp(at), Y: 40},
	}}
}

func ButtonPressedScreen() Screen {
	return Screen{Lines: []Line{
		{Text: "Button pressed", X: 10, Y: 20},
		{Text: "Enter config...", X: 10, Y: 35},
	}}
}

// ConfigSummaryScreen lists the settings that were just saved.
func ConfigSummaryScreen(cfg domain.DeviceConfig) Screen {
	return Screen{Lines: []Line{
		{Text: "Config Info List", Y: 5},
		{Text: "WIFI_SSID:", Y: 20},
		{Text: cfg.SSID, Y: 30},
		{Text: "AIRPORT_CODE:", Y: 40},
		{Text: cfg.StationID, Y: 50},
	}}
}

func SavedScreen() Screen {
	return Screen{Lines: []Line{
		{Text: "Config Saved!", X: 12, Y: 15},
		{Text: "Rebooting...", X: 16, Y: 35},
	}}
}

// ErrorScreen reports an unrecoverable error before a reset. Boot-time
// errors also ask the user to reboot later.
func ErrorScreen(err error, atBoot bool) Screen {
	msg := "unknown"
	if err != nil {
		msg = err.Error()
	}
	s := Screen{Lines: []Line{
		{Text: "ERROR:", Y: 5},
		{Text: msg, Y: 15},
	}}
	if atBoot {
		s.Lines = append(s.Lines,
			Line{Text: "Please", X: 42, Y: 30},
			Line{Text: "Reboot", X: 42, Y: 40},
			Line{Text: "Later", X: 46, Y: 50},
		)
	}
	return s
}

// QRScreen shows the portal address hint and the QR code matrix, each module
// drawn as a 2x2 block to the right of the text.
func QRScreen(ip string, matrix [][]bool) Screen {
	s := Screen{Lines: []Line{
		{Text: "IP:" + ip, X: 8, Y: 0},
		{Text: " Scan", X: 8, Y: 25},
		{Text: "  to", X: 8, Y: 35},
		{Text: "Config", X: 8, Y: 45},
	}}

	size := len(matrix) * 2
	xOffset := Width/2 - size/4 + 8
	const yOffset = 5
	for row, cells := range matrix {
		for col, on := range cells {
			if on {
				s.Rects = append(s.Rects, Rect{X: xOffset + col*2, Y: yOffset + row*2, W: 2, H: 2})
			}
		}
	}
	return s
}

var introLines = []Line{
	{Text: "WELCOME TO", X: 24, Y: 15},
	{Text: "METAR DISPLAY", X: 12, Y: 30},
	{Text: "BY WUHANQING", X: 16, Y: 45},
}

// Intro timings.
const (
	introStart    = 500 * time.Millisecond
	introCharStep = 20 * time.Millisecond
	introLineStep = 200 * time.Millisecond
	introHold     = 2 * time.Second
	introWipeStep = 5 * time.Millisecond
	introWipeBand = 2
)

// PlayIntro types the welcome text one character at a time, holds it, then
// wipes the panel top to bottom.
func PlayIntro(ctx context.Context, s Surface, clock clockwork.Clock) error {
	if err := Render(s, Screen{}); err != nil {
		return err
	}
	if err := domain.Sleep(ctx, clock, introStart); err != nil {
		return err
	}

	for i, line := range introLines {
		for n := 0; n <= len(line.Text); n++ {
			frame := Screen{Lines: append([]Line(nil), introLines[:i]...)}
			frame.Lines = append(frame.Lines, Line{Text: line.Text[:n], X: line.X, Y: line.Y})
			if err := Render(s, frame); err != nil {
				return err
			}
			if err := domain.Sleep(ctx, clock, introCharStep); err != nil {
				return err
			}
		}
		if err := domain.Sleep(ctx, clock, introLineStep); err != nil {
			return err
		}
	}
	if err := domain.Sleep(ctx, clock, introHold); err != nil {
		return err
	}

	for y := 0; y < Height; y += introWipeBand {
		s.FillRect(0, y, Width, introWipeBand, false)
		if err := s.Show(); err != nil {
			return err
		}
		if err := domain.Sleep(ctx, clock, introWipeStep); err != nil {
			return err
		}
	}
	return nil
}
