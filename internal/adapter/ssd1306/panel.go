// Package ssd1306 drives the 128x64 SSD1306 OLED over I2C.
package ssd1306

import (
	"fmt"
	"image"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	oled "periph.io/x/devices/v3/ssd1306"
	"periph.io/x/host/v3"
)

// Panel is an opened display. Its Flush method is a display.Flusher.
type Panel struct {
	bus i2c.BusCloser
	dev *oled.Dev
}

// Open initialises the host drivers and opens the panel on busName (empty
// selects the first bus).
func Open(busName string) (*Panel, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("init host: %w", err)
	}

	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("open i2c bus %q: %w", busName, err)
	}

	dev, err := oled.NewI2C(bus, &oled.DefaultOpts)
	if err != nil {
		_ = bus.Close()
		return nil, fmt.Errorf("init ssd1306: %w", err)
	}
	return &Panel{bus: bus, dev: dev}, nil
}

// Flush copies img to the panel.
func (p *Panel) Flush(img *image.Gray) error {
	return p.dev.Draw(p.dev.Bounds(), img, image.Point{})
}

// Close blanks the panel and releases the bus.
func (p *Panel) Close() error {
	haltErr := p.dev.Halt()
	if err := p.bus.Close(); err != nil {
		return err
	}
	return haltErr
}
