// Package gpio provides the mode-switch button and the reset line on GPIO
// pins through periph.io, plus no-op stand-ins for machines without pins.
package gpio

import (
	"fmt"
	"log/slog"
	"sync"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

var hostInit = sync.OnceValue(func() error {
	_, err := host.Init()
	return err
})

func lookup(name string) (gpio.PinIO, error) {
	if err := hostInit(); err != nil {
		return nil, fmt.Errorf("init host: %w", err)
	}
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("gpio pin %q not found", name)
	}
	return pin, nil
}

// Button is an active-high push button with a pull-down.
type Button struct {
	pin gpio.PinIO
}

// OpenButton configures the named pin as an input.
func OpenButton(name string) (*Button, error) {
	pin, err := lookup(name)
	if err != nil {
		return nil, err
	}
	return newButton(pin)
}

func newButton(pin gpio.PinIO) (*Button, error) {
	if err := pin.In(gpio.PullDown, gpio.NoEdge); err != nil {
		return nil, fmt.Errorf("configure button %s: %w", pin.Name(), err)
	}
	return &Button{pin: pin}, nil
}

// Pressed samples the pin; high means pressed.
func (b *Button) Pressed() bool {
	return b.pin.Read() == gpio.High
}

// ResetLine drives the board's reset input. It idles high.
type ResetLine struct {
	pin gpio.PinIO
}

// OpenResetLine configures the named pin as an output at its idle level.
func OpenResetLine(name string) (*ResetLine, error) {
	pin, err := lookup(name)
	if err != nil {
		return nil, err
	}
	return newResetLine(pin)
}

func newResetLine(pin gpio.PinIO) (*ResetLine, error) {
	if err := pin.Out(gpio.High); err != nil {
		return nil, fmt.Errorf("configure reset line %s: %w", pin.Name(), err)
	}
	return &ResetLine{pin: pin}, nil
}

// Low asserts reset.
func (r *ResetLine) Low() error { return r.pin.Out(gpio.Low) }

// High releases reset.
func (r *ResetLine) High() error { return r.pin.Out(gpio.High) }

// NopButton is never pressed.
type NopButton struct{}

func (NopButton) Pressed() bool { return false }

// NopResetLine logs reset pulses instead of driving a pin. The process exit
// that follows a reset stands in for the board restart.
type NopResetLine struct {
	Logger *slog.Logger
}

func (n NopResetLine) Low() error {
	n.Logger.Info("reset line low (no-op)")
	return nil
}

func (n NopResetLine) High() error {
	n.Logger.Info("reset line high (no-op)")
	return nil
}
