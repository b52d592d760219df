// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package actuator

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/updown_controller/internal/positioner"
)

type gpioLines struct {
	down      gpio.PinOut
	up        gpio.PinOut
	activeLow bool
}

// NewGPIOOutput drives the lines through two GPIO pins, looked up by name
// (e.g. "GPIO17"). Both pins start released.
func NewGPIOOutput(downPin, upPin string, activeLow bool) (Output, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}

	down := gpioreg.ByName(downPin)
	if down == nil {
		return nil, fmt.Errorf("down pin %q not found", downPin)
	}
	up := gpioreg.ByName(upPin)
	if up == nil {
		return nil, fmt.Errorf("up pin %q not found", upPin)
	}

	return newGPIOOutput(down, up, activeLow)
}

func newGPIOOutput(down, up gpio.PinOut, activeLow bool) (Output, error) {
	lines := &gpioLines{down: down, up: up, activeLow: activeLow}
	if err := lines.set(positioner.DirectionDown, false); err != nil {
		return nil, fmt.Errorf("release down pin: %w", err)
	}
	if err := lines.set(positioner.DirectionUp, false); err != nil {
		return nil, fmt.Errorf("release up pin: %w", err)
	}
	return newInterlocked(lines), nil
}

func (l *gpioLines) level(on bool) gpio.Level {
	if l.activeLow {
		return gpio.Level(!on)
	}
	return gpio.Level(on)
}

func (l *gpioLines) set(line positioner.Direction, on bool) error {
	pin := l.down
	if line == positioner.DirectionUp {
		pin = l.up
	}
	return pin.Out(l.level(on))
}

func (l *gpioLines) close() error {
	return nil
}
