// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package actuator turns a movement direction into the two physical
// control lines of an up/down actuator.
package actuator

import (
	"errors"
	"fmt"
	"sync"

	"github.com/relabs-tech/updown_controller/internal/positioner"
)

// Output drives the down and up lines.
type Output interface {
	// Apply energizes the line for dir, or releases both lines when dir is nil.
	Apply(dir *positioner.Direction) error
	Close() error
}

// lineDriver switches a single line.
type lineDriver interface {
	set(line positioner.Direction, on bool) error
	close() error
}

// interlocked never energizes both lines at once. Changing direction
// always releases the active line before energizing the other one.
type interlocked struct {
	mu     sync.Mutex
	driver lineDriver
	active *positioner.Direction
	closed bool
}

func newInterlocked(driver lineDriver) *interlocked {
	return &interlocked{driver: driver}
}

// ErrClosed is returned when applying to a closed output.
var ErrClosed = errors.New("output closed")

func (o *interlocked) Apply(dir *positioner.Direction) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return ErrClosed
	}
	if sameDirection(o.active, dir) {
		return nil
	}

	if o.active != nil {
		if err := o.driver.set(*o.active, false); err != nil {
			return fmt.Errorf("release %v line: %w", *o.active, err)
		}
		o.active = nil
	}

	if dir != nil {
		if err := o.driver.set(*dir, true); err != nil {
			return fmt.Errorf("energize %v line: %w", *dir, err)
		}
		d := *dir
		o.active = &d
	}

	return nil
}

func (o *interlocked) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return nil
	}
	o.closed = true

	var errs []error
	if o.active != nil {
		if err := o.driver.set(*o.active, false); err != nil {
			errs = append(errs, fmt.Errorf("release %v line: %w", *o.active, err))
		}
		o.active = nil
	}
	if err := o.driver.close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func sameDirection(a, b *positioner.Direction) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// Name formats dir as "down", "up" or "none".
func Name(dir *positioner.Direction) string {
	if dir == nil {
		return "none"
	}
	return dir.String()
}
