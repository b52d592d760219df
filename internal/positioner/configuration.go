// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package positioner

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfiguration is wrapped by every ConfigError.
var ErrInvalidConfiguration = errors.New("invalid configuration")

// ConfigError reports which Configuration field failed validation.
type ConfigError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%v: %s %s", ErrInvalidConfiguration, e.Field, e.Reason)
}

// Is matches ErrInvalidConfiguration, and ErrOutOfRange when the
// failure was a domain violation.
func (e *ConfigError) Is(target error) bool {
	return target == ErrInvalidConfiguration || (e.Err != nil && errors.Is(e.Err, target))
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Configuration describes the actuator timing and the position error model.
type Configuration struct {
	// Time to traverse the whole range once moving.
	TravelDown time.Duration `json:"travel_down"`
	TravelUp   time.Duration `json:"travel_up"`

	// Delay between energizing a line and the actuator starting to move.
	DeadDown time.Duration `json:"dead_down"`
	DeadUp   time.Duration `json:"dead_up"`

	// Debounce before any command is issued.
	StartDelay time.Duration `json:"start_delay"`

	// Offsets at or below this are treated as "already there".
	PositionOffsetMax Ratio `json:"position_offset_max"`

	// Uncertainty above this forces a full calibration before the next partial move.
	PositionUncertaintyMax Ratio `json:"position_uncertainty_max"`

	// Each move adds MoveConstant + MoveRelative * (fraction moved) to the uncertainty.
	PositionUncertaintyMoveConstant Ratio `json:"position_uncertainty_move_constant"`
	PositionUncertaintyMoveRelative Ratio `json:"position_uncertainty_move_relative"`
}

// DefaultConfiguration returns timings typical for a roller blind.
func DefaultConfiguration() Configuration {
	return Configuration{
		TravelDown:                      9 * time.Second,
		TravelUp:                        11 * time.Second,
		DeadDown:                        4 * time.Second,
		DeadUp:                          3 * time.Second,
		StartDelay:                      1 * time.Second,
		PositionOffsetMax:               0.01,
		PositionUncertaintyMax:          0.05,
		PositionUncertaintyMoveConstant: 0.0025,
		PositionUncertaintyMoveRelative: 0.005,
	}
}

// Validate checks the configuration invariants.
func (c Configuration) Validate() error {
	durations := []struct {
		field    string
		value    time.Duration
		positive bool
	}{
		{"travel_down", c.TravelDown, true},
		{"travel_up", c.TravelUp, true},
		{"dead_down", c.DeadDown, false},
		{"dead_up", c.DeadUp, false},
		{"start_delay", c.StartDelay, false},
	}
	for _, d := range durations {
		if d.value < 0 {
			return &ConfigError{Field: d.field, Reason: "must not be negative", Err: ErrOutOfRange}
		}
		if d.positive && d.value == 0 {
			return &ConfigError{Field: d.field, Reason: "must be greater than zero"}
		}
	}

	ratios := []struct {
		field string
		value Ratio
	}{
		{"position_offset_max", c.PositionOffsetMax},
		{"position_uncertainty_max", c.PositionUncertaintyMax},
		{"position_uncertainty_move_constant", c.PositionUncertaintyMoveConstant},
		{"position_uncertainty_move_relative", c.PositionUncertaintyMoveRelative},
	}
	for _, r := range ratios {
		if _, err := NewRatio(float64(r.value)); err != nil {
			return &ConfigError{Field: r.field, Reason: "must be within [0, 1]", Err: err}
		}
	}

	if c.PositionOffsetMax <= 0 {
		return &ConfigError{Field: "position_offset_max", Reason: "must be greater than zero"}
	}

	// Uncertainty must either never grow or eventually trigger a calibration.
	if c.PositionUncertaintyMax <= 0 &&
		(c.PositionUncertaintyMoveConstant > 0 || c.PositionUncertaintyMoveRelative > 0) {
		return &ConfigError{
			Field:  "position_uncertainty_max",
			Reason: "must be greater than zero when move uncertainty is configured",
		}
	}

	return nil
}

func (c Configuration) travel(d Direction) time.Duration {
	if d == DirectionUp {
		return c.TravelUp
	}
	return c.TravelDown
}

func (c Configuration) dead(d Direction) time.Duration {
	if d == DirectionUp {
		return c.DeadUp
	}
	return c.DeadDown
}
