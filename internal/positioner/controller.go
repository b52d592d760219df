// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package positioner estimates and controls the position of an actuator
// driven by two binary lines (down/up) without any position feedback.
//
// The position is derived from how long each line has been driven. Every
// move adds to the position uncertainty; moves into an end of travel and
// full calibrations remove it again.
//
// Controller is not safe for concurrent use. Callers serialize Tick and
// may share read access to State between calls.
package positioner

import (
	"time"
)

// maxSteps bounds the transitions evaluated within a single Tick. The
// longest chain is Moving -> Moving (replanned) -> Stopped -> Uncalibrated
// -> Calibrating.
const maxSteps = 8

// Controller is the sensorless position controller.
type Controller struct {
	configuration Configuration
	state         State
}

// New returns a Controller that starts Stopped at initial, or Uncalibrated
// when initial is nil.
func New(configuration Configuration, initial *Position) (*Controller, error) {
	if err := configuration.Validate(); err != nil {
		return nil, err
	}

	var state State = Uncalibrated{}
	if initial != nil {
		if _, err := NewRatio(float64(initial.Position)); err != nil {
			return nil, &ConfigError{Field: "initial_position", Reason: "must be within [0, 1]", Err: err}
		}
		if _, err := NewRatio(float64(initial.Uncertainty)); err != nil {
			return nil, &ConfigError{Field: "initial_uncertainty", Reason: "must be within [0, 1]", Err: err}
		}
		state = Stopped{Position: *initial}
	}

	return &Controller{
		configuration: configuration,
		state:         state,
	}, nil
}

// Configuration returns the validated configuration.
func (c *Controller) Configuration() Configuration {
	return c.configuration
}

// State returns the current state.
func (c *Controller) State() State {
	return c.state
}

// Position returns the best estimate of the position at now, or nil while
// the position is unknown. It does not change the state.
func (c *Controller) Position(now time.Time) *Position {
	switch s := c.state.(type) {
	case Stopped:
		p := s.Position
		return &p
	case Moving:
		elapsed := min(since(s.Started, now), s.Duration)
		p := c.configuration.stopPosition(s.StartedPosition, s.Direction, elapsed)
		return &p
	default:
		return nil
	}
}

// Tick advances the state machine to now with the desired setpoint (nil
// for none) and returns the output to apply together with the deadline for
// the next call.
//
// Tick must be called whenever setpoint changes and no later than the
// returned Next. Calling it late is fine: any transitions that fell due in
// the meantime are taken within the same call.
func (c *Controller) Tick(now time.Time, setpoint *Ratio) Tick {
	for range maxSteps {
		next, tick, done := c.step(now, setpoint)
		if done {
			return tick
		}
		c.state = next
	}

	// Not reachable with a validated configuration.
	return idle()
}

// step evaluates the current state once. It either returns a new state to
// evaluate next, or the Tick to hand back to the caller with done set.
func (c *Controller) step(now time.Time, setpoint *Ratio) (State, Tick, bool) {
	switch s := c.state.(type) {
	case Uncalibrated:
		return c.stepUncalibrated(now, setpoint)
	case Calibrating:
		return c.stepCalibrating(s, now, setpoint)
	case Stopped:
		return c.stepStopped(s, now, setpoint)
	case Moving:
		return c.stepMoving(s, now, setpoint)
	default:
		return Uncalibrated{}, Tick{}, false
	}
}

func (c *Controller) stepUncalibrated(now time.Time, setpoint *Ratio) (State, Tick, bool) {
	if setpoint == nil {
		return nil, idle(), true
	}
	return c.calibrate(now, *setpoint), Tick{}, false
}

func (c *Controller) calibrate(now time.Time, setpoint Ratio) Calibrating {
	direction := calibrationDirection(setpoint)
	return Calibrating{
		Started:   now,
		Direction: direction,
		Duration:  c.configuration.calibrationDuration(direction),
	}
}

func (c *Controller) stepCalibrating(s Calibrating, now time.Time, setpoint *Ratio) (State, Tick, bool) {
	if setpoint == nil {
		return Uncalibrated{}, Tick{}, false
	}
	if calibrationDirection(*setpoint) != s.Direction {
		return c.calibrate(now, *setpoint), Tick{}, false
	}

	elapsed := since(s.Started, now)
	switch {
	case elapsed >= s.Duration:
		// The end stop is authoritative.
		return Stopped{Position: Exact(s.Direction.limit())}, Tick{}, false
	case elapsed >= c.configuration.StartDelay:
		direction := s.Direction
		return nil, waiting(&direction, s.Duration-elapsed), true
	default:
		return nil, waiting(nil, c.configuration.StartDelay-elapsed), true
	}
}

func (c *Controller) stepStopped(s Stopped, now time.Time, setpoint *Ratio) (State, Tick, bool) {
	if setpoint == nil {
		return nil, idle(), true
	}

	offset := *setpoint - s.Position.Position
	if offset < 0 {
		offset = -offset
	}
	if offset <= c.configuration.PositionOffsetMax {
		return nil, idle(), true
	}

	if s.Position.Uncertainty > c.configuration.PositionUncertaintyMax {
		return Uncalibrated{}, Tick{}, false
	}

	duration, direction := c.configuration.plan(s.Position, *setpoint)
	return Moving{
		Started:         now,
		StartedPosition: s.Position,
		Setpoint:        *setpoint,
		Duration:        duration,
		Direction:       direction,
	}, Tick{}, false
}

func (c *Controller) stepMoving(s Moving, now time.Time, setpoint *Ratio) (State, Tick, bool) {
	elapsed := since(s.Started, now)

	if setpoint == nil {
		return c.stop(s, elapsed), Tick{}, false
	}

	if *setpoint != s.Setpoint {
		// Replan from where this move started, the only point the
		// timing model is anchored to.
		duration, direction := c.configuration.plan(s.StartedPosition, *setpoint)
		if direction != s.Direction {
			return c.stop(s, elapsed), Tick{}, false
		}
		s.Setpoint = *setpoint
		s.Duration = duration
		return s, Tick{}, false
	}

	switch {
	case elapsed >= s.Duration:
		return c.stop(s, elapsed), Tick{}, false
	case elapsed >= c.configuration.StartDelay:
		direction := s.Direction
		return nil, waiting(&direction, s.Duration-elapsed), true
	default:
		return nil, waiting(nil, c.configuration.StartDelay-elapsed), true
	}
}

func (c *Controller) stop(s Moving, elapsed time.Duration) Stopped {
	return Stopped{Position: c.configuration.stopPosition(s.StartedPosition, s.Direction, elapsed)}
}

// since returns now - started, treating a clock that went backwards as no
// elapsed time.
func since(started, now time.Time) time.Duration {
	return max(now.Sub(started), 0)
}
