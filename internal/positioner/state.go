// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package positioner

import (
	"fmt"
	"time"
)

// State is the controller state. It is one of Uncalibrated, Calibrating,
// Stopped or Moving.
type State interface {
	// Name is a stable lowercase identifier of the variant.
	Name() string
	isState()
}

// Uncalibrated means the position is unknown.
type Uncalibrated struct{}

// Calibrating drives towards an end of travel to establish a known position.
type Calibrating struct {
	Started   time.Time
	Direction Direction
	Duration  time.Duration
}

// Stopped is at rest with a known, possibly uncertain, position.
type Stopped struct {
	Position Position
}

// Moving drives towards Setpoint. The plan was made from StartedPosition at Started.
type Moving struct {
	Started         time.Time
	StartedPosition Position
	Setpoint        Ratio
	Duration        time.Duration
	Direction       Direction
}

func (Uncalibrated) Name() string { return "uncalibrated" }
func (Calibrating) Name() string  { return "calibrating" }
func (Stopped) Name() string      { return "stopped" }
func (Moving) Name() string       { return "moving" }

func (Uncalibrated) isState() {}
func (Calibrating) isState()  {}
func (Stopped) isState()      {}
func (Moving) isState()       {}

func (Uncalibrated) String() string { return "uncalibrated" }

func (s Calibrating) String() string {
	return fmt.Sprintf("calibrating %v for %v", s.Direction, s.Duration)
}

func (s Stopped) String() string {
	return fmt.Sprintf("stopped at %v", s.Position)
}

func (s Moving) String() string {
	return fmt.Sprintf("moving %v from %v to %v for %v", s.Direction, s.StartedPosition, s.Setpoint, s.Duration)
}

// Tick is the result of Controller.Tick.
type Tick struct {
	// Output is the direction to drive now, nil for neither line.
	Output *Direction
	// Next is the latest delay before Tick must be called again.
	// nil means only a setpoint change requires a new call.
	Next *time.Duration
}

func (t Tick) String() string {
	output, next := "none", "none"
	if t.Output != nil {
		output = t.Output.String()
	}
	if t.Next != nil {
		next = t.Next.String()
	}
	return fmt.Sprintf("output=%s next=%s", output, next)
}

func idle() Tick {
	return Tick{}
}

func waiting(output *Direction, next time.Duration) Tick {
	return Tick{Output: output, Next: &next}
}
