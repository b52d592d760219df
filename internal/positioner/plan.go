// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package positioner

import (
	"math"
	"time"
)

// uncertaintyEpsilon is the residue below which an uncertainty is zero.
const uncertaintyEpsilon = 1e-12

// calibrationDirection picks the end of travel nearer to setpoint.
func calibrationDirection(setpoint Ratio) Direction {
	if setpoint <= RatioHalf {
		return DirectionDown
	}
	return DirectionUp
}

// calibrationDuration is a full traversal in d, padded by the largest
// error a single move may accumulate.
func (c Configuration) calibrationDuration(d Direction) time.Duration {
	travel := Multiplier(1 +
		float64(c.PositionUncertaintyMoveConstant) +
		float64(c.PositionUncertaintyMoveRelative))
	return c.StartDelay + c.dead(d) + travel.scale(c.travel(d))
}

// plan returns how long and in which direction to drive from position to setpoint.
//
// Targets exactly at 0.0 or 1.0 are overdriven by the worst case error of
// the position so the end stop absorbs it and the move recalibrates.
func (c Configuration) plan(position Position, setpoint Ratio) (time.Duration, Direction) {
	direction := DirectionUp
	if setpoint <= position.Position {
		direction = DirectionDown
	}

	offset := math.Abs(float64(setpoint) - float64(position.Position))

	if setpoint != RatioZero && setpoint != RatioFull {
		travel := Multiplier(offset)
		return c.StartDelay + c.dead(direction) + travel.scale(c.travel(direction)), direction
	}

	extra := float64(position.Uncertainty) +
		float64(c.PositionUncertaintyMoveConstant) +
		float64(c.PositionUncertaintyMoveRelative)*offset

	// Rounded up so the end stop is always reached.
	travel := Multiplier(offset + extra)
	return c.StartDelay + c.dead(direction) + travel.scaleUp(c.travel(direction)), direction
}

// movedFraction is the share of full travel covered after driving
// direction for elapsed, including start delay and dead time.
func (c Configuration) movedFraction(direction Direction, elapsed time.Duration) Multiplier {
	moving := elapsed - c.StartDelay - c.dead(direction)
	if moving <= 0 {
		return 0
	}
	return Multiplier(float64(moving) / float64(c.travel(direction)))
}

// stopPosition estimates where a move from started ends after elapsed.
//
// Each move adds the configured error. Whatever was driven past an end of
// travel is subtracted from it, since the end stop re-anchors the estimate.
func (c Configuration) stopPosition(started Position, direction Direction, elapsed time.Duration) Position {
	moved := c.movedFraction(direction, elapsed)
	if moved <= 0 {
		return started
	}

	raw := float64(started.Position)
	if direction == DirectionUp {
		raw += float64(moved)
	} else {
		raw -= float64(moved)
	}
	clamped := clampRatio(raw)

	useful := math.Abs(float64(clamped) - float64(started.Position))
	overdrive := math.Abs(raw - float64(clamped))

	uncertainty := clampRatio(float64(started.Uncertainty) +
		float64(c.PositionUncertaintyMoveConstant) +
		float64(c.PositionUncertaintyMoveRelative)*useful -
		overdrive)
	if uncertainty < uncertaintyEpsilon {
		uncertainty = 0
	}

	return Position{Position: clamped, Uncertainty: uncertainty}
}
