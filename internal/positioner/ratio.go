// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package positioner

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrOutOfRange is returned when a value is outside the domain of its type.
var ErrOutOfRange = errors.New("value out of range")

// Ratio is a normalized value in [0.0, 1.0].
// 0.0 is fully down, 1.0 is fully up.
type Ratio float64

const (
	RatioZero Ratio = 0.0
	RatioHalf Ratio = 0.5
	RatioFull Ratio = 1.0
)

// NewRatio returns v as a Ratio, or ErrOutOfRange if v is not in [0, 1].
func NewRatio(v float64) (Ratio, error) {
	if math.IsNaN(v) || v < 0 || v > 1 {
		return 0, fmt.Errorf("ratio %v: %w", v, ErrOutOfRange)
	}
	return Ratio(v), nil
}

// MustRatio is like NewRatio but panics. Intended for constants and tests.
func MustRatio(v float64) Ratio {
	r, err := NewRatio(v)
	if err != nil {
		panic(err)
	}
	return r
}

// clampRatio saturates v into [0, 1].
func clampRatio(v float64) Ratio {
	switch {
	case math.IsNaN(v), v < 0:
		return RatioZero
	case v > 1:
		return RatioFull
	default:
		return Ratio(v)
	}
}

func (r Ratio) Float64() float64 { return float64(r) }

func (r Ratio) String() string {
	return fmt.Sprintf("%.2f%%", float64(r)*100)
}

// Multiplier is a non-negative unitless scale, usually a fraction of full travel.
// Unlike Ratio it may exceed 1.0.
type Multiplier float64

// scale returns d multiplied by m, rounded to the nearest nanosecond.
// A positive product never rounds down to zero.
func (m Multiplier) scale(d time.Duration) time.Duration {
	product := float64(d) * float64(m)
	scaled := time.Duration(math.Round(product))
	if scaled == 0 && product > 0 {
		return 1
	}
	return scaled
}

// scaleUp is like scale but rounds up.
func (m Multiplier) scaleUp(d time.Duration) time.Duration {
	return time.Duration(math.Ceil(float64(d) * float64(m)))
}

// DurationFromSeconds builds a non-negative duration from seconds.
func DurationFromSeconds(s float64) (time.Duration, error) {
	if math.IsNaN(s) || math.IsInf(s, 0) || s < 0 {
		return 0, fmt.Errorf("duration %vs: %w", s, ErrOutOfRange)
	}
	return time.Duration(math.Round(s * float64(time.Second))), nil
}

// Direction is the movement direction of the actuator.
type Direction int

const (
	DirectionDown Direction = iota
	DirectionUp
)

func (d Direction) String() string {
	switch d {
	case DirectionDown:
		return "down"
	case DirectionUp:
		return "up"
	default:
		return "unknown"
	}
}

// limit is the end of travel reached when moving in d.
func (d Direction) limit() Ratio {
	if d == DirectionUp {
		return RatioFull
	}
	return RatioZero
}

// Position is a position estimate. The actual position lies within
// Position ± Uncertainty, clamped to [0, 1].
type Position struct {
	Position    Ratio `json:"position"`
	Uncertainty Ratio `json:"uncertainty"`
}

// Exact returns a Position with zero uncertainty.
func Exact(p Ratio) Position {
	return Position{Position: p}
}

// Bounds returns the lowest and highest possible actual position.
func (p Position) Bounds() (Ratio, Ratio) {
	lo := clampRatio(float64(p.Position) - float64(p.Uncertainty))
	hi := clampRatio(float64(p.Position) + float64(p.Uncertainty))
	return lo, hi
}

func (p Position) String() string {
	return fmt.Sprintf("%v ± %v", p.Position, p.Uncertainty)
}
