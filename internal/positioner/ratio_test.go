// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package positioner

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestNewRatio(t *testing.T) {
	tests := []struct {
		name  string
		value float64
		ok    bool
	}{
		{"zero", 0, true},
		{"half", 0.5, true},
		{"one", 1, true},
		{"negative", -0.001, false},
		{"above one", 1.001, false},
		{"NaN", math.NaN(), false},
		{"infinity", math.Inf(1), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewRatio(tt.value)
			if tt.ok {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				if r.Float64() != tt.value {
					t.Errorf("expected %v, got %v", tt.value, r.Float64())
				}
				return
			}
			if !errors.Is(err, ErrOutOfRange) {
				t.Errorf("expected ErrOutOfRange, got %v", err)
			}
		})
	}
}

func TestDurationFromSeconds(t *testing.T) {
	d, err := DurationFromSeconds(1.5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d != 1500*time.Millisecond {
		t.Errorf("expected 1.5s, got %v", d)
	}

	for _, v := range []float64{-1, math.NaN(), math.Inf(1)} {
		if _, err := DurationFromSeconds(v); !errors.Is(err, ErrOutOfRange) {
			t.Errorf("%v: expected ErrOutOfRange, got %v", v, err)
		}
	}
}

func TestMultiplier_Scale(t *testing.T) {
	if got := Multiplier(0.5).scale(time.Second); got != 500*time.Millisecond {
		t.Errorf("expected 500ms, got %v", got)
	}
	if got := Multiplier(1e-12).scale(time.Nanosecond); got != time.Nanosecond {
		t.Errorf("expected tiny positive scale to stay positive, got %v", got)
	}
	if got := Multiplier(0).scale(time.Second); got != 0 {
		t.Errorf("expected zero, got %v", got)
	}
	if got := Multiplier(0.25).scaleUp(10 * time.Nanosecond); got != 3*time.Nanosecond {
		t.Errorf("expected 3ns, got %v", got)
	}
}

func TestPosition_Bounds(t *testing.T) {
	lo, hi := Position{Position: 0.95, Uncertainty: 0.1}.Bounds()
	if !approx(float64(lo), 0.85) || hi != RatioFull {
		t.Errorf("expected [0.85, 1], got [%v, %v]", float64(lo), float64(hi))
	}
}

func TestDirection(t *testing.T) {
	if DirectionDown.String() != "down" || DirectionUp.String() != "up" {
		t.Errorf("unexpected names %q, %q", DirectionDown, DirectionUp)
	}
}
