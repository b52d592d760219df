// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package positioner

import (
	"math"
	"testing"
	"time"
)

var epoch = time.Unix(1_700_000_000, 0)

func at(d time.Duration) time.Time {
	return epoch.Add(d)
}

func setpoint(v float64) *Ratio {
	r := MustRatio(v)
	return &r
}

func dir(d Direction) *Direction {
	return &d
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func newController(t *testing.T, initial *Position) *Controller {
	t.Helper()
	c, err := New(DefaultConfiguration(), initial)
	if err != nil {
		t.Fatalf("unexpected error creating controller: %v", err)
	}
	return c
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func assertPosition(t *testing.T, got Position, position, uncertainty float64) {
	t.Helper()
	if !approx(float64(got.Position), position) || !approx(float64(got.Uncertainty), uncertainty) {
		t.Errorf("expected position %v ± %v, got %v ± %v",
			position, uncertainty, float64(got.Position), float64(got.Uncertainty))
	}
}

func assertDuration(t *testing.T, got, expected time.Duration) {
	t.Helper()
	diff := got - expected
	if diff < -time.Microsecond || diff > time.Microsecond {
		t.Errorf("expected duration %v, got %v", expected, got)
	}
}

func assertTick(t *testing.T, got Tick, output *Direction, next *time.Duration) {
	t.Helper()
	switch {
	case output == nil && got.Output != nil:
		t.Errorf("expected no output, got %v", *got.Output)
	case output != nil && got.Output == nil:
		t.Errorf("expected output %v, got none", *output)
	case output != nil && *output != *got.Output:
		t.Errorf("expected output %v, got %v", *output, *got.Output)
	}
	switch {
	case next == nil && got.Next != nil:
		t.Errorf("expected no deadline, got %v", *got.Next)
	case next != nil && got.Next == nil:
		t.Errorf("expected deadline %v, got none", *next)
	case next != nil:
		assertDuration(t, *got.Next, *next)
	}
}

func stopped(t *testing.T, s State) Stopped {
	t.Helper()
	st, ok := s.(Stopped)
	if !ok {
		t.Fatalf("expected stopped state, got %T (%v)", s, s)
	}
	return st
}

func moving(t *testing.T, s State) Moving {
	t.Helper()
	m, ok := s.(Moving)
	if !ok {
		t.Fatalf("expected moving state, got %T (%v)", s, s)
	}
	return m
}

func calibrating(t *testing.T, s State) Calibrating {
	t.Helper()
	c, ok := s.(Calibrating)
	if !ok {
		t.Fatalf("expected calibrating state, got %T (%v)", s, s)
	}
	return c
}

func next(d time.Duration) *time.Duration {
	return &d
}
