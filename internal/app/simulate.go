// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"cmp"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/relabs-tech/updown_controller/internal/positioner"
)

// maxSimulatedTicks guards against a schedule that never settles.
const maxSimulatedTicks = 10000

// ScheduledSetpoint sets Setpoint (nil for none) At after the start.
type ScheduledSetpoint struct {
	At       time.Duration
	Setpoint *positioner.Ratio
}

// ParseSchedule parses setpoints written as VALUE or VALUE@OFFSET, where
// VALUE is a ratio or "none" and OFFSET a Go duration. Without an offset
// the setpoint applies at the start.
//
//	0.7 none@5s 1@12.5s
func ParseSchedule(args []string) ([]ScheduledSetpoint, error) {
	schedule := make([]ScheduledSetpoint, 0, len(args))
	for _, arg := range args {
		value, offset, hasOffset := strings.Cut(arg, "@")

		var item ScheduledSetpoint
		if hasOffset {
			at, err := time.ParseDuration(offset)
			if err != nil {
				return nil, fmt.Errorf("invalid offset in %q: %w", arg, err)
			}
			if at < 0 {
				return nil, fmt.Errorf("negative offset in %q", arg)
			}
			item.At = at
		}

		if value != "none" {
			v, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid setpoint in %q: %w", arg, err)
			}
			r, err := positioner.NewRatio(v)
			if err != nil {
				return nil, fmt.Errorf("invalid setpoint in %q: %w", arg, err)
			}
			item.Setpoint = &r
		}

		schedule = append(schedule, item)
	}

	slices.SortStableFunc(schedule, func(a, b ScheduledSetpoint) int {
		return cmp.Compare(a.At, b.At)
	})
	return schedule, nil
}

// Simulate drives a controller through schedule on a virtual clock,
// writing one line per tick to w, and returns the state it settles in.
func Simulate(w io.Writer, cfg positioner.Configuration, initial *positioner.Position, schedule []ScheduledSetpoint) (positioner.State, error) {
	controller, err := positioner.New(cfg, initial)
	if err != nil {
		return nil, err
	}

	start := time.Unix(0, 0).UTC()
	var (
		elapsed  time.Duration
		setpoint *positioner.Ratio
		pending  = schedule
	)

	for range maxSimulatedTicks {
		for len(pending) > 0 && pending[0].At <= elapsed {
			setpoint = pending[0].Setpoint
			pending = pending[1:]
		}

		now := start.Add(elapsed)
		tick := controller.Tick(now, setpoint)
		fmt.Fprintf(w, "%9.3fs  setpoint=%-7s  %-10s %-14s %v\n",
			elapsed.Seconds(), formatSetpoint(setpoint), controller.State().Name(),
			formatPosition(controller.Position(now)), tick)

		var next *time.Duration
		if tick.Next != nil {
			at := elapsed + *tick.Next
			next = &at
		}
		if len(pending) > 0 && (next == nil || pending[0].At < *next) {
			next = &pending[0].At
		}
		if next == nil {
			return controller.State(), nil
		}
		elapsed = *next
	}

	return controller.State(), fmt.Errorf("simulation did not settle after %d ticks", maxSimulatedTicks)
}

func formatSetpoint(setpoint *positioner.Ratio) string {
	if setpoint == nil {
		return "none"
	}
	return setpoint.String()
}

func formatPosition(p *positioner.Position) string {
	if p == nil {
		return "unknown"
	}
	return p.String()
}
