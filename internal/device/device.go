// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package device runs a positioner.Controller against a real clock and a
// physical output, and fans its state out to subscribers.
package device

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/relabs-tech/updown_controller/internal/actuator"
	"github.com/relabs-tech/updown_controller/internal/positioner"
)

// retryInterval bounds the wait after a failed output change.
const retryInterval = time.Second

// Clock tells the current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock is the wall clock.
var SystemClock Clock = systemClock{}

// Options configure a Device.
type Options struct {
	Name       string
	Controller *positioner.Controller
	Output     actuator.Output
	// Clock defaults to SystemClock.
	Clock Clock
	// PublishInterval, if set, refreshes the state this often while a
	// line is energized so subscribers can follow the move.
	PublishInterval time.Duration
}

// Snapshot is the device state after a tick.
type Snapshot struct {
	Name     string               `json:"name"`
	State    string               `json:"state"`
	Detail   string               `json:"detail"`
	Setpoint *positioner.Ratio    `json:"setpoint"`
	Position *positioner.Position `json:"position"`
	// Lowest and Highest bound the actual position.
	Lowest  *positioner.Ratio `json:"lowest,omitempty"`
	Highest *positioner.Ratio `json:"highest,omitempty"`
	Output  string            `json:"output"`
	// Error is set when the output could not be changed.
	Error     string    `json:"error,omitempty"`
	NextMs    *int64    `json:"next_ms"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Device owns one controller. All methods are safe for concurrent use.
type Device struct {
	name            string
	clock           Clock
	output          actuator.Output
	publishInterval time.Duration

	// updateMu serializes ticks and output changes. mu only guards state,
	// never hardware I/O.
	updateMu sync.Mutex

	mu         sync.RWMutex
	controller *positioner.Controller
	setpoint   *positioner.Ratio
	last       *Snapshot

	wake chan struct{}

	subsMu sync.Mutex
	subs   map[chan Snapshot]struct{}
}

func New(opts Options) (*Device, error) {
	if opts.Controller == nil {
		return nil, errors.New("device: controller is required")
	}
	if opts.Output == nil {
		return nil, errors.New("device: output is required")
	}
	clock := opts.Clock
	if clock == nil {
		clock = SystemClock
	}
	return &Device{
		name:            opts.Name,
		clock:           clock,
		output:          opts.Output,
		publishInterval: opts.PublishInterval,
		controller:      opts.Controller,
		wake:            make(chan struct{}, 1),
		subs:            make(map[chan Snapshot]struct{}),
	}, nil
}

func (d *Device) Name() string { return d.name }

// SetSetpoint sets the desired position, nil for none, and wakes Run.
func (d *Device) SetSetpoint(setpoint *positioner.Ratio) {
	d.mu.Lock()
	if setpoint != nil {
		sp := *setpoint
		d.setpoint = &sp
	} else {
		d.setpoint = nil
	}
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Setpoint returns the current setpoint, nil for none.
func (d *Device) Setpoint() *positioner.Ratio {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.setpoint == nil {
		return nil
	}
	sp := *d.setpoint
	return &sp
}

// Snapshot returns the state published by the latest tick. ok is false
// before the first tick.
func (d *Device) Snapshot() (Snapshot, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.last == nil {
		return Snapshot{}, false
	}
	return *d.last, true
}

// Update ticks the controller, applies the output and publishes a
// snapshot. It returns how long until the next update is due, nil if only
// a setpoint change needs one.
//
// A failed output change leaves the lines in an unknown state, so the
// position estimate is dropped and the next setpoint recalibrates.
func (d *Device) Update() *time.Duration {
	d.updateMu.Lock()
	defer d.updateMu.Unlock()

	d.mu.Lock()
	now := d.clock.Now()
	previous := d.last
	tick := d.controller.Tick(now, d.setpoint)
	snap := d.snapshotLocked(now, tick)
	d.last = &snap
	d.mu.Unlock()

	wait := tick.Next
	if err := d.output.Apply(tick.Output); err != nil {
		log.Printf("device: %s: apply output %s: %v", d.name, actuator.Name(tick.Output), err)
		wait = earliest(wait, retryInterval)

		d.mu.Lock()
		if _, ok := d.controller.State().(positioner.Uncalibrated); !ok {
			log.Printf("device: %s: position unknown after output failure, will recalibrate", d.name)
			d.resetLocked()
		}
		snap = d.snapshotLocked(now, tick)
		snap.Error = err.Error()
		d.last = &snap
		d.mu.Unlock()
	} else if tick.Output != nil && d.publishInterval > 0 {
		wait = earliest(wait, d.publishInterval)
	}

	if previous == nil || previous.Detail != snap.Detail || previous.Output != snap.Output {
		log.Printf("device: %s: %s, output %s", d.name, snap.Detail, snap.Output)
	}
	d.broadcast(snap)
	return wait
}

// resetLocked replaces the controller by an uncalibrated one with the
// same configuration.
func (d *Device) resetLocked() {
	controller, err := positioner.New(d.controller.Configuration(), nil)
	if err != nil {
		// The configuration was validated when the controller was created.
		log.Printf("device: %s: reset controller: %v", d.name, err)
		return
	}
	d.controller = controller
}

func (d *Device) snapshotLocked(now time.Time, tick positioner.Tick) Snapshot {
	state := d.controller.State()
	snap := Snapshot{
		Name:      d.name,
		State:     state.Name(),
		Detail:    fmt.Sprint(state),
		Position:  d.controller.Position(now),
		Output:    actuator.Name(tick.Output),
		UpdatedAt: now,
	}
	if snap.Position != nil {
		lowest, highest := snap.Position.Bounds()
		snap.Lowest, snap.Highest = &lowest, &highest
	}
	if d.setpoint != nil {
		sp := *d.setpoint
		snap.Setpoint = &sp
	}
	if tick.Next != nil {
		ms := tick.Next.Milliseconds()
		snap.NextMs = &ms
	}
	return snap
}

func earliest(wait *time.Duration, limit time.Duration) *time.Duration {
	if wait == nil || *wait > limit {
		return &limit
	}
	return wait
}

// Run ticks the controller whenever the setpoint changes or the next
// deadline expires, until ctx is cancelled. On return both lines are
// released. The output itself is not closed.
func (d *Device) Run(ctx context.Context) error {
	log.Printf("device: %s: running", d.name)

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		var due <-chan time.Time
		if wait := d.Update(); wait != nil {
			timer.Reset(*wait)
			due = timer.C
		}

		select {
		case <-ctx.Done():
			log.Printf("device: %s: stopping", d.name)
			return d.release()
		case <-d.wake:
		case <-due:
		}
		timer.Stop()
	}
}

func (d *Device) release() error {
	d.updateMu.Lock()
	defer d.updateMu.Unlock()
	if err := d.output.Apply(nil); err != nil {
		return fmt.Errorf("release output: %w", err)
	}
	return nil
}

// Subscribe returns a channel receiving every published snapshot. A slow
// reader only misses intermediate snapshots, the latest one is always
// kept. Call the returned function to unsubscribe.
func (d *Device) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	d.subsMu.Lock()
	d.subs[ch] = struct{}{}
	d.subsMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			d.subsMu.Lock()
			delete(d.subs, ch)
			close(ch)
			d.subsMu.Unlock()
		})
	}
}

func (d *Device) broadcast(snap Snapshot) {
	d.subsMu.Lock()
	defer d.subsMu.Unlock()

	for ch := range d.subs {
		select {
		case ch <- snap:
			continue
		default:
		}
		// Full: drop the stale snapshot.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}
