// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package actuator

import (
	"sync"

	"github.com/relabs-tech/updown_controller/internal/positioner"
)

// RecordingOutput keeps every applied direction in memory, for tests.
type RecordingOutput struct {
	mu      sync.Mutex
	applied []string
	closed  bool
	err     error
}

func NewRecordingOutput() *RecordingOutput {
	return &RecordingOutput{}
}

// Fail makes every following Apply return err. A nil err clears it.
func (r *RecordingOutput) Fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

func (r *RecordingOutput) Apply(dir *positioner.Direction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	if r.err != nil {
		return r.err
	}
	r.applied = append(r.applied, Name(dir))
	return nil
}

func (r *RecordingOutput) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

// Applied returns the directions applied so far, as "down", "up" or "none".
func (r *RecordingOutput) Applied() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.applied...)
}

// Last returns the most recently applied direction, or "" if none was applied yet.
func (r *RecordingOutput) Last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.applied) == 0 {
		return ""
	}
	return r.applied[len(r.applied)-1]
}

func (r *RecordingOutput) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}
