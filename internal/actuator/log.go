// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package actuator

import (
	"log"

	"github.com/relabs-tech/updown_controller/internal/positioner"
)

type logLines struct {
	name string
}

// NewLogOutput only logs line changes. Useful without hardware attached.
func NewLogOutput(name string) Output {
	return newInterlocked(&logLines{name: name})
}

func (l *logLines) set(line positioner.Direction, on bool) error {
	state := "released"
	if on {
		state = "energized"
	}
	log.Printf("actuator: %s %v line %s", l.name, line, state)
	return nil
}

func (l *logLines) close() error {
	return nil
}
