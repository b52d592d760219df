// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package actuator

import (
	"fmt"
	"io"

	"github.com/jacobsa/go-serial/serial"

	"github.com/relabs-tech/updown_controller/internal/positioner"
)

// relayHeader starts every frame of the common LC-style USB relay boards:
// A0 <channel> <state> <checksum>.
const relayHeader = 0xA0

type relayLines struct {
	port io.WriteCloser
	down byte
	up   byte
}

// NewSerialRelayOutput drives the lines through two channels of a serial
// relay board.
func NewSerialRelayOutput(portName string, baudRate int, downChannel, upChannel byte) (Output, error) {
	opts := serial.OpenOptions{
		PortName:              portName,
		BaudRate:              uint(baudRate),
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       0,
		InterCharacterTimeout: 100,
		ParityMode:            serial.PARITY_NONE,
	}

	port, err := serial.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open relay serial port %s: %w", portName, err)
	}

	out, err := newSerialRelayOutput(port, downChannel, upChannel)
	if err != nil {
		port.Close()
		return nil, err
	}
	return out, nil
}

func newSerialRelayOutput(port io.WriteCloser, downChannel, upChannel byte) (Output, error) {
	lines := &relayLines{port: port, down: downChannel, up: upChannel}
	if err := lines.set(positioner.DirectionDown, false); err != nil {
		return nil, fmt.Errorf("release down relay: %w", err)
	}
	if err := lines.set(positioner.DirectionUp, false); err != nil {
		return nil, fmt.Errorf("release up relay: %w", err)
	}
	return newInterlocked(lines), nil
}

// relayFrame builds the command switching channel on or off.
func relayFrame(channel byte, on bool) []byte {
	var state byte
	if on {
		state = 0x01
	}
	return []byte{relayHeader, channel, state, relayHeader + channel + state}
}

func (l *relayLines) set(line positioner.Direction, on bool) error {
	channel := l.down
	if line == positioner.DirectionUp {
		channel = l.up
	}
	_, err := l.port.Write(relayFrame(channel, on))
	return err
}

func (l *relayLines) close() error {
	return l.port.Close()
}
