// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package bus

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/updown_controller/internal/device"
	"github.com/relabs-tech/updown_controller/internal/positioner"
)

type doneToken struct {
	mqtt.Token
	err error
}

func (t doneToken) Wait() bool   { return true }
func (t doneToken) Error() error { return t.err }

type published struct {
	topic    string
	retained bool
	payload  string
}

type fakePublisher struct {
	messages []published
	err      error
}

func (p *fakePublisher) Publish(topic string, _ byte, retained bool, payload interface{}) mqtt.Token {
	var s string
	switch v := payload.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	}
	p.messages = append(p.messages, published{topic, retained, s})
	return doneToken{err: p.err}
}

type fakeMessage struct {
	mqtt.Message
	payload string
}

func (m fakeMessage) Topic() string   { return "updown/test/setpoint" }
func (m fakeMessage) Payload() []byte { return []byte(m.payload) }

type recordingSetter struct {
	calls    int
	setpoint *positioner.Ratio
}

func (s *recordingSetter) SetSetpoint(setpoint *positioner.Ratio) {
	s.calls++
	s.setpoint = setpoint
}

var topics = Topics{
	Setpoint: "updown/test/setpoint",
	State:    "updown/test/state",
	Output:   "updown/test/output",
}

func TestParseSetpoint(t *testing.T) {
	tests := []struct {
		payload  string
		expected *float64
		wantErr  bool
	}{
		{"0.3", ptr(0.3), false},
		{" 1 \n", ptr(1), false},
		{"0", ptr(0), false},
		{"null", nil, false},
		{"", nil, false},
		{"1.5", nil, true},
		{"-0.1", nil, true},
		{`"0.3"`, nil, true},
		{"up", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.payload, func(t *testing.T) {
			got, err := ParseSetpoint([]byte(tt.payload))
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			switch {
			case tt.expected == nil && got != nil:
				t.Errorf("expected no setpoint, got %v", *got)
			case tt.expected != nil && (got == nil || got.Float64() != *tt.expected):
				t.Errorf("expected %v, got %v", *tt.expected, got)
			}
		})
	}
}

func TestParseSetpoint_OutOfRange(t *testing.T) {
	_, err := ParseSetpoint([]byte("2"))
	if !errors.Is(err, positioner.ErrOutOfRange) {
		t.Errorf("expected ErrOutOfRange, got %v", err)
	}
}

func ptr(v float64) *float64 { return &v }

func TestHandleSetpoint(t *testing.T) {
	setter := &recordingSetter{}
	b := NewBridge(setter, topics)

	b.HandleSetpoint(nil, fakeMessage{payload: "0.75"})
	if setter.calls != 1 || setter.setpoint == nil || *setter.setpoint != 0.75 {
		t.Fatalf("expected setpoint 0.75, got %v after %d calls", setter.setpoint, setter.calls)
	}

	b.HandleSetpoint(nil, fakeMessage{payload: "garbage"})
	if setter.calls != 1 {
		t.Error("invalid payload must be ignored")
	}

	b.HandleSetpoint(nil, fakeMessage{payload: "null"})
	if setter.calls != 2 || setter.setpoint != nil {
		t.Errorf("expected setpoint cleared, got %v", setter.setpoint)
	}
}

func TestPublish(t *testing.T) {
	pub := &fakePublisher{}
	b := NewBridge(&recordingSetter{}, topics)
	b.client = pub

	snap := device.Snapshot{Name: "test", State: "moving", Output: "up"}
	if err := b.Publish(snap); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := b.Publish(snap); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(pub.messages) != 3 {
		t.Fatalf("expected state twice and output once, got %+v", pub.messages)
	}

	state := pub.messages[0]
	if state.topic != topics.State || !state.retained {
		t.Errorf("unexpected state message %+v", state)
	}
	var decoded device.Snapshot
	if err := json.Unmarshal([]byte(state.payload), &decoded); err != nil {
		t.Fatalf("state payload is not JSON: %v", err)
	}
	if decoded.State != "moving" || decoded.Name != "test" {
		t.Errorf("unexpected decoded state %+v", decoded)
	}

	output := pub.messages[1]
	if output.topic != topics.Output || output.payload != "up" || !output.retained {
		t.Errorf("unexpected output message %+v", output)
	}
}

func TestPublish_Errors(t *testing.T) {
	b := NewBridge(&recordingSetter{}, topics)
	if err := b.Publish(device.Snapshot{}); err == nil {
		t.Error("expected error before connecting")
	}

	b.client = &fakePublisher{err: errors.New("broker gone")}
	if err := b.Publish(device.Snapshot{Output: "none"}); err == nil {
		t.Error("expected publish error")
	}
}

func TestRun(t *testing.T) {
	pub := &fakePublisher{}
	b := NewBridge(&recordingSetter{}, topics)
	b.client = pub

	snapshots := make(chan device.Snapshot, 2)
	snapshots <- device.Snapshot{Output: "none"}
	snapshots <- device.Snapshot{Output: "down"}
	close(snapshots)

	if err := b.Run(context.Background(), snapshots); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pub.messages) != 4 {
		t.Errorf("expected 4 messages, got %+v", pub.messages)
	}
}
