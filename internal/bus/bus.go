// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package bus bridges a device to MQTT: setpoints come in on one topic,
// state and output go out on two others.
package bus

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/updown_controller/internal/device"
	"github.com/relabs-tech/updown_controller/internal/positioner"
)

// Topics names the MQTT topics of one device.
type Topics struct {
	Setpoint string
	State    string
	Output   string
}

// SetpointSetter receives parsed setpoints.
type SetpointSetter interface {
	SetSetpoint(setpoint *positioner.Ratio)
}

// Publisher is the part of mqtt.Client the bridge publishes with.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// Bridge forwards setpoints to a device and publishes its snapshots.
type Bridge struct {
	setter SetpointSetter
	topics Topics

	mu         sync.Mutex
	client     Publisher
	lastOutput string
}

func NewBridge(setter SetpointSetter, topics Topics) *Bridge {
	return &Bridge{setter: setter, topics: topics}
}

// Connect connects to broker and subscribes to the setpoint topic. The
// subscription is renewed after every reconnect.
func (b *Bridge) Connect(broker, clientID string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetOnConnectHandler(b.subscribe).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.Printf("bus: connection to %s lost: %v", broker, err)
		})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connect to MQTT broker %s: %w", broker, token.Error())
	}
	log.Printf("bus: connected to MQTT broker at %s", broker)

	b.mu.Lock()
	b.client = client
	b.mu.Unlock()
	return client, nil
}

func (b *Bridge) subscribe(client mqtt.Client) {
	token := client.Subscribe(b.topics.Setpoint, 1, b.HandleSetpoint)
	token.Wait()
	if token.Error() != nil {
		log.Printf("bus: subscribe to %s: %v", b.topics.Setpoint, token.Error())
		return
	}
	log.Printf("bus: subscribed to %s", b.topics.Setpoint)
}

// HandleSetpoint is the mqtt.MessageHandler for the setpoint topic.
func (b *Bridge) HandleSetpoint(_ mqtt.Client, msg mqtt.Message) {
	setpoint, err := ParseSetpoint(msg.Payload())
	if err != nil {
		log.Printf("bus: ignoring setpoint on %s: %v", msg.Topic(), err)
		return
	}
	b.setter.SetSetpoint(setpoint)
}

// ParseSetpoint parses a setpoint payload: a JSON number in [0, 1], or
// null (or an empty payload) for no setpoint.
func ParseSetpoint(payload []byte) (*positioner.Ratio, error) {
	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 {
		return nil, nil
	}

	var v *float64
	if err := json.Unmarshal(payload, &v); err != nil {
		return nil, fmt.Errorf("invalid setpoint %q: %w", payload, err)
	}
	if v == nil {
		return nil, nil
	}

	r, err := positioner.NewRatio(*v)
	if err != nil {
		return nil, fmt.Errorf("invalid setpoint %v: %w", *v, err)
	}
	return &r, nil
}

// Publish sends snap, retained, to the state topic, and its output to the
// output topic when it changed.
func (b *Bridge) Publish(snap device.Snapshot) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.client == nil {
		return errors.New("not connected")
	}

	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	if token := b.client.Publish(b.topics.State, 0, true, payload); token.Wait() && token.Error() != nil {
		return fmt.Errorf("publish %s: %w", b.topics.State, token.Error())
	}

	if snap.Output != b.lastOutput {
		if token := b.client.Publish(b.topics.Output, 0, true, snap.Output); token.Wait() && token.Error() != nil {
			return fmt.Errorf("publish %s: %w", b.topics.Output, token.Error())
		}
		b.lastOutput = snap.Output
	}
	return nil
}

// Run publishes every snapshot from snapshots until ctx is cancelled or
// the channel is closed. Publish errors are logged and skipped.
func (b *Bridge) Run(ctx context.Context, snapshots <-chan device.Snapshot) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case snap, ok := <-snapshots:
			if !ok {
				return nil
			}
			if err := b.Publish(snap); err != nil {
				log.Printf("bus: %v", err)
			}
		}
	}
}
