// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/relabs-tech/updown_controller/internal/actuator"
	"github.com/relabs-tech/updown_controller/internal/bus"
	"github.com/relabs-tech/updown_controller/internal/config"
	"github.com/relabs-tech/updown_controller/internal/device"
	"github.com/relabs-tech/updown_controller/internal/positioner"
)

// NewOutput opens the output driver selected by cfg.
func NewOutput(cfg *config.Config) (actuator.Output, error) {
	switch cfg.OutputDriver {
	case config.OutputGPIO:
		return actuator.NewGPIOOutput(cfg.GPIODownPin, cfg.GPIOUpPin, cfg.GPIOActiveLow)
	case config.OutputSerial:
		return actuator.NewSerialRelayOutput(cfg.RelaySerialPort, cfg.RelayBaudRate, cfg.RelayDownChannel, cfg.RelayUpChannel)
	case config.OutputLog, "":
		return actuator.NewLogOutput(cfg.DeviceName), nil
	default:
		return nil, fmt.Errorf("unknown output driver %q", cfg.OutputDriver)
	}
}

// NewDevice builds the controller and device described by cfg on top of output.
func NewDevice(cfg *config.Config, output actuator.Output) (*device.Device, error) {
	controller, err := positioner.New(cfg.Positioner(), cfg.InitialPositionOrNil())
	if err != nil {
		return nil, fmt.Errorf("controller: %w", err)
	}
	return device.New(device.Options{
		Name:            cfg.DeviceName,
		Controller:      controller,
		Output:          output,
		PublishInterval: time.Duration(cfg.StatePublishInterval) * time.Millisecond,
	})
}

// RunDevice runs the device with its MQTT bridge and web server until ctx
// is cancelled. MQTT is skipped without MQTT_BROKER, the web server with
// WEB_SERVER_PORT=0.
func RunDevice(ctx context.Context, cfg *config.Config) error {
	log.Printf("starting updown controller %q with %s output", cfg.DeviceName, cfg.OutputDriver)

	output, err := NewOutput(cfg)
	if err != nil {
		return fmt.Errorf("output: %w", err)
	}
	defer func() {
		if err := output.Close(); err != nil {
			log.Printf("output close error: %v", err)
		}
	}()

	dev, err := NewDevice(cfg, output)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	if cfg.MQTTBroker != "" {
		bridge := bus.NewBridge(dev, bus.Topics{
			Setpoint: cfg.TopicSetpoint,
			State:    cfg.TopicState,
			Output:   cfg.TopicOutput,
		})
		client, err := bridge.Connect(cfg.MQTTBroker, cfg.MQTTClientID)
		if err != nil {
			return err
		}
		defer client.Disconnect(250)

		snapshots, unsubscribe := dev.Subscribe()
		g.Go(func() error {
			defer unsubscribe()
			return bridge.Run(ctx, snapshots)
		})
	} else {
		log.Println("MQTT_BROKER not set, MQTT bridge disabled")
	}

	if cfg.WebServerPort > 0 {
		g.Go(func() error {
			return ServeWeb(ctx, cfg.WebServerPort, NewWebHandler(dev))
		})
	}

	g.Go(func() error {
		return dev.Run(ctx)
	})

	return g.Wait()
}
