package app

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/updown_controller/internal/config"
	"github.com/relabs-tech/updown_controller/internal/device"
)

func RunConsoleMQTT(cfg *config.Config) error {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientID + "-console")

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("console: connected to MQTT broker at %s", cfg.MQTTBroker)

	// Subscribe to state snapshots
	stateToken := client.Subscribe(cfg.TopicState, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var s device.Snapshot
		if err := json.Unmarshal(msg.Payload(), &s); err != nil {
			log.Printf("console: state unmarshal error: %v", err)
			return
		}
		fmt.Println(FormatSnapshot(s))
	})
	stateToken.Wait()
	if stateToken.Error() != nil {
		return stateToken.Error()
	}
	log.Printf("console: subscribed to %s", cfg.TopicState)

	// Subscribe to output changes
	outputToken := client.Subscribe(cfg.TopicOutput, 0, func(_ mqtt.Client, msg mqtt.Message) {
		fmt.Printf("[OUT  ] %s\n", msg.Payload())
	})
	outputToken.Wait()
	if outputToken.Error() != nil {
		return outputToken.Error()
	}
	log.Printf("console: subscribed to %s", cfg.TopicOutput)

	// Wait for Ctrl+C
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("console: shutting down")
	client.Disconnect(250)
	return nil
}

// FormatSnapshot renders a snapshot as one console line.
func FormatSnapshot(s device.Snapshot) string {
	next := "-"
	if s.NextMs != nil {
		next = fmt.Sprintf("%dms", *s.NextMs)
	}
	return fmt.Sprintf(
		"[STATE] %s %-12s setpoint=%-7s position=%-14s output=%-4s next=%s",
		s.Name, s.State, formatSetpoint(s.Setpoint), formatPosition(s.Position), s.Output, next,
	)
}
