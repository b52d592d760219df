package main

import (
	"log"

	"github.com/relabs-tech/updown_controller/internal/app"
	"github.com/relabs-tech/updown_controller/internal/config"
)

func main() {
	log.Println("starting updown console (MQTT subscriber)")

	// Load configuration
	if err := config.InitGlobal("updown_config.txt"); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	cfg := config.Get()
	if cfg.MQTTBroker == "" {
		log.Fatal("MQTT_BROKER is required for the console")
	}

	if err := app.RunConsoleMQTT(cfg); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
