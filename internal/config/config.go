package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/relabs-tech/updown_controller/internal/positioner"
)

// Output drivers.
const (
	OutputGPIO   = "gpio"
	OutputSerial = "serial"
	OutputLog    = "log"
)

// Config holds all application configuration values.
type Config struct {
	DeviceName string

	// MQTT
	MQTTBroker   string
	MQTTClientID string

	// Topics
	TopicSetpoint string
	TopicState    string
	TopicOutput   string

	// Output lines
	OutputDriver  string
	GPIODownPin   string
	GPIOUpPin     string
	GPIOActiveLow bool

	// Serial relay board
	RelaySerialPort  string
	RelayBaudRate    int
	RelayDownChannel byte
	RelayUpChannel   byte

	// Actuator timing
	TravelDown time.Duration
	TravelUp   time.Duration
	DeadDown   time.Duration
	DeadUp     time.Duration
	StartDelay time.Duration

	// Position error model
	PositionOffsetMax               float64
	PositionUncertaintyMax          float64
	PositionUncertaintyMoveConstant float64
	PositionUncertaintyMoveRelative float64

	// Initial position, if known. Without one the device calibrates
	// on the first setpoint.
	HasInitialPosition bool
	InitialPosition    float64
	InitialUncertainty float64

	hasInitialUncertainty bool

	// Web Server
	WebServerPort int

	// Timing
	StatePublishInterval int // milliseconds
}

var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Default returns a configuration with everything optional filled in.
func Default() *Config {
	defaults := positioner.DefaultConfiguration()
	return &Config{
		DeviceName:                      "updown",
		MQTTClientID:                    "updown-controller",
		OutputDriver:                    OutputLog,
		RelayBaudRate:                   9600,
		RelayDownChannel:                1,
		RelayUpChannel:                  2,
		DeadDown:                        defaults.DeadDown,
		DeadUp:                          defaults.DeadUp,
		StartDelay:                      defaults.StartDelay,
		PositionOffsetMax:               float64(defaults.PositionOffsetMax),
		PositionUncertaintyMax:          float64(defaults.PositionUncertaintyMax),
		PositionUncertaintyMoveConstant: float64(defaults.PositionUncertaintyMoveConstant),
		PositionUncertaintyMoveRelative: float64(defaults.PositionUncertaintyMoveRelative),
		WebServerPort:                   8080,
		StatePublishInterval:            500,
	}
}

// Load reads the configuration file and returns a Config struct.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	cfg := Default()
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=VALUE
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	cfg.applyTopicDefaults()

	// Validate required fields
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	var err error

	switch key {
	case "DEVICE_NAME":
		c.DeviceName = value

	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID":
		c.MQTTClientID = value

	// Topics
	case "TOPIC_SETPOINT":
		c.TopicSetpoint = value
	case "TOPIC_STATE":
		c.TopicState = value
	case "TOPIC_OUTPUT":
		c.TopicOutput = value

	// Output lines
	case "OUTPUT_DRIVER":
		switch value {
		case OutputGPIO, OutputSerial, OutputLog:
			c.OutputDriver = value
		default:
			return fmt.Errorf("OUTPUT_DRIVER must be one of gpio, serial, log, got %q", value)
		}
	case "GPIO_DOWN_PIN":
		c.GPIODownPin = value
	case "GPIO_UP_PIN":
		c.GPIOUpPin = value
	case "GPIO_ACTIVE_LOW":
		c.GPIOActiveLow, err = strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid GPIO_ACTIVE_LOW %q: %w", value, err)
		}

	// Serial relay board
	case "RELAY_SERIAL_PORT":
		c.RelaySerialPort = value
	case "RELAY_BAUD_RATE":
		c.RelayBaudRate, err = strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid RELAY_BAUD_RATE %q: %w", value, err)
		}
	case "RELAY_DOWN_CHANNEL":
		c.RelayDownChannel, err = parseChannel(key, value)
		if err != nil {
			return err
		}
	case "RELAY_UP_CHANNEL":
		c.RelayUpChannel, err = parseChannel(key, value)
		if err != nil {
			return err
		}

	// Actuator timing
	case "TRAVEL_DOWN_MS":
		c.TravelDown, err = parseMillis(key, value)
	case "TRAVEL_UP_MS":
		c.TravelUp, err = parseMillis(key, value)
	case "DEAD_DOWN_MS":
		c.DeadDown, err = parseMillis(key, value)
	case "DEAD_UP_MS":
		c.DeadUp, err = parseMillis(key, value)
	case "START_DELAY_MS":
		c.StartDelay, err = parseMillis(key, value)

	// Position error model
	case "POSITION_OFFSET_MAX":
		c.PositionOffsetMax, err = parseRatio(key, value)
	case "POSITION_UNCERTAINTY_MAX":
		c.PositionUncertaintyMax, err = parseRatio(key, value)
	case "POSITION_UNCERTAINTY_MOVE_CONSTANT":
		c.PositionUncertaintyMoveConstant, err = parseRatio(key, value)
	case "POSITION_UNCERTAINTY_MOVE_RELATIVE":
		c.PositionUncertaintyMoveRelative, err = parseRatio(key, value)

	// Initial position
	case "INITIAL_POSITION":
		c.InitialPosition, err = parseRatio(key, value)
		c.HasInitialPosition = err == nil
	case "INITIAL_UNCERTAINTY":
		c.InitialUncertainty, err = parseRatio(key, value)
		c.hasInitialUncertainty = err == nil

	// Web Server
	case "WEB_SERVER_PORT":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid WEB_SERVER_PORT %q: %w", value, err)
		}
		if port < 0 || port > 65535 {
			return fmt.Errorf("WEB_SERVER_PORT must be 0-65535, got %d", port)
		}
		c.WebServerPort = port

	// Timing
	case "STATE_PUBLISH_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid STATE_PUBLISH_INTERVAL %q: %w", value, err)
		}
		c.StatePublishInterval = interval

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return err
}

func parseMillis(key, value string) (time.Duration, error) {
	ms, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	d, err := positioner.DurationFromSeconds(ms / 1000)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func parseRatio(key, value string) (float64, error) {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if _, err := positioner.NewRatio(v); err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func parseChannel(key, value string) (byte, error) {
	ch, err := strconv.ParseUint(value, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if ch < 1 || ch > 8 {
		return 0, fmt.Errorf("%s must be 1-8, got %d", key, ch)
	}
	return byte(ch), nil
}

// applyTopicDefaults derives unset topics from the device name.
func (c *Config) applyTopicDefaults() {
	base := "updown/" + c.DeviceName
	if c.TopicSetpoint == "" {
		c.TopicSetpoint = base + "/setpoint"
	}
	if c.TopicState == "" {
		c.TopicState = base + "/state"
	}
	if c.TopicOutput == "" {
		c.TopicOutput = base + "/output"
	}
}

// validate checks that all required fields are set.
func (c *Config) validate() error {
	if c.DeviceName == "" {
		return fmt.Errorf("DEVICE_NAME is required")
	}
	if c.TravelDown == 0 {
		return fmt.Errorf("TRAVEL_DOWN_MS is required")
	}
	if c.TravelUp == 0 {
		return fmt.Errorf("TRAVEL_UP_MS is required")
	}
	switch c.OutputDriver {
	case OutputGPIO:
		if c.GPIODownPin == "" || c.GPIOUpPin == "" {
			return fmt.Errorf("GPIO_DOWN_PIN and GPIO_UP_PIN are required for the gpio driver")
		}
		if c.GPIODownPin == c.GPIOUpPin {
			return fmt.Errorf("GPIO_DOWN_PIN and GPIO_UP_PIN must differ")
		}
	case OutputSerial:
		if c.RelaySerialPort == "" {
			return fmt.Errorf("RELAY_SERIAL_PORT is required for the serial driver")
		}
		if c.RelayDownChannel == c.RelayUpChannel {
			return fmt.Errorf("RELAY_DOWN_CHANNEL and RELAY_UP_CHANNEL must differ")
		}
	}
	if c.hasInitialUncertainty && !c.HasInitialPosition {
		return fmt.Errorf("INITIAL_UNCERTAINTY requires INITIAL_POSITION")
	}
	if c.StatePublishInterval <= 0 {
		return fmt.Errorf("STATE_PUBLISH_INTERVAL must be positive")
	}
	return nil
}

// Positioner returns the controller configuration. It is validated when
// the controller is created.
func (c *Config) Positioner() positioner.Configuration {
	return positioner.Configuration{
		TravelDown:                      c.TravelDown,
		TravelUp:                        c.TravelUp,
		DeadDown:                        c.DeadDown,
		DeadUp:                          c.DeadUp,
		StartDelay:                      c.StartDelay,
		PositionOffsetMax:               positioner.Ratio(c.PositionOffsetMax),
		PositionUncertaintyMax:          positioner.Ratio(c.PositionUncertaintyMax),
		PositionUncertaintyMoveConstant: positioner.Ratio(c.PositionUncertaintyMoveConstant),
		PositionUncertaintyMoveRelative: positioner.Ratio(c.PositionUncertaintyMoveRelative),
	}
}

// InitialPositionOrNil returns the configured initial position, or nil
// when the device should start uncalibrated.
func (c *Config) InitialPositionOrNil() *positioner.Position {
	if !c.HasInitialPosition {
		return nil
	}
	return &positioner.Position{
		Position:    positioner.Ratio(c.InitialPosition),
		Uncertainty: positioner.Ratio(c.InitialUncertainty),
	}
}

// InitGlobal initializes the global configuration from file.
// Uses sync.Once to ensure this only runs once, even if called multiple times.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
