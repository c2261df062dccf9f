package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

// Config holds all application configuration values.
type Config struct {
	// Actuator
	ActuatorBackend        string // "gpio" or "pca9685"
	SteeringPin            string
	ThrottlePin            string
	IndicatorPin           string
	PWMFrequencyHz         int
	PCA9685Addr            uint16
	PCA9685SteeringChannel int
	PCA9685ThrottleChannel int

	// Servo calibration, pulse widths in milliseconds
	SteeringCenterMs float64
	SteeringRangeMs  float64
	ThrottleCenterMs float64
	ThrottleRangeMs  float64

	// Input
	ControllerDeadzone float64
	BoostForward       float64
	BoostReverse       float64

	// Capture
	FrameInterval int // save every Nth loop tick while recording
	DataDir       string
	CameraDevice  string
	CameraWidth   int
	CameraHeight  int
	LoopRateHz    int

	// Telemetry (optional, disabled when MQTT_BROKER is empty)
	MQTTBroker          string
	MQTTClientID        string
	TopicSession        string
	TopicStatus         string
	StatusIntervalTicks int

	// GPS track log (optional, disabled when GPS_SERIAL_PORT is empty)
	GPSSerialPort string
	GPSBaudRate   int
}

// Package-level unexported variables for singleton pattern.
// External code must use InitGlobal() to set and Get() to read.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Default returns the configuration used when no config file is present.
// The servo calibration values match the rig this was tuned on.
func Default() *Config {
	dataDir := "./training_data"
	if home, err := os.UserHomeDir(); err == nil {
		dataDir = filepath.Join(home, "training_data")
	}
	return &Config{
		ActuatorBackend:        "gpio",
		SteeringPin:            "GPIO12",
		ThrottlePin:            "GPIO13",
		IndicatorPin:           "GPIO25",
		PWMFrequencyHz:         50,
		PCA9685Addr:            0x40,
		PCA9685SteeringChannel: 0,
		PCA9685ThrottleChannel: 1,

		SteeringCenterMs: 1.075,
		SteeringRangeMs:  0.1702,
		ThrottleCenterMs: 1.35,
		ThrottleRangeMs:  0.06,

		ControllerDeadzone: 0.1,
		BoostForward:       1.0,
		BoostReverse:       -0.625,

		FrameInterval: 10,
		DataDir:       dataDir,
		CameraDevice:  "/dev/video0",
		CameraWidth:   320,
		CameraHeight:  240,
		LoopRateHz:    60,

		MQTTClientID:        "drivelog-collector",
		TopicSession:        "drivelog/session",
		TopicStatus:         "drivelog/status",
		StatusIntervalTicks: 60,

		GPSBaudRate: 9600,
	}
}

// Load reads the configuration file and returns a Config struct.
// A missing file is not an error; the defaults are returned unchanged.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	file, err := os.Open(configPath)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

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

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	switch key {
	// Actuator
	case "ACTUATOR_BACKEND":
		if value != "gpio" && value != "pca9685" {
			return fmt.Errorf("ACTUATOR_BACKEND must be \"gpio\" or \"pca9685\", got %q", value)
		}
		c.ActuatorBackend = value
	case "STEERING_PIN":
		c.SteeringPin = value
	case "THROTTLE_PIN":
		c.ThrottlePin = value
	case "INDICATOR_PIN":
		c.IndicatorPin = value
	case "PWM_FREQUENCY_HZ":
		freq, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid PWM_FREQUENCY_HZ %q: %w", value, err)
		}
		c.PWMFrequencyHz = freq
	case "PCA9685_I2C_ADDR":
		addr, err := strconv.ParseUint(value, 0, 16)
		if err != nil {
			return fmt.Errorf("invalid PCA9685_I2C_ADDR %q: %w", value, err)
		}
		c.PCA9685Addr = uint16(addr)
	case "PCA9685_STEERING_CHANNEL":
		ch, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid PCA9685_STEERING_CHANNEL %q: %w", value, err)
		}
		if ch < 0 || ch > 15 {
			return fmt.Errorf("PCA9685_STEERING_CHANNEL must be 0-15, got %d", ch)
		}
		c.PCA9685SteeringChannel = ch
	case "PCA9685_THROTTLE_CHANNEL":
		ch, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid PCA9685_THROTTLE_CHANNEL %q: %w", value, err)
		}
		if ch < 0 || ch > 15 {
			return fmt.Errorf("PCA9685_THROTTLE_CHANNEL must be 0-15, got %d", ch)
		}
		c.PCA9685ThrottleChannel = ch

	// Calibration
	case "STEERING_CENTER_MS":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid STEERING_CENTER_MS %q: %w", value, err)
		}
		c.SteeringCenterMs = v
	case "STEERING_RANGE_MS":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid STEERING_RANGE_MS %q: %w", value, err)
		}
		c.SteeringRangeMs = v
	case "THROTTLE_CENTER_MS":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid THROTTLE_CENTER_MS %q: %w", value, err)
		}
		c.ThrottleCenterMs = v
	case "THROTTLE_RANGE_MS":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid THROTTLE_RANGE_MS %q: %w", value, err)
		}
		c.ThrottleRangeMs = v

	// Input
	case "CONTROLLER_DEADZONE":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid CONTROLLER_DEADZONE %q: %w", value, err)
		}
		if v < 0 || v >= 1 {
			return fmt.Errorf("CONTROLLER_DEADZONE must be in [0, 1), got %g", v)
		}
		c.ControllerDeadzone = v
	case "BOOST_FORWARD":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid BOOST_FORWARD %q: %w", value, err)
		}
		c.BoostForward = v
	case "BOOST_REVERSE":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid BOOST_REVERSE %q: %w", value, err)
		}
		c.BoostReverse = v

	// Capture
	case "FRAME_INTERVAL":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid FRAME_INTERVAL %q: %w", value, err)
		}
		c.FrameInterval = n
	case "DATA_DIR":
		c.DataDir = value
	case "CAMERA_DEVICE":
		c.CameraDevice = value
	case "CAMERA_WIDTH":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid CAMERA_WIDTH %q: %w", value, err)
		}
		c.CameraWidth = n
	case "CAMERA_HEIGHT":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid CAMERA_HEIGHT %q: %w", value, err)
		}
		c.CameraHeight = n
	case "LOOP_RATE_HZ":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid LOOP_RATE_HZ %q: %w", value, err)
		}
		c.LoopRateHz = n

	// Telemetry
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID":
		c.MQTTClientID = value
	case "TOPIC_SESSION":
		c.TopicSession = value
	case "TOPIC_STATUS":
		c.TopicStatus = value
	case "STATUS_INTERVAL_TICKS":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid STATUS_INTERVAL_TICKS %q: %w", value, err)
		}
		c.StatusIntervalTicks = n

	// GPS
	case "GPS_SERIAL_PORT":
		c.GPSSerialPort = value
	case "GPS_BAUD_RATE":
		rate, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid GPS_BAUD_RATE %q: %w", value, err)
		}
		c.GPSBaudRate = rate

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return nil
}

// validate checks that the configuration is usable.
func (c *Config) validate() error {
	if c.SteeringPin == "" || c.ThrottlePin == "" || c.IndicatorPin == "" {
		return fmt.Errorf("STEERING_PIN, THROTTLE_PIN and INDICATOR_PIN are required")
	}
	if c.PWMFrequencyHz < 1 {
		return fmt.Errorf("PWM_FREQUENCY_HZ must be >= 1, got %d", c.PWMFrequencyHz)
	}
	if c.SteeringRangeMs <= 0 || c.ThrottleRangeMs <= 0 {
		return fmt.Errorf("STEERING_RANGE_MS and THROTTLE_RANGE_MS must be > 0")
	}
	if c.FrameInterval < 1 {
		return fmt.Errorf("FRAME_INTERVAL must be >= 1, got %d", c.FrameInterval)
	}
	if c.CameraWidth < 1 || c.CameraHeight < 1 {
		return fmt.Errorf("CAMERA_WIDTH and CAMERA_HEIGHT must be >= 1")
	}
	if c.LoopRateHz < 1 || c.LoopRateHz > 1000 {
		return fmt.Errorf("LOOP_RATE_HZ must be 1-1000, got %d", c.LoopRateHz)
	}
	if c.StatusIntervalTicks < 0 {
		return fmt.Errorf("STATUS_INTERVAL_TICKS must be >= 0, got %d", c.StatusIntervalTicks)
	}
	if c.GPSSerialPort != "" && c.GPSBaudRate < 1 {
		return fmt.Errorf("GPS_BAUD_RATE must be >= 1, got %d", c.GPSBaudRate)
	}
	return nil
}

// InitGlobal initializes the global configuration from file.
// Uses sync.Once so repeated calls are harmless.
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
