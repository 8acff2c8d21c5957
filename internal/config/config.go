// Package config loads the awning-service configuration from YAML.
// Every field has a working default, so the service runs without a
// config file on the reference hardware.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Redis      RedisConfig      `yaml:"redis"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	Hardware   HardwareConfig   `yaml:"hardware"`
	Thresholds ThresholdsConfig `yaml:"thresholds"`
	Timing     TimingConfig     `yaml:"timing"`
	Motor      MotorConfig      `yaml:"motor"`
}

type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// MQTTConfig configures the optional MQTT status feed. An empty broker
// disables it.
type MQTTConfig struct {
	Broker string `yaml:"broker"`
	Topic  string `yaml:"topic"`
}

type HardwareConfig struct {
	GpioChip     string `yaml:"gpio_chip"`
	MotorIn1Line int    `yaml:"motor_in1_line"`
	MotorIn2Line int    `yaml:"motor_in2_line"`
	CommandLine  int    `yaml:"command_line"`
	AdcDevice    string `yaml:"adc_device"`
	RainChannel  int    `yaml:"rain_channel"`
	LightChannel int    `yaml:"light_channel"`
	PwmChip      string `yaml:"pwm_chip"`
	PwmChannel   int    `yaml:"pwm_channel"`
	PwmPeriodNs  int    `yaml:"pwm_period_ns"`
}

// ThresholdsConfig holds the sensor decision thresholds. The rain sensor
// is inverted: a reading below RainThreshold means it is raining.
type ThresholdsConfig struct {
	RainThreshold  int `yaml:"rain_threshold"`
	LightThreshold int `yaml:"light_threshold"`
}

// TimingConfig holds the control-loop timing constants in milliseconds.
type TimingConfig struct {
	RotationMs       uint32 `yaml:"rotation_ms"`
	PulseTimeoutMs   uint32 `yaml:"pulse_timeout_ms"`
	CommandDelayMs   uint32 `yaml:"command_delay_ms"`
	StatusIntervalMs uint32 `yaml:"status_interval_ms"`
	TickMs           uint32 `yaml:"tick_ms"`
}

type MotorConfig struct {
	// Speed is the drive duty cycle, 0-255.
	Speed int `yaml:"speed"`
}

// Default returns the built-in configuration matching the reference board.
func Default() Config {
	return Config{
		Redis: RedisConfig{
			Host: "127.0.0.1",
			Port: 6379,
		},
		MQTT: MQTTConfig{
			Topic: "home/awning/status",
		},
		Hardware: HardwareConfig{
			GpioChip:     "gpiochip0",
			MotorIn1Line: 5,
			MotorIn2Line: 4,
			CommandLine:  7,
			AdcDevice:    "iio:device0",
			RainChannel:  0,
			LightChannel: 1,
			PwmChip:      "pwmchip0",
			PwmChannel:   0,
			PwmPeriodNs:  1000000,
		},
		Thresholds: ThresholdsConfig{
			RainThreshold:  500,
			LightThreshold: 200,
		},
		Timing: TimingConfig{
			RotationMs:       7000,
			PulseTimeoutMs:   500,
			CommandDelayMs:   750,
			StatusIntervalMs: 1000,
			TickMs:           10,
		},
		Motor: MotorConfig{
			Speed: 255,
		},
	}
}

// Load reads the YAML file at path over the defaults. An empty path
// returns the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if c.Motor.Speed < 0 || c.Motor.Speed > 255 {
		return fmt.Errorf("motor speed %d out of range 0-255", c.Motor.Speed)
	}
	if c.Timing.RotationMs == 0 {
		return fmt.Errorf("rotation_ms must be positive")
	}
	if c.Timing.PulseTimeoutMs == 0 {
		return fmt.Errorf("pulse_timeout_ms must be positive")
	}
	if c.Timing.CommandDelayMs == 0 {
		return fmt.Errorf("command_delay_ms must be positive")
	}
	if c.Timing.StatusIntervalMs == 0 {
		return fmt.Errorf("status_interval_ms must be positive")
	}
	if c.Timing.TickMs == 0 {
		return fmt.Errorf("tick_ms must be positive")
	}
	if c.Hardware.PwmPeriodNs <= 0 {
		return fmt.Errorf("pwm_period_ns must be positive")
	}
	if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
		return fmt.Errorf("redis port %d out of range", c.Redis.Port)
	}
	return nil
}
