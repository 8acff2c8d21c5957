package core

import (
	"awning-service/internal/messaging"
	"awning-service/internal/types"
)

// HardwareIO abstracts the board peripherals so tests can substitute a
// mock for the GPIO/ADC/PWM stack.
type HardwareIO interface {
	Initialize() error
	ReadDigitalInput(channel string) (bool, error)
	ReadAnalogInput(channel string) (int, error)
	WriteDigitalOutput(channel string, value bool) error
	SetMotorDuty(duty int) error
	Cleanup()
}

// MessagingClient is the Redis surface the orchestrator uses.
type MessagingClient interface {
	Connect() error
	GetSettings() (messaging.Settings, error)
	PublishMotorState(state types.MotorState) error
	PublishStatus(report types.StatusReport) error
	Close() error
}

// StatusPublisher is the optional MQTT status feed.
type StatusPublisher interface {
	PublishStatus(report types.StatusReport) error
	Close() error
}
