// Package mqtt provides MQTT status publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"awning-service/internal/types"
)

// DefaultTopic is the MQTT topic for awning status snapshots.
const DefaultTopic = "home/awning/status"

// Publisher publishes status snapshots to MQTT.
type Publisher interface {
	// PublishStatus sends a status snapshot to the broker.
	// Returns error if publishing fails (must not crash the process).
	PublishStatus(report types.StatusReport) error

	// Close disconnects from the broker.
	Close() error
}

// Payload is the MQTT message payload structure.
type Payload struct {
	Awning StatusPayload `json:"awning"`
}

// StatusPayload contains the status snapshot details.
type StatusPayload struct {
	Timestamp    string `json:"timestamp"`
	CommandLevel bool   `json:"command_level"`
	MotorRunning bool   `json:"motor_running"`
	MotorState   string `json:"motor_state"`
	Rain         int    `json:"rain"`
	Light        int    `json:"light"`
}

// FormatPayload creates the JSON payload for a status snapshot.
func FormatPayload(report types.StatusReport, at time.Time) ([]byte, error) {
	payload := Payload{
		Awning: StatusPayload{
			Timestamp:    at.UTC().Format(time.RFC3339),
			CommandLevel: report.CommandLevel,
			MotorRunning: report.MotorRunning,
			MotorState:   string(report.MotorState),
			Rain:         report.Rain,
			Light:        report.Light,
		},
	}
	return json.Marshal(payload)
}
