package types

type MotorState string

const (
	MotorStopped    MotorState = "stopped"
	MotorRunningIn  MotorState = "running-in"
	MotorRunningOut MotorState = "running-out"
)

type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

// Command is a decoded manual command from the pulse line.
type Command string

const (
	CommandNone    Command = "none"
	CommandMoveIn  Command = "move-in"
	CommandMoveOut Command = "move-out"
)

// Direction returns the motor direction a command maps to.
// Only meaningful for CommandMoveIn and CommandMoveOut.
func (c Command) Direction() Direction {
	if c == CommandMoveOut {
		return DirectionOut
	}
	return DirectionIn
}

// SensorSnapshot holds the inputs sampled within a single tick.
// Rain and Light are raw ADC values in the 0-1023 range. The rain
// sensor is inverted: lower means wetter.
type SensorSnapshot struct {
	CommandLevel bool
	Rain         int
	Light        int
}

// StatusReport is the periodic status emitted to external monitors.
type StatusReport struct {
	CommandLevel bool
	MotorRunning bool
	MotorState   MotorState
	Rain         int
	Light        int
}
