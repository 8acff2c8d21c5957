// Package motor owns the open-loop motor drive state. The motor has no
// position feedback: a run lasts until Stop is called or the rotation
// duration elapses, whichever the orchestrator decides first.
package motor

import (
	"fmt"

	"awning-service/internal/clock"
	"awning-service/internal/hardware"
	"awning-service/internal/logger"
	"awning-service/internal/types"
)

// IO is the subset of the hardware interface the driver needs.
type IO interface {
	WriteDigitalOutput(channel string, value bool) error
	SetMotorDuty(duty int) error
}

type Driver struct {
	logger    *logger.Logger
	io        IO
	speed     int
	rotation  clock.Millis
	state     types.MotorState
	startedAt clock.Millis
}

func NewDriver(io IO, speed int, rotation clock.Millis, l *logger.Logger) *Driver {
	return &Driver{
		logger:   l.WithTag("motor"),
		io:       io,
		speed:    speed,
		rotation: rotation,
		state:    types.MotorStopped,
	}
}

// Start drives the motor in the given direction and arms the rotation
// timer. Calling Start while already running re-arms the timer and may
// reverse the direction.
func (d *Driver) Start(dir types.Direction, now clock.Millis) error {
	in1, in2 := false, true
	state := types.MotorRunningIn
	if dir == types.DirectionOut {
		in1, in2 = true, false
		state = types.MotorRunningOut
	}

	if err := d.io.WriteDigitalOutput(hardware.ChannelMotorIn1, in1); err != nil {
		return fmt.Errorf("start motor %s: %w", dir, err)
	}
	if err := d.io.WriteDigitalOutput(hardware.ChannelMotorIn2, in2); err != nil {
		return fmt.Errorf("start motor %s: %w", dir, err)
	}
	if err := d.io.SetMotorDuty(d.speed); err != nil {
		return fmt.Errorf("start motor %s: %w", dir, err)
	}

	d.state = state
	d.startedAt = now
	d.logger.Infof("Motor starting - moving %s", dir)
	return nil
}

// Stop zeroes both direction outputs and the duty cycle.
func (d *Driver) Stop() error {
	if err := d.io.WriteDigitalOutput(hardware.ChannelMotorIn1, false); err != nil {
		return fmt.Errorf("stop motor: %w", err)
	}
	if err := d.io.WriteDigitalOutput(hardware.ChannelMotorIn2, false); err != nil {
		return fmt.Errorf("stop motor: %w", err)
	}
	if err := d.io.SetMotorDuty(0); err != nil {
		return fmt.Errorf("stop motor: %w", err)
	}

	d.state = types.MotorStopped
	d.logger.Infof("Motor stopped")
	return nil
}

func (d *Driver) IsRunning() bool {
	return d.state != types.MotorStopped
}

func (d *Driver) State() types.MotorState {
	return d.state
}

// Expired reports whether a running motor has reached the rotation
// duration. Always false while stopped; the start timestamp is only
// meaningful while running.
func (d *Driver) Expired(now clock.Millis) bool {
	if d.state == types.MotorStopped {
		return false
	}
	return clock.Elapsed(now, d.startedAt) >= d.rotation
}
