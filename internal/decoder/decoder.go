// Package decoder turns raw command-line level samples into discrete
// manual commands. The companion node signals by pulsing the line: one
// pulse means move IN, two pulses within the pulse timeout mean move
// OUT. A sequence is dispatched once the line has been quiet for the
// command delay.
//
// The decoder is a pure state record over injected sample times; it
// never sleeps and holds no goroutines.
package decoder

import (
	"awning-service/internal/clock"
	"awning-service/internal/logger"
	"awning-service/internal/types"
)

type Decoder struct {
	logger       *logger.Logger
	pulseTimeout clock.Millis
	commandDelay clock.Millis

	lastLevel bool
	lastEdge  clock.Millis
	pulses    int
	awaiting  bool
}

func New(pulseTimeout, commandDelay clock.Millis, l *logger.Logger) *Decoder {
	return &Decoder{
		logger:       l.WithTag("decoder"),
		pulseTimeout: pulseTimeout,
		commandDelay: commandDelay,
	}
}

// Observe feeds one level sample into the decoder. Called once per tick.
func (d *Decoder) Observe(level bool, now clock.Millis) {
	if level != d.lastLevel {
		if level {
			// Rising edge. An edge at exactly pulseTimeout after the
			// previous one starts a new sequence.
			if clock.Elapsed(now, d.lastEdge) < d.pulseTimeout {
				d.pulses++
			} else {
				d.pulses = 1
			}
			d.lastEdge = now
			d.awaiting = true
			d.logger.Debugf("Pulse count: %d", d.pulses)
		}
		d.lastLevel = level
	}
}

// TryDispatch realizes a pending pulse sequence once the line has been
// quiet for the command delay. Pulses arriving while the motor runs are
// counted by Observe but held here until the motor stops.
func (d *Decoder) TryDispatch(now clock.Millis, motorRunning bool) types.Command {
	cmd := types.CommandNone

	if d.awaiting && !motorRunning && clock.Elapsed(now, d.lastEdge) >= d.commandDelay {
		d.awaiting = false

		switch d.pulses {
		case 1:
			cmd = types.CommandMoveIn
		case 2:
			cmd = types.CommandMoveOut
		default:
			d.logger.Debugf("Discarding sequence of %d pulses", d.pulses)
		}
		d.pulses = 0
	}

	// Drop an orphaned sequence that never completed.
	if !d.awaiting && clock.Elapsed(now, d.lastEdge) > d.pulseTimeout {
		d.pulses = 0
	}

	return cmd
}

// PulseCount returns the number of pulses accumulated so far. The
// automation engine is held off while this is non-zero.
func (d *Decoder) PulseCount() int {
	return d.pulses
}

// ClearStale drops a counted sequence that is no longer awaiting
// dispatch. Invoked when the motor stops. A sequence still awaiting
// dispatch survives the stop and is realized once the line has been
// quiet for the command delay, so commands queue behind a run instead
// of being discarded by it.
func (d *Decoder) ClearStale() {
	if !d.awaiting {
		d.pulses = 0
	}
}
