// Package automation decides automatic awning moves from the rain and
// light sensors. The day/night/rain hysteresis is an explicit state
// machine: each evaluation derives at most one event from the current
// state and the sensor snapshot, so at most one motor action can fire
// per tick and a condition cannot re-trigger until the opposite
// condition has been observed.
package automation

import (
	"context"

	"github.com/librescoot/librefsm"

	"awning-service/internal/clock"
	"awning-service/internal/logger"
	"awning-service/internal/types"
)

// Engine states.
const (
	StateInit         librefsm.StateID = "init"
	StateNightIdle    librefsm.StateID = "night-idle"
	StateDayOpen      librefsm.StateID = "day-open"
	StateDayRainOpen  librefsm.StateID = "day-rain-open"
	StateDayDryClosed librefsm.StateID = "day-dry-closed"
)

// Engine events, derived from the sensor snapshot.
const (
	EvDaybreak  librefsm.EventID = "daybreak"
	EvNightfall librefsm.EventID = "nightfall"
	EvRainStart librefsm.EventID = "rain-start"
	EvRainStop  librefsm.EventID = "rain-stop"
)

// Motor is the subset of the motor driver the engine needs.
type Motor interface {
	Start(dir types.Direction, now clock.Millis) error
}

type Engine struct {
	logger         *logger.Logger
	motor          Motor
	machine        *librefsm.Machine
	rainThreshold  int
	lightThreshold int

	// Inputs of the evaluation in flight, read by guards and actions.
	now       clock.Millis
	isRaining bool
}

func NewEngine(motor Motor, rainThreshold, lightThreshold int, l *logger.Logger) (*Engine, error) {
	e := &Engine{
		logger:         l.WithTag("automation"),
		motor:          motor,
		rainThreshold:  rainThreshold,
		lightThreshold: lightThreshold,
	}

	machine, err := e.definition().Build()
	if err != nil {
		return nil, err
	}
	e.machine = machine

	return e, nil
}

// definition declares the day/night/rain machine. Where a daybreak can
// land in two states, the rain-guarded transition is declared first and
// wins while it is raining.
func (e *Engine) definition() *librefsm.Definition {
	return librefsm.NewDefinition().
		State(StateInit).
		State(StateNightIdle).
		State(StateDayOpen).
		State(StateDayRainOpen).
		State(StateDayDryClosed).

		// Boot resolves to whatever the sky says first.
		Transition(StateInit, EvDaybreak, StateDayRainOpen,
			librefsm.WithGuard(e.rainGuard),
			librefsm.WithAction(e.startOut),
		).
		Transition(StateInit, EvDaybreak, StateDayOpen,
			librefsm.WithAction(e.startOut),
		).
		Transition(StateInit, EvNightfall, StateNightIdle,
			librefsm.WithAction(e.startIn),
		).

		// Night: a single retract, then idle until daybreak. Rain is
		// ignored at night.
		Transition(StateNightIdle, EvDaybreak, StateDayRainOpen,
			librefsm.WithGuard(e.rainGuard),
			librefsm.WithAction(e.startOut),
		).
		Transition(StateNightIdle, EvDaybreak, StateDayOpen,
			librefsm.WithAction(e.startOut),
		).

		// Day: rain hysteresis. OUT when rain starts, IN when it stops.
		Transition(StateDayOpen, EvRainStart, StateDayRainOpen,
			librefsm.WithAction(e.startOut),
		).
		Transition(StateDayRainOpen, EvRainStop, StateDayDryClosed,
			librefsm.WithAction(e.startIn),
		).
		Transition(StateDayDryClosed, EvRainStart, StateDayRainOpen,
			librefsm.WithAction(e.startOut),
		).

		// Nightfall retracts from any day state.
		Transition(StateDayOpen, EvNightfall, StateNightIdle,
			librefsm.WithAction(e.startIn),
		).
		Transition(StateDayRainOpen, EvNightfall, StateNightIdle,
			librefsm.WithAction(e.startIn),
		).
		Transition(StateDayDryClosed, EvNightfall, StateNightIdle,
			librefsm.WithAction(e.startIn),
		).
		Initial(StateInit)
}

// Start runs the state machine. Must be called before Evaluate.
func (e *Engine) Start(ctx context.Context) error {
	e.machine.OnStateChange(func(from, to librefsm.StateID) {
		e.logger.Infof("State transition: %s -> %s", from, to)
	})
	return e.machine.Start(ctx)
}

// Evaluate runs one automation decision against a sensor snapshot. The
// orchestrator only calls it while the motor is idle and no manual
// pulses are pending.
func (e *Engine) Evaluate(snap types.SensorSnapshot, now clock.Millis) error {
	isDay := snap.Light > e.lightThreshold
	isRaining := snap.Rain < e.rainThreshold

	e.now = now
	e.isRaining = isRaining

	ev, ok := deriveEvent(e.machine.CurrentState(), isDay, isRaining)
	if !ok {
		return nil
	}

	e.logger.Debugf("Condition change: %s (day=%v raining=%v)", ev, isDay, isRaining)
	return e.machine.SendSync(librefsm.Event{ID: ev})
}

// State returns the current machine state.
func (e *Engine) State() librefsm.StateID {
	return e.machine.CurrentState()
}

// deriveEvent maps the snapshot onto at most one event that has a
// transition from the given state.
func deriveEvent(state librefsm.StateID, isDay, isRaining bool) (librefsm.EventID, bool) {
	switch state {
	case StateInit:
		if isDay {
			return EvDaybreak, true
		}
		return EvNightfall, true
	case StateNightIdle:
		if isDay {
			return EvDaybreak, true
		}
	case StateDayOpen:
		if !isDay {
			return EvNightfall, true
		}
		if isRaining {
			return EvRainStart, true
		}
	case StateDayRainOpen:
		if !isDay {
			return EvNightfall, true
		}
		if !isRaining {
			return EvRainStop, true
		}
	case StateDayDryClosed:
		if !isDay {
			return EvNightfall, true
		}
		if isRaining {
			return EvRainStart, true
		}
	}
	return "", false
}

func (e *Engine) rainGuard(c *librefsm.Context) bool {
	return e.isRaining
}

func (e *Engine) startOut(c *librefsm.Context) error {
	return e.motor.Start(types.DirectionOut, e.now)
}

func (e *Engine) startIn(c *librefsm.Context) error {
	return e.motor.Start(types.DirectionIn, e.now)
}
