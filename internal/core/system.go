// Package core wires the hardware, decoder, motor driver and automation
// engine into the periodic control loop.
package core

import (
	"context"
	"fmt"
	"time"

	"awning-service/internal/automation"
	"awning-service/internal/clock"
	"awning-service/internal/config"
	"awning-service/internal/decoder"
	"awning-service/internal/hardware"
	"awning-service/internal/logger"
	"awning-service/internal/messaging"
	"awning-service/internal/motor"
	"awning-service/internal/types"
)

type AwningSystem struct {
	logger *logger.Logger
	cfg    config.Config
	clk    clock.Clock

	io    HardwareIO
	redis MessagingClient
	mqtt  StatusPublisher // nil when no broker is configured

	motor   *motor.Driver
	decoder *decoder.Decoder
	engine  *automation.Engine

	statusInterval clock.Millis
	lastStatus     clock.Millis

	cancel context.CancelFunc
	done   chan struct{}
}

func NewAwningSystem(cfg config.Config, io HardwareIO, redis MessagingClient, mqtt StatusPublisher, clk clock.Clock, l *logger.Logger) *AwningSystem {
	return &AwningSystem{
		logger:         l.WithTag("core"),
		cfg:            cfg,
		clk:            clk,
		io:             io,
		redis:          redis,
		mqtt:           mqtt,
		statusInterval: clock.Millis(cfg.Timing.StatusIntervalMs),
	}
}

func (a *AwningSystem) Start(ctx context.Context) error {
	a.logger.Infof("Starting awning system")

	if err := a.redis.Connect(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	settings, err := a.redis.GetSettings()
	if err != nil {
		a.logger.Warnf("Ignoring settings overrides: %v", err)
		settings = messaging.Settings{}
	}
	a.applySettings(settings)

	if err := a.io.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize hardware: %w", err)
	}

	if err := a.initComponents(); err != nil {
		return err
	}
	if err := a.engine.Start(ctx); err != nil {
		return fmt.Errorf("failed to start automation engine: %w", err)
	}

	a.publishMotorState()

	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.done = make(chan struct{})
	go a.run(runCtx)

	a.logger.Infof("Awning system started")
	return nil
}

// applySettings overlays the Redis settings hash onto the configured
// thresholds. Zero fields carry no override.
func (a *AwningSystem) applySettings(s messaging.Settings) {
	if s.RainThreshold > 0 {
		a.cfg.Thresholds.RainThreshold = s.RainThreshold
	}
	if s.LightThreshold > 0 {
		a.cfg.Thresholds.LightThreshold = s.LightThreshold
	}
	if s.RotationMs > 0 {
		a.cfg.Timing.RotationMs = uint32(s.RotationMs)
	}
}

func (a *AwningSystem) initComponents() error {
	a.motor = motor.NewDriver(a.io, a.cfg.Motor.Speed, clock.Millis(a.cfg.Timing.RotationMs), a.logger)
	a.decoder = decoder.New(clock.Millis(a.cfg.Timing.PulseTimeoutMs), clock.Millis(a.cfg.Timing.CommandDelayMs), a.logger)

	engine, err := automation.NewEngine(a.motor, a.cfg.Thresholds.RainThreshold, a.cfg.Thresholds.LightThreshold, a.logger)
	if err != nil {
		return fmt.Errorf("failed to build automation engine: %w", err)
	}
	a.engine = engine

	a.lastStatus = a.clk.Now()
	return nil
}

func (a *AwningSystem) run(ctx context.Context) {
	defer close(a.done)

	ticker := time.NewTicker(time.Duration(a.cfg.Timing.TickMs) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.logger.Infof("Control loop stopped")
			return
		case <-ticker.C:
			a.tick()
		}
	}
}

// tick runs one pass of the control loop. A sensor read failure skips
// the whole tick; the next tick re-reads.
func (a *AwningSystem) tick() {
	now := a.clk.Now()

	snap, err := a.sample()
	if err != nil {
		a.logger.Warnf("Skipping tick: %v", err)
		return
	}

	a.decoder.Observe(snap.CommandLevel, now)

	if cmd := a.decoder.TryDispatch(now, a.motor.IsRunning()); cmd != types.CommandNone {
		a.logger.Infof("Manual command: %s", cmd)
		if err := a.motor.Start(cmd.Direction(), now); err != nil {
			a.logger.Errorf("Failed to start motor: %v", err)
		} else {
			a.publishMotorState()
		}
	}

	if a.motor.Expired(now) {
		a.logger.Infof("Rotation time elapsed")
		a.stopMotor()
	}

	// Automation only speaks when nothing manual is happening or pending.
	if !a.motor.IsRunning() && a.decoder.PulseCount() == 0 {
		if err := a.engine.Evaluate(snap, now); err != nil {
			a.logger.Errorf("Automation evaluation failed: %v", err)
		} else if a.motor.IsRunning() {
			a.publishMotorState()
		}
	}

	if clock.Elapsed(now, a.lastStatus) >= a.statusInterval {
		a.reportStatus(snap)
		a.lastStatus = now
	}
}

func (a *AwningSystem) sample() (types.SensorSnapshot, error) {
	level, err := a.io.ReadDigitalInput(hardware.ChannelCommand)
	if err != nil {
		return types.SensorSnapshot{}, fmt.Errorf("read command line: %w", err)
	}
	rain, err := a.io.ReadAnalogInput(hardware.ChannelRain)
	if err != nil {
		return types.SensorSnapshot{}, fmt.Errorf("read rain sensor: %w", err)
	}
	light, err := a.io.ReadAnalogInput(hardware.ChannelLight)
	if err != nil {
		return types.SensorSnapshot{}, fmt.Errorf("read light sensor: %w", err)
	}

	return types.SensorSnapshot{
		CommandLevel: level,
		Rain:         rain,
		Light:        light,
	}, nil
}

func (a *AwningSystem) stopMotor() {
	if err := a.motor.Stop(); err != nil {
		a.logger.Errorf("Failed to stop motor: %v", err)
	}
	a.decoder.ClearStale()
	a.publishMotorState()
}

// publishMotorState pushes the motor state to Redis. Failures are
// already logged by the client and never affect control decisions.
func (a *AwningSystem) publishMotorState() {
	_ = a.redis.PublishMotorState(a.motor.State())
}

func (a *AwningSystem) reportStatus(snap types.SensorSnapshot) {
	report := types.StatusReport{
		CommandLevel: snap.CommandLevel,
		MotorRunning: a.motor.IsRunning(),
		MotorState:   a.motor.State(),
		Rain:         snap.Rain,
		Light:        snap.Light,
	}

	a.logger.Infof("Status: command=%v motor=%s rain=%d light=%d",
		report.CommandLevel, report.MotorState, report.Rain, report.Light)

	_ = a.redis.PublishStatus(report)

	if a.mqtt != nil {
		if err := a.mqtt.PublishStatus(report); err != nil {
			a.logger.Warnf("MQTT publish failed: %v", err)
		}
	}
}

func (a *AwningSystem) Shutdown() {
	a.logger.Infof("Shutting down awning system")

	if a.cancel != nil {
		a.cancel()
		<-a.done
	}

	if a.motor != nil && a.motor.IsRunning() {
		if err := a.motor.Stop(); err != nil {
			a.logger.Errorf("Failed to stop motor: %v", err)
		}
	}

	a.io.Cleanup()

	if a.mqtt != nil {
		if err := a.mqtt.Close(); err != nil {
			a.logger.Warnf("Failed to close MQTT publisher: %v", err)
		}
	}
	if err := a.redis.Close(); err != nil {
		a.logger.Warnf("Failed to close Redis client: %v", err)
	}

	a.logger.Infof("Awning system shut down")
}
