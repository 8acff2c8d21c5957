package core

import (
	"context"
	"errors"
	"testing"

	"awning-service/internal/automation"
	"awning-service/internal/clock"
	"awning-service/internal/config"
	"awning-service/internal/hardware"
	"awning-service/internal/logger"
	"awning-service/internal/messaging"
	"awning-service/internal/types"
)

// Mock HardwareIO
type mockHardwareIO struct {
	commandLevel bool
	analogInputs map[string]int
	analogErr    error

	digitalOutputs map[string]bool
	duties         []int
	initErr        error
	cleanedUp      bool
}

func newMockHardwareIO() *mockHardwareIO {
	return &mockHardwareIO{
		analogInputs: map[string]int{
			hardware.ChannelRain:  900, // dry
			hardware.ChannelLight: 100, // night
		},
		digitalOutputs: make(map[string]bool),
	}
}

func (m *mockHardwareIO) Initialize() error { return m.initErr }
func (m *mockHardwareIO) Cleanup()          { m.cleanedUp = true }

func (m *mockHardwareIO) ReadDigitalInput(channel string) (bool, error) {
	return m.commandLevel, nil
}

func (m *mockHardwareIO) ReadAnalogInput(channel string) (int, error) {
	if m.analogErr != nil {
		return -1, m.analogErr
	}
	return m.analogInputs[channel], nil
}

func (m *mockHardwareIO) WriteDigitalOutput(channel string, value bool) error {
	m.digitalOutputs[channel] = value
	return nil
}

func (m *mockHardwareIO) SetMotorDuty(duty int) error {
	m.duties = append(m.duties, duty)
	return nil
}

// Mock MessagingClient
type mockMessagingClient struct {
	connectErr  error
	settings    messaging.Settings
	settingsErr error

	motorStates   []types.MotorState
	statusReports []types.StatusReport
	closed        bool
}

func newMockMessagingClient() *mockMessagingClient {
	return &mockMessagingClient{}
}

func (m *mockMessagingClient) Connect() error { return m.connectErr }
func (m *mockMessagingClient) Close() error   { m.closed = true; return nil }

func (m *mockMessagingClient) GetSettings() (messaging.Settings, error) {
	return m.settings, m.settingsErr
}

func (m *mockMessagingClient) PublishMotorState(state types.MotorState) error {
	m.motorStates = append(m.motorStates, state)
	return nil
}

func (m *mockMessagingClient) PublishStatus(report types.StatusReport) error {
	m.statusReports = append(m.statusReports, report)
	return nil
}

// Fake clock
type fakeClock struct {
	now clock.Millis
}

func (f *fakeClock) Now() clock.Millis { return f.now }

// Test helper: a system with components built but without the ticker
// goroutine, so tests drive tick() by hand against the fake clock.
func newTestSystem(t *testing.T) (*AwningSystem, *mockHardwareIO, *mockMessagingClient, *fakeClock) {
	t.Helper()
	l := logger.NewLogger(nil, logger.LogLevelNone)
	mockIO := newMockHardwareIO()
	mockRedis := newMockMessagingClient()
	clk := &fakeClock{}

	system := NewAwningSystem(config.Default(), mockIO, mockRedis, nil, clk, l)
	if err := system.initComponents(); err != nil {
		t.Fatalf("initComponents failed: %v", err)
	}
	if err := system.engine.Start(context.Background()); err != nil {
		t.Fatalf("engine start failed: %v", err)
	}
	return system, mockIO, mockRedis, clk
}

// settle runs the boot-at-night retract to completion: the first tick
// issues the automation IN, the rotation timeout stops it.
func settle(t *testing.T, s *AwningSystem, r *mockMessagingClient, clk *fakeClock) {
	t.Helper()
	clk.now = 0
	s.tick()
	if s.motor.State() != types.MotorRunningIn {
		t.Fatalf("Expected boot retract, motor state %s", s.motor.State())
	}
	clk.now = 7000
	s.tick()
	if s.motor.IsRunning() {
		t.Fatal("Motor still running after rotation timeout")
	}
	r.motorStates = nil
	r.statusReports = nil
}

func TestBootAtNightRetractsAndStops(t *testing.T) {
	s, _, mockRedis, clk := newTestSystem(t)

	clk.now = 0
	s.tick()

	if s.motor.State() != types.MotorRunningIn {
		t.Errorf("Expected running-in at night boot, got %s", s.motor.State())
	}
	if len(mockRedis.motorStates) != 1 || mockRedis.motorStates[0] != types.MotorRunningIn {
		t.Errorf("Expected running-in published, got %v", mockRedis.motorStates)
	}

	clk.now = 6999
	s.tick()
	if !s.motor.IsRunning() {
		t.Error("Motor stopped before rotation elapsed")
	}

	clk.now = 7000
	s.tick()
	if s.motor.IsRunning() {
		t.Error("Motor still running at rotation duration")
	}
	last := mockRedis.motorStates[len(mockRedis.motorStates)-1]
	if last != types.MotorStopped {
		t.Errorf("Expected stopped published, got %s", last)
	}
}

func TestManualSinglePulseMovesIn(t *testing.T) {
	s, mockIO, mockRedis, clk := newTestSystem(t)
	settle(t, s, mockRedis, clk)

	clk.now = 8000
	mockIO.commandLevel = true
	s.tick()
	mockIO.commandLevel = false
	clk.now = 8050
	s.tick()

	clk.now = 8750
	s.tick()

	if s.motor.State() != types.MotorRunningIn {
		t.Errorf("Expected running-in after single pulse, got %s", s.motor.State())
	}
}

func TestManualDoublePulseMovesOut(t *testing.T) {
	s, mockIO, mockRedis, clk := newTestSystem(t)
	settle(t, s, mockRedis, clk)

	clk.now = 8000
	mockIO.commandLevel = true
	s.tick()
	mockIO.commandLevel = false
	clk.now = 8050
	s.tick()
	clk.now = 8400
	mockIO.commandLevel = true
	s.tick()
	mockIO.commandLevel = false
	clk.now = 8450
	s.tick()

	clk.now = 9150
	s.tick()

	if s.motor.State() != types.MotorRunningOut {
		t.Errorf("Expected running-out after double pulse, got %s", s.motor.State())
	}
}

func TestAutomationHeldWhilePulsesPending(t *testing.T) {
	s, mockIO, mockRedis, clk := newTestSystem(t)
	settle(t, s, mockRedis, clk)

	// A manual pulse lands just before daybreak.
	clk.now = 8000
	mockIO.commandLevel = true
	s.tick()
	mockIO.commandLevel = false
	clk.now = 8050
	s.tick()

	mockIO.analogInputs[hardware.ChannelLight] = 800

	clk.now = 8100
	s.tick()
	if s.motor.IsRunning() {
		t.Fatal("Automation acted while pulses pending")
	}
	if s.engine.State() != automation.StateNightIdle {
		t.Fatalf("Engine advanced while pulses pending: %s", s.engine.State())
	}

	// The manual command wins once the command delay elapses.
	clk.now = 8750
	s.tick()
	if s.motor.State() != types.MotorRunningIn {
		t.Fatalf("Expected manual running-in, got %s", s.motor.State())
	}

	// After the manual run completes, automation catches up with the
	// daybreak in the same tick.
	clk.now = 8750 + 7000
	s.tick()
	if s.motor.State() != types.MotorRunningOut {
		t.Errorf("Expected automation running-out after manual run, got %s", s.motor.State())
	}
}

func TestQueuedCommandSurvivesAutoStop(t *testing.T) {
	s, mockIO, _, clk := newTestSystem(t)

	// Boot retract is in progress; a pulse arrives mid-run.
	clk.now = 0
	s.tick()
	clk.now = 5000
	mockIO.commandLevel = true
	s.tick()
	mockIO.commandLevel = false
	clk.now = 5050
	s.tick()

	// Rotation timeout stops the motor but keeps the pending command.
	clk.now = 7000
	s.tick()
	if s.motor.IsRunning() {
		t.Fatal("Motor still running after rotation timeout")
	}

	clk.now = 7500
	s.tick()
	if s.motor.State() != types.MotorRunningIn {
		t.Errorf("Queued command not dispatched after stop, motor %s", s.motor.State())
	}
}

func TestStatusCadence(t *testing.T) {
	s, _, mockRedis, clk := newTestSystem(t)
	settle(t, s, mockRedis, clk)

	clk.now = 7500
	s.tick()
	if len(mockRedis.statusReports) != 0 {
		t.Fatalf("Status published before interval: %d", len(mockRedis.statusReports))
	}

	clk.now = 8000
	s.tick()
	if len(mockRedis.statusReports) != 1 {
		t.Fatalf("Expected 1 status at interval, got %d", len(mockRedis.statusReports))
	}

	clk.now = 8990
	s.tick()
	clk.now = 9000
	s.tick()
	if len(mockRedis.statusReports) != 2 {
		t.Errorf("Expected 2 statuses, got %d", len(mockRedis.statusReports))
	}

	report := mockRedis.statusReports[0]
	if report.MotorState != types.MotorStopped || report.Rain != 900 || report.Light != 100 {
		t.Errorf("Unexpected status report: %+v", report)
	}
}

func TestSensorReadErrorSkipsTick(t *testing.T) {
	s, mockIO, _, clk := newTestSystem(t)

	mockIO.analogErr = errors.New("adc gone")
	clk.now = 0
	s.tick()

	if s.motor.IsRunning() {
		t.Error("Motor started on a failed tick")
	}
	if s.engine.State() != automation.StateInit {
		t.Errorf("Engine advanced on a failed tick: %s", s.engine.State())
	}

	mockIO.analogErr = nil
	clk.now = 10
	s.tick()
	if s.motor.State() != types.MotorRunningIn {
		t.Errorf("Expected recovery on next tick, got %s", s.motor.State())
	}
}

func TestStartAppliesSettingsOverrides(t *testing.T) {
	l := logger.NewLogger(nil, logger.LogLevelNone)
	mockIO := newMockHardwareIO()
	mockRedis := newMockMessagingClient()
	mockRedis.settings = messaging.Settings{
		RainThreshold:  650,
		LightThreshold: 300,
		RotationMs:     3000,
	}

	system := NewAwningSystem(config.Default(), mockIO, mockRedis, nil, &fakeClock{}, l)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := system.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer system.Shutdown()

	if system.cfg.Thresholds.RainThreshold != 650 {
		t.Errorf("Rain threshold override not applied: %d", system.cfg.Thresholds.RainThreshold)
	}
	if system.cfg.Thresholds.LightThreshold != 300 {
		t.Errorf("Light threshold override not applied: %d", system.cfg.Thresholds.LightThreshold)
	}
	if system.cfg.Timing.RotationMs != 3000 {
		t.Errorf("Rotation override not applied: %d", system.cfg.Timing.RotationMs)
	}
}

func TestStartFailsWhenRedisUnreachable(t *testing.T) {
	l := logger.NewLogger(nil, logger.LogLevelNone)
	mockRedis := newMockMessagingClient()
	mockRedis.connectErr = errors.New("connection refused")

	system := NewAwningSystem(config.Default(), newMockHardwareIO(), mockRedis, nil, &fakeClock{}, l)

	if err := system.Start(context.Background()); err == nil {
		t.Error("Expected Start to fail when Redis is unreachable")
	}
}

func TestShutdownReleasesHardware(t *testing.T) {
	l := logger.NewLogger(nil, logger.LogLevelNone)
	mockIO := newMockHardwareIO()
	mockRedis := newMockMessagingClient()

	system := NewAwningSystem(config.Default(), mockIO, mockRedis, nil, &fakeClock{}, l)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := system.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	system.Shutdown()

	if !mockIO.cleanedUp {
		t.Error("Hardware not cleaned up on shutdown")
	}
	if !mockRedis.closed {
		t.Error("Redis client not closed on shutdown")
	}
}
