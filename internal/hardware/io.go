package hardware

import (
	"fmt"
	"sync"

	"github.com/warthog618/go-gpiocdev"

	"awning-service/internal/config"
	"awning-service/internal/logger"
)

// LinuxHardwareIO drives the awning board through the GPIO character
// device, the IIO sysfs ADC and a sysfs PWM channel.
type LinuxHardwareIO struct {
	logger      *logger.Logger
	cfg         config.HardwareConfig
	chip        *gpiocdev.Chip
	outputs     map[string]*gpiocdev.Line
	commandLine *gpiocdev.Line
	adcChannels map[string]int
	pwm         *SysfsPwm
	mu          sync.Mutex
}

func NewLinuxHardwareIO(cfg config.HardwareConfig, l *logger.Logger) *LinuxHardwareIO {
	return &LinuxHardwareIO{
		logger:  l.WithTag("hw"),
		cfg:     cfg,
		outputs: make(map[string]*gpiocdev.Line),
		adcChannels: map[string]int{
			ChannelRain:  cfg.RainChannel,
			ChannelLight: cfg.LightChannel,
		},
	}
}

func (io *LinuxHardwareIO) Initialize() error {
	io.logger.Infof("Initializing hardware IO on %s", io.cfg.GpioChip)

	chip, err := gpiocdev.NewChip(io.cfg.GpioChip)
	if err != nil {
		return fmt.Errorf("open GPIO chip %s: %w", io.cfg.GpioChip, err)
	}
	io.chip = chip

	// Direction outputs come up low so the motor is stopped at boot.
	outputLines := map[string]int{
		ChannelMotorIn1: io.cfg.MotorIn1Line,
		ChannelMotorIn2: io.cfg.MotorIn2Line,
	}
	for name, offset := range outputLines {
		line, err := chip.RequestLine(offset,
			gpiocdev.AsOutput(0),
			gpiocdev.WithConsumer(LineConsumer))
		if err != nil {
			io.Cleanup()
			return fmt.Errorf("request GPIO line %d for %s: %w", offset, name, err)
		}
		io.outputs[name] = line
		io.logger.Debugf("Configured DO %s: line=%d", name, offset)
	}

	io.commandLine, err = chip.RequestLine(io.cfg.CommandLine,
		gpiocdev.AsInput,
		gpiocdev.WithPullDown,
		gpiocdev.WithConsumer(LineConsumer))
	if err != nil {
		io.Cleanup()
		return fmt.Errorf("request command line %d: %w", io.cfg.CommandLine, err)
	}
	io.logger.Debugf("Configured DI %s: line=%d", ChannelCommand, io.cfg.CommandLine)

	io.pwm = NewSysfsPwm(io.cfg.PwmChip, io.cfg.PwmChannel, io.cfg.PwmPeriodNs)
	if err := io.pwm.Init(); err != nil {
		io.Cleanup()
		return fmt.Errorf("initialize motor PWM: %w", err)
	}

	return nil
}

// ReadDigitalInput returns the current level of the command line.
func (io *LinuxHardwareIO) ReadDigitalInput(channel string) (bool, error) {
	if channel != ChannelCommand {
		return false, fmt.Errorf("unknown digital input channel: %s", channel)
	}
	io.mu.Lock()
	line := io.commandLine
	io.mu.Unlock()
	if line == nil {
		return false, fmt.Errorf("command line not initialized")
	}

	val, err := line.Value()
	if err != nil {
		return false, fmt.Errorf("read %s: %w", channel, err)
	}
	return val != 0, nil
}

func (io *LinuxHardwareIO) WriteDigitalOutput(channel string, value bool) error {
	io.mu.Lock()
	line, ok := io.outputs[channel]
	io.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown digital output channel: %s", channel)
	}

	val := 0
	if value {
		val = 1
	}
	if err := line.SetValue(val); err != nil {
		return fmt.Errorf("set DO %s=%v: %w", channel, value, err)
	}
	io.logger.Debugf("Set DO %s=%v", channel, value)
	return nil
}

// ReadAnalogInput reads a raw ADC value (0-1023) for the rain or light
// channel from the IIO sysfs interface.
func (io *LinuxHardwareIO) ReadAnalogInput(channel string) (int, error) {
	adcChannel, ok := io.adcChannels[channel]
	if !ok {
		return -1, fmt.Errorf("unknown analog input channel: %s", channel)
	}
	return ReadAdcValue(io.cfg.AdcDevice, adcChannel)
}

// SetMotorDuty sets the motor enable duty cycle, 0-255.
func (io *LinuxHardwareIO) SetMotorDuty(duty int) error {
	if io.pwm == nil {
		return fmt.Errorf("motor PWM not initialized")
	}
	if err := io.pwm.SetDuty(duty); err != nil {
		return fmt.Errorf("set motor duty %d: %w", duty, err)
	}
	io.logger.Debugf("Set motor duty %d", duty)
	return nil
}

func (io *LinuxHardwareIO) Cleanup() {
	io.mu.Lock()
	defer io.mu.Unlock()

	io.logger.Infof("Cleaning up hardware resources")

	if io.pwm != nil {
		if err := io.pwm.SetDuty(0); err != nil {
			io.logger.Warnf("Failed to zero motor duty: %v", err)
		}
		io.pwm.Cleanup()
		io.pwm = nil
	}

	for name, line := range io.outputs {
		if err := line.SetValue(0); err != nil {
			io.logger.Warnf("Failed to zero DO %s: %v", name, err)
		}
		line.Close()
		delete(io.outputs, name)
	}

	if io.commandLine != nil {
		io.commandLine.Close()
		io.commandLine = nil
	}

	if io.chip != nil {
		io.chip.Close()
		io.chip = nil
	}
}
