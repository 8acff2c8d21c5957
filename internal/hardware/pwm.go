package hardware

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// SysfsPwm drives one channel of a sysfs PWM chip. The motor enable
// input expects an 8-bit duty value; SetDuty scales it against the
// configured period.
type SysfsPwm struct {
	chipDir  string
	channel  int
	periodNs int
	enabled  bool
}

func NewSysfsPwm(chip string, channel, periodNs int) *SysfsPwm {
	return &SysfsPwm{
		chipDir:  filepath.Join("/sys/class/pwm", chip),
		channel:  channel,
		periodNs: periodNs,
	}
}

func (p *SysfsPwm) channelDir() string {
	return filepath.Join(p.chipDir, fmt.Sprintf("pwm%d", p.channel))
}

func (p *SysfsPwm) writeAttr(dir, name string, value int) error {
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(strconv.Itoa(value)), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// Init exports the channel if needed and programs the period with the
// output disabled.
func (p *SysfsPwm) Init() error {
	if _, err := os.Stat(p.channelDir()); os.IsNotExist(err) {
		if err := p.writeAttr(p.chipDir, "export", p.channel); err != nil {
			return err
		}
	}
	if err := p.writeAttr(p.channelDir(), "duty_cycle", 0); err != nil {
		return err
	}
	if err := p.writeAttr(p.channelDir(), "period", p.periodNs); err != nil {
		return err
	}
	if err := p.writeAttr(p.channelDir(), "enable", 0); err != nil {
		return err
	}
	p.enabled = false
	return nil
}

// SetDuty programs an 8-bit duty value. Zero disables the output.
func (p *SysfsPwm) SetDuty(duty int) error {
	if duty < 0 || duty > 255 {
		return fmt.Errorf("duty %d out of range 0-255", duty)
	}

	dutyNs := p.periodNs * duty / 255
	if err := p.writeAttr(p.channelDir(), "duty_cycle", dutyNs); err != nil {
		return err
	}

	enable := 0
	if duty > 0 {
		enable = 1
	}
	if p.enabled != (enable == 1) {
		if err := p.writeAttr(p.channelDir(), "enable", enable); err != nil {
			return err
		}
		p.enabled = enable == 1
	}
	return nil
}

func (p *SysfsPwm) Cleanup() {
	// Best effort; the channel stays exported for the next run.
	_ = p.writeAttr(p.channelDir(), "duty_cycle", 0)
	_ = p.writeAttr(p.channelDir(), "enable", 0)
	p.enabled = false
}
