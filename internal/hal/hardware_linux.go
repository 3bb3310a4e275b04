//go:build linux && (arm || arm64)

package hal

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/warthog618/go-gpiocdev"
)

// Hardware backends for the Pi: the PWM peripheral through
// /sys/class/pwm (requires dtoverlay=pwm-2chan or equivalent so the pin is
// exposed as a PWM channel) and the tachometer through the GPIO character
// device.

var pwmSysfsBase = "/sys/class/pwm"

// Header pins carrying the two hardware PWM channels on Pi 3/4/5.
var pwmChannelByPin = map[int]int{18: 0, 19: 1}

type sysfsPWM struct {
	pin      int
	chipPath string
	pwmPath  string
	channel  int

	timing   PwmTiming
	periodNS uint64
	enabled  bool
}

func openPWM(pin int) (PWMDriver, error) {
	channel, ok := pwmChannelByPin[pin]
	if !ok {
		return nil, fmt.Errorf("gpio %d is not a hardware PWM pin (use 18 or 19)", pin)
	}

	chipPath, err := findPWMChip()
	if err != nil {
		return nil, err
	}

	d := &sysfsPWM{
		pin:      pin,
		chipPath: chipPath,
		channel:  channel,
		pwmPath:  filepath.Join(chipPath, fmt.Sprintf("pwm%d", channel)),
	}
	if err := d.ensureExported(); err != nil {
		return nil, err
	}
	// Channel may still be running from a previous process.
	_ = d.writeAttr("enable", "0")
	return d, nil
}

func findPWMChip() (string, error) {
	entries, err := os.ReadDir(pwmSysfsBase)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", pwmSysfsBase, err)
	}
	// Prefer pwmchip0 when present (common on Pi).
	preferred := []string{"pwmchip0", "pwmchip1", "pwmchip2"}
	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "pwmchip") {
			seen[e.Name()] = true
		}
	}
	for _, name := range preferred {
		if seen[name] {
			return filepath.Join(pwmSysfsBase, name), nil
		}
	}
	for name := range seen {
		return filepath.Join(pwmSysfsBase, name), nil
	}
	return "", fmt.Errorf("no pwmchip under %s (missing pwm overlay?)", pwmSysfsBase)
}

func (d *sysfsPWM) ensureExported() error {
	if _, err := os.Stat(d.pwmPath); err == nil {
		return nil
	}
	err := os.WriteFile(filepath.Join(d.chipPath, "export"), []byte(strconv.Itoa(d.channel)), 0o200)
	if err != nil && !errorsIsBusy(err) {
		return fmt.Errorf("export pwm channel %d: %w", d.channel, err)
	}
	if _, err := os.Stat(d.pwmPath); err != nil {
		return fmt.Errorf("pwm channel %d did not appear after export: %w", d.channel, err)
	}
	return nil
}

func errorsIsBusy(err error) bool {
	var errno syscall.Errno
	return errors.As(err, &errno) && errno == syscall.EBUSY
}

// ApplyTiming programs the period derived from the solved timing and arms
// the channel at zero duty.
func (d *sysfsPWM) ApplyTiming(t PwmTiming) error {
	if t.AchievedFrequencyHz <= 0 || t.DutyRange <= 0 {
		return fmt.Errorf("invalid pwm timing %+v", t)
	}
	d.timing = t
	d.periodNS = uint64(1_000_000_000 / t.AchievedFrequencyHz)

	// Kernel requires duty <= period at all times; zero duty first.
	_ = d.writeAttr("duty_cycle", "0")
	if err := d.writeAttr("period", strconv.FormatUint(d.periodNS, 10)); err != nil {
		return fmt.Errorf("set pwm period: %w", err)
	}
	if err := d.writeAttr("duty_cycle", "0"); err != nil {
		return fmt.Errorf("zero pwm duty: %w", err)
	}
	if err := d.writeAttr("enable", "1"); err != nil {
		return fmt.Errorf("enable pwm: %w", err)
	}
	d.enabled = true
	return nil
}

// WriteDuty converts solver ticks to nanoseconds of on-time. The channel
// must have been armed by ApplyTiming first.
func (d *sysfsPWM) WriteDuty(ticks int) error {
	if !d.enabled || d.timing.DutyRange <= 0 {
		return fmt.Errorf("pwm timing not applied")
	}
	if ticks < 0 {
		ticks = 0
	}
	if ticks > d.timing.DutyRange {
		ticks = d.timing.DutyRange
	}
	dutyNS := d.periodNS * uint64(ticks) / uint64(d.timing.DutyRange)
	return d.writeAttr("duty_cycle", strconv.FormatUint(dutyNS, 10))
}

// Release disables and unexports the channel, then parks the pin as an
// input with pull-down so a floating gate cannot restart the fan.
func (d *sysfsPWM) Release() error {
	var first error
	if err := d.writeAttr("duty_cycle", "0"); err != nil && first == nil {
		first = err
	}
	if err := d.writeAttr("enable", "0"); err != nil && first == nil {
		first = err
	}
	d.enabled = false
	if err := os.WriteFile(filepath.Join(d.chipPath, "unexport"), []byte(strconv.Itoa(d.channel)), 0o200); err != nil && first == nil {
		first = err
	}
	if err := parkPin(d.pin); err != nil && first == nil {
		first = err
	}
	return first
}

func (d *sysfsPWM) writeAttr(name, value string) error {
	return os.WriteFile(filepath.Join(d.pwmPath, name), []byte(value), 0o200)
}

// parkPin requests the GPIO as an input with pull-down and immediately
// releases it, leaving the kernel-configured safe state behind.
func parkPin(pin int) error {
	chip, line, err := requestLine(pin, "pitfan-park",
		gpiocdev.AsInput, gpiocdev.WithPullDown)
	if err != nil {
		return err
	}
	_ = line.Close()
	return chip.Close()
}

// gpiodTach delivers tachometer rising edges to the estimator.
type gpiodTach struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line
}

func openTach(pin int, pulses PulseHandler) (TachSource, error) {
	if pulses == nil {
		return nil, fmt.Errorf("tach: nil pulse handler")
	}
	// The kernel timestamps edges on CLOCK_MONOTONIC; hand the handler
	// microseconds so the estimator never touches a clock itself.
	chip, line, err := requestLine(pin, "pitfan-tach",
		gpiocdev.AsInput,
		gpiocdev.WithPullDown,
		gpiocdev.WithRisingEdge,
		gpiocdev.WithEventHandler(func(evt gpiocdev.LineEvent) {
			pulses(evt.Timestamp.Microseconds())
		}),
	)
	if err != nil {
		return nil, err
	}
	return &gpiodTach{chip: chip, line: line}, nil
}

func (t *gpiodTach) Close() error {
	var first error
	if t.line != nil {
		if err := t.line.Close(); err != nil {
			first = err
		}
		t.line = nil
	}
	if t.chip != nil {
		if err := t.chip.Close(); err != nil && first == nil {
			first = err
		}
		t.chip = nil
	}
	return first
}

// requestLine finds the named GPIO line across available chips. Pi kernels
// name header pins "GPIO<n>"; candidate chips vary across Pi revisions.
func requestLine(pin int, consumer string, opts ...gpiocdev.LineReqOption) (*gpiocdev.Chip, *gpiocdev.Line, error) {
	lineName := fmt.Sprintf("GPIO%d", pin)

	candidates := []string{"/dev/gpiochip0", "/dev/gpiochip4"}
	entries, _ := os.ReadDir("/dev")
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "gpiochip") {
			candidates = append(candidates, filepath.Join("/dev", e.Name()))
		}
	}

	reqOpts := append([]gpiocdev.LineReqOption{gpiocdev.WithConsumer(consumer)}, opts...)
	for _, chipPath := range candidates {
		chip, err := gpiocdev.NewChip(chipPath)
		if err != nil {
			continue
		}
		offset, err := chip.FindLine(lineName)
		if err != nil {
			_ = chip.Close()
			continue
		}
		line, err := chip.RequestLine(offset, reqOpts...)
		if err != nil {
			_ = chip.Close()
			continue
		}
		return chip, line, nil
	}
	return nil, nil, fmt.Errorf("gpio line %q not found (or busy)", lineName)
}
