// Package hal abstracts the pit hardware: the thermocouple, the PWM fan
// actuator, and the tachometer edge source. The control loop talks to these
// interfaces only; backends are a simulated rig for development and a
// sysfs/gpiocdev rig on the Pi.
package hal

import (
	"fmt"

	"pitfan/internal/config"
	"pitfan/internal/logger"
)

// TemperatureSensor supplies chamber temperature readings.
type TemperatureSensor interface {
	ReadCelsius() (float64, error)
	Close() error
}

// PWMDriver programs the PWM peripheral. WriteDuty takes a tick count in
// [0, DutyRange] as solved by SolveTiming. Release parks the pin in a safe
// state (input, pulled low) and frees the peripheral.
type PWMDriver interface {
	ApplyTiming(t PwmTiming) error
	WriteDuty(ticks int) error
	Release() error
}

// PulseHandler receives one call per tachometer rising edge with a
// monotonic timestamp in microseconds. It runs in interrupt-like context:
// it must not block, allocate, or perform I/O.
type PulseHandler func(timestampMicros int64)

// TachSource owns the edge subscription; Close stops delivery.
type TachSource interface {
	Close() error
}

// Rig bundles the three hardware collaborators.
type Rig struct {
	Sensor TemperatureSensor
	PWM    PWMDriver
	Tach   TachSource
}

// Open builds the rig selected by the sensor backend. The sim backend needs
// no hardware and synthesizes tach pulses itself; the hwmon backend expects
// a Pi with the PWM channel exported and the tach line wired.
func Open(cfg *config.Config, pulses PulseHandler, log *logger.Logger) (*Rig, error) {
	switch cfg.Sensor.Backend {
	case config.SensorSim:
		rig := newSimRig(cfg.Control, pulses, log)
		return &Rig{Sensor: rig, PWM: rig, Tach: rig}, nil
	case config.SensorHwmon:
		pwm, err := openPWM(cfg.Control.PWMPin)
		if err != nil {
			return nil, fmt.Errorf("open pwm: %w", err)
		}
		tach, err := openTach(cfg.Control.TachPin, pulses)
		if err != nil {
			_ = pwm.Release()
			return nil, fmt.Errorf("open tach: %w", err)
		}
		return &Rig{
			Sensor: newHwmonSensor(cfg.Sensor.Path),
			PWM:    pwm,
			Tach:   tach,
		}, nil
	default:
		return nil, fmt.Errorf("unknown sensor backend %q", cfg.Sensor.Backend)
	}
}

// Close releases every collaborator, best-effort, returning the first error.
func (r *Rig) Close() error {
	var first error
	if r.Tach != nil {
		if err := r.Tach.Close(); err != nil && first == nil {
			first = err
		}
	}
	if r.PWM != nil {
		if err := r.PWM.Release(); err != nil && first == nil {
			first = err
		}
	}
	if r.Sensor != nil {
		if err := r.Sensor.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
