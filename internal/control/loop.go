// Package control implements the periodic sampling/actuation loop and the
// tachometer-driven RPM estimator.
package control

import (
	"context"
	"time"

	"pitfan"
	"pitfan/internal/hal"
	"pitfan/internal/logger"
	"pitfan/internal/repository"
	"pitfan/internal/state"
)

// Loop converts the temperature error into a fan duty cycle once per period
// and manages the mode state machine. It is the sole writer of the current
// temperature, the current mode, and the PWM duty register; targets arrive
// through the shared state record.
type Loop struct {
	st     *state.Thermostat
	sensor hal.TemperatureSensor
	pwm    hal.PWMDriver
	est    *RpmEstimator
	events repository.EventRepo
	log    *logger.Logger

	dutyRange int

	lastDuty int
	prevEdge int64
	prevRPM  int
}

// New wires the loop. timing must be the solved PWM parameterization already
// applied to the driver; its range scales percent commands to ticks.
func New(
	st *state.Thermostat,
	sensor hal.TemperatureSensor,
	pwm hal.PWMDriver,
	timing hal.PwmTiming,
	est *RpmEstimator,
	events repository.EventRepo,
	log *logger.Logger,
) *Loop {
	return &Loop{
		st:        st,
		sensor:    sensor,
		pwm:       pwm,
		est:       est,
		events:    events,
		log:       log,
		dutyRange: timing.DutyRange,
	}
}

// Run ticks at the given interval until ctx is canceled. Cancellation is
// observed at the top of each period, so shutdown latency is bounded by one
// tick.
func (l *Loop) Run(ctx context.Context, tick time.Duration) {
	t := time.NewTicker(tick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			l.step(ctx)
		}
	}
}

// step is one control period: sample, run the mode/duty policy, poll RPM.
func (l *Loop) step(ctx context.Context) {
	temp, err := l.sensor.ReadCelsius()
	if err != nil {
		// Hold the last value for this period; a transient sensor fault
		// must not command the fan.
		temp = l.st.CurrentTemperature()
		l.log.Errorw("sensor read failed, holding last value", "err", err, "held_c", temp)
	} else {
		l.st.SetCurrentTemperature(temp)
	}

	target, targetMode := l.st.Targets()
	current := l.st.CurrentMode()
	l.log.Debugw("sample", "current_c", temp, "target_c", target)

	switch {
	case current != targetMode:
		// Off is an explicit override; other modes are adopted and leave
		// duty to the temperature policy from the next period on.
		if targetMode == pitfan.ModeOff {
			l.applyDuty(0)
		}
		l.st.AdoptMode(targetMode)
		l.appendModeChange(ctx, current, targetMode)
	case temp > target:
		// Overshoot: stop feeding the fire.
		l.applyDuty(0)
	default:
		// Proportional band normalized by the target itself.
		errorPct := (target - temp) * 100 / target
		if errorPct > 0 {
			l.applyDuty(int(errorPct))
		}
	}

	l.pollRPM()
	l.st.SetActuation(l.lastDuty, l.prevRPM)
}

// applyDuty clamps the commanded percentage and writes the PWM register
// only when the command differs from the last written value.
func (l *Loop) applyDuty(percent int) {
	if percent > 100 {
		percent = 100
	} else if percent < 0 {
		percent = 0
	}
	if percent == l.lastDuty {
		return
	}
	ticks := l.dutyRange * percent / 100
	if err := l.pwm.WriteDuty(ticks); err != nil {
		l.log.Errorw("pwm write failed", "err", err, "percent", percent)
		return
	}
	l.lastDuty = percent
	l.log.Debugw("fan duty", "percent", percent)
}

// pollRPM forces the estimate to zero when no edge arrived since the
// previous period, then records the value for telemetry.
func (l *Loop) pollRPM() {
	edge := l.est.LastEdgeMicros()
	if edge == l.prevEdge {
		l.est.MarkStalled()
	}
	rpm := l.est.RPM()
	if rpm != l.prevRPM {
		l.log.Debugw("fan speed", "rpm", rpm)
	}
	l.prevRPM = rpm
	l.prevEdge = edge
}

func (l *Loop) appendModeChange(ctx context.Context, from, to pitfan.CoolingMode) {
	if l.events == nil {
		return
	}
	err := l.events.Append(ctx, pitfan.Event{
		Type:        pitfan.EventModeChange,
		Description: "Mode changed to " + to.String(),
		Metadata:    map[string]any{"from": int(from), "to": int(to)},
	})
	if err != nil {
		l.log.Errorw("append mode change event failed", "err", err)
	}
}
