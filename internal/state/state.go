// Package state holds the shared thermostat record read and written by the
// control loop and the HTTP surface. One lock guards the whole record; no
// reader requires cross-field consistency, but all single-field accesses
// must go through it.
package state

import (
	"math"
	"sync"

	"pitfan"
)

// Thermostat is the process-lifetime shared record. Ownership discipline:
// currentTemperatureC and currentMode are written by the control loop (plus
// the explicit override route); targetMode and targetTemperatureC are
// written by the status API only. Duty and RPM are loop-owned telemetry.
type Thermostat struct {
	mu sync.RWMutex

	targetMode   pitfan.CoolingMode
	targetTempC  float64
	currentMode  pitfan.CoolingMode
	currentTempC float64

	dutyPercent int
	fanRPM      int
}

// New returns the startup record: both modes Heat, the configured target,
// and negative zero as the "no reading yet" sentinel for the current
// temperature.
func New(defaultTargetC float64) *Thermostat {
	return &Thermostat{
		targetMode:   pitfan.ModeHeat,
		targetTempC:  defaultTargetC,
		currentMode:  pitfan.ModeHeat,
		currentTempC: math.Copysign(0, -1),
	}
}

// Snapshot returns the integration-facing view of the record.
func (t *Thermostat) Snapshot() pitfan.Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snapshotLocked()
}

// Telemetry returns the snapshot plus the loop-owned actuation values.
func (t *Thermostat) Telemetry() pitfan.Telemetry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return pitfan.Telemetry{
		Snapshot:       t.snapshotLocked(),
		FanDutyPercent: t.dutyPercent,
		FanRPM:         t.fanRPM,
	}
}

func (t *Thermostat) snapshotLocked() pitfan.Snapshot {
	return pitfan.Snapshot{
		TargetMode:         t.targetMode,
		TargetTemperature:  t.targetTempC,
		CurrentMode:        t.currentMode,
		CurrentTemperature: t.currentTempC,
	}
}

// SetTargetTemperature stores the desired temperature and returns the
// post-write snapshot.
func (t *Thermostat) SetTargetTemperature(v float64) pitfan.Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.targetTempC = v
	return t.snapshotLocked()
}

// SetTargetMode stores the desired mode. Out-of-range values are accepted
// and stored as-is; the external contract, not this process, owns the enum.
func (t *Thermostat) SetTargetMode(m pitfan.CoolingMode) pitfan.Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.targetMode = m
	return t.snapshotLocked()
}

// OverrideCurrentTemperature force-sets the sensor value. The next loop
// period overwrites it with a fresh reading; the capability exists for the
// external integration.
func (t *Thermostat) OverrideCurrentTemperature(v float64) pitfan.Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.currentTempC = v
	return t.snapshotLocked()
}

// SetCurrentTemperature records a sensor reading (control loop only).
func (t *Thermostat) SetCurrentTemperature(v float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.currentTempC = v
}

// CurrentTemperature returns the last recorded reading.
func (t *Thermostat) CurrentTemperature() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.currentTempC
}

// Targets returns the desired temperature and mode as one read.
func (t *Thermostat) Targets() (float64, pitfan.CoolingMode) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.targetTempC, t.targetMode
}

// CurrentMode returns the applied mode.
func (t *Thermostat) CurrentMode() pitfan.CoolingMode {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.currentMode
}

// AdoptMode records the applied mode (control loop only).
func (t *Thermostat) AdoptMode(m pitfan.CoolingMode) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.currentMode = m
}

// SetActuation records the commanded duty and the measured RPM for the
// observability surface (control loop only).
func (t *Thermostat) SetActuation(dutyPercent, rpm int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.dutyPercent = dutyPercent
	t.fanRPM = rpm
}
