package control

import "sync/atomic"

// RpmEstimator derives fan RPM from tachometer rising edges. Pulse runs in
// interrupt-like context and therefore touches nothing but two atomics: no
// locks, no allocation, no I/O. The control loop polls the derived value
// once per period and forces it to zero when no edge arrived in a period, so
// a stalled fan never reports a stale speed.
type RpmEstimator struct {
	pulsesPerRev   int64
	lastEdgeMicros atomic.Int64
	rpm            atomic.Int64
}

// NewRpmEstimator returns an estimator for a fan emitting pulsesPerRev
// tachometer pulses per mechanical revolution.
func NewRpmEstimator(pulsesPerRev int) *RpmEstimator {
	if pulsesPerRev < 1 {
		pulsesPerRev = 1
	}
	return &RpmEstimator{pulsesPerRev: int64(pulsesPerRev)}
}

// Pulse records one rising edge with a monotonic timestamp in microseconds.
// The first edge only primes the measurement window.
func (e *RpmEstimator) Pulse(tsMicros int64) {
	prev := e.lastEdgeMicros.Swap(tsMicros)
	if prev == 0 {
		return
	}
	dt := tsMicros - prev
	if dt > 0 {
		e.rpm.Store(60_000_000 / dt / e.pulsesPerRev)
	}
}

// RPM returns the most recent estimate.
func (e *RpmEstimator) RPM() int {
	return int(e.rpm.Load())
}

// LastEdgeMicros returns the timestamp of the most recent edge, for the
// loop's per-period stall comparison.
func (e *RpmEstimator) LastEdgeMicros() int64 {
	return e.lastEdgeMicros.Load()
}

// MarkStalled forces the estimate to zero.
func (e *RpmEstimator) MarkStalled() {
	e.rpm.Store(0)
}
