package control

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"pitfan"
	"pitfan/internal/hal"
	"pitfan/internal/logger"
	"pitfan/internal/state"
)

type fakeSensor struct {
	mu      sync.Mutex
	valueC  float64
	readErr error
}

func (s *fakeSensor) ReadCelsius() (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr != nil {
		return 0, s.readErr
	}
	return s.valueC, nil
}

func (s *fakeSensor) Close() error { return nil }

func (s *fakeSensor) set(v float64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.valueC, s.readErr = v, err
}

type fakePWM struct {
	mu       sync.Mutex
	writes   []int
	writeErr error
}

func (p *fakePWM) ApplyTiming(hal.PwmTiming) error { return nil }

func (p *fakePWM) WriteDuty(ticks int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.writeErr != nil {
		return p.writeErr
	}
	p.writes = append(p.writes, ticks)
	return nil
}

func (p *fakePWM) Release() error { return nil }

func (p *fakePWM) recorded() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]int, len(p.writes))
	copy(out, p.writes)
	return out
}

type fakeEvents struct {
	mu       sync.Mutex
	appended []pitfan.Event
}

func (f *fakeEvents) Append(_ context.Context, e pitfan.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appended = append(f.appended, e)
	return nil
}

func (f *fakeEvents) List(context.Context, time.Time, time.Time, string) ([]pitfan.Event, error) {
	return nil, nil
}

func (f *fakeEvents) recorded() []pitfan.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]pitfan.Event, len(f.appended))
	copy(out, f.appended)
	return out
}

// newTestLoop wires a loop around fakes with the reference duty range of
// 1080 ticks (54 MHz base, 25 kHz PWM).
func newTestLoop(st *state.Thermostat, sensor *fakeSensor, pwm *fakePWM, events *fakeEvents) *Loop {
	timing := hal.PwmTiming{ClockDivisor: 2, DutyRange: 1080, AchievedFrequencyHz: 25_000}
	est := NewRpmEstimator(2)
	return New(st, sensor, pwm, timing, est, events, logger.Get(logger.ErrorLevel))
}

func TestLoop_ProportionalDuty(t *testing.T) {
	st := state.New(50.0)
	sensor := &fakeSensor{valueC: 40.0}
	pwm := &fakePWM{}
	l := newTestLoop(st, sensor, pwm, &fakeEvents{})

	l.step(context.Background())

	// error = (50-40)*100/50 = 20% → 1080*20/100 = 216 ticks
	writes := pwm.recorded()
	if len(writes) != 1 || writes[0] != 216 {
		t.Fatalf("writes = %v, want [216]", writes)
	}
	tel := st.Telemetry()
	if tel.FanDutyPercent != 20 {
		t.Fatalf("duty = %d%%, want 20", tel.FanDutyPercent)
	}
	if tel.CurrentTemperature != 40.0 {
		t.Fatalf("current = %v, want 40", tel.CurrentTemperature)
	}
}

func TestLoop_DutyClampedAt100(t *testing.T) {
	st := state.New(50.0)
	sensor := &fakeSensor{valueC: -10.0} // error well past 100%
	pwm := &fakePWM{}
	l := newTestLoop(st, sensor, pwm, &fakeEvents{})

	l.step(context.Background())

	writes := pwm.recorded()
	if len(writes) != 1 || writes[0] != 1080 {
		t.Fatalf("writes = %v, want [1080]", writes)
	}
}

func TestLoop_OvershootStopsFan(t *testing.T) {
	st := state.New(50.0)
	sensor := &fakeSensor{valueC: 40.0}
	pwm := &fakePWM{}
	l := newTestLoop(st, sensor, pwm, &fakeEvents{})

	l.step(context.Background())
	sensor.set(55.0, nil)
	l.step(context.Background())

	writes := pwm.recorded()
	if len(writes) != 2 || writes[1] != 0 {
		t.Fatalf("writes = %v, want second write 0", writes)
	}
	if tel := st.Telemetry(); tel.FanDutyPercent != 0 {
		t.Fatalf("duty = %d%%, want 0", tel.FanDutyPercent)
	}
}

func TestLoop_AtTargetHoldsDuty(t *testing.T) {
	st := state.New(50.0)
	sensor := &fakeSensor{valueC: 40.0}
	pwm := &fakePWM{}
	l := newTestLoop(st, sensor, pwm, &fakeEvents{})

	l.step(context.Background())
	before := len(pwm.recorded())

	// exactly at target: neither overshoot nor positive error → no write
	sensor.set(50.0, nil)
	l.step(context.Background())

	if got := len(pwm.recorded()); got != before {
		t.Fatalf("writes grew from %d to %d at target", before, got)
	}
	if tel := st.Telemetry(); tel.FanDutyPercent != 20 {
		t.Fatalf("duty = %d%%, want held 20", tel.FanDutyPercent)
	}
}

func TestLoop_DuplicateDutyNotRewritten(t *testing.T) {
	st := state.New(50.0)
	sensor := &fakeSensor{valueC: 40.0}
	pwm := &fakePWM{}
	l := newTestLoop(st, sensor, pwm, &fakeEvents{})

	l.step(context.Background())
	l.step(context.Background())

	if writes := pwm.recorded(); len(writes) != 1 {
		t.Fatalf("writes = %v, want a single write for an unchanged command", writes)
	}
}

func TestLoop_ModeOffForcesDutyZero(t *testing.T) {
	st := state.New(50.0)
	sensor := &fakeSensor{valueC: 40.0}
	pwm := &fakePWM{}
	events := &fakeEvents{}
	l := newTestLoop(st, sensor, pwm, events)

	l.step(context.Background()) // 20% while heating
	st.SetTargetMode(pitfan.ModeOff)
	l.step(context.Background())

	writes := pwm.recorded()
	if len(writes) != 2 || writes[1] != 0 {
		t.Fatalf("writes = %v, want second write 0", writes)
	}
	if got := st.CurrentMode(); got != pitfan.ModeOff {
		t.Fatalf("current mode = %v, want Off", got)
	}

	recorded := events.recorded()
	if len(recorded) != 1 || recorded[0].Type != pitfan.EventModeChange {
		t.Fatalf("events = %+v, want one MODE_CHANGE", recorded)
	}
}

func TestLoop_ModeAdoptionSkipsDutyPolicy(t *testing.T) {
	st := state.New(50.0)
	sensor := &fakeSensor{valueC: 40.0}
	pwm := &fakePWM{}
	l := newTestLoop(st, sensor, pwm, &fakeEvents{})

	// mode mismatch on the very first period: adopt, no duty command
	st.SetTargetMode(pitfan.ModeCool)
	l.step(context.Background())

	if writes := pwm.recorded(); len(writes) != 0 {
		t.Fatalf("writes = %v, want none during mode adoption", writes)
	}
	if got := st.CurrentMode(); got != pitfan.ModeCool {
		t.Fatalf("current mode = %v, want Cool", got)
	}

	// next period the policy runs normally
	l.step(context.Background())
	writes := pwm.recorded()
	if len(writes) != 1 || writes[0] != 216 {
		t.Fatalf("writes = %v, want [216] on the period after adoption", writes)
	}
}

func TestLoop_SensorErrorHoldsLastReading(t *testing.T) {
	st := state.New(50.0)
	sensor := &fakeSensor{valueC: 40.0}
	pwm := &fakePWM{}
	l := newTestLoop(st, sensor, pwm, &fakeEvents{})

	l.step(context.Background())
	sensor.set(0, errors.New("i2c timeout"))
	l.step(context.Background())

	// held reading keeps the same duty: no second write
	if writes := pwm.recorded(); len(writes) != 1 {
		t.Fatalf("writes = %v, want one write across the fault", writes)
	}
	if got := st.CurrentTemperature(); got != 40.0 {
		t.Fatalf("current = %v, want held 40", got)
	}
}

func TestLoop_FailedWriteRetriesNextPeriod(t *testing.T) {
	st := state.New(50.0)
	sensor := &fakeSensor{valueC: 40.0}
	pwm := &fakePWM{writeErr: errors.New("sysfs write failed")}
	l := newTestLoop(st, sensor, pwm, &fakeEvents{})

	l.step(context.Background())
	if tel := st.Telemetry(); tel.FanDutyPercent != 0 {
		t.Fatalf("duty = %d%% after failed write, want 0", tel.FanDutyPercent)
	}

	pwm.mu.Lock()
	pwm.writeErr = nil
	pwm.mu.Unlock()
	l.step(context.Background())

	writes := pwm.recorded()
	if len(writes) != 1 || writes[0] != 216 {
		t.Fatalf("writes = %v, want [216] after recovery", writes)
	}
}

func TestLoop_StalledFanReportsZeroRPM(t *testing.T) {
	st := state.New(50.0)
	sensor := &fakeSensor{valueC: 40.0}
	pwm := &fakePWM{}
	l := newTestLoop(st, sensor, pwm, &fakeEvents{})

	l.est.Pulse(100_000)
	l.est.Pulse(110_000) // 3000 RPM at 2 pulses/rev

	l.step(context.Background())
	if tel := st.Telemetry(); tel.FanRPM != 3000 {
		t.Fatalf("rpm = %d, want 3000", tel.FanRPM)
	}

	// no new edge before the next period → stalled
	l.step(context.Background())
	if tel := st.Telemetry(); tel.FanRPM != 0 {
		t.Fatalf("rpm = %d after stall, want 0", tel.FanRPM)
	}
}

func TestLoop_RunStopsOnCancel(t *testing.T) {
	st := state.New(50.0)
	sensor := &fakeSensor{valueC: 40.0}
	l := newTestLoop(st, sensor, &fakePWM{}, &fakeEvents{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		l.Run(ctx, time.Millisecond)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("loop did not stop within a second of cancellation")
	}
}
