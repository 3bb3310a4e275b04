package hal

import (
	"sync"
	"time"

	"pitfan/internal/config"
	"pitfan/internal/logger"
)

// Simulated pit model. Airflow feeds the fire, so heating scales with duty;
// losses scale with the distance to ambient.
const (
	simAmbientC       = 25.0
	simMaxHeatCPerSec = 3.0  // heating rate at 100% duty
	simLossPerSec     = 0.02 // fraction of (temp - ambient) lost per second
	simMaxRPM         = 3000
	simIdleWait       = 100 * time.Millisecond
)

// simRig is a development backend implementing the sensor, the PWM actuator
// and the tach source against a toy thermal model, so the whole stack runs
// without a smoker attached.
type simRig struct {
	log    *logger.Logger
	pulses PulseHandler
	ppr    int

	epoch time.Time

	mu        sync.Mutex
	timing    PwmTiming
	dutyTicks int
	tempC     float64
	lastStep  time.Time

	stop      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func newSimRig(cfg config.Control, pulses PulseHandler, log *logger.Logger) *simRig {
	now := time.Now()
	r := &simRig{
		log:      log,
		pulses:   pulses,
		ppr:      cfg.PulsesPerRev,
		epoch:    now,
		tempC:    simAmbientC,
		lastStep: now,
		stop:     make(chan struct{}),
	}
	r.wg.Add(1)
	go r.spin()
	log.Infow("simulated rig started", "ambient_c", simAmbientC, "max_rpm", simMaxRPM)
	return r
}

// ReadCelsius advances the thermal model by the elapsed wall time and
// returns the new chamber temperature.
func (r *simRig) ReadCelsius() (float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(r.lastStep).Seconds()
	r.lastStep = now

	duty := r.dutyFractionLocked()
	r.tempC += (simMaxHeatCPerSec*duty - simLossPerSec*(r.tempC-simAmbientC)) * elapsed
	if r.tempC < simAmbientC {
		r.tempC = simAmbientC
	}
	return r.tempC, nil
}

func (r *simRig) ApplyTiming(t PwmTiming) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.timing = t
	return nil
}

func (r *simRig) WriteDuty(ticks int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dutyTicks = ticks
	return nil
}

// Release doubles as Close for the sim backend; both park the rig.
func (r *simRig) Release() error { return r.Close() }

func (r *simRig) Close() error {
	r.closeOnce.Do(func() {
		close(r.stop)
		r.wg.Wait()
		r.log.Infow("simulated rig stopped")
	})
	return nil
}

func (r *simRig) dutyFractionLocked() float64 {
	if r.timing.DutyRange <= 0 {
		return 0
	}
	f := float64(r.dutyTicks) / float64(r.timing.DutyRange)
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

// spin synthesizes tachometer edges at a rate proportional to duty, as the
// physical fan would.
func (r *simRig) spin() {
	defer r.wg.Done()
	for {
		r.mu.Lock()
		duty := r.dutyFractionLocked()
		r.mu.Unlock()

		rpm := simMaxRPM * duty
		if rpm < 1 || r.pulses == nil {
			select {
			case <-r.stop:
				return
			case <-time.After(simIdleWait):
			}
			continue
		}

		interval := time.Duration(float64(time.Minute) / (rpm * float64(r.ppr)))
		select {
		case <-r.stop:
			return
		case <-time.After(interval):
			r.pulses(time.Since(r.epoch).Microseconds())
		}
	}
}
