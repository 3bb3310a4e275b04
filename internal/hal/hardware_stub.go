//go:build !linux || (!arm && !arm64)

package hal

import "fmt"

// Stubs for non-Pi platforms; the sim backend is the way to run here.

func openPWM(pin int) (PWMDriver, error) {
	return nil, fmt.Errorf("hardware pwm unsupported on this platform (gpio %d)", pin)
}

func openTach(pin int, pulses PulseHandler) (TachSource, error) {
	return nil, fmt.Errorf("hardware tach unsupported on this platform (gpio %d)", pin)
}
