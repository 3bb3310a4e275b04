package hal

import "fmt"

// BCM283x PWM peripheral limits: the clock divisor register is 12 bits and
// values below 2 are not usable.
const (
	minClockDivisor = 2
	maxClockDivisor = 4095
)

// PwmTiming is the derived hardware timer parameterization for a desired
// switching frequency. Computed once at startup, immutable thereafter.
type PwmTiming struct {
	ClockDivisor        int
	DutyRange           int
	AchievedFrequencyHz int
}

// SolveTiming derives (clock divisor, duty range) so the actuator toggles as
// close as possible to desiredHz on a peripheral clocked at baseHz.
//
// When desiredHz divides baseHz evenly, candidate ranges are searched from
// the largest down, so the first acceptable pair has the finest duty
// resolution and hits the frequency exactly. Otherwise the divisor is
// estimated for the maximum range and clamped, which approximates the
// frequency. An infeasible request is a configuration error, fatal at
// startup.
func SolveTiming(baseHz, desiredHz int) (PwmTiming, error) {
	if baseHz <= 0 || desiredHz <= 0 {
		return PwmTiming{}, fmt.Errorf("pwm timing: frequencies must be positive (base=%d desired=%d)", baseHz, desiredHz)
	}

	ratio := baseHz / desiredHz
	maxRange := baseHz / 2
	if maxRange < 1 {
		return PwmTiming{}, fmt.Errorf("pwm timing: cannot achieve %d Hz from a %d Hz base clock", desiredHz, baseHz)
	}

	if baseHz%desiredHz == 0 {
		start := ratio - 1
		if start > maxRange {
			start = maxRange
		}
		for r := start; r >= 1; r-- {
			if ratio%r != 0 {
				continue
			}
			div := ratio / r
			if div >= minClockDivisor && div <= maxClockDivisor {
				return PwmTiming{
					ClockDivisor:        div,
					DutyRange:           r,
					AchievedFrequencyHz: baseHz / (div * r),
				}, nil
			}
		}
	}

	// No exact match: estimate the divisor for the maximum range and accept
	// a nearby frequency.
	div := ratio / maxRange
	if div < minClockDivisor {
		div = minClockDivisor
	} else if div > maxClockDivisor {
		div = maxClockDivisor
	}
	rng := ratio / div
	if rng < 1 || rng > maxRange {
		return PwmTiming{}, fmt.Errorf("pwm timing: cannot achieve %d Hz from a %d Hz base clock", desiredHz, baseHz)
	}
	return PwmTiming{
		ClockDivisor:        div,
		DutyRange:           rng,
		AchievedFrequencyHz: baseHz / (div * rng),
	}, nil
}
