package hal

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// hwmonSensor reads the thermocouple through the kernel's hwmon/iio export
// (e.g. the max6675 driver's temp1_input), a text file holding the
// temperature as an integer in milli-degrees C (some drivers export plain
// degrees; both are handled).
type hwmonSensor struct {
	path string
}

func newHwmonSensor(path string) *hwmonSensor {
	return &hwmonSensor{path: path}
}

func (s *hwmonSensor) ReadCelsius() (float64, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		return 0, fmt.Errorf("read thermocouple: %w", err)
	}
	return parseHwmonTempC(string(b))
}

func (s *hwmonSensor) Close() error { return nil }

func parseHwmonTempC(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("thermocouple reading empty")
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("parse thermocouple reading %q: %w", s, err)
	}
	if n > 1000 || n < -1000 {
		return float64(n) / 1000.0, nil
	}
	return float64(n), nil
}
