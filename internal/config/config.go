package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Sensor backends selectable via config.
const (
	SensorSim   = "sim"
	SensorHwmon = "hwmon"
)

// Defaults match the Pi 4B reference hardware: hardware PWM on BCM GPIO18,
// tach on BCM GPIO22, 54 MHz base clock (19.2 MHz on older models).
const (
	defaultPort            = "80"
	defaultLogLevel        = "info"
	defaultDBPath          = "pitfan.db"
	defaultPWMPin          = 18
	defaultTachPin         = 22
	defaultBaseFrequencyHz = 54_000_000
	defaultPWMFrequencyHz  = 25_000
	defaultPulsesPerRev    = 2
	defaultRefreshSeconds  = 1
	defaultTargetC         = 47.0
	defaultSpinDownSeconds = 1
)

// Config is the immutable runtime configuration, built once at startup and
// passed into each component.
type Config struct {
	Port     string
	LogLevel string
	DBPath   string

	Auth    Auth
	Control Control
	Sensor  Sensor
}

// Auth holds the operator-API token settings.
type Auth struct {
	SigningKey string
}

// Control holds the sampling/actuation parameters of the control loop and
// the PWM/tach hardware.
type Control struct {
	PWMPin          int // BCM numbering
	TachPin         int // BCM numbering
	BaseFrequencyHz int
	PWMFrequencyHz  int
	PulsesPerRev    int
	RefreshInterval time.Duration
	SpinDownPause   time.Duration
	DefaultTargetC  float64
}

// Sensor selects and parameterizes the temperature sensor backend.
type Sensor struct {
	Backend string // sim | hwmon
	Path    string // hwmon: sysfs file exporting milli-deg C
}

var (
	errRefreshInterval = errors.New("control.refresh_seconds must be at least 1")
	errPulsesPerRev    = errors.New("control.tach_pulses_per_rev must be at least 1")
	errFrequencies     = errors.New("control frequencies must be positive")
	errSensorBackend   = errors.New("sensor.backend must be \"sim\" or \"hwmon\"")
	errSensorPath      = errors.New("sensor.path is required for the hwmon backend")
)

// Load reads configs/config.yml into a validated Config. A missing file is
// not an error; defaults describe the reference hardware.
func Load() (*Config, error) {
	v := viper.New()
	v.AddConfigPath("configs") // configs/config.yml
	v.SetConfigName("config")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{
		Port:     v.GetString("port"),
		LogLevel: v.GetString("log_level"),
		DBPath:   v.GetString("db.path"),
		Auth: Auth{
			SigningKey: v.GetString("auth.signing_key"),
		},
		Control: Control{
			PWMPin:          v.GetInt("control.pwm_pin"),
			TachPin:         v.GetInt("control.tach_pin"),
			BaseFrequencyHz: v.GetInt("control.base_frequency_hz"),
			PWMFrequencyHz:  v.GetInt("control.pwm_frequency_hz"),
			PulsesPerRev:    v.GetInt("control.tach_pulses_per_rev"),
			RefreshInterval: time.Duration(v.GetInt("control.refresh_seconds")) * time.Second,
			SpinDownPause:   time.Duration(v.GetInt("control.spin_down_seconds")) * time.Second,
			DefaultTargetC:  v.GetFloat64("control.target_temp_c"),
		},
		Sensor: Sensor{
			Backend: v.GetString("sensor.backend"),
			Path:    v.GetString("sensor.path"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", defaultPort)
	v.SetDefault("log_level", defaultLogLevel)
	v.SetDefault("db.path", defaultDBPath)
	v.SetDefault("control.pwm_pin", defaultPWMPin)
	v.SetDefault("control.tach_pin", defaultTachPin)
	v.SetDefault("control.base_frequency_hz", defaultBaseFrequencyHz)
	v.SetDefault("control.pwm_frequency_hz", defaultPWMFrequencyHz)
	v.SetDefault("control.tach_pulses_per_rev", defaultPulsesPerRev)
	v.SetDefault("control.refresh_seconds", defaultRefreshSeconds)
	v.SetDefault("control.spin_down_seconds", defaultSpinDownSeconds)
	v.SetDefault("control.target_temp_c", defaultTargetC)
	v.SetDefault("sensor.backend", SensorSim)
}

// validate rejects sampling and tach parameters the loop cannot run with;
// these are configuration errors, fatal before the loop starts.
func (c *Config) validate() error {
	if c.Control.RefreshInterval < time.Second {
		return errRefreshInterval
	}
	if c.Control.PulsesPerRev < 1 {
		return errPulsesPerRev
	}
	if c.Control.BaseFrequencyHz <= 0 || c.Control.PWMFrequencyHz <= 0 {
		return errFrequencies
	}
	switch c.Sensor.Backend {
	case SensorSim:
	case SensorHwmon:
		if c.Sensor.Path == "" {
			return errSensorPath
		}
	default:
		return errSensorBackend
	}
	return nil
}
