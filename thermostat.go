package pitfan

import (
	"strconv"
	"time"
)

// CoolingMode is the four-state heating/cooling mode of the thermostat
// integration. The integer codes are fixed by the external smart-home
// contract and must never be renumbered.
type CoolingMode int

const (
	ModeOff  CoolingMode = 0
	ModeHeat CoolingMode = 1
	ModeCool CoolingMode = 2
	ModeAuto CoolingMode = 3
)

var coolingModeNames = map[CoolingMode]string{
	ModeOff:  "Off",
	ModeHeat: "Heat",
	ModeCool: "Cool",
	ModeAuto: "Auto",
}

// String returns the integration's display name for known modes and a
// numeric fallback for out-of-range values (which the API stores as-is).
func (m CoolingMode) String() string {
	if s, ok := coolingModeNames[m]; ok {
		return s
	}
	return "Mode(" + strconv.Itoa(int(m)) + ")"
}

// Snapshot is the integration-facing view of the thermostat state. Field
// order and names mirror the wire contract of the status API.
type Snapshot struct {
	TargetMode         CoolingMode `json:"targetHeatingCoolingState"`
	TargetTemperature  float64     `json:"targetTemperature"`
	CurrentMode        CoolingMode `json:"currentHeatingCoolingState"`
	CurrentTemperature float64     `json:"currentTemperature"`
}

// Telemetry is the operator-facing view: the integration snapshot plus the
// actuation values owned by the control loop.
type Telemetry struct {
	Snapshot
	FanDutyPercent int `json:"fan_duty_percent"`
	FanRPM         int `json:"fan_rpm"`
}

// Journal event types.
const (
	EventStartup      = "STARTUP"
	EventShutdown     = "SHUTDOWN"
	EventModeChange   = "MODE_CHANGE"
	EventTargetChange = "TARGET_CHANGE"
	EventOverride     = "OVERRIDE"
)

// Event is a single entry in the append-only telemetry journal.
type Event struct {
	EventID     string    `json:"event_id"`
	OccurredAt  time.Time `json:"occurred_at"`
	Type        string    `json:"type"`        // STARTUP | SHUTDOWN | MODE_CHANGE | TARGET_CHANGE | OVERRIDE
	Description string    `json:"description"` // human-readable
	Metadata    any       `json:"metadata,omitempty"`
}

// User is an operator account for the protected API surface.
type User struct {
	ID           int    `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
}
