// Package flight runs the control cycle: it reads the collaborators, estimates attitude,
// consults the safety supervisor, selects the flight mode, regulates, mixes and actuates.
package flight

import (
	"encoding/json"
	"time"

	"go.viam.com/flightcontrol/flightmode"
	"go.viam.com/flightcontrol/mixer"
	"go.viam.com/flightcontrol/safety"
	"go.viam.com/flightcontrol/utils"
)

// State is the vehicle state estimated each cycle.
type State struct {
	Roll           float64 `json:"roll_deg"`
	Pitch          float64 `json:"pitch_deg"`
	Yaw            float64 `json:"yaw_deg"`
	RollRate       float64 `json:"roll_rate_dps"`
	PitchRate      float64 `json:"pitch_rate_dps"`
	YawRate        float64 `json:"yaw_rate_dps"`
	Altitude       float64 `json:"altitude_m"`
	VerticalSpeed  float64 `json:"vertical_speed_mps"`
	BatteryVoltage float64 `json:"battery_voltage"`
	GPSLock        bool    `json:"gps_lock"`
	Satellites     int     `json:"satellites"`
}

// MarshalJSON encodes a non-finite battery voltage, as left by a failed read, as null.
func (s State) MarshalJSON() ([]byte, error) {
	type plain State
	return json.Marshal(struct {
		plain
		BatteryVoltage *float64 `json:"battery_voltage"`
	}{plain(s), finiteOrNil(s.BatteryVoltage)})
}

func finiteOrNil(v float64) *float64 {
	if !utils.IsFinite(v) {
		return nil
	}
	return &v
}

// GPSFix is the GPS receiver status.
type GPSFix struct {
	Lock       bool
	Satellites int
}

// Command is the newest operator input.
type Command struct {
	Roll     float64 // deg
	Pitch    float64 // deg
	YawRate  float64 // deg/s
	Throttle float64 // motor units, same range as the mixer output
	// TargetAltitude is used by altitude-holding modes when HasTargetAltitude is set.
	TargetAltitude    float64
	HasTargetAltitude bool
	Mode              flightmode.Request
	Time              time.Time
}

// Setpoint is a navigator output for the navigated modes.
type Setpoint struct {
	Roll        float64
	Pitch       float64
	YawRate     float64
	Altitude    float64
	HasAltitude bool
}

// Targets are the setpoints fed to the PID bank this cycle.
type Targets struct {
	Roll     float64 `json:"roll_deg"`
	Pitch    float64 `json:"pitch_deg"`
	YawRate  float64 `json:"yaw_rate_dps"`
	Altitude float64 `json:"altitude_m"`
	Throttle float64 `json:"throttle"`
}

// Snapshot is the telemetry record for one cycle.
type Snapshot struct {
	FlightID string             `json:"flight_id"`
	Time     time.Time          `json:"time"`
	Cycle    uint64             `json:"cycle"`
	Mode     flightmode.Mode    `json:"mode"`
	Landed   bool               `json:"landed"`
	State    State              `json:"state"`
	Targets  Targets            `json:"targets"`
	Motors   mixer.MotorCommand `json:"motors"`
	Safety   SafetySummary      `json:"safety"`
}

// SafetySummary is the telemetry view of a safety.Status.
type SafetySummary struct {
	CommandAge         time.Duration `json:"command_age"`
	BatteryVoltage     *float64      `json:"battery_voltage"`
	SensorHealthy      bool          `json:"sensor_healthy"`
	ConsecutiveInvalid int           `json:"consecutive_invalid"`
	Faults             string        `json:"faults"`
	ForceLand          bool          `json:"force_land"`
	MotorCut           bool          `json:"motor_cut"`
}

func summarize(st safety.Status) SafetySummary {
	return SafetySummary{
		CommandAge:         st.CommandAge,
		BatteryVoltage:     finiteOrNil(st.BatteryVoltage),
		SensorHealthy:      st.SensorHealthy,
		ConsecutiveInvalid: st.ConsecutiveInvalid,
		Faults:             st.Faults.String(),
		ForceLand:          st.ForceLand,
		MotorCut:           st.MotorCut,
	}
}

// EventKind classifies an Event.
type EventKind string

// Event kinds.
const (
	EventModeChange EventKind = "mode_change"
	EventForcedLand EventKind = "forced_land"
	EventMotorCut   EventKind = "motor_cut"
	EventFault      EventKind = "fault"
	EventLanded     EventKind = "landed"
	EventRearmed    EventKind = "rearmed"
)

// Event is a discrete occurrence reported immediately, outside the telemetry throttle.
type Event struct {
	FlightID string          `json:"flight_id"`
	Time     time.Time       `json:"time"`
	Kind     EventKind       `json:"kind"`
	Mode     flightmode.Mode `json:"mode"`
	Faults   string          `json:"faults,omitempty"`
	Message  string          `json:"message"`
}
