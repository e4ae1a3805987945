// Package config defines the flight controller's configuration file and converts it into the
// component configurations.
package config

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"

	"go.viam.com/flightcontrol/attitude"
	"go.viam.com/flightcontrol/control"
	"go.viam.com/flightcontrol/flight"
	"go.viam.com/flightcontrol/flightmode"
	"go.viam.com/flightcontrol/logging"
	"go.viam.com/flightcontrol/mixer"
	"go.viam.com/flightcontrol/safety"
	"go.viam.com/flightcontrol/telemetry"
)

// DefaultListenAddress is where the command serves metrics and status.
const DefaultListenAddress = "localhost:8090"

// Config is the top level configuration.
type Config struct {
	LoopHz        float64        `json:"loop_hz" yaml:"loop_hz"`
	TelemetryHz   float64        `json:"telemetry_hz" yaml:"telemetry_hz"`
	HoverThrottle float64        `json:"hover_throttle" yaml:"hover_throttle"`
	MaxTiltDeg    float64        `json:"max_tilt_deg" yaml:"max_tilt_deg"`
	MaxYawRateDPS float64        `json:"max_yaw_rate_dps" yaml:"max_yaw_rate_dps"`
	Attitude      AttitudeConfig `json:"attitude" yaml:"attitude"`
	PID           PIDConfig      `json:"pid" yaml:"pid"`
	Motors        MotorConfig    `json:"motors" yaml:"motors"`
	Safety        SafetyConfig   `json:"safety" yaml:"safety"`
	Landing       LandingConfig  `json:"landing" yaml:"landing"`
	Server        ServerConfig   `json:"server" yaml:"server"`
	Sim           SimConfig      `json:"sim" yaml:"sim"`
	// Log sets per-subsystem log levels, e.g. {pattern: "flightcontrol.safety", level: debug}.
	Log []logging.LevelPattern `json:"log" yaml:"log"`
}

// AttitudeConfig configures the attitude and altitude estimators.
type AttitudeConfig struct {
	Alpha                    float64 `json:"alpha" yaml:"alpha"`
	MaxDtMs                  int     `json:"max_dt_ms" yaml:"max_dt_ms"`
	MinAccelG                float64 `json:"min_accel_g" yaml:"min_accel_g"`
	MaxAccelG                float64 `json:"max_accel_g" yaml:"max_accel_g"`
	MaxGyroDPS               float64 `json:"max_gyro_dps" yaml:"max_gyro_dps"`
	AltitudeProcessNoise     float64 `json:"altitude_process_noise" yaml:"altitude_process_noise"`
	AltitudeMeasurementNoise float64 `json:"altitude_measurement_noise" yaml:"altitude_measurement_noise"`
}

// GainsConfig tunes one PID axis.
type GainsConfig struct {
	Kp    float64 `json:"kp" yaml:"kp"`
	Ki    float64 `json:"ki" yaml:"ki"`
	Kd    float64 `json:"kd" yaml:"kd"`
	Bound float64 `json:"bound" yaml:"bound"`
}

// PIDConfig tunes every axis.
type PIDConfig struct {
	Roll     GainsConfig `json:"roll" yaml:"roll"`
	Pitch    GainsConfig `json:"pitch" yaml:"pitch"`
	Yaw      GainsConfig `json:"yaw" yaml:"yaw"`
	Altitude GainsConfig `json:"altitude" yaml:"altitude"`
}

// MotorConfig is the motor output range.
type MotorConfig struct {
	Min float64 `json:"min" yaml:"min"`
	Max float64 `json:"max" yaml:"max"`
}

// SafetyConfig holds the supervisor thresholds.
type SafetyConfig struct {
	CommandTimeoutMs int     `json:"command_timeout_ms" yaml:"command_timeout_ms"`
	CriticalVoltage  float64 `json:"critical_voltage" yaml:"critical_voltage"`
	WarnVoltage      float64 `json:"warn_voltage" yaml:"warn_voltage"`
	MaxInvalidCycles int     `json:"max_invalid_cycles" yaml:"max_invalid_cycles"`
	MotorCutCycles   int     `json:"motor_cut_cycles" yaml:"motor_cut_cycles"`
}

// LandingConfig shapes the landing descent.
type LandingConfig struct {
	DescentRate    float64 `json:"descent_rate_mps" yaml:"descent_rate_mps"`
	LandedAltitude float64 `json:"landed_altitude_m" yaml:"landed_altitude_m"`
}

// ServerConfig configures the metrics and status endpoint.
type ServerConfig struct {
	Listen string `json:"listen" yaml:"listen"`
}

// SimConfig configures the simulated airframe used by the simulate command.
type SimConfig struct {
	DurationSec     float64 `json:"duration_sec" yaml:"duration_sec"`
	BatteryStart    float64 `json:"battery_start" yaml:"battery_start"`
	BatteryDrainVPS float64 `json:"battery_drain_vps" yaml:"battery_drain_vps"`
	Seed            int64   `json:"seed" yaml:"seed"`
}

func gainsConfig(g control.Gains) GainsConfig {
	return GainsConfig{Kp: g.Kp, Ki: g.Ki, Kd: g.Kd, Bound: g.Bound}
}

func (g GainsConfig) gains() control.Gains {
	return control.Gains{Kp: g.Kp, Ki: g.Ki, Kd: g.Kd, Bound: g.Bound}
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	fc := flight.DefaultConfig()
	return &Config{
		LoopHz:        flight.DefaultFrequency,
		TelemetryHz:   telemetry.DefaultRate,
		HoverThrottle: fc.HoverThrottle,
		MaxTiltDeg:    fc.MaxTilt,
		MaxYawRateDPS: fc.MaxYawRate,
		Attitude: AttitudeConfig{
			Alpha:                    fc.Attitude.Alpha,
			MaxDtMs:                  int(fc.Attitude.MaxDt / time.Millisecond),
			MinAccelG:                fc.Attitude.MinAccel / attitude.StandardGravity,
			MaxAccelG:                fc.Attitude.MaxAccel / attitude.StandardGravity,
			MaxGyroDPS:               fc.Attitude.MaxGyroRate,
			AltitudeProcessNoise:     fc.AltitudeProcessNoise,
			AltitudeMeasurementNoise: fc.AltitudeMeasurementNoise,
		},
		PID: PIDConfig{
			Roll:     gainsConfig(fc.PID.Roll),
			Pitch:    gainsConfig(fc.PID.Pitch),
			Yaw:      gainsConfig(fc.PID.Yaw),
			Altitude: gainsConfig(fc.PID.Altitude),
		},
		Motors: MotorConfig{Min: fc.Mixer.MinThrust, Max: fc.Mixer.MaxThrust},
		Safety: SafetyConfig{
			CommandTimeoutMs: int(fc.Safety.CommandTimeout / time.Millisecond),
			CriticalVoltage:  fc.Safety.CriticalVoltage,
			WarnVoltage:      fc.Safety.WarnVoltage,
			MaxInvalidCycles: fc.Safety.MaxInvalidCycles,
			MotorCutCycles:   fc.Safety.MotorCutCycles,
		},
		Landing: LandingConfig{DescentRate: fc.Landing.DescentRate, LandedAltitude: fc.Landing.LandedAltitude},
		Server:  ServerConfig{Listen: DefaultListenAddress},
		Sim:     SimConfig{DurationSec: 75, BatteryStart: 12.6, BatteryDrainVPS: 0.005, Seed: 1},
	}
}

// Flight returns the controller configuration.
func (c *Config) Flight() flight.Config {
	return flight.Config{
		Attitude: attitude.Config{
			Alpha:       c.Attitude.Alpha,
			MaxDt:       time.Duration(c.Attitude.MaxDtMs) * time.Millisecond,
			MinAccel:    c.Attitude.MinAccelG * attitude.StandardGravity,
			MaxAccel:    c.Attitude.MaxAccelG * attitude.StandardGravity,
			MaxGyroRate: c.Attitude.MaxGyroDPS,
		},
		AltitudeProcessNoise:     c.Attitude.AltitudeProcessNoise,
		AltitudeMeasurementNoise: c.Attitude.AltitudeMeasurementNoise,
		PID: control.BankConfig{
			Roll:     c.PID.Roll.gains(),
			Pitch:    c.PID.Pitch.gains(),
			Yaw:      c.PID.Yaw.gains(),
			Altitude: c.PID.Altitude.gains(),
		},
		Mixer: mixer.Config{MinThrust: c.Motors.Min, MaxThrust: c.Motors.Max},
		Safety: safety.Config{
			CommandTimeout:   time.Duration(c.Safety.CommandTimeoutMs) * time.Millisecond,
			CriticalVoltage:  c.Safety.CriticalVoltage,
			WarnVoltage:      c.Safety.WarnVoltage,
			MaxInvalidCycles: c.Safety.MaxInvalidCycles,
			MotorCutCycles:   c.Safety.MotorCutCycles,
		},
		Landing:       flightmode.LandingConfig{DescentRate: c.Landing.DescentRate, LandedAltitude: c.Landing.LandedAltitude},
		HoverThrottle: c.HoverThrottle,
		MaxTilt:       c.MaxTiltDeg,
		MaxYawRate:    c.MaxYawRateDPS,
	}
}

// Loop returns the loop configuration.
func (c *Config) Loop() flight.LoopConfig {
	return flight.LoopConfig{Frequency: c.LoopHz}
}

// Validate reports every problem in the configuration. path prefixes field names in errors.
func (c *Config) Validate(path string) error {
	var errs error
	if c.LoopHz == 0 {
		errs = multierr.Append(errs, utils.NewConfigValidationFieldRequiredError(path, "loop_hz"))
	} else if err := c.Loop().Validate(); err != nil {
		errs = multierr.Append(errs, utils.NewConfigValidationError(path, err))
	}
	if c.TelemetryHz <= 0 {
		errs = multierr.Append(errs, utils.NewConfigValidationFieldRequiredError(path, "telemetry_hz"))
	}
	if c.Attitude.MaxDtMs == 0 {
		errs = multierr.Append(errs, utils.NewConfigValidationFieldRequiredError(path+".attitude", "max_dt_ms"))
	}
	if c.Safety.CommandTimeoutMs == 0 {
		errs = multierr.Append(errs, utils.NewConfigValidationFieldRequiredError(path+".safety", "command_timeout_ms"))
	}
	if c.Server.Listen == "" {
		errs = multierr.Append(errs, utils.NewConfigValidationFieldRequiredError(path+".server", "listen"))
	}
	if c.Sim.DurationSec < 0 || c.Sim.BatteryDrainVPS < 0 {
		errs = multierr.Append(errs, utils.NewConfigValidationError(path+".sim",
			errors.New("duration_sec and battery_drain_vps must not be negative")))
	}
	for i, lp := range c.Log {
		if err := lp.Validate(); err != nil {
			errs = multierr.Append(errs, utils.NewConfigValidationError(fmt.Sprintf("%s.log.%d", path, i), err))
		}
	}
	if err := c.Flight().Validate(); err != nil {
		for _, e := range multierr.Errors(err) {
			errs = multierr.Append(errs, utils.NewConfigValidationError(path, e))
		}
	}
	return errs
}
