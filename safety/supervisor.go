// Package safety evaluates command freshness, battery state and sensor health once per cycle
// and decides when the vehicle must land or cut its motors.
package safety

import (
	"strings"
	"time"

	"github.com/pkg/errors"

	"go.viam.com/flightcontrol/logging"
	"go.viam.com/flightcontrol/utils"
)

// Faults is a set of safety conditions.
type Faults uint8

// Individual faults. FaultBatteryLow is a warning and never forces a landing.
const (
	FaultCommandStale Faults = 1 << iota
	FaultBatteryCritical
	FaultSensorUnhealthy
	FaultSensorFailed
	FaultBatteryLow
)

// NoFaults is the empty set.
const NoFaults Faults = 0

const (
	landFaults = FaultCommandStale | FaultBatteryCritical | FaultSensorUnhealthy
	cutFaults  = FaultSensorFailed
)

var faultNames = []struct {
	f    Faults
	name string
}{
	{FaultCommandStale, "command_stale"},
	{FaultBatteryCritical, "battery_critical"},
	{FaultSensorUnhealthy, "sensor_unhealthy"},
	{FaultSensorFailed, "sensor_failed"},
	{FaultBatteryLow, "battery_low"},
}

// Has reports whether every fault in f is set.
func (fs Faults) Has(f Faults) bool {
	return fs&f == f
}

// Critical reports whether any fault in the set forces a landing or motor cut.
func (fs Faults) Critical() bool {
	return fs&(landFaults|cutFaults) != 0
}

func (fs Faults) String() string {
	if fs == NoFaults {
		return "none"
	}
	var names []string
	for _, fn := range faultNames {
		if fs.Has(fn.f) {
			names = append(names, fn.name)
		}
	}
	return strings.Join(names, "|")
}

// Defaults.
const (
	DefaultCommandTimeout   = 500 * time.Millisecond
	DefaultCriticalVoltage  = 10.5
	DefaultWarnVoltage      = 11.1
	DefaultMaxInvalidCycles = 10
	DefaultMotorCutCycles   = 50
)

// Config holds the supervisor thresholds.
type Config struct {
	CommandTimeout   time.Duration
	CriticalVoltage  float64
	WarnVoltage      float64
	MaxInvalidCycles int
	MotorCutCycles   int
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		CommandTimeout:   DefaultCommandTimeout,
		CriticalVoltage:  DefaultCriticalVoltage,
		WarnVoltage:      DefaultWarnVoltage,
		MaxInvalidCycles: DefaultMaxInvalidCycles,
		MotorCutCycles:   DefaultMotorCutCycles,
	}
}

// Validate checks the thresholds are consistent.
func (cfg Config) Validate() error {
	if cfg.CommandTimeout <= 0 {
		return errors.Errorf("command timeout must be positive, got %v", cfg.CommandTimeout)
	}
	if !utils.IsFinite(cfg.CriticalVoltage, cfg.WarnVoltage) || cfg.CriticalVoltage <= 0 {
		return errors.Errorf("critical voltage must be positive, got %v", cfg.CriticalVoltage)
	}
	if cfg.WarnVoltage < cfg.CriticalVoltage {
		return errors.Errorf("warn voltage %v must not be below critical voltage %v", cfg.WarnVoltage, cfg.CriticalVoltage)
	}
	if cfg.MaxInvalidCycles < 0 {
		return errors.Errorf("max invalid cycles must not be negative, got %d", cfg.MaxInvalidCycles)
	}
	if cfg.MotorCutCycles <= cfg.MaxInvalidCycles {
		return errors.Errorf("motor cut cycles %d must exceed max invalid cycles %d", cfg.MotorCutCycles, cfg.MaxInvalidCycles)
	}
	return nil
}

// Input is what the supervisor looks at each cycle.
type Input struct {
	Now time.Time
	// LastCommand is the timestamp of the newest operator command, zero if none was ever received.
	LastCommand        time.Time
	BatteryVoltage     float64
	ConsecutiveInvalid int
}

// Status is the result of one evaluation.
type Status struct {
	CommandAge         time.Duration
	CommandReceived    bool
	BatteryVoltage     float64
	SensorHealthy      bool
	ConsecutiveInvalid int
	// Faults are the conditions present this cycle.
	Faults Faults
	// NewFaults are the faults present this cycle and absent the previous one.
	NewFaults Faults
	// ForceLand and MotorCut stay set until Rearm once triggered.
	ForceLand bool
	MotorCut  bool
}

// Supervisor evaluates safety conditions and latches the resulting demands.
type Supervisor struct {
	cfg       Config
	logger    logging.Logger
	forceLand bool
	motorCut  bool
	last      Status
}

// NewSupervisor returns a supervisor with no latched demands.
func NewSupervisor(cfg Config, logger logging.Logger) (*Supervisor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Supervisor{cfg: cfg, logger: logger}, nil
}

// Check evaluates one cycle. Force-land and motor-cut demands latch.
func (s *Supervisor) Check(in Input) Status {
	st := Status{
		CommandReceived:    !in.LastCommand.IsZero(),
		BatteryVoltage:     in.BatteryVoltage,
		ConsecutiveInvalid: in.ConsecutiveInvalid,
		SensorHealthy:      in.ConsecutiveInvalid <= s.cfg.MaxInvalidCycles,
	}

	if st.CommandReceived {
		st.CommandAge = in.Now.Sub(in.LastCommand)
		if st.CommandAge > s.cfg.CommandTimeout {
			st.Faults |= FaultCommandStale
		}
	} else {
		st.Faults |= FaultCommandStale
	}

	switch {
	case !utils.IsFinite(in.BatteryVoltage) || in.BatteryVoltage < s.cfg.CriticalVoltage:
		st.Faults |= FaultBatteryCritical
	case in.BatteryVoltage < s.cfg.WarnVoltage:
		st.Faults |= FaultBatteryLow
	}

	if !st.SensorHealthy {
		st.Faults |= FaultSensorUnhealthy
	}
	if in.ConsecutiveInvalid > s.cfg.MotorCutCycles {
		st.Faults |= FaultSensorFailed
	}

	st.NewFaults = st.Faults &^ s.last.Faults
	if st.NewFaults != NoFaults {
		s.logger.Warnw("safety faults raised",
			"new", st.NewFaults,
			"active", st.Faults,
			"command_age", st.CommandAge,
			"battery_voltage", in.BatteryVoltage,
			"consecutive_invalid", in.ConsecutiveInvalid)
	}

	if st.Faults&landFaults != 0 && !s.forceLand {
		s.forceLand = true
		s.logger.Warnw("forcing land", "faults", st.Faults&landFaults)
	}
	if st.Faults&cutFaults != 0 && !s.motorCut {
		s.motorCut = true
		s.forceLand = true
		s.logger.Warnw("cutting motors", "consecutive_invalid", in.ConsecutiveInvalid)
	}
	st.ForceLand = s.forceLand
	st.MotorCut = s.motorCut

	s.last = st
	return st
}

// Status returns the result of the most recent Check.
func (s *Supervisor) Status() Status {
	return s.last
}

// Rearm clears the latched demands. It fails while any critical fault was present in the most
// recent Check.
func (s *Supervisor) Rearm() error {
	if s.last.Faults.Critical() {
		return errors.Errorf("cannot rearm with active faults: %s", s.last.Faults)
	}
	s.forceLand = false
	s.motorCut = false
	s.last.ForceLand = false
	s.last.MotorCut = false
	s.logger.Info("safety rearmed")
	return nil
}
