package flight

import (
	"context"
	"time"

	"github.com/golang/geo/r3"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/flightcontrol/attitude"
	"go.viam.com/flightcontrol/control"
	"go.viam.com/flightcontrol/flightmode"
	"go.viam.com/flightcontrol/logging"
	"go.viam.com/flightcontrol/mixer"
	"go.viam.com/flightcontrol/safety"
	"go.viam.com/flightcontrol/utils"
)

// Defaults for the controller.
const (
	DefaultHoverThrottle = 1500.
	DefaultMaxTilt       = 35.  // deg
	DefaultMaxYawRate    = 180. // deg/s
)

// Config configures a Controller.
type Config struct {
	Attitude                 attitude.Config
	AltitudeProcessNoise     float64
	AltitudeMeasurementNoise float64
	PID                      control.BankConfig
	Mixer                    mixer.Config
	Safety                   safety.Config
	Landing                  flightmode.LandingConfig
	// HoverThrottle is the throttle that balances the vehicle's weight. Altitude-holding modes
	// add the altitude correction to it.
	HoverThrottle float64
	MaxTilt       float64
	MaxYawRate    float64
}

// DefaultPID returns gains tuned for a mid-size quad on a 1000..2000 motor range.
func DefaultPID() control.BankConfig {
	return control.BankConfig{
		Roll:     control.Gains{Kp: 4, Ki: 0.5, Kd: 1, Bound: 200},
		Pitch:    control.Gains{Kp: 4, Ki: 0.5, Kd: 1, Bound: 200},
		Yaw:      control.Gains{Kp: 3, Ki: 0.2, Bound: 150},
		Altitude: control.Gains{Kp: 60, Ki: 5, Kd: 60, Bound: 300},
	}
}

// DefaultConfig returns a complete default configuration.
func DefaultConfig() Config {
	return Config{
		Attitude:                 attitude.DefaultConfig(),
		AltitudeProcessNoise:     attitude.DefaultAltitudeProcessNoise,
		AltitudeMeasurementNoise: attitude.DefaultAltitudeMeasurementNoise,
		PID:                      DefaultPID(),
		Mixer:                    mixer.DefaultConfig(),
		Safety:                   safety.DefaultConfig(),
		Landing:                  flightmode.DefaultLandingConfig(),
		HoverThrottle:            DefaultHoverThrottle,
		MaxTilt:                  DefaultMaxTilt,
		MaxYawRate:               DefaultMaxYawRate,
	}
}

// Validate checks every part of the configuration and reports all problems at once.
func (cfg Config) Validate() error {
	var errs error
	if err := cfg.Attitude.Validate(); err != nil {
		errs = multierr.Append(errs, errors.Wrap(err, "attitude"))
	}
	if cfg.AltitudeProcessNoise <= 0 || cfg.AltitudeMeasurementNoise <= 0 {
		errs = multierr.Append(errs, errors.New("altitude filter noise terms must be positive"))
	}
	for _, a := range control.Axes {
		if err := cfg.PID.Gains(a).Validate(); err != nil {
			errs = multierr.Append(errs, errors.Wrapf(err, "%s pid", a))
		}
	}
	if err := cfg.Mixer.Validate(); err != nil {
		errs = multierr.Append(errs, errors.Wrap(err, "mixer"))
	}
	if err := cfg.Safety.Validate(); err != nil {
		errs = multierr.Append(errs, errors.Wrap(err, "safety"))
	}
	if err := cfg.Landing.Validate(); err != nil {
		errs = multierr.Append(errs, errors.Wrap(err, "landing"))
	}
	if cfg.HoverThrottle <= cfg.Mixer.MinThrust || cfg.HoverThrottle >= cfg.Mixer.MaxThrust {
		errs = multierr.Append(errs, errors.Errorf("hover throttle %v must be inside the motor range", cfg.HoverThrottle))
	}
	if !utils.IsFinite(cfg.MaxTilt, cfg.MaxYawRate) || cfg.MaxTilt <= 0 || cfg.MaxTilt >= 90 || cfg.MaxYawRate <= 0 {
		errs = multierr.Append(errs, errors.New("max tilt must be within (0, 90) and max yaw rate positive"))
	}
	return errs
}

// Inputs are the collaborator readings for one cycle. A read error is carried alongside the
// value so the controller can apply its recovery policy.
type Inputs struct {
	IMU         attitude.Sample
	IMUErr      error
	Altitude    float64
	AltitudeErr error
	// BatteryVoltage is NaN when the battery could not be read.
	BatteryVoltage float64
	GPS            GPSFix
	Command        Command
	HasCommand     bool
}

// Output is the result of one cycle.
type Output struct {
	Snapshot
	Status safety.Status
	Dt     time.Duration
	// Events are reported immediately, outside the telemetry throttle.
	Events []Event
}

// Controller owns all flight state and runs one control cycle per Step. It is not safe for
// concurrent use; a Loop serializes access.
type Controller struct {
	cfg      Config
	logger   logging.Logger
	flightID string

	estimator  *attitude.Estimator
	altitude   *attitude.AltitudeFilter
	bank       *control.Bank
	mixer      *mixer.Mixer
	supervisor *safety.Supervisor
	landing    *flightmode.LandingProfile
	navigator  Navigator

	mode         flightmode.Mode
	state        State
	holdAltitude float64
	lastStep     time.Time
	cycle        uint64
	pending      []Event

	forceLandReported bool
	motorCutReported  bool
}

// NewController builds a controller in Stabilize. navigator is the only source of setpoints for
// Loiter, ReturnToLaunch and Auto, and may be nil, in which case those modes level and hold
// altitude.
func NewController(cfg Config, navigator Navigator, logger logging.Logger) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	estimator, err := attitude.NewEstimator(cfg.Attitude, logger.Sublogger("attitude"))
	if err != nil {
		return nil, err
	}
	bank, err := control.NewBank(cfg.PID, logger.Sublogger("pid"))
	if err != nil {
		return nil, err
	}
	mix, err := mixer.New(cfg.Mixer)
	if err != nil {
		return nil, err
	}
	supervisor, err := safety.NewSupervisor(cfg.Safety, logger.Sublogger("safety"))
	if err != nil {
		return nil, err
	}
	landing, err := flightmode.NewLandingProfile(cfg.Landing)
	if err != nil {
		return nil, err
	}
	c := &Controller{
		cfg:        cfg,
		logger:     logger,
		flightID:   uuid.NewString(),
		estimator:  estimator,
		altitude:   attitude.NewAltitudeFilter(cfg.AltitudeProcessNoise, cfg.AltitudeMeasurementNoise),
		bank:       bank,
		mixer:      mix,
		supervisor: supervisor,
		landing:    landing,
		navigator:  navigator,
		mode:       flightmode.Stabilize,
	}
	c.bank.SetActive(flightmode.ActiveAxes(c.mode, false))
	return c, nil
}

// Step runs one cycle at time now. dt is the measured time since the previous Step, so an
// overrun cycle integrates over the real elapsed time. The first Step has dt == 0 and therefore
// neither integrates nor differentiates.
func (c *Controller) Step(ctx context.Context, now time.Time, in Inputs) Output {
	var dt time.Duration
	if !c.lastStep.IsZero() {
		dt = now.Sub(c.lastStep)
	}
	c.lastStep = now
	c.cycle++
	events := c.pending
	c.pending = nil

	c.estimate(in, dt)

	status := c.supervisor.Check(c.safetyInput(now, in))
	events = append(events, c.safetyEvents(now, status)...)

	var req flightmode.Request
	if in.HasCommand {
		req = in.Command.Mode
	}
	if next := flightmode.Transition(c.mode, status, req); next != c.mode {
		events = append(events, c.enter(now, next, status))
	}

	wasLanded := c.landing.Landed()
	targets := c.targets(ctx, in, dt)
	landed := c.mode == flightmode.Land && c.landing.Landed()
	if landed && !wasLanded {
		c.logger.Infow("landing complete", "altitude", c.state.Altitude)
		events = append(events, c.event(now, EventLanded, "touchdown"))
	}
	c.bank.SetActive(flightmode.ActiveAxes(c.mode, landed))

	roll := c.bank.Calculate(control.Roll, targets.Roll, c.state.Roll, dt)
	pitch := c.bank.Calculate(control.Pitch, targets.Pitch, c.state.Pitch, dt)
	yaw := c.bank.Calculate(control.Yaw, targets.YawRate, c.state.YawRate, dt)
	if c.mode.HoldsAltitude() {
		targets.Throttle = c.cfg.HoverThrottle +
			c.bank.Calculate(control.Altitude, targets.Altitude, c.state.Altitude, dt)
	}

	motors := c.mixer.Mix(targets.Throttle, roll, pitch, yaw)
	if status.MotorCut || landed {
		motors = c.mixer.Cut()
		targets.Throttle = c.cfg.Mixer.MinThrust
	}

	return Output{
		Snapshot: Snapshot{
			FlightID: c.flightID,
			Time:     now,
			Cycle:    c.cycle,
			Mode:     c.mode,
			Landed:   landed,
			State:    c.state,
			Targets:  targets,
			Motors:   motors,
			Safety:   summarize(status),
		},
		Status: status,
		Dt:     dt,
		Events: events,
	}
}

func (c *Controller) estimate(in Inputs, dt time.Duration) {
	var att attitude.Attitude
	if in.IMUErr != nil {
		att = c.estimator.Reject(in.IMUErr)
	} else {
		att = c.estimator.Update(in.IMU, dt)
	}
	c.state.Roll, c.state.Pitch, c.state.Yaw = att.Roll, att.Pitch, att.Yaw
	c.state.RollRate, c.state.PitchRate, c.state.YawRate = att.RollRate, att.PitchRate, att.YawRate

	if in.AltitudeErr == nil {
		c.state.Altitude, c.state.VerticalSpeed = c.altitude.Update(in.Altitude, dt)
	}
	c.state.BatteryVoltage = in.BatteryVoltage
	c.state.GPSLock = in.GPS.Lock
	c.state.Satellites = in.GPS.Satellites
}

func (c *Controller) safetyInput(now time.Time, in Inputs) safety.Input {
	si := safety.Input{
		Now:                now,
		BatteryVoltage:     in.BatteryVoltage,
		ConsecutiveInvalid: c.estimator.ConsecutiveInvalid(),
	}
	if in.HasCommand {
		si.LastCommand = in.Command.Time
	}
	return si
}

func (c *Controller) safetyEvents(now time.Time, status safety.Status) []Event {
	var events []Event
	if status.NewFaults != safety.NoFaults {
		ev := c.event(now, EventFault, "safety fault raised")
		ev.Faults = status.NewFaults.String()
		events = append(events, ev)
	}
	if status.ForceLand && !c.forceLandReported {
		c.forceLandReported = true
		ev := c.event(now, EventForcedLand, "landing forced by safety supervisor")
		ev.Faults = status.Faults.String()
		events = append(events, ev)
	}
	if status.MotorCut && !c.motorCutReported {
		c.motorCutReported = true
		c.logger.Warnw("motors cut", "consecutive_invalid", status.ConsecutiveInvalid)
		ev := c.event(now, EventMotorCut, "motors cut after persistent sensor failure")
		ev.Faults = status.Faults.String()
		events = append(events, ev)
	}
	return events
}

// enter switches to next and applies the entry actions of the new mode.
func (c *Controller) enter(now time.Time, next flightmode.Mode, status safety.Status) Event {
	prev := c.mode
	c.mode = next
	if status.ForceLand && next == flightmode.Land {
		c.logger.Warnw("flight mode forced", "from", prev, "to", next, "faults", status.Faults)
	} else {
		c.logger.Infow("flight mode changed", "from", prev, "to", next)
	}

	switch {
	case next == flightmode.Land:
		c.bank.Reset()
		c.landing.Begin(c.state.Altitude)
	case next.HoldsAltitude():
		c.holdAltitude = c.state.Altitude
	}
	return c.event(now, EventModeChange, prev.String()+" -> "+next.String())
}

// targets computes the setpoints of the current mode.
func (c *Controller) targets(ctx context.Context, in Inputs, dt time.Duration) Targets {
	cmd := in.Command
	if c.mode.HoldsAltitude() && c.mode != flightmode.Land && in.HasCommand && cmd.HasTargetAltitude {
		c.holdAltitude = cmd.TargetAltitude
	}
	pilot := Targets{Roll: cmd.Roll, Pitch: cmd.Pitch, YawRate: cmd.YawRate, Altitude: c.holdAltitude}
	level := Targets{Altitude: c.holdAltitude}

	var t Targets
	switch c.mode {
	case flightmode.Stabilize:
		t = pilot
		t.Throttle = cmd.Throttle
	case flightmode.AltitudeHold:
		t = pilot
	case flightmode.Loiter:
		t = pilot
		if c.state.GPSLock {
			if sp, ok := c.navigate(ctx); ok {
				t = c.fromSetpoint(sp)
			}
		}
	case flightmode.ReturnToLaunch, flightmode.Auto:
		t = level
		if sp, ok := c.navigate(ctx); ok {
			t = c.fromSetpoint(sp)
		}
	case flightmode.Land:
		t = Targets{}
		t.Altitude, _ = c.landing.Step(c.state.Altitude, dt)
	}

	t.Roll = utils.Clamp(t.Roll, -c.cfg.MaxTilt, c.cfg.MaxTilt)
	t.Pitch = utils.Clamp(t.Pitch, -c.cfg.MaxTilt, c.cfg.MaxTilt)
	t.YawRate = utils.Clamp(t.YawRate, -c.cfg.MaxYawRate, c.cfg.MaxYawRate)
	return t
}

func (c *Controller) navigate(ctx context.Context) (Setpoint, bool) {
	if c.navigator == nil {
		return Setpoint{}, false
	}
	sp, ok := c.navigator.Setpoint(ctx, c.mode, c.state)
	if !ok || !utils.IsFinite(sp.Roll, sp.Pitch, sp.YawRate, sp.Altitude) {
		return Setpoint{}, false
	}
	return sp, true
}

func (c *Controller) fromSetpoint(sp Setpoint) Targets {
	if sp.HasAltitude {
		c.holdAltitude = sp.Altitude
	}
	return Targets{Roll: sp.Roll, Pitch: sp.Pitch, YawRate: sp.YawRate, Altitude: c.holdAltitude}
}

func (c *Controller) event(now time.Time, kind EventKind, msg string) Event {
	return Event{FlightID: c.flightID, Time: now, Kind: kind, Mode: c.mode, Message: msg}
}

// Rearm leaves a completed landing for Stabilize. It fails unless the vehicle has landed and
// the safety supervisor reports no critical fault.
func (c *Controller) Rearm() error {
	if c.mode != flightmode.Land || !c.landing.Landed() {
		return errors.Errorf("cannot rearm in %s before touchdown", c.mode)
	}
	if err := c.supervisor.Rearm(); err != nil {
		return err
	}
	c.mode = flightmode.Stabilize
	c.landing.Reset()
	c.bank.Reset()
	c.bank.SetActive(flightmode.ActiveAxes(c.mode, false))
	c.forceLandReported = false
	c.motorCutReported = false
	c.logger.Infow("rearmed", "mode", c.mode)
	c.pending = append(c.pending, c.event(c.lastStep, EventRearmed, "rearmed after landing"))
	return nil
}

// Calibrate sets the gyro bias from samples taken on the ground.
func (c *Controller) Calibrate(gyroSamples []attitude.Sample) error {
	rates := make([]r3.Vector, 0, len(gyroSamples))
	for _, s := range gyroSamples {
		rates = append(rates, s.Gyro)
	}
	return c.estimator.Calibrate(rates)
}

// Mode returns the active flight mode.
func (c *Controller) Mode() flightmode.Mode {
	return c.mode
}

// State returns the most recent state estimate.
func (c *Controller) State() State {
	return c.state
}

// Landed reports whether a landing has been completed and not yet rearmed.
func (c *Controller) Landed() bool {
	return c.mode == flightmode.Land && c.landing.Landed()
}

// FlightID identifies this controller's flight in telemetry.
func (c *Controller) FlightID() string {
	return c.flightID
}

// Bank exposes the PID bank for inspection.
func (c *Controller) Bank() *control.Bank {
	return c.bank
}

// Cut returns the motor command with every motor at minimum thrust.
func (c *Controller) Cut() mixer.MotorCommand {
	return c.mixer.Cut()
}
