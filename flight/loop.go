package flight

import (
	"context"
	"io"
	"math"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"

	"go.viam.com/flightcontrol/control"
	"go.viam.com/flightcontrol/logging"
)

// Loop rate limits and default.
const (
	DefaultFrequency = 100.
	MaxFrequency     = 200.
)

// timingWindow is how many recent cycle durations feed the timing statistics.
const timingWindow = 1000

// LoopConfig configures a Loop.
type LoopConfig struct {
	// Frequency is the cycle rate in Hz, within (0, MaxFrequency].
	Frequency float64
}

// Validate checks the loop rate.
func (cfg LoopConfig) Validate() error {
	if math.IsNaN(cfg.Frequency) || cfg.Frequency <= 0 || cfg.Frequency > MaxFrequency {
		return errors.Errorf("loop frequency must be within (0, %v] Hz, got %v", MaxFrequency, cfg.Frequency)
	}
	return nil
}

// Period returns the nominal cycle period.
func (cfg LoopConfig) Period() time.Duration {
	return time.Duration(float64(time.Second) / cfg.Frequency)
}

// Stats summarizes recent cycle timing.
type Stats struct {
	Cycles    uint64        `json:"cycles"`
	Overruns  uint64        `json:"overruns"`
	Mean      time.Duration `json:"mean"`
	P99       time.Duration `json:"p99"`
	Max       time.Duration `json:"max"`
	LastDt    time.Duration `json:"last_dt"`
	MaxDt     time.Duration `json:"max_dt"`
	Frequency float64       `json:"frequency"`
}

// Loop drives a Controller at a fixed rate from a ticker. All controller access happens on the
// loop's worker goroutine or, before Start and after Stop, on the caller's.
type Loop struct {
	cfg    LoopConfig
	ctrl   *Controller
	collab Collaborators
	clk    clock.Clock
	logger logging.Logger

	workers  *goutils.StoppableWorkers
	requests chan request

	mu        sync.Mutex
	durations []float64
	cycles    uint64
	overruns  uint64
	lastDt    time.Duration
	maxDt     time.Duration
	last      Output
}

// NewLoop validates the collaborators and returns a stopped loop.
func NewLoop(
	cfg LoopConfig,
	ctrl *Controller,
	collab Collaborators,
	clk clock.Clock,
	logger logging.Logger,
) (*Loop, error) {
	errs := cfg.Validate()
	if ctrl == nil {
		errs = multierr.Append(errs, errors.New("controller is required"))
	}
	for name, missing := range map[string]bool{
		"imu":       collab.IMU == nil,
		"altimeter": collab.Altimeter == nil,
		"battery":   collab.Battery == nil,
		"commands":  collab.Commands == nil,
		"actuators": collab.Actuators == nil,
	} {
		if missing {
			errs = multierr.Append(errs, errors.Errorf("%s collaborator is required", name))
		}
	}
	if errs != nil {
		return nil, errs
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Loop{
		cfg:       cfg,
		ctrl:      ctrl,
		collab:    collab,
		clk:       clk,
		logger:    logger,
		requests:  make(chan request),
		durations: make([]float64, 0, timingWindow),
	}, nil
}

// Start launches the cycle worker. It is a no-op if the loop is already running.
func (l *Loop) Start() {
	if l.workers != nil {
		return
	}
	l.logger.Infow("starting control loop", "frequency", l.cfg.Frequency, "flight_id", l.ctrl.FlightID())
	l.workers = goutils.NewBackgroundStoppableWorkers(l.run)
}

// Stop halts the cycle worker and waits for it to exit.
func (l *Loop) Stop() {
	if l.workers == nil {
		return
	}
	l.workers.Stop()
	l.workers = nil
	l.logger.Info("control loop stopped")
}

func (l *Loop) run(ctx context.Context) {
	ticker := l.clk.Ticker(l.cfg.Period())
	defer ticker.Stop()
	for {
		if ctx.Err() != nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		case req := <-l.requests:
			req.reply <- req.fn(l.ctrl)
		case <-ticker.C:
			l.RunCycle(ctx)
		}
	}
}

type request struct {
	fn    func(*Controller) error
	reply chan error
}

// Do runs fn on the loop's worker between two cycles. It blocks until fn returns or ctx is done,
// so it only succeeds while the loop is running.
func (l *Loop) Do(ctx context.Context, fn func(*Controller) error) error {
	req := request{fn: fn, reply: make(chan error, 1)}
	select {
	case l.requests <- req:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Rearm asks the running loop to rearm the controller between cycles.
func (l *Loop) Rearm(ctx context.Context) error {
	return l.Do(ctx, (*Controller).Rearm)
}

// SetGains retunes every axis of the running controller. Nothing changes if any axis is
// invalid, and retuned axes restart from zero state.
func (l *Loop) SetGains(ctx context.Context, cfg control.BankConfig) error {
	var errs error
	for _, a := range control.Axes {
		if err := cfg.Gains(a).Validate(); err != nil {
			errs = multierr.Append(errs, errors.Wrapf(err, "%s pid", a))
		}
	}
	if errs != nil {
		return errs
	}
	return l.Do(ctx, func(c *Controller) error {
		for _, a := range control.Axes {
			pid := c.Bank().PID(a)
			if pid.Gains() == cfg.Gains(a) {
				continue
			}
			if err := pid.SetGains(cfg.Gains(a)); err != nil {
				return err
			}
			l.logger.Infow("pid gains updated", "axis", a.String(), "gains", cfg.Gains(a))
		}
		return nil
	})
}

// RunCycle performs one sense, step, actuate and report pass. It is called by the worker on
// every tick, and may be called directly while the loop is stopped.
func (l *Loop) RunCycle(ctx context.Context) Output {
	start := l.clk.Now()
	in := l.sense(ctx)
	out := l.ctrl.Step(ctx, start, in)

	if err := l.collab.Actuators.SetMotors(ctx, out.Motors); err != nil {
		l.logger.Errorw("failed to apply motor command", "error", err, "motors", out.Motors)
	}
	if sink := l.collab.Telemetry; sink != nil {
		for _, ev := range out.Events {
			sink.Event(ev)
		}
		sink.Publish(out.Snapshot)
	}

	l.record(out, l.clk.Since(start))
	return out
}

// sense reads every collaborator. Read errors are logged and turned into inputs the controller
// knows how to recover from.
func (l *Loop) sense(ctx context.Context) Inputs {
	var in Inputs

	in.IMU, in.IMUErr = l.collab.IMU.ReadIMU(ctx)
	if in.IMUErr != nil {
		l.logger.Debugw("imu read failed", "error", in.IMUErr)
	}

	in.Altitude, in.AltitudeErr = l.collab.Altimeter.Altitude(ctx)
	if in.AltitudeErr != nil {
		l.logger.Debugw("altimeter read failed, holding last altitude", "error", in.AltitudeErr)
	}

	volts, err := l.collab.Battery.Voltage(ctx)
	if err != nil {
		l.logger.Warnw("battery read failed", "error", err)
		volts = math.NaN()
	}
	in.BatteryVoltage = volts

	if l.collab.GPS != nil {
		fix, err := l.collab.GPS.Fix(ctx)
		if err != nil {
			l.logger.Debugw("gps read failed, treating as no lock", "error", err)
			fix = GPSFix{}
		}
		in.GPS = fix
	}

	in.Command, in.HasCommand = l.collab.Commands.Latest(ctx)
	return in
}

func (l *Loop) record(out Output, took time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cycles++
	if took > l.cfg.Period() {
		l.overruns++
		l.logger.Debugw("cycle overran its period", "took", took, "period", l.cfg.Period())
	}
	if len(l.durations) == timingWindow {
		copy(l.durations, l.durations[1:])
		l.durations = l.durations[:timingWindow-1]
	}
	l.durations = append(l.durations, float64(took))
	l.lastDt = out.Dt
	if out.Dt > l.maxDt {
		l.maxDt = out.Dt
	}
	l.last = out
}

// Stats returns timing statistics over the most recent cycles.
func (l *Loop) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := Stats{
		Cycles:    l.cycles,
		Overruns:  l.overruns,
		LastDt:    l.lastDt,
		MaxDt:     l.maxDt,
		Frequency: l.cfg.Frequency,
	}
	if len(l.durations) == 0 {
		return s
	}
	data := stats.Float64Data(l.durations)
	if mean, err := data.Mean(); err == nil {
		s.Mean = time.Duration(mean)
	}
	if p99, err := data.Percentile(99); err == nil {
		s.P99 = time.Duration(p99)
	}
	if maxTook, err := data.Max(); err == nil {
		s.Max = time.Duration(maxTook)
	}
	return s
}

// Last returns the output of the most recent cycle.
func (l *Loop) Last() Output {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.last
}

// Period returns the nominal cycle period.
func (l *Loop) Period() time.Duration {
	return l.cfg.Period()
}

// Controller returns the driven controller. It must not be used while the loop is running.
func (l *Loop) Controller() *Controller {
	return l.ctrl
}

// Close stops the loop, commands every motor to minimum thrust and closes any collaborator, the
// controller's navigator included, that holds resources.
func (l *Loop) Close(ctx context.Context) error {
	l.Stop()
	err := errors.Wrap(l.collab.Actuators.SetMotors(ctx, l.ctrl.Cut()), "cutting motors on close")
	seen := map[interface{}]bool{}
	for _, c := range []interface{}{
		l.collab.IMU, l.collab.Altimeter, l.collab.Battery, l.collab.GPS,
		l.collab.Commands, l.ctrl.navigator, l.collab.Actuators, l.collab.Telemetry,
	} {
		closer, ok := c.(io.Closer)
		if !ok || seen[c] {
			continue
		}
		seen[c] = true
		err = multierr.Combine(err, closer.Close())
	}
	return err
}
