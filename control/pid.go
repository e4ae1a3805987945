package control

import (
	"math"
	"time"

	"github.com/pkg/errors"
	"go.einride.tech/pid"

	"go.viam.com/flightcontrol/utils"
)

// Gains configures a single PID axis.
type Gains struct {
	Kp, Ki, Kd float64
	// Bound is the symmetric output clamp, output is always within [-Bound, Bound].
	Bound float64
}

// Validate checks that the gains are usable.
func (g Gains) Validate() error {
	if !utils.IsFinite(g.Kp, g.Ki, g.Kd, g.Bound) {
		return errors.New("gains must be finite")
	}
	if g.Kp < 0 || g.Ki < 0 || g.Kd < 0 {
		return errors.Errorf("gains must be non-negative, got kp=%v ki=%v kd=%v", g.Kp, g.Ki, g.Kd)
	}
	if g.Bound <= 0 {
		return errors.Errorf("output bound must be positive, got %v", g.Bound)
	}
	return nil
}

// PID is a clamped PID controller. Output is clamped to the bound, and the accumulated
// integral is itself clamped so the integral term alone can never exceed the bound. That
// keeps the unwind after a long saturation short.
type PID struct {
	gains         Gains
	integralLimit float64
	ctrl          pid.Controller
	output        float64
	saturated     bool
	// primed is false until the first update after construction, Reset or SetGains. The first
	// update has no previous error, so it contributes no derivative.
	primed bool
}

// NewPID returns a controller with zeroed state.
func NewPID(g Gains) (*PID, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	p := &PID{}
	p.setGains(g)
	return p, nil
}

func (p *PID) setGains(g Gains) {
	p.gains = g
	p.integralLimit = math.Inf(1)
	if g.Ki > 0 {
		p.integralLimit = g.Bound / g.Ki
	}
	p.ctrl = pid.Controller{Config: pid.ControllerConfig{
		ProportionalGain: g.Kp,
		IntegralGain:     g.Ki,
		DerivativeGain:   g.Kd,
	}}
	p.output = 0
	p.saturated = false
	p.primed = false
}

// Calculate returns the next output for error = setpoint - measured over dt. A non-positive dt
// leaves the state untouched and returns the previous output.
func (p *PID) Calculate(setpoint, measured float64, dt time.Duration) float64 {
	if dt <= 0 {
		return p.output
	}
	if !p.primed {
		p.ctrl.State.ControlError = setpoint - measured
		p.primed = true
	}
	p.ctrl.Update(pid.ControllerInput{
		ReferenceSignal:  setpoint,
		ActualSignal:     measured,
		SamplingInterval: dt,
	})

	st := &p.ctrl.State
	st.ControlErrorIntegral = utils.Clamp(st.ControlErrorIntegral, -p.integralLimit, p.integralLimit)
	raw := p.gains.Kp*st.ControlError +
		p.gains.Ki*st.ControlErrorIntegral +
		p.gains.Kd*st.ControlErrorDerivative

	p.output = utils.Clamp(raw, -p.gains.Bound, p.gains.Bound)
	p.saturated = p.output != raw
	st.ControlSignal = p.output
	return p.output
}

// Reset zeroes the integral and output and forgets the previous error, so the next update has
// no derivative term.
func (p *PID) Reset() {
	p.ctrl = pid.Controller{Config: p.ctrl.Config}
	p.output = 0
	p.saturated = false
	p.primed = false
}

// SetGains retunes the controller and resets its state.
func (p *PID) SetGains(g Gains) error {
	if err := g.Validate(); err != nil {
		return err
	}
	p.setGains(g)
	return nil
}

// Gains returns the current tuning.
func (p *PID) Gains() Gains {
	return p.gains
}

// Output returns the most recent output.
func (p *PID) Output() float64 {
	return p.output
}

// Integral returns the accumulated error integral.
func (p *PID) Integral() float64 {
	return p.ctrl.State.ControlErrorIntegral
}

// Saturated reports whether the last output hit the bound.
func (p *PID) Saturated() bool {
	return p.saturated
}
