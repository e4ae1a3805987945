// Package mixer converts throttle and axis corrections into per-motor commands for an X quad.
package mixer

import (
	"fmt"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/flightcontrol/utils"
)

// Default output range, in PWM microseconds.
const (
	DefaultMinThrust = 1000.
	DefaultMaxThrust = 2000.
)

// NumMotors is the motor count of an X quad.
const NumMotors = 4

// MotorCommand holds motor magnitudes ordered front-left, front-right, rear-left, rear-right.
type MotorCommand [NumMotors]float64

func (m MotorCommand) String() string {
	return fmt.Sprintf("[%.1f %.1f %.1f %.1f]", m[0], m[1], m[2], m[3])
}

// xQuad maps [throttle, roll, pitch, yaw] onto the four motors. A positive roll correction
// speeds up the right-hand motors; a positive pitch correction speeds up the front pair.
var xQuad = mat.NewDense(NumMotors, 4, []float64{
	1, -1, 1, -1, // front-left
	1, 1, 1, 1, // front-right
	1, -1, -1, 1, // rear-left
	1, 1, -1, -1, // rear-right
})

// Config bounds the motor output.
type Config struct {
	MinThrust float64
	MaxThrust float64
}

// DefaultConfig returns the standard 1000..2000 range.
func DefaultConfig() Config {
	return Config{MinThrust: DefaultMinThrust, MaxThrust: DefaultMaxThrust}
}

// Validate checks the range is finite and non-empty.
func (cfg Config) Validate() error {
	if !utils.IsFinite(cfg.MinThrust, cfg.MaxThrust) {
		return errors.New("thrust limits must be finite")
	}
	if cfg.MinThrust >= cfg.MaxThrust {
		return errors.Errorf("min thrust %v must be below max thrust %v", cfg.MinThrust, cfg.MaxThrust)
	}
	return nil
}

// Mixer applies the X quad mixing law.
type Mixer struct {
	cfg  Config
	in   *mat.VecDense
	out  *mat.VecDense
	last MotorCommand
}

// New returns a mixer for cfg.
func New(cfg Config) (*Mixer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Mixer{
		cfg: cfg,
		in:  mat.NewVecDense(4, nil),
		out: mat.NewVecDense(NumMotors, nil),
	}, nil
}

// Mix returns the motor command for the given throttle and corrections. Every output is clamped to
// [MinThrust, MaxThrust] as the final step, so a single saturated motor does not shift the others.
func (m *Mixer) Mix(throttle, roll, pitch, yaw float64) MotorCommand {
	if !utils.IsFinite(throttle, roll, pitch, yaw) {
		m.last = m.Cut()
		return m.last
	}
	m.in.SetVec(0, throttle)
	m.in.SetVec(1, roll)
	m.in.SetVec(2, pitch)
	m.in.SetVec(3, yaw)
	m.out.MulVec(xQuad, m.in)

	var cmd MotorCommand
	for i := range cmd {
		cmd[i] = utils.Clamp(m.out.AtVec(i), m.cfg.MinThrust, m.cfg.MaxThrust)
	}
	m.last = cmd
	return cmd
}

// Cut returns every motor at minimum thrust, bypassing the mixing law.
func (m *Mixer) Cut() MotorCommand {
	var cmd MotorCommand
	for i := range cmd {
		cmd[i] = m.cfg.MinThrust
	}
	return cmd
}

// Last returns the most recent mixed command.
func (m *Mixer) Last() MotorCommand {
	return m.last
}

// Config returns the output range.
func (m *Mixer) Config() Config {
	return m.cfg
}
