// Package control holds the PID bank that turns attitude and altitude errors into corrections.
package control

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/flightcontrol/logging"
)

// Axis is one of the regulated quantities.
type Axis int

// The four regulated axes. Roll and pitch regulate angle, Yaw regulates yaw rate.
const (
	Roll Axis = iota
	Pitch
	Yaw
	Altitude
	numAxes
)

// Axes lists every axis in order.
var Axes = [numAxes]Axis{Roll, Pitch, Yaw, Altitude}

func (a Axis) String() string {
	switch a {
	case Roll:
		return "roll"
	case Pitch:
		return "pitch"
	case Yaw:
		return "yaw"
	case Altitude:
		return "altitude"
	default:
		return "unknown"
	}
}

// AxisSet is a set of axes.
type AxisSet uint8

// Common axis sets.
const (
	NoAxes       AxisSet = 0
	AttitudeAxes         = AxisSet(1<<Roll | 1<<Pitch | 1<<Yaw)
	AllAxes              = AttitudeAxes | AxisSet(1<<Altitude)
)

// NewAxisSet returns the set containing axes.
func NewAxisSet(axes ...Axis) AxisSet {
	var s AxisSet
	for _, a := range axes {
		s |= 1 << a
	}
	return s
}

// Has reports whether a is in the set.
func (s AxisSet) Has(a Axis) bool {
	return s&(1<<a) != 0
}

func (s AxisSet) String() string {
	var names []string
	for _, a := range Axes {
		if s.Has(a) {
			names = append(names, a.String())
		}
	}
	return "[" + strings.Join(names, ",") + "]"
}

// BankConfig holds the gains for every axis.
type BankConfig struct {
	Roll     Gains
	Pitch    Gains
	Yaw      Gains
	Altitude Gains
}

// Gains returns the gains configured for an axis.
func (cfg BankConfig) Gains(a Axis) Gains {
	switch a {
	case Roll:
		return cfg.Roll
	case Pitch:
		return cfg.Pitch
	case Yaw:
		return cfg.Yaw
	default:
		return cfg.Altitude
	}
}

// Bank is four independent PID controllers plus the set of axes the current flight mode uses.
// Axes outside the active set are held reset so no integral carries across a mode change.
type Bank struct {
	pids   [numAxes]*PID
	active AxisSet
	logger logging.Logger
}

// NewBank builds a bank with every axis inactive.
func NewBank(cfg BankConfig, logger logging.Logger) (*Bank, error) {
	b := &Bank{logger: logger}
	var errs error
	for _, a := range Axes {
		p, err := NewPID(cfg.Gains(a))
		if err != nil {
			errs = multierr.Append(errs, errors.Wrapf(err, "%s axis", a))
			continue
		}
		b.pids[a] = p
	}
	if errs != nil {
		return nil, errs
	}
	return b, nil
}

// SetActive selects the active axes. Every axis outside the set is reset.
func (b *Bank) SetActive(active AxisSet) {
	for _, a := range Axes {
		if active.Has(a) {
			continue
		}
		if b.active.Has(a) {
			b.logger.Debugw("deactivating axis", "axis", a, "integral", b.pids[a].Integral())
		}
		b.pids[a].Reset()
	}
	b.active = active
}

// Active returns the active axes.
func (b *Bank) Active() AxisSet {
	return b.active
}

// Calculate runs the controller for axis. Inactive axes produce zero and keep their reset state.
func (b *Bank) Calculate(a Axis, setpoint, measured float64, dt time.Duration) float64 {
	if !b.active.Has(a) {
		return 0
	}
	return b.pids[a].Calculate(setpoint, measured, dt)
}

// Reset resets every axis, active or not.
func (b *Bank) Reset() {
	for _, p := range b.pids {
		p.Reset()
	}
}

// PID returns the controller for an axis.
func (b *Bank) PID(a Axis) *PID {
	return b.pids[a]
}
