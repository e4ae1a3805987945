// Package flightmode defines the flight modes and the single transition function between them.
package flightmode

import (
	"github.com/pkg/errors"

	"go.viam.com/flightcontrol/control"
	"go.viam.com/flightcontrol/safety"
)

// Mode is the active control behavior.
type Mode uint8

// Flight modes. Stabilize is the initial mode.
const (
	Stabilize Mode = iota
	AltitudeHold
	Loiter
	ReturnToLaunch
	Auto
	Land
)

// Modes lists every mode.
var Modes = []Mode{Stabilize, AltitudeHold, Loiter, ReturnToLaunch, Auto, Land}

var modeNames = map[Mode]string{
	Stabilize:      "stabilize",
	AltitudeHold:   "altitude_hold",
	Loiter:         "loiter",
	ReturnToLaunch: "rtl",
	Auto:           "auto",
	Land:           "land",
}

func (m Mode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return "unknown"
}

// Valid reports whether m names a mode.
func (m Mode) Valid() bool {
	_, ok := modeNames[m]
	return ok
}

// ParseMode returns the mode with the given name.
func ParseMode(name string) (Mode, error) {
	for m, n := range modeNames {
		if n == name {
			return m, nil
		}
	}
	return 0, errors.Errorf("unknown flight mode %q", name)
}

// MarshalText encodes the mode name.
func (m Mode) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, errors.Errorf("invalid flight mode %d", m)
	}
	return []byte(m.String()), nil
}

// UnmarshalText decodes a mode name.
func (m *Mode) UnmarshalText(text []byte) error {
	parsed, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// HoldsAltitude reports whether the altitude axis is regulated in m.
func (m Mode) HoldsAltitude() bool {
	return m != Stabilize
}

// Navigated reports whether m takes its setpoints from a navigator.
func (m Mode) Navigated() bool {
	return m == Loiter || m == ReturnToLaunch || m == Auto
}

// Request is an operator mode request. The zero value requests nothing.
type Request struct {
	Mode      Mode
	Requested bool
}

// RequestMode returns a request for m.
func RequestMode(m Mode) Request {
	return Request{Mode: m, Requested: true}
}

// Transition returns the next mode. A safety force-land always wins, Land is only left through
// an explicit re-arm, and otherwise a valid operator request selects the mode.
func Transition(current Mode, status safety.Status, req Request) Mode {
	switch {
	case status.ForceLand || status.MotorCut:
		return Land
	case current == Land:
		return Land
	case req.Requested && req.Mode.Valid():
		return req.Mode
	default:
		return current
	}
}

// ActiveAxes returns the PID axes regulated in mode. A completed landing regulates nothing.
func ActiveAxes(mode Mode, landed bool) control.AxisSet {
	switch {
	case mode == Land && landed:
		return control.NoAxes
	case mode.HoldsAltitude():
		return control.AllAxes
	default:
		return control.AttitudeAxes
	}
}
