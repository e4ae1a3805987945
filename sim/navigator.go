package sim

import (
	"context"
	"math"
	"sync"

	"go.viam.com/flightcontrol/flight"
	"go.viam.com/flightcontrol/flightmode"
	"go.viam.com/flightcontrol/utils"
)

// Waypoint is a mission target. The simulation has no horizontal position, so a waypoint is
// an altitude and a heading.
type Waypoint struct {
	Altitude float64 // m
	Heading  float64 // deg
}

// Navigator produces setpoints for the navigated modes of the simulated vehicle. It
// implements flight.Navigator.
type Navigator struct {
	// ReturnAltitude is the altitude held in ReturnToLaunch.
	ReturnAltitude float64
	// AltitudeTolerance and HeadingTolerance decide when a waypoint is reached.
	AltitudeTolerance float64
	HeadingTolerance  float64
	// TurnGain converts heading error into a yaw rate, capped at MaxTurnRate.
	TurnGain    float64
	MaxTurnRate float64

	mu      sync.Mutex
	mission []Waypoint
	next    int
}

// NewNavigator returns a navigator flying mission in Auto.
func NewNavigator(returnAltitude float64, mission ...Waypoint) *Navigator {
	return &Navigator{
		ReturnAltitude:    returnAltitude,
		AltitudeTolerance: 0.3,
		HeadingTolerance:  5,
		TurnGain:          1,
		MaxTurnRate:       45,
		mission:           append([]Waypoint(nil), mission...),
	}
}

// Setpoint returns the setpoint for mode. Auto reports nothing once the mission is complete.
func (n *Navigator) Setpoint(ctx context.Context, mode flightmode.Mode, state flight.State) (flight.Setpoint, bool) {
	switch mode {
	case flightmode.Loiter:
		return flight.Setpoint{}, true
	case flightmode.ReturnToLaunch:
		return flight.Setpoint{Altitude: n.ReturnAltitude, HasAltitude: true}, true
	case flightmode.Auto:
		return n.followMission(state)
	default:
		return flight.Setpoint{}, false
	}
}

func (n *Navigator) followMission(state flight.State) (flight.Setpoint, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.next >= len(n.mission) {
		return flight.Setpoint{}, false
	}
	wp := n.mission[n.next]
	headingErr := utils.WrapDeg180(wp.Heading - state.Yaw)
	if math.Abs(wp.Altitude-state.Altitude) <= n.AltitudeTolerance && math.Abs(headingErr) <= n.HeadingTolerance {
		n.next++
	}
	return flight.Setpoint{
		YawRate:     utils.Clamp(n.TurnGain*headingErr, -n.MaxTurnRate, n.MaxTurnRate),
		Altitude:    wp.Altitude,
		HasAltitude: true,
	}, true
}

// Progress returns how many waypoints have been reached and the mission length.
func (n *Navigator) Progress() (reached, total int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.next, len(n.mission)
}
