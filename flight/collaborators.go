package flight

import (
	"context"

	"go.viam.com/flightcontrol/attitude"
	"go.viam.com/flightcontrol/flightmode"
	"go.viam.com/flightcontrol/mixer"
)

// IMU provides accelerometer (m/s^2) and gyroscope (deg/s) samples.
type IMU interface {
	ReadIMU(ctx context.Context) (attitude.Sample, error)
}

// Altimeter provides barometric altitude in meters above the launch point.
type Altimeter interface {
	Altitude(ctx context.Context) (float64, error)
}

// Battery provides the pack voltage.
type Battery interface {
	Voltage(ctx context.Context) (float64, error)
}

// GPS provides the receiver lock status.
type GPS interface {
	Fix(ctx context.Context) (GPSFix, error)
}

// CommandSource provides the newest operator command. ok is false when none was ever received.
type CommandSource interface {
	Latest(ctx context.Context) (cmd Command, ok bool)
}

// Navigator produces setpoints for Loiter, ReturnToLaunch and Auto. ok is false when it has
// nothing to offer for the mode.
type Navigator interface {
	Setpoint(ctx context.Context, mode flightmode.Mode, state State) (sp Setpoint, ok bool)
}

// Actuators applies motor commands.
type Actuators interface {
	SetMotors(ctx context.Context, cmd mixer.MotorCommand) error
}

// TelemetrySink receives per-cycle snapshots and discrete events.
type TelemetrySink interface {
	Publish(s Snapshot)
	Event(e Event)
}

// Collaborators bundles the external dependencies of a Loop. GPS and Telemetry may be nil. The
// Navigator belongs to the Controller, see NewController.
type Collaborators struct {
	IMU       IMU
	Altimeter Altimeter
	Battery   Battery
	GPS       GPS
	Commands  CommandSource
	Actuators Actuators
	Telemetry TelemetrySink
}
