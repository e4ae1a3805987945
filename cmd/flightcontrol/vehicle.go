package main

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"

	"go.viam.com/flightcontrol/attitude"
	"go.viam.com/flightcontrol/config"
	"go.viam.com/flightcontrol/flight"
	"go.viam.com/flightcontrol/flightmode"
	"go.viam.com/flightcontrol/logging"
	"go.viam.com/flightcontrol/sim"
)

// calibrationSamples is how many resting IMU samples set the gyro bias before takeoff.
const calibrationSamples = 200

// returnAltitude is the altitude held in ReturnToLaunch.
const returnAltitude = 6.

func demoMission() []sim.Waypoint {
	return []sim.Waypoint{
		{Altitude: 8, Heading: 90},
		{Altitude: 8, Heading: -90},
		{Altitude: 4, Heading: 0},
	}
}

// demoScript takes off in AltitudeHold, loiters, flies the mission, returns and lands.
func demoScript() []sim.Leg {
	request := func(m flightmode.Mode) flightmode.Request { return flightmode.RequestMode(m) }
	return []sim.Leg{
		{Command: flight.Command{Throttle: 1000, Mode: request(flightmode.Stabilize)}},
		{At: 2 * time.Second, Command: flight.Command{
			TargetAltitude:    5,
			HasTargetAltitude: true,
			Mode:              request(flightmode.AltitudeHold),
		}},
		{At: 12 * time.Second, Command: flight.Command{Roll: 5, Mode: request(flightmode.AltitudeHold)}},
		{At: 14 * time.Second, Command: flight.Command{Mode: request(flightmode.Loiter)}},
		{At: 20 * time.Second, Command: flight.Command{Mode: request(flightmode.Auto)}},
		{At: 50 * time.Second, Command: flight.Command{Mode: request(flightmode.ReturnToLaunch)}},
		{At: 58 * time.Second, Command: flight.Command{Mode: request(flightmode.Land)}},
	}
}

type vehicle struct {
	quad *sim.Quad
	nav  *sim.Navigator
	ctrl *flight.Controller
	loop *flight.Loop
}

// newVehicle assembles a controller flying the simulated airframe through the demo script.
func newVehicle(
	ctx context.Context,
	cfg *config.Config,
	clk clock.Clock,
	sink flight.TelemetrySink,
	logger logging.Logger,
) (*vehicle, error) {
	params := sim.DefaultParams()
	params.HoverThrottle = cfg.HoverThrottle
	params.MinThrust, params.MaxThrust = cfg.Motors.Min, cfg.Motors.Max
	params.BatteryStart = cfg.Sim.BatteryStart
	params.BatteryDrain = cfg.Sim.BatteryDrainVPS
	params.Seed = uint64(cfg.Sim.Seed)
	quad, err := sim.NewQuad(params, clk)
	if err != nil {
		return nil, errors.Wrap(err, "building simulated airframe")
	}

	nav := sim.NewNavigator(returnAltitude, demoMission()...)
	ctrl, err := flight.NewController(cfg.Flight(), nav, logger)
	if err != nil {
		return nil, err
	}
	if err := calibrate(ctx, quad, ctrl); err != nil {
		return nil, err
	}

	collab := sim.Collaborators(quad, sim.NewPilot(clk, demoScript()...), sink)
	loop, err := flight.NewLoop(cfg.Loop(), ctrl, collab, clk, logger.Sublogger("loop"))
	if err != nil {
		return nil, err
	}
	return &vehicle{quad: quad, nav: nav, ctrl: ctrl, loop: loop}, nil
}

func calibrate(ctx context.Context, imu flight.IMU, ctrl *flight.Controller) error {
	samples := make([]attitude.Sample, 0, calibrationSamples)
	for i := 0; i < calibrationSamples; i++ {
		s, err := imu.ReadIMU(ctx)
		if err != nil {
			return errors.Wrap(err, "reading imu for calibration")
		}
		samples = append(samples, s)
	}
	return ctrl.Calibrate(samples)
}
