package sim

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"

	"go.viam.com/flightcontrol/flight"
)

// Fly runs loop cycles back to back on a mock clock, advancing it one period per cycle, until
// d of simulated time has passed, ctx is done, or until reports true for a cycle's output. It
// returns the last output. The loop must not be started.
func Fly(ctx context.Context, loop *flight.Loop, clk *clock.Mock, d time.Duration, until func(flight.Output) bool) flight.Output {
	var out flight.Output
	period := loop.Period()
	for elapsed := time.Duration(0); elapsed < d && ctx.Err() == nil; elapsed += period {
		out = loop.RunCycle(ctx)
		if until != nil && until(out) {
			return out
		}
		clk.Add(period)
	}
	return out
}

// Collaborators wires a simulated quad and pilot into a loop. sink may be nil.
func Collaborators(q *Quad, pilot *Pilot, sink flight.TelemetrySink) flight.Collaborators {
	return flight.Collaborators{
		IMU:       q,
		Altimeter: q,
		Battery:   q,
		GPS:       q,
		Commands:  pilot,
		Actuators: q,
		Telemetry: sink,
	}
}
