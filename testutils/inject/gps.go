package inject

import (
	"context"

	"go.viam.com/flightcontrol/flight"
)

// GPS is an injected GPS.
type GPS struct {
	flight.GPS
	FixFunc func(ctx context.Context) (flight.GPSFix, error)
}

// Fix calls the injected Fix or the real version.
func (g *GPS) Fix(ctx context.Context) (flight.GPSFix, error) {
	if g.FixFunc == nil {
		return g.GPS.Fix(ctx)
	}
	return g.FixFunc(ctx)
}
