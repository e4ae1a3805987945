package inject

import (
	"context"

	"go.viam.com/flightcontrol/flight"
)

// Altimeter is an injected altimeter.
type Altimeter struct {
	flight.Altimeter
	AltitudeFunc func(ctx context.Context) (float64, error)
}

// Altitude calls the injected Altitude or the real version.
func (a *Altimeter) Altitude(ctx context.Context) (float64, error) {
	if a.AltitudeFunc == nil {
		return a.Altimeter.Altitude(ctx)
	}
	return a.AltitudeFunc(ctx)
}

// Battery is an injected battery monitor.
type Battery struct {
	flight.Battery
	VoltageFunc func(ctx context.Context) (float64, error)
	CloseFunc   func() error
}

// Voltage calls the injected Voltage or the real version.
func (b *Battery) Voltage(ctx context.Context) (float64, error) {
	if b.VoltageFunc == nil {
		return b.Battery.Voltage(ctx)
	}
	return b.VoltageFunc(ctx)
}

// Close calls the injected Close or does nothing.
func (b *Battery) Close() error {
	if b.CloseFunc == nil {
		return nil
	}
	return b.CloseFunc()
}
