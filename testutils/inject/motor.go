package inject

import (
	"context"

	"go.viam.com/flightcontrol/flight"
	"go.viam.com/flightcontrol/mixer"
)

// Actuators are injected motor outputs.
type Actuators struct {
	flight.Actuators
	SetMotorsFunc func(ctx context.Context, cmd mixer.MotorCommand) error
	CloseFunc     func() error
}

// SetMotors calls the injected SetMotors or the real version.
func (a *Actuators) SetMotors(ctx context.Context, cmd mixer.MotorCommand) error {
	if a.SetMotorsFunc == nil {
		return a.Actuators.SetMotors(ctx, cmd)
	}
	return a.SetMotorsFunc(ctx, cmd)
}

// Close calls the injected Close or does nothing.
func (a *Actuators) Close() error {
	if a.CloseFunc == nil {
		return nil
	}
	return a.CloseFunc()
}

// TelemetrySink is an injected telemetry sink.
type TelemetrySink struct {
	flight.TelemetrySink
	PublishFunc func(s flight.Snapshot)
	EventFunc   func(e flight.Event)
}

// Publish calls the injected Publish or the real version.
func (t *TelemetrySink) Publish(s flight.Snapshot) {
	if t.PublishFunc == nil {
		t.TelemetrySink.Publish(s)
		return
	}
	t.PublishFunc(s)
}

// Event calls the injected Event or the real version.
func (t *TelemetrySink) Event(e flight.Event) {
	if t.EventFunc == nil {
		t.TelemetrySink.Event(e)
		return
	}
	t.EventFunc(e)
}
