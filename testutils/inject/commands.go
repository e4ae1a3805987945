package inject

import (
	"context"

	"go.viam.com/flightcontrol/flight"
	"go.viam.com/flightcontrol/flightmode"
)

// CommandSource is an injected command source.
type CommandSource struct {
	flight.CommandSource
	LatestFunc func(ctx context.Context) (flight.Command, bool)
}

// Latest calls the injected Latest or the real version.
func (c *CommandSource) Latest(ctx context.Context) (flight.Command, bool) {
	if c.LatestFunc == nil {
		return c.CommandSource.Latest(ctx)
	}
	return c.LatestFunc(ctx)
}

// Navigator is an injected navigator.
type Navigator struct {
	flight.Navigator
	SetpointFunc func(ctx context.Context, mode flightmode.Mode, state flight.State) (flight.Setpoint, bool)
	CloseFunc    func() error
}

// Setpoint calls the injected Setpoint or the real version.
func (n *Navigator) Setpoint(ctx context.Context, mode flightmode.Mode, state flight.State) (flight.Setpoint, bool) {
	if n.SetpointFunc == nil {
		return n.Navigator.Setpoint(ctx, mode, state)
	}
	return n.SetpointFunc(ctx, mode, state)
}

// Close calls the injected Close or does nothing.
func (n *Navigator) Close() error {
	if n.CloseFunc == nil {
		return nil
	}
	return n.CloseFunc()
}
