// Package telemetry fans flight snapshots and events out to sinks, throttling snapshots to a fixed
// rate independent of the control cadence.
package telemetry

import (
	"math"

	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"golang.org/x/time/rate"

	"go.viam.com/flightcontrol/flight"
	"go.viam.com/flightcontrol/logging"
)

// DefaultRate is the snapshot publication rate in Hz.
const DefaultRate = 10.

// Emitter is a flight.TelemetrySink that forwards at most Rate snapshots per second, measured
// on the snapshot timestamps, and every event without throttling.
type Emitter struct {
	limiter *rate.Limiter
	sinks   []flight.TelemetrySink
	logger  logging.Logger

	published atomic.Uint64
	dropped   atomic.Uint64
}

// NewEmitter returns an emitter publishing to sinks at hz snapshots per second.
func NewEmitter(hz float64, logger logging.Logger, sinks ...flight.TelemetrySink) (*Emitter, error) {
	if math.IsNaN(hz) || hz <= 0 {
		return nil, errors.Errorf("telemetry rate must be positive, got %v", hz)
	}
	return &Emitter{
		limiter: rate.NewLimiter(rate.Limit(hz), 1),
		sinks:   sinks,
		logger:  logger,
	}, nil
}

// Publish forwards s if the rate allows it.
func (e *Emitter) Publish(s flight.Snapshot) {
	if !e.limiter.AllowN(s.Time, 1) {
		e.dropped.Inc()
		return
	}
	e.published.Inc()
	for _, sink := range e.sinks {
		sink.Publish(s)
	}
}

// Event forwards ev to every sink immediately.
func (e *Emitter) Event(ev flight.Event) {
	e.logger.Debugw("forwarding event", "kind", ev.Kind, "sinks", len(e.sinks))
	for _, sink := range e.sinks {
		sink.Event(ev)
	}
}

// Published returns how many snapshots were forwarded.
func (e *Emitter) Published() uint64 {
	return e.published.Load()
}

// Dropped returns how many snapshots were throttled away.
func (e *Emitter) Dropped() uint64 {
	return e.dropped.Load()
}

// Fanout forwards every snapshot and event to each of its sinks without throttling.
type Fanout []flight.TelemetrySink

// Publish forwards s.
func (f Fanout) Publish(s flight.Snapshot) {
	for _, sink := range f {
		sink.Publish(s)
	}
}

// Event forwards ev.
func (f Fanout) Event(ev flight.Event) {
	for _, sink := range f {
		sink.Event(ev)
	}
}
