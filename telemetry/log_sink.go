package telemetry

import (
	"go.viam.com/flightcontrol/flight"
	"go.viam.com/flightcontrol/logging"
)

// LogSink writes snapshots at debug level and events at info or warn level.
type LogSink struct {
	logger logging.Logger
}

// NewLogSink returns a sink logging to logger.
func NewLogSink(logger logging.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Publish logs a snapshot.
func (ls *LogSink) Publish(s flight.Snapshot) {
	ls.logger.Debugw("telemetry",
		"cycle", s.Cycle,
		"mode", s.Mode,
		"roll", s.State.Roll,
		"pitch", s.State.Pitch,
		"yaw", s.State.Yaw,
		"altitude", s.State.Altitude,
		"battery", s.State.BatteryVoltage,
		"motors", s.Motors,
		"faults", s.Safety.Faults,
	)
}

// Event logs an event. Safety events are warnings.
func (ls *LogSink) Event(ev flight.Event) {
	fields := []interface{}{"kind", ev.Kind, "mode", ev.Mode, "flight_id", ev.FlightID}
	if ev.Faults != "" {
		fields = append(fields, "faults", ev.Faults)
	}
	switch ev.Kind {
	case flight.EventForcedLand, flight.EventMotorCut, flight.EventFault:
		ls.logger.Warnw(ev.Message, fields...)
	default:
		ls.logger.Infow(ev.Message, fields...)
	}
}
