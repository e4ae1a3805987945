package telemetry

import (
	"testing"
	"time"

	"go.viam.com/test"

	"go.viam.com/flightcontrol/flight"
	"go.viam.com/flightcontrol/flightmode"
	"go.viam.com/flightcontrol/logging"
)

var epoch = time.Date(2026, 7, 4, 10, 0, 0, 0, time.UTC)

func snapshotAt(cycle int) flight.Snapshot {
	return flight.Snapshot{
		Cycle: uint64(cycle),
		Time:  epoch.Add(time.Duration(cycle) * 10 * time.Millisecond),
		Mode:  flightmode.Stabilize,
		State: flight.State{Altitude: 3, BatteryVoltage: 12.1},
	}
}

func TestEmitterThrottlesSnapshots(t *testing.T) {
	latest := NewLatest()
	e, err := NewEmitter(DefaultRate, logging.NewTestLogger(t), latest)
	test.That(t, err, test.ShouldBeNil)

	// two seconds of a 100 Hz loop
	for i := 0; i < 200; i++ {
		e.Publish(snapshotAt(i))
	}
	test.That(t, e.Published(), test.ShouldEqual, uint64(20))
	test.That(t, e.Dropped(), test.ShouldEqual, uint64(180))

	s, ok := latest.Snapshot()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, s.Cycle, test.ShouldEqual, uint64(190))
}

func TestEmitterDoesNotThrottleEvents(t *testing.T) {
	latest := NewLatest()
	e, err := NewEmitter(1, logging.NewTestLogger(t), latest, NewLogSink(logging.NewTestLogger(t)))
	test.That(t, err, test.ShouldBeNil)
	for i := 0; i < 5; i++ {
		e.Event(flight.Event{Time: epoch, Kind: flight.EventFault, Faults: "command_stale", Message: "safety fault raised"})
	}
	test.That(t, len(latest.Events()), test.ShouldEqual, 5)
}

func TestFanout(t *testing.T) {
	a, b := NewLatest(), NewLatest()
	f := Fanout{a, b}
	f.Publish(snapshotAt(7))
	f.Event(flight.Event{Kind: flight.EventLanded})
	for _, l := range []*Latest{a, b} {
		s, ok := l.Snapshot()
		test.That(t, ok, test.ShouldBeTrue)
		test.That(t, s.Cycle, test.ShouldEqual, uint64(7))
		test.That(t, len(l.Events()), test.ShouldEqual, 1)
	}
}

func TestEmitterRejectsBadRate(t *testing.T) {
	_, err := NewEmitter(0, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestLogSink(t *testing.T) {
	logger, logs := logging.NewObservedTestLogger(t)
	ls := NewLogSink(logger)
	ls.Publish(snapshotAt(1))
	ls.Event(flight.Event{Kind: flight.EventForcedLand, Mode: flightmode.Land, Faults: "battery_critical", Message: "landing forced"})
	ls.Event(flight.Event{Kind: flight.EventModeChange, Mode: flightmode.Land, Message: "stabilize -> land"})

	test.That(t, logs.FilterMessage("telemetry").Len(), test.ShouldEqual, 1)
	forced := logs.FilterMessage("landing forced").All()
	test.That(t, len(forced), test.ShouldEqual, 1)
	test.That(t, forced[0].Level.String(), test.ShouldEqual, "warn")
	test.That(t, forced[0].ContextMap()["faults"], test.ShouldEqual, "battery_critical")
	test.That(t, logs.FilterMessage("stabilize -> land").All()[0].Level.String(), test.ShouldEqual, "info")
}
