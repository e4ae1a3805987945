package flightmode

import (
	"encoding/json"
	"testing"

	"go.viam.com/test"

	"go.viam.com/flightcontrol/control"
	"go.viam.com/flightcontrol/safety"
)

func TestTransition(t *testing.T) {
	ok := safety.Status{SensorHealthy: true}
	forced := safety.Status{ForceLand: true, Faults: safety.FaultBatteryCritical}
	cut := safety.Status{ForceLand: true, MotorCut: true, Faults: safety.FaultSensorFailed}

	for _, c := range []struct {
		name    string
		current Mode
		status  safety.Status
		req     Request
		want    Mode
	}{
		{"no request keeps mode", AltitudeHold, ok, Request{}, AltitudeHold},
		{"request switches mode", Stabilize, ok, RequestMode(Loiter), Loiter},
		{"request for land", Auto, ok, RequestMode(Land), Land},
		{"invalid request ignored", Stabilize, ok, Request{Mode: Mode(42), Requested: true}, Stabilize},
		{"land is sticky", Land, ok, RequestMode(Stabilize), Land},
		{"force land overrides request", Stabilize, forced, RequestMode(AltitudeHold), Land},
		{"force land from rtl", ReturnToLaunch, forced, Request{}, Land},
		{"motor cut lands", Auto, cut, Request{}, Land},
	} {
		t.Run(c.name, func(t *testing.T) {
			test.That(t, Transition(c.current, c.status, c.req), test.ShouldEqual, c.want)
		})
	}
}

func TestForceLandFromEveryMode(t *testing.T) {
	forced := safety.Status{ForceLand: true, Faults: safety.FaultCommandStale}
	for _, m := range Modes {
		for _, r := range Modes {
			test.That(t, Transition(m, forced, RequestMode(r)), test.ShouldEqual, Land)
		}
	}
}

func TestActiveAxes(t *testing.T) {
	test.That(t, ActiveAxes(Stabilize, false), test.ShouldEqual, control.AttitudeAxes)
	for _, m := range []Mode{AltitudeHold, Loiter, ReturnToLaunch, Auto, Land} {
		test.That(t, ActiveAxes(m, false), test.ShouldEqual, control.AllAxes)
	}
	test.That(t, ActiveAxes(Land, true), test.ShouldEqual, control.NoAxes)
	// landed is only meaningful in Land
	test.That(t, ActiveAxes(Stabilize, true), test.ShouldEqual, control.AttitudeAxes)
}

func TestModeNames(t *testing.T) {
	for _, m := range Modes {
		parsed, err := ParseMode(m.String())
		test.That(t, err, test.ShouldBeNil)
		test.That(t, parsed, test.ShouldEqual, m)
	}
	_, err := ParseMode("acro")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, Mode(99).String(), test.ShouldEqual, "unknown")

	var v struct {
		Mode Mode `json:"mode"`
	}
	test.That(t, json.Unmarshal([]byte(`{"mode":"rtl"}`), &v), test.ShouldBeNil)
	test.That(t, v.Mode, test.ShouldEqual, ReturnToLaunch)
	out, err := json.Marshal(v)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(out), test.ShouldEqual, `{"mode":"rtl"}`)

	test.That(t, Loiter.Navigated(), test.ShouldBeTrue)
	test.That(t, AltitudeHold.Navigated(), test.ShouldBeFalse)
	test.That(t, Stabilize.HoldsAltitude(), test.ShouldBeFalse)
}
