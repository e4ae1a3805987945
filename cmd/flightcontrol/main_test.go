package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"go.viam.com/test"

	"go.viam.com/flightcontrol/config"
	"go.viam.com/flightcontrol/flight"
	"go.viam.com/flightcontrol/flightmode"
	"go.viam.com/flightcontrol/logging"
	"go.viam.com/flightcontrol/sim"
	"go.viam.com/flightcontrol/telemetry"
)

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp(logging.NewTestLogger(t))
	app.Writer = &out
	err := app.RunContext(context.Background(), append([]string{"flightcontrol"}, args...))
	return out.String(), err
}

func writeFile(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	test.That(t, os.WriteFile(path, []byte(contents), 0o600), test.ShouldBeNil)
	return path
}

func TestCheckConfig(t *testing.T) {
	path := writeFile(t, "flight.yaml", "loop_hz: 50\nhover_throttle: 1450\n")
	out, err := runApp(t, "--config", path, "check-config")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldContainSubstring, "loop_hz: 50")
	test.That(t, out, test.ShouldContainSubstring, "hover_throttle: 1450")
	test.That(t, out, test.ShouldContainSubstring, "command_timeout_ms: 500")

	path = writeFile(t, "bad.yaml", "loop_hz: 500\n")
	_, err = runApp(t, "--config", path, "check-config")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "loading config")
}

func TestSimulateCommand(t *testing.T) {
	plot := filepath.Join(t.TempDir(), "flight.png")
	out, err := runApp(t, "simulate", "--duration", "4s", "--plot", plot)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldContainSubstring, "final mode altitude_hold")
	test.That(t, out, test.ShouldContainSubstring, "mode_change")

	info, err := os.Stat(plot)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, info.Size(), test.ShouldBeGreaterThan, 0)
}

func TestSimulateBatteryDrop(t *testing.T) {
	cfg := config.Default()
	rec := &sim.Recorder{}
	result, err := simulate(context.Background(), cfg, 35*time.Second, 12*time.Second, rec, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	test.That(t, result.Last.Mode, test.ShouldEqual, flightmode.Land)
	test.That(t, result.Last.Landed, test.ShouldBeTrue)
	test.That(t, result.Last.Safety.Faults, test.ShouldContainSubstring, "battery_critical")
	test.That(t, result.Truth.Altitude, test.ShouldBeLessThan, 0.3)

	var kinds []flight.EventKind
	for _, ev := range result.Events {
		kinds = append(kinds, ev.Kind)
	}
	test.That(t, kinds, test.ShouldContain, flight.EventForcedLand)
	test.That(t, kinds, test.ShouldContain, flight.EventLanded)
	test.That(t, result.Stats.Cycles, test.ShouldEqual, uint64(3500))

	var buf bytes.Buffer
	test.That(t, report(&buf, result), test.ShouldBeNil)
	test.That(t, buf.String(), test.ShouldContainSubstring, "landed true")
	test.That(t, buf.String(), test.ShouldContainSubstring, "forced_land")
}

func TestEventTable(t *testing.T) {
	start := time.Date(2026, 7, 4, 10, 0, 0, 0, time.UTC)
	out := eventTable(start, []flight.Event{
		{Time: start.Add(1500 * time.Millisecond), Kind: flight.EventModeChange, Mode: flightmode.AltitudeHold, Message: "stabilize -> altitude_hold"},
		{Time: start.Add(12 * time.Second), Kind: flight.EventForcedLand, Mode: flightmode.Land, Faults: "battery_critical"},
	})
	lines := strings.Split(out, "\n")
	test.That(t, out, test.ShouldContainSubstring, "KIND")
	test.That(t, out, test.ShouldContainSubstring, "FAULTS")
	var modeRow, landRow string
	for _, line := range lines {
		switch {
		case strings.Contains(line, "mode_change"):
			modeRow = line
		case strings.Contains(line, "forced_land"):
			landRow = line
		}
	}
	test.That(t, modeRow, test.ShouldContainSubstring, "1.50s")
	test.That(t, modeRow, test.ShouldContainSubstring, "altitude_hold")
	test.That(t, landRow, test.ShouldContainSubstring, "12.00s")
	test.That(t, landRow, test.ShouldContainSubstring, "battery_critical")

	var buf bytes.Buffer
	test.That(t, report(&buf, &simulation{Start: start}), test.ShouldBeNil)
	test.That(t, buf.String(), test.ShouldNotContainSubstring, "KIND")
}

func TestMux(t *testing.T) {
	logger := logging.NewTestLogger(t)
	clk := clock.NewMock()
	latest := telemetry.NewLatest()
	reg := prometheus.NewRegistry()
	metrics, err := telemetry.NewMetricsSink(reg)
	test.That(t, err, test.ShouldBeNil)

	v, err := newVehicle(context.Background(), config.Default(), clk, telemetry.Fanout{latest, metrics}, logger)
	test.That(t, err, test.ShouldBeNil)
	sim.Fly(context.Background(), v.loop, clk, 100*time.Millisecond, nil)

	srv := httptest.NewServer(newMux(reg, latest, v.loop))
	defer srv.Close()

	get := func(path string) (*http.Response, string) {
		resp, err := http.Get(srv.URL + path)
		test.That(t, err, test.ShouldBeNil)
		defer resp.Body.Close()
		var body bytes.Buffer
		_, err = body.ReadFrom(resp.Body)
		test.That(t, err, test.ShouldBeNil)
		return resp, body.String()
	}

	resp, body := get("/status")
	test.That(t, resp.StatusCode, test.ShouldEqual, http.StatusOK)
	test.That(t, body, test.ShouldContainSubstring, `"mode":"stabilize"`)

	resp, body = get("/stats")
	test.That(t, resp.StatusCode, test.ShouldEqual, http.StatusOK)
	test.That(t, body, test.ShouldContainSubstring, `"cycles":10`)

	resp, body = get("/metrics")
	test.That(t, resp.StatusCode, test.ShouldEqual, http.StatusOK)
	test.That(t, body, test.ShouldContainSubstring, "flightcontrol_battery_volts")

	resp, _ = get("/rearm")
	test.That(t, resp.StatusCode, test.ShouldEqual, http.StatusMethodNotAllowed)

	// the loop is not running, so the rearm request cannot be served
	resp, err = http.Post(srv.URL+"/rearm", "text/plain", nil)
	test.That(t, err, test.ShouldBeNil)
	defer resp.Body.Close()
	test.That(t, resp.StatusCode, test.ShouldEqual, http.StatusConflict)
}

func TestDemoScriptIsOrdered(t *testing.T) {
	legs := demoScript()
	for i := 1; i < len(legs); i++ {
		test.That(t, legs[i].At, test.ShouldBeGreaterThan, legs[i-1].At)
		test.That(t, legs[i].Command.Mode.Requested, test.ShouldBeTrue)
	}
	test.That(t, legs[len(legs)-1].Command.Mode.Mode, test.ShouldEqual, flightmode.Land)
}
