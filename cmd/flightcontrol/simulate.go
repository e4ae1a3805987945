package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"go.viam.com/flightcontrol/config"
	"go.viam.com/flightcontrol/flight"
	"go.viam.com/flightcontrol/logging"
	"go.viam.com/flightcontrol/sim"
	"go.viam.com/flightcontrol/telemetry"
)

// criticalMargin is how far below the critical voltage a battery drop lands.
const criticalMargin = 0.2

// simulation is the outcome of an offline flight.
type simulation struct {
	Last    flight.Output
	Events  []flight.Event
	Stats   flight.Stats
	Truth   sim.Truth
	Start   time.Time
	Elapsed time.Duration
}

// simulate flies the demo script on a mock clock. A positive dropAt drains the battery below
// the critical voltage at that flight time.
func simulate(
	ctx context.Context,
	cfg *config.Config,
	d, dropAt time.Duration,
	rec *sim.Recorder,
	logger logging.Logger,
) (*simulation, error) {
	clk := clock.NewMock()
	start := clk.Now()
	emitter, err := telemetry.NewEmitter(cfg.TelemetryHz, logger.Sublogger("telemetry"), telemetry.NewLogSink(logger.Sublogger("telemetry")))
	if err != nil {
		return nil, err
	}
	v, err := newVehicle(ctx, cfg, clk, telemetry.Fanout{emitter, rec}, logger)
	if err != nil {
		return nil, err
	}

	var out flight.Output
	if dropAt > 0 && dropAt < d {
		sim.Fly(ctx, v.loop, clk, dropAt, nil)
		volts := v.quad.Truth().Voltage
		v.quad.DrainBattery(volts - (cfg.Safety.CriticalVoltage - criticalMargin))
		logger.Infow("battery dropped", "from", volts, "at", dropAt)
		out = sim.Fly(ctx, v.loop, clk, d-dropAt, nil)
	} else {
		out = sim.Fly(ctx, v.loop, clk, d, nil)
	}

	return &simulation{
		Last:    out,
		Events:  rec.Events(),
		Stats:   v.loop.Stats(),
		Truth:   v.quad.Truth(),
		Start:   start,
		Elapsed: d,
	}, nil
}

func simulateCommand(ctx context.Context, c *cli.Context, cfg *config.Config, logger logging.Logger) error {
	d := c.Duration(flagDuration)
	if d <= 0 {
		d = time.Duration(cfg.Sim.DurationSec * float64(time.Second))
	}
	rec := &sim.Recorder{}
	result, err := simulate(ctx, cfg, d, c.Duration(flagDropAt), rec, logger)
	if err != nil {
		return err
	}
	if path := c.String(flagPlot); path != "" {
		if err := rec.Plot(path); err != nil {
			return err
		}
		logger.Infow("wrote flight plot", "path", path)
	}
	return report(c.App.Writer, result)
}

func report(w io.Writer, s *simulation) error {
	if _, err := fmt.Fprintf(w, "flight %s: %v simulated, %d cycles, final mode %s, landed %t\n",
		s.Last.FlightID, s.Elapsed, s.Stats.Cycles, s.Last.Mode, s.Last.Landed); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "altitude %.2f m, attitude %.1f/%.1f deg, battery %.2f V, faults %s\n",
		s.Truth.Altitude, s.Truth.Roll, s.Truth.Pitch, s.Truth.Voltage, s.Last.Safety.Faults); err != nil {
		return err
	}
	if len(s.Events) == 0 {
		return nil
	}
	_, err := fmt.Fprintln(w, eventTable(s.Start, s.Events))
	return err
}

// eventTable renders events with their offset from start.
func eventTable(start time.Time, events []flight.Event) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"#", "Time", "Kind", "Mode", "Faults", "Message"})
	for i, ev := range events {
		t.AppendRow(table.Row{
			i + 1,
			fmt.Sprintf("%.2fs", ev.Time.Sub(start).Seconds()),
			ev.Kind,
			ev.Mode,
			ev.Faults,
			ev.Message,
		})
	}
	return t.Render()
}

func printConfig(w io.Writer, cfg *config.Config) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return err
	}
	return enc.Close()
}
