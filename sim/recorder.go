package sim

import (
	"sync"

	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"go.viam.com/flightcontrol/flight"
)

// Recorder is a telemetry sink that keeps every snapshot and event of a flight.
type Recorder struct {
	mu        sync.Mutex
	snapshots []flight.Snapshot
	events    []flight.Event
}

// Publish records s.
func (r *Recorder) Publish(s flight.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots = append(r.snapshots, s)
}

// Event records ev.
func (r *Recorder) Event(ev flight.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// Snapshots returns a copy of the recorded snapshots.
func (r *Recorder) Snapshots() []flight.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]flight.Snapshot(nil), r.snapshots...)
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []flight.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]flight.Event(nil), r.events...)
}

type series struct {
	name  string
	value func(flight.Snapshot) float64
}

var plotted = []series{
	{"roll (deg)", func(s flight.Snapshot) float64 { return s.State.Roll }},
	{"pitch (deg)", func(s flight.Snapshot) float64 { return s.State.Pitch }},
	{"altitude (m)", func(s flight.Snapshot) float64 { return s.State.Altitude }},
	{"altitude target (m)", func(s flight.Snapshot) float64 { return s.Targets.Altitude }},
	{"mode", func(s flight.Snapshot) float64 { return float64(s.Mode) }},
}

// Plot renders the recorded attitude, altitude and mode over time to path. The image format
// follows the file extension.
func (r *Recorder) Plot(path string) error {
	snaps := r.Snapshots()
	if len(snaps) < 2 {
		return errors.New("need at least two snapshots to plot")
	}

	p := plot.New()
	p.Title.Text = "flight " + snaps[0].FlightID
	p.X.Label.Text = "time (s)"
	p.Legend.Top = true

	start := snaps[0].Time
	for i, s := range plotted {
		xys := make(plotter.XYs, len(snaps))
		for j, snap := range snaps {
			xys[j].X = snap.Time.Sub(start).Seconds()
			xys[j].Y = s.value(snap)
		}
		line, err := plotter.NewLine(xys)
		if err != nil {
			return errors.Wrapf(err, "plotting %s", s.name)
		}
		line.Color = plotutil.Color(i)
		p.Add(line)
		p.Legend.Add(s.name, line)
	}
	return errors.Wrapf(p.Save(12*vg.Inch, 5*vg.Inch, path), "saving plot to %q", path)
}
