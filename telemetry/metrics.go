package telemetry

import (
	"strconv"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"go.viam.com/flightcontrol/flight"
	"go.viam.com/flightcontrol/flightmode"
)

const namespace = "flightcontrol"

// MetricsSink exports the latest published snapshot and event counts as Prometheus metrics.
type MetricsSink struct {
	attitude  *prometheus.GaugeVec
	altitude  prometheus.Gauge
	vspeed    prometheus.Gauge
	battery   prometheus.Gauge
	motors    *prometheus.GaugeVec
	mode      *prometheus.GaugeVec
	forceLand prometheus.Gauge
	motorCut  prometheus.Gauge
	events    *prometheus.CounterVec
}

// NewMetricsSink registers the flight metrics with reg.
func NewMetricsSink(reg prometheus.Registerer) (*MetricsSink, error) {
	ms := &MetricsSink{
		attitude: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "attitude_degrees", Help: "Estimated attitude angle.",
		}, []string{"axis"}),
		altitude: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "altitude_meters", Help: "Filtered altitude.",
		}),
		vspeed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "vertical_speed_mps", Help: "Filtered vertical speed.",
		}),
		battery: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "battery_volts", Help: "Battery pack voltage.",
		}),
		motors: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "motor_output", Help: "Commanded motor output.",
		}, []string{"motor"}),
		mode: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "mode", Help: "1 for the active flight mode, 0 otherwise.",
		}, []string{"mode"}),
		forceLand: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "force_land", Help: "1 while a forced landing is latched.",
		}),
		motorCut: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "motor_cut", Help: "1 while a motor cut is latched.",
		}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "events_total", Help: "Flight events by kind.",
		}, []string{"kind"}),
	}
	for _, c := range []prometheus.Collector{
		ms.attitude, ms.altitude, ms.vspeed, ms.battery, ms.motors,
		ms.mode, ms.forceLand, ms.motorCut, ms.events,
	} {
		if err := reg.Register(c); err != nil {
			return nil, errors.Wrap(err, "registering flight metrics")
		}
	}
	return ms, nil
}

// Publish updates the gauges from s.
func (ms *MetricsSink) Publish(s flight.Snapshot) {
	ms.attitude.WithLabelValues("roll").Set(s.State.Roll)
	ms.attitude.WithLabelValues("pitch").Set(s.State.Pitch)
	ms.attitude.WithLabelValues("yaw").Set(s.State.Yaw)
	ms.altitude.Set(s.State.Altitude)
	ms.vspeed.Set(s.State.VerticalSpeed)
	ms.battery.Set(s.State.BatteryVoltage)
	for i, out := range s.Motors {
		ms.motors.WithLabelValues(strconv.Itoa(i + 1)).Set(out)
	}
	for _, m := range flightmode.Modes {
		ms.mode.WithLabelValues(m.String()).Set(boolGauge(m == s.Mode))
	}
	ms.forceLand.Set(boolGauge(s.Safety.ForceLand))
	ms.motorCut.Set(boolGauge(s.Safety.MotorCut))
}

// Event counts ev.
func (ms *MetricsSink) Event(ev flight.Event) {
	ms.events.WithLabelValues(string(ev.Kind)).Inc()
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
