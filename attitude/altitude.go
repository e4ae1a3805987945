package attitude

import (
	"time"

	"go.viam.com/flightcontrol/utils"
)

// AltitudeFilter is a scalar Kalman filter over barometric altitude. It also derives vertical
// speed from successive filtered altitudes.
type AltitudeFilter struct {
	q, r float64 // process and measurement noise

	x, p        float64
	vz          float64
	initialized bool
}

// Default altitude filter noise terms.
const (
	DefaultAltitudeProcessNoise     = 0.1
	DefaultAltitudeMeasurementNoise = 1.0
)

// NewAltitudeFilter returns a filter with the given process and measurement noise.
func NewAltitudeFilter(processNoise, measurementNoise float64) *AltitudeFilter {
	return &AltitudeFilter{q: processNoise, r: measurementNoise}
}

// Update feeds a new altitude measurement taken dt after the previous one and returns the
// filtered altitude and vertical speed. Non-finite measurements are ignored.
func (f *AltitudeFilter) Update(measured float64, dt time.Duration) (altitude, verticalSpeed float64) {
	if !utils.IsFinite(measured) {
		return f.x, f.vz
	}
	if !f.initialized {
		f.x = measured
		f.p = 1
		f.initialized = true
		return f.x, f.vz
	}

	prev := f.x
	f.p += f.q
	k := f.p / (f.p + f.r)
	f.x += k * (measured - f.x)
	f.p *= 1 - k

	if dt > 0 {
		f.vz = (f.x - prev) / dt.Seconds()
	}
	return f.x, f.vz
}

// Altitude returns the current filtered altitude.
func (f *AltitudeFilter) Altitude() float64 {
	return f.x
}

// Reset forgets all history; the next measurement is taken as-is.
func (f *AltitudeFilter) Reset() {
	f.x, f.p, f.vz = 0, 0, 0
	f.initialized = false
}
