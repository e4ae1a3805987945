package attitude

import (
	"math"
	"testing"

	"go.viam.com/test"
)

func TestAltitudeFilterFirstMeasurement(t *testing.T) {
	f := NewAltitudeFilter(DefaultAltitudeProcessNoise, DefaultAltitudeMeasurementNoise)
	alt, vz := f.Update(12.5, cycle)
	test.That(t, alt, test.ShouldEqual, 12.5)
	test.That(t, vz, test.ShouldEqual, 0.0)
}

func TestAltitudeFilterConverges(t *testing.T) {
	f := NewAltitudeFilter(DefaultAltitudeProcessNoise, DefaultAltitudeMeasurementNoise)
	f.Update(0, cycle)
	var alt float64
	for i := 0; i < 200; i++ {
		alt, _ = f.Update(10, cycle)
	}
	test.That(t, alt, test.ShouldAlmostEqual, 10.0, 1e-3)
}

func TestAltitudeFilterVerticalSpeed(t *testing.T) {
	f := NewAltitudeFilter(DefaultAltitudeProcessNoise, DefaultAltitudeMeasurementNoise)
	var vz float64
	for i := 0; i < 500; i++ {
		// climbing at 1 m/s
		_, vz = f.Update(float64(i)*cycle.Seconds(), cycle)
	}
	test.That(t, vz, test.ShouldAlmostEqual, 1.0, 0.05)
}

func TestAltitudeFilterIgnoresNonFinite(t *testing.T) {
	f := NewAltitudeFilter(DefaultAltitudeProcessNoise, DefaultAltitudeMeasurementNoise)
	f.Update(3, cycle)
	alt, vz := f.Update(math.NaN(), cycle)
	test.That(t, alt, test.ShouldEqual, 3.0)
	test.That(t, vz, test.ShouldEqual, 0.0)

	f.Reset()
	alt, _ = f.Update(7, cycle)
	test.That(t, alt, test.ShouldEqual, 7.0)
}
