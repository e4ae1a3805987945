package attitude

import (
	"math"
	"testing"
	"time"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/flightcontrol/logging"
	"go.viam.com/flightcontrol/utils"
)

const cycle = 10 * time.Millisecond

func gravityAt(rollDeg, pitchDeg float64) r3.Vector {
	r, p := utils.DegToRad(rollDeg), utils.DegToRad(pitchDeg)
	return r3.Vector{
		X: -StandardGravity * math.Sin(p),
		Y: StandardGravity * math.Sin(r) * math.Cos(p),
		Z: StandardGravity * math.Cos(r) * math.Cos(p),
	}
}

func newTestEstimator(t *testing.T) *Estimator {
	t.Helper()
	e, err := NewEstimator(DefaultConfig(), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	return e
}

func TestAccelAngles(t *testing.T) {
	roll, pitch := AccelAngles(r3.Vector{Z: StandardGravity})
	test.That(t, roll, test.ShouldAlmostEqual, 0.0)
	test.That(t, pitch, test.ShouldAlmostEqual, 0.0)

	roll, pitch = AccelAngles(gravityAt(25, -10))
	test.That(t, roll, test.ShouldAlmostEqual, 25.0, 1e-9)
	test.That(t, pitch, test.ShouldAlmostEqual, -10.0, 1e-9)
}

func TestConvergesToAccelerometerAngle(t *testing.T) {
	e := newTestEstimator(t)
	sample := Sample{Accel: gravityAt(20, -15)}

	var att Attitude
	for i := 0; i < 600; i++ {
		att = e.Update(sample, cycle)
	}
	test.That(t, att.Valid, test.ShouldBeTrue)
	test.That(t, att.Integrated, test.ShouldBeTrue)
	test.That(t, att.Roll, test.ShouldAlmostEqual, 20.0, 0.01)
	test.That(t, att.Pitch, test.ShouldAlmostEqual, -15.0, 0.01)
	test.That(t, att.Yaw, test.ShouldEqual, 0.0)
}

func TestConvergenceIsMonotonic(t *testing.T) {
	e := newTestEstimator(t)
	sample := Sample{Accel: gravityAt(30, 0)}

	prevErr := 30.0
	for i := 0; i < 200; i++ {
		att := e.Update(sample, cycle)
		errNow := math.Abs(30 - att.Roll)
		test.That(t, errNow, test.ShouldBeLessThan, prevErr)
		prevErr = errNow
	}
}

func TestGyroDominatesShortTerm(t *testing.T) {
	e := newTestEstimator(t)
	// level accelerometer, 100 deg/s roll rate for one cycle
	att := e.Update(Sample{Accel: gravityAt(0, 0), Gyro: r3.Vector{X: 100}}, cycle)
	test.That(t, att.Roll, test.ShouldAlmostEqual, 0.98*1.0, 1e-9)
	test.That(t, att.RollRate, test.ShouldEqual, 100.0)
}

func TestSkipsIntegrationOnBadDt(t *testing.T) {
	e := newTestEstimator(t)
	level := Sample{Accel: gravityAt(10, 0)}
	for i := 0; i < 50; i++ {
		e.Update(level, cycle)
	}
	before := e.Attitude()

	tilted := Sample{Accel: gravityAt(45, 30), Gyro: r3.Vector{X: 50, Y: 50, Z: 50}}
	for _, dt := range []time.Duration{0, -cycle, 150 * time.Millisecond} {
		att := e.Update(tilted, dt)
		test.That(t, att.Valid, test.ShouldBeTrue)
		test.That(t, att.Integrated, test.ShouldBeFalse)
		test.That(t, att.Roll, test.ShouldEqual, before.Roll)
		test.That(t, att.Pitch, test.ShouldEqual, before.Pitch)
		test.That(t, att.Yaw, test.ShouldEqual, before.Yaw)
		test.That(t, att.YawRate, test.ShouldEqual, 50.0)
	}
}

func TestYawIsGyroOnly(t *testing.T) {
	e := newTestEstimator(t)
	sample := Sample{Accel: gravityAt(0, 0), Gyro: r3.Vector{Z: 10}}
	var att Attitude
	for i := 0; i < 100; i++ {
		att = e.Update(sample, cycle)
	}
	test.That(t, att.Yaw, test.ShouldAlmostEqual, 10.0, 1e-6)

	// wraps into (-180, 180]
	sample.Gyro.Z = 200
	for i := 0; i < 100; i++ {
		att = e.Update(sample, cycle)
	}
	test.That(t, att.Yaw, test.ShouldAlmostEqual, -150.0, 1e-6)
}

func TestRejectsInvalidSamples(t *testing.T) {
	e := newTestEstimator(t)
	good := Sample{Accel: gravityAt(5, 5)}
	for i := 0; i < 20; i++ {
		e.Update(good, cycle)
	}
	held := e.Attitude()

	for i, bad := range []Sample{
		{Accel: r3.Vector{X: math.NaN(), Z: StandardGravity}},
		{Accel: r3.Vector{Z: math.Inf(1)}},
		{Accel: r3.Vector{}},
		{Accel: r3.Vector{Z: 10 * StandardGravity}},
		{Accel: gravityAt(0, 0), Gyro: r3.Vector{Y: 5000}},
	} {
		att := e.Update(bad, cycle)
		test.That(t, att.Valid, test.ShouldBeFalse)
		test.That(t, att.Integrated, test.ShouldBeFalse)
		test.That(t, att.Roll, test.ShouldEqual, held.Roll)
		test.That(t, att.Pitch, test.ShouldEqual, held.Pitch)
		test.That(t, e.ConsecutiveInvalid(), test.ShouldEqual, i+1)
	}

	att := e.Update(good, cycle)
	test.That(t, att.Valid, test.ShouldBeTrue)
	test.That(t, e.ConsecutiveInvalid(), test.ShouldEqual, 0)
}

func TestRejectsStaleTimestamps(t *testing.T) {
	e := newTestEstimator(t)
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	att := e.Update(Sample{Accel: gravityAt(0, 0), Time: start}, cycle)
	test.That(t, att.Valid, test.ShouldBeTrue)

	att = e.Update(Sample{Accel: gravityAt(0, 0), Time: start}, cycle)
	test.That(t, att.Valid, test.ShouldBeFalse)
	att = e.Update(Sample{Accel: gravityAt(0, 0), Time: start.Add(-time.Millisecond)}, cycle)
	test.That(t, att.Valid, test.ShouldBeFalse)
	test.That(t, e.ConsecutiveInvalid(), test.ShouldEqual, 2)

	att = e.Update(Sample{Accel: gravityAt(0, 0), Time: start.Add(cycle)}, cycle)
	test.That(t, att.Valid, test.ShouldBeTrue)
}

func TestCalibrate(t *testing.T) {
	e := newTestEstimator(t)
	test.That(t, e.Calibrate(nil), test.ShouldNotBeNil)
	test.That(t, e.Calibrate([]r3.Vector{{X: math.NaN()}}), test.ShouldNotBeNil)

	err := e.Calibrate([]r3.Vector{{X: 1, Y: -2, Z: 0.5}, {X: 3, Y: -2, Z: 1.5}})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, e.GyroBias(), test.ShouldResemble, r3.Vector{X: 2, Y: -2, Z: 1})

	att := e.Update(Sample{Accel: gravityAt(0, 0), Gyro: r3.Vector{X: 2, Y: -2, Z: 1}}, cycle)
	test.That(t, att.RollRate, test.ShouldEqual, 0.0)
	test.That(t, att.PitchRate, test.ShouldEqual, 0.0)
	test.That(t, att.YawRate, test.ShouldEqual, 0.0)
	test.That(t, att.Yaw, test.ShouldEqual, 0.0)
}

func TestConfigValidate(t *testing.T) {
	test.That(t, DefaultConfig().Validate(), test.ShouldBeNil)

	cfg := DefaultConfig()
	cfg.Alpha = 1.5
	_, err := NewEstimator(cfg, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "alpha")

	cfg = DefaultConfig()
	cfg.MaxDt = 0
	test.That(t, cfg.Validate(), test.ShouldNotBeNil)

	cfg = DefaultConfig()
	cfg.MaxAccel = cfg.MinAccel
	test.That(t, cfg.Validate(), test.ShouldNotBeNil)
}

func TestReject(t *testing.T) {
	e := newTestEstimator(t)
	for i := 0; i < 30; i++ {
		e.Update(Sample{Accel: gravityAt(8, 0)}, cycle)
	}
	held := e.Attitude()
	att := e.Reject(errors.New("read timeout"))
	test.That(t, att.Valid, test.ShouldBeFalse)
	test.That(t, att.Roll, test.ShouldEqual, held.Roll)
	test.That(t, e.ConsecutiveInvalid(), test.ShouldEqual, 1)
}
