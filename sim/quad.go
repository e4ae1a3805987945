// Package sim simulates a small X quad and its operator so the flight controller can be flown
// without hardware. The airframe model is deliberately simple: rigid-body rotation driven by
// motor differentials, vertical thrust from the mean motor output and linear drag.
package sim

import (
	"context"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat/distuv"

	"go.viam.com/flightcontrol/attitude"
	"go.viam.com/flightcontrol/flight"
	"go.viam.com/flightcontrol/mixer"
	"go.viam.com/flightcontrol/utils"
)

// maxStep bounds the physics integration step.
const maxStep = time.Millisecond

// Sensor names a simulated sensor for fault injection.
type Sensor int

// Simulated sensors.
const (
	SensorIMU Sensor = iota
	SensorAltimeter
	SensorBattery
	SensorGPS
	numSensors
)

// Params describe the simulated airframe.
type Params struct {
	// HoverThrottle is the mean motor output whose thrust balances the vehicle's weight.
	HoverThrottle float64
	MinThrust     float64
	MaxThrust     float64
	// TorqueGain is the angular acceleration in deg/s^2 per motor unit of roll or pitch
	// differential. YawGain is the same for the yaw differential.
	TorqueGain   float64
	YawGain      float64
	AngularDrag  float64 // 1/s
	VerticalDrag float64 // 1/s

	GyroNoise  float64 // deg/s
	GyroBias   r3.Vector
	AccelNoise float64 // m/s^2
	BaroNoise  float64 // m

	BatteryStart float64 // V
	BatteryDrain float64 // V/s
	// BatterySag is the voltage drop at full thrust.
	BatterySag float64

	Satellites int
	Seed       uint64
}

// DefaultParams returns an airframe that flies well with the controller's default gains.
func DefaultParams() Params {
	return Params{
		HoverThrottle: flight.DefaultHoverThrottle,
		MinThrust:     mixer.DefaultMinThrust,
		MaxThrust:     mixer.DefaultMaxThrust,
		TorqueGain:    2,
		YawGain:       0.5,
		AngularDrag:   1,
		VerticalDrag:  0.5,
		GyroNoise:     0.2,
		GyroBias:      r3.Vector{X: 0.6, Y: -0.4, Z: 0.25},
		AccelNoise:    0.05,
		BaroNoise:     0.02,
		BatteryStart:  12.6,
		BatterySag:    0.3,
		Satellites:    11,
		Seed:          1,
	}
}

// Validate checks that the airframe can fly.
func (p Params) Validate() error {
	if p.MinThrust >= p.MaxThrust || p.HoverThrottle <= p.MinThrust || p.HoverThrottle >= p.MaxThrust {
		return errors.Errorf("hover throttle %v must be inside the motor range [%v, %v]",
			p.HoverThrottle, p.MinThrust, p.MaxThrust)
	}
	if p.TorqueGain <= 0 || p.YawGain <= 0 {
		return errors.New("torque gains must be positive")
	}
	if p.AngularDrag < 0 || p.VerticalDrag < 0 || p.GyroNoise < 0 || p.AccelNoise < 0 || p.BaroNoise < 0 {
		return errors.New("drag and noise terms must not be negative")
	}
	if p.BatteryStart <= 0 || p.BatteryDrain < 0 || p.BatterySag < 0 {
		return errors.New("battery start voltage must be positive and drain and sag not negative")
	}
	return nil
}

// Truth is the simulated vehicle's actual state.
type Truth struct {
	Roll, Pitch, Yaw             float64 // deg
	RollRate, PitchRate, YawRate float64 // deg/s
	Altitude                     float64 // m
	VerticalSpeed                float64 // m/s
	Voltage                      float64
	Motors                       mixer.MotorCommand
}

// Quad is a simulated airframe. It implements the IMU, Altimeter, Battery, GPS and Actuators
// collaborators and advances its physics to the clock's current time on every call, holding
// the last motor command in between.
type Quad struct {
	mu  sync.Mutex
	p   Params
	clk clock.Clock

	gyroNoise, accelNoise, baroNoise distuv.Normal

	last    time.Time
	truth   Truth
	drained float64
	gpsLock bool
	faults  [numSensors]error
}

// NewQuad returns a quad resting on the ground with its motors at minimum thrust.
func NewQuad(p Params, clk clock.Clock) (*Quad, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if clk == nil {
		clk = clock.New()
	}
	normal := func(sigma float64, stream uint64) distuv.Normal {
		return distuv.Normal{Mu: 0, Sigma: sigma, Src: rand.NewPCG(p.Seed, stream)}
	}
	q := &Quad{
		p:          p,
		clk:        clk,
		gyroNoise:  normal(p.GyroNoise, 1),
		accelNoise: normal(p.AccelNoise, 2),
		baroNoise:  normal(p.BaroNoise, 3),
		last:       clk.Now(),
		gpsLock:    true,
	}
	for i := range q.truth.Motors {
		q.truth.Motors[i] = p.MinThrust
	}
	q.truth.Voltage = p.BatteryStart
	return q, nil
}

// ReadIMU returns the gravity vector and body rates of the current attitude.
func (q *Quad) ReadIMU(ctx context.Context) (attitude.Sample, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	now := q.advance()
	if err := q.faults[SensorIMU]; err != nil {
		return attitude.Sample{}, err
	}
	r := utils.DegToRad(q.truth.Roll)
	p := utils.DegToRad(q.truth.Pitch)
	g := attitude.StandardGravity
	return attitude.Sample{
		Accel: r3.Vector{
			X: -g*math.Sin(p) + q.accelNoise.Rand(),
			Y: g*math.Sin(r)*math.Cos(p) + q.accelNoise.Rand(),
			Z: g*math.Cos(r)*math.Cos(p) + q.accelNoise.Rand(),
		},
		Gyro: r3.Vector{
			X: q.truth.RollRate + q.p.GyroBias.X + q.gyroNoise.Rand(),
			Y: q.truth.PitchRate + q.p.GyroBias.Y + q.gyroNoise.Rand(),
			Z: q.truth.YawRate + q.p.GyroBias.Z + q.gyroNoise.Rand(),
		},
		Time: now,
	}, nil
}

// Altitude returns the barometric altitude.
func (q *Quad) Altitude(ctx context.Context) (float64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.advance()
	if err := q.faults[SensorAltimeter]; err != nil {
		return 0, err
	}
	return q.truth.Altitude + q.baroNoise.Rand(), nil
}

// Voltage returns the pack voltage under the current load.
func (q *Quad) Voltage(ctx context.Context) (float64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.advance()
	if err := q.faults[SensorBattery]; err != nil {
		return 0, err
	}
	return q.truth.Voltage, nil
}

// Fix returns the GPS status.
func (q *Quad) Fix(ctx context.Context) (flight.GPSFix, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if err := q.faults[SensorGPS]; err != nil {
		return flight.GPSFix{}, err
	}
	if !q.gpsLock {
		return flight.GPSFix{Satellites: 3}, nil
	}
	return flight.GPSFix{Lock: true, Satellites: q.p.Satellites}, nil
}

// SetMotors applies cmd from now on.
func (q *Quad) SetMotors(ctx context.Context, cmd mixer.MotorCommand) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.advance()
	for i, m := range cmd {
		if !utils.IsFinite(m) {
			return errors.Errorf("motor %d command is not finite", i+1)
		}
		q.truth.Motors[i] = utils.Clamp(m, q.p.MinThrust, q.p.MaxThrust)
	}
	return nil
}

// SetFault makes reads of s fail with err. A nil err clears the fault.
func (q *Quad) SetFault(s Sensor, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.faults[s] = err
}

// SetGPSLock sets whether the receiver reports a lock.
func (q *Quad) SetGPSLock(lock bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.gpsLock = lock
}

// DrainBattery removes volts from the pack immediately.
func (q *Quad) DrainBattery(volts float64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.advance()
	q.drained += volts
	q.updateVoltage()
}

// Disturb adds an angular rate impulse, as from a gust.
func (q *Quad) Disturb(rollRate, pitchRate, yawRate float64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.advance()
	q.truth.RollRate += rollRate
	q.truth.PitchRate += pitchRate
	q.truth.YawRate += yawRate
}

// Truth returns the actual vehicle state at the clock's current time.
func (q *Quad) Truth() Truth {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.advance()
	return q.truth
}

// advance integrates the physics up to now and returns now. q.mu must be held.
func (q *Quad) advance() time.Time {
	now := q.clk.Now()
	elapsed := now.Sub(q.last)
	if elapsed <= 0 {
		return now
	}
	q.last = now
	for elapsed > 0 {
		h := elapsed
		if h > maxStep {
			h = maxStep
		}
		q.step(h.Seconds())
		elapsed -= h
	}
	return now
}

func (q *Quad) step(h float64) {
	t := &q.truth
	m := t.Motors
	g := attitude.StandardGravity

	mean := (m[0]+m[1]+m[2]+m[3])/4 - q.p.MinThrust
	lift := g * mean / (q.p.HoverThrottle - q.p.MinThrust) *
		math.Cos(utils.DegToRad(t.Roll)) * math.Cos(utils.DegToRad(t.Pitch))

	if t.Altitude <= 0 && lift <= g {
		// resting on the skids
		t.Roll, t.Pitch = 0, 0
		t.RollRate, t.PitchRate, t.YawRate = 0, 0, 0
		t.Altitude, t.VerticalSpeed = 0, 0
	} else {
		rollAcc := q.p.TorqueGain*((m[1]+m[3])-(m[0]+m[2])) - q.p.AngularDrag*t.RollRate
		pitchAcc := q.p.TorqueGain*((m[0]+m[1])-(m[2]+m[3])) - q.p.AngularDrag*t.PitchRate
		yawAcc := q.p.YawGain*((m[1]+m[2])-(m[0]+m[3])) - q.p.AngularDrag*t.YawRate
		t.RollRate += rollAcc * h
		t.PitchRate += pitchAcc * h
		t.YawRate += yawAcc * h
		t.Roll = utils.Clamp(t.Roll+t.RollRate*h, -90, 90)
		t.Pitch = utils.Clamp(t.Pitch+t.PitchRate*h, -90, 90)
		t.Yaw = utils.WrapDeg180(t.Yaw + t.YawRate*h)

		az := lift - g - q.p.VerticalDrag*t.VerticalSpeed
		t.VerticalSpeed += az * h
		t.Altitude += t.VerticalSpeed * h
		if t.Altitude < 0 {
			t.Altitude, t.VerticalSpeed = 0, 0
		}
	}

	q.drained += q.p.BatteryDrain * h
	q.updateVoltage()
}

func (q *Quad) updateVoltage() {
	load := 0.
	for _, m := range q.truth.Motors {
		load += (m - q.p.MinThrust) / (q.p.MaxThrust - q.p.MinThrust)
	}
	q.truth.Voltage = q.p.BatteryStart - q.drained - q.p.BatterySag*load/mixer.NumMotors
}
