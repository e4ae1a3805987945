// Package attitude fuses accelerometer and gyroscope samples into roll, pitch and yaw estimates
// using a complementary filter.
//
// Roll and pitch blend the gyro-integrated angle (trusted short term) with the angle implied by
// the gravity vector (trusted long term). Yaw has no absolute reference here: it is pure gyro
// integration and drifts. Correcting it needs a magnetometer or GPS heading, which is outside
// this package.
package attitude

import (
	"math"
	"time"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/flightcontrol/logging"
	"go.viam.com/flightcontrol/utils"
)

// StandardGravity in m/s^2.
const StandardGravity = 9.80665

// Sample is a single IMU reading.
type Sample struct {
	Accel r3.Vector // m/s^2, body frame
	Gyro  r3.Vector // deg/s; X is roll rate, Y pitch rate, Z yaw rate
	// Time is the driver's capture time. A zero Time disables staleness detection.
	Time time.Time
}

// Attitude is the estimator output for one cycle.
type Attitude struct {
	Roll, Pitch, Yaw             float64 // degrees
	RollRate, PitchRate, YawRate float64 // deg/s
	// Valid is false when the sample was rejected and the previous estimate is being held.
	Valid bool
	// Integrated is true when the filter advanced this cycle.
	Integrated bool
}

// Config holds the estimator tuning.
type Config struct {
	Alpha       float64
	MaxDt       time.Duration
	MinAccel    float64 // m/s^2
	MaxAccel    float64 // m/s^2
	MaxGyroRate float64 // deg/s
}

// DefaultConfig returns the default estimator tuning.
func DefaultConfig() Config {
	return Config{
		Alpha:       0.98,
		MaxDt:       100 * time.Millisecond,
		MinAccel:    0.2 * StandardGravity,
		MaxAccel:    4 * StandardGravity,
		MaxGyroRate: 2000,
	}
}

// Validate checks that the tuning is usable.
func (cfg Config) Validate() error {
	if cfg.Alpha < 0 || cfg.Alpha > 1 {
		return errors.Errorf("alpha must be within [0, 1], got %v", cfg.Alpha)
	}
	if cfg.MaxDt <= 0 {
		return errors.New("max_dt must be positive")
	}
	if cfg.MinAccel < 0 || cfg.MaxAccel <= cfg.MinAccel {
		return errors.Errorf("invalid accelerometer range [%v, %v]", cfg.MinAccel, cfg.MaxAccel)
	}
	if cfg.MaxGyroRate <= 0 {
		return errors.New("max_gyro_dps must be positive")
	}
	return nil
}

// Estimator is a complementary filter attitude estimator. It is not safe for concurrent use.
type Estimator struct {
	cfg    Config
	logger logging.Logger

	att                Attitude
	bias               r3.Vector
	lastSample         time.Time
	consecutiveInvalid int
}

// NewEstimator returns an estimator starting from a level, zero-yaw attitude.
func NewEstimator(cfg Config, logger logging.Logger) (*Estimator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Estimator{cfg: cfg, logger: logger}, nil
}

// AccelAngles returns the roll and pitch in degrees implied by a gravity vector.
func AccelAngles(accel r3.Vector) (roll, pitch float64) {
	roll = utils.RadToDeg(math.Atan2(accel.Y, accel.Z))
	pitch = utils.RadToDeg(math.Atan2(-accel.X, math.Hypot(accel.Y, accel.Z)))
	return roll, pitch
}

// Update advances the estimate with a new sample taken dt after the previous call. Rejected
// samples and out of range dt values leave the angle estimate untouched.
func (e *Estimator) Update(s Sample, dt time.Duration) Attitude {
	if err := e.check(s); err != nil {
		return e.Reject(err)
	}
	e.consecutiveInvalid = 0
	if !s.Time.IsZero() {
		e.lastSample = s.Time
	}

	gyro := s.Gyro.Sub(e.bias)
	e.att.RollRate = gyro.X
	e.att.PitchRate = gyro.Y
	e.att.YawRate = gyro.Z
	e.att.Valid = true

	if dt <= 0 || dt > e.cfg.MaxDt {
		if dt > e.cfg.MaxDt {
			e.logger.Debugw("skipping integration after stall", "dt", dt)
		}
		e.att.Integrated = false
		return e.att
	}

	dts := dt.Seconds()
	accelRoll, accelPitch := AccelAngles(s.Accel)
	a := e.cfg.Alpha
	e.att.Roll = a*(e.att.Roll+gyro.X*dts) + (1-a)*accelRoll
	e.att.Pitch = a*(e.att.Pitch+gyro.Y*dts) + (1-a)*accelPitch
	e.att.Yaw = utils.WrapDeg180(e.att.Yaw + gyro.Z*dts)
	e.att.Integrated = true
	return e.att
}

// Reject counts a cycle without a usable sample and returns the held estimate.
func (e *Estimator) Reject(reason error) Attitude {
	e.consecutiveInvalid++
	e.logger.Debugw("rejected IMU sample", "reason", reason, "consecutive", e.consecutiveInvalid)
	held := e.att
	held.Valid = false
	held.Integrated = false
	return held
}

func (e *Estimator) check(s Sample) error {
	if !utils.IsFinite(s.Accel.X, s.Accel.Y, s.Accel.Z, s.Gyro.X, s.Gyro.Y, s.Gyro.Z) {
		return errors.New("non-finite sample")
	}
	if n := s.Accel.Norm(); n < e.cfg.MinAccel || n > e.cfg.MaxAccel {
		return errors.Errorf("accelerometer magnitude %.2f out of range", n)
	}
	if math.Abs(s.Gyro.X) > e.cfg.MaxGyroRate ||
		math.Abs(s.Gyro.Y) > e.cfg.MaxGyroRate ||
		math.Abs(s.Gyro.Z) > e.cfg.MaxGyroRate {
		return errors.New("gyro rate out of range")
	}
	if !s.Time.IsZero() && !e.lastSample.IsZero() && !s.Time.After(e.lastSample) {
		return errors.New("stale sample")
	}
	return nil
}

// Calibrate sets the gyro bias to the mean of samples taken while the airframe is still.
func (e *Estimator) Calibrate(gyroSamples []r3.Vector) error {
	if len(gyroSamples) == 0 {
		return errors.New("no gyro samples to calibrate with")
	}
	var sum r3.Vector
	for _, g := range gyroSamples {
		if !utils.IsFinite(g.X, g.Y, g.Z) {
			return errors.New("non-finite gyro sample during calibration")
		}
		sum = sum.Add(g)
	}
	e.bias = sum.Mul(1 / float64(len(gyroSamples)))
	e.logger.Infow("gyro calibrated", "bias_x", e.bias.X, "bias_y", e.bias.Y, "bias_z", e.bias.Z)
	return nil
}

// GyroBias returns the bias subtracted from every gyro sample.
func (e *Estimator) GyroBias() r3.Vector {
	return e.bias
}

// ConsecutiveInvalid returns how many samples in a row have been rejected.
func (e *Estimator) ConsecutiveInvalid() int {
	return e.consecutiveInvalid
}

// Attitude returns the current estimate.
func (e *Estimator) Attitude() Attitude {
	return e.att
}

// Reset returns the estimator to a level attitude. The gyro bias is kept.
func (e *Estimator) Reset() {
	e.att = Attitude{}
	e.lastSample = time.Time{}
	e.consecutiveInvalid = 0
}
