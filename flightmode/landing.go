package flightmode

import (
	"math"
	"time"

	"github.com/pkg/errors"

	"go.viam.com/flightcontrol/utils"
)

// Landing defaults.
const (
	DefaultDescentRate    = 0.5  // m/s
	DefaultLandedAltitude = 0.15 // m
)

// LandingConfig shapes the descent.
type LandingConfig struct {
	DescentRate    float64
	LandedAltitude float64
}

// DefaultLandingConfig returns the standard descent profile.
func DefaultLandingConfig() LandingConfig {
	return LandingConfig{DescentRate: DefaultDescentRate, LandedAltitude: DefaultLandedAltitude}
}

// Validate checks the profile.
func (cfg LandingConfig) Validate() error {
	if !utils.IsFinite(cfg.DescentRate) || cfg.DescentRate <= 0 {
		return errors.Errorf("descent rate must be positive, got %v", cfg.DescentRate)
	}
	if !utils.IsFinite(cfg.LandedAltitude) || cfg.LandedAltitude < 0 {
		return errors.Errorf("landed altitude must not be negative, got %v", cfg.LandedAltitude)
	}
	return nil
}

// LandingProfile produces a monotonically decreasing altitude setpoint at a bounded rate and
// latches touchdown once the measured altitude reaches the landed threshold.
type LandingProfile struct {
	cfg      LandingConfig
	active   bool
	setpoint float64
	landed   bool
}

// NewLandingProfile returns an inactive profile.
func NewLandingProfile(cfg LandingConfig) (*LandingProfile, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &LandingProfile{cfg: cfg}, nil
}

// Begin starts a descent from the current altitude. A non-finite altitude starts from zero.
func (lp *LandingProfile) Begin(altitude float64) {
	if !utils.IsFinite(altitude) {
		altitude = 0
	}
	lp.active = true
	lp.landed = false
	lp.setpoint = math.Max(altitude, 0)
}

// Step advances the descent by dt and returns the altitude setpoint and whether touchdown
// has been reached. The setpoint never increases.
func (lp *LandingProfile) Step(measured float64, dt time.Duration) (float64, bool) {
	if !lp.active {
		lp.Begin(measured)
	}
	if dt > 0 {
		lp.setpoint = math.Max(lp.setpoint-lp.cfg.DescentRate*dt.Seconds(), 0)
	}
	if !lp.landed && utils.IsFinite(measured) && measured <= lp.cfg.LandedAltitude {
		lp.landed = true
	}
	return lp.setpoint, lp.landed
}

// Active reports whether a descent is in progress or complete.
func (lp *LandingProfile) Active() bool {
	return lp.active
}

// Landed reports whether touchdown was reached.
func (lp *LandingProfile) Landed() bool {
	return lp.landed
}

// Setpoint returns the current altitude setpoint.
func (lp *LandingProfile) Setpoint() float64 {
	return lp.setpoint
}

// Reset discards the descent.
func (lp *LandingProfile) Reset() {
	*lp = LandingProfile{cfg: lp.cfg}
}
