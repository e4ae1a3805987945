package mixer

import (
	"math"
	"math/rand"
	"testing"

	"go.viam.com/test"
)

func newTestMixer(t *testing.T) *Mixer {
	t.Helper()
	m, err := New(DefaultConfig())
	test.That(t, err, test.ShouldBeNil)
	return m
}

func TestMixZeroCorrections(t *testing.T) {
	m := newTestMixer(t)
	cmd := m.Mix(1400, 0, 0, 0)
	test.That(t, cmd, test.ShouldResemble, MotorCommand{1400, 1400, 1400, 1400})
	test.That(t, m.Last(), test.ShouldResemble, cmd)
}

func TestMixSigns(t *testing.T) {
	m := newTestMixer(t)

	cmd := m.Mix(1500, 50, 0, 0)
	test.That(t, cmd, test.ShouldResemble, MotorCommand{1450, 1550, 1450, 1550})

	cmd = m.Mix(1500, 0, 50, 0)
	test.That(t, cmd, test.ShouldResemble, MotorCommand{1550, 1550, 1450, 1450})

	cmd = m.Mix(1500, 0, 0, 50)
	test.That(t, cmd, test.ShouldResemble, MotorCommand{1450, 1550, 1550, 1450})

	cmd = m.Mix(1500, 10, 20, 30)
	test.That(t, cmd[0], test.ShouldAlmostEqual, 1500-10+20-30)
	test.That(t, cmd[1], test.ShouldAlmostEqual, 1500+10+20+30)
	test.That(t, cmd[2], test.ShouldAlmostEqual, 1500-10-20+30)
	test.That(t, cmd[3], test.ShouldAlmostEqual, 1500+10-20-30)
}

func TestMixPositiveRollScenario(t *testing.T) {
	m := newTestMixer(t)
	// positive roll correction with no pitch or yaw correction
	throttle := 1500.
	cmd := m.Mix(throttle, 40, 0, 0)
	test.That(t, cmd[0], test.ShouldEqual, cmd[2])
	test.That(t, cmd[0], test.ShouldBeLessThan, throttle)
	test.That(t, throttle, test.ShouldBeLessThan, cmd[1])
	test.That(t, cmd[3], test.ShouldEqual, cmd[1])
}

func TestMixClamps(t *testing.T) {
	m := newTestMixer(t)
	cmd := m.Mix(1950, 200, 0, 0)
	test.That(t, cmd, test.ShouldResemble, MotorCommand{1750, 2000, 1750, 2000})

	cmd = m.Mix(1000, 0, -300, 0)
	test.That(t, cmd, test.ShouldResemble, MotorCommand{1000, 1000, 1300, 1300})

	//nolint:gosec
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 2000; i++ {
		cmd := m.Mix(r.Float64()*3000, r.Float64()*2000-1000, r.Float64()*2000-1000, r.Float64()*2000-1000)
		for _, v := range cmd {
			test.That(t, v, test.ShouldBeBetweenOrEqual, DefaultMinThrust, DefaultMaxThrust)
		}
	}
}

func TestMixNonFiniteCuts(t *testing.T) {
	m := newTestMixer(t)
	test.That(t, m.Mix(math.NaN(), 0, 0, 0), test.ShouldResemble, m.Cut())
	test.That(t, m.Mix(1500, math.Inf(1), 0, 0), test.ShouldResemble, m.Cut())
}

func TestCut(t *testing.T) {
	m, err := New(Config{MinThrust: 1100, MaxThrust: 1900})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, m.Cut(), test.ShouldResemble, MotorCommand{1100, 1100, 1100, 1100})
	test.That(t, m.Config().MaxThrust, test.ShouldEqual, 1900.0)
}

func TestConfigValidate(t *testing.T) {
	_, err := New(Config{MinThrust: 2000, MaxThrust: 1000})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "must be below")

	_, err = New(Config{MinThrust: math.NaN(), MaxThrust: 1000})
	test.That(t, err, test.ShouldNotBeNil)
}
