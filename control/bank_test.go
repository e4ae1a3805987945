package control

import (
	"testing"
	"time"

	"go.viam.com/test"

	"go.viam.com/flightcontrol/logging"
)

func testBankConfig() BankConfig {
	return BankConfig{
		Roll:     Gains{Kp: 4, Ki: 0.5, Kd: 0.2, Bound: 200},
		Pitch:    Gains{Kp: 4, Ki: 0.5, Kd: 0.2, Bound: 200},
		Yaw:      Gains{Kp: 3, Ki: 0.2, Bound: 150},
		Altitude: Gains{Kp: 80, Ki: 10, Kd: 30, Bound: 300},
	}
}

func TestNewBankRejectsInvalidGains(t *testing.T) {
	cfg := testBankConfig()
	cfg.Pitch.Bound = 0
	cfg.Altitude.Kd = -1
	_, err := NewBank(cfg, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "pitch axis")
	test.That(t, err.Error(), test.ShouldContainSubstring, "altitude axis")
	test.That(t, err.Error(), test.ShouldNotContainSubstring, "roll axis")
}

func TestBankInactiveAxesOutputZero(t *testing.T) {
	b, err := NewBank(testBankConfig(), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, b.Active(), test.ShouldEqual, NoAxes)

	for _, a := range Axes {
		test.That(t, b.Calculate(a, 10, 0, 10*time.Millisecond), test.ShouldEqual, 0.0)
	}

	b.SetActive(AttitudeAxes)
	test.That(t, b.Calculate(Roll, 10, 0, 10*time.Millisecond), test.ShouldBeGreaterThan, 0.0)
	test.That(t, b.Calculate(Altitude, 10, 0, 10*time.Millisecond), test.ShouldEqual, 0.0)
	test.That(t, b.PID(Altitude).Integral(), test.ShouldEqual, 0.0)
}

func TestBankSetActiveResetsDeactivatedAxes(t *testing.T) {
	b, err := NewBank(testBankConfig(), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	b.SetActive(AllAxes)
	for i := 0; i < 10; i++ {
		for _, a := range Axes {
			b.Calculate(a, 5, 0, 10*time.Millisecond)
		}
	}
	for _, a := range Axes {
		test.That(t, b.PID(a).Integral(), test.ShouldNotEqual, 0.0)
	}

	b.SetActive(AttitudeAxes)
	test.That(t, b.PID(Altitude).Integral(), test.ShouldEqual, 0.0)
	test.That(t, b.PID(Altitude).Output(), test.ShouldEqual, 0.0)
	test.That(t, b.PID(Roll).Integral(), test.ShouldNotEqual, 0.0)

	b.Reset()
	for _, a := range Axes {
		test.That(t, b.PID(a).Integral(), test.ShouldEqual, 0.0)
	}
	test.That(t, b.Active(), test.ShouldEqual, AttitudeAxes)
}

func TestAxisSet(t *testing.T) {
	s := NewAxisSet(Roll, Altitude)
	test.That(t, s.Has(Roll), test.ShouldBeTrue)
	test.That(t, s.Has(Pitch), test.ShouldBeFalse)
	test.That(t, s.String(), test.ShouldEqual, "[roll,altitude]")
	test.That(t, NewAxisSet(Roll, Pitch, Yaw), test.ShouldEqual, AttitudeAxes)
	test.That(t, AllAxes.String(), test.ShouldEqual, "[roll,pitch,yaw,altitude]")
	test.That(t, NoAxes.String(), test.ShouldEqual, "[]")
}
