package utils

import (
	"math"
	"testing"

	"go.viam.com/test"
)

func TestClamp(t *testing.T) {
	test.That(t, Clamp(5, 0, 10), test.ShouldEqual, 5.0)
	test.That(t, Clamp(-1, 0, 10), test.ShouldEqual, 0.0)
	test.That(t, Clamp(11, 0, 10), test.ShouldEqual, 10.0)
}

func TestWrapDeg180(t *testing.T) {
	for _, tc := range []struct {
		in, out float64
	}{
		{0, 0},
		{180, 180},
		{-180, 180},
		{190, -170},
		{-190, 170},
		{720, 0},
		{540, 180},
	} {
		test.That(t, WrapDeg180(tc.in), test.ShouldAlmostEqual, tc.out)
	}
}

func TestAngles(t *testing.T) {
	test.That(t, DegToRad(180), test.ShouldAlmostEqual, math.Pi)
	test.That(t, RadToDeg(math.Pi/2), test.ShouldAlmostEqual, 90.0)
}

func TestIsFinite(t *testing.T) {
	test.That(t, IsFinite(1, 2, 3), test.ShouldBeTrue)
	test.That(t, IsFinite(1, math.NaN()), test.ShouldBeFalse)
	test.That(t, IsFinite(math.Inf(-1)), test.ShouldBeFalse)
	test.That(t, IsFinite(), test.ShouldBeTrue)
}
