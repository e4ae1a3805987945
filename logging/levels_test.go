package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
	"go.viam.com/test"
)

func TestLevelPatternValidate(t *testing.T) {
	for _, p := range []string{"flightcontrol", "flightcontrol.safety", "*.pid", "*", "a-b.c_d.*"} {
		test.That(t, LevelPattern{Pattern: p, Level: "debug"}.Validate(), test.ShouldBeNil)
	}
	for _, p := range []string{"", ".", "a..b", "a.", "a b", "a/b"} {
		test.That(t, LevelPattern{Pattern: p, Level: "debug"}.Validate(), test.ShouldNotBeNil)
	}
	err := LevelPattern{Pattern: "a", Level: "loud"}.Validate()
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "loud")
}

func TestApplyLevels(t *testing.T) {
	root, logs := NewObservedTestLogger(t)
	flight := root.Sublogger("flight")
	safety := flight.Sublogger("safety")
	pid := flight.Sublogger("pid")
	telemetry := root.Sublogger("telemetry")

	test.That(t, Names(root), test.ShouldResemble, []string{"", "flight", "flight.safety", "flight.pid", "telemetry"})

	err := ApplyLevels(root, zapcore.InfoLevel, []LevelPattern{
		{Pattern: "flight.*", Level: "warn"},
		{Pattern: "*.pid", Level: "debug"},
		{Pattern: "bad pattern", Level: "debug"},
	})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "bad pattern")

	safety.Info("hidden")
	safety.Warn("safety warn")
	pid.Debug("pid debug")
	telemetry.Debug("hidden")
	telemetry.Info("telemetry info")
	flight.Info("flight info")

	var messages []string
	for _, e := range logs.All() {
		messages = append(messages, e.Message)
	}
	test.That(t, messages, test.ShouldResemble, []string{"safety warn", "pid debug", "telemetry info", "flight info"})

	late := flight.Sublogger("mixer")
	late.Info("hidden")
	late.Warn("late warn")
	test.That(t, logs.FilterMessage("late warn").Len(), test.ShouldEqual, 1)

	test.That(t, ApplyLevels(root, zapcore.ErrorLevel, nil), test.ShouldBeNil)
	pid.Warn("hidden")
	test.That(t, logs.Len(), test.ShouldEqual, 5)
}
