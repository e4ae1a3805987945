package logging

import (
	"regexp"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap/zapcore"
)

// LevelPattern sets the level of every logger whose name matches Pattern. Names are dotted
// paths such as "flightcontrol.safety"; a "*" section matches any run of characters, so
// "flightcontrol.*" covers every sublogger of the flight controller.
type LevelPattern struct {
	Pattern string `json:"pattern" yaml:"pattern"`
	Level   string `json:"level" yaml:"level"`
}

const (
	// e.g. "pid" or "gps_fix".
	sectionName = `[a-zA-Z0-9]+([_-]*[a-zA-Z0-9]+)*`
	// e.g. "pid" or "*".
	sectionWithWildcard = `(` + sectionName + `|\*)`
)

var patternRegexp = regexp.MustCompile(`^` + sectionWithWildcard + `(\.` + sectionWithWildcard + `)*$`)

// Validate checks the pattern syntax and level name.
func (lp LevelPattern) Validate() error {
	if !patternRegexp.MatchString(lp.Pattern) {
		return errors.Errorf("invalid logger pattern %q", lp.Pattern)
	}
	if _, err := zapcore.ParseLevel(lp.Level); err != nil {
		return errors.Wrapf(err, "pattern %q", lp.Pattern)
	}
	return nil
}

func (lp LevelPattern) matcher() *regexp.Regexp {
	var b strings.Builder
	b.WriteRune('^')
	for _, ch := range lp.Pattern {
		switch ch {
		case '*':
			b.WriteString(`.*`)
		case '.':
			b.WriteString(`\.`)
		default:
			b.WriteRune(ch)
		}
	}
	b.WriteRune('$')
	return regexp.MustCompile(b.String())
}

// ApplyLevels sets every logger in logger's tree to base, then applies patterns in order so
// that later patterns win. Subloggers created afterwards also follow the patterns. Invalid
// patterns are reported and skipped.
func ApplyLevels(logger Logger, base zapcore.Level, patterns []LevelPattern) error {
	root, ok := logger.(*impl)
	if !ok {
		return errors.Errorf("cannot apply levels to logger of type %T", logger)
	}

	var errs error
	rules := make([]levelRule, 0, len(patterns))
	for _, lp := range patterns {
		if err := lp.Validate(); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		level, _ := zapcore.ParseLevel(lp.Level)
		rules = append(rules, levelRule{re: lp.matcher(), level: level})
	}

	root.tree.mu.Lock()
	defer root.tree.mu.Unlock()
	root.tree.rules = rules
	for _, n := range root.tree.nodes {
		level := base
		if l, ok := matchRules(rules, n.name); ok {
			level = l
		}
		n.level.SetLevel(level)
	}
	return errs
}

type levelRule struct {
	re    *regexp.Regexp
	level zapcore.Level
}

// matchRules returns the level of the last rule matching name.
func matchRules(rules []levelRule, name string) (zapcore.Level, bool) {
	var (
		level   zapcore.Level
		matched bool
	)
	for _, r := range rules {
		if r.re.MatchString(name) {
			level, matched = r.level, true
		}
	}
	return level, matched
}

// Names returns the name of every logger in logger's tree.
func Names(logger Logger) []string {
	root, ok := logger.(*impl)
	if !ok {
		return nil
	}
	root.tree.mu.Lock()
	defer root.tree.mu.Unlock()
	names := make([]string, 0, len(root.tree.nodes))
	for _, n := range root.tree.nodes {
		names = append(names, n.name)
	}
	return names
}
