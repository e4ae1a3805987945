package logging

import (
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// tree holds every logger derived from one root so levels can be changed by name.
type tree struct {
	mu    sync.Mutex
	nodes []*impl
	rules []levelRule
}

type impl struct {
	*zap.SugaredLogger
	name string
	// base carries the unfiltered core; every logger filters it through its own level.
	base  *zap.Logger
	level zap.AtomicLevel
	tree  *tree
}

func newRoot(base *zap.Logger, name string, level zapcore.Level) *impl {
	root := newImpl(base, name, zap.NewAtomicLevelAt(level), &tree{})
	root.tree.nodes = append(root.tree.nodes, root)
	return root
}

func newImpl(base *zap.Logger, name string, level zap.AtomicLevel, t *tree) *impl {
	filtered := base.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
		return &levelCore{Core: c, level: level}
	}))
	return &impl{SugaredLogger: filtered.Sugar(), name: name, base: base, level: level, tree: t}
}

func (imp *impl) Sublogger(subname string) Logger {
	newName := subname
	if imp.name != "" {
		newName = fmt.Sprintf("%s.%s", imp.name, subname)
	}
	imp.tree.mu.Lock()
	defer imp.tree.mu.Unlock()
	level := imp.level.Level()
	if l, ok := matchRules(imp.tree.rules, newName); ok {
		level = l
	}
	sub := newImpl(imp.base.Named(subname), newName, zap.NewAtomicLevelAt(level), imp.tree)
	imp.tree.nodes = append(imp.tree.nodes, sub)
	return sub
}

// SetLevel changes the level of this logger and every logger below it.
func (imp *impl) SetLevel(level zapcore.Level) {
	imp.tree.mu.Lock()
	defer imp.tree.mu.Unlock()
	for _, n := range imp.tree.nodes {
		if n == imp || imp.isAncestorOf(n) {
			n.level.SetLevel(level)
		}
	}
}

func (imp *impl) isAncestorOf(other *impl) bool {
	if imp.name == "" {
		return true
	}
	return strings.HasPrefix(other.name, imp.name+".")
}

type levelCore struct {
	zapcore.Core
	level zap.AtomicLevel
}

func (c *levelCore) Enabled(l zapcore.Level) bool {
	return c.level.Enabled(l)
}

func (c *levelCore) With(fields []zapcore.Field) zapcore.Core {
	return &levelCore{Core: c.Core.With(fields), level: c.level}
}

func (c *levelCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !c.level.Enabled(ent.Level) {
		return ce
	}
	return c.Core.Check(ent, ce)
}
