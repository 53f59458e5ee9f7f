package filter

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
	"github.com/sirupsen/logrus"

	"github.com/mvp-joe/typefind/internal/config"
)

// Predicate decides whether declarations from a file are indexed. An empty
// path stands for a declaration whose file is unknown.
type Predicate interface {
	Accept(path string) bool
}

// PrefixPredicate accepts paths that start with any of its prefixes.
type PrefixPredicate []string

func (p PrefixPredicate) Accept(path string) bool {
	for _, prefix := range p {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// compiledPattern holds both the pattern string and compiled glob
type compiledPattern struct {
	pattern string
	glob    glob.Glob
}

// GlobPredicate accepts paths matching any of its patterns. Patterns use
// '/' as the separator, so "*" stays within one directory and "**" spans
// any number.
type GlobPredicate struct {
	patterns []compiledPattern
}

// NewGlobPredicate compiles patterns.
func NewGlobPredicate(patterns []string) (*GlobPredicate, error) {
	g := &GlobPredicate{}
	for _, pattern := range patterns {
		compiled, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
		}
		g.patterns = append(g.patterns, compiledPattern{pattern: pattern, glob: compiled})
	}
	return g, nil
}

func (g *GlobPredicate) Accept(path string) bool {
	path = filepath.ToSlash(path)
	for _, cp := range g.patterns {
		if cp.glob.Match(path) {
			return true
		}
	}

	// A relative path in the root has no slash; "**/*.h" should still match
	// "widget.h" the way users expect.
	if !strings.Contains(path, "/") {
		for _, cp := range g.patterns {
			if !strings.HasPrefix(cp.pattern, "**/") {
				continue
			}
			simplified, err := glob.Compile(strings.TrimPrefix(cp.pattern, "**/"), '/')
			if err == nil && simplified.Match(path) {
				return true
			}
		}
	}
	return false
}

// Composite accepts a path when any of Accepts does and Ignore does not.
// With no Accepts every path is accepted. The empty path is decided by
// AcceptMissing alone.
type Composite struct {
	Accepts       []Predicate
	Ignore        Predicate
	AcceptMissing bool
}

func (c *Composite) Accept(path string) bool {
	if path == "" {
		return c.AcceptMissing
	}
	if c.Ignore != nil && c.Ignore.Accept(path) {
		return false
	}
	if len(c.Accepts) == 0 {
		return true
	}
	for _, p := range c.Accepts {
		if p.Accept(path) {
			return true
		}
	}
	return false
}

// Filter is the predicate a run uses. It owns the script interpreter when
// one is configured, so it must be closed.
type Filter struct {
	pred   Predicate
	script *ScriptPredicate
	log    *logrus.Logger
}

// New builds the predicate cfg describes. A script replaces the prefix and
// glob settings and also decides missing paths.
func New(cfg config.FilterConfig, log *logrus.Logger) (*Filter, error) {
	f := &Filter{log: log}

	if cfg.Script != "" {
		script, err := NewScriptPredicate(cfg.Script, "", log)
		if err != nil {
			return nil, err
		}
		f.pred = script
		f.script = script
		log.WithField("script", cfg.Script).Debug("using scripted filter")
		return f, nil
	}

	c := &Composite{AcceptMissing: cfg.AcceptMissingPath}
	if len(cfg.AcceptPrefixes) > 0 {
		c.Accepts = append(c.Accepts, PrefixPredicate(cfg.AcceptPrefixes))
	}
	if len(cfg.AcceptGlobs) > 0 {
		g, err := NewGlobPredicate(cfg.AcceptGlobs)
		if err != nil {
			return nil, err
		}
		c.Accepts = append(c.Accepts, g)
	}
	if len(cfg.Ignore) > 0 {
		g, err := NewGlobPredicate(cfg.Ignore)
		if err != nil {
			return nil, err
		}
		c.Ignore = g
	}
	f.pred = c

	log.WithFields(logrus.Fields{
		"prefixes": len(cfg.AcceptPrefixes),
		"globs":    len(cfg.AcceptGlobs),
		"ignore":   len(cfg.Ignore),
	}).Debug("using path filter")
	return f, nil
}

func (f *Filter) Accept(path string) bool {
	return f.pred.Accept(path)
}

// Err returns the first script failure, if any. Paths asked about after a
// failure were rejected.
func (f *Filter) Err() error {
	if f.script == nil {
		return nil
	}
	return f.script.Err()
}

// Close stops the script interpreter, if one is running.
func (f *Filter) Close() error {
	if f.script == nil {
		return nil
	}
	return f.script.Close()
}
