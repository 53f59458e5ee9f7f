package filter

// Test Plan for path filters:
// - PrefixPredicate matches by string prefix only
// - GlobPredicate keeps "*" inside one directory; "**/" patterns match root files
// - Composite ORs its accepts, lets Ignore veto, accepts everything without accepts,
//   and decides the empty path by AcceptMissing alone
// - New wires prefixes, globs, ignore and the missing-path policy from config
// - New rejects patterns that do not compile
// - A scripted predicate answers through the embedded interpreter (skipped with -short)

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvp-joe/typefind/internal/config"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestPrefixPredicate(t *testing.T) {
	t.Parallel()

	p := PrefixPredicate{"/src/project/", "/opt/lib"}
	assert.True(t, p.Accept("/src/project/a.h"))
	assert.True(t, p.Accept("/opt/library/x.h"), "prefixes are plain strings")
	assert.False(t, p.Accept("/usr/include/vector"))
	assert.False(t, PrefixPredicate(nil).Accept("/src/project/a.h"))
}

func TestGlobPredicate(t *testing.T) {
	t.Parallel()

	g, err := NewGlobPredicate([]string{"src/*.h", "**/*.hpp"})
	require.NoError(t, err)

	assert.True(t, g.Accept("src/a.h"))
	assert.False(t, g.Accept("src/sub/a.h"), "* does not cross directories")
	assert.True(t, g.Accept("deep/in/tree/b.hpp"))
	assert.True(t, g.Accept("root.hpp"))
	assert.False(t, g.Accept("root.cpp"))
}

func TestNewGlobPredicate_Invalid(t *testing.T) {
	t.Parallel()

	_, err := NewGlobPredicate([]string{"src/[a-"})
	assert.Error(t, err)
}

func TestComposite(t *testing.T) {
	t.Parallel()

	ignore, err := NewGlobPredicate([]string{"**/third_party/**"})
	require.NoError(t, err)
	globs, err := NewGlobPredicate([]string{"/gen/**"})
	require.NoError(t, err)

	c := &Composite{
		Accepts: []Predicate{PrefixPredicate{"/src/"}, globs},
		Ignore:  ignore,
	}
	assert.True(t, c.Accept("/src/a.h"))
	assert.True(t, c.Accept("/gen/out/b.h"))
	assert.False(t, c.Accept("/src/third_party/zlib/zlib.h"))
	assert.False(t, c.Accept("/usr/include/vector"))
	assert.False(t, c.Accept(""))

	c.AcceptMissing = true
	assert.True(t, c.Accept(""))

	all := &Composite{}
	assert.True(t, all.Accept("/anything.h"))
	assert.False(t, all.Accept(""))
}

func TestNew(t *testing.T) {
	t.Parallel()

	f, err := New(config.FilterConfig{
		AcceptPrefixes:    []string{"/src/"},
		AcceptGlobs:       []string{"**/*.inl"},
		Ignore:            []string{"/src/vendor/**"},
		AcceptMissingPath: true,
	}, quietLogger())
	require.NoError(t, err)
	defer f.Close()

	assert.True(t, f.Accept("/src/a.h"))
	assert.True(t, f.Accept("/elsewhere/x.inl"))
	assert.False(t, f.Accept("/src/vendor/y.h"))
	assert.True(t, f.Accept(""))
	assert.NoError(t, f.Err())
}

func TestNew_InvalidPattern(t *testing.T) {
	t.Parallel()

	_, err := New(config.FilterConfig{Ignore: []string{"[z-"}}, quietLogger())
	assert.Error(t, err)
}

func TestScriptPredicate(t *testing.T) {
	if testing.Short() {
		t.Skip("extracts the embedded Python runtime")
	}
	t.Parallel()

	dir := t.TempDir()
	script := filepath.Join(dir, "accept.py")
	require.NoError(t, os.WriteFile(script, []byte(`
def accept(path):
    if path is None:
        return True
    return path.startswith("/src/") and "vendor" not in path
`), 0644))

	p, err := NewScriptPredicate(script, filepath.Join(dir, "runtime"), quietLogger())
	require.NoError(t, err)

	assert.True(t, p.Accept("/src/a.h"))
	assert.False(t, p.Accept("/src/vendor/b.h"))
	assert.False(t, p.Accept("/usr/include/vector"))
	assert.True(t, p.Accept(""), "a missing path reaches the script as None")
	assert.NoError(t, p.Err())
	assert.NoError(t, p.Close())
}

func TestScriptPredicate_NotAFunction(t *testing.T) {
	if testing.Short() {
		t.Skip("extracts the embedded Python runtime")
	}
	t.Parallel()

	dir := t.TempDir()
	script := filepath.Join(dir, "accept.py")
	require.NoError(t, os.WriteFile(script, []byte("accept = 42\n"), 0644))

	p, err := NewScriptPredicate(script, filepath.Join(dir, "runtime"), quietLogger())
	require.NoError(t, err)

	assert.False(t, p.Accept("/src/a.h"))
	assert.ErrorIs(t, p.Err(), ErrScript)
	assert.False(t, p.Accept("/src/b.h"), "every path is rejected after a failure")
	_ = p.Close()
}
