package filter

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/kluctl/go-embed-python/python"
	"github.com/sirupsen/logrus"
)

// ErrScript means the accept script could not be started or stopped
// answering.
var ErrScript = errors.New("filter script failed")

// driver loads the user's script and answers one JSON path per line with
// "1" or "0". A missing path arrives as None.
const driver = `import json
import runpy
import sys

ns = runpy.run_path(sys.argv[1])
accept = ns.get("accept")
if not callable(accept):
    sys.stderr.write("'accept' is not a function (%s)\n" % type(accept).__name__)
    sys.exit(2)

for line in sys.stdin:
    path = json.loads(line)
    try:
        ok = bool(accept(path))
    except Exception as e:
        sys.stderr.write("accept(%r) raised %s\n" % (path, e))
        ok = False
    sys.stdout.write("1\n" if ok else "0\n")
    sys.stdout.flush()
`

// ScriptPredicate asks a Python function accept(path) through the
// embedded interpreter. The interpreter runs for the predicate's lifetime.
type ScriptPredicate struct {
	mu     sync.Mutex
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
	stderr *io.PipeWriter
	tmpDir string
	log    *logrus.Logger
	err    error
}

// NewScriptPredicate starts the interpreter on script. runtimeDir is where
// the embedded Python is extracted; empty uses the user cache directory.
func NewScriptPredicate(script, runtimeDir string, log *logrus.Logger) (*ScriptPredicate, error) {
	if runtimeDir == "" {
		runtimeDir = defaultRuntimeDir()
	}
	script, err := filepath.Abs(script)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrScript, err)
	}

	// Extraction is cached: only files that changed are written again.
	ep, err := python.NewEmbeddedPythonWithTmpDir(runtimeDir, true)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create embedded Python: %v", ErrScript, err)
	}

	tmpDir, err := os.MkdirTemp("", "typefind-filter-*")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrScript, err)
	}
	driverPath := filepath.Join(tmpDir, "accept_driver.py")
	if err := os.WriteFile(driverPath, []byte(driver), 0644); err != nil {
		os.RemoveAll(tmpDir)
		return nil, fmt.Errorf("%w: failed to write driver: %v", ErrScript, err)
	}

	cmd, err := ep.PythonCmd(driverPath, script)
	if err != nil {
		os.RemoveAll(tmpDir)
		return nil, fmt.Errorf("%w: failed to create Python command: %v", ErrScript, err)
	}

	s := &ScriptPredicate{cmd: cmd, tmpDir: tmpDir, log: log}
	s.stderr = log.WithField("script", script).WriterLevel(logrus.WarnLevel)
	cmd.Stderr = s.stderr

	if s.stdin, err = cmd.StdinPipe(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("%w: %v", ErrScript, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		s.cleanup()
		return nil, fmt.Errorf("%w: %v", ErrScript, err)
	}
	s.stdout = bufio.NewReader(stdout)

	if err := cmd.Start(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("%w: failed to start Python: %v", ErrScript, err)
	}
	return s, nil
}

func defaultRuntimeDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "typefind", "python")
}

// Accept asks the script about path. After the script fails every path is
// rejected; Err reports the failure.
func (s *ScriptPredicate) Accept(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return false
	}

	var arg any
	if path != "" {
		arg = path
	}
	line, err := json.Marshal(arg)
	if err != nil {
		return s.fail(path, err)
	}
	if _, err := s.stdin.Write(append(line, '\n')); err != nil {
		return s.fail(path, err)
	}
	answer, err := s.stdout.ReadString('\n')
	if err != nil {
		return s.fail(path, err)
	}
	return strings.TrimSpace(answer) == "1"
}

func (s *ScriptPredicate) fail(path string, err error) bool {
	s.err = fmt.Errorf("%w: asking about %q: %v", ErrScript, path, err)
	s.log.WithError(err).WithField("path", path).Error("filter script stopped answering")
	return false
}

// Err returns the first failure.
func (s *ScriptPredicate) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close ends the script and waits for the interpreter to exit.
func (s *ScriptPredicate) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stdin.Close()
	err := s.cmd.Wait()
	s.cleanup()
	if err != nil && s.err == nil {
		return fmt.Errorf("%w: %v", ErrScript, err)
	}
	return nil
}

func (s *ScriptPredicate) cleanup() {
	if s.stderr != nil {
		s.stderr.Close()
	}
	os.RemoveAll(s.tmpDir)
}
