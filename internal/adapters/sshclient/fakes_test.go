package sshclient

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Adembc/lazyscp/internal/adapters/command"
	"github.com/Adembc/lazyscp/internal/core/domain"
	"go.uber.org/zap/zaptest"
	gossh "golang.org/x/crypto/ssh"
)

// fakeRunner records every invocation and answers through respond.
type fakeRunner struct {
	mu      sync.Mutex
	calls   [][]string
	respond func(name string, args []string) (command.Result, error)
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) (command.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, append([]string{name}, args...))
	f.mu.Unlock()
	if f.respond == nil {
		return command.Result{}, nil
	}
	return f.respond(name, args)
}

// invocations returns the recorded calls joined with spaces, minus the
// -V availability checks.
func (f *fakeRunner) invocations() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.calls {
		if len(c) == 2 && c[1] == "-V" {
			continue
		}
		out = append(out, strings.Join(c, " "))
	}
	return out
}

func exitStatus(code int, stderr string) (command.Result, error) {
	return command.Result{Stderr: stderr, ExitCode: code}, &domain.RemoteCommandError{
		Command:  "fake",
		ExitCode: code,
		Output:   stderr,
		Err:      errors.New("exit status"),
	}
}

// failCopies makes every scp copy fail while availability checks pass.
func failCopies(name string, args []string) (command.Result, error) {
	if name == scpProgram && !(len(args) == 1 && args[0] == "-V") {
		return exitStatus(1, "scp: connection refused")
	}
	return command.Result{}, nil
}

type recordingMetrics struct {
	mu         sync.Mutex
	transports []string
	modes      []domain.AuthMode
	failures   []string
}

func (m *recordingMetrics) TaskStarted(domain.Direction)         {}
func (m *recordingMetrics) TaskFinished(domain.Direction, error) {}

func (m *recordingMetrics) TransportWon(transport string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transports = append(m.transports, transport)
}

func (m *recordingMetrics) ConnectionEstablished(mode domain.AuthMode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.modes = append(m.modes, mode)
}

func (m *recordingMetrics) ConnectionFailed(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, kind)
}

// memFS is an in-memory RemoteFS.
type memFS struct {
	mu        sync.Mutex
	files     map[string][]byte
	dirs      map[string]bool
	createErr error
}

func newMemFS() *memFS {
	return &memFS{files: map[string][]byte{}, dirs: map[string]bool{"/": true}}
}

type memFile struct {
	*bytes.Buffer
	onClose func([]byte)
}

func (f *memFile) Close() error {
	if f.onClose != nil {
		f.onClose(f.Bytes())
	}
	return nil
}

type memInfo struct {
	name  string
	size  int64
	isDir bool
}

func (i memInfo) Name() string       { return i.name }
func (i memInfo) Size() int64        { return i.size }
func (i memInfo) ModTime() time.Time { return time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC) }
func (i memInfo) IsDir() bool        { return i.isDir }
func (i memInfo) Sys() any           { return nil }

func (i memInfo) Mode() os.FileMode {
	if i.isDir {
		return os.ModeDir | 0o755
	}
	return 0o644
}

func (m *memFS) put(p string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[p] = data
	for d := path.Dir(p); d != "/" && d != "."; d = path.Dir(d) {
		m.dirs[d] = true
	}
}

func (m *memFS) get(p string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[p]
	return data, ok
}

func (m *memFS) Open(p string) (RemoteFile, error) {
	data, ok := m.get(p)
	if !ok {
		return nil, os.ErrNotExist
	}
	return &memFile{Buffer: bytes.NewBuffer(append([]byte(nil), data...))}, nil
}

func (m *memFS) Create(p string) (RemoteFile, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	return &memFile{Buffer: &bytes.Buffer{}, onClose: func(b []byte) {
		m.put(p, append([]byte(nil), b...))
	}}, nil
}

func (m *memFS) Stat(p string) (os.FileInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if data, ok := m.files[p]; ok {
		return memInfo{name: path.Base(p), size: int64(len(data))}, nil
	}
	if m.dirs[p] {
		return memInfo{name: path.Base(p), isDir: true}, nil
	}
	return nil, os.ErrNotExist
}

func (m *memFS) MkdirAll(p string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for d := p; d != "/" && d != "."; d = path.Dir(d) {
		m.dirs[d] = true
	}
	return nil
}

func (m *memFS) ReadDir(dir string) ([]os.FileInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.dirs[dir] {
		return nil, os.ErrNotExist
	}
	var infos []os.FileInfo
	for p, data := range m.files {
		if path.Dir(p) == dir {
			infos = append(infos, memInfo{name: path.Base(p), size: int64(len(data))})
		}
	}
	for d := range m.dirs {
		if d != dir && path.Dir(d) == dir {
			infos = append(infos, memInfo{name: path.Base(d), isDir: true})
		}
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name() < infos[j].Name() })
	return infos, nil
}

func (m *memFS) Close() error { return nil }

// recordingSink keeps every fraction it receives.
type recordingSink struct {
	mu     sync.Mutex
	values []float64
}

func (s *recordingSink) Progress(f float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = append(s.values, f)
}

func (s *recordingSink) all() []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]float64(nil), s.values...)
}

var testCred = domain.ServerCredential{
	Name:     "web",
	Host:     "files.example.com",
	Port:     2222,
	User:     "deploy",
	AuthKind: domain.AuthKindPassword,
	Password: "secret",
}

func newTestExecutor(t *testing.T, runner command.Runner, metrics *recordingMetrics) *Executor {
	t.Helper()
	e := NewExecutor(zaptest.NewLogger(t).Sugar(), runner, metrics, true)
	e.chunkSize = 4
	return e
}

func nativeTestHandle(t *testing.T, runner command.Runner, fs RemoteFS, metrics *recordingMetrics) *Handle {
	t.Helper()
	h := newNativeHandle(testCred, nil, zaptest.NewLogger(t).Sugar(), runner, newTestExecutor(t, runner, metrics))
	h.openFS = func(*gossh.Client) (RemoteFS, error) { return fs, nil }
	return h
}

func fallbackTestHandle(t *testing.T, runner command.Runner, metrics *recordingMetrics) *Handle {
	t.Helper()
	return newFallbackHandle(testCred, zaptest.NewLogger(t).Sugar(), runner, newTestExecutor(t, runner, metrics))
}
