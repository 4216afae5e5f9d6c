package services

import (
	"context"
	"sync"

	"github.com/Adembc/lazyscp/internal/core/domain"
	"github.com/Adembc/lazyscp/internal/core/ports"
)

type nopMetrics struct{}

func (nopMetrics) TaskStarted(domain.Direction)          {}
func (nopMetrics) TaskFinished(domain.Direction, error)  {}
func (nopMetrics) TransportWon(string)                   {}
func (nopMetrics) ConnectionEstablished(domain.AuthMode) {}
func (nopMetrics) ConnectionFailed(string)               {}

// mockConnection records calls; copy behaviour comes from copyFn.
type mockConnection struct {
	ports.Connection

	mu     sync.Mutex
	mode   domain.AuthMode
	calls  []string
	closed bool
	copyFn func(sink domain.ProgressSink) error

	entries []domain.RemoteEntry
}

func (m *mockConnection) record(call string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
}

func (m *mockConnection) recorded() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *mockConnection) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *mockConnection) copy(call string, sink domain.ProgressSink) error {
	m.record(call)
	if m.copyFn == nil {
		sink.Progress(0)
		sink.Progress(1)
		return nil
	}
	return m.copyFn(sink)
}

func (m *mockConnection) Mode() domain.AuthMode { return m.mode }

func (m *mockConnection) Upload(_ context.Context, local, remote string, sink domain.ProgressSink) error {
	return m.copy("upload "+local+" "+remote, sink)
}

func (m *mockConnection) Download(_ context.Context, remote, local string, sink domain.ProgressSink) error {
	return m.copy("download "+remote+" "+local, sink)
}

func (m *mockConnection) UploadDir(_ context.Context, local, remote string, sink domain.ProgressSink) error {
	return m.copy("upload-dir "+local+" "+remote, sink)
}

func (m *mockConnection) DownloadDir(_ context.Context, remote, local string, sink domain.ProgressSink) error {
	return m.copy("download-dir "+remote+" "+local, sink)
}

func (m *mockConnection) List(_ context.Context, dir string) ([]domain.RemoteEntry, error) {
	m.record("list " + dir)
	return m.entries, nil
}

func (m *mockConnection) Mkdir(_ context.Context, dir string) error {
	m.record("mkdir " + dir)
	return nil
}

func (m *mockConnection) Remove(_ context.Context, p string, isDir bool) error {
	if isDir {
		m.record("rm -r " + p)
	} else {
		m.record("rm " + p)
	}
	return nil
}

func (m *mockConnection) Rename(_ context.Context, oldPath, newPath string) error {
	m.record("mv " + oldPath + " " + newPath)
	return nil
}

func (m *mockConnection) Exec(_ context.Context, cmd string) (string, error) {
	m.record("exec " + cmd)
	return "ok\n", nil
}

func (m *mockConnection) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// mockEstablisher hands out connections produced by next.
type mockEstablisher struct {
	mu      sync.Mutex
	connect int
	next    func(attempt int) (*mockConnection, error)
}

func (m *mockEstablisher) attempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connect
}

func (m *mockEstablisher) Connect(ctx context.Context, cred domain.ServerCredential) (ports.Connection, error) {
	conn, _, err := m.ConnectWithLog(ctx, cred)
	return conn, err
}

func (m *mockEstablisher) ConnectWithLog(_ context.Context, cred domain.ServerCredential) (ports.Connection, []string, error) {
	m.mu.Lock()
	m.connect++
	attempt := m.connect
	m.mu.Unlock()

	transcript := []string{"connecting to " + cred.Address()}
	conn, err := m.next(attempt)
	if err != nil {
		return nil, append(transcript, "failed"), err
	}
	return conn, append(transcript, "authenticated"), nil
}
