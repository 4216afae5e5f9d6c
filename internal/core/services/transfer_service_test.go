package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Adembc/lazyscp/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var testCred = domain.ServerCredential{Name: "web", Host: "files.example.com", User: "deploy", AuthKind: domain.AuthKindKey}

func newTestTransferService(t *testing.T, est *mockEstablisher) *TransferService {
	t.Helper()
	svc := NewTransferService(zaptest.NewLogger(t).Sugar(), est, nopMetrics{})
	svc.newRunID = func() string { return "run-1" }
	return svc
}

func TestTransferServiceUploadCompletes(t *testing.T) {
	conn := &mockConnection{copyFn: func(sink domain.ProgressSink) error {
		sink.Progress(0.5)
		sink.Progress(1)
		return nil
	}}
	est := &mockEstablisher{next: func(int) (*mockConnection, error) { return conn, nil }}
	svc := newTestTransferService(t, est)

	local := filepath.Join(t.TempDir(), "report.pdf")
	require.NoError(t, os.WriteFile(local, []byte("0123456789"), 0o644))

	id, err := svc.Upload(testCred, local, "/srv/report.pdf")
	require.NoError(t, err)
	svc.Wait()

	task, ok := svc.Queue().GetTask(id)
	require.True(t, ok)
	assert.Equal(t, domain.Completed(), task.Status)
	assert.Equal(t, 1.0, task.Progress)
	assert.Equal(t, uint64(10), task.Size)
	assert.Equal(t, "report.pdf", task.Name)
	assert.False(t, task.StartedAt.IsZero())
	assert.Equal(t, []string{"upload " + local + " /srv/report.pdf"}, conn.recorded())
	assert.True(t, conn.isClosed())
}

func TestTransferServiceUploadDirectory(t *testing.T) {
	conn := &mockConnection{}
	est := &mockEstablisher{next: func(int) (*mockConnection, error) { return conn, nil }}
	svc := newTestTransferService(t, est)

	dir := t.TempDir()
	_, err := svc.Upload(testCred, dir, "/srv/site")
	require.NoError(t, err)
	svc.Wait()

	assert.Equal(t, []string{"upload-dir " + dir + " /srv/site"}, conn.recorded())
}

func TestTransferServiceUploadMissingLocal(t *testing.T) {
	est := &mockEstablisher{next: func(int) (*mockConnection, error) { return &mockConnection{}, nil }}
	svc := newTestTransferService(t, est)

	_, err := svc.Upload(testCred, filepath.Join(t.TempDir(), "missing"), "/srv/x")
	var ioErr *domain.LocalIoError
	require.True(t, errors.As(err, &ioErr))
	assert.Zero(t, svc.Queue().Len())
	assert.Zero(t, est.attempts())
}

func TestTransferServiceDownload(t *testing.T) {
	conn := &mockConnection{}
	est := &mockEstablisher{next: func(int) (*mockConnection, error) { return conn, nil }}
	svc := newTestTransferService(t, est)

	fileID := svc.Download(testCred, "/srv/logs/app.log", "/tmp/app.log", false, 2048)
	dirID := svc.Download(testCred, "/srv/logs", "/tmp/logs", true, 0)
	svc.Wait()

	assert.ElementsMatch(t, []string{
		"download /srv/logs/app.log /tmp/app.log",
		"download-dir /srv/logs /tmp/logs",
	}, conn.recorded())

	task, _ := svc.Queue().GetTask(fileID)
	assert.Equal(t, "app.log", task.Name)
	assert.Equal(t, domain.StateCompleted, task.Status.State)
	task, _ = svc.Queue().GetTask(dirID)
	assert.Equal(t, "logs", task.Name)
}

func TestTransferServiceConnectFailure(t *testing.T) {
	est := &mockEstablisher{next: func(int) (*mockConnection, error) {
		return nil, &domain.ConnectError{Addr: "files.example.com:22", Err: errors.New("connection refused")}
	}}
	svc := newTestTransferService(t, est)

	id := svc.Download(testCred, "/srv/a", "/tmp/a", false, 1)
	svc.Wait()

	task, _ := svc.Queue().GetTask(id)
	assert.Equal(t, domain.StateFailed, task.Status.State)
	assert.True(t, strings.HasPrefix(task.Status.Reason, "connect: "), task.Status.Reason)
	assert.Contains(t, task.Status.Reason, "connection refused")
}

func TestTransferServiceRetryUsesFreshConnection(t *testing.T) {
	var conns []*mockConnection
	est := &mockEstablisher{next: func(attempt int) (*mockConnection, error) {
		conn := &mockConnection{}
		if attempt == 1 {
			conn.copyFn = func(sink domain.ProgressSink) error {
				sink.Progress(0.6)
				return errors.New("upload /tmp/a: scp and sftp both failed")
			}
		}
		conns = append(conns, conn)
		return conn, nil
	}}
	svc := newTestTransferService(t, est)

	id := svc.Download(testCred, "/srv/a", "/tmp/a", false, 1)
	svc.Wait()

	task, _ := svc.Queue().GetTask(id)
	require.Equal(t, domain.StateFailed, task.Status.State)
	assert.Equal(t, 0.6, task.Progress)

	require.True(t, svc.Retry(id))
	svc.Wait()

	task, _ = svc.Queue().GetTask(id)
	assert.Equal(t, domain.Completed(), task.Status)
	assert.Equal(t, 2, est.attempts())
	require.Len(t, conns, 2)
	assert.NotSame(t, conns[0], conns[1])
	assert.True(t, conns[0].isClosed())

	assert.False(t, svc.Retry(id), "completed tasks cannot be retried")
	assert.False(t, svc.Retry(1000))
}

func TestTransferServiceClearCompleted(t *testing.T) {
	est := &mockEstablisher{next: func(attempt int) (*mockConnection, error) {
		if attempt == 2 {
			return nil, errors.New("boom")
		}
		return &mockConnection{}, nil
	}}
	svc := newTestTransferService(t, est)

	svc.Download(testCred, "/srv/a", "/tmp/a", false, 1)
	svc.Wait()
	failed := svc.Download(testCred, "/srv/b", "/tmp/b", false, 1)
	svc.Wait()

	svc.ClearCompleted()
	snap := svc.Queue().Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, failed, snap[0].ID)
	assert.Len(t, svc.jobs, 1)
}

func TestTransferServiceClearCompletedKeepsConcurrentJobs(t *testing.T) {
	est := &mockEstablisher{next: func(int) (*mockConnection, error) {
		return nil, errors.New("unreachable")
	}}
	svc := newTestTransferService(t, est)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			svc.ClearCompleted()
		}
	}()
	var ids []int
	for i := 0; i < 50; i++ {
		ids = append(ids, svc.Download(testCred, "/srv/a", "/tmp/a", false, 1))
	}
	<-done
	svc.Wait()

	for _, id := range ids {
		assert.True(t, svc.Retry(id), "task %d lost its job", id)
	}
	svc.Wait()
}

func TestTransferServiceWatch(t *testing.T) {
	est := &mockEstablisher{next: func(int) (*mockConnection, error) { return &mockConnection{}, nil }}
	svc := newTestTransferService(t, est)
	svc.Download(testCred, "/srv/a", "/tmp/a", false, 1)
	svc.Wait()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan []domain.TransferTask, 1)
	done := make(chan struct{})
	go func() {
		svc.Watch(ctx, 5*time.Millisecond, func(tasks []domain.TransferTask) {
			select {
			case got <- tasks:
			default:
			}
		})
		close(done)
	}()

	select {
	case tasks := <-got:
		require.Len(t, tasks, 1)
		assert.Equal(t, domain.StateCompleted, tasks[0].Status.State)
	case <-time.After(2 * time.Second):
		t.Fatal("watch never delivered a snapshot")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}
}
