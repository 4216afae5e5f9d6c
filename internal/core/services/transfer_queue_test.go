package services

import (
	"testing"
	"time"

	"github.com/Adembc/lazyscp/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnqueueAssignsIncreasingIDs(t *testing.T) {
	q := NewTransferQueue()
	a := q.Enqueue(domain.Upload, "/tmp/a", "/srv/a", "a", 10)
	b := q.Enqueue(domain.Download, "/tmp/b", "/srv/b", "b", 20)

	assert.Equal(t, 1, a)
	assert.Equal(t, 2, b)

	task, ok := q.GetTask(a)
	require.True(t, ok)
	assert.Equal(t, domain.StatePending, task.Status.State)
	assert.Zero(t, task.Progress)
	assert.True(t, task.StartedAt.IsZero())
}

func TestUpdateProgressStartsTask(t *testing.T) {
	q := NewTransferQueue()
	started := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	q.now = func() time.Time { return started }
	id := q.Enqueue(domain.Upload, "/tmp/a", "/srv/a", "a", 10)

	q.UpdateProgress(id, 0.25)
	task, _ := q.GetTask(id)
	assert.Equal(t, domain.StateInProgress, task.Status.State)
	assert.Equal(t, 0.25, task.Progress)
	assert.Equal(t, started, task.StartedAt)

	q.now = func() time.Time { return started.Add(time.Minute) }
	q.UpdateProgress(id, 7)
	task, _ = q.GetTask(id)
	assert.Equal(t, 1.0, task.Progress)
	assert.Equal(t, started, task.StartedAt)

	q.UpdateProgress(id, -3)
	task, _ = q.GetTask(id)
	assert.Equal(t, 0.0, task.Progress)
}

func TestUpdateProgressIgnoresFinishedAndUnknown(t *testing.T) {
	q := NewTransferQueue()
	id := q.Enqueue(domain.Upload, "/tmp/a", "/srv/a", "a", 10)
	q.MarkFailed(id, "boom")

	q.UpdateProgress(id, 0.5)
	q.UpdateProgress(99, 0.5)

	task, _ := q.GetTask(id)
	assert.Equal(t, domain.StateFailed, task.Status.State)
	assert.Zero(t, task.Progress)
}

func TestMarkCompletedAndFailed(t *testing.T) {
	q := NewTransferQueue()
	a := q.Enqueue(domain.Upload, "/tmp/a", "/srv/a", "a", 10)
	b := q.Enqueue(domain.Upload, "/tmp/b", "/srv/b", "b", 10)

	q.UpdateProgress(a, 0.4)
	q.MarkCompleted(a)
	q.UpdateProgress(b, 0.3)
	q.MarkFailed(b, "scp and sftp both failed")

	ta, _ := q.GetTask(a)
	assert.Equal(t, domain.Completed(), ta.Status)
	assert.Equal(t, 1.0, ta.Progress)

	tb, _ := q.GetTask(b)
	assert.Equal(t, domain.Failed("scp and sftp both failed"), tb.Status)
	assert.Equal(t, 0.3, tb.Progress)
}

func TestRetry(t *testing.T) {
	q := NewTransferQueue()
	id := q.Enqueue(domain.Upload, "/tmp/a", "/srv/a", "a", 10)

	assert.False(t, q.Retry(id), "pending task")
	q.UpdateProgress(id, 0.5)
	assert.False(t, q.Retry(id), "running task")
	q.MarkFailed(id, "boom")

	require.True(t, q.Retry(id))
	task, _ := q.GetTask(id)
	assert.Equal(t, domain.Pending(), task.Status)
	assert.Zero(t, task.Progress)
	assert.True(t, task.StartedAt.IsZero())

	q.MarkCompleted(id)
	assert.False(t, q.Retry(id), "completed task")
	assert.False(t, q.Retry(42), "unknown id")
}

func TestClearCompletedKeepsOrder(t *testing.T) {
	q := NewTransferQueue()
	a := q.Enqueue(domain.Upload, "/tmp/a", "/srv/a", "A", 1)
	q.Enqueue(domain.Upload, "/tmp/b", "/srv/b", "B", 1)
	c := q.Enqueue(domain.Upload, "/tmp/c", "/srv/c", "C", 1)
	d := q.Enqueue(domain.Upload, "/tmp/d", "/srv/d", "D", 1)
	q.MarkCompleted(a)
	q.MarkFailed(c, "x")
	q.MarkCompleted(d)

	q.ClearCompleted()

	var names []string
	for _, task := range q.Snapshot() {
		names = append(names, task.Name)
	}
	assert.Equal(t, []string{"B", "C"}, names)
	_, ok := q.GetTask(a)
	assert.False(t, ok)

	e := q.Enqueue(domain.Upload, "/tmp/e", "/srv/e", "E", 1)
	assert.Greater(t, e, d, "ids are never reused")
}

func TestSnapshotIsIndependent(t *testing.T) {
	q := NewTransferQueue()
	id := q.Enqueue(domain.Download, "/tmp/a", "/srv/a", "a", 10)

	snap := q.Snapshot()
	snap[0].Name = "changed"
	q.UpdateProgress(id, 0.9)

	assert.Equal(t, "changed", snap[0].Name)
	assert.Zero(t, snap[0].Progress)
	task, _ := q.GetTask(id)
	assert.Equal(t, "a", task.Name)
}

func TestNextPending(t *testing.T) {
	q := NewTransferQueue()
	_, ok := q.NextPending()
	assert.False(t, ok)

	a := q.Enqueue(domain.Upload, "/tmp/a", "/srv/a", "a", 1)
	b := q.Enqueue(domain.Upload, "/tmp/b", "/srv/b", "b", 1)
	q.UpdateProgress(a, 0.1)

	next, ok := q.NextPending()
	require.True(t, ok)
	assert.Equal(t, b, next.ID)
}
