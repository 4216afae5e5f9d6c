// Copyright 2025.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package services

import (
	"sync"
	"time"

	"github.com/Adembc/lazyscp/internal/core/domain"
)

// TransferQueue is the shared table of transfer tasks. Tasks are stored by
// id and kept in enqueue order; ids increase strictly and are never reused,
// even after ClearCompleted. Every method takes the lock for a short,
// I/O free critical section.
type TransferQueue struct {
	mu     sync.Mutex
	tasks  map[int]*domain.TransferTask
	order  []int
	nextID int
	now    func() time.Time
}

// NewTransferQueue creates an empty queue. The first id is 1.
func NewTransferQueue() *TransferQueue {
	return &TransferQueue{
		tasks:  make(map[int]*domain.TransferTask),
		nextID: 1,
		now:    time.Now,
	}
}

// Enqueue appends a pending task and returns its id.
func (q *TransferQueue) Enqueue(dir domain.Direction, localPath, remotePath, name string, size uint64) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	id := q.nextID
	q.nextID++
	q.tasks[id] = &domain.TransferTask{
		ID:         id,
		Direction:  dir,
		LocalPath:  localPath,
		RemotePath: remotePath,
		Name:       name,
		Size:       size,
		Status:     domain.Pending(),
	}
	q.order = append(q.order, id)
	return id
}

// UpdateProgress records fraction for a running task. The first update
// moves a pending task to in progress and stamps its start time. Updates
// for unknown or finished tasks are ignored.
func (q *TransferQueue) UpdateProgress(id int, fraction float64) {
	q.mu.Lock()
	defer q.mu.Unlock()

	t, ok := q.tasks[id]
	if !ok {
		return
	}
	switch t.Status.State {
	case domain.StatePending:
		t.Status = domain.InProgress()
		t.StartedAt = q.now()
	case domain.StateInProgress:
	default:
		return
	}
	t.Progress = clamp(fraction)
}

// MarkCompleted finishes a task at full progress.
func (q *TransferQueue) MarkCompleted(id int) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if t, ok := q.tasks[id]; ok {
		t.Progress = 1
		t.Status = domain.Completed()
	}
}

// MarkFailed finishes a task with reason, keeping its last progress.
func (q *TransferQueue) MarkFailed(id int, reason string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if t, ok := q.tasks[id]; ok {
		t.Status = domain.Failed(reason)
	}
}

// Retry resets a failed task to pending. It reports false, and changes
// nothing, for any other state or an unknown id.
func (q *TransferQueue) Retry(id int) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	t, ok := q.tasks[id]
	if !ok || t.Status.State != domain.StateFailed {
		return false
	}
	t.Status = domain.Pending()
	t.Progress = 0
	t.StartedAt = time.Time{}
	return true
}

// ClearCompleted drops completed tasks. Survivors keep their relative
// order.
func (q *TransferQueue) ClearCompleted() {
	q.mu.Lock()
	defer q.mu.Unlock()

	kept := q.order[:0]
	for _, id := range q.order {
		if q.tasks[id].Status.State == domain.StateCompleted {
			delete(q.tasks, id)
			continue
		}
		kept = append(kept, id)
	}
	q.order = kept
}

// Snapshot returns copies of every task in enqueue order.
func (q *TransferQueue) Snapshot() []domain.TransferTask {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]domain.TransferTask, 0, len(q.order))
	for _, id := range q.order {
		out = append(out, *q.tasks[id])
	}
	return out
}

// GetTask returns a copy of the task with id.
func (q *TransferQueue) GetTask(id int) (domain.TransferTask, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	t, ok := q.tasks[id]
	if !ok {
		return domain.TransferTask{}, false
	}
	return *t, true
}

// NextPending returns the oldest pending task.
func (q *TransferQueue) NextPending() (domain.TransferTask, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, id := range q.order {
		if t := q.tasks[id]; t.Status.State == domain.StatePending {
			return *t, true
		}
	}
	return domain.TransferTask{}, false
}

// Len returns the number of tasks in the queue.
func (q *TransferQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.order)
}

func clamp(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	default:
		return f
	}
}
