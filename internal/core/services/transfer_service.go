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
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/Adembc/lazyscp/internal/core/domain"
	"github.com/Adembc/lazyscp/internal/core/ports"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultPollInterval is how often Watch hands out a snapshot.
const DefaultPollInterval = 200 * time.Millisecond

// job is what a worker needs to run, or re-run, one task.
type job struct {
	cred  domain.ServerCredential
	isDir bool
}

// TransferService runs queued transfers. Every task gets its own goroutine
// and its own connection; nothing bounds how many run at once.
type TransferService struct {
	logger      *zap.SugaredLogger
	establisher ports.ConnectionEstablisher
	metrics     ports.TransferMetrics
	queue       *TransferQueue

	mu   sync.Mutex
	jobs map[int]job
	wg   sync.WaitGroup

	newRunID func() string
}

// NewTransferService creates a TransferService with an empty queue.
func NewTransferService(logger *zap.SugaredLogger, establisher ports.ConnectionEstablisher, metrics ports.TransferMetrics) *TransferService {
	return &TransferService{
		logger:      logger,
		establisher: establisher,
		metrics:     metrics,
		queue:       NewTransferQueue(),
		jobs:        make(map[int]job),
		newRunID:    uuid.NewString,
	}
}

// Queue exposes the task table for rendering and inspection.
func (s *TransferService) Queue() *TransferQueue { return s.queue }

// Upload queues localPath (a file or a directory) for upload to
// remotePath and starts it.
func (s *TransferService) Upload(cred domain.ServerCredential, localPath, remotePath string) (int, error) {
	info, err := os.Stat(localPath)
	if err != nil {
		return 0, &domain.LocalIoError{Op: "stat", Path: localPath, Err: err}
	}
	var size uint64
	if !info.IsDir() && info.Size() > 0 {
		size = uint64(info.Size())
	}
	id := s.queue.Enqueue(domain.Upload, localPath, remotePath, filepath.Base(localPath), size)
	s.start(id, job{cred: cred, isDir: info.IsDir()})
	return id, nil
}

// Download queues remotePath for download to localPath and starts it.
// isDir and size come from the remote listing the caller already holds.
func (s *TransferService) Download(cred domain.ServerCredential, remotePath, localPath string, isDir bool, size uint64) int {
	id := s.queue.Enqueue(domain.Download, localPath, remotePath, path.Base(remotePath), size)
	s.start(id, job{cred: cred, isDir: isDir})
	return id
}

// Retry restarts a failed task from scratch on a fresh connection.
func (s *TransferService) Retry(id int) bool {
	s.mu.Lock()
	j, ok := s.jobs[id]
	s.mu.Unlock()
	if !ok || !s.queue.Retry(id) {
		return false
	}
	s.logger.Infow("retrying transfer", "task_id", id)
	s.spawn(id, j)
	return true
}

// ClearCompleted drops completed tasks from the queue.
func (s *TransferService) ClearCompleted() {
	s.queue.ClearCompleted()

	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.jobs {
		if _, ok := s.queue.GetTask(id); !ok {
			delete(s.jobs, id)
		}
	}
}

// Wait blocks until every started worker has returned.
func (s *TransferService) Wait() {
	s.wg.Wait()
}

// Watch calls fn with a fresh snapshot every interval until ctx is done.
// A non-positive interval means DefaultPollInterval.
func (s *TransferService) Watch(ctx context.Context, interval time.Duration, fn func([]domain.TransferTask)) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(s.queue.Snapshot())
		}
	}
}

func (s *TransferService) start(id int, j job) {
	s.mu.Lock()
	s.jobs[id] = j
	s.mu.Unlock()
	s.spawn(id, j)
}

func (s *TransferService) spawn(id int, j job) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(context.Background(), id, j)
	}()
}

// run performs one attempt of task id.
func (s *TransferService) run(ctx context.Context, id int, j job) {
	task, ok := s.queue.GetTask(id)
	if !ok {
		return
	}
	log := s.logger.With("task_id", id, "run_id", s.newRunID(), "direction", task.Direction.String(), "name", task.Name)
	log.Infow("transfer started", "local", task.LocalPath, "remote", task.RemotePath, "server", j.cred.Name)
	s.metrics.TaskStarted(task.Direction)

	err := s.transfer(ctx, id, task, j)
	s.metrics.TaskFinished(task.Direction, err)
	if err != nil {
		log.Errorw("transfer failed", "error", err)
		s.queue.MarkFailed(id, err.Error())
		return
	}
	s.queue.MarkCompleted(id)
	log.Infow("transfer completed")
}

func (s *TransferService) transfer(ctx context.Context, id int, task domain.TransferTask, j job) error {
	conn, err := s.establisher.Connect(ctx, j.cred)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close()

	sink := domain.ProgressFunc(func(f float64) { s.queue.UpdateProgress(id, f) })
	switch {
	case task.Direction == domain.Upload && j.isDir:
		return conn.UploadDir(ctx, task.LocalPath, task.RemotePath, sink)
	case task.Direction == domain.Upload:
		return conn.Upload(ctx, task.LocalPath, task.RemotePath, sink)
	case j.isDir:
		return conn.DownloadDir(ctx, task.RemotePath, task.LocalPath, sink)
	default:
		return conn.Download(ctx, task.RemotePath, task.LocalPath, sink)
	}
}
