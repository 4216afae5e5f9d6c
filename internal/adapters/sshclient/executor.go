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

package sshclient

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/Adembc/lazyscp/internal/adapters/command"
	"github.com/Adembc/lazyscp/internal/core/domain"
	"github.com/Adembc/lazyscp/internal/core/ports"
	"go.uber.org/zap"
)

const (
	defaultChunkSize = 32 * 1024

	transportSCP  = "scp"
	transportSFTP = "sftp"
)

// Executor copies files and directory trees over a Handle. Every file is
// tried with the system scp first and with SFTP over the handle's session
// when that fails; exactly one of them completes the copy.
type Executor struct {
	logger    *zap.SugaredLogger
	runner    command.Runner
	metrics   ports.TransferMetrics
	legacySCP bool
	chunkSize int
	// list enumerates a remote directory for DownloadDir.
	list func(ctx context.Context, h *Handle, dir string) ([]domain.RemoteEntry, error)
}

// NewExecutor creates an Executor.
func NewExecutor(logger *zap.SugaredLogger, runner command.Runner, metrics ports.TransferMetrics, legacySCP bool) *Executor {
	return &Executor{
		logger:    logger,
		runner:    runner,
		metrics:   metrics,
		legacySCP: legacySCP,
		chunkSize: defaultChunkSize,
		list: func(ctx context.Context, h *Handle, dir string) ([]domain.RemoteEntry, error) {
			return h.List(ctx, dir)
		},
	}
}

// Upload copies one local file to remotePath.
func (e *Executor) Upload(ctx context.Context, h *Handle, localPath, remotePath string, sink domain.ProgressSink) error {
	return e.uploadFile(ctx, h, localPath, RemotePath(remotePath), guardProgress(sink))
}

// Download copies one remote file to localPath, creating local parents.
func (e *Executor) Download(ctx context.Context, h *Handle, remotePath, localPath string, sink domain.ProgressSink) error {
	return e.downloadFile(ctx, h, RemotePath(remotePath), localPath, guardProgress(sink))
}

// UploadDir copies the tree rooted at localDir to remoteDir, depth first.
// The remote root is created before any child is copied.
func (e *Executor) UploadDir(ctx context.Context, h *Handle, localDir, remoteDir string, sink domain.ProgressSink) error {
	return e.uploadDir(ctx, h, localDir, RemotePath(remoteDir), guardProgress(sink))
}

// DownloadDir copies the remote tree rooted at remoteDir to localDir.
func (e *Executor) DownloadDir(ctx context.Context, h *Handle, remoteDir, localDir string, sink domain.ProgressSink) error {
	return e.downloadDir(ctx, h, RemotePath(remoteDir), localDir, guardProgress(sink))
}

func (e *Executor) uploadFile(ctx context.Context, h *Handle, localPath, remotePath string, sink domain.ProgressSink) error {
	extErr := e.scpUpload(ctx, h.cred, localPath, remotePath, sink)
	if extErr == nil {
		e.metrics.TransportWon(transportSCP)
		return nil
	}
	e.logger.Warnw("scp upload failed, trying sftp", "local", localPath, "remote", remotePath, "error", extErr)

	natErr := e.sftpUpload(h, localPath, remotePath, sink)
	if natErr == nil {
		e.metrics.TransportWon(transportSFTP)
		return nil
	}
	e.logger.Errorw("upload failed", "local", localPath, "remote", remotePath, "error", natErr)
	return &domain.TransportError{Op: "upload", Path: localPath, External: extErr, Native: natErr}
}

func (e *Executor) downloadFile(ctx context.Context, h *Handle, remotePath, localPath string, sink domain.ProgressSink) error {
	if dir := filepath.Dir(localPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return &domain.LocalIoError{Op: "create directory", Path: dir, Err: err}
		}
	}

	extErr := e.scpDownload(ctx, h.cred, remotePath, localPath, sink)
	if extErr == nil {
		e.metrics.TransportWon(transportSCP)
		return nil
	}
	e.logger.Warnw("scp download failed, trying sftp", "remote", remotePath, "local", localPath, "error", extErr)

	natErr := e.sftpDownload(h, remotePath, localPath, sink)
	if natErr == nil {
		e.metrics.TransportWon(transportSFTP)
		return nil
	}
	e.logger.Errorw("download failed", "remote", remotePath, "local", localPath, "error", natErr)
	return &domain.TransportError{Op: "download", Path: remotePath, External: extErr, Native: natErr}
}

// scp reports only the boundaries; it gives no usable byte count.
func (e *Executor) scpUpload(ctx context.Context, cred domain.ServerCredential, localPath, remotePath string, sink domain.ProgressSink) error {
	sink.Progress(0)
	if err := toolAvailable(ctx, e.runner, scpProgram); err != nil {
		return err
	}
	if _, err := e.runner.Run(ctx, scpProgram, scpArgs(cred, e.legacySCP, localPath, remoteTarget(cred, remotePath))...); err != nil {
		return err
	}
	sink.Progress(1)
	return nil
}

func (e *Executor) scpDownload(ctx context.Context, cred domain.ServerCredential, remotePath, localPath string, sink domain.ProgressSink) error {
	sink.Progress(0)
	if err := toolAvailable(ctx, e.runner, scpProgram); err != nil {
		return err
	}
	if _, err := e.runner.Run(ctx, scpProgram, scpArgs(cred, e.legacySCP, remoteTarget(cred, remotePath), localPath)...); err != nil {
		return err
	}
	sink.Progress(1)
	return nil
}

func (e *Executor) sftpUpload(h *Handle, localPath, remotePath string, sink domain.ProgressSink) error {
	fs, err := h.remoteFS()
	if err != nil {
		return err
	}

	src, err := os.Open(localPath)
	if err != nil {
		return &domain.LocalIoError{Op: "open", Path: localPath, Err: err}
	}
	defer src.Close()
	info, err := src.Stat()
	if err != nil {
		return &domain.LocalIoError{Op: "stat", Path: localPath, Err: err}
	}

	if dir := path.Dir(remotePath); dir != "." && dir != "/" {
		if err := fs.MkdirAll(dir); err != nil {
			return fmt.Errorf("create remote directory %s: %w", dir, err)
		}
	}
	dst, err := fs.Create(remotePath)
	if err != nil {
		return fmt.Errorf("create remote file %s: %w", remotePath, err)
	}

	sink.Progress(0)
	if err := copyChunks(dst, src, info.Size(), e.chunkSize, sink); err != nil {
		dst.Close()
		return fmt.Errorf("write %s: %w", remotePath, err)
	}
	if err := dst.Close(); err != nil {
		return fmt.Errorf("close %s: %w", remotePath, err)
	}
	sink.Progress(1)
	return nil
}

func (e *Executor) sftpDownload(h *Handle, remotePath, localPath string, sink domain.ProgressSink) error {
	fs, err := h.remoteFS()
	if err != nil {
		return err
	}

	var total int64
	if info, err := fs.Stat(remotePath); err == nil {
		total = info.Size()
	}
	src, err := fs.Open(remotePath)
	if err != nil {
		return fmt.Errorf("open remote file %s: %w", remotePath, err)
	}
	defer src.Close()

	dst, err := os.Create(localPath)
	if err != nil {
		return &domain.LocalIoError{Op: "create", Path: localPath, Err: err}
	}

	sink.Progress(0)
	if err := copyChunks(dst, src, total, e.chunkSize, sink); err != nil {
		dst.Close()
		return fmt.Errorf("read %s: %w", remotePath, err)
	}
	if err := dst.Close(); err != nil {
		return &domain.LocalIoError{Op: "close", Path: localPath, Err: err}
	}
	sink.Progress(1)
	return nil
}

// copyChunks copies src to dst in chunkSize pieces and reports
// transferred/total after each one. With total 0 nothing is reported.
func copyChunks(dst io.Writer, src io.Reader, total int64, chunkSize int, sink domain.ProgressSink) error {
	buf := make([]byte, chunkSize)
	var transferred int64
	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			if _, err := dst.Write(buf[:n]); err != nil {
				return err
			}
			transferred += int64(n)
			if total > 0 {
				sink.Progress(float64(transferred) / float64(total))
			}
		}
		if rerr == io.EOF {
			return nil
		}
		if rerr != nil {
			return rerr
		}
	}
}

func (e *Executor) uploadDir(ctx context.Context, h *Handle, localDir, remoteDir string, sink domain.ProgressSink) error {
	if err := h.Mkdir(ctx, remoteDir); err != nil {
		return fmt.Errorf("create remote directory %s: %w", remoteDir, err)
	}

	entries, err := os.ReadDir(localDir)
	if err != nil {
		return &domain.LocalIoError{Op: "read directory", Path: localDir, Err: err}
	}
	n := len(entries)
	if n == 0 {
		sink.Progress(0)
		sink.Progress(1)
		return nil
	}
	for i, entry := range entries {
		localChild := filepath.Join(localDir, entry.Name())
		remoteChild := path.Join(remoteDir, entry.Name())

		info, err := os.Stat(localChild)
		if err != nil {
			return &domain.LocalIoError{Op: "stat", Path: localChild, Err: err}
		}
		child := childSink(sink, i, n)
		if info.IsDir() {
			err = e.uploadDir(ctx, h, localChild, remoteChild, child)
		} else {
			err = e.uploadFile(ctx, h, localChild, remoteChild, child)
		}
		if err != nil {
			return err
		}
		sink.Progress(float64(i+1) / float64(n))
	}
	return nil
}

func (e *Executor) downloadDir(ctx context.Context, h *Handle, remoteDir, localDir string, sink domain.ProgressSink) error {
	if err := os.MkdirAll(localDir, 0o755); err != nil {
		return &domain.LocalIoError{Op: "create directory", Path: localDir, Err: err}
	}

	entries, err := e.list(ctx, h, remoteDir)
	if err != nil {
		return err
	}
	n := len(entries)
	if n == 0 {
		sink.Progress(0)
		sink.Progress(1)
		return nil
	}
	for i, entry := range entries {
		remoteChild := path.Join(remoteDir, entry.Name)
		localChild := filepath.Join(localDir, entry.Name)
		child := childSink(sink, i, n)
		if entry.IsDir {
			err = e.downloadDir(ctx, h, remoteChild, localChild, child)
		} else {
			err = e.downloadFile(ctx, h, remoteChild, localChild, child)
		}
		if err != nil {
			return err
		}
		sink.Progress(float64(i+1) / float64(n))
	}
	return nil
}
