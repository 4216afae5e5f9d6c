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
	"errors"
	"fmt"
	"sync"

	"github.com/Adembc/lazyscp/internal/adapters/command"
	"github.com/Adembc/lazyscp/internal/core/domain"
	"github.com/Adembc/lazyscp/internal/core/ports"
	"go.uber.org/zap"
	gossh "golang.org/x/crypto/ssh"
)

// ErrNativeUnavailable is returned by in-process operations on a handle
// that runs in external fallback mode.
var ErrNativeUnavailable = errors.New("native transport unavailable")

// noCopy makes go vet's copylocks check flag copies of Handle.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// Handle is an established connection. Its mode is fixed at construction
// and selects the code path of every operation.
type Handle struct {
	noCopy noCopy

	mode     domain.AuthMode
	cred     domain.ServerCredential
	client   *gossh.Client
	logger   *zap.SugaredLogger
	runner   command.Runner
	executor *Executor

	fsMu   sync.Mutex
	fs     RemoteFS
	openFS func(*gossh.Client) (RemoteFS, error)
}

var _ ports.Connection = (*Handle)(nil)

func newNativeHandle(cred domain.ServerCredential, client *gossh.Client, logger *zap.SugaredLogger, runner command.Runner, executor *Executor) *Handle {
	return &Handle{
		mode:     domain.AuthModeNative,
		cred:     cred,
		client:   client,
		logger:   logger,
		runner:   runner,
		executor: executor,
		openFS:   openSFTP,
	}
}

func newFallbackHandle(cred domain.ServerCredential, logger *zap.SugaredLogger, runner command.Runner, executor *Executor) *Handle {
	return &Handle{
		mode:     domain.AuthModeExternalFallback,
		cred:     cred,
		logger:   logger,
		runner:   runner,
		executor: executor,
	}
}

func (h *Handle) Mode() domain.AuthMode { return h.mode }

func (h *Handle) Credential() domain.ServerCredential { return h.cred }

// remoteFS opens the SFTP subsystem on first use.
func (h *Handle) remoteFS() (RemoteFS, error) {
	if h.mode != domain.AuthModeNative {
		return nil, ErrNativeUnavailable
	}
	h.fsMu.Lock()
	defer h.fsMu.Unlock()
	if h.fs != nil {
		return h.fs, nil
	}
	fs, err := h.openFS(h.client)
	if err != nil {
		return nil, fmt.Errorf("open sftp subsystem: %w", err)
	}
	h.fs = fs
	return fs, nil
}

// Exec runs command on the remote host and returns its output. A non-zero
// exit status is a *domain.RemoteCommandError.
func (h *Handle) Exec(ctx context.Context, cmd string) (string, error) {
	switch h.mode {
	case domain.AuthModeNative:
		return h.execSession(cmd)
	case domain.AuthModeExternalFallback:
		res, err := runRemote(ctx, h.runner, h.cred, cmd)
		return res.Combined(), err
	default:
		return "", fmt.Errorf("unknown auth mode %v", h.mode)
	}
}

func (h *Handle) execSession(cmd string) (string, error) {
	session, err := h.client.NewSession()
	if err != nil {
		return "", fmt.Errorf("open session: %w", err)
	}
	defer session.Close()

	out, err := session.CombinedOutput(cmd)
	if err != nil {
		code := -1
		var exitErr *gossh.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitStatus()
		}
		return string(out), &domain.RemoteCommandError{
			Command:  cmd,
			ExitCode: code,
			Output:   string(out),
			Err:      err,
		}
	}
	return string(out), nil
}

// List returns the entries of dir, directories first.
func (h *Handle) List(ctx context.Context, dir string) ([]domain.RemoteEntry, error) {
	dir = RemotePath(dir)
	var entries []domain.RemoteEntry
	switch h.mode {
	case domain.AuthModeNative:
		fs, err := h.remoteFS()
		if err != nil {
			return nil, err
		}
		infos, err := fs.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", dir, err)
		}
		entries = entriesFromFileInfo(infos)
	case domain.AuthModeExternalFallback:
		res, err := runRemote(ctx, h.runner, h.cred, "ls -la --time-style=long-iso "+Escape(dir))
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", dir, err)
		}
		entries = parseListing(res.Stdout)
	default:
		return nil, fmt.Errorf("unknown auth mode %v", h.mode)
	}
	sortEntries(entries)
	return entries, nil
}

// Mkdir creates dir and any missing parents. It succeeds when dir exists.
func (h *Handle) Mkdir(ctx context.Context, dir string) error {
	dir = RemotePath(dir)
	_, err := h.Exec(ctx, "mkdir -p "+Escape(dir))
	if err == nil || h.mode != domain.AuthModeNative {
		return err
	}
	// SFTP-only servers refuse exec channels.
	fs, fsErr := h.remoteFS()
	if fsErr != nil {
		return err
	}
	if fsErr = fs.MkdirAll(dir); fsErr != nil {
		return err
	}
	return nil
}

// Remove deletes path; directories are removed recursively.
func (h *Handle) Remove(ctx context.Context, p string, isDir bool) error {
	flag := "-f"
	if isDir {
		flag = "-rf"
	}
	_, err := h.Exec(ctx, "rm "+flag+" "+Escape(RemotePath(p)))
	return err
}

// Rename moves oldPath to newPath on the remote host.
func (h *Handle) Rename(ctx context.Context, oldPath, newPath string) error {
	_, err := h.Exec(ctx, "mv "+Escape(RemotePath(oldPath))+" "+Escape(RemotePath(newPath)))
	return err
}

func (h *Handle) Upload(ctx context.Context, localPath, remotePath string, sink domain.ProgressSink) error {
	return h.executor.Upload(ctx, h, localPath, remotePath, sink)
}

func (h *Handle) Download(ctx context.Context, remotePath, localPath string, sink domain.ProgressSink) error {
	return h.executor.Download(ctx, h, remotePath, localPath, sink)
}

func (h *Handle) UploadDir(ctx context.Context, localDir, remoteDir string, sink domain.ProgressSink) error {
	return h.executor.UploadDir(ctx, h, localDir, remoteDir, sink)
}

func (h *Handle) DownloadDir(ctx context.Context, remoteDir, localDir string, sink domain.ProgressSink) error {
	return h.executor.DownloadDir(ctx, h, remoteDir, localDir, sink)
}

// Close releases the SFTP subsystem and the SSH session, if any.
func (h *Handle) Close() error {
	h.fsMu.Lock()
	fs := h.fs
	h.fs = nil
	h.fsMu.Unlock()

	var errs []error
	if fs != nil {
		errs = append(errs, fs.Close())
	}
	if h.client != nil {
		errs = append(errs, h.client.Close())
	}
	return errors.Join(errs...)
}
