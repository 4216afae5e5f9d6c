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
	"errors"
	"sync"

	"github.com/Adembc/lazyscp/internal/core/domain"
	"github.com/Adembc/lazyscp/internal/core/ports"
	"go.uber.org/zap"
)

// ErrNotConnected is returned by browse operations before Connect.
var ErrNotConnected = errors.New("not connected")

// BrowseService owns the single connection used for interactive listing
// and file management. Operations are serialized on one mutex; transfer
// workers never touch this connection.
type BrowseService struct {
	logger      *zap.SugaredLogger
	establisher ports.ConnectionEstablisher

	mu   sync.Mutex
	conn ports.Connection
}

// NewBrowseService creates a BrowseService.
func NewBrowseService(logger *zap.SugaredLogger, establisher ports.ConnectionEstablisher) *BrowseService {
	return &BrowseService{logger: logger, establisher: establisher}
}

// Connect replaces the current connection with one to cred and returns
// the connection transcript.
func (b *BrowseService) Connect(ctx context.Context, cred domain.ServerCredential) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closeLocked()
	conn, transcript, err := b.establisher.ConnectWithLog(ctx, cred)
	if err != nil {
		b.logger.Warnw("browse connect failed", "server", cred.Name, "error", err)
		return transcript, err
	}
	b.conn = conn
	b.logger.Infow("browse connected", "server", cred.Name, "mode", conn.Mode().String())
	return transcript, nil
}

// Mode reports the auth mode of the current connection.
func (b *BrowseService) Mode() (domain.AuthMode, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn == nil {
		return 0, false
	}
	return b.conn.Mode(), true
}

func (b *BrowseService) List(ctx context.Context, dir string) ([]domain.RemoteEntry, error) {
	var entries []domain.RemoteEntry
	err := b.with(func(c ports.Connection) error {
		var err error
		entries, err = c.List(ctx, dir)
		return err
	})
	return entries, err
}

func (b *BrowseService) Mkdir(ctx context.Context, dir string) error {
	return b.with(func(c ports.Connection) error { return c.Mkdir(ctx, dir) })
}

func (b *BrowseService) Remove(ctx context.Context, p string, isDir bool) error {
	return b.with(func(c ports.Connection) error { return c.Remove(ctx, p, isDir) })
}

func (b *BrowseService) Rename(ctx context.Context, oldPath, newPath string) error {
	return b.with(func(c ports.Connection) error { return c.Rename(ctx, oldPath, newPath) })
}

func (b *BrowseService) Exec(ctx context.Context, cmd string) (string, error) {
	var out string
	err := b.with(func(c ports.Connection) error {
		var err error
		out, err = c.Exec(ctx, cmd)
		return err
	})
	return out, err
}

// Close drops the current connection.
func (b *BrowseService) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closeLocked()
}

func (b *BrowseService) with(fn func(ports.Connection) error) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn == nil {
		return ErrNotConnected
	}
	return fn(b.conn)
}

func (b *BrowseService) closeLocked() error {
	if b.conn == nil {
		return nil
	}
	err := b.conn.Close()
	b.conn = nil
	return err
}
