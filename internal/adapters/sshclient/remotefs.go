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
	"io"
	"os"

	"github.com/pkg/sftp"
	gossh "golang.org/x/crypto/ssh"
)

// RemoteFile is an open file on the remote side.
type RemoteFile interface {
	io.Reader
	io.Writer
	io.Closer
}

// RemoteFS is the subset of an SFTP client the native transport needs.
type RemoteFS interface {
	Open(path string) (RemoteFile, error)
	Create(path string) (RemoteFile, error)
	Stat(path string) (os.FileInfo, error)
	MkdirAll(path string) error
	ReadDir(path string) ([]os.FileInfo, error)
	Close() error
}

// sftpFS wraps *sftp.Client to satisfy RemoteFS.
type sftpFS struct {
	client *sftp.Client
}

func openSFTP(conn *gossh.Client) (RemoteFS, error) {
	c, err := sftp.NewClient(conn)
	if err != nil {
		return nil, err
	}
	return &sftpFS{client: c}, nil
}

func (s *sftpFS) Open(path string) (RemoteFile, error) {
	return s.client.Open(path)
}

func (s *sftpFS) Create(path string) (RemoteFile, error) {
	return s.client.Create(path)
}

func (s *sftpFS) Stat(path string) (os.FileInfo, error) {
	return s.client.Stat(path)
}

func (s *sftpFS) MkdirAll(path string) error {
	return s.client.MkdirAll(path)
}

func (s *sftpFS) ReadDir(path string) ([]os.FileInfo, error) {
	return s.client.ReadDir(path)
}

func (s *sftpFS) Close() error {
	return s.client.Close()
}
