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

package ports

import (
	"context"

	"github.com/Adembc/lazyscp/internal/core/domain"
)

// ConfigProvider exposes OS-level locations and environment lookups.
type ConfigProvider interface {
	HomeDir() string
	ConfigPath(elems ...string) string
	LogPath(filename string) string
	GetEnvOrDefault(envVar, defaultValue string) string
}

// FlagsProvider exposes global command line flags.
type FlagsProvider interface {
	IsDebug() bool
	GetFlag(name string) string
}

// CredentialRepository resolves server credentials by name.
type CredentialRepository interface {
	ListCredentials() ([]domain.ServerCredential, error)
	GetCredential(name string) (domain.ServerCredential, error)
	SaveCredential(cred domain.ServerCredential) error
}

// ConfigRepository loads and stores the application configuration.
type ConfigRepository interface {
	Load() (domain.Config, error)
	Save(cfg domain.Config) error
}

// TransferMetrics records transfer and connection outcomes.
type TransferMetrics interface {
	TaskStarted(dir domain.Direction)
	TaskFinished(dir domain.Direction, err error)
	TransportWon(transport string)
	ConnectionEstablished(mode domain.AuthMode)
	ConnectionFailed(kind string)
}

// Connection is an open remote session. Its AuthMode is fixed for its whole
// lifetime and decides whether operations use the in-process session or
// the system ssh/scp tools.
type Connection interface {
	Mode() domain.AuthMode
	Credential() domain.ServerCredential

	List(ctx context.Context, path string) ([]domain.RemoteEntry, error)
	Mkdir(ctx context.Context, path string) error
	Remove(ctx context.Context, path string, isDir bool) error
	Rename(ctx context.Context, oldPath, newPath string) error
	Exec(ctx context.Context, command string) (string, error)

	Upload(ctx context.Context, localPath, remotePath string, sink domain.ProgressSink) error
	Download(ctx context.Context, remotePath, localPath string, sink domain.ProgressSink) error
	UploadDir(ctx context.Context, localDir, remoteDir string, sink domain.ProgressSink) error
	DownloadDir(ctx context.Context, remoteDir, localDir string, sink domain.ProgressSink) error

	Close() error
}

// ConnectionEstablisher turns a credential into a Connection.
type ConnectionEstablisher interface {
	Connect(ctx context.Context, cred domain.ServerCredential) (Connection, error)
	// ConnectWithLog also returns the ordered transcript of every attempt,
	// whatever the outcome.
	ConnectWithLog(ctx context.Context, cred domain.ServerCredential) (Connection, []string, error)
}
