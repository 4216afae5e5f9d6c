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

package domain

import (
	"path/filepath"
	"time"
)

// Config represents the application configuration
type Config struct {
	// ConnectTimeout bounds the TCP dial and the SSH handshake.
	ConnectTimeout time.Duration `yaml:"connect_timeout"`

	// KeyDir is scanned for private keys when a key credential has no
	// explicit key file and the agent cannot authenticate.
	KeyDir string `yaml:"key_dir"`

	// KeyExcludePatterns are path.Match globs of file names in KeyDir that
	// are never offered as keys.
	KeyExcludePatterns []string `yaml:"key_exclude_patterns"`

	// StrictHostKeyChecking verifies server keys against KnownHostsFile for
	// the in-process client.
	StrictHostKeyChecking bool   `yaml:"strict_host_key_checking"`
	KnownHostsFile        string `yaml:"known_hosts_file"`

	// SCPLegacyProtocol passes -O to scp so remote paths go through the
	// remote shell and quoting keeps its meaning.
	SCPLegacyProtocol bool `yaml:"scp_legacy_protocol"`

	// PollInterval is how often the queue snapshot is pushed to the view.
	PollInterval time.Duration `yaml:"poll_interval"`

	// MetricsAddr serves Prometheus metrics when set.
	MetricsAddr string `yaml:"metrics_addr,omitempty"`
}

// DefaultKeyExcludePatterns lists files in ~/.ssh that are not private keys.
func DefaultKeyExcludePatterns() []string {
	return []string{"*.pub", "known_hosts*", "config", "authorized_keys"}
}

// DefaultConfig returns the default configuration for the given home directory
func DefaultConfig(homeDir string) Config {
	sshDir := filepath.Join(homeDir, ".ssh")
	return Config{
		ConnectTimeout:        10 * time.Second,
		KeyDir:                sshDir,
		KeyExcludePatterns:    DefaultKeyExcludePatterns(),
		StrictHostKeyChecking: false,
		KnownHostsFile:        filepath.Join(sshDir, "known_hosts"),
		SCPLegacyProtocol:     true,
		PollInterval:          200 * time.Millisecond,
	}
}

// WithDefaults fills zero fields from DefaultConfig.
func (c Config) WithDefaults(homeDir string) Config {
	d := DefaultConfig(homeDir)
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = d.ConnectTimeout
	}
	if c.KeyDir == "" {
		c.KeyDir = d.KeyDir
	}
	if c.KeyExcludePatterns == nil {
		c.KeyExcludePatterns = d.KeyExcludePatterns
	}
	if c.KnownHostsFile == "" {
		c.KnownHostsFile = d.KnownHostsFile
	}
	if c.PollInterval <= 0 {
		c.PollInterval = d.PollInterval
	}
	return c
}
