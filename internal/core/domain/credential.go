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
	"net"
	"strconv"
)

// AuthKind selects how a credential authenticates against the server.
type AuthKind string

const (
	AuthKindPassword AuthKind = "password"
	AuthKindKey      AuthKind = "key"
)

// DefaultSSHPort is used when a credential leaves Port unset.
const DefaultSSHPort = 22

// ServerCredential describes one remote host. It is owned by the
// configuration layer; the transfer core only ever works on copies.
type ServerCredential struct {
	Name             string   `yaml:"name"`
	Host             string   `yaml:"host"`
	Port             int      `yaml:"port"`
	User             string   `yaml:"user"`
	AuthKind         AuthKind `yaml:"auth_kind"`
	Password         string   `yaml:"password,omitempty"`
	KeyPath          string   `yaml:"key_path,omitempty"`
	DefaultRemoteDir string   `yaml:"default_remote_dir,omitempty"`
}

// EffectivePort returns Port, or 22 when it is unset.
func (c ServerCredential) EffectivePort() int {
	if c.Port <= 0 {
		return DefaultSSHPort
	}
	return c.Port
}

// Address returns host:port suitable for net.Dial.
func (c ServerCredential) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.EffectivePort()))
}

// Destination returns user@host as understood by ssh and scp.
func (c ServerCredential) Destination() string {
	if c.User == "" {
		return c.Host
	}
	return c.User + "@" + c.Host
}

// AuthMode records which implementation services a connection.
type AuthMode int

const (
	// AuthModeNative means the in-process SSH library authenticated and
	// every remote operation goes through its session.
	AuthModeNative AuthMode = iota
	// AuthModeExternalFallback means the in-process library was rejected but
	// the system ssh client proved the credential works; remote operations
	// shell out to ssh/scp.
	AuthModeExternalFallback
)

func (m AuthMode) String() string {
	switch m {
	case AuthModeNative:
		return "native"
	case AuthModeExternalFallback:
		return "external-fallback"
	default:
		return "unknown"
	}
}
