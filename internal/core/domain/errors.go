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

import "fmt"

// ConnectError means the TCP endpoint could not be reached. It is never
// retried and never triggers the external fallback.
type ConnectError struct {
	Addr string
	Err  error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect to %s: %v", e.Addr, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// HandshakeError means the SSH protocol negotiation failed.
type HandshakeError struct {
	Addr string
	Err  error
}

func (e *HandshakeError) Error() string {
	return fmt.Sprintf("ssh handshake with %s: %v", e.Addr, e.Err)
}

func (e *HandshakeError) Unwrap() error { return e.Err }

// AuthError means every authentication strategy was exhausted, including
// the external probe. Err is the in-process library's failure.
type AuthError struct {
	User string
	Addr string
	Err  error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authenticate %s@%s: %v", e.User, e.Addr, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// TransportError reports a copy where both transports failed.
type TransportError struct {
	Op       string
	Path     string
	External error
	Native   error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: scp and sftp both failed: scp: %v; sftp: %v", e.Op, e.Path, e.External, e.Native)
}

// Unwrap exposes both causes to errors.Is and errors.As.
func (e *TransportError) Unwrap() []error {
	return []error{e.External, e.Native}
}

// RemoteCommandError is a non-zero exit (or failure indication) from a
// remote or external command.
type RemoteCommandError struct {
	Command  string
	ExitCode int
	Output   string
	Err      error
}

func (e *RemoteCommandError) Error() string {
	msg := fmt.Sprintf("command %q exited with status %d", e.Command, e.ExitCode)
	if e.Output != "" {
		msg += ": " + e.Output
	}
	if e.Err != nil && e.ExitCode < 0 {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RemoteCommandError) Unwrap() error { return e.Err }

// LocalIoError wraps a local filesystem failure.
type LocalIoError struct {
	Op   string
	Path string
	Err  error
}

func (e *LocalIoError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *LocalIoError) Unwrap() error { return e.Err }
