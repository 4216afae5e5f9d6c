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
	"net"
	"os"
	"strings"
	"time"

	"github.com/Adembc/lazyscp/internal/adapters/command"
	"github.com/Adembc/lazyscp/internal/core/domain"
	"github.com/Adembc/lazyscp/internal/core/ports"
	"go.uber.org/zap"
	gossh "golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

const defaultConnectTimeout = 10 * time.Second

// Establisher turns a credential into a Handle. It tries the in-process
// SSH library first and, when authentication is rejected, probes the
// system ssh client before giving up.
type Establisher struct {
	logger   *zap.SugaredLogger
	opts     Options
	runner   command.Runner
	metrics  ports.TransferMetrics
	executor *Executor

	dial        func(ctx context.Context, network, addr string) (net.Conn, error)
	agentSocket func() string
}

var _ ports.ConnectionEstablisher = (*Establisher)(nil)

// NewEstablisher creates an Establisher. The same runner backs the
// fallback probe and every external ssh/scp call made through the
// returned handles.
func NewEstablisher(logger *zap.SugaredLogger, opts Options, runner command.Runner, metrics ports.TransferMetrics) *Establisher {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = defaultConnectTimeout
	}
	return &Establisher{
		logger:      logger,
		opts:        opts,
		runner:      runner,
		metrics:     metrics,
		executor:    NewExecutor(logger, runner, metrics, opts.SCPLegacyProtocol),
		dial:        (&net.Dialer{}).DialContext,
		agentSocket: func() string { return os.Getenv("SSH_AUTH_SOCK") },
	}
}

// Connect establishes a connection and discards the transcript.
func (e *Establisher) Connect(ctx context.Context, cred domain.ServerCredential) (ports.Connection, error) {
	conn, _, err := e.ConnectWithLog(ctx, cred)
	return conn, err
}

// ConnectWithLog establishes a connection and returns the transcript of
// every step, on success and on failure.
func (e *Establisher) ConnectWithLog(ctx context.Context, cred domain.ServerCredential) (ports.Connection, []string, error) {
	h, tr, err := e.Open(ctx, cred)
	if err != nil {
		return nil, tr.Lines(), err
	}
	return h, tr.Lines(), nil
}

// Open is ConnectWithLog returning the concrete handle.
func (e *Establisher) Open(ctx context.Context, cred domain.ServerCredential) (*Handle, *Transcript, error) {
	tr := newTranscript(e.logger)
	h, err := e.open(ctx, cred, tr)
	if err != nil {
		e.metrics.ConnectionFailed(failureKind(err))
		e.logger.Warnw("connection failed", "server", cred.Name, "addr", cred.Address(), "error", err)
		return nil, tr, err
	}
	e.metrics.ConnectionEstablished(h.Mode())
	e.logger.Infow("connection established", "server", cred.Name, "addr", cred.Address(), "mode", h.Mode().String())
	return h, tr, nil
}

func (e *Establisher) open(ctx context.Context, cred domain.ServerCredential, tr *Transcript) (*Handle, error) {
	addr := cred.Address()
	tr.Logf("connecting to %s as %s", addr, cred.User)

	conn, err := e.dialTCP(ctx, addr)
	if err != nil {
		tr.Logf("tcp connect failed: %v", err)
		return nil, &domain.ConnectError{Addr: addr, Err: err}
	}
	tr.Logf("tcp connection established")

	hostKey, err := e.hostKeyCallback()
	if err != nil {
		conn.Close()
		tr.Logf("host key verification unavailable: %v", err)
		return nil, &domain.HandshakeError{Addr: addr, Err: err}
	}

	client, nativeErr := e.authenticate(ctx, cred, conn, hostKey, tr)
	if nativeErr == nil {
		tr.Logf("authenticated, session ready")
		return newNativeHandle(cred, client, e.logger, e.runner, e.executor), nil
	}

	var connErr *domain.ConnectError
	var hsErr *domain.HandshakeError
	if errors.As(nativeErr, &connErr) || errors.As(nativeErr, &hsErr) {
		return nil, nativeErr
	}

	tr.Logf("built-in authentication failed: %v", nativeErr)
	tr.Logf("trying the system ssh client")
	if probeErr := e.probe(ctx, cred); probeErr != nil {
		tr.Logf("system ssh failed as well: %v", probeErr)
		tr.Logf("check host, port, user and credential")
		return nil, &domain.AuthError{User: cred.User, Addr: addr, Err: nativeErr}
	}

	tr.Logf("system ssh succeeded: server reachable and credential valid")
	tr.Logf("the built-in library rejected the credential, most likely an unsupported key format")
	tr.Logf("remote operations will use the system ssh and scp tools")
	return newFallbackHandle(cred, e.logger, e.runner, e.executor), nil
}

// authenticate tries each candidate on its own connection. first is the
// already dialed connection, used by the first networked attempt.
func (e *Establisher) authenticate(ctx context.Context, cred domain.ServerCredential, first net.Conn, hostKey gossh.HostKeyCallback, tr *Transcript) (*gossh.Client, error) {
	addr := cred.Address()
	pending := first
	defer func() {
		if pending != nil {
			pending.Close()
		}
	}()

	var lastErr error
	for _, c := range e.authCandidates(cred, tr) {
		tr.Logf("trying %s", c.label)
		method, release, err := c.method()
		if err != nil {
			tr.Logf("%s skipped: %v", c.label, err)
			lastErr = err
			continue
		}

		if pending == nil {
			pending, err = e.dialTCP(ctx, addr)
			if err != nil {
				release()
				tr.Logf("tcp reconnect failed: %v", err)
				return nil, &domain.ConnectError{Addr: addr, Err: err}
			}
		}
		client, err := e.handshake(pending, addr, cred.User, hostKey, method)
		release()
		// NewClientConn owns the connection from here, success or not.
		pending = nil
		if err == nil {
			tr.Logf("%s accepted", c.label)
			return client, nil
		}
		if !isAuthFailure(err) {
			tr.Logf("ssh handshake failed: %v", err)
			return nil, &domain.HandshakeError{Addr: addr, Err: err}
		}
		tr.Logf("%s rejected", c.label)
		lastErr = err
	}

	if pending != nil {
		// Nothing reached the server yet; a bare handshake still tells a
		// protocol failure apart from an authentication failure.
		client, err := e.handshake(pending, addr, cred.User, hostKey)
		pending = nil
		switch {
		case err == nil:
			tr.Logf("server accepted the connection without authentication")
			return client, nil
		case !isAuthFailure(err):
			tr.Logf("ssh handshake failed: %v", err)
			return nil, &domain.HandshakeError{Addr: addr, Err: err}
		}
		if lastErr == nil {
			lastErr = err
		}
	}
	if lastErr == nil {
		lastErr = errors.New("no authentication method available")
	}
	return nil, fmt.Errorf("%s authentication failed: %w", cred.AuthKind, lastErr)
}

func (e *Establisher) dialTCP(ctx context.Context, addr string) (net.Conn, error) {
	ctx, cancel := context.WithTimeout(ctx, e.opts.ConnectTimeout)
	defer cancel()
	return e.dial(ctx, "tcp", addr)
}

// handshake runs the SSH handshake over conn with the given methods. The
// connect timeout bounds the whole exchange.
func (e *Establisher) handshake(conn net.Conn, addr, user string, hostKey gossh.HostKeyCallback, methods ...gossh.AuthMethod) (*gossh.Client, error) {
	if err := conn.SetDeadline(time.Now().Add(e.opts.ConnectTimeout)); err != nil {
		conn.Close()
		return nil, err
	}
	c, chans, reqs, err := gossh.NewClientConn(conn, addr, &gossh.ClientConfig{
		User:            user,
		Auth:            methods,
		HostKeyCallback: hostKey,
		Timeout:         e.opts.ConnectTimeout,
	})
	if err != nil {
		return nil, err
	}
	if err := conn.SetDeadline(time.Time{}); err != nil {
		c.Close()
		return nil, err
	}
	return gossh.NewClient(c, chans, reqs), nil
}

func (e *Establisher) hostKeyCallback() (gossh.HostKeyCallback, error) {
	if !e.opts.StrictHostKeyChecking {
		return gossh.InsecureIgnoreHostKey(), nil
	}
	cb, err := knownhosts.New(ExpandPath(e.opts.KnownHostsFile))
	if err != nil {
		return nil, fmt.Errorf("load known hosts: %w", err)
	}
	return cb, nil
}

// probe checks whether the system ssh client can log in with cred.
func (e *Establisher) probe(ctx context.Context, cred domain.ServerCredential) error {
	if err := toolAvailable(ctx, e.runner, sshProgram); err != nil {
		return err
	}
	_, err := e.runner.Run(ctx, sshProgram, sshArgs(cred, "exit 0")...)
	return err
}

func isAuthFailure(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "unable to authenticate") ||
		strings.Contains(msg, "no supported methods remain")
}

func failureKind(err error) string {
	var (
		connErr *domain.ConnectError
		hsErr   *domain.HandshakeError
	)
	switch {
	case errors.As(err, &connErr):
		return "connect"
	case errors.As(err, &hsErr):
		return "handshake"
	default:
		return "auth"
	}
}
