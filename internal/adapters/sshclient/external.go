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
	"strconv"
	"time"

	"github.com/Adembc/lazyscp/internal/adapters/command"
	"github.com/Adembc/lazyscp/internal/core/domain"
)

// Options configures connection establishment and the transports.
type Options struct {
	ConnectTimeout        time.Duration
	KeyDir                string
	KeyExcludePatterns    []string
	StrictHostKeyChecking bool
	KnownHostsFile        string
	// SCPLegacyProtocol passes -O so scp uses the remote shell, which is
	// what gives the quoted remote path its meaning.
	SCPLegacyProtocol bool
}

// OptionsFromConfig maps the application config onto Options.
func OptionsFromConfig(cfg domain.Config) Options {
	return Options{
		ConnectTimeout:        cfg.ConnectTimeout,
		KeyDir:                cfg.KeyDir,
		KeyExcludePatterns:    cfg.KeyExcludePatterns,
		StrictHostKeyChecking: cfg.StrictHostKeyChecking,
		KnownHostsFile:        cfg.KnownHostsFile,
		SCPLegacyProtocol:     cfg.SCPLegacyProtocol,
	}
}

const (
	sshProgram = "ssh"
	scpProgram = "scp"
)

// sshArgs builds a non-interactive ssh invocation running remoteCommand.
func sshArgs(cred domain.ServerCredential, remoteCommand string) []string {
	args := []string{
		"-o", "BatchMode=yes",
		"-o", "StrictHostKeyChecking=no",
		"-p", strconv.Itoa(cred.EffectivePort()),
		"-T",
	}
	if cred.KeyPath != "" {
		args = append(args, "-i", ExpandPath(cred.KeyPath))
	}
	return append(args, cred.Destination(), remoteCommand)
}

// scpArgs builds an scp invocation copying src to dst. One of them is a
// remote target produced by remoteTarget.
func scpArgs(cred domain.ServerCredential, legacy bool, src, dst string) []string {
	args := []string{
		"-P", strconv.Itoa(cred.EffectivePort()),
		"-o", "StrictHostKeyChecking=no",
		"-o", "BatchMode=yes",
	}
	if legacy {
		args = append(args, "-O")
	}
	if cred.KeyPath != "" {
		args = append(args, "-i", ExpandPath(cred.KeyPath))
	}
	return append(args, src, dst)
}

func remoteTarget(cred domain.ServerCredential, remotePath string) string {
	return cred.Destination() + ":" + Escape(RemotePath(remotePath))
}

// toolAvailable fails only when program cannot be started at all.
func toolAvailable(ctx context.Context, runner command.Runner, program string) error {
	if err := command.Available(ctx, runner, program, "-V"); err != nil {
		return fmt.Errorf("%s not available: %w", program, err)
	}
	return nil
}

// runRemote runs remoteCommand through the system ssh client and returns
// the captured output.
func runRemote(ctx context.Context, runner command.Runner, cred domain.ServerCredential, remoteCommand string) (command.Result, error) {
	res, err := runner.Run(ctx, sshProgram, sshArgs(cred, remoteCommand)...)
	if err != nil {
		var cmdErr *domain.RemoteCommandError
		if errors.As(err, &cmdErr) {
			return res, &domain.RemoteCommandError{
				Command:  remoteCommand,
				ExitCode: cmdErr.ExitCode,
				Output:   cmdErr.Output,
				Err:      cmdErr.Err,
			}
		}
		return res, err
	}
	return res, nil
}
