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

// Package command runs external programs (ssh, scp) and captures their
// output and exit status.
package command

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"

	"github.com/Adembc/lazyscp/internal/core/domain"
	"go.uber.org/zap"
)

// Result holds the captured output of one invocation.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Combined returns stdout followed by stderr.
func (r Result) Combined() string {
	if r.Stderr == "" {
		return r.Stdout
	}
	if r.Stdout == "" {
		return r.Stderr
	}
	return r.Stdout + r.Stderr
}

// Runner executes a program to completion.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (Result, error)
}

// OSRunner runs programs with os/exec. No timeout is imposed; callers that
// need one must pass a context with a deadline.
type OSRunner struct {
	logger     *zap.SugaredLogger
	newCommand func(ctx context.Context, name string, args ...string) *exec.Cmd
}

var _ Runner = (*OSRunner)(nil)

// NewRunner creates an OSRunner.
func NewRunner(logger *zap.SugaredLogger) *OSRunner {
	return &OSRunner{
		logger:     logger,
		newCommand: exec.CommandContext,
	}
}

// Run starts name with args and waits for it. A non-zero exit, or a
// failure to start, is returned as *domain.RemoteCommandError together with
// whatever output was captured.
func (r *OSRunner) Run(ctx context.Context, name string, args ...string) (Result, error) {
	cmd := r.newCommand(ctx, name, args...)
	if cmd == nil {
		return Result{ExitCode: -1}, &domain.RemoteCommandError{
			Command:  name,
			ExitCode: -1,
			Err:      errors.New("command factory returned nil"),
		}
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.logger.Debugw("exec start", "program", name, "args", args)
	err := cmd.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if err == nil {
		return res, nil
	}

	res.ExitCode = -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
	}
	r.logger.Debugw("exec failed", "program", name, "exit_code", res.ExitCode, "error", err)

	return res, &domain.RemoteCommandError{
		Command:  name + " " + strings.Join(args, " "),
		ExitCode: res.ExitCode,
		Output:   strings.TrimSpace(res.Stderr),
		Err:      err,
	}
}

// Available reports whether program can be started by r, by running it
// with versionFlag (ssh -V, scp -V style). Only a failure to start counts;
// the exit status is ignored.
func Available(ctx context.Context, r Runner, program, versionFlag string) error {
	_, err := r.Run(ctx, program, versionFlag)
	var cmdErr *domain.RemoteCommandError
	if errors.As(err, &cmdErr) && cmdErr.ExitCode >= 0 {
		return nil
	}
	return err
}
