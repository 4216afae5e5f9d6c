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
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Transcript is the ordered, human readable record of a connection attempt.
// It is kept whether or not the attempt succeeds so a failure can be traced
// to the step that caused it.
type Transcript struct {
	mu     sync.Mutex
	lines  []string
	logger *zap.SugaredLogger
}

func newTranscript(logger *zap.SugaredLogger) *Transcript {
	return &Transcript{logger: logger}
}

// Logf appends one step.
func (t *Transcript) Logf(format string, args ...any) {
	line := fmt.Sprintf(format, args...)
	t.mu.Lock()
	t.lines = append(t.lines, line)
	t.mu.Unlock()
	if t.logger != nil {
		t.logger.Debugw("connect", "step", line)
	}
}

// Lines returns a copy of the recorded steps.
func (t *Transcript) Lines() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.lines))
	copy(out, t.lines)
	return out
}

func (t *Transcript) String() string {
	return strings.Join(t.Lines(), "\n")
}
