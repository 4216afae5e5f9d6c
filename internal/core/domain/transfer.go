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

import "time"

// Direction of a transfer relative to the local machine.
type Direction int

const (
	Upload Direction = iota
	Download
)

func (d Direction) String() string {
	if d == Download {
		return "download"
	}
	return "upload"
}

// TransferState is the lifecycle state of a queued task.
type TransferState int

const (
	StatePending TransferState = iota
	StateInProgress
	StateCompleted
	StateFailed
)

func (s TransferState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateInProgress:
		return "progress"
	case StateCompleted:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// TransferStatus pairs a state with the failure reason, which is only set
// for StateFailed.
type TransferStatus struct {
	State  TransferState
	Reason string
}

func Pending() TransferStatus    { return TransferStatus{State: StatePending} }
func InProgress() TransferStatus { return TransferStatus{State: StateInProgress} }
func Completed() TransferStatus  { return TransferStatus{State: StateCompleted} }

func Failed(reason string) TransferStatus {
	return TransferStatus{State: StateFailed, Reason: reason}
}

// TransferTask is one queued upload or download, a single file or a whole
// directory tree.
type TransferTask struct {
	ID         int
	Direction  Direction
	LocalPath  string
	RemotePath string
	Name       string
	// Size is the total size in bytes, 0 when unknown.
	Size     uint64
	Progress float64
	Status   TransferStatus
	// StartedAt is set by the first progress update and cleared on retry.
	StartedAt time.Time
}

// minThroughputWindow avoids wild estimates right after a task starts.
const minThroughputWindow = 500 * time.Millisecond

// Throughput estimates bytes per second at now. ok is false while the task
// is not in progress or too little has happened to estimate.
func (t TransferTask) Throughput(now time.Time) (bps float64, ok bool) {
	if t.Status.State != StateInProgress || t.StartedAt.IsZero() || t.Progress <= 0 {
		return 0, false
	}
	elapsed := now.Sub(t.StartedAt)
	if elapsed <= minThroughputWindow {
		return 0, false
	}
	done := float64(t.Size) * t.Progress
	return done / elapsed.Seconds(), true
}

// ETA estimates the remaining time at now.
func (t TransferTask) ETA(now time.Time) (time.Duration, bool) {
	bps, ok := t.Throughput(now)
	if !ok || bps <= 0 || t.Progress >= 1 {
		return 0, false
	}
	remaining := float64(t.Size) * (1 - t.Progress)
	return time.Duration(remaining / bps * float64(time.Second)), true
}

// ProgressSink receives a completion fraction in [0,1]. It is invoked
// synchronously from the goroutine doing the copy.
type ProgressSink interface {
	Progress(fraction float64)
}

// ProgressFunc adapts a plain function to ProgressSink.
type ProgressFunc func(fraction float64)

func (f ProgressFunc) Progress(fraction float64) { f(fraction) }

// DiscardProgress ignores every update.
var DiscardProgress ProgressSink = ProgressFunc(func(float64) {})

// RemoteEntry is one item of a remote directory listing.
type RemoteEntry struct {
	Name     string
	IsDir    bool
	Size     uint64
	Modified string
}
