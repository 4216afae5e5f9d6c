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

import "github.com/Adembc/lazyscp/internal/core/domain"

// monotonicSink forwards fractions clamped to [0,1] and drops any value
// lower than the last one forwarded. Directory transfers feed per-file and
// per-level fractions into one sink; the guard keeps the observed sequence
// non-decreasing.
type monotonicSink struct {
	next    domain.ProgressSink
	last    float64
	started bool
}

func guardProgress(sink domain.ProgressSink) domain.ProgressSink {
	if sink == nil {
		sink = domain.DiscardProgress
	}
	if g, ok := sink.(*monotonicSink); ok {
		return g
	}
	return &monotonicSink{next: sink}
}

func (m *monotonicSink) Progress(fraction float64) {
	switch {
	case fraction < 0:
		fraction = 0
	case fraction > 1:
		fraction = 1
	}
	if m.started && fraction < m.last {
		return
	}
	m.started = true
	m.last = fraction
	m.next.Progress(fraction)
}

// childSink maps the progress of child i out of n onto the slice
// [i/n, (i+1)/n] of the parent, so a level reports (i+1)/n once child i is
// done and nested levels never run ahead of their parent.
func childSink(parent domain.ProgressSink, i, n int) domain.ProgressSink {
	base := float64(i) / float64(n)
	span := 1 / float64(n)
	return domain.ProgressFunc(func(fraction float64) {
		parent.Progress(base + fraction*span)
	})
}
