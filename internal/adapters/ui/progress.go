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

package ui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Adembc/lazyscp/internal/core/domain"
	"github.com/mattn/go-runewidth"
)

const (
	AppName = "lazyscp"

	nameWidth = 28
	barWidth  = 20
)

// cellPad pads a string with spaces so its display width is at least `width` cells.
// Names with wide runes would otherwise break the column layout.
func cellPad(s string, width int) string {
	w := runewidth.StringWidth(s)
	if w >= width {
		return s
	}
	return s + strings.Repeat(" ", width-w)
}

// fitName truncates s to width display cells and pads it.
func fitName(s string, width int) string {
	if runewidth.StringWidth(s) > width {
		s = runewidth.Truncate(s, width, "…")
	}
	return cellPad(s, width)
}

func directionIcon(d domain.Direction) string {
	if d == domain.Download {
		return "↓"
	}
	return "↑"
}

// FormatSpeed renders bytes per second as B/s, KB/s or MB/s.
func FormatSpeed(bps float64) string {
	switch {
	case bps < 1024:
		return fmt.Sprintf("%.0f B/s", bps)
	case bps < 1024*1024:
		return fmt.Sprintf("%.1f KB/s", bps/1024)
	default:
		return fmt.Sprintf("%.1f MB/s", bps/(1024*1024))
	}
}

// FormatETA renders d as s, m:ss or h:mm:ss.
func FormatETA(d time.Duration) string {
	secs := int64(d / time.Second)
	switch {
	case secs < 60:
		return fmt.Sprintf("%ds", secs)
	case secs < 3600:
		return fmt.Sprintf("%d:%02d", secs/60, secs%60)
	default:
		return fmt.Sprintf("%d:%02d:%02d", secs/3600, (secs%3600)/60, secs%60)
	}
}

// FormatSize renders a byte count with a binary unit.
func FormatSize(size uint64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	units := []string{"KB", "MB", "GB", "TB", "PB"}
	value := float64(size) / unit
	i := 0
	for value >= unit && i < len(units)-1 {
		value /= unit
		i++
	}
	return fmt.Sprintf("%.1f %s", value, units[i])
}

func progressBar(fraction float64) string {
	filled := int(fraction * barWidth)
	if filled > barWidth {
		filled = barWidth
	}
	return "[" + strings.Repeat("#", filled) + strings.Repeat("-", barWidth-filled) + "]"
}

// FormatTaskLine renders one queue row.
func FormatTaskLine(t domain.TransferTask, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%3d %s %s %s %3.0f%%", t.ID, directionIcon(t.Direction), fitName(t.Name, nameWidth),
		progressBar(t.Progress), t.Progress*100)

	switch t.Status.State {
	case domain.StateInProgress:
		if t.Size == 0 {
			break
		}
		if bps, ok := t.Throughput(now); ok {
			fmt.Fprintf(&b, "  %s", FormatSpeed(bps))
		}
		if eta, ok := t.ETA(now); ok {
			fmt.Fprintf(&b, "  eta %s", FormatETA(eta))
		}
	case domain.StateFailed:
		fmt.Fprintf(&b, "  failed: %s", t.Status.Reason)
	default:
		fmt.Fprintf(&b, "  %s", t.Status.State)
	}
	return b.String()
}

// Renderer writes queue snapshots as plain text.
type Renderer struct {
	w   io.Writer
	now func() time.Time
}

func NewRenderer(w io.Writer) *Renderer {
	return &Renderer{w: w, now: time.Now}
}

// Render writes one line per task.
func (r *Renderer) Render(tasks []domain.TransferTask) error {
	now := r.now()
	for _, t := range tasks {
		if _, err := fmt.Fprintln(r.w, FormatTaskLine(t, now)); err != nil {
			return err
		}
	}
	return nil
}

// Summary counts tasks per state.
func Summary(tasks []domain.TransferTask) string {
	var pending, running, done, failed int
	for _, t := range tasks {
		switch t.Status.State {
		case domain.StatePending:
			pending++
		case domain.StateInProgress:
			running++
		case domain.StateCompleted:
			done++
		case domain.StateFailed:
			failed++
		}
	}
	return fmt.Sprintf("%d done, %d failed, %d running, %d pending", done, failed, running, pending)
}

// FormatEntry renders a remote listing row.
func FormatEntry(e domain.RemoteEntry) string {
	kind := "-"
	size := FormatSize(e.Size)
	if e.IsDir {
		kind = "d"
		size = ""
	}
	return fmt.Sprintf("%s %10s  %s  %s", kind, size, cellPad(e.Modified, 16), e.Name)
}

// FormatServer renders a saved credential as one row of the server list.
func FormatServer(c domain.ServerCredential) string {
	target := fmt.Sprintf("%s:%d", c.Destination(), c.EffectivePort())
	row := fmt.Sprintf("%s  %s  %s", fitName(c.Name, 16), fitName(target, 32), cellPad(string(c.AuthKind), 8))
	return strings.TrimRight(row+"  "+c.DefaultRemoteDir, " ")
}
