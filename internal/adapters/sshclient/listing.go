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
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/Adembc/lazyscp/internal/core/domain"
)

const modifiedLayout = "2006-01-02 15:04"

// parseListing parses `ls -la --time-style=long-iso` output:
//
//	drwxr-xr-x  2 user group 4096 2024-01-15 10:30 dirname
//
// The first seven whitespace separated fields are fixed; everything after
// them is the name, so names containing spaces survive. The total line,
// short lines, "." and ".." are skipped.
func parseListing(output string) []domain.RemoteEntry {
	var entries []domain.RemoteEntry
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.HasPrefix(line, "total ") {
			continue
		}
		name, fields, ok := splitListingLine(line)
		if !ok || name == "." || name == ".." {
			continue
		}
		size, _ := strconv.ParseUint(fields[4], 10, 64)
		entries = append(entries, domain.RemoteEntry{
			Name:     name,
			IsDir:    strings.HasPrefix(fields[0], "d"),
			Size:     size,
			Modified: fields[5] + " " + fields[6],
		})
	}
	return entries
}

// splitListingLine returns the name and the seven leading fields of line.
func splitListingLine(line string) (string, []string, bool) {
	fields := make([]string, 0, 7)
	rest := line
	for len(fields) < 7 {
		rest = strings.TrimLeft(rest, " \t")
		if rest == "" {
			return "", nil, false
		}
		end := strings.IndexAny(rest, " \t")
		if end < 0 {
			return "", nil, false
		}
		fields = append(fields, rest[:end])
		rest = rest[end:]
	}
	// One separator belongs to the column layout; the rest is the name.
	name := strings.TrimLeft(rest, " \t")
	if name == "" {
		return "", nil, false
	}
	return name, fields, true
}

func entriesFromFileInfo(infos []os.FileInfo) []domain.RemoteEntry {
	entries := make([]domain.RemoteEntry, 0, len(infos))
	for _, fi := range infos {
		if fi.Name() == "." || fi.Name() == ".." {
			continue
		}
		var size uint64
		if fi.Size() > 0 {
			size = uint64(fi.Size())
		}
		entries = append(entries, domain.RemoteEntry{
			Name:     fi.Name(),
			IsDir:    fi.IsDir(),
			Size:     size,
			Modified: fi.ModTime().Format(modifiedLayout),
		})
	}
	return entries
}

// sortEntries orders directories first, then names case-insensitively.
func sortEntries(entries []domain.RemoteEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].IsDir != entries[j].IsDir {
			return entries[i].IsDir
		}
		return strings.ToLower(entries[i].Name) < strings.ToLower(entries[j].Name)
	})
}
