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
	"path"
	"path/filepath"
	"strings"
)

// Escape quotes s for a POSIX shell: the whole value is wrapped in single
// quotes and every embedded single quote becomes '\''.
func Escape(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// RemotePath normalizes p to forward slashes. Remote paths never use the
// local separator.
func RemotePath(p string) string {
	return strings.ReplaceAll(p, `\`, "/")
}

// RemoteJoin joins remote path elements with forward slashes.
func RemoteJoin(elem ...string) string {
	for i := range elem {
		elem[i] = RemotePath(elem[i])
	}
	return path.Join(elem...)
}

// ExpandPath expands a leading ~/ to the user's home directory.
func ExpandPath(p string) string {
	if strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, p[2:])
		}
	}
	return p
}
