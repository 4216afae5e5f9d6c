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
	"errors"
	"fmt"
	"net"
	"os"
	"path"
	"path/filepath"

	"github.com/Adembc/lazyscp/internal/core/domain"
	gossh "golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
)

// authCandidate is one authentication strategy. method builds the
// ssh.AuthMethod; release frees whatever it holds (the agent socket) once
// the handshake is over.
type authCandidate struct {
	label  string
	method func() (gossh.AuthMethod, func(), error)
}

func noRelease() {}

func (e *Establisher) authCandidates(cred domain.ServerCredential, tr *Transcript) []authCandidate {
	if cred.AuthKind == domain.AuthKindPassword {
		return []authCandidate{{
			label: "password",
			method: func() (gossh.AuthMethod, func(), error) {
				if cred.Password == "" {
					return nil, nil, errors.New("empty password")
				}
				return gossh.Password(cred.Password), noRelease, nil
			},
		}}
	}

	var candidates []authCandidate
	explicit := ""
	if cred.KeyPath != "" {
		explicit = filepath.Clean(ExpandPath(cred.KeyPath))
		candidates = append(candidates, keyFileCandidate(explicit))
	}
	candidates = append(candidates, authCandidate{
		label:  "ssh agent",
		method: e.agentMethod,
	})

	for _, p := range e.defaultKeyFiles(tr) {
		if p == explicit {
			continue
		}
		candidates = append(candidates, keyFileCandidate(p))
	}
	return candidates
}

func keyFileCandidate(p string) authCandidate {
	return authCandidate{
		label: "key file " + p,
		method: func() (gossh.AuthMethod, func(), error) {
			signer, err := loadSigner(p)
			if err != nil {
				return nil, nil, err
			}
			return gossh.PublicKeys(signer), noRelease, nil
		},
	}
}

func loadSigner(p string) (gossh.Signer, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("read key: %w", err)
	}
	signer, err := gossh.ParsePrivateKey(data)
	if err != nil {
		var missing *gossh.PassphraseMissingError
		if errors.As(err, &missing) {
			return nil, errors.New("key is passphrase protected")
		}
		return nil, fmt.Errorf("parse key: %w", err)
	}
	return signer, nil
}

func (e *Establisher) agentMethod() (gossh.AuthMethod, func(), error) {
	sock := e.agentSocket()
	if sock == "" {
		return nil, nil, errors.New("SSH_AUTH_SOCK not set")
	}
	conn, err := net.Dial("unix", sock)
	if err != nil {
		return nil, nil, fmt.Errorf("agent unreachable: %w", err)
	}
	client := agent.NewClient(conn)
	signers, err := client.Signers()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("agent signers: %w", err)
	}
	if len(signers) == 0 {
		conn.Close()
		return nil, nil, errors.New("agent holds no keys")
	}
	return gossh.PublicKeys(signers...), func() { conn.Close() }, nil
}

// defaultKeyFiles lists the regular files of the key directory in
// directory order, minus names matching an exclusion pattern.
func (e *Establisher) defaultKeyFiles(tr *Transcript) []string {
	dir := ExpandPath(e.opts.KeyDir)
	if dir == "" {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		tr.Logf("key directory %s not readable: %v", dir, err)
		return nil
	}

	var files []string
	for _, entry := range entries {
		name := entry.Name()
		if e.excludedKeyName(name) {
			e.logger.Debugw("skipping key directory entry", "name", name)
			continue
		}
		p := filepath.Join(dir, name)
		info, err := os.Stat(p)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		files = append(files, p)
	}
	return files
}

func (e *Establisher) excludedKeyName(name string) bool {
	for _, pattern := range e.opts.KeyExcludePatterns {
		if ok, err := path.Match(pattern, name); err == nil && ok {
			return true
		}
	}
	return false
}
