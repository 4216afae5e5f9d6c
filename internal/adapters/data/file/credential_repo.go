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

package file

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/Adembc/lazyscp/internal/core/domain"
	"github.com/Adembc/lazyscp/internal/core/ports"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// ErrCredentialNotFound is returned when no credential has the requested
// name.
var ErrCredentialNotFound = errors.New("credential not found")

// credentialFile is the on-disk layout of servers.yaml.
type credentialFile struct {
	Servers []domain.ServerCredential `yaml:"servers"`
}

type credentialRepo struct {
	mu       sync.Mutex
	filePath string
	logger   *zap.SugaredLogger
}

// NewCredentialRepo stores server credentials as YAML at filePath.
func NewCredentialRepo(logger *zap.SugaredLogger, filePath string) ports.CredentialRepository {
	return &credentialRepo{filePath: filePath, logger: logger}
}

// ListCredentials returns every stored credential sorted by name. A
// missing file is an empty store.
func (r *credentialRepo) ListCredentials() ([]domain.ServerCredential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	creds, err := r.load()
	if err != nil {
		return nil, err
	}
	sort.SliceStable(creds, func(i, j int) bool {
		return strings.ToLower(creds[i].Name) < strings.ToLower(creds[j].Name)
	})
	return creds, nil
}

func (r *credentialRepo) GetCredential(name string) (domain.ServerCredential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	creds, err := r.load()
	if err != nil {
		return domain.ServerCredential{}, err
	}
	for _, c := range creds {
		if c.Name == name {
			return c, nil
		}
	}
	return domain.ServerCredential{}, fmt.Errorf("%w: %s", ErrCredentialNotFound, name)
}

// SaveCredential adds cred or replaces the one with the same name.
func (r *credentialRepo) SaveCredential(cred domain.ServerCredential) error {
	if err := validateCredential(cred); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	creds, err := r.load()
	if err != nil {
		return err
	}
	replaced := false
	for i := range creds {
		if creds[i].Name == cred.Name {
			creds[i] = cred
			replaced = true
			break
		}
	}
	if !replaced {
		creds = append(creds, cred)
	}
	return r.save(creds)
}

func (r *credentialRepo) load() ([]domain.ServerCredential, error) {
	data, err := os.ReadFile(r.filePath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read credentials %s: %w", r.filePath, err)
	}

	var f credentialFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse credentials %s: %w", r.filePath, err)
	}
	for i := range f.Servers {
		if f.Servers[i].AuthKind == "" {
			f.Servers[i].AuthKind = domain.AuthKindKey
		}
	}
	return f.Servers, nil
}

func (r *credentialRepo) save(creds []domain.ServerCredential) error {
	if err := os.MkdirAll(filepath.Dir(r.filePath), 0o700); err != nil {
		return err
	}
	data, err := yaml.Marshal(credentialFile{Servers: creds})
	if err != nil {
		return err
	}

	tmp := r.filePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	if err := os.Rename(tmp, r.filePath); err != nil {
		r.logger.Warnw("failed to replace credentials file", "path", r.filePath, "error", err)
		return err
	}
	return nil
}

func validateCredential(c domain.ServerCredential) error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if strings.TrimSpace(c.Host) == "" {
		return fmt.Errorf("host is required")
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port must be a number between 1 and 65535")
	}
	switch c.AuthKind {
	case domain.AuthKindPassword, domain.AuthKindKey:
	default:
		return fmt.Errorf("auth kind must be %q or %q", domain.AuthKindPassword, domain.AuthKindKey)
	}
	return nil
}
