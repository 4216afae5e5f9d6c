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

package ssh_config_file

import (
	"fmt"
	"os"
	"os/user"
	"strconv"
	"strings"

	"github.com/Adembc/lazyscp/internal/core/domain"
	"github.com/kevinburke/ssh_config"
	"go.uber.org/zap"
)

// Resolver turns a Host alias from an OpenSSH client config into a key
// based credential.
type Resolver struct {
	configPath  string
	logger      *zap.SugaredLogger
	currentUser func() string
}

func NewResolver(logger *zap.SugaredLogger, configPath string) *Resolver {
	return &Resolver{
		configPath:  configPath,
		logger:      logger,
		currentUser: currentUsername,
	}
}

// Resolve looks up alias. HostName defaults to the alias itself, Port to
// 22 and User to the local user, as the ssh client does.
func (r *Resolver) Resolve(alias string) (domain.ServerCredential, error) {
	cfg, err := r.loadConfig()
	if err != nil {
		return domain.ServerCredential{}, err
	}

	var lookupErr error
	get := func(key string) string {
		v, err := cfg.Get(alias, key)
		if err != nil && lookupErr == nil {
			lookupErr = fmt.Errorf("alias %s: %s: %w", alias, key, err)
		}
		return strings.TrimSpace(v)
	}

	cred := domain.ServerCredential{
		Name:     alias,
		Host:     get("HostName"),
		User:     get("User"),
		AuthKind: domain.AuthKindKey,
		KeyPath:  get("IdentityFile"),
	}
	port := get("Port")
	if lookupErr != nil {
		return domain.ServerCredential{}, lookupErr
	}
	if cred.Host == "" {
		cred.Host = alias
	}
	if cred.User == "" {
		cred.User = r.currentUser()
	}
	if port != "" {
		n, err := strconv.Atoi(port)
		if err != nil {
			return domain.ServerCredential{}, fmt.Errorf("alias %s: invalid port %q", alias, port)
		}
		cred.Port = n
	}
	return cred, nil
}

// loadConfig reads and parses the SSH config file. A missing file is an
// empty config.
func (r *Resolver) loadConfig() (*ssh_config.Config, error) {
	file, err := os.Open(r.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return &ssh_config.Config{Hosts: []*ssh_config.Host{}}, nil
		}
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil {
			r.logger.Warnf("failed to close config file: %v", cerr)
		}
	}()

	cfg, err := ssh_config.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

func currentUsername() string {
	if u, err := user.Current(); err == nil {
		return u.Username
	}
	return os.Getenv("USER")
}
