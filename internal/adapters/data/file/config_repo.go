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
	"fmt"
	"os"
	"path/filepath"

	"github.com/Adembc/lazyscp/internal/core/domain"
	"github.com/Adembc/lazyscp/internal/core/ports"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type configRepo struct {
	filePath string
	homeDir  string
	logger   *zap.SugaredLogger
}

// NewConfigRepo stores the application config as YAML at filePath.
func NewConfigRepo(logger *zap.SugaredLogger, filePath, homeDir string) ports.ConfigRepository {
	return &configRepo{filePath: filePath, homeDir: homeDir, logger: logger}
}

// Load reads the config, writing the defaults on first run. Missing
// fields fall back to their defaults.
func (r *configRepo) Load() (domain.Config, error) {
	defaults := domain.DefaultConfig(r.homeDir)

	data, err := os.ReadFile(r.filePath)
	if os.IsNotExist(err) {
		if saveErr := r.Save(defaults); saveErr != nil {
			r.logger.Warnw("failed to write default config", "path", r.filePath, "error", saveErr)
		}
		return defaults, nil
	}
	if err != nil {
		return defaults, fmt.Errorf("read config %s: %w", r.filePath, err)
	}

	// Decode over the defaults so omitted booleans keep their default.
	cfg := defaults
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return defaults, fmt.Errorf("parse config %s: %w", r.filePath, err)
	}
	return cfg.WithDefaults(r.homeDir), nil
}

func (r *configRepo) Save(cfg domain.Config) error {
	if err := os.MkdirAll(filepath.Dir(r.filePath), 0o700); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(r.filePath, data, 0o600)
}
