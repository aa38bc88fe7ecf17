// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/hjson/hjson-go/v4"
)

// Loader handles configuration file loading.
type Loader struct{}

// NewLoader creates a new config loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load reads and parses the configuration from the given path, applies
// environment-variable overrides, and fills in defaults.
// An empty path is valid: the daemon runs on defaults plus environment.
func (l *Loader) Load(ctx context.Context, path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}

		var raw map[string]interface{}
		if err := hjson.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse hjson: %w", err)
		}

		jsonData, err := json.Marshal(raw)
		if err != nil {
			return nil, fmt.Errorf("convert to json: %w", err)
		}

		if err := json.Unmarshal(jsonData, &cfg); err != nil {
			return nil, fmt.Errorf("unmarshal config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	cfg.Defaults()

	cfg.DataDir = ExpandPath(cfg.DataDir)
	cfg.ReleaseRootDir = ExpandPath(cfg.ReleaseRootDir)
	cfg.WorktreeRootDir = ExpandPath(cfg.WorktreeRootDir)
	for i := range cfg.Repos {
		cfg.Repos[i].Path = ExpandPath(cfg.Repos[i].Path)
	}

	return &cfg, nil
}

// applyEnvOverrides layers the recognized environment variables
// on top of whatever the config file set, the way cmd/trellis/main.go
// layers CLI flags over file config.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("RELEASE_ROOT_DIR"); v != "" {
		cfg.ReleaseRootDir = v
	}
	if v := os.Getenv("WORKTREE_ROOT_DIR"); v != "" {
		cfg.WorktreeRootDir = v
	}
	if v := os.Getenv("CONTROL_AUTH_TOKEN"); v != "" {
		cfg.Server.AuthToken = v
	}
	if v := os.Getenv("STARTUP_INTEGRITY_MODE"); v != "" {
		cfg.Release.StartupIntegrityMode = IntegrityMode(v)
	}
	if v := os.Getenv("BRIDGE_SHARED_SECRET"); v != "" {
		cfg.Bridge.SharedSecret = v
	}
	if v := os.Getenv("BRIDGE_RETRY_BASE_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Bridge.RetryBaseMs = n
		}
	}
	if v := os.Getenv("BRIDGE_RETRY_MAX_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Bridge.RetryMaxMs = n
		}
	}
	if v := os.Getenv("BRIDGE_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Bridge.MaxRetries = n
		}
	}
	if v := os.Getenv("ENGINE_MODE"); v != "" {
		cfg.Engine.Mode = EngineMode(v)
	}
	if v := os.Getenv("TASK_AUTO_COMMIT"); v != "" {
		cfg.Task.AutoCommit = v == "true" || v == "1"
	}
	if v := os.Getenv("TASK_AUTO_PR"); v != "" {
		cfg.Task.AutoPR = v == "true" || v == "1"
	}
}
