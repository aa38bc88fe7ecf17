// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := &Config{
		Repos: []RepoConfig{
			{ID: "main", Path: "/repo", DefaultBranch: "main", IsDefault: true},
		},
		Bridge: BridgeConfig{SharedSecret: "s3cret"},
	}
	cfg.Defaults()
	return cfg
}

func TestValidator_Valid(t *testing.T) {
	v := NewValidator()
	assert.NoError(t, v.Validate(validConfig()))
}

func TestValidator_DuplicateRepoID(t *testing.T) {
	cfg := validConfig()
	cfg.Repos = append(cfg.Repos, RepoConfig{ID: "main", Path: "/other"})

	err := v1Err(t, cfg)
	assert.Contains(t, err.Error(), "duplicate repo id")
}

func TestValidator_MultipleDefaults(t *testing.T) {
	cfg := validConfig()
	cfg.Repos = append(cfg.Repos, RepoConfig{ID: "second", Path: "/other", IsDefault: true})

	err := v1Err(t, cfg)
	assert.Contains(t, err.Error(), "at most one repo")
}

func TestValidator_SocketPathTooLong(t *testing.T) {
	cfg := validConfig()
	cfg.Server.SocketPath = "/" + strings.Repeat("a", maxUnixSocketPathLen)

	err := v1Err(t, cfg)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Len(t, verr.Errors, 1)
	assert.Equal(t, "socket_path_too_long", verr.Errors[0].Code)
}

func TestValidator_MissingBridgeSecret(t *testing.T) {
	cfg := validConfig()
	cfg.Bridge.SharedSecret = ""

	err := v1Err(t, cfg)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "slack_missing_secrets", verr.Errors[0].Code)
}

func TestValidator_ProcessEngineRequiresCommand(t *testing.T) {
	cfg := validConfig()
	cfg.Engine.Mode = EngineModeProcess
	cfg.Engine.Command = ""

	err := v1Err(t, cfg)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "missing_engine_command", verr.Errors[0].Code)
}

func v1Err(t *testing.T, cfg *Config) error {
	t.Helper()
	err := NewValidator().Validate(cfg)
	require.Error(t, err)
	return err
}
